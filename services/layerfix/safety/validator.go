// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package safety decides whether a layer's output may replace its input.
//
// Validation is purely textual and structural: a no-op check, a tree-sitter
// syntax check, a catalogue of corruption signatures, and a logical
// integrity check over critical identifiers. Nothing is executed.
package safety

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/AleutianAI/layerfix/services/layerfix/syntax"
)

// Option configures a Validator.
type Option func(*Validator)

// WithCatalogue replaces the default catalogue.
func WithCatalogue(c *Catalogue) Option {
	return func(v *Validator) {
		if c != nil {
			v.catalogue = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Validator) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// Validator compares a layer's input and output.
//
// Thread Safety: Safe for concurrent use.
type Validator struct {
	catalogue *Catalogue
	logger    *slog.Logger
}

// NewValidator creates a validator. Without WithCatalogue the embedded
// default catalogue is used.
func NewValidator(opts ...Option) (*Validator, error) {
	v := &Validator{logger: slog.Default()}
	for _, opt := range opts {
		opt(v)
	}
	if v.catalogue == nil {
		c, err := DefaultCatalogue()
		if err != nil {
			return nil, err
		}
		v.catalogue = c
	}
	return v, nil
}

// Catalogue returns the catalogue in use.
func (v *Validator) Catalogue() *Catalogue {
	return v.catalogue
}

// Validate decides whether after may replace before.
//
// Description:
//
//	Checks run in a fixed order and stop at the first revert:
//	  1. Identical texts are accepted immediately.
//	  2. after must parse. When before already had syntax errors, after is
//	     only reverted if it has more of them.
//	  3. No corruption signature may occur more often in after than in before.
//	  4. Every critical identifier imported and used in before must still be
//	     imported in after.
//	Warning heuristics then decide between accept and accept-with-warning.
//
// Inputs:
//
//	ctx - Context for the parse.
//	before - The last accepted text.
//	after - The layer's output.
//	filename - Hint that selects the grammar. May be empty.
//
// Outputs:
//
//	Verdict - Never an error; a parser failure is reported as a revert.
func (v *Validator) Validate(ctx context.Context, before, after, filename string) Verdict {
	if before == after {
		return Accept()
	}

	var warnings []string

	verdict, warning := v.checkSyntax(ctx, before, after, filename)
	if !verdict.Accepted() {
		return verdict
	}
	if warning != "" {
		warnings = append(warnings, warning)
	}

	if verdict := v.checkCorruption(before, after); !verdict.Accepted() {
		return verdict
	}

	if verdict := v.checkIntegrity(before, after); !verdict.Accepted() {
		return verdict
	}

	warnings = append(warnings, v.heuristics(before, after)...)
	if len(warnings) > 0 {
		return AcceptWithWarning(strings.Join(warnings, "; "))
	}
	return Accept()
}

func (v *Validator) checkSyntax(ctx context.Context, before, after, filename string) (Verdict, string) {
	afterReport, err := syntax.Check(ctx, after, filename)
	if err != nil {
		return Revert(fmt.Sprintf("Syntax error: %v", err)), ""
	}
	if afterReport.Valid() {
		return Accept(), ""
	}

	beforeReport, err := syntax.Check(ctx, before, filename)
	if err != nil || beforeReport.Valid() || afterReport.ErrorCount > beforeReport.ErrorCount {
		return Revert("Syntax error: " + afterReport.Message()), ""
	}

	v.logger.Debug("input already had syntax errors",
		slog.Int("before_errors", beforeReport.ErrorCount),
		slog.Int("after_errors", afterReport.ErrorCount),
	)
	return Accept(), fmt.Sprintf("input already had %d syntax error(s)", beforeReport.ErrorCount)
}

func (v *Validator) checkCorruption(before, after string) Verdict {
	for i := range v.catalogue.Corruption {
		p := &v.catalogue.Corruption[i]
		if p.count(after) > p.count(before) {
			return Revert("Corruption detected: " + p.Name)
		}
	}
	return Accept()
}

func (v *Validator) checkIntegrity(before, after string) Verdict {
	for _, id := range v.catalogue.CriticalIdentifiers {
		imported, uses := v.catalogue.identifierState(id, before)
		if !imported || uses == 0 {
			continue
		}
		importedAfter, usesAfter := v.catalogue.identifierState(id, after)
		switch {
		case !importedAfter && usesAfter > 0:
			return Revert(fmt.Sprintf("Logical issue: %s is used but its import was removed", id))
		case !importedAfter:
			return Revert(fmt.Sprintf("Logical issue: %s was removed", id))
		}
	}
	return Accept()
}

func (v *Validator) heuristics(before, after string) []string {
	var warnings []string
	for i := range v.catalogue.Warnings {
		p := &v.catalogue.Warnings[i]
		nb, na := p.count(before), p.count(after)
		switch p.When {
		case TriggerPartial:
			if na > 0 && na < nb {
				warnings = append(warnings, fmt.Sprintf("%s: %d of %d remain", p.Name, na, nb))
			}
		case TriggerIntroduced:
			if na > nb {
				warnings = append(warnings, fmt.Sprintf("%s: %d introduced", p.Name, na-nb))
			}
		}
	}

	ratio := v.catalogue.ShrinkWarningRatio
	if ratio > 0 && len(before) > 0 && float64(len(after)) < ratio*float64(len(before)) {
		warnings = append(warnings, fmt.Sprintf("output shrank from %d to %d bytes", len(before), len(after)))
	}
	return warnings
}
