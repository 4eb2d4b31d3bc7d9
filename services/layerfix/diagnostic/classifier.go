// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package diagnostic turns raw layer errors and revert reasons into
// structured diagnostics.
package diagnostic

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/layerfix/services/layerfix/layer"
	"github.com/AleutianAI/layerfix/services/layerfix/strategy"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

// Rule maps matching error text to a diagnostic template.
type Rule struct {
	// Layer restricts the rule to one layer. 0 matches any layer.
	Layer layer.ID `yaml:"layer" validate:"gte=0"`

	// First rules are tried before every other rule. Used for texts whose
	// prefix identifies them outright, such as safety revert reasons.
	First bool `yaml:"first"`


	Contains        string   `yaml:"contains" validate:"required_without=Pattern,excluded_with=Pattern"`
	Pattern         string   `yaml:"pattern"`
	Category        Category `yaml:"category" validate:"required"`
	Severity        Severity `yaml:"severity" validate:"required"`
	Message         string   `yaml:"message" validate:"required"`
	Suggestion      string   `yaml:"suggestion"`
	RecoveryOptions []string `yaml:"recovery_options"`

	compiled *regexp.Regexp
}

func (r *Rule) matches(id layer.ID, text string) bool {
	if r.Layer != 0 && r.Layer != id {
		return false
	}
	if r.compiled != nil {
		return r.compiled.MatchString(text)
	}
	return strings.Contains(text, r.Contains)
}

type ruleFile struct {
	Rules []Rule `yaml:"rules" validate:"dive"`
}

var rulesValidate = validator.New()

// ParseRules decodes and compiles a YAML rule table.
func ParseRules(data []byte) ([]Rule, error) {
	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	if err := rulesValidate.Struct(&f); err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}
	for i := range f.Rules {
		r := &f.Rules[i]
		if r.Pattern == "" {
			continue
		}
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("failed to compile rule pattern %q: %w", r.Pattern, err)
		}
		r.compiled = re
	}
	return f.Rules, nil
}

var (
	defaultRulesOnce sync.Once
	defaultRules     []Rule
	defaultRulesErr  error
)

// DefaultRules returns the embedded rule table.
func DefaultRules() ([]Rule, error) {
	defaultRulesOnce.Do(func() {
		defaultRules, defaultRulesErr = ParseRules(defaultRulesYAML)
	})
	return defaultRules, defaultRulesErr
}

// Classifier maps errors to diagnostics using a static rule table.
//
// Description:
//
//	Known sentinel errors (timeouts, missing fallbacks, structural parse
//	failures, panics, cancellation) are classified first. The rule table is
//	then searched: rules marked first, then layer-specific rules, then
//	generic ones. Anything
//	unmatched becomes an "unknown" diagnostic of medium severity.
//	Classification never fails.
//
// Thread Safety: Safe for concurrent use. The rule table is read-only.
type Classifier struct {
	rules []Rule
}

// NewClassifier creates a classifier over rules. Nil rules use DefaultRules;
// an unparseable embedded table leaves only the sentinel rules active.
func NewClassifier(rules []Rule) *Classifier {
	if rules == nil {
		rules, _ = DefaultRules()
	}
	ordered := slices.Clone(rules)
	slices.SortStableFunc(ordered, func(a, b Rule) int {
		return ruleRank(a) - ruleRank(b)
	})
	return &Classifier{rules: ordered}
}

// ruleRank orders first rules, then layer-specific, then generic ones.
func ruleRank(r Rule) int {
	switch {
	case r.First:
		return 0
	case r.Layer != 0:
		return 1
	default:
		return 2
	}
}

// Classify explains a layer error.
func (c *Classifier) Classify(id layer.ID, err error) (d Diagnostic) {
	defer func() {
		if r := recover(); r != nil {
			d = fallback(id, fmt.Sprint(r))
		}
	}()

	if err == nil {
		return Diagnostic{
			LayerID:  id,
			Category: CategoryUnknown,
			Severity: SeverityLow,
			Message:  "Layer reported a failure without an error.",
		}
	}

	if d, ok := sentinel(id, err); ok {
		return d
	}
	return c.ClassifyText(id, err.Error())
}

// ClassifyText explains a revert reason or other failure text.
func (c *Classifier) ClassifyText(id layer.ID, text string) (d Diagnostic) {
	defer func() {
		if r := recover(); r != nil {
			d = fallback(id, text)
		}
	}()

	for i := range c.rules {
		r := &c.rules[i]
		if r.matches(id, text) {
			return Diagnostic{
				LayerID:         id,
				Category:        r.Category,
				Severity:        r.Severity,
				Message:         r.Message,
				Suggestion:      r.Suggestion,
				RecoveryOptions: slices.Clone(r.RecoveryOptions),
				Detail:          text,
			}
		}
	}
	return fallback(id, text)
}

func fallback(id layer.ID, detail string) Diagnostic {
	return Diagnostic{
		LayerID:         id,
		Category:        CategoryUnknown,
		Severity:        SeverityMedium,
		Message:         fmt.Sprintf("Layer %d failed.", id),
		Suggestion:      "Re-run with --verbose for details.",
		RecoveryOptions: []string{"Skip the layer", "Report the input that triggered the failure"},
		Detail:          detail,
	}
}

func sentinel(id layer.ID, err error) (Diagnostic, bool) {
	d := Diagnostic{LayerID: id, Detail: err.Error()}
	switch {
	case errors.Is(err, strategy.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		d.Category = CategoryTimeout
		d.Severity = SeverityHigh
		d.Message = fmt.Sprintf("Layer %d did not finish in time.", id)
		d.Suggestion = "Increase --timeout or split the file."
		d.RecoveryOptions = []string{"Increase the timeout", "Skip the layer"}
	case errors.Is(err, strategy.ErrNoFallbackAvailable):
		d.Category = CategoryNoFallback
		d.Severity = SeverityMedium
		d.Message = fmt.Sprintf("Layer %d could not parse the input and has no textual fallback.", id)
		d.Suggestion = "Fix the syntax error in the source file first."
		d.RecoveryOptions = []string{"Fix the input syntax", "Skip the layer"}
	case errors.Is(err, strategy.ErrStructuralParse):
		d.Category = CategoryParse
		d.Severity = SeverityMedium
		d.Message = "The input could not be parsed."
		d.Suggestion = "Fix the syntax error in the source file first."
		d.RecoveryOptions = []string{"Fix the input syntax"}
	case errors.Is(err, strategy.ErrTransformPanic):
		d.Category = CategoryPanic
		d.Severity = SeverityCritical
		d.Message = fmt.Sprintf("Layer %d crashed.", id)
		d.Suggestion = "Report the input that triggered the crash."
		d.RecoveryOptions = []string{"Skip the layer"}
	case errors.Is(err, context.Canceled):
		d.Category = CategoryCancelled
		d.Severity = SeverityLow
		d.Message = "The run was cancelled."
	case errors.Is(err, layer.ErrUnknownLayer):
		d.Category = CategoryDependency
		d.Severity = SeverityHigh
		d.Message = "An unknown layer was requested."
		d.Suggestion = "Run 'layerfix layers' to list valid layer numbers."
	default:
		return Diagnostic{}, false
	}
	return d, true
}
