// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package safety

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"slices"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed default_catalogue.yaml
var defaultCatalogueYAML []byte

// Trigger decides when a warning pattern fires.
type Trigger string

const (
	// TriggerPartial fires when the match count dropped but is not zero.
	TriggerPartial Trigger = "partial"

	// TriggerIntroduced fires when the match count grew.
	TriggerIntroduced Trigger = "introduced"
)

// UnmarshalYAML rejects unknown triggers.
func (t *Trigger) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	switch Trigger(s) {
	case TriggerPartial, TriggerIntroduced:
		*t = Trigger(s)
		return nil
	default:
		return fmt.Errorf("invalid value for when: %q", s)
	}
}

// Pattern is a named regular expression.
type Pattern struct {
	Name        string  `yaml:"name" validate:"required"`
	Description string  `yaml:"description"`
	Regex       string  `yaml:"regex" validate:"required"`
	When        Trigger `yaml:"when,omitempty"`

	compiled *regexp.Regexp
}

// count returns the number of non-overlapping matches in text.
func (p *Pattern) count(text string) int {
	return len(p.compiled.FindAllStringIndex(text, -1))
}

// Catalogue is the data the validator checks against.
//
// A Catalogue is immutable after ParseCatalogue returns and is safe to share
// between validators.
type Catalogue struct {
	Corruption          []Pattern `yaml:"corruption" validate:"dive"`
	CriticalIdentifiers []string  `yaml:"critical_identifiers" validate:"dive,required"`
	Warnings            []Pattern `yaml:"warnings" validate:"dive"`
	ShrinkWarningRatio  float64   `yaml:"shrink_warning_ratio" validate:"gte=0,lte=1"`

	criticalUse map[string]*regexp.Regexp
}

// importStatement matches an import with bindings; group 1 is the clause.
var importStatement = regexp.MustCompile(`(?m)^\s*import\s+(?:type\s+)?([^'"]*?)\s*from\s*['"][^'"]*['"]`)

var catalogueValidate = validator.New()

var (
	defaultOnce      sync.Once
	defaultCatalogue *Catalogue
	defaultErr       error
)

// DefaultCatalogue returns the built-in catalogue.
//
// The embedded YAML is parsed once; later calls return the same value.
func DefaultCatalogue() (*Catalogue, error) {
	defaultOnce.Do(func() {
		defaultCatalogue, defaultErr = ParseCatalogue(defaultCatalogueYAML)
		if defaultErr != nil {
			defaultErr = fmt.Errorf("failed to parse the embedded catalogue: %w", defaultErr)
		}
	})
	return defaultCatalogue, defaultErr
}

// LoadCatalogue reads a catalogue from a YAML file.
func LoadCatalogue(path string) (*Catalogue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalogue: %w", err)
	}
	c, err := ParseCatalogue(data)
	if err != nil {
		return nil, fmt.Errorf("catalogue %s: %w", path, err)
	}
	return c, nil
}

// ParseCatalogue decodes, validates and compiles a YAML catalogue.
//
// Outputs:
//
//	*Catalogue - The compiled catalogue.
//	error - Non-nil for malformed YAML, missing fields, a warning pattern
//	        without a trigger, or an invalid regular expression.
func ParseCatalogue(data []byte) (*Catalogue, error) {
	var c Catalogue
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	if err := catalogueValidate.Struct(&c); err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}
	if err := c.compile(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalogue) compile() error {
	for i := range c.Corruption {
		p := &c.Corruption[i]
		re, err := regexp.Compile(p.Regex)
		if err != nil {
			return fmt.Errorf("failed to compile corruption pattern %s: %w", p.Name, err)
		}
		p.compiled = re
	}

	for i := range c.Warnings {
		p := &c.Warnings[i]
		if p.When == "" {
			return fmt.Errorf("warning pattern %s: when is required", p.Name)
		}
		re, err := regexp.Compile(p.Regex)
		if err != nil {
			return fmt.Errorf("failed to compile warning pattern %s: %w", p.Name, err)
		}
		p.compiled = re
	}

	c.CriticalIdentifiers = slices.Compact(slices.Sorted(slices.Values(c.CriticalIdentifiers)))
	c.criticalUse = make(map[string]*regexp.Regexp, len(c.CriticalIdentifiers))
	for _, id := range c.CriticalIdentifiers {
		c.criticalUse[id] = regexp.MustCompile(`\b` + regexp.QuoteMeta(id) + `\b`)
	}
	return nil
}

// identifierState reports whether id is imported in text and how many
// times it is referenced outside import statements.
func (c *Catalogue) identifierState(id, text string) (imported bool, uses int) {
	useRe := c.criticalUse[id]

	inImports := 0
	for _, m := range importStatement.FindAllStringSubmatchIndex(text, -1) {
		n := len(useRe.FindAllStringIndex(text[m[2]:m[3]], -1))
		if n > 0 {
			imported = true
			inImports += n
		}
	}

	total := len(useRe.FindAllStringIndex(text, -1))
	return imported, total - inImports
}
