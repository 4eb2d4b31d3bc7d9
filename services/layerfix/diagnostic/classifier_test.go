// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package diagnostic

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/AleutianAI/layerfix/services/layerfix/layer"
	"github.com/AleutianAI/layerfix/services/layerfix/strategy"
)

func TestDefaultRules(t *testing.T) {
	rules, err := DefaultRules()
	if err != nil {
		t.Fatalf("DefaultRules() error = %v", err)
	}
	if len(rules) == 0 {
		t.Fatal("DefaultRules() returned no rules")
	}
}

func TestClassify_Sentinels(t *testing.T) {
	c := NewClassifier(nil)

	tests := []struct {
		name string
		err  error
		want Category
	}{
		{"timeout", fmt.Errorf("layer 3: %w", strategy.ErrTimeout), CategoryTimeout},
		{"deadline", context.DeadlineExceeded, CategoryTimeout},
		{"no fallback", fmt.Errorf("%w: layer 3: %w", strategy.ErrNoFallbackAvailable,
			strategy.NewStructuralError(strategy.PhaseParse, errors.New("unclosed <div>"))), CategoryNoFallback},
		{"structural", strategy.NewStructuralError(strategy.PhaseMutate, errors.New("bad edit")), CategoryParse},
		{"panic", fmt.Errorf("%w: nil map", strategy.ErrTransformPanic), CategoryPanic},
		{"cancelled", context.Canceled, CategoryCancelled},
		{"unknown layer", &layer.UnknownLayerError{ID: 9}, CategoryDependency},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := c.Classify(3, tt.err)
			if d.Category != tt.want {
				t.Errorf("Category = %q, want %q", d.Category, tt.want)
			}
			if d.LayerID != 3 {
				t.Errorf("LayerID = %d, want 3", d.LayerID)
			}
			if d.Detail != tt.err.Error() {
				t.Errorf("Detail = %q, want %q", d.Detail, tt.err.Error())
			}
		})
	}
}

func TestClassify_Table(t *testing.T) {
	c := NewClassifier(nil)

	tests := []struct {
		name     string
		id       layer.ID
		err      error
		category Category
		severity Severity
	}{
		{"layer specific", 1, errors.New("tsconfig.json: invalid character"), "config", SeverityHigh},
		{"layer rule ignored for other layers", 2, errors.New("tsconfig.json: invalid character"), CategoryUnknown, SeverityMedium},
		{"generic syntax", 5, errors.New("Syntax error: line 1, column 3: missing \")\""), CategorySyntax, SeverityMedium},
		{"regex rule", 4, errors.New("cannot guard localStorage access"), "hydration", SeverityMedium},
		{"revert reason beats layer rule", 4, errors.New("Syntax error: line 2, column 1: unexpected window"), CategorySyntax, SeverityMedium},
		{"corruption mentioning tsconfig", 1, errors.New("Corruption detected: tsconfig_duplicate"), "corruption", SeverityHigh},
		{"unmatched", 6, errors.New("something odd"), CategoryUnknown, SeverityMedium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := c.Classify(tt.id, tt.err)
			if d.Category != tt.category {
				t.Errorf("Category = %q, want %q", d.Category, tt.category)
			}
			if d.Severity != tt.severity {
				t.Errorf("Severity = %q, want %q", d.Severity, tt.severity)
			}
			if d.Message == "" {
				t.Error("Message is empty")
			}
		})
	}
}

func TestClassify_LayerRulesBeforeGeneric(t *testing.T) {
	rules, err := ParseRules([]byte(`
rules:
  - layer: 0
    contains: "boom"
    category: generic
    severity: low
    message: generic
  - layer: 2
    contains: "boom"
    category: specific
    severity: high
    message: specific
`))
	if err != nil {
		t.Fatalf("ParseRules() error = %v", err)
	}
	c := NewClassifier(rules)

	if d := c.Classify(2, errors.New("boom")); d.Category != "specific" {
		t.Errorf("Category = %q, want specific", d.Category)
	}
	if d := c.Classify(3, errors.New("boom")); d.Category != "generic" {
		t.Errorf("Category = %q, want generic", d.Category)
	}
}

func TestClassify_NilError(t *testing.T) {
	d := NewClassifier(nil).Classify(1, nil)
	if d.Category != CategoryUnknown {
		t.Errorf("Category = %q, want unknown", d.Category)
	}
}

func TestClassify_FirstRulesBeforeLayerRules(t *testing.T) {
	rules, err := ParseRules([]byte(`
rules:
  - layer: 4
    contains: "window"
    category: specific
    severity: low
    message: specific
  - layer: 0
    first: true
    pattern: '^Syntax error'
    category: revert
    severity: medium
    message: revert
`))
	if err != nil {
		t.Fatalf("ParseRules() error = %v", err)
	}
	c := NewClassifier(rules)

	if d := c.ClassifyText(4, "Syntax error: window"); d.Category != "revert" {
		t.Errorf("Category = %q, want revert", d.Category)
	}
	if d := c.ClassifyText(4, "window is not defined"); d.Category != "specific" {
		t.Errorf("Category = %q, want specific", d.Category)
	}
}

func TestClassifyText_Revert(t *testing.T) {
	d := NewClassifier(nil).ClassifyText(3, "Corruption detected: duplicate_key_prop")
	if d.Category != "corruption" {
		t.Errorf("Category = %q, want corruption", d.Category)
	}
	if d.Detail != "Corruption detected: duplicate_key_prop" {
		t.Errorf("Detail = %q", d.Detail)
	}
}

func TestClassify_RecoveryOptionsAreCopies(t *testing.T) {
	c := NewClassifier(nil)
	d := c.ClassifyText(0, "Logical issue: useState was removed")
	if len(d.RecoveryOptions) == 0 {
		t.Fatal("expected recovery options")
	}
	d.RecoveryOptions[0] = "mutated"

	again := c.ClassifyText(0, "Logical issue: useState was removed")
	if again.RecoveryOptions[0] == "mutated" {
		t.Error("rule table was mutated through a returned diagnostic")
	}
}

func TestParseRules_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad severity", "rules:\n  - contains: x\n    category: c\n    severity: extreme\n    message: m\n"},
		{"no matcher", "rules:\n  - category: c\n    severity: low\n    message: m\n"},
		{"both matchers", "rules:\n  - contains: x\n    pattern: y\n    category: c\n    severity: low\n    message: m\n"},
		{"bad pattern", "rules:\n  - pattern: '('\n    category: c\n    severity: low\n    message: m\n"},
		{"missing message", "rules:\n  - contains: x\n    category: c\n    severity: low\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseRules([]byte(tt.yaml)); err == nil {
				t.Error("ParseRules() should fail")
			}
		})
	}
}
