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
	"fmt"

	"github.com/AleutianAI/layerfix/services/layerfix/layer"
	"gopkg.in/yaml.v3"
)

// Severity ranks how serious a diagnostic is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// UnmarshalYAML rejects unknown severities.
func (s *Severity) UnmarshalYAML(value *yaml.Node) error {
	var str string
	if err := value.Decode(&str); err != nil {
		return err
	}
	switch Severity(str) {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		*s = Severity(str)
		return nil
	default:
		return fmt.Errorf("invalid value for severity: %q", str)
	}
}

// Category groups diagnostics by failure kind.
type Category string

const (
	CategoryUnknown    Category = "unknown"
	CategorySyntax     Category = "syntax"
	CategoryParse      Category = "parse"
	CategoryTimeout    Category = "timeout"
	CategoryNoFallback Category = "no_fallback"
	CategoryPanic      Category = "panic"
	CategoryCancelled  Category = "cancelled"
	CategoryDependency Category = "dependency"
)

// Diagnostic is the structured explanation of a layer failure or revert.
type Diagnostic struct {
	LayerID         layer.ID `json:"layer_id"`
	Category        Category `json:"category"`
	Severity        Severity `json:"severity"`
	Message         string   `json:"message"`
	Suggestion      string   `json:"suggestion,omitempty"`
	RecoveryOptions []string `json:"recovery_options,omitempty"`

	// Detail is the raw error or revert text.
	Detail string `json:"detail,omitempty"`
}
