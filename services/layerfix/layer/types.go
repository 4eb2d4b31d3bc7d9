// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package layer

import (
	"context"
	"path/filepath"
	"slices"
	"strings"
)

// ID identifies a layer. Valid ids start at 1 and define execution order.
type ID int

// Capabilities declares which transform strategies a layer supports.
type Capabilities struct {
	// Structural is true when the layer can parse, mutate and re-emit a syntax tree.
	Structural bool `json:"structural" yaml:"structural"`

	// Textual is true when the layer can rewrite source text with patterns.
	Textual bool `json:"textual" yaml:"textual"`
}

// Descriptor is the immutable identity of a layer.
type Descriptor struct {
	// ID is the layer number. Layers execute in ascending ID order.
	ID ID `json:"id"`

	// Name is a short machine-friendly name (e.g. "components").
	Name string `json:"name"`

	// Description is a one-line human summary for pickers and help output.
	Description string `json:"description"`

	// Dependencies are layers that must run before this one. Each must have
	// a lower id.
	Dependencies []ID `json:"dependencies"`

	// Critical layers abort the whole run when they fail.
	Critical bool `json:"critical"`

	// Capabilities declares the supported strategies.
	Capabilities Capabilities `json:"capabilities"`

	// FileTypes lists lowercase extensions (".tsx") the layer applies to.
	// Empty means the layer applies to every file.
	FileTypes []string `json:"file_types,omitempty"`
}

// AppliesTo reports whether the layer should run for the given filename hint.
//
// An empty hint or an empty FileTypes list always applies.
func (d Descriptor) AppliesTo(filename string) bool {
	if filename == "" || len(d.FileTypes) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(filename))
	return slices.Contains(d.FileTypes, ext)
}

// clone returns a deep copy so callers can never mutate registry state.
func (d Descriptor) clone() Descriptor {
	d.Dependencies = slices.Clone(d.Dependencies)
	d.FileTypes = slices.Clone(d.FileTypes)
	return d
}

// Input is what a transform receives.
type Input struct {
	// Text is the current source text (the last accepted snapshot).
	Text string

	// Filename is the caller's filename hint. May be empty.
	Filename string
}

// Output is what a transform produces.
type Output struct {
	// Text is the rewritten source text.
	Text string

	// Changes is the number of discrete edits applied. When the text changed
	// and Changes is zero or negative, the pipeline counts edits from a diff.
	Changes int

	// Improvements are human-readable descriptions of what changed.
	Improvements []string

	// Warnings are non-fatal notes raised by the transform.
	Warnings []string
}

// TransformFunc rewrites source text. Implementations must be pure with
// respect to the input: they never mutate shared state.
type TransformFunc func(ctx context.Context, in Input) (Output, error)

// Layer couples a descriptor with its transform implementations.
//
// The Capabilities flags in the descriptor decide which function the
// strategy selector calls; a flag without a function is rejected at Build.
type Layer struct {
	Descriptor Descriptor
	Structural TransformFunc
	Textual    TransformFunc
}
