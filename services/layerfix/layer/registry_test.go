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
	"errors"
	"slices"
	"testing"
)

func noopTransform(_ context.Context, in Input) (Output, error) {
	return Output{Text: in.Text}, nil
}

func textualLayer(id ID, deps ...ID) Layer {
	return Layer{
		Descriptor: Descriptor{
			ID:           id,
			Name:         "test",
			Dependencies: deps,
			Capabilities: Capabilities{Textual: true},
		},
		Textual: noopTransform,
	}
}

// --- Builder Tests ---

func TestRegistryBuilder_Build(t *testing.T) {
	reg, err := NewRegistryBuilder().
		Add(textualLayer(2, 1)).
		Add(textualLayer(1)).
		Add(textualLayer(3, 1, 2)).
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if reg.Len() != 3 {
		t.Errorf("Len() = %d, want 3", reg.Len())
	}
	if got := reg.IDs(); !slices.Equal(got, []ID{1, 2, 3}) {
		t.Errorf("IDs() = %v, want [1 2 3]", got)
	}

	descs := reg.Descriptors()
	for i, d := range descs {
		if d.ID != ID(i+1) {
			t.Errorf("Descriptors()[%d].ID = %d, want %d", i, d.ID, i+1)
		}
	}
}

func TestRegistryBuilder_Empty(t *testing.T) {
	_, err := NewRegistryBuilder().Build()
	if !errors.Is(err, ErrEmptyRegistry) {
		t.Errorf("error = %v, want %v", err, ErrEmptyRegistry)
	}
}

func TestRegistryBuilder_Duplicate(t *testing.T) {
	_, err := NewRegistryBuilder().
		Add(textualLayer(1)).
		Add(textualLayer(1)).
		Build()
	if !errors.Is(err, ErrDuplicateLayer) {
		t.Errorf("error = %v, want %v", err, ErrDuplicateLayer)
	}

	var defErr *DefinitionError
	if !errors.As(err, &defErr) || defErr.ID != 1 {
		t.Errorf("error = %#v, want *DefinitionError for layer 1", err)
	}
}

func TestRegistryBuilder_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		layer Layer
	}{
		{
			name:  "zero id",
			layer: textualLayer(0),
		},
		{
			name: "missing name",
			layer: Layer{
				Descriptor: Descriptor{ID: 1, Capabilities: Capabilities{Textual: true}},
				Textual:    noopTransform,
			},
		},
		{
			name: "no capability",
			layer: Layer{
				Descriptor: Descriptor{ID: 1, Name: "x"},
				Textual:    noopTransform,
			},
		},
		{
			name: "structural flag without function",
			layer: Layer{
				Descriptor: Descriptor{ID: 1, Name: "x", Capabilities: Capabilities{Structural: true}},
			},
		},
		{
			name: "textual flag without function",
			layer: Layer{
				Descriptor: Descriptor{ID: 1, Name: "x", Capabilities: Capabilities{Structural: true, Textual: true}},
				Structural: noopTransform,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistryBuilder().Add(tt.layer).Build()
			if !errors.Is(err, ErrInvalidLayer) {
				t.Errorf("error = %v, want %v", err, ErrInvalidLayer)
			}
		})
	}
}

func TestRegistryBuilder_DanglingDependency(t *testing.T) {
	_, err := NewRegistryBuilder().
		Add(textualLayer(1)).
		Add(textualLayer(2, 7)).
		Build()
	if !errors.Is(err, ErrUnknownLayer) {
		t.Fatalf("error = %v, want %v", err, ErrUnknownLayer)
	}

	var unknown *UnknownLayerError
	if !errors.As(err, &unknown) {
		t.Fatalf("error type = %T, want *UnknownLayerError", err)
	}
	if unknown.ID != 7 || unknown.ReferencedBy != 2 {
		t.Errorf("UnknownLayerError = %+v, want {ID:7 ReferencedBy:2}", *unknown)
	}
}

func TestRegistryBuilder_Cycle(t *testing.T) {
	_, err := NewRegistryBuilder().
		Add(textualLayer(1)).
		Add(textualLayer(2, 1, 3)).
		Add(textualLayer(3, 2)).
		Build()
	if !errors.Is(err, ErrCyclicDependency) {
		t.Fatalf("error = %v, want %v", err, ErrCyclicDependency)
	}

	var cycle *CycleError
	if !errors.As(err, &cycle) {
		t.Fatalf("error type = %T, want *CycleError", err)
	}
	if !slices.Equal(cycle.Path, []ID{2, 3, 2}) {
		t.Errorf("Path = %v, want [2 3 2]", cycle.Path)
	}
	if cycle.Error() != "cyclic layer dependency: 2 -> 3 -> 2" {
		t.Errorf("Error() = %q", cycle.Error())
	}
}

func TestRegistryBuilder_SelfDependency(t *testing.T) {
	_, err := NewRegistryBuilder().Add(textualLayer(1, 1)).Build()
	if !errors.Is(err, ErrCyclicDependency) {
		t.Errorf("error = %v, want %v", err, ErrCyclicDependency)
	}
}

func TestRegistryBuilder_DependencyRunsLater(t *testing.T) {
	_, err := NewRegistryBuilder().
		Add(textualLayer(1, 2)).
		Add(textualLayer(2)).
		Build()
	if !errors.Is(err, ErrInvalidLayer) {
		t.Fatalf("error = %v, want %v", err, ErrInvalidLayer)
	}

	var order *OrderError
	if !errors.As(err, &order) {
		t.Fatalf("error type = %T, want *OrderError", err)
	}
	if order.ID != 1 || order.Dependency != 2 {
		t.Errorf("OrderError = %+v, want layer 1 depending on 2", order)
	}
}

func TestRegistry_DescriptorsAreCopies(t *testing.T) {
	deps := []ID{1}
	l := textualLayer(2, deps...)
	reg, err := NewRegistryBuilder().Add(textualLayer(1)).Add(l).Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	// Mutating the caller's slice and the returned copy must not leak in.
	l.Descriptor.Dependencies[0] = 99
	descs := reg.Descriptors()
	descs[1].Dependencies[0] = 42

	got, ok := reg.Get(2)
	if !ok {
		t.Fatal("Get(2) not found")
	}
	if got.Descriptor.Dependencies[0] != 1 {
		t.Errorf("Dependencies = %v, want [1]", got.Descriptor.Dependencies)
	}
}

func TestDescriptor_AppliesTo(t *testing.T) {
	d := Descriptor{FileTypes: []string{".tsx", ".jsx"}}

	tests := []struct {
		filename string
		want     bool
	}{
		{"", true},
		{"App.tsx", true},
		{"App.TSX", true},
		{"legacy/Button.jsx", true},
		{"next.config.js", false},
		{"README", false},
	}

	for _, tt := range tests {
		if got := d.AppliesTo(tt.filename); got != tt.want {
			t.Errorf("AppliesTo(%q) = %v, want %v", tt.filename, got, tt.want)
		}
	}

	if !(Descriptor{}).AppliesTo("anything.go") {
		t.Error("empty FileTypes should apply to every file")
	}
}
