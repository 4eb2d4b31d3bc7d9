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
	"errors"
	"slices"
	"strings"
	"testing"
)

func sixLayerRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := NewRegistryBuilder().
		Add(textualLayer(1)).
		Add(textualLayer(2, 1)).
		Add(textualLayer(3, 1, 2)).
		Add(textualLayer(4, 1, 2, 3)).
		Add(textualLayer(5, 1, 2, 3, 4)).
		Add(textualLayer(6, 1, 2, 3, 4, 5)).
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return reg
}

func TestResolver_Resolve(t *testing.T) {
	r := NewResolver(sixLayerRegistry(t))

	tests := []struct {
		name      string
		requested []ID
		want      []ID
		autoAdded []ID
	}{
		{"empty selects all", nil, []ID{1, 2, 3, 4, 5, 6}, nil},
		{"no deps", []ID{1}, []ID{1}, nil},
		{"component fixes pull in prerequisites", []ID{3}, []ID{1, 2, 3}, []ID{1, 2}},
		{"unordered with duplicates", []ID{2, 1, 2}, []ID{1, 2}, nil},
		{"partial deps present", []ID{1, 4}, []ID{1, 2, 3, 4}, []ID{2, 3}},
		{"highest layer", []ID{6}, []ID{1, 2, 3, 4, 5, 6}, []ID{1, 2, 3, 4, 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := r.Resolve(tt.requested)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if !slices.Equal(res.Layers, tt.want) {
				t.Errorf("Layers = %v, want %v", res.Layers, tt.want)
			}
			if !slices.Equal(res.AutoAdded, tt.autoAdded) {
				t.Errorf("AutoAdded = %v, want %v", res.AutoAdded, tt.autoAdded)
			}
			if len(res.Warnings) != len(tt.autoAdded) {
				t.Errorf("len(Warnings) = %d, want %d", len(res.Warnings), len(tt.autoAdded))
			}
		})
	}
}

func TestResolver_WarningsNameLayerAndDependency(t *testing.T) {
	r := NewResolver(sixLayerRegistry(t))

	res, err := r.Resolve([]ID{2})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(res.Warnings) != 1 {
		t.Fatalf("Warnings = %v, want 1 entry", res.Warnings)
	}
	w := res.Warnings[0]
	if !strings.Contains(w, "layer 2") || !strings.Contains(w, "layer 1") {
		t.Errorf("warning %q should name layer 2 and dependency 1", w)
	}
}

func TestResolver_UnknownLayer(t *testing.T) {
	r := NewResolver(sixLayerRegistry(t))

	res, err := r.Resolve([]ID{1, 9})
	if !errors.Is(err, ErrUnknownLayer) {
		t.Fatalf("error = %v, want %v", err, ErrUnknownLayer)
	}
	if res.Layers != nil || res.AutoAdded != nil {
		t.Errorf("expected no partial result, got %+v", res)
	}

	var unknown *UnknownLayerError
	if !errors.As(err, &unknown) || unknown.ID != 9 {
		t.Errorf("error = %v, want UnknownLayerError{ID: 9}", err)
	}
}

// Every layer's resolution is a sorted superset of its dependencies.
func TestResolver_DependencyClosure(t *testing.T) {
	reg := sixLayerRegistry(t)
	r := NewResolver(reg)

	for _, d := range reg.Descriptors() {
		res, err := r.Resolve([]ID{d.ID})
		if err != nil {
			t.Fatalf("Resolve(%d) error = %v", d.ID, err)
		}
		if !slices.IsSorted(res.Layers) {
			t.Errorf("Resolve(%d) = %v, not sorted", d.ID, res.Layers)
		}
		for _, dep := range append(slices.Clone(d.Dependencies), d.ID) {
			if !slices.Contains(res.Layers, dep) {
				t.Errorf("Resolve(%d) = %v, missing %d", d.ID, res.Layers, dep)
			}
		}
	}
}

func TestResolver_TransitiveOnly(t *testing.T) {
	// 3 depends on 2 which depends on 1; 3 does not list 1 directly.
	reg, err := NewRegistryBuilder().
		Add(textualLayer(1)).
		Add(textualLayer(2, 1)).
		Add(textualLayer(3, 2)).
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	res, err := NewResolver(reg).Resolve([]ID{3})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !slices.Equal(res.Layers, []ID{1, 2, 3}) {
		t.Errorf("Layers = %v, want [1 2 3]", res.Layers)
	}
	if !slices.Equal(res.AutoAdded, []ID{1, 2}) {
		t.Errorf("AutoAdded = %v, want [1 2]", res.AutoAdded)
	}
}
