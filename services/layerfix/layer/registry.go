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
	"fmt"
	"slices"
)

// Registry is the immutable set of registered layers.
//
// Description:
//
//	Registry is constructed once by RegistryBuilder.Build and passed
//	explicitly to the resolver, the strategy selector and the pipeline.
//	There is no package-level registry.
//
// Thread Safety:
//
//	Registry is safe for concurrent use. It is never modified after Build.
type Registry struct {
	layers map[ID]Layer
	order  []ID // ascending
}

// Get returns the layer with the given id.
func (r *Registry) Get(id ID) (Layer, bool) {
	l, ok := r.layers[id]
	if ok {
		l.Descriptor = l.Descriptor.clone()
	}
	return l, ok
}

// Has reports whether id is registered.
func (r *Registry) Has(id ID) bool {
	_, ok := r.layers[id]
	return ok
}

// IDs returns every registered id in ascending order.
func (r *Registry) IDs() []ID {
	return slices.Clone(r.order)
}

// Len returns the number of registered layers.
func (r *Registry) Len() int {
	return len(r.order)
}

// Descriptors returns copies of all descriptors sorted by id.
func (r *Registry) Descriptors() []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.layers[id].Descriptor.clone())
	}
	return out
}

// RegistryBuilder accumulates layers and validates them as a whole.
//
// Description:
//
//	Errors found while adding (nil functions, duplicate ids) are recorded
//	and the first one is returned from Build, mirroring a fluent builder.
//	Cross-layer checks (dangling references, cycles) run in Build once the
//	full set is known, so layers may be added in any order.
//
// Thread Safety:
//
//	RegistryBuilder is NOT safe for concurrent use.
type RegistryBuilder struct {
	layers map[ID]Layer
	errors []error
}

// NewRegistryBuilder creates an empty builder.
func NewRegistryBuilder() *RegistryBuilder {
	return &RegistryBuilder{
		layers: make(map[ID]Layer),
	}
}

// Add registers a layer.
//
// Inputs:
//
//	l - The layer. Its descriptor is copied; later changes by the caller
//	    have no effect on the registry.
//
// Outputs:
//
//	*RegistryBuilder - The builder for chaining.
func (b *RegistryBuilder) Add(l Layer) *RegistryBuilder {
	id := l.Descriptor.ID
	if err := validateLayer(l); err != nil {
		b.errors = append(b.errors, &DefinitionError{ID: id, Err: err})
		return b
	}
	if _, exists := b.layers[id]; exists {
		b.errors = append(b.errors, &DefinitionError{ID: id, Err: ErrDuplicateLayer})
		return b
	}
	l.Descriptor = l.Descriptor.clone()
	b.layers[id] = l
	return b
}

// Build validates the accumulated layers and returns the registry.
//
// Outputs:
//
//	*Registry - The immutable registry.
//	error - The first recorded Add error, ErrEmptyRegistry, an
//	        *UnknownLayerError for a dangling dependency, a *CycleError, or
//	        an *OrderError when a dependency has a higher id.
func (b *RegistryBuilder) Build() (*Registry, error) {
	if len(b.errors) > 0 {
		return nil, b.errors[0]
	}
	if len(b.layers) == 0 {
		return nil, ErrEmptyRegistry
	}

	order := make([]ID, 0, len(b.layers))
	for id := range b.layers {
		order = append(order, id)
	}
	slices.Sort(order)

	for _, id := range order {
		for _, dep := range b.layers[id].Descriptor.Dependencies {
			if _, ok := b.layers[dep]; !ok {
				return nil, &UnknownLayerError{ID: dep, ReferencedBy: id}
			}
		}
	}

	if err := b.detectCycles(order); err != nil {
		return nil, err
	}

	for _, id := range order {
		for _, dep := range b.layers[id].Descriptor.Dependencies {
			if dep > id {
				return nil, &OrderError{ID: id, Dependency: dep}
			}
		}
	}

	return &Registry{layers: b.layers, order: order}, nil
}

// detectCycles walks dependencies depth-first in ascending id order so the
// reported path is deterministic.
func (b *RegistryBuilder) detectCycles(order []ID) error {
	visited := make(map[ID]bool)
	onStack := make(map[ID]bool)
	path := make([]ID, 0)

	var dfs func(id ID) error
	dfs = func(id ID) error {
		visited[id] = true
		onStack[id] = true
		path = append(path, id)

		deps := slices.Clone(b.layers[id].Descriptor.Dependencies)
		slices.Sort(deps)
		for _, dep := range deps {
			if !visited[dep] {
				if err := dfs(dep); err != nil {
					return err
				}
			} else if onStack[dep] {
				start := slices.Index(path, dep)
				cycle := append(slices.Clone(path[start:]), dep)
				return &CycleError{Path: cycle}
			}
		}

		path = path[:len(path)-1]
		onStack[id] = false
		return nil
	}

	for _, id := range order {
		if !visited[id] {
			if err := dfs(id); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateLayer(l Layer) error {
	d := l.Descriptor
	switch {
	case d.ID < 1:
		return fmt.Errorf("%w: id must be >= 1, got %d", ErrInvalidLayer, d.ID)
	case d.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidLayer)
	case !d.Capabilities.Structural && !d.Capabilities.Textual:
		return fmt.Errorf("%w: layer declares no capability", ErrInvalidLayer)
	case d.Capabilities.Structural && l.Structural == nil:
		return fmt.Errorf("%w: structural capability declared without a structural transform", ErrInvalidLayer)
	case d.Capabilities.Textual && l.Textual == nil:
		return fmt.Errorf("%w: textual capability declared without a textual transform", ErrInvalidLayer)
	case slices.Contains(d.Dependencies, d.ID):
		return &CycleError{Path: []ID{d.ID, d.ID}}
	}
	return nil
}
