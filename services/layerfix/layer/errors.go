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
	"fmt"
	"strings"
)

// Sentinel errors for the layer package.
var (
	// ErrUnknownLayer is returned when a layer id is not registered.
	ErrUnknownLayer = errors.New("unknown layer")

	// ErrDuplicateLayer is returned when two layers share an id.
	ErrDuplicateLayer = errors.New("layer with this id already registered")

	// ErrInvalidLayer is returned for malformed layer definitions.
	ErrInvalidLayer = errors.New("invalid layer definition")

	// ErrCyclicDependency is returned when layer dependencies form a cycle.
	ErrCyclicDependency = errors.New("cyclic layer dependency")

	// ErrEmptyRegistry is returned when building a registry with no layers.
	ErrEmptyRegistry = errors.New("registry has no layers")
)

// UnknownLayerError names the unregistered id and, when known, the layer
// that referenced it.
type UnknownLayerError struct {
	ID           ID
	ReferencedBy ID
}

// Error returns the error message.
func (e *UnknownLayerError) Error() string {
	if e.ReferencedBy != 0 {
		return fmt.Sprintf("unknown layer %d (dependency of layer %d)", e.ID, e.ReferencedBy)
	}
	return fmt.Sprintf("unknown layer %d", e.ID)
}

// Unwrap returns ErrUnknownLayer.
func (e *UnknownLayerError) Unwrap() error {
	return ErrUnknownLayer
}

// CycleError reports the dependency path that closes a cycle.
type CycleError struct {
	Path []ID
}

// Error returns the cycle description, e.g. "cyclic layer dependency: 2 -> 3 -> 2".
func (e *CycleError) Error() string {
	parts := make([]string, len(e.Path))
	for i, id := range e.Path {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return fmt.Sprintf("%v: %s", ErrCyclicDependency, strings.Join(parts, " -> "))
}

// Unwrap returns ErrCyclicDependency.
func (e *CycleError) Unwrap() error {
	return ErrCyclicDependency
}

// OrderError reports a dependency on a layer that runs later. Layers run in
// ascending id order, so every dependency must have a lower id.
type OrderError struct {
	ID         ID
	Dependency ID
}

// Error returns the error message.
func (e *OrderError) Error() string {
	return fmt.Sprintf("%v: layer %d depends on layer %d, which runs after it", ErrInvalidLayer, e.ID, e.Dependency)
}

// Unwrap returns ErrInvalidLayer.
func (e *OrderError) Unwrap() error {
	return ErrInvalidLayer
}

// DefinitionError wraps a registration error with the offending layer.
type DefinitionError struct {
	ID  ID
	Err error
}

// Error returns the error message.
func (e *DefinitionError) Error() string {
	return fmt.Sprintf("layer %d: %v", e.ID, e.Err)
}

// Unwrap returns the underlying error.
func (e *DefinitionError) Unwrap() error {
	return e.Err
}
