// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package strategy

import (
	"errors"
	"fmt"
)

var (
	// ErrStructuralParse is matched by every *StructuralError. It marks a
	// failure the selector may recover from with a textual transform.
	ErrStructuralParse = errors.New("structural transform failed")

	// ErrNoFallbackAvailable is returned when a structural transform fails
	// and the layer has no textual transform to fall back to.
	ErrNoFallbackAvailable = errors.New("no textual fallback available")

	// ErrTransformPanic is returned when a transform function panics.
	ErrTransformPanic = errors.New("transform panicked")

	// ErrTimeout is returned when a transform exceeds its time budget.
	ErrTimeout = errors.New("transform timed out")
)

// Phase names where a structural transform failed.
type Phase string

const (
	PhaseParse  Phase = "parse"
	PhaseMutate Phase = "mutate"
	PhaseEmit   Phase = "emit"
)

// StructuralError reports a recoverable structural transform failure.
//
// Structural transforms return it when the input cannot be parsed, when the
// tree has error nodes, or when an edit cannot be applied to the tree.
type StructuralError struct {
	Phase Phase
	Cause error
}

// NewStructuralError creates a StructuralError.
func NewStructuralError(phase Phase, cause error) *StructuralError {
	return &StructuralError{Phase: phase, Cause: cause}
}

// Error returns the error message.
func (e *StructuralError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("structural %s failed", e.Phase)
	}
	return fmt.Sprintf("structural %s failed: %v", e.Phase, e.Cause)
}

// Unwrap returns the cause.
func (e *StructuralError) Unwrap() error {
	return e.Cause
}

// Is matches ErrStructuralParse.
func (e *StructuralError) Is(target error) bool {
	return target == ErrStructuralParse
}
