// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package strategy picks between a layer's structural and textual transforms.
package strategy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/AleutianAI/layerfix/services/layerfix/layer"
)

// Kind names the transform that produced a result.
type Kind string

const (
	KindStructural Kind = "structural"
	KindTextual    Kind = "textual"
)

// Result is a successful transform.
type Result struct {
	Output layer.Output

	// Strategy is the transform that produced Output.
	Strategy Kind

	// FallbackReason is set when a structural attempt failed and the
	// textual transform ran instead.
	FallbackReason string
}

// Selector runs a layer's transform according to its capabilities.
//
// Description:
//
//	Textual-only layers run their textual transform directly. Structural
//	layers try the structural transform first; a *StructuralError falls
//	back to the textual transform when one is declared and fails the layer
//	with ErrNoFallbackAvailable otherwise. Any other error from the
//	structural transform is returned unchanged, as it is not a parse or
//	mutation problem the textual rules could work around.
//
// Thread Safety: Safe for concurrent use.
type Selector struct {
	logger *slog.Logger
}

// NewSelector creates a selector. A nil logger uses slog.Default().
func NewSelector(logger *slog.Logger) *Selector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Selector{logger: logger}
}

// Transform applies l to in.
//
// Outputs:
//
//	Result - The transform output and the strategy that produced it.
//	error - ErrNoFallbackAvailable (wrapping the structural cause), a
//	        transform error, ErrTransformPanic, or a context error.
func (s *Selector) Transform(ctx context.Context, l layer.Layer, in layer.Input) (Result, error) {
	caps := l.Descriptor.Capabilities

	if !caps.Structural {
		out, err := invoke(ctx, l.Textual, in)
		if err != nil {
			return Result{}, err
		}
		return Result{Output: out, Strategy: KindTextual}, nil
	}

	out, err := invoke(ctx, l.Structural, in)
	if err == nil {
		return Result{Output: out, Strategy: KindStructural}, nil
	}
	if !errors.Is(err, ErrStructuralParse) {
		return Result{}, err
	}

	if !caps.Textual || l.Textual == nil {
		return Result{}, fmt.Errorf("%w: layer %d: %w", ErrNoFallbackAvailable, l.Descriptor.ID, err)
	}

	s.logger.Warn("structural transform failed, falling back to textual",
		slog.Int("layer", int(l.Descriptor.ID)),
		slog.String("name", l.Descriptor.Name),
		slog.String("reason", err.Error()),
	)

	out, textErr := invoke(ctx, l.Textual, in)
	if textErr != nil {
		return Result{}, textErr
	}
	return Result{Output: out, Strategy: KindTextual, FallbackReason: err.Error()}, nil
}

// invoke calls fn and converts a panic into ErrTransformPanic.
func invoke(ctx context.Context, fn layer.TransformFunc, in layer.Input) (out layer.Output, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTransformPanic, r)
		}
	}()
	return fn(ctx, in)
}
