// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pipeline applies resolved layers to one source text.
//
// # Description
//
// The pipeline drives each layer through Pending, Attempted and one of the
// terminal states Accepted, Reverted or Failed. A layer's input is always
// the last accepted text: a failed or reverted layer leaves it unchanged, so
// the final text is never syntactically worse than the input.
//
// # Failure Model
//
// Layer errors are converted into outcomes and the run continues
// (fail-soft). Only three things reach the caller as errors:
//
//   - an unknown layer id, before any layer runs;
//   - the failure of a critical layer, which aborts the run;
//   - cancellation of the context, observed between layers.
//
// The latter two return the partial Result alongside the error.
//
// # Concurrency
//
// One run is sequential. A transform runs on a helper goroutine only so the
// per-layer timeout can be enforced; a timed-out result is discarded. A
// Pipeline is safe for concurrent Run calls on independent inputs.
//
// # Usage
//
//	p, err := pipeline.New(registry)
//	if err != nil {
//	    return err
//	}
//	res, err := p.Run(ctx, pipeline.Request{Text: src, Layers: []layer.ID{3}, Filename: "App.tsx"})
package pipeline
