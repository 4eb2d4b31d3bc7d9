// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/layerfix/services/layerfix/layer"
	"github.com/AleutianAI/layerfix/services/layerfix/pipeline"
)

// FileInput is one file of a batch. The engine never reads the path.
type FileInput struct {
	Path string
	Text string
}

// FileResult pairs a batch input with its run.
type FileResult struct {
	Path   string
	Result *pipeline.Result
	Err    error
}

// RunBatch runs the same layers over many files with at most workers runs
// in flight. Results are returned in input order. A failing file does not
// stop the others; once ctx is cancelled the remaining files report the
// context's error.
//
// workers <= 0 uses GOMAXPROCS.
func (e *Engine) RunBatch(ctx context.Context, files []FileInput, layers []layer.ID, opts pipeline.Options, workers int) []FileResult {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	start := time.Now()
	results := make([]FileResult, len(files))

	g := new(errgroup.Group)
	g.SetLimit(workers)
	for i, f := range files {
		g.Go(func() error {
			results[i].Path = f.Path
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			results[i].Result, results[i].Err = e.RunLayers(ctx, f.Text, layers, f.Path, opts)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	e.logger.Info("batch complete",
		slog.Int("files", len(files)),
		slog.Int("failed", failed),
		slog.Int("workers", workers),
		slog.Any("layers", e.layerNames(layers)),
		slog.Duration("elapsed", time.Since(start)),
	)
	return results
}
