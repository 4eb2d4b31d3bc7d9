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
	"errors"
	"log/slog"
	"slices"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/layerfix/services/layerfix/cache"
	"github.com/AleutianAI/layerfix/services/layerfix/diagnostic"
	"github.com/AleutianAI/layerfix/services/layerfix/layer"
	"github.com/AleutianAI/layerfix/services/layerfix/pipeline"
)

// ErrNilRegistry is returned by New when no registry is given.
var ErrNilRegistry = errors.New("engine: registry must not be nil")

// Engine is the entry point for callers: it resolves, runs and caches.
//
// Thread Safety: Safe for concurrent use. Each run owns its buffers; the
// result cache is the only shared state.
type Engine struct {
	registry     *layer.Registry
	resolver     *layer.Resolver
	pipeline     *pipeline.Pipeline
	cache        *cache.ResultCache
	logger       *slog.Logger
	pipelineOpts []pipeline.Option
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithCache sets the result cache consulted when a run enables caching.
// Without one, caching requests are ignored.
func WithCache(c *cache.ResultCache) Option {
	return func(e *Engine) {
		e.cache = c
	}
}

// WithPipelineOptions passes options through to the pipeline.
func WithPipelineOptions(opts ...pipeline.Option) Option {
	return func(e *Engine) {
		e.pipelineOpts = append(e.pipelineOpts, opts...)
	}
}

// New creates an Engine over reg.
func New(reg *layer.Registry, opts ...Option) (*Engine, error) {
	if reg == nil {
		return nil, ErrNilRegistry
	}
	e := &Engine{
		registry: reg,
		resolver: layer.NewResolver(reg),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}

	p, err := pipeline.New(reg, append([]pipeline.Option{pipeline.WithLogger(e.logger)}, e.pipelineOpts...)...)
	if err != nil {
		return nil, err
	}
	e.pipeline = p
	return e, nil
}

// Cache returns the result cache, or nil.
func (e *Engine) Cache() *cache.ResultCache {
	return e.cache
}

// RunLayers applies layers to text.
//
// Description:
//
//	When opts.CacheEnabled is set and a cache is configured, the result is
//	looked up by content hash, resolved layer set and filename hint before
//	running. Concurrent identical requests share one run. Aborted and
//	critical results are never cached.
//
// Inputs:
//
//	ctx - Checked between layers.
//	text - Source text.
//	layers - Requested layer ids; empty selects all.
//	filename - Hint for grammar selection and layer applicability. May be "".
//	opts - Run options.
//
// Outputs:
//
//	*pipeline.Result - The result; nil only for an unknown layer.
//	error - UnknownLayerError, ErrCriticalLayerFailure or the context's error.
func (e *Engine) RunLayers(ctx context.Context, text string, layers []layer.ID, filename string, opts pipeline.Options) (*pipeline.Result, error) {
	req := pipeline.Request{
		Text:     text,
		Layers:   layers,
		Filename: filename,
		Options:  opts,
	}
	if !opts.CacheEnabled || e.cache == nil {
		return e.pipeline.Run(ctx, req)
	}

	res, err := e.resolver.Resolve(layers)
	if err != nil {
		return nil, err
	}
	key := cache.NewKey(text, res.Layers).WithScope(filename)

	result, hit, err := e.cache.GetOrRun(ctx, key, func(ctx context.Context) (*pipeline.Result, error) {
		return e.pipeline.Run(ctx, req)
	})
	if hit {
		trace.SpanFromContext(ctx).SetAttributes(attribute.Bool("cache_hit", true))
		e.logger.Debug("result served from cache",
			slog.String("key", key.String()),
			slog.String("run_id", result.RunID),
		)
	}
	if result != nil {
		result.DryRun = opts.DryRun
	}
	return result, err
}

// DescribeLayers returns every registered descriptor sorted by id.
func (e *Engine) DescribeLayers() []layer.Descriptor {
	return e.registry.Descriptors()
}

// Resolve exposes dependency resolution without running anything.
func (e *Engine) Resolve(layers []layer.ID) (layer.Resolution, error) {
	return e.resolver.Resolve(layers)
}

// Diagnostics returns one diagnostic per non-accepted outcome, in run order.
//
// Outcomes that already carry a diagnostic reuse it; otherwise the reason
// is classified.
func (e *Engine) Diagnostics(result *pipeline.Result) []diagnostic.Diagnostic {
	if result == nil {
		return nil
	}
	var out []diagnostic.Diagnostic
	for _, o := range result.Outcomes {
		if o.Status == pipeline.StatusAccepted {
			continue
		}
		if o.Diagnostic != nil {
			out = append(out, *o.Diagnostic)
			continue
		}
		if err := o.Err(); err != nil {
			out = append(out, e.pipeline.Classifier().Classify(o.LayerID, err))
			continue
		}
		out = append(out, e.pipeline.Classifier().ClassifyText(o.LayerID, o.Reason()))
	}
	return out
}

// Diagnose classifies a free-form error message for a layer.
func (e *Engine) Diagnose(id layer.ID, message string) diagnostic.Diagnostic {
	return e.pipeline.Classifier().ClassifyText(id, message)
}

// layerNames maps ids to names for rendering.
func (e *Engine) layerNames(ids []layer.ID) []string {
	names := make([]string, 0, len(ids))
	for _, id := range slices.Sorted(slices.Values(ids)) {
		if l, ok := e.registry.Get(id); ok {
			names = append(names, l.Descriptor.Name)
		}
	}
	return names
}
