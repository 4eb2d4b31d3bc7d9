// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/layerfix/services/layerfix/diagnostic"
	"github.com/AleutianAI/layerfix/services/layerfix/diffstat"
	"github.com/AleutianAI/layerfix/services/layerfix/layer"
	"github.com/AleutianAI/layerfix/services/layerfix/safety"
	"github.com/AleutianAI/layerfix/services/layerfix/strategy"
)

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithValidator replaces the default safety validator.
func WithValidator(v *safety.Validator) Option {
	return func(p *Pipeline) {
		if v != nil {
			p.validator = v
		}
	}
}

// WithClassifier replaces the default diagnostic classifier.
func WithClassifier(c *diagnostic.Classifier) Option {
	return func(p *Pipeline) {
		if c != nil {
			p.classifier = c
		}
	}
}

// WithDefaultTimeout sets the per-layer timeout used when a request has none.
func WithDefaultTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.defaultTimeout = d
		}
	}
}

// Pipeline executes layers over one text at a time.
//
// Thread Safety: Safe for concurrent use. Each Run owns its buffers.
type Pipeline struct {
	registry       *layer.Registry
	resolver       *layer.Resolver
	selector       *strategy.Selector
	validator      *safety.Validator
	classifier     *diagnostic.Classifier
	logger         *slog.Logger
	defaultTimeout time.Duration
}

// New creates a pipeline over registry.
//
// Outputs:
//
//	*Pipeline - The pipeline.
//	error - ErrNilRegistry, or an error loading the default safety catalogue.
func New(registry *layer.Registry, opts ...Option) (*Pipeline, error) {
	if registry == nil {
		return nil, ErrNilRegistry
	}
	p := &Pipeline{
		registry:       registry,
		resolver:       layer.NewResolver(registry),
		logger:         slog.Default(),
		defaultTimeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.validator == nil {
		v, err := safety.NewValidator(safety.WithLogger(p.logger))
		if err != nil {
			return nil, fmt.Errorf("creating validator: %w", err)
		}
		p.validator = v
	}
	if p.classifier == nil {
		p.classifier = diagnostic.NewClassifier(nil)
	}
	p.selector = strategy.NewSelector(p.logger)
	return p, nil
}

// Registry returns the registry the pipeline runs against.
func (p *Pipeline) Registry() *layer.Registry {
	return p.registry
}

// Classifier returns the diagnostic classifier.
func (p *Pipeline) Classifier() *diagnostic.Classifier {
	return p.classifier
}

// Run applies the requested layers to req.Text.
//
// Description:
//
//	The requested ids are resolved first; an unknown id returns an error
//	and no result. Each resolved layer then runs in ascending order against
//	the last accepted text. The context is checked before each layer; a
//	layer already running is allowed to finish or time out.
//
// Outputs:
//
//	*Result - The result. Non-nil whenever resolution succeeded.
//	error - A resolution error, ErrCriticalLayerFailure, or the context's
//	        error. The latter two accompany a partial result.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	runID := uuid.NewString()

	ctx, span := tracer.Start(ctx, "pipeline.Run",
		trace.WithAttributes(
			attribute.String("run_id", runID),
			attribute.String("filename", req.Filename),
			attribute.Int("input_bytes", len(req.Text)),
		),
	)
	defer span.End()

	resolution, err := p.resolver.Resolve(req.Layers)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolution failed")
		recordRun(ctx, "unknown_layer", time.Since(start))
		return nil, err
	}
	for _, w := range resolution.Warnings {
		p.logger.Warn(w, slog.String("run_id", runID))
	}

	result := &Result{
		RunID:        runID,
		OriginalText: req.Text,
		Resolution:   resolution,
		DryRun:       req.Options.DryRun,
		Outcomes:     make([]LayerOutcome, 0, len(resolution.Layers)),
	}

	current := req.Text
	var runErr error

	for _, id := range resolution.Layers {
		if err := ctx.Err(); err != nil {
			result.Aborted = true
			result.AbortReason = fmt.Sprintf("cancelled before layer %d: %v", id, err)
			runErr = err
			break
		}

		l, _ := p.registry.Get(id)
		outcome := p.runLayer(ctx, l, current, req)
		result.Outcomes = append(result.Outcomes, outcome)
		recordOutcome(ctx, outcome)

		switch outcome.Status {
		case StatusAccepted:
			current = outcome.Text
			result.SuccessCount++
			result.Snapshots = append(result.Snapshots, Snapshot{LayerID: id, Status: StatusAccepted, Text: current})
		case StatusReverted:
			result.Snapshots = append(result.Snapshots, Snapshot{LayerID: id, Status: StatusReverted, Text: current})
		case StatusFailed:
			if l.Descriptor.Critical {
				result.Aborted = true
				result.AbortReason = fmt.Sprintf("critical layer %d (%s) failed: %s", id, l.Descriptor.Name, outcome.Error)
				runErr = fmt.Errorf("%w: layer %d (%s): %w", ErrCriticalLayerFailure, id, l.Descriptor.Name, outcome.err)
			}
		}
		if runErr != nil {
			break
		}
	}

	result.FinalText = current
	result.Elapsed = time.Since(start)

	span.SetAttributes(
		attribute.Int("layers", len(resolution.Layers)),
		attribute.Int("success_count", result.SuccessCount),
		attribute.Bool("aborted", result.Aborted),
	)

	status := "ok"
	if runErr != nil {
		status = "aborted"
		span.RecordError(runErr)
		span.SetStatus(codes.Error, result.AbortReason)
		p.logger.Error("pipeline aborted",
			slog.String("run_id", runID),
			slog.String("reason", result.AbortReason),
		)
	}
	recordRun(ctx, status, result.Elapsed)

	return result, runErr
}

// runLayer moves one layer from Pending through Attempted to a terminal state.
//
// Caller cancellation is not propagated into the layer: once started, a
// layer completes or times out, and Run observes the cancel before the next.
func (p *Pipeline) runLayer(ctx context.Context, l layer.Layer, previous string, req Request) LayerOutcome {
	start := time.Now()
	d := l.Descriptor

	ctx, span := tracer.Start(context.WithoutCancel(ctx), "pipeline.layer",
		trace.WithAttributes(
			attribute.Int("layer", int(d.ID)),
			attribute.String("name", d.Name),
		),
	)
	defer span.End()

	outcome := LayerOutcome{
		LayerID:  d.ID,
		Name:     d.Name,
		Status:   StatusPending,
		Text:     previous,
		Critical: d.Critical,
	}

	defer func() {
		outcome.Elapsed = time.Since(start)
		span.SetAttributes(attribute.String("status", string(outcome.Status)))
		p.logLayer(ctx, req.Options.Verbose, outcome)
	}()

	if !d.AppliesTo(req.Filename) {
		outcome.Status = StatusAccepted
		outcome.Success = true
		outcome.Skipped = true
		return outcome
	}

	outcome.Status = StatusAttempted
	transformed, err := p.transform(ctx, l, layer.Input{Text: previous, Filename: req.Filename}, req.Options.Timeout)
	if err != nil {
		diag := p.classifier.Classify(d.ID, err)
		outcome.Status = StatusFailed
		outcome.Error = err.Error()
		outcome.Diagnostic = &diag
		outcome.err = err
		span.RecordError(err)
		span.SetStatus(codes.Error, "layer failed")
		return outcome
	}
	outcome.Strategy = transformed.Strategy
	outcome.FallbackReason = transformed.FallbackReason

	out := transformed.Output
	verdict := p.validator.Validate(ctx, previous, out.Text, req.Filename)
	if !verdict.Accepted() {
		diag := p.classifier.ClassifyText(d.ID, verdict.Reason)
		outcome.Status = StatusReverted
		outcome.RevertReason = verdict.Reason
		outcome.Diagnostic = &diag
		return outcome
	}

	outcome.Status = StatusAccepted
	outcome.Success = true
	outcome.Text = out.Text
	outcome.Improvements = out.Improvements
	outcome.Warnings = out.Warnings
	if verdict.Kind == safety.VerdictAcceptWithWarning {
		outcome.Warnings = append(outcome.Warnings, verdict.Reason)
	}

	switch {
	case out.Text == previous:
		outcome.Changes = 0
	case out.Changes <= 0:
		outcome.Changes = diffstat.CountEdits(previous, out.Text)
	default:
		outcome.Changes = out.Changes
	}
	return outcome
}

type transformResult struct {
	res strategy.Result
	err error
}

// transform runs the strategy selector under the layer timeout. On expiry
// the helper goroutine's result is discarded.
func (p *Pipeline) transform(ctx context.Context, l layer.Layer, in layer.Input, timeout time.Duration) (strategy.Result, error) {
	if timeout <= 0 {
		timeout = p.defaultTimeout
	}

	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan transformResult, 1)
	go func() {
		res, err := p.selector.Transform(tctx, l, in)
		done <- transformResult{res: res, err: err}
	}()

	select {
	case r := <-done:
		return r.res, r.err
	case <-tctx.Done():
		return strategy.Result{}, fmt.Errorf("%w: layer %d exceeded %s", ErrTimeout, l.Descriptor.ID, timeout)
	}
}

func (p *Pipeline) logLayer(ctx context.Context, verbose bool, o LayerOutcome) {
	level := slog.LevelDebug
	if verbose {
		level = slog.LevelInfo
	}
	if !p.logger.Enabled(ctx, level) {
		return
	}

	attrs := []slog.Attr{
		slog.Int("layer", int(o.LayerID)),
		slog.String("name", o.Name),
		slog.String("status", string(o.Status)),
		slog.Duration("elapsed", o.Elapsed),
	}
	if o.Strategy != "" {
		attrs = append(attrs, slog.String("strategy", string(o.Strategy)))
	}
	if o.Status == StatusAccepted {
		attrs = append(attrs, slog.Int("changes", o.Changes))
	}
	if o.Skipped {
		attrs = append(attrs, slog.Bool("skipped", true))
	}
	if r := o.Reason(); r != "" {
		attrs = append(attrs, slog.String("reason", r))
	}
	p.logger.LogAttrs(ctx, level, "layer finished", attrs...)
}
