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
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	tracer = otel.Tracer("layerfix.pipeline")
	meter  = otel.Meter("layerfix.pipeline")
)

var (
	runsTotal        metric.Int64Counter
	runDuration      metric.Float64Histogram
	layerOutcomes    metric.Int64Counter
	layerDuration    metric.Float64Histogram
	fallbacksTotal   metric.Int64Counter
	layerChangeCount metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		runsTotal, err = meter.Int64Counter(
			"layerfix_pipeline_runs_total",
			metric.WithDescription("Total pipeline runs by result"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		runDuration, err = meter.Float64Histogram(
			"layerfix_pipeline_run_duration_seconds",
			metric.WithDescription("Pipeline run duration"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		layerOutcomes, err = meter.Int64Counter(
			"layerfix_layer_outcomes_total",
			metric.WithDescription("Layer outcomes by layer, status and strategy"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		layerDuration, err = meter.Float64Histogram(
			"layerfix_layer_duration_seconds",
			metric.WithDescription("Layer transform and validation duration"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		fallbacksTotal, err = meter.Int64Counter(
			"layerfix_strategy_fallbacks_total",
			metric.WithDescription("Structural transforms that fell back to textual"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		layerChangeCount, err = meter.Int64Histogram(
			"layerfix_layer_changes",
			metric.WithDescription("Edits applied by accepted layers"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordRun(ctx context.Context, result string, d time.Duration) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("result", result))
	runsTotal.Add(ctx, 1, attrs)
	runDuration.Record(ctx, d.Seconds(), attrs)
}

func recordOutcome(ctx context.Context, o LayerOutcome) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.Int("layer", int(o.LayerID)),
		attribute.String("status", string(o.Status)),
		attribute.String("strategy", string(o.Strategy)),
	)
	layerOutcomes.Add(ctx, 1, attrs)
	layerDuration.Record(ctx, o.Elapsed.Seconds(), attrs)

	if o.FallbackReason != "" {
		fallbacksTotal.Add(ctx, 1, metric.WithAttributes(attribute.Int("layer", int(o.LayerID))))
	}
	if o.Status == StatusAccepted {
		layerChangeCount.Record(ctx, int64(o.Changes), metric.WithAttributes(attribute.Int("layer", int(o.LayerID))))
	}
}
