// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	httpMetricsOnce sync.Once
	httpRequests    metric.Int64Counter
	httpDuration    metric.Float64Histogram
	httpActive      metric.Int64UpDownCounter
)

func initHTTPMetrics() {
	httpMetricsOnce.Do(func() {
		meter := otel.Meter("layerfix.http")
		httpRequests, _ = meter.Int64Counter("layerfix_http_requests_total",
			metric.WithDescription("HTTP requests by method, route and status"))
		httpDuration, _ = meter.Float64Histogram("layerfix_http_request_duration_seconds",
			metric.WithDescription("HTTP request latency"),
			metric.WithUnit("s"))
		httpActive, _ = meter.Int64UpDownCounter("layerfix_http_active_requests",
			metric.WithDescription("Requests currently being served"))
	})
}

// GinMetrics records request count, latency and in-flight requests. The
// route template (c.FullPath) is used as the path label so ids in URLs do
// not explode cardinality.
func GinMetrics() gin.HandlerFunc {
	initHTTPMetrics()
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		start := time.Now()

		if httpActive != nil {
			httpActive.Add(ctx, 1)
			defer httpActive.Add(ctx, -1)
		}

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		attrs := metric.WithAttributes(
			attribute.String("method", c.Request.Method),
			attribute.String("path", route),
			attribute.String("status", strconv.Itoa(c.Writer.Status())),
		)
		if httpRequests != nil {
			httpRequests.Add(ctx, 1, attrs)
		}
		if httpDuration != nil {
			httpDuration.Record(ctx, time.Since(start).Seconds(), attrs)
		}
	}
}
