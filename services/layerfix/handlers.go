// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package layerfix

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/AleutianAI/layerfix/services/layerfix/diffstat"
	"github.com/AleutianAI/layerfix/services/layerfix/engine"
	"github.com/AleutianAI/layerfix/services/layerfix/layer"
	"github.com/AleutianAI/layerfix/services/layerfix/pipeline"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

const requestIDKey = "request_id"

// Handlers serves the layerfix HTTP API.
//
// Thread Safety: Safe for concurrent use.
type Handlers struct {
	engine   *engine.Engine
	validate *validator.Validate
	logger   *slog.Logger
}

// NewHandlers creates handlers over e.
func NewHandlers(e *engine.Engine, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		engine:   e,
		validate: validator.New(),
		logger:   logger,
	}
}

// RequestID reuses the caller's X-Request-ID or assigns a new uuid, and
// echoes it on the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func requestID(c *gin.Context) string {
	if id := c.GetString(requestIDKey); id != "" {
		return id
	}
	return uuid.NewString()
}

// HandleRun handles POST /v1/layerfix/run.
//
// Response:
//
//	200 OK: RunResponse
//	400 Bad Request: invalid body or unknown layer
//	422 Unprocessable Entity: RunResponse with the partial result of a critical abort
//	503 Service Unavailable: the request was cancelled
func (h *Handlers) HandleRun(c *gin.Context) {
	id := requestID(c)
	logger := h.logger.With(slog.String("request_id", id), slog.String("handler", "HandleRun"))

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxTextBytes+64<<10)

	var req RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Code: "INVALID_REQUEST", Details: err.Error()})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Request validation failed", Code: "VALIDATION_FAILED", Details: err.Error()})
		return
	}

	ids := make([]layer.ID, len(req.Layers))
	for i, n := range req.Layers {
		ids[i] = layer.ID(n)
	}
	opts := pipeline.Options{
		DryRun:       req.DryRun,
		Verbose:      req.Verbose,
		Timeout:      time.Duration(req.TimeoutMs) * time.Millisecond,
		CacheEnabled: !req.NoCache,
	}

	result, err := h.engine.RunLayers(c.Request.Context(), req.Text, ids, req.Filename, opts)

	var unknown *layer.UnknownLayerError
	switch {
	case errors.As(err, &unknown):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "UNKNOWN_LAYER"})
		return
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		logger.Warn("run cancelled", slog.String("error", err.Error()))
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "Run cancelled", Code: "CANCELLED", Details: err.Error()})
		return
	case err != nil && !errors.Is(err, pipeline.ErrCriticalLayerFailure):
		logger.Error("run failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Run failed", Code: "RUN_FAILED", Details: err.Error()})
		return
	}

	resp := RunResponse{
		RequestID:   id,
		Result:      result,
		Diagnostics: h.engine.Diagnostics(result),
	}
	if result.Changed() {
		name := req.Filename
		if name == "" {
			name = "input"
		}
		if diff, derr := diffstat.Unified(name, result.OriginalText, result.FinalText); derr == nil {
			resp.Diff = diff
			if stats, serr := diffstat.ParseStats(diff); serr == nil {
				resp.Stats = stats
			}
		}
	}

	status := http.StatusOK
	if err != nil {
		status = http.StatusUnprocessableEntity
		logger.Warn("critical layer failure", slog.String("reason", result.AbortReason))
	}
	logger.Info("run complete",
		slog.String("run_id", result.RunID),
		slog.Int("layers", len(result.Outcomes)),
		slog.Int("success_count", result.SuccessCount),
		slog.Int("changes", result.TotalChanges()),
	)
	c.JSON(status, resp)
}

// HandleLayers handles GET /v1/layerfix/layers.
func (h *Handlers) HandleLayers(c *gin.Context) {
	c.JSON(http.StatusOK, LayersResponse{Layers: h.engine.DescribeLayers()})
}

// HandleDiagnose handles POST /v1/layerfix/diagnose.
func (h *Handlers) HandleDiagnose(c *gin.Context) {
	var req DiagnoseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Code: "INVALID_REQUEST", Details: err.Error()})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Request validation failed", Code: "VALIDATION_FAILED", Details: err.Error()})
		return
	}
	c.JSON(http.StatusOK, DiagnoseResponse{Diagnostic: h.engine.Diagnose(layer.ID(req.LayerID), req.Message)})
}

// HandleHealth handles GET /v1/layerfix/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	resp := HealthResponse{Status: "ok", Layers: len(h.engine.DescribeLayers())}
	if rc := h.engine.Cache(); rc != nil {
		stats := rc.Stats()
		resp.Cache = &stats
	}
	c.JSON(http.StatusOK, resp)
}
