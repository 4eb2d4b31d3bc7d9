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
	"github.com/AleutianAI/layerfix/services/layerfix/cache"
	"github.com/AleutianAI/layerfix/services/layerfix/diagnostic"
	"github.com/AleutianAI/layerfix/services/layerfix/diffstat"
	"github.com/AleutianAI/layerfix/services/layerfix/layer"
	"github.com/AleutianAI/layerfix/services/layerfix/pipeline"
)

// MaxTextBytes bounds the source text accepted over HTTP.
const MaxTextBytes = 2 << 20

// RunRequest is the body of POST /v1/layerfix/run.
type RunRequest struct {
	// Text is the source to transform.
	Text string `json:"text" validate:"max=2097152"`

	// Layers selects layer ids. Empty runs every layer.
	Layers []int `json:"layers" validate:"omitempty,max=64,dive,min=1"`

	// Filename is a hint for grammar selection and layer applicability.
	Filename string `json:"filename" validate:"omitempty,max=255"`

	DryRun  bool `json:"dry_run"`
	Verbose bool `json:"verbose"`

	// TimeoutMs bounds each layer. Zero uses the pipeline default.
	TimeoutMs int `json:"timeout_ms" validate:"min=0,max=600000"`

	// NoCache bypasses the result cache.
	NoCache bool `json:"no_cache"`
}

// RunResponse is the body returned by a run, including a partial result
// after a critical abort.
type RunResponse struct {
	RequestID   string                  `json:"request_id"`
	Result      *pipeline.Result        `json:"result"`
	Diagnostics []diagnostic.Diagnostic `json:"diagnostics,omitempty"`

	// Diff is a unified diff of the original and final text; empty when
	// nothing changed.
	Diff  string         `json:"diff,omitempty"`
	Stats diffstat.Stats `json:"stats"`
}

// LayersResponse lists the registered layers.
type LayersResponse struct {
	Layers []layer.Descriptor `json:"layers"`
}

// DiagnoseRequest is the body of POST /v1/layerfix/diagnose.
type DiagnoseRequest struct {
	LayerID int    `json:"layer_id" validate:"min=1"`
	Message string `json:"message" validate:"required,max=65536"`
}

// DiagnoseResponse carries one classified diagnostic.
type DiagnoseResponse struct {
	Diagnostic diagnostic.Diagnostic `json:"diagnostic"`
}

// HealthResponse is returned by GET /v1/layerfix/health.
type HealthResponse struct {
	Status string       `json:"status"`
	Layers int          `json:"layers"`
	Cache  *cache.Stats `json:"cache,omitempty"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is a stable machine-readable code.
	Code string `json:"code,omitempty"`

	// Details provides additional context.
	Details string `json:"details,omitempty"`
}
