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
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/layerfix/services/layerfix/telemetry"
)

// RegisterRoutes registers the /layerfix endpoints on rg.
//
// Endpoints:
//
//	POST /v1/layerfix/run      - Run layers over a source text
//	GET  /v1/layerfix/layers   - List registered layers
//	POST /v1/layerfix/diagnose - Classify an error message
//	GET  /v1/layerfix/health   - Health check with cache statistics
func RegisterRoutes(rg *gin.RouterGroup, h *Handlers) {
	lf := rg.Group("/layerfix")
	{
		lf.POST("/run", h.HandleRun)
		lf.GET("/layers", h.HandleLayers)
		lf.POST("/diagnose", h.HandleDiagnose)
		lf.GET("/health", h.HandleHealth)
	}
}

// NewRouter builds the complete HTTP server router. metrics, when non-nil,
// is mounted at GET /metrics.
func NewRouter(h *Handlers, metrics http.Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("layerfix"))
	router.Use(telemetry.GinMetrics())
	router.Use(RequestID())

	RegisterRoutes(router.Group("/v1"), h)
	if metrics != nil {
		router.GET("/metrics", gin.WrapH(metrics))
	}
	return router
}
