// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package layerfix exposes the transformation engine over HTTP.
//
// The engine itself lives in the engine package and performs no I/O; this
// package only decodes requests, validates them and renders results.
//
// # Endpoints
//
//	POST /v1/layerfix/run
//	GET  /v1/layerfix/layers
//	POST /v1/layerfix/diagnose
//	GET  /v1/layerfix/health
//	GET  /metrics (when the Prometheus exporter is enabled)
package layerfix
