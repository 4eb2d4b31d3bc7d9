// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package engine is the caller-facing surface of layerfix.
//
// An Engine wraps a layer registry, the execution pipeline and an optional
// result cache. It performs no I/O: callers such as the CLI and the HTTP
// service read and write files themselves and hand text to RunLayers or
// RunBatch.
package engine
