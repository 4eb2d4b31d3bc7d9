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
	"errors"

	"github.com/AleutianAI/layerfix/services/layerfix/strategy"
)

var (
	// ErrCriticalLayerFailure is returned when a critical layer fails and
	// the run is aborted.
	ErrCriticalLayerFailure = errors.New("critical layer failed")

	// ErrTimeout marks a layer that exceeded its time budget.
	ErrTimeout = strategy.ErrTimeout

	// ErrNilRegistry is returned by New without a registry.
	ErrNilRegistry = errors.New("registry must not be nil")
)
