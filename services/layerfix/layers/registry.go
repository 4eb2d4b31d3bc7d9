// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package layers

import (
	"github.com/AleutianAI/layerfix/services/layerfix/layer"
)

// Default returns the built-in layers in id order.
func Default() []layer.Layer {
	return []layer.Layer{
		configLayer(),
		patternsLayer(),
		componentsLayer(),
		hydrationLayer(),
		nextjsLayer(),
		qualityLayer(),
	}
}

// NewDefaultRegistry builds and validates a registry of the built-in layers.
func NewDefaultRegistry() (*layer.Registry, error) {
	b := layer.NewRegistryBuilder()
	for _, l := range Default() {
		b.Add(l)
	}
	return b.Build()
}
