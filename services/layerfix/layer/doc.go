// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package layer defines transformation layers, the immutable registry that
// owns their descriptors, and the dependency resolver that turns a caller's
// requested layer set into a closed, ascending execution order.
//
// # Registration
//
// Layers are registered through a RegistryBuilder. Build validates the whole
// set at once: duplicate ids, missing capability functions, dangling
// dependency references and dependency cycles are all rejected before any
// layer can run.
//
//	reg, err := layer.NewRegistryBuilder().
//	    Add(configLayer).
//	    Add(patternLayer).
//	    Build()
//
// # Resolution
//
//	res, err := layer.NewResolver(reg).Resolve([]layer.ID{3})
//	// res.Layers    == [1 2 3]
//	// res.AutoAdded == [1 2]
//
// # Thread Safety
//
// Registry and Resolver are read-only after construction and safe for
// concurrent use. RegistryBuilder is not.
package layer
