// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package layers provides the built-in layer rule sets.
//
// # Layers
//
//  1. config      tsconfig and next.config modernization (critical)
//  2. patterns    HTML entity and console.log cleanup
//  3. components  key props for elements returned from .map()
//  4. hydration   typeof window guards for browser-only globals
//  5. nextjs      'use client' directive and legacy Link children
//  6. quality     trailing whitespace, blank runs and final newline
//
// Each layer depends on every layer below it. Textual rules are pure
// functions of a match, its capture groups and a bounded context window;
// see Rule.
//
// # Usage
//
//	reg, err := layers.NewDefaultRegistry()
//	if err != nil {
//	    return err
//	}
package layers
