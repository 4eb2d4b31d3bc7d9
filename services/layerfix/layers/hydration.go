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
	"context"
	"regexp"
	"strings"

	"github.com/AleutianAI/layerfix/services/layerfix/layer"
)

// HydrationLayerID is the id of the hydration guard layer.
const HydrationLayerID layer.ID = 4

const windowGuard = `typeof window !== "undefined"`

func hydrationLayer() layer.Layer {
	return layer.Layer{
		Descriptor: layer.Descriptor{
			ID:           HydrationLayerID,
			Name:         "hydration",
			Description:  "Guard browser-only globals so server rendering does not crash",
			Dependencies: []layer.ID{ConfigLayerID, PatternsLayerID, ComponentsLayerID},
			Capabilities: layer.Capabilities{Textual: true},
			FileTypes:    []string{".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs"},
		},
		Textual: transformHydration,
	}
}

var (
	storageReadPattern    = regexp.MustCompile(`\b(localStorage|sessionStorage)\.getItem\([^()\n]*\)`)
	viewportPattern       = regexp.MustCompile(`\bwindow\.(innerWidth|innerHeight|devicePixelRatio)\b`)
	alreadyGuardedPattern = regexp.MustCompile(`typeof\s+window\b`)
)

// guardable reports whether a browser global access can be wrapped: not in
// a string, not already guarded on the same line, not an assignment target
// and not already wrapped by this layer.
func guardable(m Match) bool {
	line := currentLine(m.Before)
	if insideQuote(line) != 0 {
		return false
	}
	rest := m.After
	if i := strings.IndexByte(rest, '\n'); i >= 0 {
		rest = rest[:i]
	}
	if alreadyGuardedPattern.MatchString(line) || alreadyGuardedPattern.MatchString(rest) {
		return false
	}
	trimmed := strings.TrimLeft(rest, " \t")
	if strings.HasPrefix(trimmed, "=") && !strings.HasPrefix(trimmed, "==") {
		return false
	}
	return !strings.HasSuffix(strings.TrimRight(line, " \t"), ".")
}

func guardWith(fallback string) ReplaceFunc {
	return func(m Match) (string, bool) {
		if !guardable(m) {
			return "", false
		}
		return "(" + windowGuard + " ? " + m.Text + " : " + fallback + ")", true
	}
}

var hydrationRules = []Rule{
	{
		Name:        "guard-storage-read",
		Pattern:     storageReadPattern,
		Replace:     guardWith("null"),
		Window:      256,
		Improvement: "Guarded storage reads for server rendering",
	},
	{
		Name:        "guard-viewport",
		Pattern:     viewportPattern,
		Replace:     guardWith("0"),
		Window:      256,
		Improvement: "Guarded window measurements for server rendering",
	},
}

func transformHydration(_ context.Context, in layer.Input) (layer.Output, error) {
	text, n, improvements := applyRules(in.Text, hydrationRules)
	return layer.Output{Text: text, Changes: n, Improvements: improvements}, nil
}
