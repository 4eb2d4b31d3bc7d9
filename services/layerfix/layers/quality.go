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
	"strings"

	"github.com/AleutianAI/layerfix/services/layerfix/layer"
)

// QualityLayerID is the id of the whitespace and formatting layer.
const QualityLayerID layer.ID = 6

func qualityLayer() layer.Layer {
	return layer.Layer{
		Descriptor: layer.Descriptor{
			ID:          QualityLayerID,
			Name:        "quality",
			Description: "Trim trailing whitespace, collapse blank runs, end with one newline",
			Dependencies: []layer.ID{
				ConfigLayerID, PatternsLayerID, ComponentsLayerID, HydrationLayerID, NextJSLayerID,
			},
			Capabilities: layer.Capabilities{Textual: true},
		},
		Textual: transformQuality,
	}
}

// transformQuality normalises whitespace line by line. Lines inside a
// template literal are left untouched. Changes is left for the pipeline
// to count from the diff.
func transformQuality(_ context.Context, in layer.Input) (layer.Output, error) {
	if in.Text == "" {
		return layer.Output{Text: in.Text}, nil
	}

	lines := strings.Split(in.Text, "\n")
	out := make([]string, 0, len(lines))
	var trimmed, collapsed bool
	inTemplate := false
	blanks := 0

	for _, line := range lines {
		if inTemplate {
			out = append(out, line)
			inTemplate = toggleTemplate(line, inTemplate)
			continue
		}
		inTemplate = toggleTemplate(line, false)

		clean := line
		if !inTemplate {
			clean = strings.TrimRight(line, " \t")
			if clean != line {
				trimmed = true
			}
		}
		if clean == "" {
			blanks++
			if blanks > 1 {
				collapsed = true
				continue
			}
		} else {
			blanks = 0
		}
		out = append(out, clean)
	}

	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	text := strings.Join(out, "\n") + "\n"
	if strings.TrimSpace(text) == "" {
		text = ""
	}

	var improvements []string
	if trimmed {
		improvements = append(improvements, "Removed trailing whitespace")
	}
	if collapsed {
		improvements = append(improvements, "Collapsed repeated blank lines")
	}
	if text != "" && (!strings.HasSuffix(in.Text, "\n") || strings.HasSuffix(in.Text, "\n\n")) {
		improvements = append(improvements, "Normalised final newline")
	}
	return layer.Output{Text: text, Changes: -1, Improvements: improvements}, nil
}

// toggleTemplate reports whether a template literal is still open after
// line, given whether one was open before it.
func toggleTemplate(line string, open bool) bool {
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '\\':
			if open {
				i++
			}
		case '`':
			open = !open
		}
	}
	return open
}
