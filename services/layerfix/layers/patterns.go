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

// PatternsLayerID is the id of the textual pattern layer.
const PatternsLayerID layer.ID = 2

var entityPattern = regexp.MustCompile(`&(quot|#34|#x22|apos|#39|#x27|amp|lt|gt);`)

// entityWindow bounds how far back replaceEntity looks for enclosing JSX.
const entityWindow = 4096

// replaceEntity swaps an HTML entity for its literal character, escaping it
// when it would close the enclosing string literal. &amp;, &lt; and &gt; are
// only replaced inside strings, where they cannot start JSX syntax. JSX text
// takes any quote as is; a JSX attribute string cannot escape its own quote,
// so that entity is kept.
func replaceEntity(m Match) (string, bool) {
	before := m.Before
	if len(before) >= entityWindow {
		if i := strings.IndexByte(before, '\n'); i >= 0 {
			before = before[i+1:]
		}
	}
	quote, jsx := stringContext(before)

	var lit byte
	switch m.Groups[1] {
	case "quot", "#34", "#x22":
		lit = '"'
	case "apos", "#39", "#x27":
		lit = '\''
	case "amp":
		lit = '&'
	case "lt":
		lit = '<'
	case "gt":
		lit = '>'
	}

	switch {
	case quote == 0 && (lit == '&' || lit == '<' || lit == '>'):
		return "", false
	case quote != 0 && quote == lit && jsx:
		return "", false
	case quote != 0 && quote == lit:
		return `\` + string(lit), true
	default:
		return string(lit), true
	}
}

var consoleLogPattern = regexp.MustCompile(`(?m)^[ \t]*console\.log\((?:[^;\n()]|\([^;\n()]*\))*\);?[ \t]*\r?\n`)

// dropConsoleLog removes a console.log statement line unless it is the
// unbraced body of a control statement.
func dropConsoleLog(m Match) (string, bool) {
	prev := strings.TrimRight(m.Before, " \t\r\n")
	if prev == "" {
		return "", true
	}
	switch prev[len(prev)-1] {
	case '{', '}', ';':
		return "", true
	}
	return "", false
}

var patternRules = []Rule{
	{
		Name:        "html-entities",
		Pattern:     entityPattern,
		Replace:     replaceEntity,
		Window:      entityWindow,
		Improvement: "Replaced HTML entities with literal characters",
	},
	{
		Name:        "console-log",
		Pattern:     consoleLogPattern,
		Replace:     dropConsoleLog,
		Window:      256,
		Improvement: "Removed console.log statements",
	},
}

func patternsLayer() layer.Layer {
	return layer.Layer{
		Descriptor: layer.Descriptor{
			ID:           PatternsLayerID,
			Name:         "patterns",
			Description:  "Replace HTML entities and remove console.log statements",
			Dependencies: []layer.ID{ConfigLayerID},
			Capabilities: layer.Capabilities{Textual: true},
			FileTypes:    []string{".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs"},
		},
		Textual: transformPatterns,
	}
}

func transformPatterns(_ context.Context, in layer.Input) (layer.Output, error) {
	text, n, improvements := applyRules(in.Text, patternRules)
	return layer.Output{Text: text, Changes: n, Improvements: improvements}, nil
}
