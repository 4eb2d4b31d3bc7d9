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
	"encoding/json"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/AleutianAI/layerfix/services/layerfix/layer"
)

// ConfigLayerID is the id of the configuration layer.
const ConfigLayerID layer.ID = 1

type configKind int

const (
	configNone configKind = iota
	configTSConfig
	configNext
	configPackageJSON
)

// detectConfig decides which config file the input is. Without a filename
// hint the content decides.
func detectConfig(filename, text string) configKind {
	base := strings.ToLower(filepath.Base(filename))
	switch {
	case filename == "":
		switch {
		case strings.Contains(text, `"compilerOptions"`):
			return configTSConfig
		case strings.Contains(text, "reactStrictMode") || strings.Contains(text, "swcMinify"):
			return configNext
		}
		return configNone
	case base == "package.json":
		return configPackageJSON
	case strings.HasPrefix(base, "tsconfig") && strings.HasSuffix(base, ".json"):
		return configTSConfig
	case strings.HasPrefix(base, "next.config."):
		return configNext
	}
	return configNone
}

var tsconfigRules = []Rule{
	{
		Name:        "modern-target",
		Pattern:     regexp.MustCompile(`("target"\s*:\s*)"(?i:es3|es5|es6|es2015|es2016)"`),
		Template:    `${1}"es2017"`,
		Improvement: "Raised compilerOptions.target to es2017",
	},
	{
		Name:        "automatic-jsx-runtime",
		Pattern:     regexp.MustCompile(`("jsx"\s*:\s*)"react"`),
		Template:    `${1}"react-jsx"`,
		Improvement: "Switched jsx to the automatic runtime",
	},
	{
		Name:        "strict-mode",
		Pattern:     regexp.MustCompile(`("strict"\s*:\s*)false\b`),
		Template:    `${1}true`,
		Improvement: "Enabled strict type checking",
	},
}

var nextConfigRules = []Rule{
	{
		Name:        "drop-swc-minify",
		Pattern:     regexp.MustCompile(`(?m)^[ \t]*swcMinify\s*:\s*(?:true|false)\s*,?[ \t]*\r?\n`),
		Template:    "",
		Improvement: "Removed the obsolete swcMinify option",
	},
	{
		Name:        "drop-serverless-target",
		Pattern:     regexp.MustCompile(`(?m)^[ \t]*target\s*:\s*['"]serverless['"]\s*,?[ \t]*\r?\n`),
		Template:    "",
		Improvement: "Removed the unsupported serverless target",
	},
	{
		Name:        "react-strict-mode",
		Pattern:     regexp.MustCompile(`(reactStrictMode\s*:\s*)false\b`),
		Template:    `${1}true`,
		Improvement: "Enabled reactStrictMode",
	},
}

func configLayer() layer.Layer {
	return layer.Layer{
		Descriptor: layer.Descriptor{
			ID:           ConfigLayerID,
			Name:         "config",
			Description:  "Modernize tsconfig.json and next.config settings",
			Critical:     true,
			Capabilities: layer.Capabilities{Textual: true},
			FileTypes:    []string{".json", ".js", ".mjs", ".cjs", ".ts"},
		},
		Textual: transformConfig,
	}
}

func transformConfig(_ context.Context, in layer.Input) (layer.Output, error) {
	var rules []Rule
	switch detectConfig(in.Filename, in.Text) {
	case configTSConfig:
		rules = tsconfigRules
	case configNext:
		rules = nextConfigRules
	case configPackageJSON:
		// npm refuses a malformed manifest, so nothing later can be trusted.
		if !json.Valid([]byte(in.Text)) {
			var v any
			err := json.Unmarshal([]byte(in.Text), &v)
			return layer.Output{}, fmt.Errorf("package.json is not valid JSON: %w", err)
		}
		return layer.Output{Text: in.Text}, nil
	default:
		return layer.Output{Text: in.Text}, nil
	}

	text, n, improvements := applyRules(in.Text, rules)
	return layer.Output{Text: text, Changes: n, Improvements: improvements}, nil
}
