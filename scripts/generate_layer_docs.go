// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.


// generate_layer_docs writes a markdown reference of the built-in layers,
// diagnostic rules and safety catalogue.
//
// Usage:
//
//	go run scripts/generate_layer_docs.go > docs/layers.md
package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/AleutianAI/layerfix/services/layerfix/diagnostic"
	"github.com/AleutianAI/layerfix/services/layerfix/layer"
	"github.com/AleutianAI/layerfix/services/layerfix/layers"
	"github.com/AleutianAI/layerfix/services/layerfix/safety"
)

func main() {
	reg, err := layers.NewDefaultRegistry()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building registry: %v\n", err)
		os.Exit(1)
	}
	rules, err := diagnostic.DefaultRules()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading diagnostic rules: %v\n", err)
		os.Exit(1)
	}
	cat, err := safety.DefaultCatalogue()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading safety catalogue: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("# Layer Reference")
	fmt.Println()
	fmt.Printf("*Generated %s*\n\n", time.Now().UTC().Format("2006-01-02"))

	writeLayers(reg.Descriptors())
	writeRules(rules)
	writeCatalogue(cat)

	fmt.Println("---")
	fmt.Println()
	fmt.Println("*To regenerate: `go run scripts/generate_layer_docs.go > docs/layers.md`*")
}

func writeLayers(descs []layer.Descriptor) {
	fmt.Println("## Layers")
	fmt.Println()
	fmt.Println("| ID | Name | Depends on | Strategies | File types | Critical | Description |")
	fmt.Println("|----|------|------------|------------|------------|----------|-------------|")
	for _, d := range descs {
		var strategies []string
		if d.Capabilities.Structural {
			strategies = append(strategies, "structural")
		}
		if d.Capabilities.Textual {
			strategies = append(strategies, "textual")
		}
		fileTypes := "all"
		if len(d.FileTypes) > 0 {
			fileTypes = strings.Join(d.FileTypes, " ")
		}
		critical := ""
		if d.Critical {
			critical = "yes"
		}
		fmt.Printf("| %d | `%s` | %s | %s | %s | %s | %s |\n",
			d.ID, d.Name, joinIDs(d.Dependencies), strings.Join(strategies, ", "), fileTypes, critical, escapePipes(d.Description))
	}
	fmt.Println()
}

func writeRules(rules []diagnostic.Rule) {
	fmt.Println("## Diagnostic Rules")
	fmt.Println()
	fmt.Println("Rules are tried in order; layer-specific rules before generic ones.")
	fmt.Println()
	fmt.Println("| Layer | Match | Category | Severity | Suggestion |")
	fmt.Println("|-------|-------|----------|----------|------------|")
	for _, r := range rules {
		scope := "any"
		if r.Layer != 0 {
			scope = fmt.Sprint(r.Layer)
		}
		match := "contains `" + r.Contains + "`"
		if r.Pattern != "" {
			match = "regex `" + r.Pattern + "`"
		}
		fmt.Printf("| %s | %s | %s | %s | %s |\n", scope, escapePipes(match), r.Category, r.Severity, escapePipes(r.Suggestion))
	}
	fmt.Println()
}

func writeCatalogue(cat *safety.Catalogue) {
	fmt.Println("## Safety Catalogue")
	fmt.Println()
	fmt.Println("### Corruption signatures")
	fmt.Println()
	fmt.Println("A layer is reverted when its output has more matches than its input.")
	fmt.Println()
	for _, p := range cat.Corruption {
		fmt.Printf("- **%s**: %s\n", p.Name, p.Description)
	}
	fmt.Println()

	fmt.Println("### Critical identifiers")
	fmt.Println()
	fmt.Println(strings.Join(cat.CriticalIdentifiers, ", "))
	fmt.Println()

	fmt.Println("### Warnings")
	fmt.Println()
	for _, p := range cat.Warnings {
		fmt.Printf("- **%s** (%s): %s\n", p.Name, p.When, p.Description)
	}
	if cat.ShrinkWarningRatio > 0 {
		fmt.Printf("- Output smaller than %.0f%% of the input.\n", cat.ShrinkWarningRatio*100)
	}
	fmt.Println()
}

func joinIDs(ids []layer.ID) string {
	if len(ids) == 0 {
		return "-"
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return strings.Join(parts, ", ")
}

func escapePipes(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
