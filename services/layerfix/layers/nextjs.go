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
	"fmt"
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/AleutianAI/layerfix/services/layerfix/layer"
	"github.com/AleutianAI/layerfix/services/layerfix/strategy"
)

// NextJSLayerID is the id of the Next.js app router layer.
const NextJSLayerID layer.ID = 5

const useClientDirective = "'use client';\n\n"

var clientHooks = map[string]bool{
	"useState":        true,
	"useEffect":       true,
	"useReducer":      true,
	"useRef":          true,
	"useContext":      true,
	"useLayoutEffect": true,
}

func nextjsLayer() layer.Layer {
	return layer.Layer{
		Descriptor: layer.Descriptor{
			ID:           NextJSLayerID,
			Name:         "nextjs",
			Description:  "Add 'use client' where needed and unwrap legacy <Link><a> children",
			Dependencies: []layer.ID{ConfigLayerID, PatternsLayerID, ComponentsLayerID, HydrationLayerID},
			Capabilities: layer.Capabilities{Structural: true, Textual: true},
			FileTypes:    []string{".tsx", ".jsx", ".js"},
		},
		Structural: nextjsStructural,
		Textual:    nextjsTextual,
	}
}

func nextjsStructural(ctx context.Context, in layer.Input) (layer.Output, error) {
	tree, err := strategy.ParseForEdit(ctx, in.Text, in.Filename)
	if err != nil {
		return layer.Output{}, err
	}
	defer tree.Close()

	src := []byte(in.Text)
	root := tree.RootNode()

	var edits []edit
	var improvements []string
	changes := 0

	links := 0
	walk(root, func(n *sitter.Node) {
		e, ok := unwrapLinkAnchor(n, src)
		if ok {
			edits = append(edits, e...)
			links++
		}
	})
	if links > 0 {
		changes += links
		improvements = append(improvements, fmt.Sprintf("Removed <a> children from <Link> (%d)", links))
	}

	if !hasDirective(root, src) && needsClient(root, src) {
		edits = append(edits, edit{start: 0, end: 0, text: useClientDirective})
		changes++
		improvements = append(improvements, "Added 'use client' directive")
	}

	if changes == 0 {
		return layer.Output{Text: in.Text}, nil
	}
	text, err := applyEdits(in.Text, edits)
	if err != nil {
		return layer.Output{}, err
	}
	return layer.Output{Text: text, Changes: changes, Improvements: improvements}, nil
}

// hasDirective reports a leading 'use client' or 'use server' directive.
func hasDirective(root *sitter.Node, src []byte) bool {
	for i := 0; i < int(root.NamedChildCount()); i++ {
		c := root.NamedChild(i)
		switch c.Type() {
		case "comment":
			continue
		case "expression_statement":
			if c.NamedChildCount() > 0 && c.NamedChild(0).Type() == "string" {
				s := strings.Trim(c.NamedChild(0).Content(src), `'"`)
				if s == "use client" || s == "use server" {
					return true
				}
				continue
			}
		}
		return false
	}
	return false
}

// needsClient reports hook calls or on* event handler props.
func needsClient(root *sitter.Node, src []byte) bool {
	found := false
	walk(root, func(n *sitter.Node) {
		if found {
			return
		}
		switch n.Type() {
		case "call_expression":
			if fn := n.ChildByFieldName("function"); fn != nil && fn.Type() == "identifier" {
				found = clientHooks[fn.Content(src)]
			}
		case "jsx_attribute":
			if n.NamedChildCount() > 0 {
				found = isEventProp(n.NamedChild(0).Content(src))
			}
		}
	})
	return found
}

func isEventProp(name string) bool {
	return len(name) > 2 && strings.HasPrefix(name, "on") && name[2] >= 'A' && name[2] <= 'Z'
}

// unwrapLinkAnchor turns <Link href="/x"><a class="y">text</a></Link> into
// <Link href="/x" class="y">text</Link>. The anchor's href is dropped.
func unwrapLinkAnchor(n *sitter.Node, src []byte) ([]edit, bool) {
	if n.Type() != "jsx_element" || elementName(n, src) != "Link" {
		return nil, false
	}

	var anchor *sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "jsx_opening_element", "jsx_closing_element":
		case "jsx_text":
			if strings.TrimSpace(c.Content(src)) != "" {
				return nil, false
			}
		case "jsx_element":
			if anchor != nil || elementName(c, src) != "a" {
				return nil, false
			}
			anchor = c
		default:
			return nil, false
		}
	}
	if anchor == nil {
		return nil, false
	}

	open := firstNamedOfType(anchor, "jsx_opening_element")
	closing := firstNamedOfType(anchor, "jsx_closing_element")
	linkOpen := firstNamedOfType(n, "jsx_opening_element")
	if open == nil || closing == nil || linkOpen == nil {
		return nil, false
	}

	var attrs []string
	for i := 0; i < int(open.NamedChildCount()); i++ {
		a := open.NamedChild(i)
		if a.Type() != "jsx_attribute" || a.NamedChildCount() == 0 {
			continue
		}
		if a.NamedChild(0).Content(src) == "href" {
			continue
		}
		attrs = append(attrs, a.Content(src))
	}

	edits := []edit{
		{start: int(open.StartByte()), end: int(open.EndByte())},
		{start: int(closing.StartByte()), end: int(closing.EndByte())},
	}
	if len(attrs) > 0 {
		pos := int(linkOpen.EndByte()) - 1
		edits = append(edits, edit{start: pos, end: pos, text: " " + strings.Join(attrs, " ")})
	}
	return edits, true
}

func elementName(el *sitter.Node, src []byte) string {
	open := firstNamedOfType(el, "jsx_opening_element")
	if open == nil {
		return ""
	}
	name := open.ChildByFieldName("name")
	if name == nil {
		return ""
	}
	return name.Content(src)
}

var (
	directivePattern  = regexp.MustCompile(`^\s*(?:(?://[^\n]*|/\*[\s\S]*?\*/)\s*)*['"]use (?:client|server)['"]`)
	clientUsePattern  = regexp.MustCompile(`\b(?:useState|useEffect|useReducer|useRef|useContext|useLayoutEffect)\s*\(|\son[A-Z]\w*=\{`)
	linkAnchorPattern = regexp.MustCompile(`<Link(\s[^>]*)?>\s*<a(\s[^>]*)?>([^<]*)</a>\s*</Link>`)
	hrefAttrPattern   = regexp.MustCompile(`\s*\bhref=(?:"[^"]*"|'[^']*'|\{[^}]*\})`)
)

func unwrapLinkText(m Match) (string, bool) {
	attrs := hrefAttrPattern.ReplaceAllString(m.Groups[2], "")
	return "<Link" + m.Groups[1] + attrs + ">" + m.Groups[3] + "</Link>", true
}

var nextjsRules = []Rule{
	{
		Name:        "link-anchor",
		Pattern:     linkAnchorPattern,
		Replace:     unwrapLinkText,
		Improvement: "Removed <a> children from <Link>",
	},
}

func nextjsTextual(_ context.Context, in layer.Input) (layer.Output, error) {
	text, n, improvements := applyRules(in.Text, nextjsRules)
	if !directivePattern.MatchString(text) && clientUsePattern.MatchString(text) {
		text = useClientDirective + text
		n++
		improvements = append(improvements, "Added 'use client' directive")
	}
	return layer.Output{Text: text, Changes: n, Improvements: improvements}, nil
}
