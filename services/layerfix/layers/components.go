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

// ComponentsLayerID is the id of the component rewrite layer.
const ComponentsLayerID layer.ID = 3

func componentsLayer() layer.Layer {
	return layer.Layer{
		Descriptor: layer.Descriptor{
			ID:           ComponentsLayerID,
			Name:         "components",
			Description:  "Add key props to elements returned from .map()",
			Dependencies: []layer.ID{ConfigLayerID, PatternsLayerID},
			Capabilities: layer.Capabilities{Structural: true, Textual: true},
			FileTypes:    []string{".tsx", ".jsx", ".js"},
		},
		Structural: componentsStructural,
		Textual:    componentsTextual,
	}
}

// componentsStructural finds arrow callbacks passed to .map() whose result
// is a JSX element without a key, and adds key={index}, introducing the
// index parameter when the callback does not declare one.
func componentsStructural(ctx context.Context, in layer.Input) (layer.Output, error) {
	tree, err := strategy.ParseForEdit(ctx, in.Text, in.Filename)
	if err != nil {
		return layer.Output{}, err
	}
	defer tree.Close()

	src := []byte(in.Text)
	var edits []edit
	fixed := 0

	walk(tree.RootNode(), func(n *sitter.Node) {
		cb, el := mappedElement(n, src)
		if cb == nil {
			return
		}
		e, ok := keyEdits(cb, el, src)
		if !ok {
			return
		}
		edits = append(edits, e...)
		fixed++
	})

	if fixed == 0 {
		return layer.Output{Text: in.Text}, nil
	}
	text, err := applyEdits(in.Text, edits)
	if err != nil {
		return layer.Output{}, err
	}
	return layer.Output{
		Text:         text,
		Changes:      fixed,
		Improvements: []string{fmt.Sprintf("Added key props to mapped elements (%d)", fixed)},
	}, nil
}

// mappedElement returns the arrow callback and the opening element when n
// is a .map() call whose callback returns a JSX element without a key.
func mappedElement(n *sitter.Node, src []byte) (cb, el *sitter.Node) {
	if n.Type() != "call_expression" {
		return nil, nil
	}
	fn := n.ChildByFieldName("function")
	if fn == nil || fn.Type() != "member_expression" {
		return nil, nil
	}
	prop := fn.ChildByFieldName("property")
	if prop == nil || prop.Content(src) != "map" {
		return nil, nil
	}
	args := n.ChildByFieldName("arguments")
	if args == nil || args.NamedChildCount() == 0 {
		return nil, nil
	}
	cb = args.NamedChild(0)
	if cb.Type() != "arrow_function" {
		return nil, nil
	}
	el = returnedElement(cb.ChildByFieldName("body"))
	if el == nil || el.ChildByFieldName("name") == nil || hasKey(el, src) {
		return nil, nil
	}
	return cb, el
}

// returnedElement unwraps parentheses and a block's return statement down to
// the opening (or self-closing) element.
func returnedElement(body *sitter.Node) *sitter.Node {
	if body == nil {
		return nil
	}
	switch body.Type() {
	case "jsx_element":
		return firstNamedOfType(body, "jsx_opening_element")
	case "jsx_self_closing_element":
		return body
	case "parenthesized_expression":
		if body.NamedChildCount() == 0 {
			return nil
		}
		return returnedElement(body.NamedChild(0))
	case "statement_block":
		ret := firstNamedOfType(body, "return_statement")
		if ret == nil || ret.NamedChildCount() == 0 {
			return nil
		}
		return returnedElement(ret.NamedChild(0))
	}
	return nil
}

func hasKey(el *sitter.Node, src []byte) bool {
	for i := 0; i < int(el.NamedChildCount()); i++ {
		attr := el.NamedChild(i)
		if attr.Type() != "jsx_attribute" || attr.NamedChildCount() == 0 {
			continue
		}
		if attr.NamedChild(0).Content(src) == "key" {
			return true
		}
	}
	return false
}

// keyEdits builds the parameter and attribute edits for one callback.
func keyEdits(cb, el *sitter.Node, src []byte) ([]edit, bool) {
	var edits []edit
	index := freeName(cb.Content(src), "index", "idx", "itemIndex")

	if p := cb.ChildByFieldName("parameter"); p != nil {
		edits = append(edits, edit{
			start: int(p.StartByte()),
			end:   int(p.EndByte()),
			text:  "(" + p.Content(src) + ", " + index + ")",
		})
	} else if params := cb.ChildByFieldName("parameters"); params != nil {
		switch params.NamedChildCount() {
		case 0:
			pos := int(params.StartByte()) + 1
			edits = append(edits, edit{start: pos, end: pos, text: "_item, " + index})
		case 1:
			pos := int(params.EndByte()) - 1
			edits = append(edits, edit{start: pos, end: pos, text: ", " + index})
		default:
			name := paramName(params.NamedChild(1), src)
			if name == "" {
				return nil, false
			}
			index = name
		}
	} else {
		return nil, false
	}

	name := el.ChildByFieldName("name")
	pos := int(name.EndByte())
	edits = append(edits, edit{start: pos, end: pos, text: " key={" + index + "}"})
	return edits, true
}

// paramName returns the identifier a parameter binds, or "" for patterns.
func paramName(p *sitter.Node, src []byte) string {
	switch p.Type() {
	case "identifier":
		return p.Content(src)
	case "required_parameter", "optional_parameter":
		if pat := p.ChildByFieldName("pattern"); pat != nil && pat.Type() == "identifier" {
			return pat.Content(src)
		}
	}
	return ""
}

var identifierPattern = regexp.MustCompile(`[A-Za-z_$][\w$]*`)

// freeName returns the first candidate not already used as an identifier in scope.
func freeName(scope string, candidates ...string) string {
	used := make(map[string]bool)
	for _, id := range identifierPattern.FindAllString(scope, -1) {
		used[id] = true
	}
	for _, c := range candidates {
		if !used[c] {
			return c
		}
	}
	return candidates[len(candidates)-1] + "2"
}

var mapCallbackPattern = regexp.MustCompile(
	`\.map\(\s*(?:\(\s*([A-Za-z_$][\w$]*)\s*(?:,\s*([A-Za-z_$][\w$]*)\s*)?\)|([A-Za-z_$][\w$]*))\s*=>\s*(\(\s*)?<([A-Za-z][\w.]*)`)

// addKeyTextually handles single-line callbacks the structural pass could
// not reach. The After window is checked for an existing key up to the end
// of the opening tag.
func addKeyTextually(m Match) (string, bool) {
	tagEnd := strings.IndexByte(m.After, '>')
	if tagEnd < 0 {
		return "", false
	}
	if strings.Contains(m.After[:tagEnd], "key=") {
		return "", false
	}

	item, index := m.Groups[1], m.Groups[2]
	if item == "" {
		item = m.Groups[3]
	}
	if index == "" {
		index = "index"
		if item == index {
			index = "idx"
		}
	}
	return ".map((" + item + ", " + index + ") => " + m.Groups[4] + "<" + m.Groups[5] + " key={" + index + "}", true
}

var componentRules = []Rule{
	{
		Name:        "map-key",
		Pattern:     mapCallbackPattern,
		Replace:     addKeyTextually,
		Window:      512,
		Improvement: "Added key props to mapped elements",
	},
}

func componentsTextual(_ context.Context, in layer.Input) (layer.Output, error) {
	text, n, improvements := applyRules(in.Text, componentRules)
	return layer.Output{Text: text, Changes: n, Improvements: improvements}, nil
}
