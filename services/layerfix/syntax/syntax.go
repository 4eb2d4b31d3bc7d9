// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package syntax parses layer input and output with tree-sitter and reports
// syntax errors.
//
// The same grammar selection is used by structural transforms and by the
// safety validator so that a transform never produces text the validator
// would read differently.
package syntax

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Language identifies the grammar used for a filename hint.
type Language string

const (
	LanguageTSX        Language = "tsx"
	LanguageTypeScript Language = "typescript"
	LanguageJavaScript Language = "javascript"
	LanguageJSON       Language = "json"

	// LanguageNone means no grammar applies; syntax checks are skipped.
	LanguageNone Language = "none"
)

// ErrUnsupportedLanguage is returned by Parse for hints with no tree-sitter grammar.
var ErrUnsupportedLanguage = errors.New("no tree-sitter grammar for file type")

// DetectLanguage maps a filename hint to a grammar.
//
// An empty hint selects TSX, which accepts TypeScript, JavaScript and JSX
// snippets alike.
func DetectLanguage(filename string) Language {
	if filename == "" {
		return LanguageTSX
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".tsx":
		return LanguageTSX
	case ".ts", ".mts", ".cts":
		return LanguageTypeScript
	case ".js", ".jsx", ".mjs", ".cjs":
		return LanguageJavaScript
	case ".json":
		return LanguageJSON
	default:
		return LanguageNone
	}
}

func grammar(lang Language) *sitter.Language {
	switch lang {
	case LanguageTSX:
		return tsx.GetLanguage()
	case LanguageTypeScript:
		return typescript.GetLanguage()
	case LanguageJavaScript:
		return javascript.GetLanguage()
	default:
		return nil
	}
}

// Parse parses text with the grammar selected by filename.
//
// Outputs:
//
//	*sitter.Tree - The tree. Caller must Close it.
//	error - ErrUnsupportedLanguage for JSON and unknown hints, or a parser error.
func Parse(ctx context.Context, text, filename string) (*sitter.Tree, error) {
	lang := grammar(DetectLanguage(filename))
	if lang == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, filename)
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang)

	tree, err := parser.ParseCtx(ctx, nil, []byte(text))
	if err != nil {
		return nil, fmt.Errorf("parsing: %w", err)
	}
	return tree, nil
}

// Problem is one syntax error location.
type Problem struct {
	// Line is 1-indexed.
	Line int `json:"line"`

	// Column is 1-indexed.
	Column int `json:"column"`

	// Message describes the problem.
	Message string `json:"message"`
}

// String formats the problem as "line L, column C: message".
func (p Problem) String() string {
	return fmt.Sprintf("line %d, column %d: %s", p.Line, p.Column, p.Message)
}

// Report is the result of checking one text.
type Report struct {
	Language Language `json:"language"`

	// Checked is false when no grammar applies to the file type.
	Checked bool `json:"checked"`

	// ErrorCount is the number of ERROR and MISSING nodes.
	ErrorCount int `json:"error_count"`

	// Problems lists up to maxProblems errors in document order.
	Problems []Problem `json:"problems,omitempty"`
}

// Valid reports whether the text parsed cleanly (or was not checked).
func (r Report) Valid() bool {
	return r.ErrorCount == 0
}

// Message summarizes the first problem, or "" when valid.
func (r Report) Message() string {
	if len(r.Problems) == 0 {
		return ""
	}
	return r.Problems[0].String()
}

const maxProblems = 10

// Check parses text and collects syntax errors.
//
// Description:
//
//	TypeScript, TSX and JavaScript are parsed with tree-sitter; every ERROR
//	and MISSING node is counted. JSON is checked with encoding/json. Other
//	file types are reported as unchecked and valid.
//
// Thread Safety: Safe for concurrent use; a parser is created per call.
func Check(ctx context.Context, text, filename string) (Report, error) {
	lang := DetectLanguage(filename)
	report := Report{Language: lang}

	switch lang {
	case LanguageNone:
		return report, nil
	case LanguageJSON:
		report.Checked = true
		checkJSON(text, &report)
		return report, nil
	}

	tree, err := Parse(ctx, text, filename)
	if err != nil {
		return report, err
	}
	defer tree.Close()

	report.Checked = true
	root := tree.RootNode()
	if !root.HasError() {
		return report, nil
	}
	collectProblems(root, []byte(text), &report)
	return report, nil
}

// collectProblems walks the tree without descending into ERROR nodes, so a
// single unparseable region counts once.
func collectProblems(node *sitter.Node, src []byte, report *Report) {
	if node == nil {
		return
	}
	if node.IsError() || node.IsMissing() {
		report.ErrorCount++
		if len(report.Problems) < maxProblems {
			report.Problems = append(report.Problems, describe(node, src))
		}
		if node.IsError() {
			return
		}
	}
	if !node.HasError() {
		return
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		collectProblems(node.Child(i), src, report)
	}
}

func describe(node *sitter.Node, src []byte) Problem {
	p := Problem{
		Line:   int(node.StartPoint().Row) + 1,
		Column: int(node.StartPoint().Column) + 1,
	}
	if node.IsMissing() {
		p.Message = fmt.Sprintf("missing %q", node.Type())
		return p
	}
	snippet := node.Content(src)
	if len(snippet) > 40 {
		snippet = snippet[:40] + "..."
	}
	snippet = strings.ReplaceAll(snippet, "\n", " ")
	p.Message = fmt.Sprintf("unexpected %q", snippet)
	return p
}

func checkJSON(text string, report *Report) {
	var v any
	err := json.Unmarshal([]byte(text), &v)
	if err == nil {
		return
	}
	report.ErrorCount = 1

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		line, col := position(text, int(syntaxErr.Offset))
		report.Problems = []Problem{{Line: line, Column: col, Message: syntaxErr.Error()}}
		return
	}
	report.Problems = []Problem{{Line: 1, Column: 1, Message: err.Error()}}
}

// position converts a byte offset into a 1-indexed line and column.
func position(text string, offset int) (int, int) {
	if offset > len(text) {
		offset = len(text)
	}
	line, col := 1, 1
	for _, r := range text[:offset] {
		if r == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return line, col
}
