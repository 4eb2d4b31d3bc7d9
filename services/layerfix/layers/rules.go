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
	"fmt"
	"regexp"
	"strings"
)

// Match is what a ReplaceFunc sees of one regular expression match.
type Match struct {
	// Text is the matched text.
	Text string

	// Groups are the capture groups; Groups[0] == Text. Unmatched groups are "".
	Groups []string

	// Before holds up to Rule.Window bytes preceding the match.
	Before string

	// After holds up to Rule.Window bytes following the match.
	After string
}

// ReplaceFunc computes the replacement for one match. Returning false keeps
// the original text and does not count as a change.
type ReplaceFunc func(m Match) (string, bool)

// Rule is one textual rewrite.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp

	// Template is expanded with Pattern.ExpandString when Replace is nil.
	Template string

	// Replace computes replacements with access to the context window.
	Replace ReplaceFunc

	// Window is the context size, in bytes, on each side of a match.
	Window int

	// Improvement describes the rewrite for the layer outcome.
	Improvement string
}

// Apply rewrites every match of r in text.
//
// Outputs:
//
//	string - The rewritten text.
//	int - Number of matches that were replaced.
func (r Rule) Apply(text string) (string, int) {
	locs := r.Pattern.FindAllStringSubmatchIndex(text, -1)
	if len(locs) == 0 {
		return text, 0
	}

	var b strings.Builder
	b.Grow(len(text))
	last, n := 0, 0

	for _, loc := range locs {
		start, end := loc[0], loc[1]
		replacement, ok := r.replacement(text, loc)
		if !ok || replacement == text[start:end] {
			continue
		}
		b.WriteString(text[last:start])
		b.WriteString(replacement)
		last = end
		n++
	}
	if n == 0 {
		return text, 0
	}
	b.WriteString(text[last:])
	return b.String(), n
}

func (r Rule) replacement(text string, loc []int) (string, bool) {
	if r.Replace == nil {
		return string(r.Pattern.ExpandString(nil, r.Template, text, loc)), true
	}

	groups := make([]string, len(loc)/2)
	for i := range groups {
		if loc[2*i] >= 0 {
			groups[i] = text[loc[2*i]:loc[2*i+1]]
		}
	}
	start, end := loc[0], loc[1]
	return r.Replace(Match{
		Text:   groups[0],
		Groups: groups,
		Before: text[max(0, start-r.Window):start],
		After:  text[end:min(len(text), end+r.Window)],
	})
}

// applyRules runs rules in order, each on the previous rule's output.
func applyRules(text string, rules []Rule) (string, int, []string) {
	total := 0
	var improvements []string
	for _, r := range rules {
		var n int
		text, n = r.Apply(text)
		if n > 0 {
			total += n
			improvements = append(improvements, fmt.Sprintf("%s (%d)", r.Improvement, n))
		}
	}
	return text, total, improvements
}

// currentLine returns the part of before that is on the match's line.
func currentLine(before string) string {
	if i := strings.LastIndexByte(before, '\n'); i >= 0 {
		return before[i+1:]
	}
	return before
}

// insideQuote reports which quote character encloses the end of line, or 0.
// Escaped quotes and quotes inside the other kind of string are skipped.
func insideQuote(line string) byte {
	var open byte
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '\\' && open != 0:
			i++
		case open == 0 && (c == '"' || c == '\'' || c == '`'):
			open = c
		case c == open:
			open = 0
		}
	}
	return open
}

type jsxFrame byte

const (
	frameTag   jsxFrame = iota + 1 // between < and >
	frameElem                      // element children (JSX text)
	frameExpr                      // {...} opened from JSX
	frameBrace                     // {...} opened from code
)

// stringContext scans before and reports the quote that encloses its end,
// and whether the end sits in JSX text or a JSX attribute. JSX nesting is
// tracked across lines; ' and " strings end at a newline.
func stringContext(before string) (quote byte, jsx bool) {
	var stack []jsxFrame
	top := func() jsxFrame {
		if len(stack) == 0 {
			return 0
		}
		return stack[len(stack)-1]
	}
	pop := func() {
		if len(stack) > 0 {
			stack = stack[:len(stack)-1]
		}
	}

	closing := false
	for i := 0; i < len(before); i++ {
		c := before[i]
		if quote != 0 {
			switch {
			case c == '\n' && quote != '`':
				quote = 0
			case c == '\\' && top() != frameTag:
				i++
			case c == quote:
				quote = 0
			}
			continue
		}

		switch top() {
		case frameTag:
			switch {
			case c == '"' || c == '\'':
				quote = c
			case c == '{':
				stack = append(stack, frameExpr)
			case c == '>':
				pop()
				switch {
				case closing:
					if top() == frameElem {
						pop()
					}
				case i > 0 && before[i-1] == '/':
				default:
					stack = append(stack, frameElem)
				}
			}
		case frameElem:
			switch c {
			case '<':
				closing = i+1 < len(before) && before[i+1] == '/'
				stack = append(stack, frameTag)
			case '{':
				stack = append(stack, frameExpr)
			}
		default:
			switch {
			case c == '"' || c == '\'' || c == '`':
				quote = c
			case c == '{':
				stack = append(stack, frameBrace)
			case c == '}':
				pop()
			case c == '<' && opensTag(before, i):
				closing = false
				stack = append(stack, frameTag)
			}
		}
	}

	t := top()
	return quote, t == frameElem || t == frameTag
}

// opensTag reports whether the < at i starts a JSX element rather than a
// comparison or a type argument.
func opensTag(s string, i int) bool {
	if i+1 >= len(s) {
		return false
	}
	if next := s[i+1]; next != '>' && !isIdentStart(next) {
		return false
	}
	j := i - 1
	for j >= 0 && (s[j] == ' ' || s[j] == '\t' || s[j] == '\r' || s[j] == '\n') {
		j--
	}
	if j < 0 {
		return true
	}
	if strings.IndexByte("(,=?:{}[>&|;!", s[j]) >= 0 {
		return true
	}
	return strings.HasSuffix(s[:j+1], "return")
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
