// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package diffstat counts and renders the difference between two texts.
package diffstat

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/sourcegraph/go-diff/diff"
)

// CountEdits returns the number of discrete edits between before and after.
//
// Description:
//
//	The texts are diffed line by line. Each maximal run of inserted or
//	deleted lines between two unchanged regions counts as one edit, so a
//	rewritten line is one edit, not two.
//
// Thread Safety: Safe for concurrent use.
func CountEdits(before, after string) int {
	if before == after {
		return 0
	}

	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0

	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lines)

	edits := 0
	inEdit := false
	for _, d := range diffs {
		if d.Type == diffmatchpatch.DiffEqual {
			inEdit = false
			continue
		}
		if !inEdit {
			edits++
			inEdit = true
		}
	}
	return edits
}

// Unified renders a unified diff with three lines of context.
//
// An empty string is returned when the texts are equal.
func Unified(filename, before, after string) (string, error) {
	if before == after {
		return "", nil
	}
	if filename == "" {
		filename = "input"
	}
	ud := difflib.UnifiedDiff{
		A:        difflib.SplitLines(ensureNewline(before)),
		B:        difflib.SplitLines(ensureNewline(after)),
		FromFile: "a/" + filename,
		ToFile:   "b/" + filename,
		Context:  3,
	}
	out, err := difflib.GetUnifiedDiffString(ud)
	if err != nil {
		return "", fmt.Errorf("rendering diff: %w", err)
	}
	return out, nil
}

func ensureNewline(s string) string {
	if s == "" || strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}

// Stats summarizes a unified diff.
type Stats struct {
	Files        int `json:"files"`
	LinesAdded   int `json:"lines_added"`
	LinesRemoved int `json:"lines_removed"`
	Hunks        int `json:"hunks"`
}

// ParseStats reads a (multi-file) unified diff and counts its changes.
func ParseStats(unified string) (Stats, error) {
	if unified == "" {
		return Stats{}, nil
	}
	fileDiffs, err := diff.NewMultiFileDiffReader(strings.NewReader(unified)).ReadAllFiles()
	if err != nil {
		return Stats{}, fmt.Errorf("parsing diff: %w", err)
	}

	stats := Stats{Files: len(fileDiffs)}
	for _, fd := range fileDiffs {
		stats.Hunks += len(fd.Hunks)
		for _, hunk := range fd.Hunks {
			for _, line := range strings.Split(string(hunk.Body), "\n") {
				switch {
				case strings.HasPrefix(line, "+"):
					stats.LinesAdded++
				case strings.HasPrefix(line, "-"):
					stats.LinesRemoved++
				}
			}
		}
	}
	return stats, nil
}
