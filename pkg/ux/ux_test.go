// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func newTestPrinter(level Level) (*Printer, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	return NewPrinter(&out, &errOut, level), &out, &errOut
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"rich", LevelRich},
		{"PLAIN", LevelPlain},
		{" machine ", LevelMachine},
		{"q", LevelMachine},
		{"bogus", LevelRich},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDetectLevel_EnvOverride(t *testing.T) {
	t.Setenv("LAYERFIX_OUTPUT", "machine")
	if got := DetectLevel(nil); got != LevelMachine {
		t.Errorf("DetectLevel = %q, want machine", got)
	}
}

func TestDetectLevel_NotATerminal(t *testing.T) {
	t.Setenv("LAYERFIX_OUTPUT", "")
	if got := DetectLevel(nil); got != LevelPlain {
		t.Errorf("DetectLevel(nil) = %q, want plain", got)
	}
}

func TestPrinter_MachineLines(t *testing.T) {
	p, out, errOut := newTestPrinter(LevelMachine)
	p.Title("ignored")
	p.Success("done")
	p.Warning("careful")
	p.Error("broken")

	if got := out.String(); got != "OK\tdone\n" {
		t.Errorf("stdout = %q", got)
	}
	if got := errOut.String(); got != "WARN\tcareful\nERROR\tbroken\n" {
		t.Errorf("stderr = %q", got)
	}
}

func TestPrinter_PlainHasNoEscapes(t *testing.T) {
	p, out, _ := newTestPrinter(LevelPlain)
	p.Success("done")
	if strings.Contains(out.String(), "\x1b[") {
		t.Errorf("plain output contains ANSI escapes: %q", out.String())
	}
	if got := out.String(); got != "✓ done\n" {
		t.Errorf("stdout = %q", got)
	}
}

func TestPrinter_Report(t *testing.T) {
	p, out, errOut := newTestPrinter(LevelPlain)
	p.Report(FileReport{
		Path:      "list.tsx",
		AutoAdded: []int{1, 2},
		Outcomes: []OutcomeRow{
			{LayerID: 1, Name: "config", Status: "accepted", Skipped: true},
			{LayerID: 2, Name: "patterns", Status: "accepted", Changes: 0, Strategy: "textual"},
			{LayerID: 3, Name: "components", Status: "reverted", Reason: "Syntax error: line 1"},
		},
		Aborted:     "critical layer 1 failed",
		Suggestions: []string{"Fix the input syntax"},
	})

	got := out.String()
	for _, want := range []string{"list.tsx", "auto-added layers: 1,2", "not applicable", "0 change(s)", "↺ 3", "Syntax error: line 1"} {
		if !strings.Contains(got, want) {
			t.Errorf("report missing %q:\n%s", want, got)
		}
	}
	if !strings.Contains(errOut.String(), "Run aborted: critical layer 1 failed\nFix the input syntax") {
		t.Errorf("stderr = %q", errOut.String())
	}
}

func TestPrinter_ReportMachine(t *testing.T) {
	p, out, _ := newTestPrinter(LevelMachine)
	p.Report(FileReport{
		Path:     "a.ts",
		Outcomes: []OutcomeRow{{LayerID: 2, Status: "accepted", Changes: 3}},
	})
	if got := out.String(); got != "a.ts\t2\taccepted\t3\t\n" {
		t.Errorf("stdout = %q", got)
	}
}

func TestPrinter_Layers(t *testing.T) {
	p, out, _ := newTestPrinter(LevelMachine)
	p.Layers([]LayerInfo{
		{ID: 1, Name: "config", Description: "Config"},
		{ID: 3, Name: "components", Dependencies: []int{1, 2}, Description: "Keys"},
	})
	want := "1\tconfig\t\tConfig\n3\tcomponents\t1,2\tKeys\n"
	if got := out.String(); got != want {
		t.Errorf("stdout = %q, want %q", got, want)
	}
}

func TestPrinter_DiffPlain(t *testing.T) {
	p, out, _ := newTestPrinter(LevelPlain)
	diff := "--- a/x\n+++ b/x\n@@ -1 +1 @@\n-a\n+b\n"
	p.Diff(diff)
	if out.String() != diff {
		t.Errorf("plain diff altered: %q", out.String())
	}
}

func TestPrinter_Summary(t *testing.T) {
	p, out, _ := newTestPrinter(LevelMachine)
	p.Summary(2, 1, 0, time.Second)
	if got := out.String(); got != "SUMMARY\tchanged=2\tunchanged=1\tfailed=0\n" {
		t.Errorf("stdout = %q", got)
	}
}
