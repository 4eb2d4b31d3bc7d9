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
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Level controls how rich the output is.
type Level string

const (
	// LevelRich uses colors, icons and boxes.
	LevelRich Level = "rich"

	// LevelPlain uses icons without colors.
	LevelPlain Level = "plain"

	// LevelMachine prints tab-separated lines for scripts.
	LevelMachine Level = "machine"
)

// ParseLevel converts a flag or environment value to a Level. Unknown
// values yield LevelRich.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "plain", "p", "minimal":
		return LevelPlain
	case "machine", "m", "quiet", "q":
		return LevelMachine
	default:
		return LevelRich
	}
}

// IsTerminal reports whether f is an interactive terminal.
func IsTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// DetectLevel picks LevelRich for a terminal and LevelPlain otherwise.
// LAYERFIX_OUTPUT overrides the detection.
func DetectLevel(f *os.File) Level {
	if env := os.Getenv("LAYERFIX_OUTPUT"); env != "" {
		return ParseLevel(env)
	}
	if IsTerminal(f) {
		return LevelRich
	}
	return LevelPlain
}

// Printer writes styled output at a fixed level.
type Printer struct {
	out   io.Writer
	err   io.Writer
	level Level
}

// NewPrinter creates a printer. Warnings and errors go to errOut.
func NewPrinter(out, errOut io.Writer, level Level) *Printer {
	return &Printer{out: out, err: errOut, level: level}
}

// Level returns the printer's level.
func (p *Printer) Level() Level {
	return p.level
}

// style renders s with st at LevelRich and leaves it unchanged otherwise.
func (p *Printer) style(st lipgloss.Style, s string) string {
	if p.level != LevelRich {
		return s
	}
	return st.Render(s)
}

func (p *Printer) icon(i Icon) string {
	if p.level != LevelRich {
		return string(i)
	}
	return i.Render()
}

// Title prints a heading. Suppressed in machine mode.
func (p *Printer) Title(text string) {
	if p.level == LevelMachine {
		return
	}
	fmt.Fprintln(p.out, p.style(Styles.Title, text))
}

// Success prints a success line.
func (p *Printer) Success(text string) {
	if p.level == LevelMachine {
		fmt.Fprintf(p.out, "OK\t%s\n", text)
		return
	}
	fmt.Fprintf(p.out, "%s %s\n", p.icon(IconAccepted), p.style(Styles.Success, text))
}

// Warning prints a warning line.
func (p *Printer) Warning(text string) {
	if p.level == LevelMachine {
		fmt.Fprintf(p.err, "WARN\t%s\n", text)
		return
	}
	fmt.Fprintf(p.err, "%s %s\n", p.icon(IconWarning), p.style(Styles.Warning, text))
}

// Error prints an error line.
func (p *Printer) Error(text string) {
	if p.level == LevelMachine {
		fmt.Fprintf(p.err, "ERROR\t%s\n", text)
		return
	}
	fmt.Fprintf(p.err, "%s %s\n", p.icon(IconFailed), p.style(Styles.Error, text))
}

// Info prints an informational line.
func (p *Printer) Info(text string) {
	if p.level == LevelMachine {
		fmt.Fprintln(p.out, text)
		return
	}
	fmt.Fprintf(p.out, "%s %s\n", p.style(Styles.Muted, "│"), text)
}

// Raw writes s unchanged.
func (p *Printer) Raw(s string) {
	fmt.Fprint(p.out, s)
}
