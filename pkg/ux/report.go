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
	"strconv"
	"strings"
	"time"
)

// LayerInfo describes one layer for listing and picking.
type LayerInfo struct {
	ID           int
	Name         string
	Description  string
	Dependencies []int
	Critical     bool
	Structural   bool
	Textual      bool
	FileTypes    []string
}

// OutcomeRow is one layer's outcome as shown to the user.
type OutcomeRow struct {
	LayerID  int
	Name     string
	Status   string
	Skipped  bool
	Changes  int
	Elapsed  time.Duration
	Strategy string
	Reason   string
	Warnings []string
}

// FileReport summarises one file's run.
type FileReport struct {
	Path        string
	Outcomes    []OutcomeRow
	AutoAdded   []int
	Changed     bool
	DryRun      bool
	Aborted     string
	Suggestions []string
}

func outcomeIcon(o OutcomeRow) Icon {
	switch {
	case o.Skipped:
		return IconSkipped
	case o.Status == "accepted" && len(o.Warnings) > 0:
		return IconWarning
	case o.Status == "accepted":
		return IconAccepted
	case o.Status == "reverted":
		return IconReverted
	default:
		return IconFailed
	}
}

// Report prints a file's outcomes.
func (p *Printer) Report(r FileReport) {
	if p.level == LevelMachine {
		for _, o := range r.Outcomes {
			fmt.Fprintf(p.out, "%s\t%d\t%s\t%d\t%s\n", r.Path, o.LayerID, o.Status, o.Changes, o.Reason)
		}
		return
	}

	header := r.Path
	if r.DryRun {
		header += " " + p.style(Styles.Muted, "(dry run)")
	}
	fmt.Fprintln(p.out, p.style(Styles.Bold, header))
	if len(r.AutoAdded) > 0 {
		fmt.Fprintf(p.out, "  %s\n", p.style(Styles.Muted, "auto-added layers: "+joinInts(r.AutoAdded)))
	}

	for _, o := range r.Outcomes {
		line := fmt.Sprintf("  %s %d %-11s", p.icon(outcomeIcon(o)), o.LayerID, o.Name)
		switch {
		case o.Skipped:
			line += p.style(Styles.Muted, "not applicable")
		case o.Status == "accepted":
			line += fmt.Sprintf("%d change(s)", o.Changes)
			if o.Strategy != "" {
				line += p.style(Styles.Muted, fmt.Sprintf(" [%s, %s]", o.Strategy, o.Elapsed.Round(time.Millisecond)))
			}
		default:
			line += p.style(Styles.Warning, o.Reason)
		}
		fmt.Fprintln(p.out, line)
		for _, w := range o.Warnings {
			fmt.Fprintf(p.out, "      %s\n", p.style(Styles.Warning, w))
		}
	}

	if r.Aborted != "" {
		msg := "Run aborted: " + r.Aborted
		if len(r.Suggestions) > 0 {
			msg += "\n" + strings.Join(r.Suggestions, "\n")
		}
		if p.level == LevelRich {
			fmt.Fprintln(p.err, Styles.ErrorBox.Render(msg))
		} else {
			fmt.Fprintln(p.err, msg)
		}
	}
}

// Layers prints the layer table.
func (p *Printer) Layers(layers []LayerInfo) {
	for _, l := range layers {
		if p.level == LevelMachine {
			fmt.Fprintf(p.out, "%d\t%s\t%s\t%s\n", l.ID, l.Name, joinInts(l.Dependencies), l.Description)
			continue
		}
		var tags []string
		if l.Critical {
			tags = append(tags, "critical")
		}
		if l.Structural {
			tags = append(tags, "structural")
		}
		if l.Textual {
			tags = append(tags, "textual")
		}
		if len(l.Dependencies) > 0 {
			tags = append(tags, "needs "+joinInts(l.Dependencies))
		}
		fmt.Fprintf(p.out, "%s %s  %s\n",
			p.style(Styles.Title, fmt.Sprintf("%d", l.ID)),
			p.style(Styles.Bold, fmt.Sprintf("%-11s", l.Name)),
			l.Description,
		)
		if len(tags) > 0 {
			fmt.Fprintf(p.out, "  %s\n", p.style(Styles.Muted, strings.Join(tags, " · ")))
		}
	}
}

// Diff prints a unified diff, coloring added and removed lines.
func (p *Printer) Diff(unified string) {
	if p.level != LevelRich {
		fmt.Fprint(p.out, unified)
		return
	}
	for _, line := range strings.SplitAfter(unified, "\n") {
		trimmed := strings.TrimSuffix(line, "\n")
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			fmt.Fprintln(p.out, Styles.Bold.Render(trimmed))
		case strings.HasPrefix(line, "+"):
			fmt.Fprintln(p.out, Styles.Added.Render(trimmed))
		case strings.HasPrefix(line, "-"):
			fmt.Fprintln(p.out, Styles.Removed.Render(trimmed))
		case strings.HasPrefix(line, "@@"):
			fmt.Fprintln(p.out, Styles.Hunk.Render(trimmed))
		case line != "":
			fmt.Fprintln(p.out, trimmed)
		}
	}
}

// Summary prints batch totals.
func (p *Printer) Summary(changed, unchanged, failed int, elapsed time.Duration) {
	if p.level == LevelMachine {
		fmt.Fprintf(p.out, "SUMMARY\tchanged=%d\tunchanged=%d\tfailed=%d\n", changed, unchanged, failed)
		return
	}
	fmt.Fprintf(p.out, "\n%s %s  %s %s  %s %s  %s\n",
		p.style(Styles.Success, strconv.Itoa(changed)), p.style(Styles.Muted, "changed"),
		p.style(Styles.Bold, strconv.Itoa(unchanged)), p.style(Styles.Muted, "unchanged"),
		p.style(Styles.Error, strconv.Itoa(failed)), p.style(Styles.Muted, "failed"),
		p.style(Styles.Muted, elapsed.Round(time.Millisecond).String()),
	)
}

func joinInts(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}
