// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/layerfix/pkg/ux"
	"github.com/AleutianAI/layerfix/services/layerfix/diffstat"
	"github.com/AleutianAI/layerfix/services/layerfix/engine"
	"github.com/AleutianAI/layerfix/services/layerfix/layer"
	"github.com/AleutianAI/layerfix/services/layerfix/pipeline"
)

type runFlags struct {
	layers      []int
	dryRun      bool
	verbose     bool
	timeout     time.Duration
	noCache     bool
	workers     int
	backup      bool
	noBackup    bool
	diff        bool
	interactive bool
	watch       bool
	stdinName   string
}

func newRunCmd(a *app) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run [path...]",
		Short: "Run fix layers over files or directories",
		Long: `Run applies the selected layers to every supported file under the given
paths. Missing dependencies of a selected layer are added automatically.
Use "-" to read from stdin and write the result to stdout.`,
		Example: `  layerfix run src/
  layerfix run --layers 3 --dry-run --diff src/App.tsx
  cat App.tsx | layerfix run --stdin-filename App.tsx -`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, a, f, args)
		},
	}

	fl := cmd.Flags()
	fl.IntSliceVarP(&f.layers, "layers", "l", nil, "layer ids to run (default: all, or the config's layers)")
	fl.BoolVar(&f.dryRun, "dry-run", false, "report changes without writing files")
	fl.BoolVarP(&f.verbose, "verbose", "v", false, "log every layer at info level")
	fl.DurationVar(&f.timeout, "timeout", 0, "per-layer timeout (default from config)")
	fl.BoolVar(&f.noCache, "no-cache", false, "bypass the result cache")
	fl.IntVarP(&f.workers, "workers", "w", 0, "files processed concurrently (default from config, then GOMAXPROCS)")
	fl.BoolVar(&f.backup, "backup", true, "write <file>.layerfix.bak before overwriting")
	fl.BoolVar(&f.noBackup, "no-backup", false, "do not write backups")
	fl.BoolVar(&f.diff, "diff", false, "print a unified diff of each change")
	fl.BoolVarP(&f.interactive, "interactive", "i", false, "pick layers interactively")
	fl.BoolVar(&f.watch, "watch", false, "re-run on file changes until interrupted")
	fl.StringVar(&f.stdinName, "stdin-filename", "stdin.tsx", "filename hint when reading from stdin")
	return cmd
}

func runRun(cmd *cobra.Command, a *app, f *runFlags, args []string) error {
	ctx := cmd.Context()
	if err := a.initTelemetry(ctx, a.cfg.Telemetry); err != nil {
		return err
	}

	eng, cleanup, err := a.buildEngine(!f.noCache)
	if err != nil {
		return err
	}
	defer cleanup()

	ids := f.layers
	if !cmd.Flags().Changed("layers") && len(a.cfg.Layers) > 0 {
		ids = a.cfg.Layers
	}
	if f.interactive {
		if ux.IsTerminal(os.Stdin) {
			ids, err = ux.PickLayers(layerInfos(eng.DescribeLayers()), ids)
			if err != nil {
				return err
			}
		} else {
			a.printer.Warning("--interactive needs a terminal, using the selected layers")
		}
	}
	if _, err := eng.Resolve(toIDs(ids)); err != nil {
		return err
	}

	timeout := a.cfg.Timeout
	if f.timeout > 0 {
		timeout = f.timeout
	}
	workers := a.cfg.Workers
	if f.workers > 0 {
		workers = f.workers
	}
	backup := a.cfg.Backup
	if cmd.Flags().Changed("backup") {
		backup = f.backup
	}
	if f.noBackup {
		backup = false
	}

	r := &runner{
		a:      a,
		eng:    eng,
		layers: toIDs(ids),
		opts: pipeline.Options{
			DryRun:       f.dryRun,
			Verbose:      f.verbose,
			Timeout:      timeout,
			CacheEnabled: !f.noCache,
		},
		workers: workers,
		backup:  backup,
		diff:    f.diff,
		written: make(map[string]string),
	}

	if len(args) == 1 && args[0] == "-" {
		return r.runStdin(ctx, f.stdinName)
	}

	files, err := collectFiles(args)
	if err != nil {
		return err
	}
	runErr := r.runFiles(ctx, files)
	if !f.watch {
		return runErr
	}
	if runErr != nil {
		a.printer.Warning(runErr.Error())
	}
	return r.watch(ctx, args)
}

// runner applies one layer selection to files and writes the results.
type runner struct {
	a       *app
	eng     *engine.Engine
	layers  []layer.ID
	opts    pipeline.Options
	workers int
	backup  bool
	diff    bool

	mu      sync.Mutex
	written map[string]string
}

type runSummary struct {
	changed   int
	unchanged int
	failed    int
}

// runFiles transforms files and reports each one. It returns an error when
// any file failed.
func (r *runner) runFiles(ctx context.Context, files []string) error {
	if len(files) == 0 {
		r.a.printer.Warning("no supported files found")
		return nil
	}
	start := time.Now()

	var sum runSummary
	inputs := make([]engine.FileInput, 0, len(files))
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			r.a.printer.Error(fmt.Sprintf("%s: %v", path, err))
			sum.failed++
			continue
		}
		if r.ownWrite(path, string(data)) {
			continue
		}
		inputs = append(inputs, engine.FileInput{Path: path, Text: string(data)})
	}
	if len(inputs) == 0 && sum.failed == 0 {
		return nil
	}

	for i, fr := range r.eng.RunBatch(ctx, inputs, r.layers, r.opts, r.workers) {
		r.handle(inputs[i], fr, &sum)
	}

	r.a.printer.Summary(sum.changed, sum.unchanged, sum.failed, time.Since(start))
	if sum.failed > 0 {
		return fmt.Errorf("%d of %d files failed", sum.failed, len(files))
	}
	return nil
}

func (r *runner) handle(in engine.FileInput, fr engine.FileResult, sum *runSummary) {
	res := fr.Result
	if res == nil {
		r.a.printer.Error(fmt.Sprintf("%s: %v", in.Path, fr.Err))
		sum.failed++
		return
	}

	r.a.printer.Report(fileReport(in.Path, res, r.eng.Diagnostics(res)))
	if fr.Err != nil || res.Aborted {
		sum.failed++
		return
	}
	if !res.Changed() {
		sum.unchanged++
		return
	}

	if r.diff {
		unified, err := diffstat.Unified(in.Path, res.OriginalText, res.FinalText)
		if err != nil {
			r.a.logger.Warn("diff failed", slog.String("path", in.Path), slog.String("error", err.Error()))
		} else {
			r.a.printer.Diff(unified)
		}
	}
	if r.opts.DryRun {
		sum.changed++
		return
	}

	backupPath, err := writeFile(in.Path, []byte(res.FinalText), r.backup)
	if err != nil {
		r.a.printer.Error(fmt.Sprintf("%s: %v", in.Path, err))
		sum.failed++
		return
	}
	r.remember(in.Path, res.FinalText)
	sum.changed++
	r.a.logger.Info("file written",
		slog.String("path", in.Path),
		slog.String("backup", backupPath),
		slog.Int("changes", res.TotalChanges()),
	)
}

// runStdin transforms stdin and writes the result, or its diff, to stdout.
// The report goes to stderr.
func (r *runner) runStdin(ctx context.Context, filename string) error {
	data, err := io.ReadAll(r.a.stdin)
	if err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}

	res, err := r.eng.RunLayers(ctx, string(data), r.layers, filename, r.opts)
	if res == nil {
		return err
	}
	report := ux.NewPrinter(r.a.stderr, r.a.stderr, r.a.printer.Level())
	report.Report(fileReport(filename, res, r.eng.Diagnostics(res)))
	if err != nil {
		return err
	}

	if r.diff {
		unified, err := diffstat.Unified(filename, res.OriginalText, res.FinalText)
		if err != nil {
			return err
		}
		_, err = io.WriteString(r.a.stdout, unified)
		return err
	}
	_, err = io.WriteString(r.a.stdout, res.FinalText)
	return err
}

func (r *runner) remember(path, text string) {
	r.mu.Lock()
	r.written[path] = text
	r.mu.Unlock()
}

// ownWrite reports whether path still holds exactly what this process last
// wrote to it.
func (r *runner) ownWrite(path, text string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	last, ok := r.written[path]
	return ok && last == text
}
