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
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 200 * time.Millisecond

// watchSet is what a watch session listens to.
type watchSet struct {
	dirs []string

	// files are explicit file arguments.
	files map[string]bool

	// fileOnly marks directories watched only for explicit files.
	fileOnly map[string]bool
}

func newWatchSet(paths []string) (*watchSet, error) {
	ws := &watchSet{files: make(map[string]bool), fileOnly: make(map[string]bool)}
	walked := make(map[string]bool)

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			p = filepath.Clean(p)
			ws.files[p] = true
			if dir := filepath.Dir(p); !walked[dir] {
				ws.fileOnly[dir] = true
			}
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				return nil
			}
			if path != p && skippedDirs[d.Name()] {
				return filepath.SkipDir
			}
			path = filepath.Clean(path)
			walked[path] = true
			delete(ws.fileOnly, path)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	dirs := make(map[string]bool, len(walked)+len(ws.fileOnly))
	for d := range walked {
		dirs[d] = true
	}
	for d := range ws.fileOnly {
		dirs[d] = true
	}
	ws.dirs = slices.Sorted(maps.Keys(dirs))
	return ws, nil
}

// wants reports whether a change to path should trigger a run.
func (ws *watchSet) wants(path string) bool {
	path = filepath.Clean(path)
	if ws.files[path] {
		return true
	}
	return !ws.fileOnly[filepath.Dir(path)] && isCandidate(path)
}

// watch re-runs changed files until ctx is cancelled. Events are debounced
// and files this process just wrote are ignored.
func (r *runner) watch(ctx context.Context, paths []string) error {
	ws, err := newWatchSet(paths)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	for _, d := range ws.dirs {
		if err := watcher.Add(d); err != nil {
			return fmt.Errorf("watch %s: %w", d, err)
		}
	}
	r.a.printer.Info(fmt.Sprintf("Watching %d director(ies). Press Ctrl+C to stop.", len(ws.dirs)))

	pending := make(map[string]bool)
	timer := time.NewTimer(watchDebounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if r.addNewDir(watcher, ws, event) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !ws.wants(event.Name) {
				continue
			}
			pending[filepath.Clean(event.Name)] = true
			timer.Reset(watchDebounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.a.logger.Warn("file watcher error", slog.String("error", err.Error()))

		case <-timer.C:
			changed := slices.Sorted(maps.Keys(pending))
			clear(pending)
			var existing []string
			for _, p := range changed {
				if _, err := os.Stat(p); err == nil {
					existing = append(existing, p)
				}
			}
			if err := r.runFiles(ctx, existing); err != nil {
				r.a.printer.Warning(err.Error())
			}
		}
	}
}

// addNewDir starts watching a directory created under a walked tree.
func (r *runner) addNewDir(watcher *fsnotify.Watcher, ws *watchSet, event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) || ws.fileOnly[filepath.Dir(event.Name)] {
		return false
	}
	info, err := os.Stat(event.Name)
	if err != nil || !info.IsDir() {
		return false
	}
	if !skippedDirs[filepath.Base(event.Name)] {
		if err := watcher.Add(event.Name); err != nil {
			r.a.logger.Warn("watch new directory", slog.String("path", event.Name), slog.String("error", err.Error()))
		}
	}
	return true
}
