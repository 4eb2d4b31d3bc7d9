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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestCollectFiles(t *testing.T) {
	root := t.TempDir()
	for _, p := range []string{
		"src/App.tsx",
		"src/util.ts",
		"src/types.d.ts",
		"src/App.tsx" + backupSuffix,
		"src/data.json",
		"tsconfig.json",
		"package.json",
		"README.md",
		"node_modules/react/index.js",
		".next/server/page.js",
		"dist/bundle.js",
	} {
		touch(t, filepath.Join(root, p), "x")
	}
	extra := filepath.Join(root, "notes.json")
	touch(t, extra, "{}")

	files, err := collectFiles([]string{root, extra, filepath.Join(root, "src", "App.tsx")})
	require.NoError(t, err)

	var rel []string
	for _, f := range files {
		r, err := filepath.Rel(root, f)
		require.NoError(t, err)
		rel = append(rel, filepath.ToSlash(r))
	}
	assert.Equal(t, []string{
		"notes.json",
		"package.json",
		"src/App.tsx",
		"src/util.ts",
		"tsconfig.json",
	}, rel)
}

func TestCollectFiles_MissingPath(t *testing.T) {
	_, err := collectFiles([]string{filepath.Join(t.TempDir(), "nope")})
	assert.Error(t, err)
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "App.tsx")
	touch(t, path, "old")
	require.NoError(t, os.Chmod(path, 0o600))

	backupPath, err := writeFile(path, []byte("new"), true)
	require.NoError(t, err)
	assert.Equal(t, path+backupSuffix, backupPath)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new", string(got))

	bak, err := os.ReadFile(backupPath)
	require.NoError(t, err)
	assert.Equal(t, "old", string(bak))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "no temp files left behind")
}

func TestWriteFile_NoBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.ts")
	touch(t, path, "old")

	backupPath, err := writeFile(path, []byte("new"), false)
	require.NoError(t, err)
	assert.Empty(t, backupPath)
	assert.NoFileExists(t, path+backupSuffix)
}

func TestWatchSet(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "src", "App.tsx"), "x")
	touch(t, filepath.Join(root, "node_modules", "x", "index.js"), "x")
	other := t.TempDir()
	single := filepath.Join(other, "one.ts")
	touch(t, single, "x")

	ws, err := newWatchSet([]string{filepath.Join(root, "src"), single})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{filepath.Clean(other), filepath.Join(root, "src")}, ws.dirs)
	assert.True(t, ws.wants(filepath.Join(root, "src", "New.tsx")))
	assert.False(t, ws.wants(filepath.Join(root, "src", "App.tsx"+backupSuffix)))
	assert.True(t, ws.wants(single))
	assert.False(t, ws.wants(filepath.Join(other, "two.ts")), "only the named file in a file-only directory")
}
