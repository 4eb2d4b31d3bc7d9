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
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
log_level: error
output: plain
cache:
  enabled: false
  dir: ""
`

const consoleSource = "const greeting = \"hi\";\nconsole.log(greeting);\nexport default greeting;\n"

const consoleFixed = "const greeting = \"hi\";\nexport default greeting;\n"

func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	return executeWithConfig(t, testConfig, stdin, args...)
}

func executeWithConfig(t *testing.T, config, stdin string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("LAYERFIX_LOG_LEVEL", "")

	var out, errOut bytes.Buffer
	a := newApp(strings.NewReader(stdin), &out, &errOut)
	cmd := newRootCmd(a)
	cmd.SetArgs(append([]string{"--config", writeConfig(t, config)}, args...))
	err := cmd.ExecuteContext(context.Background())
	require.NoError(t, a.teardown())
	return out.String(), errOut.String(), err
}

func TestRun_WritesFileWithBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.ts")
	touch(t, path, consoleSource)

	out, _, err := execute(t, "", "run", "--layers", "2", path)
	require.NoError(t, err)
	assert.Contains(t, out, "app.ts")

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, consoleFixed, string(got))

	bak, err := os.ReadFile(path + backupSuffix)
	require.NoError(t, err)
	assert.Equal(t, consoleSource, string(bak))
}

func TestRun_DryRunLeavesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.ts")
	touch(t, path, consoleSource)

	out, _, err := execute(t, "", "run", "--layers", "2", "--dry-run", "--diff", path)
	require.NoError(t, err)
	assert.Contains(t, out, "-console.log(greeting);")

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, consoleSource, string(got))
	assert.NoFileExists(t, path+backupSuffix)
}

func TestRun_NoBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.ts")
	touch(t, path, consoleSource)

	_, _, err := execute(t, "", "run", "--layers", "2", "--no-backup", path)
	require.NoError(t, err)
	assert.NoFileExists(t, path+backupSuffix)
}

func TestRun_Stdin(t *testing.T) {
	out, errOut, err := execute(t, consoleSource, "run", "--layers", "2", "--stdin-filename", "app.ts", "-")
	require.NoError(t, err)
	assert.Equal(t, consoleFixed, out)
	assert.Contains(t, errOut, "app.ts")
}

func TestRun_UnknownLayer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.ts")
	touch(t, path, consoleSource)

	_, _, err := execute(t, "", "run", "--layers", "42", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "42")
}

func TestRun_CriticalFailureFailsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "package.json")
	touch(t, path, `{"name": "app",}`)

	_, _, err := execute(t, "", "run", "--layers", "1", path)
	require.Error(t, err)

	got, rerr := os.ReadFile(path)
	require.NoError(t, rerr)
	assert.Equal(t, `{"name": "app",}`, string(got))
}

func TestLayers_JSON(t *testing.T) {
	out, _, err := execute(t, "", "layers", "--json")
	require.NoError(t, err)

	var descs []struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &descs))
	require.Len(t, descs, 6)
	for i, d := range descs {
		assert.Equal(t, i+1, d.ID)
		assert.NotEmpty(t, d.Name)
	}
}

func TestLayers_Resolve(t *testing.T) {
	out, _, err := execute(t, "", "layers", "--resolve", "3", "--json")
	require.NoError(t, err)

	var res struct {
		Layers    []int `json:"layers"`
		AutoAdded []int `json:"auto_added"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, []int{1, 2, 3}, res.Layers)
	assert.Equal(t, []int{1, 2}, res.AutoAdded)
}

func TestCache_PathAndClear(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	config := "log_level: error\noutput: plain\ncache:\n  dir: \"" + dir + "\"\n"

	out, _, err := executeWithConfig(t, config, "", "cache", "path")
	require.NoError(t, err)
	assert.Equal(t, dir+"\n", out)

	out, _, err = executeWithConfig(t, config, "", "cache", "clear")
	require.NoError(t, err)
	assert.Contains(t, out, "Cleared cache at "+dir)
	assert.DirExists(t, dir)
}

func TestCache_ClearWithoutDir(t *testing.T) {
	_, _, err := execute(t, "", "cache", "clear")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no cache directory")
}
