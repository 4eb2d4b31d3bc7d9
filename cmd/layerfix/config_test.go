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
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "layerfix.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfig_MissingDefaultUsesDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("LAYERFIX_LOG_LEVEL", "")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.True(t, cfg.Backup)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, filepath.Join(os.Getenv("HOME"), ".layerfix", "cache"), cfg.Cache.Dir)
}

func TestLoadConfig_OverlaysFile(t *testing.T) {
	t.Setenv("LAYERFIX_LOG_LEVEL", "")
	path := writeConfig(t, `
log_level: debug
output: plain
layers: [3, 5]
workers: 4
timeout: 5s
backup: false
cache:
  enabled: false
  dir: ""
server:
  port: 9000
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "plain", cfg.Output)
	assert.Equal(t, []int{3, 5}, cfg.Layers)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.False(t, cfg.Backup)
	assert.False(t, cfg.Cache.Enabled)
	assert.Empty(t, cfg.Cache.Dir)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
}

func TestLoadConfig_EnvOverridesLogLevel(t *testing.T) {
	t.Setenv("LAYERFIX_LOG_LEVEL", "ERROR")
	cfg, err := LoadConfig(writeConfig(t, "log_level: debug\n"))
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.LogLevel)
}

func TestLoadConfig_Errors(t *testing.T) {
	t.Setenv("LAYERFIX_LOG_LEVEL", "")
	tests := []struct {
		name string
		body string
	}{
		{"bad output", "output: fancy\n"},
		{"bad layer", "layers: [0]\n"},
		{"bad port", "server:\n  port: 70000\n"},
		{"bad yaml", "layers: [1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err, "an explicit path must exist")
}
