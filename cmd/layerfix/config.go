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
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/layerfix/services/layerfix/telemetry"
)

// Config is the CLI configuration file, ~/.layerfix/layerfix.yaml by default.
type Config struct {
	// LogLevel is debug, info, warn or error. LAYERFIX_LOG_LEVEL overrides it.
	LogLevel string `yaml:"log_level" validate:"omitempty,oneof=debug info warn warning error"`

	// LogDir enables a JSON log file in this directory.
	LogDir string `yaml:"log_dir"`

	// Output is rich, plain or machine. Empty detects from the terminal.
	Output string `yaml:"output" validate:"omitempty,oneof=rich plain machine"`

	// Layers is the default layer selection. Empty runs every layer.
	Layers []int `yaml:"layers" validate:"omitempty,dive,min=1"`

	// Workers bounds concurrent files. Zero uses GOMAXPROCS.
	Workers int `yaml:"workers" validate:"min=0,max=256"`

	// Timeout bounds each layer.
	Timeout time.Duration `yaml:"timeout" validate:"min=0"`

	// Backup writes <file>.layerfix.bak before overwriting.
	Backup bool `yaml:"backup"`

	// SafetyCatalogue replaces the built-in safety catalogue.
	SafetyCatalogue string `yaml:"safety_catalogue"`

	Cache     CacheConfig      `yaml:"cache"`
	Server    ServerConfig     `yaml:"server"`
	Telemetry telemetry.Config `yaml:"telemetry"`
}

// CacheConfig controls the result cache.
type CacheConfig struct {
	Enabled bool `yaml:"enabled"`

	// Dir holds the persistent tier. Empty keeps the cache in memory.
	Dir string `yaml:"dir"`

	MaxEntries int           `yaml:"max_entries" validate:"min=0"`
	TTL        time.Duration `yaml:"ttl" validate:"min=0"`
}

// ServerConfig controls `layerfix serve`.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port" validate:"min=1,max=65535"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		LogLevel: "warn",
		Timeout:  30 * time.Second,
		Backup:   true,
		Cache: CacheConfig{
			Enabled:    true,
			Dir:        "~/.layerfix/cache",
			MaxEntries: 256,
			TTL:        7 * 24 * time.Hour,
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8087,
		},
		Telemetry: telemetry.DefaultConfig(),
	}
}

// defaultConfigPath returns ~/.layerfix/layerfix.yaml.
func defaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not find the user's home directory: %w", err)
	}
	return filepath.Join(home, ".layerfix", "layerfix.yaml"), nil
}

// LoadConfig reads path over the defaults and validates the result.
//
// An empty path reads the default location, which may be absent. An
// explicit path must exist.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		p, err := defaultConfigPath()
		if err != nil {
			return cfg, err
		}
		path = p
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	case !explicit && errors.Is(err, fs.ErrNotExist):
	default:
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	if lvl := os.Getenv("LAYERFIX_LOG_LEVEL"); lvl != "" {
		cfg.LogLevel = strings.ToLower(lvl)
	}
	cfg.LogDir = expandHome(cfg.LogDir)
	cfg.Cache.Dir = expandHome(cfg.Cache.Dir)
	cfg.SafetyCatalogue = expandHome(cfg.SafetyCatalogue)

	if err := validator.New().Struct(cfg); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
