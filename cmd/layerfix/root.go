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
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/layerfix/pkg/logging"
	"github.com/AleutianAI/layerfix/pkg/ux"
	"github.com/AleutianAI/layerfix/services/layerfix/telemetry"
)

// app carries what every subcommand needs once the root command has
// loaded the configuration.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	configPath string
	logLevel   string
	output     string

	cfg     Config
	logger  *logging.Logger
	printer *ux.Printer

	shutdownTelemetry func(context.Context) error
}

func newApp(stdin io.Reader, stdout, stderr io.Writer) *app {
	return &app{stdin: stdin, stdout: stdout, stderr: stderr}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "layerfix",
		Short: "Apply ordered, validated fix layers to TypeScript and React sources",
		Long: `layerfix runs numbered transformation layers over source files.
Each layer is parsed and validated before its output is accepted, and a
layer whose output breaks the file is reverted without stopping the rest.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	root.SetIn(a.stdin)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default ~/.layerfix/layerfix.yaml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&a.output, "output", "", "output style: rich, plain, machine")

	root.AddCommand(
		newRunCmd(a),
		newLayersCmd(a),
		newServeCmd(a),
		newCacheCmd(a),
	)
	return root
}

// setup loads the configuration and builds the logger and printer.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if a.output != "" {
		cfg.Output = a.output
	}
	a.cfg = cfg

	level, ok := logging.ParseLevel(cfg.LogLevel)
	if !ok {
		return fmt.Errorf("unknown log level %q", cfg.LogLevel)
	}
	a.logger = logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.LogDir,
		Service: "layerfix",
		Output:  a.stderr,
	})

	outLevel := ux.ParseLevel(cfg.Output)
	if cfg.Output == "" {
		outLevel = ux.DetectLevel(os.Stdout)
	}
	a.printer = ux.NewPrinter(a.stdout, a.stderr, outLevel)
	return nil
}

// initTelemetry starts exporters for commands that do real work.
func (a *app) initTelemetry(ctx context.Context, cfg telemetry.Config) error {
	shutdown, err := telemetry.Init(ctx, cfg)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	a.shutdownTelemetry = shutdown
	return nil
}

// teardown flushes telemetry and closes the log file. It is safe to call
// when setup never ran.
func (a *app) teardown() error {
	var errs []error
	if a.shutdownTelemetry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		errs = append(errs, a.shutdownTelemetry(ctx))
		cancel()
		a.shutdownTelemetry = nil
	}
	if a.logger != nil {
		errs = append(errs, a.logger.Close())
		a.logger = nil
	}
	return errors.Join(errs...)
}
