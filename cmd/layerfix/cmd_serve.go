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
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/layerfix/services/layerfix"
	"github.com/AleutianAI/layerfix/services/layerfix/telemetry"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var (
		host      string
		port      int
		noMetrics bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the layer engine over HTTP",
		Long: `Serve exposes POST /v1/layerfix/run, GET /v1/layerfix/layers,
POST /v1/layerfix/diagnose and GET /v1/layerfix/health. Prometheus
metrics are served on /metrics unless --no-metrics is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("host") {
				host = a.cfg.Server.Host
			}
			if !cmd.Flags().Changed("port") {
				port = a.cfg.Server.Port
			}
			return a.serve(cmd.Context(), net.JoinHostPort(host, strconv.Itoa(port)), !noMetrics)
		},
	}
	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "listen host")
	cmd.Flags().IntVarP(&port, "port", "p", 8087, "listen port")
	cmd.Flags().BoolVar(&noMetrics, "no-metrics", false, "do not serve /metrics")
	return cmd
}

func (a *app) serve(ctx context.Context, addr string, metrics bool) error {
	tcfg := a.cfg.Telemetry
	if metrics && tcfg.MetricExporter == "none" {
		tcfg.MetricExporter = "prometheus"
	}
	if err := a.initTelemetry(ctx, tcfg); err != nil {
		return err
	}

	eng, cleanup, err := a.buildEngine(true)
	if err != nil {
		return err
	}
	defer cleanup()

	var metricsHandler http.Handler
	if metrics && tcfg.MetricExporter == "prometheus" {
		metricsHandler = telemetry.MetricsHandler()
	}

	gin.SetMode(gin.ReleaseMode)
	handlers := layerfix.NewHandlers(eng, a.logger.Slog())
	srv := &http.Server{
		Addr:              addr,
		Handler:           layerfix.NewRouter(handlers, metricsHandler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	a.printer.Success("Listening on http://" + ln.Addr().String())
	a.logger.Info("server started", slog.String("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

