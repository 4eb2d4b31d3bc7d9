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
	"fmt"
	"log/slog"

	"github.com/AleutianAI/layerfix/pkg/ux"
	"github.com/AleutianAI/layerfix/services/layerfix/cache"
	"github.com/AleutianAI/layerfix/services/layerfix/diagnostic"
	"github.com/AleutianAI/layerfix/services/layerfix/engine"
	"github.com/AleutianAI/layerfix/services/layerfix/layer"
	"github.com/AleutianAI/layerfix/services/layerfix/layers"
	"github.com/AleutianAI/layerfix/services/layerfix/pipeline"
	"github.com/AleutianAI/layerfix/services/layerfix/safety"
	"github.com/AleutianAI/layerfix/services/layerfix/storage/badger"
)

// buildEngine wires the default layers, the safety catalogue and, when
// withCache is set, the result cache with its on-disk tier. The returned
// cleanup closes the tier.
func (a *app) buildEngine(withCache bool) (*engine.Engine, func(), error) {
	logger := a.logger.Slog()
	cleanup := func() {}

	reg, err := layers.NewDefaultRegistry()
	if err != nil {
		return nil, cleanup, err
	}

	validatorOpts := []safety.Option{safety.WithLogger(logger)}
	if a.cfg.SafetyCatalogue != "" {
		cat, err := safety.LoadCatalogue(a.cfg.SafetyCatalogue)
		if err != nil {
			return nil, cleanup, fmt.Errorf("safety catalogue: %w", err)
		}
		validatorOpts = append(validatorOpts, safety.WithCatalogue(cat))
	}
	validator, err := safety.NewValidator(validatorOpts...)
	if err != nil {
		return nil, cleanup, err
	}

	opts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithPipelineOptions(
			pipeline.WithLogger(logger),
			pipeline.WithValidator(validator),
			pipeline.WithDefaultTimeout(a.cfg.Timeout),
		),
	}

	if withCache && a.cfg.Cache.Enabled {
		cacheOpts := []cache.Option{
			cache.WithMaxEntries(a.cfg.Cache.MaxEntries),
			cache.WithMaxAge(a.cfg.Cache.TTL),
		}
		if a.cfg.Cache.Dir != "" {
			db, err := openCacheDB(a.cfg, logger)
			if err != nil {
				a.logger.Warn("persistent cache unavailable, using memory only",
					slog.String("dir", a.cfg.Cache.Dir),
					slog.String("error", err.Error()),
				)
			} else {
				cacheOpts = append(cacheOpts, cache.WithTier(badger.NewResultTier(db)))
				cleanup = func() {
					if err := db.Close(); err != nil {
						a.logger.Warn("close cache", slog.String("error", err.Error()))
					}
				}
			}
		}
		opts = append(opts, engine.WithCache(cache.New(logger, cacheOpts...)))
	}

	eng, err := engine.New(reg, opts...)
	if err != nil {
		cleanup()
		return nil, func() {}, err
	}
	return eng, cleanup, nil
}

func openCacheDB(cfg Config, logger *slog.Logger) (*badger.DB, error) {
	bc := badger.DefaultConfig(cfg.Cache.Dir)
	bc.TTL = cfg.Cache.TTL
	bc.Logger = logger
	return badger.Open(bc)
}

func toIDs(ids []int) []layer.ID {
	out := make([]layer.ID, len(ids))
	for i, id := range ids {
		out[i] = layer.ID(id)
	}
	return out
}

func fromIDs(ids []layer.ID) []int {
	out := make([]int, len(ids))
	for i, id := range ids {
		out[i] = int(id)
	}
	return out
}

func layerInfos(descs []layer.Descriptor) []ux.LayerInfo {
	out := make([]ux.LayerInfo, len(descs))
	for i, d := range descs {
		out[i] = ux.LayerInfo{
			ID:           int(d.ID),
			Name:         d.Name,
			Description:  d.Description,
			Dependencies: fromIDs(d.Dependencies),
			Critical:     d.Critical,
			Structural:   d.Capabilities.Structural,
			Textual:      d.Capabilities.Textual,
			FileTypes:    d.FileTypes,
		}
	}
	return out
}

// fileReport converts a run into the printer's view.
func fileReport(path string, r *pipeline.Result, diags []diagnostic.Diagnostic) ux.FileReport {
	rep := ux.FileReport{
		Path:      path,
		AutoAdded: fromIDs(r.Resolution.AutoAdded),
		Changed:   r.Changed(),
		DryRun:    r.DryRun,
	}
	if r.Aborted {
		rep.Aborted = r.AbortReason
	}
	for _, o := range r.Outcomes {
		rep.Outcomes = append(rep.Outcomes, ux.OutcomeRow{
			LayerID:  int(o.LayerID),
			Name:     o.Name,
			Status:   string(o.Status),
			Skipped:  o.Skipped,
			Changes:  o.Changes,
			Elapsed:  o.Elapsed,
			Strategy: string(o.Strategy),
			Reason:   o.Reason(),
			Warnings: o.Warnings,
		})
	}
	for _, d := range diags {
		if d.Suggestion != "" {
			rep.Suggestions = append(rep.Suggestions, fmt.Sprintf("layer %d: %s", d.LayerID, d.Suggestion))
		}
	}
	return rep
}
