// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/layerfix/services/layerfix/cache"
	"github.com/AleutianAI/layerfix/services/layerfix/layer"
	"github.com/AleutianAI/layerfix/services/layerfix/pipeline"
)

func sampleResult() *pipeline.Result {
	return &pipeline.Result{
		RunID:        "run-1",
		OriginalText: "a",
		FinalText:    "b",
		Outcomes: []pipeline.LayerOutcome{
			{LayerID: 1, Name: "config", Status: pipeline.StatusAccepted, Success: true, Text: "b", Changes: 1},
		},
		Resolution:   layer.Resolution{Layers: []layer.ID{1}},
		SuccessCount: 1,
		Elapsed:      3 * time.Millisecond,
	}
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(Config{})
	assert.ErrorIs(t, err, ErrPathRequired)
}

func TestResultTier_RoundTrip(t *testing.T) {
	db, err := Open(InMemoryConfig())
	require.NoError(t, err)
	defer db.Close()

	tier := NewResultTier(db)
	ctx := context.Background()

	_, ok, err := tier.Load(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, tier.Store(ctx, "k", sampleResult()))
	got, ok, err := tier.Load(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sampleResult(), got)
}

func TestResultTier_Purge(t *testing.T) {
	db, err := Open(InMemoryConfig())
	require.NoError(t, err)
	defer db.Close()

	tier := NewResultTier(db)
	ctx := context.Background()
	require.NoError(t, tier.Store(ctx, "k", sampleResult()))
	require.NoError(t, tier.Purge())

	_, ok, err := tier.Load(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResultTier_CancelledContext(t *testing.T) {
	db, err := Open(InMemoryConfig())
	require.NoError(t, err)
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, NewResultTier(db).Store(ctx, "k", sampleResult()), context.Canceled)
}

func TestResultTier_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig(dir)
	cfg.GCInterval = 0

	db, err := Open(cfg)
	require.NoError(t, err)
	require.NoError(t, NewResultTier(db).Store(context.Background(), "k", sampleResult()))
	require.NoError(t, db.Close())
	require.NoError(t, db.Close())

	db, err = Open(cfg)
	require.NoError(t, err)
	defer db.Close()

	got, ok, err := NewResultTier(db).Load(context.Background(), "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "b", got.FinalText)
}

func TestResultTier_BacksResultCache(t *testing.T) {
	db, err := Open(InMemoryConfig())
	require.NoError(t, err)
	defer db.Close()

	tier := NewResultTier(db)
	key := cache.NewKey("a", []layer.ID{1})

	first := cache.New(nil, cache.WithTier(tier))
	require.True(t, first.Put(context.Background(), key, sampleResult()))

	second := cache.New(nil, cache.WithTier(tier))
	got, ok := second.Get(context.Background(), key)
	require.True(t, ok)
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, int64(1), second.Stats().TierHits)
}
