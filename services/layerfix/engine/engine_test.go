// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/layerfix/services/layerfix/cache"
	"github.com/AleutianAI/layerfix/services/layerfix/layer"
	"github.com/AleutianAI/layerfix/services/layerfix/layers"
	"github.com/AleutianAI/layerfix/services/layerfix/pipeline"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

const mapSource = "const list = items.map(i => <li>{i.name}</li>);\n"

func newEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	reg, err := layers.NewDefaultRegistry()
	require.NoError(t, err)
	e, err := New(reg, append([]Option{WithLogger(discard)}, opts...)...)
	require.NoError(t, err)
	return e
}

func TestNew_NilRegistry(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrNilRegistry)
}

func TestRunLayers_WithoutCache(t *testing.T) {
	e := newEngine(t)
	res, err := e.RunLayers(context.Background(), mapSource, []layer.ID{3}, "list.tsx", pipeline.Options{CacheEnabled: true})
	require.NoError(t, err)
	assert.Contains(t, res.FinalText, "key={index}")
	assert.Nil(t, e.Cache())
}

func TestRunLayers_CacheHit(t *testing.T) {
	c := cache.New(discard)
	e := newEngine(t, WithCache(c))
	ctx := context.Background()

	first, err := e.RunLayers(ctx, mapSource, []layer.ID{3}, "list.tsx", pipeline.Options{CacheEnabled: true})
	require.NoError(t, err)
	second, err := e.RunLayers(ctx, mapSource, []layer.ID{1, 2, 3}, "list.tsx", pipeline.Options{CacheEnabled: true, DryRun: true})
	require.NoError(t, err)

	assert.Equal(t, first.FinalText, second.FinalText)
	assert.Equal(t, first.RunID, second.RunID)
	assert.True(t, second.DryRun)
	assert.False(t, first.DryRun)
	assert.Equal(t, int64(1), c.Stats().Hits)
}

func TestRunLayers_CacheScopedByFilename(t *testing.T) {
	c := cache.New(discard)
	e := newEngine(t, WithCache(c))
	ctx := context.Background()

	_, err := e.RunLayers(ctx, mapSource, []layer.ID{3}, "a.tsx", pipeline.Options{CacheEnabled: true})
	require.NoError(t, err)
	_, err = e.RunLayers(ctx, mapSource, []layer.ID{3}, "a.ts", pipeline.Options{CacheEnabled: true})
	require.NoError(t, err)

	assert.Equal(t, 2, c.Len())
	assert.Zero(t, c.Stats().Hits)
}

func TestRunLayers_CacheSeparatesConfigFiles(t *testing.T) {
	const tsconfig = `{"compilerOptions": {"target": "es5"}}` + "\n"
	c := cache.New(discard)
	e := newEngine(t, WithCache(c))
	ctx := context.Background()
	opts := pipeline.Options{CacheEnabled: true}

	first, err := e.RunLayers(ctx, tsconfig, []layer.ID{1}, "tsconfig.json", opts)
	require.NoError(t, err)
	assert.True(t, first.Changed())

	fresh, err := e.RunLayers(ctx, tsconfig, []layer.ID{1}, "data.json", pipeline.Options{})
	require.NoError(t, err)
	assert.False(t, fresh.Changed())

	cached, err := e.RunLayers(ctx, tsconfig, []layer.ID{1}, "data.json", opts)
	require.NoError(t, err)
	assert.False(t, cached.Changed())
	assert.Equal(t, tsconfig, cached.FinalText)
	assert.Equal(t, 2, c.Len())
}

func TestRunLayers_CacheDisabledPerRun(t *testing.T) {
	c := cache.New(discard)
	e := newEngine(t, WithCache(c))

	_, err := e.RunLayers(context.Background(), mapSource, nil, "", pipeline.Options{})
	require.NoError(t, err)
	assert.Zero(t, c.Len())
}

func TestRunLayers_UnknownLayer(t *testing.T) {
	e := newEngine(t, WithCache(cache.New(discard)))
	res, err := e.RunLayers(context.Background(), "x", []layer.ID{42}, "", pipeline.Options{CacheEnabled: true})
	assert.Nil(t, res)

	var unknown *layer.UnknownLayerError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, layer.ID(42), unknown.ID)
}

func TestDescribeLayers(t *testing.T) {
	e := newEngine(t)
	ds := e.DescribeLayers()
	require.Len(t, ds, 6)
	for i, d := range ds {
		assert.Equal(t, layer.ID(i+1), d.ID)
		assert.NotEmpty(t, d.Name)
	}
	assert.True(t, ds[0].Critical)
}

func TestDiagnostics(t *testing.T) {
	reg, err := layer.NewRegistryBuilder().
		Add(layer.Layer{
			Descriptor: layer.Descriptor{ID: 1, Name: "ok", Capabilities: layer.Capabilities{Textual: true}},
			Textual: func(_ context.Context, in layer.Input) (layer.Output, error) {
				return layer.Output{Text: in.Text}, nil
			},
		}).
		Add(layer.Layer{
			Descriptor: layer.Descriptor{ID: 2, Name: "broken", Capabilities: layer.Capabilities{Textual: true}},
			Textual: func(context.Context, layer.Input) (layer.Output, error) {
				return layer.Output{}, errors.New("boom")
			},
		}).
		Build()
	require.NoError(t, err)

	e, err := New(reg, WithLogger(discard))
	require.NoError(t, err)

	res, err := e.RunLayers(context.Background(), "const a = 1;", nil, "", pipeline.Options{})
	require.NoError(t, err)

	diags := e.Diagnostics(res)
	require.Len(t, diags, 1)
	assert.Equal(t, layer.ID(2), diags[0].LayerID)
	assert.NotEmpty(t, diags[0].Message)

	assert.Nil(t, e.Diagnostics(nil))
}

func TestDiagnose(t *testing.T) {
	e := newEngine(t)
	d := e.Diagnose(3, "Syntax error: line 1, column 4: unexpected token")
	assert.Equal(t, layer.ID(3), d.LayerID)
	assert.NotEqual(t, "", string(d.Category))
}

func TestRunBatch_PreservesOrder(t *testing.T) {
	e := newEngine(t)
	files := []FileInput{
		{Path: "a.tsx", Text: mapSource},
		{Path: "b.ts", Text: `const s = "&quot;x&quot;";` + "\n"},
		{Path: "c.tsx", Text: "export const C = () => <p>hi</p>;\n"},
	}
	results := e.RunBatch(context.Background(), files, nil, pipeline.Options{}, 2)
	require.Len(t, results, 3)
	for i, r := range results {
		assert.Equal(t, files[i].Path, r.Path)
		require.NoError(t, r.Err)
		require.NotNil(t, r.Result)
	}
	assert.Contains(t, results[0].Result.FinalText, "key={index}")
	assert.Contains(t, results[1].Result.FinalText, `\"x\"`)
}

func TestRunBatch_Cancelled(t *testing.T) {
	e := newEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := e.RunBatch(ctx, []FileInput{{Path: "a.ts", Text: "x"}, {Path: "b.ts", Text: "y"}}, nil, pipeline.Options{}, 0)
	for _, r := range results {
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
}
