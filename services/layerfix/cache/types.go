// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/AleutianAI/layerfix/services/layerfix/layer"
	"github.com/AleutianAI/layerfix/services/layerfix/pipeline"
)

// Key identifies a (content, layer set) pair.
type Key struct {
	// ContentHash is the hex SHA-256 of the input text.
	ContentHash string

	// Layers is sorted ascending and deduplicated.
	Layers []layer.ID

	// Scope separates results that depend on more than content and layers,
	// such as the filename hint. Empty for no scope.
	Scope string
}

// NewKey builds a key from raw content and a layer list in any order.
//
// Callers should pass the resolved layer list so that requests differing
// only in auto-added dependencies share an entry.
func NewKey(content string, layers []layer.ID) Key {
	h := sha256.Sum256([]byte(content))
	sorted := slices.Clone(layers)
	slices.Sort(sorted)
	return Key{
		ContentHash: hex.EncodeToString(h[:]),
		Layers:      slices.Compact(sorted),
	}
}

// WithScope returns a copy of k with the given scope.
func (k Key) WithScope(scope string) Key {
	k.Scope = scope
	return k
}

// String renders the key as "<sha256hex>|1,2,3", followed by "|<scope>"
// when a scope is set.
func (k Key) String() string {
	parts := make([]string, len(k.Layers))
	for i, id := range k.Layers {
		parts[i] = strconv.Itoa(int(id))
	}
	s := k.ContentHash + "|" + strings.Join(parts, ",")
	if k.Scope != "" {
		s += "|" + k.Scope
	}
	return s
}

// Tier is an optional second level consulted on a miss and written on put.
//
// Implementations must be safe for concurrent use.
type Tier interface {
	Load(ctx context.Context, key string) (*pipeline.Result, bool, error)
	Store(ctx context.Context, key string, result *pipeline.Result) error
}

// Options configures a ResultCache.
type Options struct {
	// MaxEntries bounds the in-memory entries. Default: 256.
	MaxEntries int

	// MaxAge is the entry TTL. Zero disables expiry.
	MaxAge time.Duration

	// Tier is an optional second level.
	Tier Tier
}

// DefaultOptions returns the defaults.
func DefaultOptions() Options {
	return Options{MaxEntries: 256}
}

// Option is a functional option for configuring ResultCache.
type Option func(*Options)

// WithMaxEntries sets the maximum number of cached entries.
func WithMaxEntries(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.MaxEntries = n
		}
	}
}

// WithMaxAge sets the TTL for cached entries.
func WithMaxAge(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.MaxAge = d
		}
	}
}

// WithTier sets the second-level store.
func WithTier(t Tier) Option {
	return func(o *Options) {
		o.Tier = t
	}
}

// Stats contains statistics about the cache.
type Stats struct {
	EntryCount int   `json:"entry_count"`
	Hits       int64 `json:"hits"`
	Misses     int64 `json:"misses"`
	Evictions  int64 `json:"evictions"`
	Rejected   int64 `json:"rejected"`
	TierHits   int64 `json:"tier_hits"`
	TierErrors int64 `json:"tier_errors"`
	MaxEntries int   `json:"max_entries"`
}

// HitRate returns the cache hit rate as a percentage.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}
