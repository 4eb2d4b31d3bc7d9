// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cache memoizes pipeline results by content hash and layer set.
package cache

import (
	"container/list"
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/AleutianAI/layerfix/services/layerfix/pipeline"
)

// ResultCache is a bounded LRU of pipeline results.
//
// # Description
//
// Entries are keyed by SHA-256 of the input plus the sorted layer list.
// Results containing a failed critical layer, or from an aborted run, are
// never stored, so a transient failure cannot poison later runs. Stored and
// returned results are deep copies; callers can never mutate an entry.
//
// # Thread Safety
//
// Safe for concurrent use. Uses sync.Mutex for the entry map and LRU list
// and singleflight.Group to deduplicate concurrent runs of one key.
type ResultCache struct {
	mu      sync.Mutex
	entries map[string]*entry
	lru     *list.List
	flight  singleflight.Group
	options Options
	logger  *slog.Logger

	hits       atomic.Int64
	misses     atomic.Int64
	evictions  atomic.Int64
	rejected   atomic.Int64
	tierHits   atomic.Int64
	tierErrors atomic.Int64
}

type entry struct {
	key        string
	result     *pipeline.Result
	storedAt   time.Time
	lruElement *list.Element
}

// New creates a ResultCache.
func New(logger *slog.Logger, opts ...Option) *ResultCache {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ResultCache{
		entries: make(map[string]*entry),
		lru:     list.New(),
		options: options,
		logger:  logger,
	}
}

// Cacheable reports whether r may be stored.
func Cacheable(r *pipeline.Result) bool {
	return r != nil && !r.Aborted && !r.HasCriticalFailure()
}

// Get returns a copy of the cached result for key.
//
// On an in-memory miss the tier, if any, is consulted and a tier hit is
// promoted into memory. Tier errors count as misses.
func (c *ResultCache) Get(ctx context.Context, key Key) (*pipeline.Result, bool) {
	start := time.Now()
	ctx, span := startCacheSpan(ctx, "Get")
	defer span.End()

	k := key.String()
	if r, ok := c.getMemory(k); ok {
		c.hits.Add(1)
		recordHit(ctx, "memory")
		recordGetLatency(ctx, time.Since(start), true)
		setCacheSpanResult(span, true)
		return r, true
	}

	if r, ok := c.loadTier(ctx, k); ok {
		c.hits.Add(1)
		c.tierHits.Add(1)
		c.putMemory(k, r)
		recordHit(ctx, "tier")
		recordGetLatency(ctx, time.Since(start), true)
		setCacheSpanResult(span, true)
		return r.Clone(), true
	}

	c.misses.Add(1)
	recordMiss(ctx)
	recordGetLatency(ctx, time.Since(start), false)
	setCacheSpanResult(span, false)
	return nil, false
}

// Put stores a copy of result under key.
//
// Outputs:
//
//	bool - False when the result was refused (nil, aborted, or containing a
//	       critical failure).
func (c *ResultCache) Put(ctx context.Context, key Key, result *pipeline.Result) bool {
	if !Cacheable(result) {
		c.rejected.Add(1)
		recordRejected(ctx)
		return false
	}

	k := key.String()
	stored := result.Clone()
	c.putMemory(k, stored)

	if c.options.Tier != nil {
		if err := c.options.Tier.Store(ctx, k, stored); err != nil {
			c.tierErrors.Add(1)
			c.logger.Warn("result cache tier store failed", slog.String("error", err.Error()))
		}
	}
	return true
}

// RunFunc computes a result on a cache miss.
type RunFunc func(ctx context.Context) (*pipeline.Result, error)

type flightResult struct {
	result *pipeline.Result
	err    error
}

// GetOrRun returns the cached result for key or computes it with run.
//
// # Description
//
// Concurrent callers with the same key share one run. The computed result
// is stored when cacheable. A run error is returned together with whatever
// partial result run produced. When the shared run was cancelled by the
// caller that started it, callers whose own context is still live run again.
//
// # Outputs
//
//   - *pipeline.Result: A copy of the result.
//   - bool: True if the result came from the cache.
//   - error: The run's error, if any.
func (c *ResultCache) GetOrRun(ctx context.Context, key Key, run RunFunc) (*pipeline.Result, bool, error) {
	if r, ok := c.Get(ctx, key); ok {
		return r, true, nil
	}

	k := key.String()
	for {
		v, _, shared := c.flight.Do(k, func() (any, error) {
			if r, ok := c.getMemory(k); ok {
				return flightResult{result: r}, nil
			}
			r, err := run(ctx)
			if err == nil {
				c.Put(ctx, key, r)
			}
			return flightResult{result: r, err: err}, nil
		})

		fr := v.(flightResult)
		if shared && isContextErr(fr.err) && ctx.Err() == nil {
			continue
		}
		return fr.result.Clone(), false, fr.err
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Len returns the number of in-memory entries.
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear removes all in-memory entries. The tier is not touched.
func (c *ResultCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*entry)
	c.lru.Init()
}

// Stats returns current cache statistics.
func (c *ResultCache) Stats() Stats {
	return Stats{
		EntryCount: c.Len(),
		Hits:       c.hits.Load(),
		Misses:     c.misses.Load(),
		Evictions:  c.evictions.Load(),
		Rejected:   c.rejected.Load(),
		TierHits:   c.tierHits.Load(),
		TierErrors: c.tierErrors.Load(),
		MaxEntries: c.options.MaxEntries,
	}
}

func (c *ResultCache) getMemory(k string) (*pipeline.Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[k]
	if !ok {
		return nil, false
	}
	if c.options.MaxAge > 0 && time.Since(e.storedAt) > c.options.MaxAge {
		c.lru.Remove(e.lruElement)
		delete(c.entries, k)
		return nil, false
	}
	c.lru.MoveToFront(e.lruElement)
	return e.result.Clone(), true
}

// putMemory takes ownership of r.
func (c *ResultCache) putMemory(k string, r *pipeline.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, exists := c.entries[k]; exists {
		e.result = r
		e.storedAt = time.Now()
		c.lru.MoveToFront(e.lruElement)
		return
	}

	for len(c.entries) >= c.options.MaxEntries {
		if !c.evictLRULocked() {
			break
		}
	}

	e := &entry{key: k, result: r, storedAt: time.Now()}
	e.lruElement = c.lru.PushFront(k)
	c.entries[k] = e
}

// evictLRULocked evicts the least recently used entry (must hold lock).
func (c *ResultCache) evictLRULocked() bool {
	elem := c.lru.Back()
	if elem == nil {
		return false
	}
	k := elem.Value.(string)
	c.lru.Remove(elem)
	delete(c.entries, k)
	c.evictions.Add(1)
	recordEviction(context.Background())
	return true
}

func (c *ResultCache) loadTier(ctx context.Context, k string) (*pipeline.Result, bool) {
	if c.options.Tier == nil {
		return nil, false
	}
	r, ok, err := c.options.Tier.Load(ctx, k)
	if err != nil {
		c.tierErrors.Add(1)
		c.logger.Warn("result cache tier load failed", slog.String("error", err.Error()))
		return nil, false
	}
	if !ok || !Cacheable(r) {
		return nil, false
	}
	return r, true
}
