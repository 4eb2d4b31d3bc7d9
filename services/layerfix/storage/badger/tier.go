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
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/layerfix/services/layerfix/cache"
	"github.com/AleutianAI/layerfix/services/layerfix/pipeline"
)

const resultPrefix = "result/"

// ResultTier stores pipeline results as JSON under "result/<cache key>".
type ResultTier struct {
	db *DB
}

var _ cache.Tier = (*ResultTier)(nil)

// NewResultTier wraps an open store.
func NewResultTier(db *DB) *ResultTier {
	return &ResultTier{db: db}
}

// Load returns the stored result for key.
func (t *ResultTier) Load(ctx context.Context, key string) (*pipeline.Result, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	var data []byte
	err := t.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(resultPrefix + key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load %s: %w", key, err)
	}

	var r pipeline.Result
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, false, fmt.Errorf("decode %s: %w", key, err)
	}
	return &r, true, nil
}

// Store writes result under key, applying the configured TTL.
func (t *ResultTier) Store(ctx context.Context, key string, result *pipeline.Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	return t.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(resultPrefix+key), data)
		if t.db.ttl > 0 {
			e = e.WithTTL(t.db.ttl)
		}
		return txn.SetEntry(e)
	})
}

// Purge deletes every stored result.
func (t *ResultTier) Purge() error {
	return t.db.DropPrefix([]byte(resultPrefix))
}
