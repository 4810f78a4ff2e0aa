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
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	store "github.com/rudipoppes/SL1-TOPOLOGY-sub000/services/topology/storage/badger"
)

// BadgerCache is a Cache persisted in BadgerDB. Expiry uses badger's
// per-entry TTL, so expired entries are invisible to reads and reclaimed by
// compaction.
type BadgerCache struct {
	db *store.DB
}

// NewBadgerCache wraps an open store. The cache owns db and closes it.
func NewBadgerCache(db *store.DB) *BadgerCache {
	return &BadgerCache{db: db}
}

// OpenBadgerCache opens a store with cfg and wraps it.
func OpenBadgerCache(cfg store.Config) (*BadgerCache, error) {
	db, err := store.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open cache store: %w", err)
	}
	return NewBadgerCache(db), nil
}

// Get implements Cache.
func (b *BadgerCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := b.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("badger get %s: %w", key, err)
	}
	return value, true, nil
}

// Set implements Cache.
func (b *BadgerCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	err := b.db.WithTxn(ctx, func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), value)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("badger set %s: %w", key, err)
	}
	return nil
}

// Close implements Cache.
func (b *BadgerCache) Close() error {
	return b.db.Close()
}
