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
	"bytes"
	"context"
	"time"
)

// MemoryCache is a process-local Cache backed by an LRU.
type MemoryCache struct {
	lru *LRU[string, []byte]
}

// NewMemoryCache creates a MemoryCache holding at most capacity responses.
func NewMemoryCache(capacity int) *MemoryCache {
	return &MemoryCache{lru: NewLRU[string, []byte](capacity)}
}

// Get implements Cache. The returned slice is a copy.
func (m *MemoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	v, ok := m.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	return bytes.Clone(v), true, nil
}

// Set implements Cache.
func (m *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.lru.Set(key, bytes.Clone(value), ttl)
	return nil
}

// Close implements Cache.
func (m *MemoryCache) Close() error { return nil }

// Stats returns hit, miss and eviction counters.
func (m *MemoryCache) Stats() (hits, misses, evictions int64) {
	return m.lru.Stats()
}
