// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cache stores serialized topology responses keyed by the
// normalized request.
//
// A cached entry is an optimization only. Callers treat every error from a
// Cache as a miss and recompute from the data source.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rudipoppes/SL1-TOPOLOGY-sub000/services/topology/graph"
)

// KeyPrefix namespaces topology entries. Bump the version when the cache
// key format or response shape changes.
const KeyPrefix = "topology:v2:"

// Cache stores opaque values with a time-to-live.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns the value for key. A missing or expired key is
	// (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key for ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Close releases resources held by the cache.
	Close() error
}

// BuildKey derives the cache key for a normalized request.
//
// # Description
//
// The request-wide depth and direction come first because the response
// stats echo them. Seeds follow, sorted by ID and rendered as
// "id|depth|direction" lines, so the key is independent of the order the
// client listed the devices in. The canonical string is hashed with
// SHA-256 to bound the key length.
//
// # Inputs
//
//   - depth, direction: effective request defaults
//   - seeds: seeds with effective (clamped, defaulted) settings
//
// # Outputs
//
//   - string: KeyPrefix followed by 64 hex characters
func BuildKey(depth int, direction graph.Direction, seeds []graph.Seed) string {
	sorted := make([]graph.Seed, len(seeds))
	copy(sorted, seeds)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	var b strings.Builder
	fmt.Fprintf(&b, "*|%d|%s\n", depth, direction)
	for _, s := range sorted {
		fmt.Fprintf(&b, "%s|%d|%s\n", s.ID, s.Depth, s.Direction)
	}

	sum := sha256.Sum256([]byte(b.String()))
	return KeyPrefix + hex.EncodeToString(sum[:])
}

// NopCache never stores anything.
type NopCache struct{}

// Get always misses.
func (NopCache) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }

// Set discards the value.
func (NopCache) Set(context.Context, string, []byte, time.Duration) error { return nil }

// Close does nothing.
func (NopCache) Close() error { return nil }
