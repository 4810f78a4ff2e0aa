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
	"fmt"
	"log/slog"

	"github.com/rudipoppes/SL1-TOPOLOGY-sub000/services/topology/config"
	store "github.com/rudipoppes/SL1-TOPOLOGY-sub000/services/topology/storage/badger"
)

// New builds the Cache selected by cfg.Kind.
func New(cfg config.CacheConfig, logger *slog.Logger) (Cache, error) {
	switch cfg.Kind {
	case config.CacheBadger:
		return OpenBadgerCache(store.ConfigFor(cfg.Path, logger))
	case config.CacheMemory:
		return NewMemoryCache(cfg.Capacity), nil
	case config.CacheNone, "":
		return NopCache{}, nil
	default:
		return nil, fmt.Errorf("unknown cache kind %q", cfg.Kind)
	}
}
