// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package badger opens the BadgerDB store that backs the topology result
// cache.
//
// The store holds derived data only: every entry can be recomputed from the
// data source, so writes are not synced and a lost store is harmless.
//
// # Modes
//
//   - Disk: Config.Path set. A background goroutine runs value-log GC.
//   - Memory: Config.InMemory set (or Path empty). Nothing touches disk.
package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// ErrPathRequired is returned when a disk store has no path.
var ErrPathRequired = errors.New("badger: path is required for an on-disk store")

// Config configures Open.
type Config struct {
	// Path is the store directory. Ignored when InMemory is true.
	Path string

	// InMemory keeps the whole store in RAM.
	InMemory bool

	// Logger receives badger's internal log lines. Nil silences them.
	Logger *slog.Logger

	// GCInterval is the value-log GC period for disk stores. Zero disables GC.
	GCInterval time.Duration

	// GCDiscardRatio is passed to RunValueLogGC.
	GCDiscardRatio float64
}

// ConfigFor returns the cache store configuration for path. An empty path
// selects an in-memory store.
func ConfigFor(path string, logger *slog.Logger) Config {
	if path == "" {
		return Config{InMemory: true, Logger: logger}
	}
	return Config{
		Path:           path,
		Logger:         logger,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// slogAdapter routes badger.Logger calls to slog.
type slogAdapter struct {
	logger *slog.Logger
}

func (a slogAdapter) Errorf(format string, args ...any) {
	a.logger.Error(fmt.Sprintf(format, args...), slog.String("component", "badger"))
}

func (a slogAdapter) Warningf(format string, args ...any) {
	a.logger.Warn(fmt.Sprintf(format, args...), slog.String("component", "badger"))
}

func (a slogAdapter) Infof(format string, args ...any) {
	a.logger.Debug(fmt.Sprintf(format, args...), slog.String("component", "badger"))
}

func (a slogAdapter) Debugf(format string, args ...any) {
	a.logger.Debug(fmt.Sprintf(format, args...), slog.String("component", "badger"))
}

// DB is an open store.
//
// # Thread Safety
//
// Safe for concurrent use. Close must be called exactly once.
type DB struct {
	*badger.DB

	path     string
	inMemory bool

	stopGC context.CancelFunc
	gcDone sync.WaitGroup
}

// Open opens (creating if needed) the store described by cfg.
//
// # Outputs
//
//   - *DB: open store; the caller must Close it
//   - error: ErrPathRequired, a directory error, or a badger open error
func Open(cfg Config) (*DB, error) {
	var opts badger.Options
	switch {
	case cfg.InMemory:
		opts = badger.DefaultOptions("").WithInMemory(true)
	case cfg.Path == "":
		return nil, ErrPathRequired
	default:
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create store directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	opts = opts.WithSyncWrites(false).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(slogAdapter{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	bdb, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger store: %w", err)
	}

	db := &DB{DB: bdb, path: cfg.Path, inMemory: cfg.InMemory}

	if !cfg.InMemory && cfg.GCInterval > 0 {
		ratio := cfg.GCDiscardRatio
		if ratio <= 0 || ratio >= 1 {
			ratio = 0.5
		}
		ctx, cancel := context.WithCancel(context.Background())
		db.stopGC = cancel
		db.gcDone.Add(1)
		go db.runGC(ctx, cfg.GCInterval, ratio, cfg.Logger)
	}

	return db, nil
}

// runGC reclaims value-log space until ctx is cancelled.
func (d *DB) runGC(ctx context.Context, interval time.Duration, ratio float64, logger *slog.Logger) {
	defer d.gcDone.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := d.DB.RunValueLogGC(ratio)
			if err != nil && !errors.Is(err, badger.ErrNoRewrite) && logger != nil {
				logger.Warn("badger value log GC failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Close stops GC and closes the store.
func (d *DB) Close() error {
	if d.stopGC != nil {
		d.stopGC()
		d.gcDone.Wait()
	}
	return d.DB.Close()
}

// Path returns the store directory ("" for in-memory stores).
func (d *DB) Path() string {
	return d.path
}

// InMemory reports whether the store lives only in RAM.
func (d *DB) InMemory() bool {
	return d.inMemory
}

// WithTxn runs fn in a read-write transaction and commits it.
func (d *DB) WithTxn(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.DB.Update(fn)
}

// WithReadTxn runs fn in a read-only transaction.
func (d *DB) WithReadTxn(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.DB.View(fn)
}
