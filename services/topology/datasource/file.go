// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datasource

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/rudipoppes/SL1-TOPOLOGY-sub000/services/topology/graph"
)

// Fixture is the on-disk format of a FileSource.
//
//	devices:
//	  - id: "1"
//	    name: core-sw-01
//	    state: online
//	    device_class: Cisco Switch
//	relationships:
//	  - parent: {id: "1", name: core-sw-01}
//	    child:  {id: "2", name: dist-sw-01}
type Fixture struct {
	Devices       []graph.Device             `yaml:"devices"`
	Relationships []graph.RelationshipRecord `yaml:"relationships"`
}

// ParseFixture decodes fixture YAML.
func ParseFixture(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFixture, err)
	}
	return &f, nil
}

// FileSource serves devices and relationships from a YAML fixture.
//
// # Description
//
// The fixture is read once by NewFileSource. Watch keeps it current by
// reloading on file changes; a reload that fails to parse keeps the previous
// contents and is logged.
//
// # Thread Safety
//
// Safe for concurrent use.
type FileSource struct {
	path   string
	logger *slog.Logger

	mu      sync.RWMutex
	fixture *Fixture
	byID    map[string]graph.Device

	closeOnce sync.Once
	closed    chan struct{}
}

// NewFileSource loads the fixture at path.
func NewFileSource(path string, logger *slog.Logger) (*FileSource, error) {
	if logger == nil {
		logger = slog.Default()
	}
	f := &FileSource{
		path:   path,
		logger: logger,
		closed: make(chan struct{}),
	}
	if err := f.Reload(); err != nil {
		return nil, err
	}
	return f, nil
}

// NewFixtureSource serves an in-memory fixture. Reload and Watch are no-ops
// on the returned source.
func NewFixtureSource(fixture *Fixture) *FileSource {
	f := &FileSource{
		logger: slog.Default(),
		closed: make(chan struct{}),
	}
	f.set(fixture)
	return f
}

// Reload re-reads the fixture file.
func (f *FileSource) Reload() error {
	if f.path == "" {
		return nil
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", ErrFixture, f.path, err)
	}
	fixture, err := ParseFixture(data)
	if err != nil {
		return fmt.Errorf("%s: %w", f.path, err)
	}
	f.set(fixture)
	return nil
}

func (f *FileSource) set(fixture *Fixture) {
	byID := make(map[string]graph.Device, len(fixture.Devices))
	for _, d := range fixture.Devices {
		byID[d.ID] = d
	}

	f.mu.Lock()
	f.fixture = fixture
	f.byID = byID
	f.mu.Unlock()
}

// Watch reloads the fixture whenever the file changes, until ctx is done or
// Close is called. It blocks; run it in its own goroutine.
//
// The parent directory is watched rather than the file so that editors
// which replace the file on save are still observed.
func (f *FileSource) Watch(ctx context.Context) error {
	if f.path == "" {
		return nil
	}
	select {
	case <-f.closed:
		return ErrClosed
	default:
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(f.path)); err != nil {
		return fmt.Errorf("watch %s: %w", f.path, err)
	}
	target := filepath.Clean(f.path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-f.closed:
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if err := f.Reload(); err != nil {
				f.logger.Warn("fixture reload failed, keeping previous contents",
					slog.String("path", f.path),
					slog.String("error", err.Error()))
				continue
			}
			f.logger.Info("fixture reloaded", slog.String("path", f.path))
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			f.logger.Warn("fixture watcher error", slog.String("error", err.Error()))
		}
	}
}

// Close stops Watch. The loaded contents remain readable.
func (f *FileSource) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

// FetchRelationships implements DataSource.
func (f *FileSource) FetchRelationships(ctx context.Context) ([]graph.RelationshipRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]graph.RelationshipRecord, len(f.fixture.Relationships))
	copy(out, f.fixture.Relationships)
	return out, nil
}

// FetchDevices implements DataSource.
func (f *FileSource) FetchDevices(ctx context.Context, ids []string) (map[string]graph.Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make(map[string]graph.Device, len(ids))
	for _, id := range ids {
		if d, ok := f.byID[id]; ok {
			out[id] = d
		}
	}
	return out, nil
}

// SearchDevices implements DataSource. Matching is a case-insensitive
// substring match on the name; an empty term lists devices.
func (f *FileSource) SearchDevices(ctx context.Context, term string, limit int) ([]graph.Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(term))
	out := make([]graph.Device, 0)
	for _, d := range f.fixture.Devices {
		if limit > 0 && len(out) >= limit {
			break
		}
		if needle == "" || strings.Contains(strings.ToLower(d.Name), needle) {
			out = append(out, d)
		}
	}
	return out, nil
}
