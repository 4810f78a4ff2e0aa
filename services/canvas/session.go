// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package canvas

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/rudipoppes/SL1-TOPOLOGY-sub000/services/topology/datatypes"
	"github.com/rudipoppes/SL1-TOPOLOGY-sub000/services/topology/graph"
)

var (
	// ErrEmptySelection is returned when a request is built with nothing selected.
	ErrEmptySelection = errors.New("no devices selected")

	// ErrNotSelected is returned when a setting names an unselected device.
	ErrNotSelected = errors.New("device not selected")
)

// ExplorationSetting is how far and which way to explore from one device.
type ExplorationSetting struct {
	Depth     int             `json:"depth"`
	Direction graph.Direction `json:"direction"`
}

// DefaultSetting is given to newly selected devices.
func DefaultSetting() ExplorationSetting {
	return ExplorationSetting{Depth: graph.DefaultDepth, Direction: graph.DefaultDirection}
}

// NodeFromDevice converts a device picker entry into a canvas node.
func NodeFromDevice(d datatypes.Device) datatypes.Node {
	n := datatypes.Node{
		ID:     d.ID,
		Label:  d.Name,
		Type:   d.DeviceClass,
		Status: d.Status,
		IP:     d.IP,
	}
	if n.Label == "" {
		n.Label = d.ID
	}
	if n.Type == "" {
		n.Type = graph.UnknownType
	}
	if n.Status == "" {
		n.Status = string(graph.StatusFromState(d.State))
	}
	return n
}

// Session is the user's current device selection and per-device
// exploration settings.
//
// # Thread Safety
//
// All methods are safe for concurrent use.
type Session struct {
	mu       sync.RWMutex
	devices  []datatypes.Node
	settings map[string]ExplorationSetting
	defaults ExplorationSetting
}

// NewSession returns an empty session using DefaultSetting.
func NewSession() *Session {
	return &Session{
		settings: make(map[string]ExplorationSetting),
		defaults: DefaultSetting(),
	}
}

// Select replaces the selection. Devices already selected keep their
// setting; new ones get the default; dropped ones lose theirs.
func (s *Session) Select(devices []datatypes.Node) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]datatypes.Node, 0, len(devices))
	settings := make(map[string]ExplorationSetting, len(devices))
	for _, d := range devices {
		if d.ID == "" {
			continue
		}
		if _, dup := settings[d.ID]; dup {
			continue
		}
		setting, ok := s.settings[d.ID]
		if !ok {
			setting = s.defaults
		}
		settings[d.ID] = setting
		next = append(next, d)
	}
	s.devices = next
	s.settings = settings
}

// Selected returns a copy of the selection in selection order.
func (s *Session) Selected() []datatypes.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.devices)
}

// Setting returns the exploration setting of a selected device.
func (s *Session) Setting(id string) (ExplorationSetting, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	setting, ok := s.settings[id]
	return setting, ok
}

// SetSetting changes one selected device's setting.
//
// # Inputs
//
//   - id: A selected device id.
//   - depth: Clamped to [1, 5]; zero means the default depth.
//   - direction: parents, children or both; empty means both.
//
// # Outputs
//
//   - error: ErrNotSelected, or graph.ErrInvalidDirection.
func (s *Session) SetSetting(id string, depth int, direction string) error {
	dir, err := graph.ParseDirection(direction)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.settings[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotSelected, id)
	}
	s.settings[id] = ExplorationSetting{Depth: graph.ClampDepth(depth), Direction: dir}
	return nil
}

// SetDefaults changes the request-wide depth and direction. Per-device
// settings already chosen are kept.
func (s *Session) SetDefaults(depth int, direction string) error {
	dir, err := graph.ParseDirection(direction)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaults = ExplorationSetting{Depth: graph.ClampDepth(depth), Direction: dir}
	return nil
}

// BuildRequest produces the topology request for the current selection.
// Per-device overrides are sent only where a device differs from the
// defaults.
func (s *Session) BuildRequest() (datatypes.TopologyRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.devices) == 0 {
		return datatypes.TopologyRequest{}, ErrEmptySelection
	}

	req := datatypes.TopologyRequest{
		DeviceIDs: make([]string, 0, len(s.devices)),
		Depth:     s.defaults.Depth,
		Direction: string(s.defaults.Direction),
	}
	for _, d := range s.devices {
		req.DeviceIDs = append(req.DeviceIDs, d.ID)

		setting := s.settings[d.ID]
		if setting.Depth != s.defaults.Depth {
			if req.DeviceDepths == nil {
				req.DeviceDepths = make(map[string]int)
			}
			req.DeviceDepths[d.ID] = setting.Depth
		}
		if setting.Direction != s.defaults.Direction {
			if req.DeviceDirections == nil {
				req.DeviceDirections = make(map[string]string)
			}
			req.DeviceDirections[d.ID] = string(setting.Direction)
		}
	}
	return req, nil
}
