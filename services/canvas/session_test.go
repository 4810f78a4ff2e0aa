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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rudipoppes/SL1-TOPOLOGY-sub000/services/topology/datatypes"
	"github.com/rudipoppes/SL1-TOPOLOGY-sub000/services/topology/graph"
)

func TestSession_SelectKeepsSettings(t *testing.T) {
	s := NewSession()
	s.Select(nodes("a", "b"))
	require.NoError(t, s.SetSetting("b", 3, "children"))

	s.Select(nodes("b", "c", "b", ""))

	assert.Equal(t, nodes("b", "c"), s.Selected())
	got, ok := s.Setting("b")
	require.True(t, ok)
	assert.Equal(t, ExplorationSetting{Depth: 3, Direction: graph.DirectionChildren}, got)

	got, ok = s.Setting("c")
	require.True(t, ok)
	assert.Equal(t, DefaultSetting(), got)

	_, ok = s.Setting("a")
	assert.False(t, ok)
}

func TestSession_SetSetting(t *testing.T) {
	s := NewSession()
	s.Select(nodes("a"))

	require.NoError(t, s.SetSetting("a", 99, "PARENTS"))
	got, _ := s.Setting("a")
	assert.Equal(t, ExplorationSetting{Depth: graph.MaxDepth, Direction: graph.DirectionParents}, got)

	assert.ErrorIs(t, s.SetSetting("a", 1, "sideways"), graph.ErrInvalidDirection)
	assert.ErrorIs(t, s.SetSetting("missing", 1, "both"), ErrNotSelected)
}

func TestSession_BuildRequest(t *testing.T) {
	s := NewSession()
	_, err := s.BuildRequest()
	assert.ErrorIs(t, err, ErrEmptySelection)

	s.Select(nodes("a", "b", "c"))
	require.NoError(t, s.SetDefaults(2, "children"))
	require.NoError(t, s.SetSetting("b", 4, "children"))
	require.NoError(t, s.SetSetting("c", 2, "parents"))

	req, err := s.BuildRequest()
	require.NoError(t, err)
	assert.Equal(t, datatypes.TopologyRequest{
		DeviceIDs:        []string{"a", "b", "c"},
		Depth:            2,
		Direction:        "children",
		DeviceDepths:     map[string]int{"a": 1, "b": 4},
		DeviceDirections: map[string]string{"a": "both", "c": "parents"},
	}, req)
	assert.NoError(t, req.Validate())

	assert.ErrorIs(t, s.SetDefaults(1, "up"), graph.ErrInvalidDirection)
}

func TestNodeFromDevice(t *testing.T) {
	n := NodeFromDevice(datatypes.Device{ID: "7", Name: "core", IP: "10.0.0.7", State: "down", DeviceClass: "Router"})
	assert.Equal(t, datatypes.Node{ID: "7", Label: "core", Type: "Router", Status: "offline", IP: "10.0.0.7"}, n)

	n = NodeFromDevice(datatypes.Device{ID: "8", Status: "warning"})
	assert.Equal(t, datatypes.Node{ID: "8", Label: "8", Type: graph.UnknownType, Status: "warning"}, n)
}

func TestSequencer(t *testing.T) {
	var s Sequencer
	first := s.Next()
	assert.True(t, s.IsCurrent(first))

	second := s.Next()
	assert.Greater(t, second, first)
	assert.False(t, s.IsCurrent(first))
	assert.True(t, s.IsCurrent(second))
	assert.Equal(t, second, s.Current())
}
