// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregateSeeds_DeduplicatesSharedEdges(t *testing.T) {
	first := rec("X", "Y")
	second := rec("X", "Y")
	second.Parent.Name = "later-name"

	idx := BuildIndex([]RelationshipRecord{
		rec("A", "X"),
		first,
		rec("B", "X"),
		second,
	})

	agg, err := AggregateSeeds([]Seed{
		{ID: "A", Depth: 2, Direction: DirectionChildren},
		{ID: "B", Depth: 2, Direction: DirectionChildren},
	}, idx)
	require.NoError(t, err)

	count := 0
	for _, rel := range agg.Relationships {
		if rel.Key() == (EdgeKey{"X", "Y"}) {
			count++
			assert.Equal(t, "X-name", rel.SourceSnapshot.Name, "first occurrence wins")
		}
	}
	assert.Equal(t, 1, count)
	assert.Equal(t, []string{"A", "X", "Y", "B"}, agg.VisitedNodes)
}

func TestAggregateSeeds_PerSeedSettings(t *testing.T) {
	idx := BuildIndex([]RelationshipRecord{
		rec("root", "A"),
		rec("A", "A1"),
		rec("P", "B"),
		rec("B", "B1"),
	})

	agg, err := AggregateSeeds([]Seed{
		{ID: "A", Depth: 1, Direction: DirectionChildren},
		{ID: "B", Depth: 1, Direction: DirectionParents},
	}, idx)
	require.NoError(t, err)

	assert.ElementsMatch(t, []EdgeKey{{"A", "A1"}, {"P", "B"}}, edgeKeys(agg.Relationships))
	assert.NotContains(t, agg.NodeDepth, "root")
	assert.NotContains(t, agg.NodeDepth, "B1")
}

func TestAggregateSeeds_MinimumDepthAcrossSeeds(t *testing.T) {
	idx := BuildIndex([]RelationshipRecord{
		rec("A", "B"),
		rec("B", "C"),
	})

	agg, err := AggregateSeeds([]Seed{
		{ID: "A", Depth: 3, Direction: DirectionChildren},
		{ID: "C", Depth: 1, Direction: DirectionBoth},
	}, idx)
	require.NoError(t, err)

	assert.Equal(t, 0, agg.NodeDepth["C"])
	assert.Equal(t, 1, agg.NodeDepth["B"])
	assert.Len(t, agg.Relationships, 2)
}

func TestAggregateSeeds_InvalidSeed(t *testing.T) {
	_, err := AggregateSeeds([]Seed{{ID: "A", Depth: 0, Direction: DirectionBoth}}, BuildIndex(nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidDepth)
	assert.Contains(t, err.Error(), `"A"`)
}

func TestAggregateSeeds_NoSeeds(t *testing.T) {
	agg, err := AggregateSeeds(nil, BuildIndex(nil))
	require.NoError(t, err)
	assert.Empty(t, agg.Relationships)
	assert.Empty(t, agg.VisitedNodes)
}

func TestAggregate_EndpointIDs(t *testing.T) {
	agg := &Aggregate{VisitedNodes: []string{"a", "b", "c"}}
	ids := agg.EndpointIDs(map[string]Device{"b": {ID: "b"}})
	assert.Equal(t, []string{"a", "c"}, ids)
}

func TestResolve(t *testing.T) {
	idx := BuildIndex([]RelationshipRecord{
		{
			Parent: DeviceSnapshot{ID: "1", Name: "core-sw", State: "online"},
			Child:  DeviceSnapshot{ID: "2", Name: "edge-rtr", IP: "10.0.0.2", State: "down"},
		},
		{
			Parent: DeviceSnapshot{ID: "2", Name: "edge-rtr"},
			Child:  DeviceSnapshot{ID: "3"},
		},
	})
	agg, err := AggregateSeeds([]Seed{{ID: "1", Depth: 2, Direction: DirectionChildren}}, idx)
	require.NoError(t, err)

	requested := map[string]Device{
		"1": {ID: "1", Name: "Core Switch", State: "healthy", DeviceClass: "Cisco Switch", IP: "10.0.0.1"},
	}
	extra := map[string]Device{
		"3": {ID: "3", Name: "server-3", DeviceClass: "Linux Server", State: "warning"},
	}

	nodes := Resolve(agg, requested, extra)
	require.Len(t, nodes, 3)

	assert.Equal(t, Node{ID: "1", Label: "Core Switch", Type: "Cisco Switch", Status: StatusOnline, IP: "10.0.0.1"}, nodes[0])
	assert.Equal(t, Node{ID: "2", Label: "edge-rtr", Type: UnknownType, Status: StatusOffline, IP: "10.0.0.2"}, nodes[1])
	assert.Equal(t, Node{ID: "3", Label: "server-3", Type: "Linux Server", Status: StatusWarning}, nodes[2])
}

func TestResolve_IsolatedSeed(t *testing.T) {
	agg, err := AggregateSeeds([]Seed{{ID: "ghost", Depth: 1, Direction: DirectionBoth}}, BuildIndex(nil))
	require.NoError(t, err)

	nodes := Resolve(agg, nil, nil)
	require.Len(t, nodes, 1)
	assert.Equal(t, "ghost", nodes[0].Label)
	assert.Equal(t, UnknownType, nodes[0].Type)
	assert.Equal(t, StatusUnknown, nodes[0].Status)
}
