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

import "fmt"

// AggregateSeeds traverses every seed and merges the results.
//
// Description:
//
//	Seeds are traversed sequentially, each with its own depth and
//	direction, so one call can explore descendants of A and ancestors
//	of B. Relationships are deduplicated by (parent, child); the first
//	occurrence wins for snapshot fields. VisitedNodes is the union in
//	first-seen order and NodeDepth keeps the minimum depth over seeds.
//
// Inputs:
//
//	seeds - Seeds in processing order. Depth must already be clamped.
//	index - Adjacency built by BuildIndex.
//
// Outputs:
//
//	*Aggregate - Merged result. Never nil on success.
//	error - The first traversal validation error, wrapped with the seed ID.
func AggregateSeeds(seeds []Seed, index *Index) (*Aggregate, error) {
	agg := &Aggregate{
		Relationships: make([]Relationship, 0),
		VisitedNodes:  make([]string, 0),
		NodeDepth:     make(map[string]int),
	}
	seen := make(map[EdgeKey]struct{})

	for _, s := range seeds {
		res, err := Traverse(s.ID, s.Depth, s.Direction, index)
		if err != nil {
			return nil, fmt.Errorf("traverse seed %q: %w", s.ID, err)
		}

		for _, rel := range res.Relationships {
			key := rel.Key()
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			agg.Relationships = append(agg.Relationships, rel)
		}

		for _, id := range res.VisitedNodes {
			depth := res.NodeDepth[id]
			prev, ok := agg.NodeDepth[id]
			if !ok {
				agg.VisitedNodes = append(agg.VisitedNodes, id)
				agg.NodeDepth[id] = depth
				continue
			}
			if depth < prev {
				agg.NodeDepth[id] = depth
			}
		}
	}

	return agg, nil
}

// EndpointIDs returns the IDs referenced by the aggregate that are not in exclude.
func (a *Aggregate) EndpointIDs(exclude map[string]Device) []string {
	ids := make([]string, 0, len(a.VisitedNodes))
	for _, id := range a.VisitedNodes {
		if _, ok := exclude[id]; ok {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
