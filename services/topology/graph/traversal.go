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

// pathNode is one entry of the seed → node path carried by a frame.
//
// Paths share their prefix, so pushing a frame costs one allocation.
type pathNode struct {
	id     string
	parent *pathNode
}

// contains reports whether id is on the path. Paths are at most MaxDepth+1 long.
func (p *pathNode) contains(id string) bool {
	for n := p; n != nil; n = n.parent {
		if n.id == id {
			return true
		}
	}
	return false
}

// frame is one pending expansion on the traversal stack.
type frame struct {
	id    string
	depth int
	path  *pathNode
}

// walker holds the mutable state of one traversal.
type walker struct {
	index     *Index
	maxDepth  int
	direction Direction

	result   *TraversalResult
	seen     map[EdgeKey]struct{}
	expanded map[string]int
}

// Traverse walks the neighborhood of seedID up to maxDepth hops.
//
// Description:
//
//	Performs an iterative depth-first walk over an explicit stack of
//	(nodeID, depth, path) frames. A node reached at depth == maxDepth is
//	recorded but not expanded, so maxDepth is the number of hops actually
//	traversed. When a neighbor is already on the current path, the edge
//	to it is recorded (the back-edge stays visible) but the walk does not
//	descend into it again.
//
//	A node that was already expanded at the same or a shallower depth is
//	not expanded a second time. Its neighborhood from there is already in
//	the result, so this only prunes duplicate work.
//
// Inputs:
//
//	seedID - Starting device ID. Always part of the result.
//	maxDepth - Hops to traverse. Must be >= 1; callers clamp first.
//	direction - Which index(es) to walk.
//	index - Adjacency built by BuildIndex.
//
// Outputs:
//
//	*TraversalResult - Edges and nodes reached, with shallowest depth per node.
//	error - ErrInvalidDepth, ErrInvalidDirection or ErrEmptySeed on bad input.
//
// Example:
//
//	idx := graph.BuildIndex(records)
//	res, err := graph.Traverse("dev1", 2, graph.DirectionBoth, idx)
func Traverse(seedID string, maxDepth int, direction Direction, index *Index) (*TraversalResult, error) {
	if seedID == "" {
		return nil, ErrEmptySeed
	}
	if maxDepth < MinDepth {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidDepth, maxDepth)
	}
	if !direction.walksParents() && !direction.walksChildren() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDirection, direction)
	}
	if index == nil {
		index = BuildIndex(nil)
	}

	w := &walker{
		index:     index,
		maxDepth:  maxDepth,
		direction: direction,
		result: &TraversalResult{
			Seed:          seedID,
			Relationships: make([]Relationship, 0),
			VisitedNodes:  make([]string, 0),
			NodeDepth:     make(map[string]int),
		},
		seen:     make(map[EdgeKey]struct{}),
		expanded: make(map[string]int),
	}

	w.reach(seedID, 0)
	w.run(frame{id: seedID, depth: 0, path: &pathNode{id: seedID}})

	return w.result, nil
}

// run drains the frame stack.
func (w *walker) run(start frame) {
	stack := []frame{start}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if prev, ok := w.expanded[f.id]; ok && prev <= f.depth {
			continue
		}
		w.expanded[f.id] = f.depth

		links := w.neighbors(f.id)
		next := f.depth + 1
		for _, l := range links {
			w.record(l.Relationship)
			w.reach(l.Peer, next)
		}

		if next >= w.maxDepth {
			continue
		}

		// Push in reverse so the first neighbor is expanded first.
		for i := len(links) - 1; i >= 0; i-- {
			peer := links[i].Peer
			if f.path.contains(peer) {
				continue
			}
			stack = append(stack, frame{
				id:    peer,
				depth: next,
				path:  &pathNode{id: peer, parent: f.path},
			})
		}
	}
}

// neighbors returns the links to walk from id for the traversal direction.
func (w *walker) neighbors(id string) []Link {
	var links []Link
	if w.direction.walksChildren() {
		links = append(links, w.index.Forward[id]...)
	}
	if w.direction.walksParents() {
		links = append(links, w.index.Reverse[id]...)
	}
	return links
}

// reach records that id was reached at depth, keeping the shallowest depth.
func (w *walker) reach(id string, depth int) {
	prev, ok := w.result.NodeDepth[id]
	if !ok {
		w.result.VisitedNodes = append(w.result.VisitedNodes, id)
		w.result.NodeDepth[id] = depth
		return
	}
	if depth < prev {
		w.result.NodeDepth[id] = depth
	}
}

// record adds rel to the result once per edge key.
func (w *walker) record(rel Relationship) {
	key := rel.Key()
	if _, ok := w.seen[key]; ok {
		return
	}
	w.seen[key] = struct{}{}
	w.result.Relationships = append(w.result.Relationships, rel)
}
