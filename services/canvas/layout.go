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
	"math"
	"slices"
	"strings"

	"github.com/rudipoppes/SL1-TOPOLOGY-sub000/services/topology/datatypes"
)

// Strategy names a layout algorithm.
type Strategy string

const (
	StrategyGrid         Strategy = "grid"
	StrategyHierarchical Strategy = "hierarchical"
	StrategyRadial       Strategy = "radial"
)

var (
	// ErrLayoutLocked is returned when a layout is requested while positions are locked.
	ErrLayoutLocked = errors.New("layout is locked")

	// ErrUnknownStrategy is returned for an unrecognized layout name.
	ErrUnknownStrategy = errors.New("unknown layout strategy")
)

// ParseStrategy parses a layout name. Empty input yields StrategyGrid.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", StrategyGrid:
		return StrategyGrid, nil
	case StrategyHierarchical:
		return StrategyHierarchical, nil
	case StrategyRadial:
		return StrategyRadial, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
	}
}

// Position is a node's canvas coordinate.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Config holds layout geometry.
type Config struct {
	// CellWidth and CellHeight size one grid cell.
	CellWidth  float64
	CellHeight float64

	// LevelGap separates hierarchical bands vertically.
	LevelGap float64

	// NodeGap separates nodes within a band. Also the radius used around
	// a neighbor centroid.
	NodeGap float64

	// Origin is the top-left anchor of every strategy.
	Origin Position

	// RadiusPerNode and MinRadius size the radial circle.
	RadiusPerNode float64
	MinRadius     float64

	// CascadeStep and CascadeWrap drive the fallback position sequence.
	CascadeStep float64
	CascadeWrap int
}

// DefaultConfig returns the geometry used by the canvas when none is given.
func DefaultConfig() Config {
	return Config{
		CellWidth:     180,
		CellHeight:    120,
		LevelGap:      150,
		NodeGap:       160,
		Origin:        Position{X: 100, Y: 100},
		RadiusPerNode: 40,
		MinRadius:     200,
		CascadeStep:   30,
		CascadeWrap:   10,
	}
}

// Layout pairs a strategy with its geometry.
type Layout struct {
	Strategy Strategy
	Config   Config
}

// Compute assigns a position to every id.
//
// # Description
//
// ids fixes the placement order; callers pass them sorted for stable
// output. Edges whose endpoints are not both in ids are ignored. An
// unrecognized strategy falls back to grid.
//
// # Inputs
//
//   - ids: Node ids to place.
//   - edges: Directed edges used by hierarchical and radial strategies.
//
// # Outputs
//
//   - map[string]Position: One position per id.
func (l Layout) Compute(ids []string, edges []datatypes.Edge) map[string]Position {
	if len(ids) == 0 {
		return map[string]Position{}
	}
	switch l.Strategy {
	case StrategyHierarchical:
		return l.hierarchical(ids, edges)
	case StrategyRadial:
		return l.radial(ids, edges)
	default:
		return l.grid(ids)
	}
}

// Cascade returns the k-th fallback position: a diagonal staircase from
// Origin that restarts every CascadeWrap steps.
func (l Layout) Cascade(k int) Position {
	wrap := l.Config.CascadeWrap
	if wrap < 1 {
		wrap = 1
	}
	step := float64(k % wrap)
	shift := float64(k/wrap) * l.Config.CascadeStep / 2
	return Position{
		X: l.Config.Origin.X + step*l.Config.CascadeStep + shift,
		Y: l.Config.Origin.Y + step*l.Config.CascadeStep,
	}
}

func (l Layout) grid(ids []string) map[string]Position {
	cols := int(math.Ceil(math.Sqrt(float64(len(ids)))))
	out := make(map[string]Position, len(ids))
	for i, id := range ids {
		out[id] = Position{
			X: l.Config.Origin.X + float64(i%cols)*l.Config.CellWidth,
			Y: l.Config.Origin.Y + float64(i/cols)*l.Config.CellHeight,
		}
	}
	return out
}

// hierarchical places roots on band 0 and every other node on the deepest
// band reachable by BFS from a root. Levels are capped at n-1 so cycles
// terminate; nodes no root reaches stay on band 0.
func (l Layout) hierarchical(ids []string, edges []datatypes.Edge) map[string]Position {
	n := len(ids)
	member := make(map[string]bool, n)
	for _, id := range ids {
		member[id] = true
	}

	out := make(map[string][]string, n)
	indegree := make(map[string]int, n)
	for _, e := range edges {
		if !member[e.Source] || !member[e.Target] {
			continue
		}
		out[e.Source] = append(out[e.Source], e.Target)
		indegree[e.Target]++
	}

	level := make(map[string]int, n)
	queue := make([]string, 0, n)
	for _, id := range ids {
		if indegree[id] == 0 {
			queue = append(queue, id)
		}
	}
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		next := level[u] + 1
		if next > n-1 {
			continue
		}
		for _, v := range out[u] {
			if next > level[v] {
				level[v] = next
				queue = append(queue, v)
			}
		}
	}

	bands := make(map[int][]string)
	widest := 0
	for _, id := range ids {
		lv := level[id]
		bands[lv] = append(bands[lv], id)
		widest = max(widest, len(bands[lv]))
	}

	centerX := l.Config.Origin.X + float64(widest-1)*l.Config.NodeGap/2
	pos := make(map[string]Position, n)
	for lv, band := range bands {
		startX := centerX - float64(len(band)-1)*l.Config.NodeGap/2
		for i, id := range band {
			pos[id] = Position{
				X: startX + float64(i)*l.Config.NodeGap,
				Y: l.Config.Origin.Y + float64(lv)*l.Config.LevelGap,
			}
		}
	}
	return pos
}

// radial centers the node with the highest total degree (ties go to the
// smallest id) and spaces the rest evenly on one circle.
func (l Layout) radial(ids []string, edges []datatypes.Edge) map[string]Position {
	n := len(ids)
	member := make(map[string]bool, n)
	for _, id := range ids {
		member[id] = true
	}
	degree := make(map[string]int, n)
	for _, e := range edges {
		if !member[e.Source] || !member[e.Target] {
			continue
		}
		degree[e.Source]++
		degree[e.Target]++
	}

	center := ids[0]
	for _, id := range ids[1:] {
		if degree[id] > degree[center] || (degree[id] == degree[center] && id < center) {
			center = id
		}
	}

	radius := max(l.Config.MinRadius, l.Config.RadiusPerNode*float64(n))
	cx := l.Config.Origin.X + radius
	cy := l.Config.Origin.Y + radius

	pos := map[string]Position{center: {X: cx, Y: cy}}
	ring := slices.DeleteFunc(slices.Clone(ids), func(id string) bool { return id == center })
	for i, id := range ring {
		angle := 2*math.Pi*float64(i)/float64(len(ring)) - math.Pi/2
		pos[id] = Position{
			X: cx + radius*math.Cos(angle),
			Y: cy + radius*math.Sin(angle),
		}
	}
	return pos
}
