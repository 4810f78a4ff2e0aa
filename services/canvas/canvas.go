// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package canvas holds the client-side topology graph.
//
// A Canvas accumulates nodes and edges from successive device selections
// and server subgraphs, remembers node positions across updates, and
// keeps the graph free of dangling edges after every mutation. Explorer
// ties a Canvas to a Session and the topology API, dropping responses
// that a newer request has superseded.
//
//	Session ──BuildRequest──► Client ──POST /topology──► server
//	   │                                   │
//	   └─ApplySelection──► Canvas ◄──ApplySubgraph (current generation only)
package canvas

import (
	"errors"
	"log/slog"
	"math"
	"slices"
	"sync"

	"github.com/tidwall/btree"

	"github.com/rudipoppes/SL1-TOPOLOGY-sub000/services/topology/datatypes"
)

// ErrUnknownNode is returned when an operation names a node not on the canvas.
var ErrUnknownNode = errors.New("node not on canvas")

// goldenAngle spreads successive nodes placed around one centroid.
const goldenAngle = 2.399963229728653

// Options configures a Canvas.
type Options struct {
	// Layout is the initial strategy and geometry. A zero Strategy means grid;
	// a zero Config means DefaultConfig().
	Layout Layout

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Snapshot is a point-in-time copy of the canvas.
type Snapshot struct {
	Nodes     []datatypes.Node    `json:"nodes"`
	Edges     []datatypes.Edge    `json:"edges"`
	Positions map[string]Position `json:"positions"`
	Selection []string            `json:"selection"`
	Strategy  Strategy            `json:"strategy"`
	Locked    bool                `json:"locked"`
	Menu      MenuState           `json:"menu"`
}

// Canvas is the accumulated client-side graph.
//
// # Description
//
// Nodes are kept ordered by id. Edges are unique by (source, target) and
// kept in insertion order. Positions outlive their nodes so a device that
// is deselected and selected again returns to where it was; ClearAll and
// ResetLayout are the only operations that forget them.
//
// After every mutation no edge references a missing node and the context
// menu is closed if its node is gone.
//
// # Thread Safety
//
// All methods are safe for concurrent use. Mutations are serialized.
type Canvas struct {
	mu sync.Mutex

	nodes     *btree.Map[string, datatypes.Node]
	edges     []datatypes.Edge
	edgeKeys  map[datatypes.Edge]struct{}
	positions map[string]Position
	selection []string
	menu      Menu

	layout  Layout
	locked  bool
	cascade int

	logger *slog.Logger
}

// New creates an empty canvas.
func New(opts Options) *Canvas {
	layout := opts.Layout
	if layout.Strategy == "" {
		layout.Strategy = StrategyGrid
	}
	if layout.Config == (Config{}) {
		layout.Config = DefaultConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Canvas{layout: layout, logger: logger}
	c.reset()
	return c
}

func (c *Canvas) reset() {
	c.nodes = new(btree.Map[string, datatypes.Node])
	c.edges = nil
	c.edgeKeys = make(map[datatypes.Edge]struct{})
	c.positions = make(map[string]Position)
	c.selection = nil
	c.menu.Close()
	c.cascade = 0
}

// ApplySelection makes the canvas reflect a new device selection.
//
// # Description
//
// Every selected device becomes or remains a node with refreshed
// metadata. Devices selected before but absent now lose their node and
// every edge touching it. A new node without a remembered position is
// placed by the current strategy, or on the cascade while locked.
//
// # Inputs
//
//   - devices: The full new selection. Duplicate ids keep the first entry.
func (c *Canvas) ApplySelection(devices []datatypes.Node) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := make([]string, 0, len(devices))
	chosen := make(map[string]struct{}, len(devices))
	for _, d := range devices {
		if _, dup := chosen[d.ID]; dup || d.ID == "" {
			continue
		}
		chosen[d.ID] = struct{}{}
		next = append(next, d.ID)
		c.nodes.Set(d.ID, d)
	}

	for _, id := range c.selection {
		if _, keep := chosen[id]; !keep {
			c.nodes.Delete(id)
		}
	}
	c.selection = next

	c.placeUnpositioned()
	c.enforceIntegrity()
}

// ApplySubgraph merges a server result into the canvas.
//
// # Description
//
// Nodes are upserted by id: metadata is refreshed and an existing
// position is kept. A brand-new node is placed around the centroid of its
// already-positioned neighbors in topo's edges, or on the cascade when it
// has none. Edges are unioned by (source, target); present edges are not
// touched. Applying the same topology twice changes nothing.
//
// # Inputs
//
//   - topo: Nodes and edges returned by the topology API.
func (c *Canvas) ApplySubgraph(topo datatypes.Topology) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var fresh []string
	for _, n := range topo.Nodes {
		if n.ID == "" {
			continue
		}
		if _, existed := c.nodes.Set(n.ID, n); !existed {
			if _, remembered := c.positions[n.ID]; !remembered {
				fresh = append(fresh, n.ID)
			}
		}
	}

	neighbors := make(map[string][]string)
	for _, e := range topo.Edges {
		neighbors[e.Source] = append(neighbors[e.Source], e.Target)
		neighbors[e.Target] = append(neighbors[e.Target], e.Source)
	}

	placedNear := make(map[Position]int)
	for _, id := range fresh {
		centroid, ok := c.neighborCentroid(neighbors[id])
		if !ok {
			c.positions[id] = c.nextCascade()
			continue
		}
		k := placedNear[centroid]
		placedNear[centroid] = k + 1
		angle := goldenAngle * float64(k)
		radius := c.layout.Config.NodeGap / 2
		c.positions[id] = Position{
			X: centroid.X + radius*math.Cos(angle),
			Y: centroid.Y + radius*math.Sin(angle),
		}
	}

	for _, e := range topo.Edges {
		c.addEdge(e)
	}
	c.enforceIntegrity()
}

func (c *Canvas) neighborCentroid(ids []string) (Position, bool) {
	var sum Position
	count := 0
	for _, id := range ids {
		if _, onCanvas := c.nodes.Get(id); !onCanvas {
			continue
		}
		if p, ok := c.positions[id]; ok {
			sum.X += p.X
			sum.Y += p.Y
			count++
		}
	}
	if count == 0 {
		return Position{}, false
	}
	return Position{X: sum.X / float64(count), Y: sum.Y / float64(count)}, true
}

func (c *Canvas) addEdge(e datatypes.Edge) {
	if _, ok := c.edgeKeys[e]; ok {
		return
	}
	c.edgeKeys[e] = struct{}{}
	c.edges = append(c.edges, e)
}

func (c *Canvas) nextCascade() Position {
	p := c.layout.Cascade(c.cascade)
	c.cascade++
	return p
}

// placeUnpositioned gives every node without a position one.
func (c *Canvas) placeUnpositioned() {
	ids := c.nodeIDs()
	var missing []string
	for _, id := range ids {
		if _, ok := c.positions[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return
	}

	if c.locked {
		for _, id := range missing {
			c.positions[id] = c.nextCascade()
		}
		return
	}

	computed := c.layout.Compute(ids, c.edges)
	for _, id := range missing {
		c.positions[id] = computed[id]
	}
}

// enforceIntegrity drops edges with a missing endpoint and closes the menu
// if its node is gone.
func (c *Canvas) enforceIntegrity() {
	kept, removed := FilterDangling(func(id string) bool {
		_, ok := c.nodes.Get(id)
		return ok
	}, c.edges)

	if len(removed) > 0 {
		for _, e := range removed {
			delete(c.edgeKeys, e)
			c.logger.Debug("integrity violation: dropped dangling edge",
				slog.String("source", e.Source),
				slog.String("target", e.Target))
		}
		c.edges = kept
	}

	if target, open := c.menu.Target(); open {
		if _, ok := c.nodes.Get(target); !ok {
			c.menu.Close()
		}
	}
}

func (c *Canvas) nodeIDs() []string {
	ids := make([]string, 0, c.nodes.Len())
	c.nodes.Scan(func(id string, _ datatypes.Node) bool {
		ids = append(ids, id)
		return true
	})
	return ids
}

// ClearAll empties nodes, edges, positions, selection and menu state at once.
// Strategy and lock are kept.
func (c *Canvas) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
}

// RemoveNode deletes a node, its edges and its selection entry.
// Its position is remembered. Reports whether the node existed.
func (c *Canvas) RemoveNode(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.nodes.Delete(id); !ok {
		return false
	}
	c.selection = slices.DeleteFunc(c.selection, func(s string) bool { return s == id })
	c.enforceIntegrity()
	return true
}

// MoveNode records a user drag.
func (c *Canvas) MoveNode(id string, to Position) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.nodes.Get(id); !ok {
		return ErrUnknownNode
	}
	c.positions[id] = to
	return nil
}

// SetLocked toggles the manual lock. While locked no strategy runs and
// user-dragged positions are authoritative.
func (c *Canvas) SetLocked(locked bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.locked = locked
}

// ApplyLayout switches strategy and repositions every node.
//
// # Outputs
//
//   - error: ErrLayoutLocked while locked, or ErrUnknownStrategy.
func (c *Canvas) ApplyLayout(strategy Strategy) error {
	parsed, err := ParseStrategy(string(strategy))
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.locked {
		return ErrLayoutLocked
	}
	c.layout.Strategy = parsed
	c.repositionAll()
	return nil
}

// ResetLayout unlocks the canvas, forgets remembered positions of removed
// nodes and repositions every node with the current strategy.
func (c *Canvas) ResetLayout() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.locked = false
	c.cascade = 0
	c.positions = make(map[string]Position, c.nodes.Len())
	c.repositionAll()
}

func (c *Canvas) repositionAll() {
	for id, p := range c.layout.Compute(c.nodeIDs(), c.edges) {
		c.positions[id] = p
	}
}

// OpenMenu opens the context menu on a node.
func (c *Canvas) OpenMenu(id string, at Position) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.nodes.Get(id); !ok {
		return ErrUnknownNode
	}
	c.menu.Open(id, at)
	return nil
}

// CloseMenu closes the context menu if it is open.
func (c *Canvas) CloseMenu() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.menu.Close()
}

// Snapshot copies the current state. Nodes are in id order and Positions
// holds only nodes currently on the canvas.
func (c *Canvas) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		Nodes:     make([]datatypes.Node, 0, c.nodes.Len()),
		Edges:     slices.Clone(c.edges),
		Positions: make(map[string]Position, c.nodes.Len()),
		Selection: slices.Clone(c.selection),
		Strategy:  c.layout.Strategy,
		Locked:    c.locked,
		Menu:      c.menu.State(),
	}
	c.nodes.Scan(func(id string, n datatypes.Node) bool {
		s.Nodes = append(s.Nodes, n)
		if p, ok := c.positions[id]; ok {
			s.Positions[id] = p
		}
		return true
	})
	if s.Edges == nil {
		s.Edges = []datatypes.Edge{}
	}
	return s
}
