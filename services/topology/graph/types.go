// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph implements the bounded-neighborhood traversal over SL1
// device relationships.
//
// The flow for one request is:
//
//	[]RelationshipRecord ──BuildIndex──► Index ──Traverse (per seed)──► TraversalResult
//	                                        └──────Aggregate (all seeds)──► Aggregate
//	                                                        └──Resolve──► []Node
//
// Everything in this package is pure and request-scoped. Nothing here is
// shared between requests.
package graph

import (
	"fmt"
	"strings"
)

// Direction selects which relationship index a traversal walks.
type Direction string

const (
	// DirectionParents walks the reverse index (towards ancestors).
	DirectionParents Direction = "parents"

	// DirectionChildren walks the forward index (towards descendants).
	DirectionChildren Direction = "children"

	// DirectionBoth walks both indexes.
	DirectionBoth Direction = "both"
)

// Depth limits.
const (
	// MinDepth is the smallest traversal depth a caller may request.
	MinDepth = 1

	// MaxDepth is the largest traversal depth a caller may request.
	MaxDepth = 5

	// DefaultDepth is used when a request omits depth.
	DefaultDepth = 1

	// DefaultDirection is used when a request omits direction.
	DefaultDirection = DirectionBoth
)

// UnknownType is the node type assigned to endpoints without a full device record.
const UnknownType = "Unknown"

// ParseDirection parses a direction string.
//
// Description:
//
//	Empty input yields DefaultDirection. Matching is case-insensitive.
//
// Outputs:
//
//	Direction - The parsed direction.
//	error - ErrInvalidDirection if the value is not recognized.
func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return DefaultDirection, nil
	case DirectionParents:
		return DirectionParents, nil
	case DirectionChildren:
		return DirectionChildren, nil
	case DirectionBoth:
		return DirectionBoth, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidDirection, s)
	}
}

// walksParents reports whether d includes the reverse index.
func (d Direction) walksParents() bool {
	return d == DirectionParents || d == DirectionBoth
}

// walksChildren reports whether d includes the forward index.
func (d Direction) walksChildren() bool {
	return d == DirectionChildren || d == DirectionBoth
}

// ClampDepth clamps d into [MinDepth, MaxDepth]. Zero means DefaultDepth.
func ClampDepth(d int) int {
	switch {
	case d == 0:
		return DefaultDepth
	case d < MinDepth:
		return MinDepth
	case d > MaxDepth:
		return MaxDepth
	default:
		return d
	}
}

// DeviceSnapshot is the endpoint data embedded in a relationship record.
type DeviceSnapshot struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	IP    string `json:"ip,omitempty" yaml:"ip,omitempty"`
	State string `json:"state,omitempty" yaml:"state,omitempty"`
}

// RelationshipRecord is a raw parent/child record as returned by a data source.
type RelationshipRecord struct {
	ID     string         `json:"id,omitempty" yaml:"id,omitempty"`
	Parent DeviceSnapshot `json:"parent" yaml:"parent"`
	Child  DeviceSnapshot `json:"child" yaml:"child"`
}

// Relationship is a directed parent → child edge with endpoint snapshots.
type Relationship struct {
	// Source is the parent device ID.
	Source string

	// Target is the child device ID.
	Target string

	// SourceSnapshot is the parent data captured from the record.
	SourceSnapshot DeviceSnapshot

	// TargetSnapshot is the child data captured from the record.
	TargetSnapshot DeviceSnapshot
}

// Key returns the identity of the relationship.
func (r Relationship) Key() EdgeKey {
	return EdgeKey{Source: r.Source, Target: r.Target}
}

// EdgeKey identifies a relationship. Two relationships are equal iff their keys match.
type EdgeKey struct {
	Source string
	Target string
}

// Device is a full device record from the data source.
type Device struct {
	ID           string `json:"id" yaml:"id"`
	Name         string `json:"name" yaml:"name"`
	IP           string `json:"ip,omitempty" yaml:"ip,omitempty"`
	State        string `json:"state,omitempty" yaml:"state,omitempty"`
	DeviceClass  string `json:"deviceClass,omitempty" yaml:"device_class,omitempty"`
	Organization string `json:"organization,omitempty" yaml:"organization,omitempty"`
}

// Seed is one traversal starting point with its own settings.
type Seed struct {
	ID        string
	Depth     int
	Direction Direction
}

// TraversalResult is the output of a single-seed traversal.
type TraversalResult struct {
	// Seed is the starting device ID.
	Seed string

	// Relationships are the edges discovered, each recorded once.
	Relationships []Relationship

	// VisitedNodes lists every node reached, in first-reached order.
	VisitedNodes []string

	// NodeDepth maps node ID to the shallowest depth it was reached at.
	NodeDepth map[string]int
}

// Aggregate merges traversal results of several seeds.
type Aggregate struct {
	// Relationships are deduplicated by EdgeKey; the first occurrence wins.
	Relationships []Relationship

	// VisitedNodes is the union of visited nodes, in first-seen order.
	VisitedNodes []string

	// NodeDepth maps node ID to the minimum depth over all seeds.
	NodeDepth map[string]int
}

// Node is a resolved topology node ready for the response.
type Node struct {
	ID     string
	Label  string
	Type   string
	Status Status
	IP     string
}
