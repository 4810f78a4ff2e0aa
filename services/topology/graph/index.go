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

// Link is one adjacency entry: the peer device and the relationship reaching it.
type Link struct {
	Peer         string
	Relationship Relationship
}

// Index holds forward and reverse adjacency built from relationship records.
type Index struct {
	// Forward maps parent ID to its children.
	Forward map[string][]Link

	// Reverse maps child ID to its parents.
	Reverse map[string][]Link

	// Skipped counts records dropped for a missing endpoint ID.
	Skipped int
}

// BuildIndex builds forward and reverse adjacency from raw records.
//
// Description:
//
//	Records with an empty parent or child ID are skipped silently and
//	counted in Index.Skipped. Adjacency lists keep record order, so
//	traversal output is deterministic for a given input.
//
// Inputs:
//
//	records - Raw relationship records. May be empty.
//
// Outputs:
//
//	*Index - Never nil.
func BuildIndex(records []RelationshipRecord) *Index {
	idx := &Index{
		Forward: make(map[string][]Link),
		Reverse: make(map[string][]Link),
	}

	for _, rec := range records {
		if rec.Parent.ID == "" || rec.Child.ID == "" {
			idx.Skipped++
			continue
		}

		rel := Relationship{
			Source:         rec.Parent.ID,
			Target:         rec.Child.ID,
			SourceSnapshot: rec.Parent,
			TargetSnapshot: rec.Child,
		}
		idx.Forward[rel.Source] = append(idx.Forward[rel.Source], Link{Peer: rel.Target, Relationship: rel})
		idx.Reverse[rel.Target] = append(idx.Reverse[rel.Target], Link{Peer: rel.Source, Relationship: rel})
	}

	return idx
}

// Len returns the number of indexed relationships.
func (idx *Index) Len() int {
	n := 0
	for _, links := range idx.Forward {
		n += len(links)
	}
	return n
}
