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

// Resolve turns an aggregate into response nodes.
//
// Description:
//
//	IDs among the requested devices get their full device record. Other
//	endpoints use a record from extra when one is available, otherwise
//	the snapshot carried by their relationship with Type UnknownType.
//	An ID with no data at all (an isolated seed the data source does not
//	know) is labelled with its ID and has StatusUnknown.
//
// Inputs:
//
//	agg - Aggregated traversal result.
//	requested - Device records for the requested seed IDs.
//	extra - Optional richer records for other endpoints. May be nil.
//
// Outputs:
//
//	[]Node - One node per visited ID, in agg.VisitedNodes order.
func Resolve(agg *Aggregate, requested, extra map[string]Device) []Node {
	snapshots := make(map[string]DeviceSnapshot, len(agg.VisitedNodes))
	for _, rel := range agg.Relationships {
		if _, ok := snapshots[rel.Source]; !ok {
			snapshots[rel.Source] = rel.SourceSnapshot
		}
		if _, ok := snapshots[rel.Target]; !ok {
			snapshots[rel.Target] = rel.TargetSnapshot
		}
	}

	nodes := make([]Node, 0, len(agg.VisitedNodes))
	for _, id := range agg.VisitedNodes {
		if d, ok := requested[id]; ok {
			nodes = append(nodes, nodeFromDevice(id, d))
			continue
		}
		if d, ok := extra[id]; ok {
			nodes = append(nodes, nodeFromDevice(id, d))
			continue
		}
		nodes = append(nodes, nodeFromSnapshot(id, snapshots[id]))
	}
	return nodes
}

func nodeFromDevice(id string, d Device) Node {
	n := Node{
		ID:     id,
		Label:  d.Name,
		Type:   d.DeviceClass,
		Status: StatusFromState(d.State),
		IP:     d.IP,
	}
	if n.Label == "" {
		n.Label = id
	}
	if n.Type == "" {
		n.Type = UnknownType
	}
	return n
}

func nodeFromSnapshot(id string, s DeviceSnapshot) Node {
	n := Node{
		ID:     id,
		Label:  s.Name,
		Type:   UnknownType,
		Status: StatusFromState(s.State),
		IP:     s.IP,
	}
	if n.Label == "" {
		n.Label = id
	}
	return n
}
