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

// MenuState is the render model of the node context menu.
type MenuState struct {
	Open     bool     `json:"open"`
	NodeID   string   `json:"nodeId,omitempty"`
	Position Position `json:"position"`
}

// Menu is a two-state machine: closed, or open on one node at a position.
// The zero value is closed. Not safe for concurrent use on its own; Canvas
// guards it with its mutex.
type Menu struct {
	state MenuState
}

// Open shows the menu for nodeID at the given position, replacing any
// menu already open.
func (m *Menu) Open(nodeID string, at Position) {
	m.state = MenuState{Open: true, NodeID: nodeID, Position: at}
}

// Close hides the menu. Closing a closed menu is a no-op.
func (m *Menu) Close() {
	m.state = MenuState{}
}

// Target returns the node the menu is open on.
func (m *Menu) Target() (string, bool) {
	return m.state.NodeID, m.state.Open
}

// State returns a copy of the menu state.
func (m *Menu) State() MenuState {
	return m.state
}
