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

import "strings"

// Status is the normalized availability of a device.
type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
	StatusWarning Status = "warning"
	StatusUnknown Status = "unknown"
)

// StatusFromState maps an SL1 state string onto a Status.
//
// Description:
//
//	SL1 reports state either as a word or as a numeric severity
//	(0 healthy .. 5 critical). Matching is case-insensitive; anything
//	unrecognized maps to StatusUnknown.
func StatusFromState(state string) Status {
	switch strings.ToLower(strings.TrimSpace(state)) {
	case "online", "up", "active", "healthy", "available", "0":
		return StatusOnline
	case "offline", "down", "unavailable", "critical", "5":
		return StatusOffline
	case "warning", "degraded", "minor", "major", "notice", "1", "2", "3", "4":
		return StatusWarning
	default:
		return StatusUnknown
	}
}
