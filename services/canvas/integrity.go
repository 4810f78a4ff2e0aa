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
	"github.com/rudipoppes/SL1-TOPOLOGY-sub000/services/topology/datatypes"
)

// FilterDangling splits edges into those whose endpoints both satisfy
// hasNode and those that do not. Order is preserved in both results.
func FilterDangling(hasNode func(id string) bool, edges []datatypes.Edge) (kept, removed []datatypes.Edge) {
	kept = edges[:0:0]
	for _, e := range edges {
		if hasNode(e.Source) && hasNode(e.Target) {
			kept = append(kept, e)
		} else {
			removed = append(removed, e)
		}
	}
	return kept, removed
}
