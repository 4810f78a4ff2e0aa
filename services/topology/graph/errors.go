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

import "errors"

// Sentinel errors for traversal input validation.
var (
	// ErrInvalidDepth indicates a traversal depth below MinDepth. Callers clamp before traversing.
	ErrInvalidDepth = errors.New("traversal depth must be at least 1")

	// ErrInvalidDirection indicates an unrecognized direction value.
	ErrInvalidDirection = errors.New("invalid traversal direction")

	// ErrEmptySeed indicates a seed with an empty device ID.
	ErrEmptySeed = errors.New("seed device id is empty")
)
