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

import "sync/atomic"

// Sequencer hands out monotonically increasing request generations.
// Only the most recently issued generation is current.
type Sequencer struct {
	gen atomic.Uint64
}

// Next issues a new generation, superseding every earlier one.
func (s *Sequencer) Next() uint64 {
	return s.gen.Add(1)
}

// IsCurrent reports whether gen is the latest generation issued.
func (s *Sequencer) IsCurrent(gen uint64) bool {
	return s.gen.Load() == gen
}

// Current returns the latest issued generation, or zero before the first Next.
func (s *Sequencer) Current() uint64 {
	return s.gen.Load()
}
