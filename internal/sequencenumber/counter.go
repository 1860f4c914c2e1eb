// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package sequencenumber

import "errors"

// DefaultReorderWindow is how far behind the highest accepted sequence a
// packet may arrive and still be mapped onto the logical line.
const DefaultReorderWindow = 64

// ErrOutOfWindow is returned when a wire sequence cannot be placed on the
// logical line without risking a mis-detected wrap.
var ErrOutOfWindow = errors.New("sequence number outside of reorder window")

// Counter expands the 16-bit wire sequence of one stream direction into a
// monotonic 64-bit logical sequence. Peek never mutates state so a packet can
// be authenticated before it is allowed to move the counter.
type Counter struct {
	window  uint64
	init    bool
	highest int64
}

// NewCounter returns a Counter tolerating reordering of up to window packets.
func NewCounter(window uint16) *Counter {
	if window == 0 {
		window = DefaultReorderWindow
	}

	return &Counter{window: uint64(window)}
}

// Peek returns the logical sequence for wire without committing it.
func (c *Counter) Peek(wire uint16) (uint64, error) {
	if !c.init {
		return uint64(wire), nil
	}

	logical := unwrapFrom(c.highest, wire)
	if logical < 0 {
		return 0, ErrOutOfWindow
	}
	if logical < c.highest && uint64(c.highest-logical) > c.window {
		return 0, ErrOutOfWindow
	}

	return uint64(logical), nil
}

// Commit records logical as accepted.
func (c *Counter) Commit(logical uint64) {
	l := int64(logical) //nolint:gosec // G115, logical sequences stay far below 2^63
	if !c.init {
		c.init = true
		c.highest = l

		return
	}
	if l > c.highest {
		c.highest = l
	}
}

// Highest returns the highest committed logical sequence and whether any
// sequence was committed yet.
func (c *Counter) Highest() (uint64, bool) {
	return uint64(c.highest), c.init //nolint:gosec // G115
}
