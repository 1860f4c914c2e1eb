// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Package sequencenumber provides the per-direction logical sequence counter
// used by the secure stream.
package sequencenumber

const (
	maxSequenceNumberPlusOne = int64(65536)
	breakpoint               = 32768 // half of max uint16
)

func isNewer(value, previous uint16) bool {
	if value-previous == breakpoint {
		return value > previous
	}

	return value != previous && (value-previous) < breakpoint
}

// unwrapFrom maps i onto the 64-bit line next to last. Values within half the
// range behind last are reordering, not a wrap.
func unwrapFrom(last int64, i uint16) int64 {
	lastWrapped := uint16(last) //nolint:gosec // G115
	delta := int64(i - lastWrapped)
	if isNewer(i, lastWrapped) {
		if delta < 0 {
			delta += maxSequenceNumberPlusOne
		}
	} else if delta > 0 && last+delta-maxSequenceNumberPlusOne >= 0 {
		delta -= maxSequenceNumberPlusOne
	}

	return last + delta
}
