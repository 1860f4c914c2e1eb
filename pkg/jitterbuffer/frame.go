// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package jitterbuffer

import "time"

// Frame is one encoded network packet waiting for playout.
type Frame struct {
	Payload []byte
	// Sequence is the logical sequence the frame is ordered and played by.
	Sequence uint64
	// SourceSequence is the sender-side sequence the frame was encoded
	// under. It equals Sequence unless the sender renumbers.
	SourceSequence uint64
	Arrival        time.Time
}
