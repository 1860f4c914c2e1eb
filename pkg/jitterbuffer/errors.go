// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package jitterbuffer

import "errors"

var (
	// ErrNotFound is returned when no frame is stored under a sequence.
	ErrNotFound = errors.New("frame not found")
	// ErrNilCodec is returned when a JitterBuffer is created without a codec.
	ErrNilCodec = errors.New("jitter buffer requires a codec")
	// ErrInvalidConfig is returned when a Config value is out of range.
	ErrInvalidConfig = errors.New("invalid jitter buffer config")
)
