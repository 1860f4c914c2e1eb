// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package securestream

import "errors"

var (
	// ErrInvalidKeyLength is returned when key material of the wrong size is supplied.
	ErrInvalidKeyLength = errors.New("invalid key material length")
	// ErrSequenceExhausted is returned when the 48-bit logical sequence space is used up.
	ErrSequenceExhausted = errors.New("outgoing sequence space exhausted")
	// ErrNilConn is returned when a Stream is created without a connection.
	ErrNilConn = errors.New("nil conn")
	// ErrShortPacket is returned when a buffer cannot hold a header and a MAC.
	ErrShortPacket = errors.New("packet too short")
	// ErrAuthFailed is returned when a MAC does not verify.
	ErrAuthFailed = errors.New("message authentication failed")
)
