// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package handshake

import "errors"

var (
	// ErrNegotiationFailed is returned when the peer's handshake messages
	// cannot be processed.
	ErrNegotiationFailed = errors.New("key negotiation failed")
	// ErrRecipientUnavailable is returned when the peer never answers.
	ErrRecipientUnavailable = errors.New("recipient unavailable")
	// ErrNotComplete is returned by MasterSecret before NegotiateFinish
	// succeeded.
	ErrNotComplete = errors.New("handshake not complete")
	errNilConn     = errors.New("handshake: nil conn")
)
