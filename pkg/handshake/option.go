// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package handshake

import (
	"time"

	"github.com/pion/logging"
)

// Option can be used to configure a NoiseNegotiator.
type Option func(n *NoiseNegotiator) error

// WithLoggerFactory sets the logger factory for the negotiator.
func WithLoggerFactory(loggerFactory logging.LoggerFactory) Option {
	return func(n *NoiseNegotiator) error {
		n.log = loggerFactory.NewLogger("handshake")

		return nil
	}
}

// WithTimeout bounds how long NegotiateFinish waits for the peer before
// giving up with ErrRecipientUnavailable.
func WithTimeout(timeout time.Duration) Option {
	return func(n *NoiseNegotiator) error {
		n.timeout = timeout

		return nil
	}
}

// WithRetransmitInterval sets how often an unanswered message is resent.
func WithRetransmitInterval(interval time.Duration) Option {
	return func(n *NoiseNegotiator) error {
		n.retransmit = interval

		return nil
	}
}
