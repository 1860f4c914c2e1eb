// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package securestream

import (
	"time"

	"github.com/pion/logging"
	"github.com/pion/securecall/pkg/stats"
)

// Option can be used to configure a Stream.
type Option func(s *Stream) error

// WithLoggerFactory sets the logger factory for the stream.
func WithLoggerFactory(loggerFactory logging.LoggerFactory) Option {
	return func(s *Stream) error {
		s.log = loggerFactory.NewLogger("securestream")

		return nil
	}
}

// WithReadTimeout bounds every Receive. A zero timeout blocks until data or
// an error arrives.
func WithReadTimeout(timeout time.Duration) Option {
	return func(s *Stream) error {
		s.readTimeout = timeout

		return nil
	}
}

// WithSSRC sets the SSRC of outgoing packets.
func WithSSRC(ssrc uint32) Option {
	return func(s *Stream) error {
		s.ssrc = ssrc

		return nil
	}
}

// WithPayloadType sets the RTP payload type of outgoing packets.
func WithPayloadType(pt uint8) Option {
	return func(s *Stream) error {
		s.payloadType = pt

		return nil
	}
}

// WithSamplesPerPacket sets the RTP timestamp increment per packet.
func WithSamplesPerPacket(samples uint32) Option {
	return func(s *Stream) error {
		s.samplesPerPacket = samples

		return nil
	}
}

// WithReorderWindow sets how far behind the newest packet a packet may
// arrive and still be accepted.
func WithReorderWindow(window uint16) Option {
	return func(s *Stream) error {
		s.reorderWindow = window

		return nil
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m stats.Metrics) Option {
	return func(s *Stream) error {
		s.metrics = m

		return nil
	}
}
