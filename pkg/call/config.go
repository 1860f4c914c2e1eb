// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package call

import (
	"fmt"
	"time"

	"github.com/pion/securecall/pkg/jitterbuffer"
	"github.com/pion/securecall/pkg/playout"
)

// Config holds the call tunables.
type Config struct {
	// SignalPollInterval bounds each wait of the signal listener, and with
	// it how long the listener takes to notice termination.
	SignalPollInterval time.Duration `yaml:"signal_poll_interval"`
	// RequestTimeout bounds each signaling request.
	RequestTimeout time.Duration `yaml:"request_timeout"`
	// HangupTimeout bounds the best-effort hangup sent on termination.
	HangupTimeout time.Duration `yaml:"hangup_timeout"`
	// HandshakeTimeout bounds the key agreement, including the time the
	// remote takes to answer.
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	// ConnectedAckTimeout bounds the wait for AckConnected.
	ConnectedAckTimeout time.Duration `yaml:"connected_ack_timeout"`
	// MediaReadTimeout is the socket deadline of one receive in the media
	// loop.
	MediaReadTimeout time.Duration `yaml:"media_read_timeout"`

	// SamplesPerPacket is the number of captured samples encoded into one
	// packet.
	SamplesPerPacket int `yaml:"samples_per_packet"`
	// Queue caps. A full queue drops its oldest entry.
	CaptureQueueSize  int `yaml:"capture_queue_size"`
	OutgoingQueueSize int `yaml:"outgoing_queue_size"`
	IncomingQueueSize int `yaml:"incoming_queue_size"`

	MinimizeLatency bool `yaml:"minimize_latency"`

	Jitter  jitterbuffer.Config `yaml:"jitter"`
	Playout playout.Config      `yaml:"playout"`
}

// DefaultConfig returns tunables for 8 kHz audio in 40 ms packets.
func DefaultConfig() Config {
	return Config{
		SignalPollInterval:  250 * time.Millisecond,
		RequestTimeout:      10 * time.Second,
		HangupTimeout:       2 * time.Second,
		HandshakeTimeout:    60 * time.Second,
		ConnectedAckTimeout: 2 * time.Second,
		MediaReadTimeout:    2 * time.Millisecond,
		SamplesPerPacket:    320,
		CaptureQueueSize:    10,
		OutgoingQueueSize:   10,
		IncomingQueueSize:   jitterbuffer.MaxBufferedFrames,
		Jitter:              jitterbuffer.DefaultConfig(),
		Playout:             playout.DefaultConfig(),
	}
}

// Validate reports the first out of range value.
func (c Config) Validate() error {
	switch {
	case c.SignalPollInterval <= 0:
		return fmt.Errorf("%w: signal poll interval %v", ErrInvalidConfig, c.SignalPollInterval)
	case c.RequestTimeout <= 0 || c.HangupTimeout <= 0 || c.HandshakeTimeout <= 0:
		return fmt.Errorf("%w: timeouts must be positive", ErrInvalidConfig)
	case c.MediaReadTimeout <= 0:
		return fmt.Errorf("%w: media read timeout %v", ErrInvalidConfig, c.MediaReadTimeout)
	case c.SamplesPerPacket < 1:
		return fmt.Errorf("%w: samples per packet %d", ErrInvalidConfig, c.SamplesPerPacket)
	case c.CaptureQueueSize < 1 || c.OutgoingQueueSize < 1 || c.IncomingQueueSize < 1:
		return fmt.Errorf("%w: queue sizes must be positive", ErrInvalidConfig)
	}
	if err := c.Jitter.Validate(); err != nil {
		return err
	}

	return c.Playout.Validate()
}
