// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package jitterbuffer

import (
	"github.com/pion/logging"
	"github.com/pion/securecall/pkg/stats"
)

// Option can be used to configure a JitterBuffer.
type Option func(jb *JitterBuffer) error

// WithConfig replaces the default tunables. WithInitialDelay and
// WithMinimizeLatency take precedence over cfg whatever their order.
func WithConfig(cfg Config) Option {
	return func(jb *JitterBuffer) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		jb.cfg = cfg

		return nil
	}
}

// WithInitialDelay sets the starting desired delay, usually the value
// persisted by the previous call.
func WithInitialDelay(frames float64) Option {
	return func(jb *JitterBuffer) error {
		jb.initialDelay = &frames

		return nil
	}
}

// WithMinimizeLatency pins the desired delay to its floor.
func WithMinimizeLatency(minimize bool) Option {
	return func(jb *JitterBuffer) error {
		jb.minimizeLatency = &minimize

		return nil
	}
}

// WithLoggerFactory sets the logger factory for the jitter buffer.
func WithLoggerFactory(loggerFactory logging.LoggerFactory) Option {
	return func(jb *JitterBuffer) error {
		jb.log = loggerFactory.NewLogger("jitterbuffer")

		return nil
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m stats.Metrics) Option {
	return func(jb *JitterBuffer) error {
		jb.metrics = m

		return nil
	}
}
