// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package playout

import (
	"github.com/pion/logging"
	"github.com/pion/securecall/pkg/stats"
)

// Option can be used to configure a Driver.
type Option func(d *Driver) error

// WithConfig replaces the default level tunables. WithInitialLevel takes
// precedence over cfg.InitialLevel whatever their order.
func WithConfig(cfg Config) Option {
	return func(d *Driver) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		d.cfg = cfg

		return nil
	}
}

// WithInitialLevel starts the learned device level at samples, usually the
// value persisted by the previous call. It is clamped to the level bounds.
func WithInitialLevel(samples int) Option {
	return func(d *Driver) error {
		d.initialLevel = &samples

		return nil
	}
}

// WithLoggerFactory sets the logger factory for the driver.
func WithLoggerFactory(loggerFactory logging.LoggerFactory) Option {
	return func(d *Driver) error {
		d.log = loggerFactory.NewLogger("playout")

		return nil
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m stats.Metrics) Option {
	return func(d *Driver) error {
		d.metrics = m

		return nil
	}
}
