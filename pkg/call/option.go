// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package call

import (
	"github.com/pion/logging"
	"github.com/pion/securecall/pkg/stats"
)

// Option can be used to configure a Manager.
type Option func(m *Manager) error

// WithLoggerFactory sets the logger factory for the call and the components
// it creates.
func WithLoggerFactory(loggerFactory logging.LoggerFactory) Option {
	return func(m *Manager) error {
		m.loggerFactory = loggerFactory
		m.log = loggerFactory.NewLogger("call")

		return nil
	}
}

// WithObserver sets the Observer notified of call events.
func WithObserver(o Observer) Option {
	return func(m *Manager) error {
		m.observer = o

		return nil
	}
}

// WithMetrics sets the metrics sink shared by the media components.
func WithMetrics(metrics stats.Metrics) Option {
	return func(m *Manager) error {
		m.metrics = metrics

		return nil
	}
}

// WithTicker sets the factory of the media loop ticker.
func WithTicker(f TickerFactory) Option {
	return func(m *Manager) error {
		m.newTicker = f

		return nil
	}
}
