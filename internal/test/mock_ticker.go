// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package test

import (
	"sync"
	"time"
)

// MockTicker is a helper to replace time.Ticker for testing purposes.
type MockTicker struct {
	C chan time.Time

	mu      sync.Mutex
	stopped bool
}

// NewMockTicker returns a MockTicker with a buffered channel.
func NewMockTicker() *MockTicker {
	return &MockTicker{C: make(chan time.Time, 16)}
}

// Stop stops the MockTicker.
func (t *MockTicker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopped = true
}

// Stopped reports whether Stop was called.
func (t *MockTicker) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.stopped
}

// Ch returns the tickers channel.
func (t *MockTicker) Ch() <-chan time.Time {
	return t.C
}

// Tick sends now to the channel.
func (t *MockTicker) Tick(now time.Time) {
	t.C <- now
}
