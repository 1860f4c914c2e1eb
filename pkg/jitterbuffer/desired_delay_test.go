// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package jitterbuffer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDesiredDelayConverges(t *testing.T) {
	delay := NewDesiredDelay(DefaultConfig())
	assert.Equal(t, MinDesiredDelay, delay.Value())

	samples := 0
	for delay.Value() < 9.9 {
		delay.Update(10)
		samples++
		assert.LessOrEqual(t, delay.Value(), 10.0)
	}
	assert.Less(t, samples, 500)
}

func TestDesiredDelayBounds(t *testing.T) {
	delay := NewDesiredDelay(DefaultConfig())
	for i := 0; i < 5000; i++ {
		delay.Update(40)
	}
	assert.Equal(t, MaxDesiredDelay, delay.Value())

	for i := 0; i < 5000; i++ {
		delay.Update(0)
	}
	assert.Equal(t, MinDesiredDelay, delay.Value())
}

func TestDesiredDelayInitialValue(t *testing.T) {
	cfg := DefaultConfig()

	cfg.InitialDelay = 4.25
	assert.Equal(t, 4.25, NewDesiredDelay(cfg).Value())

	cfg.InitialDelay = 99
	assert.Equal(t, MaxDesiredDelay, NewDesiredDelay(cfg).Value())

	cfg.InitialDelay = 0
	assert.Equal(t, MinDesiredDelay, NewDesiredDelay(cfg).Value())
}

func TestDesiredDelayMinimizeLatency(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InitialDelay = 6
	cfg.MinimizeLatency = true

	delay := NewDesiredDelay(cfg)
	assert.Equal(t, MinDesiredDelay, delay.Value())
	delay.Update(12)
	assert.Equal(t, MinDesiredDelay, delay.Value())
}

func TestDesiredDelayFollowsBurst(t *testing.T) {
	tracker := NewDropoutTracker(testTrackerConfig())
	delay := NewDesiredDelay(DefaultConfig())
	start := time.Unix(1000, 0)

	now := burstTrace(tracker, start, 200, 100, 10)
	depth := tracker.DepthForThreshold(0, now)

	for i := 0; i < 1000; i++ {
		delay.Update(tracker.DepthForThreshold(0, now))
	}
	assert.InDelta(t, float64(depth), delay.Value(), 0.01)
	assert.LessOrEqual(t, delay.Value(), MaxDesiredDelay)
}
