// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package jitterbuffer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

const testFrame = 20 * time.Millisecond

func testTrackerConfig() Config {
	cfg := DefaultConfig()
	cfg.FrameDuration = testFrame

	return cfg
}

// burstTrace feeds packets 0..total-1 where packets [burstStart,
// burstStart+burstLen) are held back and released together with the packet
// that follows the burst.
func burstTrace(tracker *DropoutTracker, start time.Time, total, burstStart, burstLen int) time.Time {
	var now time.Time
	for seq := 0; seq < total; seq++ {
		arrival := seq
		if seq >= burstStart && seq < burstStart+burstLen {
			arrival = burstStart + burstLen
		}
		now = start.Add(time.Duration(arrival) * testFrame)
		tracker.Observe(uint64(seq), now) //nolint:gosec // G115
	}

	return now
}

func TestDropoutTrackerSteadyArrivals(t *testing.T) {
	tracker := NewDropoutTracker(testTrackerConfig())
	start := time.Unix(1000, 0)

	var now time.Time
	for seq := 0; seq < 500; seq++ {
		now = start.Add(time.Duration(seq) * testFrame)
		assert.Zero(t, tracker.Observe(uint64(seq), now)) //nolint:gosec // G115
	}

	assert.Equal(t, 0, tracker.DepthForThreshold(0, now))
	assert.Equal(t, 0, tracker.events(now))
}

func TestDropoutTrackerBurst(t *testing.T) {
	tracker := NewDropoutTracker(testTrackerConfig())
	start := time.Unix(1000, 0)

	now := burstTrace(tracker, start, 200, 100, 10)

	assert.GreaterOrEqual(t, tracker.DepthForThreshold(0, now), 10)
	// One tolerated dropout leaves nothing that needs covering.
	assert.Less(t, tracker.DepthForThreshold(1, now), 10)
}

func TestDropoutTrackerEarlyArrivalSnapsBaseline(t *testing.T) {
	tracker := NewDropoutTracker(testTrackerConfig())
	start := time.Unix(1000, 0)

	tracker.Observe(0, start.Add(5*testFrame))
	// Packet 1 arrives long before packet 0's lateness would predict.
	assert.Zero(t, tracker.Observe(1, start.Add(testFrame)))
	assert.InDelta(t, 1.0, tracker.Observe(2, start.Add(3*testFrame)), 1e-9)
}

func TestDropoutTrackerLateArrivalNudgesBaseline(t *testing.T) {
	tracker := NewDropoutTracker(testTrackerConfig())
	start := time.Unix(1000, 0)

	tracker.Observe(0, start)
	lateness := tracker.Observe(1, start.Add(11*testFrame))
	assert.InDelta(t, 10.0, lateness, 1e-9)

	// The baseline moved by a hundredth of the lateness only.
	assert.InDelta(t, 9.9, tracker.Observe(2, start.Add(12*testFrame)), 1e-9)
}

func TestDropoutTrackerIgnoresOutages(t *testing.T) {
	tracker := NewDropoutTracker(testTrackerConfig())
	start := time.Unix(1000, 0)

	// A 40 frame outage is beyond anything buffering could cover.
	now := burstTrace(tracker, start, 200, 100, 40)

	assert.Equal(t, 0, tracker.events(now))
	assert.Equal(t, 0, tracker.DepthForThreshold(0, now))
}

func TestDropoutTrackerWindowExpiry(t *testing.T) {
	cfg := testTrackerConfig()
	tracker := NewDropoutTracker(cfg)
	start := time.Unix(1000, 0)

	now := burstTrace(tracker, start, 200, 100, 6)
	assert.GreaterOrEqual(t, tracker.DepthForThreshold(0, now), 6)

	later := now.Add(cfg.BinWindow + time.Second)
	assert.Equal(t, 0, tracker.DepthForThreshold(0, later))
}

func TestCenterPeak(t *testing.T) {
	for _, tt := range []struct {
		name   string
		window []float64
		peak   bool
	}{
		{"strict maximum", []float64{0, 1, 5, 2, 0}, true},
		{"tie on the newer side", []float64{0, 1, 5, 5, 0}, true},
		{"tie on the older side", []float64{0, 5, 5, 2, 0}, false},
		{"newer is higher", []float64{0, 1, 5, 6, 0}, false},
		{"flat", []float64{0, 0, 0, 0, 0}, false},
	} {
		t.Run(tt.name, func(t *testing.T) {
			tracker := NewDropoutTracker(testTrackerConfig())
			copy(tracker.recent, tt.window)
			tracker.filled = len(tt.window)

			_, ok := tracker.centerPeak()
			assert.Equal(t, tt.peak, ok)
		})
	}
}
