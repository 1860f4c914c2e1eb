// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package jitterbuffer

import (
	"math"
	"time"

	"github.com/gammazero/deque"
)

// DropoutTracker watches packet arrival times and estimates how deep the
// buffer has to be to ride out recent lateness peaks.
//
// Lateness is measured against a zero time baseline, the instant sequence
// zero would have arrived. An early arrival moves the baseline back to it at
// once, a late arrival drags it along by a small fraction of the lateness, so
// clock drift is followed without every delay spike being absorbed.
type DropoutTracker struct {
	frame     time.Duration
	nudge     float64
	binWindow time.Duration

	init      bool
	firstSeq  uint64
	zeroTime  time.Time
	recent    []float64
	recentPos int
	filled    int

	// bins[d] holds the times of peaks whose lateness rounds up to d frames.
	bins []deque.Deque[time.Time]
}

// NewDropoutTracker creates a tracker from the dropout fields of cfg.
func NewDropoutTracker(cfg Config) *DropoutTracker {
	return &DropoutTracker{
		frame:     cfg.FrameDuration,
		nudge:     cfg.BaselineNudge,
		binWindow: cfg.BinWindow,
		recent:    make([]float64, cfg.PeakWindow),
		bins:      make([]deque.Deque[time.Time], cfg.MaxActionableLateness+1),
	}
}

// Observe records that the frame with the given logical sequence arrived at
// now and returns its lateness in frames.
func (d *DropoutTracker) Observe(seq uint64, now time.Time) float64 {
	offset := time.Duration(int64(seq)-int64(d.firstSeq)) * d.frame //nolint:gosec // G115
	if !d.init {
		d.init = true
		d.firstSeq = seq
		d.zeroTime = now
		offset = 0
	}

	expected := d.zeroTime.Add(offset)
	lateness := now.Sub(expected)
	if lateness < 0 {
		d.zeroTime = d.zeroTime.Add(lateness)
		lateness = 0
	} else {
		d.zeroTime = d.zeroTime.Add(time.Duration(float64(lateness) * d.nudge))
	}

	frames := float64(lateness) / float64(d.frame)
	d.record(frames, now)

	return frames
}

func (d *DropoutTracker) record(lateness float64, now time.Time) {
	d.recent[d.recentPos] = lateness
	d.recentPos = (d.recentPos + 1) % len(d.recent)
	if d.filled < len(d.recent) {
		d.filled++
	}
	if d.filled < len(d.recent) {
		return
	}

	if peak, ok := d.centerPeak(); ok && peak > 0 {
		bin := int(math.Ceil(peak))
		if bin < len(d.bins) {
			d.bins[bin].PushBack(now)
		}
	}
}

// centerPeak reports whether the middle sample of the window is a local
// maximum: strictly above everything older, at least everything newer.
func (d *DropoutTracker) centerPeak() (float64, bool) {
	n := len(d.recent)
	half := n / 2
	// recentPos points at the oldest sample.
	at := func(i int) float64 { return d.recent[(d.recentPos+i)%n] }

	center := at(half)
	for i := 0; i < half; i++ {
		if at(i) >= center {
			return 0, false
		}
	}
	for i := half + 1; i < n; i++ {
		if at(i) > center {
			return 0, false
		}
	}

	return center, true
}

func (d *DropoutTracker) expire(now time.Time) {
	cutoff := now.Add(-d.binWindow)
	for i := range d.bins {
		for d.bins[i].Len() > 0 && d.bins[i].Front().Before(cutoff) {
			d.bins[i].PopFront()
		}
	}
}

// DepthForThreshold returns the smallest buffer depth, in frames, that
// would have absorbed all but maxEvents of the lateness peaks seen in the
// last bin window.
func (d *DropoutTracker) DepthForThreshold(maxEvents int, now time.Time) int {
	d.expire(now)

	events := 0
	for depth := len(d.bins) - 1; depth > 0; depth-- {
		events += d.bins[depth].Len()
		if events > maxEvents {
			return depth
		}
	}

	return 0
}

// events returns the number of remembered peaks.
func (d *DropoutTracker) events(now time.Time) int {
	d.expire(now)

	total := 0
	for i := range d.bins {
		total += d.bins[i].Len()
	}

	return total
}
