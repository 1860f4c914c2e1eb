// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Package jitterbuffer holds received voice frames, decides which one to play
// on every tick and asks for a playout rate that steers the buffer towards a
// target depth learned from recent arrival lateness.
package jitterbuffer

import (
	"math"
	"time"

	"github.com/pion/logging"
	"github.com/pion/securecall"
	"github.com/pion/securecall/pkg/stats"
)

// Event is the outcome of one tick, counted in Stats and reported to Metrics.
type Event string

const (
	// EventExact is emitted when the frame at the playhead is played.
	EventExact Event = "exact"
	// EventLate is emitted when the playhead skips forward over a gap.
	EventLate Event = "late"
	// EventVeryLate is emitted when the playhead jumps back to a frame that
	// arrived well after its slot.
	EventVeryLate Event = "very_late"
	// EventMissing is emitted when a tick has to be concealed.
	EventMissing Event = "missing"
	// EventOverflow is emitted when frames are discarded to respect
	// MaxBufferedFrames.
	EventOverflow Event = "overflow"
)

// Stats counts what happened to frames over the life of a JitterBuffer.
type Stats struct {
	Pushed     uint64
	Duplicates uint64
	TooOld     uint64
	Exact      uint64
	Late       uint64
	VeryLate   uint64
	Missing    uint64
	Overflow   uint64
}

// JitterBuffer is the audio provider of the playout path. It is owned by a
// single goroutine and is not safe for concurrent use.
type JitterBuffer struct {
	cfg   Config
	codec securecall.Codec

	frames       *RBTree
	started      bool
	playhead     uint64
	lastGood     uint64
	haveGood     bool
	missingTicks int

	tracker   *DropoutTracker
	delay     *DesiredDelay
	deviation float64

	counters Stats
	metrics  stats.Metrics
	log      logging.LeveledLogger

	initialDelay    *float64
	minimizeLatency *bool
}

// New creates a JitterBuffer that decodes with codec.
func New(codec securecall.Codec, opts ...Option) (*JitterBuffer, error) {
	if codec == nil {
		return nil, ErrNilCodec
	}

	jb := &JitterBuffer{
		cfg:     DefaultConfig(),
		codec:   codec,
		frames:  NewTree(),
		metrics: stats.NopMetrics{},
		log:     logging.NewDefaultLoggerFactory().NewLogger("jitterbuffer"),
	}
	for _, opt := range opts {
		if err := opt(jb); err != nil {
			return nil, err
		}
	}

	if jb.initialDelay != nil {
		jb.cfg.InitialDelay = *jb.initialDelay
	}
	if jb.minimizeLatency != nil {
		jb.cfg.MinimizeLatency = *jb.minimizeLatency
	}

	jb.tracker = NewDropoutTracker(jb.cfg)
	jb.delay = NewDesiredDelay(jb.cfg)

	return jb, nil
}

func (jb *JitterBuffer) emit(event Event) {
	switch event {
	case EventExact:
		jb.counters.Exact++
	case EventLate:
		jb.counters.Late++
	case EventVeryLate:
		jb.counters.VeryLate++
	case EventMissing:
		jb.counters.Missing++
	case EventOverflow:
		jb.counters.Overflow++
	}
	jb.metrics.PlayoutEvent(string(event))
}

// Push inserts a received frame. Frames at or behind the last played frame
// and duplicates are rejected. It reports whether the frame was kept.
func (jb *JitterBuffer) Push(frame Frame, now time.Time) bool {
	if jb.haveGood && frame.Sequence <= jb.lastGood {
		jb.counters.TooOld++

		return false
	}
	if frame.Arrival.IsZero() {
		frame.Arrival = now
	}
	if !jb.frames.Insert(&frame) {
		jb.counters.Duplicates++

		return false
	}
	jb.counters.Pushed++

	jb.tracker.Observe(frame.Sequence, now)

	switch {
	case !jb.started:
		jb.started = true
		jb.playhead = frame.Sequence
	case !jb.haveGood && frame.Sequence < jb.playhead:
		jb.playhead = frame.Sequence
	}
	jb.enforceCapacity()

	return true
}

// Tick produces the next decoded frame into out and the playout rate the
// caller should stretch it by. A rate below one plays faster.
func (jb *JitterBuffer) Tick(now time.Time, out []int16) (int, float64) {
	jb.trim()

	n, played := 0, false
	if oldest, err := jb.frames.Min(); err == nil {
		_, headErr := jb.frames.Find(jb.playhead)
		switch {
		case oldest.Sequence+jb.cfg.VeryLateGap < jb.playhead:
			jb.playhead = oldest.Sequence
			jb.emit(EventVeryLate)
			n, played = jb.play(out), true
		case headErr != nil && oldest.Sequence > jb.playhead && jb.frames.Length() > jb.fastForwardDepth():
			jb.playhead = oldest.Sequence
			jb.emit(EventLate)
			n, played = jb.play(out), true
		case headErr == nil:
			jb.emit(EventExact)
			n, played = jb.play(out), true
		}
	}

	if played {
		jb.missingTicks = 0
		jb.delay.Update(jb.tracker.DepthForThreshold(jb.cfg.MaxDropouts, now))
	} else {
		n = jb.conceal(out)
		if jb.started {
			jb.emit(EventMissing)
			jb.missingTicks++
			if jb.missingTicks >= jb.cfg.SubFramesPerPacket {
				jb.missingTicks = 0
				jb.playhead++
			}
		}
	}
	jb.trim()

	jb.metrics.BufferDepth(jb.frames.Length())
	jb.metrics.DesiredDelay(jb.delay.Value())

	return n, jb.chooseRate()
}

func (jb *JitterBuffer) fastForwardDepth() int {
	return int(math.Ceil(jb.delay.Value())) + 1
}

// play decodes the frame at the playhead and moves past it.
func (jb *JitterBuffer) play(out []int16) int {
	frame, err := jb.frames.PopAt(jb.playhead)
	if err != nil {
		return jb.conceal(out)
	}
	jb.lastGood, jb.haveGood = frame.Sequence, true
	jb.playhead = frame.Sequence + 1

	n, err := jb.codec.Decode(frame.Payload, out)
	if err != nil || n == 0 {
		jb.log.Debugf("decode of frame %d failed (%v), concealing", frame.Sequence, err)

		return jb.conceal(out)
	}

	return n
}

func (jb *JitterBuffer) conceal(out []int16) int {
	n, err := jb.codec.Decode(nil, out)
	if err != nil {
		jb.log.Warnf("concealment failed: %v", err)

		return 0
	}

	return n
}

// trim drops frames that can no longer be played and enforces the
// occupancy limit.
func (jb *JitterBuffer) trim() {
	if jb.haveGood {
		for {
			oldest, err := jb.frames.Min()
			if err != nil || oldest.Sequence > jb.lastGood {
				break
			}
			_, _ = jb.frames.PopMin()
		}
	}
	jb.enforceCapacity()
}

func (jb *JitterBuffer) enforceCapacity() {
	if jb.frames.Length() <= jb.cfg.MaxBufferedFrames {
		return
	}
	for jb.frames.Length() > jb.cfg.MaxBufferedFrames {
		_, _ = jb.frames.PopMin()
	}
	if oldest, err := jb.frames.Min(); err == nil && oldest.Sequence > jb.playhead {
		jb.playhead = oldest.Sequence
	}
	jb.emit(EventOverflow)
}

func (jb *JitterBuffer) chooseRate() float64 {
	depth := float64(jb.frames.Length())
	desired := jb.delay.Value()
	jb.deviation += jb.cfg.DeviationSmoothing * (depth - desired - jb.deviation)

	switch {
	case depth > desired+jb.cfg.BigShiftThreshold:
		return 1 - jb.cfg.BigShift
	case jb.deviation > jb.cfg.SmallShiftThreshold:
		return 1 - jb.cfg.SmallShift
	case jb.deviation < -jb.cfg.SmallShiftThreshold:
		return 1 + jb.cfg.SmallShift
	}

	return 1
}

// Depth returns the number of buffered frames.
func (jb *JitterBuffer) Depth() int {
	return jb.frames.Length()
}

// DesiredDelay returns the current target depth in frames.
func (jb *JitterBuffer) DesiredDelay() float64 {
	return jb.delay.Value()
}

// Playhead returns the sequence the next tick will try to play.
func (jb *JitterBuffer) Playhead() uint64 {
	return jb.playhead
}

// Stats returns the event counters.
func (jb *JitterBuffer) Stats() Stats {
	return jb.counters
}

// DepthForThreshold exposes the dropout estimate the desired delay follows.
func (jb *JitterBuffer) DepthForThreshold(maxEvents int, now time.Time) int {
	return jb.tracker.DepthForThreshold(maxEvents, now)
}
