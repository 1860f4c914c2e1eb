// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package jitterbuffer

import (
	"fmt"
	"time"
)

// Tuning constants. They are the defaults of Config.
const (
	// PeakWindow is the number of lateness samples the peak detector looks
	// at. The sample in the middle is the peak candidate.
	PeakWindow = 5
	// MaxActionableLateness is the largest lateness, in frames, that is still
	// worth buffering for. Worse peaks are treated as outages.
	MaxActionableLateness = 12
	// BinWindow is how long a lateness peak is remembered.
	BinWindow = 30 * time.Second
	// BaselineNudge is the fraction of a late arrival's lateness the zero
	// time baseline moves by.
	BaselineNudge = 0.01

	// MinDesiredDelay and MaxDesiredDelay bound the target depth in frames.
	MinDesiredDelay = 0.5
	MaxDesiredDelay = 12.0
	// DelaySmoothing is the weight the previous desired delay keeps on each
	// update.
	DelaySmoothing = 0.99

	// VeryLateGap is how far, in frames, behind the playhead a buffered
	// frame must be before the playhead jumps back to it.
	VeryLateGap = 4
	// SubFramesPerPacket is the number of codec frames carried by one
	// network packet. A missing packet is concealed over that many ticks.
	SubFramesPerPacket = 2
	// MaxBufferedFrames caps the buffer occupancy.
	MaxBufferedFrames = 50

	// BigShift is the speed-up applied when the buffer is far too deep.
	BigShift = 0.15
	// BigShiftThreshold is how many frames above the desired delay trigger
	// BigShift.
	BigShiftThreshold = 3.0
	// SmallShift corrects small sustained deviations in either direction.
	SmallShift = 0.03
	// SmallShiftThreshold is the smoothed deviation, in frames, that triggers
	// SmallShift.
	SmallShiftThreshold = 0.75
	// DeviationSmoothing is the weight a new sample gets in the smoothed
	// deviation.
	DeviationSmoothing = 0.1

	// FrameDuration is the audio duration of one network packet.
	FrameDuration = 40 * time.Millisecond
)

// Config holds the jitter buffer tunables.
type Config struct {
	FrameDuration time.Duration `yaml:"frame_duration"`

	PeakWindow            int           `yaml:"peak_window"`
	MaxActionableLateness int           `yaml:"max_actionable_lateness"`
	BinWindow             time.Duration `yaml:"bin_window"`
	BaselineNudge         float64       `yaml:"baseline_nudge"`
	// MaxDropouts is the number of lateness peaks per BinWindow the desired
	// delay is allowed to not cover.
	MaxDropouts int `yaml:"max_dropouts"`

	InitialDelay    float64 `yaml:"initial_delay"`
	MinDelay        float64 `yaml:"min_delay"`
	MaxDelay        float64 `yaml:"max_delay"`
	DelaySmoothing  float64 `yaml:"delay_smoothing"`
	MinimizeLatency bool    `yaml:"minimize_latency"`

	VeryLateGap        uint64 `yaml:"very_late_gap"`
	SubFramesPerPacket int    `yaml:"sub_frames_per_packet"`
	MaxBufferedFrames  int    `yaml:"max_buffered_frames"`

	BigShift            float64 `yaml:"big_shift"`
	BigShiftThreshold   float64 `yaml:"big_shift_threshold"`
	SmallShift          float64 `yaml:"small_shift"`
	SmallShiftThreshold float64 `yaml:"small_shift_threshold"`
	DeviationSmoothing  float64 `yaml:"deviation_smoothing"`
}

// DefaultConfig returns the default tunables.
func DefaultConfig() Config {
	return Config{
		FrameDuration:         FrameDuration,
		PeakWindow:            PeakWindow,
		MaxActionableLateness: MaxActionableLateness,
		BinWindow:             BinWindow,
		BaselineNudge:         BaselineNudge,
		InitialDelay:          MinDesiredDelay,
		MinDelay:              MinDesiredDelay,
		MaxDelay:              MaxDesiredDelay,
		DelaySmoothing:        DelaySmoothing,
		VeryLateGap:           VeryLateGap,
		SubFramesPerPacket:    SubFramesPerPacket,
		MaxBufferedFrames:     MaxBufferedFrames,
		BigShift:              BigShift,
		BigShiftThreshold:     BigShiftThreshold,
		SmallShift:            SmallShift,
		SmallShiftThreshold:   SmallShiftThreshold,
		DeviationSmoothing:    DeviationSmoothing,
	}
}

// Validate reports the first out of range value.
func (c Config) Validate() error {
	switch {
	case c.FrameDuration <= 0:
		return fmt.Errorf("%w: frame duration %v", ErrInvalidConfig, c.FrameDuration)
	case c.PeakWindow < 3 || c.PeakWindow%2 == 0:
		return fmt.Errorf("%w: peak window %d must be odd and at least 3", ErrInvalidConfig, c.PeakWindow)
	case c.MaxActionableLateness < 1:
		return fmt.Errorf("%w: max actionable lateness %d", ErrInvalidConfig, c.MaxActionableLateness)
	case c.BinWindow <= 0:
		return fmt.Errorf("%w: bin window %v", ErrInvalidConfig, c.BinWindow)
	case c.MinDelay <= 0 || c.MaxDelay < c.MinDelay:
		return fmt.Errorf("%w: delay bounds [%v, %v]", ErrInvalidConfig, c.MinDelay, c.MaxDelay)
	case c.DelaySmoothing < 0 || c.DelaySmoothing >= 1:
		return fmt.Errorf("%w: delay smoothing %v", ErrInvalidConfig, c.DelaySmoothing)
	case c.SubFramesPerPacket < 1:
		return fmt.Errorf("%w: sub frames per packet %d", ErrInvalidConfig, c.SubFramesPerPacket)
	case c.MaxBufferedFrames < 1:
		return fmt.Errorf("%w: max buffered frames %d", ErrInvalidConfig, c.MaxBufferedFrames)
	case c.BigShift < 0 || c.BigShift >= 1 || c.SmallShift < 0 || c.SmallShift >= 1:
		return fmt.Errorf("%w: rate shifts %v/%v", ErrInvalidConfig, c.BigShift, c.SmallShift)
	}

	return nil
}
