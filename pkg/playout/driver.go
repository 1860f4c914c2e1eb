// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Package playout feeds the playback device from the jitter buffer while
// keeping as little audio queued in the device as it can get away with.
package playout

import (
	"errors"
	"fmt"
	"time"

	"github.com/pion/logging"
	"github.com/pion/securecall"
	"github.com/pion/securecall/pkg/stats"
)

var (
	// ErrNilDevice is returned when a Driver is created without a provider
	// or playback device.
	ErrNilDevice = errors.New("playout requires a provider and a playback device")
	// ErrInvalidConfig is returned when a Config value is out of range.
	ErrInvalidConfig = errors.New("invalid playout config")
)

// Provider produces decoded frames and the rate to play them at.
// *jitterbuffer.JitterBuffer implements it.
type Provider interface {
	Tick(now time.Time, out []int16) (int, float64)
}

// Config holds the device level tunables. Levels are in samples.
type Config struct {
	InitialLevel     int           `yaml:"initial_level"`
	MinLevel         int           `yaml:"min_level"`
	MaxLevel         int           `yaml:"max_level"`
	LevelStep        int           `yaml:"level_step"`
	DecreaseInterval time.Duration `yaml:"decrease_interval"`
	// MaxFrameSamples bounds the size of one decoded frame.
	MaxFrameSamples int `yaml:"max_frame_samples"`
	// MaxTicksPerFill bounds the work done by one Fill.
	MaxTicksPerFill int `yaml:"max_ticks_per_fill"`
}

// DefaultConfig returns levels suited to 8 kHz audio.
func DefaultConfig() Config {
	return Config{
		InitialLevel:     640,
		MinLevel:         320,
		MaxLevel:         4000,
		LevelStep:        160,
		DecreaseInterval: 10 * time.Second,
		MaxFrameSamples:  1920,
		MaxTicksPerFill:  8,
	}
}

// Validate reports the first out of range value.
func (c Config) Validate() error {
	switch {
	case c.MinLevel < 0 || c.MaxLevel < c.MinLevel:
		return fmt.Errorf("%w: level bounds [%d, %d]", ErrInvalidConfig, c.MinLevel, c.MaxLevel)
	case c.LevelStep <= 0:
		return fmt.Errorf("%w: level step %d", ErrInvalidConfig, c.LevelStep)
	case c.DecreaseInterval <= 0:
		return fmt.Errorf("%w: decrease interval %v", ErrInvalidConfig, c.DecreaseInterval)
	case c.MaxFrameSamples <= 0 || c.MaxTicksPerFill <= 0:
		return fmt.Errorf("%w: frame bounds %d/%d", ErrInvalidConfig, c.MaxFrameSamples, c.MaxTicksPerFill)
	}

	return nil
}

// Driver pulls frames from a Provider only while the playback device holds
// less than the learned target level. The level grows on every underrun and
// shrinks again after a quiet DecreaseInterval.
type Driver struct {
	cfg      Config
	provider Provider
	playback securecall.Playback

	level      int
	primed     bool
	lastChange time.Time

	decoded   []int16
	pending   []int16
	stretcher Stretcher

	metrics stats.Metrics
	log     logging.LeveledLogger

	initialLevel *int
}

// New creates a Driver.
func New(provider Provider, playback securecall.Playback, opts ...Option) (*Driver, error) {
	if provider == nil || playback == nil {
		return nil, ErrNilDevice
	}

	d := &Driver{
		cfg:      DefaultConfig(),
		provider: provider,
		playback: playback,
		metrics:  stats.NopMetrics{},
		log:      logging.NewDefaultLoggerFactory().NewLogger("playout"),
	}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}

	if d.initialLevel != nil {
		d.cfg.InitialLevel = *d.initialLevel
	}
	d.level = d.clamp(d.cfg.InitialLevel)
	d.decoded = make([]int16, d.cfg.MaxFrameSamples)

	return d, nil
}

// Fill tops up the playback device. Device write errors are returned.
func (d *Driver) Fill(now time.Time) error {
	if d.lastChange.IsZero() {
		d.lastChange = now
	}

	buffered := d.playback.Buffered()
	d.learn(buffered, now)

	if err := d.flush(); err != nil || len(d.pending) > 0 {
		return err
	}
	buffered = d.playback.Buffered()

	for i := 0; i < d.cfg.MaxTicksPerFill && buffered < d.level; i++ {
		n, rate := d.provider.Tick(now, d.decoded)
		if n == 0 {
			break
		}
		d.pending = append(d.pending[:0], d.stretcher.Stretch(d.decoded[:n], rate)...)

		if err := d.flush(); err != nil {
			return err
		}
		if len(d.pending) > 0 {
			break
		}
		d.primed = true
		buffered = d.playback.Buffered()
	}

	return nil
}

func (d *Driver) learn(buffered int, now time.Time) {
	switch {
	case d.primed && buffered == 0:
		d.metrics.Underrun()
		if next := d.clamp(d.level + d.cfg.LevelStep); next != d.level {
			d.log.Debugf("playback underrun, raising level to %d samples", next)
			d.level = next
		}
		d.lastChange = now
	case now.Sub(d.lastChange) >= d.cfg.DecreaseInterval:
		d.level = d.clamp(d.level - d.cfg.LevelStep)
		d.lastChange = now
	}
}

// flush writes pending samples, keeping whatever the device did not accept.
func (d *Driver) flush() error {
	if len(d.pending) == 0 {
		return nil
	}

	n, err := d.playback.Write(d.pending)
	if err != nil {
		return fmt.Errorf("playout: write: %w", err)
	}
	d.pending = d.pending[:copy(d.pending, d.pending[n:])]

	return nil
}

func (d *Driver) clamp(level int) int {
	return min(max(level, d.cfg.MinLevel), d.cfg.MaxLevel)
}

// Level returns the learned device level in samples.
func (d *Driver) Level() int {
	return d.level
}
