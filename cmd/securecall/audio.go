// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package main

import (
	"errors"
	"math"
	"sync"
	"time"
)

var errDeviceClosed = errors.New("audio device closed")

// toneCapture is a microphone that hears a sine tone. Read paces itself to
// the sample rate.
type toneCapture struct {
	rate, freq float64
	amplitude  float64

	phase float64
	next  time.Time

	closeOnce sync.Once
	closed    chan struct{}
}

func newToneCapture(rate, freq float64) *toneCapture {
	return &toneCapture{rate: rate, freq: freq, amplitude: 8000, closed: make(chan struct{})}
}

func (c *toneCapture) Read(pcm []int16) (int, error) {
	if c.next.IsZero() {
		c.next = time.Now()
	}
	c.next = c.next.Add(time.Duration(float64(len(pcm)) / c.rate * float64(time.Second)))

	timer := time.NewTimer(time.Until(c.next))
	defer timer.Stop()

	select {
	case <-c.closed:
		return 0, errDeviceClosed
	case <-timer.C:
	}

	step := 2 * math.Pi * c.freq / c.rate
	for i := range pcm {
		pcm[i] = int16(c.amplitude * math.Sin(c.phase))
		c.phase = math.Mod(c.phase+step, 2*math.Pi)
	}

	return len(pcm), nil
}

func (c *toneCapture) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })

	return nil
}

// clockPlayback is a speaker that consumes samples at the sample rate.
type clockPlayback struct {
	mu       sync.Mutex
	rate     float64
	capacity int

	buffered float64
	last     time.Time
	played   uint64
	closed   bool
}

func newClockPlayback(rate float64, capacity int) *clockPlayback {
	return &clockPlayback{rate: rate, capacity: capacity}
}

func (p *clockPlayback) advance(now time.Time) {
	if !p.last.IsZero() {
		consumed := min(p.buffered, now.Sub(p.last).Seconds()*p.rate)
		p.buffered -= consumed
		p.played += uint64(consumed)
	}
	p.last = now
}

func (p *clockPlayback) Write(pcm []int16) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return 0, errDeviceClosed
	}
	p.advance(time.Now())

	n := min(len(pcm), p.capacity-int(p.buffered))
	p.buffered += float64(n)

	return n, nil
}

func (p *clockPlayback) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.advance(time.Now())

	return int(p.buffered)
}

func (p *clockPlayback) Played() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.played
}

func (p *clockPlayback) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true

	return nil
}
