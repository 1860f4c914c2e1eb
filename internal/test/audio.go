// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package test

import (
	"errors"
	"io"
	"sync"
	"time"

	"go.uber.org/atomic"
)

var errDeviceClosed = errors.New("device closed")

// FakeCodec encodes a frame as its first sample and decodes it back into
// SubFrames sub-frames of Samples constant samples. A nil decode produces one
// sub-frame of silence.
type FakeCodec struct {
	Samples   int
	SubFrames int

	Concealed atomic.Int64
	Decoded   atomic.Int64
}

// NewFakeCodec returns a FakeCodec.
func NewFakeCodec(samples, subFrames int) *FakeCodec {
	return &FakeCodec{Samples: samples, SubFrames: subFrames}
}

// Encode implements securecall.Codec.
func (c *FakeCodec) Encode(pcm []int16) ([]byte, error) {
	if len(pcm) == 0 {
		return []byte{0}, nil
	}

	return []byte{byte(pcm[0])}, nil
}

// Decode implements securecall.Codec.
func (c *FakeCodec) Decode(data []byte, out []int16) (int, error) {
	if data == nil {
		c.Concealed.Inc()
		n := min(c.Samples, len(out))
		clear(out[:n])

		return n, nil
	}
	if len(data) == 0 {
		return 0, io.ErrUnexpectedEOF
	}

	c.Decoded.Inc()
	n := min(c.Samples*c.SubFrames, len(out))
	for i := 0; i < n; i++ {
		out[i] = int16(data[0])
	}

	return n, nil
}

// FrameSamples implements securecall.Codec.
func (c *FakeCodec) FrameSamples() int {
	return c.Samples
}

// FakeCapture produces chunks filled with an increasing counter. Read blocks
// until Close when Block is set, which mimics a device with no data, and
// waits Interval before every chunk otherwise.
type FakeCapture struct {
	mu       sync.Mutex
	counter  int16
	Block    bool
	Interval time.Duration

	closeOnce  sync.Once
	closed     chan struct{}
	closeCount atomic.Int32
	reads      atomic.Int64
}

// NewFakeCapture returns a FakeCapture.
func NewFakeCapture() *FakeCapture {
	return &FakeCapture{closed: make(chan struct{})}
}

// Read implements securecall.Capture.
func (c *FakeCapture) Read(pcm []int16) (int, error) {
	c.mu.Lock()
	block, interval := c.Block, c.Interval
	c.mu.Unlock()

	if block {
		<-c.closed

		return 0, errDeviceClosed
	}
	if interval > 0 {
		timer := time.NewTimer(interval)
		defer timer.Stop()

		select {
		case <-c.closed:
			return 0, errDeviceClosed
		case <-timer.C:
		}
	}
	select {
	case <-c.closed:
		return 0, errDeviceClosed
	default:
	}

	c.mu.Lock()
	c.counter++
	for i := range pcm {
		pcm[i] = c.counter
	}
	c.mu.Unlock()
	c.reads.Inc()

	return len(pcm), nil
}

// Reads returns the number of successful reads.
func (c *FakeCapture) Reads() int64 {
	return c.reads.Load()
}

// Close implements securecall.Capture. Every call is counted.
func (c *FakeCapture) Close() error {
	c.closeCount.Inc()
	c.closeOnce.Do(func() { close(c.closed) })

	return nil
}

// CloseCount returns how many times Close was called.
func (c *FakeCapture) CloseCount() int {
	return int(c.closeCount.Load())
}

// FakePlayback is a playback device with a fixed capacity. Drain simulates
// the hardware consuming samples.
type FakePlayback struct {
	mu       sync.Mutex
	capacity int
	buffered int
	written  []int16

	closeCount atomic.Int32
}

// NewFakePlayback returns a FakePlayback accepting up to capacity queued
// samples.
func NewFakePlayback(capacity int) *FakePlayback {
	return &FakePlayback{capacity: capacity}
}

// Write implements securecall.Playback. It accepts as many samples as fit.
func (p *FakePlayback) Write(pcm []int16) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closeCount.Load() > 0 {
		return 0, errDeviceClosed
	}
	n := min(len(pcm), p.capacity-p.buffered)
	p.buffered += n
	p.written = append(p.written, pcm[:n]...)

	return n, nil
}

// Buffered implements securecall.Playback.
func (p *FakePlayback) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.buffered
}

// Drain plays up to n samples and returns how many were played.
func (p *FakePlayback) Drain(n int) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n = min(n, p.buffered)
	p.buffered -= n

	return n
}

// Written returns a copy of every accepted sample.
func (p *FakePlayback) Written() []int16 {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]int16(nil), p.written...)
}

// Close implements securecall.Playback. Every call is counted.
func (p *FakePlayback) Close() error {
	p.closeCount.Inc()

	return nil
}

// CloseCount returns how many times Close was called.
func (p *FakePlayback) CloseCount() int {
	return int(p.closeCount.Load())
}
