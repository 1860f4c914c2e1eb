// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Package codec provides a linear PCM codec with packet loss concealment.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrFrameSize is returned when an encode input is not a whole packet.
	ErrFrameSize = errors.New("pcm frame has the wrong number of samples")
	// ErrOddPayload is returned when a payload is not made of whole samples.
	ErrOddPayload = errors.New("payload has an odd number of bytes")
)

// concealDecay is the gain applied to each further concealed sub-frame.
const concealDecay = 0.5

// L16 encodes 16-bit big-endian linear PCM. A packet carries subFrames
// sub-frames of frameSamples samples. Concealment repeats the tail of the
// last decoded audio, halving its level each time.
type L16 struct {
	frameSamples int
	subFrames    int

	last  []int16
	gain  float64
	valid bool
}

// NewL16 returns an L16 codec.
func NewL16(frameSamples, subFrames int) (*L16, error) {
	if frameSamples <= 0 || subFrames <= 0 {
		return nil, fmt.Errorf("%w: %d x %d", ErrFrameSize, subFrames, frameSamples)
	}

	return &L16{
		frameSamples: frameSamples,
		subFrames:    subFrames,
		last:         make([]int16, frameSamples),
	}, nil
}

// PacketSamples is the number of samples one packet carries.
func (c *L16) PacketSamples() int {
	return c.frameSamples * c.subFrames
}

// FrameSamples implements securecall.Codec.
func (c *L16) FrameSamples() int {
	return c.frameSamples
}

// Encode implements securecall.Codec.
func (c *L16) Encode(pcm []int16) ([]byte, error) {
	if len(pcm) != c.PacketSamples() {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrFrameSize, len(pcm), c.PacketSamples())
	}

	out := make([]byte, 2*len(pcm))
	for i, s := range pcm {
		binary.BigEndian.PutUint16(out[2*i:], uint16(s)) //nolint:gosec // G115, two's complement on the wire
	}

	return out, nil
}

// Decode implements securecall.Codec. A nil payload produces one concealed
// sub-frame.
func (c *L16) Decode(data []byte, out []int16) (int, error) {
	if data == nil {
		return c.conceal(out), nil
	}
	if len(data)%2 != 0 {
		return 0, ErrOddPayload
	}

	n := min(len(data)/2, len(out))
	for i := 0; i < n; i++ {
		out[i] = int16(binary.BigEndian.Uint16(data[2*i:])) //nolint:gosec // G115
	}

	if n >= c.frameSamples {
		copy(c.last, out[n-c.frameSamples:n])
		c.gain = 1
		c.valid = true
	}

	return n, nil
}

func (c *L16) conceal(out []int16) int {
	n := min(c.frameSamples, len(out))
	if !c.valid {
		clear(out[:n])

		return n
	}

	c.gain *= concealDecay
	for i := 0; i < n; i++ {
		out[i] = int16(float64(c.last[i]) * c.gain)
	}

	return n
}
