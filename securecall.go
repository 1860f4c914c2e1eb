// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Package securecall contains the boundary interfaces of the secure voice
// core: the codec and the audio hardware. The call, transport and jitter
// buffer packages are built on top of them.
package securecall

// Codec encodes fixed-size PCM frames and decodes them back.
//
// Decode must accept a nil input and produce a concealment frame of non-zero
// length in that case.
type Codec interface {
	Encode(pcm []int16) ([]byte, error)
	Decode(data []byte, out []int16) (int, error)

	// FrameSamples is the number of samples produced by a concealment
	// decode, one sub-frame.
	FrameSamples() int
}

// Capture is the microphone side of the audio hardware. Read blocks until a
// full chunk is available.
type Capture interface {
	Read(pcm []int16) (int, error)
	Close() error
}

// Playback is the speaker side of the audio hardware. Write never blocks and
// returns the number of samples the device accepted.
type Playback interface {
	Write(pcm []int16) (int, error)
	// Buffered reports how many samples are queued in the device and not yet
	// played.
	Buffered() int
	Close() error
}

// CaptureFunc is an adapter for Capture interface.
type CaptureFunc func(pcm []int16) (int, error)

// Read reads a chunk of PCM.
func (f CaptureFunc) Read(pcm []int16) (int, error) {
	return f(pcm)
}

// Close is a no-op.
func (f CaptureFunc) Close() error {
	return nil
}
