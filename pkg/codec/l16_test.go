// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestL16RoundTrip(t *testing.T) {
	c, err := NewL16(4, 2)
	require.NoError(t, err)

	pcm := []int16{0, 1, -1, 32767, -32768, 1000, -1000, 7}
	data, err := c.Encode(pcm)
	require.NoError(t, err)
	assert.Len(t, data, 16)
	assert.Equal(t, []byte{0x7F, 0xFF}, data[6:8])

	out := make([]int16, 8)
	n, err := c.Decode(data, out)
	require.NoError(t, err)
	assert.Equal(t, 8, n)
	assert.Equal(t, pcm, out)
}

func TestL16EncodeWrongSize(t *testing.T) {
	c, err := NewL16(4, 2)
	require.NoError(t, err)

	_, err = c.Encode(make([]int16, 5))
	assert.ErrorIs(t, err, ErrFrameSize)

	_, err = c.Decode([]byte{1, 2, 3}, make([]int16, 8))
	assert.ErrorIs(t, err, ErrOddPayload)
}

func TestL16Concealment(t *testing.T) {
	c, err := NewL16(4, 2)
	require.NoError(t, err)
	out := make([]int16, 8)

	// Nothing decoded yet: silence.
	n, err := c.Decode(nil, out)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []int16{0, 0, 0, 0}, out[:4])

	data, err := c.Encode([]int16{0, 0, 0, 0, 400, 800, -400, -800})
	require.NoError(t, err)
	_, err = c.Decode(data, out)
	require.NoError(t, err)

	n, _ = c.Decode(nil, out)
	assert.Equal(t, 4, n)
	assert.Equal(t, []int16{200, 400, -200, -400}, out[:4])

	_, _ = c.Decode(nil, out)
	assert.Equal(t, []int16{100, 200, -100, -200}, out[:4])
}

func TestNewL16Invalid(t *testing.T) {
	_, err := NewL16(0, 2)
	assert.ErrorIs(t, err, ErrFrameSize)
}
