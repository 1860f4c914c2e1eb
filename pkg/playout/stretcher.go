// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package playout

import "math"

// Stretcher resamples decoded frames by linear interpolation so playout can
// run slightly faster or slower than real time.
type Stretcher struct {
	buf []int16
}

// Stretch returns in resampled to round(len(in)*rate) samples. The first and
// last samples are kept. The returned slice is reused by the next call.
func (s *Stretcher) Stretch(in []int16, rate float64) []int16 {
	n := len(in)
	outLen := int(math.Round(float64(n) * rate))
	if rate <= 0 || outLen < 2 || n < 2 || outLen == n {
		s.buf = append(s.buf[:0], in...)

		return s.buf
	}

	if cap(s.buf) < outLen {
		s.buf = make([]int16, outLen)
	}
	s.buf = s.buf[:outLen]

	step := float64(n-1) / float64(outLen-1)
	for i := range s.buf {
		pos := float64(i) * step
		idx := int(pos)
		if idx >= n-1 {
			s.buf[i] = in[n-1]

			continue
		}
		frac := pos - float64(idx)
		a, b := float64(in[idx]), float64(in[idx+1])
		s.buf[i] = int16(math.Round(a + (b-a)*frac))
	}

	return s.buf
}
