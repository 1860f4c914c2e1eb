// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package jitterbuffer

// DesiredDelay smooths the depth estimates of a DropoutTracker into the
// target depth of the buffer, in frames.
type DesiredDelay struct {
	value     float64
	min, max  float64
	smoothing float64
	minimize  bool
}

// NewDesiredDelay creates a DesiredDelay starting at cfg.InitialDelay.
func NewDesiredDelay(cfg Config) *DesiredDelay {
	d := &DesiredDelay{
		min:       cfg.MinDelay,
		max:       cfg.MaxDelay,
		smoothing: cfg.DelaySmoothing,
		minimize:  cfg.MinimizeLatency,
	}
	d.value = d.clamp(cfg.InitialDelay)

	return d
}

// Update folds one depth sample into the target and returns the new value.
func (d *DesiredDelay) Update(depth int) float64 {
	d.value = d.clamp(d.smoothing*d.value + (1-d.smoothing)*float64(depth))

	return d.value
}

// Value returns the current target.
func (d *DesiredDelay) Value() float64 {
	return d.value
}

func (d *DesiredDelay) clamp(v float64) float64 {
	switch {
	case d.minimize, v < d.min:
		return d.min
	case v > d.max:
		return d.max
	}

	return v
}
