// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Package stats holds the media metrics sink and the reception statistics of
// an incoming secure stream.
package stats

import (
	"math"
	"time"

	"github.com/pion/rtcp"
)

// InboundStats are the reception statistics of one incoming stream.
type InboundStats struct {
	PacketsReceived uint64
	// PacketsLost is expected minus received. Duplicates can make it
	// negative.
	PacketsLost   int64
	BytesReceived uint64
	// Jitter is the interarrival jitter in seconds.
	Jitter                      float64
	LastPacketReceivedTimestamp time.Time
}

// Recorder computes RFC 3550 reception statistics from the packets a secure
// stream accepted. It is not safe for concurrent use.
type Recorder struct {
	ssrc      uint32
	clockRate float64

	initialized   bool
	firstSequence uint64
	highest       uint64

	firstArrival time.Time
	lastTransit  float64
	haveTransit  bool
	jitter       float64

	expectedPrior uint64
	receivedPrior uint64

	stats InboundStats
}

// NewRecorder creates a Recorder for the stream of ssrc sampled at clockRate.
func NewRecorder(ssrc uint32, clockRate float64) *Recorder {
	return &Recorder{ssrc: ssrc, clockRate: clockRate}
}

// Record accounts for one accepted packet.
func (r *Recorder) Record(sequence uint64, timestamp uint32, size int, now time.Time) {
	if !r.initialized {
		r.initialized = true
		r.firstSequence = sequence
		r.highest = sequence
		r.firstArrival = now
	}
	if sequence > r.highest {
		r.highest = sequence
	}

	r.stats.PacketsReceived++
	r.stats.BytesReceived += uint64(size) //nolint:gosec // G115
	r.stats.LastPacketReceivedTimestamp = now
	r.stats.PacketsLost = int64(r.expected()) - int64(r.stats.PacketsReceived) //nolint:gosec // G115

	arrival := now.Sub(r.firstArrival).Seconds() * r.clockRate
	transit := arrival - float64(timestamp)
	if r.haveTransit {
		d := math.Abs(transit - r.lastTransit)
		r.jitter += (d - r.jitter) / 16
	}
	r.lastTransit, r.haveTransit = transit, true
	r.stats.Jitter = r.jitter / r.clockRate
}

func (r *Recorder) expected() uint64 {
	if !r.initialized {
		return 0
	}

	return r.highest - r.firstSequence + 1
}

// Stats returns the statistics so far.
func (r *Recorder) Stats() InboundStats {
	return r.stats
}

// ReceptionReport returns a report block for the stream and starts a new
// fraction-lost interval.
func (r *Recorder) ReceptionReport() rtcp.ReceptionReport {
	expected := r.expected()
	received := r.stats.PacketsReceived

	expectedInterval := expected - r.expectedPrior
	receivedInterval := received - r.receivedPrior
	r.expectedPrior, r.receivedPrior = expected, received

	var fraction uint8
	if expectedInterval > 0 && expectedInterval > receivedInterval {
		fraction = uint8((expectedInterval - receivedInterval) << 8 / expectedInterval) //nolint:gosec // G115, < 256
	}

	totalLost := r.stats.PacketsLost
	switch {
	case totalLost < 0:
		totalLost = 0
	case totalLost > 0x7FFFFF:
		totalLost = 0x7FFFFF
	}

	return rtcp.ReceptionReport{
		SSRC:               r.ssrc,
		FractionLost:       fraction,
		TotalLost:          uint32(totalLost), //nolint:gosec // G115
		LastSequenceNumber: uint32(r.highest), //nolint:gosec // G115, extended highest sequence
		Jitter:             uint32(r.jitter),  //nolint:gosec // G115
	}
}
