// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package stats

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Drop reasons reported through Metrics.PacketDropped.
const (
	DropBadMAC      = "bad_mac"
	DropReplay      = "replay"
	DropOutOfWindow = "out_of_window"
	DropMalformed   = "malformed"
	DropQueueFull   = "queue_full"
)

// Metrics is the sink the media components report into. Implementations must
// be safe for concurrent use.
type Metrics interface {
	PacketSent(bytes int)
	PacketReceived(bytes int)
	PacketDropped(reason string)
	PlayoutEvent(event string)
	Underrun()
	DesiredDelay(frames float64)
	BufferDepth(frames int)
}

// NopMetrics discards everything.
type NopMetrics struct{}

// PacketSent implements Metrics.
func (NopMetrics) PacketSent(int) {}

// PacketReceived implements Metrics.
func (NopMetrics) PacketReceived(int) {}

// PacketDropped implements Metrics.
func (NopMetrics) PacketDropped(string) {}

// PlayoutEvent implements Metrics.
func (NopMetrics) PlayoutEvent(string) {}

// Underrun implements Metrics.
func (NopMetrics) Underrun() {}

// DesiredDelay implements Metrics.
func (NopMetrics) DesiredDelay(float64) {}

// BufferDepth implements Metrics.
func (NopMetrics) BufferDepth(int) {}

const namespace = "securecall"

// PrometheusMetrics exports the media counters of one process to Prometheus.
type PrometheusMetrics struct {
	packets      *prometheus.CounterVec
	bytes        *prometheus.CounterVec
	dropped      *prometheus.CounterVec
	playout      *prometheus.CounterVec
	underruns    prometheus.Counter
	desiredDelay prometheus.Gauge
	bufferDepth  prometheus.Gauge
}

// NewPrometheusMetrics creates the collectors and registers them with reg.
func NewPrometheusMetrics(reg prometheus.Registerer) (*PrometheusMetrics, error) {
	m := &PrometheusMetrics{
		packets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "packet",
			Name:      "total",
			Help:      "Secure media packets by direction.",
		}, []string{"direction"}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "packet",
			Name:      "bytes",
			Help:      "Secure media bytes by direction.",
		}, []string{"direction"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "packet",
			Name:      "dropped_total",
			Help:      "Incoming packets dropped before playout.",
		}, []string{"reason"}),
		playout: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jitter",
			Name:      "events_total",
			Help:      "Jitter buffer playout decisions.",
		}, []string{"event"}),
		underruns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "playout",
			Name:      "underruns_total",
			Help:      "Times the playback device ran dry.",
		}),
		desiredDelay: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "jitter",
			Name:      "desired_delay_frames",
			Help:      "Target jitter buffer depth.",
		}),
		bufferDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "jitter",
			Name:      "depth_frames",
			Help:      "Frames currently buffered.",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.packets, m.bytes, m.dropped, m.playout, m.underruns, m.desiredDelay, m.bufferDepth,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// PacketSent implements Metrics.
func (m *PrometheusMetrics) PacketSent(bytes int) {
	m.packets.WithLabelValues("outgoing").Inc()
	m.bytes.WithLabelValues("outgoing").Add(float64(bytes))
}

// PacketReceived implements Metrics.
func (m *PrometheusMetrics) PacketReceived(bytes int) {
	m.packets.WithLabelValues("incoming").Inc()
	m.bytes.WithLabelValues("incoming").Add(float64(bytes))
}

// PacketDropped implements Metrics.
func (m *PrometheusMetrics) PacketDropped(reason string) {
	m.dropped.WithLabelValues(reason).Inc()
}

// PlayoutEvent implements Metrics.
func (m *PrometheusMetrics) PlayoutEvent(event string) {
	m.playout.WithLabelValues(event).Inc()
}

// Underrun implements Metrics.
func (m *PrometheusMetrics) Underrun() {
	m.underruns.Inc()
}

// DesiredDelay implements Metrics.
func (m *PrometheusMetrics) DesiredDelay(frames float64) {
	m.desiredDelay.Set(frames)
}

// BufferDepth implements Metrics.
func (m *PrometheusMetrics) BufferDepth(frames int) {
	m.bufferDepth.Set(float64(frames))
}
