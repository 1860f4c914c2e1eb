// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package call

import (
	"fmt"
	"net"
	"time"

	"github.com/pion/securecall"
	"github.com/pion/securecall/pkg/framequeue"
	"github.com/pion/securecall/pkg/jitterbuffer"
	"github.com/pion/securecall/pkg/playout"
	"github.com/pion/securecall/pkg/prefs"
	"github.com/pion/securecall/pkg/securestream"
	"github.com/pion/securecall/pkg/stats"
)

// pipeline is the audio path of a connected call. Everything but the
// frame queues is owned by the call goroutine.
type pipeline struct {
	m *Manager

	codec    securecall.Codec
	capture  securecall.Capture
	stream   *securestream.Stream
	jb       *jitterbuffer.JitterBuffer
	driver   *playout.Driver
	recorder *stats.Recorder

	clockRate float64

	captured *framequeue.Queue[[]int16]
	outgoing *framequeue.Queue[[]byte]
	incoming *framequeue.Queue[jitterbuffer.Frame]

	pcm      [][]int16
	payloads [][]byte
	frames   []jitterbuffer.Frame

	started     bool
	captureErr  chan error
	captureDone chan struct{}
}

func (m *Manager) newPipeline(relay net.Conn, outgoing, incoming securestream.KeyMaterial) (*pipeline, error) {
	codec, err := m.deps.NewCodec()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCodecInit, err) //nolint:errorlint
	}
	capture, err := m.deps.OpenCapture()
	if err != nil {
		return nil, fmt.Errorf("%w: capture: %v", ErrAudioInit, err) //nolint:errorlint
	}
	playback, err := m.deps.OpenPlayback()
	if err != nil {
		_ = capture.Close()

		return nil, fmt.Errorf("%w: playback: %v", ErrAudioInit, err) //nolint:errorlint
	}
	if !m.attach(func() { m.capture, m.playback = capture, playback }) {
		_ = capture.Close()
		_ = playback.Close()

		return nil, errTerminated
	}

	saved, err := m.deps.Prefs.Load()
	if err != nil {
		m.log.Warnf("call %s: loading preferences: %v", m.callID, err)
	}

	stream, err := securestream.New(relay, outgoing, incoming,
		securestream.WithLoggerFactory(m.loggerFactory),
		securestream.WithReadTimeout(m.cfg.MediaReadTimeout),
		securestream.WithSamplesPerPacket(uint32(m.cfg.SamplesPerPacket)), //nolint:gosec // G115
		securestream.WithMetrics(m.metrics),
	)
	if err != nil {
		return nil, err
	}

	jbOpts := []jitterbuffer.Option{
		jitterbuffer.WithConfig(m.cfg.Jitter),
		jitterbuffer.WithMinimizeLatency(m.cfg.MinimizeLatency),
		jitterbuffer.WithLoggerFactory(m.loggerFactory),
		jitterbuffer.WithMetrics(m.metrics),
	}
	if saved.DesiredDepth > 0 {
		jbOpts = append(jbOpts, jitterbuffer.WithInitialDelay(saved.DesiredDepth))
	}
	jb, err := jitterbuffer.New(codec, jbOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCodecInit, err) //nolint:errorlint
	}

	driverOpts := []playout.Option{
		playout.WithConfig(m.cfg.Playout),
		playout.WithLoggerFactory(m.loggerFactory),
		playout.WithMetrics(m.metrics),
	}
	if saved.PlayoutLevel > 0 {
		driverOpts = append(driverOpts, playout.WithInitialLevel(saved.PlayoutLevel))
	}
	driver, err := playout.New(jb, playback, driverOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAudioInit, err) //nolint:errorlint
	}

	return &pipeline{
		m:           m,
		codec:       codec,
		capture:     capture,
		stream:      stream,
		jb:          jb,
		driver:      driver,
		clockRate:   float64(m.cfg.SamplesPerPacket) / m.cfg.Jitter.FrameDuration.Seconds(),
		captured:    framequeue.New[[]int16](m.cfg.CaptureQueueSize),
		outgoing:    framequeue.New[[]byte](m.cfg.OutgoingQueueSize),
		incoming:    framequeue.New[jitterbuffer.Frame](m.cfg.IncomingQueueSize),
		captureErr:  make(chan error, 1),
		captureDone: make(chan struct{}),
	}, nil
}

// run is the media loop. It returns when the call terminates or the audio
// path fails.
func (p *pipeline) run() error {
	ticker := p.m.newTicker(p.m.cfg.Jitter.FrameDuration)
	defer ticker.Stop()

	p.started = true
	go p.captureLoop()

	for {
		select {
		case <-p.m.ctx.Done():
			return errTerminated
		case err := <-p.captureErr:
			return err
		case now := <-ticker.Ch():
			if p.m.terminated.Load() {
				return errTerminated
			}
			if err := p.tick(now); err != nil {
				return err
			}
		}
	}
}

func (p *pipeline) captureLoop() {
	defer close(p.captureDone)

	for {
		pcm := make([]int16, p.m.cfg.SamplesPerPacket)
		n, err := p.capture.Read(pcm)
		if err != nil {
			if !p.m.terminated.Load() {
				select {
				case p.captureErr <- fmt.Errorf("%w: capture: %v", ErrAudioInit, err): //nolint:errorlint
				default:
				}
			}

			return
		}
		if p.captured.Push(pcm[:n]) {
			p.m.metrics.PacketDropped(stats.DropQueueFull)
			p.m.log.Debugf("call %s: capture backlog full, dropped oldest chunk", p.m.callID)
		}
	}
}

// tick moves one frame period of audio: captured chunks out to the
// network, received packets into the jitter buffer, decoded audio into the
// playback device.
func (p *pipeline) tick(now time.Time) error {
	p.pcm = p.captured.Drain(p.pcm[:0])
	for _, pcm := range p.pcm {
		payload, err := p.codec.Encode(pcm)
		if err != nil {
			p.m.log.Debugf("call %s: encode: %v", p.m.callID, err)

			continue
		}
		if p.outgoing.Push(payload) {
			p.m.metrics.PacketDropped(stats.DropQueueFull)
		}
	}

	p.payloads = p.outgoing.Drain(p.payloads[:0])
	for _, payload := range p.payloads {
		if _, err := p.stream.Send(payload); err != nil {
			return err
		}
	}

	for range p.m.cfg.IncomingQueueSize {
		pkt, err := p.stream.Receive()
		if err != nil {
			return err
		}
		if pkt == nil {
			break
		}
		p.record(pkt, now)
		if p.incoming.Push(jitterbuffer.Frame{
			Payload:        pkt.Payload,
			Sequence:       pkt.Sequence,
			SourceSequence: pkt.Sequence,
			Arrival:        now,
		}) {
			p.m.metrics.PacketDropped(stats.DropQueueFull)
		}
	}

	p.frames = p.incoming.Drain(p.frames[:0])
	for _, frame := range p.frames {
		p.jb.Push(frame, now)
	}
	p.m.metrics.BufferDepth(p.jb.Depth())
	p.m.metrics.DesiredDelay(p.jb.DesiredDelay())

	if err := p.driver.Fill(now); err != nil {
		return fmt.Errorf("%w: %v", ErrAudioInit, err) //nolint:errorlint
	}

	return nil
}

func (p *pipeline) record(pkt *securestream.Packet, now time.Time) {
	if p.recorder == nil {
		p.recorder = stats.NewRecorder(pkt.SSRC, p.clockRate)
	}
	p.recorder.Record(pkt.Sequence, pkt.Timestamp, len(pkt.Payload), now)
}

// finish closes the audio devices, waits for the capture goroutine and
// stores what the call learned for the next one.
func (p *pipeline) finish() {
	p.m.closeDevices()
	if p.started {
		<-p.captureDone
	}

	state := prefs.State{DesiredDepth: p.jb.DesiredDelay(), PlayoutLevel: p.driver.Level()}
	if err := p.m.deps.Prefs.Save(state); err != nil {
		p.m.log.Warnf("call %s: saving preferences: %v", p.m.callID, err)
	}

	jbStats := p.jb.Stats()
	p.m.log.Infof("call %s: played %d exact, %d late, %d very late, %d concealed",
		p.m.callID, jbStats.Exact, jbStats.Late, jbStats.VeryLate, jbStats.Missing)
	if p.recorder != nil {
		report := p.recorder.ReceptionReport()
		p.m.log.Infof("call %s: received %d packets, lost %d, jitter %d",
			p.m.callID, p.recorder.Stats().PacketsReceived, report.TotalLost, report.Jitter)
	}
	if highest, ok := p.stream.IncomingHighest(); ok {
		p.m.log.Debugf("call %s: highest incoming sequence %d", p.m.callID, highest)
	}
	if dropped := p.captured.Dropped() + p.outgoing.Dropped() + p.incoming.Dropped(); dropped > 0 {
		p.m.log.Infof("call %s: %d frames dropped on full queues", p.m.callID, dropped)
	}
}
