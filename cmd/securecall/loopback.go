// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"os"
	ossignal "os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/pion/logging"
	"github.com/pion/securecall"
	"github.com/pion/securecall/internal/relay"
	"github.com/pion/securecall/pkg/call"
	"github.com/pion/securecall/pkg/codec"
	"github.com/pion/securecall/pkg/prefs"
	"github.com/pion/securecall/pkg/signal"
	"github.com/pion/securecall/pkg/stats"
	"github.com/pion/transport/v3/vnet"
	"github.com/urfave/cli/v2"
)

const (
	callerNumber = "1001"
	calleeNumber = "1002"

	relayIP   = "10.0.0.1"
	relayPort = 5000

	sampleRate   = 8000
	subFrameSize = 160
	subFrames    = 2
)

var errNoIncomingCall = errors.New("callee never saw the incoming call")

var loopbackFlags = []cli.Flag{
	&cli.DurationFlag{
		Name:  "duration",
		Usage: "how long the call stays up",
		Value: 5 * time.Second,
	},
	&cli.DurationFlag{
		Name:  "min-delay",
		Usage: "one-way network delay",
		Value: 20 * time.Millisecond,
	},
	&cli.DurationFlag{
		Name:  "max-jitter",
		Usage: "random delay added on top of min-delay",
		Value: 30 * time.Millisecond,
	},
	&cli.Float64Flag{
		Name:  "loss",
		Usage: "probability of dropping a datagram, 0 to 1",
	},
	&cli.StringFlag{
		Name:  "prefs",
		Usage: "file keeping the learned playout values between runs",
	},
}

type loopbackOptions struct {
	duration  time.Duration
	minDelay  time.Duration
	maxJitter time.Duration
	loss      float64

	cfg     call.Config
	prefs   prefs.Store
	metrics stats.Metrics
}

type loopbackSummary struct {
	connected    bool
	callerReason call.Reason
	calleeReason call.Reason
	callerPlayed uint64
	calleePlayed uint64
	forwarded    uint64
	dropped      uint64
}

func runLoopback(c *cli.Context) error {
	lf, err := loggerFactory(c)
	if err != nil {
		return err
	}
	log := lf.NewLogger("securecall")

	ctx, stop := ossignal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(c.String("config"))
	if err != nil {
		return err
	}
	reg, err := newRegistry(ctx, c.String("metrics-addr"), log)
	if err != nil {
		return err
	}
	metrics, err := stats.NewPrometheusMetrics(reg)
	if err != nil {
		return err
	}

	var store prefs.Store = prefs.NewMemoryStore(prefs.State{})
	if path := c.String("prefs"); path != "" {
		store = prefs.NewFileStore(path)
	}

	sum, err := loopback(ctx, lf, loopbackOptions{
		duration:  c.Duration("duration"),
		minDelay:  c.Duration("min-delay"),
		maxJitter: c.Duration("max-jitter"),
		loss:      c.Float64("loss"),
		cfg:       cfg,
		prefs:     store,
		metrics:   metrics,
	})
	if err != nil {
		return err
	}

	log.Infof("call ended: caller %s, callee %s", sum.callerReason, sum.calleeReason)
	log.Infof("played %d samples at the caller and %d at the callee", sum.callerPlayed, sum.calleePlayed)
	log.Infof("relay forwarded %d datagrams, dropped %d", sum.forwarded, sum.dropped)

	return nil
}

// party watches one side of the call.
type party struct {
	call.NopObserver

	m          *call.Manager
	connected  chan struct{}
	terminated chan call.Reason
}

func newParty() *party {
	return &party{connected: make(chan struct{}), terminated: make(chan call.Reason, 1)}
}

func (p *party) OnIncomingCall(call.Session) {
	p.m.Answer(true)
}

func (p *party) OnConnected(call.Session) {
	close(p.connected)
	p.m.AckConnected()
}

func (p *party) OnTerminated(reason call.Reason, _ error) {
	p.terminated <- reason
}

type network struct {
	router *vnet.Router
	relay  *vnet.Net
	caller *vnet.Net
	callee *vnet.Net
}

func newNetwork(lf logging.LoggerFactory, opts loopbackOptions) (*network, error) {
	router, err := vnet.NewRouter(&vnet.RouterConfig{
		CIDR:          "10.0.0.0/24",
		MinDelay:      opts.minDelay,
		MaxJitter:     opts.maxJitter,
		LoggerFactory: lf,
	})
	if err != nil {
		return nil, err
	}
	if opts.loss > 0 {
		router.AddChunkFilter(func(vnet.Chunk) bool {
			return rand.Float64() >= opts.loss //nolint:gosec
		})
	}

	nw := &network{router: router}
	if nw.relay, err = addNet(router, relayIP); err != nil {
		return nil, err
	}
	if nw.caller, err = addNet(router, "10.0.0.2"); err != nil {
		return nil, err
	}
	if nw.callee, err = addNet(router, "10.0.0.3"); err != nil {
		return nil, err
	}

	return nw, router.Start()
}

func addNet(router *vnet.Router, ip string) (*vnet.Net, error) {
	n, err := vnet.NewNet(&vnet.NetConfig{StaticIPs: []string{ip}})
	if err != nil {
		return nil, err
	}

	return n, router.AddNet(n)
}

func dialerOn(n *vnet.Net) func(context.Context, string, int) (net.Conn, error) {
	return func(_ context.Context, host string, port int) (net.Conn, error) {
		return n.Dial("udp", net.JoinHostPort(host, strconv.Itoa(port)))
	}
}

func newCodec() (securecall.Codec, error) {
	c, err := codec.NewL16(subFrameSize, subFrames)
	if err != nil {
		return nil, err
	}

	return c, nil
}

// loopback places a call from the caller to the callee through a switch on
// the loopback interface and a relay on a simulated network, keeps it up for
// opts.duration and hangs up.
func loopback(ctx context.Context, lf logging.LoggerFactory, opts loopbackOptions) (loopbackSummary, error) { //nolint:cyclop
	var sum loopbackSummary
	log := lf.NewLogger("loopback")

	nw, err := newNetwork(lf, opts)
	if err != nil {
		return sum, fmt.Errorf("building network: %w", err)
	}
	defer func() { _ = nw.router.Stop() }()

	pc, err := nw.relay.ListenPacket("udp", net.JoinHostPort(relayIP, strconv.Itoa(relayPort)))
	if err != nil {
		return sum, err
	}
	r, err := relay.New(pc, relay.WithLoggerFactory(lf))
	if err != nil {
		_ = pc.Close()

		return sum, err
	}
	defer func() { _ = r.Close() }()

	sw, err := signal.NewSwitch(relayIP, relayPort, signal.WithSwitchLoggerFactory(lf))
	if err != nil {
		return sum, err
	}
	serveCtx, stopServe := context.WithCancel(ctx)
	addrs := make(chan net.Addr, 1)
	served := make(chan error, 1)
	go func() {
		served <- serveSwitch(serveCtx, "127.0.0.1:0", sw, func(a net.Addr) { addrs <- a })
	}()
	defer func() {
		stopServe()
		<-served
	}()

	var url string
	select {
	case a := <-addrs:
		url = "ws://" + a.String()
	case err = <-served:
		return sum, err
	}

	callee, err := signal.Dial(ctx, url, calleeNumber, signal.WithClientLoggerFactory(lf))
	if err != nil {
		return sum, err
	}

	speakerSize := opts.cfg.Playout.MaxLevel + opts.cfg.Playout.MaxFrameSamples
	callerSpeaker := newClockPlayback(sampleRate, speakerSize)
	calleeSpeaker := newClockPlayback(sampleRate, speakerSize)

	caller := newParty()
	callerOpts := []call.Option{call.WithLoggerFactory(lf), call.WithObserver(caller)}
	if opts.metrics != nil {
		callerOpts = append(callerOpts, call.WithMetrics(opts.metrics))
	}
	caller.m, err = call.New(opts.cfg, call.NewOutgoingSession(callerNumber, calleeNumber), call.Dependencies{
		DialSignal: func(ctx context.Context) (signal.Conn, error) {
			return signal.Dial(ctx, url, callerNumber, signal.WithClientLoggerFactory(lf))
		},
		DialRelay:    dialerOn(nw.caller),
		NewCodec:     newCodec,
		OpenCapture:  func() (securecall.Capture, error) { return newToneCapture(sampleRate, 440), nil },
		OpenPlayback: func() (securecall.Playback, error) { return callerSpeaker, nil },
		Prefs:        opts.prefs,
	}, callerOpts...)
	if err != nil {
		_ = callee.Close()

		return sum, err
	}
	go caller.m.Run()
	defer func() { <-caller.m.Done() }()

	incoming, err := awaitIncoming(ctx, callee, opts.cfg.RequestTimeout)
	if err != nil {
		_ = callee.Close()
		caller.m.Terminate()

		return sum, err
	}
	log.Debugf("incoming call %d from %s", incoming.SessionID, incoming.RemoteNumber)

	answerer := newParty()
	answerer.m, err = call.New(opts.cfg, call.NewIncomingSession(incoming), call.Dependencies{
		DialSignal:   func(context.Context) (signal.Conn, error) { return callee, nil },
		DialRelay:    dialerOn(nw.callee),
		NewCodec:     newCodec,
		OpenCapture:  func() (securecall.Capture, error) { return newToneCapture(sampleRate, 660), nil },
		OpenPlayback: func() (securecall.Playback, error) { return calleeSpeaker, nil },
	}, call.WithLoggerFactory(lf), call.WithObserver(answerer))
	if err != nil {
		_ = callee.Close()
		caller.m.Terminate()

		return sum, err
	}
	go answerer.m.Run()
	defer func() { <-answerer.m.Done() }()

	hangup := time.NewTimer(opts.cfg.HandshakeTimeout + opts.duration)
	defer hangup.Stop()

	select {
	case <-caller.connected:
		sum.connected = true
		hangup.Reset(opts.duration)
	case <-caller.m.Done():
	case <-ctx.Done():
	case <-hangup.C:
	}
	if sum.connected {
		select {
		case <-hangup.C:
		case <-caller.m.Done():
		case <-ctx.Done():
		}
	}

	caller.m.Terminate()
	sum.callerReason = <-caller.terminated
	<-caller.m.Done()

	select {
	case sum.calleeReason = <-answerer.terminated:
	case <-time.After(opts.cfg.HangupTimeout + opts.cfg.RequestTimeout):
		answerer.m.Terminate()
		sum.calleeReason = <-answerer.terminated
	}
	<-answerer.m.Done()

	sum.callerPlayed = callerSpeaker.Played()
	sum.calleePlayed = calleeSpeaker.Played()
	sum.forwarded = r.Forwarded()
	sum.dropped = r.Dropped()

	return sum, nil
}

// awaitIncoming polls the callee's signaling until the switch announces a
// call.
func awaitIncoming(ctx context.Context, conn signal.Conn, timeout time.Duration) (signal.Message, error) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if ctx.Err() != nil {
			return signal.Message{}, ctx.Err()
		}

		msg, ok, err := conn.Poll(100 * time.Millisecond)
		if err != nil {
			return signal.Message{}, err
		}
		if !ok {
			continue
		}
		if err = conn.Respond(msg.OK()); err != nil {
			return signal.Message{}, err
		}
		if msg.Kind == signal.KindIncoming {
			return msg, nil
		}
	}

	return signal.Message{}, errNoIncomingCall
}
