// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package call

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/pion/securecall"
	"github.com/pion/securecall/internal/test"
	"github.com/pion/securecall/pkg/handshake"
	"github.com/pion/securecall/pkg/prefs"
	"github.com/pion/securecall/pkg/signal"
	"github.com/stretchr/testify/require"
)

// fakeSignal is a scripted signal.Conn.
type fakeSignal struct {
	mu         sync.Mutex
	replies    map[signal.Kind]signal.Message
	errs       map[signal.Kind]error
	pollErr    error
	requests   []signal.Message
	responses  []signal.Message
	closeCount int

	signals   chan signal.Message
	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeSignal() *fakeSignal {
	return &fakeSignal{
		replies: make(map[signal.Kind]signal.Message),
		errs:    make(map[signal.Kind]error),
		signals: make(chan signal.Message, 16),
		closed:  make(chan struct{}),
	}
}

func (f *fakeSignal) Request(_ context.Context, req signal.Message) (signal.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, req)
	if err := f.errs[req.Kind]; err != nil {
		return signal.Message{}, err
	}
	reply := f.replies[req.Kind]
	reply.ID, reply.Reply, reply.Kind = req.ID, true, signal.KindOK

	return reply, nil
}

func (f *fakeSignal) Poll(timeout time.Duration) (signal.Message, bool, error) {
	f.mu.Lock()
	pollErr := f.pollErr
	f.mu.Unlock()
	if pollErr != nil {
		return signal.Message{}, false, pollErr
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case msg := <-f.signals:
		return msg, true, nil
	case <-timer.C:
		return signal.Message{}, false, nil
	case <-f.closed:
		return signal.Message{}, false, signal.ErrClosed
	}
}

func (f *fakeSignal) Respond(reply signal.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.responses = append(f.responses, reply)

	return nil
}

func (f *fakeSignal) Close() error {
	f.mu.Lock()
	f.closeCount++
	f.mu.Unlock()
	f.closeOnce.Do(func() { close(f.closed) })

	return nil
}

func (f *fakeSignal) push(msg signal.Message) {
	f.signals <- msg
}

func (f *fakeSignal) requestKinds() []signal.Kind {
	f.mu.Lock()
	defer f.mu.Unlock()

	kinds := make([]signal.Kind, 0, len(f.requests))
	for _, r := range f.requests {
		kinds = append(kinds, r.Kind)
	}

	return kinds
}

func (f *fakeSignal) lastRequest() signal.Message {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.requests[len(f.requests)-1]
}

func (f *fakeSignal) responseIDs() []uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	ids := make([]uint64, 0, len(f.responses))
	for _, r := range f.responses {
		ids = append(ids, r.ID)
	}

	return ids
}

func (f *fakeSignal) closes() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.closeCount
}

type fakeNegotiator struct {
	secret handshake.MasterSecret
	err    error
}

func (n *fakeNegotiator) NegotiateStart(ctx context.Context) error {
	return ctx.Err()
}

func (n *fakeNegotiator) NegotiateFinish(context.Context) error {
	return n.err
}

func (n *fakeNegotiator) MasterSecret() (handshake.MasterSecret, error) {
	return n.secret, nil
}

// recorder is an Observer that remembers everything.
type recorder struct {
	mu         sync.Mutex
	states     []State
	connected  int
	ringing    int
	reasons    []Reason
	errs       []error
	events     []string
	onIncoming func(Session)
	onState    func(State)

	connectedCh chan struct{}
	incomingCh  chan Session
}

func newRecorder() *recorder {
	return &recorder{connectedCh: make(chan struct{}, 1), incomingCh: make(chan Session, 1)}
}

func (r *recorder) OnStateChange(s State) {
	r.mu.Lock()
	r.states = append(r.states, s)
	r.events = append(r.events, s.String())
	cb := r.onState
	r.mu.Unlock()

	if cb != nil {
		cb(s)
	}
}

func (r *recorder) OnIncomingCall(s Session) {
	r.mu.Lock()
	cb := r.onIncoming
	r.mu.Unlock()

	if cb != nil {
		cb(s)
	}
	r.incomingCh <- s
}

func (r *recorder) OnRinging() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ringing++
}

func (r *recorder) OnConnected(Session) {
	r.mu.Lock()
	r.connected++
	r.events = append(r.events, "OnConnected")
	r.mu.Unlock()

	select {
	case r.connectedCh <- struct{}{}:
	default:
	}
}

func (r *recorder) OnTerminated(reason Reason, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.reasons = append(r.reasons, reason)
	r.errs = append(r.errs, err)
	r.events = append(r.events, "OnTerminated")
}

func (r *recorder) snapshot() ([]State, int, []Reason) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]State(nil), r.states...), r.connected, append([]Reason(nil), r.reasons...)
}

// timeline returns every state change and the OnConnected and OnTerminated
// callbacks in delivery order.
func (r *recorder) timeline() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.events...)
}

func (r *recorder) rings() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.ringing
}

func (r *recorder) lastErr() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.errs) == 0 {
		return nil
	}

	return r.errs[len(r.errs)-1]
}

func testSecret(t *testing.T) handshake.MasterSecret {
	t.Helper()

	secret, err := handshake.DeriveMasterSecret([]byte("seed"), []byte("binding"))
	require.NoError(t, err)

	return secret
}

type harness struct {
	t         *testing.T
	m         *Manager
	signal    *fakeSignal
	relay     *test.MockConn
	peer      *test.MockConn
	negotiate *fakeNegotiator
	codec     *test.FakeCodec
	capture   *test.FakeCapture
	playback  *test.FakePlayback
	prefs     *prefs.MemoryStore
	ticker    *test.MockTicker
	observer  *recorder

	// realTicker runs the media loop on wall clock time.
	realTicker  bool
	managerOpts []Option

	mu         sync.Mutex
	relayAddr  string
	relayPort  int
	signalDial int
}

type harnessOption func(h *harness, deps *Dependencies, cfg *Config)

func newHarness(t *testing.T, session Session, opts ...harnessOption) *harness {
	t.Helper()

	h := &harness{
		t:         t,
		signal:    newFakeSignal(),
		negotiate: &fakeNegotiator{secret: testSecret(t)},
		codec:     test.NewFakeCodec(160, 2),
		capture:   test.NewFakeCapture(),
		playback:  test.NewFakePlayback(4000),
		prefs:     prefs.NewMemoryStore(prefs.State{}),
		ticker:    test.NewMockTicker(),
		observer:  newRecorder(),
	}
	h.capture.Block = true
	h.relay, h.peer = test.NewMockConnPair()
	h.signal.replies[signal.KindInitiate] = signal.Message{SessionID: 42, RelayHost: "relay.test", RelayPort: 9000}

	deps := Dependencies{
		DialSignal: func(context.Context) (signal.Conn, error) {
			h.mu.Lock()
			h.signalDial++
			h.mu.Unlock()

			return h.signal, nil
		},
		DialRelay: func(_ context.Context, host string, port int) (net.Conn, error) {
			h.mu.Lock()
			h.relayAddr, h.relayPort = host, port
			h.mu.Unlock()

			return h.relay, nil
		},
		NewNegotiator: func(net.Conn, bool) (handshake.Negotiator, error) {
			return h.negotiate, nil
		},
		NewCodec:     func() (securecall.Codec, error) { return h.codec, nil },
		OpenCapture:  func() (securecall.Capture, error) { return h.capture, nil },
		OpenPlayback: func() (securecall.Playback, error) { return h.playback, nil },
		Prefs:        h.prefs,
	}
	cfg := DefaultConfig()
	cfg.SignalPollInterval = 10 * time.Millisecond
	cfg.ConnectedAckTimeout = time.Second
	for _, opt := range opts {
		opt(h, &deps, &cfg)
	}

	managerOpts := append([]Option{WithObserver(h.observer)}, h.managerOpts...)
	if !h.realTicker {
		managerOpts = append(managerOpts, WithTicker(func(time.Duration) Ticker { return h.ticker }))
	}
	m, err := New(cfg, session, deps, managerOpts...)
	require.NoError(t, err)
	h.m = m

	return h
}

func (h *harness) start() {
	go h.m.Run()
}

func (h *harness) waitConnected() {
	h.t.Helper()

	select {
	case <-h.observer.connectedCh:
	case <-time.After(5 * time.Second):
		h.t.Fatal("call never connected")
	}
}

func (h *harness) waitDone() {
	h.t.Helper()

	select {
	case <-h.m.Done():
	case <-time.After(5 * time.Second):
		h.t.Fatal("Run did not return")
	}
}

func (h *harness) result() (Reason, error) {
	h.t.Helper()

	_, _, reasons := h.observer.snapshot()
	require.Len(h.t, reasons, 1, "OnTerminated must be called exactly once")

	return reasons[0], h.observer.lastErr()
}

var errBoom = errors.New("boom")
