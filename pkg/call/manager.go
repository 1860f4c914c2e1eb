// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Package call drives one secure voice call from signaling through key
// agreement to the media loop, and guarantees that every way a call can end
// releases its resources once and is reported once.
package call

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/google/uuid"
	"github.com/pion/logging"
	"github.com/pion/securecall"
	"github.com/pion/securecall/pkg/handshake"
	"github.com/pion/securecall/pkg/prefs"
	"github.com/pion/securecall/pkg/signal"
	"github.com/pion/securecall/pkg/stats"
	"go.uber.org/atomic"
)

// errTerminated unwinds the call goroutine after a termination it did not
// cause. It is never reported.
var errTerminated = errors.New("call terminated")

// Manager runs one call. Run drives the call on the caller's goroutine;
// every other method is safe to call from any goroutine.
type Manager struct {
	cfg    Config
	deps   Dependencies
	role   roleStrategy
	callID string

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	state       State
	session     Session
	ran         bool
	pool        *workerpool.WorkerPool
	poolStopped bool
	signal      signal.Conn
	relay       net.Conn
	capture     securecall.Capture
	playback    securecall.Playback

	terminated     atomic.Bool
	awaitingAnswer atomic.Bool
	released       chan struct{}
	done           chan struct{}

	answerCh   chan bool
	answerOnce sync.Once
	ackCh      chan struct{}
	ackOnce    sync.Once

	closeSignalOnce  sync.Once
	closeRelayOnce   sync.Once
	closeDevicesOnce sync.Once

	events        eventQueue
	observer      Observer
	metrics       stats.Metrics
	newTicker     TickerFactory
	loggerFactory logging.LoggerFactory
	log           logging.LeveledLogger
}

// New creates the Manager of one call. session.Role selects the role the
// Manager plays.
func New(cfg Config, session Session, deps Dependencies, opts ...Option) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if deps.DialRelay == nil {
		deps.DialRelay = dialUDP
	}
	if deps.Prefs == nil {
		deps.Prefs = prefs.NewMemoryStore(prefs.State{})
	}
	if session.CallID == "" {
		session.CallID = uuid.NewString()
	}

	loggerFactory := logging.NewDefaultLoggerFactory()
	m := &Manager{
		cfg:           cfg,
		deps:          deps,
		role:          roleFor(session.Role),
		callID:        session.CallID,
		session:       session,
		released:      make(chan struct{}),
		done:          make(chan struct{}),
		answerCh:      make(chan bool, 1),
		ackCh:         make(chan struct{}),
		observer:      NopObserver{},
		metrics:       stats.NopMetrics{},
		newTicker:     newTimeTicker,
		loggerFactory: loggerFactory,
		log:           loggerFactory.NewLogger("call"),
	}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}

	if m.deps.NewNegotiator == nil {
		lf, timeout := m.loggerFactory, cfg.HandshakeTimeout
		m.deps.NewNegotiator = func(conn net.Conn, initiator bool) (handshake.Negotiator, error) {
			n, err := handshake.NewNoiseNegotiator(conn, initiator,
				handshake.WithLoggerFactory(lf), handshake.WithTimeout(timeout))
			if err != nil {
				return nil, err
			}

			return n, nil
		}
	}
	m.ctx, m.cancel = context.WithCancel(context.Background())

	return m, nil
}

// Run drives the call until it ends. It returns once every resource of the
// call has been released. Only the first call has any effect.
func (m *Manager) Run() {
	m.mu.Lock()
	if m.ran {
		m.mu.Unlock()

		return
	}
	m.ran = true
	m.pool = workerpool.New(1)
	m.mu.Unlock()
	defer close(m.done)

	if err := m.runSafely(); err != nil && !errors.Is(err, errTerminated) {
		m.terminate(reasonFor(err), err)
	} else {
		m.terminate(ReasonLocalHangup, nil)
	}
	<-m.released

	m.mu.Lock()
	m.poolStopped = true
	pool := m.pool
	m.mu.Unlock()
	pool.StopWait()
}

func (m *Manager) runSafely() (err error) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Errorf("call %s: recovered from panic: %v", m.callID, r)
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()

	return m.run()
}

func (m *Manager) run() error {
	if !m.setState(StateIdle) {
		return errTerminated
	}

	conn, err := m.deps.DialSignal(m.ctx)
	if err != nil {
		return signalingError(err)
	}
	if !m.attach(func() { m.signal = conn }) {
		_ = conn.Close()

		return errTerminated
	}

	if err = m.role.establish(m, conn); err != nil {
		return err
	}
	if m.terminated.Load() {
		return errTerminated
	}

	session := m.Session()
	relay, err := m.deps.DialRelay(m.ctx, session.RelayHost, session.RelayPort)
	if err != nil {
		return fmt.Errorf("%w: relay %s:%d: %v", //nolint:errorlint
			handshake.ErrRecipientUnavailable, session.RelayHost, session.RelayPort, err)
	}
	if !m.attach(func() { m.relay = relay }) {
		_ = relay.Close()

		return errTerminated
	}

	if !m.setState(StatePerformingHandshake) {
		return errTerminated
	}
	secret, err := m.negotiate(relay)
	if err != nil {
		return err
	}
	outgoing, incoming, err := m.role.streamKeys(secret)
	if err != nil {
		return err
	}

	if m.terminated.Load() {
		return errTerminated
	}
	p, err := m.newPipeline(relay, outgoing, incoming)
	if err != nil {
		return err
	}
	defer p.finish()

	if !m.setState(StateConnected, func() { m.observer.OnConnected(session) }) {
		return errTerminated
	}
	m.awaitAck()

	return p.run()
}

func (m *Manager) negotiate(relay net.Conn) (handshake.MasterSecret, error) {
	ctx, cancel := context.WithTimeout(m.ctx, m.cfg.HandshakeTimeout)
	defer cancel()

	n, err := m.deps.NewNegotiator(relay, m.session.Role == Initiator)
	if err != nil {
		return handshake.MasterSecret{}, err
	}
	if err = n.NegotiateStart(ctx); err == nil {
		err = n.NegotiateFinish(ctx)
	}
	switch {
	case err == nil:
		return n.MasterSecret()
	case m.terminated.Load():
		return handshake.MasterSecret{}, errTerminated
	case errors.Is(err, context.DeadlineExceeded):
		return handshake.MasterSecret{}, fmt.Errorf("%w: %v", handshake.ErrRecipientUnavailable, err) //nolint:errorlint
	default:
		return handshake.MasterSecret{}, err
	}
}

func (m *Manager) awaitAck() {
	timer := time.NewTimer(m.cfg.ConnectedAckTimeout)
	defer timer.Stop()

	select {
	case <-m.ackCh:
	case <-m.ctx.Done():
	case <-timer.C:
		m.log.Warnf("call %s: connected state not acknowledged within %v, starting media",
			m.callID, m.cfg.ConnectedAckTimeout)
	}
}

// request sends a signaling request bounded by RequestTimeout.
func (m *Manager) request(conn signal.Conn, req signal.Message) (signal.Message, error) {
	ctx, cancel := context.WithTimeout(m.ctx, m.cfg.RequestTimeout)
	defer cancel()

	reply, err := conn.Request(ctx, req)
	switch {
	case err == nil:
		return reply, nil
	case m.terminated.Load():
		return reply, errTerminated
	default:
		return reply, signalingError(err)
	}
}

// signalingError gives unclassified signaling errors the generic signaling
// failure class.
func signalingError(err error) error {
	if reasonFor(err) != ReasonClientError {
		return err
	}

	return fmt.Errorf("%w: %v", signal.ErrSignalingFailed, err) //nolint:errorlint
}

// Terminate ends the call. It never blocks on the network and may be called
// any number of times from any goroutine. Terminating a responder that is
// still waiting for Answer denies the call.
func (m *Manager) Terminate() {
	reason := ReasonLocalHangup
	if m.awaitingAnswer.Load() {
		reason = ReasonDenied
	}
	m.terminate(reason, nil)
}

func (m *Manager) terminate(reason Reason, err error) {
	if !m.terminated.CompareAndSwap(false, true) {
		return
	}

	m.Answer(false)
	m.cancel()

	m.mu.Lock()
	m.state = StateTerminated
	m.events.push(func() { m.observer.OnStateChange(StateTerminated) })
	m.mu.Unlock()
	m.events.drain()

	if err != nil {
		m.log.Warnf("call %s terminated (%s): %v", m.callID, reason, err)
	} else {
		m.log.Infof("call %s terminated (%s)", m.callID, reason)
	}

	m.release(reason)
	m.notify(func() { m.observer.OnTerminated(reason, err) })
	close(m.released)
}

// release closes everything the call holds. The hangup notification is
// queued behind the signal listener and the signaling connection is closed
// right after it.
func (m *Manager) release(reason Reason) {
	m.mu.Lock()
	conn, relay := m.signal, m.relay
	sessionID := m.session.SessionID
	m.mu.Unlock()

	if conn != nil {
		hangup := reason != ReasonRemoteHangup && sessionID != 0
		closeSignal := func() {
			if hangup {
				m.sendHangup(conn, sessionID)
			}
			m.closeSignal(conn)
		}
		if !m.submit(closeSignal) {
			m.closeSignal(conn)
		}
	}
	if relay != nil {
		m.closeRelayOnce.Do(func() { _ = relay.Close() })
	}
	m.closeDevices()
}

func (m *Manager) sendHangup(conn signal.Conn, sessionID uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.HangupTimeout)
	defer cancel()

	if _, err := conn.Request(ctx, signal.Message{Kind: signal.KindHangup, SessionID: sessionID}); err != nil {
		m.log.Debugf("call %s: hangup not delivered: %v", m.callID, err)
	}
}

func (m *Manager) closeSignal(conn signal.Conn) {
	m.closeSignalOnce.Do(func() { _ = conn.Close() })
}

func (m *Manager) closeDevices() {
	m.closeDevicesOnce.Do(func() {
		m.mu.Lock()
		capture, playback := m.capture, m.playback
		m.mu.Unlock()

		if capture != nil {
			_ = capture.Close()
		}
		if playback != nil {
			_ = playback.Close()
		}
	})
}

// attach records a resource unless the call already terminated, in which
// case the caller still owns it.
func (m *Manager) attach(set func()) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.terminated.Load() {
		return false
	}
	set()

	return true
}

// submit queues task on the listener executor.
func (m *Manager) submit(task func()) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pool == nil || m.poolStopped {
		return false
	}
	m.pool.Submit(task)

	return true
}

// setState moves to state unless the call was terminated. The state change
// and then are delivered to the observer before a later Terminated.
func (m *Manager) setState(state State, then ...func()) bool {
	m.mu.Lock()
	if m.terminated.Load() {
		m.mu.Unlock()

		return false
	}
	m.state = state
	m.events.push(func() { m.observer.OnStateChange(state) })
	m.events.push(then...)
	m.mu.Unlock()

	m.log.Debugf("call %s: %s", m.callID, state)
	m.events.drain()

	return true
}

// notify delivers one observer callback in order with the state changes.
func (m *Manager) notify(ev func()) {
	m.events.push(ev)
	m.events.drain()
}

func (m *Manager) updateSession(reply signal.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.session.update(reply)
}

// Answer delivers the user's decision on an incoming call. Only the first
// decision counts.
func (m *Manager) Answer(accept bool) {
	m.answerOnce.Do(func() { m.answerCh <- accept })
}

// AckConnected tells the call the user interface has processed the
// connected state, so the media loop can start.
func (m *Manager) AckConnected() {
	m.ackOnce.Do(func() { close(m.ackCh) })
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state
}

// Session returns the call's session.
func (m *Manager) Session() Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.session
}

// Done is closed when Run has returned.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}
