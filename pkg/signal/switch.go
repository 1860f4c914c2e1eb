// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package signal

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pion/logging"
	"golang.org/x/time/rate"
)

// SwitchOption can be used to configure a Switch.
type SwitchOption func(s *Switch) error

// WithSwitchLoggerFactory sets the logger factory for the switch.
func WithSwitchLoggerFactory(loggerFactory logging.LoggerFactory) SwitchOption {
	return func(s *Switch) error {
		s.log = loggerFactory.NewLogger("switch")

		return nil
	}
}

// WithDirectory restricts calls to the given numbers. Calls to any other
// number fail with ErrNoSuchUser. Without a directory every number exists
// and an absent one is unavailable.
func WithDirectory(numbers ...string) SwitchOption {
	return func(s *Switch) error {
		s.directory = make(map[string]bool, len(numbers))
		for _, n := range numbers {
			s.directory[n] = true
		}

		return nil
	}
}

// WithKeepAlive makes the switch push a keep-alive signal to both members of
// every session at interval.
func WithKeepAlive(interval time.Duration) SwitchOption {
	return func(s *Switch) error {
		s.keepAlive = interval

		return nil
	}
}

// WithRequestRate limits the requests each connection may make.
func WithRequestRate(limit rate.Limit, burst int) SwitchOption {
	return func(s *Switch) error {
		s.requestRate, s.requestBurst = limit, burst

		return nil
	}
}

// WithServerMessage refuses every call with text.
func WithServerMessage(text string) SwitchOption {
	return func(s *Switch) error {
		s.refusal = text

		return nil
	}
}

type peer struct {
	id      uuid.UUID
	number  string
	conn    *websocket.Conn
	writeMu sync.Mutex
	limiter *rate.Limiter
	nextID  uint64
	session uint64
}

func (p *peer) send(msg Message) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	if !msg.Reply {
		p.nextID++
		msg.ID = p.nextID
	}
	_ = p.conn.SetWriteDeadline(time.Now().Add(writeTimeout))

	return p.conn.WriteJSON(msg)
}

type session struct {
	id             uint64
	caller, callee *peer
	stop           chan struct{}
}

func (s *session) other(p *peer) *peer {
	if p == s.caller {
		return s.callee
	}

	return s.caller
}

// Switch is a minimal signaling switch. Clients log in with their number;
// an initiate request creates a session between two logged in numbers and
// hands both sides the relay address. Ringing and hangup requests are
// forwarded to the other member of the session as signals.
type Switch struct {
	upgrader  websocket.Upgrader
	relayHost string
	relayPort int

	directory    map[string]bool
	keepAlive    time.Duration
	requestRate  rate.Limit
	requestBurst int
	refusal      string

	mu          sync.Mutex
	peers       map[string]*peer
	sessions    map[uint64]*session
	nextSession uint64

	log logging.LeveledLogger
}

// NewSwitch creates a Switch that sends callers to the relay at host:port.
func NewSwitch(relayHost string, relayPort int, opts ...SwitchOption) (*Switch, error) {
	s := &Switch{
		relayHost:    relayHost,
		relayPort:    relayPort,
		requestRate:  rate.Every(50 * time.Millisecond),
		requestBurst: 20,
		peers:        make(map[string]*peer),
		sessions:     make(map[uint64]*session),
		nextSession:  41,
		log:          logging.NewDefaultLoggerFactory().NewLogger("switch"),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// ServeHTTP upgrades the request and serves one client.
func (s *Switch) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnf("upgrade failed: %v", err)

		return
	}
	p := &peer{id: uuid.New(), conn: conn, limiter: rate.NewLimiter(s.requestRate, s.requestBurst)}
	defer s.drop(p)

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			s.log.Debugf("peer %s (%s) gone: %v", p.id, p.number, err)

			return
		}
		if msg.Reply {
			continue
		}
		if !p.limiter.Allow() {
			_ = p.send(errorReply(msg, CodeRateLimited, "slow down"))

			continue
		}
		if err := p.send(s.handle(p, msg)); err != nil {
			s.log.Debugf("reply to %s failed: %v", p.id, err)

			return
		}
	}
}

func (s *Switch) handle(p *peer, req Message) Message {
	switch req.Kind {
	case KindLogin:
		return s.login(p, req)
	case KindInitiate, KindRing, KindHangup:
		if p.number == "" {
			return errorReply(req, CodeLoginFailed, "not logged in")
		}
	default:
		return errorReply(req, CodeBadRequest, "unknown request "+string(req.Kind))
	}

	switch req.Kind {
	case KindInitiate:
		return s.initiate(p, req)
	case KindRing:
		return s.forward(p, req, KindRinging, false)
	default:
		return s.forward(p, req, KindHangup, true)
	}
}

func (s *Switch) login(p *peer, req Message) Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.LocalNumber == "" || p.number != "" || s.peers[req.LocalNumber] != nil {
		return errorReply(req, CodeLoginFailed, "number unavailable")
	}
	if s.directory != nil && !s.directory[req.LocalNumber] {
		return errorReply(req, CodeLoginFailed, "unknown number")
	}
	p.number = req.LocalNumber
	s.peers[p.number] = p
	s.log.Infof("peer %s logged in as %s", p.id, p.number)

	return req.OK()
}

func (s *Switch) initiate(p *peer, req Message) Message {
	if s.refusal != "" {
		return errorReply(req, CodeServerMessage, s.refusal)
	}

	s.mu.Lock()
	if s.directory != nil && !s.directory[req.RemoteNumber] {
		s.mu.Unlock()

		return errorReply(req, CodeNoSuchUser, req.RemoteNumber)
	}
	callee := s.peers[req.RemoteNumber]
	switch {
	case callee == nil || callee == p:
		s.mu.Unlock()

		return errorReply(req, CodeUnavailable, req.RemoteNumber)
	case callee.session != 0 || p.session != 0:
		s.mu.Unlock()

		return errorReply(req, CodeBusy, req.RemoteNumber)
	}

	s.nextSession++
	sess := &session{id: s.nextSession, caller: p, callee: callee, stop: make(chan struct{})}
	s.sessions[sess.id] = sess
	p.session, callee.session = sess.id, sess.id
	s.mu.Unlock()

	incoming := Message{
		Kind:         KindIncoming,
		SessionID:    sess.id,
		LocalNumber:  callee.number,
		RemoteNumber: p.number,
		RelayHost:    s.relayHost,
		RelayPort:    s.relayPort,
	}
	if err := callee.send(incoming); err != nil {
		s.end(sess)

		return errorReply(req, CodeUnavailable, req.RemoteNumber)
	}
	if s.keepAlive > 0 {
		go s.keepSessionAlive(sess)
	}

	reply := req.OK()
	reply.SessionID = sess.id
	reply.LocalNumber = p.number
	reply.RemoteNumber = callee.number
	reply.RelayHost = s.relayHost
	reply.RelayPort = s.relayPort

	return reply
}

// forward pushes a signal of kind to the other member of the session.
func (s *Switch) forward(p *peer, req Message, kind Kind, end bool) Message {
	s.mu.Lock()
	sess := s.sessions[req.SessionID]
	s.mu.Unlock()
	if sess == nil || (sess.caller != p && sess.callee != p) {
		// A hangup racing the end of its session is not an error.
		if end {
			return req.OK()
		}

		return errorReply(req, CodeBadRequest, "unknown session")
	}

	if err := sess.other(p).send(Message{Kind: kind, SessionID: sess.id}); err != nil {
		s.log.Debugf("forwarding %s in session %d failed: %v", kind, sess.id, err)
	}
	if end {
		s.end(sess)
	}

	return req.OK()
}

func (s *Switch) keepSessionAlive(sess *session) {
	ticker := time.NewTicker(s.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for _, p := range []*peer{sess.caller, sess.callee} {
				_ = p.send(Message{Kind: KindKeepAlive, SessionID: sess.id})
			}
		case <-sess.stop:
			return
		}
	}
}

func (s *Switch) end(sess *session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sessions[sess.id] != sess {
		return
	}
	delete(s.sessions, sess.id)
	close(sess.stop)
	for _, p := range []*peer{sess.caller, sess.callee} {
		if p.session == sess.id {
			p.session = 0
		}
	}
}

// drop forgets a disconnected peer. Its session ends and the other member
// is told the call hung up.
func (s *Switch) drop(p *peer) {
	_ = p.conn.Close()

	s.mu.Lock()
	if s.peers[p.number] == p {
		delete(s.peers, p.number)
	}
	sess := s.sessions[p.session]
	s.mu.Unlock()

	if sess != nil {
		_ = sess.other(p).send(Message{Kind: KindHangup, SessionID: sess.id})
		s.end(sess)
	}
}

// Sessions returns the number of live sessions.
func (s *Switch) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.sessions)
}
