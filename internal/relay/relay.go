// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Package relay implements the datagram relay both ends of a call send
// their media to.
package relay

import (
	"errors"
	"net"
	"sync"

	"github.com/pion/logging"
	"go.uber.org/atomic"
)

const receiveMTU = 1500

// Option can be used to configure a Relay.
type Option func(r *Relay) error

// WithLoggerFactory sets the logger factory for the relay.
func WithLoggerFactory(loggerFactory logging.LoggerFactory) Option {
	return func(r *Relay) error {
		r.log = loggerFactory.NewLogger("relay")

		return nil
	}
}

// Relay forwards datagrams between the first two addresses that send to it.
// Datagrams that arrive before the second peer is known, and datagrams from
// any other address, are dropped.
type Relay struct {
	conn net.PacketConn

	mu    sync.Mutex
	peers [2]net.Addr

	forwarded atomic.Uint64
	dropped   atomic.Uint64

	closeOnce sync.Once
	done      chan struct{}

	log logging.LeveledLogger
}

// New starts a Relay serving conn. The relay owns conn.
func New(conn net.PacketConn, opts ...Option) (*Relay, error) {
	r := &Relay{
		conn: conn,
		done: make(chan struct{}),
		log:  logging.NewDefaultLoggerFactory().NewLogger("relay"),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}

	go r.serve()

	return r, nil
}

func (r *Relay) serve() {
	defer close(r.done)

	buf := make([]byte, receiveMTU)
	for {
		n, from, err := r.conn.ReadFrom(buf)
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				r.log.Warnf("relay stopped: %v", err)
			}

			return
		}

		to := r.route(from)
		if to == nil {
			r.dropped.Inc()

			continue
		}
		if _, err = r.conn.WriteTo(buf[:n], to); err != nil {
			r.log.Debugf("forwarding to %s: %v", to, err)
			r.dropped.Inc()

			continue
		}
		r.forwarded.Inc()
	}
}

// route learns from and returns where its datagrams go.
func (r *Relay) route(from net.Addr) net.Addr {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, p := range r.peers {
		switch {
		case p == nil:
			r.peers[i] = from
			r.log.Infof("peer %d is %s", i, from)

			return nil
		case p.String() == from.String():
			return r.peers[1-i]
		}
	}

	return nil
}

// Addr returns the address the relay listens on.
func (r *Relay) Addr() net.Addr {
	return r.conn.LocalAddr()
}

// Forwarded returns the number of datagrams passed on.
func (r *Relay) Forwarded() uint64 {
	return r.forwarded.Load()
}

// Dropped returns the number of datagrams that could not be passed on.
func (r *Relay) Dropped() uint64 {
	return r.dropped.Load()
}

// Close stops the relay and waits for it to exit.
func (r *Relay) Close() error {
	var err error
	r.closeOnce.Do(func() { err = r.conn.Close() })
	<-r.done

	return err
}
