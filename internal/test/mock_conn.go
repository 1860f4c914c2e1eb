// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Package test provides helpers for testing the call core: an in-memory
// datagram connection, fake audio devices and a manual ticker.
package test

import (
	"io"
	"net"
	"os"
	"sync"
	"time"
)

const mockConnBacklog = 1000

type mockAddr string

func (a mockAddr) Network() string { return "mock" }
func (a mockAddr) String() string  { return string(a) }

// MockConn is one end of an in-memory datagram connection. Datagrams are never
// merged or split; when the peer backlog is full a write is silently dropped,
// like UDP.
type MockConn struct {
	name string
	in   chan []byte
	peer *MockConn

	mu           sync.Mutex
	readDeadline time.Time
	closeCount   int

	closeOnce sync.Once
	closed    chan struct{}
}

// NewMockConnPair creates two connected MockConns.
func NewMockConnPair() (*MockConn, *MockConn) {
	a := &MockConn{name: "a", in: make(chan []byte, mockConnBacklog), closed: make(chan struct{})}
	b := &MockConn{name: "b", in: make(chan []byte, mockConnBacklog), closed: make(chan struct{})}
	a.peer, b.peer = b, a

	return a, b
}

// Read reads one datagram, honouring the read deadline.
func (c *MockConn) Read(b []byte) (int, error) {
	c.mu.Lock()
	deadline := c.readDeadline
	c.mu.Unlock()

	var timeout <-chan time.Time
	if !deadline.IsZero() {
		d := time.Until(deadline)
		if d <= 0 {
			select {
			case pkt := <-c.in:
				return copy(b, pkt), nil
			default:
				return 0, os.ErrDeadlineExceeded
			}
		}
		timer := time.NewTimer(d)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case pkt := <-c.in:
		return copy(b, pkt), nil
	case <-c.closed:
		return 0, io.EOF
	case <-timeout:
		return 0, os.ErrDeadlineExceeded
	}
}

// Write delivers a copy of b to the peer.
func (c *MockConn) Write(b []byte) (int, error) {
	select {
	case <-c.closed:
		return 0, io.ErrClosedPipe
	default:
	}

	c.peer.Inject(b)

	return len(b), nil
}

// Inject queues b as if it had arrived from the network.
func (c *MockConn) Inject(b []byte) {
	pkt := append([]byte(nil), b...)
	select {
	case c.in <- pkt:
	default:
	}
}

// Pending returns the number of datagrams waiting to be read.
func (c *MockConn) Pending() int {
	return len(c.in)
}

// Close closes the connection. Every call is counted.
func (c *MockConn) Close() error {
	c.mu.Lock()
	c.closeCount++
	c.mu.Unlock()

	c.closeOnce.Do(func() { close(c.closed) })

	return nil
}

// CloseCount returns how many times Close was called.
func (c *MockConn) CloseCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.closeCount
}

// LocalAddr returns a placeholder address.
func (c *MockConn) LocalAddr() net.Addr { return mockAddr(c.name) }

// RemoteAddr returns a placeholder address.
func (c *MockConn) RemoteAddr() net.Addr { return mockAddr(c.peer.name) }

// SetDeadline sets the read deadline.
func (c *MockConn) SetDeadline(t time.Time) error {
	return c.SetReadDeadline(t)
}

// SetReadDeadline sets the read deadline.
func (c *MockConn) SetReadDeadline(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.readDeadline = t

	return nil
}

// SetWriteDeadline is a no-op, writes never block.
func (c *MockConn) SetWriteDeadline(time.Time) error {
	return nil
}
