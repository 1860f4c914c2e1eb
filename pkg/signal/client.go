// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package signal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/logging"
	"go.uber.org/atomic"
)

const (
	signalBacklog = 16
	writeTimeout  = 5 * time.Second
)

// ClientOption can be used to configure a Client.
type ClientOption func(c *Client) error

// WithClientLoggerFactory sets the logger factory for the client.
func WithClientLoggerFactory(loggerFactory logging.LoggerFactory) ClientOption {
	return func(c *Client) error {
		c.log = loggerFactory.NewLogger("signal")

		return nil
	}
}

// Client is a Conn over a websocket. A reader goroutine routes replies to
// the waiting Request and queues everything else for Poll.
type Client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	nextID  atomic.Uint64

	pendingMu sync.Mutex
	pending   map[uint64]chan Message

	signals chan Message

	closeOnce sync.Once
	closed    chan struct{}
	readErr   error

	log logging.LeveledLogger
}

// Dial connects to the switch at url and logs in as number.
func Dial(ctx context.Context, url, number string, opts ...ClientOption) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrSignalingFailed, url, err) //nolint:errorlint
	}

	c, err := NewClient(conn, opts...)
	if err != nil {
		_ = conn.Close()

		return nil, err
	}

	if _, err = c.Request(ctx, Message{Kind: KindLogin, LocalNumber: number}); err != nil {
		_ = c.Close()

		return nil, err
	}

	return c, nil
}

// NewClient wraps an established websocket.
func NewClient(conn *websocket.Conn, opts ...ClientOption) (*Client, error) {
	c := &Client{
		conn:    conn,
		pending: make(map[uint64]chan Message),
		signals: make(chan Message, signalBacklog),
		closed:  make(chan struct{}),
		log:     logging.NewDefaultLoggerFactory().NewLogger("signal"),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	go c.readLoop()

	return c, nil
}

func (c *Client) readLoop() {
	defer c.shutdown(nil)

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			c.shutdown(err)

			return
		}

		if msg.Reply {
			c.pendingMu.Lock()
			ch, ok := c.pending[msg.ID]
			delete(c.pending, msg.ID)
			c.pendingMu.Unlock()
			if ok {
				ch <- msg
			} else {
				c.log.Debugf("dropping unsolicited reply %d (%s)", msg.ID, msg.Kind)
			}

			continue
		}

		select {
		case c.signals <- msg:
		case <-c.closed:
			return
		}
	}
}

// Request implements Conn.
func (c *Client) Request(ctx context.Context, req Message) (Message, error) {
	req.ID = c.nextID.Inc()
	req.Reply = false

	ch := make(chan Message, 1)
	c.pendingMu.Lock()
	c.pending[req.ID] = ch
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, req.ID)
		c.pendingMu.Unlock()
	}()

	if err := c.write(req); err != nil {
		return Message{}, err
	}

	select {
	case reply := <-ch:
		if reply.Kind == KindError {
			return reply, errorFor(reply)
		}

		return reply, nil
	case <-ctx.Done():
		return Message{}, ctx.Err()
	case <-c.closed:
		return Message{}, c.closedErr()
	}
}

// Poll implements Conn. It never touches the socket read deadline; the
// reader goroutine owns reads.
func (c *Client) Poll(timeout time.Duration) (Message, bool, error) {
	select {
	case msg := <-c.signals:
		return msg, true, nil
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case msg := <-c.signals:
		return msg, true, nil
	case <-timer.C:
		return Message{}, false, nil
	case <-c.closed:
		return Message{}, false, c.closedErr()
	}
}

// Respond implements Conn.
func (c *Client) Respond(reply Message) error {
	reply.Reply = true

	return c.write(reply)
}

func (c *Client) write(msg Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	select {
	case <-c.closed:
		return c.closedErr()
	default:
	}

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("%w: write: %v", ErrSignalingFailed, err) //nolint:errorlint
	}

	return nil
}

func (c *Client) shutdown(err error) {
	c.closeOnce.Do(func() {
		c.readErr = err
		close(c.closed)
		_ = c.conn.Close()
	})
}

func (c *Client) closedErr() error {
	if c.readErr != nil {
		return fmt.Errorf("%w: %v", ErrClosed, c.readErr) //nolint:errorlint
	}

	return ErrClosed
}

// Close implements Conn. It is safe to call more than once.
func (c *Client) Close() error {
	c.writeMu.Lock()
	_ = c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	c.writeMu.Unlock()

	c.shutdown(nil)

	return nil
}
