// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Package signal implements the call signaling channel: the request/response
// exchange with the switch and the out-of-band signals that arrive during a
// call.
package signal

import (
	"context"
	"time"
)

// Kind identifies a signaling message.
type Kind string

// Requests sent to the switch.
const (
	KindLogin    Kind = "login"
	KindInitiate Kind = "initiate"
	KindRing     Kind = "ring"
	KindHangup   Kind = "hangup"
)

// Replies.
const (
	KindOK    Kind = "ok"
	KindError Kind = "error"
)

// Signals pushed by the switch. Every one must be acknowledged.
const (
	KindIncoming  Kind = "incoming"
	KindRinging   Kind = "ringing"
	KindBusy      Kind = "busy"
	KindKeepAlive Kind = "keepalive"
	// KindHangup is also pushed to the peer of a session that hung up.
)

// Message is one signaling frame. Replies carry the ID of the request or
// signal they answer.
type Message struct {
	ID    uint64 `json:"id"`
	Reply bool   `json:"reply,omitempty"`
	Kind  Kind   `json:"kind"`

	SessionID    uint64 `json:"session_id,omitempty"`
	LocalNumber  string `json:"local_number,omitempty"`
	RemoteNumber string `json:"remote_number,omitempty"`
	RelayHost    string `json:"relay_host,omitempty"`
	RelayPort    int    `json:"relay_port,omitempty"`

	Code string `json:"code,omitempty"`
	Text string `json:"text,omitempty"`
}

// OK returns the acknowledgement of m.
func (m Message) OK() Message {
	return Message{ID: m.ID, Reply: true, Kind: KindOK, SessionID: m.SessionID}
}

// Conn is a signaling connection to the switch.
type Conn interface {
	// Request sends req and waits for its reply. Error replies are returned
	// as errors.
	Request(ctx context.Context, req Message) (Message, error)
	// Poll waits up to timeout for the next signal. It returns false when
	// the timeout elapsed.
	Poll(timeout time.Duration) (Message, bool, error)
	// Respond sends a reply to a signal.
	Respond(reply Message) error
	Close() error
}
