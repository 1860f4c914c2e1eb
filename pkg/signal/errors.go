// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package signal

import (
	"errors"
	"fmt"
)

var (
	// ErrSignalingFailed is returned for signaling faults without a more
	// specific cause.
	ErrSignalingFailed = errors.New("signaling failed")
	// ErrNoSuchUser is returned when the remote number is unknown.
	ErrNoSuchUser = errors.New("no such user")
	// ErrLoginFailed is returned when the switch rejects the local number.
	ErrLoginFailed = errors.New("login failed")
	// ErrRateLimited is returned when the switch throttles requests.
	ErrRateLimited = errors.New("rate limited")
	// ErrRecipientUnavailable is returned when the remote is known but not
	// reachable.
	ErrRecipientUnavailable = errors.New("recipient unavailable")
	// ErrBusy is returned when the remote is already in a call.
	ErrBusy = errors.New("recipient busy")
	// ErrClosed is returned after the connection has been closed.
	ErrClosed = errors.New("signaling connection closed")
)

// ServerMessageError carries a human readable refusal from the switch.
type ServerMessageError struct {
	Text string
}

func (e *ServerMessageError) Error() string {
	return fmt.Sprintf("server message: %s", e.Text)
}

// Error codes carried by KindError replies.
const (
	CodeNoSuchUser    = "no_such_user"
	CodeLoginFailed   = "login_failed"
	CodeRateLimited   = "rate_limited"
	CodeUnavailable   = "unavailable"
	CodeBusy          = "busy"
	CodeServerMessage = "server_message"
	CodeBadRequest    = "bad_request"
)

// errorFor converts an error reply to the matching error value.
func errorFor(m Message) error {
	switch m.Code {
	case CodeNoSuchUser:
		return ErrNoSuchUser
	case CodeLoginFailed:
		return ErrLoginFailed
	case CodeRateLimited:
		return ErrRateLimited
	case CodeUnavailable:
		return ErrRecipientUnavailable
	case CodeBusy:
		return ErrBusy
	case CodeServerMessage:
		return &ServerMessageError{Text: m.Text}
	}

	return fmt.Errorf("%w: %s %s", ErrSignalingFailed, m.Code, m.Text)
}

// reply builds an error reply to req.
func errorReply(req Message, code, text string) Message {
	return Message{ID: req.ID, Reply: true, Kind: KindError, SessionID: req.SessionID, Code: code, Text: text}
}
