// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package call

import (
	"errors"

	"github.com/pion/securecall/pkg/handshake"
	"github.com/pion/securecall/pkg/signal"
)

var (
	// ErrAudioInit is returned when an audio device cannot be opened or
	// fails while the call runs.
	ErrAudioInit = errors.New("audio device failure")
	// ErrCodecInit is returned when the codec cannot be created.
	ErrCodecInit = errors.New("codec initialization failed")
	// ErrInvalidDependencies is returned by New when a required dependency
	// is missing.
	ErrInvalidDependencies = errors.New("invalid call dependencies")
	// ErrInvalidConfig is returned when a Config value is out of range.
	ErrInvalidConfig = errors.New("invalid call config")
	// ErrPanic wraps a panic recovered from the call goroutine.
	ErrPanic = errors.New("call goroutine panicked")

	errDenied = errors.New("call denied")
)

// reasonFor classifies the error that ended a call.
func reasonFor(err error) Reason {
	var serverErr *signal.ServerMessageError

	switch {
	case errors.As(err, &serverErr):
		return ReasonServerMessage
	case errors.Is(err, errDenied):
		return ReasonDenied
	case errors.Is(err, signal.ErrRecipientUnavailable), errors.Is(err, handshake.ErrRecipientUnavailable):
		return ReasonRecipientUnavailable
	case errors.Is(err, handshake.ErrNegotiationFailed):
		return ReasonHandshakeFailed
	case errors.Is(err, signal.ErrNoSuchUser):
		return ReasonNoSuchUser
	case errors.Is(err, signal.ErrLoginFailed):
		return ReasonLoginFailed
	case errors.Is(err, signal.ErrRateLimited):
		return ReasonRateLimited
	case errors.Is(err, signal.ErrBusy):
		return ReasonBusy
	case errors.Is(err, signal.ErrSignalingFailed), errors.Is(err, signal.ErrClosed):
		return ReasonSignalingFailed
	default:
		return ReasonClientError
	}
}
