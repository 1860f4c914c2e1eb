// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package call

// State is the lifecycle state of a call.
type State int

// Call states. Terminated is final and reachable from every other state.
const (
	StateIdle State = iota
	StateNegotiating
	StatePerformingHandshake
	StateConnected
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateNegotiating:
		return "negotiating"
	case StatePerformingHandshake:
		return "performing-handshake"
	case StateConnected:
		return "connected"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Role is the side of the call a Manager drives.
type Role int

// Call roles.
const (
	Initiator Role = iota
	Responder
)

func (r Role) String() string {
	if r == Initiator {
		return "initiator"
	}

	return "responder"
}

// Reason tells the observer why a call ended.
type Reason int

// Termination reasons.
const (
	ReasonLocalHangup Reason = iota
	ReasonRemoteHangup
	ReasonDenied
	ReasonBusy
	ReasonRecipientUnavailable
	ReasonHandshakeFailed
	ReasonNoSuchUser
	ReasonLoginFailed
	ReasonServerMessage
	ReasonRateLimited
	ReasonSignalingFailed
	ReasonClientError
)

func (r Reason) String() string {
	switch r {
	case ReasonLocalHangup:
		return "local hangup"
	case ReasonRemoteHangup:
		return "remote hangup"
	case ReasonDenied:
		return "denied"
	case ReasonBusy:
		return "busy"
	case ReasonRecipientUnavailable:
		return "recipient unavailable"
	case ReasonHandshakeFailed:
		return "handshake failed"
	case ReasonNoSuchUser:
		return "no such user"
	case ReasonLoginFailed:
		return "login failed"
	case ReasonServerMessage:
		return "server message"
	case ReasonRateLimited:
		return "rate limited"
	case ReasonSignalingFailed:
		return "signaling failed"
	default:
		return "client error"
	}
}
