// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package call

import (
	"github.com/google/uuid"
	"github.com/pion/securecall/pkg/signal"
)

// Session describes one call. The initiator learns SessionID and the relay
// address from the switch; the responder receives them with the incoming
// call signal.
type Session struct {
	SessionID    uint64
	LocalNumber  string
	RemoteNumber string
	RelayHost    string
	RelayPort    int
	Role         Role

	// CallID correlates the log lines of one call.
	CallID string
}

// NewOutgoingSession returns the Session of a call placed from local to
// remote.
func NewOutgoingSession(local, remote string) Session {
	return Session{
		LocalNumber:  local,
		RemoteNumber: remote,
		Role:         Initiator,
		CallID:       uuid.NewString(),
	}
}

// NewIncomingSession returns the Session announced by an incoming call
// signal.
func NewIncomingSession(msg signal.Message) Session {
	return Session{
		SessionID:    msg.SessionID,
		LocalNumber:  msg.LocalNumber,
		RemoteNumber: msg.RemoteNumber,
		RelayHost:    msg.RelayHost,
		RelayPort:    msg.RelayPort,
		Role:         Responder,
		CallID:       uuid.NewString(),
	}
}

func (s *Session) update(reply signal.Message) {
	s.SessionID = reply.SessionID
	if reply.RelayHost != "" {
		s.RelayHost = reply.RelayHost
	}
	if reply.RelayPort != 0 {
		s.RelayPort = reply.RelayPort
	}
}
