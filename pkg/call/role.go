// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package call

import (
	"github.com/pion/securecall/pkg/handshake"
	"github.com/pion/securecall/pkg/securestream"
	"github.com/pion/securecall/pkg/signal"
)

// roleStrategy is what differs between the two ends of a call: how the
// session is set up over signaling and which half of the master secret
// protects which direction.
type roleStrategy interface {
	establish(m *Manager, conn signal.Conn) error
	streamKeys(secret handshake.MasterSecret) (outgoing, incoming securestream.KeyMaterial, err error)
}

func roleFor(r Role) roleStrategy {
	if r == Responder {
		return responderRole{}
	}

	return initiatorRole{}
}

type initiatorRole struct{}

func (initiatorRole) establish(m *Manager, conn signal.Conn) error {
	if !m.setState(StateNegotiating) {
		return errTerminated
	}

	session := m.Session()
	reply, err := m.request(conn, signal.Message{
		Kind:         signal.KindInitiate,
		LocalNumber:  session.LocalNumber,
		RemoteNumber: session.RemoteNumber,
	})
	if err != nil {
		return err
	}
	m.updateSession(reply)
	m.startListener(conn)

	return nil
}

func (initiatorRole) streamKeys(secret handshake.MasterSecret) (securestream.KeyMaterial, securestream.KeyMaterial, error) {
	return keyPair(secret, true)
}

type responderRole struct{}

func (responderRole) establish(m *Manager, conn signal.Conn) error {
	session := m.Session()
	if _, err := m.request(conn, signal.Message{Kind: signal.KindRing, SessionID: session.SessionID}); err != nil {
		return err
	}
	m.startListener(conn)

	m.awaitingAnswer.Store(true)
	m.notify(func() { m.observer.OnIncomingCall(session) })
	accept := <-m.answerCh
	m.awaitingAnswer.Store(false)

	if !accept {
		return errDenied
	}
	if !m.setState(StateNegotiating) {
		return errTerminated
	}

	return nil
}

func (responderRole) streamKeys(secret handshake.MasterSecret) (securestream.KeyMaterial, securestream.KeyMaterial, error) {
	return keyPair(secret, false)
}

// keyPair splits secret into the outgoing and incoming key material of one
// side.
func keyPair(secret handshake.MasterSecret, initiator bool) (securestream.KeyMaterial, securestream.KeyMaterial, error) {
	initiatorKeys, err := securestream.NewKeyMaterial(secret.InitiatorKey, secret.InitiatorMAC, secret.InitiatorSalt)
	if err != nil {
		return securestream.KeyMaterial{}, securestream.KeyMaterial{}, err
	}
	responderKeys, err := securestream.NewKeyMaterial(secret.ResponderKey, secret.ResponderMAC, secret.ResponderSalt)
	if err != nil {
		return securestream.KeyMaterial{}, securestream.KeyMaterial{}, err
	}

	if initiator {
		return initiatorKeys, responderKeys, nil
	}

	return responderKeys, initiatorKeys, nil
}
