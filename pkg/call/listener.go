// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package call

import "github.com/pion/securecall/pkg/signal"

// startListener begins the signal listener. Each run handles at most one
// signal and queues the next run, so a hangup queued on the same executor
// goes out after the signal being handled was acknowledged.
func (m *Manager) startListener(conn signal.Conn) {
	m.submit(func() { m.listen(conn) })
}

func (m *Manager) listen(conn signal.Conn) {
	if m.terminated.Load() {
		return
	}

	msg, ok, err := conn.Poll(m.cfg.SignalPollInterval)
	if err != nil {
		m.terminate(ReasonSignalingFailed, err)

		return
	}
	if ok {
		m.dispatch(conn, msg)
	}

	if !m.terminated.Load() {
		m.submit(func() { m.listen(conn) })
	}
}

func (m *Manager) dispatch(conn signal.Conn, msg signal.Message) {
	if id := m.Session().SessionID; msg.SessionID != 0 && msg.SessionID != id {
		m.log.Debugf("call %s: ignoring %s for session %d", m.callID, msg.Kind, msg.SessionID)
		m.ack(conn, msg)

		return
	}

	switch msg.Kind {
	case signal.KindHangup:
		m.ack(conn, msg)
		m.terminate(ReasonRemoteHangup, nil)
	case signal.KindRinging:
		m.notify(m.observer.OnRinging)
		m.ack(conn, msg)
	case signal.KindBusy:
		m.ack(conn, msg)
		m.terminate(ReasonBusy, nil)
	case signal.KindKeepAlive:
		m.ack(conn, msg)
	default:
		m.log.Debugf("call %s: ignoring %s signal", m.callID, msg.Kind)
		m.ack(conn, msg)
	}
}

func (m *Manager) ack(conn signal.Conn, msg signal.Message) {
	if err := conn.Respond(msg.OK()); err != nil {
		m.log.Debugf("call %s: acknowledging %s: %v", m.callID, msg.Kind, err)
	}
}
