// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Package handshake implements the key agreement run over the relay socket
// before media starts.
package handshake

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/flynn/noise"
	"github.com/pion/logging"
)

// Negotiator agrees on a MasterSecret with the remote party.
type Negotiator interface {
	// NegotiateStart sends the first handshake message of this side.
	NegotiateStart(ctx context.Context) error
	// NegotiateFinish completes the exchange. It fails with
	// ErrNegotiationFailed or ErrRecipientUnavailable.
	NegotiateFinish(ctx context.Context) error
	MasterSecret() (MasterSecret, error)
}

// Datagram type prefixes.
const (
	typeHello    byte = 0x01
	typeInitiate byte = 0x02
	typeRespond  byte = 0x03
)

const (
	seedLength                = 32
	responseCopies            = 3
	defaultTimeout            = 10 * time.Second
	defaultRetransmitInterval = 200 * time.Millisecond
	receiveMTU                = 1500
)

// NoiseNegotiator runs a Noise NN handshake over a connected datagram
// socket. The responder's reply carries a random seed which, together with
// the handshake hash, is expanded into the MasterSecret. Both sides keep
// resending their last message until the other answers, since the socket
// may lose datagrams.
//
// The responder starts by sending hello datagrams so that a relay in the
// middle learns its address before the initiator's first message arrives.
type NoiseNegotiator struct {
	conn      net.Conn
	initiator bool
	state     *noise.HandshakeState

	outgoing []byte
	secret   *MasterSecret

	timeout    time.Duration
	retransmit time.Duration

	log logging.LeveledLogger
}

// NewNoiseNegotiator creates a negotiator for one side of a call.
func NewNoiseNegotiator(conn net.Conn, initiator bool, opts ...Option) (*NoiseNegotiator, error) {
	if conn == nil {
		return nil, errNilConn
	}

	state, err := noise.NewHandshakeState(noise.Config{
		CipherSuite: noise.NewCipherSuite(noise.DH25519, noise.CipherChaChaPoly, noise.HashSHA256),
		Random:      rand.Reader,
		Pattern:     noise.HandshakeNN,
		Initiator:   initiator,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNegotiationFailed, err) //nolint:errorlint
	}

	n := &NoiseNegotiator{
		conn:       conn,
		initiator:  initiator,
		state:      state,
		timeout:    defaultTimeout,
		retransmit: defaultRetransmitInterval,
		log:        logging.NewDefaultLoggerFactory().NewLogger("handshake"),
	}
	for _, opt := range opts {
		if err := opt(n); err != nil {
			return nil, err
		}
	}

	return n, nil
}

// NegotiateStart implements Negotiator.
func (n *NoiseNegotiator) NegotiateStart(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if !n.initiator {
		n.outgoing = []byte{typeHello}

		return n.send()
	}

	msg, _, _, err := n.state.WriteMessage([]byte{typeInitiate}, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNegotiationFailed, err) //nolint:errorlint
	}
	n.outgoing = msg

	return n.send()
}

// NegotiateFinish implements Negotiator.
func (n *NoiseNegotiator) NegotiateFinish(ctx context.Context) error {
	if n.outgoing == nil {
		return fmt.Errorf("%w: not started", ErrNegotiationFailed)
	}
	if n.secret != nil {
		return nil
	}
	defer func() {
		_ = n.conn.SetReadDeadline(time.Time{})
	}()

	want := typeRespond
	if !n.initiator {
		want = typeInitiate
	}

	deadline := time.Now().Add(n.timeout)
	buf := make([]byte, receiveMTU)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: no answer within %v", ErrRecipientUnavailable, n.timeout)
		}

		_ = n.conn.SetReadDeadline(time.Now().Add(n.retransmit))
		size, err := n.conn.Read(buf)
		if errors.Is(err, os.ErrDeadlineExceeded) {
			if err = n.send(); err != nil {
				return err
			}

			continue
		} else if err != nil {
			return fmt.Errorf("%w: %v", ErrRecipientUnavailable, err) //nolint:errorlint
		}

		if size == 0 || buf[0] != want {
			continue
		}
		if n.initiator {
			return n.finishInitiator(buf[1:size])
		}

		return n.finishResponder(buf[1:size])
	}
}

func (n *NoiseNegotiator) finishInitiator(msg []byte) error {
	seed, _, _, err := n.state.ReadMessage(nil, msg)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNegotiationFailed, err) //nolint:errorlint
	}
	if len(seed) != seedLength {
		return fmt.Errorf("%w: seed is %d bytes", ErrNegotiationFailed, len(seed))
	}

	return n.derive(seed)
}

func (n *NoiseNegotiator) finishResponder(msg []byte) error {
	if _, _, _, err := n.state.ReadMessage(nil, msg); err != nil {
		return fmt.Errorf("%w: %v", ErrNegotiationFailed, err) //nolint:errorlint
	}

	seed := make([]byte, seedLength)
	if _, err := rand.Read(seed); err != nil {
		return fmt.Errorf("%w: %v", ErrNegotiationFailed, err) //nolint:errorlint
	}
	reply, _, _, err := n.state.WriteMessage([]byte{typeRespond}, seed)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNegotiationFailed, err) //nolint:errorlint
	}

	n.outgoing = reply
	for range responseCopies {
		if err := n.send(); err != nil {
			return err
		}
	}

	return n.derive(seed)
}

func (n *NoiseNegotiator) derive(seed []byte) error {
	secret, err := DeriveMasterSecret(seed, n.state.ChannelBinding())
	if err != nil {
		return err
	}
	n.secret = &secret
	n.log.Debugf("handshake complete (initiator=%t)", n.initiator)

	return nil
}

func (n *NoiseNegotiator) send() error {
	if _, err := n.conn.Write(n.outgoing); err != nil {
		return fmt.Errorf("%w: %v", ErrRecipientUnavailable, err) //nolint:errorlint
	}

	return nil
}

// MasterSecret implements Negotiator.
func (n *NoiseNegotiator) MasterSecret() (MasterSecret, error) {
	if n.secret == nil {
		return MasterSecret{}, ErrNotComplete
	}

	return *n.secret, nil
}
