// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package call

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/pion/securecall"
	"github.com/pion/securecall/pkg/handshake"
	"github.com/pion/securecall/pkg/prefs"
	"github.com/pion/securecall/pkg/signal"
)

// Dependencies are the collaborators a Manager drives. DialSignal and the
// audio factories are required; the others have defaults.
type Dependencies struct {
	// DialSignal returns the signaling connection of the call. The Manager
	// closes it on termination.
	DialSignal func(ctx context.Context) (signal.Conn, error)
	// DialRelay opens the datagram socket to the relay. Defaults to UDP.
	DialRelay func(ctx context.Context, host string, port int) (net.Conn, error)
	// NewNegotiator creates the key agreement run over the relay socket.
	// Defaults to a handshake.NoiseNegotiator.
	NewNegotiator func(conn net.Conn, initiator bool) (handshake.Negotiator, error)

	NewCodec     func() (securecall.Codec, error)
	OpenCapture  func() (securecall.Capture, error)
	OpenPlayback func() (securecall.Playback, error)

	// Prefs keeps the learned playout values between calls. Defaults to an
	// in-memory store.
	Prefs prefs.Store
}

func (d *Dependencies) validate() error {
	switch {
	case d.DialSignal == nil:
		return fmt.Errorf("%w: no signaling dialer", ErrInvalidDependencies)
	case d.NewCodec == nil:
		return fmt.Errorf("%w: no codec", ErrInvalidDependencies)
	case d.OpenCapture == nil || d.OpenPlayback == nil:
		return fmt.Errorf("%w: no audio devices", ErrInvalidDependencies)
	}

	return nil
}

func dialUDP(ctx context.Context, host string, port int) (net.Conn, error) {
	var dialer net.Dialer

	return dialer.DialContext(ctx, "udp", net.JoinHostPort(host, strconv.Itoa(port)))
}
