// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package handshake

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/pion/securecall/internal/test"
	transporttest "github.com/pion/transport/v3/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lossyConn drops the first drop writes.
type lossyConn struct {
	net.Conn
	mu   sync.Mutex
	drop int
}

func (c *lossyConn) Write(b []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.drop > 0 {
		c.drop--

		return len(b), nil
	}

	return c.Conn.Write(b)
}

func negotiate(ctx context.Context, n *NoiseNegotiator) error {
	if err := n.NegotiateStart(ctx); err != nil {
		return err
	}

	return n.NegotiateFinish(ctx)
}

func runPair(t *testing.T, initiatorConn, responderConn net.Conn) (MasterSecret, MasterSecret) {
	t.Helper()

	opts := []Option{WithRetransmitInterval(10 * time.Millisecond), WithTimeout(5 * time.Second)}
	initiator, err := NewNoiseNegotiator(initiatorConn, true, opts...)
	require.NoError(t, err)
	responder, err := NewNoiseNegotiator(responderConn, false, opts...)
	require.NoError(t, err)

	ctx := context.Background()
	errs := make(chan error, 1)
	go func() { errs <- negotiate(ctx, responder) }()
	require.NoError(t, negotiate(ctx, initiator))
	require.NoError(t, <-errs)

	a, err := initiator.MasterSecret()
	require.NoError(t, err)
	b, err := responder.MasterSecret()
	require.NoError(t, err)

	return a, b
}

func TestNoiseNegotiator_Agree(t *testing.T) {
	report := transporttest.CheckRoutines(t)
	defer report()

	a, b := test.NewMockConnPair()
	defer func() {
		_ = a.Close()
		_ = b.Close()
	}()

	initiator, responder := runPair(t, a, b)
	assert.Equal(t, initiator, responder)
	assert.Len(t, initiator.InitiatorKey, KeyLength)
	assert.Len(t, initiator.InitiatorMAC, MACLength)
	assert.Len(t, initiator.InitiatorSalt, SaltLength)
	assert.Len(t, initiator.ResponderKey, KeyLength)
	assert.NotEqual(t, initiator.InitiatorKey, initiator.ResponderKey)
}

func TestNoiseNegotiator_FreshKeysPerCall(t *testing.T) {
	a, b := test.NewMockConnPair()
	first, _ := runPair(t, a, b)

	c, d := test.NewMockConnPair()
	second, _ := runPair(t, c, d)

	assert.NotEqual(t, first.InitiatorKey, second.InitiatorKey)
}

func TestNoiseNegotiator_Retransmits(t *testing.T) {
	a, b := test.NewMockConnPair()

	initiator, responder := runPair(t, &lossyConn{Conn: a, drop: 2}, &lossyConn{Conn: b, drop: 1})
	assert.Equal(t, initiator, responder)
}

func TestNoiseNegotiator_Unavailable(t *testing.T) {
	a, _ := test.NewMockConnPair()

	n, err := NewNoiseNegotiator(a, true, WithTimeout(50*time.Millisecond), WithRetransmitInterval(10*time.Millisecond))
	require.NoError(t, err)

	assert.ErrorIs(t, negotiate(context.Background(), n), ErrRecipientUnavailable)
	_, err = n.MasterSecret()
	assert.ErrorIs(t, err, ErrNotComplete)
}

func TestNoiseNegotiator_Cancel(t *testing.T) {
	a, _ := test.NewMockConnPair()

	n, err := NewNoiseNegotiator(a, false, WithRetransmitInterval(10*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, n.NegotiateStart(ctx))
	time.AfterFunc(30*time.Millisecond, cancel)

	assert.ErrorIs(t, n.NegotiateFinish(ctx), context.Canceled)
}

func TestNoiseNegotiator_CorruptResponse(t *testing.T) {
	a, _ := test.NewMockConnPair()

	n, err := NewNoiseNegotiator(a, true, WithRetransmitInterval(10*time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, n.NegotiateStart(context.Background()))

	garbage := make([]byte, 64)
	garbage[0] = typeRespond
	a.Inject(garbage)

	assert.ErrorIs(t, n.NegotiateFinish(context.Background()), ErrNegotiationFailed)
}

func TestNoiseNegotiator_FinishBeforeStart(t *testing.T) {
	a, _ := test.NewMockConnPair()

	n, err := NewNoiseNegotiator(a, true)
	require.NoError(t, err)
	assert.ErrorIs(t, n.NegotiateFinish(context.Background()), ErrNegotiationFailed)

	_, err = NewNoiseNegotiator(nil, true)
	assert.Error(t, err)
}

func TestDeriveMasterSecret(t *testing.T) {
	a, err := DeriveMasterSecret([]byte("seed"), []byte("binding"))
	require.NoError(t, err)
	b, err := DeriveMasterSecret([]byte("seed"), []byte("binding"))
	require.NoError(t, err)
	c, err := DeriveMasterSecret([]byte("seed"), []byte("other"))
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a.InitiatorKey, c.InitiatorKey)
}
