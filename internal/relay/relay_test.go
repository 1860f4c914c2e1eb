// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package relay

import (
	"net"
	"testing"
	"time"

	transporttest "github.com/pion/transport/v3/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialRelay(t *testing.T, r *Relay) net.Conn {
	t.Helper()

	conn, err := net.Dial("udp", r.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func read(t *testing.T, conn net.Conn) (string, error) {
	t.Helper()

	buf := make([]byte, 64)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	n, err := conn.Read(buf)

	return string(buf[:n]), err
}

func TestRelay_PairsFirstTwoPeers(t *testing.T) {
	report := transporttest.CheckRoutines(t)
	defer report()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	r, err := New(pc)
	require.NoError(t, err)
	defer func() { assert.NoError(t, r.Close()) }()

	alice := dialRelay(t, r)
	bob := dialRelay(t, r)
	mallory := dialRelay(t, r)

	_, err = alice.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return r.Dropped() == 1 }, time.Second, 5*time.Millisecond)

	_, err = bob.Write([]byte("from bob"))
	require.NoError(t, err)
	got, err := read(t, alice)
	require.NoError(t, err)
	assert.Equal(t, "from bob", got)

	_, err = alice.Write([]byte("from alice"))
	require.NoError(t, err)
	got, err = read(t, bob)
	require.NoError(t, err)
	assert.Equal(t, "from alice", got)

	_, err = mallory.Write([]byte("intruder"))
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return r.Dropped() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, uint64(2), r.Forwarded())
}
