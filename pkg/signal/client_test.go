// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package signal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_PollTimeout(t *testing.T) {
	_, url := newTestSwitch(t)
	alice := dial(t, url, "1001")

	start := time.Now()
	_, ok, err := alice.Poll(30 * time.Millisecond)
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestClient_Close(t *testing.T) {
	_, url := newTestSwitch(t)
	alice := dial(t, url, "1001")

	require.NoError(t, alice.Close())
	require.NoError(t, alice.Close())

	_, _, err := alice.Poll(time.Second)
	assert.ErrorIs(t, err, ErrClosed)

	_, err = alice.Request(context.Background(), Message{Kind: KindRing})
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, alice.Respond(Message{ID: 1}), ErrClosed)
}

func TestClient_DialFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := Dial(ctx, "ws://127.0.0.1:1/", "1001")
	assert.ErrorIs(t, err, ErrSignalingFailed)
}

func TestErrorFor(t *testing.T) {
	for code, want := range map[string]error{
		CodeNoSuchUser:  ErrNoSuchUser,
		CodeLoginFailed: ErrLoginFailed,
		CodeRateLimited: ErrRateLimited,
		CodeUnavailable: ErrRecipientUnavailable,
		CodeBusy:        ErrBusy,
		"teapot":        ErrSignalingFailed,
	} {
		assert.ErrorIs(t, errorFor(Message{Kind: KindError, Code: code}), want, code)
	}

	var serverErr *ServerMessageError
	require.ErrorAs(t, errorFor(Message{Code: CodeServerMessage, Text: "closed"}), &serverErr)
	assert.Equal(t, "closed", serverErr.Text)
}
