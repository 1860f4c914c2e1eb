// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package handshake

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Sizes of the derived keys. They match the secure stream's AES-128 key,
// HMAC-SHA1 key and IV salt.
const (
	KeyLength  = 16
	MACLength  = 20
	SaltLength = 14
)

const masterSecretInfo = "securecall master secret v1"

// MasterSecret holds the symmetric keys of both call directions. The
// initiator sends with the Initiator fields and the responder with the
// Responder fields.
type MasterSecret struct {
	InitiatorKey  []byte
	InitiatorMAC  []byte
	InitiatorSalt []byte
	ResponderKey  []byte
	ResponderMAC  []byte
	ResponderSalt []byte
}

// DeriveMasterSecret expands secret into a MasterSecret with HKDF-SHA256.
// binding ties the result to one handshake transcript.
func DeriveMasterSecret(secret, binding []byte) (MasterSecret, error) {
	const perDirection = KeyLength + MACLength + SaltLength

	out := make([]byte, 2*perDirection)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, binding, []byte(masterSecretInfo)), out); err != nil {
		return MasterSecret{}, fmt.Errorf("%w: %v", ErrNegotiationFailed, err) //nolint:errorlint
	}

	next := func(n int) []byte {
		b := out[:n:n]
		out = out[n:]

		return b
	}

	return MasterSecret{
		InitiatorKey:  next(KeyLength),
		InitiatorMAC:  next(MACLength),
		InitiatorSalt: next(SaltLength),
		ResponderKey:  next(KeyLength),
		ResponderMAC:  next(MACLength),
		ResponderSalt: next(SaltLength),
	}, nil
}
