// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package securestream

import (
	"crypto/hmac"
	"crypto/sha1" //nolint:gosec // HMAC-SHA1 is the wire format
	"hash"
)

// MACLength is the size of the authentication trailer.
const MACLength = sha1.Size

// Authenticator computes and verifies the HMAC-SHA1 trailer of a packet. The
// MAC covers every byte of the marshaled packet except the trailer itself.
type Authenticator struct {
	mac hash.Hash
}

// NewAuthenticator creates an Authenticator from one direction's key material.
func NewAuthenticator(keys KeyMaterial) *Authenticator {
	return &Authenticator{mac: hmac.New(sha1.New, keys.MACKey[:])}
}

// Append returns raw with the MAC appended.
func (a *Authenticator) Append(raw []byte) []byte {
	return append(raw, a.sum(raw)...)
}

// Verify checks the trailer of raw and returns the authenticated body.
func (a *Authenticator) Verify(raw []byte) ([]byte, error) {
	if len(raw) < MACLength {
		return nil, ErrShortPacket
	}

	body, tag := raw[:len(raw)-MACLength], raw[len(raw)-MACLength:]
	if !hmac.Equal(a.sum(body), tag) {
		return nil, ErrAuthFailed
	}

	return body, nil
}

func (a *Authenticator) sum(body []byte) []byte {
	a.mac.Reset()
	a.mac.Write(body) //nolint:errcheck,gosec // hash.Hash never returns an error

	return a.mac.Sum(nil)
}
