// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package securestream

import "fmt"

const (
	// CipherKeyLength is the AES-128 key size.
	CipherKeyLength = 16
	// MACKeyLength is the HMAC-SHA1 key size.
	MACKeyLength = 20
	// SaltLength is the size of the IV salt.
	SaltLength = 14
)

// KeyMaterial is the symmetric key set of one stream direction. It is derived
// once from the handshake output and never changes for the life of a call.
type KeyMaterial struct {
	CipherKey [CipherKeyLength]byte
	MACKey    [MACKeyLength]byte
	Salt      [SaltLength]byte
}

// NewKeyMaterial copies the given slices into a KeyMaterial.
func NewKeyMaterial(cipherKey, macKey, salt []byte) (KeyMaterial, error) {
	var km KeyMaterial
	switch {
	case len(cipherKey) != CipherKeyLength:
		return km, fmt.Errorf("%w: cipher key is %d bytes", ErrInvalidKeyLength, len(cipherKey))
	case len(macKey) != MACKeyLength:
		return km, fmt.Errorf("%w: mac key is %d bytes", ErrInvalidKeyLength, len(macKey))
	case len(salt) != SaltLength:
		return km, fmt.Errorf("%w: salt is %d bytes", ErrInvalidKeyLength, len(salt))
	}

	copy(km.CipherKey[:], cipherKey)
	copy(km.MACKey[:], macKey)
	copy(km.Salt[:], salt)

	return km, nil
}
