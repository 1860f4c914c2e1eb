// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package securestream

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"

	"github.com/pion/rtp"
)

// Cipher applies AES in counter mode to packet payloads. The IV is the salt
// XOR the SSRC (bytes 6-7) XOR the 48-bit logical sequence (bytes 8-13).
type Cipher struct {
	block cipher.Block
	salt  [SaltLength]byte
}

// NewCipher creates a Cipher from one direction's key material.
func NewCipher(keys KeyMaterial) (*Cipher, error) {
	block, err := aes.NewCipher(keys.CipherKey[:])
	if err != nil {
		return nil, fmt.Errorf("securestream: %w", err)
	}

	return &Cipher{block: block, salt: keys.Salt}, nil
}

func (c *Cipher) iv(ssrc uint32, logical uint64) [aes.BlockSize]byte {
	var iv [aes.BlockSize]byte
	copy(iv[:SaltLength], c.salt[:])

	iv[6] ^= byte(ssrc >> 8)
	iv[7] ^= byte(ssrc)
	for i := 0; i < 6; i++ {
		iv[8+i] ^= byte(logical >> (8 * (5 - i)))
	}

	return iv
}

// Encrypt encrypts the payload of pkt in place.
func (c *Cipher) Encrypt(pkt *rtp.Packet, logical uint64) {
	c.xor(pkt.Payload, pkt.SSRC, logical)
}

// Decrypt decrypts the payload of pkt in place.
func (c *Cipher) Decrypt(pkt *rtp.Packet, logical uint64) {
	c.xor(pkt.Payload, pkt.SSRC, logical)
}

func (c *Cipher) xor(buf []byte, ssrc uint32, logical uint64) {
	iv := c.iv(ssrc, logical)
	cipher.NewCTR(c.block, iv[:]).XORKeyStream(buf, buf)
}
