// Package aead is a stateless wrapper around a single AES-256-GCM cipher
// instance, used by the encryption and decryption pipelines to seal and
// open individual chunks.
package aead

import (
	"crypto/aes"
	"crypto/cipher"

	"github.com/bramvault/ctn1/internal/ctn1err"
)

// Cipher wraps one cipher.AEAD bound to a single file key, shared
// read-only across all pipeline workers for the life of an operation.
type Cipher struct {
	gcm cipher.AEAD
}

// New builds a Cipher for a 32-byte AES-256 key.
func New(key []byte) (*Cipher, error) {
	if len(key) != 32 {
		return nil, ctn1err.New("aead.new", ctn1err.KindInvalidArgument, nil)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, ctn1err.New("aead.new", ctn1err.KindInvalidArgument, err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, ctn1err.New("aead.new", ctn1err.KindInvalidArgument, err)
	}
	return &Cipher{gcm: gcm}, nil
}

// Seal encrypts plaintext with nonce and aad, appending the tag. dst, if
// non-nil and large enough, is used as the destination buffer.
func (c *Cipher) Seal(dst, nonce, plaintext, aad []byte) []byte {
	return c.gcm.Seal(dst[:0], nonce, plaintext, aad)
}

// Open authenticates and decrypts ciphertext (which must include the
// trailing tag) with nonce and aad. Any tag or AAD mismatch returns a
// KindAuthFailed error.
func (c *Cipher) Open(dst, nonce, ciphertext, aad []byte) ([]byte, error) {
	plain, err := c.gcm.Open(dst[:0], nonce, ciphertext, aad)
	if err != nil {
		return nil, ctn1err.New("aead.open", ctn1err.KindAuthFailed, err)
	}
	return plain, nil
}

// Overhead returns the number of bytes the GCM tag adds.
func (c *Cipher) Overhead() int { return c.gcm.Overhead() }

// NonceSize returns the nonce size expected by Seal/Open.
func (c *Cipher) NonceSize() int { return c.gcm.NonceSize() }
