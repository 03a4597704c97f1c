// Package keywrap seals and unseals the per-file data key under a caller
// supplied 32-byte master key, using AES-256-GCM with empty AAD.
package keywrap

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"io"

	"github.com/bramvault/ctn1/internal/container"
	"github.com/bramvault/ctn1/internal/ctn1err"
)

// Sealed holds the three fields written into the file header to later
// recover the file key: the nonce used to seal it, the GCM tag, and the
// ciphertext itself.
type Sealed struct {
	Nonce      [container.WrapNonceSize]byte
	Tag        [container.WrapTagSize]byte
	Ciphertext [container.FileKeySize]byte
}

// Seal wraps fileKey (exactly FileKeySize bytes) under masterKey (exactly
// 32 bytes), generating a fresh nonce from rng (crypto/rand.Reader if nil).
func Seal(masterKey, fileKey []byte, rng io.Reader) (Sealed, error) {
	var out Sealed
	if len(masterKey) != 32 {
		return out, ctn1err.New("keywrap.seal", ctn1err.KindInvalidArgument, nil)
	}
	if len(fileKey) != container.FileKeySize {
		return out, ctn1err.New("keywrap.seal", ctn1err.KindInvalidArgument, nil)
	}
	gcm, err := newGCM(masterKey)
	if err != nil {
		return out, ctn1err.New("keywrap.seal", ctn1err.KindInvalidArgument, err)
	}
	if rng == nil {
		rng = rand.Reader
	}
	if _, err := io.ReadFull(rng, out.Nonce[:]); err != nil {
		return out, ctn1err.New("keywrap.seal", ctn1err.KindIO, err)
	}
	sealed := gcm.Seal(nil, out.Nonce[:], fileKey, nil)
	// sealed is ciphertext||tag; ciphertext is FileKeySize, tag is WrapTagSize.
	copy(out.Ciphertext[:], sealed[:container.FileKeySize])
	copy(out.Tag[:], sealed[container.FileKeySize:])
	return out, nil
}

// Unseal recovers the file key from a Sealed record under masterKey.
// Any tag mismatch fails with KindAuthFailed.
func Unseal(masterKey []byte, sealed Sealed) ([]byte, error) {
	if len(masterKey) != 32 {
		return nil, ctn1err.New("keywrap.unseal", ctn1err.KindInvalidArgument, nil)
	}
	gcm, err := newGCM(masterKey)
	if err != nil {
		return nil, ctn1err.New("keywrap.unseal", ctn1err.KindInvalidArgument, err)
	}
	combined := make([]byte, 0, container.FileKeySize+container.WrapTagSize)
	combined = append(combined, sealed.Ciphertext[:]...)
	combined = append(combined, sealed.Tag[:]...)
	plain, err := gcm.Open(nil, sealed.Nonce[:], combined, nil)
	if err != nil {
		return nil, ctn1err.New("keywrap.unseal", ctn1err.KindAuthFailed, err)
	}
	return plain, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
