// Package keysource resolves the 32-byte master keys that wrap and
// unwrap per-file keys in a CTN1 container header (spec.md §4.2). It
// offers two backends: a static provider for operator-supplied key
// material, and a Vault Transit-backed provider that mints and recovers
// data keys without the plaintext master key ever leaving Vault at
// rest.
package keysource

import (
	"context"
	"fmt"
)

// Provider resolves master key material by CTN1 KeyID and mints new
// KeyID/master-key pairs when a new file is about to be encrypted.
type Provider interface {
	// MasterKey returns the 32-byte master key that was used to wrap the
	// file key under the given KeyID.
	MasterKey(ctx context.Context, keyID int32) ([]byte, error)

	// NewMasterKey mints a new KeyID/master-key pair for encrypting a
	// fresh file.
	NewMasterKey(ctx context.Context) (keyID int32, masterKey []byte, err error)

	// Close releases any resources held by the provider.
	Close() error
}

// ErrUnknownKeyID is returned by MasterKey when a provider has no record
// of the requested KeyID.
type ErrUnknownKeyID struct {
	KeyID int32
}

func (e *ErrUnknownKeyID) Error() string {
	return fmt.Sprintf("keysource: unknown key id %d", e.KeyID)
}
