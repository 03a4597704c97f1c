package keysource

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/bramvault/ctn1/internal/secure"
)

const masterKeySize = 32

// StaticProvider resolves a single operator-supplied master key under a
// single configured KeyID. It is the right choice for a single-tenant
// deployment that rotates keys by redeploying configuration rather than
// through an external KMS.
type StaticProvider struct {
	keyID int32
	key   *secure.Buffer
}

// NewStaticProvider loads the master key either from a raw 32-byte file
// (keyFile) or a base64-encoded environment variable (keyEnv). At least
// one of the two must be set; if both are set, keyFile is used.
func NewStaticProvider(keyID int32, keyFile, keyEnv string) (*StaticProvider, error) {
	if keyID <= 0 {
		return nil, fmt.Errorf("keysource: key id must be positive, got %d", keyID)
	}

	var raw []byte
	switch {
	case keyFile != "":
		data, err := os.ReadFile(keyFile) // #nosec G304 - operator-configured key material path
		if err != nil {
			return nil, fmt.Errorf("keysource: failed to read key file: %w", err)
		}
		raw = data
	case keyEnv != "":
		encoded := strings.TrimSpace(os.Getenv(keyEnv))
		if encoded == "" {
			return nil, fmt.Errorf("keysource: environment variable %s is empty or unset", keyEnv)
		}
		decoded, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("keysource: failed to decode %s as base64: %w", keyEnv, err)
		}
		raw = decoded
	default:
		return nil, fmt.Errorf("keysource: static provider requires a key file or key env var")
	}
	defer secure.Zero(raw)

	if len(raw) != masterKeySize {
		return nil, fmt.Errorf("keysource: master key must be %d bytes, got %d", masterKeySize, len(raw))
	}

	buf, err := secure.NewFromBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("keysource: failed to secure master key: %w", err)
	}

	return &StaticProvider{keyID: keyID, key: buf}, nil
}

// MasterKey returns the configured master key if keyID matches.
func (p *StaticProvider) MasterKey(_ context.Context, keyID int32) ([]byte, error) {
	if keyID != p.keyID {
		return nil, &ErrUnknownKeyID{KeyID: keyID}
	}
	return p.key.Data(), nil
}

// NewMasterKey returns the one statically configured KeyID/master-key
// pair; a static provider does not mint new keys.
func (p *StaticProvider) NewMasterKey(_ context.Context) (int32, []byte, error) {
	return p.keyID, p.key.Data(), nil
}

// Close zeros the in-memory master key.
func (p *StaticProvider) Close() error {
	p.key.Destroy()
	return nil
}
