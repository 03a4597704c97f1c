package keysource

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/bramvault/ctn1/internal/secure"
	"github.com/bramvault/ctn1/internal/vault"
)

// VaultConfig configures a VaultProvider.
type VaultConfig struct {
	AgentAddress string
	TransitMount string
	KeyName      string
	Timeout      time.Duration

	// KeyringPath is where the KeyID -> Vault Transit ciphertext mapping
	// is persisted.
	KeyringPath string

	// MaxElapsedTime bounds how long GenerateDataKey/DecryptDataKey are
	// retried against transient Vault errors before giving up.
	MaxElapsedTime time.Duration
}

// VaultProvider resolves CTN1 master keys through Vault Transit's data
// key API. Each CTN1 KeyID maps to one Vault Transit ciphertext; the
// plaintext is recovered on demand via Transit's decrypt endpoint and
// never written to disk.
type VaultProvider struct {
	client      *vault.Client
	keyring     *keyring
	keyringPath string
	backoff     time.Duration

	mu    sync.Mutex
	cache map[int32]*secure.Buffer
}

// NewVaultProvider constructs a VaultProvider backed by Vault Transit.
func NewVaultProvider(cfg VaultConfig) (*VaultProvider, error) {
	client, err := vault.NewClient(&vault.Config{
		AgentAddress: cfg.AgentAddress,
		TransitMount: cfg.TransitMount,
		KeyName:      cfg.KeyName,
		Timeout:      cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("keysource: failed to create vault client: %w", err)
	}

	kr, err := loadKeyring(cfg.KeyringPath)
	if err != nil {
		return nil, err
	}

	maxElapsed := cfg.MaxElapsedTime
	if maxElapsed == 0 {
		maxElapsed = 30 * time.Second
	}

	return &VaultProvider{
		client:      client,
		keyring:     kr,
		keyringPath: cfg.KeyringPath,
		backoff:     maxElapsed,
		cache:       make(map[int32]*secure.Buffer),
	}, nil
}

// KeyringPath returns the path to the persisted KeyID/ciphertext mapping,
// used by the rewrap command to back up the keyring before a batch run.
func (p *VaultProvider) KeyringPath() string { return p.keyringPath }

// KeyIDs returns every CTN1 KeyID currently recorded in the keyring.
func (p *VaultProvider) KeyIDs() []int32 {
	return p.keyring.keyIDs()
}

// KeyVersion returns the Vault Transit key version currently backing
// keyID, parsed from its stored ciphertext ("vault:vN:...").
func (p *VaultProvider) KeyVersion(keyID int32) (int, error) {
	ciphertext, ok := p.keyring.ciphertextFor(keyID)
	if !ok {
		return 0, &ErrUnknownKeyID{KeyID: keyID}
	}
	return vault.GetKeyVersion(ciphertext)
}

func (p *VaultProvider) retryPolicy() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = p.backoff
	return b
}

// NewMasterKey mints a fresh Vault Transit data key, allocates the next
// CTN1 KeyID for it, and returns the plaintext.
func (p *VaultProvider) NewMasterKey(ctx context.Context) (int32, []byte, error) {
	var dk *vault.DataKey
	op := func() error {
		var err error
		dk, err = p.client.GenerateDataKey()
		return err
	}
	if err := backoff.Retry(op, backoff.WithContext(p.retryPolicy(), ctx)); err != nil {
		return 0, nil, fmt.Errorf("keysource: vault generate data key: %w", err)
	}
	defer dk.Destroy()

	if len(dk.Plaintext) != masterKeySize {
		return 0, nil, fmt.Errorf("keysource: vault returned a %d-byte data key, want %d", len(dk.Plaintext), masterKeySize)
	}

	keyID, err := p.keyring.allocate(dk.Ciphertext)
	if err != nil {
		return 0, nil, err
	}

	buf, err := secure.NewFromBytes(dk.Plaintext)
	if err != nil {
		return 0, nil, fmt.Errorf("keysource: failed to secure data key: %w", err)
	}

	p.mu.Lock()
	p.cache[keyID] = buf
	p.mu.Unlock()

	return keyID, buf.Data(), nil
}

// MasterKey recovers the plaintext master key for keyID, decrypting
// through Vault Transit if it isn't already cached.
func (p *VaultProvider) MasterKey(ctx context.Context, keyID int32) ([]byte, error) {
	p.mu.Lock()
	if buf, ok := p.cache[keyID]; ok {
		p.mu.Unlock()
		return buf.Data(), nil
	}
	p.mu.Unlock()

	ciphertext, ok := p.keyring.ciphertextFor(keyID)
	if !ok {
		return nil, &ErrUnknownKeyID{KeyID: keyID}
	}

	var dk *vault.DataKey
	op := func() error {
		var err error
		dk, err = p.client.DecryptDataKey(ciphertext)
		return err
	}
	if err := backoff.Retry(op, backoff.WithContext(p.retryPolicy(), ctx)); err != nil {
		return nil, fmt.Errorf("keysource: vault decrypt data key: %w", err)
	}
	defer dk.Destroy()

	buf, err := secure.NewFromBytes(dk.Plaintext)
	if err != nil {
		return nil, fmt.Errorf("keysource: failed to secure data key: %w", err)
	}

	p.mu.Lock()
	p.cache[keyID] = buf
	p.mu.Unlock()

	return buf.Data(), nil
}

// Rewrap re-encrypts keyID's ciphertext under the latest Transit key
// version, used by the rewrap command to pick up a rotated Transit key
// without touching any file's container header.
func (p *VaultProvider) Rewrap(ctx context.Context, keyID int32) error {
	ciphertext, ok := p.keyring.ciphertextFor(keyID)
	if !ok {
		return &ErrUnknownKeyID{KeyID: keyID}
	}

	newCiphertext, err := p.client.RewrapDataKey(ctx, ciphertext)
	if err != nil {
		return fmt.Errorf("keysource: vault rewrap: %w", err)
	}

	return p.keyring.updateCiphertext(keyID, newCiphertext)
}

// Close zeros all cached plaintext keys.
func (p *VaultProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, buf := range p.cache {
		buf.Destroy()
		delete(p.cache, id)
	}
	return p.client.Close()
}
