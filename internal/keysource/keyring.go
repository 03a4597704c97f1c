package keysource

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// keyringState is the on-disk representation of the KeyID -> Vault
// Transit ciphertext mapping. CTN1 containers only ever carry the small
// integer KeyID; this file is what lets a VaultProvider turn that back
// into a Vault rewrap/decrypt call.
type keyringState struct {
	NextKeyID  int32            `json:"next_key_id"`
	Ciphertext map[int32]string `json:"ciphertext"`
}

// keyring is a thread-safe, disk-persisted KeyID allocator and
// ciphertext store.
type keyring struct {
	mu    sync.Mutex
	path  string
	state keyringState
}

func loadKeyring(path string) (*keyring, error) {
	if path == "" {
		return nil, fmt.Errorf("keysource: keyring path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil { // #nosec G301 - configurable directory path
		return nil, fmt.Errorf("keysource: failed to create keyring directory: %w", err)
	}

	k := &keyring{
		path:  path,
		state: keyringState{NextKeyID: 1, Ciphertext: make(map[int32]string)},
	}

	data, err := os.ReadFile(path) // #nosec G304 - operator-configured keyring path
	if os.IsNotExist(err) {
		return k, nil
	}
	if err != nil {
		return nil, fmt.Errorf("keysource: failed to read keyring: %w", err)
	}
	if err := json.Unmarshal(data, &k.state); err != nil {
		return nil, fmt.Errorf("keysource: failed to parse keyring: %w", err)
	}
	if k.state.Ciphertext == nil {
		k.state.Ciphertext = make(map[int32]string)
	}
	return k, nil
}

func (k *keyring) ciphertextFor(keyID int32) (string, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	ct, ok := k.state.Ciphertext[keyID]
	return ct, ok
}

// keyIDs returns every KeyID currently recorded, in no particular order.
func (k *keyring) keyIDs() []int32 {
	k.mu.Lock()
	defer k.mu.Unlock()
	ids := make([]int32, 0, len(k.state.Ciphertext))
	for id := range k.state.Ciphertext {
		ids = append(ids, id)
	}
	return ids
}

// allocate reserves the next KeyID, records its ciphertext, and persists
// the keyring before returning, so a crash between allocation and file
// write never hands out a KeyID without its ciphertext.
func (k *keyring) allocate(ciphertext string) (int32, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	id := k.state.NextKeyID
	k.state.NextKeyID++
	k.state.Ciphertext[id] = ciphertext

	if err := k.saveLocked(); err != nil {
		return 0, err
	}
	return id, nil
}

// updateCiphertext replaces the stored ciphertext for an existing KeyID,
// used after a Vault rewrap rotates the key version.
func (k *keyring) updateCiphertext(keyID int32, ciphertext string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.state.Ciphertext[keyID] = ciphertext
	return k.saveLocked()
}

func (k *keyring) saveLocked() error {
	data, err := json.MarshalIndent(k.state, "", "  ")
	if err != nil {
		return fmt.Errorf("keysource: failed to marshal keyring: %w", err)
	}

	tmpPath := k.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil { // #nosec G306 - keyring file
		return fmt.Errorf("keysource: failed to write keyring: %w", err)
	}
	if err := os.Rename(tmpPath, k.path); err != nil {
		return fmt.Errorf("keysource: failed to save keyring: %w", err)
	}
	return nil
}
