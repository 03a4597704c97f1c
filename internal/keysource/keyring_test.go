package keysource

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyringAllocateAndPersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keyring.json")

	kr, err := loadKeyring(path)
	require.NoError(t, err)

	id1, err := kr.allocate("vault:v1:aaa")
	require.NoError(t, err)
	assert.Equal(t, int32(1), id1)

	id2, err := kr.allocate("vault:v1:bbb")
	require.NoError(t, err)
	assert.Equal(t, int32(2), id2)

	reloaded, err := loadKeyring(path)
	require.NoError(t, err)

	ct, ok := reloaded.ciphertextFor(id1)
	require.True(t, ok)
	assert.Equal(t, "vault:v1:aaa", ct)

	_, ok = reloaded.ciphertextFor(99)
	assert.False(t, ok)
}

func TestKeyringUpdateCiphertext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keyring.json")
	kr, err := loadKeyring(path)
	require.NoError(t, err)

	id, err := kr.allocate("vault:v1:aaa")
	require.NoError(t, err)

	require.NoError(t, kr.updateCiphertext(id, "vault:v2:aaa"))

	ct, ok := kr.ciphertextFor(id)
	require.True(t, ok)
	assert.Equal(t, "vault:v2:aaa", ct)
}
