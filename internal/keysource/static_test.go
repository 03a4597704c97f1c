package keysource

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticProviderFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	keyFile := filepath.Join(tmpDir, "master.key")
	key := make([]byte, masterKeySize)
	for i := range key {
		key[i] = byte(i)
	}
	require.NoError(t, os.WriteFile(keyFile, key, 0600))

	p, err := NewStaticProvider(1, keyFile, "")
	require.NoError(t, err)
	defer p.Close()

	got, err := p.MasterKey(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, key, got)

	_, err = p.MasterKey(context.Background(), 2)
	assert.Error(t, err)
	var unknown *ErrUnknownKeyID
	assert.ErrorAs(t, err, &unknown)
}

func TestStaticProviderFromEnv(t *testing.T) {
	key := make([]byte, masterKeySize)
	for i := range key {
		key[i] = byte(255 - i)
	}
	t.Setenv("CTN1_TEST_MASTER_KEY", base64.StdEncoding.EncodeToString(key))

	p, err := NewStaticProvider(7, "", "CTN1_TEST_MASTER_KEY")
	require.NoError(t, err)
	defer p.Close()

	id, got, err := p.NewMasterKey(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(7), id)
	assert.Equal(t, key, got)
}

func TestStaticProviderWrongKeySize(t *testing.T) {
	tmpDir := t.TempDir()
	keyFile := filepath.Join(tmpDir, "master.key")
	require.NoError(t, os.WriteFile(keyFile, []byte("too-short"), 0600))

	_, err := NewStaticProvider(1, keyFile, "")
	assert.Error(t, err)
}

func TestStaticProviderRequiresSource(t *testing.T) {
	_, err := NewStaticProvider(1, "", "")
	assert.Error(t, err)
}

func TestStaticProviderRequiresPositiveKeyID(t *testing.T) {
	_, err := NewStaticProvider(0, "x", "")
	assert.Error(t, err)
}
