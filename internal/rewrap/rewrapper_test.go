package rewrap

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bramvault/ctn1/internal/keysource"
	"github.com/bramvault/ctn1/internal/logger"
)

// newMockTransitServer simulates just enough of Vault Transit's
// datakey/decrypt/rewrap endpoints to drive a VaultProvider through a
// generate -> rewrap cycle. Every rewrap bumps the encoded key version
// by one, regardless of which ciphertext is supplied.
func newMockTransitServer(t *testing.T, plaintext []byte) *httptest.Server {
	t.Helper()
	plaintextB64 := base64.StdEncoding.EncodeToString(plaintext)

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		switch {
		case strings.Contains(r.URL.Path, "/datakey/plaintext/"):
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"data": map[string]interface{}{
					"plaintext":  plaintextB64,
					"ciphertext": "vault:v1:original",
				},
			})
		case strings.Contains(r.URL.Path, "/rewrap/"):
			var body struct {
				Ciphertext string `json:"ciphertext"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)

			version := 1
			if idx := strings.Index(body.Ciphertext, ":v"); idx >= 0 {
				rest := body.Ciphertext[idx+2:]
				if end := strings.Index(rest, ":"); end >= 0 {
					if n, err := strconv.Atoi(rest[:end]); err == nil {
						version = n
					}
				}
			}

			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"data": map[string]interface{}{
					"ciphertext": "vault:v" + strconv.Itoa(version+1) + ":rewrapped",
				},
			})
		case strings.Contains(r.URL.Path, "/decrypt/"):
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"data": map[string]interface{}{
					"plaintext": plaintextB64,
				},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func newTestVaultProvider(t *testing.T, serverURL string) *keysource.VaultProvider {
	t.Helper()
	tmpDir := t.TempDir()

	provider, err := keysource.NewVaultProvider(keysource.VaultConfig{
		AgentAddress: serverURL,
		TransitMount: "transit",
		KeyName:      "test-key",
		Timeout:      5 * time.Second,
		KeyringPath:  filepath.Join(tmpDir, "keyring.json"),
	})
	require.NoError(t, err)
	return provider
}

func TestNewRewrapper(t *testing.T) {
	server := newMockTransitServer(t, make([]byte, 32))
	defer server.Close()

	provider := newTestVaultProvider(t, server.URL)
	log, err := logger.New("error", "/dev/null")
	require.NoError(t, err)

	tests := []struct {
		name        string
		options     RewrapOptions
		expectError bool
		errorMsg    string
	}{
		{
			name:        "missing provider",
			options:     RewrapOptions{MinVersion: 1, Logger: log},
			expectError: true,
			errorMsg:    "vault provider is required",
		},
		{
			name:        "invalid min version",
			options:     RewrapOptions{Provider: provider, MinVersion: 0, Logger: log},
			expectError: true,
			errorMsg:    "min_version must be >= 1",
		},
		{
			name:        "missing logger",
			options:     RewrapOptions{Provider: provider, MinVersion: 1},
			expectError: true,
			errorMsg:    "logger is required",
		},
		{
			name:        "valid options",
			options:     RewrapOptions{Provider: provider, MinVersion: 1, Logger: log},
			expectError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewRewrapper(tt.options)
			if tt.expectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
				assert.Nil(t, r)
			} else {
				require.NoError(t, err)
				assert.NotNil(t, r)
			}
		})
	}
}

func TestRewrapper_RewrapKeyID_Skipped(t *testing.T) {
	server := newMockTransitServer(t, make([]byte, 32))
	defer server.Close()

	provider := newTestVaultProvider(t, server.URL)
	log, err := logger.New("error", "/dev/null")
	require.NoError(t, err)

	keyID, _, err := provider.NewMasterKey(context.Background())
	require.NoError(t, err)

	r, err := NewRewrapper(RewrapOptions{Provider: provider, MinVersion: 1, Logger: log})
	require.NoError(t, err)

	result := r.RewrapKeyID(context.Background(), keyID)
	require.NoError(t, result.Error)
	assert.Equal(t, 1, result.OldVersion)
	assert.Equal(t, 0, result.NewVersion) // not rewrapped, already at min version
}

func TestRewrapper_RewrapKeyID_Performed(t *testing.T) {
	server := newMockTransitServer(t, make([]byte, 32))
	defer server.Close()

	provider := newTestVaultProvider(t, server.URL)
	log, err := logger.New("error", "/dev/null")
	require.NoError(t, err)

	keyID, _, err := provider.NewMasterKey(context.Background())
	require.NoError(t, err)

	r, err := NewRewrapper(RewrapOptions{Provider: provider, MinVersion: 2, Logger: log})
	require.NoError(t, err)

	result := r.RewrapKeyID(context.Background(), keyID)
	require.NoError(t, result.Error)
	assert.Equal(t, 1, result.OldVersion)
	assert.Equal(t, 2, result.NewVersion)

	version, err := provider.KeyVersion(keyID)
	require.NoError(t, err)
	assert.Equal(t, 2, version)
}

func TestRewrapper_RewrapKeyID_DryRun(t *testing.T) {
	server := newMockTransitServer(t, make([]byte, 32))
	defer server.Close()

	provider := newTestVaultProvider(t, server.URL)
	log, err := logger.New("error", "/dev/null")
	require.NoError(t, err)

	keyID, _, err := provider.NewMasterKey(context.Background())
	require.NoError(t, err)

	r, err := NewRewrapper(RewrapOptions{Provider: provider, MinVersion: 2, DryRun: true, Logger: log})
	require.NoError(t, err)

	result := r.RewrapKeyID(context.Background(), keyID)
	require.NoError(t, result.Error)
	assert.Equal(t, 0, result.NewVersion)

	version, err := provider.KeyVersion(keyID)
	require.NoError(t, err)
	assert.Equal(t, 1, version, "dry run must not mutate the keyring")
}

func TestRewrapper_RewrapKeyID_UnknownKeyID(t *testing.T) {
	server := newMockTransitServer(t, make([]byte, 32))
	defer server.Close()

	provider := newTestVaultProvider(t, server.URL)
	log, err := logger.New("error", "/dev/null")
	require.NoError(t, err)

	r, err := NewRewrapper(RewrapOptions{Provider: provider, MinVersion: 1, Logger: log})
	require.NoError(t, err)

	result := r.RewrapKeyID(context.Background(), 999)
	assert.Error(t, result.Error)
}

func TestRewrapper_RewrapBatch_WithBackup(t *testing.T) {
	server := newMockTransitServer(t, make([]byte, 32))
	defer server.Close()

	provider := newTestVaultProvider(t, server.URL)
	log, err := logger.New("error", "/dev/null")
	require.NoError(t, err)

	keyID1, _, err := provider.NewMasterKey(context.Background())
	require.NoError(t, err)
	keyID2, _, err := provider.NewMasterKey(context.Background())
	require.NoError(t, err)

	r, err := NewRewrapper(RewrapOptions{
		Provider:     provider,
		MinVersion:   2,
		CreateBackup: true,
		Logger:       log,
	})
	require.NoError(t, err)

	results, err := r.RewrapBatch(context.Background(), []int32{keyID1, keyID2})
	require.NoError(t, err)
	require.Len(t, results, 2)

	for _, result := range results {
		assert.NoError(t, result.Error)
		assert.Equal(t, 2, result.NewVersion)
	}

	assert.True(t, r.backupManager.BackupExists(provider.KeyringPath()))
}

func TestRewrapper_RewrapBatch_ContextCancelled(t *testing.T) {
	server := newMockTransitServer(t, make([]byte, 32))
	defer server.Close()

	provider := newTestVaultProvider(t, server.URL)
	log, err := logger.New("error", "/dev/null")
	require.NoError(t, err)

	keyID, _, err := provider.NewMasterKey(context.Background())
	require.NoError(t, err)

	r, err := NewRewrapper(RewrapOptions{Provider: provider, MinVersion: 2, Logger: log})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := r.RewrapBatch(ctx, []int32{keyID})
	assert.Error(t, err)
	assert.Empty(t, results)
}
