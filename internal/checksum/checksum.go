// Package checksum computes and persists SHA-256 digests of plaintext
// files, used to detect corruption independent of the container's own
// per-chunk AEAD authentication.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
)

// Calculate computes the SHA-256 checksum of a file.
func Calculate(filePath string) (string, error) {
	file, err := os.Open(filePath) // #nosec G304 - intentional file encryption tool
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", fmt.Errorf("failed to calculate checksum: %w", err)
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}

// Verify reports whether a file's checksum matches the expected value.
func Verify(filePath, expectedChecksum string) (bool, error) {
	actual, err := Calculate(filePath)
	if err != nil {
		return false, err
	}
	return actual == expectedChecksum, nil
}

// Save writes a checksum to a sidecar file.
func Save(checksum, checksumPath string) error {
	if err := os.WriteFile(checksumPath, []byte(checksum), 0600); err != nil { // #nosec G306 - checksum file
		return fmt.Errorf("failed to save checksum: %w", err)
	}
	return nil
}

// Load reads a checksum from a sidecar file.
func Load(checksumPath string) (string, error) {
	data, err := os.ReadFile(checksumPath) // #nosec G304 - intentional file encryption tool
	if err != nil {
		return "", fmt.Errorf("failed to load checksum: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
