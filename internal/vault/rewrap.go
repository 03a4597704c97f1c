package vault

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
)

// RewrapDataKey re-wraps an encrypted DEK with the latest Vault Transit key version.
// This operation decrypts the ciphertext with the old key version and re-encrypts it
// with the latest key version, without exposing the plaintext DEK to the client.
//
// Input:  "vault:v1:ABC123..." (encrypted with key version 1)
// Output: "vault:v3:XYZ789..." (re-encrypted with latest key version 3)
//
// The file content itself is NOT re-encrypted - only the DEK in the .key file is updated.
func (c *Client) RewrapDataKey(ctx context.Context, ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", fmt.Errorf("ciphertext cannot be empty")
	}

	// Prepare request
	path := fmt.Sprintf("%s/rewrap/%s", c.config.TransitMount, c.config.KeyName)
	data := map[string]interface{}{
		"ciphertext": ciphertext,
	}

	// Make API call
	secret, err := c.client.Logical().WriteWithContext(ctx, path, data)
	if err != nil {
		return "", fmt.Errorf("vault rewrap failed: %w", err)
	}

	if secret == nil || secret.Data == nil {
		return "", fmt.Errorf("vault returned empty response")
	}

	// Extract re-wrapped ciphertext
	newCiphertext, ok := secret.Data["ciphertext"].(string)
	if !ok || newCiphertext == "" {
		return "", fmt.Errorf("vault response missing ciphertext field")
	}

	return newCiphertext, nil
}

// GetKeyVersion extracts the key version number from Vault Transit ciphertext.
//
// Vault Transit ciphertext format: "vault:v{version}:{base64-ciphertext}"
// Examples:
//   - "vault:v1:ABC123..." returns 1
//   - "vault:v3:XYZ789..." returns 3
//
// Returns error if format is invalid or version cannot be parsed.
func GetKeyVersion(ciphertext string) (int, error) {
	// Pattern: vault:v{number}:{base64}
	// Example: vault:v1:ABC123...
	re := regexp.MustCompile(`^vault:v(\d+):`)
	matches := re.FindStringSubmatch(ciphertext)

	if len(matches) < 2 {
		return 0, fmt.Errorf("invalid vault ciphertext format: %s", ciphertext)
	}

	version, err := strconv.Atoi(matches[1])
	if err != nil {
		return 0, fmt.Errorf("invalid version number: %w", err)
	}

	return version, nil
}

