package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

// TestRewrapCmd_FlagValidation tests flag validation for the rewrap command
func TestRewrapCmd_FlagValidation(t *testing.T) {
	tests := []struct {
		name        string
		dir         string
		keyID       int32
		minVersion  int
		expectError bool
		errorMsg    string
	}{
		{
			name:        "no flags provided",
			dir:         "",
			keyID:       0,
			expectError: true,
			errorMsg:    "either --dir or --key-id must be specified",
		},
		{
			name:        "key-id but bad config path",
			keyID:       3,
			minVersion:  1,
			expectError: true, // fails on missing config file
		},
		{
			name:        "dir but bad config path",
			dir:         "/path/to/containers",
			minVersion:  1,
			expectError: true, // fails on missing config file
		},
	}

	oldConfigFile := configFile
	configFile = "non-existent-config.hcl"
	defer func() { configFile = oldConfigFile }()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := runRewrap(tt.dir, false, tt.keyID, tt.minVersion, true, true, "text")

			if tt.expectError {
				if err == nil {
					t.Errorf("expected error but got none")
					return
				}
				if tt.errorMsg != "" && !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("expected error containing %q, got %q", tt.errorMsg, err.Error())
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

// TestKeyVersionsCmd_FlagValidation tests flag validation for the key-versions command
func TestKeyVersionsCmd_FlagValidation(t *testing.T) {
	oldConfigFile := configFile
	configFile = "non-existent-config.hcl"
	defer func() { configFile = oldConfigFile }()

	err := runKeyVersions("/path/to/containers", false, "text")
	if err == nil {
		t.Error("expected error for missing config file, got none")
	}
	if !strings.Contains(err.Error(), "failed to load configuration") {
		t.Errorf("expected config load error, got: %v", err)
	}
}

// TestRewrapCmd_NoTargetSpecified tests that rewrap fails when neither a
// directory nor a key ID is given
func TestRewrapCmd_NoTargetSpecified(t *testing.T) {
	err := runRewrap("", false, 0, 1, true, true, "text")
	if err == nil {
		t.Error("expected error when neither --dir nor --key-id is set")
	}
}

// TestKeyVersionsCmd_NonExistentDirectory tests error handling for missing config
func TestKeyVersionsCmd_NonExistentDirectory(t *testing.T) {
	oldConfigFile := configFile
	configFile = "non-existent-config.hcl"
	defer func() { configFile = oldConfigFile }()

	err := runKeyVersions("/non/existent/directory", false, "text")
	if err == nil {
		t.Error("expected error for non-existent config, got none")
	}
}

// TestCobraCommandStructure tests that cobra commands are properly structured
func TestCobraCommandStructure(t *testing.T) {
	tests := []struct {
		name    string
		cmdFunc func() *cobra.Command
		wantUse string
	}{
		{
			name:    "rewrap command",
			cmdFunc: rewrapCmd,
			wantUse: "rewrap",
		},
		{
			name:    "key-versions command",
			cmdFunc: keyVersionsCmd,
			wantUse: "key-versions",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := tt.cmdFunc()

			if cmd.Use != tt.wantUse {
				t.Errorf("command Use = %q, want %q", cmd.Use, tt.wantUse)
			}

			if cmd.Short == "" {
				t.Error("command Short description is empty")
			}

			if cmd.Long == "" {
				t.Error("command Long description is empty")
			}

			if cmd.Example == "" {
				t.Error("command Example is empty")
			}

			if cmd.RunE == nil {
				t.Error("command RunE is nil")
			}
		})
	}
}

// TestRewrapCmd_Flags tests that rewrap command has all expected flags
func TestRewrapCmd_Flags(t *testing.T) {
	cmd := rewrapCmd()

	expectedFlags := []string{
		"dir",
		"recursive",
		"key-id",
		"dry-run",
		"min-version",
		"backup",
		"format",
	}

	for _, flagName := range expectedFlags {
		flag := cmd.Flags().Lookup(flagName)
		if flag == nil {
			t.Errorf("expected flag %q not found", flagName)
		}
	}

	// key-file is gone: CTN1 embeds the wrapped key in the container header.
	if flag := cmd.Flags().Lookup("key-file"); flag != nil {
		t.Error("unexpected flag \"key-file\" found in rewrap command")
	}
}

// TestKeyVersionsCmd_Flags tests that key-versions command has all expected flags
func TestKeyVersionsCmd_Flags(t *testing.T) {
	cmd := keyVersionsCmd()

	expectedFlags := []string{
		"dir",
		"recursive",
		"format",
	}

	for _, flagName := range expectedFlags {
		flag := cmd.Flags().Lookup(flagName)
		if flag == nil {
			t.Errorf("expected flag %q not found", flagName)
		}
	}

	// Verify that rewrap-specific flags are NOT present
	notExpectedFlags := []string{"dry-run", "min-version", "backup", "key-id", "key-file"}
	for _, flagName := range notExpectedFlags {
		flag := cmd.Flags().Lookup(flagName)
		if flag != nil {
			t.Errorf("unexpected flag %q found in key-versions command", flagName)
		}
	}
}

// TestCobraCommandHelp tests that help text can be generated without errors
func TestCobraCommandHelp(t *testing.T) {
	commands := []struct {
		name string
		cmd  func() *cobra.Command
	}{
		{"rewrap", rewrapCmd},
		{"key-versions", keyVersionsCmd},
	}

	for _, tc := range commands {
		t.Run(tc.name, func(t *testing.T) {
			cmd := tc.cmd()

			// Capture help output
			buf := new(bytes.Buffer)
			cmd.SetOut(buf)
			cmd.SetErr(buf)

			// Generate help
			err := cmd.Help()
			if err != nil {
				t.Errorf("failed to generate help: %v", err)
			}

			help := buf.String()
			if help == "" {
				t.Error("help output is empty")
			}

			// Check that help contains essential elements
			if !strings.Contains(help, "Usage:") {
				t.Error("help missing Usage section")
			}
			if !strings.Contains(help, "Flags:") {
				t.Error("help missing Flags section")
			}
			if !strings.Contains(help, "Examples:") {
				t.Error("help missing Examples section")
			}
		})
	}
}

// TestKeygenCmd_WritesKeyFile checks that keygen --output writes exactly
// 32 random bytes.
func TestKeygenCmd_WritesKeyFile(t *testing.T) {
	tmpDir := t.TempDir()
	keyPath := filepath.Join(tmpDir, "master.key")

	if err := runKeygen(keyPath, false); err != nil {
		t.Fatalf("runKeygen failed: %v", err)
	}

	data, err := os.ReadFile(keyPath)
	if err != nil {
		t.Fatalf("failed to read generated key file: %v", err)
	}
	if len(data) != staticMasterKeySize {
		t.Errorf("got %d key bytes, want %d", len(data), staticMasterKeySize)
	}
}

// TestKeygenCmd_DistinctRuns checks that two keygen runs don't collide.
func TestKeygenCmd_DistinctRuns(t *testing.T) {
	tmpDir := t.TempDir()
	keyPath := filepath.Join(tmpDir, "master.key")
	if err := runKeygen(keyPath, false); err != nil {
		t.Fatalf("runKeygen failed: %v", err)
	}
	first, err := os.ReadFile(keyPath)
	if err != nil {
		t.Fatalf("failed to read first key file: %v", err)
	}

	keyPath2 := filepath.Join(tmpDir, "master2.key")
	if err := runKeygen(keyPath2, false); err != nil {
		t.Fatalf("runKeygen failed: %v", err)
	}
	second, err := os.ReadFile(keyPath2)
	if err != nil {
		t.Fatalf("failed to read second key file: %v", err)
	}

	if bytes.Equal(first, second) {
		t.Error("two keygen runs produced identical key material")
	}
}

// TestRewrapCmd_WithRealConfig exercises rewrap flag plumbing against a real
// vault-kind config. It fails on Vault connectivity in a unit test
// environment, but that failure must come from the provider, not from flag
// validation.
func TestRewrapCmd_WithRealConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.hcl")
	keyringPath := filepath.Join(tmpDir, "keyring.json")

	content := `
		key_source {
			kind = "vault"
			vault_address = "http://127.0.0.1:8200"
			vault_transit_mount = "transit"
			vault_key_name = "ctn1-test"
			vault_keyring_path = "` + filepath.ToSlash(keyringPath) + `"
		}
		pipeline {
			key_id = 1
		}
		encryption {
			source_dir = "` + filepath.ToSlash(filepath.Join(tmpDir, "src")) + `"
			dest_dir = "` + filepath.ToSlash(filepath.Join(tmpDir, "dst")) + `"
		}
	`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	oldConfigFile := configFile
	configFile = configPath
	defer func() { configFile = oldConfigFile }()

	err := runRewrap("", false, 1, 2, false, false, "text")
	if err != nil {
		if strings.Contains(err.Error(), "must be specified") ||
			strings.Contains(err.Error(), "requires key_source.kind") ||
			strings.Contains(err.Error(), "unknown format") {
			t.Errorf("got flag validation error, expected vault provider error: %v", err)
		}
	}
}

// TestKeyVersionsCmd_WithRealConfig mirrors TestRewrapCmd_WithRealConfig for
// the key-versions command.
func TestKeyVersionsCmd_WithRealConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.hcl")
	keyringPath := filepath.Join(tmpDir, "keyring.json")
	containerDir := filepath.Join(tmpDir, "containers")
	if err := os.MkdirAll(containerDir, 0755); err != nil {
		t.Fatalf("failed to create container dir: %v", err)
	}

	content := `
		key_source {
			kind = "vault"
			vault_address = "http://127.0.0.1:8200"
			vault_transit_mount = "transit"
			vault_key_name = "ctn1-test"
			vault_keyring_path = "` + filepath.ToSlash(keyringPath) + `"
		}
		pipeline {
			key_id = 1
		}
		encryption {
			source_dir = "` + filepath.ToSlash(filepath.Join(tmpDir, "src")) + `"
			dest_dir = "` + filepath.ToSlash(filepath.Join(tmpDir, "dst")) + `"
		}
	`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	oldConfigFile := configFile
	configFile = configPath
	defer func() { configFile = oldConfigFile }()

	err := runKeyVersions(containerDir, false, "text")
	if err != nil {
		if strings.Contains(err.Error(), "requires key_source.kind") ||
			strings.Contains(err.Error(), "unknown format") {
			t.Errorf("got flag validation error, expected vault provider error: %v", err)
		}
	}
}
