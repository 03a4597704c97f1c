package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/bramvault/ctn1/internal/pipeline"
)

// ValidationFunc is a function that validates a config and returns an error
type ValidationFunc func(*Config) error

// validationRules defines all validation rules to be applied to the configuration
var validationRules = []ValidationFunc{
	validateKeySourceKind,
	validateKeySourceStatic,
	validateKeySourceVault,
	validateEncryptionSourceDir,
	validateEncryptionDestDir,
	validateEncryptionSourceDirExists,
	validateEncryptionDestDirExists,
	validateEncryptionSourceFileBehavior,
	validatePipelineChunkSize,
	validatePipelineKeyID,
	validateDecryptionIfEnabled,
	validateQueueStatePath,
	validateQueueMaxRetries,
	validateLoggingLevel,
	validateLoggingFormat,
}

// Validate validates the configuration using all validation rules
func (c *Config) Validate() error {
	for _, rule := range validationRules {
		if err := rule(c); err != nil {
			return err
		}
	}
	return nil
}

// Key source validation rules
func validateKeySourceKind(c *Config) error {
	kind := strings.ToLower(c.KeySource.Kind)
	if kind != "static" && kind != "vault" {
		return fmt.Errorf("key_source config: kind must be 'static' or 'vault', got '%s'", kind)
	}
	c.KeySource.Kind = kind
	return nil
}

func validateKeySourceStatic(c *Config) error {
	if c.KeySource.Kind != "static" {
		return nil
	}
	if c.KeySource.KeyFile == "" && c.KeySource.KeyEnv == "" {
		return fmt.Errorf("key_source config: static provider requires key_file or key_env")
	}
	return nil
}

func validateKeySourceVault(c *Config) error {
	if c.KeySource.Kind != "vault" {
		return nil
	}
	if c.KeySource.VaultAddress == "" {
		return fmt.Errorf("key_source config: vault_address is required")
	}
	if c.KeySource.VaultTransitMount == "" {
		return fmt.Errorf("key_source config: vault_transit_mount is required")
	}
	if c.KeySource.VaultKeyName == "" {
		return fmt.Errorf("key_source config: vault_key_name is required")
	}
	if c.KeySource.VaultKeyringPath == "" {
		return fmt.Errorf("key_source config: vault_keyring_path is required")
	}
	return nil
}

// Encryption validation rules
func validateEncryptionSourceDir(c *Config) error {
	if c.Encryption.SourceDir == "" {
		return fmt.Errorf("encryption config: source_dir is required")
	}
	return nil
}

func validateEncryptionDestDir(c *Config) error {
	if c.Encryption.DestDir == "" {
		return fmt.Errorf("encryption config: dest_dir is required")
	}
	return nil
}

func validateEncryptionSourceDirExists(c *Config) error {
	if err := ensureDirectoryExists(c.Encryption.SourceDir); err != nil {
		return fmt.Errorf("encryption config: source_dir: %w", err)
	}
	return nil
}

func validateEncryptionDestDirExists(c *Config) error {
	if err := ensureDirectoryExists(c.Encryption.DestDir); err != nil {
		return fmt.Errorf("encryption config: dest_dir: %w", err)
	}
	return nil
}

func validateEncryptionSourceFileBehavior(c *Config) error {
	behavior := strings.ToLower(c.Encryption.SourceFileBehavior)
	if behavior != "archive" && behavior != "delete" && behavior != "keep" {
		return fmt.Errorf("encryption config: source_file_behavior must be 'archive', 'delete', or 'keep', got '%s'", behavior)
	}
	c.Encryption.SourceFileBehavior = behavior
	return nil
}

// Pipeline validation rules
func validatePipelineChunkSize(c *Config) error {
	if c.Pipeline.ChunkSize < pipeline.MinChunkSize {
		return fmt.Errorf("pipeline config: chunk_size must be >= %s, got %s", FormatSize(pipeline.MinChunkSize), FormatSize(c.Pipeline.ChunkSize))
	}
	if c.Pipeline.ChunkSize > pipeline.MaxChunkSize {
		return fmt.Errorf("pipeline config: chunk_size must be <= %s, got %s", FormatSize(pipeline.MaxChunkSize), FormatSize(c.Pipeline.ChunkSize))
	}
	return nil
}

func validatePipelineKeyID(c *Config) error {
	if c.Pipeline.KeyID <= 0 {
		return fmt.Errorf("pipeline config: key_id must be positive, got %d", c.Pipeline.KeyID)
	}
	return nil
}

// Decryption validation rules
func validateDecryptionIfEnabled(c *Config) error {
	if c.Decryption == nil || !c.Decryption.Enabled {
		return nil
	}

	if c.Decryption.SourceDir == "" {
		return fmt.Errorf("decryption config: source_dir is required")
	}

	if c.Decryption.DestDir == "" {
		return fmt.Errorf("decryption config: dest_dir is required")
	}

	if err := ensureDirectoryExists(c.Decryption.SourceDir); err != nil {
		return fmt.Errorf("decryption config: source_dir: %w", err)
	}

	if err := ensureDirectoryExists(c.Decryption.DestDir); err != nil {
		return fmt.Errorf("decryption config: dest_dir: %w", err)
	}

	behavior := strings.ToLower(c.Decryption.SourceFileBehavior)
	if behavior != "archive" && behavior != "delete" && behavior != "keep" {
		return fmt.Errorf("decryption config: source_file_behavior must be 'archive', 'delete', or 'keep', got '%s'", behavior)
	}
	c.Decryption.SourceFileBehavior = behavior

	return nil
}

// Queue validation rules
func validateQueueStatePath(c *Config) error {
	if c.Queue.StatePath == "" {
		return fmt.Errorf("queue config: state_path is required")
	}
	return nil
}

func validateQueueMaxRetries(c *Config) error {
	if c.Queue.MaxRetries < -1 {
		return fmt.Errorf("queue config: max_retries must be >= -1, got %d", c.Queue.MaxRetries)
	}
	return nil
}

// Logging validation rules
func validateLoggingLevel(c *Config) error {
	level := strings.ToLower(c.Logging.Level)
	if level != "debug" && level != "info" && level != "error" {
		return fmt.Errorf("logging config: level must be 'debug', 'info', or 'error', got '%s'", level)
	}
	c.Logging.Level = level
	return nil
}

func validateLoggingFormat(c *Config) error {
	format := strings.ToLower(c.Logging.Format)
	if format != "text" && format != "json" {
		return fmt.Errorf("logging config: format must be 'text' or 'json', got '%s'", format)
	}
	c.Logging.Format = format
	return nil
}

// Helper functions
func ensureDirectoryExists(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(path, 0750); err != nil { // #nosec G301 - configurable directory path
			return fmt.Errorf("failed to create directory: %w", err)
		}
		return nil
	}

	if err != nil {
		return err
	}

	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	return nil
}
