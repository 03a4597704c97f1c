package config

import (
	"fmt"
	"path/filepath"
	"time"
)

// Config represents the ctn1 daemon/CLI configuration loaded from an HCL file.
type Config struct {
	KeySource  KeySourceConfig   `hcl:"key_source,block"`
	Pipeline   PipelineConfig    `hcl:"pipeline,block"`
	Encryption EncryptionConfig  `hcl:"encryption,block"`
	Decryption *DecryptionConfig `hcl:"decryption,block"`
	Queue      QueueConfig       `hcl:"queue,block"`
	Logging    LoggingConfig     `hcl:"logging,block"`
}

// KeySourceConfig selects and configures the master-key provider.
//
// Kind selects between "static" (a key read from a local file or
// environment variable) and "vault" (a transit-backed key fetched from
// HashiCorp Vault and cached with backoff-retried refresh).
type KeySourceConfig struct {
	Kind              string `hcl:"kind"`
	KeyFile           string `hcl:"key_file,optional"`
	KeyEnv            string `hcl:"key_env,optional"`
	VaultAddress      string `hcl:"vault_address,optional"`
	VaultTransitMount string `hcl:"vault_transit_mount,optional"`
	VaultKeyName      string `hcl:"vault_key_name,optional"`
	VaultKeyringPath  string `hcl:"vault_keyring_path,optional"`
	RequestTimeoutStr string `hcl:"request_timeout,optional"`
	RequestTimeout    time.Duration
}

// PipelineConfig tunes the chunked encrypt/decrypt pipeline.
type PipelineConfig struct {
	ChunkSizeStr      string `hcl:"chunk_size,optional"`
	ChunkSize         int
	Workers           int  `hcl:"workers,optional"`
	WindowCap         int  `hcl:"window_cap,optional"`
	KeyID             int  `hcl:"key_id"`
	StrictLengthCheck bool `hcl:"strict_length_check,optional"`
}

// EncryptionConfig holds directory-watch encryption configuration.
type EncryptionConfig struct {
	SourceDir          string `hcl:"source_dir"`
	DestDir            string `hcl:"dest_dir"`
	SourceFileBehavior string `hcl:"source_file_behavior"`
	FilePattern        string `hcl:"file_pattern,optional"`
	CalculateChecksum  bool   `hcl:"calculate_checksum,optional"`
}

// DecryptionConfig holds directory-watch decryption configuration.
type DecryptionConfig struct {
	Enabled            bool   `hcl:"enabled,optional"`
	SourceDir          string `hcl:"source_dir"`
	DestDir            string `hcl:"dest_dir"`
	SourceFileBehavior string `hcl:"source_file_behavior"`
	VerifyChecksum     bool   `hcl:"verify_checksum,optional"`
}

// QueueConfig holds batch-processing queue configuration.
type QueueConfig struct {
	StatePath            string        `hcl:"state_path"`
	MaxRetries           int           `hcl:"max_retries,optional"`
	BaseDelayStr         string        `hcl:"base_delay,optional"`
	MaxDelayStr          string        `hcl:"max_delay,optional"`
	StabilityDurationStr string        `hcl:"stability_duration,optional"`
	BaseDelay            time.Duration
	MaxDelay             time.Duration
	StabilityDuration    time.Duration
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level     string `hcl:"level,optional"`
	Output    string `hcl:"output,optional"`
	Format    string `hcl:"format,optional"`
	AuditLog  bool   `hcl:"audit_log,optional"`
	AuditPath string `hcl:"audit_path,optional"`
}

// SetDefaults sets default values for optional fields and parses the
// string-encoded duration/size fields HCL can't natively type.
func (c *Config) SetDefaults() error {
	if c.KeySource.RequestTimeoutStr != "" {
		dur, err := time.ParseDuration(c.KeySource.RequestTimeoutStr)
		if err != nil {
			return fmt.Errorf("invalid request_timeout duration: %w", err)
		}
		c.KeySource.RequestTimeout = dur
	}
	if c.KeySource.RequestTimeout == 0 {
		c.KeySource.RequestTimeout = DefaultVaultTimeout
	}
	if c.KeySource.Kind == "" {
		c.KeySource.Kind = "static"
	}
	if c.KeySource.Kind == "vault" && c.KeySource.VaultKeyringPath == "" {
		c.KeySource.VaultKeyringPath = filepath.Join(filepath.Dir(c.Queue.StatePath), "vault-keyring.json")
	}

	if c.Pipeline.ChunkSizeStr != "" {
		chunkSize, err := ParseSize(c.Pipeline.ChunkSizeStr)
		if err != nil {
			return fmt.Errorf("invalid chunk_size: %w", err)
		}
		c.Pipeline.ChunkSize = chunkSize
	}
	if c.Pipeline.ChunkSize == 0 {
		c.Pipeline.ChunkSize = 1024 * 1024
	}
	if c.Pipeline.Workers == 0 {
		c.Pipeline.Workers = DefaultWorkers
	}
	if c.Pipeline.WindowCap == 0 {
		c.Pipeline.WindowCap = DefaultWindowCap
	}

	if c.Encryption.SourceFileBehavior == "" {
		c.Encryption.SourceFileBehavior = "archive"
	}

	if c.Decryption != nil && c.Decryption.SourceFileBehavior == "" {
		c.Decryption.SourceFileBehavior = "archive"
	}

	if c.Queue.MaxRetries == 0 {
		c.Queue.MaxRetries = DefaultMaxRetries
	}
	if c.Queue.BaseDelayStr != "" {
		dur, err := time.ParseDuration(c.Queue.BaseDelayStr)
		if err != nil {
			return fmt.Errorf("invalid base_delay duration: %w", err)
		}
		c.Queue.BaseDelay = dur
	}
	if c.Queue.BaseDelay == 0 {
		c.Queue.BaseDelay = DefaultBaseDelay
	}
	if c.Queue.MaxDelayStr != "" {
		dur, err := time.ParseDuration(c.Queue.MaxDelayStr)
		if err != nil {
			return fmt.Errorf("invalid max_delay duration: %w", err)
		}
		c.Queue.MaxDelay = dur
	}
	if c.Queue.MaxDelay == 0 {
		c.Queue.MaxDelay = DefaultMaxDelay
	}
	if c.Queue.StabilityDurationStr != "" {
		dur, err := time.ParseDuration(c.Queue.StabilityDurationStr)
		if err != nil {
			return fmt.Errorf("invalid stability_duration duration: %w", err)
		}
		c.Queue.StabilityDuration = dur
	}
	if c.Queue.StabilityDuration == 0 {
		c.Queue.StabilityDuration = DefaultStabilityDuration
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Logging.AuditLog && c.Logging.AuditPath == "" {
		c.Logging.AuditPath = "audit.log"
	}

	return nil
}

// ArchiveDir returns the archive directory path for the given operation.
func (c *Config) ArchiveDir(operation string) string {
	if operation == "encrypt" {
		return filepath.Join(c.Encryption.SourceDir, "archive")
	}
	if c.Decryption != nil {
		return filepath.Join(c.Decryption.SourceDir, "archive")
	}
	return ""
}

// FailedDir returns the failed directory path for the given operation.
func (c *Config) FailedDir(operation string) string {
	if operation == "encrypt" {
		return filepath.Join(c.Encryption.SourceDir, "failed")
	}
	if c.Decryption != nil {
		return filepath.Join(c.Decryption.SourceDir, "failed")
	}
	return ""
}

// DLQDir returns the dead letter queue directory path for the given operation.
func (c *Config) DLQDir(operation string) string {
	if operation == "encrypt" {
		return filepath.Join(c.Encryption.SourceDir, "dlq")
	}
	if c.Decryption != nil {
		return filepath.Join(c.Decryption.SourceDir, "dlq")
	}
	return ""
}
