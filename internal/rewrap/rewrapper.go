package rewrap

import (
	"context"
	"fmt"
	"sync"

	"github.com/bramvault/ctn1/internal/keysource"
	"github.com/bramvault/ctn1/internal/logger"
)

// RewrapOptions configures the rewrap operation.
type RewrapOptions struct {
	Provider     *keysource.VaultProvider // Vault-backed key provider owning the keyring
	MinVersion   int                      // Minimum Transit key version to require
	DryRun       bool                     // If true, don't modify the keyring
	CreateBackup bool                     // Whether to back up the keyring file first
	BackupSuffix string                   // Backup file suffix (default: ".bak")
	Logger       logger.Logger
}

// Rewrapper orchestrates re-encrypting KeyID ciphertexts under the latest
// Vault Transit key version. CTN1 containers only ever carry the small
// integer KeyID (spec.md §4.1), so rewrapping never touches a container's
// bytes — it only rotates the keyring entry that KeyID resolves to.
type Rewrapper struct {
	options       RewrapOptions
	backupManager *BackupManager
}

// NewRewrapper creates a new key re-wrapper.
func NewRewrapper(options RewrapOptions) (*Rewrapper, error) {
	if options.Provider == nil {
		return nil, fmt.Errorf("vault provider is required")
	}
	if options.MinVersion < 1 {
		return nil, fmt.Errorf("min_version must be >= 1")
	}
	if options.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	backupManager := NewBackupManager(BackupOptions{
		Enabled: options.CreateBackup,
		Suffix:  options.BackupSuffix,
	})

	return &Rewrapper{
		options:       options,
		backupManager: backupManager,
	}, nil
}

// BackupKeyring backs up the provider's keyring file before a batch run,
// so a failed rewrap can be rolled back with RestoreKeyring.
func (r *Rewrapper) BackupKeyring() (string, error) {
	return r.backupManager.CreateBackup(r.options.Provider.KeyringPath())
}

// RestoreKeyring restores the keyring file from its backup.
func (r *Rewrapper) RestoreKeyring() error {
	return r.backupManager.RestoreBackup(r.options.Provider.KeyringPath())
}

// RewrapKeyID processes a single KeyID.
func (r *Rewrapper) RewrapKeyID(ctx context.Context, keyID int32) *RewrapResult {
	result := &RewrapResult{KeyID: keyID}

	oldVersion, err := r.options.Provider.KeyVersion(keyID)
	if err != nil {
		result.Error = fmt.Errorf("failed to read key version: %w", err)
		return result
	}
	result.OldVersion = oldVersion

	if oldVersion >= r.options.MinVersion {
		r.options.Logger.Info("key id already at minimum version",
			"key_id", keyID,
			"version", oldVersion,
			"min_version", r.options.MinVersion)
		return result
	}

	r.options.Logger.Info("rewrapping key id",
		"key_id", keyID,
		"old_version", oldVersion,
		"min_version", r.options.MinVersion)

	if r.options.DryRun {
		r.options.Logger.Info("dry-run mode: skipping keyring update", "key_id", keyID)
		return result
	}

	if err := r.options.Provider.Rewrap(ctx, keyID); err != nil {
		result.Error = fmt.Errorf("vault rewrap failed: %w", err)
		return result
	}

	newVersion, err := r.options.Provider.KeyVersion(keyID)
	if err != nil {
		result.Error = fmt.Errorf("failed to read new key version: %w", err)
		return result
	}
	result.NewVersion = newVersion

	r.options.Logger.Info("rewrap successful",
		"key_id", keyID,
		"old_version", result.OldVersion,
		"new_version", result.NewVersion)

	return result
}

// RewrapBatch processes multiple KeyIDs, backing up the keyring once
// before the run and restoring it if any entry fails.
func (r *Rewrapper) RewrapBatch(ctx context.Context, keyIDs []int32) ([]*RewrapResult, error) {
	results := make([]*RewrapResult, 0, len(keyIDs))
	var mu sync.Mutex

	r.options.Logger.Info("starting batch rewrap",
		"total_keys", len(keyIDs),
		"min_version", r.options.MinVersion,
		"dry_run", r.options.DryRun)

	if r.options.CreateBackup && !r.options.DryRun {
		backupPath, err := r.BackupKeyring()
		if err != nil {
			return nil, fmt.Errorf("failed to back up keyring: %w", err)
		}
		if backupPath != "" {
			r.options.Logger.Info("keyring backed up", "backup", backupPath)
		}
	}

	for i, keyID := range keyIDs {
		select {
		case <-ctx.Done():
			return results, ctx.Err()
		default:
		}

		r.options.Logger.Info("processing key id",
			"key_id", keyID,
			"progress", fmt.Sprintf("%d/%d", i+1, len(keyIDs)))

		result := r.RewrapKeyID(ctx, keyID)

		mu.Lock()
		results = append(results, result)
		mu.Unlock()

		if result.Error != nil {
			r.options.Logger.Error("failed to rewrap key id", "key_id", keyID, "error", result.Error)
			if r.options.CreateBackup && !r.options.DryRun {
				if restoreErr := r.RestoreKeyring(); restoreErr != nil {
					r.options.Logger.Error("failed to restore keyring after rewrap failure",
						"rewrap_error", result.Error,
						"restore_error", restoreErr)
				}
			}
			break
		}
	}

	r.options.Logger.Info("batch rewrap complete",
		"total_keys", len(keyIDs),
		"processed", len(results))

	return results, nil
}
