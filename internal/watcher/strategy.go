package watcher

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/bramvault/ctn1/internal/checksum"
	"github.com/bramvault/ctn1/internal/container"
	"github.com/bramvault/ctn1/internal/keysource"
	"github.com/bramvault/ctn1/internal/logger"
	"github.com/bramvault/ctn1/internal/model"
	"github.com/bramvault/ctn1/pkg/ctn1"
)

// ProcessStrategy defines the interface for processing operations.
type ProcessStrategy interface {
	Process(ctx context.Context, item *model.Item) error
}

// EncryptStrategy turns one plaintext file into one CTN1 container.
type EncryptStrategy struct {
	provider          keysource.Provider
	opts              ctn1.EncryptOptions
	logger            logger.Logger
	calculateChecksum bool
}

// NewEncryptStrategy creates a new encryption strategy.
func NewEncryptStrategy(provider keysource.Provider, opts ctn1.EncryptOptions, log logger.Logger, calculateChecksum bool) *EncryptStrategy {
	return &EncryptStrategy{provider: provider, opts: opts, logger: log, calculateChecksum: calculateChecksum}
}

// Process encrypts item.SourcePath into item.DestPath.
func (s *EncryptStrategy) Process(ctx context.Context, item *model.Item) error {
	if s.calculateChecksum {
		sum, err := checksum.Calculate(item.SourcePath)
		if err != nil {
			return fmt.Errorf("failed to calculate checksum: %w", err)
		}
		item.Checksum = sum

		originalName := filepath.Base(item.SourcePath)
		checksumPath := filepath.Join(filepath.Dir(item.DestPath), originalName+".sha256")
		if err := checksum.Save(sum, checksumPath); err != nil {
			return fmt.Errorf("failed to save checksum: %w", err)
		}
		item.ChecksumPath = checksumPath
	}

	keyID, masterKey, err := s.provider.NewMasterKey(ctx)
	if err != nil {
		return fmt.Errorf("failed to obtain master key: %w", err)
	}

	in, err := os.Open(item.SourcePath) // #nosec G304 - operator-watched directory
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}

	out, err := os.OpenFile(item.DestPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) // #nosec G304 G306 - operator-configured destination
	if err != nil {
		_ = in.Close()
		return fmt.Errorf("failed to create destination file: %w", err)
	}

	opts := s.opts
	opts.KeyID = keyID
	err = ctn1.EncryptStream(ctx, masterKey, in, out, opts, false, false)
	if err != nil {
		s.logger.Error("encryption failed", "id", item.ID, "file", item.SourcePath, "error", err)
		return err
	}

	s.logger.Info("encrypted file", "id", item.ID, "file", item.SourcePath, "dest", item.DestPath, "key_id", keyID)
	return nil
}

// DecryptStrategy turns one CTN1 container back into plaintext.
type DecryptStrategy struct {
	provider       keysource.Provider
	opts           ctn1.DecryptOptions
	logger         logger.Logger
	verifyChecksum bool
}

// NewDecryptStrategy creates a new decryption strategy.
func NewDecryptStrategy(provider keysource.Provider, opts ctn1.DecryptOptions, log logger.Logger, verifyChecksum bool) *DecryptStrategy {
	return &DecryptStrategy{provider: provider, opts: opts, logger: log, verifyChecksum: verifyChecksum}
}

// Process decrypts item.SourcePath into item.DestPath.
func (s *DecryptStrategy) Process(ctx context.Context, item *model.Item) error {
	in, err := os.Open(item.SourcePath) // #nosec G304 - operator-watched directory
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer in.Close()

	hdrBuf := make([]byte, container.FileHeaderLen)
	if _, err := io.ReadFull(in, hdrBuf); err != nil {
		return fmt.Errorf("failed to read container header: %w", err)
	}
	hdr, err := container.ReadFileHeader(hdrBuf)
	if err != nil {
		return fmt.Errorf("invalid container header: %w", err)
	}
	if _, err := in.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to rewind source file: %w", err)
	}

	masterKey, err := s.provider.MasterKey(ctx, hdr.KeyID)
	if err != nil {
		return fmt.Errorf("failed to resolve master key for key id %d: %w", hdr.KeyID, err)
	}

	out, err := os.OpenFile(item.DestPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) // #nosec G304 G306 - operator-configured destination
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}

	opts := s.opts
	opts.KeyID = hdr.KeyID
	if err := ctn1.DecryptStream(ctx, masterKey, in, out, opts, true, false); err != nil {
		s.logger.Error("decryption failed", "id", item.ID, "file", item.SourcePath, "error", err)
		return err
	}

	if s.verifyChecksum {
		originalName := checksumSourceName(item.SourcePath)
		checksumPath := filepath.Join(filepath.Dir(item.SourcePath), originalName+".sha256")

		if _, err := os.Stat(checksumPath); err == nil {
			expected, loadErr := checksum.Load(checksumPath)
			if loadErr != nil {
				s.logger.Error("failed to load checksum for verification", "error", loadErr)
			} else {
				valid, verr := checksum.Verify(item.DestPath, expected)
				if verr != nil {
					return fmt.Errorf("failed to verify checksum: %w", verr)
				}
				if !valid {
					return fmt.Errorf("checksum verification failed")
				}
				s.logger.Info("checksum verified", "file", item.DestPath, "checksum_file", checksumPath)
			}
			item.ChecksumPath = checksumPath
		} else {
			s.logger.Info("checksum file not found, skipping verification", "checksum_file", checksumPath)
		}
	}

	s.logger.Info("decrypted file", "id", item.ID, "file", item.SourcePath, "dest", item.DestPath, "key_id", hdr.KeyID)
	return nil
}

// checksumSourceName strips the container extension from a .ctn1 file
// name to find the checksum sidecar written at encrypt time.
func checksumSourceName(sourcePath string) string {
	name := filepath.Base(sourcePath)
	ext := filepath.Ext(name)
	if ext == containerExt {
		return name[:len(name)-len(ext)]
	}
	return name
}
