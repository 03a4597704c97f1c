package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bramvault/ctn1/internal/config"
	"github.com/bramvault/ctn1/internal/interfaces"
	"github.com/bramvault/ctn1/internal/logger"
	"github.com/bramvault/ctn1/internal/model"
)

// containerExt is the extension CTN1 appends to encrypted output files.
// The wrapped file key lives inside the container header; there is no
// separate ciphertext/key sidecar pair.
const containerExt = ".ctn1"

// Watcher watches directories for file changes and enqueues encrypt or
// decrypt work items.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	queue     interfaces.Queue
	detector  *PartialUploadDetector
	logger    logger.Logger
	mu        sync.RWMutex

	encryptSourceDir string
	encryptDestDir   string
	decryptSourceDir string
	decryptDestDir   string
}

// Config holds watcher configuration.
type Config struct {
	EncryptSourceDir string
	EncryptDestDir   string

	DecryptSourceDir string
	DecryptDestDir   string

	StabilityDuration time.Duration
}

// NewWatcher creates a new file watcher.
func NewWatcher(cfg *Config, q interfaces.Queue, log logger.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fs watcher: %w", err)
	}

	w := &Watcher{
		fsWatcher:        fsWatcher,
		queue:            q,
		detector:         NewPartialUploadDetector(cfg.StabilityDuration),
		logger:           log,
		encryptSourceDir: cfg.EncryptSourceDir,
		encryptDestDir:   cfg.EncryptDestDir,
		decryptSourceDir: cfg.DecryptSourceDir,
		decryptDestDir:   cfg.DecryptDestDir,
	}

	return w, nil
}

// UpdateConfig safely updates the watcher's configuration.
func (w *Watcher) UpdateConfig(cfg *config.Config) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	newEncryptSrc := cfg.Encryption.SourceDir
	newEncryptDest := cfg.Encryption.DestDir
	var newDecryptSrc, newDecryptDest string
	if cfg.Decryption != nil {
		newDecryptSrc = cfg.Decryption.SourceDir
		newDecryptDest = cfg.Decryption.DestDir
	}

	if newEncryptSrc != w.encryptSourceDir {
		if w.encryptSourceDir != "" {
			if err := w.fsWatcher.Remove(w.encryptSourceDir); err != nil {
				w.logger.Error("failed to remove old encrypt source dir from watcher", "dir", w.encryptSourceDir, "error", err)
			}
		}
		if newEncryptSrc != "" {
			if err := w.fsWatcher.Add(newEncryptSrc); err != nil {
				return fmt.Errorf("failed to add new encrypt source dir to watcher: %w", err)
			}
			w.logger.Info("now watching new encryption source directory", "dir", newEncryptSrc)
		}
		w.encryptSourceDir = newEncryptSrc
		w.encryptDestDir = newEncryptDest
	}

	if newDecryptSrc != w.decryptSourceDir {
		if w.decryptSourceDir != "" {
			if err := w.fsWatcher.Remove(w.decryptSourceDir); err != nil {
				w.logger.Error("failed to remove old decrypt source dir from watcher", "dir", w.decryptSourceDir, "error", err)
			}
		}
		if newDecryptSrc != "" {
			if err := w.fsWatcher.Add(newDecryptSrc); err != nil {
				return fmt.Errorf("failed to add new decrypt source dir to watcher: %w", err)
			}
			w.logger.Info("now watching new decryption source directory", "dir", newDecryptSrc)
		}
		w.decryptSourceDir = newDecryptSrc
		w.decryptDestDir = newDecryptDest
	}

	return nil
}

// Start starts watching the configured directories.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.RLock()
	encryptSrc := w.encryptSourceDir
	decryptSrc := w.decryptSourceDir
	w.mu.RUnlock()

	if encryptSrc != "" {
		if err := w.fsWatcher.Add(encryptSrc); err != nil {
			return fmt.Errorf("failed to watch encrypt source dir: %w", err)
		}
		w.logger.Info("watching encryption source directory", "dir", encryptSrc)
	}

	if decryptSrc != "" {
		if err := w.fsWatcher.Add(decryptSrc); err != nil {
			return fmt.Errorf("failed to watch decrypt source dir: %w", err)
		}
		w.logger.Info("watching decryption source directory", "dir", decryptSrc)
	}

	for {
		select {
		case <-ctx.Done():
			return w.fsWatcher.Close()

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Create == fsnotify.Create {
				w.handleFileCreated(ctx, event.Name)
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", "error", err)
		}
	}
}

// handleFileCreated handles a new file creation event.
func (w *Watcher) handleFileCreated(ctx context.Context, filePath string) {
	info, err := os.Stat(filePath)
	if err != nil {
		w.logger.Error("failed to stat file", "file", filePath, "error", err)
		return
	}
	if info.IsDir() {
		return
	}

	w.mu.RLock()
	defer w.mu.RUnlock()

	dir := filepath.Dir(filePath)
	var operation model.OperationType
	var destDir string

	switch dir {
	case w.encryptSourceDir:
		if strings.HasSuffix(filePath, containerExt) || strings.HasSuffix(filePath, ".sha256") {
			return
		}
		operation = model.OperationEncrypt
		destDir = w.encryptDestDir
	case w.decryptSourceDir:
		if !strings.HasSuffix(filePath, containerExt) {
			return
		}
		operation = model.OperationDecrypt
		destDir = w.decryptDestDir
	default:
		return
	}

	w.logger.Info("new file detected", "file", filePath, "operation", operation)

	if err := w.detector.WaitForStability(ctx, filePath, 5*time.Minute); err != nil {
		w.logger.Error("file did not stabilize", "file", filePath, "error", err)
		return
	}

	w.logger.Info("file is stable", "file", filePath)

	fileName := filepath.Base(filePath)
	var destPath string
	if operation == model.OperationEncrypt {
		destPath = filepath.Join(destDir, fileName+containerExt)
	} else {
		destPath = filepath.Join(destDir, strings.TrimSuffix(fileName, containerExt))
	}

	item := model.NewItem(operation, filePath, destPath)
	item.FileSize = info.Size()

	if err := w.queue.Enqueue(item); err != nil {
		w.logger.Error("failed to enqueue item", "file", filePath, "error", err)
		return
	}

	w.logger.Info("file queued for processing", "file", filePath, "id", item.ID)
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	return w.fsWatcher.Close()
}
