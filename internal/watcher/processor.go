package watcher

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/bramvault/ctn1/internal/config"
	"github.com/bramvault/ctn1/internal/interfaces"
	"github.com/bramvault/ctn1/internal/keysource"
	"github.com/bramvault/ctn1/internal/logger"
	"github.com/bramvault/ctn1/internal/model"
	"github.com/bramvault/ctn1/pkg/ctn1"
)

// Processor processes files from the queue, one at a time, driving them
// through the encrypt or decrypt pipeline based on operation type.
type Processor struct {
	queue              interfaces.Queue
	encryptStrategy    ProcessStrategy
	decryptStrategy    ProcessStrategy
	FileHandler        *FileHandler // exposed for testing (encryption)
	decryptFileHandler *FileHandler
	logger             logger.Logger
	mu                 sync.RWMutex
}

// ProcessorConfig holds processor configuration.
type ProcessorConfig struct {
	EncryptSourceFileBehavior string
	EncryptArchiveDir         string
	EncryptFailedDir          string
	EncryptDLQDir             string
	CalculateChecksum         bool

	DecryptSourceFileBehavior string
	DecryptArchiveDir         string
	DecryptFailedDir          string
	DecryptDLQDir             string
	VerifyChecksum            bool
}

// NewProcessor creates a new file processor.
func NewProcessor(
	cfg *ProcessorConfig,
	q interfaces.Queue,
	provider keysource.Provider,
	encryptOpts ctn1.EncryptOptions,
	decryptOpts ctn1.DecryptOptions,
	log logger.Logger,
) (*Processor, error) {
	encryptFileHandler, err := NewFileHandler(&FileHandlerConfig{
		SourceFileBehavior: cfg.EncryptSourceFileBehavior,
		ArchiveDir:         cfg.EncryptArchiveDir,
		FailedDir:          cfg.EncryptFailedDir,
		DLQDir:             cfg.EncryptDLQDir,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create encryption file handler: %w", err)
	}

	decryptFileHandler, err := NewFileHandler(&FileHandlerConfig{
		SourceFileBehavior: cfg.DecryptSourceFileBehavior,
		ArchiveDir:         cfg.DecryptArchiveDir,
		FailedDir:          cfg.DecryptFailedDir,
		DLQDir:             cfg.DecryptDLQDir,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create decryption file handler: %w", err)
	}

	return &Processor{
		queue:              q,
		encryptStrategy:    NewEncryptStrategy(provider, encryptOpts, log, cfg.CalculateChecksum),
		decryptStrategy:    NewDecryptStrategy(provider, decryptOpts, log, cfg.VerifyChecksum),
		FileHandler:        encryptFileHandler,
		decryptFileHandler: decryptFileHandler,
		logger:             log,
	}, nil
}

// UpdateConfig safely updates the processor's configuration.
func (p *Processor) UpdateConfig(cfg *config.Config) {
	p.mu.Lock()
	defer p.mu.Unlock()

	newCfg := &ProcessorConfig{
		EncryptSourceFileBehavior: cfg.Encryption.SourceFileBehavior,
		EncryptArchiveDir:         cfg.ArchiveDir("encrypt"),
		EncryptFailedDir:          cfg.FailedDir("encrypt"),
		EncryptDLQDir:             cfg.DLQDir("encrypt"),
		CalculateChecksum:         cfg.Encryption.CalculateChecksum,
	}
	if cfg.Decryption != nil {
		newCfg.DecryptSourceFileBehavior = cfg.Decryption.SourceFileBehavior
		newCfg.DecryptArchiveDir = cfg.ArchiveDir("decrypt")
		newCfg.DecryptFailedDir = cfg.FailedDir("decrypt")
		newCfg.DecryptDLQDir = cfg.DLQDir("decrypt")
		newCfg.VerifyChecksum = cfg.Decryption.VerifyChecksum
	}

	p.FileHandler.UpdateConfig(&FileHandlerConfig{
		SourceFileBehavior: newCfg.EncryptSourceFileBehavior,
		ArchiveDir:         newCfg.EncryptArchiveDir,
		FailedDir:          newCfg.EncryptFailedDir,
		DLQDir:             newCfg.EncryptDLQDir,
	})

	p.decryptFileHandler.UpdateConfig(&FileHandlerConfig{
		SourceFileBehavior: newCfg.DecryptSourceFileBehavior,
		ArchiveDir:         newCfg.DecryptArchiveDir,
		FailedDir:          newCfg.DecryptFailedDir,
		DLQDir:             newCfg.DecryptDLQDir,
	})

	if s, ok := p.encryptStrategy.(*EncryptStrategy); ok {
		s.calculateChecksum = newCfg.CalculateChecksum
	}
	if s, ok := p.decryptStrategy.(*DecryptStrategy); ok {
		s.verifyChecksum = newCfg.VerifyChecksum
	}
}

// Start starts processing files from the queue until ctx is cancelled.
func (p *Processor) Start(ctx context.Context) error {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-ticker.C:
			item := p.queue.Dequeue()
			if item == nil {
				continue
			}
			p.processItem(ctx, item)
		}
	}
}

// processItem processes a single queue item.
func (p *Processor) processItem(ctx context.Context, item *model.Item) {
	item.MarkProcessing()

	p.mu.RLock()
	defer p.mu.RUnlock()

	p.logger.Info("processing file",
		"id", item.ID,
		"operation", item.Operation,
		"file", item.SourcePath,
		"attempt", item.AttemptCount,
	)

	var err error
	var strategy ProcessStrategy
	var fileHandler *FileHandler

	switch item.Operation {
	case model.OperationEncrypt:
		strategy = p.encryptStrategy
		fileHandler = p.FileHandler
	case model.OperationDecrypt:
		strategy = p.decryptStrategy
		fileHandler = p.decryptFileHandler
	default:
		err = fmt.Errorf("unknown operation: %s", item.Operation)
	}

	if err == nil && strategy != nil {
		err = strategy.Process(ctx, item)
	}

	if err != nil {
		p.logger.Error("failed to process file", "id", item.ID, "file", item.SourcePath, "error", err)

		if reErr := p.queue.Requeue(item, err); reErr != nil {
			p.logger.Error("failed to requeue item", "id", item.ID, "error", reErr)
			if fileHandler != nil {
				fileHandler.MoveToDLQ(item)
			}
		}

		if fileHandler != nil {
			fileHandler.MoveToFailed(item.SourcePath)
		}

		return
	}

	item.MarkCompleted()

	p.logger.Info("successfully processed file", "id", item.ID, "file", item.SourcePath, "dest", item.DestPath)

	if fileHandler != nil {
		fileHandler.HandleSourceFile(item.SourcePath)

		if item.Operation == model.OperationDecrypt {
			checksumPath := strings.TrimSuffix(item.SourcePath, containerExt) + ".sha256"
			if _, statErr := os.Stat(checksumPath); statErr == nil {
				fileHandler.HandleSourceFile(checksumPath)
			}
		}
	}
}
