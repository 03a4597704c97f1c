package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/bramvault/ctn1/internal/checksum"
	"github.com/bramvault/ctn1/internal/config"
	"github.com/bramvault/ctn1/internal/container"
	"github.com/bramvault/ctn1/internal/keysource"
	"github.com/bramvault/ctn1/internal/logger"
	"github.com/bramvault/ctn1/internal/service"
	"github.com/bramvault/ctn1/internal/version"
	"github.com/bramvault/ctn1/pkg/ctn1"
)

var (
	configFile string
	logLevel   string
	logOutput  string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "ctn1",
		Short: "Streaming authenticated file encryption backed by HashiCorp Vault",
		Long: `A file watcher that encrypts files into CTN1 containers and stores
them in a destination folder with envelope encryption.

Can also be used for one-off file encryption/decryption.`,
		Version: version.FullVersion(),
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "config.hcl", "Configuration file path")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info", "Log level (debug, info, error)")
	rootCmd.PersistentFlags().StringVar(&logOutput, "log-output", "stdout", "Log output (stdout, stderr, or file path)")

	rootCmd.AddCommand(watchCmd())
	rootCmd.AddCommand(encryptCmd())
	rootCmd.AddCommand(decryptCmd())
	rootCmd.AddCommand(keygenCmd())
	rootCmd.AddCommand(rewrapCmd())
	rootCmd.AddCommand(keyVersionsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// watchCmd runs the file watcher service
func watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run as a service watching directories for files",
		Long:  `Starts the file watcher service that continuously monitors directories for new files to encrypt/decrypt.`,
		RunE:  runWatch,
	}
	return cmd
}

// encryptCmd encrypts a single file
func encryptCmd() *cobra.Command {
	var (
		inputFile  string
		outputFile string
		checksumIt bool
		chunkSize  string
	)

	cmd := &cobra.Command{
		Use:   "encrypt",
		Short: "Encrypt a single file",
		Long:  `Encrypts a single file into a CTN1 container. The wrapped file key travels in the container header; no sidecar key file is written.`,
		Example: `  # Encrypt a file
  ctn1 encrypt -i data.txt -o data.txt.ctn1

  # Encrypt with checksum
  ctn1 encrypt -i data.txt -o data.txt.ctn1 --checksum

  # Encrypt with custom chunk size
  ctn1 encrypt -i large.db -o large.db.ctn1 --chunk-size 5MB`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEncrypt(inputFile, outputFile, checksumIt, chunkSize)
		},
	}

	cmd.Flags().StringVarP(&inputFile, "input", "i", "", "Input file to encrypt")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output CTN1 container")
	cmd.Flags().BoolVar(&checksumIt, "checksum", false, "Calculate and save a SHA-256 checksum sidecar")
	cmd.Flags().StringVar(&chunkSize, "chunk-size", "", "Chunk size for encryption (e.g., 2MB, 512KB) - overrides config")

	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}

// decryptCmd decrypts a single file
func decryptCmd() *cobra.Command {
	var (
		inputFile      string
		outputFile     string
		verifyChecksum bool
	)

	cmd := &cobra.Command{
		Use:   "decrypt",
		Short: "Decrypt a single file",
		Long:  `Decrypts a single CTN1 container back into plaintext.`,
		Example: `  # Decrypt a file
  ctn1 decrypt -i data.txt.ctn1 -o data.txt

  # Decrypt with checksum verification
  ctn1 decrypt -i data.txt.ctn1 -o data.txt --verify-checksum`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecrypt(inputFile, outputFile, verifyChecksum)
		},
	}

	cmd.Flags().StringVarP(&inputFile, "input", "i", "", "CTN1 container to decrypt (required)")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output decrypted file (required)")
	cmd.Flags().BoolVar(&verifyChecksum, "verify-checksum", false, "Verify SHA256 checksum if available")

	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}

func runWatch(cmd *cobra.Command, args []string) error {
	sigChan := setupSignalHandler()

	svc, err := service.New(&service.Config{
		ConfigFile: configFile,
		SignalChan: sigChan,
	})
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	ctx := context.Background()
	return svc.Run(ctx, sigChan, isReloadSignal, isShutdownSignal)
}

func runEncrypt(inputFile, outputFile string, calculateChecksum bool, chunkSizeStr string) error {
	log, err := logger.New(logLevel, logOutput)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Encrypting file", "input", inputFile, "output", outputFile)

	if _, err := os.Stat(inputFile); os.IsNotExist(err) {
		return fmt.Errorf("input file does not exist: %s", inputFile)
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	provider, err := keysource.NewFromConfig(cfg.KeySource, int32(cfg.Pipeline.KeyID))
	if err != nil {
		return fmt.Errorf("failed to create key provider: %w", err)
	}
	defer func() { _ = provider.Close() }()

	chunkSize := cfg.Pipeline.ChunkSize
	if chunkSizeStr != "" {
		size, err := config.ParseSize(chunkSizeStr)
		if err != nil {
			return fmt.Errorf("invalid chunk size: %w", err)
		}
		chunkSize = size
		log.Info("Using custom chunk size", "chunk_size", config.FormatSize(chunkSize))
	}

	ctx := context.Background()

	keyID, masterKey, err := provider.NewMasterKey(ctx)
	if err != nil {
		return fmt.Errorf("failed to obtain master key: %w", err)
	}

	in, err := os.Open(inputFile) // #nosec G304 - operator-provided CLI path
	if err != nil {
		return fmt.Errorf("failed to open input file: %w", err)
	}

	out, err := os.OpenFile(outputFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) // #nosec G304 G306 - operator-provided CLI path
	if err != nil {
		_ = in.Close()
		return fmt.Errorf("failed to create output file: %w", err)
	}

	opts := ctn1.EncryptOptions{
		ChunkSize: chunkSize,
		Workers:   cfg.Pipeline.Workers,
		WindowCap: cfg.Pipeline.WindowCap,
		KeyID:     keyID,
	}
	if err := ctn1.EncryptStream(ctx, masterKey, in, out, opts, false, false); err != nil {
		return fmt.Errorf("encryption failed: %w", err)
	}

	if calculateChecksum {
		checksumPath := inputFile + ".sha256"
		sum, err := checksum.Calculate(inputFile)
		if err != nil {
			return fmt.Errorf("failed to calculate checksum: %w", err)
		}
		if err := checksum.Save(sum, checksumPath); err != nil {
			return fmt.Errorf("failed to save checksum: %w", err)
		}
		log.Info("Checksum saved", "checksum_file", checksumPath, "checksum", sum)
	}

	log.Info("File encrypted successfully", "input", inputFile, "output", outputFile, "key_id", keyID)
	return nil
}

func runDecrypt(inputFile, outputFile string, verifyChecksum bool) error {
	log, err := logger.New(logLevel, logOutput)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Decrypting file", "input", inputFile, "output", outputFile)

	if _, err := os.Stat(inputFile); os.IsNotExist(err) {
		return fmt.Errorf("encrypted file does not exist: %s", inputFile)
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	provider, err := keysource.NewFromConfig(cfg.KeySource, int32(cfg.Pipeline.KeyID))
	if err != nil {
		return fmt.Errorf("failed to create key provider: %w", err)
	}
	defer func() { _ = provider.Close() }()

	ctx := context.Background()

	in, err := os.Open(inputFile) // #nosec G304 - operator-provided CLI path
	if err != nil {
		return fmt.Errorf("failed to open input file: %w", err)
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
		return fmt.Errorf("failed to rewind input file: %w", err)
	}

	masterKey, err := provider.MasterKey(ctx, hdr.KeyID)
	if err != nil {
		return fmt.Errorf("failed to resolve master key for key id %d: %w", hdr.KeyID, err)
	}
	keyID := hdr.KeyID

	out, err := os.OpenFile(outputFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) // #nosec G304 G306 - operator-provided CLI path
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}

	opts := ctn1.DecryptOptions{
		Workers:           cfg.Pipeline.Workers,
		WindowCap:         cfg.Pipeline.WindowCap,
		KeyID:             keyID,
		StrictLengthCheck: cfg.Pipeline.StrictLengthCheck,
	}
	if err := ctn1.DecryptStream(ctx, masterKey, in, out, opts, true, false); err != nil {
		return fmt.Errorf("decryption failed: %w", err)
	}

	if verifyChecksum {
		checksumPath := inputFile + ".sha256"
		if _, err := os.Stat(checksumPath); err == nil {
			log.Info("Verifying checksum", "checksum_file", checksumPath)

			expected, err := checksum.Load(checksumPath)
			if err != nil {
				return fmt.Errorf("failed to load checksum: %w", err)
			}

			valid, err := checksum.Verify(outputFile, expected)
			if err != nil {
				return fmt.Errorf("failed to verify checksum: %w", err)
			}
			if !valid {
				return fmt.Errorf("checksum verification failed")
			}

			log.Info("Checksum verification passed")
		} else {
			log.Info("Checksum file not found, skipping verification", "checksum_file", checksumPath)
		}
	}

	log.Info("File decrypted successfully", "input", inputFile, "output", outputFile, "key_id", keyID)
	return nil
}
