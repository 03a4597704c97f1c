package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bramvault/ctn1/internal/config"
	"github.com/bramvault/ctn1/internal/keysource"
	"github.com/bramvault/ctn1/internal/logger"
	"github.com/bramvault/ctn1/internal/rewrap"
)

// rewrapCmd rotates the Vault Transit ciphertext backing one or more
// CTN1 KeyIDs. A container's KeyID is baked into every chunk's
// authenticated associated data, so this never touches container bytes
// on disk — it only rewraps the keyring entry a KeyID resolves to.
func rewrapCmd() *cobra.Command {
	var (
		dir          string
		recursive    bool
		keyID        int32
		minVersion   int
		dryRun       bool
		createBackup bool
		format       string
	)

	cmd := &cobra.Command{
		Use:   "rewrap",
		Short: "Rewrap Vault Transit ciphertext for CTN1 KeyIDs",
		Long: `Rotates the Vault Transit ciphertext that one or more CTN1 KeyIDs
resolve to, bringing it up to a minimum Transit key version.

KeyIDs can be given explicitly with --key-id, or discovered by scanning
a directory of .ctn1 containers with --dir.`,
		Example: `  # Rewrap every KeyID found under a directory
  ctn1 rewrap --dir /data/encrypted --recursive --min-version 2

  # Rewrap one specific KeyID
  ctn1 rewrap --key-id 3 --min-version 2

  # Preview without modifying the keyring
  ctn1 rewrap --dir /data/encrypted --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRewrap(dir, recursive, keyID, minVersion, dryRun, createBackup, format)
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Directory of .ctn1 containers to scan for KeyIDs")
	cmd.Flags().BoolVar(&recursive, "recursive", false, "Scan --dir recursively")
	cmd.Flags().Int32Var(&keyID, "key-id", 0, "Rewrap a single explicit KeyID instead of scanning --dir")
	cmd.Flags().IntVar(&minVersion, "min-version", 1, "Minimum Transit key version to require")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would change without modifying the keyring")
	cmd.Flags().BoolVar(&createBackup, "backup", true, "Back up the keyring file before modifying it")
	cmd.Flags().StringVar(&format, "format", "text", "Report format: text, json, or csv")

	return cmd
}

func runRewrap(dir string, recursive bool, keyID int32, minVersion int, dryRun, createBackup bool, format string) error {
	log, err := logger.New(logLevel, logOutput)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	if dir == "" && keyID == 0 {
		return fmt.Errorf("either --dir or --key-id must be specified")
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.KeySource.Kind != "vault" {
		return fmt.Errorf("rewrap requires key_source.kind = \"vault\" in %s", configFile)
	}

	provider, err := keysource.NewVaultProvider(keysource.VaultConfig{
		AgentAddress: cfg.KeySource.VaultAddress,
		TransitMount: cfg.KeySource.VaultTransitMount,
		KeyName:      cfg.KeySource.VaultKeyName,
		Timeout:      cfg.KeySource.RequestTimeout,
		KeyringPath:  cfg.KeySource.VaultKeyringPath,
	})
	if err != nil {
		return fmt.Errorf("failed to create vault provider: %w", err)
	}
	defer func() { _ = provider.Close() }()

	keyIDs := []int32{keyID}
	if dir != "" {
		scanner, err := rewrap.NewScanner(rewrap.ScanOptions{Directory: dir, Recursive: recursive})
		if err != nil {
			return fmt.Errorf("failed to create scanner: %w", err)
		}
		result, err := scanner.Scan()
		if err != nil {
			return fmt.Errorf("scan failed: %w", err)
		}
		log.Info("scan complete", "files_scanned", result.FilesScanned, "key_ids_found", len(result.KeyIDs))
		if keyID != 0 {
			keyIDs = []int32{keyID}
		} else {
			keyIDs = result.KeyIDs
		}
	}

	if len(keyIDs) == 0 {
		log.Info("no KeyIDs to rewrap")
		return nil
	}

	rewrapper, err := rewrap.NewRewrapper(rewrap.RewrapOptions{
		Provider:     provider,
		MinVersion:   minVersion,
		DryRun:       dryRun,
		CreateBackup: createBackup,
		Logger:       log,
	})
	if err != nil {
		return fmt.Errorf("failed to create rewrapper: %w", err)
	}

	results, err := rewrapper.RewrapBatch(context.Background(), keyIDs)
	if err != nil {
		return fmt.Errorf("batch rewrap failed: %w", err)
	}

	reporter := rewrap.NewReporter()
	reporter.AddResults(results)

	if err := writeRewrapReport(reporter, format); err != nil {
		return err
	}

	if len(reporter.GetFailedKeys()) > 0 {
		return fmt.Errorf("%d key id(s) failed to rewrap", len(reporter.GetFailedKeys()))
	}
	return nil
}

func writeRewrapReport(reporter *rewrap.Reporter, format string) error {
	switch format {
	case "json":
		return reporter.WriteJSON(os.Stdout, true)
	case "csv":
		return reporter.WriteCSV(os.Stdout)
	case "text", "":
		return reporter.WriteText(os.Stdout, true)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}
