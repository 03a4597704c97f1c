package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/bramvault/ctn1/internal/config"
	"github.com/bramvault/ctn1/internal/keysource"
	"github.com/bramvault/ctn1/internal/rewrap"
)

// keyIDVersion reports a single KeyID's current Vault Transit version.
type keyIDVersion struct {
	KeyID      int32  `json:"key_id"`
	Version    int    `json:"version"`
	FilesFound int    `json:"files_found"`
	Error      string `json:"error,omitempty"`
}

// keyVersionsCmd reports the Vault Transit key version backing every
// KeyID referenced by the CTN1 containers under a directory.
func keyVersionsCmd() *cobra.Command {
	var (
		dir       string
		recursive bool
		format    string
	)

	cmd := &cobra.Command{
		Use:   "key-versions",
		Short: "Report Vault Transit key versions for CTN1 KeyIDs",
		Long:  `Scans a directory of .ctn1 containers and reports, for every distinct KeyID found, the Vault Transit key version currently backing it.`,
		Example: `  # List key versions for everything under a directory
  ctn1 key-versions --dir /data/encrypted --recursive`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyVersions(dir, recursive, format)
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Directory of .ctn1 containers to scan (required)")
	cmd.Flags().BoolVar(&recursive, "recursive", false, "Scan recursively")
	cmd.Flags().StringVar(&format, "format", "text", "Report format: text or json")

	_ = cmd.MarkFlagRequired("dir")

	return cmd
}

func runKeyVersions(dir string, recursive bool, format string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.KeySource.Kind != "vault" {
		return fmt.Errorf("key-versions requires key_source.kind = \"vault\" in %s", configFile)
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

	scanner, err := rewrap.NewScanner(rewrap.ScanOptions{Directory: dir, Recursive: recursive})
	if err != nil {
		return fmt.Errorf("failed to create scanner: %w", err)
	}

	result, err := scanner.Scan()
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	versions := make([]keyIDVersion, 0, len(result.KeyIDs))
	for _, keyID := range result.KeyIDs {
		v := keyIDVersion{KeyID: keyID, FilesFound: len(result.FilesByKeyID[keyID])}
		version, err := provider.KeyVersion(keyID)
		if err != nil {
			v.Error = err.Error()
		} else {
			v.Version = version
		}
		versions = append(versions, v)
	}

	sort.Slice(versions, func(i, j int) bool { return versions[i].KeyID < versions[j].KeyID })

	switch format {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(versions)
	case "text", "":
		return writeKeyVersionsText(os.Stdout, result.FilesScanned, versions)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

func writeKeyVersionsText(w *os.File, filesScanned int, versions []keyIDVersion) error {
	if _, err := fmt.Fprintf(w, "Scanned %d container(s), found %d key id(s)\n\n", filesScanned, len(versions)); err != nil {
		return err
	}
	for _, v := range versions {
		if v.Error != "" {
			if _, err := fmt.Fprintf(w, "  key_id=%-6d files=%-5d ERROR: %s\n", v.KeyID, v.FilesFound, v.Error); err != nil {
				return err
			}
			continue
		}
		if _, err := fmt.Fprintf(w, "  key_id=%-6d version=v%-3d files=%d\n", v.KeyID, v.Version, v.FilesFound); err != nil {
			return err
		}
	}
	return nil
}
