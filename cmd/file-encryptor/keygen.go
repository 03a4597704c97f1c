package main

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const staticMasterKeySize = 32

// keygenCmd generates a random master key for use with a static key source.
func keygenCmd() *cobra.Command {
	var (
		outputFile string
		asEnv      bool
	)

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a random master key for a static key source",
		Long: `Generates a random 32-byte master key suitable for key_source.kind = "static".

With --output, writes the raw 32 bytes to a file for key_source.static_key_file.
Without --output, or with --env, prints a base64-encoded key for
key_source.static_key_env.`,
		Example: `  # Write a raw key file
  ctn1 keygen --output master.key

  # Print a base64 key for an environment variable
  ctn1 keygen --env`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeygen(outputFile, asEnv)
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write the raw key bytes to this file instead of printing base64")
	cmd.Flags().BoolVar(&asEnv, "env", false, "Print base64 suitable for a static_key_env environment variable")

	return cmd
}

func runKeygen(outputFile string, asEnv bool) error {
	key := make([]byte, staticMasterKeySize)
	if _, err := rand.Read(key); err != nil {
		return fmt.Errorf("failed to generate master key: %w", err)
	}

	if outputFile != "" && !asEnv {
		if err := os.WriteFile(outputFile, key, 0600); err != nil { // #nosec G306 - operator-provided CLI path
			return fmt.Errorf("failed to write key file: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Wrote %d-byte master key to %s\n", len(key), outputFile)
		return nil
	}

	fmt.Fprintln(os.Stdout, base64.StdEncoding.EncodeToString(key))
	return nil
}
