package keysource

import (
	"fmt"

	"github.com/bramvault/ctn1/internal/config"
)

// NewFromConfig builds the Provider selected by cfg.KeySource.Kind.
// staticKeyID is the pipeline's configured key_id, used as the single
// KeyID a StaticProvider answers for; it is ignored for "vault", which
// allocates its own KeyIDs as files are encrypted.
func NewFromConfig(cfg config.KeySourceConfig, staticKeyID int32) (Provider, error) {
	switch cfg.Kind {
	case "", "static":
		return NewStaticProvider(staticKeyID, cfg.KeyFile, cfg.KeyEnv)
	case "vault":
		return NewVaultProvider(VaultConfig{
			AgentAddress: cfg.VaultAddress,
			TransitMount: cfg.VaultTransitMount,
			KeyName:      cfg.VaultKeyName,
			Timeout:      cfg.RequestTimeout,
			KeyringPath:  cfg.VaultKeyringPath,
		})
	default:
		return nil, fmt.Errorf("keysource: unknown kind %q", cfg.Kind)
	}
}
