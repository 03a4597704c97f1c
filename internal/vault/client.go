package vault

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/vault/api"
)

// Client wraps the Vault API client, configured to talk to Vault Agent's
// local listener so the process itself never handles login credentials.
type Client struct {
	client *api.Client
	config *Config
}

// Config holds Vault client configuration.
type Config struct {
	// AgentAddress is the Vault Agent listener address.
	AgentAddress string

	// TransitMount is the transit secrets engine mount path.
	TransitMount string

	// KeyName is the transit key name.
	KeyName string

	// Timeout bounds each Vault API request.
	Timeout time.Duration
}

// NewClient creates a new Vault client that connects via Vault Agent.
// Authentication itself is left to Vault Agent's sidecar auto-auth; if
// VAULT_TOKEN/VAULT_NAMESPACE are set in the environment (useful for
// local development without an agent), they are applied directly.
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.AgentAddress == "" {
		return nil, fmt.Errorf("agent address is required")
	}
	if cfg.TransitMount == "" {
		return nil, fmt.Errorf("transit mount path is required")
	}
	if cfg.KeyName == "" {
		return nil, fmt.Errorf("key name is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	vaultConfig := api.DefaultConfig()
	vaultConfig.Address = cfg.AgentAddress

	// Vault SDK provides production-ready defaults (pooling, retry, TLS
	// 1.2+, 60s timeout). Override only if the caller asked for something
	// different.
	if cfg.Timeout > 0 && cfg.Timeout != 60*time.Second {
		vaultConfig.Timeout = cfg.Timeout
	}

	apiClient, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}

	if token := os.Getenv("VAULT_TOKEN"); token != "" {
		apiClient.SetToken(token)
	}
	if namespace := os.Getenv("VAULT_NAMESPACE"); namespace != "" {
		apiClient.SetNamespace(namespace)
	}

	return &Client{client: apiClient, config: cfg}, nil
}

// Health checks if Vault is accessible.
func (c *Client) Health() error {
	return c.HealthWithRetry(3, 1*time.Second)
}

// HealthWithRetry checks if Vault is accessible, retrying on failure.
func (c *Client) HealthWithRetry(maxRetries int, retryDelay time.Duration) error {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(retryDelay)
		}

		health, err := c.client.Sys().Health()
		if err != nil {
			lastErr = fmt.Errorf("vault health check failed (attempt %d/%d): %w", attempt+1, maxRetries+1, err)
			continue
		}
		if !health.Initialized {
			lastErr = fmt.Errorf("vault is not initialized (attempt %d/%d)", attempt+1, maxRetries+1)
			continue
		}
		if health.Sealed {
			lastErr = fmt.Errorf("vault is sealed (attempt %d/%d)", attempt+1, maxRetries+1)
			continue
		}
		return nil
	}

	return lastErr
}

// Close performs cleanup. No-op today; kept for interface symmetry and
// future persistent-connection teardown.
func (c *Client) Close() error {
	return nil
}
