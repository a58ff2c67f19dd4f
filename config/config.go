// Package config loads the gateway settings from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"

	"github.com/vitwit/paygate/types"
)

// Config carries everything the gateway binary needs to start
type Config struct {
	// ListenAddr is the address the HTTP server binds to
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8080"`

	// WalletAddress receives payments. Leave it empty to run without a
	// wallet; the gate still answers but marks payment details unavailable
	WalletAddress string `env:"WALLET_ADDRESS"`

	// Network selects the ledger cluster
	Network string `env:"NETWORK" envDefault:"solana-devnet"`

	// RPCURL overrides the cluster's default RPC endpoint
	RPCURL string `env:"SOLANA_RPC_URL"`

	// CatalogPath points at the JSON item catalog
	CatalogPath string `env:"CATALOG_PATH" envDefault:"catalog.json"`

	// LedgerTimeout bounds a single ledger lookup
	LedgerTimeout time.Duration `env:"LEDGER_TIMEOUT" envDefault:"30s"`

	// ProofStore picks the replay store backend, memory or redis
	ProofStore string `env:"PROOF_STORE" envDefault:"memory"`

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	// DevBypass honors the development bypass proof, outside production only
	DevBypass bool `env:"DEV_BYPASS"`

	// Production marks a real deployment
	Production bool `env:"PRODUCTION"`

	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	EnableMetrics bool   `env:"ENABLE_METRICS" envDefault:"true"`
}

// Load reads a .env file when one exists, then the environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the gateway cannot run with.
func (c Config) Validate() error {
	if !c.LedgerNetwork().Valid() {
		return fmt.Errorf("unsupported network %q", c.Network)
	}
	switch c.ProofStore {
	case "memory", "redis":
	default:
		return fmt.Errorf("unsupported proof store %q, use memory or redis", c.ProofStore)
	}
	return nil
}

// LedgerNetwork returns the parsed ledger network.
func (c Config) LedgerNetwork() types.Network {
	return types.Network(c.Network)
}

// BypassEnabled reports whether the development bypass proof is honored.
// It never is in production.
func (c Config) BypassEnabled() bool {
	return c.DevBypass && !c.Production
}
