// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config is the root configuration for the auction service.
type Config struct {
	Addr         string `env:"BIDMORE_ADDR" envDefault:":8080"`
	StoreBackend string `env:"BIDMORE_STORE_BACKEND" envDefault:"postgres"`

	DatabaseURL string `env:"BIDMORE_DB_URL"`
	RedisURL    string `env:"BIDMORE_REDIS_URL"`
	RedisPrefix string `env:"BIDMORE_REDIS_PREFIX" envDefault:"bidmore"`

	RabbitURL     string        `env:"BIDMORE_RABBITMQ_URL"`
	Exchange      string        `env:"BIDMORE_EXCHANGE" envDefault:"auction.transfers"`
	RelayBatch    int           `env:"BIDMORE_RELAY_BATCH" envDefault:"10"`
	RelayInterval time.Duration `env:"BIDMORE_RELAY_INTERVAL" envDefault:"1s"`

	JWTPublicKeyFile string `env:"BIDMORE_JWT_PUBLIC_KEY_FILE"`
	JWTIssuer        string `env:"BIDMORE_JWT_ISSUER" envDefault:"bidmore"`
}

// Load reads .env files (local overrides .env) and parses the environment.
func Load() (*Config, error) {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	switch cfg.StoreBackend {
	case BackendMemory, BackendPostgres, BackendRedis:
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	if cfg.StoreBackend == BackendPostgres && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("BIDMORE_DB_URL is required for the postgres backend")
	}
	if cfg.StoreBackend == BackendRedis && cfg.RedisURL == "" {
		return nil, fmt.Errorf("BIDMORE_REDIS_URL is required for the redis backend")
	}

	return cfg, nil
}
