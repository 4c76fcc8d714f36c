// Package config loads and validates app config from env and an optional
// .env file using Viper.
package config

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"PAPYRUS_HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN; empty selects the in-memory store.
	DatabaseURL string `mapstructure:"PAPYRUS_DATABASE_URL"`
	// StorageDir is where the RSA signing key pair lives.
	StorageDir string `mapstructure:"PAPYRUS_STORAGE_DIR"`
	// RecreateKeys backs up and regenerates the signing key pair on boot,
	// invalidating every outstanding token.
	RecreateKeys bool `mapstructure:"PAPYRUS_RECREATE_KEYS"`
	// TokenIssuer is the iss claim stamped into session tokens.
	TokenIssuer string `mapstructure:"PAPYRUS_TOKEN_ISSUER"`
	// TokenTTL is the session token lifetime (e.g. "720h").
	TokenTTL string `mapstructure:"PAPYRUS_TOKEN_TTL"`
	// BcryptCost is the bcrypt cost factor (4-31); default 12.
	BcryptCost int `mapstructure:"PAPYRUS_BCRYPT_COST"`
	// AdminID and AdminPassword describe the bootstrap top-level account
	// created on first boot. Both empty disables bootstrap.
	AdminID       string `mapstructure:"PAPYRUS_ADMIN_ID"`
	AdminEmail    string `mapstructure:"PAPYRUS_ADMIN_EMAIL"`
	AdminPassword string `mapstructure:"PAPYRUS_ADMIN_PASSWORD"`
	// RateLimitRPS and RateLimitBurst shape the per-instance request
	// limiter. Zero RPS disables limiting.
	RateLimitRPS   float64 `mapstructure:"PAPYRUS_RATE_LIMIT_RPS"`
	RateLimitBurst int     `mapstructure:"PAPYRUS_RATE_LIMIT_BURST"`
	// CORSOrigin is the allowed origin for browser clients; * in dev.
	CORSOrigin string `mapstructure:"PAPYRUS_CORS_ORIGIN"`
	// MaxBodyBytes caps request body size.
	MaxBodyBytes int64 `mapstructure:"PAPYRUS_MAX_BODY_BYTES"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"PAPYRUS_ENV"`
}

// Load reads .env (if present), then builds and validates Config from the
// environment via Viper. Missing .env is ignored; env vars override .env.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("PAPYRUS_HTTP_ADDR", ":8080")
	v.SetDefault("PAPYRUS_DATABASE_URL", "")
	v.SetDefault("PAPYRUS_STORAGE_DIR", "./storage")
	v.SetDefault("PAPYRUS_RECREATE_KEYS", false)
	v.SetDefault("PAPYRUS_TOKEN_ISSUER", "papyrus")
	v.SetDefault("PAPYRUS_TOKEN_TTL", "720h") // 30d
	v.SetDefault("PAPYRUS_BCRYPT_COST", 12)
	v.SetDefault("PAPYRUS_ADMIN_ID", "")
	v.SetDefault("PAPYRUS_ADMIN_EMAIL", "")
	v.SetDefault("PAPYRUS_ADMIN_PASSWORD", "")
	v.SetDefault("PAPYRUS_RATE_LIMIT_RPS", 50.0)
	v.SetDefault("PAPYRUS_RATE_LIMIT_BURST", 100)
	v.SetDefault("PAPYRUS_CORS_ORIGIN", "*")
	v.SetDefault("PAPYRUS_MAX_BODY_BYTES", 1<<20)
	v.SetDefault("PAPYRUS_ENV", "development")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: PAPYRUS_HTTP_ADDR must be set")
	}
	if cfg.StorageDir == "" {
		return nil, errors.New("config: PAPYRUS_STORAGE_DIR must be set")
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: PAPYRUS_BCRYPT_COST must be between 4 and 31")
	}
	if cfg.AdminID != "" && cfg.AdminPassword == "" {
		return nil, errors.New("config: PAPYRUS_ADMIN_PASSWORD must be set when PAPYRUS_ADMIN_ID is")
	}
	if cfg.Env == "production" && cfg.RecreateKeys {
		return nil, errors.New("config: PAPYRUS_RECREATE_KEYS must not be set in production")
	}

	return &cfg, nil
}

// SessionTTL parses TokenTTL as a time.Duration. Returns 30 days if unset or
// invalid.
func (c *Config) SessionTTL() time.Duration {
	d, err := time.ParseDuration(c.TokenTTL)
	if err != nil || d <= 0 {
		return 30 * 24 * time.Hour
	}
	return d
}
