// Package config handles configuration for the server component,
// including defaults, environment, JSON overlay, and command-line flags.
package config

import (
	"time"

	"github.com/dmitrijs2005/genesis/internal/common"
)

// Token expiry policies.
const (
	// PolicyExplicit computes expires_at at issuance and returns it to the caller.
	PolicyExplicit = "explicit"
	// PolicyWindow stores no expiry; verification bounds the age of the
	// token's embedded timestamp.
	PolicyWindow = "window"
)

// Config holds runtime settings for the genesis server.
type Config struct {
	ListenAddr string `validate:"required"`

	DatabaseDSN     string        `validate:"required"`
	PoolMinConns    int           `validate:"gte=0,ltefield=PoolMaxConns"`
	PoolMaxConns    int           `validate:"gte=1"`
	PoolMaxLifetime time.Duration `validate:"gt=0"`
	RunMigrations   bool

	// VaultURL is the full AppRole login URL, e.g.
	// https://vault.tld:8200/v1/auth/approle/login.
	VaultURL      string `validate:"required,url"`
	VaultRoleID   string `validate:"required"`
	VaultSecretID string `validate:"required_without=VaultWrappedToken"`
	// VaultWrappedToken, when set, is unwrapped into the secret id and takes
	// precedence over VaultSecretID.
	VaultWrappedToken string
	// VaultDatabasePath optionally names a dynamic database secret
	// (e.g. database/creds/genesis) whose username/password replace the DSN's.
	VaultDatabasePath string

	RenewMargin         time.Duration `validate:"gte=0"`
	RenewMaxAttempts    uint64        `validate:"gte=1"`
	RenewBackoff        time.Duration `validate:"gt=0"`
	RenewAttemptTimeout time.Duration `validate:"gt=0"`

	TokenPolicy string        `validate:"oneof=explicit window"`
	TokenTTL    time.Duration `validate:"gt=0"`
	TokenWindow time.Duration `validate:"gt=0"`

	IPHeader      string `validate:"required"`
	CountryHeader string `validate:"required"`

	LogLevel   string `validate:"required"`
	LogBackend string `validate:"oneof=slog zerolog"`
	LogConsole bool

	// DrainTimeout bounds the graceful drain of in-flight requests; 0 waits indefinitely.
	DrainTimeout time.Duration `validate:"gte=0"`
}

// LoadDefaults populates Config with development defaults.
func (c *Config) LoadDefaults() {
	c.ListenAddr = ":8080"
	c.PoolMinConns = 1
	c.PoolMaxConns = 5
	c.PoolMaxLifetime = 2 * time.Minute
	c.RenewMargin = 30 * time.Second
	c.RenewMaxAttempts = 5
	c.RenewBackoff = time.Second
	c.RenewAttemptTimeout = 5 * time.Second
	c.TokenPolicy = PolicyWindow
	c.TokenTTL = 120 * time.Second
	c.TokenWindow = 30 * time.Minute
	c.IPHeader = common.DefaultIPHeader
	c.CountryHeader = common.DefaultCountryHeader
	c.LogLevel = "error"
	c.LogBackend = "slog"
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from the environment, an optional JSON file and finally command-line
// flags. The result is validated.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	if err := parseJson(cfg); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
