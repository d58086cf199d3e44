package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/genesis/internal/flagx"
	"github.com/dmitrijs2005/genesis/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Durations use
// timex.Duration so both "90s" and integer nanoseconds are accepted.
type JsonConfig struct {
	ListenAddr string `json:"listen_addr"`

	DatabaseDSN     string         `json:"database_dsn"`
	PoolMinConns    int            `json:"pool_min_conns"`
	PoolMaxConns    int            `json:"pool_max_conns"`
	PoolMaxLifetime timex.Duration `json:"pool_max_lifetime"`
	RunMigrations   bool           `json:"run_migrations"`

	VaultURL          string `json:"vault_url"`
	VaultRoleID       string `json:"vault_role_id"`
	VaultSecretID     string `json:"vault_secret_id"`
	VaultWrappedToken string `json:"vault_wrapped_token"`
	VaultDatabasePath string `json:"vault_database_path"`

	RenewMargin         timex.Duration `json:"renew_margin"`
	RenewMaxAttempts    uint64         `json:"renew_max_attempts"`
	RenewBackoff        timex.Duration `json:"renew_backoff"`
	RenewAttemptTimeout timex.Duration `json:"renew_attempt_timeout"`

	TokenPolicy string         `json:"token_policy"`
	TokenTTL    timex.Duration `json:"token_ttl"`
	TokenWindow timex.Duration `json:"token_window"`

	IPHeader      string `json:"ip_header"`
	CountryHeader string `json:"country_header"`

	LogLevel   string `json:"log_level"`
	LogBackend string `json:"log_backend"`
	LogConsole bool   `json:"log_console"`

	DrainTimeout timex.Duration `json:"drain_timeout"`
}

func toJson(c *Config) *JsonConfig {
	return &JsonConfig{
		ListenAddr:          c.ListenAddr,
		DatabaseDSN:         c.DatabaseDSN,
		PoolMinConns:        c.PoolMinConns,
		PoolMaxConns:        c.PoolMaxConns,
		PoolMaxLifetime:     timex.Duration{Duration: c.PoolMaxLifetime},
		RunMigrations:       c.RunMigrations,
		VaultURL:            c.VaultURL,
		VaultRoleID:         c.VaultRoleID,
		VaultSecretID:       c.VaultSecretID,
		VaultWrappedToken:   c.VaultWrappedToken,
		VaultDatabasePath:   c.VaultDatabasePath,
		RenewMargin:         timex.Duration{Duration: c.RenewMargin},
		RenewMaxAttempts:    c.RenewMaxAttempts,
		RenewBackoff:        timex.Duration{Duration: c.RenewBackoff},
		RenewAttemptTimeout: timex.Duration{Duration: c.RenewAttemptTimeout},
		TokenPolicy:         c.TokenPolicy,
		TokenTTL:            timex.Duration{Duration: c.TokenTTL},
		TokenWindow:         timex.Duration{Duration: c.TokenWindow},
		IPHeader:            c.IPHeader,
		CountryHeader:       c.CountryHeader,
		LogLevel:            c.LogLevel,
		LogBackend:          c.LogBackend,
		LogConsole:          c.LogConsole,
		DrainTimeout:        timex.Duration{Duration: c.DrainTimeout},
	}
}

func (j *JsonConfig) apply(c *Config) {
	c.ListenAddr = j.ListenAddr
	c.DatabaseDSN = j.DatabaseDSN
	c.PoolMinConns = j.PoolMinConns
	c.PoolMaxConns = j.PoolMaxConns
	c.PoolMaxLifetime = j.PoolMaxLifetime.Duration
	c.RunMigrations = j.RunMigrations
	c.VaultURL = j.VaultURL
	c.VaultRoleID = j.VaultRoleID
	c.VaultSecretID = j.VaultSecretID
	c.VaultWrappedToken = j.VaultWrappedToken
	c.VaultDatabasePath = j.VaultDatabasePath
	c.RenewMargin = j.RenewMargin.Duration
	c.RenewMaxAttempts = j.RenewMaxAttempts
	c.RenewBackoff = j.RenewBackoff.Duration
	c.RenewAttemptTimeout = j.RenewAttemptTimeout.Duration
	c.TokenPolicy = j.TokenPolicy
	c.TokenTTL = j.TokenTTL.Duration
	c.TokenWindow = j.TokenWindow.Duration
	c.IPHeader = j.IPHeader
	c.CountryHeader = j.CountryHeader
	c.LogLevel = j.LogLevel
	c.LogBackend = j.LogBackend
	c.LogConsole = j.LogConsole
	c.DrainTimeout = j.DrainTimeout.Duration
}

// parseJson loads the file named by -c/-config, if any, over config.
// Keys missing from the file keep their current values.
func parseJson(config *Config) error {
	path := flagx.ConfigFile()
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	c := toJson(config)
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	c.apply(config)
	return nil
}
