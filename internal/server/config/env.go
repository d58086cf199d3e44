package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Environment variables read by parseEnv.
const (
	EnvPort              = "GENESIS_PORT"
	EnvDSN               = "GENESIS_DSN"
	EnvVaultURL          = "GENESIS_VAULT_URL"
	EnvVaultRoleID       = "GENESIS_VAULT_ROLE_ID"
	EnvVaultSecretID     = "GENESIS_VAULT_SECRET_ID"
	EnvVaultWrappedToken = "GENESIS_VAULT_WRAPPED_TOKEN"
	EnvVaultDBPath       = "GENESIS_VAULT_DB_PATH"
	EnvLogLevel          = "GENESIS_LOG_LEVEL"
	EnvIPHeader          = "GENESIS_IP_HEADER"
	EnvCountryHeader     = "GENESIS_COUNTRY_HEADER"
	EnvTokenPolicy       = "GENESIS_TOKEN_POLICY"
)

// dotenvFile is loaded when present. Variables already set in the process
// environment win over the file.
var dotenvFile = ".env"

// parseEnv overlays GENESIS_* environment variables onto config.
func parseEnv(config *Config) error {
	if err := godotenv.Load(dotenvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", dotenvFile, err)
	}

	if v, ok := os.LookupEnv(EnvPort); ok {
		port, err := strconv.ParseUint(v, 10, 16)
		if err != nil {
			return fmt.Errorf("%s: invalid port %q", EnvPort, v)
		}
		config.ListenAddr = fmt.Sprintf(":%d", port)
	}

	strs := map[string]*string{
		EnvDSN:               &config.DatabaseDSN,
		EnvVaultURL:          &config.VaultURL,
		EnvVaultRoleID:       &config.VaultRoleID,
		EnvVaultSecretID:     &config.VaultSecretID,
		EnvVaultWrappedToken: &config.VaultWrappedToken,
		EnvVaultDBPath:       &config.VaultDatabasePath,
		EnvLogLevel:          &config.LogLevel,
		EnvIPHeader:          &config.IPHeader,
		EnvCountryHeader:     &config.CountryHeader,
		EnvTokenPolicy:       &config.TokenPolicy,
	}
	for name, dst := range strs {
		if v, ok := os.LookupEnv(name); ok {
			*dst = v
		}
	}

	return nil
}
