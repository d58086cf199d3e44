package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/dmitrijs2005/genesis/internal/flagx"
)

var knownFlags = []string{
	"-addr", "-port", "-p", "-dsn", "-d", "-migrate",
	"-vault-url", "-vault-role-id", "-vault-secret-id", "-vault-wrapped-token", "-vault-db-path",
	"-token-policy", "-token-ttl", "-token-window",
	"-ip-header", "-country-header",
	"-log-level", "-verbose", "-v", "-log-backend", "-log-console",
	"-drain-timeout",
}

// parseFlags overlays command-line flags onto config.
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, so -c/-config handled by parseJson do not collide.
func parseFlags(config *Config) error {
	args := flagx.FilterArgs(os.Args[1:], knownFlags)

	fs := flag.NewFlagSet("genesis", flag.ContinueOnError)

	fs.StringVar(&config.ListenAddr, "addr", config.ListenAddr, "address and port to listen on")
	port := func(v string) error {
		n, err := strconv.ParseUint(v, 10, 16)
		if err != nil {
			return fmt.Errorf("invalid port %q", v)
		}
		config.ListenAddr = fmt.Sprintf(":%d", n)
		return nil
	}
	fs.Func("port", "port to listen on (all interfaces)", port)
	fs.Func("p", "port to listen on (short)", port)
	fs.StringVar(&config.DatabaseDSN, "dsn", config.DatabaseDSN, "PostgreSQL DSN")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "PostgreSQL DSN (short)")
	fs.BoolVar(&config.RunMigrations, "migrate", config.RunMigrations, "apply embedded migrations at startup")

	fs.StringVar(&config.VaultURL, "vault-url", config.VaultURL, "Vault AppRole login URL")
	fs.StringVar(&config.VaultRoleID, "vault-role-id", config.VaultRoleID, "Vault AppRole role id")
	fs.StringVar(&config.VaultSecretID, "vault-secret-id", config.VaultSecretID, "Vault AppRole secret id")
	fs.StringVar(&config.VaultWrappedToken, "vault-wrapped-token", config.VaultWrappedToken, "response-wrapped secret id")
	fs.StringVar(&config.VaultDatabasePath, "vault-db-path", config.VaultDatabasePath, "Vault dynamic database credential path")

	fs.StringVar(&config.TokenPolicy, "token-policy", config.TokenPolicy, "token expiry policy: explicit or window")
	fs.DurationVar(&config.TokenTTL, "token-ttl", config.TokenTTL, "token lifetime for the explicit policy")
	fs.DurationVar(&config.TokenWindow, "token-window", config.TokenWindow, "token age bound for the window policy")

	fs.StringVar(&config.IPHeader, "ip-header", config.IPHeader, "header carrying the client IP when X-Forwarded-For is absent")
	fs.StringVar(&config.CountryHeader, "country-header", config.CountryHeader, "header carrying the client country code")

	fs.StringVar(&config.LogLevel, "log-level", config.LogLevel, "log level: error, warn, info, debug, trace or 0-5")
	fs.StringVar(&config.LogLevel, "verbose", config.LogLevel, "log level (alias)")
	fs.StringVar(&config.LogLevel, "v", config.LogLevel, "log level (short)")
	fs.StringVar(&config.LogBackend, "log-backend", config.LogBackend, "log backend: slog or zerolog")
	fs.BoolVar(&config.LogConsole, "log-console", config.LogConsole, "human-readable console logs (zerolog)")

	fs.DurationVar(&config.DrainTimeout, "drain-timeout", config.DrainTimeout, "graceful drain bound, 0 waits indefinitely")

	return fs.Parse(args)
}
