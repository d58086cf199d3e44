// Package database opens the PostgreSQL connection pool used by the gateway.
// Each new physical connection authenticates with the credential currently
// held by the credential store, so rotated leases take effect without a
// restart.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/genesis/internal/server/credentials"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

// CredentialSource supplies the username/password for new connections.
// *credentials.Store satisfies it.
type CredentialSource interface {
	DatabaseCredential() (credentials.DatabaseCredential, bool)
}

// Config describes the pool.
type Config struct {
	DSN         string
	MinConns    int
	MaxConns    int
	MaxLifetime time.Duration
}

// Pool is a pgx pool exposed through database/sql. The pgx pool owns the
// physical connections: it keeps MinConns open, recycles them after
// MaxLifetime and pings every connection before handing it out.
type Pool struct {
	*sql.DB
	pgx *pgxpool.Pool
}

// Close closes the database/sql handle and then the underlying pool.
func (p *Pool) Close() error {
	err := p.DB.Close()
	p.pgx.Close()
	return err
}

// Open builds the pool and verifies that the database is reachable.
func Open(ctx context.Context, cfg Config, creds CredentialSource) (*Pool, error) {
	pc, err := poolConfig(cfg, creds)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("database pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database ping: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	db.SetMaxOpenConns(cfg.MaxConns)
	return &Pool{DB: db, pgx: pool}, nil
}

func poolConfig(cfg Config, creds CredentialSource) (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}

	pc.MinConns = int32(cfg.MinConns)
	pc.MaxConns = int32(cfg.MaxConns)
	if cfg.MaxLifetime > 0 {
		pc.MaxConnLifetime = cfg.MaxLifetime
	}
	pc.BeforeConnect = injectCredentials(creds)
	pc.ShouldPing = pingAlways
	return pc, nil
}

// injectCredentials overrides the DSN's user and password with the leased
// database credential, when one is present.
func injectCredentials(creds CredentialSource) func(context.Context, *pgx.ConnConfig) error {
	return func(_ context.Context, cc *pgx.ConnConfig) error {
		if creds == nil {
			return nil
		}
		if c, ok := creds.DatabaseCredential(); ok {
			cc.User = c.Username
			cc.Password = c.Password
		}
		return nil
	}
}

// pingAlways makes the pool check every connection before use. A connection
// that fails the ping is destroyed and the acquire moves on to another one.
func pingAlways(context.Context, pgxpool.ShouldPingParams) bool {
	return true
}
