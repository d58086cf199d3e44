// Package server wires the genesis components together and runs them until
// shutdown is requested: secret-manager login and renewal, the database
// pool, the token service and the HTTP server.
package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/genesis/internal/common"
	"github.com/dmitrijs2005/genesis/internal/logging"
	"github.com/dmitrijs2005/genesis/internal/server/config"
	"github.com/dmitrijs2005/genesis/internal/server/credentials"
	"github.com/dmitrijs2005/genesis/internal/server/database"
	"github.com/dmitrijs2005/genesis/internal/server/renewal"
	"github.com/dmitrijs2005/genesis/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/genesis/internal/server/shutdown"
	"github.com/dmitrijs2005/genesis/internal/server/vault"

	hs "github.com/dmitrijs2005/genesis/internal/server/http"
)

type App struct {
	config *config.Config
	logger logging.Logger
}

func NewApp(c *config.Config) (*App, error) {
	level, err := logging.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(logging.Options{
		Backend: c.LogBackend,
		Level:   level,
		Console: c.LogConsole,
	})
	if err != nil {
		return nil, err
	}

	return &App{config: c, logger: logger}, nil
}

// watchSignals triggers shutdown on the first signal received on sigs.
func (app *App) watchSignals(sd *shutdown.Coordinator, sigs <-chan os.Signal) {
	go func() {
		select {
		case sig := <-sigs:
			app.logger.Info(sd.Context(), "signal received", "signal", sig.String())
			sd.Trigger(common.ErrInterrupted)
		case <-sd.Done():
		}
	}()
}

func (app *App) initSignalHandler(sd *shutdown.Coordinator) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	app.watchSignals(sd, sigs)
}

func (app *App) startRenewal(ctx context.Context, sd *shutdown.Coordinator, store *credentials.Store) (*renewal.Handle, error) {
	c := app.config

	auth, err := vault.New(vault.Config{
		LoginURL:     c.VaultURL,
		RoleID:       c.VaultRoleID,
		SecretID:     c.VaultSecretID,
		WrappedToken: c.VaultWrappedToken,
		DatabasePath: c.VaultDatabasePath,
		Timeout:      c.RenewAttemptTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("vault init error: %w", err)
	}

	return renewal.Start(ctx, renewal.Config{
		Margin:         c.RenewMargin,
		MaxAttempts:    c.RenewMaxAttempts,
		Backoff:        c.RenewBackoff,
		AttemptTimeout: c.RenewAttemptTimeout,
	}, auth, store, sd.Trigger, app.logger)
}

func (app *App) openDatabase(ctx context.Context, store *credentials.Store, rm repomanager.RepositoryManager) (*database.Pool, error) {
	c := app.config

	db, err := database.Open(ctx, database.Config{
		DSN:         c.DatabaseDSN,
		MinConns:    c.PoolMinConns,
		MaxConns:    c.PoolMaxConns,
		MaxLifetime: c.PoolMaxLifetime,
	}, store)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	if c.RunMigrations {
		if err := rm.RunMigrations(ctx, db.DB); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrations error: %w", err)
		}
		app.logger.Info(ctx, "migrations applied")
	}
	return db, nil
}

// Run starts every component and blocks until shutdown. Startup failures
// are returned. An interrupt is a clean exit; renewal exhaustion or a server
// failure is returned as the shutdown cause.
func (app *App) Run(ctx context.Context) error {
	sd := shutdown.New(ctx)
	app.initSignalHandler(sd)

	app.logger.Info(ctx, "Starting app...")

	store := credentials.NewStore()
	renewer, err := app.startRenewal(sd.Context(), sd, store)
	if err != nil {
		sd.Trigger(err)
		return err
	}
	defer func() { <-renewer.Done() }()

	rm := repomanager.NewPostgresRepositoryManager()
	db, err := app.openDatabase(sd.Context(), store, rm)
	if err != nil {
		sd.Trigger(err)
		return err
	}
	defer db.Close()

	sup := newSupervisor(app.logger)
	tokens, hc := sup.tokenService(db.DB, rm, app.config, app.logger)

	srv := hs.NewHTTPServer(hs.Options{
		Address:       app.config.ListenAddr,
		IPHeader:      app.config.IPHeader,
		CountryHeader: app.config.CountryHeader,
		DrainTimeout:  app.config.DrainTimeout,
	}, app.logger, tokens, hc)

	if err := srv.Run(sd.Context()); err != nil {
		app.logger.Error(ctx, "http server failed", "error", err)
		sd.Trigger(err)
	}

	err = exitCause(sd)
	app.logger.Info(ctx, "app stopped", "cause", fmt.Sprint(sd.Cause()))
	return err
}

// exitCause settles the coordinator and maps its cause to Run's result.
// Interrupts and a cancelled parent are clean stops.
func exitCause(sd *shutdown.Coordinator) error {
	if !sd.Fired() {
		// the parent context ended; release the renewal loop
		sd.Trigger(nil)
		return nil
	}
	cause := sd.Cause()
	if errors.Is(cause, common.ErrInterrupted) || errors.Is(cause, context.Canceled) {
		return nil
	}
	return cause
}
