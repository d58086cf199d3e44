// Package http exposes the token service over HTTP using fiber.
package http

import (
	"context"
	"net"
	"time"

	"github.com/dmitrijs2005/genesis/internal/logging"
	"github.com/dmitrijs2005/genesis/internal/server/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// TokenService is the subset of services.TokenService used by the handlers.
type TokenService interface {
	Issue(ctx context.Context, clientID *string, origin services.Origin) (*services.IssuedToken, error)
	Verify(ctx context.Context, text string) (services.VerifyOutcome, error)
}

// Pinger reports database reachability for /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options are resolved once at startup.
type Options struct {
	Address       string
	IPHeader      string
	CountryHeader string
	// DrainTimeout bounds the graceful drain; 0 waits indefinitely.
	DrainTimeout time.Duration
}

type HTTPServer struct {
	address       string
	ipHeader      string
	countryHeader string
	drainTimeout  time.Duration

	tokens   TokenService
	db       Pinger
	logger   logging.Logger
	validate *validator.Validate
	app      *fiber.App
}

func NewHTTPServer(opts Options, l logging.Logger, tokens TokenService, db Pinger) *HTTPServer {
	s := &HTTPServer{
		address:       opts.Address,
		ipHeader:      opts.IPHeader,
		countryHeader: opts.CountryHeader,
		drainTimeout:  opts.DrainTimeout,
		tokens:        tokens,
		db:            db,
		logger:        l.With("module", "http_server"),
		validate:      validator.New(validator.WithRequiredStructEnabled()),
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "genesis",
		DisableStartupMessage: true,
		Immutable:             true,
		ErrorHandler:          s.errorHandler,
	})
	s.routes()
	return s
}

// Run listens on the configured address and serves until ctx is cancelled,
// then stops accepting and drains in-flight requests.
func (s *HTTPServer) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *HTTPServer) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.app.Listener(ln)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", ln.Addr().String())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info(ctx, "Stopping HTTP server, draining requests...")

	drainCtx := context.Background()
	if s.drainTimeout > 0 {
		var cancel context.CancelFunc
		drainCtx, cancel = context.WithTimeout(drainCtx, s.drainTimeout)
		defer cancel()
	}

	err := s.app.ShutdownWithContext(drainCtx)
	if lerr := <-errCh; err == nil {
		err = lerr
	}
	return err
}
