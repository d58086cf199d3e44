package server

import (
	"context"
	"database/sql"
	"errors"
	"os"

	"github.com/dmitrijs2005/genesis/internal/dbx"
	"github.com/dmitrijs2005/genesis/internal/logging"
	"github.com/dmitrijs2005/genesis/internal/server/config"
	"github.com/dmitrijs2005/genesis/internal/server/metrics"
	"github.com/dmitrijs2005/genesis/internal/server/privilege"
	"github.com/dmitrijs2005/genesis/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/genesis/internal/server/services"
)

// ExitCodePrivilegeLoss is the process exit status after the database
// credential has lost its grants.
const ExitCodePrivilegeLoss = 3

var osExit = os.Exit

var errPrivilegeLost = errors.New("database privilege lost")

// supervisor is the only place that terminates the process. Every other
// layer propagates privilege.LossError untouched.
type supervisor struct {
	logger logging.Logger
}

func newSupervisor(l logging.Logger) *supervisor {
	return &supervisor{logger: l.With("module", "supervisor")}
}

func (s *supervisor) onPrivilegeLoss(le *privilege.LossError) {
	s.logger.Critical(context.Background(), "database privilege lost, terminating", "error", le.Error())
	metrics.IncrementPrivilegeLoss()
	osExit(ExitCodePrivilegeLoss)
}

// tokenService builds the gateway with privilege-loss detection and the
// token service on top of it, plus the health check served on /health.
func (s *supervisor) tokenService(db *sql.DB, rm repomanager.RepositoryManager, cfg *config.Config, l logging.Logger) (*services.TokenService, *health) {
	detector := privilege.NewDetector(s.onPrivilegeLoss)
	gw := dbx.New(db, detector.Observe)
	return services.NewTokenService(gw, rm, cfg, l), &health{gw: gw, detector: detector}
}

// health reports unhealthy without touching the database once the
// credential has lost its grants.
type health struct {
	gw       *dbx.Gateway
	detector *privilege.Detector
}

func (h *health) Ping(ctx context.Context) error {
	if h.detector.Lost() {
		return errPrivilegeLost
	}
	return h.gw.Ping(ctx)
}
