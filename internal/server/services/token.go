// Package services contains server-side business logic. This file implements
// TokenService, which issues anonymous time-ordered tokens and verifies them.
package services

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/dmitrijs2005/genesis/internal/common"
	"github.com/dmitrijs2005/genesis/internal/dbx"
	"github.com/dmitrijs2005/genesis/internal/logging"
	"github.com/dmitrijs2005/genesis/internal/server/config"
	"github.com/dmitrijs2005/genesis/internal/server/metrics"
	"github.com/dmitrijs2005/genesis/internal/server/models"
	"github.com/dmitrijs2005/genesis/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// Store is the database access TokenService needs: plain statements plus
// transactions. *dbx.Gateway satisfies it.
type Store interface {
	dbx.DBTX
	InTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error
}

// Origin describes where an issue request came from. Every field is optional.
type Origin struct {
	IP        *netip.Addr
	Country   *string
	UserAgent *string
}

// IssuedToken is returned to the caller. ExpiresAt is set only under the
// explicit expiry policy.
type IssuedToken struct {
	Token     string
	ExpiresAt *time.Time
}

// VerifyOutcome is the result of verifying a well-formed token.
type VerifyOutcome int

const (
	// VerifyInvalid means the token is unknown or outside its validity window.
	VerifyInvalid VerifyOutcome = iota
	VerifyValid
)

func (o VerifyOutcome) String() string {
	if o == VerifyValid {
		return "valid"
	}
	return "invalid"
}

// TokenService issues and verifies tokens under one expiry policy.
type TokenService struct {
	db          Store
	repomanager repomanager.RepositoryManager
	policy      string
	ttl         time.Duration
	window      time.Duration
	log         logging.Logger
}

// NewTokenService constructs a TokenService using repositories and server config.
func NewTokenService(db Store, m repomanager.RepositoryManager, cfg *config.Config, log logging.Logger) *TokenService {
	return &TokenService{
		db:          db,
		repomanager: m,
		policy:      cfg.TokenPolicy,
		ttl:         cfg.TokenTTL,
		window:      cfg.TokenWindow,
		log:         log.With("module", "tokens"),
	}
}

// Issue creates a token for an optional client. A malformed client id fails
// with common.ErrInvalidClientID; an unknown client is not an error and the
// token is issued without a client. Token and metadata are written in one
// transaction; any failure is reported as common.ErrPersistence.
func (s *TokenService) Issue(ctx context.Context, clientID *string, origin Origin) (*IssuedToken, error) {
	issued, err := s.issue(ctx, clientID, origin)
	if !errors.Is(err, common.ErrInvalidClientID) {
		metrics.IncrementTokensIssued(err == nil)
	}
	return issued, err
}

func (s *TokenService) issue(ctx context.Context, clientID *string, origin Origin) (*IssuedToken, error) {
	client, err := s.resolveClient(ctx, clientID)
	if err != nil {
		return nil, err
	}

	token, err := models.NewToken(client)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}

	var expiresAt *time.Time
	err = s.db.InTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		if s.policy == config.PolicyExplicit {
			at, err := s.repomanager.Tokens(tx).CreateWithExpiry(ctx, token, s.ttl)
			if err != nil {
				return fmt.Errorf("error creating token: %w", err)
			}
			expiresAt = &at
		} else if err := s.repomanager.Tokens(tx).Create(ctx, token); err != nil {
			return fmt.Errorf("error creating token: %w", err)
		}

		meta := &models.Metadata{
			TokenID:   token.ID,
			IPAddress: origin.IP,
			Country:   origin.Country,
			UserAgent: origin.UserAgent,
		}
		if err := s.repomanager.Metadata(tx).Create(ctx, meta); err != nil {
			return fmt.Errorf("error creating metadata: %w", err)
		}
		return nil
	})
	if err != nil {
		s.log.Error(ctx, "token issue failed", "error", err)
		return nil, fmt.Errorf("%w: %w", common.ErrPersistence, err)
	}

	s.log.Debug(ctx, "token issued", "token", token.String(), "client_known", client != nil)
	return &IssuedToken{Token: token.String(), ExpiresAt: expiresAt}, nil
}

func (s *TokenService) resolveClient(ctx context.Context, clientID *string) (*int32, error) {
	if clientID == nil {
		return nil, nil
	}

	u, err := uuid.Parse(*clientID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidClientID, err)
	}

	id, err := s.repomanager.Clients(s.db).GetIDByUUID(ctx, u)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.log.Debug(ctx, "unknown client, issuing without association", "client", u.String())
			return nil, nil
		}
		return nil, fmt.Errorf("%w: error resolving client: %w", common.ErrPersistence, err)
	}
	return &id, nil
}

// Verify checks a token in a single query against the database clock.
// Malformed input fails with common.ErrMalformedToken before any query runs.
func (s *TokenService) Verify(ctx context.Context, text string) (VerifyOutcome, error) {
	id, err := models.ParseToken(text)
	if err != nil {
		metrics.IncrementTokensVerified(metrics.OutcomeMalformed)
		return VerifyInvalid, fmt.Errorf("%w: %v", common.ErrMalformedToken, err)
	}

	repo := s.repomanager.Tokens(s.db)

	var ok bool
	if s.policy == config.PolicyExplicit {
		ok, err = repo.IsValidUntilExpiry(ctx, id)
	} else {
		ok, err = repo.IsValidWithinWindow(ctx, id, s.window)
	}
	if err != nil {
		metrics.IncrementTokensVerified(metrics.OutcomeError)
		s.log.Error(ctx, "token verification failed", "error", err)
		return VerifyInvalid, fmt.Errorf("%w: %w", common.ErrPersistence, err)
	}

	if !ok {
		metrics.IncrementTokensVerified(metrics.OutcomeInvalid)
		return VerifyInvalid, nil
	}
	metrics.IncrementTokensVerified(metrics.OutcomeValid)
	return VerifyValid, nil
}
