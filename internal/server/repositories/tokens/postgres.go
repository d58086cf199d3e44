package tokens

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/genesis/internal/dbx"
	"github.com/dmitrijs2005/genesis/internal/server/models"
	"github.com/google/uuid"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// clientArg turns an optional client key into a nullable parameter.
func clientArg(id *int32) any {
	if id == nil {
		return nil
	}
	return *id
}

func (r *PostgresRepository) Create(ctx context.Context, token *models.Token) error {
	query :=
		`INSERT INTO tokens (id, client_id)
		 VALUES ($1, $2)
		 `

	_, err := r.db.Exec(ctx, query, token.String(), clientArg(token.ClientID))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) CreateWithExpiry(ctx context.Context, token *models.Token, ttl time.Duration) (time.Time, error) {
	query :=
		`INSERT INTO tokens (id, client_id, expires_at)
		 VALUES ($1, $2, now() + make_interval(secs => $3))
		 RETURNING expires_at
		 `

	var expiresAt time.Time
	err := r.db.QueryOne(ctx, query, []any{token.String(), clientArg(token.ClientID), ttl.Seconds()}, &expiresAt)
	if err != nil {
		return time.Time{}, fmt.Errorf("db error: %w", err)
	}

	token.ExpiresAt = &expiresAt
	return expiresAt, nil
}

func (r *PostgresRepository) IsValidUntilExpiry(ctx context.Context, id uuid.UUID) (bool, error) {
	query :=
		`SELECT EXISTS (
		     SELECT 1 FROM tokens
		     WHERE id = $1 AND expires_at > now()
		 )
		 `

	return r.exists(ctx, query, id.String())
}

func (r *PostgresRepository) IsValidWithinWindow(ctx context.Context, id uuid.UUID, window time.Duration) (bool, error) {
	query :=
		`SELECT EXISTS (
		     SELECT 1 FROM tokens
		     WHERE id = $1 AND token_created_at(id) > now() - make_interval(secs => $2)
		 )
		 `

	return r.exists(ctx, query, id.String(), window.Seconds())
}

func (r *PostgresRepository) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var ok bool
	if err := r.db.QueryOne(ctx, query, args, &ok); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return ok, nil
}
