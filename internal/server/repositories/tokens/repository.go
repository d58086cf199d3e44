package tokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/genesis/internal/server/models"
	"github.com/google/uuid"
)

// Repository persists tokens and answers validity questions in a single
// round trip each, evaluated against the database clock.
type Repository interface {
	// Create stores a token without an explicit expiry.
	Create(ctx context.Context, token *models.Token) error
	// CreateWithExpiry stores a token expiring ttl after the database's now()
	// and returns that instant.
	CreateWithExpiry(ctx context.Context, token *models.Token, ttl time.Duration) (time.Time, error)
	// IsValidUntilExpiry reports whether the token exists and its stored expiry is in the future.
	IsValidUntilExpiry(ctx context.Context, id uuid.UUID) (bool, error)
	// IsValidWithinWindow reports whether the token exists and its embedded
	// creation time is less than window ago.
	IsValidWithinWindow(ctx context.Context, id uuid.UUID, window time.Duration) (bool, error)
}
