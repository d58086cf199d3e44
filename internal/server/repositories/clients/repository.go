package clients

import (
	"context"

	"github.com/google/uuid"
)

// Repository resolves external client identifiers to internal keys.
type Repository interface {
	// GetIDByUUID returns common.ErrorNotFound when no client matches.
	GetIDByUUID(ctx context.Context, id uuid.UUID) (int32, error)
}
