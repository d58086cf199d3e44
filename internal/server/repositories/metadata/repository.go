package metadata

import (
	"context"

	"github.com/dmitrijs2005/genesis/internal/server/models"
)

// Repository stores the request metadata that accompanies every token.
type Repository interface {
	Create(ctx context.Context, m *models.Metadata) error
}
