package clients

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/genesis/internal/common"
	"github.com/dmitrijs2005/genesis/internal/dbx"
	"github.com/google/uuid"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetIDByUUID(ctx context.Context, id uuid.UUID) (int32, error) {
	query :=
		`SELECT id FROM clients
		 WHERE uuid = $1
		 `

	var clientID int32
	err := r.db.QueryOne(ctx, query, []any{id.String()}, &clientID)

	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return 0, common.ErrorNotFound
		}
		return 0, fmt.Errorf("db error: %w", err)
	}

	return clientID, nil
}
