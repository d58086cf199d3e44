package metadata

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/genesis/internal/dbx"
	"github.com/dmitrijs2005/genesis/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, m *models.Metadata) error {
	query :=
		`INSERT INTO metadata (id, ip_address, country, user_agent)
		 VALUES ($1, $2::inet, $3, $4)
		 `

	var ip any
	if m.IPAddress != nil {
		ip = m.IPAddress.String()
	}

	_, err := r.db.Exec(ctx, query, m.TokenID.String(), ip, optional(m.Country), optional(m.UserAgent))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func optional(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
