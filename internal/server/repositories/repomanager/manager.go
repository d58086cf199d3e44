package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/genesis/internal/dbx"
	"github.com/dmitrijs2005/genesis/internal/server/repositories/clients"
	"github.com/dmitrijs2005/genesis/internal/server/repositories/metadata"
	"github.com/dmitrijs2005/genesis/internal/server/repositories/tokens"
)

// RepositoryManager vends repositories bound to a DBTX, so the same code
// runs against the pool or inside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Clients(db dbx.DBTX) clients.Repository
	Tokens(db dbx.DBTX) tokens.Repository
	Metadata(db dbx.DBTX) metadata.Repository
}
