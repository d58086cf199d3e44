// Package dbx is the database gateway used by repositories: a narrow
// statement interface (DBTX) implemented by both the pooled Gateway and a
// transaction, plus a helper to run functions inside a transaction.
//
// Every error leaving the package passes through the Gateway's Observer, so
// callers further up see whatever the observer decided to return.
package dbx

import (
	"context"
	"database/sql"
	"errors"

	"github.com/dmitrijs2005/genesis/internal/common"
)

// DBTX is the subset of statement execution used by repositories.
// Both *Gateway and *Tx satisfy this interface.
type DBTX interface {
	// Exec runs a statement and reports the number of affected rows.
	Exec(ctx context.Context, query string, args ...any) (int64, error)
	// QueryOne scans exactly one row into dest. Zero rows yield common.ErrorNotFound.
	QueryOne(ctx context.Context, query string, args []any, dest ...any) error
	// QueryOptional scans the first row into dest and reports whether a row was found.
	QueryOptional(ctx context.Context, query string, args []any, dest ...any) (bool, error)
}

// Observer inspects an error before it is handed to the caller and returns
// the error the caller should see.
type Observer func(error) error

func passThrough(err error) error { return err }

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Gateway executes statements on a pooled *sql.DB.
type Gateway struct {
	db      *sql.DB
	observe Observer
}

// New wraps db. A nil observe passes errors through unchanged.
func New(db *sql.DB, observe Observer) *Gateway {
	if observe == nil {
		observe = passThrough
	}
	return &Gateway{db: db, observe: observe}
}

func (g *Gateway) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	return exec(ctx, g.db, g.observe, query, args)
}

func (g *Gateway) QueryOne(ctx context.Context, query string, args []any, dest ...any) error {
	return queryOne(ctx, g.db, g.observe, query, args, dest)
}

func (g *Gateway) QueryOptional(ctx context.Context, query string, args []any, dest ...any) (bool, error) {
	return queryOptional(ctx, g.db, g.observe, query, args, dest)
}

// Ping checks that a connection can be acquired and is alive.
func (g *Gateway) Ping(ctx context.Context) error {
	if err := g.db.PingContext(ctx); err != nil {
		return g.observe(err)
	}
	return nil
}

// Begin starts a transaction. The caller must finish it with exactly one of
// Commit or Rollback; InTx does this automatically.
func (g *Gateway) Begin(ctx context.Context, opts *sql.TxOptions) (*Tx, error) {
	tx, err := g.db.BeginTx(ctx, opts)
	if err != nil {
		return nil, g.observe(err)
	}
	return &Tx{tx: tx, observe: g.observe}, nil
}

// InTx begins a transaction, runs fn with a transactional handle, and then
// commits on success or rolls back on error/panic. Panics are rethrown.
//
// Typical use:
//
//	err := gw.InTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
//	    _, err := tx.Exec(ctx, "INSERT ...")
//	    return err
//	})
func (g *Gateway) InTx(ctx context.Context, fn func(ctx context.Context, tx DBTX) error) (err error) {
	tx, err := g.Begin(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	err = fn(ctx, tx)
	return err
}

// Tx is a transaction bound to one pooled connection.
type Tx struct {
	tx      *sql.Tx
	observe Observer
}

func (t *Tx) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	return exec(ctx, t.tx, t.observe, query, args)
}

func (t *Tx) QueryOne(ctx context.Context, query string, args []any, dest ...any) error {
	return queryOne(ctx, t.tx, t.observe, query, args, dest)
}

func (t *Tx) QueryOptional(ctx context.Context, query string, args []any, dest ...any) (bool, error) {
	return queryOptional(ctx, t.tx, t.observe, query, args, dest)
}

func (t *Tx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return t.observe(err)
	}
	return nil
}

// Rollback aborts the transaction. Rolling back an already finished
// transaction is a no-op.
func (t *Tx) Rollback() error {
	err := t.tx.Rollback()
	if err == nil || errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return t.observe(err)
}

func exec(ctx context.Context, q querier, observe Observer, query string, args []any) (int64, error) {
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, observe(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, observe(err)
	}
	return n, nil
}

func queryOne(ctx context.Context, q querier, observe Observer, query string, args []any, dest []any) error {
	err := q.QueryRowContext(ctx, query, args...).Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return common.ErrorNotFound
	}
	if err != nil {
		return observe(err)
	}
	return nil
}

func queryOptional(ctx context.Context, q querier, observe Observer, query string, args []any, dest []any) (bool, error) {
	err := q.QueryRowContext(ctx, query, args...).Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, observe(err)
	}
	return true, nil
}
