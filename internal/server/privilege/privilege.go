// Package privilege recognises the database error that means the credential
// in use has lost its grants.
package privilege

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// LossError marks an error caused by revoked or rotated database grants.
// It is propagated untouched to the supervisor, which terminates the process.
type LossError struct {
	Err error
}

func (e *LossError) Error() string {
	return "database privilege lost: " + e.Err.Error()
}

func (e *LossError) Unwrap() error {
	return e.Err
}

// IsLoss reports whether err is, or wraps, a LossError.
func IsLoss(err error) bool {
	var le *LossError
	return errors.As(err, &le)
}

// isInsufficientPrivilege checks the SQLSTATE of a server-reported error.
func isInsufficientPrivilege(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.InsufficientPrivilege
}

// Detector observes database errors. The first privilege loss invokes
// onLoss; every privilege-loss error is returned as a *LossError.
type Detector struct {
	onLoss func(*LossError)
	once   sync.Once
	lost   atomic.Bool
}

func NewDetector(onLoss func(*LossError)) *Detector {
	return &Detector{onLoss: onLoss}
}

// Observe passes err through, converting privilege loss into *LossError.
// It has the shape of dbx.Observer.
func (d *Detector) Observe(err error) error {
	if err == nil || IsLoss(err) || !isInsufficientPrivilege(err) {
		return err
	}

	le := &LossError{Err: err}
	d.lost.Store(true)
	d.once.Do(func() {
		if d.onLoss != nil {
			d.onLoss(le)
		}
	})
	return le
}

// Lost reports whether privilege loss has been observed.
func (d *Detector) Lost() bool {
	return d.lost.Load()
}
