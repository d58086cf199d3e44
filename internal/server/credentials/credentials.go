// Package credentials holds the lease currently granted by the secret
// manager. There is exactly one writer (the renewal coordinator) and any
// number of readers.
package credentials

import (
	"sync/atomic"
	"time"
)

// DatabaseCredential is a username/password pair leased for the database.
type DatabaseCredential struct {
	Username string
	Password string
}

// Lease is one grant from the secret manager.
type Lease struct {
	// Token authenticates further calls to the secret manager.
	Token     string
	TTL       time.Duration
	Renewable bool
	IssuedAt  time.Time
	// LeaseID and Database are set when dynamic database credentials were read.
	LeaseID  string
	Database *DatabaseCredential
}

// ExpiresAt returns the instant the lease runs out. A zero TTL never expires
// and yields the zero time.
func (l *Lease) ExpiresAt() time.Time {
	if l.TTL <= 0 {
		return time.Time{}
	}
	return l.IssuedAt.Add(l.TTL)
}

// Store is the process-wide holder of the current lease.
type Store struct {
	current atomic.Pointer[Lease]
}

func NewStore() *Store {
	return &Store{}
}

// Current returns the live lease, or nil before the first login.
// The returned value must not be mutated.
func (s *Store) Current() *Lease {
	return s.current.Load()
}

// Set publishes a new lease. Only the renewal coordinator calls it.
func (s *Store) Set(l *Lease) {
	s.current.Store(l)
}

// DatabaseCredential returns the leased database credential, if any.
func (s *Store) DatabaseCredential() (DatabaseCredential, bool) {
	l := s.current.Load()
	if l == nil || l.Database == nil {
		return DatabaseCredential{}, false
	}
	return *l.Database, true
}
