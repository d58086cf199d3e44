// Package models defines server-side data models persisted in the database.
package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Token is an issued bearer value. Its ID is a UUIDv7, so the creation
// instant is embedded in the value and the text form sorts by issue time.
type Token struct {
	ID uuid.UUID
	// ClientID is nil when the token was issued without a known client.
	ClientID *int32
	// ExpiresAt is set only under the explicit expiry policy.
	ExpiresAt *time.Time
}

// NewToken generates a fresh time-ordered token.
func NewToken(clientID *int32) (*Token, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate token id: %w", err)
	}
	return &Token{ID: id, ClientID: clientID}, nil
}

// String returns the canonical text encoding handed to callers.
func (t *Token) String() string {
	return t.ID.String()
}

// CreatedAt returns the instant embedded in the token id.
func (t *Token) CreatedAt() time.Time {
	sec, nsec := t.ID.Time().UnixTime()
	return time.Unix(sec, nsec)
}

// ParseToken validates the lexical form of a token: a canonical UUID of
// version 7. Anything else is rejected without consulting the database.
func ParseToken(s string) (uuid.UUID, error) {
	if len(s) != 36 {
		return uuid.Nil, fmt.Errorf("token must be 36 characters, got %d", len(s))
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, err
	}
	if id.Version() != 7 || id.Variant() != uuid.RFC4122 {
		return uuid.Nil, fmt.Errorf("unsupported token version %d", id.Version())
	}
	return id, nil
}
