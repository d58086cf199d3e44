// Package common defines shared constants and sentinel errors used across
// the genesis server layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal = errors.New("internal error")

	// ErrPersistence wraps any failure to read or write tokens.
	ErrPersistence = errors.New("persistence failure")

	// Validation errors, reported to callers as client errors.
	ErrInvalidClientID = errors.New("invalid client id")
	ErrMalformedToken  = errors.New("malformed token")

	// Process lifecycle causes, carried by the shutdown context.
	ErrRenewalExhausted = errors.New("credential renewal retries exhausted")
	ErrInterrupted      = errors.New("interrupted by signal")
)
