package models

import "github.com/google/uuid"

// Client is an external identity. Only lookups by UUID are performed.
type Client struct {
	ID   int32
	UUID uuid.UUID
}
