package models

import (
	"net/netip"

	"github.com/google/uuid"
)

// Metadata is written together with its Token in one transaction.
// Every attribute is optional.
type Metadata struct {
	TokenID   uuid.UUID
	IPAddress *netip.Addr
	Country   *string
	UserAgent *string
}
