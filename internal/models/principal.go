package models

import "github.com/google/uuid"

// Principal is the identity extracted from a verified bearer token.
// OrgID is uuid.Nil when the token was issued for an admin that was never
// bound to an organization.
type Principal struct {
	AdminID uuid.UUID
	OrgID   uuid.UUID
}
