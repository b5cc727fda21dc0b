package models

import (
	"time"

	"github.com/google/uuid"
)

// Organization represents a tenant in the registry. Each organization owns
// exactly one admin and one physical storage partition, named by
// CollectionName.
type Organization struct {
	OrgID          uuid.UUID // UUIDv7
	Name           string    // Human chosen, globally unique, immutable
	CollectionName string    // Derived from Name, globally unique, names the tenant partition
	AdminID        uuid.UUID // UUIDv7, the single owning admin
	IsActive       bool
	CreatedAt      time.Time
}

// Admin represents the single administrator account for an organization.
// OrgID is nil only during the short window between admin insert and the
// organization-id backfill while a tenant is being provisioned.
type Admin struct {
	AdminID      uuid.UUID // UUIDv7
	Email        string    // Globally unique
	PasswordHash string    // bcrypt hash, never plaintext
	OrgID        *uuid.UUID
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
