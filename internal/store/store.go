package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/wolfeidau/tenantd/internal/models"
)

// Sentinel errors for tenant store operations. The duplicate-key errors are
// distinct per constraint so callers can map them to user-facing "already
// exists" responses.
var (
	ErrOrganizationNotFound = errors.New("organization not found")
	ErrOrganizationExists   = errors.New("organization already exists")
	ErrAdminNotFound        = errors.New("admin not found")
	ErrDuplicateEmail       = errors.New("admin email already exists")
	ErrPartitionExists      = errors.New("partition already exists")
	ErrStoreUnavailable     = errors.New("store unavailable")
)

// AdminUpdate describes a partial update to an admin record. Nil fields are
// left unchanged.
type AdminUpdate struct {
	Email        *string
	PasswordHash *string
	OrgID        *uuid.UUID
}

// IsEmpty returns true if the update would change nothing.
func (u AdminUpdate) IsEmpty() bool {
	return u.Email == nil && u.PasswordHash == nil && u.OrgID == nil
}

// TenantStore defines the interface for the master store holding organization
// and admin records, plus dynamic creation and destruction of per-tenant
// partitions. Each call is individually atomic; multi-step provisioning
// sequences built on top of it are not.
type TenantStore interface {
	// FindOrganization retrieves an organization by its unique name.
	// Returns ErrOrganizationNotFound if absent.
	FindOrganization(ctx context.Context, name string) (*models.Organization, error)

	// FindAdmin retrieves an admin by its unique email.
	// Returns ErrAdminNotFound if absent.
	FindAdmin(ctx context.Context, email string) (*models.Admin, error)

	// InsertOrganization creates a new organization record.
	// Returns ErrOrganizationExists when the name or collection name is taken.
	InsertOrganization(ctx context.Context, org *models.Organization) error

	// InsertAdmin creates a new admin record.
	// Returns ErrDuplicateEmail when the email is taken.
	InsertAdmin(ctx context.Context, admin *models.Admin) error

	// UpdateAdmin applies a partial update to an admin record.
	// Returns ErrAdminNotFound if absent and ErrDuplicateEmail when an email
	// change collides with another admin.
	UpdateAdmin(ctx context.Context, adminID uuid.UUID, update AdminUpdate) error

	// DeleteOrganization removes an organization record by ID.
	// Returns ErrOrganizationNotFound if absent.
	DeleteOrganization(ctx context.Context, orgID uuid.UUID) error

	// DeleteAdmin removes an admin record by ID.
	// Returns ErrAdminNotFound if absent.
	DeleteAdmin(ctx context.Context, adminID uuid.UUID) error

	// CreatePartition creates the named tenant partition.
	// Returns ErrPartitionExists if it already exists.
	CreatePartition(ctx context.Context, name string) error

	// DropPartition removes the named tenant partition. Dropping a partition
	// that does not exist is not an error.
	DropPartition(ctx context.Context, name string) error

	// Close releases the underlying store connection.
	Close()
}
