package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/tenantd/internal/auth"
	"github.com/wolfeidau/tenantd/internal/models"
	"github.com/wolfeidau/tenantd/internal/store"
)

// Sentinel errors for authorization outcomes on protected operations.
var (
	// ErrForbidden is returned when an authenticated principal is bound to a
	// different organization than the one it is operating on.
	ErrForbidden = errors.New("not authorized for this organization")

	// ErrInvalidArgument is returned when a request is missing required fields.
	ErrInvalidArgument = errors.New("invalid argument")
)

// collectionPrefix is prepended to the organization name to derive the tenant
// partition name. A fixed prefix keeps the derivation injective.
const collectionPrefix = "org_"

// CollectionNameFor derives the tenant partition name for an organization.
func CollectionNameFor(orgName string) string {
	return collectionPrefix + orgName
}

// ProvisioningService orchestrates the multi-step organization lifecycle
// against the tenant store. Individual store calls are atomic; the sequences
// here are not, so failures after the first write trigger compensating
// deletes of the earlier steps.
type ProvisioningService struct {
	store store.TenantStore
}

// NewProvisioningService creates a provisioning service on top of a tenant store.
func NewProvisioningService(st store.TenantStore) *ProvisioningService {
	return &ProvisioningService{
		store: st,
	}
}

// CreateOrganization provisions a tenant: admin record, organization record,
// org-id backfill, then the physical partition. The admin email conflict is
// checked by the store's unique index, so concurrent creates race safely.
func (s *ProvisioningService) CreateOrganization(ctx context.Context, name, email, password string) (*models.Organization, error) {
	if name == "" || email == "" || password == "" {
		return nil, fmt.Errorf("%w: organization name, email and password are required", ErrInvalidArgument)
	}

	if _, err := s.store.FindOrganization(ctx, name); err == nil {
		return nil, fmt.Errorf("%w: organization name %q is taken", store.ErrOrganizationExists, name)
	} else if !errors.Is(err, store.ErrOrganizationNotFound) {
		return nil, err
	}

	collectionName := CollectionNameFor(name)

	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	adminID, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	admin := &models.Admin{
		AdminID:      adminID,
		Email:        email,
		PasswordHash: passwordHash,
		OrgID:        nil, // backfilled once the organization exists
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.store.InsertAdmin(ctx, admin); err != nil {
		if errors.Is(err, store.ErrStoreUnavailable) {
			return nil, err
		}
		// Anything else during admin creation, including races on the unique
		// email index, surfaces as a duplicate email conflict.
		return nil, fmt.Errorf("%w: %s", store.ErrDuplicateEmail, email)
	}

	orgID, err := uuid.NewV7()
	if err != nil {
		s.rollback(admin, nil)
		return nil, err
	}

	org := &models.Organization{
		OrgID:          orgID,
		Name:           name,
		CollectionName: collectionName,
		AdminID:        adminID,
		IsActive:       true,
		CreatedAt:      now,
	}

	if err := s.store.InsertOrganization(ctx, org); err != nil {
		s.rollback(admin, nil)
		return nil, err
	}

	if err := s.store.UpdateAdmin(ctx, adminID, store.AdminUpdate{OrgID: &orgID}); err != nil {
		s.rollback(admin, org)
		return nil, err
	}

	if err := s.store.CreatePartition(ctx, collectionName); err != nil {
		s.rollback(admin, org)
		return nil, err
	}

	log.Info().
		Str("org_id", orgID.String()).
		Str("name", name).
		Str("partition", collectionName).
		Msg("Provisioned organization")

	return org, nil
}

// rollback undoes the completed steps of a failed provisioning sequence. A
// rollback failure leaves orphaned records behind; those are logged at error
// level with their IDs so operators can reconcile.
func (s *ProvisioningService) rollback(admin *models.Admin, org *models.Organization) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if org != nil {
		if err := s.store.DeleteOrganization(ctx, org.OrgID); err != nil {
			log.Error().Err(err).
				Str("org_id", org.OrgID.String()).
				Msg("Provisioning rollback failed to delete organization, manual reconciliation required")
		}
	}
	if admin != nil {
		if err := s.store.DeleteAdmin(ctx, admin.AdminID); err != nil {
			log.Error().Err(err).
				Str("admin_id", admin.AdminID.String()).
				Msg("Provisioning rollback failed to delete admin, manual reconciliation required")
		}
	}
}

// GetOrganization looks up an organization by name. This read is
// intentionally unauthenticated, matching the public directory behaviour of
// the create endpoint's duplicate check.
func (s *ProvisioningService) GetOrganization(ctx context.Context, name string) (*models.Organization, error) {
	return s.store.FindOrganization(ctx, name)
}

// DeleteOrganization tears down a tenant: partition first, then the admin and
// organization records. Only the organization's own admin may delete it.
func (s *ProvisioningService) DeleteOrganization(ctx context.Context, name string, principal *models.Principal) error {
	org, err := s.store.FindOrganization(ctx, name)
	if err != nil {
		return err
	}

	if principal == nil || principal.OrgID != org.OrgID {
		return ErrForbidden
	}

	// Partition drop comes first to minimise the window where master records
	// reference live tenant data. A crash mid-sequence can still leave
	// records behind; there is no background reconciliation.
	if err := s.store.DropPartition(ctx, org.CollectionName); err != nil {
		return err
	}

	if err := s.store.DeleteAdmin(ctx, org.AdminID); err != nil && !errors.Is(err, store.ErrAdminNotFound) {
		log.Error().Err(err).
			Str("org_id", org.OrgID.String()).
			Str("admin_id", org.AdminID.String()).
			Msg("Failed to delete admin during teardown, manual reconciliation required")
		return err
	}

	if err := s.store.DeleteOrganization(ctx, org.OrgID); err != nil && !errors.Is(err, store.ErrOrganizationNotFound) {
		log.Error().Err(err).
			Str("org_id", org.OrgID.String()).
			Msg("Failed to delete organization record during teardown, manual reconciliation required")
		return err
	}

	log.Info().
		Str("org_id", org.OrgID.String()).
		Str("name", org.Name).
		Msg("Deleted organization")

	return nil
}

// UpdateAdmin changes the admin's email and/or password for an organization.
// Only the organization's own admin may update it. Returns false without
// touching the store when no fields were supplied.
func (s *ProvisioningService) UpdateAdmin(ctx context.Context, name string, principal *models.Principal, newEmail, newPassword *string) (bool, error) {
	org, err := s.store.FindOrganization(ctx, name)
	if err != nil {
		return false, err
	}

	if principal == nil || principal.OrgID != org.OrgID {
		return false, ErrForbidden
	}

	update := store.AdminUpdate{}

	if newEmail != nil && *newEmail != "" {
		existing, err := s.store.FindAdmin(ctx, *newEmail)
		if err == nil && existing.AdminID != principal.AdminID {
			return false, fmt.Errorf("%w: %s", store.ErrDuplicateEmail, *newEmail)
		}
		if err != nil && !errors.Is(err, store.ErrAdminNotFound) {
			return false, err
		}
		update.Email = newEmail
	}

	if newPassword != nil && *newPassword != "" {
		passwordHash, err := auth.HashPassword(*newPassword)
		if err != nil {
			return false, fmt.Errorf("failed to hash password: %w", err)
		}
		update.PasswordHash = &passwordHash
	}

	if update.IsEmpty() {
		return false, nil
	}

	if err := s.store.UpdateAdmin(ctx, principal.AdminID, update); err != nil {
		return false, err
	}

	log.Info().
		Str("org_id", org.OrgID.String()).
		Str("admin_id", principal.AdminID.String()).
		Msg("Updated admin details")

	return true, nil
}
