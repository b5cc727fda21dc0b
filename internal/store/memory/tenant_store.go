package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wolfeidau/tenantd/internal/models"
	"github.com/wolfeidau/tenantd/internal/store"
)

var _ store.TenantStore = (*TenantStore)(nil)

// TenantStore implements store.TenantStore using in-memory storage.
// This implementation is for testing and development only - data is lost on
// restart.
type TenantStore struct {
	mu sync.RWMutex

	organizations map[uuid.UUID]*models.Organization // org_id -> Organization
	admins        map[uuid.UUID]*models.Admin        // admin_id -> Admin
	partitions    map[string]struct{}                // collection_name -> exists
}

// NewTenantStore creates a new in-memory tenant store.
func NewTenantStore() *TenantStore {
	return &TenantStore{
		organizations: make(map[uuid.UUID]*models.Organization),
		admins:        make(map[uuid.UUID]*models.Admin),
		partitions:    make(map[string]struct{}),
	}
}

// FindOrganization retrieves an organization by name.
func (s *TenantStore) FindOrganization(ctx context.Context, name string) (*models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, org := range s.organizations {
		if org.Name == name {
			// Clone to avoid external modifications
			clone := *org
			return &clone, nil
		}
	}

	return nil, store.ErrOrganizationNotFound
}

// FindAdmin retrieves an admin by email.
func (s *TenantStore) FindAdmin(ctx context.Context, email string) (*models.Admin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, admin := range s.admins {
		if admin.Email == email {
			return cloneAdmin(admin), nil
		}
	}

	return nil, store.ErrAdminNotFound
}

// cloneAdmin copies an admin record, including the org binding, so callers
// cannot write through to the stored record.
func cloneAdmin(admin *models.Admin) *models.Admin {
	clone := *admin
	if admin.OrgID != nil {
		orgID := *admin.OrgID
		clone.OrgID = &orgID
	}
	return &clone
}

// InsertOrganization creates a new organization, enforcing the unique name
// and collection name constraints.
func (s *TenantStore) InsertOrganization(ctx context.Context, org *models.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.organizations {
		if existing.Name == org.Name || existing.CollectionName == org.CollectionName {
			return store.ErrOrganizationExists
		}
	}
	if _, exists := s.organizations[org.OrgID]; exists {
		return store.ErrOrganizationExists
	}

	clone := *org
	s.organizations[org.OrgID] = &clone

	return nil
}

// InsertAdmin creates a new admin, enforcing the unique email constraint.
func (s *TenantStore) InsertAdmin(ctx context.Context, admin *models.Admin) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.admins {
		if existing.Email == admin.Email {
			return store.ErrDuplicateEmail
		}
	}
	if _, exists := s.admins[admin.AdminID]; exists {
		return store.ErrDuplicateEmail
	}

	s.admins[admin.AdminID] = cloneAdmin(admin)

	return nil
}

// UpdateAdmin applies a partial update to an existing admin.
func (s *TenantStore) UpdateAdmin(ctx context.Context, adminID uuid.UUID, update store.AdminUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	admin, exists := s.admins[adminID]
	if !exists {
		return store.ErrAdminNotFound
	}

	if update.Email != nil {
		for id, existing := range s.admins {
			if id != adminID && existing.Email == *update.Email {
				return store.ErrDuplicateEmail
			}
		}
		admin.Email = *update.Email
	}
	if update.PasswordHash != nil {
		admin.PasswordHash = *update.PasswordHash
	}
	if update.OrgID != nil {
		orgID := *update.OrgID
		admin.OrgID = &orgID
	}
	admin.UpdatedAt = time.Now()

	return nil
}

// DeleteOrganization deletes an organization by ID.
func (s *TenantStore) DeleteOrganization(ctx context.Context, orgID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.organizations[orgID]; !exists {
		return store.ErrOrganizationNotFound
	}

	delete(s.organizations, orgID)

	return nil
}

// DeleteAdmin deletes an admin by ID.
func (s *TenantStore) DeleteAdmin(ctx context.Context, adminID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.admins[adminID]; !exists {
		return store.ErrAdminNotFound
	}

	delete(s.admins, adminID)

	return nil
}

// CreatePartition creates a named tenant partition.
func (s *TenantStore) CreatePartition(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.partitions[name]; exists {
		return store.ErrPartitionExists
	}

	s.partitions[name] = struct{}{}

	return nil
}

// DropPartition removes a named tenant partition. Dropping a missing
// partition is a no-op.
func (s *TenantStore) DropPartition(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.partitions, name)

	return nil
}

// HasPartition reports whether the named partition exists. Test helper.
func (s *TenantStore) HasPartition(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.partitions[name]
	return exists
}

// Close is a no-op for the in-memory store.
func (s *TenantStore) Close() {}
