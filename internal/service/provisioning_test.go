package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/tenantd/internal/models"
	"github.com/wolfeidau/tenantd/internal/store"
	"github.com/wolfeidau/tenantd/internal/store/memory"
)

// failingStore wraps the memory store and fails selected operations, to
// exercise the compensation paths of the provisioning sequence.
type failingStore struct {
	*memory.TenantStore

	failInsertOrganization bool
	failCreatePartition    bool
	failUpdateAdmin        bool

	insertAdminErr      error
	findOrganizationErr error
}

var errInjected = errors.New("injected failure")

func (f *failingStore) InsertAdmin(ctx context.Context, admin *models.Admin) error {
	if f.insertAdminErr != nil {
		return f.insertAdminErr
	}
	return f.TenantStore.InsertAdmin(ctx, admin)
}

func (f *failingStore) FindOrganization(ctx context.Context, name string) (*models.Organization, error) {
	if f.findOrganizationErr != nil {
		return nil, f.findOrganizationErr
	}
	return f.TenantStore.FindOrganization(ctx, name)
}

func (f *failingStore) InsertOrganization(ctx context.Context, org *models.Organization) error {
	if f.failInsertOrganization {
		return errInjected
	}
	return f.TenantStore.InsertOrganization(ctx, org)
}

func (f *failingStore) CreatePartition(ctx context.Context, name string) error {
	if f.failCreatePartition {
		return errInjected
	}
	return f.TenantStore.CreatePartition(ctx, name)
}

func (f *failingStore) UpdateAdmin(ctx context.Context, adminID uuid.UUID, update store.AdminUpdate) error {
	if f.failUpdateAdmin {
		return errInjected
	}
	return f.TenantStore.UpdateAdmin(ctx, adminID, update)
}

func principalFor(org *models.Organization) *models.Principal {
	return &models.Principal{AdminID: org.AdminID, OrgID: org.OrgID}
}

func TestCollectionNameFor(t *testing.T) {
	require.Equal(t, "org_AcmeCorp", CollectionNameFor("AcmeCorp"))
}

func TestProvisioningService_CreateOrganization(t *testing.T) {
	t.Run("create then get returns matching record", func(t *testing.T) {
		st := memory.NewTenantStore()
		svc := NewProvisioningService(st)
		ctx := context.Background()

		org, err := svc.CreateOrganization(ctx, "AcmeCorp", "jane@acme.com", "s3cret-password")
		require.NoError(t, err)
		require.Equal(t, "AcmeCorp", org.Name)
		require.Equal(t, "org_AcmeCorp", org.CollectionName)
		require.True(t, org.IsActive)

		found, err := svc.GetOrganization(ctx, "AcmeCorp")
		require.NoError(t, err)
		require.Equal(t, org.OrgID, found.OrgID)
		require.True(t, st.HasPartition("org_AcmeCorp"))
	})

	t.Run("admin org id is backfilled", func(t *testing.T) {
		st := memory.NewTenantStore()
		svc := NewProvisioningService(st)
		ctx := context.Background()

		org, err := svc.CreateOrganization(ctx, "AcmeCorp", "jane@acme.com", "s3cret-password")
		require.NoError(t, err)

		admin, err := st.FindAdmin(ctx, "jane@acme.com")
		require.NoError(t, err)
		require.NotNil(t, admin.OrgID)
		require.Equal(t, org.OrgID, *admin.OrgID)
		require.NotEmpty(t, admin.PasswordHash)
		require.NotEqual(t, "s3cret-password", admin.PasswordHash)
	})

	t.Run("duplicate name conflicts and creates no second partition", func(t *testing.T) {
		st := memory.NewTenantStore()
		svc := NewProvisioningService(st)
		ctx := context.Background()

		_, err := svc.CreateOrganization(ctx, "AcmeCorp", "jane@acme.com", "s3cret-password")
		require.NoError(t, err)

		_, err = svc.CreateOrganization(ctx, "AcmeCorp", "joe@acme.com", "another-password")
		require.ErrorIs(t, err, store.ErrOrganizationExists)

		// The losing call must not leave a second admin behind
		_, err = st.FindAdmin(ctx, "joe@acme.com")
		require.ErrorIs(t, err, store.ErrAdminNotFound)
	})

	t.Run("duplicate email conflicts and organization is not created", func(t *testing.T) {
		st := memory.NewTenantStore()
		svc := NewProvisioningService(st)
		ctx := context.Background()

		_, err := svc.CreateOrganization(ctx, "AcmeCorp", "jane@acme.com", "s3cret-password")
		require.NoError(t, err)

		_, err = svc.CreateOrganization(ctx, "OtherCorp", "jane@acme.com", "another-password")
		require.ErrorIs(t, err, store.ErrDuplicateEmail)

		_, err = svc.GetOrganization(ctx, "OtherCorp")
		require.ErrorIs(t, err, store.ErrOrganizationNotFound)
		require.False(t, st.HasPartition("org_OtherCorp"))
	})

	t.Run("missing fields rejected", func(t *testing.T) {
		svc := NewProvisioningService(memory.NewTenantStore())
		ctx := context.Background()

		_, err := svc.CreateOrganization(ctx, "", "jane@acme.com", "s3cret-password")
		require.ErrorIs(t, err, ErrInvalidArgument)

		_, err = svc.CreateOrganization(ctx, "AcmeCorp", "", "s3cret-password")
		require.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("store outage during admin insert is not reported as a conflict", func(t *testing.T) {
		st := &failingStore{
			TenantStore:    memory.NewTenantStore(),
			insertAdminErr: fmt.Errorf("%w: connection refused", store.ErrStoreUnavailable),
		}
		svc := NewProvisioningService(st)
		ctx := context.Background()

		_, err := svc.CreateOrganization(ctx, "AcmeCorp", "jane@acme.com", "s3cret-password")
		require.ErrorIs(t, err, store.ErrStoreUnavailable)
		require.NotErrorIs(t, err, store.ErrDuplicateEmail)
	})

	t.Run("store outage during name check propagates", func(t *testing.T) {
		st := &failingStore{
			TenantStore:         memory.NewTenantStore(),
			findOrganizationErr: fmt.Errorf("%w: connection refused", store.ErrStoreUnavailable),
		}
		svc := NewProvisioningService(st)
		ctx := context.Background()

		_, err := svc.CreateOrganization(ctx, "AcmeCorp", "jane@acme.com", "s3cret-password")
		require.ErrorIs(t, err, store.ErrStoreUnavailable)
	})

	t.Run("org insert failure rolls back admin", func(t *testing.T) {
		st := &failingStore{TenantStore: memory.NewTenantStore(), failInsertOrganization: true}
		svc := NewProvisioningService(st)
		ctx := context.Background()

		_, err := svc.CreateOrganization(ctx, "AcmeCorp", "jane@acme.com", "s3cret-password")
		require.ErrorIs(t, err, errInjected)

		_, err = st.FindAdmin(ctx, "jane@acme.com")
		require.ErrorIs(t, err, store.ErrAdminNotFound)
	})

	t.Run("backfill failure rolls back admin and organization", func(t *testing.T) {
		st := &failingStore{TenantStore: memory.NewTenantStore(), failUpdateAdmin: true}
		svc := NewProvisioningService(st)
		ctx := context.Background()

		_, err := svc.CreateOrganization(ctx, "AcmeCorp", "jane@acme.com", "s3cret-password")
		require.ErrorIs(t, err, errInjected)

		_, err = st.FindAdmin(ctx, "jane@acme.com")
		require.ErrorIs(t, err, store.ErrAdminNotFound)
		_, err = st.FindOrganization(ctx, "AcmeCorp")
		require.ErrorIs(t, err, store.ErrOrganizationNotFound)
	})

	t.Run("partition failure rolls back admin and organization", func(t *testing.T) {
		st := &failingStore{TenantStore: memory.NewTenantStore(), failCreatePartition: true}
		svc := NewProvisioningService(st)
		ctx := context.Background()

		_, err := svc.CreateOrganization(ctx, "AcmeCorp", "jane@acme.com", "s3cret-password")
		require.ErrorIs(t, err, errInjected)

		_, err = st.FindOrganization(ctx, "AcmeCorp")
		require.ErrorIs(t, err, store.ErrOrganizationNotFound)
		_, err = st.FindAdmin(ctx, "jane@acme.com")
		require.ErrorIs(t, err, store.ErrAdminNotFound)
		require.False(t, st.HasPartition("org_AcmeCorp"))
	})
}

func TestProvisioningService_DeleteOrganization(t *testing.T) {
	t.Run("own admin deletes org, admin and partition", func(t *testing.T) {
		st := memory.NewTenantStore()
		svc := NewProvisioningService(st)
		ctx := context.Background()

		org, err := svc.CreateOrganization(ctx, "AcmeCorp", "jane@acme.com", "s3cret-password")
		require.NoError(t, err)

		require.NoError(t, svc.DeleteOrganization(ctx, "AcmeCorp", principalFor(org)))

		_, err = svc.GetOrganization(ctx, "AcmeCorp")
		require.ErrorIs(t, err, store.ErrOrganizationNotFound)
		_, err = st.FindAdmin(ctx, "jane@acme.com")
		require.ErrorIs(t, err, store.ErrAdminNotFound)
		require.False(t, st.HasPartition("org_AcmeCorp"))
	})

	t.Run("cross-tenant delete is forbidden", func(t *testing.T) {
		st := memory.NewTenantStore()
		svc := NewProvisioningService(st)
		ctx := context.Background()

		orgA, err := svc.CreateOrganization(ctx, "OrgA", "a@example.com", "password-a")
		require.NoError(t, err)
		_, err = svc.CreateOrganization(ctx, "OrgB", "b@example.com", "password-b")
		require.NoError(t, err)

		err = svc.DeleteOrganization(ctx, "OrgB", principalFor(orgA))
		require.ErrorIs(t, err, ErrForbidden)

		// OrgB is untouched
		_, err = svc.GetOrganization(ctx, "OrgB")
		require.NoError(t, err)
		require.True(t, st.HasPartition("org_OrgB"))
	})

	t.Run("missing organization returns not found", func(t *testing.T) {
		svc := NewProvisioningService(memory.NewTenantStore())
		ctx := context.Background()

		err := svc.DeleteOrganization(ctx, "Ghost", &models.Principal{})
		require.ErrorIs(t, err, store.ErrOrganizationNotFound)
	})
}

func TestProvisioningService_UpdateAdmin(t *testing.T) {
	t.Run("update password and email", func(t *testing.T) {
		st := memory.NewTenantStore()
		svc := NewProvisioningService(st)
		ctx := context.Background()

		org, err := svc.CreateOrganization(ctx, "AcmeCorp", "jane@acme.com", "s3cret-password")
		require.NoError(t, err)

		newEmail := "jane.doe@acme.com"
		newPassword := "new-s3cret-password"
		updated, err := svc.UpdateAdmin(ctx, "AcmeCorp", principalFor(org), &newEmail, &newPassword)
		require.NoError(t, err)
		require.True(t, updated)

		admin, err := st.FindAdmin(ctx, "jane.doe@acme.com")
		require.NoError(t, err)
		require.Equal(t, org.AdminID, admin.AdminID)
	})

	t.Run("no fields is a distinct no-op", func(t *testing.T) {
		st := memory.NewTenantStore()
		svc := NewProvisioningService(st)
		ctx := context.Background()

		org, err := svc.CreateOrganization(ctx, "AcmeCorp", "jane@acme.com", "s3cret-password")
		require.NoError(t, err)

		before, err := st.FindAdmin(ctx, "jane@acme.com")
		require.NoError(t, err)

		updated, err := svc.UpdateAdmin(ctx, "AcmeCorp", principalFor(org), nil, nil)
		require.NoError(t, err)
		require.False(t, updated)

		after, err := st.FindAdmin(ctx, "jane@acme.com")
		require.NoError(t, err)
		require.Equal(t, before.Email, after.Email)
		require.Equal(t, before.PasswordHash, after.PasswordHash)
	})

	t.Run("email owned by another admin conflicts", func(t *testing.T) {
		st := memory.NewTenantStore()
		svc := NewProvisioningService(st)
		ctx := context.Background()

		orgA, err := svc.CreateOrganization(ctx, "OrgA", "a@example.com", "password-a")
		require.NoError(t, err)
		_, err = svc.CreateOrganization(ctx, "OrgB", "b@example.com", "password-b")
		require.NoError(t, err)

		taken := "b@example.com"
		_, err = svc.UpdateAdmin(ctx, "OrgA", principalFor(orgA), &taken, nil)
		require.ErrorIs(t, err, store.ErrDuplicateEmail)
	})

	t.Run("keeping own email is allowed", func(t *testing.T) {
		st := memory.NewTenantStore()
		svc := NewProvisioningService(st)
		ctx := context.Background()

		org, err := svc.CreateOrganization(ctx, "AcmeCorp", "jane@acme.com", "s3cret-password")
		require.NoError(t, err)

		same := "jane@acme.com"
		updated, err := svc.UpdateAdmin(ctx, "AcmeCorp", principalFor(org), &same, nil)
		require.NoError(t, err)
		require.True(t, updated)
	})

	t.Run("cross-tenant update is forbidden", func(t *testing.T) {
		st := memory.NewTenantStore()
		svc := NewProvisioningService(st)
		ctx := context.Background()

		orgA, err := svc.CreateOrganization(ctx, "OrgA", "a@example.com", "password-a")
		require.NoError(t, err)
		_, err = svc.CreateOrganization(ctx, "OrgB", "b@example.com", "password-b")
		require.NoError(t, err)

		newPassword := "hijacked"
		_, err = svc.UpdateAdmin(ctx, "OrgB", principalFor(orgA), nil, &newPassword)
		require.ErrorIs(t, err, ErrForbidden)
	})
}
