package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/tenantd/internal/models"
	"github.com/wolfeidau/tenantd/internal/store"
)

// TenantStoreConfig holds configuration for the PostgreSQL tenant store.
// Pool configuration is handled separately via PoolConfig.
type TenantStoreConfig struct {
	// QueryTimeoutSeconds is the maximum time a store call can run before it
	// fails with store.ErrStoreUnavailable.
	// Default: 10 seconds
	QueryTimeoutSeconds int32

	// AutoMigrate runs database migrations during construction.
	AutoMigrate bool
}

// ApplyDefaults applies default values to unset configuration fields.
func (c *TenantStoreConfig) ApplyDefaults() {
	if c.QueryTimeoutSeconds == 0 {
		c.QueryTimeoutSeconds = 10
	}
}

var _ store.TenantStore = (*TenantStore)(nil)

// TenantStore implements store.TenantStore using PostgreSQL. Organization and
// admin records live in master tables; tenant partitions are dedicated
// schemas created and dropped at provisioning time.
type TenantStore struct {
	pool         *pgxpool.Pool
	queryTimeout time.Duration
}

// NewTenantStore creates a new PostgreSQL-backed tenant store on an existing
// connection pool.
func NewTenantStore(ctx context.Context, pool *pgxpool.Pool, cfg *TenantStoreConfig) (*TenantStore, error) {
	if cfg == nil {
		cfg = &TenantStoreConfig{}
	}
	cfg.ApplyDefaults()

	if cfg.AutoMigrate {
		if err := runMigrations(ctx, pool); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	return &TenantStore{
		pool:         pool,
		queryTimeout: time.Duration(cfg.QueryTimeoutSeconds) * time.Second,
	}, nil
}

// opCtx bounds a single store call with the configured query timeout.
func (s *TenantStore) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.queryTimeout)
}

// FindOrganization retrieves an organization by name.
func (s *TenantStore) FindOrganization(ctx context.Context, name string) (*models.Organization, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := `
		SELECT org_id, organization_name, collection_name, admin_id, is_active, created_at
		FROM organizations
		WHERE organization_name = $1
	`

	var org models.Organization
	err := s.pool.QueryRow(ctx, query, name).Scan(
		&org.OrgID,
		&org.Name,
		&org.CollectionName,
		&org.AdminID,
		&org.IsActive,
		&org.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrOrganizationNotFound
		}
		return nil, mapPostgresError(err)
	}

	return &org, nil
}

// FindAdmin retrieves an admin by email.
func (s *TenantStore) FindAdmin(ctx context.Context, email string) (*models.Admin, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := `
		SELECT admin_id, email, password_hash, org_id, created_at, updated_at
		FROM admins
		WHERE email = $1
	`

	var admin models.Admin
	err := s.pool.QueryRow(ctx, query, email).Scan(
		&admin.AdminID,
		&admin.Email,
		&admin.PasswordHash,
		&admin.OrgID,
		&admin.CreatedAt,
		&admin.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrAdminNotFound
		}
		return nil, mapPostgresError(err)
	}

	return &admin, nil
}

// InsertOrganization creates a new organization record.
func (s *TenantStore) InsertOrganization(ctx context.Context, org *models.Organization) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := `
		INSERT INTO organizations (
			org_id, organization_name, collection_name, admin_id, is_active, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6
		)
	`

	_, err := s.pool.Exec(ctx, query,
		org.OrgID,
		org.Name,
		org.CollectionName,
		org.AdminID,
		org.IsActive,
		org.CreatedAt,
	)

	if err != nil {
		return mapPostgresError(err)
	}

	log.Debug().
		Str("org_id", org.OrgID.String()).
		Str("name", org.Name).
		Msg("Inserted organization")

	return nil
}

// InsertAdmin creates a new admin record.
func (s *TenantStore) InsertAdmin(ctx context.Context, admin *models.Admin) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := `
		INSERT INTO admins (
			admin_id, email, password_hash, org_id, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6
		)
	`

	_, err := s.pool.Exec(ctx, query,
		admin.AdminID,
		admin.Email,
		admin.PasswordHash,
		admin.OrgID,
		admin.CreatedAt,
		admin.UpdatedAt,
	)

	if err != nil {
		return mapPostgresError(err)
	}

	log.Debug().
		Str("admin_id", admin.AdminID.String()).
		Msg("Inserted admin")

	return nil
}

// UpdateAdmin applies a partial update to an admin record.
func (s *TenantStore) UpdateAdmin(ctx context.Context, adminID uuid.UUID, update store.AdminUpdate) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := `
		UPDATE admins SET
			email = COALESCE($2, email),
			password_hash = COALESCE($3, password_hash),
			org_id = COALESCE($4, org_id),
			updated_at = $5
		WHERE admin_id = $1
	`

	result, err := s.pool.Exec(ctx, query,
		adminID,
		update.Email,
		update.PasswordHash,
		update.OrgID,
		time.Now(),
	)

	if err != nil {
		return mapPostgresError(err)
	}

	if result.RowsAffected() == 0 {
		return store.ErrAdminNotFound
	}

	return nil
}

// DeleteOrganization deletes an organization record by ID.
func (s *TenantStore) DeleteOrganization(ctx context.Context, orgID uuid.UUID) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	result, err := s.pool.Exec(ctx, `DELETE FROM organizations WHERE org_id = $1`, orgID)
	if err != nil {
		return mapPostgresError(err)
	}

	if result.RowsAffected() == 0 {
		return store.ErrOrganizationNotFound
	}

	log.Info().
		Str("org_id", orgID.String()).
		Msg("Deleted organization")

	return nil
}

// DeleteAdmin deletes an admin record by ID.
func (s *TenantStore) DeleteAdmin(ctx context.Context, adminID uuid.UUID) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	result, err := s.pool.Exec(ctx, `DELETE FROM admins WHERE admin_id = $1`, adminID)
	if err != nil {
		return mapPostgresError(err)
	}

	if result.RowsAffected() == 0 {
		return store.ErrAdminNotFound
	}

	return nil
}

// CreatePartition creates a dedicated schema for a tenant. The schema name is
// derived from the organization name, so it is quoted rather than trusted.
func (s *TenantStore) CreatePartition(ctx context.Context, name string) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := fmt.Sprintf(`CREATE SCHEMA %s`, pgx.Identifier{name}.Sanitize())

	if _, err := s.pool.Exec(ctx, query); err != nil {
		return mapPostgresError(err)
	}

	log.Info().Str("partition", name).Msg("Created tenant partition")

	return nil
}

// DropPartition drops a tenant schema and everything in it. Dropping a
// missing partition is a no-op.
func (s *TenantStore) DropPartition(ctx context.Context, name string) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := fmt.Sprintf(`DROP SCHEMA IF EXISTS %s CASCADE`, pgx.Identifier{name}.Sanitize())

	if _, err := s.pool.Exec(ctx, query); err != nil {
		return mapPostgresError(err)
	}

	log.Info().Str("partition", name).Msg("Dropped tenant partition")

	return nil
}

// Close releases the underlying connection pool.
func (s *TenantStore) Close() {
	s.pool.Close()
}
