package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/wolfeidau/tenantd/internal/store"
)

// mapPostgresError maps PostgreSQL-specific errors to sentinel errors.
// Unique violations are resolved per constraint so callers can tell a taken
// organization name from a taken admin email. Connection-class failures and
// exceeded deadlines surface as store.ErrStoreUnavailable.
func mapPostgresError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", store.ErrStoreUnavailable, err)
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		switch pgErr.ConstraintName {
		case "idx_admins_email":
			return store.ErrDuplicateEmail
		case "idx_organizations_name", "idx_organizations_collection", "organizations_pkey":
			return store.ErrOrganizationExists
		}
		return fmt.Errorf("unique constraint violation: %s: %w", pgErr.ConstraintName, err)

	case pgerrcode.DuplicateSchema:
		return store.ErrPartitionExists

	case pgerrcode.QueryCanceled:
		// Statement timeout or context cancellation
		return fmt.Errorf("%w: query canceled: %s", store.ErrStoreUnavailable, pgErr.Message)

	case pgerrcode.ConnectionException,
		pgerrcode.ConnectionDoesNotExist,
		pgerrcode.ConnectionFailure,
		pgerrcode.CannotConnectNow,
		pgerrcode.SQLClientUnableToEstablishSQLConnection,
		pgerrcode.AdminShutdown,
		pgerrcode.CrashShutdown,
		pgerrcode.TooManyConnections:
		return fmt.Errorf("%w: %s", store.ErrStoreUnavailable, pgErr.Message)

	default:
		return fmt.Errorf("postgres error [%s]: %s: %w", pgErr.Code, pgErr.Message, err)
	}
}
