package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/tenantd/internal/store"
)

func TestMapPostgresError(t *testing.T) {
	t.Run("nil passes through", func(t *testing.T) {
		require.NoError(t, mapPostgresError(nil))
	})

	t.Run("deadline exceeded maps to store unavailable", func(t *testing.T) {
		err := mapPostgresError(fmt.Errorf("query failed: %w", context.DeadlineExceeded))
		require.ErrorIs(t, err, store.ErrStoreUnavailable)
	})

	t.Run("email unique violation maps to duplicate email", func(t *testing.T) {
		err := mapPostgresError(&pgconn.PgError{
			Code:           pgerrcode.UniqueViolation,
			ConstraintName: "idx_admins_email",
		})
		require.ErrorIs(t, err, store.ErrDuplicateEmail)
	})

	t.Run("organization unique violations map to organization exists", func(t *testing.T) {
		for _, constraint := range []string{"idx_organizations_name", "idx_organizations_collection", "organizations_pkey"} {
			err := mapPostgresError(&pgconn.PgError{
				Code:           pgerrcode.UniqueViolation,
				ConstraintName: constraint,
			})
			require.ErrorIs(t, err, store.ErrOrganizationExists, constraint)
		}
	})

	t.Run("duplicate schema maps to partition exists", func(t *testing.T) {
		err := mapPostgresError(&pgconn.PgError{Code: pgerrcode.DuplicateSchema})
		require.ErrorIs(t, err, store.ErrPartitionExists)
	})

	t.Run("query canceled maps to store unavailable", func(t *testing.T) {
		err := mapPostgresError(&pgconn.PgError{
			Code:    pgerrcode.QueryCanceled,
			Message: "canceling statement due to statement timeout",
		})
		require.ErrorIs(t, err, store.ErrStoreUnavailable)
	})

	t.Run("connection class errors map to store unavailable", func(t *testing.T) {
		for _, code := range []string{
			pgerrcode.ConnectionException,
			pgerrcode.ConnectionFailure,
			pgerrcode.CannotConnectNow,
			pgerrcode.AdminShutdown,
			pgerrcode.TooManyConnections,
		} {
			err := mapPostgresError(&pgconn.PgError{Code: code, Message: "down"})
			require.ErrorIs(t, err, store.ErrStoreUnavailable, code)
		}
	})

	t.Run("other errors pass through", func(t *testing.T) {
		cause := errors.New("boom")
		require.ErrorIs(t, mapPostgresError(cause), cause)
	})
}
