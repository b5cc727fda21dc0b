package mongo

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/tenantd/internal/store"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestMapMongoError(t *testing.T) {
	t.Run("nil passes through", func(t *testing.T) {
		require.NoError(t, mapMongoError(nil))
	})

	t.Run("deadline exceeded maps to store unavailable", func(t *testing.T) {
		err := mapMongoError(fmt.Errorf("find failed: %w", context.DeadlineExceeded))
		require.ErrorIs(t, err, store.ErrStoreUnavailable)
	})

	t.Run("server timeout maps to store unavailable", func(t *testing.T) {
		err := mapMongoError(mongo.CommandError{Code: 50, Message: "operation exceeded time limit"})
		require.ErrorIs(t, err, store.ErrStoreUnavailable)
	})

	t.Run("network error maps to store unavailable", func(t *testing.T) {
		err := mapMongoError(mongo.CommandError{Labels: []string{"NetworkError"}, Message: "connection reset"})
		require.ErrorIs(t, err, store.ErrStoreUnavailable)
	})

	t.Run("other errors pass through", func(t *testing.T) {
		cause := errors.New("boom")
		require.ErrorIs(t, mapMongoError(cause), cause)
	})
}
