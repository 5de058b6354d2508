// Package testutil opens throwaway CoreData-style stores for tests.
package testutil

import (
	"context"
	_ "embed"
	"fmt"
	"testing"

	"github.com/Rana718/pharmaseed/internal/database/common"
	"github.com/Rana718/pharmaseed/internal/database/sqlite"
	"github.com/stretchr/testify/require"
)

//go:embed testdata/coredata.sql
var coreDataSchema string

// NewStore returns an in-memory store loaded with the fixture schema and rows.
func NewStore(t testing.TB) *sqlite.Adapter {
	t.Helper()
	ctx := context.Background()

	store := sqlite.New(sqlite.DriverPure)
	require.NoError(t, store.Connect(ctx, ":memory:"))
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.ExecScript(ctx, coreDataSchema))
	return store
}

// Count returns the number of rows in table matching the optional where clause.
func Count(t testing.TB, store *sqlite.Adapter, table, where string, args ...interface{}) int64 {
	t.Helper()
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", table)
	if where != "" {
		query += " WHERE " + where
	}
	v, err := store.QueryScalar(context.Background(), query, args...)
	require.NoError(t, err)
	n, err := common.ToInt64(v)
	require.NoError(t, err)
	return n
}

// Max returns Z_MAX for an entity.
func Max(t testing.TB, store *sqlite.Adapter, entity string) int64 {
	t.Helper()
	v, err := store.QueryScalar(context.Background(), "SELECT Z_MAX FROM Z_PRIMARYKEY WHERE Z_NAME = ?", entity)
	require.NoError(t, err)
	n, err := common.ToInt64(v)
	require.NoError(t, err)
	return n
}
