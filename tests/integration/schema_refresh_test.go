//go:build integration
// +build integration

package integration

import (
	"context"
	"testing"
	"time"

	"mysql-graphql/internal/naming"
	"mysql-graphql/internal/schemarefresh"
	"mysql-graphql/internal/sqlmeta"
	"mysql-graphql/internal/testutil/mysqltest"

	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, testDB *mysqltest.TestDB) *schemarefresh.Manager {
	t.Helper()
	manager, err := schemarefresh.NewManager(schemarefresh.Config{
		DB:           testDB.DB,
		DatabaseName: testDB.DatabaseName,
		Logger:       testLogger(),
		MinInterval:  time.Hour,
		MaxInterval:  time.Hour,
		Naming:       naming.DefaultConfig(),
	})
	require.NoError(t, err)
	return manager
}

func findTable(schema *sqlmeta.Schema, name string) *sqlmeta.Table {
	for i := range schema.Tables {
		if schema.Tables[i].Name == name {
			return &schema.Tables[i]
		}
	}
	return nil
}

func hasColumn(table *sqlmeta.Table, name string) bool {
	for _, col := range table.Columns {
		if col.Name == name {
			return true
		}
	}
	return false
}

func TestSchemaRefreshPicksUpMigration(t *testing.T) {
	requireIntegrationEnv(t)

	testDB := mysqltest.NewTestDB(t)
	testDB.LoadSchema(t, "../fixtures/schema_refresh_v1.sql")

	manager := newTestManager(t, testDB)

	snapshot := manager.CurrentSnapshot()
	require.NotNil(t, snapshot)
	initialVersion := snapshot.Version

	products := findTable(snapshot.DBSchema, "products")
	require.NotNil(t, products)
	require.True(t, hasColumn(products, "price"))
	require.False(t, hasColumn(products, "sku"))

	testDB.LoadSchema(t, "../fixtures/schema_refresh_v2.sql")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	require.NoError(t, manager.RefreshNowContext(ctx))

	snapshot = manager.CurrentSnapshot()
	require.NotNil(t, snapshot)
	require.Greater(t, snapshot.Version, initialVersion)

	products = findTable(snapshot.DBSchema, "products")
	require.NotNil(t, products)
	require.True(t, hasColumn(products, "sku"))

	// The GraphQL catalog tracks the relational change.
	productsType, ok := snapshot.Catalog.Type("Products")
	require.True(t, ok)
	var found bool
	for _, field := range productsType.Fields {
		if field.Name == "sku" {
			found = true
		}
	}
	require.True(t, found, "catalog type should expose the new column")
}

func TestSchemaRefreshManualRefreshStableFingerprint(t *testing.T) {
	requireIntegrationEnv(t)

	testDB := mysqltest.NewTestDB(t)
	testDB.LoadSchema(t, "../fixtures/schema_refresh_v1.sql")

	manager := newTestManager(t, testDB)

	before := manager.CurrentSnapshot()
	require.NotNil(t, before)
	require.NotEmpty(t, before.Fingerprint)

	// A manual refresh always rebuilds, but an unchanged schema must hash to
	// the same structural fingerprint.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	require.NoError(t, manager.RefreshNowContext(ctx))

	after := manager.CurrentSnapshot()
	require.NotNil(t, after)
	require.Equal(t, before.Fingerprint, after.Fingerprint)
}

func TestSchemaRefreshBackgroundLoop(t *testing.T) {
	requireIntegrationEnv(t)

	testDB := mysqltest.NewTestDB(t)
	testDB.LoadSchema(t, "../fixtures/schema_refresh_v1.sql")

	manager, err := schemarefresh.NewManager(schemarefresh.Config{
		DB:           testDB.DB,
		DatabaseName: testDB.DatabaseName,
		Logger:       testLogger(),
		MinInterval:  time.Second,
		MaxInterval:  2 * time.Second,
		Naming:       naming.DefaultConfig(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	manager.Start(ctx)
	t.Cleanup(func() {
		cancel()
		waitCtx, waitCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer waitCancel()
		require.NoError(t, manager.Wait(waitCtx))
	})

	initial := manager.CurrentSnapshot()
	require.NotNil(t, initial)

	testDB.LoadSchema(t, "../fixtures/schema_refresh_v2.sql")

	require.Eventually(t, func() bool {
		snapshot := manager.CurrentSnapshot()
		if snapshot == nil || snapshot.Version == initial.Version {
			return false
		}
		products := findTable(snapshot.DBSchema, "products")
		return products != nil && hasColumn(products, "sku")
	}, 30*time.Second, 500*time.Millisecond, "background loop should pick up the migration")
}
