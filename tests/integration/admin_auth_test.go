//go:build integration
// +build integration

package integration

import (
	"fmt"
	"io"
	"net/http"
	"testing"

	"mysql-graphql/internal/testutil/mysqltest"

	"github.com/stretchr/testify/require"
)

func TestAdminSchemaReloadWithToken(t *testing.T) {
	requireIntegrationEnv(t)

	testDB := mysqltest.NewTestDB(t)
	testDB.LoadSchema(t, "../fixtures/schema_refresh_v1.sql")

	port := 18341
	_, _ = startTestServer(t, "../../bin/mysql-graphql-admin-test", port, testDB.DatabaseName,
		"MYSQL_GRAPHQL_SERVER_ADMIN_SCHEMA_RELOAD_ENABLED=true",
		"MYSQL_GRAPHQL_SERVER_ADMIN_AUTH_TOKEN=test-admin-token",
	)

	reloadURL := fmt.Sprintf("http://localhost:%d/admin/reload-schema", port)

	// No token.
	req, err := http.NewRequest(http.MethodPost, reloadURL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Wrong token.
	req, err = http.NewRequest(http.MethodPost, reloadURL, nil)
	require.NoError(t, err)
	req.Header.Set("X-Admin-Token", "not-the-token")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Correct token triggers a rebuild.
	req, err = http.NewRequest(http.MethodPost, reloadURL, nil)
	require.NoError(t, err)
	req.Header.Set("X-Admin-Token", "test-admin-token")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"status":"ok"}`, string(body))

	// GET is rejected even when authenticated.
	req, err = http.NewRequest(http.MethodGet, reloadURL, nil)
	require.NoError(t, err)
	req.Header.Set("X-Admin-Token", "test-admin-token")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestAdminSchemaReloadDisabled(t *testing.T) {
	requireIntegrationEnv(t)

	testDB := mysqltest.NewTestDB(t)
	testDB.LoadSchema(t, "../fixtures/schema_refresh_v1.sql")

	port := 18342
	_, _ = startTestServer(t, "../../bin/mysql-graphql-admin-off-test", port, testDB.DatabaseName)

	resp, err := http.Post(fmt.Sprintf("http://localhost:%d/admin/reload-schema", port), "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAdminSchemaReloadPicksUpMigration(t *testing.T) {
	requireIntegrationEnv(t)

	testDB := mysqltest.NewTestDB(t)
	testDB.LoadSchema(t, "../fixtures/schema_refresh_v1.sql")

	port := 18343
	_, _ = startTestServer(t, "../../bin/mysql-graphql-admin-reload-test", port, testDB.DatabaseName,
		"MYSQL_GRAPHQL_SERVER_ADMIN_SCHEMA_RELOAD_ENABLED=true",
		"MYSQL_GRAPHQL_SERVER_ADMIN_AUTH_TOKEN=test-admin-token",
	)

	// The sku column does not exist at startup.
	resp := postGraphQL(t, port, `{ allProducts { edges { node { sku } } } }`)
	require.NotEmpty(t, resp.Errors)

	testDB.LoadSchema(t, "../fixtures/schema_refresh_v2.sql")

	req, err := http.NewRequest(http.MethodPost,
		fmt.Sprintf("http://localhost:%d/admin/reload-schema", port), nil)
	require.NoError(t, err)
	req.Header.Set("X-Admin-Token", "test-admin-token")
	reloadResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	reloadResp.Body.Close()
	require.Equal(t, http.StatusOK, reloadResp.StatusCode)

	resp = postGraphQL(t, port, `{ allProducts { edges { node { sku } } } }`)
	require.Empty(t, resp.Errors)
}
