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

func TestMetricsEndpoint(t *testing.T) {
	requireIntegrationEnv(t)

	testDB := mysqltest.NewTestDB(t)
	testDB.LoadSchema(t, "../fixtures/simple_schema.sql")
	testDB.LoadFixtures(t, "../fixtures/simple_seed.sql")

	port := 18331
	_, _ = startTestServer(t, "../../bin/mysql-graphql-metrics-test", port, testDB.DatabaseName,
		"MYSQL_GRAPHQL_OBSERVABILITY_METRICS_ENABLED=true",
	)

	// Drive a request through the pipeline so the GraphQL instruments record.
	envelope := postGraphQL(t, port, `{ allUsers { totalCount edges { node { id } } } }`)
	require.Empty(t, envelope.Errors)

	metricsResp, err := http.Get(fmt.Sprintf("http://localhost:%d/metrics", port))
	require.NoError(t, err)
	defer metricsResp.Body.Close()
	require.Equal(t, http.StatusOK, metricsResp.StatusCode)

	raw, err := io.ReadAll(metricsResp.Body)
	require.NoError(t, err)
	exposition := string(raw)

	require.Contains(t, exposition, "# HELP")
	require.Contains(t, exposition, "# TYPE")

	// GraphQL pipeline instruments.
	require.Contains(t, exposition, "graphql_requests_total")
	require.Contains(t, exposition, "graphql_request_duration")

	// Connection pool stats registered through the SQL driver wrapper.
	require.Contains(t, exposition, "db_sql_connection")

	// Schema refresh instruments record the startup build.
	require.Contains(t, exposition, "schema_refresh")
}

func TestMetricsDisabledByDefault(t *testing.T) {
	requireIntegrationEnv(t)

	testDB := mysqltest.NewTestDB(t)
	testDB.LoadSchema(t, "../fixtures/simple_schema.sql")

	port := 18332
	_, _ = startTestServer(t, "../../bin/mysql-graphql-nometrics-test", port, testDB.DatabaseName)

	metricsResp, err := http.Get(fmt.Sprintf("http://localhost:%d/metrics", port))
	require.NoError(t, err)
	defer metricsResp.Body.Close()

	raw, err := io.ReadAll(metricsResp.Body)
	require.NoError(t, err)

	// Without the meter provider the exposition carries no GraphQL series.
	require.NotContains(t, string(raw), "graphql_requests_total")
}
