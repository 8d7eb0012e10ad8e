//go:build integration
// +build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"mysql-graphql/internal/compiler"
	"mysql-graphql/internal/dbexec"
	"mysql-graphql/internal/logging"
	"mysql-graphql/internal/naming"
	"mysql-graphql/internal/resolver"
	"mysql-graphql/internal/schemafilter"
	"mysql-graphql/internal/schemarefresh"
	"mysql-graphql/internal/testutil/mysqltest"

	"github.com/stretchr/testify/require"
)

func requireIntegrationEnv(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	if os.Getenv("MYSQL_TEST_HOST") == "" {
		t.Skip("MySQL credentials not set")
	}
}

func testLogger() *logging.Logger {
	return logging.NewLogger(logging.Config{Level: "info", Format: "text"})
}

// buildTestEngine introspects the test database once and wires a resolver
// engine over a static snapshot of it.
func buildTestEngine(t *testing.T, testDB *mysqltest.TestDB) *resolver.Engine {
	t.Helper()
	return buildTestEngineWithConfig(t, testDB, nil)
}

func buildTestEngineWithConfig(t *testing.T, testDB *mysqltest.TestDB, uuidColumns map[string][]string) *resolver.Engine {
	t.Helper()

	result, err := schemarefresh.BuildCatalog(context.Background(), schemarefresh.BuildCatalogConfig{
		Queryer:      testDB.DB,
		DatabaseName: testDB.DatabaseName,
		Filters:      schemafilter.Config{},
		UUIDColumns:  uuidColumns,
		Naming:       naming.DefaultConfig(),
	})
	require.NoError(t, err)

	snapshot := resolver.Snapshot{
		Catalog: result.Catalog,
		Meta:    result.Meta,
		Version: 1,
	}
	engine, err := resolver.NewEngine(resolver.Config{
		Snapshots: func(context.Context) (resolver.Snapshot, error) {
			return snapshot, nil
		},
		Executor:   dbexec.NewStandardExecutor(testDB.DB),
		PageLimits: compiler.Limits{DefaultPageSize: 10, MaxPageSize: 100},
		Logger:     testLogger(),
	})
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	return engine
}

// graphqlEnvelope mirrors the wire shape of the /graphql endpoint.
type graphqlEnvelope struct {
	Data   map[string]interface{} `json:"data"`
	Errors []string               `json:"errors"`
}

func postGraphQL(t *testing.T, port int, query string) graphqlEnvelope {
	t.Helper()

	body, err := json.Marshal(map[string]interface{}{"query": query})
	require.NoError(t, err)

	resp, err := http.Post(
		fmt.Sprintf("http://localhost:%d/graphql", port),
		"application/json",
		bytes.NewReader(body),
	)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var envelope graphqlEnvelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return envelope
}

func execQuery(t *testing.T, engine *resolver.Engine, query string, variables map[string]interface{}) resolver.Response {
	t.Helper()
	return engine.Resolve(context.Background(), resolver.Request{
		Query:     query,
		Variables: variables,
	})
}

func requireData(t *testing.T, resp resolver.Response) map[string]interface{} {
	t.Helper()
	require.Empty(t, resp.Errors, "query should not return errors")
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok, "expected object response data, got %T", resp.Data)
	return data
}

// requireConnectionNodes unwraps edges[].node from a connection payload.
func requireConnectionNodes(t *testing.T, data map[string]interface{}, field string) []map[string]interface{} {
	t.Helper()

	conn, ok := data[field].(map[string]interface{})
	require.True(t, ok, "expected connection object for field %q", field)

	edges, ok := conn["edges"].([]interface{})
	require.True(t, ok, "expected %q connection to include edges[]", field)

	nodes := make([]map[string]interface{}, 0, len(edges))
	for _, raw := range edges {
		edge, ok := raw.(map[string]interface{})
		require.True(t, ok, "expected edge object in %q", field)
		node, ok := edge["node"].(map[string]interface{})
		require.True(t, ok, "expected edge.node object in %q", field)
		nodes = append(nodes, node)
	}
	return nodes
}

func requirePageInfo(t *testing.T, data map[string]interface{}, field string) map[string]interface{} {
	t.Helper()
	conn, ok := data[field].(map[string]interface{})
	require.True(t, ok, "expected connection object for field %q", field)
	pageInfo, ok := conn["pageInfo"].(map[string]interface{})
	require.True(t, ok, "expected pageInfo on %q connection", field)
	return pageInfo
}

// requireNumber compares a decoded JSON number (json.Number, kept exact by
// the engine) against an expected integer.
func requireNumber(t *testing.T, value interface{}, expected int64) {
	t.Helper()
	num, ok := value.(json.Number)
	require.True(t, ok, "expected numeric value, got %T", value)
	parsed, err := num.Int64()
	require.NoError(t, err)
	require.Equal(t, expected, parsed)
}

func baseServerEnv(t *testing.T, databaseName string) []string {
	t.Helper()
	return []string{
		fmt.Sprintf("MYSQL_GRAPHQL_DATABASE_HOST=%s", os.Getenv("MYSQL_TEST_HOST")),
		fmt.Sprintf("MYSQL_GRAPHQL_DATABASE_PORT=%s", getEnvOrDefault("MYSQL_TEST_PORT", "3306")),
		fmt.Sprintf("MYSQL_GRAPHQL_DATABASE_USER=%s", os.Getenv("MYSQL_TEST_USER")),
		fmt.Sprintf("MYSQL_GRAPHQL_DATABASE_PASSWORD=%s", os.Getenv("MYSQL_TEST_PASSWORD")),
		fmt.Sprintf("MYSQL_GRAPHQL_DATABASE_DATABASE=%s", databaseName),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func startTestServer(t *testing.T, binaryName string, port int, databaseName string, extraEnv ...string) (*exec.Cmd, func()) {
	t.Helper()

	buildCmd := exec.Command("go", "build", "-o", binaryName, "../../cmd/server")
	err := buildCmd.Run()
	require.NoError(t, err, "Failed to build server")

	cmd := exec.Command(binaryName)
	baseEnv := append(os.Environ(), baseServerEnv(t, databaseName)...)
	baseEnv = append(baseEnv, fmt.Sprintf("MYSQL_GRAPHQL_SERVER_PORT=%d", port))
	cmd.Env = mergeEnv(baseEnv, extraEnv...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Start()
	require.NoError(t, err)

	cleanup := func() {
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		_ = os.Remove(binaryName)
	}
	t.Cleanup(cleanup)

	waitForHealthyWithLogs(t, port, &stdout, &stderr, cmd.Env)

	return cmd, cleanup
}

func waitForHealthyWithLogs(t *testing.T, port int, stdout, stderr *bytes.Buffer, env []string) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		time.Sleep(200 * time.Millisecond)
		resp, err := http.Get(fmt.Sprintf("http://localhost:%d/health", port))
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
	}
	t.Fatalf("Server did not become ready within 10 seconds.\n%s", formatServerDebugInfo(stdout, stderr, env))
}

func mergeEnv(base []string, overrides ...string) []string {
	if len(overrides) == 0 {
		return base
	}

	overrideKeys := make(map[string]struct{}, len(overrides))
	for _, kv := range overrides {
		key := strings.SplitN(kv, "=", 2)[0]
		overrideKeys[key] = struct{}{}
	}

	merged := make([]string, 0, len(base)+len(overrides))
	for _, kv := range base {
		key := strings.SplitN(kv, "=", 2)[0]
		if _, exists := overrideKeys[key]; exists {
			continue
		}
		merged = append(merged, kv)
	}
	merged = append(merged, overrides...)
	return merged
}

func formatServerDebugInfo(stdout, stderr *bytes.Buffer, env []string) string {
	envLines := filterEnv(env, "MYSQL_GRAPHQL_DATABASE_", "MYSQL_GRAPHQL_SERVER_", "MYSQL_GRAPHQL_OBSERVABILITY_")
	return fmt.Sprintf("Environment:\n%s\nSTDOUT:\n%s\nSTDERR:\n%s",
		strings.Join(envLines, "\n"),
		tailString(stdout, 4000),
		tailString(stderr, 4000),
	)
}

func filterEnv(env []string, prefixes ...string) []string {
	if len(env) == 0 {
		return nil
	}
	var filtered []string
	for _, kv := range env {
		for _, prefix := range prefixes {
			if strings.HasPrefix(kv, prefix) {
				filtered = append(filtered, kv)
				break
			}
		}
	}
	return filtered
}

func tailString(buf *bytes.Buffer, max int) string {
	if buf == nil {
		return ""
	}
	s := buf.String()
	if len(s) <= max {
		return s
	}
	return s[len(s)-max:]
}
