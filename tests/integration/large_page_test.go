//go:build integration
// +build integration

package integration

import (
	"fmt"
	"strings"
	"testing"

	"mysql-graphql/internal/testutil/mysqltest"

	"github.com/stretchr/testify/require"
)

// Connection edges are concatenated server-side before the JSON cast, so a
// page whose serialized edges exceed the server's default group_concat_max_len
// of 1024 bytes only survives because the session raises the limit. Seed rows
// wide enough that a single page is dozens of kilobytes and drain it through
// the real server process.
func TestConnectionLargePage(t *testing.T) {
	requireIntegrationEnv(t)

	testDB := mysqltest.NewTestDB(t)
	testDB.LoadSchema(t, "../fixtures/simple_schema.sql")
	testDB.LoadFixtures(t, "../fixtures/simple_seed.sql")

	const (
		extraRows = 30
		bodyWidth = 1500
	)
	wideBody := strings.Repeat("x", bodyWidth)
	for i := 0; i < extraRows; i++ {
		_, err := testDB.DB.Exec(
			"INSERT INTO posts (id, user_id, title, body, score) VALUES (?, 1, ?, ?, 1.00)",
			100+i, fmt.Sprintf("wide post %d", i), wideBody,
		)
		require.NoError(t, err)
	}

	port := 18351
	_, _ = startTestServer(t, "../../bin/mysql-graphql-largepage-test", port, testDB.DatabaseName)

	envelope := postGraphQL(t, port, `
		{
			allPosts(first: 30, filter: { id: { gte: 100 } }) {
				edges {
					cursor
					node { id title body }
				}
				pageInfo { hasNextPage endCursor }
				totalCount
			}
		}
	`)
	require.Empty(t, envelope.Errors)
	require.NotNil(t, envelope.Data)

	conn, ok := envelope.Data["allPosts"].(map[string]interface{})
	require.True(t, ok, "allPosts should be an object")
	edges, ok := conn["edges"].([]interface{})
	require.True(t, ok, "edges should be an array")
	require.Len(t, edges, extraRows)

	// Every edge must come back whole: an intact cursor and the full body.
	for _, raw := range edges {
		edge, ok := raw.(map[string]interface{})
		require.True(t, ok)
		cursor, ok := edge["cursor"].(string)
		require.True(t, ok)
		require.NotEmpty(t, cursor)

		node, ok := edge["node"].(map[string]interface{})
		require.True(t, ok)
		body, ok := node["body"].(string)
		require.True(t, ok)
		require.Len(t, body, bodyWidth)
	}
}
