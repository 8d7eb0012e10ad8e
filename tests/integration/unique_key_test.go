//go:build integration
// +build integration

package integration

import (
	"testing"

	"mysql-graphql/internal/testutil/mysqltest"

	"github.com/stretchr/testify/require"
)

// A table without a primary key still gets row identity from its narrowest
// non-null unique index.
func TestUniqueKeyAsRowIdentity(t *testing.T) {
	requireIntegrationEnv(t)

	testDB := mysqltest.NewTestDB(t)
	testDB.LoadSchema(t, "../fixtures/unique_key_schema.sql")

	engine := buildTestEngine(t, testDB)

	resp := execQuery(t, engine, `{
		allApiTokens(orderBy: [{tokenHash: ASC}]) {
			totalCount
			edges { node { nodeId tokenHash owner } }
		}
	}`, nil)
	data := requireData(t, resp)

	conn, ok := data["allApiTokens"].(map[string]interface{})
	require.True(t, ok)
	requireNumber(t, conn["totalCount"], 2)

	nodes := requireConnectionNodes(t, data, "allApiTokens")
	require.Len(t, nodes, 2)
	require.Equal(t, "ada", nodes[0]["owner"])
	require.Equal(t, "grace", nodes[1]["owner"])

	nodeID, ok := nodes[1]["nodeId"].(string)
	require.True(t, ok)
	require.NotEmpty(t, nodeID)

	resp = execQuery(t, engine, `query Lookup($id: ID!) {
		apiToken(nodeId: $id) { owner }
	}`, map[string]interface{}{"id": nodeID})
	data = requireData(t, resp)

	token, ok := data["apiToken"].(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, "grace", token["owner"])
}
