package compiler

import (
	"testing"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"
	"github.com/graphql-go/graphql/language/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"mysql-graphql/internal/catalog"
	"mysql-graphql/internal/cursor"
	"mysql-graphql/internal/sqlmeta"
)

func blogCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	schema := &sqlmeta.Schema{
		Tables: []sqlmeta.Table{
			{
				Name: "account",
				Columns: []sqlmeta.Column{
					{Name: "id", DataType: "bigint", ColumnType: "bigint(20)", IsPrimaryKey: true},
					{Name: "email", DataType: "varchar", ColumnType: "varchar(255)"},
					{Name: "created_at", DataType: "datetime", ColumnType: "datetime", IsNullable: true},
				},
			},
			{
				Name: "blog_post",
				Columns: []sqlmeta.Column{
					{Name: "id", DataType: "bigint", ColumnType: "bigint(20)", IsPrimaryKey: true},
					{Name: "author_id", DataType: "bigint", ColumnType: "bigint(20)"},
					{Name: "title", DataType: "varchar", ColumnType: "varchar(255)"},
					{Name: "status", DataType: "enum", ColumnType: "enum('draft','published')", EnumValues: []string{"draft", "published"}},
					{Name: "featured", DataType: "tinyint", ColumnType: "tinyint(1)", IsNullable: true},
					{Name: "view_count", DataType: "int", ColumnType: "int(11)", IsNullable: true},
				},
				ForeignKeys: []sqlmeta.ForeignKey{
					{ConstraintName: "blog_post_ibfk_1", ColumnName: "author_id", ReferencedTable: "account", ReferencedColumn: "id", OrdinalPosition: 1},
				},
			},
		},
	}
	require.NoError(t, sqlmeta.RebuildRelationships(schema))
	cat, err := catalog.Build(schema, nil, nil)
	require.NoError(t, err)
	return cat
}

func parseQuery(t *testing.T, query string) *ast.OperationDefinition {
	t.Helper()
	doc, err := parser.Parse(parser.ParseParams{
		Source: source.NewSource(&source.Source{Body: []byte(query), Name: "graphql"}),
	})
	require.NoError(t, err)
	for _, def := range doc.Definitions {
		if op, ok := def.(*ast.OperationDefinition); ok {
			return op
		}
	}
	t.Fatal("no operation in document")
	return nil
}

func compilePlan(t *testing.T, query string, vars VarIndex) *Plan {
	t.Helper()
	plan, err := Compile(blogCatalog(t), parseQuery(t, query), vars, Limits{})
	require.NoError(t, err)
	return plan
}

func compileErr(t *testing.T, query string, vars VarIndex) error {
	t.Helper()
	_, err := Compile(blogCatalog(t), parseQuery(t, query), vars, Limits{})
	require.Error(t, err)
	return err
}

func mustCursor(t *testing.T, typeName string, pkValues ...interface{}) string {
	t.Helper()
	id, err := cursor.Encode(typeName, pkValues...)
	require.NoError(t, err)
	return id
}

func TestCompile_MinimalConnection(t *testing.T) {
	plan := compilePlan(t, `{ allBlogPosts(first: 2) { edges { node { id } } } }`, nil)

	window := "(SELECT `a2`.`id`, `a2`.`author_id`, `a2`.`title`, `a2`.`status`, `a2`.`featured`, `a2`.`view_count`, " +
		"ROW_NUMBER() OVER (ORDER BY `a2`.`id` ASC) AS `rn` FROM `blog_post` AS `a2`)"
	want := "SELECT JSON_OBJECT('allBlogPosts', JSON_OBJECT('edges', " +
		"COALESCE((SELECT CAST(CONCAT('[', GROUP_CONCAT(" +
		"JSON_OBJECT('node', JSON_OBJECT('id', CAST(`a1`.`id` AS CHAR)))" +
		" ORDER BY `a1`.`rn` SEPARATOR ','), ']') AS JSON) FROM " + window +
		" AS `a1` WHERE (`a1`.`rn` <= 2)), JSON_ARRAY())))"

	assert.Equal(t, want, plan.SQL)
	assert.Equal(t, []string{"allBlogPosts"}, plan.Fields)
	assert.Empty(t, plan.Slots)
	assert.True(t, plan.Cacheable)
}

func TestCompile_AliasesBecomeResponseKeys(t *testing.T) {
	plan := compilePlan(t, `{ posts: allBlogPosts(first: 1) { edges { node { postId: id } } } }`, nil)

	assert.Equal(t, []string{"posts"}, plan.Fields)
	assert.Contains(t, plan.SQL, "JSON_OBJECT('posts', ")
	assert.Contains(t, plan.SQL, "JSON_OBJECT('postId', ")
}

func TestCompile_FieldSerialization(t *testing.T) {
	plan := compilePlan(t, `{ allBlogPosts(first: 1) { edges { node { id title status featured viewCount } } } }`, nil)

	assert.Contains(t, plan.SQL, "'id', CAST(`a1`.`id` AS CHAR)")
	assert.Contains(t, plan.SQL, "'title', `a1`.`title`")
	assert.Contains(t, plan.SQL, "'status', CASE `a1`.`status` WHEN 'draft' THEN 'DRAFT' WHEN 'published' THEN 'PUBLISHED' END")
	assert.Contains(t, plan.SQL, "'featured', CASE WHEN `a1`.`featured` IS NULL THEN NULL WHEN `a1`.`featured` THEN CAST('true' AS JSON) ELSE CAST('false' AS JSON) END")
	assert.Contains(t, plan.SQL, "'viewCount', `a1`.`view_count`")
}

func TestCompile_NodeIDField(t *testing.T) {
	plan := compilePlan(t, `{ allBlogPosts(first: 1) { edges { node { nodeId } } } }`, nil)

	assert.Contains(t, plan.SQL,
		"'nodeId', REPLACE(TO_BASE64(CAST(JSON_ARRAY('BlogPost', `a1`.`id`) AS CHAR)), '\\n', '')")
}

func TestCompile_TypenameConstants(t *testing.T) {
	plan := compilePlan(t, `{ allBlogPosts(first: 1) { __typename edges { __typename node { __typename id } } } }`, nil)

	assert.Contains(t, plan.SQL, "'__typename', 'BlogPostConnection'")
	assert.Contains(t, plan.SQL, "'__typename', 'BlogPostEdge'")
	assert.Contains(t, plan.SQL, "'__typename', 'BlogPost'")
}

func TestCompile_RootTypenameAnsweredOutsideStatement(t *testing.T) {
	plan := compilePlan(t, `{ __typename allBlogPosts(first: 1) { edges { node { id } } } }`, nil)

	assert.Equal(t, []string{"allBlogPosts"}, plan.Fields)
	assert.NotContains(t, plan.SQL, "'Query'")
}

func TestCompile_OnlyMetaFieldsSelected(t *testing.T) {
	err := compileErr(t, `{ __typename }`, nil)
	assert.EqualError(t, err, "operation selects no data fields")
}

func TestCompile_RootNodeLookup(t *testing.T) {
	id := mustCursor(t, "BlogPost", 7)
	plan := compilePlan(t, `{ blogPost(nodeId: "`+id+`") { id title } }`, nil)

	assert.Contains(t, plan.SQL, "FROM `blog_post` AS `a1` WHERE ")
	assert.Contains(t, plan.SQL,
		"JSON_UNQUOTE(JSON_EXTRACT(CONVERT(FROM_BASE64(?) USING utf8mb4), '$[0]')) = 'BlogPost'")
	assert.Contains(t, plan.SQL,
		"`a1`.`id` = CAST(JSON_UNQUOTE(JSON_EXTRACT(CONVERT(FROM_BASE64(?) USING utf8mb4), '$[1]')) AS SIGNED)")
	assert.Contains(t, plan.SQL, " LIMIT 1)")

	require.Len(t, plan.Slots, 2)
	for _, slot := range plan.Slots {
		assert.Equal(t, id, slot.Value)
		assert.Equal(t, "nodeId", slot.Arg)
		assert.Equal(t, "BlogPost", slot.Cursor)
		assert.Equal(t, 1, slot.CursorKeys)
	}
	assert.True(t, plan.Cacheable)
}

func TestCompile_RootNodeVariable(t *testing.T) {
	plan := compilePlan(t, `query ($id: ID!) { blogPost(nodeId: $id) { id } }`, nil)

	require.Len(t, plan.Slots, 2)
	for _, slot := range plan.Slots {
		assert.Equal(t, "id", slot.Var)
		assert.Equal(t, "BlogPost", slot.Cursor)
	}
	assert.True(t, plan.Cacheable)
}

func TestCompile_RootNodeRejectsBadIdentifiers(t *testing.T) {
	err := compileErr(t, `{ blogPost(nodeId: "%%%") { id } }`, nil)
	assert.Contains(t, err.Error(), "invalid nodeId")

	err = compileErr(t, `{ blogPost(nodeId: "`+mustCursor(t, "Account", 1)+`") { id } }`, nil)
	assert.EqualError(t, err, "invalid nodeId: expected an identifier for type 'BlogPost'")

	err = compileErr(t, `{ blogPost(nodeId: 7) { id } }`, nil)
	assert.EqualError(t, err, "nodeId must be a string")

	err = compileErr(t, `{ blogPost { id } }`, nil)
	assert.EqualError(t, err, "field 'blogPost' requires the 'nodeId' argument")
}

func TestCompile_ManyToOneSubquery(t *testing.T) {
	plan := compilePlan(t, `{ allBlogPosts(first: 1) { edges { node { title author { email } } } } }`, nil)

	assert.Contains(t, plan.SQL,
		"'author', (SELECT JSON_OBJECT('email', `a2`.`email`) FROM `account` AS `a2` WHERE (`a2`.`id` = `a1`.`author_id`) LIMIT 1)")
}

func TestCompile_NestedConnectionPartitionsByJoinKey(t *testing.T) {
	plan := compilePlan(t, `{
		allAccounts(first: 1) {
			edges { node { id blogPosts(first: 2) { edges { node { id } } } } }
		}
	}`, nil)

	// The nested window numbers rows per parent key; the correlation and the
	// page cap stay outside the derived table.
	assert.Contains(t, plan.SQL, "PARTITION BY `a3`.`author_id` ORDER BY `a3`.`id` ASC")
	assert.Contains(t, plan.SQL, "(`a2`.`author_id` = `a1`.`id` AND `a2`.`rn` <= 2)")
}

func TestCompile_SelectionRules(t *testing.T) {
	err := compileErr(t, `{ allBlogPosts }`, nil)
	assert.EqualError(t, err, "field 'allBlogPosts' on type 'BlogPostConnection' requires a selection set")

	err = compileErr(t, `{ allBlogPosts(first: 1) { edges { node { id { x } } } } }`, nil)
	assert.EqualError(t, err, "field 'id' on type 'BlogPost' does not take a selection set")

	err = compileErr(t, `{ allBlogPosts(first: 1) { edges { node { id(x: 1) } } } }`, nil)
	assert.EqualError(t, err, "unknown argument 'x' on field 'id'")
}

func TestCompile_UnknownFields(t *testing.T) {
	err := compileErr(t, `{ nothing { id } }`, nil)
	assert.EqualError(t, err, "Unknown field 'nothing' on type 'Query'")

	err = compileErr(t, `{ allBlogPosts(first: 1) { edges { node { missing } } } }`, nil)
	assert.EqualError(t, err, "Unknown field 'missing' on type 'BlogPost'")

	err = compileErr(t, `{ allBlogPosts(nope: 1) { edges { node { id } } } }`, nil)
	assert.EqualError(t, err, "unknown argument 'nope' on field 'allBlogPosts'")

	err = compileErr(t, `{ blogPost(first: 1) { id } }`, nil)
	assert.EqualError(t, err, "unknown argument 'first' on field 'blogPost'")
}

func TestCompile_MutationRejected(t *testing.T) {
	err := compileErr(t, `mutation { anything }`, nil)
	assert.Contains(t, err.Error(), "unsupported operation type")
}

func TestCompile_InlineFragmentRejected(t *testing.T) {
	err := compileErr(t, `{ ... on Query { allBlogPosts(first: 1) { totalCount } } }`, nil)
	assert.EqualError(t, err, "fragments must be inlined before compilation")
}

func TestCompile_NilCatalog(t *testing.T) {
	_, err := Compile(nil, parseQuery(t, `{ __typename }`), nil, Limits{})
	assert.EqualError(t, err, "no catalog snapshot")
}

func TestCompile_PageSizeDefaultsAndClamp(t *testing.T) {
	plan := compilePlan(t, `{ allBlogPosts { totalCount edges { node { id } } } }`, nil)
	assert.Contains(t, plan.SQL, "`rn` <= 10")

	plan = compilePlan(t, `{ allBlogPosts(first: 500) { edges { node { id } } } }`, nil)
	assert.Contains(t, plan.SQL, "`rn` <= 100")

	plan2, err := Compile(blogCatalog(t),
		parseQuery(t, `{ allBlogPosts { edges { node { id } } } }`), nil,
		Limits{DefaultPageSize: 5, MaxPageSize: 7})
	require.NoError(t, err)
	assert.Contains(t, plan2.SQL, "`rn` <= 5")

	plan2, err = Compile(blogCatalog(t),
		parseQuery(t, `{ allBlogPosts(first: 50) { edges { node { id } } } }`), nil,
		Limits{DefaultPageSize: 5, MaxPageSize: 7})
	require.NoError(t, err)
	assert.Contains(t, plan2.SQL, "`rn` <= 7")
}

func TestCompile_PageSizeValidation(t *testing.T) {
	err := compileErr(t, `{ allBlogPosts(first: -1) { totalCount } }`, nil)
	assert.EqualError(t, err, "first must be non-negative")

	err = compileErr(t, `{ allBlogPosts(first: 1.5) { totalCount } }`, nil)
	assert.EqualError(t, err, "first must be an integer")

	err = compileErr(t, `{ allBlogPosts(first: 1, last: 1) { totalCount } }`, nil)
	assert.EqualError(t, err, "cannot use both first and last")
}

func TestCompile_VariablePageSize(t *testing.T) {
	query := `query ($n: Int) { allBlogPosts(first: $n) { edges { node { id } } } }`

	plan, err := Compile(blogCatalog(t), parseQuery(t, query), MapVars{"n": 3}, Limits{})
	require.NoError(t, err)
	assert.Contains(t, plan.SQL, "`rn` <= 3")
	// The requested size is baked into the statement, so the plan only
	// serves this value.
	assert.False(t, plan.Cacheable)

	_, err = Compile(blogCatalog(t), parseQuery(t, query), nil, Limits{})
	require.Error(t, err)
	assert.EqualError(t, err, "variable '$n' is not defined")

	plan, err = Compile(blogCatalog(t), parseQuery(t, query), MapVars{"n": nil}, Limits{})
	require.NoError(t, err)
	assert.Contains(t, plan.SQL, "`rn` <= 10")

	_, err = Compile(blogCatalog(t), parseQuery(t, query), MapVars{"n": "three"}, Limits{})
	require.Error(t, err)
	assert.EqualError(t, err, "first must be an integer")
}

func TestCompile_VariableCursorStaysCacheable(t *testing.T) {
	plan := compilePlan(t, `query ($c: String) { allBlogPosts(first: 2, after: $c) { edges { node { id } } } }`, nil)

	assert.True(t, plan.Cacheable)
	assert.Contains(t, plan.SQL, "(? IS NULL OR (`a2`.`id`) > (")
	require.Len(t, plan.Slots, 2)
	for _, slot := range plan.Slots {
		assert.Equal(t, "c", slot.Var)
		assert.Equal(t, "after", slot.Arg)
		assert.Equal(t, "BlogPost", slot.Cursor)
		assert.Equal(t, 1, slot.CursorKeys)
	}
}

func TestCompile_MultipleRootFields(t *testing.T) {
	plan := compilePlan(t, `{
		allAccounts(first: 1) { totalCount }
		allBlogPosts(first: 1) { totalCount }
	}`, nil)

	assert.Equal(t, []string{"allAccounts", "allBlogPosts"}, plan.Fields)
	assert.Contains(t, plan.SQL, "'allAccounts', JSON_OBJECT('totalCount', (SELECT COUNT(*) FROM `account` AS `a1`))")
	assert.Contains(t, plan.SQL, "'allBlogPosts', JSON_OBJECT('totalCount', (SELECT COUNT(*) FROM `blog_post` AS `a2`))")
}
