package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"mysql-graphql/internal/sqlmeta"
)

func blogSchema(t *testing.T) *sqlmeta.Schema {
	t.Helper()
	schema := &sqlmeta.Schema{
		Tables: []sqlmeta.Table{
			{
				Name:    "account",
				Comment: "Registered accounts.",
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
					{Name: "view_count", DataType: "int", ColumnType: "int(11)", IsNullable: true},
					{Name: "body", DataType: "json", ColumnType: "json", IsNullable: true},
				},
				ForeignKeys: []sqlmeta.ForeignKey{
					{ConstraintName: "blog_post_ibfk_1", ColumnName: "author_id", ReferencedTable: "account", ReferencedColumn: "id", OrdinalPosition: 1},
				},
			},
		},
	}
	if err := sqlmeta.RebuildRelationships(schema); err != nil {
		t.Fatalf("failed to build relationships: %v", err)
	}
	return schema
}

// denyVisibility hides the named tables and table.column pairs.
type denyVisibility struct {
	tables  map[string]bool
	columns map[string]bool
}

func (d denyVisibility) AllowsTable(table string) bool {
	return !d.tables[table]
}

func (d denyVisibility) AllowsColumn(table, column string) bool {
	if d.tables[table] {
		return false
	}
	return !d.columns[table+"."+column]
}

func fieldNames(tp *Type) []string {
	names := make([]string, 0, len(tp.Fields))
	for _, f := range tp.Fields {
		names = append(names, f.Name)
	}
	return names
}

func TestBuild_NilSchema(t *testing.T) {
	_, err := Build(nil, nil, nil)
	require.Error(t, err)
}

func TestBuild_EntityTypesAndQueryRoot(t *testing.T) {
	cat, err := Build(blogSchema(t), nil, nil)
	require.NoError(t, err)

	account, ok := cat.EntityByType("Account")
	require.True(t, ok)
	assert.Equal(t, "account", account.Table)
	assert.Equal(t, "allAccounts", account.CollectionName)
	assert.Equal(t, "account", account.EntityName)
	require.Len(t, account.KeyColumns, 1)
	assert.Equal(t, "id", account.KeyColumns[0].Name)

	accountType, ok := cat.Type("Account")
	require.True(t, ok)
	assert.Equal(t, KindObject, accountType.Kind)
	assert.Equal(t, "Registered accounts.", accountType.Description)
	assert.Equal(t,
		[]string{"__typename", "nodeId", "id", "email", "createdAt", "blogPosts"},
		fieldNames(accountType))

	nodeID, _ := accountType.Field("nodeId")
	assert.Equal(t, ClassNodeID, nodeID.Class)
	assert.Equal(t, "ID!", nodeID.Type.String())

	id, _ := accountType.Field("id")
	assert.Equal(t, ClassColumn, id.Class)
	assert.Equal(t, "BigInt!", id.Type.String())
	createdAt, _ := accountType.Field("createdAt")
	assert.Equal(t, "Datetime", createdAt.Type.String())

	posts, ok := accountType.Field("blogPosts")
	require.True(t, ok)
	assert.Equal(t, ClassOneToMany, posts.Class)
	assert.Equal(t, "BlogPostConnection!", posts.Type.String())
	require.NotNil(t, posts.Join)
	assert.Equal(t, []string{"id"}, posts.Join.LocalColumns)
	assert.Equal(t, []string{"author_id"}, posts.Join.RemoteColumns)
	assert.Equal(t, "BlogPost", posts.Join.RemoteType)
	filterArg, ok := posts.Arg("filter")
	require.True(t, ok)
	assert.Equal(t, "BlogPostFilter", filterArg.Type.Name)
	orderByArg, ok := posts.Arg("orderBy")
	require.True(t, ok)
	assert.Equal(t, "[BlogPostOrderBy!]", orderByArg.Type.String())

	postType, ok := cat.Type("BlogPost")
	require.True(t, ok)
	author, ok := postType.Field("author")
	require.True(t, ok)
	assert.Equal(t, ClassManyToOne, author.Class)
	// Nullable even over a NOT NULL FK: the referenced row can be
	// invisible to the active role.
	assert.Equal(t, "Account", author.Type.String())
	require.NotNil(t, author.Join)
	assert.Equal(t, []string{"author_id"}, author.Join.LocalColumns)
	assert.Equal(t, []string{"id"}, author.Join.RemoteColumns)

	edge, ok := cat.Type("BlogPostEdge")
	require.True(t, ok)
	assert.Equal(t, KindEdge, edge.Kind)
	cursor, _ := edge.Field("cursor")
	assert.Equal(t, "String!", cursor.Type.String())
	node, _ := edge.Field("node")
	assert.Equal(t, ClassEdgeNode, node.Class)
	assert.Equal(t, "BlogPost!", node.Type.String())

	conn, ok := cat.Type("BlogPostConnection")
	require.True(t, ok)
	assert.Equal(t, KindConnection, conn.Kind)
	edges, _ := conn.Field("edges")
	assert.Equal(t, "[BlogPostEdge!]!", edges.Type.String())
	pageInfo, _ := conn.Field("pageInfo")
	assert.Equal(t, "PageInfo!", pageInfo.Type.String())
	totalCount, _ := conn.Field("totalCount")
	assert.Equal(t, "Int!", totalCount.Type.String())

	q := cat.QueryType()
	require.NotNil(t, q)
	assert.Equal(t,
		[]string{"__typename", "allAccounts", "account", "allBlogPosts", "blogPost"},
		fieldNames(q))
	allPosts, _ := q.Field("allBlogPosts")
	assert.Equal(t, ClassRootConnection, allPosts.Class)
	assert.Equal(t, "BlogPostConnection!", allPosts.Type.String())
	postField, _ := q.Field("blogPost")
	assert.Equal(t, ClassRootNode, postField.Class)
	assert.Equal(t, "BlogPost", postField.Type.String())
	nodeIDArg, ok := postField.Arg("nodeId")
	require.True(t, ok)
	assert.Equal(t, "ID!", nodeIDArg.Type.String())
}

func TestBuild_EnumColumnTypes(t *testing.T) {
	cat, err := Build(blogSchema(t), nil, nil)
	require.NoError(t, err)

	enum, ok := cat.Type("BlogPostStatusEnum")
	require.True(t, ok)
	assert.Equal(t, KindEnum, enum.Kind)
	require.Len(t, enum.EnumValues, 2)
	assert.Equal(t, EnumValue{Name: "DRAFT", Value: "draft"}, enum.EnumValues[0])
	assert.Equal(t, EnumValue{Name: "PUBLISHED", Value: "published"}, enum.EnumValues[1])

	postType, _ := cat.Type("BlogPost")
	status, ok := postType.Field("status")
	require.True(t, ok)
	assert.Equal(t, "BlogPostStatusEnum!", status.Type.String())

	enumFilter, ok := cat.Type("BlogPostStatusEnumFilter")
	require.True(t, ok)
	assert.Equal(t, KindInput, enumFilter.Kind)
	in, ok := enumFilter.InputField("in")
	require.True(t, ok)
	assert.Equal(t, "[BlogPostStatusEnum!]", in.Type.String())
	_, hasGt := enumFilter.InputField("gt")
	assert.False(t, hasGt)

	filter, ok := cat.Type("BlogPostFilter")
	require.True(t, ok)
	statusFilter, ok := filter.InputField("status")
	require.True(t, ok)
	assert.Equal(t, "BlogPostStatusEnumFilter", statusFilter.Type.Name)
}

func TestBuild_JSONColumnsNotFilterableOrOrderable(t *testing.T) {
	cat, err := Build(blogSchema(t), nil, nil)
	require.NoError(t, err)

	filter, ok := cat.Type("BlogPostFilter")
	require.True(t, ok)
	_, hasBody := filter.InputField("body")
	assert.False(t, hasBody)

	orderBy, ok := cat.Type("BlogPostOrderBy")
	require.True(t, ok)
	_, hasBody = orderBy.InputField("body")
	assert.False(t, hasBody)
	viewCount, ok := orderBy.InputField("viewCount")
	require.True(t, ok)
	assert.Equal(t, "OrderDirection", viewCount.Type.Name)

	postType, _ := cat.Type("BlogPost")
	body, ok := postType.Field("body")
	require.True(t, ok)
	assert.Equal(t, "JSON", body.Type.String())
}

func TestBuild_Builtins(t *testing.T) {
	cat, err := Build(&sqlmeta.Schema{}, nil, nil)
	require.NoError(t, err)

	pi, ok := cat.Type("PageInfo")
	require.True(t, ok)
	assert.Equal(t, KindPageInfo, pi.Kind)
	hasNext, ok := pi.Field("hasNextPage")
	require.True(t, ok)
	assert.Equal(t, ClassPageInfoFlag, hasNext.Class)
	assert.Equal(t, "Boolean!", hasNext.Type.String())
	startCursor, ok := pi.Field("startCursor")
	require.True(t, ok)
	assert.Equal(t, ClassPageInfoCursor, startCursor.Class)
	assert.Equal(t, "String", startCursor.Type.String())

	intFilter, ok := cat.Type("IntFilter")
	require.True(t, ok)
	var ops []string
	for _, f := range intFilter.InputFields {
		ops = append(ops, f.Name)
	}
	assert.Equal(t, []string{"eq", "neq", "gt", "gte", "lt", "lte", "in", "isNull"}, ops)
	in, _ := intFilter.InputField("in")
	assert.Equal(t, "[Int!]", in.Type.String())

	stringFilter, ok := cat.Type("StringFilter")
	require.True(t, ok)
	like, ok := stringFilter.InputField("like")
	require.True(t, ok)
	assert.Equal(t, "String", like.Type.String())

	boolFilter, ok := cat.Type("BooleanFilter")
	require.True(t, ok)
	ops = nil
	for _, f := range boolFilter.InputFields {
		ops = append(ops, f.Name)
	}
	assert.Equal(t, []string{"eq", "neq", "isNull"}, ops)

	dir, ok := cat.Type("OrderDirection")
	require.True(t, ok)
	require.Len(t, dir.EnumValues, 2)
	assert.Equal(t, "ASC", dir.EnumValues[0].Name)
	assert.Equal(t, "DESC", dir.EnumValues[1].Name)

	_, ok = cat.Type("JSONFilter")
	assert.False(t, ok)

	q := cat.QueryType()
	require.NotNil(t, q)
	assert.Equal(t, []string{"__typename"}, fieldNames(q))
}

func TestBuild_Deterministic(t *testing.T) {
	first, err := Build(blogSchema(t), nil, nil)
	require.NoError(t, err)
	second, err := Build(blogSchema(t), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// Naming is already applied on the second pass over the same schema.
	schema := blogSchema(t)
	third, err := Build(schema, nil, nil)
	require.NoError(t, err)
	fourth, err := Build(schema, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, third, fourth)
}

func TestBuild_VisibilityHidesColumn(t *testing.T) {
	cat, err := Build(blogSchema(t), denyVisibility{
		columns: map[string]bool{"blog_post.title": true},
	}, nil)
	require.NoError(t, err)

	postType, ok := cat.Type("BlogPost")
	require.True(t, ok)
	_, hasTitle := postType.Field("title")
	assert.False(t, hasTitle)

	filter, ok := cat.Type("BlogPostFilter")
	require.True(t, ok)
	_, hasTitle = filter.InputField("title")
	assert.False(t, hasTitle)

	post, ok := cat.EntityByType("BlogPost")
	require.True(t, ok)
	_, hasTitle = post.Column("title")
	assert.False(t, hasTitle)
}

func TestBuild_VisibilityHidesTable(t *testing.T) {
	cat, err := Build(blogSchema(t), denyVisibility{
		tables: map[string]bool{"account": true},
	}, nil)
	require.NoError(t, err)

	_, ok := cat.Type("Account")
	assert.False(t, ok)
	_, ok = cat.Type("AccountConnection")
	assert.False(t, ok)
	_, ok = cat.Type("AccountFilter")
	assert.False(t, ok)

	q := cat.QueryType()
	_, hasAll := q.Field("allAccounts")
	assert.False(t, hasAll)
	_, hasOne := q.Field("account")
	assert.False(t, hasOne)

	// The relationship to the hidden table vanishes with it.
	postType, ok := cat.Type("BlogPost")
	require.True(t, ok)
	_, hasAuthor := postType.Field("author")
	assert.False(t, hasAuthor)
}

func TestBuild_InvisibleJoinColumnDropsRelationship(t *testing.T) {
	cat, err := Build(blogSchema(t), denyVisibility{
		columns: map[string]bool{"blog_post.author_id": true},
	}, nil)
	require.NoError(t, err)

	postType, ok := cat.Type("BlogPost")
	require.True(t, ok)
	_, hasAuthor := postType.Field("author")
	assert.False(t, hasAuthor)

	accountType, ok := cat.Type("Account")
	require.True(t, ok)
	_, hasPosts := accountType.Field("blogPosts")
	assert.False(t, hasPosts)
}

func TestBuild_InvisibleKeyExcludesEntity(t *testing.T) {
	cat, err := Build(blogSchema(t), denyVisibility{
		columns: map[string]bool{"blog_post.id": true},
	}, nil)
	require.NoError(t, err)

	_, ok := cat.Type("BlogPost")
	assert.False(t, ok)
	assert.Len(t, cat.Entities(), 1)

	accountType, ok := cat.Type("Account")
	require.True(t, ok)
	_, hasPosts := accountType.Field("blogPosts")
	assert.False(t, hasPosts)
}

func TestBuild_KeylessTableExcluded(t *testing.T) {
	schema := &sqlmeta.Schema{
		Tables: []sqlmeta.Table{
			{
				Name: "audit_log",
				Columns: []sqlmeta.Column{
					{Name: "occurred_at", DataType: "datetime", ColumnType: "datetime"},
					{Name: "message", DataType: "text", ColumnType: "text"},
				},
			},
		},
	}
	cat, err := Build(schema, nil, nil)
	require.NoError(t, err)

	assert.Empty(t, cat.Entities())
	_, ok := cat.Type("AuditLog")
	assert.False(t, ok)
}

func TestBuild_UniqueIndexKeyFallback(t *testing.T) {
	schema := &sqlmeta.Schema{
		Tables: []sqlmeta.Table{
			{
				Name: "api_token",
				Columns: []sqlmeta.Column{
					{Name: "token", DataType: "varchar", ColumnType: "varchar(64)"},
					{Name: "issued_at", DataType: "datetime", ColumnType: "datetime"},
				},
				Indexes: []sqlmeta.Index{
					{Name: "uq_token", Unique: true, Columns: []string{"token"}},
				},
			},
		},
	}
	cat, err := Build(schema, nil, nil)
	require.NoError(t, err)

	token, ok := cat.EntityByType("ApiToken")
	require.True(t, ok)
	require.Len(t, token.KeyColumns, 1)
	assert.Equal(t, "token", token.KeyColumns[0].Name)
}

func TestBuild_NodeIDColumnKeepsSuffixedName(t *testing.T) {
	schema := &sqlmeta.Schema{
		Tables: []sqlmeta.Table{
			{
				Name: "replication_slot",
				Columns: []sqlmeta.Column{
					{Name: "id", DataType: "bigint", ColumnType: "bigint(20)", IsPrimaryKey: true},
					{Name: "node_id", DataType: "int", ColumnType: "int(11)"},
				},
			},
		},
	}
	cat, err := Build(schema, nil, nil)
	require.NoError(t, err)

	slot, ok := cat.Type("ReplicationSlot")
	require.True(t, ok)
	nodeID, ok := slot.Field("nodeId")
	require.True(t, ok)
	assert.Equal(t, ClassNodeID, nodeID.Class)
	column, ok := slot.Field("nodeId2")
	require.True(t, ok)
	assert.Equal(t, ClassColumn, column.Class)
}
