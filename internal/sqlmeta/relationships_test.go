package sqlmeta

import "testing"

func testBlogSchema() *Schema {
	return &Schema{
		Tables: []Table{
			{
				Name: "account",
				Columns: []Column{
					{Name: "id", DataType: "int", IsPrimaryKey: true},
					{Name: "email", DataType: "varchar"},
				},
			},
			{
				Name: "blog_post",
				Columns: []Column{
					{Name: "id", DataType: "int", IsPrimaryKey: true},
					{Name: "author_id", DataType: "int"},
					{Name: "editor_id", DataType: "int"},
				},
				ForeignKeys: []ForeignKey{
					{ConstraintName: "fk_author", ColumnName: "author_id", ReferencedTable: "account", ReferencedColumn: "id", OrdinalPosition: 1},
					{ConstraintName: "fk_editor", ColumnName: "editor_id", ReferencedTable: "account", ReferencedColumn: "id", OrdinalPosition: 1},
				},
			},
			{
				Name: "comment",
				Columns: []Column{
					{Name: "id", DataType: "int", IsPrimaryKey: true},
					{Name: "post_id", DataType: "int"},
				},
				ForeignKeys: []ForeignKey{
					{ConstraintName: "fk_post", ColumnName: "post_id", ReferencedTable: "blog_post", ReferencedColumn: "id", OrdinalPosition: 1},
				},
			},
		},
	}
}

func findRelationship(table Table, remoteTable, constraint string) *Relationship {
	for i := range table.Relationships {
		rel := &table.Relationships[i]
		if rel.RemoteTable == remoteTable && rel.ConstraintName == constraint {
			return rel
		}
	}
	return nil
}

func TestBuildRelationships_ManyToOne(t *testing.T) {
	schema := testBlogSchema()
	if err := RebuildRelationships(schema); err != nil {
		t.Fatalf("failed to build relationships: %v", err)
	}

	blogPost := schema.Tables[1]
	rel := findRelationship(blogPost, "account", "fk_author")
	if rel == nil {
		t.Fatalf("expected blog_post -> account relationship for fk_author")
	}
	if !rel.IsManyToOne || rel.IsOneToMany {
		t.Fatalf("expected many-to-one, got %+v", rel)
	}
	if len(rel.LocalColumns) != 1 || rel.LocalColumns[0] != "author_id" {
		t.Fatalf("unexpected local columns: %#v", rel.LocalColumns)
	}
	if len(rel.RemoteColumns) != 1 || rel.RemoteColumns[0] != "id" {
		t.Fatalf("unexpected remote columns: %#v", rel.RemoteColumns)
	}
}

func TestBuildRelationships_OneToManyReverse(t *testing.T) {
	schema := testBlogSchema()
	if err := RebuildRelationships(schema); err != nil {
		t.Fatalf("failed to build relationships: %v", err)
	}

	blogPost := schema.Tables[1]
	rel := findRelationship(blogPost, "comment", "fk_post")
	if rel == nil {
		t.Fatalf("expected blog_post -> comment reverse relationship")
	}
	if !rel.IsOneToMany || rel.IsManyToOne {
		t.Fatalf("expected one-to-many, got %+v", rel)
	}
	if len(rel.LocalColumns) != 1 || rel.LocalColumns[0] != "id" {
		t.Fatalf("unexpected local columns: %#v", rel.LocalColumns)
	}
	if len(rel.RemoteColumns) != 1 || rel.RemoteColumns[0] != "post_id" {
		t.Fatalf("unexpected remote columns: %#v", rel.RemoteColumns)
	}
	if !rel.SoleReference {
		t.Fatalf("expected sole reference for single FK, got %+v", rel)
	}
}

func TestBuildRelationships_MultipleFKsNotSoleReference(t *testing.T) {
	schema := testBlogSchema()
	if err := RebuildRelationships(schema); err != nil {
		t.Fatalf("failed to build relationships: %v", err)
	}

	account := schema.Tables[0]
	authorRel := findRelationship(account, "blog_post", "fk_author")
	editorRel := findRelationship(account, "blog_post", "fk_editor")
	if authorRel == nil || editorRel == nil {
		t.Fatalf("expected reverse relationships for both FKs to account")
	}
	if authorRel.SoleReference || editorRel.SoleReference {
		t.Fatalf("expected disambiguation flag when two FKs target the same table")
	}
}

func TestBuildRelationships_CompositeKeys(t *testing.T) {
	schema := &Schema{
		Tables: []Table{
			{
				Name: "users",
				Columns: []Column{
					{Name: "tenant_id", IsPrimaryKey: true},
					{Name: "id", IsPrimaryKey: true},
				},
			},
			{
				Name: "memberships",
				Columns: []Column{
					{Name: "id", IsPrimaryKey: true},
					{Name: "user_tenant_id"},
					{Name: "user_id"},
				},
				ForeignKeys: []ForeignKey{
					{ConstraintName: "fk_member_user", ColumnName: "user_tenant_id", ReferencedTable: "users", ReferencedColumn: "tenant_id", OrdinalPosition: 1},
					{ConstraintName: "fk_member_user", ColumnName: "user_id", ReferencedTable: "users", ReferencedColumn: "id", OrdinalPosition: 2},
				},
			},
		},
	}

	if err := RebuildRelationships(schema); err != nil {
		t.Fatalf("failed to build relationships: %v", err)
	}

	memberships := schema.Tables[1]
	rel := findRelationship(memberships, "users", "fk_member_user")
	if rel == nil {
		t.Fatalf("expected composite many-to-one relationship")
	}
	if len(rel.LocalColumns) != 2 || rel.LocalColumns[0] != "user_tenant_id" || rel.LocalColumns[1] != "user_id" {
		t.Fatalf("unexpected composite local columns: %#v", rel.LocalColumns)
	}
	if len(rel.RemoteColumns) != 2 || rel.RemoteColumns[0] != "tenant_id" || rel.RemoteColumns[1] != "id" {
		t.Fatalf("unexpected composite remote columns: %#v", rel.RemoteColumns)
	}

	users := schema.Tables[0]
	reverse := findRelationship(users, "memberships", "fk_member_user")
	if reverse == nil {
		t.Fatalf("expected composite one-to-many reverse relationship")
	}
	if len(reverse.LocalColumns) != 2 || reverse.LocalColumns[0] != "tenant_id" {
		t.Fatalf("unexpected reverse local columns: %#v", reverse.LocalColumns)
	}
}

func TestBuildRelationships_ViewsSkipped(t *testing.T) {
	schema := testBlogSchema()
	schema.Tables = append(schema.Tables, Table{
		Name:   "account_summary",
		IsView: true,
		ForeignKeys: []ForeignKey{
			{ConstraintName: "fk_bogus", ColumnName: "account_id", ReferencedTable: "account", ReferencedColumn: "id", OrdinalPosition: 1},
		},
	})

	if err := RebuildRelationships(schema); err != nil {
		t.Fatalf("failed to build relationships: %v", err)
	}

	view := schema.Tables[3]
	if len(view.Relationships) != 0 {
		t.Fatalf("expected no relationships on views, got %#v", view.Relationships)
	}
	account := schema.Tables[0]
	if rel := findRelationship(account, "account_summary", "fk_bogus"); rel != nil {
		t.Fatalf("expected no reverse relationship pointing into a view")
	}
}

func TestRebuildRelationships_ClearsStale(t *testing.T) {
	schema := testBlogSchema()
	schema.Tables[0].Relationships = []Relationship{
		{IsOneToMany: true, RemoteTable: "deleted_table", ConstraintName: "fk_gone"},
	}

	if err := RebuildRelationships(schema); err != nil {
		t.Fatalf("failed to rebuild relationships: %v", err)
	}

	account := schema.Tables[0]
	if rel := findRelationship(account, "deleted_table", "fk_gone"); rel != nil {
		t.Fatalf("expected stale relationship to be cleared")
	}
}
