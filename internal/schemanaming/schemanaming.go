// Package schemanaming applies naming rules to discovered schema elements.
package schemanaming

import (
	"fmt"
	"strings"

	"mysql-graphql/internal/naming"
	"mysql-graphql/internal/sqlmeta"
)

// Apply assigns GraphQL type and field names to the schema using the provided
// namer. It resets collision state to ensure deterministic naming per schema
// build: the same metadata always produces the same names.
func Apply(schema *sqlmeta.Schema, namer *naming.Namer) {
	if schema == nil {
		return
	}
	if namer == nil {
		namer = naming.Default()
	}
	namer.Reset()

	for ti := range schema.Tables {
		table := &schema.Tables[ti]

		typeName := namer.RegisterType(table.Name)
		table.GraphQLTypeName = typeName
		table.GraphQLCollectionFieldName = namer.RegisterCollectionField(table.Name)
		table.GraphQLEntityFieldName = namer.RegisterEntityField(table.Name)

		// Every node type carries a generated nodeId field; reserve it so a
		// node_id column gets suffixed instead of shadowing it.
		namer.RegisterBuiltinField(typeName, "nodeId")

		for ci := range table.Columns {
			col := &table.Columns[ci]
			col.GraphQLFieldName = namer.RegisterColumnField(typeName, col.Name)
		}

		for ri := range table.Relationships {
			rel := &table.Relationships[ri]
			rel.GraphQLFieldName = namer.RegisterRelationshipField(
				typeName,
				relationshipBaseName(namer, *rel),
				relationshipSource(*rel),
				rel.IsManyToOne,
			)
		}
	}

	schema.NamesApplied = true
}

// relationshipBaseName derives the pre-collision field name for a
// relationship. Many-to-one uses the FK column with its _id suffix stripped;
// one-to-many uses the pluralized remote table, qualified by the FK column
// when the remote table holds several FKs to this one.
func relationshipBaseName(namer *naming.Namer, rel sqlmeta.Relationship) string {
	if rel.IsManyToOne {
		if len(rel.LocalColumns) == 1 {
			return namer.ManyToOneFieldName(rel.LocalColumns[0])
		}
		return namer.ToGraphQLFieldName(rel.RemoteTable)
	}
	fkColumn := ""
	if len(rel.RemoteColumns) == 1 {
		fkColumn = rel.RemoteColumns[0]
	}
	return namer.OneToManyFieldName(rel.RemoteTable, fkColumn, rel.SoleReference)
}

// relationshipSource is a stable identity key so re-registering the same
// relationship yields the same name instead of a collision suffix.
func relationshipSource(rel sqlmeta.Relationship) string {
	direction := "m2o"
	if rel.IsOneToMany {
		direction = "o2m"
	}
	return fmt.Sprintf("%s:%s:%s:%s:%s",
		direction,
		rel.ConstraintName,
		rel.RemoteTable,
		strings.Join(rel.LocalColumns, ","),
		strings.Join(rel.RemoteColumns, ","),
	)
}
