package sqlmeta

import "mysql-graphql/internal/naming"

// defaultNamer is the package-level namer used for default GraphQL names.
// This uses default configuration without collision detection.
var defaultNamer = naming.Default()

// ToGraphQLTypeName converts a table name to a GraphQL type name (PascalCase).
func ToGraphQLTypeName(name string) string {
	return defaultNamer.ToGraphQLTypeName(name)
}

// ToGraphQLFieldName converts a column/table name to a GraphQL field name (camelCase).
func ToGraphQLFieldName(name string) string {
	return defaultNamer.ToGraphQLFieldName(name)
}

// GraphQLTypeName returns the resolved GraphQL type name for a table.
func GraphQLTypeName(table Table) string {
	if table.GraphQLTypeName != "" {
		return table.GraphQLTypeName
	}
	return ToGraphQLTypeName(table.Name)
}

// GraphQLCollectionFieldName returns the resolved root connection field name
// for a table (e.g., "allAccounts").
func GraphQLCollectionFieldName(table Table) string {
	if table.GraphQLCollectionFieldName != "" {
		return table.GraphQLCollectionFieldName
	}
	return defaultNamer.CollectionFieldName(table.Name)
}

// GraphQLEntityFieldName returns the resolved root single-row lookup field
// name for a table (e.g., "account").
func GraphQLEntityFieldName(table Table) string {
	if table.GraphQLEntityFieldName != "" {
		return table.GraphQLEntityFieldName
	}
	return defaultNamer.EntityFieldName(table.Name)
}

// GraphQLFieldName returns the resolved GraphQL field name for a column.
func GraphQLFieldName(col Column) string {
	if col.GraphQLFieldName != "" {
		return col.GraphQLFieldName
	}
	return ToGraphQLFieldName(col.Name)
}
