package naming

import (
	"log/slog"
	"strings"
)

// Namer converts SQL names to GraphQL names. It owns pluralization, reserved
// word suffixing, configured overrides, and collision bookkeeping.
type Namer struct {
	config   Config
	logger   *slog.Logger
	resolver *CollisionResolver
}

// New creates a Namer with the given configuration.
func New(cfg Config, logger *slog.Logger) *Namer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Namer{
		config:   cfg,
		logger:   logger,
		resolver: NewCollisionResolver(logger),
	}
}

// Default returns a Namer with default configuration.
func Default() *Namer {
	return New(DefaultConfig(), nil)
}

// Reset drops all collision state so the namer can serve a fresh schema build.
func (n *Namer) Reset() {
	n.resolver = NewCollisionResolver(n.logger)
}

// ToGraphQLTypeName converts a table name to a PascalCase GraphQL type name:
// "user_profiles" -> "UserProfiles". A configured type override wins outright.
func (n *Namer) ToGraphQLTypeName(tableName string) string {
	if override, ok := n.config.TypeOverrides[tableName]; ok {
		return override
	}

	// Reserved patterns must be checked against the SQL name; suffixes like
	// "_connection" are no longer visible after case conversion.
	if isReservedPattern(strings.ToLower(tableName)) {
		return n.suffixed(pascalCase(tableName), "reserved pattern")
	}

	name := pascalCase(tableName)
	if isReservedTypeName(name) {
		return n.suffixed(name, "reserved word")
	}
	return name
}

// ToGraphQLFieldName converts a column or table name to a camelCase GraphQL
// field name: "user_name" -> "userName".
func (n *Namer) ToGraphQLFieldName(columnName string) string {
	return camelCase(columnName)
}

// ConnectionTypeName derives the connection type name: "Account" -> "AccountConnection".
func (n *Namer) ConnectionTypeName(typeName string) string {
	return typeName + "Connection"
}

// EdgeTypeName derives the edge type name: "Account" -> "AccountEdge".
func (n *Namer) EdgeTypeName(typeName string) string {
	return typeName + "Edge"
}

// FilterTypeName derives the filter input type name for an entity type.
func (n *Namer) FilterTypeName(typeName string) string {
	return typeName + "Filter"
}

// OrderByTypeName derives the orderBy input type name for an entity type.
func (n *Namer) OrderByTypeName(typeName string) string {
	return typeName + "OrderBy"
}

// EnumTypeName derives the enum type name for an enum column:
// ("Account", "status") -> "AccountStatusEnum".
func (n *Namer) EnumTypeName(typeName, columnName string) string {
	return typeName + pascalCase(columnName) + "Enum"
}

// CollectionFieldName derives the root connection field for a table:
// "blog_post" -> "allBlogPosts".
func (n *Namer) CollectionFieldName(tableName string) string {
	return "all" + n.Pluralize(pascalCase(tableName))
}

// EntityFieldName derives the root single-row lookup field for a table:
// "blog_post" -> "blogPost".
func (n *Namer) EntityFieldName(tableName string) string {
	return n.Singularize(camelCase(tableName))
}

// ManyToOneFieldName derives the field name for a many-to-one relationship
// from the FK column, stripping common suffixes:
// "author_id" -> "author", "created_by_user_id" -> "createdByUser".
func (n *Namer) ManyToOneFieldName(fkColumn string) string {
	name := fkColumn
	for _, suffix := range []string{"_id", "_fk"} {
		if strings.HasSuffix(strings.ToLower(name), suffix) {
			name = name[:len(name)-len(suffix)]
			break
		}
	}
	return camelCase(name)
}

// OneToManyFieldName derives the field name for a one-to-many relationship.
// When the source table points at us through a single FK the plural table
// name suffices ("comments"); with multiple FKs the FK column disambiguates
// ("author_id" on posts -> "authorPosts").
func (n *Namer) OneToManyFieldName(sourceTable, fkColumn string, isOnlyFK bool) string {
	plural := n.Pluralize(camelCase(sourceTable))
	if isOnlyFK {
		return plural
	}

	prefix := n.ManyToOneFieldName(fkColumn)
	if plural == "" {
		return prefix
	}
	return prefix + strings.ToUpper(plural[:1]) + plural[1:]
}

// RegisterType maps a table to its GraphQL type name and claims it, returning
// the possibly-suffixed name.
func (n *Namer) RegisterType(tableName string) string {
	return n.resolver.RegisterType(n.ToGraphQLTypeName(tableName), tableName)
}

// RegisterColumnField claims the field name for a column. Columns register
// before relationships, so column-derived names always win precedence.
func (n *Namer) RegisterColumnField(typeName, columnName string) string {
	fieldName := n.fieldNameOrSuffixed(camelCase(columnName))
	return n.resolver.RegisterField(typeName, fieldName, "column:"+columnName)
}

// RegisterRelationshipField claims a relationship field name. A clash with an
// existing column field gets a Ref (many-to-one) or Rel (one-to-many) suffix
// rather than a bare numeric one.
func (n *Namer) RegisterRelationshipField(typeName, fieldName, source string, isManyToOne bool) string {
	fieldName = n.fieldNameOrSuffixed(fieldName)
	if n.resolver.FieldExists(typeName, fieldName) {
		if isManyToOne {
			fieldName += "Ref"
		} else {
			fieldName += "Rel"
		}
		fieldName = n.fieldNameOrSuffixed(fieldName)
	}
	return n.resolver.RegisterField(typeName, fieldName, "relationship:"+source)
}

// RegisterBuiltinField reserves a generated field name on a type before column
// registration, so column-derived names never shadow it. Used for the nodeId
// identity field every node type carries.
func (n *Namer) RegisterBuiltinField(typeName, fieldName string) string {
	return n.resolver.RegisterField(typeName, fieldName, "builtin:"+fieldName)
}

// RegisterCollectionField claims the root connection field for a table.
func (n *Namer) RegisterCollectionField(tableName string) string {
	return n.resolver.RegisterQuery(n.fieldNameOrSuffixed(n.CollectionFieldName(tableName)), tableName)
}

// RegisterEntityField claims the root single-row lookup field for a table.
func (n *Namer) RegisterEntityField(tableName string) string {
	if isReservedPattern(strings.ToLower(tableName)) {
		fieldName := n.suffixed(n.EntityFieldName(tableName), "reserved pattern")
		return n.resolver.RegisterQuery(fieldName, tableName)
	}
	return n.resolver.RegisterQuery(n.fieldNameOrSuffixed(n.EntityFieldName(tableName)), tableName)
}

func (n *Namer) fieldNameOrSuffixed(name string) string {
	if isReservedFieldName(name) {
		return n.suffixed(name, "reserved word")
	}
	return name
}

// suffixed appends a trailing underscore to move a name out of reserved space
// and logs the rename.
func (n *Namer) suffixed(name, reason string) string {
	renamed := name + "_"
	n.logger.Warn("GraphQL name conflicts with "+reason+", auto-suffixed",
		slog.String("original", name),
		slog.String("renamed", renamed),
	)
	return renamed
}

// pascalCase converts snake_case to PascalCase.
func pascalCase(s string) string {
	parts := strings.Split(s, "_")
	for i, part := range parts {
		if part != "" {
			parts[i] = strings.ToUpper(part[:1]) + part[1:]
		}
	}
	return strings.Join(parts, "")
}

// camelCase converts snake_case to camelCase, leaving the first segment as-is.
func camelCase(s string) string {
	parts := strings.Split(s, "_")
	for i := 1; i < len(parts); i++ {
		if parts[i] != "" {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	return strings.Join(parts, "")
}
