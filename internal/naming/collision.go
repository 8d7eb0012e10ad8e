package naming

import (
	"fmt"
	"log/slog"
)

// CollisionResolver tracks which GraphQL names are already taken and hands out
// numeric-suffixed alternatives when two SQL names map to the same GraphQL name.
type CollisionResolver struct {
	logger *slog.Logger

	types   map[string]string            // type name -> source table
	fields  map[string]map[string]string // type name -> field name -> source
	queries map[string]string            // root field name -> source table
}

// NewCollisionResolver creates an empty resolver.
func NewCollisionResolver(logger *slog.Logger) *CollisionResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &CollisionResolver{
		logger:  logger,
		types:   map[string]string{},
		fields:  map[string]map[string]string{},
		queries: map[string]string{},
	}
}

// RegisterType claims a GraphQL type name, returning the possibly-suffixed
// name that was actually registered.
func (c *CollisionResolver) RegisterType(graphqlName, tableName string) string {
	return c.claim(c.types, graphqlName, "table:"+tableName)
}

// RegisterField claims a field name within a type.
func (c *CollisionResolver) RegisterField(typeName, fieldName, source string) string {
	fields := c.fields[typeName]
	if fields == nil {
		fields = map[string]string{}
		c.fields[typeName] = fields
	}
	return c.claim(fields, fieldName, source)
}

// FieldExists reports whether a field name is already registered on a type.
func (c *CollisionResolver) FieldExists(typeName, fieldName string) bool {
	_, exists := c.fields[typeName][fieldName]
	return exists
}

// RegisterQuery claims a root query field name.
func (c *CollisionResolver) RegisterQuery(fieldName, tableName string) string {
	return c.claim(c.queries, fieldName, "table:"+tableName)
}

// claim registers name in seen, appending the lowest free numeric suffix
// (starting at 2) when the bare name is taken.
func (c *CollisionResolver) claim(seen map[string]string, name, source string) string {
	if _, taken := seen[name]; !taken {
		seen[name] = source
		return name
	}

	c.logger.Warn("naming collision detected, applying suffix",
		slog.String("name", name),
		slog.String("existing_source", seen[name]),
		slog.String("new_source", source),
	)

	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s%d", name, i)
		if _, taken := seen[candidate]; !taken {
			seen[candidate] = source
			return candidate
		}
	}
}
