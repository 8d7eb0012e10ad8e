package naming

import "strings"

// graphqlReservedTypeWords holds lowercase names that generated types must not
// claim: GraphQL keywords, built-in scalars, literals, and names owned by the
// connection machinery.
var graphqlReservedTypeWords = func() map[string]bool {
	words := []string{
		// language keywords
		"query", "mutation", "subscription", "type", "schema", "scalar",
		"enum", "input", "interface", "union", "fragment", "directive",
		"extend", "implements", "on",
		// built-in scalars
		"int", "float", "string", "boolean", "id",
		// literals
		"true", "false", "null",
		// generated connection machinery
		"pageinfo",
	}
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}()

// generatedNameSuffixes are name suffixes the schema builder derives for every
// entity type. A table named "account_connection" would otherwise claim the
// type name the generated AccountConnection type also needs.
var generatedNameSuffixes = []string{"_connection", "_edge", "_aggregate"}

func isReservedTypeName(name string) bool {
	lower := strings.ToLower(name)
	switch {
	case strings.HasPrefix(lower, "__"):
		return true
	case graphqlReservedTypeWords[lower]:
		return true
	}
	return isReservedPattern(lower)
}

func isReservedFieldName(name string) bool {
	lower := strings.ToLower(name)
	if strings.HasPrefix(lower, "__") {
		return true
	}
	return isReservedPattern(lower)
}

func isReservedPattern(name string) bool {
	for _, suffix := range generatedNameSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}
