package sqlmeta

import (
	"fmt"
	"path"
	"slices"
	"sort"
	"strconv"
	"strings"

	"mysql-graphql/internal/sqltype"
)

// EffectiveType returns the final GraphQL type category for a column,
// including explicit overrides resolved during schema preparation.
func EffectiveType(col Column) sqltype.GraphQLType {
	if col.HasOverrideType {
		return col.OverrideType
	}
	return sqltype.MapColumn(col.DataType, col.ColumnType)
}

// UUIDBinaryStorage reports whether a UUID-mapped column stores its value as
// BINARY(16) rather than text. Readers must hex-format and writers must unhex.
func UUIDBinaryStorage(col Column) bool {
	if EffectiveType(col) != sqltype.TypeUUID {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(col.DataType)) {
	case "binary", "varbinary":
		return true
	}
	return false
}

// ApplyUUIDTypeOverrides marks columns as TypeUUID based on SQL table/column glob patterns.
// Patterns are matched case-insensitively against SQL names.
func ApplyUUIDTypeOverrides(schema *Schema, patterns map[string][]string) error {
	if schema == nil || len(patterns) == 0 {
		return nil
	}
	for ti := range schema.Tables {
		table := &schema.Tables[ti]
		columnPatterns := mergePatterns(patterns, table.Name)
		if len(columnPatterns) == 0 {
			continue
		}
		for ci := range table.Columns {
			col := &table.Columns[ci]
			if !matchesAny(col.Name, columnPatterns) {
				continue
			}
			if err := validateUUIDOverrideColumn(*col); err != nil {
				return fmt.Errorf("invalid UUID mapping for %s.%s: %w", table.Name, col.Name, err)
			}
			col.OverrideType = sqltype.TypeUUID
			col.HasOverrideType = true
		}
	}
	return nil
}

// ApplyTinyInt1TypeOverrides resolves TINYINT(1) mapping overrides from SQL
// table/column glob patterns. Bool patterns pin the Boolean mapping explicitly;
// int patterns opt a TINYINT(1) column back into Int for columns that hold
// small numbers rather than flags. Int patterns win when both match.
func ApplyTinyInt1TypeOverrides(schema *Schema, boolPatterns, intPatterns map[string][]string) error {
	if schema == nil || (len(boolPatterns) == 0 && len(intPatterns) == 0) {
		return nil
	}
	for ti := range schema.Tables {
		table := &schema.Tables[ti]
		boolCols := mergePatterns(boolPatterns, table.Name)
		intCols := mergePatterns(intPatterns, table.Name)
		if len(boolCols) == 0 && len(intCols) == 0 {
			continue
		}
		for ci := range table.Columns {
			col := &table.Columns[ci]
			matchBool := matchesAny(col.Name, boolCols)
			matchInt := matchesAny(col.Name, intCols)
			if !matchBool && !matchInt {
				continue
			}
			if err := validateTinyInt1OverrideColumn(*col); err != nil {
				return fmt.Errorf("invalid TINYINT(1) mapping for %s.%s: %w", table.Name, col.Name, err)
			}
			if matchInt {
				col.OverrideType = sqltype.TypeInt
			} else {
				col.OverrideType = sqltype.TypeBoolean
			}
			col.HasOverrideType = true
		}
	}
	return nil
}

func validateTinyInt1OverrideColumn(col Column) error {
	if sqltype.MapColumn(col.DataType, col.ColumnType) != sqltype.TypeBoolean {
		return fmt.Errorf("expected tinyint(1), found %q", col.ColumnType)
	}
	return nil
}

func mergePatterns(patterns map[string][]string, table string) []string {
	if patterns == nil {
		return nil
	}
	tableLower := strings.ToLower(table)
	keys := make([]string, 0, len(patterns))
	for key := range patterns {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	combined := make([]string, 0)
	for _, key := range keys {
		// Table keys are glob patterns over SQL table names (case-insensitive),
		// so "*" and specific patterns can contribute column patterns.
		pattern := strings.ToLower(strings.TrimSpace(key))
		if pattern == "" {
			continue
		}
		matched, err := path.Match(pattern, tableLower)
		if err != nil || !matched {
			continue
		}
		combined = append(combined, patterns[key]...)
	}
	return slices.Compact(combined)
}

func matchesAny(value string, patterns []string) bool {
	value = strings.ToLower(value)
	for _, pattern := range patterns {
		if pattern == "" {
			continue
		}
		ok, err := path.Match(strings.ToLower(pattern), value)
		if err != nil {
			continue
		}
		if ok {
			return true
		}
	}
	return false
}

func validateUUIDOverrideColumn(col Column) error {
	baseType := strings.ToLower(strings.TrimSpace(col.DataType))
	switch baseType {
	case "binary", "varbinary":
		length, ok := sqlTypeLength(col)
		if !ok || length != 16 {
			return fmt.Errorf("%s requires length 16 for UUID binary storage", strings.ToUpper(baseType))
		}
		return nil
	case "char", "varchar":
		length, ok := sqlTypeLength(col)
		if !ok || length < 36 {
			return fmt.Errorf("%s requires length >= 36 for UUID text storage", strings.ToUpper(baseType))
		}
		return nil
	default:
		return fmt.Errorf("unsupported SQL type %q for UUID mapping", col.DataType)
	}
}

func sqlTypeLength(col Column) (int, bool) {
	typeSpec := strings.TrimSpace(col.ColumnType)
	if typeSpec == "" {
		typeSpec = strings.TrimSpace(col.DataType)
	}
	start := strings.Index(typeSpec, "(")
	end := strings.Index(typeSpec, ")")
	if start == -1 || end == -1 || end <= start+1 {
		return 0, false
	}
	lengthSpec := strings.TrimSpace(typeSpec[start+1 : end])
	if idx := strings.Index(lengthSpec, ","); idx != -1 {
		lengthSpec = strings.TrimSpace(lengthSpec[:idx])
	}
	if lengthSpec == "" {
		return 0, false
	}
	length, err := strconv.Atoi(lengthSpec)
	if err != nil {
		return 0, false
	}
	return length, true
}
