package cursor

import (
	"fmt"
	"strings"

	"mysql-graphql/internal/sqlmeta"
	"mysql-graphql/internal/sqltype"
	"mysql-graphql/internal/sqlutil"
)

// KeyColumnExpr returns the SQL expression that renders a key column the way
// the wire format expects it: binary UUIDs as canonical lowercase text, raw
// binary as base64, everything else as the column itself.
func KeyColumnExpr(alias string, col sqlmeta.Column) string {
	qualified := sqlutil.QualifyColumn(alias, col.Name)
	switch sqlmeta.EffectiveType(col) {
	case sqltype.TypeUUID:
		if sqlmeta.UUIDBinaryStorage(col) {
			return uuidTextExpr(qualified)
		}
		return fmt.Sprintf("LOWER(%s)", qualified)
	case sqltype.TypeBytes:
		return fmt.Sprintf("REPLACE(TO_BASE64(%s), '\\n', '')", qualified)
	default:
		return qualified
	}
}

// EncodeExpr returns the SQL expression producing an encoded identifier for a
// row: base64 over the JSON array [TypeName, key...], with the line breaks
// TO_BASE64 inserts stripped out.
func EncodeExpr(typeName string, keyExprs []string) string {
	args := make([]string, 0, len(keyExprs)+1)
	args = append(args, sqlutil.QuoteString(typeName))
	args = append(args, keyExprs...)
	return fmt.Sprintf("REPLACE(TO_BASE64(CAST(JSON_ARRAY(%s) AS CHAR)), '\\n', '')", strings.Join(args, ", "))
}

// DecodeElementExpr returns the SQL expression extracting one key element from
// an encoded identifier held in source (normally a bind placeholder) and
// converting it to the column's comparison type. position is the zero-based
// key index; element zero of the payload is the type name.
func DecodeElementExpr(source string, position int, col sqlmeta.Column) string {
	element := fmt.Sprintf(
		"JSON_UNQUOTE(JSON_EXTRACT(CONVERT(FROM_BASE64(%s) USING utf8mb4), '$[%d]'))",
		source, position+1,
	)
	effectiveType := sqlmeta.EffectiveType(col)
	switch effectiveType {
	case sqltype.TypeUUID:
		if sqlmeta.UUIDBinaryStorage(col) {
			return fmt.Sprintf("UNHEX(REPLACE(%s, '-', ''))", element)
		}
		return fmt.Sprintf("LOWER(%s)", element)
	case sqltype.TypeBytes:
		return fmt.Sprintf("FROM_BASE64(%s)", element)
	default:
		return fmt.Sprintf("CAST(%s AS %s)", element, effectiveType.CastTarget(col.ColumnType))
	}
}

// uuidTextExpr formats BINARY(16) storage as the canonical 8-4-4-4-12
// lowercase UUID string.
func uuidTextExpr(qualified string) string {
	hexed := fmt.Sprintf("HEX(%s)", qualified)
	return fmt.Sprintf(
		"LOWER(CONCAT_WS('-', SUBSTR(%s, 1, 8), SUBSTR(%s, 9, 4), SUBSTR(%s, 13, 4), SUBSTR(%s, 17, 4), SUBSTR(%s, 21, 12)))",
		hexed, hexed, hexed, hexed, hexed,
	)
}
