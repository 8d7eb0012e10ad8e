package compiler

import (
	"fmt"
	"strings"

	"mysql-graphql/internal/catalog"
	"mysql-graphql/internal/cursor"
	"mysql-graphql/internal/sqlmeta"
	"mysql-graphql/internal/sqltype"
	"mysql-graphql/internal/sqlutil"
)

// columnJSONExpr renders a column the way its scalar contract serializes:
// 64-bit and fixed-point numbers as strings, booleans as JSON true/false,
// temporal values in MySQL text layouts, binary and UUID storage through the
// wire encoding, JSON columns verbatim.
func (c *compile) columnJSONExpr(alias string, f *catalog.Field) string {
	col := f.Column
	qualified := sqlutil.QualifyColumn(alias, col.Name)
	if t, ok := c.cat.Type(f.Type.Name); ok && t.Kind == catalog.KindEnum {
		return enumNameExpr(qualified, t.EnumValues)
	}
	switch sqlmeta.EffectiveType(*col) {
	case sqltype.TypeBoolean:
		return fmt.Sprintf(
			"CASE WHEN %s IS NULL THEN NULL WHEN %s THEN CAST('true' AS JSON) ELSE CAST('false' AS JSON) END",
			qualified, qualified,
		)
	case sqltype.TypeBigInt, sqltype.TypeDecimal:
		return fmt.Sprintf("CAST(%s AS CHAR)", qualified)
	case sqltype.TypeDate:
		return fmt.Sprintf("DATE_FORMAT(%s, '%%Y-%%m-%%d')", qualified)
	case sqltype.TypeDateTime:
		return fmt.Sprintf("DATE_FORMAT(%s, '%%Y-%%m-%%d %%H:%%i:%%s')", qualified)
	case sqltype.TypeTime:
		return fmt.Sprintf("TIME_FORMAT(%s, '%%H:%%i:%%s')", qualified)
	case sqltype.TypeUUID, sqltype.TypeBytes:
		return cursor.KeyColumnExpr(alias, *col)
	default:
		return qualified
	}
}

// enumNameExpr maps stored enum values to their exposed names. NULL and any
// stored value outside the declared set both render as NULL.
func enumNameExpr(qualified string, values []catalog.EnumValue) string {
	var sb strings.Builder
	sb.WriteString("CASE ")
	sb.WriteString(qualified)
	for _, v := range values {
		fmt.Fprintf(&sb, " WHEN %s THEN %s", sqlutil.QuoteString(v.Value), sqlutil.QuoteString(v.Name))
	}
	sb.WriteString(" END")
	return sb.String()
}

// rowCursorExpr produces the opaque identifier for one row of an entity.
func rowCursorExpr(alias string, entity *catalog.Entity) string {
	keyExprs := make([]string, len(entity.KeyColumns))
	for i, key := range entity.KeyColumns {
		keyExprs[i] = cursor.KeyColumnExpr(alias, key)
	}
	return cursor.EncodeExpr(entity.TypeName, keyExprs)
}
