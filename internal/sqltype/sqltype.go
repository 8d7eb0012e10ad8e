// Package sqltype provides a shared mapping from SQL column types to GraphQL
// scalar categories. Schema generation, cursor coercion, and SQL compilation
// all classify columns through this package so a column never changes type
// between the catalog and the compiled statement.
package sqltype

import "strings"

// GraphQLType is the scalar category assigned to a SQL column.
type GraphQLType int

const (
	// TypeString is the default for text, enum, and unknown SQL types.
	TypeString GraphQLType = iota
	// TypeInt covers 32-bit-safe integer types.
	TypeInt
	// TypeBigInt covers BIGINT and SERIAL, serialized as strings to avoid
	// precision loss in JSON numbers.
	TypeBigInt
	// TypeFloat covers floating-point types.
	TypeFloat
	// TypeDecimal covers fixed-point types, serialized as strings.
	TypeDecimal
	// TypeBoolean covers BOOL/BOOLEAN and TINYINT(1).
	TypeBoolean
	// TypeJSON covers native JSON columns.
	TypeJSON
	// TypeDate covers DATE.
	TypeDate
	// TypeDateTime covers DATETIME and TIMESTAMP.
	TypeDateTime
	// TypeTime covers TIME.
	TypeTime
	// TypeBytes covers binary and blob types, serialized as base64 strings.
	TypeBytes
	// TypeSet covers SET columns, serialized as comma-joined member lists.
	TypeSet
	// TypeUUID marks columns promoted to UUID semantics by configuration.
	// BINARY(16) storage round-trips through canonical text form.
	TypeUUID
)

// MapToGraphQL converts an INFORMATION_SCHEMA data type to its scalar
// category. The input is case-insensitive and size specifiers like (10,2)
// or (255) are stripped, so both DATA_TYPE and COLUMN_TYPE values work.
func MapToGraphQL(sqlType string) GraphQLType {
	if idx := strings.Index(sqlType, "("); idx != -1 {
		sqlType = sqlType[:idx]
	}
	switch strings.ToUpper(strings.TrimSpace(sqlType)) {
	case "TINYINT", "SMALLINT", "MEDIUMINT", "INT", "INTEGER", "BIT", "YEAR":
		return TypeInt
	case "BIGINT", "SERIAL":
		return TypeBigInt
	case "FLOAT", "DOUBLE", "REAL":
		return TypeFloat
	case "DECIMAL", "NUMERIC":
		return TypeDecimal
	case "BOOL", "BOOLEAN":
		return TypeBoolean
	case "JSON":
		return TypeJSON
	case "DATE":
		return TypeDate
	case "DATETIME", "TIMESTAMP":
		return TypeDateTime
	case "TIME":
		return TypeTime
	case "BINARY", "VARBINARY", "BLOB", "TINYBLOB", "MEDIUMBLOB", "LONGBLOB":
		return TypeBytes
	case "SET":
		return TypeSet
	case "CHAR", "VARCHAR", "TINYTEXT", "TEXT", "MEDIUMTEXT", "LONGTEXT", "ENUM":
		return TypeString
	default:
		return TypeString
	}
}

// MapColumn classifies a column using both DATA_TYPE and COLUMN_TYPE.
// TINYINT(1) is the MySQL convention for booleans and only COLUMN_TYPE
// carries the display width, so the base mapping alone cannot see it.
func MapColumn(dataType, columnType string) GraphQLType {
	normalized := strings.ToLower(strings.ReplaceAll(columnType, " ", ""))
	if strings.HasPrefix(normalized, "tinyint(1)") {
		return TypeBoolean
	}
	return MapToGraphQL(dataType)
}

// String returns the GraphQL scalar type name used in the schema.
func (t GraphQLType) String() string {
	switch t {
	case TypeInt:
		return "Int"
	case TypeBigInt:
		return "BigInt"
	case TypeFloat:
		return "Float"
	case TypeDecimal:
		return "Decimal"
	case TypeBoolean:
		return "Boolean"
	case TypeJSON:
		return "JSON"
	case TypeDate:
		return "Date"
	case TypeDateTime:
		return "Datetime"
	case TypeTime:
		return "Time"
	case TypeBytes:
		return "Base64Bytes"
	case TypeUUID:
		return "UUID"
	default:
		// SET serializes as a comma-joined string.
		return "String"
	}
}

// FilterTypeName returns the filter input type name used for this scalar
// in generated <Type>Filter inputs.
func (t GraphQLType) FilterTypeName() string {
	switch t {
	case TypeInt:
		return "IntFilter"
	case TypeBigInt:
		return "BigIntFilter"
	case TypeFloat:
		return "FloatFilter"
	case TypeDecimal:
		return "DecimalFilter"
	case TypeBoolean:
		return "BooleanFilter"
	case TypeDate:
		return "DateFilter"
	case TypeDateTime:
		return "DatetimeFilter"
	case TypeTime:
		return "TimeFilter"
	case TypeUUID:
		return "UUIDFilter"
	default:
		return "StringFilter"
	}
}

// Filterable reports whether columns of this category participate in
// generated filter inputs. JSON and binary columns are excluded: neither
// has a defined comparison contract over the wire format.
func (t GraphQLType) Filterable() bool {
	switch t {
	case TypeJSON, TypeBytes:
		return false
	default:
		return true
	}
}

// Orderable reports whether columns of this category may appear in orderBy
// arguments and keyset tuples.
func (t GraphQLType) Orderable() bool {
	switch t {
	case TypeJSON, TypeBytes:
		return false
	default:
		return true
	}
}

// CastTarget returns the CAST target used when a cursor or node ID element
// must be converted to this category inside SQL. columnType supplies
// precision for DECIMAL and signedness for integers.
func (t GraphQLType) CastTarget(columnType string) string {
	lower := strings.ToLower(columnType)
	switch t {
	case TypeInt, TypeBigInt, TypeBoolean:
		if strings.Contains(lower, "unsigned") {
			return "UNSIGNED"
		}
		return "SIGNED"
	case TypeFloat:
		return "DOUBLE"
	case TypeDecimal:
		if spec := decimalSpec(columnType); spec != "" {
			return "DECIMAL" + spec
		}
		return "DECIMAL(65,30)"
	case TypeDate:
		return "DATE"
	case TypeDateTime:
		return "DATETIME(6)"
	case TypeTime:
		return "TIME(6)"
	default:
		return "CHAR"
	}
}

func decimalSpec(columnType string) string {
	start := strings.Index(columnType, "(")
	end := strings.Index(columnType, ")")
	if start == -1 || end == -1 || end <= start+1 {
		return ""
	}
	return columnType[start : end+1]
}
