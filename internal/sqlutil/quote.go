// Package sqlutil provides SQL quoting helpers shared by the compiler and
// the metadata queries.
package sqlutil

import "strings"

// QuoteIdentifier quotes a SQL identifier (table name, column name, alias)
// with backticks and escapes any backticks within the identifier.
func QuoteIdentifier(name string) string {
	escaped := strings.ReplaceAll(name, "`", "``")
	return "`" + escaped + "`"
}

// QualifyColumn quotes an alias.column reference.
func QualifyColumn(alias, column string) string {
	return QuoteIdentifier(alias) + "." + QuoteIdentifier(column)
}

// QuoteString quotes a SQL string literal with single quotes, escaping
// embedded single quotes and backslashes. MySQL treats backslash as an
// escape character inside string literals unless NO_BACKSLASH_ESCAPES is
// set, so both must be doubled.
func QuoteString(s string) string {
	escaped := strings.ReplaceAll(s, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, "'", "''")
	return "'" + escaped + "'"
}
