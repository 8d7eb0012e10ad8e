// Package authz resolves what a database role is allowed to see. It reads
// SELECT grants from the INFORMATION_SCHEMA privilege tables on a session
// where the role is active and erases everything else from the schema before
// the catalog is built: an unauthorized table or column produces unknown-field
// errors, not permission errors.
package authz

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"mysql-graphql/internal/schemafilter"
	"mysql-graphql/internal/sqlmeta"
)

// SelectPrivileges describes the SELECT surface available to the current
// session: schema-wide, whole tables, or individual columns.
type SelectPrivileges struct {
	// All is set for global or schema-wide SELECT; table and column maps
	// are irrelevant then.
	All bool
	// Tables holds tables with whole-table SELECT.
	Tables map[string]bool
	// Columns holds tables visible only through column-level grants.
	Columns map[string]map[string]bool
}

// AllowsTable reports whether any part of the table is visible.
func (p *SelectPrivileges) AllowsTable(table string) bool {
	if p.All || p.Tables[table] {
		return true
	}
	return len(p.Columns[table]) > 0
}

// AllowsColumn reports whether a specific column is visible.
func (p *SelectPrivileges) AllowsColumn(table, column string) bool {
	if p.All || p.Tables[table] {
		return true
	}
	return p.Columns[table][column]
}

// QuerySelectPrivileges reads the SELECT grants visible to the current
// session for one database. Run it on a connection where the target role has
// been activated; the privilege tables then expose the role's grants.
func QuerySelectPrivileges(ctx context.Context, db sqlmeta.Queryer, databaseName string) (*SelectPrivileges, error) {
	ctx, span := startSpan(ctx, "authz.query_select_privileges",
		attribute.String("db.name", databaseName),
	)
	defer span.End()

	grantees, err := sessionGrantees(ctx, db)
	if err != nil {
		recordSpanError(span, err)
		return nil, fmt.Errorf("failed to resolve session grantees: %w", err)
	}

	privs := &SelectPrivileges{
		Tables:  make(map[string]bool),
		Columns: make(map[string]map[string]bool),
	}

	global, err := hasGlobalSelect(ctx, db, grantees)
	if err != nil {
		recordSpanError(span, err)
		return nil, fmt.Errorf("failed to query global privileges: %w", err)
	}
	if global {
		privs.All = true
		return privs, nil
	}

	schemaWide, err := hasSchemaSelect(ctx, db, databaseName, grantees)
	if err != nil {
		recordSpanError(span, err)
		return nil, fmt.Errorf("failed to query schema privileges: %w", err)
	}
	if schemaWide {
		privs.All = true
		return privs, nil
	}

	if err := collectTableSelect(ctx, db, databaseName, grantees, privs); err != nil {
		recordSpanError(span, err)
		return nil, fmt.Errorf("failed to query table privileges: %w", err)
	}
	if err := collectColumnSelect(ctx, db, databaseName, grantees, privs); err != nil {
		recordSpanError(span, err)
		return nil, fmt.Errorf("failed to query column privileges: %w", err)
	}

	return privs, nil
}

// ApplySelectPrivileges erases unauthorized tables and columns from the
// schema in place. Erasure reuses the allow/deny filter so foreign keys,
// indexes, and relationships referencing removed metadata disappear with it.
func ApplySelectPrivileges(schema *sqlmeta.Schema, privs *SelectPrivileges) {
	if schema == nil || privs == nil {
		return
	}
	if privs.All {
		return
	}

	allowTables := make([]string, 0, len(privs.Tables)+len(privs.Columns))
	allowColumns := make(map[string][]string, len(privs.Tables)+len(privs.Columns))
	for table := range privs.Tables {
		allowTables = append(allowTables, escapeGlob(table))
		allowColumns[table] = []string{"*"}
	}
	for table, cols := range privs.Columns {
		if privs.Tables[table] {
			continue
		}
		allowTables = append(allowTables, escapeGlob(table))
		patterns := make([]string, 0, len(cols))
		for col := range cols {
			patterns = append(patterns, escapeGlob(col))
		}
		allowColumns[table] = patterns
	}

	if len(allowTables) == 0 {
		schema.Tables = nil
		return
	}

	schemafilter.Apply(schema, schemafilter.Config{
		AllowTables:  allowTables,
		ScanViews:    true,
		AllowColumns: allowColumns,
	})
}

// sessionGrantees returns the normalized account identifiers whose grants
// apply to this session: the current user plus any active roles.
func sessionGrantees(ctx context.Context, db sqlmeta.Queryer) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT CURRENT_USER(), COALESCE(CURRENT_ROLE(), 'NONE')")
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	grantees := make(map[string]bool)
	for rows.Next() {
		var currentUser, currentRoles string
		if err := rows.Scan(&currentUser, &currentRoles); err != nil {
			return nil, err
		}
		grantees[normalizeGrantee(currentUser)] = true
		if !strings.EqualFold(currentRoles, "NONE") {
			for _, role := range strings.Split(currentRoles, ",") {
				if normalized := normalizeGrantee(role); normalized != "" {
					grantees[normalized] = true
				}
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return grantees, nil
}

func hasGlobalSelect(ctx context.Context, db sqlmeta.Queryer, grantees map[string]bool) (bool, error) {
	query := `
		SELECT GRANTEE
		FROM information_schema.USER_PRIVILEGES
		WHERE PRIVILEGE_TYPE = 'SELECT'
	`
	return anyGranteeMatches(ctx, db, query, grantees)
}

func hasSchemaSelect(ctx context.Context, db sqlmeta.Queryer, databaseName string, grantees map[string]bool) (bool, error) {
	query := `
		SELECT GRANTEE
		FROM information_schema.SCHEMA_PRIVILEGES
		WHERE PRIVILEGE_TYPE = 'SELECT'
		AND TABLE_SCHEMA = ?
	`
	return anyGranteeMatches(ctx, db, query, grantees, databaseName)
}

func anyGranteeMatches(ctx context.Context, db sqlmeta.Queryer, query string, grantees map[string]bool, args ...any) (bool, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	defer func() {
		_ = rows.Close()
	}()

	matched := false
	for rows.Next() {
		var grantee string
		if err := rows.Scan(&grantee); err != nil {
			return false, err
		}
		if grantees[normalizeGrantee(grantee)] {
			matched = true
		}
	}
	if err := rows.Err(); err != nil {
		return false, err
	}
	return matched, nil
}

func collectTableSelect(ctx context.Context, db sqlmeta.Queryer, databaseName string, grantees map[string]bool, privs *SelectPrivileges) error {
	query := `
		SELECT GRANTEE, TABLE_NAME
		FROM information_schema.TABLE_PRIVILEGES
		WHERE PRIVILEGE_TYPE = 'SELECT'
		AND TABLE_SCHEMA = ?
	`
	rows, err := db.QueryContext(ctx, query, databaseName)
	if err != nil {
		return err
	}
	defer func() {
		_ = rows.Close()
	}()

	for rows.Next() {
		var grantee, tableName string
		if err := rows.Scan(&grantee, &tableName); err != nil {
			return err
		}
		if grantees[normalizeGrantee(grantee)] {
			privs.Tables[tableName] = true
		}
	}
	return rows.Err()
}

func collectColumnSelect(ctx context.Context, db sqlmeta.Queryer, databaseName string, grantees map[string]bool, privs *SelectPrivileges) error {
	query := `
		SELECT GRANTEE, TABLE_NAME, COLUMN_NAME
		FROM information_schema.COLUMN_PRIVILEGES
		WHERE PRIVILEGE_TYPE = 'SELECT'
		AND TABLE_SCHEMA = ?
	`
	rows, err := db.QueryContext(ctx, query, databaseName)
	if err != nil {
		return err
	}
	defer func() {
		_ = rows.Close()
	}()

	for rows.Next() {
		var grantee, tableName, columnName string
		if err := rows.Scan(&grantee, &tableName, &columnName); err != nil {
			return err
		}
		if !grantees[normalizeGrantee(grantee)] {
			continue
		}
		if privs.Columns[tableName] == nil {
			privs.Columns[tableName] = make(map[string]bool)
		}
		privs.Columns[tableName][columnName] = true
	}
	return rows.Err()
}

// normalizeGrantee strips the quoting styles MySQL mixes across privilege
// tables and role functions: 'user'@'host' versus `role`@`%`.
func normalizeGrantee(grantee string) string {
	cleaned := strings.TrimSpace(grantee)
	cleaned = strings.ReplaceAll(cleaned, "'", "")
	cleaned = strings.ReplaceAll(cleaned, "`", "")
	cleaned = strings.ReplaceAll(cleaned, "\"", "")
	return cleaned
}

// escapeGlob quotes path.Match metacharacters so SQL identifiers pass
// through the filter as literal names.
func escapeGlob(name string) string {
	var sb strings.Builder
	for _, r := range name {
		switch r {
		case '*', '?', '[', '\\':
			sb.WriteRune('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.Tracer("mysql-graphql/authz")
	ctx, span := tracer.Start(ctx, name)
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	return ctx, span
}

func recordSpanError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
