package authz

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"mysql-graphql/internal/sqlmeta"
)

// DiscoverRoles returns the roles granted to the connecting database user,
// sorted by name. It reads mysql.role_edges first, which works on
// deployments where the user can see the mysql schema, and falls back to
// information_schema.applicable_roles otherwise.
func DiscoverRoles(ctx context.Context, db sqlmeta.Queryer) ([]string, error) {
	roles, err := discoverFromRoleEdges(ctx, db)
	if err == nil {
		return roles, nil
	}

	slog.Debug("role discovery fallback to information_schema",
		slog.String("error", err.Error()),
	)
	roles, fallbackErr := discoverFromInformationSchema(ctx, db)
	if fallbackErr != nil {
		return nil, fmt.Errorf("role discovery failed: %w", fallbackErr)
	}
	return roles, nil
}

func discoverFromRoleEdges(ctx context.Context, db sqlmeta.Queryer) ([]string, error) {
	query := `
		SELECT DISTINCT FROM_USER AS role_name
		FROM mysql.role_edges
		WHERE TO_USER = SUBSTRING_INDEX(CURRENT_USER(), '@', 1)
		  AND TO_HOST = SUBSTRING_INDEX(CURRENT_USER(), '@', -1)
		ORDER BY role_name
	`
	return queryRoleNames(ctx, db, query)
}

func discoverFromInformationSchema(ctx context.Context, db sqlmeta.Queryer) ([]string, error) {
	query := `
		SELECT ROLE_NAME
		FROM information_schema.applicable_roles
		WHERE GRANTEE = CURRENT_USER()
		ORDER BY ROLE_NAME
	`
	return queryRoleNames(ctx, db, query)
}

func queryRoleNames(ctx context.Context, db sqlmeta.Queryer, query string) ([]string, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var roles []string
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return roles, nil
}

// PrivilegeValidationResult reports whether the connecting user's direct
// grants leave room for SET ROLE to matter.
type PrivilegeValidationResult struct {
	Valid              bool     // privileges are compatible with role-scoped visibility
	HasBroadPrivileges bool     // user holds SELECT on *.* or on the target database
	BroadPrivileges    []string // offending grant statements
	Warnings           []string // non-fatal findings
}

// ValidateRoleBasedAuthPrivileges checks that the connecting user does not
// hold direct SELECT on the target database. A user with broad direct grants
// sees every table no matter which role is activated, which silently defeats
// per-role schemas. Errors are returned only when the check itself fails.
func ValidateRoleBasedAuthPrivileges(ctx context.Context, db sqlmeta.Queryer, targetDatabase string) (*PrivilegeValidationResult, error) {
	rows, err := db.QueryContext(ctx, "SHOW GRANTS FOR CURRENT_USER()")
	if err != nil {
		return nil, fmt.Errorf("failed to query user privileges: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := &PrivilegeValidationResult{Valid: true}
	for rows.Next() {
		var grant string
		if err := rows.Scan(&grant); err != nil {
			return nil, fmt.Errorf("failed to scan grant: %w", err)
		}
		if grantIsBroad(grant, targetDatabase) {
			result.Valid = false
			result.HasBroadPrivileges = true
			result.BroadPrivileges = append(result.BroadPrivileges, grant)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating grants: %w", err)
	}

	return result, nil
}

// grantIsBroad reports whether a single SHOW GRANTS line conveys SELECT on
// every database or on the whole target database.
func grantIsBroad(grant, targetDatabase string) bool {
	scope := strings.Contains(grant, "ON *.*") ||
		strings.Contains(grant, fmt.Sprintf("ON `%s`.*", targetDatabase))
	if !scope {
		return false
	}
	if containsSelectPrivilege(grant) {
		return true
	}
	return strings.Contains(strings.ToUpper(grant), "ALL PRIVILEGES")
}

// containsSelectPrivilege checks if a GRANT statement includes the SELECT
// privilege, without being fooled by privilege names it appears inside.
func containsSelectPrivilege(grant string) bool {
	upper := strings.ToUpper(grant)
	return strings.Contains(upper, "SELECT,") ||
		strings.Contains(upper, "SELECT ") ||
		strings.Contains(upper, " SELECT,") ||
		strings.HasPrefix(upper, "GRANT SELECT")
}
