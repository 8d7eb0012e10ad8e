package dbexec

import (
	"context"
	"database/sql"
	"fmt"

	"mysql-graphql/internal/sqlutil"
)

// RoleExecutor runs every query on a dedicated connection that has been
// switched to the request's database role, so row visibility is enforced by
// MySQL itself rather than by this process.
type RoleExecutor struct {
	db           *sql.DB
	databaseName string
	roleFromCtx  func(context.Context) (string, bool)
	allowedRoles map[string]struct{}
	validateRole bool
}

// RoleExecutorConfig controls role execution behavior.
type RoleExecutorConfig struct {
	DB           *sql.DB
	DatabaseName string
	RoleFromCtx  func(context.Context) (string, bool)
	AllowedRoles []string
	ValidateRole bool
}

// NewRoleExecutor creates an executor that applies SET ROLE before each query.
func NewRoleExecutor(cfg RoleExecutorConfig) *RoleExecutor {
	allowed := make(map[string]struct{}, len(cfg.AllowedRoles))
	for _, role := range cfg.AllowedRoles {
		allowed[role] = struct{}{}
	}
	return &RoleExecutor{
		db:           cfg.DB,
		databaseName: cfg.DatabaseName,
		roleFromCtx:  cfg.RoleFromCtx,
		allowedRoles: allowed,
		validateRole: cfg.ValidateRole,
	}
}

// QueryContext acquires a dedicated connection, switches to the request's
// role, and runs the statement. The connection is reset to the default role
// and released when the returned rows are closed.
func (e *RoleExecutor) QueryContext(ctx context.Context, query string, args ...any) (Rows, error) {
	conn, err := e.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}

	release := func() {
		_, _ = conn.ExecContext(context.Background(), "SET ROLE DEFAULT")
		_ = conn.Close()
	}

	if err := e.applyRole(ctx, conn); err != nil {
		release()
		return nil, err
	}
	if err := e.useDatabase(ctx, conn); err != nil {
		release()
		return nil, err
	}

	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		release()
		return nil, err
	}

	return &roleAwareRows{Rows: rows, release: release}, nil
}

// checkRole enforces the allowlist when validation is on. An empty role is
// always acceptable; it means the request runs with the connection defaults.
func (e *RoleExecutor) checkRole(role string) error {
	if role == "" || !e.validateRole {
		return nil
	}
	if _, allowed := e.allowedRoles[role]; !allowed {
		return fmt.Errorf("role not allowed: %s", role)
	}
	return nil
}

// applyRole switches the connection to the request's role after clearing
// any roles inherited from connection reuse.
func (e *RoleExecutor) applyRole(ctx context.Context, conn *sql.Conn) error {
	role, ok := e.roleFromCtx(ctx)
	if !ok || role == "" {
		return nil
	}
	if err := e.checkRole(role); err != nil {
		return err
	}

	if _, err := conn.ExecContext(ctx, "SET ROLE NONE"); err != nil {
		return fmt.Errorf("failed to clear roles: %w", err)
	}
	// SET ROLE cannot be parameterized; the identifier is quoted and was
	// checked against the allowlist above.
	if _, err := conn.ExecContext(ctx, "SET ROLE "+sqlutil.QuoteIdentifier(role)); err != nil {
		return fmt.Errorf("failed to set role %s: %w", role, err)
	}
	return nil
}

func (e *RoleExecutor) useDatabase(ctx context.Context, conn *sql.Conn) error {
	if e.databaseName == "" {
		return nil
	}
	if _, err := conn.ExecContext(ctx, "USE "+sqlutil.QuoteIdentifier(e.databaseName)); err != nil {
		return fmt.Errorf("failed to select database %s: %w", e.databaseName, err)
	}
	return nil
}

// roleAwareRows resets and releases the underlying connection once the caller
// is done iterating.
type roleAwareRows struct {
	*sql.Rows
	release func()
}

func (r *roleAwareRows) Close() error {
	defer r.release()
	return r.Rows.Close()
}
