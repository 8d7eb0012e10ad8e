package schemarefresh

import (
	"context"
	"fmt"

	"mysql-graphql/internal/authz"
	"mysql-graphql/internal/catalog"
	"mysql-graphql/internal/introspect"
	"mysql-graphql/internal/naming"
	"mysql-graphql/internal/schemafilter"
	"mysql-graphql/internal/sqlmeta"
)

// BuildCatalogConfig defines inputs for shared catalog assembly.
type BuildCatalogConfig struct {
	Queryer                sqlmeta.Queryer
	DatabaseName           string
	Filters                schemafilter.Config
	UUIDColumns            map[string][]string
	TinyInt1BooleanColumns map[string][]string
	TinyInt1IntColumns     map[string][]string
	Naming                 naming.Config

	// EnforcePrivileges prunes tables and columns the session's active
	// grants cannot SELECT. Set when the queryer runs under SET ROLE.
	EnforcePrivileges bool
}

// BuildCatalogResult contains catalog artifacts produced by BuildCatalog.
type BuildCatalogResult struct {
	DBSchema *sqlmeta.Schema
	Catalog  *catalog.Catalog
	Meta     *introspect.Resolver
}

// BuildCatalog runs the canonical catalog assembly pipeline used by runtime
// and tests: discover metadata, filter, apply type overrides, prune by
// privileges, rebuild relationships, and derive the GraphQL catalog.
func BuildCatalog(ctx context.Context, cfg BuildCatalogConfig) (*BuildCatalogResult, error) {
	if cfg.Queryer == nil {
		return nil, fmt.Errorf("catalog builder requires a metadata queryer")
	}

	dbSchema, err := sqlmeta.Discover(ctx, cfg.Queryer, cfg.DatabaseName)
	if err != nil {
		return nil, fmt.Errorf("failed to discover database metadata: %w", err)
	}

	schemafilter.Apply(dbSchema, cfg.Filters)

	if err := sqlmeta.ApplyTinyInt1TypeOverrides(dbSchema, cfg.TinyInt1BooleanColumns, cfg.TinyInt1IntColumns); err != nil {
		return nil, fmt.Errorf("failed to apply tinyint(1) type mappings: %w", err)
	}

	if err := sqlmeta.ApplyUUIDTypeOverrides(dbSchema, cfg.UUIDColumns); err != nil {
		return nil, fmt.Errorf("failed to apply UUID type mappings: %w", err)
	}

	if cfg.EnforcePrivileges {
		privs, err := authz.QuerySelectPrivileges(ctx, cfg.Queryer, cfg.DatabaseName)
		if err != nil {
			return nil, fmt.Errorf("failed to query select privileges: %w", err)
		}
		authz.ApplySelectPrivileges(dbSchema, privs)
	}

	// Filtering and privilege erasure can orphan relationship metadata, so
	// relationships are rebuilt from what survived before naming runs.
	if err := sqlmeta.RebuildRelationships(dbSchema); err != nil {
		return nil, fmt.Errorf("failed to rebuild relationships: %w", err)
	}

	namer := naming.New(cfg.Naming, nil)
	cat, err := catalog.Build(dbSchema, nil, namer)
	if err != nil {
		return nil, fmt.Errorf("failed to build catalog: %w", err)
	}

	meta, err := introspect.New(cat)
	if err != nil {
		return nil, fmt.Errorf("failed to build introspection resolver: %w", err)
	}

	return &BuildCatalogResult{
		DBSchema: dbSchema,
		Catalog:  cat,
		Meta:     meta,
	}, nil
}
