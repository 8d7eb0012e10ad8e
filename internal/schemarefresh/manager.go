// Package schemarefresh builds catalog snapshots and refreshes them on change.
package schemarefresh

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"mysql-graphql/internal/catalog"
	"mysql-graphql/internal/introspect"
	"mysql-graphql/internal/logging"
	"mysql-graphql/internal/naming"
	"mysql-graphql/internal/observability"
	"mysql-graphql/internal/schemafilter"
	"mysql-graphql/internal/sqlmeta"
	"mysql-graphql/internal/sqlutil"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// Snapshot is an immutable view of the catalog. A request resolves against
// one snapshot for its whole lifetime, so a concurrent refresh swap never
// tears a running resolution.
type Snapshot struct {
	DBSchema    *sqlmeta.Schema
	Catalog     *catalog.Catalog
	Meta        *introspect.Resolver
	Version     uint64
	Fingerprint string
	BuiltAt     time.Time
}

// Config controls catalog refresh behavior.
type Config struct {
	DB                     *sql.DB
	DatabaseName           string
	Logger                 *logging.Logger
	Metrics                *observability.SchemaRefreshMetrics
	MinInterval            time.Duration
	MaxInterval            time.Duration
	Filters                schemafilter.Config
	UUIDColumns            map[string][]string
	TinyInt1BooleanColumns map[string][]string
	TinyInt1IntColumns     map[string][]string
	Naming                 naming.Config

	// IntrospectionRole, when set, is activated with SET ROLE before
	// metadata discovery for the default snapshot.
	IntrospectionRole string

	// RoleSchemas lists database roles that get their own privilege-pruned
	// snapshot. When non-empty, requests without a recognized role fail
	// closed in SnapshotForContext.
	RoleSchemas []string

	// RoleFromCtx extracts the caller's database role from request context.
	RoleFromCtx func(context.Context) (string, bool)
}

// Manager maintains the active snapshot set and swaps in rebuilt ones when
// the schema fingerprint changes.
type Manager struct {
	db                     *sql.DB
	databaseName           string
	logger                 *logging.Logger
	metrics                *observability.SchemaRefreshMetrics
	minInterval            time.Duration
	maxInterval            time.Duration
	filters                schemafilter.Config
	uuidColumns            map[string][]string
	tinyInt1BooleanColumns map[string][]string
	tinyInt1IntColumns     map[string][]string
	namingConfig           naming.Config
	introspectionRole      string
	roleSchemas            []string
	roleFromCtx            func(context.Context) (string, bool)
	version                atomic.Uint64
	active                 atomic.Value
	wg                     sync.WaitGroup
}

// snapshotSet is the unit of atomic swap: the default snapshot, every
// role-specific snapshot, and the fingerprint they were built from.
type snapshotSet struct {
	Default               *Snapshot
	ByRole                map[string]*Snapshot
	Fingerprint           string
	FingerprintMode       string
	FingerprintComponents map[string]string
	BuiltAt               time.Time
}

// fingerprintDetails carries one computed fingerprint alongside its
// per-component hashes.
type fingerprintDetails struct {
	Value      string
	Mode       string
	Components map[string]string
}

const (
	fingerprintModeStructural  = "structural"
	fingerprintModeLightweight = "lightweight"
	fingerprintModeUnknown     = "unknown"
)

// NewManager builds the initial catalog snapshot and returns a manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.DB == nil {
		return nil, fmt.Errorf("schema refresh manager requires a database handle")
	}
	if cfg.Logger == nil {
		cfg.Logger = &logging.Logger{Logger: slog.Default()}
	}
	minInterval, maxInterval := clampIntervals(cfg.MinInterval, cfg.MaxInterval)

	manager := &Manager{
		db:                     cfg.DB,
		databaseName:           cfg.DatabaseName,
		logger:                 cfg.Logger.WithFields(slog.String("component", "schema_refresh")),
		metrics:                cfg.Metrics,
		minInterval:            minInterval,
		maxInterval:            maxInterval,
		filters:                cfg.Filters,
		uuidColumns:            cfg.UUIDColumns,
		tinyInt1BooleanColumns: cfg.TinyInt1BooleanColumns,
		tinyInt1IntColumns:     cfg.TinyInt1IntColumns,
		namingConfig:           cfg.Naming,
		introspectionRole:      cfg.IntrospectionRole,
		roleSchemas:            append([]string(nil), cfg.RoleSchemas...),
		roleFromCtx:            cfg.RoleFromCtx,
	}

	start := time.Now()
	ctx := context.Background()
	fingerprint, err := manager.computeFingerprintDetails(ctx)
	if err != nil {
		manager.logger.Warn("failed to compute schema fingerprint", slog.String("error", err.Error()))
	}

	state, err := manager.buildSnapshotSet(ctx, fingerprint)
	manager.recordRefresh(time.Since(start), err == nil, "startup")
	if err != nil {
		return nil, err
	}
	manager.active.Store(state)
	return manager, nil
}

// clampIntervals applies the polling defaults (30s floor, 5m ceiling) and
// guarantees min <= max.
func clampIntervals(minInterval, maxInterval time.Duration) (time.Duration, time.Duration) {
	if minInterval <= 0 {
		minInterval = 30 * time.Second
	}
	if maxInterval <= 0 {
		maxInterval = 5 * time.Minute
	}
	if maxInterval < minInterval {
		maxInterval = minInterval
	}
	return minInterval, maxInterval
}

// Start begins the background refresh loop.
func (m *Manager) Start(ctx context.Context) {
	if m.minInterval <= 0 || m.maxInterval <= 0 {
		m.logger.Info("schema refresh disabled")
		return
	}

	m.wg.Go(func() {
		m.refreshLoop(ctx)
	})
}

// CurrentSnapshot returns the active default snapshot.
func (m *Manager) CurrentSnapshot() *Snapshot {
	state := m.currentState()
	if state == nil {
		return nil
	}
	return state.Default
}

// SnapshotForContext returns the snapshot serving the caller's role context
// together with the resolved role and the active structural fingerprint.
// When role-specific snapshots are configured, missing or unknown roles fail
// closed with ok=false.
func (m *Manager) SnapshotForContext(ctx context.Context) (snapshot *Snapshot, role string, fingerprint string, ok bool) {
	state := m.currentState()
	if state == nil {
		return nil, "", "", false
	}

	if len(m.roleSchemas) == 0 {
		if state.Default == nil {
			return nil, "", state.Fingerprint, false
		}
		return state.Default, "", state.Fingerprint, true
	}

	if m.roleFromCtx == nil {
		return nil, "", state.Fingerprint, false
	}
	callerRole, hasRole := m.roleFromCtx(ctx)
	if !hasRole || callerRole == "" {
		return nil, "", state.Fingerprint, false
	}
	roleSnapshot, exists := state.ByRole[callerRole]
	if !exists || roleSnapshot == nil {
		return nil, callerRole, state.Fingerprint, false
	}
	return roleSnapshot, callerRole, state.Fingerprint, true
}

func (m *Manager) currentState() *snapshotSet {
	if value := m.active.Load(); value != nil {
		if state, isSet := value.(*snapshotSet); isSet {
			return state
		}
	}
	return nil
}

// RefreshNow forces a catalog rebuild and swap.
func (m *Manager) RefreshNow() error {
	return m.RefreshNowContext(context.Background())
}

// RefreshNowContext forces a catalog rebuild and swap with context support.
func (m *Manager) RefreshNowContext(ctx context.Context) error {
	start := time.Now()
	err := m.rebuildAndSwap(ctx)
	m.recordRefresh(time.Since(start), err == nil, "manual")
	return err
}

func (m *Manager) rebuildAndSwap(ctx context.Context) error {
	fingerprint, err := m.computeFingerprintDetails(ctx)
	if err != nil {
		return err
	}
	state, err := m.buildSnapshotSet(ctx, fingerprint)
	if err != nil {
		return err
	}
	m.active.Store(state)
	return nil
}

// Wait blocks until the refresh loop exits or the context is canceled.
func (m *Manager) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.wg.Wait()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (m *Manager) refreshLoop(ctx context.Context) {
	interval := m.minInterval
	for {
		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			m.logger.Info("schema refresh stopped")
			return
		case <-timer.C:
			m.refreshOnce(ctx, &interval)
		}
	}
}

func (m *Manager) refreshOnce(ctx context.Context, interval *time.Duration) {
	start := time.Now()
	fingerprint, err := m.computeFingerprintDetails(ctx)
	if err != nil {
		m.logger.Warn("schema fingerprint check failed", slog.String("error", err.Error()))
		m.recordRefresh(time.Since(start), false, "poll")
		*interval = m.minInterval
		return
	}

	current := m.currentState()
	if current != nil && fingerprint.Value == current.Fingerprint {
		m.recordRefresh(time.Since(start), true, "poll_no_change")
		*interval = nextInterval(*interval, m.minInterval, m.maxInterval)
		return
	}

	// Component-level diff keeps refresh logs actionable: operators can see
	// whether a rebuild came from indexes, keys, columns, etc.
	changedComponents := changedFingerprintComponents(
		mapOrEmpty(currentFingerprintComponents(current)),
		mapOrEmpty(fingerprint.Components),
	)
	m.logger.Info("schema change detected, rebuilding",
		slog.String("fingerprint", fingerprint.Value),
		slog.String("fingerprint_mode", fingerprint.Mode),
		slog.Any("changed_components", changedComponents),
	)

	state, err := m.buildSnapshotSet(ctx, fingerprint)
	if err != nil {
		m.logger.Error("failed to rebuild catalog", slog.String("error", err.Error()))
		m.recordRefresh(time.Since(start), false, "poll")
		*interval = m.minInterval
		return
	}

	m.active.Store(state)
	*interval = m.minInterval
	m.recordRefresh(time.Since(start), true, "poll")
	m.logger.Info("schema refresh complete",
		slog.String("fingerprint", state.Fingerprint),
		slog.String("fingerprint_mode", state.FingerprintMode),
		slog.Uint64("version", state.Default.Version),
	)
}

// sessionWithRole pins one pool connection and activates the given role on
// it. The returned cleanup restores the default role and releases the
// connection. clearFirst drops any default roles before switching, so the
// session carries exactly the requested privileges.
func (m *Manager) sessionWithRole(ctx context.Context, role string, clearFirst bool) (sqlmeta.Queryer, func(), error) {
	conn, err := m.db.Conn(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to acquire connection: %w", err)
	}

	if clearFirst {
		if _, err := conn.ExecContext(ctx, "SET ROLE NONE"); err != nil {
			_ = conn.Close()
			return nil, nil, fmt.Errorf("failed to clear roles before setting role %s: %w", role, err)
		}
	}
	setRoleSQL := fmt.Sprintf("SET ROLE %s", sqlutil.QuoteIdentifier(role))
	if _, err := conn.ExecContext(ctx, setRoleSQL); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("failed to set role %s: %w", role, err)
	}

	cleanup := func() {
		_, _ = conn.ExecContext(context.Background(), "SET ROLE DEFAULT")
		_ = conn.Close()
	}
	return conn, cleanup, nil
}

// introspectionQueryer returns the queryer used for the default snapshot:
// the shared pool when no introspection role is configured, otherwise a
// pinned connection with the role active.
func (m *Manager) introspectionQueryer(ctx context.Context) (sqlmeta.Queryer, func(), error) {
	if m.introspectionRole == "" {
		return m.db, nil, nil
	}
	queryer, cleanup, err := m.sessionWithRole(ctx, m.introspectionRole, false)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set introspection role: %w", err)
	}
	return queryer, cleanup, nil
}

func (m *Manager) buildSnapshotSet(ctx context.Context, fingerprint fingerprintDetails) (*snapshotSet, error) {
	if fingerprint.Value == "" {
		if recomputed, err := m.computeFingerprintDetails(ctx); err == nil {
			fingerprint = recomputed
		}
	}

	version := m.version.Add(1)

	defaultQueryer, defaultCleanup, err := m.introspectionQueryer(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize introspection role: %w", err)
	}
	defaultSnapshot, err := m.buildSnapshotWithQueryer(ctx, fingerprint.Value, version, defaultQueryer, m.introspectionRole != "")
	if defaultCleanup != nil {
		defaultCleanup()
	}
	if err != nil {
		return nil, err
	}

	state := &snapshotSet{
		Default:               defaultSnapshot,
		ByRole:                map[string]*Snapshot{},
		Fingerprint:           defaultSnapshot.Fingerprint,
		FingerprintMode:       defaultOrUnknownMode(fingerprint.Mode),
		FingerprintComponents: mapOrEmpty(fingerprint.Components),
		BuiltAt:               defaultSnapshot.BuiltAt,
	}

	if len(m.roleSchemas) > 0 {
		roleSnapshots, err := m.buildRoleSnapshots(ctx, fingerprint.Value, version)
		if err != nil {
			return nil, err
		}
		state.ByRole = roleSnapshots
	}
	return state, nil
}

// buildRoleSnapshots builds every role-specific snapshot as a single unit,
// so requests never observe a partially refreshed role set after a schema
// change.
func (m *Manager) buildRoleSnapshots(ctx context.Context, fingerprintValue string, version uint64) (map[string]*Snapshot, error) {
	roleSnapshots := make(map[string]*Snapshot, len(m.roleSchemas))
	for _, role := range m.roleSchemas {
		roleQueryer, roleCleanup, err := m.sessionWithRole(ctx, role, true)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize role queryer for %s: %w", role, err)
		}
		roleSnapshot, err := m.buildSnapshotWithQueryer(ctx, fingerprintValue, version, roleQueryer, true)
		if roleCleanup != nil {
			roleCleanup()
		}
		if err != nil {
			return nil, fmt.Errorf("failed to build role-specific catalog for %s: %w", role, err)
		}
		roleSnapshots[role] = roleSnapshot
	}
	return roleSnapshots, nil
}

func (m *Manager) buildSnapshotWithQueryer(ctx context.Context, fingerprint string, version uint64, queryer sqlmeta.Queryer, enforcePrivileges bool) (*Snapshot, error) {
	start := time.Now()

	m.logger.Info("discovering database metadata")
	buildResult, err := BuildCatalog(ctx, BuildCatalogConfig{
		Queryer:                queryer,
		DatabaseName:           m.databaseName,
		Filters:                m.filters,
		UUIDColumns:            m.uuidColumns,
		TinyInt1BooleanColumns: m.tinyInt1BooleanColumns,
		TinyInt1IntColumns:     m.tinyInt1IntColumns,
		Naming:                 m.namingConfig,
		EnforcePrivileges:      enforcePrivileges,
	})
	if err != nil {
		return nil, err
	}
	dbSchema := buildResult.DBSchema

	m.logger.Info("discovered tables", slog.Int("count", len(dbSchema.Tables)))
	for _, table := range dbSchema.Tables {
		m.logger.Debug("table discovered",
			slog.String("table", table.Name),
			slog.Int("columns", len(table.Columns)),
			slog.Int("foreignKeys", len(table.ForeignKeys)),
			slog.Int("indexes", len(table.Indexes)),
		)
	}

	if fingerprint == "" {
		if details, err := m.computeFingerprintDetails(ctx); err == nil {
			fingerprint = details.Value
		}
	}

	m.logger.Info("catalog snapshot built", slog.Duration("duration", time.Since(start)))

	return &Snapshot{
		DBSchema:    dbSchema,
		Catalog:     buildResult.Catalog,
		Meta:        buildResult.Meta,
		Version:     version,
		Fingerprint: fingerprint,
		BuiltAt:     time.Now(),
	}, nil
}

func (m *Manager) computeFingerprintDetails(ctx context.Context) (fingerprintDetails, error) {
	unknown := fingerprintDetails{
		Mode:       fingerprintModeUnknown,
		Components: map[string]string{},
	}

	tracer := otel.Tracer("mysql-graphql/sqlmeta")
	ctx, span := tracer.Start(ctx, "sqlmeta.compute_fingerprint")
	defer span.End()

	queryer, cleanup, err := m.introspectionQueryer(ctx)
	if err != nil {
		span.RecordError(err)
		return unknown, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	details, structuralErr := m.computeStructuralFingerprint(ctx, queryer)
	if structuralErr == nil {
		span.SetAttributes(
			attribute.String("db.schema", m.databaseName),
			attribute.String("schema.fingerprint_mode", details.Mode),
		)
		return details, nil
	}

	// The lightweight fallback preserves availability when structural
	// metadata is unavailable (engine differences or metadata access
	// limits), while still detecting broad changes.
	if m.logger != nil {
		m.logger.Warn("structural fingerprint failed, falling back to lightweight fingerprint",
			slog.String("error", structuralErr.Error()),
		)
	}
	details, fallbackErr := m.computeLightweightFingerprint(ctx, queryer)
	if fallbackErr != nil {
		span.RecordError(structuralErr)
		span.RecordError(fallbackErr)
		return unknown, fmt.Errorf("failed to compute fingerprints (structural and lightweight): structural error: %w; fallback error: %v", structuralErr, fallbackErr)
	}

	span.SetAttributes(
		attribute.String("db.schema", m.databaseName),
		attribute.String("schema.fingerprint_mode", details.Mode),
	)
	return details, nil
}

type fingerprintComponent struct {
	name  string
	query string
}

// Structural mode fingerprints only behavior-relevant metadata. Comments are
// intentionally excluded so documentation edits never trigger a rebuild.
var structuralFingerprintComponents = []fingerprintComponent{
	{
		name: "tables",
		query: `SELECT TABLE_NAME, TABLE_TYPE
			FROM INFORMATION_SCHEMA.TABLES
			WHERE TABLE_SCHEMA = ? AND TABLE_TYPE IN ('BASE TABLE', 'VIEW')
			ORDER BY TABLE_NAME, TABLE_TYPE`,
	},
	{
		name: "columns",
		query: `SELECT TABLE_NAME, COLUMN_NAME, CAST(ORDINAL_POSITION AS CHAR),
				DATA_TYPE, COLUMN_TYPE, IS_NULLABLE,
				COALESCE(COLUMN_DEFAULT, ''), EXTRA
			FROM INFORMATION_SCHEMA.COLUMNS
			WHERE TABLE_SCHEMA = ?
			ORDER BY TABLE_NAME, ORDINAL_POSITION, COLUMN_NAME`,
	},
	{
		name: "primary_keys",
		query: `SELECT TABLE_NAME, COLUMN_NAME, CAST(ORDINAL_POSITION AS CHAR)
			FROM INFORMATION_SCHEMA.KEY_COLUMN_USAGE
			WHERE TABLE_SCHEMA = ? AND CONSTRAINT_NAME = 'PRIMARY'
			ORDER BY TABLE_NAME, ORDINAL_POSITION, COLUMN_NAME`,
	},
	{
		name: "foreign_keys",
		query: `SELECT TABLE_NAME, CONSTRAINT_NAME, COLUMN_NAME,
				COALESCE(REFERENCED_TABLE_NAME, ''),
				COALESCE(REFERENCED_COLUMN_NAME, ''),
				CAST(ORDINAL_POSITION AS CHAR),
				COALESCE(CAST(POSITION_IN_UNIQUE_CONSTRAINT AS CHAR), '')
			FROM INFORMATION_SCHEMA.KEY_COLUMN_USAGE
			WHERE TABLE_SCHEMA = ? AND REFERENCED_TABLE_NAME IS NOT NULL
			ORDER BY TABLE_NAME, CONSTRAINT_NAME, ORDINAL_POSITION, COLUMN_NAME`,
	},
	{
		name: "indexes",
		query: `SELECT TABLE_NAME, INDEX_NAME, CAST(NON_UNIQUE AS CHAR),
				CAST(SEQ_IN_INDEX AS CHAR), COALESCE(COLUMN_NAME, ''),
				COALESCE(COLLATION, ''), COALESCE(CAST(SUB_PART AS CHAR), ''),
				COALESCE(NULLABLE, ''), COALESCE(INDEX_TYPE, '')
			FROM INFORMATION_SCHEMA.STATISTICS
			WHERE TABLE_SCHEMA = ?
			ORDER BY TABLE_NAME, INDEX_NAME, SEQ_IN_INDEX, COLUMN_NAME`,
	},
}

func (m *Manager) computeStructuralFingerprint(ctx context.Context, queryer sqlmeta.Queryer) (fingerprintDetails, error) {
	componentHashes := make(map[string]string, len(structuralFingerprintComponents))
	for _, component := range structuralFingerprintComponents {
		hash, err := m.hashComponentQuery(ctx, queryer, component.query, m.databaseName)
		if err != nil {
			return fingerprintDetails{}, fmt.Errorf("failed to hash %s component: %w", component.name, err)
		}
		componentHashes[component.name] = hash
	}

	return fingerprintDetails{
		Value:      combineComponentHashes(componentHashes),
		Mode:       fingerprintModeStructural,
		Components: componentHashes,
	}, nil
}

func (m *Manager) computeLightweightFingerprint(ctx context.Context, queryer sqlmeta.Queryer) (fingerprintDetails, error) {
	query := `SELECT TABLE_NAME,
			COALESCE(CAST(CREATE_TIME AS CHAR), ''),
			COALESCE(CAST(UPDATE_TIME AS CHAR), '')
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = ? AND TABLE_TYPE = 'BASE TABLE'
		ORDER BY TABLE_NAME`
	componentHash, err := m.hashComponentQuery(ctx, queryer, query, m.databaseName)
	if err != nil {
		return fingerprintDetails{}, err
	}

	componentHashes := map[string]string{"table_timestamps": componentHash}
	return fingerprintDetails{
		Value:      combineComponentHashes(componentHashes),
		Mode:       fingerprintModeLightweight,
		Components: componentHashes,
	}, nil
}

func (m *Manager) hashComponentQuery(ctx context.Context, queryer sqlmeta.Queryer, query string, args ...any) (string, error) {
	rows, err := queryer.QueryContext(ctx, query, args...)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return "", err
	}
	values := make([]sql.NullString, len(columns))
	scanTargets := make([]any, len(columns))
	for i := range values {
		scanTargets[i] = &values[i]
	}

	hash := sha256.New()
	for rows.Next() {
		if err := rows.Scan(scanTargets...); err != nil {
			return "", err
		}

		// Length-prefixed cells avoid hash ambiguity from delimiter collisions.
		for _, value := range values {
			var cell string
			if value.Valid {
				cell = value.String
			}
			fmt.Fprintf(hash, "%d:%s|", len(cell), cell)
		}
		hash.Write([]byte{'\n'})
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}

// nextInterval backs off polling by 1.5x per unchanged check, clamped to
// [minInterval, maxInterval].
func nextInterval(current, minInterval, maxInterval time.Duration) time.Duration {
	if current < minInterval {
		return minInterval
	}
	return min(current+current/2, maxInterval)
}

func (m *Manager) recordRefresh(duration time.Duration, success bool, trigger string) {
	if m.metrics == nil {
		return
	}
	m.metrics.RecordRefresh(context.Background(), duration, success, trigger)
}

func combineComponentHashes(componentHashes map[string]string) string {
	if len(componentHashes) == 0 {
		return ""
	}
	hash := sha256.New()
	for _, key := range slices.Sorted(maps.Keys(componentHashes)) {
		fmt.Fprintf(hash, "%s=%s\n", key, componentHashes[key])
	}
	return hex.EncodeToString(hash.Sum(nil))
}

// changedFingerprintComponents diffs over the union of keys so added and
// removed components surface alongside changed ones.
func changedFingerprintComponents(previous map[string]string, current map[string]string) []string {
	union := make(map[string]struct{}, len(previous)+len(current))
	for key := range previous {
		union[key] = struct{}{}
	}
	for key := range current {
		union[key] = struct{}{}
	}

	changed := make([]string, 0, len(union))
	for _, key := range slices.Sorted(maps.Keys(union)) {
		if previous[key] != current[key] {
			changed = append(changed, key)
		}
	}
	return changed
}

func mapOrEmpty(input map[string]string) map[string]string {
	if input == nil {
		return map[string]string{}
	}
	return maps.Clone(input)
}

func currentFingerprintComponents(state *snapshotSet) map[string]string {
	if state == nil {
		return nil
	}
	return state.FingerprintComponents
}

func defaultOrUnknownMode(mode string) string {
	if strings.TrimSpace(mode) == "" {
		return fingerprintModeUnknown
	}
	return mode
}
