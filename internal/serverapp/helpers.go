package serverapp

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"mysql-graphql/internal/authz"
	"mysql-graphql/internal/compiler"
	"mysql-graphql/internal/config"
	"mysql-graphql/internal/dbexec"
	"mysql-graphql/internal/gqlrequest"
	"mysql-graphql/internal/logging"
	"mysql-graphql/internal/middleware"
	"mysql-graphql/internal/observability"
	"mysql-graphql/internal/resolver"
	"mysql-graphql/internal/schemarefresh"
	"mysql-graphql/internal/sqlutil"
	"mysql-graphql/internal/tlscert"

	"github.com/XSAM/otelsql"
	_ "github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// observabilityConfig builds the provider config shared by the logging,
// metrics, and tracing init paths.
func observabilityConfig(cfg *config.Config, otlp config.OTLPConfig) observability.Config {
	return observability.Config{
		ServiceName:      cfg.Observability.ServiceName,
		ServiceVersion:   cfg.Observability.ServiceVersion,
		Environment:      cfg.Observability.Environment,
		TraceSampleRatio: cfg.Observability.TraceSampleRatio,
		OTLPConfig: observability.OTLPExporterConfig{
			Endpoint:          otlp.Endpoint,
			Protocol:          otlp.Protocol,
			Insecure:          otlp.Insecure,
			TLSCertFile:       otlp.TLSCertFile,
			TLSClientCertFile: otlp.TLSClientCertFile,
			TLSClientKeyFile:  otlp.TLSClientKeyFile,
			Headers:           otlp.Headers,
			Timeout:           otlp.Timeout,
			Compression:       otlp.Compression,
			RetryEnabled:      otlp.RetryEnabled,
			RetryMaxAttempts:  otlp.RetryMaxAttempts,
		},
	}
}

func signalInitAttrs(cfg *config.Config, otlp config.OTLPConfig) []any {
	return []any{
		slog.String("service_name", cfg.Observability.ServiceName),
		slog.String("service_version", cfg.Observability.ServiceVersion),
		slog.String("environment", cfg.Observability.Environment),
		slog.String("otlp_endpoint", otlp.Endpoint),
		slog.String("otlp_protocol", otlp.Protocol),
		slog.Bool("insecure", otlp.Insecure),
	}
}

// InitLogger builds the application logger. When log exports are enabled it
// also wires an OTLP logger provider and rebuilds the logger on top of it.
func InitLogger(cfg *config.Config) (*logging.Logger, *observability.LoggerProvider, error) {
	loggerCfg := logging.Config{
		Level:  cfg.Observability.Logging.Level,
		Format: cfg.Observability.Logging.Format,
	}
	install := func() *logging.Logger {
		logger := logging.NewLogger(loggerCfg)
		slog.SetDefault(logger.Logger)
		return logger
	}
	logger := install()

	if !cfg.Observability.Logging.ExportsEnabled {
		return logger, nil, nil
	}

	logsConfig := cfg.Observability.GetLogsConfig()
	logger.Info("initializing OpenTelemetry logging", signalInitAttrs(cfg, logsConfig)...)

	loggerProvider, err := observability.InitLoggerProvider(observabilityConfig(cfg, logsConfig))
	if err != nil {
		return nil, nil, err
	}
	logger.Info("OpenTelemetry logging initialized successfully")

	// Rebuilt so records also flow through the OTLP bridge.
	loggerCfg.LoggerProvider = loggerProvider.Provider()
	return install(), loggerProvider, nil
}

func initMetrics(cfg *config.Config, logger *logging.Logger) (*observability.MeterProvider, *observability.GraphQLMetrics, *observability.SchemaRefreshMetrics, *observability.SecurityMetrics, error) {
	if !cfg.Observability.MetricsEnabled {
		return nil, nil, nil, nil, nil
	}

	logger.Info("initializing OpenTelemetry metrics",
		slog.String("service_name", cfg.Observability.ServiceName),
		slog.String("service_version", cfg.Observability.ServiceVersion),
		slog.String("environment", cfg.Observability.Environment),
	)

	meterProvider, err := observability.InitMeterProvider(observabilityConfig(cfg, config.OTLPConfig{}))
	if err != nil {
		return nil, nil, nil, nil, err
	}
	logger.Info("OpenTelemetry metrics initialized successfully")

	graphqlMetrics, gqlErr := observability.InitMetrics(logger.Logger)
	if gqlErr != nil {
		return nil, nil, nil, nil, gqlErr
	}
	schemaRefreshMetrics, refreshErr := observability.InitSchemaRefreshMetrics(logger.Logger)
	if refreshErr != nil {
		return nil, nil, nil, nil, refreshErr
	}
	securityMetrics, secErr := observability.InitSecurityMetrics()
	if secErr != nil {
		return nil, nil, nil, nil, secErr
	}
	logger.Info("security metrics initialized")

	return meterProvider, graphqlMetrics, schemaRefreshMetrics, securityMetrics, nil
}

func initTracing(cfg *config.Config, logger *logging.Logger) (*observability.TracerProvider, error) {
	if !cfg.Observability.TracingEnabled {
		return nil, nil
	}

	tracesConfig := cfg.Observability.GetTracesConfig()
	logger.Info("initializing OpenTelemetry tracing", signalInitAttrs(cfg, tracesConfig)...)

	tracerProvider, err := observability.InitTracerProvider(observabilityConfig(cfg, tracesConfig))
	if err != nil {
		return nil, err
	}
	logger.Info("OpenTelemetry tracing initialized successfully")

	return tracerProvider, nil
}

func connectDB(cfg *config.Config, logger *logging.Logger) (*sql.DB, interface{ Unregister() error }, error) {
	// verify-ca and verify-full TLS modes need a named TLS config registered
	// with the driver before any connection is opened.
	if err := cfg.Database.RegisterTLS(); err != nil {
		return nil, nil, fmt.Errorf("failed to register database TLS config: %w", err)
	}

	dsn := cfg.Database.DSN()
	if cfg.Server.Auth.DBRoleEnabled {
		// Role-based access selects the database per connection after SET ROLE,
		// so the DSN must not pin one.
		dsn = cfg.Database.DSNWithoutDatabase()
	}

	instrumented := cfg.Observability.MetricsEnabled || cfg.Observability.TracingEnabled
	if !instrumented {
		db, err := sql.Open("mysql", dsn)
		if err != nil {
			return nil, nil, err
		}
		return db, nil, nil
	}

	opts := []otelsql.Option{
		otelsql.WithAttributes(semconv.DBSystemMySQL),
	}
	if cfg.Observability.TracingEnabled {
		opts = append(opts, otelsql.WithSpanOptions(otelsql.SpanOptions{
			DisableErrSkip: true,
		}))
	}

	switch {
	case cfg.Observability.SQLCommenterEnabled && cfg.Observability.TracingEnabled:
		opts = append(opts, otelsql.WithSQLCommenter(true))
		logger.Info("SQLCommenter enabled - trace context will be injected into SQL queries")
	case cfg.Observability.SQLCommenterEnabled:
		logger.Warn("SQLCommenter requires tracing to be enabled - skipping SQLCommenter")
	}

	db, err := otelsql.Open("mysql", dsn, opts...)
	if err != nil {
		return nil, nil, err
	}

	var dbStatsReg interface{ Unregister() error }
	if cfg.Observability.MetricsEnabled {
		dbStatsReg, err = otelsql.RegisterDBStatsMetrics(db, otelsql.WithAttributes(semconv.DBSystemMySQL))
		if err != nil {
			logger.Warn("failed to register DB stats metrics", slog.String("error", err.Error()))
		}
	}

	logger.Info("database instrumentation enabled",
		slog.Bool("metrics", cfg.Observability.MetricsEnabled),
		slog.Bool("tracing", cfg.Observability.TracingEnabled),
		slog.Bool("sqlcommenter", cfg.Observability.SQLCommenterEnabled && cfg.Observability.TracingEnabled),
	)
	return db, dbStatsReg, nil
}

func configureDatabase(ctx context.Context, cfg *config.Config, logger *logging.Logger, db *sql.DB, effectiveDatabase string, databaseSource string, dsnPresent bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	pool := cfg.Database.Pool
	db.SetMaxOpenConns(pool.MaxOpen)
	db.SetMaxIdleConns(pool.MaxIdle)
	db.SetConnMaxLifetime(pool.MaxLifetime)

	if err := waitForDatabase(ctx, cfg, logger, db, effectiveDatabase); err != nil {
		return err
	}

	logger.Info("connected to database",
		slog.String("database_effective", effectiveDatabase),
		slog.String("database_source", databaseSource),
		slog.Bool("dsn_present", dsnPresent),
		slog.Int("pool_max_open", pool.MaxOpen),
		slog.Int("pool_max_idle", pool.MaxIdle),
		slog.Duration("pool_max_lifetime", pool.MaxLifetime),
	)
	return nil
}

// waitForDatabase pings until the database answers or the configured timeout
// elapses, backing off exponentially between attempts. A zero timeout means a
// single attempt.
func waitForDatabase(ctx context.Context, cfg *config.Config, logger *logging.Logger, db *sql.DB, effectiveDatabase string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	tryConnect := func() error {
		if cfg.Server.Auth.DBRoleEnabled {
			return verifyRoleDatabaseAccess(ctx, cfg, db, effectiveDatabase)
		}
		return db.PingContext(ctx)
	}

	timeout := cfg.Database.ConnectionTimeout
	if timeout == 0 {
		return tryConnect()
	}

	interval := cfg.Database.ConnectionRetryInterval
	deadline := time.Now().Add(timeout)

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := tryConnect()
		if err == nil {
			if attempt > 1 {
				logger.Info("database connection established", slog.Int("attempts", attempt))
			}
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("database not available after %v: %w", timeout, err)
		}

		logger.Warn("database not ready, retrying...",
			slog.Int("attempt", attempt),
			slog.Duration("retry_in", interval),
			slog.String("error", err.Error()),
		)
		time.Sleep(interval)
		interval = min(interval*2, 30*time.Second)
	}
}

// verifyRoleDatabaseAccess checks that the introspection role (when set) can
// reach the target database, using a dedicated connection so the SET ROLE
// never leaks into the pool.
func verifyRoleDatabaseAccess(ctx context.Context, cfg *config.Config, db *sql.DB, effectiveDatabase string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer func() {
		_, _ = conn.ExecContext(context.WithoutCancel(ctx), "SET ROLE DEFAULT")
		_ = conn.Close()
	}()

	if role := cfg.Server.Auth.DBRoleIntrospectionRole; role != "" {
		if _, err := conn.ExecContext(ctx, "SET ROLE NONE"); err != nil {
			return fmt.Errorf("failed to clear roles before introspection: %w", err)
		}
		if _, err := conn.ExecContext(ctx, "SET ROLE "+sqlutil.QuoteIdentifier(role)); err != nil {
			return fmt.Errorf("failed to set introspection role %s: %w", role, err)
		}
	}

	if effectiveDatabase != "" {
		if _, err := conn.ExecContext(ctx, "USE "+sqlutil.QuoteIdentifier(effectiveDatabase)); err != nil {
			return fmt.Errorf("failed to select database %s: %w", effectiveDatabase, err)
		}
	}

	if _, err := conn.ExecContext(ctx, "SELECT 1"); err != nil {
		return fmt.Errorf("failed to validate database access: %w", err)
	}
	return nil
}

func buildRequestLimits(cfg *config.Config) resolver.RequestLimits {
	return resolver.RequestLimits{
		MaxDepth:   cfg.Server.GraphQLMaxDepth,
		MaxFields:  cfg.Server.GraphQLMaxFields,
		MaxAliases: cfg.Server.GraphQLMaxAliases,
	}
}

func buildPageLimits(cfg *config.Config) compiler.Limits {
	return compiler.Limits{
		DefaultPageSize: cfg.Server.GraphQLDefaultPageSize,
		MaxPageSize:     cfg.Server.GraphQLMaxPageSize,
	}
}

func discoverRoles(ctx context.Context, db *sql.DB, logger *logging.Logger) ([]string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	roles, err := authz.DiscoverRoles(ctx, db)
	if err != nil {
		logger.Error("failed to discover database roles", slog.String("error", err.Error()))
		return nil, err
	}
	logger.Info("discovered database roles", slog.Any("roles", roles))
	return roles, nil
}

// resolveRoleSchemaTargets narrows the discovered roles to the set that gets
// its own schema snapshot, applying include then exclude glob patterns and
// enforcing the configured ceiling.
func resolveRoleSchemaTargets(discoveredRoles []string, includePatterns []string, excludePatterns []string, maxRoles int) ([]string, error) {
	if maxRoles <= 0 {
		return nil, fmt.Errorf("role_schema_max_roles must be greater than 0")
	}
	if len(includePatterns) == 0 {
		includePatterns = []string{"*"}
	}

	seen := make(map[string]struct{}, len(discoveredRoles))
	selected := make([]string, 0, len(discoveredRoles))
	for _, role := range discoveredRoles {
		name := strings.TrimSpace(role)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		if matchesAnyRolePattern(name, includePatterns) && !matchesAnyRolePattern(name, excludePatterns) {
			selected = append(selected, name)
		}
	}
	sort.Strings(selected)

	if len(selected) == 0 {
		return nil, fmt.Errorf("no roles selected for schema generation after include/exclude filtering")
	}
	if len(selected) > maxRoles {
		return nil, fmt.Errorf("selected role count %d exceeds role_schema_max_roles %d", len(selected), maxRoles)
	}
	return selected, nil
}

func matchesAnyRolePattern(role string, patterns []string) bool {
	role = strings.ToLower(role)
	for _, pattern := range patterns {
		p := strings.TrimSpace(pattern)
		if p == "" {
			continue
		}
		if ok, err := path.Match(strings.ToLower(p), role); err == nil && ok {
			return true
		}
	}
	return false
}

func validateDBRolePrivileges(ctx context.Context, db *sql.DB, targetDatabase string, logger *logging.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	result, err := authz.ValidateRoleBasedAuthPrivileges(ctx, db, targetDatabase)
	if err != nil {
		logger.Error("failed to validate database user privileges", slog.String("error", err.Error()))
		return err
	}

	if !result.Valid {
		logger.Error("database user has privileges incompatible with role-based authorization",
			slog.String("reason", "user has direct SELECT privileges that override SET ROLE restrictions"),
			slog.Any("problematic_grants", result.BroadPrivileges),
			slog.String("hint", "create a restricted database user with only role-assumption privileges, not direct table access"),
		)
		return fmt.Errorf("database user has overly broad privileges for role-based authorization")
	}

	logger.Info("database user privileges validated for role-based authorization")
	return nil
}

func dbRoleFromContext(ctx context.Context) (string, bool) {
	role, ok := middleware.DBRoleFromContext(ctx)
	return role.Role, ok && role.Validated
}

func buildQueryExecutor(cfg *config.Config, db *sql.DB, availableRoles []string, effectiveDatabase string) dbexec.QueryExecutor {
	if !cfg.Server.Auth.DBRoleEnabled {
		return dbexec.NewStandardExecutor(db)
	}
	return dbexec.NewRoleExecutor(dbexec.RoleExecutorConfig{
		DB:           db,
		DatabaseName: effectiveDatabase,
		RoleFromCtx:  dbRoleFromContext,
		AllowedRoles: availableRoles,
		ValidateRole: len(availableRoles) > 0,
	})
}

func startSchemaManager(cfg *config.Config, logger *logging.Logger, db *sql.DB, metrics *observability.SchemaRefreshMetrics, effectiveDatabase string, availableRoles []string) (*schemarefresh.Manager, context.CancelFunc, error) {
	var roleFromCtx func(context.Context) (string, bool)
	if cfg.Server.Auth.DBRoleEnabled {
		roleFromCtx = dbRoleFromContext
	}

	manager, err := schemarefresh.NewManager(schemarefresh.Config{
		DB:                     db,
		DatabaseName:           effectiveDatabase,
		Logger:                 logger,
		Metrics:                metrics,
		MinInterval:            cfg.Server.SchemaRefreshMinInterval,
		MaxInterval:            cfg.Server.SchemaRefreshMaxInterval,
		Filters:                cfg.SchemaFilters,
		UUIDColumns:            cfg.TypeMappings.UUIDColumns,
		TinyInt1BooleanColumns: cfg.TypeMappings.TinyInt1BooleanColumns,
		TinyInt1IntColumns:     cfg.TypeMappings.TinyInt1IntColumns,
		Naming:                 cfg.Naming,
		IntrospectionRole:      cfg.Server.Auth.DBRoleIntrospectionRole,
		RoleSchemas:            availableRoles,
		RoleFromCtx:            roleFromCtx,
	})
	if err != nil {
		return nil, nil, err
	}

	schemaCtx, schemaCancel := context.WithCancel(context.Background())
	manager.Start(schemaCtx)

	return manager, schemaCancel, nil
}

func buildEngine(cfg *config.Config, manager *schemarefresh.Manager, executor dbexec.QueryExecutor, graphqlMetrics *observability.GraphQLMetrics, logger *logging.Logger) (*resolver.Engine, error) {
	var roleFromCtx func(context.Context) (string, bool)
	if cfg.Server.Auth.DBRoleEnabled {
		roleFromCtx = dbRoleFromContext
	}

	snapshots := func(ctx context.Context) (resolver.Snapshot, error) {
		snapshot, _, _, ok := manager.SnapshotForContext(ctx)
		if !ok || snapshot == nil {
			return resolver.Snapshot{}, fmt.Errorf("no catalog snapshot available for request")
		}
		return resolver.Snapshot{
			Catalog: snapshot.Catalog,
			Meta:    snapshot.Meta,
			Version: snapshot.Version,
		}, nil
	}

	return resolver.NewEngine(resolver.Config{
		Snapshots:        snapshots,
		Executor:         executor,
		RoleFromCtx:      roleFromCtx,
		Limits:           buildRequestLimits(cfg),
		PageLimits:       buildPageLimits(cfg),
		PlanCacheEntries: cfg.Server.PlanCacheEntries,
		Metrics:          graphqlMetrics,
		Logger:           logger,
	})
}

func oidcAuthConfig(cfg *config.Config) middleware.OIDCAuthConfig {
	return middleware.OIDCAuthConfig{
		Enabled:   cfg.Server.Auth.OIDCEnabled,
		IssuerURL: cfg.Server.Auth.OIDCIssuerURL,
		Audience:  cfg.Server.Auth.OIDCAudience,
		ClockSkew: cfg.Server.Auth.OIDCClockSkew,
		CAFile:    cfg.Server.Auth.OIDCCAFile,
	}
}

// graphqlEndpointHandler serves GraphQL over HTTP: it decodes the transport
// envelope, resolves through the engine, and writes the response envelope.
// Transport failures get HTTP error codes; GraphQL errors ride in the
// envelope with status 200.
func graphqlEndpointHandler(engine *resolver.Engine) http.Handler {
	transportError := func(w http.ResponseWriter, status int, message string) {
		w.WriteHeader(status)
		_, _ = fmt.Fprintf(w, `{"data":null,"errors":[%q]}`, message)
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if r.Method != http.MethodGet && r.Method != http.MethodPost {
			w.Header().Set("Allow", "GET, POST")
			transportError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		env, err := gqlrequest.DecodeEnvelope(r)
		if err != nil {
			transportError(w, http.StatusBadRequest, "malformed request body")
			return
		}

		var variables map[string]interface{}
		if len(env.VariablesRaw) > 0 {
			if err := json.Unmarshal(env.VariablesRaw, &variables); err != nil {
				transportError(w, http.StatusBadRequest, "variables must be a JSON object")
				return
			}
		}

		response := engine.Resolve(r.Context(), resolver.Request{
			Query:         env.Query,
			OperationName: env.OperationName,
			Variables:     variables,
		})

		if err := json.NewEncoder(w).Encode(response); err != nil {
			logging.FromContext(r.Context()).Warn("failed to write GraphQL response", slog.String("error", err.Error()))
		}
	})
}

// buildGraphQLHandler assembles the /graphql middleware chain. Order matters:
// logging runs outermost, OIDC auth before DB role extraction (the role claim
// comes from the validated token), and analysis before metrics and tracing so
// both see the decoded operation metadata in context. The chain is:
//
//	request -> logging -> OIDC auth -> DB role -> analysis -> metrics -> tracing -> graphql
func buildGraphQLHandler(cfg *config.Config, logger *logging.Logger, manager *schemarefresh.Manager, engine *resolver.Engine, graphqlMetrics *observability.GraphQLMetrics, securityMetrics *observability.SecurityMetrics, availableRoles []string) (http.Handler, error) {
	handler := middleware.GraphQLTracingMiddleware()(graphqlEndpointHandler(engine))

	if cfg.Observability.MetricsEnabled && graphqlMetrics != nil {
		handler = middleware.GraphQLMetricsMiddleware(graphqlMetrics)(handler)
		logger.Info("GraphQL metrics middleware enabled")
	}

	handler = middleware.GraphQLRequestAnalysisMiddleware(manager)(handler)

	if cfg.Server.Auth.DBRoleEnabled {
		handler = middleware.DBRoleMiddleware(cfg.Server.Auth.DBRoleClaimName, len(availableRoles) > 0, availableRoles)(handler)
		logger.Info("database role middleware enabled")
	}

	if cfg.Server.Auth.OIDCEnabled {
		authMiddleware, err := middleware.OIDCAuthMiddleware(oidcAuthConfig(cfg), logger, securityMetrics)
		if err != nil {
			return nil, err
		}
		handler = authMiddleware(handler)
		logger.Info("OIDC auth middleware enabled")
	}

	return middleware.LoggingMiddleware(logger)(handler), nil
}

func resolveAdminAuthToken(cfg *config.Config) (string, error) {
	token := strings.TrimSpace(cfg.Server.Admin.AuthToken)
	tokenFile := strings.TrimSpace(cfg.Server.Admin.AuthTokenFile)
	if token != "" && tokenFile != "" {
		return "", fmt.Errorf("admin.auth_token and admin.auth_token_file are mutually exclusive")
	}
	if tokenFile == "" {
		return token, nil
	}

	raw, err := os.ReadFile(tokenFile)
	if err != nil {
		return "", fmt.Errorf("failed to read admin auth token file: %w", err)
	}
	token = strings.TrimSpace(string(raw))
	if token == "" {
		return "", fmt.Errorf("admin auth token file %q is empty", tokenFile)
	}
	return token, nil
}

// buildAdminHandler wraps the schema reload endpoint in whatever auth is
// configured: a shared token wins over OIDC, and with neither the endpoint is
// left open with a warning.
func buildAdminHandler(cfg *config.Config, logger *logging.Logger, manager *schemarefresh.Manager, securityMetrics *observability.SecurityMetrics) (http.Handler, error) {
	var adminHandler http.Handler = http.HandlerFunc(schemaReloadHandler(manager, securityMetrics))

	adminToken, err := resolveAdminAuthToken(cfg)
	if err != nil {
		return nil, err
	}

	switch {
	case adminToken != "":
		tokenAuth, err := middleware.AdminTokenAuthMiddleware(middleware.AdminTokenAuthConfig{
			Token: adminToken,
		})
		if err != nil {
			return nil, err
		}
		adminHandler = tokenAuth(adminHandler)
		logger.Info("admin endpoints require shared-token authentication")
	case cfg.Server.Auth.OIDCEnabled:
		oidcAuth, err := middleware.OIDCAuthMiddleware(oidcAuthConfig(cfg), logger, securityMetrics)
		if err != nil {
			return nil, err
		}
		adminHandler = oidcAuth(adminHandler)
		logger.Info("admin endpoints require authentication")
	default:
		logger.Warn("admin endpoints are not authenticated - consider enabling OIDC authentication or an admin token")
	}
	return adminHandler, nil
}

func buildRouter(cfg *config.Config, logger *logging.Logger, db *sql.DB, graphqlHandler http.Handler, adminHandler http.Handler, meterProvider *observability.MeterProvider) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/graphql", graphqlHandler)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		http.Redirect(w, r, "/graphql", http.StatusFound)
	})

	mux.HandleFunc("/health", healthHandler(db, cfg.Server.HealthCheckTimeout))

	if cfg.Server.Admin.SchemaReloadEnabled {
		mux.Handle("/admin/reload-schema", adminHandler)
	} else {
		logger.Info("admin schema reload endpoint disabled")
	}

	if cfg.Observability.MetricsEnabled && meterProvider != nil {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info("metrics endpoint enabled", slog.String("path", "/metrics"))
	}

	return mux
}

// wrapHTTPHandler layers the server-wide middleware (rate limiting outermost,
// then CORS, then OTel HTTP instrumentation) around the router.
func wrapHTTPHandler(cfg *config.Config, logger *logging.Logger, handler http.Handler) http.Handler {
	if cfg.Observability.MetricsEnabled || cfg.Observability.TracingEnabled {
		handler = otelhttp.NewHandler(handler, "http.server",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return httpRootSpanName(r)
			}),
			otelhttp.WithMessageEvents(otelhttp.ReadEvents, otelhttp.WriteEvents),
		)
		logger.Info("HTTP instrumentation enabled")
	}

	if cfg.Server.CORSEnabled {
		handler = middleware.CORSMiddleware(middleware.CORSConfig{
			Enabled:          cfg.Server.CORSEnabled,
			AllowedOrigins:   cfg.Server.CORSAllowedOrigins,
			AllowedMethods:   cfg.Server.CORSAllowedMethods,
			AllowedHeaders:   cfg.Server.CORSAllowedHeaders,
			ExposeHeaders:    cfg.Server.CORSExposeHeaders,
			AllowCredentials: cfg.Server.CORSAllowCredentials,
			MaxAge:           cfg.Server.CORSMaxAge,
		})(handler)
	}

	if cfg.Server.RateLimitEnabled {
		handler = middleware.RateLimitMiddleware(middleware.RateLimitConfig{
			Enabled: cfg.Server.RateLimitEnabled,
			RPS:     cfg.Server.RateLimitRPS,
			Burst:   cfg.Server.RateLimitBurst,
		})(handler)
	}

	return handler
}

func httpRootSpanName(r *http.Request) string {
	if r == nil {
		return "HTTP /*"
	}
	method := strings.TrimSpace(r.Method)
	if method == "" {
		method = "HTTP"
	}
	return method + " " + normalizeHTTPSpanRoute(r.URL.Path)
}

// normalizeHTTPSpanRoute keeps span names low-cardinality: only the routes we
// actually serve appear verbatim, everything else collapses to /*.
func normalizeHTTPSpanRoute(rawPath string) string {
	switch rawPath {
	case "/", "/graphql", "/health", "/metrics", "/admin/reload-schema":
		return rawPath
	default:
		return "/*"
	}
}

func buildServer(cfg *config.Config, logger *logging.Logger, handler http.Handler, serverAddr string) (*http.Server, tlscert.Manager, error) {
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	if cfg.Server.TLSMode == "" || cfg.Server.TLSMode == "off" {
		return srv, nil, nil
	}

	tlsManager, err := tlscert.NewManager(tlscert.Config{
		Mode:              certModeFromTLSMode(cfg.Server.TLSMode),
		CertFile:          cfg.Server.TLSCertFile,
		KeyFile:           cfg.Server.TLSKeyFile,
		SelfSignedCertDir: cfg.Server.TLSAutoCertDir,
		SelfSignedHosts:   []string{"localhost", "127.0.0.1", "::1"},
	}, logger.Logger)
	if err != nil {
		return nil, nil, err
	}

	srv.TLSConfig, err = tlsManager.GetTLSConfig()
	if err != nil {
		return nil, nil, err
	}

	logger.Info("TLS enabled",
		slog.String("mode", cfg.Server.TLSMode),
		slog.String("cert_source", tlsManager.Description()))

	return srv, tlsManager, nil
}

func certModeFromTLSMode(tlsMode string) tlscert.CertMode {
	switch tlsMode {
	case "auto":
		return tlscert.CertModeSelfSigned
	case "file":
		return tlscert.CertModeFile
	default:
		return tlscert.CertMode(tlsMode)
	}
}

func startServer(cfg *config.Config, logger *logging.Logger, srv *http.Server, serverAddr string) chan error {
	serverErrors := make(chan error, 1)
	tlsEnabled := cfg.Server.TLSMode != "" && cfg.Server.TLSMode != "off"

	go func() {
		logger.Info("server starting", startupLogAttrs(cfg, serverAddr, tlsEnabled)...)

		var err error
		if tlsEnabled {
			err = srv.ListenAndServeTLS("", "")
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			serverErrors <- fmt.Errorf("server failed: %w", err)
		}
	}()
	return serverErrors
}

func startupLogAttrs(cfg *config.Config, serverAddr string, tlsEnabled bool) []any {
	protocol := "http"
	if tlsEnabled {
		protocol = "https"
	}

	attrs := []any{
		slog.String("protocol", protocol),
		slog.String("address", serverAddr),
		slog.String("graphql_endpoint", "/graphql"),
		slog.String("health_endpoint", "/health"),
		slog.Int("graphql_max_depth", cfg.Server.GraphQLMaxDepth),
		slog.Int("graphql_default_page_size", cfg.Server.GraphQLDefaultPageSize),
		slog.Int("graphql_max_page_size", cfg.Server.GraphQLMaxPageSize),
		slog.String("log_level", cfg.Observability.Logging.Level),
		slog.String("log_format", cfg.Observability.Logging.Format),
	}

	if cfg.Observability.MetricsEnabled {
		attrs = append(attrs, slog.String("metrics_endpoint", "/metrics"))
	}
	if cfg.Server.RateLimitEnabled {
		attrs = append(attrs,
			slog.Float64("rate_limit_rps", cfg.Server.RateLimitRPS),
			slog.Int("rate_limit_burst", cfg.Server.RateLimitBurst),
		)
	}

	attrs = append(attrs, slog.Bool("tls_enabled", tlsEnabled))
	if tlsEnabled {
		attrs = append(attrs, slog.String("tls_mode", cfg.Server.TLSMode))
	}
	return attrs
}

// healthHandler reports liveness plus database reachability. Failures return
// a generic body so internals never leak to unauthenticated callers.
func healthHandler(db *sql.DB, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqLogger := logging.FromContext(r.Context())
		w.Header().Set("Content-Type", "application/json")

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			reqLogger.Error("health check failed",
				slog.String("error", err.Error()),
				slog.String("check", "database"),
			)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = fmt.Fprint(w, `{"status":"unhealthy","database":"failed"}`)
			return
		}

		reqLogger.Debug("health check passed")
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprint(w, `{"status":"healthy","database":"ok"}`)
	}
}

func schemaReloadHandler(manager *schemarefresh.Manager, securityMetrics *observability.SecurityMetrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqLogger := logging.FromContext(r.Context())
		w.Header().Set("Content-Type", "application/json")

		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			_, _ = fmt.Fprint(w, `{"error":"method not allowed"}`)
			return
		}

		authCtx, authenticated := middleware.AuthFromContext(r.Context())
		logAttrs := []any{
			slog.String("operation", "schema_reload"),
			slog.String("remote_addr", r.RemoteAddr),
			slog.Bool("authenticated", authenticated),
		}
		if authenticated {
			logAttrs = append(logAttrs,
				slog.String("authenticated_user", authCtx.Subject),
				slog.String("issuer", authCtx.Issuer),
			)
		}
		reqLogger.Info("admin endpoint accessed", logAttrs...)

		refreshCtx, refreshCancel := context.WithTimeout(r.Context(), 15*time.Second)
		defer refreshCancel()

		if err := manager.RefreshNowContext(refreshCtx); err != nil {
			if securityMetrics != nil {
				securityMetrics.RecordAdminEndpointAccess(r.Context(), "schema_reload", authenticated, false)
			}
			reqLogger.Error("schema reload failed", slog.String("error", err.Error()))
			w.WriteHeader(http.StatusInternalServerError)
			// Generic body; reload failure details stay in the logs.
			_, _ = fmt.Fprint(w, `{"status":"error","message":"schema reload failed"}`)
			return
		}

		if securityMetrics != nil {
			securityMetrics.RecordAdminEndpointAccess(r.Context(), "schema_reload", authenticated, true)
		}

		reqLogger.Info("schema reloaded successfully", logAttrs...)
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprint(w, `{"status":"ok"}`)
	}
}
