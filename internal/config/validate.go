package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path"
	"regexp"
	"strings"

	"mysql-graphql/internal/naming"
	"mysql-graphql/internal/schemafilter"
)

// ValidationError is a fatal configuration problem tied to a config field.
type ValidationError struct {
	Field   string
	Message string
	Hint    string
}

func (e ValidationError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s (hint: %s)", e.Field, e.Message, e.Hint)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationWarning flags a configuration that works but is probably not
// what the operator intended.
type ValidationWarning struct {
	Field   string
	Message string
	Hint    string
}

// ValidationResult accumulates errors and warnings across all config sections.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationWarning
}

func (r *ValidationResult) fail(field, message, hint string) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: message, Hint: hint})
}

func (r *ValidationResult) warn(field, message, hint string) {
	r.Warnings = append(r.Warnings, ValidationWarning{Field: field, Message: message, Hint: hint})
}

// HasErrors reports whether any fatal errors were recorded.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// Error joins all fatal errors into a single message, or returns "" when clean.
func (r *ValidationResult) Error() string {
	if !r.HasErrors() {
		return ""
	}
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks every configuration section and returns the accumulated
// errors and warnings. Some sections also normalize fields as a side effect
// (my.cnf merging, effective database resolution).
func (c *Config) Validate() *ValidationResult {
	result := &ValidationResult{}

	c.Database.validate(result)
	c.Server.validate(result)
	c.Observability.validate(result)
	c.TypeMappings.validate(result)
	validateSchemaFilters(result, c.SchemaFilters)
	validateNamingConfig(result, c.Naming)

	return result
}

func (t *TypeMappingsConfig) validate(result *ValidationResult) {
	validatePatternMap(result, "type_mappings.uuid_columns", t.UUIDColumns)
	validatePatternMap(result, "type_mappings.tinyint1_boolean_columns", t.TinyInt1BooleanColumns)
	validatePatternMap(result, "type_mappings.tinyint1_int_columns", t.TinyInt1IntColumns)
}

func validateSchemaFilters(result *ValidationResult, filters schemafilter.Config) {
	validateGlobList(result, "schema_filters.allow_tables", filters.AllowTables)
	validateGlobList(result, "schema_filters.deny_tables", filters.DenyTables)
	validatePatternMap(result, "schema_filters.allow_columns", filters.AllowColumns)
	validatePatternMap(result, "schema_filters.deny_columns", filters.DenyColumns)
}

// Type names the schema generator always emits itself. Overrides must not
// collide with these.
var reservedTypeNames = map[string]bool{
	"Query":    true,
	"Node":     true,
	"PageInfo": true,
	"Cursor":   true,
}

var pascalCaseTypePattern = regexp.MustCompile(`^[A-Z][A-Za-z0-9]*$`)

func validateNamingConfig(result *ValidationResult, cfg naming.Config) {
	for tableName, typeName := range cfg.TypeOverrides {
		tableName = strings.TrimSpace(tableName)
		typeName = strings.TrimSpace(typeName)
		switch {
		case tableName == "":
			result.fail("naming.type_overrides", "table name cannot be empty", "")
		case typeName == "":
			result.fail("naming.type_overrides",
				fmt.Sprintf("type override for table %q cannot be empty", tableName), "")
		case !pascalCaseTypePattern.MatchString(typeName):
			result.fail("naming.type_overrides",
				fmt.Sprintf("type override %q for table %q must be PascalCase", typeName, tableName), "")
		case reservedTypeNames[typeName]:
			result.fail("naming.type_overrides",
				fmt.Sprintf("type override %q for table %q collides with a built-in schema type", typeName, tableName), "")
		}
	}
}

// globPatternErr probes a glob against path.Match so malformed patterns fail
// at startup instead of silently matching nothing at filter time.
func globPatternErr(pattern string) error {
	_, err := path.Match(strings.ToLower(pattern), "probe")
	return err
}

func validatePatternMap(result *ValidationResult, field string, patternMap map[string][]string) {
	for tablePattern, columnPatterns := range patternMap {
		if strings.TrimSpace(tablePattern) == "" {
			result.fail(field, "table pattern cannot be empty", "")
			continue
		}
		if err := globPatternErr(tablePattern); err != nil {
			result.fail(field, fmt.Sprintf("invalid table glob pattern %q: %v", tablePattern, err), "")
		}
		for _, columnPattern := range columnPatterns {
			if strings.TrimSpace(columnPattern) == "" {
				result.fail(field, fmt.Sprintf("column pattern for table pattern %q cannot be empty", tablePattern), "")
				continue
			}
			if err := globPatternErr(columnPattern); err != nil {
				result.fail(field,
					fmt.Sprintf("invalid column glob pattern %q for table pattern %q: %v", columnPattern, tablePattern, err), "")
			}
		}
	}
}

func validateGlobList(result *ValidationResult, field string, patterns []string) {
	for _, pattern := range patterns {
		if strings.TrimSpace(pattern) == "" {
			result.fail(field, "glob pattern cannot be empty", "")
			continue
		}
		if err := globPatternErr(pattern); err != nil {
			result.fail(field, fmt.Sprintf("invalid glob pattern %q: %v", pattern, err), "")
		}
	}
}

func (d *DatabaseConfig) validate(result *ValidationResult) {
	usesDSN := strings.TrimSpace(d.ConnectionString) != "" || strings.TrimSpace(d.ConnectionStringFile) != ""
	if strings.TrimSpace(d.MyCnfFile) != "" && usesDSN {
		result.fail("database.mycnf_file",
			"mycnf_file is mutually exclusive with dsn/dsn_file",
			"set either mycnf_file or dsn/dsn_file, not both")
	}

	if strings.TrimSpace(d.MyCnfFile) != "" {
		d.mergeMyCnf(result)
	}

	if d.ConnectionString == "" && (d.Port < 1 || d.Port > 65535) {
		result.fail("database.port", fmt.Sprintf("port %d is out of valid range (1-65535)", d.Port), "")
	}

	d.TLS.validate(result)
	d.validatePool(result)
	d.validateRetry(result)
	d.validateEffectiveDatabase(result)
}

// mergeMyCnf folds [client] settings from the my.cnf file into unset fields.
// An explicit database.database that disagrees with the file is an error.
func (d *DatabaseConfig) mergeMyCnf(result *ValidationResult) {
	settings, err := parseMyCnfFile(d.MyCnfFile)
	if err != nil {
		result.fail("database.mycnf_file",
			fmt.Sprintf("failed to parse my.cnf file: %v", err),
			"provide a valid MySQL defaults file with [client] settings")
		return
	}

	if d.Host == "" && settings.Host != "" {
		d.Host = settings.Host
	}
	if d.Port == 0 && settings.HasPort {
		d.Port = settings.Port
	}
	if d.User == "" && settings.User != "" {
		d.User = settings.User
	}
	if d.Password == "" && settings.Password != "" {
		d.Password = settings.Password
	}
	if d.TLS.Mode == "" && settings.TLSMode != "" {
		d.TLS.Mode = settings.TLSMode
	}
	if settings.HasDBName {
		switch {
		case strings.TrimSpace(d.Database) == "":
			d.Database = settings.Database
		case d.Database != settings.Database:
			result.fail("database.database",
				fmt.Sprintf("database mismatch: database.database=%q but database.mycnf_file targets %q", d.Database, settings.Database),
				"either remove database.database or set it to match my.cnf database")
		}
	}
}

func (d *DatabaseConfig) validatePool(result *ValidationResult) {
	if d.Pool.MaxOpen < 0 {
		result.fail("database.pool.max_open", "max_open cannot be negative", "")
	}
	if d.Pool.MaxIdle < 0 {
		result.fail("database.pool.max_idle", "max_idle cannot be negative", "")
	}
	if d.Pool.MaxIdle > d.Pool.MaxOpen && d.Pool.MaxOpen > 0 {
		result.warn("database.pool.max_idle",
			"max_idle is greater than max_open",
			"idle connections will be limited to max_open")
	}
}

func (d *DatabaseConfig) validateRetry(result *ValidationResult) {
	if d.ConnectionTimeout > 0 && d.ConnectionRetryInterval > d.ConnectionTimeout {
		result.warn("database.connection_retry_interval",
			"connection_retry_interval is greater than connection_timeout",
			"only one connection attempt will be made")
	}
	if d.ConnectionRetryInterval < 0 {
		result.fail("database.connection_retry_interval", "connection_retry_interval cannot be negative", "")
	}
	if d.ConnectionTimeout > 0 && d.ConnectionRetryInterval == 0 {
		result.fail("database.connection_retry_interval",
			"connection_retry_interval must be greater than 0 when connection_timeout is set",
			"set a retry interval such as 2s, or set connection_timeout to 0 to disable retries")
	}
	if d.ConnectionTimeout < 0 {
		result.fail("database.connection_timeout", "connection_timeout cannot be negative", "")
	}
}

// validateEffectiveDatabase resolves the database name from whichever source
// provides it and writes the result back so runtime callers see one answer.
func (d *DatabaseConfig) validateEffectiveDatabase(result *ValidationResult) {
	effectiveDatabase, _, err := resolveEffectiveDatabaseName(d.Database, d.ConnectionString, d.MyCnfFile)
	if err != nil {
		switch {
		case strings.HasPrefix(err.Error(), "database.dsn"):
			result.fail("database.dsn", err.Error(),
				"set a valid MySQL DSN in database.dsn/database.dsn_file")
		case strings.HasPrefix(err.Error(), "database.mycnf_file"):
			result.fail("database.mycnf_file", err.Error(),
				"set a valid my.cnf file and include [client] database or database.database")
		case strings.Contains(err.Error(), "mismatch"):
			result.fail("database.database", err.Error(),
				"either remove database.database or set it to match the DSN/my.cnf database")
		default:
			result.fail("database.database", err.Error(),
				"set database.database or include a /database in database.dsn/database.dsn_file or database.mycnf_file")
		}
		return
	}
	d.Database = effectiveDatabase
}

func (t *DatabaseTLSConfig) validate(result *ValidationResult) {
	switch t.Mode {
	case "", "off", "verify-ca", "verify-full":
	case "skip-verify":
		result.warn("database.tls.mode",
			"skip-verify mode does not verify server certificates",
			"use verify-ca or verify-full in production")
	default:
		result.fail("database.tls.mode",
			fmt.Sprintf("invalid TLS mode %q", t.Mode),
			"valid values are: off, skip-verify, verify-ca, verify-full")
	}

	caFile := envOrPath(t.CAFileEnv, t.CAFile)
	if (t.Mode == "verify-ca" || t.Mode == "verify-full") && caFile == "" {
		result.fail("database.tls.ca_file",
			"CA file is required for verify-ca and verify-full modes",
			"set ca_file or ca_file_env to specify the CA certificate")
	}

	certFile := envOrPath(t.CertFileEnv, t.CertFile)
	keyFile := envOrPath(t.KeyFileEnv, t.KeyFile)
	if (certFile == "") != (keyFile == "") {
		result.fail("database.tls.cert_file",
			"both cert_file and key_file must be specified for client certificate authentication",
			"provide both cert_file and key_file, or neither")
	}
}

func (s *ServerConfig) validate(result *ValidationResult) {
	if s.Port < 1 || s.Port > 65535 {
		result.fail("server.port", fmt.Sprintf("port %d is out of valid range (1-65535)", s.Port), "")
	}

	s.validateRateLimit(result)
	s.validateGraphQLLimits(result)
	s.validateCORS(result)
	s.Auth.validate(result)
	s.validateTLS(result)
}

func (s *ServerConfig) validateRateLimit(result *ValidationResult) {
	if s.RateLimitEnabled {
		if s.RateLimitRPS <= 0 {
			result.fail("server.rate_limit_rps",
				"rate_limit_rps must be greater than 0 when rate limiting is enabled", "")
		}
		if s.RateLimitBurst <= 0 {
			result.fail("server.rate_limit_burst",
				"rate_limit_burst must be greater than 0 when rate limiting is enabled", "")
		}
		return
	}
	if s.RateLimitRPS > 0 || s.RateLimitBurst > 0 {
		result.warn("server.rate_limit_enabled",
			"rate limit values are set but rate limiting is disabled",
			"enable server.rate_limit_enabled to apply rate limits")
	}
}

func (s *ServerConfig) validateGraphQLLimits(result *ValidationResult) {
	if s.GraphQLMaxDepth < 0 {
		result.fail("server.graphql_max_depth", "graphql_max_depth cannot be negative", "")
	}
	if s.GraphQLMaxFields < 0 {
		result.fail("server.graphql_max_fields", "graphql_max_fields cannot be negative", "")
	}
	if s.GraphQLMaxAliases < 0 {
		result.fail("server.graphql_max_aliases", "graphql_max_aliases cannot be negative", "")
	}
	if s.GraphQLDefaultPageSize <= 0 {
		result.fail("server.graphql_default_page_size", "graphql_default_page_size must be greater than 0", "")
	}
	if s.GraphQLMaxPageSize <= 0 {
		result.fail("server.graphql_max_page_size", "graphql_max_page_size must be greater than 0", "")
	}
	if s.GraphQLMaxPageSize > 0 && s.GraphQLDefaultPageSize > s.GraphQLMaxPageSize {
		result.fail("server.graphql_default_page_size",
			"graphql_default_page_size cannot exceed graphql_max_page_size", "")
	}
	if s.PlanCacheEntries < 0 {
		result.fail("server.plan_cache_entries",
			"plan_cache_entries cannot be negative",
			"set 0 to disable the plan cache")
	}
	if s.SchemaRefreshMinInterval < 0 || s.SchemaRefreshMaxInterval < 0 {
		result.fail("server.schema_refresh_min_interval", "schema refresh intervals cannot be negative", "")
	}
	if s.SchemaRefreshMinInterval > 0 && s.SchemaRefreshMaxInterval > 0 &&
		s.SchemaRefreshMinInterval > s.SchemaRefreshMaxInterval {
		result.fail("server.schema_refresh_min_interval",
			"schema_refresh_min_interval cannot exceed schema_refresh_max_interval", "")
	}
}

func (s *ServerConfig) validateCORS(result *ValidationResult) {
	if !s.CORSEnabled {
		return
	}

	if len(s.CORSAllowedOrigins) == 0 {
		result.fail("server.cors_allowed_origins",
			"CORS enabled but no allowed origins configured",
			"set cors_allowed_origins or disable CORS")
	}

	hasWildcard := false
	for _, origin := range s.CORSAllowedOrigins {
		if strings.TrimSpace(origin) == "*" {
			hasWildcard = true
			break
		}
	}

	if hasWildcard && s.CORSAllowCredentials {
		result.fail("server.cors_allowed_origins",
			"wildcard origin (*) cannot be used with credentials",
			"use specific origins with credentials, or wildcard without credentials")
	}
	if hasWildcard {
		result.warn("server.cors_allowed_origins",
			"CORS wildcard origin enabled",
			"use specific origins in production for better security")
	}

	tlsEnabled := s.TLSMode != "" && s.TLSMode != "off"
	if tlsEnabled && len(s.CORSAllowedOrigins) > 0 && allOriginsPlainHTTP(s.CORSAllowedOrigins) {
		result.warn("server.cors_allowed_origins",
			"CORS allowed origins are http:// only while TLS is enabled",
			"use https:// origins when serving over TLS")
	}
}

func allOriginsPlainHTTP(origins []string) bool {
	for _, origin := range origins {
		origin = strings.TrimSpace(origin)
		if !strings.HasPrefix(origin, "http://") {
			return false
		}
	}
	return true
}

func (a *AuthConfig) validate(result *ValidationResult) {
	if a.DBRoleEnabled {
		if !a.OIDCEnabled {
			result.fail("server.auth.db_role_enabled",
				"db_role_enabled requires OIDC to be enabled",
				"set server.auth.oidc_enabled=true or disable db_role_enabled")
		}
		if a.DBRoleIntrospectionRole == "" {
			result.fail("server.auth.db_role_introspection_role",
				"introspection role is required when db_role_enabled is true",
				"set server.auth.db_role_introspection_role to a role with necessary schema read access")
		}
		if a.RoleSchemaMaxRoles <= 0 {
			result.fail("server.auth.role_schema_max_roles",
				"role_schema_max_roles must be greater than 0", "")
		}
		validateGlobList(result, "server.auth.role_schema_include", a.RoleSchemaInclude)
		validateGlobList(result, "server.auth.role_schema_exclude", a.RoleSchemaExclude)
	}

	if a.OIDCEnabled {
		if a.OIDCIssuerURL == "" {
			result.fail("server.auth.oidc_issuer_url", "issuer URL is required when OIDC is enabled", "")
		}
		if a.OIDCAudience == "" {
			result.fail("server.auth.oidc_audience", "audience is required when OIDC is enabled", "")
		}
		if a.OIDCCAFile != "" {
			if _, err := os.Stat(a.OIDCCAFile); err != nil {
				result.fail("server.auth.oidc_ca_file", fmt.Sprintf("CA file not accessible: %v", err), "")
			}
		}
	}
}

func (s *ServerConfig) validateTLS(result *ValidationResult) {
	switch s.TLSMode {
	case "", "off", "auto":
	case "file":
		if s.TLSCertFile == "" {
			result.fail("server.tls_cert_file", "TLS cert file required when tls_mode is 'file'", "")
		}
		if s.TLSKeyFile == "" {
			result.fail("server.tls_key_file", "TLS key file required when tls_mode is 'file'", "")
		}
	default:
		result.fail("server.tls_mode",
			fmt.Sprintf("invalid TLS mode %q", s.TLSMode),
			"valid values are: off, auto, file")
	}
}

func (o *ObservabilityConfig) validate(result *ValidationResult) {
	switch o.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		result.fail("observability.logging.level",
			fmt.Sprintf("invalid log level %q", o.Logging.Level),
			"valid values are: debug, info, warn, error")
	}

	switch o.Logging.Format {
	case "json", "text":
	default:
		result.fail("observability.logging.format",
			fmt.Sprintf("invalid log format %q", o.Logging.Format),
			"valid values are: json, text")
	}

	o.OTLP.validate("observability.otlp", result)

	// Per-signal blocks are optional overrides of the shared OTLP settings.
	if o.Traces != nil {
		o.Traces.validate("observability.traces", result)
	}
	if o.Logs != nil {
		o.Logs.validate("observability.logs", result)
	}
	if o.Metrics != nil {
		o.Metrics.validate("observability.metrics", result)
	}
}

func (o *OTLPConfig) validate(prefix string, result *ValidationResult) {
	switch o.Protocol {
	case "", "grpc":
	case "http/protobuf":
		if !validOTLPEndpoint(o.Endpoint) {
			result.fail(prefix+".endpoint",
				fmt.Sprintf("invalid OTLP endpoint %q for http/protobuf", o.Endpoint),
				"use host:port or a full URL")
		}
	default:
		result.fail(prefix+".protocol",
			fmt.Sprintf("invalid OTLP protocol %q", o.Protocol),
			"valid values are: grpc, http/protobuf")
	}

	switch o.Compression {
	case "", "none", "gzip":
	default:
		result.fail(prefix+".compression",
			fmt.Sprintf("invalid OTLP compression %q", o.Compression),
			"valid values are: none, gzip")
	}

	if o.RetryMaxAttempts < 0 {
		result.fail(prefix+".retry_max_attempts", "retry_max_attempts cannot be negative", "")
	}
}

func validOTLPEndpoint(endpoint string) bool {
	if endpoint == "" {
		return false
	}
	if strings.Contains(endpoint, "://") {
		parsed, err := url.Parse(endpoint)
		if err != nil {
			return false
		}
		return parsed.Host != ""
	}
	_, _, err := net.SplitHostPort(endpoint)
	return err == nil
}
