package config

import (
	"fmt"
	"io"
	"os"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

var defineFlagsOnce sync.Once

// Load assembles the configuration from all sources. Precedence, highest
// first: explicit overrides (v.Set, used for secret-file and prompt
// resolution), command line flags, environment variables, config file,
// defaults.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	defineFlags()
	if !pflag.Parsed() {
		pflag.Parse()
	}

	cfgPath, _ := pflag.CommandLine.GetString("config")
	if err := readConfigFile(v, cfgPath); err != nil {
		return nil, err
	}

	// Canonical keys are dot-separated snake_case; the matching env var for
	// database.pool.max_open is MYSQL_GRAPHQL_DATABASE_POOL_MAX_OPEN.
	v.SetEnvPrefix("MYSQL_GRAPHQL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	bindChangedFlagsToViper(v)
	databaseNameExplicit := databaseNameExplicitlyConfigured(v)
	if err := validateSingleStdinFileSource(v); err != nil {
		return nil, err
	}

	myCnfHasDatabase, err := applyMyCnfSettings(v, databaseNameExplicit)
	if err != nil {
		return nil, err
	}
	if err := resolveSecretSources(v); err != nil {
		return nil, err
	}
	if err := normalizeDatabaseTarget(v, databaseNameExplicit, myCnfHasDatabase); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.UnmarshalExact(
		&cfg,
		viper.DecodeHook(
			mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				stringToStringSliceHookFunc(","),
			),
		),
	); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func readConfigFile(v *viper.Viper, cfgPath string) error {
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.SetConfigName("mysql-graphql")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/mysql-graphql/")
		v.AddConfigPath("$HOME/.mysql-graphql")
		v.AddConfigPath(".")
	}

	err := v.ReadInConfig()
	if err == nil {
		return nil
	}
	if cfgPath != "" {
		return fmt.Errorf("failed to read config file %q: %w", cfgPath, err)
	}
	// A missing file is fine when the operator never asked for one.
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		return nil
	}
	return fmt.Errorf("failed to read config file: %w", err)
}

// applyMyCnfSettings folds [client] settings from a MySQL defaults file into
// viper as explicit overrides. The file's database entry only wins when the
// operator did not configure database.database themselves. Returns whether
// the file supplied a database name.
func applyMyCnfSettings(v *viper.Viper, databaseNameExplicit bool) (bool, error) {
	myCnfPath := strings.TrimSpace(v.GetString("database.mycnf_file"))
	if myCnfPath == "" {
		return false, nil
	}

	settings, err := parseMyCnfFile(myCnfPath)
	if err != nil {
		return false, fmt.Errorf("failed to load database my.cnf file: %w", err)
	}

	if settings.Host != "" {
		v.Set("database.host", settings.Host)
	}
	if settings.HasPort {
		v.Set("database.port", settings.Port)
	}
	if settings.User != "" {
		v.Set("database.user", settings.User)
	}
	if settings.Password != "" {
		v.Set("database.password", settings.Password)
	}
	if settings.TLSMode != "" {
		v.Set("database.tls.mode", settings.TLSMode)
	}
	if settings.HasDBName && !databaseNameExplicit {
		v.Set("database.database", settings.Database)
	}
	return settings.HasDBName, nil
}

// resolveSecretSources reads file- and prompt-backed secrets (DSN, database
// password, admin token) into their plain config keys. File values always
// lose to a directly configured value.
func resolveSecretSources(v *viper.Viper) error {
	if v.GetString("database.dsn") == "" && v.GetString("database.dsn_file") != "" {
		dsn, err := readPasswordFile(v.GetString("database.dsn_file"))
		if err != nil {
			return fmt.Errorf("failed to read database DSN file: %w", err)
		}
		v.Set("database.dsn", dsn)
	}

	if v.GetString("database.password") == "" && v.GetString("database.password_file") != "" {
		pwd, err := readPasswordFile(v.GetString("database.password_file"))
		if err != nil {
			return fmt.Errorf("failed to read database password file: %w", err)
		}
		v.Set("database.password", pwd)
	}
	if v.GetString("database.password") == "" && v.GetBool("database.password_prompt") {
		pwd, err := promptPassword()
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		v.Set("database.password", pwd)
	}

	if v.GetString("server.admin.auth_token") == "" && v.GetString("server.admin.auth_token_file") != "" {
		tokenPath := v.GetString("server.admin.auth_token_file")
		token, err := readPasswordFile(tokenPath)
		if err != nil {
			return fmt.Errorf("failed to read admin auth token file: %w", err)
		}
		if token == "" {
			return fmt.Errorf("admin auth token file %q is empty", tokenPath)
		}
		v.Set("server.admin.auth_token", token)
	}

	return nil
}

// normalizeDatabaseTarget decides the one database name the rest of the
// process uses. The default placeholder only survives when no DSN or my.cnf
// file is in play; otherwise it is cleared so those sources can win.
func normalizeDatabaseTarget(v *viper.Viper, databaseNameExplicit, myCnfHasDatabase bool) error {
	placeholderActive := !databaseNameExplicit &&
		strings.TrimSpace(v.GetString("database.database")) == defaultDatabaseName

	if placeholderActive && strings.TrimSpace(v.GetString("database.dsn")) != "" {
		v.Set("database.database", "")
	}
	if placeholderActive && !myCnfHasDatabase &&
		strings.TrimSpace(v.GetString("database.mycnf_file")) != "" {
		v.Set("database.database", "")
	}

	effectiveDatabase, _, err := resolveEffectiveDatabaseName(
		v.GetString("database.database"),
		v.GetString("database.dsn"),
		v.GetString("database.mycnf_file"),
	)
	if err != nil {
		return fmt.Errorf("failed to resolve effective database name: %w", err)
	}
	v.Set("database.database", effectiveDatabase)
	return nil
}

// bindChangedFlagsToViper copies flags the user actually passed into viper
// as explicit overrides, so untouched flag defaults never shadow env or file
// values.
func bindChangedFlagsToViper(v *viper.Viper) {
	pflag.CommandLine.Visit(func(f *pflag.Flag) {
		if f.Name == "config" || f.Name == "version" {
			return
		}
		v.Set(f.Name, changedFlagValue(f))
	})
}

// changedFlagValue extracts a flag's typed value so viper stores real ints,
// bools, and slices rather than their string forms.
func changedFlagValue(f *pflag.Flag) any {
	switch f.Value.Type() {
	case "string":
		val, _ := pflag.CommandLine.GetString(f.Name)
		return val
	case "int":
		val, _ := pflag.CommandLine.GetInt(f.Name)
		return val
	case "int64":
		val, _ := pflag.CommandLine.GetInt64(f.Name)
		return val
	case "bool":
		val, _ := pflag.CommandLine.GetBool(f.Name)
		return val
	case "float64":
		val, _ := pflag.CommandLine.GetFloat64(f.Name)
		return val
	case "duration":
		val, _ := pflag.CommandLine.GetDuration(f.Name)
		return val
	case "stringSlice":
		val, _ := pflag.CommandLine.GetStringSlice(f.Name)
		return val
	default:
		return f.Value.String()
	}
}

// defineFlags registers every command line flag under its canonical
// snake_case config key.
func defineFlags() {
	defineFlagsOnce.Do(func() {
		// Database connection sources
		pflag.String("database.dsn", "", "Complete MySQL DSN (user:pass@tcp(host:port)/db)")
		pflag.String("database.dsn_file", "", "Path to file containing database DSN (use @- for stdin)")
		pflag.String("database.mycnf_file", "", "Path to MySQL defaults file (.my.cnf format)")

		// Discrete connection parameters, used when no DSN is given
		pflag.String("database.host", "", "Database host")
		pflag.Int("database.port", 0, "Database port")
		pflag.String("database.user", "", "Database user")
		pflag.String("database.password", "", "Database password")
		pflag.String("database.password_file", "", "Path to file containing database password (use @- for stdin)")
		pflag.Bool("database.password_prompt", false, "Prompt for database password securely")
		pflag.String("database.database", "", "Database name")

		// Database TLS
		pflag.String("database.tls.mode", "", "TLS mode (off, skip-verify, verify-ca, verify-full)")
		pflag.String("database.tls.ca_file", "", "Path to CA certificate for server verification")
		pflag.String("database.tls.ca_file_env", "", "Env var containing CA certificate path")
		pflag.String("database.tls.cert_file", "", "Path to client certificate for mTLS")
		pflag.String("database.tls.cert_file_env", "", "Env var containing client certificate path")
		pflag.String("database.tls.key_file", "", "Path to client private key for mTLS")
		pflag.String("database.tls.key_file_env", "", "Env var containing client key path")
		pflag.String("database.tls.server_name", "", "Override TLS server name for verification")

		// Connection pool and startup retry
		pflag.Int("database.pool.max_open", 0, "Maximum open database connections")
		pflag.Int("database.pool.max_idle", 0, "Maximum idle connections in pool")
		pflag.Duration("database.pool.max_lifetime", 0, "Connection max lifetime (e.g. 5m, 30s)")
		pflag.Duration("database.connection_timeout", 0, "Max time to wait for database on startup (0 = fail immediately)")
		pflag.Duration("database.connection_retry_interval", 0, "Initial interval between connection retries")

		// HTTP server and GraphQL limits
		pflag.Int("server.port", 0, "HTTP server port")
		pflag.Int("server.graphql_max_depth", 0, "Maximum GraphQL query depth limit")
		pflag.Int("server.graphql_max_fields", 0, "Maximum GraphQL field count per request")
		pflag.Int("server.graphql_max_aliases", 0, "Maximum GraphQL alias count per request")
		pflag.Int("server.graphql_default_page_size", 0, "Default page size for connection fields without first/last")
		pflag.Int("server.graphql_max_page_size", 0, "Maximum page size for connection fields")
		pflag.Int64("server.plan_cache_entries", 0, "Maximum number of cached compiled plans")
		pflag.Duration("server.schema_refresh_min_interval", 0, "Minimum interval between schema refresh checks")
		pflag.Duration("server.schema_refresh_max_interval", 0, "Maximum interval between schema refresh checks")

		// Authentication and role-based authorization
		pflag.Bool("server.auth.oidc_enabled", false, "Enable OIDC/JWKS authentication middleware")
		pflag.String("server.auth.oidc_issuer_url", "", "OIDC issuer URL (for discovery and JWKS)")
		pflag.String("server.auth.oidc_audience", "", "Expected JWT audience (client ID)")
		pflag.Duration("server.auth.oidc_clock_skew", 0, "Allowed JWT clock skew (e.g. 2m)")
		pflag.String("server.auth.oidc_ca_file", "", "CA certificate file for OIDC issuer TLS verification")
		pflag.Bool("server.auth.db_role_enabled", false, "Enable database role-based authorization (SET ROLE)")
		pflag.String("server.auth.db_role_claim_name", "", "JWT claim name containing database role (default: db_role)")
		pflag.String("server.auth.db_role_introspection_role", "", "Database role used for schema introspection when role auth is enabled")
		pflag.StringSlice("server.auth.role_schema_include", nil, "Role glob patterns to include for role-specific schema snapshots (default: [*])")
		pflag.StringSlice("server.auth.role_schema_exclude", nil, "Role glob patterns to exclude from role-specific schema snapshots")
		pflag.Int("server.auth.role_schema_max_roles", 0, "Maximum number of role-specific schemas to build when db_role_enabled is true")

		// Admin endpoint
		pflag.Bool("server.admin.schema_reload_enabled", false, "Enable /admin/reload-schema endpoint")
		pflag.String("server.admin.auth_token", "", "Shared secret required in X-Admin-Token header when admin endpoint is enabled without OIDC")
		pflag.String("server.admin.auth_token_file", "", "Path to file containing admin auth token (use @- for stdin)")

		// Rate limiting and CORS
		pflag.Bool("server.rate_limit_enabled", false, "Enable global rate limiting for all HTTP endpoints")
		pflag.Float64("server.rate_limit_rps", 0, "Global rate limit requests per second")
		pflag.Int("server.rate_limit_burst", 0, "Global rate limit burst size")
		pflag.Bool("server.cors_enabled", false, "Enable CORS (Cross-Origin Resource Sharing)")
		pflag.StringSlice("server.cors_allowed_origins", nil, "Allowed CORS origins (comma-separated or repeated)")
		pflag.StringSlice("server.cors_allowed_methods", nil, "Allowed CORS methods (comma-separated or repeated)")
		pflag.StringSlice("server.cors_allowed_headers", nil, "Allowed CORS headers (comma-separated or repeated)")
		pflag.StringSlice("server.cors_expose_headers", nil, "CORS headers to expose to browser (comma-separated or repeated)")
		pflag.Bool("server.cors_allow_credentials", false, "Allow credentials in CORS requests")
		pflag.Int("server.cors_max_age", 0, "CORS preflight cache duration (seconds)")

		// HTTP timeouts
		pflag.Duration("server.read_timeout", 0, "HTTP server read timeout")
		pflag.Duration("server.write_timeout", 0, "HTTP server write timeout")
		pflag.Duration("server.idle_timeout", 0, "HTTP server idle timeout")
		pflag.Duration("server.shutdown_timeout", 0, "HTTP server graceful shutdown timeout")
		pflag.Duration("server.health_check_timeout", 0, "Health check timeout")

		// Server TLS
		pflag.String("server.tls_mode", "", "TLS mode: off, auto (self-signed), file (default: off)")
		pflag.String("server.tls_cert_file", "", "Path to TLS certificate file (for file mode)")
		pflag.String("server.tls_key_file", "", "Path to TLS private key file (for file mode)")
		pflag.String("server.tls_auto_cert_dir", "", "Directory for auto-generated certificates (default: .tls)")

		// Observability
		pflag.String("observability.service_name", "", "Service name for observability")
		pflag.String("observability.service_version", "", "Service version for observability")
		pflag.String("observability.environment", "", "Environment name (dev, staging, prod)")
		pflag.Bool("observability.metrics_enabled", false, "Enable metrics collection")
		pflag.Bool("observability.tracing_enabled", false, "Enable distributed tracing")
		pflag.Float64("observability.trace_sample_ratio", 0, "Trace sampling ratio from 0.0 to 1.0")
		pflag.Bool("observability.sqlcommenter_enabled", false, "Inject trace context into SQL queries")
		pflag.String("observability.logging.level", "", "Log level (debug, info, warn, error)")
		pflag.String("observability.logging.format", "", "Log format (json, text)")
		pflag.Bool("observability.logging.exports_enabled", false, "Enable OTLP log export")

		// OTLP transport, shared across signals
		pflag.String("observability.otlp.endpoint", "", "OTLP endpoint for all signals (e.g., localhost:4317)")
		pflag.String("observability.otlp.protocol", "", "OTLP protocol for all signals (grpc, http/protobuf)")
		pflag.Bool("observability.otlp.insecure", false, "Use insecure connection (no TLS)")
		pflag.String("observability.otlp.tls_cert_file", "", "Path to TLS certificate file for server verification")
		pflag.String("observability.otlp.tls_client_cert_file", "", "Path to client certificate file for mTLS")
		pflag.String("observability.otlp.tls_client_key_file", "", "Path to client key file for mTLS")
		pflag.Duration("observability.otlp.timeout", 0, "OTLP export timeout")
		pflag.String("observability.otlp.compression", "", "OTLP compression (none, gzip)")
		pflag.Bool("observability.otlp.retry_enabled", false, "Enable retry on transient errors")
		pflag.Int("observability.otlp.retry_max_attempts", 0, "Maximum retry attempts")

		// Per-signal OTLP overrides
		pflag.String("observability.traces.endpoint", "", "OTLP endpoint for traces only")
		pflag.String("observability.traces.protocol", "", "OTLP protocol for traces (grpc, http/protobuf)")
		pflag.Bool("observability.traces.insecure", false, "Use insecure connection for traces")
		pflag.Duration("observability.traces.timeout", 0, "Timeout for trace exports")
		pflag.String("observability.logs.endpoint", "", "OTLP endpoint for logs only")
		pflag.String("observability.logs.protocol", "", "OTLP protocol for logs (grpc, http/protobuf)")
		pflag.Bool("observability.logs.insecure", false, "Use insecure connection for logs")
		pflag.Duration("observability.logs.timeout", 0, "Timeout for log exports")
		pflag.String("observability.metrics.endpoint", "", "OTLP endpoint for metrics only")
		pflag.Bool("observability.metrics.insecure", false, "Use insecure connection for metrics")
		pflag.Duration("observability.metrics.timeout", 0, "Timeout for metric exports")

		pflag.StringP("config", "c", "", "Config file path")
	})
}

// setDefaults registers the lowest-precedence value for every config key.
// Every key the decoder knows must appear here so UnmarshalExact can reject
// unknown keys in config files.
func setDefaults(v *viper.Viper) {
	defaultGroups := []map[string]any{
		{
			"database.dsn":             "",
			"database.dsn_file":        "",
			"database.mycnf_file":      "",
			"database.host":            "localhost",
			"database.port":            3306,
			"database.user":            "mysql_graphql",
			"database.password":        "",
			"database.password_file":   "",
			"database.password_prompt": false,
			"database.database":        defaultDatabaseName,

			"database.tls.mode":          "",
			"database.tls.ca_file":       "",
			"database.tls.ca_file_env":   "",
			"database.tls.cert_file":     "",
			"database.tls.cert_file_env": "",
			"database.tls.key_file":      "",
			"database.tls.key_file_env":  "",
			"database.tls.server_name":   "",

			"database.pool.max_open":             25,
			"database.pool.max_idle":             5,
			"database.pool.max_lifetime":         5 * time.Minute,
			"database.connection_timeout":        60 * time.Second,
			"database.connection_retry_interval": 2 * time.Second,
		},
		{
			"server.port":                        8080,
			"server.graphql_max_depth":           8,
			"server.graphql_max_fields":          0,
			"server.graphql_max_aliases":         0,
			"server.graphql_default_page_size":   10,
			"server.graphql_max_page_size":       100,
			"server.plan_cache_entries":          1024,
			"server.schema_refresh_min_interval": 30 * time.Second,
			"server.schema_refresh_max_interval": 5 * time.Minute,

			"server.auth.oidc_enabled":               false,
			"server.auth.oidc_issuer_url":            "",
			"server.auth.oidc_audience":              "",
			"server.auth.oidc_clock_skew":            2 * time.Minute,
			"server.auth.oidc_ca_file":               "",
			"server.auth.db_role_enabled":            false,
			"server.auth.db_role_claim_name":         "db_role",
			"server.auth.db_role_introspection_role": "",
			"server.auth.role_schema_include":        []string{"*"},
			"server.auth.role_schema_exclude":        []string{},
			"server.auth.role_schema_max_roles":      64,

			"server.admin.schema_reload_enabled": false,
			"server.admin.auth_token":            "",
			"server.admin.auth_token_file":       "",

			"server.rate_limit_enabled":     false,
			"server.rate_limit_rps":         0.0,
			"server.rate_limit_burst":       0,
			"server.cors_enabled":           false,
			"server.cors_allowed_origins":   []string{},
			"server.cors_allowed_methods":   []string{"GET", "POST", "OPTIONS"},
			"server.cors_allowed_headers":   []string{"Content-Type", "Authorization"},
			"server.cors_expose_headers":    []string{},
			"server.cors_allow_credentials": false,
			"server.cors_max_age":           86400,

			"server.read_timeout":         15 * time.Second,
			"server.write_timeout":        15 * time.Second,
			"server.idle_timeout":         60 * time.Second,
			"server.shutdown_timeout":     30 * time.Second,
			"server.health_check_timeout": 2 * time.Second,

			"server.tls_mode":          "off",
			"server.tls_cert_file":     "",
			"server.tls_key_file":      "",
			"server.tls_auto_cert_dir": ".tls",
		},
		{
			"observability.service_name":       "mysql-graphql",
			"observability.service_version":    "",
			"observability.environment":        "development",
			"observability.metrics_enabled":    true,
			"observability.tracing_enabled":    false,
			"observability.trace_sample_ratio": 1.0,
			// SQLCommenter only takes effect once tracing is on.
			"observability.sqlcommenter_enabled": true,

			"observability.logging.level":           "info",
			"observability.logging.format":          "json",
			"observability.logging.exports_enabled": false,

			"observability.otlp.endpoint":             "localhost:4317",
			"observability.otlp.protocol":             "grpc",
			"observability.otlp.insecure":             false,
			"observability.otlp.tls_cert_file":        "",
			"observability.otlp.tls_client_cert_file": "",
			"observability.otlp.tls_client_key_file":  "",
			"observability.otlp.timeout":              10 * time.Second,
			"observability.otlp.compression":          "gzip",
			"observability.otlp.retry_enabled":        true,
			"observability.otlp.retry_max_attempts":   3,
		},
		{
			"schema_filters.allow_tables":  []string{"*"},
			"schema_filters.allow_columns": map[string][]string{
				"*": {"*"},
			},
			"schema_filters.scan_views": false,

			"type_mappings.uuid_columns":             map[string][]string{},
			"type_mappings.tinyint1_boolean_columns": map[string][]string{},
			"type_mappings.tinyint1_int_columns":     map[string][]string{},

			"naming.plural_overrides":   map[string]string{},
			"naming.singular_overrides": map[string]string{},
			"naming.type_overrides":     map[string]string{},
		},
	}

	for _, group := range defaultGroups {
		for key, value := range group {
			v.SetDefault(key, value)
		}
	}
}

// promptPassword reads the database password from the terminal without echo.
func promptPassword() (string, error) {
	fmt.Print("Enter database password: ")
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(bytePassword), nil
}

// readPasswordFile reads a secret from a file, or from stdin when the path
// is the @- sentinel, and trims surrounding whitespace.
func readPasswordFile(path string) (string, error) {
	data, err := readSource(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(data), nil
}

func readRawFile(path string) (string, error) {
	return readSource(path)
}

func readSource(path string) (string, error) {
	var data []byte
	var err error
	if path == "@-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// validateSingleStdinFileSource rejects configurations where more than one
// file-backed setting points at stdin. stdin can only be consumed once.
func validateSingleStdinFileSource(v *viper.Viper) error {
	stdinBackedKeys := []string{
		"database.dsn_file",
		"database.mycnf_file",
		"database.password_file",
		"server.admin.auth_token_file",
	}

	var configured []string
	for _, key := range stdinBackedKeys {
		if strings.TrimSpace(v.GetString(key)) == "@-" {
			configured = append(configured, key)
		}
	}

	if len(configured) > 1 {
		return fmt.Errorf(
			"multiple stdin-backed file settings use @- (%s); only one @- source is allowed",
			strings.Join(configured, ", "),
		)
	}
	return nil
}

func parseMyCnfFile(path string) (myCnfSettings, error) {
	raw, err := readRawFile(path)
	if err != nil {
		return myCnfSettings{}, err
	}
	return parseMyCnf(raw)
}

// parseMyCnf reads the subset of MySQL defaults-file syntax this server
// honors: [client] connection settings, plus database from [mysql] as a
// fallback.
func parseMyCnf(raw string) (myCnfSettings, error) {
	settings := myCnfSettings{}
	section := ""

	for i, line := range strings.Split(raw, "\n") {
		lineno := i + 1
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.ToLower(strings.TrimSpace(line[1 : len(line)-1]))
			continue
		}

		key, value, ok := parseMyCnfKeyValue(line)
		if !ok {
			return myCnfSettings{}, fmt.Errorf("invalid my.cnf syntax on line %d", lineno)
		}
		if err := settings.apply(section, strings.ToLower(key), value, lineno); err != nil {
			return myCnfSettings{}, err
		}
	}

	return settings, nil
}

func (s *myCnfSettings) apply(section, key, value string, lineno int) error {
	if section == "mysql" {
		// [client] database wins over [mysql] database.
		if key == "database" && !s.HasDBName {
			s.Database = value
			s.HasDBName = true
		}
		return nil
	}
	if section != "client" {
		return nil
	}

	switch key {
	case "host":
		s.Host = value
	case "port":
		if value == "" {
			return fmt.Errorf("invalid my.cnf port on line %d: empty value", lineno)
		}
		port, err := parsePort(value)
		if err != nil {
			return fmt.Errorf("invalid my.cnf port on line %d: %w", lineno, err)
		}
		s.Port = port
		s.HasPort = true
	case "user":
		s.User = value
	case "password":
		s.Password = value
	case "database":
		s.Database = value
		s.HasDBName = true
	case "ssl-mode":
		tlsMode, err := mapMyCnfSSLMode(value)
		if err != nil {
			return fmt.Errorf("invalid my.cnf ssl-mode on line %d: %w", lineno, err)
		}
		s.TLSMode = tlsMode
	}
	return nil
}

// parseMyCnfKeyValue accepts both "key = value" and the whitespace-separated
// "key value" form, stripping one layer of surrounding quotes.
func parseMyCnfKeyValue(line string) (key string, value string, ok bool) {
	if parts := strings.SplitN(line, "=", 2); len(parts) == 2 {
		key = strings.TrimSpace(parts[0])
		value = stripOptionalQuotes(strings.TrimSpace(parts[1]))
		return key, value, key != ""
	}

	parts := strings.Fields(line)
	if len(parts) < 2 {
		return "", "", false
	}
	key = strings.TrimSpace(parts[0])
	value = stripOptionalQuotes(strings.TrimSpace(strings.Join(parts[1:], " ")))
	return key, value, key != ""
}

func stripOptionalQuotes(value string) string {
	if len(value) >= 2 {
		first, last := value[0], value[len(value)-1]
		if (first == '\'' && last == '\'') || (first == '"' && last == '"') {
			return value[1 : len(value)-1]
		}
	}
	return value
}

func parsePort(raw string) (int, error) {
	port, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("port %d is out of valid range (1-65535)", port)
	}
	return port, nil
}

// mapMyCnfSSLMode translates MySQL client ssl-mode values into this
// server's database.tls.mode vocabulary.
func mapMyCnfSSLMode(value string) (string, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "":
		return "", nil
	case "DISABLED":
		return "off", nil
	case "REQUIRED", "PREFERRED":
		return "skip-verify", nil
	case "VERIFY_CA":
		return "verify-ca", nil
	case "VERIFY_IDENTITY":
		return "verify-full", nil
	default:
		return "", fmt.Errorf("unsupported ssl-mode %q", value)
	}
}

func databaseNameExplicitlyConfigured(v *viper.Viper) bool {
	if _, ok := os.LookupEnv("MYSQL_GRAPHQL_DATABASE_DATABASE"); ok {
		return true
	}
	if flag := pflag.CommandLine.Lookup("database.database"); flag != nil && flag.Changed {
		return true
	}
	return v.InConfig("database.database")
}

// stringToStringSliceHookFunc lets env vars and flags supply []string values
// as a single separated string.
func stringToStringSliceHookFunc(sep string) mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if from.Kind() != reflect.String || to != reflect.TypeOf([]string{}) {
			return data, nil
		}

		raw := strings.TrimSpace(data.(string))
		if raw == "" {
			return []string{}, nil
		}

		parts := strings.Split(raw, sep)
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts, nil
	}
}
