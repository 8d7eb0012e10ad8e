package config

import (
	"time"

	"mysql-graphql/internal/naming"
	"mysql-graphql/internal/schemafilter"
)

// Config is the root of the application configuration tree.
type Config struct {
	Database      DatabaseConfig      `mapstructure:"database"`
	Server        ServerConfig        `mapstructure:"server"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	SchemaFilters schemafilter.Config `mapstructure:"schema_filters"`
	TypeMappings  TypeMappingsConfig  `mapstructure:"type_mappings"`
	Naming        naming.Config       `mapstructure:"naming"`
}

// TypeMappingsConfig forces specific SQL-to-GraphQL type interpretations for
// columns matched by table/column glob pairs.
type TypeMappingsConfig struct {
	// UUIDColumns marks matching columns as UUID-valued.
	UUIDColumns map[string][]string `mapstructure:"uuid_columns"`
	// TinyInt1BooleanColumns maps matching tinyint(1) columns to Boolean.
	TinyInt1BooleanColumns map[string][]string `mapstructure:"tinyint1_boolean_columns"`
	// TinyInt1IntColumns maps matching tinyint(1) columns to Int, for schemas
	// where tinyint(1) is not a semantic boolean.
	TinyInt1IntColumns map[string][]string `mapstructure:"tinyint1_int_columns"`
}

// DatabaseConfig holds everything needed to reach the MySQL server: one of
// three connection sources (DSN, my.cnf defaults file, or discrete fields),
// plus TLS, pooling, and startup retry behavior.
type DatabaseConfig struct {
	// ConnectionString is a complete go-sql-driver/mysql DSN
	// (user:password@tcp(host:port)/database?params). When set it overrides
	// the discrete Host/Port/User/Password/Database fields. Key: database.dsn.
	ConnectionString string `mapstructure:"dsn"`
	// ConnectionStringFile points at a file holding the DSN, for secrets
	// management. "@-" reads from stdin. Key: database.dsn_file.
	ConnectionStringFile string `mapstructure:"dsn_file"`
	// MyCnfFile points at a MySQL defaults file (.my.cnf style). Connection
	// settings are read from [client], with database falling back to [mysql].
	// Key: database.mycnf_file.
	MyCnfFile string `mapstructure:"mycnf_file"`

	// Discrete connection fields, used when no DSN is configured.
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	PasswordFile   string `mapstructure:"password_file"`
	PasswordPrompt bool   `mapstructure:"password_prompt"`
	Database       string `mapstructure:"database"`

	TLS  DatabaseTLSConfig `mapstructure:"tls"`
	Pool PoolConfig        `mapstructure:"pool"`

	// ConnectionTimeout bounds how long startup waits for the database;
	// ConnectionRetryInterval is the initial delay between attempts.
	ConnectionTimeout       time.Duration `mapstructure:"connection_timeout"`
	ConnectionRetryInterval time.Duration `mapstructure:"connection_retry_interval"`
}

// DatabaseTLSConfig covers both server certificate verification and client
// certificate (mTLS) authentication for the database connection.
type DatabaseTLSConfig struct {
	// Mode is one of:
	//   "off"         plaintext connection
	//   "skip-verify" TLS without server certificate verification
	//   "verify-ca"   CA verification without a hostname check
	//   "verify-full" full verification including hostname
	Mode string `mapstructure:"mode"`

	// CAFile is the CA certificate used to verify the server; required for
	// verify-ca and verify-full.
	CAFile string `mapstructure:"ca_file"`
	// CAFileEnv names an environment variable holding the CA file path,
	// for deployments that split ConfigMaps from Secrets.
	CAFileEnv string `mapstructure:"ca_file_env"`

	// CertFile/KeyFile are the client certificate pair for mTLS. The *Env
	// variants name environment variables holding the paths.
	CertFile    string `mapstructure:"cert_file"`
	CertFileEnv string `mapstructure:"cert_file_env"`
	KeyFile     string `mapstructure:"key_file"`
	KeyFileEnv  string `mapstructure:"key_file_env"`

	// ServerName overrides the name checked during TLS verification.
	// Defaults to the database host.
	ServerName string `mapstructure:"server_name"`
}

// PoolConfig holds connection pool parameters.
type PoolConfig struct {
	MaxOpen     int           `mapstructure:"max_open"`
	MaxIdle     int           `mapstructure:"max_idle"`
	MaxLifetime time.Duration `mapstructure:"max_lifetime"`
}

const defaultDatabaseName = "test"

// myCnfSettings is the subset of a MySQL defaults file this server reads.
// HasPort and HasDBName distinguish "absent" from zero values.
type myCnfSettings struct {
	Host      string
	Port      int
	User      string
	Password  string
	Database  string
	TLSMode   string
	HasPort   bool
	HasDBName bool
}

// ServerConfig holds the HTTP surface: listener, GraphQL request limits,
// auth, admin endpoint, rate limiting, CORS, timeouts, and TLS.
type ServerConfig struct {
	Port                     int           `mapstructure:"port"`
	GraphQLMaxDepth          int           `mapstructure:"graphql_max_depth"`
	GraphQLMaxFields         int           `mapstructure:"graphql_max_fields"`
	GraphQLMaxAliases        int           `mapstructure:"graphql_max_aliases"`
	GraphQLDefaultPageSize   int           `mapstructure:"graphql_default_page_size"`
	GraphQLMaxPageSize       int           `mapstructure:"graphql_max_page_size"`
	PlanCacheEntries         int64         `mapstructure:"plan_cache_entries"`
	SchemaRefreshMinInterval time.Duration `mapstructure:"schema_refresh_min_interval"`
	SchemaRefreshMaxInterval time.Duration `mapstructure:"schema_refresh_max_interval"`
	Auth                     AuthConfig    `mapstructure:"auth"`
	Admin                    AdminConfig   `mapstructure:"admin"`
	RateLimitEnabled         bool          `mapstructure:"rate_limit_enabled"`
	RateLimitRPS             float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst           int           `mapstructure:"rate_limit_burst"`
	CORSEnabled              bool          `mapstructure:"cors_enabled"`
	CORSAllowedOrigins       []string      `mapstructure:"cors_allowed_origins"`
	CORSAllowedMethods       []string      `mapstructure:"cors_allowed_methods"`
	CORSAllowedHeaders       []string      `mapstructure:"cors_allowed_headers"`
	CORSExposeHeaders        []string      `mapstructure:"cors_expose_headers"`
	CORSAllowCredentials     bool          `mapstructure:"cors_allow_credentials"`
	CORSMaxAge               int           `mapstructure:"cors_max_age"`
	ReadTimeout              time.Duration `mapstructure:"read_timeout"`
	WriteTimeout             time.Duration `mapstructure:"write_timeout"`
	IdleTimeout              time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout          time.Duration `mapstructure:"shutdown_timeout"`
	HealthCheckTimeout       time.Duration `mapstructure:"health_check_timeout"`

	// TLSMode is "off", "auto" (self-signed), or "file" (cert/key below).
	TLSMode        string `mapstructure:"tls_mode"`
	TLSCertFile    string `mapstructure:"tls_cert_file"`
	TLSKeyFile     string `mapstructure:"tls_key_file"`
	TLSAutoCertDir string `mapstructure:"tls_auto_cert_dir"`
}

// AuthConfig holds OIDC token verification and database role authorization
// settings.
type AuthConfig struct {
	OIDCEnabled             bool          `mapstructure:"oidc_enabled"`
	OIDCIssuerURL           string        `mapstructure:"oidc_issuer_url"`
	OIDCAudience            string        `mapstructure:"oidc_audience"`
	OIDCClockSkew           time.Duration `mapstructure:"oidc_clock_skew"`
	OIDCCAFile              string        `mapstructure:"oidc_ca_file"`
	DBRoleEnabled           bool          `mapstructure:"db_role_enabled"`
	DBRoleClaimName         string        `mapstructure:"db_role_claim_name"`
	DBRoleIntrospectionRole string        `mapstructure:"db_role_introspection_role"`
	RoleSchemaInclude       []string      `mapstructure:"role_schema_include"`
	RoleSchemaExclude       []string      `mapstructure:"role_schema_exclude"`
	RoleSchemaMaxRoles      int           `mapstructure:"role_schema_max_roles"`
}

// AdminConfig controls the admin endpoint and how callers authenticate to it.
type AdminConfig struct {
	SchemaReloadEnabled bool   `mapstructure:"schema_reload_enabled"`
	AuthToken           string `mapstructure:"auth_token"`
	AuthTokenFile       string `mapstructure:"auth_token_file"`
}

// ObservabilityConfig holds service identity, signal toggles, logging, and
// OTLP export settings.
type ObservabilityConfig struct {
	ServiceName      string  `mapstructure:"service_name"`
	ServiceVersion   string  `mapstructure:"service_version"`
	Environment      string  `mapstructure:"environment"`
	MetricsEnabled   bool    `mapstructure:"metrics_enabled"`
	TracingEnabled   bool    `mapstructure:"tracing_enabled"`
	TraceSampleRatio float64 `mapstructure:"trace_sample_ratio"`
	// SQLCommenterEnabled injects trace context into SQL query comments.
	SQLCommenterEnabled bool          `mapstructure:"sqlcommenter_enabled"`
	Logging             LoggingConfig `mapstructure:"logging"`

	// OTLP supplies transport defaults for every signal; the per-signal
	// blocks below override it where present.
	OTLP    OTLPConfig  `mapstructure:"otlp"`
	Traces  *OTLPConfig `mapstructure:"traces,omitempty"`
	Logs    *OTLPConfig `mapstructure:"logs,omitempty"`
	Metrics *OTLPConfig `mapstructure:"metrics,omitempty"`
}

// LoggingConfig holds logging parameters.
type LoggingConfig struct {
	Level          string `mapstructure:"level"`  // debug, info, warn, error
	Format         string `mapstructure:"format"` // json, text
	ExportsEnabled bool   `mapstructure:"exports_enabled"`
}

// OTLPConfig holds OTLP exporter transport settings for one signal, or the
// shared defaults when used as ObservabilityConfig.OTLP.
type OTLPConfig struct {
	Endpoint          string            `mapstructure:"endpoint"`
	Protocol          string            `mapstructure:"protocol"` // grpc, http/protobuf
	Insecure          bool              `mapstructure:"insecure"`
	TLSCertFile       string            `mapstructure:"tls_cert_file"`
	TLSClientCertFile string            `mapstructure:"tls_client_cert_file"`
	TLSClientKeyFile  string            `mapstructure:"tls_client_key_file"`
	Headers           map[string]string `mapstructure:"headers"`
	Timeout           time.Duration     `mapstructure:"timeout"`
	Compression       string            `mapstructure:"compression"` // none, gzip
	RetryEnabled      bool              `mapstructure:"retry_enabled"`
	RetryMaxAttempts  int               `mapstructure:"retry_max_attempts"`
}

// GetTracesConfig returns the effective OTLP settings for the traces signal.
func (c *ObservabilityConfig) GetTracesConfig() OTLPConfig {
	return c.effectiveOTLP(c.Traces)
}

// GetLogsConfig returns the effective OTLP settings for the logs signal.
func (c *ObservabilityConfig) GetLogsConfig() OTLPConfig {
	return c.effectiveOTLP(c.Logs)
}

// GetMetricsConfig returns the effective OTLP settings for the metrics signal.
func (c *ObservabilityConfig) GetMetricsConfig() OTLPConfig {
	return c.effectiveOTLP(c.Metrics)
}

func (c *ObservabilityConfig) effectiveOTLP(override *OTLPConfig) OTLPConfig {
	if override == nil {
		return c.OTLP
	}
	return mergeOTLPConfigs(c.OTLP, *override)
}

// mergeOTLPConfigs layers a signal-specific override over the shared
// defaults. Zero values in the override keep the base value, except Insecure:
// a bool cannot distinguish "unset" from false, so the override's value
// always wins once the override block exists.
func mergeOTLPConfigs(base OTLPConfig, override OTLPConfig) OTLPConfig {
	result := base

	if override.Endpoint != "" {
		result.Endpoint = override.Endpoint
	}
	if override.Protocol != "" {
		result.Protocol = override.Protocol
	}
	result.Insecure = override.Insecure

	if override.TLSCertFile != "" {
		result.TLSCertFile = override.TLSCertFile
	}
	if override.TLSClientCertFile != "" {
		result.TLSClientCertFile = override.TLSClientCertFile
	}
	if override.TLSClientKeyFile != "" {
		result.TLSClientKeyFile = override.TLSClientKeyFile
	}

	if override.Headers != nil {
		result.Headers = make(map[string]string, len(base.Headers)+len(override.Headers))
		for k, v := range base.Headers {
			result.Headers[k] = v
		}
		for k, v := range override.Headers {
			result.Headers[k] = v
		}
	}

	if override.Timeout != 0 {
		result.Timeout = override.Timeout
	}
	if override.Compression != "" {
		result.Compression = override.Compression
	}
	if override.RetryMaxAttempts != 0 {
		result.RetryEnabled = override.RetryEnabled
		result.RetryMaxAttempts = override.RetryMaxAttempts
	}

	return result
}
