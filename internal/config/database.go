package config

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// tlsConfigName is the name used to register custom TLS configs with the MySQL driver.
const tlsConfigName = "mysql-graphql-custom"

// DSN returns a MySQL-compatible data source name. A configured connection
// string is used as-is (with the standard parameters appended); otherwise the
// DSN is assembled from the discrete fields.
func (d *DatabaseConfig) DSN() string {
	return d.buildDSN(true)
}

// DSNWithoutDatabase returns a DSN that omits the default database. Role-based
// auth needs this: database access is granted via SET ROLE, so the DSN must
// not pin a schema.
func (d *DatabaseConfig) DSNWithoutDatabase() string {
	return d.buildDSN(false)
}

// groupConcatMaxLen is set on every session because GROUP_CONCAT assembles
// connection edges into JSON arrays and the server default of 1024 bytes
// silently truncates any non-trivial page. 4294967295 is the variable's
// maximum on 32-bit builds and accepted everywhere.
const groupConcatMaxLen = "4294967295"

func (d *DatabaseConfig) buildDSN(includeDatabase bool) string {
	var dsn string
	if d.ConnectionString != "" {
		dsn = d.ConnectionString
	} else {
		database := ""
		if includeDatabase {
			database = d.Database
		}
		dsn = fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?parseTime=true&loc=UTC",
			d.User, d.Password, d.Host, d.Port, database,
		)
	}
	dsn = withStandardDSNParams(dsn)

	if tlsParam := d.effectiveTLSParam(); tlsParam != "" && !strings.Contains(dsn, "tls=") {
		dsn += "&tls=" + tlsParam
	}
	return dsn
}

// withStandardDSNParams ensures parseTime and a UTC location are present so
// DATETIME columns scan into time.Time consistently, and raises
// group_concat_max_len (the driver forwards unrecognized DSN parameters to
// the server as session system variables).
func withStandardDSNParams(dsn string) string {
	if !strings.Contains(dsn, "parseTime") {
		if strings.Contains(dsn, "?") {
			dsn += "&parseTime=true"
		} else {
			dsn += "?parseTime=true"
		}
	}
	if !strings.Contains(dsn, "loc=") {
		dsn += "&loc=UTC"
	}
	if !strings.Contains(dsn, "group_concat_max_len") {
		dsn += "&group_concat_max_len=" + groupConcatMaxLen
	}
	return dsn
}

// EffectiveDatabaseName returns the canonical database name used for schema
// introspection and role-aware query execution, plus where it came from.
func (d *DatabaseConfig) EffectiveDatabaseName() (name string, source string, err error) {
	return resolveEffectiveDatabaseName(d.Database, d.ConnectionString, d.MyCnfFile)
}

func resolveEffectiveDatabaseName(databaseName string, connectionString string, myCnfFile string) (name string, source string, err error) {
	configDatabase := strings.TrimSpace(databaseName)
	dsn := strings.TrimSpace(connectionString)
	myCnfPath := strings.TrimSpace(myCnfFile)

	dsnDatabase, parseErr := parseDSNDatabaseName(dsn)
	if parseErr != nil {
		return "", "", parseErr
	}

	if configDatabase != "" {
		if dsnDatabase != "" && configDatabase != dsnDatabase {
			return "", "", fmt.Errorf(
				"database mismatch: database.database=%q but database.dsn targets %q",
				configDatabase, dsnDatabase,
			)
		}
		if myCnfPath != "" && dsn == "" {
			return configDatabase, "mycnf", nil
		}
		return configDatabase, "database.database", nil
	}

	if dsnDatabase != "" {
		return dsnDatabase, "dsn", nil
	}
	if myCnfPath != "" {
		return "", "", fmt.Errorf(
			"database.mycnf_file does not provide a database name and database.database is not set",
		)
	}
	return "", "", fmt.Errorf(
		"no effective database name configured: set database.database or include /<database> in database.dsn/database.dsn_file or database.mycnf_file",
	)
}

func parseDSNDatabaseName(connectionString string) (string, error) {
	dsn := strings.TrimSpace(connectionString)
	if dsn == "" {
		return "", nil
	}

	parsed, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("database.dsn is invalid: %w", err)
	}
	return strings.TrimSpace(parsed.DBName), nil
}

// effectiveTLSParam maps the configured TLS mode to the driver's tls= DSN
// parameter. Empty means no parameter at all.
func (d *DatabaseConfig) effectiveTLSParam() string {
	switch mode := d.TLS.Mode; mode {
	case "":
		return ""
	case "off":
		return "false"
	case "skip-verify":
		return "skip-verify"
	case "verify-ca", "verify-full":
		// These need the registered custom config.
		return tlsConfigName
	default:
		// Unknown mode, let the driver handle it.
		return mode
	}
}

// RegisterTLS registers a custom TLS configuration with the MySQL driver.
// Must run before opening the database connection when using verify-ca or
// verify-full modes; a no-op otherwise.
func (d *DatabaseConfig) RegisterTLS() error {
	if mode := d.TLS.Mode; mode != "verify-ca" && mode != "verify-full" {
		return nil
	}

	tlsCfg, err := d.buildTLSConfig()
	if err != nil {
		return fmt.Errorf("failed to build TLS config: %w", err)
	}
	if err := mysql.RegisterTLSConfig(tlsConfigName, tlsCfg); err != nil {
		return fmt.Errorf("failed to register TLS config: %w", err)
	}
	return nil
}

// buildTLSConfig creates a tls.Config from the DatabaseTLSConfig settings.
func (d *DatabaseConfig) buildTLSConfig() (*tls.Config, error) {
	tlsCfg := &tls.Config{
		MinVersion: tls.VersionTLS12,
	}

	caFile := envOrPath(d.TLS.CAFileEnv, d.TLS.CAFile)
	certFile := envOrPath(d.TLS.CertFileEnv, d.TLS.CertFile)
	keyFile := envOrPath(d.TLS.KeyFileEnv, d.TLS.KeyFile)

	if caFile != "" {
		caCert, err := os.ReadFile(caFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA file %q: %w", caFile, err)
		}
		certPool := x509.NewCertPool()
		if !certPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA certificate from %q", caFile)
		}
		tlsCfg.RootCAs = certPool
	}

	switch {
	case certFile != "" && keyFile != "":
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	case certFile != "" || keyFile != "":
		return nil, fmt.Errorf("both cert_file and key_file must be specified for client certificate authentication")
	}

	// verify-ca relies on the driver performing the CA check without hostname
	// verification; verify-full additionally pins the expected server name.
	if d.TLS.Mode == "verify-full" && d.TLS.ServerName != "" {
		tlsCfg.ServerName = d.TLS.ServerName
	}

	return tlsCfg, nil
}

// envOrPath resolves a file path with env var indirection: when envVar is set
// and non-empty in the environment, its value wins over the literal path.
func envOrPath(envVar, literal string) string {
	if envVar != "" {
		if path := os.Getenv(envVar); path != "" {
			return path
		}
	}
	return literal
}
