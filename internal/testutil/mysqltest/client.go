// Package mysqltest provisions throwaway MySQL databases for integration
// tests. Each test gets its own database, created against the server named by
// the MYSQL_TEST_* environment variables and dropped on cleanup.
package mysqltest

import (
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"mysql-graphql/internal/sqlutil"
)

// TestDB is a connection to a per-test database.
type TestDB struct {
	DB           *sql.DB
	DatabaseName string
	config       Config
}

// RoleTestDB holds admin and runtime connections for role-based tests. The
// admin connection creates roles and grants; the runtime connection mimics
// the restricted user the server runs as.
type RoleTestDB struct {
	AdminDB      *sql.DB
	RuntimeDB    *sql.DB
	DatabaseName string
	RuntimeUser  string
	RuntimeHost  string
	config       Config
}

// Config holds MySQL connection information for the test server.
type Config struct {
	Host     string
	Port     string
	User     string
	Password string
	TLSMode  string
}

// NewTestDB creates an isolated database for this test and connects to it.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	cfg := getTestConfig(t)

	dbName := fmt.Sprintf("test_%s_%d",
		sanitizeName(t.Name()),
		time.Now().UnixMilli())

	db, err := sql.Open("mysql", buildDSN(cfg, "information_schema"))
	if err != nil {
		t.Fatalf("Failed to connect to MySQL: %v", err)
	}
	configureTestPool(db)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		t.Fatalf("Failed to ping MySQL: %v", err)
	}

	if !isValidDatabaseName(dbName) {
		_ = db.Close()
		t.Fatalf("Invalid database name generated: %s", dbName)
	}

	// Safe to interpolate: dbName is validated above.
	if _, err := db.Exec(fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", dbName)); err != nil {
		_ = db.Close()
		t.Fatalf("Failed to create test database %s: %v", dbName, err)
	}

	if err := db.Close(); err != nil {
		t.Logf("Warning: failed to close database connection: %v", err)
	}

	db, err = sql.Open("mysql", buildDSN(cfg, dbName))
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	configureTestPool(db)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		t.Fatalf("Failed to ping test database: %v", err)
	}

	testDB := &TestDB{
		DB:           db,
		DatabaseName: dbName,
		config:       cfg,
	}

	t.Cleanup(func() {
		testDB.Teardown(t)
	})

	return testDB
}

// NewRoleTestDB creates a test database plus a temporary restricted user for
// role-based authorization tests.
func NewRoleTestDB(t *testing.T) *RoleTestDB {
	t.Helper()

	cfg := getTestConfig(t)

	dbName := fmt.Sprintf("test_%s_%d",
		sanitizeName(t.Name()),
		time.Now().UnixMilli())

	adminBootstrap, err := sql.Open("mysql", buildDSN(cfg, "information_schema"))
	if err != nil {
		t.Fatalf("Failed to connect to MySQL: %v", err)
	}
	configureTestPool(adminBootstrap)

	if err := adminBootstrap.Ping(); err != nil {
		_ = adminBootstrap.Close()
		t.Fatalf("Failed to ping MySQL: %v", err)
	}

	if !isValidDatabaseName(dbName) {
		_ = adminBootstrap.Close()
		t.Fatalf("Invalid database name generated: %s", dbName)
	}

	if _, err := adminBootstrap.Exec(fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", dbName)); err != nil {
		_ = adminBootstrap.Close()
		t.Fatalf("Failed to create test database %s: %v", dbName, err)
	}

	if err := adminBootstrap.Close(); err != nil {
		t.Logf("Warning: failed to close database connection: %v", err)
	}

	adminDB, err := sql.Open("mysql", buildDSN(cfg, dbName))
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	configureTestPool(adminDB)

	if err := adminDB.Ping(); err != nil {
		_ = adminDB.Close()
		t.Fatalf("Failed to ping test database: %v", err)
	}

	// MySQL user names are capped at 32 characters.
	runtimeUserBytes := []byte(fmt.Sprintf("mgql_rt_%d", time.Now().UnixNano()))
	if len(runtimeUserBytes) > 32 {
		runtimeUserBytes = runtimeUserBytes[:32]
	}
	runtimeUser := string(runtimeUserBytes)
	runtimeHost := "%"
	runtimePassword, err := generatePassword(24)
	if err != nil {
		_ = adminDB.Close()
		t.Fatalf("Failed to generate runtime password: %v", err)
	}

	runtimeIdentity := quoteUserHost(runtimeUser, runtimeHost)
	// CREATE USER doesn't support parameterized IDENTIFIED BY, so the
	// password is escaped with QuoteString.
	if _, err := adminDB.Exec(fmt.Sprintf("CREATE USER %s IDENTIFIED BY %s", runtimeIdentity, sqlutil.QuoteString(runtimePassword))); err != nil {
		_ = adminDB.Close()
		t.Fatalf("Failed to create runtime user %s: %v", runtimeUser, err)
	}
	if _, err := adminDB.Exec(fmt.Sprintf("GRANT SELECT ON INFORMATION_SCHEMA.* TO %s", runtimeIdentity)); err != nil {
		_ = adminDB.Close()
		t.Fatalf("Failed to grant information_schema access to %s: %v", runtimeUser, err)
	}
	if _, err := adminDB.Exec(fmt.Sprintf("GRANT USAGE ON `%s`.* TO %s", dbName, runtimeIdentity)); err != nil {
		_ = adminDB.Close()
		t.Fatalf("Failed to grant usage access to %s for %s: %v", dbName, runtimeUser, err)
	}

	runtimeCfg := cfg
	runtimeCfg.User = runtimeUser
	runtimeCfg.Password = runtimePassword

	runtimeDB, err := sql.Open("mysql", buildDSN(runtimeCfg, "information_schema"))
	if err != nil {
		_ = adminDB.Close()
		t.Fatalf("Failed to connect to runtime database: %v", err)
	}
	configureTestPool(runtimeDB)

	if err := runtimeDB.Ping(); err != nil {
		_ = runtimeDB.Close()
		_ = adminDB.Close()
		t.Fatalf("Failed to ping runtime database: %v", err)
	}

	testDB := &RoleTestDB{
		AdminDB:      adminDB,
		RuntimeDB:    runtimeDB,
		DatabaseName: dbName,
		RuntimeUser:  runtimeUser,
		RuntimeHost:  runtimeHost,
		config:       cfg,
	}

	t.Cleanup(func() {
		testDB.Teardown(t)
	})

	return testDB
}

// Teardown drops the test database and closes the connection.
func (tdb *TestDB) Teardown(t *testing.T) {
	t.Helper()

	if tdb.DB != nil {
		if isValidDatabaseName(tdb.DatabaseName) {
			if _, err := tdb.DB.Exec(fmt.Sprintf("DROP DATABASE IF EXISTS `%s`", tdb.DatabaseName)); err != nil {
				t.Logf("Warning: Failed to drop test database %s: %v", tdb.DatabaseName, err)
			}
		}

		if err := tdb.DB.Close(); err != nil {
			t.Logf("Warning: failed to close test database connection: %v", err)
		}
	}
}

// Teardown drops the test database and the runtime user.
func (tdb *RoleTestDB) Teardown(t *testing.T) {
	t.Helper()

	if tdb.RuntimeDB != nil {
		if err := tdb.RuntimeDB.Close(); err != nil {
			t.Logf("Warning: failed to close runtime database connection: %v", err)
		}
	}

	if tdb.AdminDB != nil {
		if tdb.RuntimeUser != "" {
			runtimeIdentity := quoteUserHost(tdb.RuntimeUser, tdb.RuntimeHost)
			if _, err := tdb.AdminDB.Exec(fmt.Sprintf("DROP USER IF EXISTS %s", runtimeIdentity)); err != nil {
				t.Logf("Warning: failed to drop runtime user %s: %v", tdb.RuntimeUser, err)
			}
		}

		if isValidDatabaseName(tdb.DatabaseName) {
			if _, err := tdb.AdminDB.Exec(fmt.Sprintf("DROP DATABASE IF EXISTS `%s`", tdb.DatabaseName)); err != nil {
				t.Logf("Warning: Failed to drop test database %s: %v", tdb.DatabaseName, err)
			}
		}

		if err := tdb.AdminDB.Close(); err != nil {
			t.Logf("Warning: failed to close admin database connection: %v", err)
		}
	}
}

// LoadSchemaAdmin loads a SQL schema file using the admin connection.
func (tdb *RoleTestDB) LoadSchemaAdmin(t *testing.T, schemaPath string) {
	t.Helper()
	loadSQLFile(t, tdb.AdminDB, schemaPath)
}

// LoadFixturesAdmin loads fixture data using the admin connection.
func (tdb *RoleTestDB) LoadFixturesAdmin(t *testing.T, fixturePath string) {
	t.Helper()
	loadSQLFile(t, tdb.AdminDB, fixturePath)
}

// LoadSchema loads a SQL schema file into the test database.
// The file can contain multiple statements separated by semicolons.
func (tdb *TestDB) LoadSchema(t *testing.T, schemaPath string) {
	t.Helper()
	loadSQLFile(t, tdb.DB, schemaPath)
}

// LoadFixtures loads test data from a SQL file.
func (tdb *TestDB) LoadFixtures(t *testing.T, fixturePath string) {
	t.Helper()
	loadSQLFile(t, tdb.DB, fixturePath)
}

// getTestConfig reads MySQL connection info from environment variables.
func getTestConfig(t *testing.T) Config {
	t.Helper()

	host := os.Getenv("MYSQL_TEST_HOST")
	port := os.Getenv("MYSQL_TEST_PORT")
	user := os.Getenv("MYSQL_TEST_USER")
	password := os.Getenv("MYSQL_TEST_PASSWORD")
	tlsMode := os.Getenv("MYSQL_TEST_TLS_MODE")

	if host == "" || user == "" {
		t.Skip("MySQL credentials not set. Set MYSQL_TEST_HOST, MYSQL_TEST_USER, MYSQL_TEST_PASSWORD environment variables to run integration tests")
	}

	if port == "" {
		port = "3306"
	}

	return Config{
		Host:     host,
		Port:     port,
		User:     user,
		Password: password,
		TLSMode:  tlsMode,
	}
}

func buildDSN(cfg Config, database string) string {
	// group_concat_max_len matches the server's session setting so compiled
	// statements behave the same when executed through a test connection.
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true&multiStatements=false&group_concat_max_len=4294967295",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		database,
	)

	if cfg.TLSMode != "" {
		dsn += fmt.Sprintf("&tls=%s", cfg.TLSMode)
	}

	return dsn
}

func configureTestPool(db *sql.DB) {
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)
}

func loadSQLFile(t *testing.T, db *sql.DB, filePath string) {
	t.Helper()

	payload, err := os.ReadFile(filePath)
	if err != nil {
		t.Fatalf("Failed to read SQL file %s: %v", filePath, err)
	}

	statements := splitSQL(string(payload))
	for i, stmt := range statements {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}

		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("Failed to execute SQL statement %d: %v\nStatement: %s", i+1, err, stmt)
		}
	}
}

func generatePassword(length int) (string, error) {
	if length < 12 {
		length = 12
	}
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func quoteUserHost(user, host string) string {
	escapedUser := strings.ReplaceAll(user, "'", "''")
	escapedHost := strings.ReplaceAll(host, "'", "''")
	return fmt.Sprintf("'%s'@'%s'", escapedUser, escapedHost)
}

// sanitizeName makes a test name safe for use as a database name. MySQL
// database names are limited to 64 characters and the generated name leaves
// room for the timestamp suffix.
func sanitizeName(name string) string {
	var result strings.Builder

	for _, ch := range name {
		if (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9') {
			result.WriteRune(ch)
		} else {
			result.WriteRune('_')
		}
	}

	sanitized := result.String()
	if len(sanitized) > 40 {
		sanitized = sanitized[:40]
	}

	return sanitized
}

// splitSQL splits SQL text into individual statements on semicolons. It does
// not handle semicolons inside strings or comments.
func splitSQL(sql string) []string {
	statements := strings.Split(sql, ";")
	result := make([]string, 0, len(statements))

	for _, stmt := range statements {
		stmt = strings.TrimSpace(stmt)
		if stmt != "" {
			result = append(result, stmt)
		}
	}

	return result
}

// isValidDatabaseName restricts database names to alphanumerics and
// underscores, which keeps the CREATE/DROP DATABASE interpolation safe.
func isValidDatabaseName(name string) bool {
	if name == "" || len(name) > 64 {
		return false
	}

	for _, ch := range name {
		if !isValidDatabaseChar(ch) {
			return false
		}
	}

	return true
}

func isValidDatabaseChar(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') ||
		(ch >= 'A' && ch <= 'Z') ||
		(ch >= '0' && ch <= '9') ||
		ch == '_'
}
