package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDSN_DiscreteFields(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "db.example.com",
		Port:     3306,
		User:     "app",
		Password: "secret",
		Database: "shop",
	}

	dsn := cfg.DSN()
	assert.Contains(t, dsn, "app:secret@tcp(db.example.com:3306)/shop?")
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "loc=UTC")
	assert.Contains(t, dsn, "group_concat_max_len="+groupConcatMaxLen)
}

func TestDSN_ConnectionStringGetsStandardParams(t *testing.T) {
	cfg := DatabaseConfig{
		ConnectionString: "app:secret@tcp(db.example.com:3306)/shop",
	}

	dsn := cfg.DSN()
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "loc=UTC")
	assert.Contains(t, dsn, "group_concat_max_len="+groupConcatMaxLen)
}

func TestDSN_ConnectionStringKeepsExplicitParams(t *testing.T) {
	cfg := DatabaseConfig{
		ConnectionString: "app:secret@tcp(db:3306)/shop?parseTime=true&loc=Local&group_concat_max_len=2048",
	}

	dsn := cfg.DSN()
	assert.Contains(t, dsn, "loc=Local")
	assert.Contains(t, dsn, "group_concat_max_len=2048")
	assert.Equal(t, 1, strings.Count(dsn, "group_concat_max_len"))
	assert.Equal(t, 1, strings.Count(dsn, "loc="))
}

func TestDSNWithoutDatabase(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "db.example.com",
		Port:     4000,
		User:     "app",
		Password: "secret",
		Database: "shop",
	}

	dsn := cfg.DSNWithoutDatabase()
	assert.Contains(t, dsn, "@tcp(db.example.com:4000)/?")
	assert.NotContains(t, dsn, "/shop")
	assert.Contains(t, dsn, "group_concat_max_len="+groupConcatMaxLen)
}

func TestDSN_TLSParamAppended(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "db",
		Port:     3306,
		User:     "app",
		Password: "secret",
		Database: "shop",
		TLS:      DatabaseTLSConfig{Mode: "skip-verify"},
	}

	assert.Contains(t, cfg.DSN(), "tls=skip-verify")
}
