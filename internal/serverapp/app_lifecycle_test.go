package serverapp

import (
	"context"
	"errors"
	"net/http"
	"os"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"mysql-graphql/internal/config"
	"mysql-graphql/internal/logging"
	"mysql-graphql/internal/naming"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logging.Logger {
	return logging.NewLogger(logging.Config{Level: "info", Format: "text"})
}

func TestWaitForStop(t *testing.T) {
	t.Run("signal ends the wait cleanly", func(t *testing.T) {
		app := &App{logger: testLogger()}
		stop := make(chan os.Signal, 1)
		stop <- syscall.SIGTERM

		reason, err := app.WaitForStop(stop, make(chan error, 1))
		require.NoError(t, err)
		assert.Equal(t, "signal", reason)
	})

	t.Run("server error ends the wait with the error", func(t *testing.T) {
		app := &App{logger: testLogger()}
		serverErrors := make(chan error, 1)
		serverErrors <- errors.New("boom")

		reason, err := app.WaitForStop(make(chan os.Signal, 1), serverErrors)
		require.Error(t, err)
		assert.Equal(t, "server_error", reason)
	})
}

func TestShutdown_Idempotent(t *testing.T) {
	app := &App{logger: testLogger()}
	var calls int32
	app.cleanup.push("test", func(context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, app.Shutdown(ctx))
	require.NoError(t, app.Shutdown(ctx))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "cleanup must run exactly once")
}

func TestStart_BeforeInit_Fails(t *testing.T) {
	app := &App{logger: testLogger()}
	_, err := app.Start()
	require.Error(t, err)
}

func TestStartAndShutdown_HappyPath(t *testing.T) {
	app := &App{
		cfg: &config.Config{
			Server: config.ServerConfig{TLSMode: "off"},
		},
		logger:     testLogger(),
		serverAddr: "127.0.0.1:0",
		srv: &http.Server{
			Addr:    "127.0.0.1:0",
			Handler: http.NewServeMux(),
		},
		initialized: true,
	}
	app.cleanup.push("HTTP server", func(ctx context.Context) error {
		return app.srv.Shutdown(ctx)
	})

	_, err := app.Start()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, app.Shutdown(ctx))
}

func TestInitFailure_DoesNotMarkInitialized(t *testing.T) {
	// Port 1 is never a MySQL server; with a zero connection timeout Init
	// fails on the first ping instead of retrying.
	appCfg := &config.Config{
		Database: config.DatabaseConfig{
			Host:     "127.0.0.1",
			Port:     1,
			User:     "root",
			Password: "invalid",
			Database: "test",
			TLS: config.DatabaseTLSConfig{
				Mode: "off",
			},
			Pool: config.PoolConfig{
				MaxOpen:     1,
				MaxIdle:     1,
				MaxLifetime: time.Second,
			},
			ConnectionTimeout:       0,
			ConnectionRetryInterval: 10 * time.Millisecond,
		},
		Server: config.ServerConfig{
			Port:                     18089,
			GraphQLDefaultPageSize:   10,
			GraphQLMaxPageSize:       100,
			SchemaRefreshMinInterval: time.Second,
			SchemaRefreshMaxInterval: 2 * time.Second,
			ReadTimeout:              time.Second,
			WriteTimeout:             time.Second,
			IdleTimeout:              time.Second,
			ShutdownTimeout:          time.Second,
			HealthCheckTimeout:       time.Second,
			TLSMode:                  "off",
		},
		Observability: config.ObservabilityConfig{
			ServiceName:    "mysql-graphql",
			ServiceVersion: "test",
			Environment:    "test",
			Logging: config.LoggingConfig{
				Level:          "info",
				Format:         "text",
				ExportsEnabled: false,
			},
		},
		Naming: naming.DefaultConfig(),
		TypeMappings: config.TypeMappingsConfig{
			UUIDColumns:            map[string][]string{},
			TinyInt1BooleanColumns: map[string][]string{},
			TinyInt1IntColumns:     map[string][]string{},
		},
	}

	app, err := New(appCfg, testLogger())
	require.NoError(t, err)

	require.Error(t, app.Init(context.Background()), "init must fail with unreachable database")

	app.stateMu.Lock()
	initialized := app.initialized
	app.stateMu.Unlock()
	assert.False(t, initialized, "failed Init must not mark the app initialized")
}
