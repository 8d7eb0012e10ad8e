package serverapp

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"mysql-graphql/internal/config"
	"mysql-graphql/internal/dbexec"
	"mysql-graphql/internal/logging"
	"mysql-graphql/internal/observability"
	"mysql-graphql/internal/resolver"
	"mysql-graphql/internal/schemarefresh"
	"mysql-graphql/internal/tlscert"
)

// App owns runtime resources for the mysql-graphql server lifecycle: Init
// acquires them, Start serves, Shutdown releases them in reverse order.
type App struct {
	cfg    *config.Config
	logger *logging.Logger

	// database identity resolved at construction time
	effectiveDatabase string
	databaseSource    string
	dsnPresent        bool

	// observability providers
	loggerProvider       *observability.LoggerProvider
	meterProvider        *observability.MeterProvider
	tracerProvider       *observability.TracerProvider
	graphqlMetrics       *observability.GraphQLMetrics
	schemaRefreshMetrics *observability.SchemaRefreshMetrics
	securityMetrics      *observability.SecurityMetrics

	// database and execution
	db             *sql.DB
	dbStatsReg     interface{ Unregister() error }
	availableRoles []string
	queryExecutor  dbexec.QueryExecutor

	// schema pipeline
	manager      *schemarefresh.Manager
	schemaCancel context.CancelFunc
	engine       *resolver.Engine

	// HTTP surface
	graphqlHandler http.Handler
	adminHandler   http.Handler
	mux            *http.ServeMux
	handler        http.Handler
	serverAddr     string
	srv            *http.Server
	tlsManager     tlscert.Manager

	cleanup cleanupStack

	stateMu      sync.Mutex
	initialized  bool
	started      bool
	serverErrors chan error

	shutdownOnce sync.Once
}

// New creates an App lifecycle wrapper.
func New(cfg *config.Config, logger *logging.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	database, source, err := cfg.Database.EffectiveDatabaseName()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve effective database configuration: %w", err)
	}

	return &App{
		cfg:               cfg,
		logger:            logger,
		effectiveDatabase: database,
		databaseSource:    source,
		dsnPresent:        strings.TrimSpace(cfg.Database.ConnectionString) != "",
	}, nil
}

// AttachLoggerProvider registers an optional logger provider for shutdown cleanup.
func (a *App) AttachLoggerProvider(provider *observability.LoggerProvider) {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	a.loggerProvider = provider
}
