package constants

import (
	"net/http"
	"time"
)

// Database defaults
const (
	DefaultPostgresPort    = 5432
	DefaultPostgresSSLMode = "disable"
	DefaultMySQLPort       = 3306

	DefaultPostgresMaxConnections = 25
	DefaultPostgresMaxIdleConns   = 5
	DefaultMySQLMaxConnections    = 25
	DefaultMySQLMaxIdleConns      = 5
	DefaultSQLiteMaxConnections   = 1 // SQLite allows only one writer
	DefaultSQLiteMaxIdleConns     = 1
	DefaultSQLiteBusyTimeoutMs    = 5000

	DefaultSchemaMigrationsTable = "schema_migrations"
	DefaultMigrationsDir         = "./migrations"
)

// Connection pool lifetimes
const (
	DefaultMaxConnLifetime = 5 * time.Minute
	DefaultMaxIdleTime     = 1 * time.Minute
	DefaultSQLiteLifetime  = 10 * time.Minute
	DefaultSQLiteIdleTime  = 5 * time.Minute
)

// Wait command defaults
const (
	DefaultWaitTimeout  = 60 * time.Second
	DefaultWaitInterval = 2 * time.Second
	DefaultWaitStatus   = http.StatusOK
	DefaultWaitMethod   = http.MethodGet
)

// Status API defaults
const (
	DefaultServeAddr = ":8080"
)

// Migration file suffixes
const (
	SQLUpSuffix   = "_up.sql"
	SQLDownSuffix = "_down.sql"
)
