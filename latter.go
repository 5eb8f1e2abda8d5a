// Package latter applies and reverts ordered SQL migrations against SQLite,
// PostgreSQL and MySQL, tracking applied migrations in a ledger table.
//
// A minimal program:
//
//	l, err := latter.Open("sqlite:./app.db", latter.Options{MigrationsDir: "./migrations"})
//	if err != nil { ... }
//	defer l.Close()
//	res := l.Migrate(ctx)
//	if !res.Success { ... res.Err ... }
package latter

import (
	"context"

	"github.com/loykin/latter/internal/adapter"
	"github.com/loykin/latter/internal/adapter/factory"
	"github.com/loykin/latter/internal/common"
	"github.com/loykin/latter/internal/loader"
	"github.com/loykin/latter/internal/migration"
	"github.com/loykin/latter/internal/retry"
)

// Re-export commonly used types for the public API

// Migration is one named, reversible schema change.
type Migration = migration.Migration

// MigrationOption customizes NewMigration.
type MigrationOption = migration.Option

// MigrationStatus is the applied/pending view of a migration.
type MigrationStatus = migration.Status

// Adapter is the database contract; see NewAdapter for the built-in engines.
type Adapter = adapter.Adapter

// AdapterOption configures a built-in adapter.
type AdapterOption = adapter.Option

// Row is a query result row keyed by column name.
type Row = adapter.Row

// ScriptEvaluator turns a script migration file into a Descriptor.
type ScriptEvaluator = loader.ScriptEvaluator

// ScriptEvaluatorFunc adapts a function to ScriptEvaluator.
type ScriptEvaluatorFunc = loader.ScriptEvaluatorFunc

// Descriptor is the parsed content of one migration file.
type Descriptor = loader.Descriptor

// Skipped is a migration file that was left out of a load, with the reason.
type Skipped = loader.Skipped

// RetryConfig controls connection retries.
type RetryConfig = retry.Config

// Logger is the structured logger used by every component.
type Logger = common.Logger

// LogLevel selects logger verbosity.
type LogLevel = common.LogLevel

const (
	LogLevelError = common.LogLevelError
	LogLevelWarn  = common.LogLevelWarn
	LogLevelInfo  = common.LogLevelInfo
	LogLevelDebug = common.LogLevelDebug
)

// NewLogger creates a text logger on stderr.
func NewLogger(level LogLevel) *Logger { return common.NewLogger(level) }

// NewJSONLogger creates a JSON logger on stderr.
func NewJSONLogger(level LogLevel) *Logger { return common.NewJSONLogger(level) }

// NewColorLogger creates a colorized logger on stderr that masks credentials.
func NewColorLogger(level LogLevel) *Logger { return common.NewColorLogger(level) }

// SetDefaultLogger sets the logger used when Options.Logger is nil.
func SetDefaultLogger(l *Logger) { common.SetDefaultLogger(l) }

// NewMigration builds a migration in code, for example for tests or embedding.
func NewMigration(name, up, down string, opts ...MigrationOption) *Migration {
	return migration.New(name, up, down, opts...)
}

var (
	WithDependencies = migration.WithDependencies
	WithVersion      = migration.WithVersion
	WithTimestamp    = migration.WithTimestamp
)

// DefaultRetryConfig returns the retry policy used by the CLI wait command.
func DefaultRetryConfig() *RetryConfig { return retry.DefaultRetryConfig() }

// NewAdapter picks a built-in adapter from the connection string scheme:
// sqlite:, postgres:, postgresql: or mysql:.
func NewAdapter(connString string, opts ...AdapterOption) (Adapter, error) {
	a, err := factory.New(connString, opts...)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// NewAdapterFromConfig builds a built-in adapter from a driver name and
// settings such as host, port, user, password, dbname, path or dsn.
func NewAdapterFromConfig(driver string, settings map[string]any, opts ...AdapterOption) (Adapter, error) {
	a, err := factory.FromConfig(driver, settings, opts...)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// WithAdapterLogger injects the logger into a built-in adapter.
func WithAdapterLogger(l *Logger) AdapterOption { return adapter.WithLogger(l) }

// WithAdapterRetry retries the initial connection with cfg.
func WithAdapterRetry(cfg *RetryConfig) AdapterOption { return adapter.WithRetry(cfg) }

// LoadMigrations reads dir without touching a database.
func LoadMigrations(ctx context.Context, dir string, logger *Logger, eval ScriptEvaluator) ([]*Migration, []Skipped, error) {
	return loader.New(loader.WithLogger(logger), loader.WithScriptEvaluator(eval)).LoadWithReport(ctx, dir)
}
