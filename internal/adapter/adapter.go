// Package adapter defines the contract latter uses to talk to a database and
// a database/sql implementation of it shared by every supported engine.
package adapter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	"github.com/loykin/latter/internal/migration"
)

var (
	ErrNotConnected      = errors.New("adapter: not connected")
	ErrTransactionActive = errors.New("adapter: transaction already active")
	ErrNoTransaction     = errors.New("adapter: no active transaction")
	ErrInvalidTableName  = errors.New("adapter: invalid table name")
	ErrUnsupportedScheme = errors.New("adapter: unsupported connection string scheme")
	ErrInvalidConnection = errors.New("adapter: invalid connection settings")
)

// Row is one result row keyed by column name.
type Row map[string]any

// Adapter is everything the orchestrator and runner need from a database.
// Every SQL-bearing method fails with ErrNotConnected before Connect.
type Adapter interface {
	Connect(ctx context.Context) error
	Disconnect() error

	Execute(ctx context.Context, query string, args ...any) (sql.Result, error)
	Query(ctx context.Context, query string, args ...any) ([]Row, error)

	BeginTransaction(ctx context.Context) error
	CommitTransaction() error
	RollbackTransaction() error

	TableExists(ctx context.Context, table string) (bool, error)
	CreateMigrationsTable(ctx context.Context, table string) error
	GetAppliedMigrations(ctx context.Context, table string) ([]migration.Status, error)
	MarkMigrationApplied(ctx context.Context, status migration.Status, table string) error
	MarkMigrationRolledBack(ctx context.Context, status migration.Status, table string) error

	// Driver names the engine for logs, e.g. "sqlite".
	Driver() string
}

var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// ValidateTableName accepts plain or schema-qualified identifiers only, since
// ledger table names are interpolated into SQL.
func ValidateTableName(table string) error {
	if !tableNameRe.MatchString(table) {
		return fmt.Errorf("%w: %q", ErrInvalidTableName, table)
	}
	return nil
}
