package postgresql

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/loykin/latter/internal/adapter"
	"github.com/loykin/latter/internal/constants"
)

// Dialect implements adapter.Dialect for PostgreSQL via pgx stdlib
type Dialect struct{}

// NewDialect creates a new PostgreSQL dialect
func NewDialect() *Dialect {
	return &Dialect{}
}

func (d *Dialect) Name() string       { return "postgresql" }
func (d *Dialect) DriverName() string { return "pgx" }

// Placeholder returns PostgreSQL-style placeholders ($1, $2, ...)
func (d *Dialect) Placeholder(index int) string {
	return fmt.Sprintf("$%d", index)
}

// TimeToStorage passes time values through; the column is TIMESTAMPTZ.
func (d *Dialect) TimeToStorage(t time.Time) any {
	return t
}

// Open opens a pgx pool with the default pool limits.
func (d *Dialect) Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open(d.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open PostgreSQL connection: %w", err)
	}
	db.SetMaxOpenConns(constants.DefaultPostgresMaxConnections)
	db.SetMaxIdleConns(constants.DefaultPostgresMaxIdleConns)
	db.SetConnMaxLifetime(constants.DefaultMaxConnLifetime)
	db.SetConnMaxIdleTime(constants.DefaultMaxIdleTime)
	return db, nil
}

func (d *Dialect) LedgerDDL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	version TEXT NOT NULL,
	timestamp BIGINT NOT NULL,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
	checksum TEXT NOT NULL
)`, table)
}

// TableExistsQuery looks in the current schema unless the name is qualified.
func (d *Dialect) TableExistsQuery(table string) (string, []any) {
	schema, name := adapter.SplitQualified(table)
	if schema == "" {
		return "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = $1", []any{name}
	}
	return "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = $1 AND table_name = $2", []any{schema, name}
}
