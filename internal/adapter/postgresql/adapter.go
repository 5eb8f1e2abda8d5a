package postgresql

import (
	"database/sql"

	"github.com/loykin/latter/internal/adapter"
)

// New returns a disconnected PostgreSQL adapter for cfg.
func New(cfg Config, opts ...adapter.Option) *adapter.SQLAdapter {
	return adapter.New(NewDialect(), cfg.ToDSN(), opts...)
}

// NewWithDB wraps an already opened pgx pool.
func NewWithDB(db *sql.DB, opts ...adapter.Option) *adapter.SQLAdapter {
	return adapter.NewWithDB(NewDialect(), db, opts...)
}
