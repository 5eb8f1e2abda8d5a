package mysql

import (
	"database/sql"
	"fmt"

	"github.com/loykin/latter/internal/adapter"
)

// New returns a disconnected MySQL adapter for cfg.
//
// MySQL commits DDL implicitly, so a failed batch rolls back its ledger rows
// but not schema changes already made by earlier statements in the batch.
func New(cfg Config, opts ...adapter.Option) (*adapter.SQLAdapter, error) {
	dsn, err := cfg.ToDSN()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", adapter.ErrInvalidConnection, err)
	}
	return adapter.New(NewDialect(), dsn, opts...), nil
}

// NewWithDB wraps an already opened MySQL pool. The pool must use parseTime=true.
func NewWithDB(db *sql.DB, opts ...adapter.Option) *adapter.SQLAdapter {
	return adapter.NewWithDB(NewDialect(), db, opts...)
}
