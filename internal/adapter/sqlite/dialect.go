package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/loykin/latter/internal/constants"
	_ "modernc.org/sqlite"
)

// Dialect implements adapter.Dialect for SQLite (modernc.org/sqlite)
type Dialect struct{}

// NewDialect creates a new SQLite dialect
func NewDialect() *Dialect {
	return &Dialect{}
}

func (d *Dialect) Name() string       { return "sqlite" }
func (d *Dialect) DriverName() string { return "sqlite" }

// Placeholder returns SQLite-style placeholders (?)
func (d *Dialect) Placeholder(int) string { return "?" }

// TimeToStorage stores applied_at as an RFC3339Nano string.
func (d *Dialect) TimeToStorage(t time.Time) any {
	return t.UTC().Format(time.RFC3339Nano)
}

// Open opens a single-connection pool. In-memory databases keep their
// connection forever since closing it drops the data.
func (d *Dialect) Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open(d.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite connection: %w", err)
	}
	db.SetMaxOpenConns(constants.DefaultSQLiteMaxConnections)
	db.SetMaxIdleConns(constants.DefaultSQLiteMaxIdleConns)
	if IsMemory(dsn) {
		db.SetConnMaxLifetime(0)
		db.SetConnMaxIdleTime(0)
	} else {
		db.SetConnMaxLifetime(constants.DefaultSQLiteLifetime)
		db.SetConnMaxIdleTime(constants.DefaultSQLiteIdleTime)
	}
	return db, nil
}

func (d *Dialect) LedgerDDL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	version TEXT NOT NULL,
	timestamp INTEGER NOT NULL,
	applied_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
	checksum TEXT NOT NULL
)`, table)
}

func (d *Dialect) TableExistsQuery(table string) (string, []any) {
	return "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", []any{table}
}
