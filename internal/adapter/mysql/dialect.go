package mysql

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/loykin/latter/internal/adapter"
	"github.com/loykin/latter/internal/constants"
)

// Dialect implements adapter.Dialect for MySQL and MariaDB.
type Dialect struct{}

// NewDialect creates a new MySQL dialect
func NewDialect() *Dialect {
	return &Dialect{}
}

func (d *Dialect) Name() string       { return "mysql" }
func (d *Dialect) DriverName() string { return "mysql" }

func (d *Dialect) Placeholder(int) string { return "?" }

// TimeToStorage passes UTC times; DSNs built here set parseTime.
func (d *Dialect) TimeToStorage(t time.Time) any {
	return t.UTC()
}

func (d *Dialect) Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open(d.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}
	db.SetMaxOpenConns(constants.DefaultMySQLMaxConnections)
	db.SetMaxIdleConns(constants.DefaultMySQLMaxIdleConns)
	db.SetConnMaxLifetime(constants.DefaultMaxConnLifetime)
	db.SetConnMaxIdleTime(constants.DefaultMaxIdleTime)
	return db, nil
}

func (d *Dialect) LedgerDDL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	name VARCHAR(255) NOT NULL UNIQUE,
	version VARCHAR(64) NOT NULL,
	timestamp BIGINT NOT NULL,
	applied_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
	checksum VARCHAR(64) NOT NULL
)`, table)
}

// TableExistsQuery looks in the connection's database unless the name is qualified.
func (d *Dialect) TableExistsQuery(table string) (string, []any) {
	schema, name := adapter.SplitQualified(table)
	if schema == "" {
		return "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?", []any{name}
	}
	return "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = ? AND table_name = ?", []any{schema, name}
}
