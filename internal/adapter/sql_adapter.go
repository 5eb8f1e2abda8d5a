package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/loykin/latter/internal/common"
	"github.com/loykin/latter/internal/migration"
	"github.com/loykin/latter/internal/retry"
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Option configures an SQLAdapter.
type Option func(*SQLAdapter)

// WithLogger injects the logger. nil keeps the process default.
func WithLogger(l *common.Logger) Option {
	return func(a *SQLAdapter) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithRetry retries the initial ping with the given policy.
func WithRetry(cfg *retry.Config) Option {
	return func(a *SQLAdapter) { a.retry = cfg }
}

// WithClock overrides the clock used for applied_at when a status carries none.
func WithClock(now func() time.Time) Option {
	return func(a *SQLAdapter) {
		if now != nil {
			a.now = now
		}
	}
}

// SQLAdapter implements Adapter on top of database/sql for any Dialect.
// While a transaction is open every statement, ledger access included, goes
// through it.
type SQLAdapter struct {
	dialect Dialect
	dsn     string
	db      *sql.DB
	tx      *sql.Tx
	ownsDB  bool
	retry   *retry.Config
	logger  *common.Logger
	now     func() time.Time
}

// New returns a disconnected adapter for dsn.
func New(d Dialect, dsn string, opts ...Option) *SQLAdapter {
	a := &SQLAdapter{
		dialect: d,
		dsn:     dsn,
		ownsDB:  true,
		now:     time.Now,
	}
	a.logger = common.GetLogger()
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.WithStore(d.Name())
	return a
}

// NewWithDB wraps an already opened pool. Disconnect leaves it open.
func NewWithDB(d Dialect, db *sql.DB, opts ...Option) *SQLAdapter {
	a := New(d, "", opts...)
	a.db = db
	a.ownsDB = false
	return a
}

// Driver names the engine.
func (a *SQLAdapter) Driver() string { return a.dialect.Name() }

// Dialect exposes the dialect, mainly for tests.
func (a *SQLAdapter) Dialect() Dialect { return a.dialect }

// DSN returns the driver connection string. It may contain credentials.
func (a *SQLAdapter) DSN() string { return a.dsn }

// DB returns the underlying pool, or nil before Connect.
func (a *SQLAdapter) DB() *sql.DB { return a.db }

// InTransaction reports whether a transaction is open.
func (a *SQLAdapter) InTransaction() bool { return a.tx != nil }

// Connect opens and pings the pool. Calling it again while connected is a no-op.
func (a *SQLAdapter) Connect(ctx context.Context) error {
	if a.db != nil {
		return nil
	}
	if strings.TrimSpace(a.dsn) == "" {
		return fmt.Errorf("%w: empty %s connection string", ErrInvalidConnection, a.dialect.Name())
	}

	db, err := a.dialect.Open(a.dsn)
	if err != nil {
		return fmt.Errorf("failed to open %s connection: %w", a.dialect.Name(), err)
	}
	err = retry.WithRetry(ctx, a.retry, a.logger, func(ctx context.Context) error {
		return db.PingContext(ctx)
	})
	if err != nil {
		_ = db.Close()
		a.logger.Error("database ping failed", "error", err, "dsn", common.MaskDSN(a.dsn))
		return fmt.Errorf("failed to ping %s database: %w", a.dialect.Name(), err)
	}

	a.db = db
	a.ownsDB = true
	a.logger.Info("database connection established")
	return nil
}

// Disconnect rolls back a dangling transaction and closes an owned pool.
// It is safe to call when never connected.
func (a *SQLAdapter) Disconnect() error {
	if a.tx != nil {
		if err := a.tx.Rollback(); err != nil {
			a.logger.Warn("failed to roll back open transaction on disconnect", "error", err)
		}
		a.tx = nil
	}
	if a.db == nil {
		return nil
	}
	db := a.db
	a.db = nil
	if !a.ownsDB {
		return nil
	}
	if err := db.Close(); err != nil {
		return fmt.Errorf("failed to close %s connection: %w", a.dialect.Name(), err)
	}
	a.logger.Debug("database connection closed")
	return nil
}

func (a *SQLAdapter) conn() (execer, error) {
	if a.tx != nil {
		return a.tx, nil
	}
	if a.db == nil {
		return nil, ErrNotConnected
	}
	return a.db, nil
}

// Execute runs a statement and returns the driver's result.
func (a *SQLAdapter) Execute(ctx context.Context, query string, args ...any) (sql.Result, error) {
	c, err := a.conn()
	if err != nil {
		return nil, err
	}
	return c.ExecContext(ctx, query, args...)
}

// Query runs a query and materializes every row. []byte values become strings.
func (a *SQLAdapter) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	c, err := a.conn()
	if err != nil {
		return nil, err
	}
	rows, err := c.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []Row
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(Row, len(cols))
		for i, col := range cols {
			if b, ok := vals[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = vals[i]
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (a *SQLAdapter) BeginTransaction(ctx context.Context) error {
	if a.db == nil {
		return ErrNotConnected
	}
	if a.tx != nil {
		return ErrTransactionActive
	}
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	a.tx = tx
	return nil
}

func (a *SQLAdapter) CommitTransaction() error {
	if a.tx == nil {
		return ErrNoTransaction
	}
	tx := a.tx
	a.tx = nil
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (a *SQLAdapter) RollbackTransaction() error {
	if a.tx == nil {
		return ErrNoTransaction
	}
	tx := a.tx
	a.tx = nil
	if err := tx.Rollback(); err != nil {
		return fmt.Errorf("failed to roll back transaction: %w", err)
	}
	return nil
}

// TableExists checks the engine catalog for table.
func (a *SQLAdapter) TableExists(ctx context.Context, table string) (bool, error) {
	if err := ValidateTableName(table); err != nil {
		return false, err
	}
	c, err := a.conn()
	if err != nil {
		return false, err
	}
	q, args := a.dialect.TableExistsQuery(table)
	var n int
	if err := c.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to check table %s: %w", table, err)
	}
	return n > 0, nil
}

// CreateMigrationsTable creates the ledger. It is a no-op when the table exists.
func (a *SQLAdapter) CreateMigrationsTable(ctx context.Context, table string) error {
	if err := ValidateTableName(table); err != nil {
		return err
	}
	c, err := a.conn()
	if err != nil {
		return err
	}
	q := a.dialect.LedgerDDL(table)
	a.logger.Debug("ensuring ledger table", "table", table, "sql", q)
	if _, err := c.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("failed to create ledger table %s: %w", table, err)
	}
	a.logger.Info("ledger table ensured", "table", table)
	return nil
}

// GetAppliedMigrations returns ledger rows ordered by timestamp, then name.
func (a *SQLAdapter) GetAppliedMigrations(ctx context.Context, table string) ([]migration.Status, error) {
	if err := ValidateTableName(table); err != nil {
		return nil, err
	}
	c, err := a.conn()
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf("SELECT name, version, timestamp, applied_at, checksum FROM %s ORDER BY timestamp ASC, name ASC", table)
	rows, err := c.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	var out []migration.Status
	for rows.Next() {
		var (
			s         migration.Status
			appliedAt any
		)
		if err := rows.Scan(&s.Name, &s.Version, &s.Timestamp, &appliedAt, &s.Checksum); err != nil {
			return nil, fmt.Errorf("failed to scan ledger row: %w", err)
		}
		t, err := ParseStoredTime(appliedAt)
		if err != nil {
			return nil, fmt.Errorf("ledger row %s: %w", s.Name, err)
		}
		s.Applied = true
		s.AppliedAt = &t
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger rows: %w", err)
	}
	return out, nil
}

func (a *SQLAdapter) placeholders(n int) string {
	ps := make([]string, n)
	for i := range ps {
		ps[i] = a.dialect.Placeholder(i + 1)
	}
	return strings.Join(ps, ", ")
}

// MarkMigrationApplied inserts a ledger row. A nil AppliedAt means now.
func (a *SQLAdapter) MarkMigrationApplied(ctx context.Context, s migration.Status, table string) error {
	if err := ValidateTableName(table); err != nil {
		return err
	}
	c, err := a.conn()
	if err != nil {
		return err
	}
	at := a.now().UTC()
	if s.AppliedAt != nil {
		at = s.AppliedAt.UTC()
	}
	q := fmt.Sprintf("INSERT INTO %s (name, version, timestamp, applied_at, checksum) VALUES (%s)", table, a.placeholders(5))
	if _, err := c.ExecContext(ctx, q, s.Name, s.Version, s.Timestamp, a.dialect.TimeToStorage(at), s.Checksum); err != nil {
		return fmt.Errorf("failed to record migration %s: %w", s.Name, err)
	}
	a.logger.Debug("ledger row inserted", "migration", s.Name, "table", table)
	return nil
}

// MarkMigrationRolledBack deletes the ledger row for s.Name.
func (a *SQLAdapter) MarkMigrationRolledBack(ctx context.Context, s migration.Status, table string) error {
	if err := ValidateTableName(table); err != nil {
		return err
	}
	c, err := a.conn()
	if err != nil {
		return err
	}
	q := fmt.Sprintf("DELETE FROM %s WHERE name = %s", table, a.dialect.Placeholder(1))
	if _, err := c.ExecContext(ctx, q, s.Name); err != nil {
		return fmt.Errorf("failed to remove migration %s from ledger: %w", s.Name, err)
	}
	a.logger.Debug("ledger row deleted", "migration", s.Name, "table", table)
	return nil
}

var _ Adapter = (*SQLAdapter)(nil)
