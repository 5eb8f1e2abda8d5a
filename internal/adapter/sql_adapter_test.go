package adapter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/loykin/latter/internal/common"
	"github.com/loykin/latter/internal/migration"
)

type testDialect struct{}

func (testDialect) Name() string                 { return "test" }
func (testDialect) DriverName() string           { return "sqlmock" }
func (testDialect) Placeholder(i int) string     { return fmt.Sprintf("$%d", i) }
func (testDialect) Open(string) (*sql.DB, error) { return nil, errors.New("not used") }
func (testDialect) LedgerDDL(table string) string {
	return "CREATE TABLE IF NOT EXISTS " + table + " (name TEXT)"
}
func (testDialect) TableExistsQuery(table string) (string, []any) {
	return "SELECT COUNT(*) FROM catalog WHERE name = $1", []any{table}
}
func (testDialect) TimeToStorage(t time.Time) any { return t.Format(time.RFC3339Nano) }

func newMockAdapter(t *testing.T) (*SQLAdapter, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewWithDB(testDialect{}, db, WithLogger(common.NewNopLogger())), mock
}

func TestSQLAdapter_NotConnected(t *testing.T) {
	ctx := context.Background()
	a := New(testDialect{}, "dsn", WithLogger(common.NewNopLogger()))

	if _, err := a.Execute(ctx, "SELECT 1"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Execute: expected ErrNotConnected, got %v", err)
	}
	if _, err := a.Query(ctx, "SELECT 1"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Query: expected ErrNotConnected, got %v", err)
	}
	if err := a.BeginTransaction(ctx); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Begin: expected ErrNotConnected, got %v", err)
	}
	if _, err := a.TableExists(ctx, "ledger"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("TableExists: expected ErrNotConnected, got %v", err)
	}
	if err := a.CreateMigrationsTable(ctx, "ledger"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("CreateMigrationsTable: expected ErrNotConnected, got %v", err)
	}
	if _, err := a.GetAppliedMigrations(ctx, "ledger"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("GetAppliedMigrations: expected ErrNotConnected, got %v", err)
	}
	if err := a.MarkMigrationApplied(ctx, migration.Status{Name: "a"}, "ledger"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("MarkMigrationApplied: expected ErrNotConnected, got %v", err)
	}
	if err := a.MarkMigrationRolledBack(ctx, migration.Status{Name: "a"}, "ledger"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("MarkMigrationRolledBack: expected ErrNotConnected, got %v", err)
	}
	if err := a.Disconnect(); err != nil {
		t.Errorf("Disconnect before Connect should be a no-op, got %v", err)
	}
}

func TestSQLAdapter_ConnectRequiresDSN(t *testing.T) {
	a := New(testDialect{}, "  ", WithLogger(common.NewNopLogger()))
	if err := a.Connect(context.Background()); !errors.Is(err, ErrInvalidConnection) {
		t.Fatalf("expected ErrInvalidConnection, got %v", err)
	}
}

func TestSQLAdapter_TransactionRouting(t *testing.T) {
	ctx := context.Background()
	a, mock := newMockAdapter(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE users (id INT)")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO ledger (name, version, timestamp, applied_at, checksum) VALUES ($1, $2, $3, $4, $5)")).
		WithArgs("001_users", "abcd1234", int64(100), "2024-01-02T03:04:05Z", "sum").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	if err := a.BeginTransaction(ctx); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if !a.InTransaction() {
		t.Fatalf("expected open transaction")
	}
	if err := a.BeginTransaction(ctx); !errors.Is(err, ErrTransactionActive) {
		t.Fatalf("nested begin: expected ErrTransactionActive, got %v", err)
	}
	if _, err := a.Execute(ctx, "CREATE TABLE users (id INT)"); err != nil {
		t.Fatalf("execute: %v", err)
	}
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	status := migration.Status{Name: "001_users", Version: "abcd1234", Timestamp: 100, Checksum: "sum", AppliedAt: &at}
	if err := a.MarkMigrationApplied(ctx, status, "ledger"); err != nil {
		t.Fatalf("mark applied: %v", err)
	}
	if err := a.CommitTransaction(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := a.CommitTransaction(); !errors.Is(err, ErrNoTransaction) {
		t.Fatalf("second commit: expected ErrNoTransaction, got %v", err)
	}
	if err := a.RollbackTransaction(); !errors.Is(err, ErrNoTransaction) {
		t.Fatalf("rollback without tx: expected ErrNoTransaction, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSQLAdapter_RollbackTransaction(t *testing.T) {
	ctx := context.Background()
	a, mock := newMockAdapter(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM ledger WHERE name = $1")).WithArgs("a").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	if err := a.BeginTransaction(ctx); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := a.MarkMigrationRolledBack(ctx, migration.Status{Name: "a"}, "ledger"); err != nil {
		t.Fatalf("mark rolled back: %v", err)
	}
	if err := a.RollbackTransaction(); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if a.InTransaction() {
		t.Fatalf("transaction should be cleared")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSQLAdapter_TableExists(t *testing.T) {
	ctx := context.Background()
	a, mock := newMockAdapter(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM catalog WHERE name = $1")).WithArgs("ledger").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM catalog WHERE name = $1")).WithArgs("other").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	if ok, err := a.TableExists(ctx, "ledger"); err != nil || !ok {
		t.Fatalf("expected ledger to exist, got %v, %v", ok, err)
	}
	if ok, err := a.TableExists(ctx, "other"); err != nil || ok {
		t.Fatalf("expected other to be missing, got %v, %v", ok, err)
	}
	if _, err := a.TableExists(ctx, "bad; DROP TABLE x"); !errors.Is(err, ErrInvalidTableName) {
		t.Fatalf("expected ErrInvalidTableName, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSQLAdapter_CreateMigrationsTable(t *testing.T) {
	a, mock := newMockAdapter(t)
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS ledger (name TEXT)")).WillReturnResult(sqlmock.NewResult(0, 0))
	if err := a.CreateMigrationsTable(context.Background(), "ledger"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSQLAdapter_GetAppliedMigrations(t *testing.T) {
	a, mock := newMockAdapter(t)
	cols := []string{"name", "version", "timestamp", "applied_at", "checksum"}
	at := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT name, version, timestamp, applied_at, checksum FROM ledger ORDER BY timestamp ASC, name ASC")).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("a", "v1", int64(100), "2024-05-06T07:08:09Z", "c1").
			AddRow("b", "v2", int64(200), at, "c2"))

	got, err := a.GetAppliedMigrations(context.Background(), "ledger")
	if err != nil {
		t.Fatalf("get applied: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(got))
	}
	for _, s := range got {
		if !s.Applied || s.AppliedAt == nil || !s.AppliedAt.Equal(at) {
			t.Errorf("unexpected row %+v", s)
		}
	}
	if got[0].Name != "a" || got[0].Timestamp != 100 || got[1].Checksum != "c2" {
		t.Errorf("unexpected rows %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSQLAdapter_GetAppliedMigrations_BadTime(t *testing.T) {
	a, mock := newMockAdapter(t)
	mock.ExpectQuery("SELECT name, version").
		WillReturnRows(sqlmock.NewRows([]string{"name", "version", "timestamp", "applied_at", "checksum"}).
			AddRow("a", "v1", int64(100), "yesterday", "c1"))
	if _, err := a.GetAppliedMigrations(context.Background(), "ledger"); err == nil {
		t.Fatalf("expected error for unparsable applied_at")
	}
}

func TestSQLAdapter_QueryMaterializesRows(t *testing.T) {
	a, mock := newMockAdapter(t)
	mock.ExpectQuery("SELECT id, label FROM t").
		WillReturnRows(sqlmock.NewRows([]string{"id", "label"}).AddRow(int64(1), []byte("one")).AddRow(int64(2), "two"))

	rows, err := a.Query(context.Background(), "SELECT id, label FROM t")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(rows) != 2 || rows[0]["label"] != "one" || rows[1]["id"] != int64(2) {
		t.Fatalf("unexpected rows %+v", rows)
	}
}

func TestSQLAdapter_DisconnectLeavesBorrowedPoolOpen(t *testing.T) {
	a, mock := newMockAdapter(t)
	mock.ExpectBegin()
	mock.ExpectRollback()
	if err := a.BeginTransaction(context.Background()); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := a.Disconnect(); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	if a.DB() != nil || a.InTransaction() {
		t.Fatalf("adapter should forget pool and transaction")
	}
	if _, err := a.Execute(context.Background(), "SELECT 1"); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected after disconnect, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestValidateTableName(t *testing.T) {
	for _, ok := range []string{"schema_migrations", "public.schema_migrations", "_t1"} {
		if err := ValidateTableName(ok); err != nil {
			t.Errorf("%q should be valid: %v", ok, err)
		}
	}
	for _, bad := range []string{"", "1abc", "a.b.c", "t-1", "t; drop"} {
		if err := ValidateTableName(bad); err == nil {
			t.Errorf("%q should be rejected", bad)
		}
	}
}

func TestParseStoredTime(t *testing.T) {
	want := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	inputs := []any{want, "2024-01-02T03:04:05Z", []byte("2024-01-02 03:04:05"), want.UnixMilli()}
	for _, in := range inputs {
		got, err := ParseStoredTime(in)
		if err != nil || !got.Equal(want) {
			t.Errorf("ParseStoredTime(%v) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseStoredTime(nil); err == nil {
		t.Errorf("nil should fail")
	}
	if _, err := ParseStoredTime(3.5); err == nil {
		t.Errorf("float should fail")
	}
}

func TestSplitQualified(t *testing.T) {
	if s, n := SplitQualified("public.ledger"); s != "public" || n != "ledger" {
		t.Fatalf("got %q %q", s, n)
	}
	if s, n := SplitQualified("ledger"); s != "" || n != "ledger" {
		t.Fatalf("got %q %q", s, n)
	}
}
