package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/loykin/latter/internal/adapter"
	"github.com/loykin/latter/internal/common"
	"github.com/loykin/latter/internal/migration"
)

func TestConfig_ToDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"empty is memory", Config{}, ":memory:"},
		{"explicit memory", Config{Path: ":memory:"}, ":memory:"},
		{"path", Config{Path: "/tmp/app.db"}, "file:/tmp/app.db?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"},
		{"file uri kept", Config{Path: "file:x.db?mode=ro"}, "file:x.db?mode=ro"},
		{"dsn wins", Config{DSN: "custom", Path: "/tmp/app.db"}, "custom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.ToDSN(); got != tt.want {
				t.Errorf("ToDSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsMemory(t *testing.T) {
	if !IsMemory(":memory:") || !IsMemory("file::memory:?cache=shared") || !IsMemory("file:x?mode=memory") {
		t.Fatalf("memory DSNs not recognized")
	}
	if IsMemory("file:/tmp/x.db") {
		t.Fatalf("file DSN reported as memory")
	}
}

func TestDialect(t *testing.T) {
	d := NewDialect()
	if d.Placeholder(3) != "?" || d.DriverName() != "sqlite" || d.Name() != "sqlite" {
		t.Fatalf("unexpected dialect basics")
	}
	at := time.Date(2024, 1, 2, 3, 4, 5, 6, time.FixedZone("x", 3600))
	if got := d.TimeToStorage(at); got != "2024-01-02T02:04:05.000000006Z" {
		t.Fatalf("TimeToStorage = %v", got)
	}
}

func openTemp(t *testing.T) *adapter.SQLAdapter {
	t.Helper()
	a := New(Config{Path: filepath.Join(t.TempDir(), "ledger.db")}, adapter.WithLogger(common.NewNopLogger()))
	if err := a.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = a.Disconnect() })
	return a
}

func TestSQLiteAdapter_LedgerLifecycle(t *testing.T) {
	ctx := context.Background()
	a := openTemp(t)
	const table = "schema_migrations"

	if ok, err := a.TableExists(ctx, table); err != nil || ok {
		t.Fatalf("fresh database should have no ledger: %v %v", ok, err)
	}
	for i := 0; i < 2; i++ {
		if err := a.CreateMigrationsTable(ctx, table); err != nil {
			t.Fatalf("create #%d: %v", i, err)
		}
	}
	if ok, err := a.TableExists(ctx, table); err != nil || !ok {
		t.Fatalf("ledger should exist: %v %v", ok, err)
	}

	at := time.Date(2024, 3, 4, 5, 6, 7, 8000, time.UTC)
	b := migration.New("b", "CREATE TABLE b(id int)", "DROP TABLE b", migration.WithTimestamp(200))
	c := migration.New("a", "CREATE TABLE a(id int)", "DROP TABLE a", migration.WithTimestamp(100))
	for _, m := range []*migration.Migration{b, c} {
		if err := a.MarkMigrationApplied(ctx, m.ToStatus(true, &at), table); err != nil {
			t.Fatalf("mark %s: %v", m.Name(), err)
		}
	}
	if err := a.MarkMigrationApplied(ctx, b.ToStatus(true, &at), table); err == nil {
		t.Fatalf("duplicate name must violate the unique constraint")
	}

	applied, err := a.GetAppliedMigrations(ctx, table)
	if err != nil {
		t.Fatalf("get applied: %v", err)
	}
	if len(applied) != 2 || applied[0].Name != "a" || applied[1].Name != "b" {
		t.Fatalf("unexpected ledger %+v", applied)
	}
	if !applied[0].AppliedAt.Equal(at) || applied[0].Checksum != c.Checksum() || applied[0].Version != c.Version() {
		t.Fatalf("row did not round trip: %+v", applied[0])
	}

	if err := a.MarkMigrationRolledBack(ctx, b.ToStatus(true, nil), table); err != nil {
		t.Fatalf("rollback mark: %v", err)
	}
	applied, _ = a.GetAppliedMigrations(ctx, table)
	if len(applied) != 1 || applied[0].Name != "a" {
		t.Fatalf("unexpected ledger after delete %+v", applied)
	}
}

func TestSQLiteAdapter_TransactionRollbackDiscardsWork(t *testing.T) {
	ctx := context.Background()
	a := openTemp(t)
	if err := a.CreateMigrationsTable(ctx, "ledger"); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := a.BeginTransaction(ctx); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := a.Execute(ctx, "CREATE TABLE widgets (id INTEGER PRIMARY KEY); INSERT INTO widgets (id) VALUES (1);"); err != nil {
		t.Fatalf("multi statement exec: %v", err)
	}
	m := migration.New("w", "x", "y", migration.WithTimestamp(1))
	if err := a.MarkMigrationApplied(ctx, m.ToStatus(true, nil), "ledger"); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if err := a.RollbackTransaction(); err != nil {
		t.Fatalf("rollback: %v", err)
	}

	if ok, _ := a.TableExists(ctx, "widgets"); ok {
		t.Fatalf("widgets should not survive rollback")
	}
	applied, err := a.GetAppliedMigrations(ctx, "ledger")
	if err != nil || len(applied) != 0 {
		t.Fatalf("ledger should be empty: %+v %v", applied, err)
	}
}

func TestSQLiteAdapter_Query(t *testing.T) {
	ctx := context.Background()
	a := openTemp(t)
	if _, err := a.Execute(ctx, "CREATE TABLE t (id INTEGER, label TEXT)"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := a.Execute(ctx, "INSERT INTO t (id, label) VALUES (?, ?)", 7, "seven"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	rows, err := a.Query(ctx, "SELECT id, label FROM t")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(rows) != 1 || rows[0]["id"] != int64(7) || rows[0]["label"] != "seven" {
		t.Fatalf("unexpected rows %+v", rows)
	}
}

func TestSQLiteAdapter_MemoryAndReconnect(t *testing.T) {
	ctx := context.Background()
	a := New(Config{}, adapter.WithLogger(common.NewNopLogger()))
	if err := a.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := a.Connect(ctx); err != nil {
		t.Fatalf("second connect should be a no-op: %v", err)
	}
	if err := a.CreateMigrationsTable(ctx, "ledger"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if ok, err := a.TableExists(ctx, "ledger"); err != nil || !ok {
		t.Fatalf("in-memory ledger missing: %v %v", ok, err)
	}
	if err := a.Disconnect(); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	if err := a.Disconnect(); err != nil {
		t.Fatalf("second disconnect: %v", err)
	}
}
