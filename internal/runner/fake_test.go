package runner

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/loykin/latter/internal/adapter"
	"github.com/loykin/latter/internal/migration"
)

// fakeAdapter records calls and fails on demand.
type fakeAdapter struct {
	calls        []string
	inTx         bool
	failExecOn   string // fail Execute when the SQL contains this text
	failBegin    bool
	failCommit   bool
	failRollback bool
	failMarkOn   string
	ledger       map[string]migration.Status
}

func newFake() *fakeAdapter {
	return &fakeAdapter{ledger: map[string]migration.Status{}}
}

func (f *fakeAdapter) record(s string) { f.calls = append(f.calls, s) }

func (f *fakeAdapter) Connect(context.Context) error { f.record("connect"); return nil }
func (f *fakeAdapter) Disconnect() error             { f.record("disconnect"); return nil }
func (f *fakeAdapter) Driver() string                { return "fake" }

func (f *fakeAdapter) Execute(_ context.Context, q string, _ ...any) (sql.Result, error) {
	f.record("exec:" + q)
	if f.failExecOn != "" && strings.Contains(q, f.failExecOn) {
		return nil, errors.New("syntax error near " + f.failExecOn)
	}
	return nil, nil
}

func (f *fakeAdapter) Query(context.Context, string, ...any) ([]adapter.Row, error) {
	return nil, nil
}

func (f *fakeAdapter) BeginTransaction(context.Context) error {
	f.record("begin")
	if f.failBegin {
		return errors.New("begin refused")
	}
	f.inTx = true
	return nil
}

func (f *fakeAdapter) CommitTransaction() error {
	f.record("commit")
	f.inTx = false
	if f.failCommit {
		return errors.New("commit refused")
	}
	return nil
}

func (f *fakeAdapter) RollbackTransaction() error {
	f.record("rollback")
	if !f.inTx {
		return adapter.ErrNoTransaction
	}
	f.inTx = false
	if f.failRollback {
		return errors.New("rollback refused")
	}
	return nil
}

func (f *fakeAdapter) TableExists(context.Context, string) (bool, error)   { return true, nil }
func (f *fakeAdapter) CreateMigrationsTable(context.Context, string) error { return nil }

func (f *fakeAdapter) GetAppliedMigrations(context.Context, string) ([]migration.Status, error) {
	var out []migration.Status
	for _, s := range f.ledger {
		out = append(out, s)
	}
	migration.SortStatuses(out)
	return out, nil
}

func (f *fakeAdapter) MarkMigrationApplied(_ context.Context, s migration.Status, _ string) error {
	f.record("mark:" + s.Name)
	if f.failMarkOn == s.Name {
		return errors.New("unique constraint violated")
	}
	f.ledger[s.Name] = s
	return nil
}

func (f *fakeAdapter) MarkMigrationRolledBack(_ context.Context, s migration.Status, _ string) error {
	f.record("unmark:" + s.Name)
	delete(f.ledger, s.Name)
	return nil
}

var _ adapter.Adapter = (*fakeAdapter)(nil)
