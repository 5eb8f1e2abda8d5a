// Package runner applies or reverts an ordered batch of migrations inside a
// single transaction.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/loykin/latter/internal/adapter"
	"github.com/loykin/latter/internal/common"
	"github.com/loykin/latter/internal/migration"
)

// Result describes an apply batch. Applied holds the names that succeeded
// before a failure; on failure none of them are committed.
type Result struct {
	Success bool
	Applied []string
	Err     error
}

// RollbackResult describes a revert batch.
type RollbackResult struct {
	Success    bool
	RolledBack []string
	Err        error
}

// Runner drives one adapter. It keeps no state between calls.
type Runner struct {
	adapter adapter.Adapter
	table   string
	logger  *common.Logger
	now     func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger injects the logger.
func WithLogger(l *common.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock sets the clock used for applied_at.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// New creates a Runner writing ledger rows to table.
func New(a adapter.Adapter, table string, opts ...Option) *Runner {
	r := &Runner{adapter: a, table: table, logger: common.GetLogger(), now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.WithComponent("runner").WithTable(table)
	return r
}

// step is the per-migration work of one direction.
type step func(ctx context.Context, m *migration.Migration) error

// Run applies migrations in the given order.
func (r *Runner) Run(ctx context.Context, migrations []*migration.Migration, dryRun bool) Result {
	done, err := r.batch(ctx, migrations, dryRun, migration.DirectionUp, func(ctx context.Context, m *migration.Migration) error {
		if _, err := r.adapter.Execute(ctx, m.Up()); err != nil {
			return err
		}
		at := r.now()
		return r.adapter.MarkMigrationApplied(ctx, m.ToStatus(true, &at), r.table)
	})
	return Result{Success: err == nil, Applied: done, Err: err}
}

// Rollback reverts migrations strictly in the given order.
func (r *Runner) Rollback(ctx context.Context, migrations []*migration.Migration, dryRun bool) RollbackResult {
	done, err := r.batch(ctx, migrations, dryRun, migration.DirectionDown, func(ctx context.Context, m *migration.Migration) error {
		if _, err := r.adapter.Execute(ctx, m.Down()); err != nil {
			return err
		}
		return r.adapter.MarkMigrationRolledBack(ctx, m.ToStatus(false, nil), r.table)
	})
	return RollbackResult{Success: err == nil, RolledBack: done, Err: err}
}

func (r *Runner) batch(ctx context.Context, migrations []*migration.Migration, dryRun bool, direction string, fn step) ([]string, error) {
	done := make([]string, 0, len(migrations))

	if dryRun {
		for _, m := range migrations {
			r.logger.Info("dry run: would "+verb(direction)+" migration", "migration", m.Name())
			done = append(done, m.Name())
		}
		return done, nil
	}
	if len(migrations) == 0 {
		return done, nil
	}

	if err := r.adapter.BeginTransaction(ctx); err != nil {
		r.logger.Error("failed to begin transaction", "error", err)
		return done, err
	}

	for _, m := range migrations {
		log := r.logger.WithMigration(m.Name())
		if !m.Validate() {
			err := &migration.Error{Name: m.Name(), Direction: direction, Err: migration.ErrInvalidMigration}
			return done, r.abort(err)
		}
		started := time.Now()
		if err := fn(ctx, m); err != nil {
			log.Error("migration failed", "direction", direction, "error", err)
			return done, r.abort(&migration.Error{Name: m.Name(), Direction: direction, Err: err})
		}
		log.Info("migration "+pastTense(direction), "duration", time.Since(started))
		done = append(done, m.Name())
	}

	if err := r.adapter.CommitTransaction(); err != nil {
		r.logger.Error("failed to commit transaction", "error", err)
		// a failed commit leaves nothing applied
		return done, r.abort(fmt.Errorf("commit: %w", err))
	}
	return done, nil
}

// abort rolls the transaction back and returns cause unchanged. A rollback
// failure is only logged.
func (r *Runner) abort(cause error) error {
	if err := r.adapter.RollbackTransaction(); err != nil {
		r.logger.Warn("failed to roll back transaction", "error", err)
	}
	return cause
}

func verb(direction string) string {
	if direction == migration.DirectionDown {
		return "revert"
	}
	return "apply"
}

func pastTense(direction string) string {
	if direction == migration.DirectionDown {
		return "reverted"
	}
	return "applied"
}
