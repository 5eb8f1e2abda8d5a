package latter

import (
	"context"
	"fmt"
	"time"

	"github.com/loykin/latter/internal/adapter"
	"github.com/loykin/latter/internal/adapter/factory"
	"github.com/loykin/latter/internal/common"
	"github.com/loykin/latter/internal/constants"
	"github.com/loykin/latter/internal/loader"
	"github.com/loykin/latter/internal/migration"
	"github.com/loykin/latter/internal/runner"
	"github.com/loykin/latter/internal/util"
)

// Options configures a Latter. Either Adapter or ConnectionString must be set;
// an explicit Adapter wins.
type Options struct {
	Adapter          Adapter
	ConnectionString string
	MigrationsDir    string
	TableName        string

	DryRun          bool
	ForceSync       bool
	SkipOutOfSync   bool
	VerifyChecksums bool

	Logger          *Logger
	ScriptEvaluator ScriptEvaluator

	// ConnectRetry retries the first ping when the adapter is built from
	// ConnectionString. Nil means a single attempt.
	ConnectRetry *RetryConfig
	// Clock overrides time.Now for applied_at and file timestamps.
	Clock func() time.Time
}

// MigrationResult is the outcome of Migrate. On failure MigrationsApplied
// holds the names that ran before the error; none of them are committed.
type MigrationResult struct {
	Success           bool
	MigrationsApplied []string
	Err               error
}

// RollbackResult is the outcome of Rollback.
type RollbackResult struct {
	Success              bool
	MigrationsRolledBack []string
	Err                  error
}

// StatusReport is Status plus the ledger rows without files and the files
// the loader left out.
type StatusReport struct {
	Migrations []MigrationStatus `json:"migrations"`
	Orphans    []MigrationStatus `json:"orphans,omitempty"`
	Skipped    []Skipped         `json:"skipped,omitempty"`
}

// Pending returns the migrations not yet in the ledger.
func (r StatusReport) Pending() []MigrationStatus {
	var out []MigrationStatus
	for _, s := range r.Migrations {
		if !s.Applied {
			out = append(out, s)
		}
	}
	return out
}

// Latter coordinates the loader, the runner and one adapter. It is not safe
// for concurrent use.
type Latter struct {
	adapter Adapter
	dir     string
	table   string
	opts    Options
	loader  *loader.Loader
	runner  *runner.Runner
	logger  *common.Logger
	now     func() time.Time
}

// New builds a Latter without touching the database.
func New(opts Options) (*Latter, error) {
	logger := common.OrDefault(opts.Logger)

	table := util.TrimWithDefault(opts.TableName, constants.DefaultSchemaMigrationsTable)
	if err := adapter.ValidateTableName(table); err != nil {
		return nil, err
	}

	a := opts.Adapter
	if a == nil {
		if _, ok := util.TrimEmptyCheck(opts.ConnectionString); !ok {
			return nil, ErrNoAdapter
		}
		built, err := factory.New(opts.ConnectionString, adapter.WithLogger(logger), adapter.WithRetry(opts.ConnectRetry))
		if err != nil {
			return nil, err
		}
		a = built
	}

	now := opts.Clock
	if now == nil {
		now = time.Now
	}

	l := &Latter{
		adapter: a,
		dir:     util.TrimWithDefault(opts.MigrationsDir, constants.DefaultMigrationsDir),
		table:   table,
		opts:    opts,
		logger:  logger.WithComponent("latter").WithStore(a.Driver()).WithTable(table),
		now:     now,
	}
	l.loader = loader.New(
		loader.WithLogger(logger),
		loader.WithScriptEvaluator(opts.ScriptEvaluator),
		loader.WithClock(opts.Clock),
	)
	l.runner = runner.New(a, table, runner.WithLogger(logger), runner.WithClock(opts.Clock))
	return l, nil
}

// Open is New with a connection string.
func Open(connString string, opts Options) (*Latter, error) {
	opts.ConnectionString = connString
	return New(opts)
}

// Adapter returns the adapter in use.
func (l *Latter) Adapter() Adapter { return l.adapter }

// TableName returns the ledger table.
func (l *Latter) TableName() string { return l.table }

// MigrationsDir returns the directory migrations are loaded from.
func (l *Latter) MigrationsDir() string { return l.dir }

// Initialize connects and creates the ledger table when missing. It is
// called by every other operation. In dry-run mode the table is never
// created.
func (l *Latter) Initialize(ctx context.Context) error {
	_, err := l.initialize(ctx)
	return err
}

// initialize reports whether the ledger table exists once it returns.
func (l *Latter) initialize(ctx context.Context) (bool, error) {
	if err := l.adapter.Connect(ctx); err != nil {
		return false, fmt.Errorf("initialize: %w", err)
	}
	exists, err := l.adapter.TableExists(ctx, l.table)
	if err != nil {
		return false, fmt.Errorf("initialize: %w", err)
	}
	if exists {
		return true, nil
	}
	if l.opts.DryRun {
		l.logger.Info("dry run: would create migrations table")
		return false, nil
	}
	if err := l.adapter.CreateMigrationsTable(ctx, l.table); err != nil {
		return false, fmt.Errorf("initialize: %w", err)
	}
	l.logger.Info("created migrations table")
	return true, nil
}

// state is what every operation reads before acting.
type state struct {
	loaded  []*migration.Migration
	skipped []loader.Skipped
	applied []migration.Status
}

func (l *Latter) read(ctx context.Context) (state, error) {
	var st state
	exists, err := l.initialize(ctx)
	if err != nil {
		return st, err
	}
	loaded, skipped, err := l.loader.LoadWithReport(ctx, l.dir)
	if err != nil {
		return st, err
	}
	var applied []migration.Status
	if exists {
		applied, err = l.adapter.GetAppliedMigrations(ctx, l.table)
		if err != nil {
			return st, fmt.Errorf("read ledger: %w", err)
		}
	}
	migration.SortStatuses(applied)
	st.loaded, st.skipped, st.applied = loaded, skipped, applied
	return st, nil
}

// Migrate applies every pending migration in one transaction. It never
// returns a Go error; failures are reported in MigrationResult.Err.
func (l *Latter) Migrate(ctx context.Context) MigrationResult {
	fail := func(err error) MigrationResult {
		l.logger.Error("migrate failed", "error", err)
		return MigrationResult{Success: false, MigrationsApplied: []string{}, Err: err}
	}

	st, err := l.read(ctx)
	if err != nil {
		return fail(err)
	}
	if _, err := l.handleOutOfSyncMigrations(ctx, st.loaded, st.applied); err != nil {
		return fail(err)
	}

	ledger := byName(st.applied)
	if err := l.compareChecksums(st.loaded, ledger); err != nil {
		return fail(err)
	}

	var pending []*migration.Migration
	for _, m := range st.loaded {
		if _, ok := ledger[m.Name()]; !ok {
			pending = append(pending, m)
		}
	}
	if len(pending) == 0 {
		l.logger.Info("database is up to date", "loaded", len(st.loaded))
		return MigrationResult{Success: true, MigrationsApplied: []string{}}
	}

	l.logger.Info("applying migrations", "pending", len(pending), "dry_run", l.opts.DryRun)
	res := l.runner.Run(ctx, pending, l.opts.DryRun)
	return MigrationResult{Success: res.Success, MigrationsApplied: res.Applied, Err: res.Err}
}

// Rollback reverts the most recently applied steps migrations, newest
// first. steps below 1 is treated as 1.
func (l *Latter) Rollback(ctx context.Context, steps int) RollbackResult {
	fail := func(err error) RollbackResult {
		l.logger.Error("rollback failed", "error", err)
		return RollbackResult{Success: false, MigrationsRolledBack: []string{}, Err: err}
	}
	if steps < 1 {
		steps = 1
	}

	st, err := l.read(ctx)
	if err != nil {
		return fail(err)
	}
	if len(st.applied) == 0 {
		l.logger.Info("nothing to roll back")
		return RollbackResult{Success: true, MigrationsRolledBack: []string{}}
	}

	migration.SortStatusesDesc(st.applied)
	if steps > len(st.applied) {
		steps = len(st.applied)
	}

	files := make(map[string]*migration.Migration, len(st.loaded))
	for _, m := range st.loaded {
		files[m.Name()] = m
	}
	targets := make([]*migration.Migration, 0, steps)
	for _, s := range st.applied[:steps] {
		m, ok := files[s.Name]
		if !ok {
			return fail(fmt.Errorf("%w: %s", migration.ErrMissingDefinition, s.Name))
		}
		targets = append(targets, m)
	}

	l.logger.Info("rolling back migrations", "steps", steps, "dry_run", l.opts.DryRun)
	res := l.runner.Rollback(ctx, targets, l.opts.DryRun)
	return RollbackResult{Success: res.Success, MigrationsRolledBack: res.RolledBack, Err: res.Err}
}

// Status lists every loaded migration with its ledger state, ordered by
// timestamp. Drift between the ledger and the files is only logged.
func (l *Latter) Status(ctx context.Context) ([]MigrationStatus, error) {
	report, err := l.Report(ctx)
	if err != nil {
		return nil, err
	}
	return report.Migrations, nil
}

// Report is Status with the orphaned ledger rows and skipped files.
func (l *Latter) Report(ctx context.Context) (StatusReport, error) {
	st, err := l.read(ctx)
	if err != nil {
		return StatusReport{}, err
	}
	orphans, err := l.handleOutOfSyncMigrations(ctx, st.loaded, st.applied)
	if err != nil {
		l.logger.Warn("migrations out of sync", "error", err)
	}

	ledger := byName(st.applied)
	report := StatusReport{
		Migrations: make([]MigrationStatus, 0, len(st.loaded)),
		Orphans:    orphans,
		Skipped:    st.skipped,
	}
	for _, m := range st.loaded {
		row, ok := ledger[m.Name()]
		if !ok {
			report.Migrations = append(report.Migrations, m.ToStatus(false, nil))
			continue
		}
		s := m.ToStatus(true, row.AppliedAt)
		s.Modified = row.Checksum != "" && row.Checksum != s.Checksum
		report.Migrations = append(report.Migrations, s)
	}
	return report, nil
}

// MarkAsApplied records name in the ledger without running its up body.
func (l *Latter) MarkAsApplied(ctx context.Context, name string) error {
	st, err := l.read(ctx)
	if err != nil {
		return err
	}

	var target *migration.Migration
	for _, m := range st.loaded {
		if m.Name() == name {
			target = m
			break
		}
	}
	if target == nil {
		return fmt.Errorf("%w: %s", migration.ErrMigrationNotFound, name)
	}

	log := l.logger.WithMigration(name)
	if _, ok := byName(st.applied)[name]; ok {
		log.Info("migration already applied")
		return nil
	}
	if l.opts.DryRun {
		log.Info("dry run: would mark migration as applied")
		return nil
	}

	at := l.now()
	if err := l.adapter.MarkMigrationApplied(ctx, target.ToStatus(true, &at), l.table); err != nil {
		return fmt.Errorf("mark %s applied: %w", name, err)
	}
	log.Info("marked migration as applied")
	return nil
}

// Close disconnects the adapter. It is safe to call when never connected.
func (l *Latter) Close() error {
	return l.adapter.Disconnect()
}

// handleOutOfSyncMigrations finds ledger rows whose file is gone and either
// deletes them (ForceSync), ignores them (SkipOutOfSync) or fails. It returns
// the orphans still in the ledger afterwards.
func (l *Latter) handleOutOfSyncMigrations(ctx context.Context, loaded []*migration.Migration, applied []migration.Status) ([]migration.Status, error) {
	known := make(map[string]struct{}, len(loaded))
	for _, m := range loaded {
		known[m.Name()] = struct{}{}
	}
	var orphans []migration.Status
	for _, s := range applied {
		if _, ok := known[s.Name]; !ok {
			orphans = append(orphans, s)
		}
	}
	if len(orphans) == 0 {
		return nil, nil
	}

	switch {
	case l.opts.ForceSync:
		var remaining []migration.Status
		for _, s := range orphans {
			log := l.logger.WithMigration(s.Name)
			if l.opts.DryRun {
				log.Info("dry run: would remove orphaned ledger entry")
				remaining = append(remaining, s)
				continue
			}
			if err := l.adapter.MarkMigrationRolledBack(ctx, s, l.table); err != nil {
				log.Warn("failed to remove orphaned ledger entry", "error", err)
				remaining = append(remaining, s)
				continue
			}
			log.Info("removed orphaned ledger entry")
		}
		return remaining, nil
	case l.opts.SkipOutOfSync:
		for _, s := range orphans {
			l.logger.Warn("ignoring ledger entry without migration file", "migration", s.Name)
		}
		return orphans, nil
	default:
		names := make([]string, len(orphans))
		for i, s := range orphans {
			names[i] = s.Name
		}
		return orphans, &migration.OutOfSyncError{Orphans: names}
	}
}

func (l *Latter) compareChecksums(loaded []*migration.Migration, ledger map[string]migration.Status) error {
	for _, m := range loaded {
		row, ok := ledger[m.Name()]
		if !ok || row.Checksum == "" || row.Checksum == m.Checksum() {
			continue
		}
		if l.opts.VerifyChecksums {
			return &migration.ChecksumMismatchError{Name: m.Name(), Stored: row.Checksum, Computed: m.Checksum()}
		}
		l.logger.Warn("applied migration has changed since it ran",
			"migration", m.Name(), "stored", row.Checksum, "computed", m.Checksum())
	}
	return nil
}

func byName(ss []migration.Status) map[string]migration.Status {
	out := make(map[string]migration.Status, len(ss))
	for _, s := range ss {
		out[s.Name] = s
	}
	return out
}
