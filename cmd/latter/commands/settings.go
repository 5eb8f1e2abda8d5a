// Package commands holds the latter CLI subcommands.
//
// Every command resolves its settings in the same order: command-line flag,
// LATTER_* environment variable, config file, built-in default.
package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/loykin/latter"
	"github.com/loykin/latter/cmd/latter/config"
	"github.com/loykin/latter/internal/constants"
	"github.com/loykin/latter/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Viper keys shared by all commands. Flags bind to these in main.
const (
	KeyConfig          = "config"
	KeyDatabaseURL     = "database_url"
	KeyDir             = "dir"
	KeyTable           = "table"
	KeyDryRun          = "dry_run"
	KeyForceSync       = "force_sync"
	KeySkipOutOfSync   = "skip_out_of_sync"
	KeyVerifyChecksums = "verify_checksums"
	KeyLogLevel        = "log_level"
	KeyJWTSecret       = "jwt_secret"
)

type settings struct {
	doc    *config.ConfigDoc
	logger *latter.Logger
	url    string
	opts   latter.Options
}

func loadSettings() (*settings, error) {
	v := viper.GetViper()

	doc := &config.ConfigDoc{}
	if path, ok := util.TrimEmptyCheck(v.GetString(KeyConfig)); ok {
		if err := doc.Load(path); err != nil {
			return nil, err
		}
	}
	if lvl, ok := util.TrimEmptyCheck(v.GetString(KeyLogLevel)); ok {
		doc.Logging.Level = lvl
	}
	logger, err := doc.SetupLogging()
	if err != nil {
		return nil, err
	}

	s := &settings{
		doc:    doc,
		logger: logger,
		url:    v.GetString(KeyDatabaseURL),
		opts: latter.Options{
			MigrationsDir:   util.FirstNonEmpty(v.GetString(KeyDir), doc.MigrationsDir, constants.DefaultMigrationsDir),
			TableName:       util.FirstNonEmpty(v.GetString(KeyTable), doc.TableName),
			DryRun:          v.GetBool(KeyDryRun) || doc.DryRun,
			ForceSync:       v.GetBool(KeyForceSync) || doc.Sync.Force,
			SkipOutOfSync:   v.GetBool(KeySkipOutOfSync) || doc.Sync.Skip,
			VerifyChecksums: v.GetBool(KeyVerifyChecksums) || doc.VerifyChecksums,
			Logger:          logger,
			ConnectRetry:    doc.Database.ConnectRetry(),
		},
	}
	return s, nil
}

func (s *settings) adapter(retry *latter.RetryConfig) (latter.Adapter, error) {
	a, err := s.doc.Database.Adapter(s.url,
		latter.WithAdapterLogger(s.logger),
		latter.WithAdapterRetry(retry))
	if err != nil {
		return nil, err
	}
	s.logger.Debug("using database", "database", s.doc.Database.Describe(s.url), "driver", a.Driver())
	return a, nil
}

func (s *settings) open() (*latter.Latter, error) {
	a, err := s.adapter(s.opts.ConnectRetry)
	if err != nil {
		return nil, err
	}
	opts := s.opts
	opts.Adapter = a
	return latter.New(opts)
}

// withLatter opens the orchestrator, runs fn and closes it.
func withLatter(cmd *cobra.Command, fn func(ctx context.Context, s *settings, l *latter.Latter) error) error {
	s, err := loadSettings()
	if err != nil {
		return err
	}
	l, err := s.open()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := l.Close(); cerr != nil {
			s.logger.Warn("failed to close database", "error", cerr)
		}
	}()
	return fn(contextOf(cmd), s, l)
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func printNames(w io.Writer, verb string, names []string, dryRun bool) {
	if len(names) == 0 {
		_, _ = fmt.Fprintf(w, "nothing to %s\n", verb)
		return
	}
	prefix := ""
	if dryRun {
		prefix = "would "
	}
	for _, n := range names {
		_, _ = fmt.Fprintf(w, "%s%s %s\n", prefix, verb, n)
	}
}
