// Package status collects the ledger view of a migrations directory and
// renders it for the CLI.
package status

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/loykin/latter"
	"github.com/loykin/latter/internal/common"
)

// Status display constants
const (
	defaultLimit = 10 // Default number of applied migrations to show
	timeLayout   = "2006-01-02 15:04:05"
)

// Info aggregates what `latter status` prints.
type Info struct {
	Migrations []latter.MigrationStatus `json:"migrations"`
	Orphans    []latter.MigrationStatus `json:"orphans,omitempty"`
	Skipped    []latter.Skipped         `json:"skipped,omitempty"`
}

// FromLatter collects status information through an open orchestrator.
func FromLatter(ctx context.Context, l *latter.Latter) (Info, error) {
	r, err := l.Report(ctx)
	if err != nil {
		return Info{}, err
	}
	return Info{Migrations: r.Migrations, Orphans: r.Orphans, Skipped: r.Skipped}, nil
}

// FromOptions opens an orchestrator with opts, collects status, and closes it.
func FromOptions(ctx context.Context, opts latter.Options) (Info, error) {
	l, err := latter.New(opts)
	if err != nil {
		return Info{}, err
	}
	defer func() { _ = l.Close() }()
	return FromLatter(ctx, l)
}

// Applied returns the names of applied migrations in order.
func (i Info) Applied() []string {
	var out []string
	for _, s := range i.Migrations {
		if s.Applied {
			out = append(out, s.Name)
		}
	}
	return out
}

// Pending returns the names of migrations not yet applied.
func (i Info) Pending() []string {
	var out []string
	for _, s := range i.Migrations {
		if !s.Applied {
			out = append(out, s.Name)
		}
	}
	return out
}

// Current is the newest applied migration, or "" when none is.
func (i Info) Current() string {
	applied := i.Applied()
	if len(applied) == 0 {
		return ""
	}
	return applied[len(applied)-1]
}

// JSON renders the info as indented JSON.
func (i Info) JSON() (string, error) {
	b, err := json.MarshalIndent(i, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b) + "\n", nil
}

// FormatHuman returns a human-friendly multiline string for CLI output.
// verbose=false prints the summary only; verbose=true lists every migration.
func (i Info) FormatHuman(verbose bool) string {
	return i.FormatColorized(verbose, false)
}

// FormatColorized is FormatHuman with optional ANSI colors.
func (i Info) FormatColorized(verbose, color bool) string {
	return i.format(verbose, 0, true, color)
}

// FormatHumanWithLimit prints like FormatHuman, but when verbose=true it
// lists the newest applied migrations first, up to limit, followed by every
// pending one. If all=true, limit is ignored. Default limit is 10.
func (i Info) FormatHumanWithLimit(verbose bool, limit int, all bool) string {
	if limit <= 0 {
		limit = defaultLimit
	}
	return i.format(verbose, limit, all, false)
}

func (i Info) format(verbose bool, limit int, all, color bool) string {
	paint := func(c, s string) string {
		if !color {
			return s
		}
		return c + s + common.Reset
	}

	var b strings.Builder
	current := i.Current()
	if current == "" {
		current = "none"
	}
	applied, pending := i.Applied(), i.Pending()
	fmt.Fprintf(&b, "current: %s\n", current)
	fmt.Fprintf(&b, "applied: %d\n", len(applied))
	fmt.Fprintf(&b, "pending: %d\n", len(pending))

	if verbose {
		rows := i.ordered(limit, all)
		if len(rows) > 0 {
			b.WriteString("migrations:\n")
		}
		for _, s := range rows {
			b.WriteString(formatRow(s, paint))
		}
	}

	for _, o := range i.Orphans {
		fmt.Fprintf(&b, "%s %s (applied but no file on disk)\n", paint(common.Red, "orphan"), o.Name)
	}
	for _, s := range i.Skipped {
		fmt.Fprintf(&b, "%s %s: %s\n", paint(common.Yellow, "skipped"), s.File, s.Reason)
	}
	return b.String()
}

// ordered returns applied migrations newest first, limited unless all, then pending.
func (i Info) ordered(limit int, all bool) []latter.MigrationStatus {
	var applied, pending []latter.MigrationStatus
	for idx := len(i.Migrations) - 1; idx >= 0; idx-- {
		if s := i.Migrations[idx]; s.Applied {
			applied = append(applied, s)
		}
	}
	for _, s := range i.Migrations {
		if !s.Applied {
			pending = append(pending, s)
		}
	}
	if !all && limit > 0 && len(applied) > limit {
		applied = applied[:limit]
	}
	return append(applied, pending...)
}

func formatRow(s latter.MigrationStatus, paint func(c, s string) string) string {
	state := paint(common.Yellow, "pending")
	at := "-"
	if s.Applied {
		state = paint(common.Green, "applied")
		if s.AppliedAt != nil {
			at = s.AppliedAt.UTC().Format(timeLayout)
		}
	}
	line := fmt.Sprintf("  %-7s %s v=%s ts=%d at=%s", state, s.Name, s.Version, s.Timestamp, at)
	if s.Modified {
		line += " " + paint(common.Magenta, "(modified since applied)")
	}
	return line + "\n"
}
