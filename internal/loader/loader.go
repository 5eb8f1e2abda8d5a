// Package loader discovers migration definitions in a directory.
//
// Supported files, all read from the top level of the directory only:
//
//	<base>_up.sql + <base>_down.sql   paired SQL, named <base>
//	*.json                            {"name","up","down","dependencies","timestamp","version"}
//	*.yaml, *.yml                     same fields as JSON
//	*.ts, *.js, *.mjs, *.cjs          script migrations, resolved by a ScriptEvaluator
//
// A file that cannot be parsed is skipped with a warning; only a directory
// that cannot be read fails the whole load.
package loader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/loykin/latter/internal/common"
	"github.com/loykin/latter/internal/constants"
	"github.com/loykin/latter/internal/migration"
)

// ErrDirectoryUnreadable is returned when the migrations directory itself cannot be listed.
var ErrDirectoryUnreadable = errors.New("migrations directory unreadable")

var timestampPrefix = regexp.MustCompile(`^(\d+)_`)

var scriptExtensions = map[string]bool{".ts": true, ".js": true, ".mjs": true, ".cjs": true}

// Skipped records a file left out of the result and why.
type Skipped struct {
	File   string `json:"file"`
	Reason string `json:"reason"`
}

// Descriptor is the parsed content of a single migration file.
type Descriptor struct {
	Name         string   `yaml:"name"`
	Up           string   `yaml:"up"`
	Down         string   `yaml:"down"`
	Version      string   `yaml:"version"`
	Dependencies []string `yaml:"dependencies"`
	Timestamp    *int64   `yaml:"timestamp"`
}

func (d Descriptor) validate() error {
	var missing []string
	if strings.TrimSpace(d.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(d.Up) == "" {
		missing = append(missing, "up")
	}
	if strings.TrimSpace(d.Down) == "" {
		missing = append(missing, "down")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required field(s): %s", strings.Join(missing, ", "))
	}
	return nil
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger injects the logger.
func WithLogger(l *common.Logger) Option {
	return func(ld *Loader) {
		if l != nil {
			ld.logger = l
		}
	}
}

// WithScriptEvaluator replaces the stub used for script files.
func WithScriptEvaluator(e ScriptEvaluator) Option {
	return func(ld *Loader) {
		if e != nil {
			ld.evaluator = e
		}
	}
}

// WithClock sets the clock used when a file has no usable modification time.
func WithClock(now func() time.Time) Option {
	return func(ld *Loader) {
		if now != nil {
			ld.now = now
		}
	}
}

// Loader turns a directory into migrations ordered by timestamp, then name.
type Loader struct {
	logger    *common.Logger
	evaluator ScriptEvaluator
	now       func() time.Time
}

// New creates a Loader. Without options it logs to the default logger and
// uses StubEvaluator for scripts.
func New(opts ...Option) *Loader {
	l := &Loader{
		logger:    common.GetLogger(),
		evaluator: StubEvaluator{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.WithComponent("loader")
	return l
}

// Load returns the migrations found in dir.
func (l *Loader) Load(ctx context.Context, dir string) ([]*migration.Migration, error) {
	ms, _, err := l.LoadWithReport(ctx, dir)
	return ms, err
}

// entry is a classified candidate before parsing.
type entry struct {
	path    string
	base    string
	modTime time.Time
}

// LoadWithReport is Load plus the list of files that were skipped.
func (l *Loader) LoadWithReport(ctx context.Context, dir string) ([]*migration.Migration, []Skipped, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %w", ErrDirectoryUnreadable, dir, err)
	}

	files := make(map[string]entry, len(dirEntries))
	var order []string
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		path := filepath.Join(dir, de.Name())
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		files[de.Name()] = entry{path: path, modTime: info.ModTime()}
		order = append(order, de.Name())
	}

	var (
		result  []*migration.Migration
		skipped []Skipped
		seen    = map[string]string{}
	)
	skip := func(file, reason string) {
		l.logger.Warn("skipping migration file", "file", file, "reason", reason)
		skipped = append(skipped, Skipped{File: file, Reason: reason})
	}
	add := func(file string, d Descriptor, e entry) {
		if prev, dup := seen[d.Name]; dup {
			skip(file, fmt.Sprintf("duplicate migration name %q (already defined by %s)", d.Name, prev))
			return
		}
		seen[d.Name] = file
		opts := []migration.Option{
			migration.WithTimestamp(l.resolveTimestamp(e.base, d.Timestamp, e.modTime)),
			migration.WithDependencies(d.Dependencies...),
			migration.WithVersion(d.Version),
			migration.WithSource(e.path),
		}
		result = append(result, migration.New(d.Name, d.Up, d.Down, opts...))
	}

	for _, name := range order {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		e := files[name]
		ext := strings.ToLower(filepath.Ext(name))

		switch {
		case strings.HasSuffix(name, constants.SQLUpSuffix):
			e.base = strings.TrimSuffix(name, constants.SQLUpSuffix)
			d, err := l.readPair(e, files)
			if err != nil {
				skip(name, err.Error())
				continue
			}
			add(name, d, e)
		case strings.HasSuffix(name, constants.SQLDownSuffix):
			base := strings.TrimSuffix(name, constants.SQLDownSuffix)
			if _, ok := files[base+constants.SQLUpSuffix]; !ok {
				skip(name, "missing matching "+base+constants.SQLUpSuffix)
			}
		case ext == ".json":
			e.base = strings.TrimSuffix(name, filepath.Ext(name))
			d, err := readJSON(e.path)
			if err != nil {
				skip(name, err.Error())
				continue
			}
			add(name, d, e)
		case ext == ".yaml" || ext == ".yml":
			e.base = strings.TrimSuffix(name, filepath.Ext(name))
			d, err := readYAML(e.path)
			if err != nil {
				skip(name, err.Error())
				continue
			}
			add(name, d, e)
		case scriptExtensions[ext]:
			e.base = strings.TrimSuffix(name, filepath.Ext(name))
			d, err := l.evaluator.Evaluate(ctx, e.path, e.base)
			if err == nil {
				if d.Name == "" {
					d.Name = e.base
				}
				err = d.validate()
			}
			if err != nil {
				skip(name, "script: "+err.Error())
				continue
			}
			add(name, d, e)
		default:
			l.logger.Debug("ignoring non-migration file", "file", name)
		}
	}

	migration.Sort(result)
	l.logger.Info("migrations loaded", "dir", dir, "count", len(result), "skipped", len(skipped))
	return result, skipped, nil
}

func (l *Loader) readPair(e entry, files map[string]entry) (Descriptor, error) {
	downName := e.base + constants.SQLDownSuffix
	down, ok := files[downName]
	if !ok {
		return Descriptor{}, fmt.Errorf("missing matching %s", downName)
	}
	upSQL, err := os.ReadFile(e.path)
	if err != nil {
		return Descriptor{}, fmt.Errorf("read up file: %w", err)
	}
	downSQL, err := os.ReadFile(down.path)
	if err != nil {
		return Descriptor{}, fmt.Errorf("read down file: %w", err)
	}
	d := Descriptor{Name: e.base, Up: string(upSQL), Down: string(downSQL)}
	if err := d.validate(); err != nil {
		return Descriptor{}, err
	}
	return d, nil
}

// resolveTimestamp applies filename prefix, then explicit field, then mtime, then clock.
func (l *Loader) resolveTimestamp(base string, explicit *int64, modTime time.Time) int64 {
	if m := timestampPrefix.FindStringSubmatch(base); m != nil {
		if ts, err := strconv.ParseInt(m[1], 10, 64); err == nil {
			return ts
		}
	}
	if explicit != nil {
		return *explicit
	}
	if !modTime.IsZero() {
		return modTime.UnixMilli()
	}
	return l.now().UnixMilli()
}
