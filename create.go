package latter

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/loykin/latter/internal/constants"
	"github.com/loykin/latter/internal/util"
)

// Migration file formats accepted by CreateMigration.
const (
	FormatSQL  = "sql"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// CreateOptions describes a new migration skeleton.
type CreateOptions struct {
	Name   string
	Dir    string
	Format string // sql (default), json or yaml
	Now    func() time.Time
}

const sqlUpTemplate = `-- %s: apply
-- Write the forward schema change here.
`

const sqlDownTemplate = `-- %s: revert
-- Undo everything the up file does.
`

const jsonTemplate = `{
  "name": %q,
  "up": "-- write the forward schema change here",
  "down": "-- undo the up statement here",
  "dependencies": []
}
`

const yamlTemplate = `name: %q
up: |
  -- write the forward schema change here
down: |
  -- undo the up statement here
dependencies: []
`

// CreateMigration writes a timestamped migration skeleton into Dir and
// returns the created paths. The file name starts with the creation time in
// epoch milliseconds, the same unit the loader reads from name prefixes and
// timestamp fields, so new migrations sort after existing ones.
func CreateMigration(opts CreateOptions) ([]string, error) {
	dir, ok := util.TrimEmptyCheck(opts.Dir)
	if !ok {
		return nil, errors.New("create: migrations directory is required")
	}
	slug := strings.Trim(nonSlug.ReplaceAllString(util.TrimAndLower(opts.Name), "_"), "_")
	if slug == "" {
		return nil, fmt.Errorf("create: invalid migration name %q", opts.Name)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create: %w", err)
	}

	base := strconv.FormatInt(now().UnixMilli(), 10) + "_" + slug
	var files map[string]string
	switch util.TrimWithDefault(util.TrimAndLower(opts.Format), FormatSQL) {
	case FormatSQL:
		files = map[string]string{
			base + constants.SQLUpSuffix:   fmt.Sprintf(sqlUpTemplate, base),
			base + constants.SQLDownSuffix: fmt.Sprintf(sqlDownTemplate, base),
		}
	case FormatJSON:
		files = map[string]string{base + ".json": fmt.Sprintf(jsonTemplate, base)}
	case FormatYAML, "yml":
		files = map[string]string{base + ".yaml": fmt.Sprintf(yamlTemplate, base)}
	default:
		return nil, fmt.Errorf("create: unknown format %q (valid: sql, json, yaml)", opts.Format)
	}

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	// up before down
	if len(names) == 2 && strings.HasSuffix(names[0], constants.SQLDownSuffix) {
		names[0], names[1] = names[1], names[0]
	}

	paths := make([]string, 0, len(names))
	for _, name := range names {
		p := filepath.Join(dir, name)
		// #nosec G304 -- path is built from the migrations directory and a sanitized slug
		f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err != nil {
			return paths, fmt.Errorf("create: %w", err)
		}
		_, werr := f.WriteString(files[name])
		cerr := f.Close()
		if werr != nil {
			return paths, fmt.Errorf("create: %w", werr)
		}
		if cerr != nil {
			return paths, fmt.Errorf("create: %w", cerr)
		}
		paths = append(paths, p)
	}
	return paths, nil
}

// CreateMigration writes a skeleton into the orchestrator's migrations directory.
func (l *Latter) CreateMigration(name, format string) ([]string, error) {
	return CreateMigration(CreateOptions{Name: name, Dir: l.dir, Format: format, Now: l.now})
}
