// Package factory selects a database adapter from a connection string scheme
// or from structured driver settings.
package factory

import (
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/loykin/latter/internal/adapter"
	"github.com/loykin/latter/internal/adapter/mysql"
	"github.com/loykin/latter/internal/adapter/postgresql"
	"github.com/loykin/latter/internal/adapter/sqlite"
	"github.com/loykin/latter/internal/util"
)

// Driver is the closed set of supported engines.
type Driver string

const (
	DriverSQLite     Driver = "sqlite"
	DriverPostgreSQL Driver = "postgresql"
	DriverMySQL      Driver = "mysql"
)

// ParseDriver normalizes a driver name, accepting the usual aliases.
func ParseDriver(name string) (Driver, error) {
	switch util.TrimAndLower(name) {
	case "sqlite", "sqlite3":
		return DriverSQLite, nil
	case "postgres", "postgresql", "pg", "pgx":
		return DriverPostgreSQL, nil
	case "mysql", "mariadb":
		return DriverMySQL, nil
	default:
		return "", fmt.Errorf("%w: %q", adapter.ErrUnsupportedScheme, name)
	}
}

// Scheme extracts the engine from a connection string such as
// "sqlite:./app.db", "postgres://..." or "mysql://...".
func Scheme(connString string) (Driver, error) {
	s := strings.TrimSpace(connString)
	i := strings.IndexByte(s, ':')
	if i <= 0 {
		return "", fmt.Errorf("%w: %q", adapter.ErrUnsupportedScheme, connString)
	}
	switch strings.ToLower(s[:i]) {
	case "sqlite":
		return DriverSQLite, nil
	case "postgres", "postgresql":
		return DriverPostgreSQL, nil
	case "mysql":
		return DriverMySQL, nil
	default:
		return "", fmt.Errorf("%w: %q", adapter.ErrUnsupportedScheme, s[:i])
	}
}

// New builds a disconnected adapter for connString.
func New(connString string, opts ...adapter.Option) (*adapter.SQLAdapter, error) {
	d, err := Scheme(connString)
	if err != nil {
		return nil, err
	}
	s := strings.TrimSpace(connString)
	switch d {
	case DriverSQLite:
		return sqlite.New(sqlite.Config{Path: sqlitePath(s)}, opts...), nil
	case DriverPostgreSQL:
		return postgresql.New(postgresql.Config{DSN: s}, opts...), nil
	default:
		dsn, err := mysql.FromURL(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", adapter.ErrInvalidConnection, err)
		}
		return mysql.New(mysql.Config{DSN: dsn}, opts...)
	}
}

// sqlitePath accepts sqlite:path, sqlite://path, sqlite:///abs/path and sqlite::memory:.
func sqlitePath(s string) string {
	rest := s[len("sqlite:"):]
	rest = strings.TrimPrefix(rest, "//")
	if rest == "" {
		return ":memory:"
	}
	return rest
}

type builder func(settings map[string]any, opts []adapter.Option) (*adapter.SQLAdapter, error)

var builders = map[Driver]builder{
	DriverSQLite: func(settings map[string]any, opts []adapter.Option) (*adapter.SQLAdapter, error) {
		var c sqlite.Config
		if err := mapstructure.Decode(settings, &c); err != nil {
			return nil, err
		}
		return sqlite.New(c, opts...), nil
	},
	DriverPostgreSQL: func(settings map[string]any, opts []adapter.Option) (*adapter.SQLAdapter, error) {
		var c postgresql.Config
		if err := mapstructure.WeakDecode(settings, &c); err != nil {
			return nil, err
		}
		if c.ToDSN() == "" {
			return nil, fmt.Errorf("%w: postgresql requires dsn or host", adapter.ErrInvalidConnection)
		}
		return postgresql.New(c, opts...), nil
	},
	DriverMySQL: func(settings map[string]any, opts []adapter.Option) (*adapter.SQLAdapter, error) {
		var c mysql.Config
		if err := mapstructure.WeakDecode(settings, &c); err != nil {
			return nil, err
		}
		if strings.TrimSpace(c.DSN) == "" && strings.TrimSpace(c.Host) == "" {
			return nil, fmt.Errorf("%w: mysql requires dsn or host", adapter.ErrInvalidConnection)
		}
		return mysql.New(c, opts...)
	},
}

// FromConfig builds an adapter from a driver name and its settings map, as
// found under the database section of the config file.
func FromConfig(driver string, settings map[string]any, opts ...adapter.Option) (*adapter.SQLAdapter, error) {
	d, err := ParseDriver(driver)
	if err != nil {
		return nil, err
	}
	a, err := builders[d](settings, opts)
	if err != nil {
		return nil, fmt.Errorf("%s settings: %w", d, err)
	}
	return a, nil
}
