// Package config is the latter CLI configuration document.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/loykin/latter"
	"github.com/loykin/latter/internal/common"
	"github.com/loykin/latter/internal/util"
	"gopkg.in/yaml.v3"
)

// ErrNoDatabase is returned when neither a URL nor a database type is configured.
var ErrNoDatabase = errors.New("no database configured: set --database-url, LATTER_DATABASE_URL or database.url in the config file")

// DatabaseConfig selects the ledger database. URL wins over Type; the
// engine blocks hold driver settings such as host, port, user, password,
// dbname, path or dsn. String values may reference environment variables
// as ${NAME}.
type DatabaseConfig struct {
	URL            string         `mapstructure:"url" yaml:"url"`
	Type           string         `mapstructure:"type" yaml:"type"`
	SQLite         map[string]any `mapstructure:"sqlite" yaml:"sqlite"`
	Postgres       map[string]any `mapstructure:"postgres" yaml:"postgres"`
	MySQL          map[string]any `mapstructure:"mysql" yaml:"mysql"`
	ConnectRetries int            `mapstructure:"connect_retries" yaml:"connect_retries"`
}

type SyncConfig struct {
	Force bool `mapstructure:"force" yaml:"force"`
	Skip  bool `mapstructure:"skip" yaml:"skip"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`   // error, warn, info, debug
	Format string `mapstructure:"format" yaml:"format"` // text, json, color
	Color  *bool  `mapstructure:"color" yaml:"color"`   // enable/disable colorized output
}

type ClientConfig struct {
	Insecure      bool   `mapstructure:"insecure" yaml:"insecure"`
	MinTLSVersion string `mapstructure:"min_tls_version" yaml:"min_tls_version"`
	MaxTLSVersion string `mapstructure:"max_tls_version" yaml:"max_tls_version"`
}

// WaitConfig controls `latter wait`. URL adds an HTTP readiness probe on
// top of the database check.
type WaitConfig struct {
	URL      string `mapstructure:"url" yaml:"url"`
	Method   string `mapstructure:"method" yaml:"method"`
	Status   int    `mapstructure:"status" yaml:"status"`
	Timeout  string `mapstructure:"timeout" yaml:"timeout"`
	Interval string `mapstructure:"interval" yaml:"interval"`
}

type ServeConfig struct {
	Addr      string `mapstructure:"addr" yaml:"addr"`
	JWTSecret string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	Issuer    string `mapstructure:"issuer" yaml:"issuer"`
	Audience  string `mapstructure:"audience" yaml:"audience"`
}

type ConfigDoc struct {
	Database        DatabaseConfig `mapstructure:"database" yaml:"database"`
	MigrationsDir   string         `mapstructure:"migrations_dir" yaml:"migrations_dir"`
	TableName       string         `mapstructure:"table_name" yaml:"table_name"`
	Sync            SyncConfig     `mapstructure:"sync" yaml:"sync"`
	VerifyChecksums bool           `mapstructure:"verify_checksums" yaml:"verify_checksums"`
	DryRun          bool           `mapstructure:"dry_run" yaml:"dry_run"`
	Logging         LoggingConfig  `mapstructure:"logging" yaml:"logging"`
	Wait            WaitConfig     `mapstructure:"wait" yaml:"wait"`
	Client          ClientConfig   `mapstructure:"client" yaml:"client"`
	Serve           ServeConfig    `mapstructure:"serve" yaml:"serve"`
}

func (c *ConfigDoc) Load(path string) error {
	clean := filepath.Clean(path)
	// Ensure path points to a regular file to avoid opening directories/special files
	if info, statErr := os.Stat(clean); statErr != nil || !info.Mode().IsRegular() {
		if statErr != nil {
			return statErr
		}
		return fmt.Errorf("not a regular file: %s", clean)
	}
	// #nosec G304 -- config path is provided intentionally by the user/CI; cleaned and validated above
	f, err := os.Open(clean)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return fmt.Errorf("config %s: %w", clean, err)
	}
	util.TrimStructFields(c)
	return nil
}

// ConnectRetry returns the retry policy for the first connection, or nil for
// a single attempt.
func (d DatabaseConfig) ConnectRetry() *latter.RetryConfig {
	if d.ConnectRetries <= 0 {
		return nil
	}
	rc := latter.DefaultRetryConfig()
	rc.MaxRetries = d.ConnectRetries
	return rc
}

// Adapter builds the adapter for url, falling back to the database section.
func (d DatabaseConfig) Adapter(url string, opts ...latter.AdapterOption) (latter.Adapter, error) {
	if u, ok := util.TrimEmptyCheck(util.FirstNonEmpty(url, os.ExpandEnv(d.URL))); ok {
		return latter.NewAdapter(u, opts...)
	}
	typ, ok := util.TrimEmptyCheck(d.Type)
	if !ok {
		return nil, ErrNoDatabase
	}
	var settings map[string]any
	switch util.TrimAndLower(typ) {
	case "sqlite", "sqlite3":
		settings = d.SQLite
	case "postgres", "postgresql", "pg", "pgx":
		settings = d.Postgres
	case "mysql", "mariadb":
		settings = d.MySQL
	}
	return latter.NewAdapterFromConfig(typ, expandEnv(settings), opts...)
}

func expandEnv(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		switch t := v.(type) {
		case string:
			out[k] = os.ExpandEnv(t)
		case map[string]any:
			out[k] = expandEnv(t)
		default:
			out[k] = v
		}
	}
	return out
}

// WaitTimeouts parses the wait durations, falling back to the given defaults.
func (w WaitConfig) WaitTimeouts(defTimeout, defInterval time.Duration) (time.Duration, time.Duration) {
	timeout, interval := defTimeout, defInterval
	if s, ok := util.TrimEmptyCheck(w.Timeout); ok {
		if d, err := time.ParseDuration(s); err == nil {
			timeout = d
		}
	}
	if s, ok := util.TrimEmptyCheck(w.Interval); ok {
		if d, err := time.ParseDuration(s); err == nil {
			interval = d
		}
	}
	return timeout, interval
}

func (c *ConfigDoc) parseLogLevel() (latter.LogLevel, error) {
	level := util.TrimAndLower(c.Logging.Level)
	switch level {
	case "error":
		return latter.LogLevelError, nil
	case "warn", "warning":
		return latter.LogLevelWarn, nil
	case "info", "":
		return latter.LogLevelInfo, nil
	case "debug":
		return latter.LogLevelDebug, nil
	default:
		return latter.LogLevelInfo, fmt.Errorf("invalid logging level: %s (valid: error, warn, info, debug)", c.Logging.Level)
	}
}

// UseColor reports whether human output should be colorized.
func (c *ConfigDoc) UseColor() bool {
	if c.Logging.Color != nil {
		return *c.Logging.Color
	}
	format := util.TrimAndLower(c.Logging.Format)
	return format == "color" || format == "colour" || common.IsTerminal(os.Stdout)
}

// SetupLogging builds the logger described by the logging section and
// installs it as the process default.
func (c *ConfigDoc) SetupLogging() (*latter.Logger, error) {
	level, err := c.parseLogLevel()
	if err != nil {
		return nil, err
	}

	var logger *latter.Logger
	format := util.TrimAndLower(c.Logging.Format)
	switch format {
	case "json":
		logger = latter.NewJSONLogger(level)
	case "color", "colour":
		logger = latter.NewColorLogger(level)
	case "text", "":
		if c.Logging.Color != nil && *c.Logging.Color {
			logger = latter.NewColorLogger(level)
		} else {
			logger = latter.NewLogger(level)
		}
	default:
		return nil, fmt.Errorf("invalid logging format: %s (valid: text, json, color)", c.Logging.Format)
	}

	latter.SetDefaultLogger(logger)
	logger.Debug("logging configured",
		"level", level.String(),
		"format", util.TrimWithDefault(format, "text"))
	return logger, nil
}

// Describe returns a one-line summary of where the ledger lives, with
// credentials masked.
func (d DatabaseConfig) Describe(url string) string {
	if u := util.FirstNonEmpty(url, d.URL); u != "" {
		return common.MaskDSN(os.ExpandEnv(u))
	}
	if d.Type == "" {
		return "<none>"
	}
	return strings.ToLower(d.Type) + " (from config)"
}
