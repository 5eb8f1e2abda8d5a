package sqlite

import (
	"fmt"
	"strings"

	"github.com/loykin/latter/internal/constants"
	"github.com/loykin/latter/internal/util"
)

const memoryDSN = ":memory:"

// Config describes a SQLite database either by file path or by a raw driver DSN.
type Config struct {
	Path string `mapstructure:"path" yaml:"path"`
	DSN  string `mapstructure:"dsn" yaml:"dsn"`
}

// ToDSN prefers an explicit DSN; otherwise it builds one from Path with a busy
// timeout and foreign keys enabled. An empty config means an in-memory database.
func (c Config) ToDSN() string {
	if dsn, ok := util.TrimEmptyCheck(c.DSN); ok {
		return dsn
	}
	path, ok := util.TrimEmptyCheck(c.Path)
	if !ok || path == memoryDSN {
		return memoryDSN
	}
	if strings.HasPrefix(path, "file:") {
		return path
	}
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)", path, constants.DefaultSQLiteBusyTimeoutMs)
}

// IsMemory reports whether dsn names a private in-memory database.
func IsMemory(dsn string) bool {
	return dsn == memoryDSN || strings.Contains(dsn, "mode=memory") || strings.HasPrefix(dsn, "file::memory:")
}
