package postgresql

import (
	"fmt"
	"net/url"

	"github.com/loykin/latter/internal/constants"
	"github.com/loykin/latter/internal/util"
)

// Config describes a PostgreSQL connection either as a URL or by its parts.
type Config struct {
	DSN      string `mapstructure:"dsn" yaml:"dsn"`
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	User     string `mapstructure:"user" yaml:"user"`
	Password string `mapstructure:"password" yaml:"password"`
	DBName   string `mapstructure:"dbname" yaml:"dbname"`
	SSLMode  string `mapstructure:"sslmode" yaml:"sslmode"`
}

// ToDSN prefers an explicit DSN; otherwise it builds a postgres:// URL
// accepted by pgx. Returns "" when neither DSN nor host is set.
func (c Config) ToDSN() string {
	if dsn, ok := util.TrimEmptyCheck(c.DSN); ok {
		return dsn
	}
	host, ok := util.TrimEmptyCheck(c.Host)
	if !ok {
		return ""
	}
	port := c.Port
	if port == 0 {
		port = constants.DefaultPostgresPort
	}
	u := url.URL{
		Scheme:   "postgres",
		Host:     fmt.Sprintf("%s:%d", host, port),
		Path:     "/" + util.TrimWithDefault(c.DBName, ""),
		RawQuery: url.Values{"sslmode": {util.TrimWithDefault(c.SSLMode, constants.DefaultPostgresSSLMode)}}.Encode(),
	}
	if user, ok := util.TrimEmptyCheck(c.User); ok {
		if c.Password != "" {
			u.User = url.UserPassword(user, c.Password)
		} else {
			u.User = url.User(user)
		}
	}
	return u.String()
}
