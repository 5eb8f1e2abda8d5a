package adapter

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Dialect captures what differs between engines.
type Dialect interface {
	// Name is the engine name used in logs and by the factory.
	Name() string
	// DriverName is the database/sql driver to open.
	DriverName() string
	// Placeholder returns the bind marker for the 1-based argument index.
	Placeholder(index int) string
	// Open opens a pool for dsn and applies engine pool settings. It does not ping.
	Open(dsn string) (*sql.DB, error)
	// LedgerDDL creates the ledger table if it does not exist.
	LedgerDDL(table string) string
	// TableExistsQuery returns a query yielding a single count column.
	TableExistsQuery(table string) (string, []any)
	// TimeToStorage converts applied_at for insertion.
	TimeToStorage(t time.Time) any
}

// SplitQualified splits "schema.table" into its parts. schema is empty for plain names.
func SplitQualified(table string) (schema, name string) {
	if i := strings.IndexByte(table, '.'); i >= 0 {
		return table[:i], table[i+1:]
	}
	return "", table
}

var storedTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// ParseStoredTime converts whatever a driver returned for applied_at into a time.
func ParseStoredTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		return parseTimeString(t)
	case []byte:
		return parseTimeString(string(t))
	case int64:
		return time.UnixMilli(t).UTC(), nil
	case nil:
		return time.Time{}, fmt.Errorf("applied_at is NULL")
	default:
		return time.Time{}, fmt.Errorf("unsupported applied_at type %T", v)
	}
}

func parseTimeString(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range storedTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized applied_at value %q", s)
}
