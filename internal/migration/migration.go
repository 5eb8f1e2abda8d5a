// Package migration holds the immutable Migration entity and the status
// projection stored in, and read back from, the ledger.
package migration

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"sort"
	"strings"
	"time"
)

// versionLength is the number of hex characters kept from the fingerprint.
const versionLength = 8

// Migration is one named, reversible unit of schema change.
type Migration struct {
	name         string
	up           string
	down         string
	version      string
	timestamp    int64
	dependencies []string
	source       string

	timestampSet bool
}

// Option customizes a Migration at construction time.
type Option func(*Migration)

// WithDependencies records soft dependencies. They are informational only.
func WithDependencies(names ...string) Option {
	return func(m *Migration) {
		m.dependencies = append([]string(nil), names...)
	}
}

// WithVersion overrides the derived fingerprint.
func WithVersion(version string) Option {
	return func(m *Migration) {
		if version != "" {
			m.version = version
		}
	}
}

// WithTimestamp sets the ordering key in epoch milliseconds.
func WithTimestamp(ms int64) Option {
	return func(m *Migration) {
		m.timestamp = ms
		m.timestampSet = true
	}
}

// WithSource records the file the migration was read from.
func WithSource(path string) Option {
	return func(m *Migration) {
		m.source = path
	}
}

// now is replaced in tests.
var now = time.Now

// New builds a Migration. Missing version and timestamp are derived here and
// never change afterwards.
func New(name, up, down string, opts ...Option) *Migration {
	m := &Migration{name: name, up: up, down: down}
	for _, opt := range opts {
		opt(m)
	}
	if m.version == "" {
		m.version = Fingerprint(name, up, down)
	}
	if !m.timestampSet {
		m.timestamp = now().UnixMilli()
	}
	return m
}

// Fingerprint is the short version string derived from name, up and down.
func Fingerprint(name, up, down string) string {
	sum := sha256.Sum256([]byte(name + up + down))
	return hex.EncodeToString(sum[:])[:versionLength]
}

// Checksum is the sha256 of up and down in hex.
func Checksum(up, down string) string {
	sum := sha256.Sum256([]byte(up + down))
	return hex.EncodeToString(sum[:])
}

func (m *Migration) Name() string     { return m.name }
func (m *Migration) Up() string       { return m.up }
func (m *Migration) Down() string     { return m.down }
func (m *Migration) Version() string  { return m.version }
func (m *Migration) Timestamp() int64 { return m.timestamp }
func (m *Migration) Source() string   { return m.source }

// Checksum is recomputed on every call.
func (m *Migration) Checksum() string {
	return Checksum(m.up, m.down)
}

// Dependencies returns a copy of the declared dependencies.
func (m *Migration) Dependencies() []string {
	return slices.Clone(m.dependencies)
}

// DependsOn reports whether name is among the declared dependencies.
func (m *Migration) DependsOn(name string) bool {
	return slices.Contains(m.dependencies, name)
}

// Validate reports whether name, up and down all hold something other than
// whitespace.
func (m *Migration) Validate() bool {
	return !blank(m.name) && !blank(m.up) && !blank(m.down)
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }

// ToStatus projects the migration into a Status. appliedAt is dropped unless applied.
func (m *Migration) ToStatus(applied bool, appliedAt *time.Time) Status {
	s := Status{
		Name:      m.name,
		Version:   m.version,
		Timestamp: m.timestamp,
		Checksum:  m.Checksum(),
		Applied:   applied,
	}
	if applied && appliedAt != nil {
		t := *appliedAt
		s.AppliedAt = &t
	}
	return s
}

// Less orders by timestamp, then by name.
func Less(a, b *Migration) bool {
	if a.timestamp != b.timestamp {
		return a.timestamp < b.timestamp
	}
	return a.name < b.name
}

// Sort orders migrations in place by timestamp, then name.
func Sort(ms []*Migration) {
	sort.SliceStable(ms, func(i, j int) bool { return Less(ms[i], ms[j]) })
}
