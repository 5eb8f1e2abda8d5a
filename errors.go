package latter

import (
	"errors"

	"github.com/loykin/latter/internal/adapter"
	"github.com/loykin/latter/internal/loader"
	"github.com/loykin/latter/internal/migration"
)

var (
	ErrNoAdapter           = errors.New("latter: an Adapter or ConnectionString is required")
	ErrOutOfSync           = migration.ErrOutOfSync
	ErrMigrationNotFound   = migration.ErrMigrationNotFound
	ErrMissingDefinition   = migration.ErrMissingDefinition
	ErrInvalidMigration    = migration.ErrInvalidMigration
	ErrChecksumMismatch    = migration.ErrChecksumMismatch
	ErrNotConnected        = adapter.ErrNotConnected
	ErrUnsupportedScheme   = adapter.ErrUnsupportedScheme
	ErrInvalidTableName    = adapter.ErrInvalidTableName
	ErrDirectoryUnreadable = loader.ErrDirectoryUnreadable
)

// OutOfSyncError lists ledger entries that have no migration file.
type OutOfSyncError = migration.OutOfSyncError

// ChecksumMismatchError reports an applied migration whose file changed.
type ChecksumMismatchError = migration.ChecksumMismatchError

// MigrationError wraps the failure of one migration with its name and direction.
type MigrationError = migration.Error
