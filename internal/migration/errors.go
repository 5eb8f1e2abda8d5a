package migration

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrOutOfSync         = errors.New("ledger out of sync with migration files")
	ErrMigrationNotFound = errors.New("migration not found")
	ErrMissingDefinition = errors.New("applied migration has no definition on disk")
	ErrInvalidMigration  = errors.New("invalid migration")
	ErrChecksumMismatch  = errors.New("checksum mismatch")
)

// OutOfSyncError lists ledger rows that have no corresponding file.
type OutOfSyncError struct {
	Orphans []string
}

func (e *OutOfSyncError) Error() string {
	return fmt.Sprintf("%s: applied migrations not found on disk: %s (use force-sync to delete them from the ledger or skip-out-of-sync to ignore them)",
		ErrOutOfSync, strings.Join(e.Orphans, ", "))
}

func (e *OutOfSyncError) Unwrap() error { return ErrOutOfSync }

// ChecksumMismatchError reports an applied migration whose content changed on disk.
type ChecksumMismatchError struct {
	Name     string
	Stored   string
	Computed string
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("%s for migration %s: ledger has %s, file has %s", ErrChecksumMismatch, e.Name, e.Stored, e.Computed)
}

func (e *ChecksumMismatchError) Unwrap() error { return ErrChecksumMismatch }

// Error wraps a failure of a single migration with its name and direction.
type Error struct {
	Name      string
	Direction string
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("migration %s (%s) failed: %v", e.Name, e.Direction, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

const (
	DirectionUp   = "up"
	DirectionDown = "down"
)
