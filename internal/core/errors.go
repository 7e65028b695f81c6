package core

import (
	"errors"
	"fmt"
)

var (
	// ErrStorageUnavailable means the ledger file could not be created or opened.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrMigrationFailed means the schema could not be converged; the store is unusable.
	ErrMigrationFailed = errors.New("migration failed")
	// ErrInvalidEntry means caller-supplied values failed validation.
	ErrInvalidEntry = errors.New("invalid entry")
)

// EntryError describes which field of an entry was rejected.
type EntryError struct {
	Field   string
	Message string
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *EntryError) Unwrap() error {
	return ErrInvalidEntry
}

// InvalidEntry returns an *EntryError for field.
func InvalidEntry(field, message string) *EntryError {
	return &EntryError{Field: field, Message: message}
}
