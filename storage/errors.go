package storage

import (
	"errors"
	"fmt"
)

// ErrListingNotFound is returned when an update matched no row.
var ErrListingNotFound = errors.New("listing not found")

// PersistenceError is returned for any failed write. Writes are never retried
// automatically.
type PersistenceError struct {
	Op        string
	ListingID string
	Err       error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("postgres: %s %s: %v", e.Op, e.ListingID, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
