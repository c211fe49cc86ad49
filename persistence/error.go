package persistence

import (
	"errors"
	"fmt"
)

// ErrStoreClosed is returned when an operation is attempted on a store that
// has been closed.
var ErrStoreClosed = errors.New("store is closed")

// ErrStoreLocked is returned when a store can not be opened because it is
// already open for exclusive use elsewhere.
var ErrStoreLocked = errors.New("store is locked")

// ConflictError indicates that a revision-checked write was rejected because
// the revision presented by the caller is not the record's current revision.
//
// The caller must re-read the record to obtain its current revision before
// retrying.
type ConflictError struct {
	// ID is the record that the write was attempted against.
	ID string

	// Revision is the stale revision presented by the caller.
	Revision uint64
}

func (e ConflictError) Error() string {
	return fmt.Sprintf(
		"optimistic concurrency conflict writing record %#v at revision %d",
		e.ID,
		e.Revision,
	)
}

// UnknownRecordError indicates that a record does not exist.
type UnknownRecordError struct {
	// ID is the record that could not be found.
	ID string
}

func (e UnknownRecordError) Error() string {
	return fmt.Sprintf("record %#v does not exist", e.ID)
}

// IsConflict returns true if err indicates an optimistic concurrency
// conflict.
func IsConflict(err error) bool {
	var c ConflictError
	return errors.As(err, &c)
}

// IsUnknownRecord returns true if err indicates that a record does not exist.
func IsUnknownRecord(err error) bool {
	var u UnknownRecordError
	return errors.As(err, &u)
}
