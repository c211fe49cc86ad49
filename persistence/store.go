package persistence

import "context"

// A Store is a single named collection of records.
//
// All writes are revision-checked. Put with a zero revision creates the
// record; Put or Remove with any other revision must present the record's
// current revision. A stale or unknown revision results in a ConflictError
// and no change to the store.
type Store interface {
	// Put persists rec.
	//
	// It returns the record with the revision assigned by this write. If the
	// presented revision is not the record's current revision it returns a
	// ConflictError.
	Put(ctx context.Context, rec Record) (Record, error)

	// Get loads the record with the given ID.
	//
	// It returns an UnknownRecordError if no such record exists.
	Get(ctx context.Context, id string) (Record, error)

	// List returns up to n records in storage-native order, which is not
	// necessarily the order the records were written in.
	//
	// If n is non-positive, all records are returned. If bodies is false only
	// the ID and revision of each record are populated.
	List(ctx context.Context, n int, bodies bool) ([]Record, error)

	// Remove deletes rec from the store.
	//
	// It returns a ConflictError if the record does not exist or rec does not
	// carry its current revision.
	Remove(ctx context.Context, rec Record) error

	// Close releases any resources held by the store.
	//
	// It always completes; closing an already-closed store reports
	// ErrStoreClosed but has no other effect.
	Close() error
}

// A Provider opens named stores at some storage location.
type Provider interface {
	// Open returns the store with the given name, creating it if necessary.
	Open(ctx context.Context, name string) (Store, error)
}
