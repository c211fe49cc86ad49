package persistence

// A Record is the unit of storage: an identified, versioned document.
type Record struct {
	// ID is the record's primary key within its store.
	ID string

	// Revision is the version tag assigned by the store when the record was
	// last written.
	//
	// A zero revision denotes a record that has never been persisted. The
	// revision presented to a write or removal must match the record's
	// current revision, otherwise the operation is rejected with a
	// ConflictError. The pipeline never fabricates a revision; a record moved
	// between stores is re-inserted with a zero revision because it is a new
	// logical record in its new store.
	Revision uint64

	// Body is the opaque document content.
	Body []byte
}
