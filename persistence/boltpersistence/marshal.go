package boltpersistence

import (
	"encoding/binary"

	"github.com/relaymesh/spipe/persistence"
)

// Record values are stored as an 8-byte big-endian revision followed by the
// record body verbatim. Revisions start at one, so a missing key is
// distinguishable from any persisted record.

// marshalRecord returns the stored representation of rec.
func marshalRecord(rec persistence.Record) []byte {
	data := make([]byte, 8+len(rec.Body))
	binary.BigEndian.PutUint64(data, rec.Revision)
	copy(data[8:], rec.Body)

	return data
}

// unmarshalRecord parses the stored representation of a record.
func unmarshalRecord(id string, data []byte) persistence.Record {
	rec := persistence.Record{
		ID:       id,
		Revision: binary.BigEndian.Uint64(data),
	}

	if len(data) > 8 {
		rec.Body = make([]byte, len(data)-8)
		copy(rec.Body, data[8:])
	}

	return rec
}

// revisionOf returns the revision of a stored record, or zero if the record
// does not exist.
func revisionOf(data []byte) uint64 {
	if data == nil {
		return 0
	}

	return binary.BigEndian.Uint64(data)
}
