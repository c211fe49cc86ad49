package bookkeeping

import (
	"encoding/json"
	"fmt"
)

// cursor is the stored representation of a bookkeeping record's body.
type cursor struct {
	SequenceNo uint64 `json:"sequence-no"`
}

// marshalCursor returns the stored representation of a cursor value.
func marshalCursor(seq uint64) []byte {
	data, err := json.Marshal(cursor{SequenceNo: seq})
	if err != nil {
		// A cursor contains nothing that can fail to marshal.
		panic(err)
	}

	return data
}

// unmarshalCursor parses the stored representation of a cursor value.
func unmarshalCursor(data []byte) (uint64, error) {
	var c cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return 0, fmt.Errorf("cannot parse bookkeeping record: %w", err)
	}

	return c.SequenceNo, nil
}
