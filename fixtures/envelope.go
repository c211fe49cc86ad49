package fixtures

import (
	"fmt"

	"github.com/relaymesh/spipe/envelope"
)

// NewEnvelope returns a well-formed envelope for use in tests.
//
// The payload is derived from the sequence number so that envelopes on the
// same stream carry distinguishable data.
func NewEnvelope(topic, originator string, seq uint64) envelope.Envelope {
	env := envelope.Envelope{
		Originator:  originator,
		Destination: "dest.example.org",
		Topic:       topic,
		SequenceNo:  seq,
		ContentType: "text/plain",
		Data:        fmt.Sprintf("<payload-%d>", seq),
	}
	env.NewID()

	return env
}
