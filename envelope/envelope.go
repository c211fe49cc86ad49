package envelope

import (
	"errors"
	"fmt"
	"regexp"
)

// An Envelope is the unit of transport. It carries one message payload plus
// the routing and sequencing meta-data needed to relay it between nodes and
// materialize it in order.
type Envelope struct {
	// ID uniquely identifies the envelope.
	//
	// It is derived deterministically from the topic, originator and sequence
	// number, so every node that sees the same envelope derives the same ID.
	// It doubles as the idempotency key for re-delivery.
	ID string `json:"id,omitempty"`

	// Originator is the identity of the node that created the envelope.
	// It is immutable once the envelope is created.
	Originator string `json:"originator"`

	// Destination is the identity of the node the envelope is addressed to.
	Destination string `json:"destination"`

	// Topic selects the queue the envelope is buffered on and the acceptance
	// policy that applies to it.
	Topic string `json:"topic"`

	// SequenceNo is the envelope's position within the originator's stream
	// for this topic. Sequence numbers are dense: there is exactly one
	// envelope per (topic, originator, sequence number).
	SequenceNo uint64 `json:"sequence-no"`

	// Hops is the number of ingestion services that have accepted the
	// envelope so far.
	Hops uint64 `json:"hops,omitempty"`

	// ContentType is the media-type of Data.
	ContentType string `json:"content-type,omitempty"`

	// Data is the opaque message payload.
	Data string `json:"data,omitempty"`
}

// hostnamePattern matches RFC 1123 host names and bare IPv6 literals, the
// identities used for originators and destinations on the wire.
var hostnamePattern = regexp.MustCompile(
	`^([0-9A-Za-z]([-0-9A-Za-z]*[0-9A-Za-z])?(\.[0-9A-Za-z]([-0-9A-Za-z]*[0-9A-Za-z])?)*|[0-9A-Fa-f:.]+)$`,
)

// IsIdentity returns true if s is usable as an originator or destination
// identity.
func IsIdentity(s string) bool {
	return s != "" && hostnamePattern.MatchString(s)
}

// Validate returns an error if env is not a well-formed envelope.
//
// It checks the fields that must be present on the wire. The ID and hop count
// are assigned by the pipeline itself and are not validated here.
func (env Envelope) Validate() error {
	if !IsIdentity(env.Originator) {
		return fmt.Errorf("invalid originator: %#v", env.Originator)
	}

	if !IsIdentity(env.Destination) {
		return fmt.Errorf("invalid destination: %#v", env.Destination)
	}

	if env.Topic == "" {
		return errors.New("topic must not be empty")
	}

	return nil
}
