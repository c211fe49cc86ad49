package envelope

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Marshal returns the JSON representation of env.
func Marshal(env Envelope) []byte {
	data, err := json.Marshal(env)
	if err != nil {
		// Envelope contains nothing that can fail to marshal.
		panic(err)
	}

	return data
}

// Unmarshal parses the JSON representation of an envelope.
//
// It does not validate the result; the envelope may have been produced by
// this node's own storage layer, in which case it has already been validated
// on ingestion.
func Unmarshal(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("cannot parse envelope: %w", err)
	}

	return env, nil
}

// Parse parses and validates an envelope received on the wire.
//
// It enforces the presence of the fields that are required in transit. The
// sequence number must be present explicitly; a zero sequence number is valid
// but an absent one is not, so presence cannot be inferred from the parsed
// value.
func Parse(data []byte) (Envelope, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return Envelope{}, fmt.Errorf("cannot parse envelope: %w", err)
	}

	if _, ok := fields["sequence-no"]; !ok {
		return Envelope{}, fmt.Errorf("sequence number missing")
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var env Envelope
	if err := dec.Decode(&env); err != nil {
		return Envelope{}, fmt.Errorf("cannot parse envelope: %w", err)
	}

	if err := env.Validate(); err != nil {
		return Envelope{}, err
	}

	return env, nil
}
