package envelope

import "fmt"

// ID returns the deterministic identity of the envelope with the given topic,
// originator and sequence number.
//
// The same (topic, originator, sequence number) always produces the same ID,
// which is what makes re-delivery of an envelope idempotent: a queue keyed by
// ID can only ever hold one row per envelope.
func ID(topic, originator string, seq uint64) string {
	return fmt.Sprintf("%s-%s-%d", topic, originator, seq)
}

// NewID derives and assigns the envelope's ID from its own fields.
func (env *Envelope) NewID() string {
	env.ID = ID(env.Topic, env.Originator, env.SequenceNo)
	return env.ID
}
