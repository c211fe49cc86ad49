// Package sender implements the originating side of the pipeline: assigning
// sequence numbers and queueing outbound envelopes.
package sender

import (
	"context"
	"sync"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/relaymesh/spipe/bookkeeping"
	"github.com/relaymesh/spipe/envelope"
	"github.com/relaymesh/spipe/persistence"
)

// Sender assigns dense, strictly increasing sequence numbers to outbound
// envelopes and persists them on the local queue.
//
// The read-increment-write of the bookkeeping record is serialized per
// instance; a duplicated sequence number would break the exporter's
// deduplication guarantee downstream, so the increment is made durable
// before the envelope itself is written. A crash between the two steps
// skips a sequence number rather than duplicating one.
type Sender struct {
	// Originator is the identity envelopes are sent under.
	Originator string

	// Destination is the identity of the node envelopes are addressed to.
	Destination string

	// Topic is the topic envelopes are sent on.
	Topic string

	// Queue is the local outbound queue.
	Queue persistence.Store

	// Bookkeeping tracks the next sequence number to assign. It must be
	// scoped to this sender's own identity.
	Bookkeeping *bookkeeping.Store

	// Logger is the target for log messages about sent envelopes.
	// If it is nil, logging.DefaultLogger is used.
	Logger logging.Logger

	m sync.Mutex
}

// Send constructs the next envelope on this sender's stream and persists it
// on the outbound queue.
//
// It returns the stored record; the record's body is the JSON representation
// of the envelope and the record carries the storage revision assigned by
// the write.
func (s *Sender) Send(
	ctx context.Context,
	contentType string,
	data string,
) (persistence.Record, error) {
	s.m.Lock()
	defer s.m.Unlock()

	// The bookkeeping session is established lazily; the first call creates
	// the cursor record, subsequent calls read it back.
	info, err := s.Bookkeeping.GetOrCreate(ctx, s.Originator)
	if err != nil {
		return persistence.Record{}, err
	}

	env := envelope.Envelope{
		Originator:  s.Originator,
		Destination: s.Destination,
		Topic:       s.Topic,
		SequenceNo:  info.SequenceNo,
		ContentType: contentType,
		Data:        data,
	}
	env.NewID()

	// The increment must be durable before the envelope is written,
	// otherwise a crash could hand the same sequence number to two
	// envelopes.
	if err := s.Bookkeeping.Advance(
		ctx,
		s.Originator,
		info.SequenceNo+1,
	); err != nil {
		return persistence.Record{}, err
	}

	rec, err := s.Queue.Put(
		ctx,
		persistence.Record{
			ID:   env.ID,
			Body: envelope.Marshal(env),
		},
	)
	if err != nil {
		return persistence.Record{}, err
	}

	logging.Debug(
		s.Logger,
		"queued envelope %#v",
		env.ID,
	)

	return rec, nil
}
