package forwarder

import (
	"context"
	"time"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/linger"
	"github.com/relaymesh/spipe/breaker"
	"github.com/relaymesh/spipe/envelope"
	"github.com/relaymesh/spipe/persistence"
)

// Delivery is the result of one delivery attempt made through the breaker.
type Delivery struct {
	// Delivered is true if the envelope reached the peer. A false value with
	// a nil error means the breaker short-circuited the attempt; the envelope
	// stays on the queue.
	Delivered bool
}

// Forwarder drains the local queue of a single topic by delivering each
// buffered envelope to the next hop.
//
// An envelope is removed from the queue only after the peer has acknowledged
// it; a crash after delivery but before removal re-delivers the envelope,
// which the peer absorbs idempotently.
type Forwarder struct {
	// Topic is the topic whose queue is drained.
	Topic string

	// Queue is the local queue of buffered envelopes.
	Queue persistence.Store

	// Archive receives delivered envelopes. If it is nil, delivered envelopes
	// are discarded after removal from the queue.
	Archive persistence.Store

	// Deliver is the breaker-protected delivery operation.
	Deliver *breaker.Breaker[envelope.Envelope, Delivery]

	// Limit is the largest number of queue entries drained per cycle.
	Limit int

	// Interval is the delay between cycles.
	Interval time.Duration

	// Logger is the target for log messages about forwarded envelopes.
	// If it is nil, logging.DefaultLogger is used.
	Logger logging.Logger
}

// Run forwards queued envelopes until ctx is canceled or storage fails.
//
// Delivery failures do not stop the loop; the failed envelope is retried on
// the next cycle and the breaker decides when to stop hitting the peer
// altogether.
func (f *Forwarder) Run(ctx context.Context) error {
	for {
		if err := f.cycle(ctx); err != nil {
			return err
		}

		if err := linger.Sleep(ctx, f.Interval); err != nil {
			return err
		}
	}
}

// cycle drains up to f.Limit entries from the queue.
func (f *Forwarder) cycle(ctx context.Context) error {
	records, err := f.Queue.List(ctx, f.Limit, true)
	if err != nil {
		return err
	}

	for _, rec := range records {
		// A failed delivery leaves its entry on the queue and must not block
		// the rest of the batch; only storage failures end the cycle.
		if err := f.forward(ctx, rec); err != nil {
			return err
		}

		if err := ctx.Err(); err != nil {
			return err
		}
	}

	return nil
}

// forward delivers a single queued envelope and, on acknowledgment, archives
// and removes it.
func (f *Forwarder) forward(
	ctx context.Context,
	rec persistence.Record,
) error {
	env, err := envelope.Unmarshal(rec.Body)
	if err != nil {
		// A malformed queue entry can never be delivered; leaving it in place
		// would wedge the queue permanently.
		logging.Log(
			f.Logger,
			"removing malformed queue entry %#v: %s",
			rec.ID,
			err,
		)

		return f.Queue.Remove(ctx, rec)
	}

	res, err := f.Deliver.Invoke(ctx, env)
	if err != nil {
		logging.Log(
			f.Logger,
			"cannot deliver envelope %#v: %s",
			rec.ID,
			err,
		)

		return nil
	}

	if !res.Delivered {
		logging.Debug(
			f.Logger,
			"delivery of envelope %#v short-circuited",
			rec.ID,
		)

		return nil
	}

	logging.Debug(
		f.Logger,
		"delivered envelope %#v",
		rec.ID,
	)

	return f.retire(ctx, rec)
}

// retire archives a delivered envelope and removes it from the queue.
//
// The two writes are not atomic. A crash in between leaves the envelope both
// archived and queued; the next cycle re-delivers it, the peer reports it as
// already stored, and the archive write is absorbed as a conflict.
func (f *Forwarder) retire(
	ctx context.Context,
	rec persistence.Record,
) error {
	if f.Archive != nil {
		if _, err := f.Archive.Put(
			ctx,
			persistence.Record{
				ID:   rec.ID,
				Body: rec.Body,
			},
		); err != nil && !persistence.IsConflict(err) {
			return err
		}
	}

	return f.Queue.Remove(ctx, rec)
}
