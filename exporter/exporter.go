package exporter

import (
	"context"
	"time"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/linger"
	"github.com/relaymesh/spipe/bookkeeping"
	"github.com/relaymesh/spipe/envelope"
	"github.com/relaymesh/spipe/persistence"
	"golang.org/x/sync/errgroup"
)

// Exporter drains the local queue of a single topic by writing each
// originator's envelopes to the sink in strict sequence order.
//
// Each originator's stream advances independently. An envelope is only
// exported when its sequence number is the next one due; a gap in the stream
// stalls that originator until the missing envelope arrives, while other
// originators keep flowing.
type Exporter struct {
	// Topic is the topic whose queue is drained.
	Topic string

	// Originators is the set of originators whose streams are exported.
	Originators []string

	// Queue is the local queue of buffered envelopes.
	Queue persistence.Store

	// Archive receives exported envelopes. If it is nil, exported envelopes
	// are discarded after removal from the queue.
	Archive persistence.Store

	// Bookkeeping tracks the next sequence number due per originator. It must
	// be scoped to this exporter alone; two exporters sharing a namespace
	// would steal each other's cursor advances.
	Bookkeeping *bookkeeping.Store

	// Sink is the destination exported payloads are written to.
	Sink Sink

	// Interval is the delay before re-checking an originator whose next
	// envelope has not arrived yet.
	Interval time.Duration

	// Logger is the target for log messages about exported envelopes.
	// If it is nil, logging.DefaultLogger is used.
	Logger logging.Logger
}

// Run exports queued envelopes until ctx is canceled or an originator's
// stream fails.
//
// All bookkeeping records are initialized up front so that a cursor exists
// for every originator before any stream starts moving.
func (e *Exporter) Run(ctx context.Context) error {
	if err := e.Bookkeeping.InitializeAll(ctx); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	for _, o := range e.Originators {
		o := o // capture loop variable

		g.Go(func() error {
			return e.exportStream(ctx, o)
		})
	}

	return g.Wait()
}

// exportStream exports one originator's envelopes in sequence order.
//
// Envelopes that are already available are exported back-to-back; the loop
// only sleeps when the next envelope due has not arrived.
func (e *Exporter) exportStream(ctx context.Context, originator string) error {
	for {
		ok, err := e.exportNext(ctx, originator)
		if err != nil {
			return err
		}

		if ok {
			continue
		}

		if err := linger.Sleep(ctx, e.Interval); err != nil {
			return err
		}
	}
}

// exportNext exports the next envelope due on an originator's stream, if it
// has arrived.
//
// It returns false if the envelope is not available yet.
func (e *Exporter) exportNext(ctx context.Context, originator string) (bool, error) {
	info, err := e.Bookkeeping.GetOrCreate(ctx, originator)
	if err != nil {
		return false, err
	}

	id := envelope.ID(e.Topic, originator, info.SequenceNo)

	rec, err := e.Queue.Get(ctx, id)
	if err != nil {
		if persistence.IsUnknownRecord(err) {
			return false, nil
		}

		return false, err
	}

	env, err := envelope.Unmarshal(rec.Body)
	if err != nil {
		return false, err
	}

	// The sink receives the full serialized envelope, not just the payload,
	// so the destination can recover the routing and sequencing meta-data.
	if err := e.Sink.Write(env.ID, string(rec.Body)); err != nil {
		return false, err
	}

	// The cursor moves before the queue entry is removed. A crash in between
	// strands an already-exported entry on the queue, which is a leak but
	// never a stall; the reverse order could remove an envelope whose export
	// is then never recorded, wedging the stream permanently.
	if err := e.Bookkeeping.Advance(
		ctx,
		originator,
		info.SequenceNo+1,
	); err != nil {
		return false, err
	}

	logging.Log(
		e.Logger,
		"exported envelope %#v",
		env.ID,
	)

	return true, e.retire(ctx, rec)
}

// retire archives an exported envelope and removes it from the queue.
func (e *Exporter) retire(
	ctx context.Context,
	rec persistence.Record,
) error {
	if e.Archive != nil {
		if _, err := e.Archive.Put(
			ctx,
			persistence.Record{
				ID:   rec.ID,
				Body: rec.Body,
			},
		); err != nil && !persistence.IsConflict(err) {
			return err
		}
	}

	return e.Queue.Remove(ctx, rec)
}
