// Package bookkeeping tracks per-originator progress cursors.
//
// A cursor records the next sequence number due for processing by the role
// that owns the store. The sender and the exporter each keep their own
// bookkeeping namespace; the two are never mixed.
package bookkeeping

import (
	"context"
	"fmt"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/relaymesh/spipe/persistence"
	"golang.org/x/sync/errgroup"
)

// A Record is the cursor for a single (topic, originator) pair.
type Record struct {
	// Originator is the originator the cursor belongs to.
	Originator string

	// SequenceNo is the next sequence number due for processing. A freshly
	// created record starts at zero.
	SequenceNo uint64

	// Revision is the storage revision of the record as it was read.
	Revision uint64
}

// Store keeps one cursor record per originator of interest, for one topic.
//
// Records are created lazily with a sequence number of zero and advanced by
// read-modify-write. The underlying store's revision check serializes
// concurrent writers: an Advance that loses the race fails with a conflict
// and the caller must retry from GetOrCreate.
type Store struct {
	// Records is the store holding the cursor records.
	Records persistence.Store

	// Topic is the topic this store keeps cursors for.
	Topic string

	// Originators is the set of originators of interest.
	Originators []string

	// Logger is the target for log messages about cursor activity.
	// If it is nil, logging.DefaultLogger is used.
	Logger logging.Logger
}

// RecordKey returns the bookkeeping record key for an originator.
//
// The key is deterministic and stable across restarts.
func (s *Store) RecordKey(originator string) string {
	return fmt.Sprintf("%s-%s", s.Topic, originator)
}

// GetOrCreate returns the cursor record for an originator, creating it with
// a sequence number of zero if it does not exist yet.
//
// It fails only if the record can neither be created nor read.
func (s *Store) GetOrCreate(ctx context.Context, originator string) (Record, error) {
	key := s.RecordKey(originator)

	rec, err := s.Records.Put(
		ctx,
		persistence.Record{
			ID:   key,
			Body: marshalCursor(0),
		},
	)
	if err == nil {
		logging.Log(
			s.Logger,
			"created bookkeeping record %#v",
			key,
		)

		return Record{
			Originator: originator,
			SequenceNo: 0,
			Revision:   rec.Revision,
		}, nil
	}

	if !persistence.IsConflict(err) {
		return Record{}, err
	}

	// The record already exists, read it instead.
	rec, err = s.Records.Get(ctx, key)
	if err != nil {
		return Record{}, fmt.Errorf(
			"cannot create or read bookkeeping record %#v: %w",
			key,
			err,
		)
	}

	seq, err := unmarshalCursor(rec.Body)
	if err != nil {
		return Record{}, err
	}

	return Record{
		Originator: originator,
		SequenceNo: seq,
		Revision:   rec.Revision,
	}, nil
}

// Advance sets the originator's cursor to seq.
//
// It fails if the record does not exist, or if the record was written by
// somebody else since it was last read, in which case the caller must retry
// from GetOrCreate.
func (s *Store) Advance(ctx context.Context, originator string, seq uint64) error {
	key := s.RecordKey(originator)

	rec, err := s.Records.Get(ctx, key)
	if err != nil {
		return err
	}

	rec.Body = marshalCursor(seq)

	if _, err := s.Records.Put(ctx, rec); err != nil {
		return err
	}

	logging.Debug(
		s.Logger,
		"advanced bookkeeping record %#v to %d",
		key,
		seq,
	)

	return nil
}

// InitializeAll creates or loads the cursor record for every configured
// originator.
//
// Records are initialized concurrently. It fails if any record fails, without
// rolling back the records that succeeded.
func (s *Store) InitializeAll(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, o := range s.Originators {
		o := o // capture loop variable

		g.Go(func() error {
			_, err := s.GetOrCreate(ctx, o)
			return err
		})
	}

	return g.Wait()
}
