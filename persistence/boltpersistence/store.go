package boltpersistence

import (
	"context"
	"sync"

	"github.com/relaymesh/spipe/internal/x/bboltx"
	"github.com/relaymesh/spipe/persistence"
	"go.etcd.io/bbolt"
)

// store is an implementation of persistence.Store backed by a single
// top-level BoltDB bucket.
//
// Keys are record IDs; values are the record revision and body, marshaled as
// described in marshal.go. Storage-native order is therefore the
// lexicographic order of the record IDs.
type store struct {
	db   *bbolt.DB
	name []byte

	m       sync.RWMutex
	release func(string) error
}

func (s *store) Put(_ context.Context, rec persistence.Record) (_ persistence.Record, err error) {
	defer bboltx.Recover(&err)

	s.m.RLock()
	defer s.m.RUnlock()

	if s.release == nil {
		return persistence.Record{}, persistence.ErrStoreClosed
	}

	bboltx.Update(
		s.db,
		func(tx *bbolt.Tx) {
			b := bboltx.CreateBucketIfNotExists(tx, s.name)

			if cur := revisionOf(b.Get([]byte(rec.ID))); rec.Revision != cur {
				bboltx.Must(persistence.ConflictError{
					ID:       rec.ID,
					Revision: rec.Revision,
				})
			}

			rec.Revision++
			bboltx.Put(b, []byte(rec.ID), marshalRecord(rec))
		},
	)

	return rec, nil
}

func (s *store) Get(_ context.Context, id string) (_ persistence.Record, err error) {
	defer bboltx.Recover(&err)

	s.m.RLock()
	defer s.m.RUnlock()

	if s.release == nil {
		return persistence.Record{}, persistence.ErrStoreClosed
	}

	var rec persistence.Record

	bboltx.View(
		s.db,
		func(tx *bbolt.Tx) {
			b := bboltx.Bucket(tx, s.name)
			if b == nil {
				bboltx.Must(persistence.UnknownRecordError{ID: id})
			}

			data := b.Get([]byte(id))
			if data == nil {
				bboltx.Must(persistence.UnknownRecordError{ID: id})
			}

			rec = unmarshalRecord(id, data)
		},
	)

	return rec, nil
}

func (s *store) List(_ context.Context, n int, bodies bool) (_ []persistence.Record, err error) {
	defer bboltx.Recover(&err)

	s.m.RLock()
	defer s.m.RUnlock()

	if s.release == nil {
		return nil, persistence.ErrStoreClosed
	}

	var result []persistence.Record

	bboltx.View(
		s.db,
		func(tx *bbolt.Tx) {
			b := bboltx.Bucket(tx, s.name)
			if b == nil {
				return
			}

			cur := b.Cursor()

			for k, v := cur.First(); k != nil; k, v = cur.Next() {
				rec := unmarshalRecord(string(k), v)
				if !bodies {
					rec.Body = nil
				}

				result = append(result, rec)

				if n > 0 && len(result) == n {
					return
				}
			}
		},
	)

	return result, nil
}

func (s *store) Remove(_ context.Context, rec persistence.Record) (err error) {
	defer bboltx.Recover(&err)

	s.m.RLock()
	defer s.m.RUnlock()

	if s.release == nil {
		return persistence.ErrStoreClosed
	}

	bboltx.Update(
		s.db,
		func(tx *bbolt.Tx) {
			b := bboltx.Bucket(tx, s.name)

			var cur uint64
			if b != nil {
				cur = revisionOf(b.Get([]byte(rec.ID)))
			}

			if cur == 0 || rec.Revision != cur {
				bboltx.Must(persistence.ConflictError{
					ID:       rec.ID,
					Revision: rec.Revision,
				})
			}

			bboltx.Delete(b, []byte(rec.ID))
		},
	)

	return nil
}

func (s *store) Close() error {
	s.m.Lock()
	defer s.m.Unlock()

	if s.release == nil {
		return persistence.ErrStoreClosed
	}

	r := s.release
	s.db = nil
	s.release = nil

	return r(string(s.name))
}
