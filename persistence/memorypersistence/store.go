package memorypersistence

import (
	"context"
	"sync"

	"github.com/relaymesh/spipe/persistence"
)

// database holds the records shared by every store handle opened with the
// same name.
type database struct {
	m       sync.RWMutex
	records map[string]persistence.Record
	order   []string // insertion order, the provider's storage-native order
}

// store is a handle onto a database. Closing the handle does not discard the
// database; other handles remain usable.
type store struct {
	db *database

	m      sync.RWMutex
	closed bool
}

func (s *store) Put(_ context.Context, rec persistence.Record) (persistence.Record, error) {
	if err := s.guard(); err != nil {
		return persistence.Record{}, err
	}

	s.db.m.Lock()
	defer s.db.m.Unlock()

	cur, ok := s.db.records[rec.ID]

	if ok {
		if rec.Revision != cur.Revision {
			return persistence.Record{}, persistence.ConflictError{
				ID:       rec.ID,
				Revision: rec.Revision,
			}
		}
	} else {
		if rec.Revision != 0 {
			return persistence.Record{}, persistence.ConflictError{
				ID:       rec.ID,
				Revision: rec.Revision,
			}
		}

		if s.db.records == nil {
			s.db.records = map[string]persistence.Record{}
		}

		s.db.order = append(s.db.order, rec.ID)
	}

	rec.Revision++
	rec.Body = clone(rec.Body)
	s.db.records[rec.ID] = rec

	return rec, nil
}

func (s *store) Get(_ context.Context, id string) (persistence.Record, error) {
	if err := s.guard(); err != nil {
		return persistence.Record{}, err
	}

	s.db.m.RLock()
	defer s.db.m.RUnlock()

	rec, ok := s.db.records[id]
	if !ok {
		return persistence.Record{}, persistence.UnknownRecordError{ID: id}
	}

	rec.Body = clone(rec.Body)

	return rec, nil
}

func (s *store) List(_ context.Context, n int, bodies bool) ([]persistence.Record, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}

	s.db.m.RLock()
	defer s.db.m.RUnlock()

	var result []persistence.Record

	for _, id := range s.db.order {
		rec, ok := s.db.records[id]
		if !ok {
			continue
		}

		if bodies {
			rec.Body = clone(rec.Body)
		} else {
			rec.Body = nil
		}

		result = append(result, rec)

		if n > 0 && len(result) == n {
			break
		}
	}

	return result, nil
}

func (s *store) Remove(_ context.Context, rec persistence.Record) error {
	if err := s.guard(); err != nil {
		return err
	}

	s.db.m.Lock()
	defer s.db.m.Unlock()

	cur, ok := s.db.records[rec.ID]
	if !ok || rec.Revision != cur.Revision {
		return persistence.ConflictError{
			ID:       rec.ID,
			Revision: rec.Revision,
		}
	}

	delete(s.db.records, rec.ID)

	for i, id := range s.db.order {
		if id == rec.ID {
			s.db.order = append(s.db.order[:i], s.db.order[i+1:]...)
			break
		}
	}

	return nil
}

func (s *store) Close() error {
	s.m.Lock()
	defer s.m.Unlock()

	if s.closed {
		return persistence.ErrStoreClosed
	}

	s.closed = true

	return nil
}

// guard returns ErrStoreClosed if the handle has been closed.
func (s *store) guard() error {
	s.m.RLock()
	defer s.m.RUnlock()

	if s.closed {
		return persistence.ErrStoreClosed
	}

	return nil
}

func clone(data []byte) []byte {
	if data == nil {
		return nil
	}

	c := make([]byte, len(data))
	copy(c, data)

	return c
}
