package persistence

import (
	"context"
	"sync"

	"github.com/dogmatiq/dodeca/logging"
	"go.uber.org/multierr"
)

// StoreSet is a collection of stores opened through a single provider.
//
// Stores are opened lazily on first reference and cached for the lifetime of
// the set. It is used wherever one store per topic is required: opening a
// store for one topic never conflicts with another topic's store.
type StoreSet struct {
	// Provider is used to open the stores in the set.
	Provider Provider

	// Logger is the target for log messages about the stores in the set.
	// If it is nil, logging.DefaultLogger is used.
	Logger logging.Logger

	m      sync.Mutex
	stores map[string]Store
}

// Get returns the store with the given name, opening it if this is the first
// reference to that name.
func (s *StoreSet) Get(ctx context.Context, name string) (Store, error) {
	s.m.Lock()
	defer s.m.Unlock()

	if st, ok := s.stores[name]; ok {
		return st, nil
	}

	st, err := s.Provider.Open(ctx, name)
	if err != nil {
		return nil, err
	}

	if s.stores == nil {
		s.stores = map[string]Store{}
	}

	s.stores[name] = st

	logging.Debug(
		s.Logger,
		"opened store %#v",
		name,
	)

	return st, nil
}

// Close closes all of the stores in the set.
//
// Close failures are logged and swallowed so that shutdown always completes;
// the returned error is informational only.
func (s *StoreSet) Close() error {
	s.m.Lock()
	defer s.m.Unlock()

	var err error

	for name, st := range s.stores {
		if e := st.Close(); e != nil {
			logging.Log(
				s.Logger,
				"could not close store %#v: %s",
				name,
				e,
			)

			err = multierr.Append(err, e)
		}
	}

	s.stores = nil

	return err
}
