// Package fixtures provides test doubles for the pipeline's interfaces.
package fixtures

import (
	"context"

	"github.com/relaymesh/spipe/persistence"
	"github.com/relaymesh/spipe/persistence/memorypersistence"
)

// ProviderStub is a test implementation of the persistence.Provider interface.
type ProviderStub struct {
	persistence.Provider

	OpenFunc func(context.Context, string) (persistence.Store, error)
}

// Open returns the store with the given name, creating it if necessary.
func (p *ProviderStub) Open(ctx context.Context, n string) (persistence.Store, error) {
	if p.OpenFunc != nil {
		return p.OpenFunc(ctx, n)
	}

	if p.Provider != nil {
		s, err := p.Provider.Open(ctx, n)
		if s != nil {
			s = &StoreStub{Store: s}
		}
		return s, err
	}

	return nil, nil
}

// StoreStub is a test implementation of the persistence.Store interface.
type StoreStub struct {
	persistence.Store

	PutFunc    func(context.Context, persistence.Record) (persistence.Record, error)
	GetFunc    func(context.Context, string) (persistence.Record, error)
	ListFunc   func(context.Context, int, bool) ([]persistence.Record, error)
	RemoveFunc func(context.Context, persistence.Record) error
	CloseFunc  func() error
}

// NewStoreStub returns a new store stub backed by an in-memory persistence
// provider.
func NewStoreStub() *StoreStub {
	p := &ProviderStub{
		Provider: &memorypersistence.Provider{},
	}

	s, err := p.Open(context.Background(), "<store>")
	if err != nil {
		panic(err)
	}

	return s.(*StoreStub)
}

// Put persists rec.
func (s *StoreStub) Put(ctx context.Context, rec persistence.Record) (persistence.Record, error) {
	if s.PutFunc != nil {
		return s.PutFunc(ctx, rec)
	}

	if s.Store != nil {
		return s.Store.Put(ctx, rec)
	}

	return persistence.Record{}, nil
}

// Get loads the record with the given ID.
func (s *StoreStub) Get(ctx context.Context, id string) (persistence.Record, error) {
	if s.GetFunc != nil {
		return s.GetFunc(ctx, id)
	}

	if s.Store != nil {
		return s.Store.Get(ctx, id)
	}

	return persistence.Record{}, nil
}

// List returns up to n records in storage-native order.
func (s *StoreStub) List(ctx context.Context, n int, bodies bool) ([]persistence.Record, error) {
	if s.ListFunc != nil {
		return s.ListFunc(ctx, n, bodies)
	}

	if s.Store != nil {
		return s.Store.List(ctx, n, bodies)
	}

	return nil, nil
}

// Remove deletes rec from the store.
func (s *StoreStub) Remove(ctx context.Context, rec persistence.Record) error {
	if s.RemoveFunc != nil {
		return s.RemoveFunc(ctx, rec)
	}

	if s.Store != nil {
		return s.Store.Remove(ctx, rec)
	}

	return nil
}

// Close closes the store.
func (s *StoreStub) Close() error {
	if s.CloseFunc != nil {
		return s.CloseFunc()
	}

	if s.Store != nil {
		return s.Store.Close()
	}

	return nil
}
