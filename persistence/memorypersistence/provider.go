package memorypersistence

import (
	"context"
	"sync"

	"github.com/relaymesh/spipe/persistence"
)

// Provider is an implementation of persistence.Provider that keeps records in
// memory.
//
// It is intended for tests and volatile deployments; nothing survives a
// restart.
type Provider struct {
	m         sync.Mutex
	databases map[string]*database
}

// Open returns the store with the given name, creating it if necessary.
//
// Stores opened with the same name through the same provider share their
// records.
func (p *Provider) Open(_ context.Context, name string) (persistence.Store, error) {
	p.m.Lock()
	defer p.m.Unlock()

	if p.databases == nil {
		p.databases = map[string]*database{}
	}

	db, ok := p.databases[name]
	if !ok {
		db = &database{}
		p.databases[name] = db
	}

	return &store{db: db}, nil
}
