package boltpersistence

import (
	"context"
	"os"
	"sync"

	"github.com/relaymesh/spipe/internal/x/bboltx"
	"github.com/relaymesh/spipe/persistence"
	"go.etcd.io/bbolt"
)

// Provider is an implementation of persistence.Provider for BoltDB that uses
// an existing open database.
//
// Each named store occupies its own top-level bucket within the database.
type Provider struct {
	provider

	// DB is the BoltDB database to use.
	DB *bbolt.DB
}

// Open returns the store with the given name, creating it if necessary.
func (p *Provider) Open(ctx context.Context, name string) (persistence.Store, error) {
	return p.open(
		ctx,
		name,
		func(context.Context) (*bbolt.DB, error) {
			return p.DB, nil
		},
		func(*bbolt.DB) error {
			// Don't actually close the database, since we didn't open it.
			return nil
		},
	)
}

// FileProvider is an implementation of persistence.Provider for BoltDB that
// opens a BoltDB database file.
//
// The file is opened when the first store is opened, and closed when the
// last remaining store is closed.
type FileProvider struct {
	provider

	// Path is the path to the BoltDB database to open or create.
	Path string

	// Mode is the file mode for the created file.
	// If it is zero, 0600 (owner read/write only) is used.
	Mode os.FileMode

	// Options is the BoltDB options for the database.
	// If it is nil, bbolt.DefaultOptions is used.
	Options *bbolt.Options
}

// Open returns the store with the given name, creating it if necessary.
func (p *FileProvider) Open(ctx context.Context, name string) (persistence.Store, error) {
	return p.open(
		ctx,
		name,
		func(ctx context.Context) (*bbolt.DB, error) {
			return bboltx.Open(ctx, p.Path, p.Mode, p.Options)
		},
		func(db *bbolt.DB) error {
			return db.Close()
		},
	)
}

// provider is the common implementation of Provider and FileProvider.
type provider struct {
	m      sync.Mutex
	db     *bbolt.DB
	close  func(db *bbolt.DB) error
	stores map[string]struct{}
}

// open returns a store bound to a top-level bucket named after the store.
func (p *provider) open(
	ctx context.Context,
	name string,
	open func(context.Context) (*bbolt.DB, error),
	close func(db *bbolt.DB) error,
) (persistence.Store, error) {
	p.m.Lock()
	defer p.m.Unlock()

	if p.db == nil {
		db, err := open(ctx)
		if err != nil {
			return nil, err
		}

		p.db = db
		p.close = close
	}

	if p.stores == nil {
		p.stores = map[string]struct{}{}
	} else if _, ok := p.stores[name]; ok {
		return nil, persistence.ErrStoreLocked
	}

	p.stores[name] = struct{}{}

	return &store{
		db:      p.db,
		name:    []byte(name),
		release: p.release,
	}, nil
}

// release marks a previously-opened store as closed, closing the database
// once no stores remain open.
func (p *provider) release(name string) error {
	p.m.Lock()
	defer p.m.Unlock()

	delete(p.stores, name)

	if len(p.stores) > 0 {
		return nil
	}

	db := p.db
	close := p.close

	p.db = nil
	p.close = nil

	return close(db)
}
