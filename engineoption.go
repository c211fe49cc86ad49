package spipe

import (
	"time"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/linger"
	"github.com/dogmatiq/linger/backoff"
	"github.com/relaymesh/spipe/persistence"
)

var (
	// DefaultWorkerBackoff is the default backoff strategy for restarting
	// failed workers.
	//
	// It is overridden by the WithWorkerBackoff() option.
	DefaultWorkerBackoff backoff.Strategy = backoff.WithTransforms(
		backoff.Exponential(100*time.Millisecond),
		linger.FullJitter,
		linger.Limiter(0, 1*time.Hour),
	)

	// DefaultLogger is the default target for log messages produced by the
	// engine.
	//
	// It is overridden by the WithLogger() option.
	DefaultLogger = logging.DefaultLogger
)

// EngineOption configures the behavior of an engine.
type EngineOption func(*engineOptions)

// WithPersistence returns an engine option that sets the persistence provider
// used for every role, overriding the database URLs in the node
// configuration.
//
// If this option is omitted or p is nil, each role's database URL selects its
// own provider.
func WithPersistence(p persistence.Provider) EngineOption {
	return func(opts *engineOptions) {
		opts.PersistenceProvider = p
	}
}

// WithWorkerBackoff returns an engine option that sets the backoff strategy
// used to delay worker restarts.
//
// If this option is omitted or s is nil DefaultWorkerBackoff is used.
func WithWorkerBackoff(s backoff.Strategy) EngineOption {
	return func(opts *engineOptions) {
		opts.WorkerBackoff = s
	}
}

// WithLogger returns an engine option that sets the target for log messages
// produced by the engine.
//
// If this option is omitted or l is nil DefaultLogger is used.
func WithLogger(l logging.Logger) EngineOption {
	return func(opts *engineOptions) {
		opts.Logger = l
	}
}

// engineOptions is a container for a fully-resolved set of engine options.
type engineOptions struct {
	PersistenceProvider persistence.Provider
	WorkerBackoff       backoff.Strategy
	Logger              logging.Logger
}

// resolveEngineOptions returns a fully-populated set of engine options built
// from the given set of option functions.
func resolveEngineOptions(options ...EngineOption) *engineOptions {
	opts := &engineOptions{}

	for _, o := range options {
		o(opts)
	}

	if opts.WorkerBackoff == nil {
		opts.WorkerBackoff = DefaultWorkerBackoff
	}

	if opts.Logger == nil {
		opts.Logger = DefaultLogger
	}

	return opts
}
