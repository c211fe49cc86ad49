// Package spipe is a store-and-forward messaging pipeline.
//
// Envelopes are relayed hop-by-hop between nodes: a sender assigns dense
// per-originator sequence numbers and queues envelopes locally, an ingestion
// service buffers inbound envelopes on per-topic queues, a forwarder drains
// queues toward the next hop behind a circuit breaker, and an exporter
// materializes each originator's stream on the filesystem in strict sequence
// order.
package spipe

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/google/uuid"
	"github.com/relaymesh/spipe/bookkeeping"
	"github.com/relaymesh/spipe/breaker"
	"github.com/relaymesh/spipe/config"
	"github.com/relaymesh/spipe/envelope"
	"github.com/relaymesh/spipe/exporter"
	"github.com/relaymesh/spipe/forwarder"
	"github.com/relaymesh/spipe/ingress"
	"github.com/relaymesh/spipe/internal/x/loggingx"
	"github.com/relaymesh/spipe/persistence"
	"github.com/relaymesh/spipe/persistence/boltpersistence"
	"github.com/relaymesh/spipe/persistence/memorypersistence"
	"github.com/relaymesh/spipe/sender"
	"github.com/relaymesh/spipe/worker"
)

// Engine runs the roles enabled by a node configuration.
type Engine struct {
	opts *engineOptions
	cfg  config.Node

	// key distinguishes this engine instance in log output.
	key string

	m    sync.Mutex
	sets map[string]*persistence.StoreSet
}

// New returns an engine that runs the roles enabled by cfg.
//
// cfg is assumed to be valid; configuration loaded through config.Load() has
// already been validated.
func New(cfg config.Node, options ...EngineOption) *Engine {
	return &Engine{
		opts: resolveEngineOptions(options...),
		cfg:  cfg,
		key:  uuid.NewString(),
	}
}

// Run runs the enabled roles until ctx is canceled or a role fails in a way
// that can not be retried.
func (e *Engine) Run(ctx context.Context) error {
	defer e.close()

	workers := map[string]worker.Worker{}

	if e.cfg.Receiver != nil {
		w, err := e.newReceiver(ctx)
		if err != nil {
			return err
		}

		workers["receiver"] = w
	}

	if e.cfg.Forwarder != nil {
		w, err := e.newForwarder(ctx)
		if err != nil {
			return err
		}

		workers["forwarder"] = w
	}

	if e.cfg.Exporter != nil {
		w, err := e.newExporter(ctx)
		if err != nil {
			return err
		}

		workers["exporter"] = w
	}

	s := &worker.Supervisor{
		Workers:         workers,
		BackoffStrategy: e.opts.WorkerBackoff,
		Logger:          e.logger("supervisor"),
	}

	return s.Run(ctx)
}

// Sender returns the originating side of the pipeline, configured from the
// node's sender section.
//
// The returned sender shares the engine's storage; envelopes queued through
// it are picked up by the forwarder on the same database.
func (e *Engine) Sender(ctx context.Context) (*sender.Sender, error) {
	cfg := e.cfg.Sender
	if cfg == nil {
		return nil, errors.New("no sender role configured")
	}

	stores, err := e.storeSet(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	queue, err := stores.Get(ctx, cfg.Topic)
	if err != nil {
		return nil, err
	}

	records, err := stores.Get(ctx, "sender-bookkeeping")
	if err != nil {
		return nil, err
	}

	logger := e.logger("sender")

	return &sender.Sender{
		Originator:  cfg.Originator,
		Destination: cfg.Destination,
		Topic:       cfg.Topic,
		Queue:       queue,
		Bookkeeping: &bookkeeping.Store{
			Records:     records,
			Topic:       cfg.Topic,
			Originators: []string{cfg.Originator},
			Logger:      logger,
		},
		Logger: logger,
	}, nil
}

// newReceiver constructs the ingestion service.
func (e *Engine) newReceiver(ctx context.Context) (worker.Worker, error) {
	cfg := e.cfg.Receiver

	stores, err := e.storeSet(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	return &ingress.Server{
		Config: *cfg,
		Queues: stores,
		Logger: e.logger("receiver"),
	}, nil
}

// newForwarder constructs the forwarding worker, its delivery client and the
// breaker that protects it.
func (e *Engine) newForwarder(ctx context.Context) (worker.Worker, error) {
	cfg := e.cfg.Forwarder
	logger := e.logger("forwarder")

	stores, err := e.storeSet(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	queue, err := stores.Get(ctx, cfg.Topic)
	if err != nil {
		return nil, err
	}

	archiveName := cfg.ForwardedStore
	if archiveName == "" {
		archiveName = "forwarded"
	}

	archive, err := stores.Get(ctx, archiveName)
	if err != nil {
		return nil, err
	}

	timeout := cfg.Breaker.Timeout.AsDuration()
	if timeout == 0 {
		timeout = breaker.DefaultTimeout
	}

	client, err := forwarder.NewClient(cfg.Host, timeout)
	if err != nil {
		return nil, err
	}

	deliver, err := breaker.New(
		func(ctx context.Context, env envelope.Envelope) (forwarder.Delivery, error) {
			if err := client.Deliver(ctx, env); err != nil {
				return forwarder.Delivery{}, err
			}

			return forwarder.Delivery{Delivered: true}, nil
		},
		func(context.Context, envelope.Envelope) (forwarder.Delivery, error) {
			return forwarder.Delivery{}, nil
		},
		breaker.Options{
			Name:         cfg.Topic,
			MaxFailures:  cfg.Breaker.MaxFailures,
			Timeout:      timeout,
			ResetTimeout: cfg.Breaker.ResetTimeout.AsDuration(),
		},
		logger,
	)
	if err != nil {
		return nil, err
	}

	return &forwarder.Forwarder{
		Topic:    cfg.Topic,
		Queue:    queue,
		Archive:  archive,
		Deliver:  deliver,
		Limit:    cfg.Limit,
		Interval: cfg.Interval.AsDuration(),
		Logger:   logger,
	}, nil
}

// newExporter constructs the export worker.
func (e *Engine) newExporter(ctx context.Context) (worker.Worker, error) {
	cfg := e.cfg.Exporter
	logger := e.logger("exporter")

	stores, err := e.storeSet(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	queue, err := stores.Get(ctx, cfg.Topic)
	if err != nil {
		return nil, err
	}

	archiveName := cfg.ExportedStore
	if archiveName == "" {
		archiveName = "exported"
	}

	archive, err := stores.Get(ctx, archiveName)
	if err != nil {
		return nil, err
	}

	// The bookkeeping namespace includes the exporter's ID so that two
	// exporters of the same topic never steal each other's cursor advances.
	records, err := stores.Get(ctx, cfg.Topic+"-bookkeeping-"+cfg.ID)
	if err != nil {
		return nil, err
	}

	return &exporter.Exporter{
		Topic:       cfg.Topic,
		Originators: cfg.Originators,
		Queue:       queue,
		Archive:     archive,
		Bookkeeping: &bookkeeping.Store{
			Records:     records,
			Topic:       cfg.Topic,
			Originators: cfg.Originators,
			Logger:      logger,
		},
		Sink: &exporter.DirectorySink{
			Dir: cfg.ExportDir,
		},
		Interval: cfg.Interval.AsDuration(),
		Logger:   logger,
	}, nil
}

// storeSet returns the store set for a database URL, creating it on first
// reference.
//
// Roles that share a database URL share one store set, and hence one
// underlying database handle.
func (e *Engine) storeSet(url string) (*persistence.StoreSet, error) {
	e.m.Lock()
	defer e.m.Unlock()

	if e.opts.PersistenceProvider != nil {
		// An injected provider serves every role regardless of URL.
		url = ""
	}

	if s, ok := e.sets[url]; ok {
		return s, nil
	}

	p := e.opts.PersistenceProvider
	if p == nil {
		p = newProvider(url)
	}

	s := &persistence.StoreSet{
		Provider: p,
		Logger:   e.logger("persistence"),
	}

	if e.sets == nil {
		e.sets = map[string]*persistence.StoreSet{}
	}

	e.sets[url] = s

	return s, nil
}

// newProvider returns the persistence provider for a database URL.
//
// "memory:" selects the volatile in-memory provider; anything else is treated
// as a BoltDB file path, with an optional "bolt:" prefix.
func newProvider(url string) persistence.Provider {
	if url == "memory:" {
		return &memorypersistence.Provider{}
	}

	return &boltpersistence.FileProvider{
		Path: strings.TrimPrefix(url, "bolt:"),
	}
}

// close closes all stores opened by the engine, best-effort.
func (e *Engine) close() {
	e.m.Lock()
	defer e.m.Unlock()

	for _, s := range e.sets {
		s.Close() // nolint:errcheck // logged and swallowed by the set
	}

	e.sets = nil
}

// logger returns the log target for one of the engine's components.
func (e *Engine) logger(component string) logging.Logger {
	return loggingx.WithPrefix(
		e.opts.Logger,
		"[%s %s] ",
		component,
		e.key,
	)
}
