// Package worker runs the long-lived workers of a pipeline node, restarting
// them with exponential backoff when they fail.
package worker

import (
	"context"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/linger/backoff"
	"golang.org/x/sync/errgroup"
)

// A Worker is a long-lived task that runs until its context is canceled or an
// unrecoverable error occurs.
type Worker interface {
	Run(ctx context.Context) error
}

// Supervisor runs a set of workers concurrently, restarting each one when it
// fails.
//
// A worker error is treated as transient and restarted after a backoff delay;
// only cancelation of the supervisor's context ends the run. Each worker gets
// its own backoff counter, so one flapping worker does not slow down the
// restarts of the others.
type Supervisor struct {
	// Workers is the set of named workers to run.
	Workers map[string]Worker

	// BackoffStrategy is the strategy used to delay restarts of a failed
	// worker. If it is nil, backoff.DefaultStrategy is used.
	BackoffStrategy backoff.Strategy

	// Logger is the target for log messages about worker restarts.
	// If it is nil, logging.DefaultLogger is used.
	Logger logging.Logger
}

// Run runs all workers until ctx is canceled.
func (s *Supervisor) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for n, w := range s.Workers {
		n, w := n, w // capture loop variables

		g.Go(func() error {
			return s.supervise(ctx, n, w)
		})
	}

	return g.Wait()
}

// supervise runs a single worker, restarting it on failure.
func (s *Supervisor) supervise(
	ctx context.Context,
	name string,
	w Worker,
) error {
	counter := backoff.Counter{
		Strategy: s.BackoffStrategy,
	}

	for {
		err := w.Run(ctx)

		if ctx.Err() != nil {
			return ctx.Err()
		}

		logging.Log(
			s.Logger,
			"worker %#v stopped: %s",
			name,
			err,
		)

		if err := counter.Sleep(ctx, err); err != nil {
			return err
		}
	}
}
