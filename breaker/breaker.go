// Package breaker provides a circuit breaker that protects a fallible remote
// operation, short-circuiting to a fallback while the operation is failing.
package breaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dogmatiq/dodeca/logging"
)

// State identifies the breaker's position in its closed/open/half-open
// cycle.
type State int

const (
	// StateClosed means the protected operation is attempted normally.
	StateClosed State = iota

	// StateOpen means calls are short-circuited to the fallback operation.
	StateOpen

	// StateHalfOpen means a trial of the protected operation is permitted
	// after the reset timeout has elapsed.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	default:
		return "half-open"
	}
}

// An Operation is a fallible call protected by a breaker, or the fallback
// used in its place while the breaker is open.
//
// The request value carries the per-call state explicitly; operations must
// not rely on captured mutable state.
type Operation[Req, Res any] func(ctx context.Context, req Req) (Res, error)

// Options configure the behavior of a breaker.
type Options struct {
	// Name identifies the breaker in log output. It is required.
	Name string

	// MaxFailures is the number of consecutive failures at which the breaker
	// opens. It must be at least one. If it is zero, DefaultMaxFailures is
	// used.
	MaxFailures uint

	// Timeout is the duration after which a single attempt of the protected
	// operation qualifies as a failure.
	//
	// The breaker itself does not enforce it; it is applied by whatever
	// issues the underlying call, which must eventually fail on its own. If
	// it is zero, DefaultTimeout is used.
	Timeout time.Duration

	// ResetTimeout is the cooldown after which an open breaker permits a
	// half-open trial of the protected operation. If it is zero,
	// DefaultResetTimeout is used.
	ResetTimeout time.Duration
}

const (
	// DefaultMaxFailures is the default number of consecutive failures at
	// which a breaker opens.
	DefaultMaxFailures = 5

	// DefaultTimeout is the default timeout that qualifies an attempt as a
	// failure.
	DefaultTimeout = 60 * time.Second

	// DefaultResetTimeout is the default cooldown before a half-open trial.
	DefaultResetTimeout = 6 * time.Minute
)

// A Breaker wraps a fallible operation in a closed/open/half-open state
// machine.
//
// While closed, calls are passed to the protected operation; maxFailures
// consecutive failures open the breaker. While open, calls return the
// fallback's result without invoking the protected operation, until the
// reset timeout elapses, at which point a single call trials the protected
// operation again.
//
// Known limitation, preserved deliberately: the failure counter only
// reflects failures of calls that have completed. A burst of concurrent
// calls issued before any of them completes resolves each call against the
// state observed when it began, so the breaker will not trip early for the
// burst. For the same reason a half-open breaker admits every concurrent
// call that begins before the first trial settles; the single-trial
// guarantee holds only for sequential callers.
type Breaker[Req, Res any] struct {
	op       Operation[Req, Res]
	fallback Operation[Req, Res]
	opts     Options
	logger   logging.Logger

	m        sync.Mutex
	state    State
	failures uint
	openedAt time.Time
}

// New returns a breaker that protects op, short-circuiting to fallback while
// open.
//
// It fails if either operation is absent or the options are invalid; a
// breaker that can not be constructed never starts.
func New[Req, Res any](
	op Operation[Req, Res],
	fallback Operation[Req, Res],
	opts Options,
	logger logging.Logger,
) (*Breaker[Req, Res], error) {
	if op == nil {
		return nil, errors.New("no protected operation provided")
	}

	if fallback == nil {
		return nil, errors.New("no fallback operation provided")
	}

	if opts.Name == "" {
		return nil, errors.New("breaker name must not be empty")
	}

	if opts.MaxFailures == 0 {
		opts.MaxFailures = DefaultMaxFailures
	}

	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}

	if opts.ResetTimeout == 0 {
		opts.ResetTimeout = DefaultResetTimeout
	}

	if opts.Timeout < 0 || opts.ResetTimeout < 0 {
		return nil, fmt.Errorf(
			"invalid breaker configuration for %#v: timeouts must be positive",
			opts.Name,
		)
	}

	return &Breaker[Req, Res]{
		op:       op,
		fallback: fallback,
		opts:     opts,
		logger:   logger,
	}, nil
}

// Timeout returns the configured per-attempt timeout.
//
// The owner of the protected operation is expected to bound each attempt
// with it.
func (b *Breaker[Req, Res]) Timeout() time.Duration {
	return b.opts.Timeout
}

// State returns the breaker's current state.
//
// An open breaker whose reset timeout has elapsed still reports StateOpen;
// the transition to half-open occurs on the next call to Invoke().
func (b *Breaker[Req, Res]) State() State {
	b.m.Lock()
	defer b.m.Unlock()

	return b.state
}

// Invoke calls the protected operation, or the fallback if the breaker is
// open.
//
// Failures of the protected operation are propagated to the caller,
// including the failure that opens the breaker. While open, the fallback's
// result is returned instead and the protected operation is not invoked.
func (b *Breaker[Req, Res]) Invoke(ctx context.Context, req Req) (Res, error) {
	state := b.begin()

	if state == StateOpen {
		return b.fallback(ctx, req)
	}

	res, err := b.op(ctx, req)
	b.settle(state, err)

	return res, err
}

// begin resolves the state this call operates against, transitioning an open
// breaker to half-open if its cooldown has elapsed.
func (b *Breaker[Req, Res]) begin() State {
	b.m.Lock()
	defer b.m.Unlock()

	if b.state == StateOpen &&
		time.Since(b.openedAt) >= b.opts.ResetTimeout {
		b.state = StateHalfOpen

		logging.Debug(
			b.logger,
			"breaker %#v permitting half-open trial",
			b.opts.Name,
		)
	}

	return b.state
}

// settle applies the outcome of a completed protected-operation call that
// began in the given state.
func (b *Breaker[Req, Res]) settle(began State, err error) {
	b.m.Lock()
	defer b.m.Unlock()

	if err == nil {
		if b.state != StateClosed {
			logging.Log(
				b.logger,
				"breaker %#v closed",
				b.opts.Name,
			)
		}

		b.state = StateClosed
		b.failures = 0

		return
	}

	if began == StateHalfOpen {
		// The trial failed, go straight back to open for another cooldown.
		b.state = StateOpen
		b.openedAt = time.Now()

		logging.Log(
			b.logger,
			"breaker %#v re-opened after failed trial: %s",
			b.opts.Name,
			err,
		)

		return
	}

	b.failures++

	if b.failures >= b.opts.MaxFailures && b.state == StateClosed {
		b.state = StateOpen
		b.openedAt = time.Now()

		logging.Log(
			b.logger,
			"breaker %#v opened after %d consecutive failure(s): %s",
			b.opts.Name,
			b.failures,
			err,
		)
	}
}
