package discovery

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/saturnines/unraid-connect/pkg/errors"
	"github.com/saturnines/unraid-connect/pkg/observability"
)

// OutcomeResolver is satisfied by *Resolver.
type OutcomeResolver interface {
	Resolve(ctx context.Context) (Outcome, error)
}

const flightKey = "discover"

// Coordinator runs discovery at most once per lifetime. Concurrent callers
// share one in-flight resolution; a success is cached forever, a failure is
// delivered to every waiter and the next call starts over.
type Coordinator struct {
	resolver OutcomeResolver
	timeout  time.Duration
	logger   *slog.Logger
	observer observability.ClientObserver

	group  singleflight.Group
	cached atomic.Pointer[Outcome]
	runs   atomic.Int64
}

// CoordinatorOption configures a Coordinator
type CoordinatorOption func(*Coordinator)

// WithCoordinatorLogger sets the logger
func WithCoordinatorLogger(l *slog.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithObserver sets the metrics observer
func WithObserver(o observability.ClientObserver) CoordinatorOption {
	return func(c *Coordinator) {
		if o != nil {
			c.observer = o
		}
	}
}

// NewCoordinator wraps resolver. timeout bounds the shared resolution
// independently of any single caller's context.
func NewCoordinator(resolver OutcomeResolver, timeout time.Duration, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		resolver: resolver,
		timeout:  timeout,
		logger:   slog.Default(),
		observer: observability.NoopClientObserver{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Outcome returns the cached outcome, if discovery already succeeded.
func (c *Coordinator) Outcome() (Outcome, bool) {
	if o := c.cached.Load(); o != nil {
		return *o, true
	}
	return Outcome{}, false
}

// Runs returns how many times the resolver has been invoked.
func (c *Coordinator) Runs() int64 {
	return c.runs.Load()
}

// Resolve returns the endpoint, running discovery if needed. Cancelling ctx
// stops this caller from waiting but does not abort the shared resolution.
func (c *Coordinator) Resolve(ctx context.Context) (Outcome, error) {
	if o, ok := c.Outcome(); ok {
		return o, nil
	}

	flightCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(flightKey, func() (any, error) {
		// A flight that finished between the cache check and DoChan
		// already stored its result.
		if o, ok := c.Outcome(); ok {
			return o, nil
		}
		return c.run(flightCtx)
	})

	select {
	case <-ctx.Done():
		return Outcome{}, errors.Translate(ctx.Err(), "")
	case res := <-ch:
		if res.Err != nil {
			return Outcome{}, res.Err
		}
		return res.Val.(Outcome), nil
	}
}

func (c *Coordinator) run(ctx context.Context) (Outcome, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	c.runs.Add(1)
	start := time.Now()
	c.logger.DebugContext(ctx, "starting discovery", "resolver", c.resolver)

	o, err := c.resolver.Resolve(ctx)
	elapsed := time.Since(start)
	if err != nil {
		c.observer.Discovery(observability.DiscoveryResultFail, "", elapsed)
		c.logger.WarnContext(ctx, "discovery failed", "error", err, "elapsed", elapsed)
		return Outcome{}, errors.Translate(err, "")
	}

	c.cached.Store(&o)
	c.observer.Discovery(observability.DiscoveryResultOK, string(o.Mode), elapsed)
	c.logger.InfoContext(ctx, "discovery complete",
		"mode", o.Mode, "url", o.Endpoint.URL(), "verify_tls", o.Endpoint.VerifyTLS, "elapsed", elapsed)
	return o, nil
}
