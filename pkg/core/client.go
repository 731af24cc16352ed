// Package core is the public client. It ties discovery, the GraphQL executor
// and the compatibility gate to one owned or borrowed session.
package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/saturnines/unraid-connect/pkg/auth"
	"github.com/saturnines/unraid-connect/pkg/compat"
	"github.com/saturnines/unraid-connect/pkg/config"
	"github.com/saturnines/unraid-connect/pkg/discovery"
	"github.com/saturnines/unraid-connect/pkg/errors"
	"github.com/saturnines/unraid-connect/pkg/logging"
	"github.com/saturnines/unraid-connect/pkg/observability"
	"github.com/saturnines/unraid-connect/pkg/transport/graphql"
	"github.com/saturnines/unraid-connect/pkg/transport/session"
)

const onlineQuery = `query { online }`

// Client talks to one server. It is safe for concurrent use. Construction
// performs no I/O; the endpoint is discovered on first use and cached for
// the lifetime of the client.
type Client struct {
	cfg      config.Config
	logger   *slog.Logger
	observer observability.ClientObserver
	borrowed *http.Client
	sessOpts session.Options
	execOpts []graphql.Option

	mu       sync.Mutex
	closed   bool
	session  *session.Session
	coord    *discovery.Coordinator
	executor *graphql.Executor
	gate     *compat.Gate
}

// New validates cfg and returns a client. Missing optional fields get their
// defaults.
func New(cfg config.Config, opts ...Option) (*Client, error) {
	loader := config.NewLoader(nil, &config.Defaults{},
		&config.RequiredFieldValidator{},
		&config.PortValidator{},
		&config.ModeValidator{},
	)
	if err := loader.Finalize(&cfg); err != nil {
		return nil, fmt.Errorf("invalid client config: %w", err)
	}

	c := &Client{
		cfg:      cfg,
		logger:   slog.Default(),
		observer: observability.NoopClientObserver{},
		sessOpts: session.DefaultOptions(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Config returns the effective configuration.
func (c *Client) Config() config.Config {
	return c.cfg
}

// Open acquires the session. Calling it is optional: every operation opens
// the session on demand. It fails only when the client is closed.
func (c *Client) Open(ctx context.Context) error {
	if err := c.acquire(); err != nil {
		return err
	}
	c.logger.DebugContext(ctx, "client opened", "host", c.cfg.Host, "owned_session", c.borrowed == nil)
	return nil
}

// Close releases the session if the client owns it. A borrowed client is
// never closed. Close is idempotent and safe when nothing ever ran.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	if c.session == nil {
		return nil
	}
	return c.session.Close()
}

// acquire builds the session and everything bound to it on first use.
func (c *Client) acquire() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errors.New(errors.KindConnection, "", "client is closed")
	}
	if c.session != nil {
		return nil
	}

	if c.borrowed != nil {
		c.session = session.Borrow(c.borrowed)
	} else {
		c.session = session.New(c.sessOpts)
	}

	authHandler := auth.NewAPIKeyAuth(c.cfg.APIKey)
	resolver := discovery.NewResolver(&c.cfg, c.session,
		discovery.WithLogger(c.logger),
		discovery.WithAuthHandler(authHandler),
	)
	c.coord = discovery.NewCoordinator(resolver, c.discoveryTimeout(),
		discovery.WithCoordinatorLogger(c.logger),
		discovery.WithObserver(c.observer),
	)
	c.executor = graphql.NewExecutor(c.session, authHandler,
		append([]graphql.Option{graphql.WithLogger(c.logger)}, c.execOpts...)...)
	c.gate = compat.NewGate(c, c.cfg.MinAPIVersion, c.cfg.MinPlatformVersion,
		compat.WithLogger(c.logger),
		compat.WithObserver(c.observer),
	)
	return nil
}

// Discover resolves the endpoint without sending a GraphQL operation.
func (c *Client) Discover(ctx context.Context) (discovery.Outcome, error) {
	if err := c.acquire(); err != nil {
		return discovery.Outcome{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, c.discoveryTimeout())
	defer cancel()
	return c.coord.Resolve(ctx)
}

// discoveryTimeout bounds one discovery run: the probe and the HTTPS attempt
// each get the configured timeout.
func (c *Client) discoveryTimeout() time.Duration {
	return 2 * c.cfg.Timeout.Duration
}

// Outcome returns the cached discovery outcome, if any.
func (c *Client) Outcome() (discovery.Outcome, bool) {
	c.mu.Lock()
	coord := c.coord
	c.mu.Unlock()
	if coord == nil {
		return discovery.Outcome{}, false
	}
	return coord.Outcome()
}

// DiscoveryRuns returns how many times discovery actually probed.
func (c *Client) DiscoveryRuns() int64 {
	c.mu.Lock()
	coord := c.coord
	c.mu.Unlock()
	if coord == nil {
		return 0
	}
	return coord.Runs()
}

// ExecuteRaw runs a query or mutation and returns the raw data member.
func (c *Client) ExecuteRaw(ctx context.Context, req graphql.Request) (json.RawMessage, error) {
	start := time.Now()
	ctx = logging.WithRequestID(ctx, uuid.NewString())

	data, err := c.execute(ctx, req)
	elapsed := time.Since(start)
	c.observer.Request(requestResult(err), elapsed)
	if err != nil {
		c.logger.DebugContext(ctx, "GraphQL operation failed", "error", err, "elapsed", elapsed)
		return nil, err
	}
	c.logger.DebugContext(ctx, "GraphQL operation complete", "elapsed", elapsed)
	return data, nil
}

func (c *Client) execute(ctx context.Context, req graphql.Request) (json.RawMessage, error) {
	if err := c.acquire(); err != nil {
		return nil, err
	}

	resolveCtx, cancelResolve := context.WithTimeout(ctx, c.discoveryTimeout())
	outcome, err := c.coord.Resolve(resolveCtx)
	cancelResolve()
	if err != nil {
		return nil, err
	}

	// the operation gets its own deadline, not what discovery left over
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout.Duration)
	defer cancel()
	return c.executor.Execute(ctx, outcome.Endpoint, req)
}

// Execute runs a query or mutation and returns its decoded data.
func (c *Client) Execute(ctx context.Context, req graphql.Request) (map[string]any, error) {
	out := map[string]any{}
	if err := c.ExecuteInto(ctx, req, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

// ExecuteInto runs a query or mutation and decodes its data into v.
func (c *Client) ExecuteInto(ctx context.Context, req graphql.Request, v any) error {
	data, err := c.ExecuteRaw(ctx, req)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrap(err, errors.KindAPI, "", "decode GraphQL data")
	}
	return nil
}

// CheckCompatibility queries the server versions and returns a version error
// when either is below its minimum.
func (c *Client) CheckCompatibility(ctx context.Context) error {
	if err := c.acquire(); err != nil {
		return err
	}
	_, err := c.gate.Check(ctx)
	return err
}

// Version returns the server API and platform versions.
func (c *Client) Version(ctx context.Context) (compat.VersionPair, error) {
	if err := c.acquire(); err != nil {
		return compat.VersionPair{}, err
	}
	return c.gate.Fetch(ctx)
}

// Online reports whether the server says it is online.
func (c *Client) Online(ctx context.Context) (bool, error) {
	data, err := c.Execute(ctx, graphql.Request{Query: onlineQuery})
	if err != nil {
		return false, err
	}
	v, _ := Lookup(data, "online")
	online, _ := v.(bool)
	return online, nil
}

func requestResult(err error) observability.RequestResult {
	if err == nil {
		return observability.RequestResultOK
	}
	switch errors.KindOf(err) {
	case errors.KindTLS:
		return observability.RequestResultTLS
	case errors.KindTimeout:
		return observability.RequestResultTimeout
	case errors.KindAuthentication:
		return observability.RequestResultAuthentication
	case errors.KindVersion:
		return observability.RequestResultVersion
	case errors.KindAPI:
		return observability.RequestResultAPI
	default:
		return observability.RequestResultConnection
	}
}

var _ compat.Querier = (*Client)(nil)
