// Package session owns or borrows the HTTP connection pool used to talk to
// the server.
//
// A Session built with New owns its pool and releases it on Close. A Session
// built with Borrow wraps a caller's *http.Client and never closes it. In
// both cases the session may derive a second transport with certificate
// verification disabled; that derived transport always belongs to the
// session.
package session

import (
	"crypto/tls"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/saturnines/unraid-connect/pkg/errors"
)

// Options configures an owned pool
type Options struct {
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
	DialTimeout         time.Duration
}

// DefaultOptions returns pool settings suited to a single server
func DefaultOptions() Options {
	return Options{
		MaxIdleConns:        16,
		MaxIdleConnsPerHost: 8,
		IdleConnTimeout:     90 * time.Second,
		DialTimeout:         10 * time.Second,
	}
}

// Session hands out HTTP clients that share one pool
type Session struct {
	base  *http.Client
	owned bool

	mu       sync.Mutex
	insecure *http.Client // derived lazily, always owned
	closed   bool

	closeOnce sync.Once
}

// New creates a session that owns a fresh pool
func New(opts Options) *Session {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.MaxIdleConns > 0 {
		transport.MaxIdleConns = opts.MaxIdleConns
	}
	if opts.MaxIdleConnsPerHost > 0 {
		transport.MaxIdleConnsPerHost = opts.MaxIdleConnsPerHost
	}
	if opts.IdleConnTimeout > 0 {
		transport.IdleConnTimeout = opts.IdleConnTimeout
	}
	if opts.DialTimeout > 0 {
		transport.DialContext = (&net.Dialer{
			Timeout:   opts.DialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext
	}
	return newSession(&http.Client{Transport: transport}, true)
}

// Borrow wraps a caller-supplied client. The session never closes it.
func Borrow(client *http.Client) *Session {
	if client == nil {
		client = http.DefaultClient
	}
	return newSession(client, false)
}

func newSession(client *http.Client, owned bool) *Session {
	return &Session{base: client, owned: owned}
}

// Owned reports whether Close releases the underlying pool
func (s *Session) Owned() bool {
	return s.owned
}

// Client returns an *http.Client over the shared pool that never follows
// redirects. When verifyTLS is false the client skips certificate
// verification.
func (s *Session) Client(verifyTLS bool) (*http.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errors.New(errors.KindConnection, "", "session is closed")
	}

	src := s.base
	if !verifyTLS {
		if s.insecure == nil {
			s.insecure = deriveInsecure(s.base)
		}
		src = s.insecure
	}

	c := *src
	c.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &c, nil
}

// Close releases the pool if owned. It is idempotent and safe to call when
// no request ever ran.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		s.closed = true
		if s.insecure != nil {
			s.insecure.CloseIdleConnections()
			s.insecure = nil
		}
		if s.owned {
			s.base.CloseIdleConnections()
		}
	})
	return nil
}

// deriveInsecure clones the base transport with verification disabled. A
// base transport that is not an *http.Transport cannot be cloned and is
// reused as is.
func deriveInsecure(base *http.Client) *http.Client {
	var transport *http.Transport
	switch rt := base.Transport.(type) {
	case nil:
		transport = http.DefaultTransport.(*http.Transport).Clone()
	case *http.Transport:
		transport = rt.Clone()
	default:
		c := *base
		c.Transport = &sharedTransport{rt: rt}
		return &c
	}

	if transport.TLSClientConfig == nil {
		transport.TLSClientConfig = &tls.Config{}
	}
	transport.TLSClientConfig.InsecureSkipVerify = true

	c := *base
	c.Transport = transport
	return &c
}

// sharedTransport forwards to a round tripper the session does not own, and
// hides its CloseIdleConnections.
type sharedTransport struct {
	rt http.RoundTripper
}

func (t *sharedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.rt.RoundTrip(req)
}
