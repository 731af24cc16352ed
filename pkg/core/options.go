package core

import (
	"log/slog"
	"net/http"

	"github.com/saturnines/unraid-connect/pkg/observability"
	"github.com/saturnines/unraid-connect/pkg/transport/graphql"
	"github.com/saturnines/unraid-connect/pkg/transport/session"
)

// Option configures a Client
type Option func(*Client)

// WithHTTPClient makes the client borrow an existing *http.Client. Close
// never closes a borrowed client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.borrowed = hc
	}
}

// WithSessionOptions tunes the owned connection pool. Ignored when an
// HTTP client is borrowed.
func WithSessionOptions(opts session.Options) Option {
	return func(c *Client) {
		c.sessOpts = opts
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithObserver sets the metrics observer
func WithObserver(o observability.ClientObserver) Option {
	return func(c *Client) {
		if o != nil {
			c.observer = o
		}
	}
}

// WithUserAgent sets the User-Agent header on GraphQL requests
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.execOpts = append(c.execOpts, graphql.WithUserAgent(ua))
	}
}

// WithHeader adds a header to every GraphQL request
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.execOpts = append(c.execOpts, graphql.WithHeader(key, value))
	}
}
