package graphql

import (
	"log/slog"

	"github.com/saturnines/unraid-connect/pkg/auth"
)

// Option configures the Executor.
type Option func(*Executor)

// WithHeader adds a header to every GraphQL request.
func WithHeader(key, value string) Option {
	return func(e *Executor) {
		if e.headers == nil {
			e.headers = make(map[string]string)
		}
		e.headers[key] = value
	}
}

// WithHeaders adds multiple headers to every GraphQL request.
func WithHeaders(headers map[string]string) Option {
	return func(e *Executor) {
		if e.headers == nil {
			e.headers = make(map[string]string)
		}
		for k, v := range headers {
			e.headers[k] = v
		}
	}
}

// WithUserAgent sets the User-Agent header for requests.
func WithUserAgent(userAgent string) Option {
	return WithHeader("User-Agent", userAgent)
}

// WithAuthHandler sets the auth handler.
func WithAuthHandler(h auth.Handler) Option {
	return func(e *Executor) {
		e.auth = h
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithBodyLimit caps how much of a successful response body is read.
func WithBodyLimit(n int64) Option {
	return func(e *Executor) {
		if n > 0 {
			e.bodyLimit = n
		}
	}
}
