package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies every failure the client can surface.
type Kind string

const (
	KindConnection     Kind = "connection"
	KindTLS            Kind = "tls"
	KindTimeout        Kind = "timeout"
	KindAuthentication Kind = "authentication"
	KindVersion        Kind = "version"
	KindAPI            Kind = "api"
)

// Standard error types. Match them with errors.Is.
var (
	ErrUnraid         = errors.New("unraid error") // matches every *Error
	ErrConnection     = errors.New("connection error")
	ErrTLS            = errors.New("TLS error")
	ErrTimeout        = errors.New("timeout error")
	ErrAuthentication = errors.New("authentication error")
	ErrVersion        = errors.New("version error")
	ErrAPI            = errors.New("API error")
)

var kindSentinels = map[Kind]error{
	KindConnection:     ErrConnection,
	KindTLS:            ErrTLS,
	KindTimeout:        ErrTimeout,
	KindAuthentication: ErrAuthentication,
	KindVersion:        ErrVersion,
	KindAPI:            ErrAPI,
}

// GraphQLError is one entry of a GraphQL response "errors" array.
type GraphQLError struct {
	Message    string         `json:"message"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

func (e GraphQLError) String() string {
	if len(e.Path) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (path: %v)", e.Message, e.Path)
}

// Error is the only error type returned across the package boundary.
type Error struct {
	Kind       Kind
	URL        string // attempted URL, if any
	StatusCode int    // HTTP status, 0 when no response was received
	Message    string
	Body       string // truncated response body for non-2xx responses

	GraphQLErrors []GraphQLError
	Data          []byte // partial data returned alongside GraphQL errors

	Err error // underlying cause, for debugging only
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString(string(e.Kind))
	b.WriteString(" error: ")
	b.WriteString(e.Message)
	if len(e.GraphQLErrors) > 0 {
		msgs := make([]string, 0, len(e.GraphQLErrors))
		for _, ge := range e.GraphQLErrors {
			msgs = append(msgs, ge.String())
		}
		b.WriteString(": ")
		b.WriteString(strings.Join(msgs, "; "))
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (HTTP %d)", e.StatusCode)
	}
	if e.URL != "" {
		fmt.Fprintf(&b, " [%s]", e.URL)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for e's kind. A TLS error is also
// a connection error, and every error is an ErrUnraid.
func (e *Error) Is(target error) bool {
	if target == ErrUnraid {
		return true
	}
	if sentinel, ok := kindSentinels[e.Kind]; ok && sentinel == target {
		return true
	}
	return e.Kind == KindTLS && target == ErrConnection
}

// New creates an error of the given kind.
func New(kind Kind, url, message string) *Error {
	return &Error{Kind: kind, URL: url, Message: message}
}

// Wrap creates an error of the given kind around cause.
func Wrap(cause error, kind Kind, url, message string) *Error {
	return &Error{Kind: kind, URL: url, Message: message, Err: cause}
}

// KindOf returns the kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is provides a convenience wrapper around errors.Is
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As provides a convenience wrapper around errors.As
func As(err error, target any) bool {
	return errors.As(err, target)
}
