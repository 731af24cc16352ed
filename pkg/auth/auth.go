package auth

import (
	"fmt"
	"net/http"

	"github.com/saturnines/unraid-connect/pkg/errors"
)

// DefaultAPIKeyHeader is the header the Unraid API reads the key from.
const DefaultAPIKeyHeader = "x-api-key"

// Handler defines the interface for auth handlers
type Handler interface {
	ApplyAuth(req *http.Request) error
}

// APIKeyAuth implements the Handler interface for static API key authentication
type APIKeyAuth struct {
	HeaderName string // Header name, defaults to x-api-key
	Value      string // The actual API key value
}

// NewAPIKeyAuth creates a new API key authentication handler
func NewAPIKeyAuth(value string) *APIKeyAuth {
	return &APIKeyAuth{
		HeaderName: DefaultAPIKeyHeader,
		Value:      value,
	}
}

// ApplyAuth adds the API key header to the request
func (a *APIKeyAuth) ApplyAuth(req *http.Request) error {
	if a.Value == "" {
		return errors.New(errors.KindAuthentication, req.URL.String(), "API key value is required")
	}

	header := a.HeaderName
	if header == "" {
		header = DefaultAPIKeyHeader
	}
	req.Header.Set(header, a.Value)

	return nil
}

// String returns a string representation of this auth method.
// The key itself is never printed.
func (a *APIKeyAuth) String() string {
	return fmt.Sprintf("APIKeyAuth(header: %s, key: [REDACTED])", a.HeaderName)
}
