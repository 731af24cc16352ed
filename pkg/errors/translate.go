package errors

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Translate maps a transport failure onto the closed taxonomy. An *Error is
// returned unchanged so failures are never wrapped twice.
func Translate(err error, url string) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}

	switch {
	case isTimeout(err):
		return Wrap(err, KindTimeout, url, "request timed out")
	case isTLS(err):
		return Wrap(err, KindTLS, url, "TLS negotiation or certificate verification failed")
	case errors.Is(err, context.Canceled):
		return Wrap(err, KindConnection, url, "request canceled")
	default:
		return Wrap(err, KindConnection, url, "connection failed")
	}
}

// FromStatus maps a non-2xx HTTP status onto the taxonomy.
func FromStatus(code int, body, url string) *Error {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &Error{
			Kind:       KindAuthentication,
			URL:        url,
			StatusCode: code,
			Message:    "invalid API key or insufficient permissions",
			Body:       body,
		}
	default:
		return &Error{
			Kind:       KindAPI,
			URL:        url,
			StatusCode: code,
			Message:    fmt.Sprintf("unexpected status %s", http.StatusText(code)),
			Body:       body,
		}
	}
}

// FromGraphQL builds an API error for a response carrying GraphQL errors.
func FromGraphQL(errs []GraphQLError, data []byte, url string) *Error {
	return &Error{
		Kind:          KindAPI,
		URL:           url,
		Message:       "GraphQL query failed",
		GraphQLErrors: errs,
		Data:          data,
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isTLS(err error) bool {
	var (
		verifyErr    *tls.CertificateVerificationError
		unknownAuth  x509.UnknownAuthorityError
		hostnameErr  x509.HostnameError
		invalidErr   x509.CertificateInvalidError
		recordErr    tls.RecordHeaderError
		alertErr     tls.AlertError
		sysRootsErr  x509.SystemRootsError
		constraintEr x509.ConstraintViolationError
		opErr        *net.OpError
	)
	// crypto/tls reports alerts sent by the peer as "remote error" ops.
	if errors.As(err, &opErr) && opErr.Op == "remote error" {
		return true
	}
	return errors.As(err, &verifyErr) ||
		errors.As(err, &unknownAuth) ||
		errors.As(err, &hostnameErr) ||
		errors.As(err, &invalidErr) ||
		errors.As(err, &recordErr) ||
		errors.As(err, &alertErr) ||
		errors.As(err, &sysRootsErr) ||
		errors.As(err, &constraintEr)
}
