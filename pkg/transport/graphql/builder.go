package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/saturnines/unraid-connect/pkg/auth"
	"github.com/saturnines/unraid-connect/pkg/discovery"
	"github.com/saturnines/unraid-connect/pkg/errors"
)

// Builder constructs GraphQL requests.
type Builder struct {
	Endpoint    discovery.Endpoint
	Request     Request
	Headers     map[string]string
	AuthHandler auth.Handler
}

// NewBuilder sets up a GraphQL Builder for one operation against ep.
func NewBuilder(
	ep discovery.Endpoint,
	req Request,
	headers map[string]string,
	authHandler auth.Handler,
) *Builder {
	return &Builder{
		Endpoint:    ep,
		Request:     req,
		Headers:     headers,
		AuthHandler: authHandler,
	}
}

// Build creates the POST *http.Request with JSON body. Origin, Referer and
// Host are derived from the endpoint's header domain.
func (b *Builder) Build(ctx context.Context) (*http.Request, error) {
	body := b.Request
	if body.Variables == nil {
		body.Variables = map[string]any{}
	}
	buf, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindAPI, b.Endpoint.URL(), "encode GraphQL request")
	}

	target := b.Endpoint.URL()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(buf))
	if err != nil {
		return nil, errors.Wrap(err, errors.KindConnection, target, "build request")
	}
	for k, v := range b.Headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	origin := b.Endpoint.Origin()
	req.Header.Set("Origin", origin)
	req.Header.Set("Referer", origin+"/dashboard")
	req.Host = b.Endpoint.HostHeader()

	if b.AuthHandler != nil {
		if err := b.AuthHandler.ApplyAuth(req); err != nil {
			return nil, err
		}
	}
	return req, nil
}
