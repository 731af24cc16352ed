package graphql

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/saturnines/unraid-connect/pkg/auth"
	"github.com/saturnines/unraid-connect/pkg/discovery"
	"github.com/saturnines/unraid-connect/pkg/errors"
	"github.com/saturnines/unraid-connect/pkg/transport/session"
)

const (
	// ErrorBodyLimit is how much of a failed response body is kept.
	ErrorBodyLimit = 4 << 10

	defaultBodyLimit = 16 << 20
)

// Executor sends GraphQL operations to a resolved endpoint over a session.
// It never retries and follows at most one redirect per operation.
type Executor struct {
	session   *session.Session
	auth      auth.Handler
	headers   map[string]string
	logger    *slog.Logger
	bodyLimit int64
}

// NewExecutor wraps sess. authHandler is applied to every request.
func NewExecutor(sess *session.Session, authHandler auth.Handler, opts ...Option) *Executor {
	e := &Executor{
		session:   sess,
		auth:      authHandler,
		logger:    slog.Default(),
		bodyLimit: defaultBodyLimit,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute posts req to ep and returns the data member of the response.
// Every failure is an *errors.Error.
func (e *Executor) Execute(ctx context.Context, ep discovery.Endpoint, req Request) (json.RawMessage, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, errors.New(errors.KindAPI, ep.URL(), "query must not be empty")
	}

	resp, err := e.send(ctx, ep, req)
	if err != nil {
		return nil, err
	}

	if isRedirect(resp.StatusCode) {
		target, err := e.redirectTarget(ep, resp)
		if err != nil {
			return nil, err
		}
		e.logger.DebugContext(ctx, "following GraphQL redirect", "from", ep.URL(), "to", target.URL())
		ep = target
		if resp, err = e.send(ctx, ep, req); err != nil {
			return nil, err
		}
	}

	return e.decode(ctx, resp, ep.URL())
}

func (e *Executor) send(ctx context.Context, ep discovery.Endpoint, req Request) (*http.Response, error) {
	client, err := e.session.Client(ep.VerifyTLS)
	if err != nil {
		return nil, err
	}
	httpReq, err := NewBuilder(ep, req, e.headers, e.auth).Build(ctx)
	if err != nil {
		return nil, err
	}

	e.logger.DebugContext(ctx, "sending GraphQL request", "url", ep.URL(), "verify_tls", ep.VerifyTLS)
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, errors.Translate(err, ep.URL())
	}
	return resp, nil
}

// redirectTarget consumes a redirect response and returns where to resend.
// Verification is kept on when the target is the trusted domain.
func (e *Executor) redirectTarget(ep discovery.Endpoint, resp *http.Response) (discovery.Endpoint, error) {
	defer drain(resp.Body)

	loc, err := resp.Location()
	if err != nil {
		return discovery.Endpoint{}, &errors.Error{
			Kind:       errors.KindConnection,
			URL:        ep.URL(),
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("redirect %d without Location header", resp.StatusCode),
		}
	}
	verify := ep.VerifyTLS || discovery.IsTrustedHost(loc.Hostname())
	return discovery.ParseEndpoint(loc.String(), verify)
}

func (e *Executor) decode(ctx context.Context, resp *http.Response, url string) (json.RawMessage, error) {
	defer drain(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, ErrorBodyLimit))
		e.logger.DebugContext(ctx, "GraphQL request rejected", "url", url, "status", resp.StatusCode)
		return nil, errors.FromStatus(resp.StatusCode, string(body), url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, e.bodyLimit+1))
	if err != nil {
		return nil, errors.Translate(err, url)
	}
	if int64(len(body)) > e.bodyLimit {
		return nil, &errors.Error{
			Kind:       errors.KindAPI,
			URL:        url,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("response body exceeds %d bytes", e.bodyLimit),
		}
	}

	var env Response
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &errors.Error{
			Kind:       errors.KindAPI,
			URL:        url,
			StatusCode: resp.StatusCode,
			Message:    "response is not a GraphQL envelope",
			Body:       truncate(body, ErrorBodyLimit),
			Err:        err,
		}
	}

	if len(env.Errors) > 0 {
		e.logger.DebugContext(ctx, "GraphQL errors in response", "url", url, "count", len(env.Errors),
			"partial_data", env.HasData())
		var data []byte
		if env.HasData() {
			data = env.Data
		}
		return nil, errors.FromGraphQL(env.Errors, data, url)
	}
	return env.Data, nil
}

func isRedirect(code int) bool {
	switch code {
	case http.StatusMovedPermanently, http.StatusFound,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, ErrorBodyLimit))
	_ = body.Close()
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}
