package discovery

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/saturnines/unraid-connect/pkg/auth"
	"github.com/saturnines/unraid-connect/pkg/config"
	"github.com/saturnines/unraid-connect/pkg/errors"
	"github.com/saturnines/unraid-connect/pkg/transport/session"
)

// TrustedRedirectDomain is the remote-access domain whose certificates are
// publicly trusted.
const TrustedRedirectDomain = "myunraid.net"

// plainHTTPToHTTPSSignature is the nginx error body returned when plain HTTP
// reaches a TLS port.
const plainHTTPToHTTPSSignature = "the plain http request was sent to https port"

const probeBodyLimit = 4 << 10

// IsTrustedHost reports whether host is the trusted domain or one of its
// subdomains.
func IsTrustedHost(host string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	return host == TrustedRedirectDomain || strings.HasSuffix(host, "."+TrustedRedirectDomain)
}

// Resolver classifies the server transport mode and produces an Endpoint.
// It performs I/O on every call; use a Coordinator to resolve at most once.
type Resolver struct {
	host         string
	httpPort     int
	httpsPort    int
	httpExplicit bool
	mode         config.Mode
	verify       *bool
	timeout      time.Duration

	session *session.Session
	auth    auth.Handler
	logger  *slog.Logger
}

// ResolverOption configures a Resolver
type ResolverOption func(*Resolver)

// WithLogger sets the logger used for discovery decisions
func WithLogger(l *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithAuthHandler sets the handler applied to probe requests
func WithAuthHandler(h auth.Handler) ResolverOption {
	return func(r *Resolver) {
		r.auth = h
	}
}

// NewResolver builds a Resolver from cfg. cfg is read once; later changes
// have no effect.
func NewResolver(cfg *config.Config, sess *session.Session, opts ...ResolverOption) *Resolver {
	mode := cfg.Mode
	if mode == "" {
		mode = config.ModeAuto
	}
	timeout := cfg.Timeout.Duration
	if timeout <= 0 {
		timeout = config.DefaultTimeout
	}

	r := &Resolver{
		host:         normalizeHost(cfg.Host),
		httpPort:     cfg.EffectiveHTTPPort(),
		httpsPort:    cfg.EffectiveHTTPSPort(),
		httpExplicit: cfg.HTTPPortExplicit(),
		mode:         mode,
		verify:       cfg.VerifyTLS,
		timeout:      timeout,
		session:      sess,
		auth:         auth.NewAPIKeyAuth(cfg.APIKey),
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// normalizeHost strips scheme, trailing slashes and any port from host.
func normalizeHost(host string) string {
	host = CleanHost(host)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.Trim(host, "[]")
}

// findingKind is what the probe learned about the server.
type findingKind int

const (
	findPlainHTTP        findingKind = iota // HTTP answered directly
	findSelfSigned                          // HTTPS on httpsPort, self-signed
	findTrustedRedirect                     // redirect to the trusted domain
	findSameHostRedirect                    // HTTPS redirect to the same host
	findOtherRedirect                       // anything else that redirected
)

type finding struct {
	kind       findingKind
	target     string // redirect target for redirect kinds
	probeHTTPS bool   // an HTTPS attempt must confirm findSelfSigned
}

// Resolve determines the endpoint. Forced modes never touch the network.
func (r *Resolver) Resolve(ctx context.Context) (Outcome, error) {
	f, err := r.classify(ctx)
	if err != nil {
		return Outcome{}, err
	}
	return r.settle(ctx, f)
}

func (r *Resolver) classify(ctx context.Context) (finding, error) {
	switch r.mode {
	case config.ModeNone:
		return finding{kind: findPlainHTTP}, nil
	case config.ModeYes:
		return finding{kind: findSelfSigned}, nil
	case config.ModeStrict:
		return finding{kind: findTrustedRedirect}, nil
	case config.ModeAuto:
		return r.probe(ctx)
	default:
		return finding{}, errors.New(errors.KindAPI, "", fmt.Sprintf("unknown mode %q", r.mode))
	}
}

// settle is the one place an Outcome is built from a finding.
func (r *Resolver) settle(ctx context.Context, f finding) (Outcome, error) {
	switch f.kind {
	case findPlainHTTP:
		return outcomeNone(newEndpoint("http", r.host, r.httpPort, true)), nil

	case findSelfSigned:
		ep := newEndpoint("https", r.host, r.httpsPort, r.verifyFor(false))
		if f.probeHTTPS {
			if err := r.attemptHTTPS(ctx, ep); err != nil {
				return Outcome{}, err
			}
		}
		if !ep.VerifyTLS {
			r.logger.WarnContext(ctx, "TLS verification disabled; connection is encrypted but server identity is not verified",
				"host", ep.Host)
		}
		return outcomeYes(ep), nil

	case findTrustedRedirect:
		if f.target == "" {
			// forced strict: the configured host is already the trusted name
			return outcomeStrict(newEndpoint("https", r.host, r.httpsPort, true)), nil
		}
		ep, err := ParseEndpoint(f.target, true)
		if err != nil {
			return Outcome{}, err
		}
		return outcomeStrict(ep), nil

	case findSameHostRedirect:
		ep, err := ParseEndpoint(f.target, r.verifyFor(false))
		if err != nil {
			return Outcome{}, err
		}
		return outcomeYes(ep), nil

	case findOtherRedirect:
		ep, err := ParseEndpoint(f.target, true)
		if err != nil {
			return Outcome{}, err
		}
		// the override never applies to plain http
		if ep.Scheme == "https" {
			ep.VerifyTLS = r.verifyFor(true)
		}
		r.logger.WarnContext(ctx, "following unrecognised redirect as given",
			"target", f.target, "verify_tls", ep.VerifyTLS)
		return outcomeUnknown(ep), nil

	default:
		return Outcome{}, errors.New(errors.KindAPI, "", fmt.Sprintf("unhandled discovery finding %d", f.kind))
	}
}

// verifyFor applies the caller's override to a mode's default policy.
func (r *Resolver) verifyFor(modeDefault bool) bool {
	if r.verify != nil {
		return *r.verify
	}
	return modeDefault
}

func (r *Resolver) probe(ctx context.Context) (finding, error) {
	if r.httpPort == r.httpsPort {
		r.logger.DebugContext(ctx, "HTTP and HTTPS ports are equal, assuming HTTPS",
			"host", r.host, "port", r.httpsPort)
		return finding{kind: findSelfSigned, probeHTTPS: true}, nil
	}

	probeURL := newEndpoint("http", r.host, r.httpPort, true).URL()
	r.logger.DebugContext(ctx, "probing for redirect", "url", probeURL)

	resp, err := r.get(ctx, probeURL, true)
	if err != nil {
		if r.httpExplicit {
			cause := errors.Translate(err, probeURL)
			return finding{}, &errors.Error{
				Kind:    cause.Kind,
				URL:     probeURL,
				Message: fmt.Sprintf("HTTP port %d is unreachable", r.httpPort),
				Err:     err,
			}
		}
		r.logger.DebugContext(ctx, "HTTP probe failed, trying HTTPS", "error", err)
		return finding{kind: findSelfSigned, probeHTTPS: true}, nil
	}
	defer func() { _ = resp.Body.Close() }()

	r.logger.DebugContext(ctx, "HTTP probe response", "status", resp.StatusCode)

	switch resp.StatusCode {
	case http.StatusMovedPermanently, http.StatusFound,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		if f, ok := r.classifyRedirect(ctx, resp); ok {
			return f, nil
		}

	case http.StatusBadRequest:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, probeBodyLimit))
		if strings.Contains(strings.ToLower(string(body)), plainHTTPToHTTPSSignature) {
			r.logger.InfoContext(ctx, "HTTP probe reached an HTTPS port, server requires HTTPS", "host", r.host)
			return finding{kind: findSelfSigned, probeHTTPS: true}, nil
		}
		r.logger.InfoContext(ctx, "HTTP endpoint accessible, SSL/TLS mode is 'No'", "host", r.host, "status", resp.StatusCode)
		return finding{kind: findPlainHTTP}, nil

	case http.StatusOK:
		r.logger.InfoContext(ctx, "HTTP endpoint accessible, SSL/TLS mode is 'No'", "host", r.host, "status", resp.StatusCode)
		return finding{kind: findPlainHTTP}, nil
	}

	r.logger.WarnContext(ctx, "transport detection inconclusive, falling back to HTTPS",
		"host", r.host, "status", resp.StatusCode)
	return finding{kind: findSelfSigned, probeHTTPS: true}, nil
}

func (r *Resolver) classifyRedirect(ctx context.Context, resp *http.Response) (finding, bool) {
	target, err := resp.Location()
	if err != nil {
		return finding{}, false
	}
	host := strings.ToLower(target.Hostname())
	raw := target.String()

	switch {
	case IsTrustedHost(host):
		r.logger.InfoContext(ctx, "discovered myunraid.net redirect (Strict mode)", "target", raw)
		return finding{kind: findTrustedRedirect, target: raw}, true
	case strings.EqualFold(target.Scheme, "https") && strings.EqualFold(host, r.host):
		r.logger.InfoContext(ctx, "discovered HTTPS redirect (Yes mode)", "target", raw)
		return finding{kind: findSameHostRedirect, target: raw}, true
	default:
		return finding{kind: findOtherRedirect, target: raw}, true
	}
}

// attemptHTTPS confirms the server answers over TLS. Any HTTP response
// counts as success.
func (r *Resolver) attemptHTTPS(ctx context.Context, ep Endpoint) error {
	target := ep.URL()
	r.logger.DebugContext(ctx, "attempting HTTPS", "url", target, "verify_tls", ep.VerifyTLS)

	resp, err := r.get(ctx, target, ep.VerifyTLS)
	if err != nil {
		return errors.Translate(err, target)
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, probeBodyLimit))
	return resp.Body.Close()
}

func (r *Resolver) get(ctx context.Context, target string, verifyTLS bool) (*http.Response, error) {
	client, err := r.session.Client(verifyTLS)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		cancel()
		return nil, err
	}
	if r.auth != nil {
		if err := r.auth.ApplyAuth(req); err != nil {
			cancel()
			return nil, err
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		cancel()
		return nil, err
	}
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// cancelOnClose releases the probe deadline once the body is done.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

// String describes the resolver configuration for logs
func (r *Resolver) String() string {
	return "Resolver(" + r.host + ", http=" + strconv.Itoa(r.httpPort) +
		", https=" + strconv.Itoa(r.httpsPort) + ", mode=" + string(r.mode) + ")"
}
