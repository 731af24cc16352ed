package discovery

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/saturnines/unraid-connect/pkg/errors"
)

// GraphQLPath is the path of the single GraphQL endpoint
const GraphQLPath = "/graphql"

// Endpoint is the resolved target. It is a value and never changes after
// discovery.
type Endpoint struct {
	Scheme       string // http or https
	Host         string
	Port         uint16
	Path         string
	VerifyTLS    bool
	HeaderDomain string // host used for Origin, Referer and Host headers
}

func defaultPort(scheme string) uint16 {
	if scheme == "https" {
		return 443
	}
	return 80
}

// hostPort renders host with the port omitted when it is the scheme default.
func (e Endpoint) hostPort(host string) string {
	if e.Port == 0 || e.Port == defaultPort(e.Scheme) {
		if strings.Contains(host, ":") {
			return "[" + host + "]"
		}
		return host
	}
	return net.JoinHostPort(host, strconv.Itoa(int(e.Port)))
}

// URL returns the full GraphQL URL
func (e Endpoint) URL() string {
	path := e.Path
	if path == "" {
		path = GraphQLPath
	}
	return e.Scheme + "://" + e.hostPort(e.Host) + path
}

// Origin returns the value for the Origin header
func (e Endpoint) Origin() string {
	return e.Scheme + "://" + e.hostPort(e.HeaderDomain)
}

// HostHeader returns the value for the Host header
func (e Endpoint) HostHeader() string {
	return e.hostPort(e.HeaderDomain)
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%s (verify_tls=%t, header_domain=%s)", e.URL(), e.VerifyTLS, e.HeaderDomain)
}

// newEndpoint builds an endpoint whose header domain is its own host.
func newEndpoint(scheme, host string, port int, verifyTLS bool) Endpoint {
	return Endpoint{
		Scheme:       scheme,
		Host:         host,
		Port:         uint16(port),
		Path:         GraphQLPath,
		VerifyTLS:    verifyTLS,
		HeaderDomain: host,
	}
}

// ParseEndpoint builds an Endpoint from an absolute URL such as a redirect
// target. An empty path becomes /graphql.
func ParseEndpoint(raw string, verifyTLS bool) (Endpoint, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Endpoint{}, errors.Wrap(err, errors.KindConnection, raw, "invalid endpoint URL")
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return Endpoint{}, errors.New(errors.KindConnection, raw, "endpoint URL must use http or https")
	}
	host := u.Hostname()
	if host == "" {
		return Endpoint{}, errors.New(errors.KindConnection, raw, "endpoint URL has no host")
	}

	port := defaultPort(scheme)
	if p := u.Port(); p != "" {
		n, err := strconv.ParseUint(p, 10, 16)
		if err != nil {
			return Endpoint{}, errors.Wrap(err, errors.KindConnection, raw, "invalid endpoint port")
		}
		port = uint16(n)
	}

	path := u.EscapedPath()
	if path == "" || path == "/" {
		path = GraphQLPath
	}

	return Endpoint{
		Scheme:       scheme,
		Host:         host,
		Port:         port,
		Path:         path,
		VerifyTLS:    verifyTLS,
		HeaderDomain: host,
	}, nil
}

// CleanHost strips a scheme prefix, trailing slashes and whitespace from a
// configured host.
func CleanHost(host string) string {
	host = strings.TrimSpace(host)
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	return strings.TrimRight(host, "/")
}
