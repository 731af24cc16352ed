package core

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnines/unraid-connect/pkg/config"
	"github.com/saturnines/unraid-connect/pkg/discovery"
	"github.com/saturnines/unraid-connect/pkg/errors"
)

func portOf(t *testing.T, srv *httptest.Server) int {
	t.Helper()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	p, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	return p
}

// tlsGraphQL is a self-signed HTTPS GraphQL endpoint.
func tlsGraphQL(t *testing.T, posts *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		posts.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"data":{"online":true}}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestEndToEnd_SameHostHTTPSRedirect(t *testing.T) {
	var posts atomic.Int32
	tlsSrv := tlsGraphQL(t, &posts)
	tlsPort := portOf(t, tlsSrv)

	redirect := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "https://127.0.0.1:"+strconv.Itoa(tlsPort)+"/graphql", http.StatusFound)
	}))
	t.Cleanup(redirect.Close)

	c := newClient(t, config.Config{
		Host:      "127.0.0.1",
		APIKey:    "k",
		HTTPPort:  portOf(t, redirect),
		HTTPSPort: tlsPort,
		Timeout:   config.Duration{Duration: 2 * time.Second},
	})

	online, err := c.Online(context.Background())
	require.NoError(t, err)
	assert.True(t, online)

	o, ok := c.Outcome()
	require.True(t, ok)
	assert.Equal(t, discovery.ModeYes, o.Mode)
	assert.False(t, o.Endpoint.VerifyTLS)
	assert.Equal(t, int32(1), posts.Load())
}

func TestEndToEnd_SharedPortGoesStraightToHTTPS(t *testing.T) {
	var posts atomic.Int32
	tlsSrv := tlsGraphQL(t, &posts)
	port := portOf(t, tlsSrv)

	c := newClient(t, config.Config{
		Host:      "127.0.0.1",
		APIKey:    "k",
		HTTPPort:  port,
		HTTPSPort: port,
		Timeout:   config.Duration{Duration: 2 * time.Second},
	})

	_, err := c.Execute(context.Background(), onlineReq())
	require.NoError(t, err)

	o, _ := c.Outcome()
	assert.Equal(t, discovery.ModeYes, o.Mode)
	assert.Equal(t, uint16(port), o.Endpoint.Port)
}

func TestEndToEnd_ForcedStrictVerifiesCertificate(t *testing.T) {
	var posts atomic.Int32
	tlsSrv := tlsGraphQL(t, &posts)
	off := false

	c := newClient(t, config.Config{
		Host:      "127.0.0.1",
		APIKey:    "k",
		HTTPSPort: portOf(t, tlsSrv),
		Mode:      config.ModeStrict,
		VerifyTLS: &off,
		Timeout:   config.Duration{Duration: 2 * time.Second},
	})

	_, err := c.Execute(context.Background(), onlineReq())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrTLS)
	assert.ErrorIs(t, err, errors.ErrConnection)
	assert.Equal(t, int32(0), posts.Load())
}

func TestEndToEnd_ForcedYesTrustsSelfSigned(t *testing.T) {
	var posts atomic.Int32
	tlsSrv := tlsGraphQL(t, &posts)

	c := newClient(t, config.Config{
		Host:      "127.0.0.1",
		APIKey:    "k",
		HTTPSPort: portOf(t, tlsSrv),
		Mode:      config.ModeYes,
		Timeout:   config.Duration{Duration: 2 * time.Second},
	})

	_, err := c.Execute(context.Background(), onlineReq())
	require.NoError(t, err)
	assert.Equal(t, int32(1), posts.Load())
}

func TestEndToEnd_DefaultPortTimeoutFallsBackToHTTPS(t *testing.T) {
	var posts atomic.Int32
	tlsSrv := tlsGraphQL(t, &posts)

	// port 80 swallows the dial until the probe gives up
	dialer := &net.Dialer{}
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		if addr == "127.0.0.1:80" {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return dialer.DialContext(ctx, network, addr)
	}
	t.Cleanup(tr.CloseIdleConnections)

	c := newClient(t, config.Config{
		Host:      "127.0.0.1",
		APIKey:    "k",
		HTTPSPort: portOf(t, tlsSrv),
		Timeout:   config.Duration{Duration: 300 * time.Millisecond},
	}, WithHTTPClient(&http.Client{Transport: tr}))

	online, err := c.Online(context.Background())
	require.NoError(t, err)
	assert.True(t, online)

	o, ok := c.Outcome()
	require.True(t, ok)
	assert.Equal(t, discovery.ModeYes, o.Mode)
	assert.Equal(t, int64(1), c.DiscoveryRuns())
	assert.Equal(t, int32(1), posts.Load())
}
