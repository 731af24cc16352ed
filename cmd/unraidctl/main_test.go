package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnines/unraid-connect/pkg/config"
	"github.com/saturnines/unraid-connect/pkg/observability"
	"github.com/saturnines/unraid-connect/pkg/observability/prom"
	"github.com/saturnines/unraid-connect/pkg/transport/graphql"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"UNRAID_CONFIG", "UNRAID_HOST", "UNRAID_API_KEY", "UNRAID_HTTP_PORT", "UNRAID_HTTPS_PORT",
		"UNRAID_MODE", "UNRAID_VERIFY_TLS", "UNRAID_TIMEOUT", "UNRAID_LOG_LEVEL", "UNRAID_LOG_FORMAT",
		"UNRAID_METRICS_ADDR",
	} {
		t.Setenv(k, "")
	}
}

// newServer answers GET probes with 400 (plain HTTP) and POSTs with post.
func newServer(t *testing.T, post http.HandlerFunc) []string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		post(w, r)
	}))
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	return []string{"-host", u.Hostname(), "-http-port", u.Port(), "-api-key", "k", "-log-level", "error"}
}

func execute(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_Usage(t *testing.T) {
	code, _, stderr := execute()
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "usage: unraidctl")

	code, stdout, _ := execute("help")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "probe")

	code, _, stderr = execute("explode")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "unknown command")
}

func TestRun_Probe(t *testing.T) {
	clearEnv(t)
	common := newServer(t, func(w http.ResponseWriter, r *http.Request) {})

	code, stdout, stderr := execute(append([]string{"probe", "-json"}, common...)...)
	require.Equal(t, 0, code, stderr)

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	assert.Equal(t, "none", out["mode"])
	assert.Equal(t, "127.0.0.1", out["header_domain"])
}

func TestRun_QueryWithVariablesAndPath(t *testing.T) {
	clearEnv(t)
	var got graphql.Request
	common := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = io.WriteString(w, `{"data":{"vm":{"name":"win11","state":"RUNNING"}}}`)
	})

	args := append([]string{"query", "-q", "query ($id: PrefixedID!) { vm(id: $id) { name state } }",
		"-vars", `{"id":"vm:1"}`, "-path", "vm.name"}, common...)
	code, stdout, stderr := execute(args...)
	require.Equal(t, 0, code, stderr)

	assert.Equal(t, "\"win11\"\n", stdout)
	assert.Equal(t, map[string]any{"id": "vm:1"}, got.Variables)
}

func TestRun_QueryReportsErrorKind(t *testing.T) {
	clearEnv(t)
	common := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	code, _, stderr := execute(append([]string{"query", "-q", "query { online }"}, common...)...)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "(authentication)")
}

func TestRun_Check(t *testing.T) {
	clearEnv(t)
	versions := func(platform string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintf(w, `{"data":{"info":{"versions":{"core":{"unraid":%q,"api":"4.29.2"}}}}}`, platform)
		}
	}

	code, stdout, stderr := execute(append([]string{"check"}, newServer(t, versions("7.2.3"))...)...)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "compatible")

	code, _, stderr = execute(append([]string{"check"}, newServer(t, versions("6.12.0"))...)...)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "(version)")
	assert.Contains(t, stderr, "6.12.0")
}

func TestBuildRequest(t *testing.T) {
	_, err := buildRequest("", "", "")
	assert.Error(t, err)

	_, err = buildRequest("query { online }", "q.graphql", "")
	assert.Error(t, err)

	_, err = buildRequest("query { online }", "", "[1,2]")
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "q.graphql")
	require.NoError(t, os.WriteFile(path, []byte("query { online }\n"), 0o600))
	req, err := buildRequest("", path, `{"a":1}`)
	require.NoError(t, err)
	assert.Equal(t, "query { online }\n", req.Query)
	assert.Equal(t, map[string]any{"a": 1.0}, req.Variables)
}

func TestCommonFlags_Precedence(t *testing.T) {
	clearEnv(t)
	t.Setenv("UNRAID_MODE", "yes")

	path := filepath.Join(t.TempDir(), "unraid.yaml")
	require.NoError(t, os.WriteFile(path, []byte("host: from-file\napi_key: file-key\nhttps_port: 8443\n"), 0o600))

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	common := registerCommon(fs)
	require.NoError(t, fs.Parse([]string{"-config", path, "-host", "from-flag", "-verify-tls", "true"}))

	cfg, err := common.config()
	require.NoError(t, err)
	assert.Equal(t, "from-flag", cfg.Host)
	assert.Equal(t, "file-key", cfg.APIKey)
	assert.Equal(t, 8443, cfg.HTTPSPort)
	assert.Equal(t, config.ModeYes, cfg.Mode)
	require.NotNil(t, cfg.VerifyTLS)
	assert.True(t, *cfg.VerifyTLS)
}

func TestCommonFlags_InvalidVerifyTLS(t *testing.T) {
	clearEnv(t)
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	common := registerCommon(fs)
	require.NoError(t, fs.Parse([]string{"-verify-tls", "maybe"}))

	_, err := common.config()
	assert.Error(t, err)
}

func TestPromptAPIKey(t *testing.T) {
	origTerm, origRead := isTerminal, readPassword
	t.Cleanup(func() { isTerminal, readPassword = origTerm, origRead })

	isTerminal = func(int) bool { return true }
	readPassword = func(int) ([]byte, error) { return []byte(" secret \n"), nil }

	var stderr bytes.Buffer
	cfg := config.Config{}
	require.NoError(t, promptAPIKey(&cfg, &stderr))
	assert.Equal(t, "secret", cfg.APIKey)
	assert.Contains(t, stderr.String(), "API key:")

	isTerminal = func(int) bool { return false }
	cfg = config.Config{}
	require.NoError(t, promptAPIKey(&cfg, &stderr))
	assert.Empty(t, cfg.APIKey)
}

func TestRunWatch_PollsUntilCancelled(t *testing.T) {
	clearEnv(t)
	common := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data":{"online":true}}`)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	var stdout, stderr bytes.Buffer
	code := runWatch(ctx, append([]string{"-interval", "50ms"}, common...), &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), "online=true")
}

func TestRunWatch_RejectsNonPositiveInterval(t *testing.T) {
	clearEnv(t)
	var stdout, stderr bytes.Buffer
	code := runWatch(context.Background(), []string{"-interval", "0s"}, &stdout, &stderr)
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr.String(), "-interval must be positive")
}

func TestMetricsMux(t *testing.T) {
	reg := prom.NewRegistry()
	obs := prom.NewClientObserver(reg)
	obs.Request(observability.RequestResultOK, time.Millisecond)

	srv := httptest.NewServer(metricsMux(prom.Handler(reg)))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `unraid_graphql_requests_total{result="ok"} 1`)

	resp, err = http.Get(srv.URL + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
