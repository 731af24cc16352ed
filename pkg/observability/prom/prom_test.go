package prom

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/saturnines/unraid-connect/pkg/observability"
)

func TestClientObserver_Counts(t *testing.T) {
	reg := NewRegistry()
	o := NewClientObserver(reg)

	o.Discovery(observability.DiscoveryResultOK, "yes", 10*time.Millisecond)
	o.Request(observability.RequestResultOK, time.Millisecond)
	o.Request(observability.RequestResultOK, time.Millisecond)
	o.Request(observability.RequestResultAuthentication, time.Millisecond)
	o.Compatibility(observability.CompatResultIncompatible)

	if got := testutil.ToFloat64(o.discoveryTotal.WithLabelValues("ok", "yes")); got != 1 {
		t.Fatalf("discovery total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(o.requestTotal.WithLabelValues("ok")); got != 2 {
		t.Fatalf("ok requests = %v, want 2", got)
	}
	if got := testutil.ToFloat64(o.requestTotal.WithLabelValues("authentication")); got != 1 {
		t.Fatalf("auth failures = %v, want 1", got)
	}
	if got := testutil.ToFloat64(o.compatTotal.WithLabelValues("incompatible")); got != 1 {
		t.Fatalf("compat incompatible = %v, want 1", got)
	}
}

func TestHandler_ServesRegisteredMetrics(t *testing.T) {
	reg := NewRegistry()
	o := NewClientObserver(reg)
	o.Request(observability.RequestResultTimeout, time.Second)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `unraid_graphql_requests_total{result="timeout"} 1`) {
		t.Fatalf("metrics output missing request counter:\n%s", rec.Body.String())
	}
}
