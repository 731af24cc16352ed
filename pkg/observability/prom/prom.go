package prom

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/saturnines/unraid-connect/pkg/observability"
)

// NewRegistry returns a fresh Prometheus registry.
func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// Handler returns a Prometheus HTTP handler bound to the registry.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// ClientObserver exports client metrics to Prometheus.
type ClientObserver struct {
	discoveryTotal   *prometheus.CounterVec
	discoveryLatency prometheus.Histogram
	requestTotal     *prometheus.CounterVec
	requestLatency   prometheus.Histogram
	compatTotal      *prometheus.CounterVec
}

// NewClientObserver registers client metrics on the registry.
func NewClientObserver(reg *prometheus.Registry) *ClientObserver {
	o := &ClientObserver{
		discoveryTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "unraid_discovery_total",
			Help: "Endpoint discovery runs by result and detected mode.",
		}, []string{"result", "mode"}),
		discoveryLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "unraid_discovery_latency_seconds",
			Help:    "Time spent probing the server transport mode.",
			Buckets: prometheus.DefBuckets,
		}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "unraid_graphql_requests_total",
			Help: "GraphQL operations by result.",
		}, []string{"result"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "unraid_graphql_request_latency_seconds",
			Help:    "GraphQL operation latency, including discovery wait.",
			Buckets: prometheus.DefBuckets,
		}),
		compatTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "unraid_compatibility_checks_total",
			Help: "Server version compatibility checks by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(
		o.discoveryTotal,
		o.discoveryLatency,
		o.requestTotal,
		o.requestLatency,
		o.compatTotal,
	)
	return o
}

func (o *ClientObserver) Discovery(result observability.DiscoveryResult, mode string, d time.Duration) {
	o.discoveryTotal.WithLabelValues(string(result), mode).Inc()
	o.discoveryLatency.Observe(d.Seconds())
}

func (o *ClientObserver) Request(result observability.RequestResult, d time.Duration) {
	o.requestTotal.WithLabelValues(string(result)).Inc()
	o.requestLatency.Observe(d.Seconds())
}

func (o *ClientObserver) Compatibility(result observability.CompatResult) {
	o.compatTotal.WithLabelValues(string(result)).Inc()
}

var _ observability.ClientObserver = (*ClientObserver)(nil)
