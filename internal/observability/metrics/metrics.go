// Package metrics provides Prometheus instrumentation for contraverify.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	enabled     bool
	serviceName string
	registry    *prometheus.Registry

	// HTTP metrics
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec

	// Verification metrics
	resultsTotal     *prometheus.CounterVec
	explorerRequests *prometheus.CounterVec
	runDuration      *prometheus.HistogramVec
)

// Init initializes the metrics system. Each call starts from a fresh registry.
func Init(enabledFlag bool, svcName string) {
	enabled = enabledFlag
	serviceName = svcName

	if !enabled {
		return
	}

	registry = prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)
	constLabels := prometheus.Labels{"service": svcName}

	httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "http_requests_total",
			Help:        "Total number of HTTP requests",
			ConstLabels: constLabels,
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:        "http_request_duration_seconds",
			Help:        "HTTP request latency in seconds",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: constLabels,
		},
		[]string{"method", "path"},
	)

	resultsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "verification_results_total",
			Help:        "Per-artifact verification outcomes",
			ConstLabels: constLabels,
		},
		[]string{"network", "outcome"},
	)

	explorerRequests = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "explorer_requests_total",
			Help:        "Requests made to block explorer APIs",
			ConstLabels: constLabels,
		},
		[]string{"action", "status"},
	)

	runDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:        "verification_run_duration_seconds",
			Help:        "Wall time of a verification run",
			Buckets:     []float64{1, 5, 15, 30, 60, 120, 300, 600},
			ConstLabels: constLabels,
		},
		[]string{"network"},
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	if !enabled {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
	}
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
}

// WriteTextfile writes the current metrics in text exposition format, for
// node_exporter's textfile collector.
func WriteTextfile(path string) error {
	if !enabled {
		return nil
	}
	return prometheus.WriteToTextfile(path, registry)
}

// Gatherer exposes the registry, mainly for tests.
func Gatherer() prometheus.Gatherer {
	if registry == nil {
		return prometheus.NewRegistry()
	}
	return registry
}

// Enabled returns whether metrics are enabled.
func Enabled() bool {
	return enabled
}

// ServiceName returns the configured service name for metric labels.
func ServiceName() string {
	return serviceName
}
