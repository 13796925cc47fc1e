// Package metrics holds the Prometheus collectors shared by the camera
// controller, the catalog and the HTTP API.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "findit"

// Registry is the registry served on /metrics.
var Registry = prometheus.NewRegistry()

var (
	// CameraSessions counts acquisition attempts by outcome
	// (active, timeout, permission_denied, ...).
	CameraSessions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "camera",
		Name:      "sessions_total",
		Help:      "Camera acquisition attempts by outcome.",
	}, []string{"outcome"})

	// CameraAcquireSeconds observes how long successful acquisitions take.
	CameraAcquireSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "camera",
		Name:      "acquire_seconds",
		Help:      "Time from acquisition request to an active stream.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})

	// CameraCaptures counts still captures by result.
	CameraCaptures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "camera",
		Name:      "captures_total",
		Help:      "Still captures by result.",
	}, []string{"result"})

	// Uploads counts upload fallback attempts by result.
	Uploads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "uploads_total",
		Help:      "Image uploads by result.",
	}, []string{"result"})

	// Mutations counts catalog mutations by operation and result.
	Mutations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "catalog",
		Name:      "mutations_total",
		Help:      "Catalog mutations by operation and result.",
	}, []string{"op", "result"})

	// Records is the number of records in the catalog.
	Records = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "catalog",
		Name:      "records",
		Help:      "Records currently held by the catalog.",
	})

	// HTTPRequests counts API requests by method and status code.
	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by method and status code.",
	}, []string{"method", "code"})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		CameraSessions,
		CameraAcquireSeconds,
		CameraCaptures,
		Uploads,
		Mutations,
		Records,
		HTTPRequests,
	)
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
