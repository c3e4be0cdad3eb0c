package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds collectors registered on a dedicated registry, so that tests
// can build as many servers as they like.
type Metrics struct {
	registry *prometheus.Registry

	RequestCounter  *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	APICalls        *prometheus.CounterVec
	Uploads         *prometheus.CounterVec
	UploadedFiles   prometheus.Counter
}

// New creates and registers all collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RequestCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mapsdrop",
			Name:      "http_requests_total",
			Help:      "Number of HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mapsdrop",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		APICalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mapsdrop",
			Name:      "maps_api_calls_total",
			Help:      "Calls to the mapping API by operation and status code",
		}, []string{"operation", "code"}),
		Uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mapsdrop",
			Name:      "uploads_total",
			Help:      "Archive uploads by result",
		}, []string{"result"}),
		UploadedFiles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mapsdrop",
			Name:      "uploaded_files_total",
			Help:      "Shapefile components uploaded to the mapping API",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.RequestCounter,
		m.RequestDuration,
		m.APICalls,
		m.Uploads,
		m.UploadedFiles,
	)

	return m
}

// Handler exposes the registry in Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gatherer returns the underlying registry for tests
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// ObserveAPICall counts one mapping API call. A nil receiver is a no-op.
func (m *Metrics) ObserveAPICall(operation string, code int) {
	if m == nil {
		return
	}
	m.APICalls.WithLabelValues(operation, strconv.Itoa(code)).Inc()
}

// ObserveUpload counts one finished upload attempt. A nil receiver is a no-op.
func (m *Metrics) ObserveUpload(result string, files int) {
	if m == nil {
		return
	}
	m.Uploads.WithLabelValues(result).Inc()
	m.UploadedFiles.Add(float64(files))
}
