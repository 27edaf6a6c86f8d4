// Package metrics provides Prometheus metrics for the extraction engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joseph-ayodele/cfdi-tracker/constants"
	"github.com/joseph-ayodele/cfdi-tracker/internal/extract"
)

// Metrics holds all collectors. Each instance owns its registry so tests and
// multiple servers in one process do not collide.
type Metrics struct {
	registry *prometheus.Registry

	DocumentsTotal     *prometheus.CounterVec
	LodgingStrategy    *prometheus.CounterVec
	UploadsRejected    *prometheus.CounterVec
	ExtractionDuration prometheus.Histogram

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates and registers all metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	m := &Metrics{registry: reg}

	m.DocumentsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cfdi_documents_total",
			Help: "Documents processed, by record status",
		},
		[]string{"status"},
	)

	m.LodgingStrategy = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cfdi_lodging_strategy_total",
			Help: "Strategy that produced the lodging tax of successful records",
		},
		[]string{"strategy"},
	)

	m.UploadsRejected = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cfdi_uploads_rejected_total",
			Help: "Uploads refused before extraction, by reason",
		},
		[]string{"reason"},
	)

	m.ExtractionDuration = f.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cfdi_extraction_duration_seconds",
			Help:    "Time spent extracting one document",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	// HTTP request metrics
	m.HTTPRequestsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cfdi_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "code"},
	)

	m.HTTPRequestDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cfdi_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveDocument implements extract.Observer.
func (m *Metrics) ObserveDocument(status constants.RecordStatus, lodging extract.Strategy, elapsed time.Duration) {
	m.DocumentsTotal.WithLabelValues(string(status)).Inc()
	m.ExtractionDuration.Observe(elapsed.Seconds())
	if status == constants.RecordStatusOK {
		m.LodgingStrategy.WithLabelValues(lodging.String()).Inc()
	}
}

// ObserveRejection implements batch.RejectObserver.
func (m *Metrics) ObserveRejection(reason string) {
	m.UploadsRejected.WithLabelValues(reason).Inc()
}

// RecordHTTPRequest records one served request.
func (m *Metrics) RecordHTTPRequest(route, code string, elapsed time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(route, code).Inc()
	m.HTTPRequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}
