// Package metrics exposes Prometheus metrics for reloads and HTTP traffic.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"aadhaar/internal/pipeline"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	registry *prometheus.Registry

	// Reload outcomes by status
	Reloads *prometheus.CounterVec

	// Category loads that failed on malformed input
	CategoryFailures *prometheus.CounterVec

	ReloadDuration prometheus.Histogram

	// 1 while the empty snapshot is served after an unexpected failure
	Degraded prometheus.Gauge

	SnapshotVersion prometheus.Gauge
	Records         *prometheus.GaugeVec
	States          prometheus.Gauge

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// New creates a registry with the Go and process collectors and registers
// every service metric on it.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := NewWith(reg)
	m.registry = reg
	return m
}

// NewWith registers the service metrics on reg.
func NewWith(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Reloads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "aadhaar_reloads_total",
			Help: "Total reloads by outcome",
		}, []string{"status"}), // status: "ok", "partial", "failed"

		CategoryFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "aadhaar_category_load_failures_total",
			Help: "Category loads rejected as malformed input",
		}, []string{"category"}),

		ReloadDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "aadhaar_reload_duration_seconds",
			Help:    "Duration of full reloads",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),

		Degraded: f.NewGauge(prometheus.GaugeOpts{
			Name: "aadhaar_degraded",
			Help: "1 when the last reload failed and the empty snapshot is served",
		}),

		SnapshotVersion: f.NewGauge(prometheus.GaugeOpts{
			Name: "aadhaar_snapshot_version",
			Help: "Version of the snapshot currently served",
		}),

		Records: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "aadhaar_records",
			Help: "Records held by the current snapshot per category",
		}, []string{"category"}),

		States: f.NewGauge(prometheus.GaugeOpts{
			Name: "aadhaar_states",
			Help: "Distinct states in the current state summary",
		}),

		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "aadhaar_http_requests_total",
			Help: "HTTP requests by route, method and status code",
		}, []string{"route", "method", "code"}),

		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "aadhaar_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// ReloadCompleted implements pipeline.Observer.
func (m *Metrics) ReloadCompleted(_ context.Context, snap *pipeline.Snapshot, report pipeline.Report) {
	if m == nil {
		return
	}
	m.Reloads.WithLabelValues(string(report.Status)).Inc()
	m.ReloadDuration.Observe(report.Duration.Seconds())
	for _, c := range report.Failed() {
		m.CategoryFailures.WithLabelValues(c.String()).Inc()
	}

	if snap.Degraded {
		m.Degraded.Set(1)
	} else {
		m.Degraded.Set(0)
	}
	m.SnapshotVersion.Set(float64(snap.Version))
	for c, t := range snap.Tables {
		m.Records.WithLabelValues(c.String()).Set(float64(t.Len()))
	}
	m.States.Set(float64(len(snap.Summary)))
}

// Handler serves the registry created by New, or the default gatherer.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latencies labelled by chi route
// pattern, keeping label cardinality bounded.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m == nil {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		m.HTTPDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
