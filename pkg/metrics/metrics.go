// Package metrics exposes forward run statistics and HTTP request metrics
// to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"geoem1d/pkg/forward"
)

// Collector implements forward.Observer
type Collector struct {
	runs        *prometheus.CounterVec
	runSeconds  *prometheus.HistogramVec
	transforms  *prometheus.HistogramVec
	evaluations *prometheus.CounterVec
	entries     *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpSeconds  *prometheus.HistogramVec
}

var _ forward.Observer = (*Collector)(nil)

// NewCollector creates the collectors and registers them with reg
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "geoem1d_runs_total",
				Help: "Total number of forward runs.",
			},
			[]string{"domain", "result"},
		),
		runSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "geoem1d_run_duration_seconds",
				Help:    "Forward run duration in seconds.",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
			},
			[]string{"domain"},
		),
		transforms: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "geoem1d_transform_duration_seconds",
				Help:    "Duration of one Hankel or Fourier transform in seconds.",
				Buckets: prometheus.ExponentialBuckets(1e-5, 4, 10),
			},
			[]string{"method"},
		),
		evaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "geoem1d_kernel_evaluations_total",
				Help: "Total number of wavenumber kernel evaluations.",
			},
			[]string{"method"},
		),
		entries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "geoem1d_response_entries_total",
				Help: "Response entries by status.",
			},
			[]string{"status"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "geoem1d_http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"path", "method", "code"},
		),
		httpSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "geoem1d_http_duration_seconds",
				Help:    "HTTP request duration in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"path", "method"},
		),
	}
	reg.MustRegister(c.runs, c.runSeconds, c.transforms, c.evaluations, c.entries, c.httpRequests, c.httpSeconds)
	return c
}

// ObserveTransform records one transform call
func (c *Collector) ObserveTransform(method string, elapsed time.Duration, evaluations int) {
	c.transforms.WithLabelValues(method).Observe(elapsed.Seconds())
	if evaluations > 0 {
		c.evaluations.WithLabelValues(method).Add(float64(evaluations))
	}
}

// ObserveEntry counts one response entry
func (c *Collector) ObserveEntry(status forward.Status) {
	c.entries.WithLabelValues(status.String()).Inc()
}

// ObserveRun records a finished run
func (c *Collector) ObserveRun(domain string, elapsed time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.runs.WithLabelValues(domain, result).Inc()
	c.runSeconds.WithLabelValues(domain).Observe(elapsed.Seconds())
}

// Handler returns the Prometheus metrics HTTP handler for g
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware records request count and duration for each request.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)

		c.httpRequests.WithLabelValues(r.URL.Path, r.Method, code).Inc()
		c.httpSeconds.WithLabelValues(r.URL.Path, r.Method).Observe(duration)
	})
}
