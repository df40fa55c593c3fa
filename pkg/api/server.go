// Package api serves forward runs over HTTP
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"geoem1d/pkg/emerror"
	"geoem1d/pkg/filters"
	"geoem1d/pkg/forward"
	"geoem1d/pkg/metrics"
	"geoem1d/pkg/survey"
)

// Settings configure the server
type Settings struct {
	Addr string

	// Options are the driver options of every run; Logger and Observer are
	// set by the server
	Options forward.Options

	// MaxBodyBytes limits the request size
	MaxBodyBytes int64

	// MaxRuns bounds the number of concurrent runs; further requests get 503
	MaxRuns int64

	// Summary adds statistics to every report
	Summary bool
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     logrus.FieldLogger
	settings   Settings
	collector  *metrics.Collector
	runs       *semaphore.Weighted
	ready      atomic.Bool
}

// NewServer creates a configured HTTP server. Metrics are registered with reg.
func NewServer(s Settings, logger logrus.FieldLogger, reg *prometheus.Registry) *Server {
	if s.MaxBodyBytes <= 0 {
		s.MaxBodyBytes = 1 << 20
	}
	if s.MaxRuns <= 0 {
		s.MaxRuns = 4
	}
	srv := &Server{
		logger:    logger,
		settings:  s,
		collector: metrics.NewCollector(reg),
		runs:      semaphore.NewWeighted(s.MaxRuns),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", healthz)
	mux.HandleFunc("GET /readyz", srv.readyz)
	mux.Handle("GET /metrics", metrics.Handler(reg))
	mux.HandleFunc("POST /v1/model", srv.model)

	// metrics -> logging -> mux
	var handler http.Handler = mux
	handler = loggingMiddleware(logger)(handler)
	handler = srv.collector.Middleware(handler)

	srv.httpServer = &http.Server{
		Addr:              s.Addr,
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return srv
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Handler returns the routed handler with its middleware
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Warm designs the built-in filters and marks the server ready
func (s *Server) Warm() error {
	for _, name := range filters.Names() {
		if _, err := filters.Get(name); err != nil {
			return err
		}
	}
	s.ready.Store(true)
	s.logger.Infof("Designed %d built-in filters, server ready", len(filters.Names()))
	return nil
}

// ListenAndServe warms the filters and starts the HTTP server.
func (s *Server) ListenAndServe() error {
	if err := s.Warm(); err != nil {
		return err
	}
	return s.httpServer.ListenAndServe()
}

func healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok\n"))
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	if !s.ready.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("warming up\n"))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready\n"))
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func writeError(w http.ResponseWriter, code int, kind string, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(errorBody{Error: err.Error(), Kind: kind})
}

// model runs the survey in the request body and returns its report
func (s *Server) model(w http.ResponseWriter, r *http.Request) {
	if !s.runs.TryAcquire(1) {
		writeError(w, http.StatusServiceUnavailable, "busy", errors.New("too many concurrent runs"))
		return
	}
	defer s.runs.Release(1)

	var f survey.File
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.settings.MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		writeError(w, http.StatusBadRequest, "decode", err)
		return
	}
	in, err := f.Input()
	if err != nil {
		writeError(w, http.StatusBadRequest, "configuration", err)
		return
	}

	opts := s.settings.Options
	opts.Logger = s.logger.WithField("survey", f.Name)
	opts.Observer = s.collector
	resp, err := forward.Run(r.Context(), in, opts)
	switch {
	case err == nil:
	case emerror.IsUnsupported(err):
		writeError(w, http.StatusUnprocessableEntity, "unsupported", err)
		return
	case emerror.IsConfiguration(err):
		writeError(w, http.StatusBadRequest, "configuration", err)
		return
	case r.Context().Err() != nil:
		s.logger.Warnf("Run of %q cancelled: %v", f.Name, err)
		return
	default:
		writeError(w, http.StatusInternalServerError, "internal", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := survey.NewReport(f.Name, in, resp, s.settings.Summary).Write(w, "json"); err != nil {
		s.logger.Errorf("Failed to write report: %v", err)
	}
}

// probePath returns true for health/readiness probe paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz" || path == "/metrics"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(logger logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			entry := logger.WithFields(logrus.Fields{
				"component":   "api",
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      sr.statusCode,
				"duration_ms": time.Since(start).Milliseconds(),
				"remote_ip":   r.RemoteAddr,
			})
			if probePath(r.URL.Path) {
				entry.Debug("request")
			} else {
				entry.Info("request")
			}
		})
	}
}
