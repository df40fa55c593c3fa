package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"geoem1d/pkg/filters"
	"geoem1d/pkg/fourier"
)

func testServer(t *testing.T, warm bool) *Server {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	srv := NewServer(Settings{Summary: true, MaxBodyBytes: 4096}, logger, prometheus.NewRegistry())
	if warm {
		if err := srv.Warm(); err != nil {
			t.Fatalf("Warm failed: %v", err)
		}
	}
	return srv
}

func TestHealthEndpoints(t *testing.T) {
	srv := testServer(t, false)
	h := srv.Handler()

	testCases := []struct {
		path string
		want int
	}{
		{"/healthz", http.StatusOK},
		{"/readyz", http.StatusServiceUnavailable},
		{"/metrics", http.StatusOK},
	}
	for _, tc := range testCases {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest("GET", tc.path, nil))
		if w.Code != tc.want {
			t.Errorf("%s: status = %d, want %d", tc.path, w.Code, tc.want)
		}
	}

	if err := srv.Warm(); err != nil {
		t.Fatalf("Warm failed: %v", err)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/readyz", nil))
	if w.Code != http.StatusOK {
		t.Errorf("/readyz after warm-up: status = %d, want 200", w.Code)
	}
}

const body = `{"name": "api",
"model": {"depths": [100, 200], "resistivity": [1, 100, 1]},
"source": {"kind": "electric-dipole", "position": {"x": 0, "y": 0, "z": 50}},
"receivers": [
  {"kind": "electric", "position": {"x": 500, "y": 0, "z": 50}},
  {"kind": "electric", "position": {"x": 1000, "y": 0, "z": 50}}
],
"axis": {"frequencies": [1]}}`

func TestModel(t *testing.T) {
	h := testServer(t, true).Handler()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("POST", "/v1/model", strings.NewReader(body)))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var rep struct {
		Name   string `json:"name"`
		Traces []struct {
			Offset float64    `json:"offset"`
			Real   []*float64 `json:"real"`
			Imag   []*float64 `json:"imag"`
		} `json:"traces"`
		Manifest struct {
			Hankel []string `json:"hankel"`
		} `json:"manifest"`
		Summary *struct {
			Entries int `json:"entries"`
		} `json:"summary"`
	}
	if err := json.NewDecoder(w.Body).Decode(&rep); err != nil {
		t.Fatalf("Failed to decode report: %v", err)
	}
	if rep.Name != "api" || len(rep.Traces) != 2 {
		t.Fatalf("Unexpected report %+v", rep)
	}
	for i, tr := range rep.Traces {
		if len(tr.Real) != 1 || tr.Real[0] == nil || tr.Imag[0] == nil {
			t.Errorf("Trace %d: expected one finite value, got %v", i, tr.Real)
		}
	}
	if rep.Summary == nil || rep.Summary.Entries != 2 {
		t.Errorf("Expected a summary of 2 entries, got %+v", rep.Summary)
	}
}

func TestModelErrors(t *testing.T) {
	h := testServer(t, true).Handler()

	testCases := []struct {
		name string
		body string
		want int
		kind string
	}{
		{"malformed", `{"model": `, http.StatusBadRequest, "decode"},
		{"unknown field", `{"sources": []}`, http.StatusBadRequest, "decode"},
		{"unknown kind", strings.Replace(body, "electric-dipole", "dynamo", 1), http.StatusBadRequest, "configuration"},
		{"no receivers", `{"model": {"resistivity": [1]}, "source": {"kind": "electric-dipole"}, "axis": {"frequencies": [1]}}`,
			http.StatusBadRequest, "configuration"},
		{"too large", `{"name": "` + strings.Repeat("x", 8192) + `"}`, http.StatusBadRequest, "decode"},
		{"time domain", strings.Replace(body, `"frequencies": [1]`, `"times": [0.1], "signal": "switch-on"`, 1),
			http.StatusOK, ""},
	}
	for _, tc := range testCases {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest("POST", "/v1/model", strings.NewReader(tc.body)))
		if w.Code != tc.want {
			t.Errorf("%s: status = %d, want %d (%s)", tc.name, w.Code, tc.want, w.Body.String())
			continue
		}
		if tc.kind == "" {
			continue
		}
		var e errorBody
		if err := json.NewDecoder(w.Body).Decode(&e); err != nil || e.Kind != tc.kind {
			t.Errorf("%s: expected error kind %q, got %+v (%v)", tc.name, tc.kind, e, err)
		}
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/v1/model", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /v1/model: status = %d, want 405", w.Code)
	}
}

func TestUnsupported(t *testing.T) {
	m, err := fourier.NewDLF(filters.FourierFine, fourier.Cosine)
	if err != nil {
		t.Fatalf("Failed to build method: %v", err)
	}
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	srv := NewServer(Settings{}, logger, prometheus.NewRegistry())
	srv.settings.Options.Fourier = &m

	req := strings.Replace(body, `"frequencies": [1]`, `"times": [0.1], "signal": "switch-on"`, 1)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest("POST", "/v1/model", strings.NewReader(req)))
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422: %s", w.Code, w.Body.String())
	}
}
