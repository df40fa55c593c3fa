package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"geoem1d/pkg/forward"
)

// counter sums the counter samples of family name whose labels include want
func counter(t *testing.T, reg *prometheus.Registry, name string, want map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	total := 0.0
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metric:
		for _, m := range mf.GetMetric() {
			labels := make(map[string]string)
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			for k, v := range want {
				if labels[k] != v {
					continue metric
				}
			}
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func TestObserver(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.ObserveRun("frequency", 20*time.Millisecond, nil)
	c.ObserveRun("time", time.Second, errors.New("boom"))
	c.ObserveTransform("hankel-dlf", time.Millisecond, 120)
	c.ObserveTransform("hankel-dlf", time.Millisecond, 80)
	c.ObserveEntry(forward.StatusOK)
	c.ObserveEntry(forward.StatusFailed)
	c.ObserveEntry(forward.StatusFailed)

	testCases := []struct {
		name   string
		labels map[string]string
		want   float64
	}{
		{"geoem1d_runs_total", map[string]string{"domain": "frequency", "result": "ok"}, 1},
		{"geoem1d_runs_total", map[string]string{"result": "error"}, 1},
		{"geoem1d_kernel_evaluations_total", map[string]string{"method": "hankel-dlf"}, 200},
		{"geoem1d_response_entries_total", map[string]string{"status": "failed"}, 2},
		{"geoem1d_response_entries_total", map[string]string{"status": "ok"}, 1},
	}
	for _, tc := range testCases {
		if got := counter(t, reg, tc.name, tc.labels); got != tc.want {
			t.Errorf("%s %v: expected %g, got %g", tc.name, tc.labels, tc.want, got)
		}
	}
}

func TestMiddlewareAndHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	mux := http.NewServeMux()
	mux.HandleFunc("/teapot", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	mux.Handle("/metrics", Handler(reg))
	srv := c.Middleware(mux)

	for i := 0; i < 3; i++ {
		srv.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/teapot", nil))
	}
	if got := counter(t, reg, "geoem1d_http_requests_total", map[string]string{"path": "/teapot", "code": "418"}); got != 3 {
		t.Errorf("Expected 3 requests, got %g", got)
	}

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(w.Body)
	if w.Code != http.StatusOK || !strings.Contains(string(body), "geoem1d_http_requests_total") {
		t.Errorf("Expected the request counter in the exposition, got %d %s", w.Code, body)
	}
}
