package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collectMetric extracts the first metric of c whose labels include labels.
func collectMetric(c prometheus.Collector, labels map[string]string) *dto.Metric {
	ch := make(chan prometheus.Metric, 100)
	c.Collect(ch)
	close(ch)

	for m := range ch {
		d := &dto.Metric{}
		if err := m.Write(d); err != nil {
			continue
		}
		if hasLabels(d, labels) {
			return d
		}
	}
	return nil
}

func hasLabels(d *dto.Metric, labels map[string]string) bool {
	for k, v := range labels {
		found := false
		for _, lp := range d.GetLabel() {
			if lp.GetName() == k && lp.GetValue() == v {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func newMetricsRouter(m *HTTPMetrics, status int) *chi.Mux {
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/verify", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
	})
	return r
}

func TestHTTPMetrics_CountsByRoutePattern(t *testing.T) {
	m := NewHTTPMetrics(prometheus.NewRegistry(), "auth-service")
	r := newMetricsRouter(m, http.StatusOK)

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/verify?token=secret", nil)
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	got := collectMetric(m.total, map[string]string{
		"service": "auth-service", "method": "GET", "path": "/verify", "status": "200",
	})
	require.NotNil(t, got)
	assert.Equal(t, float64(3), got.GetCounter().GetValue())
}

func TestHTTPMetrics_RecordsDurationAndStatus(t *testing.T) {
	tests := []int{http.StatusOK, http.StatusBadRequest, http.StatusInternalServerError}
	for _, status := range tests {
		t.Run(http.StatusText(status), func(t *testing.T) {
			m := NewHTTPMetrics(prometheus.NewRegistry(), "auth-service")
			r := newMetricsRouter(m, status)
			r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/verify", nil))

			got := collectMetric(m.duration, map[string]string{"path": "/verify"})
			require.NotNil(t, got)
			assert.Equal(t, uint64(1), got.GetHistogram().GetSampleCount())
			assert.True(t, hasLabels(got, map[string]string{"status": strconv.Itoa(status)}))
		})
	}
}

func TestHTTPMetrics_InFlightGauge(t *testing.T) {
	m := NewHTTPMetrics(prometheus.NewRegistry(), "auth-service")

	var during float64
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/profile", func(w http.ResponseWriter, _ *http.Request) {
		during = collectMetric(m.inFlight, nil).GetGauge().GetValue()
		w.WriteHeader(http.StatusOK)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/profile", nil))

	assert.Equal(t, float64(1), during)
	assert.Equal(t, float64(0), collectMetric(m.inFlight, nil).GetGauge().GetValue())
}

func TestHTTPMetrics_UnknownRoute(t *testing.T) {
	m := NewHTTPMetrics(prometheus.NewRegistry(), "auth-service")
	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.NotNil(t, collectMetric(m.total, map[string]string{"path": "unknown"}))
}
