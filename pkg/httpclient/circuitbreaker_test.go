package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/auth-service/pkg/logger"
)

func testBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:         "resend",
		MaxRequests:  1,
		Timeout:      50 * time.Millisecond,
		FailureRatio: 0.5,
		MinRequests:  2,
	}
}

func gaugeValue(t *testing.T, m *BreakerMetrics, name string) float64 {
	t.Helper()
	var d dto.Metric
	require.NoError(t, m.state.WithLabelValues(name).Write(&d))
	return d.GetGauge().GetValue()
}

func statusServer(status *atomic.Int32) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(int(status.Load()))
		_, _ = w.Write([]byte(`{"name":"application_error","message":"upstream down"}`))
	}))
}

func TestCircuitBreaker_PassesSuccess(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusOK)
	server := statusServer(&status)
	defer server.Close()

	cb := NewCircuitBreakerClient(New(fastConfig(0)), testBreakerConfig(), logger.Discard(), nil)
	resp, err := cb.PostJSON(context.Background(), server.URL, nil, struct{}{})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestCircuitBreaker_TripsOn5xxAndRecovers(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusInternalServerError)
	server := statusServer(&status)
	defer server.Close()

	reg := prometheus.NewRegistry()
	metrics := NewBreakerMetrics(reg)
	cb := NewCircuitBreakerClient(New(fastConfig(0)), testBreakerConfig(), logger.Discard(), metrics)

	for i := 0; i < 2; i++ {
		_, err := cb.PostJSON(context.Background(), server.URL, nil, struct{}{})
		var se *StatusError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, "upstream down", se.Message)
	}
	assert.Equal(t, gobreaker.StateOpen, cb.State())
	assert.Equal(t, float64(2), gaugeValue(t, metrics, "resend"))

	_, err := cb.PostJSON(context.Background(), server.URL, nil, struct{}{})
	assert.ErrorIs(t, err, ErrCircuitOpen)

	status.Store(http.StatusOK)
	time.Sleep(80 * time.Millisecond)

	resp, err := cb.PostJSON(context.Background(), server.URL, nil, struct{}{})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, gobreaker.StateClosed, cb.State())
	assert.Equal(t, float64(0), gaugeValue(t, metrics, "resend"))
}

func TestCircuitBreaker_4xxNotCounted(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusUnprocessableEntity)
	server := statusServer(&status)
	defer server.Close()

	cb := NewCircuitBreakerClient(New(fastConfig(0)), testBreakerConfig(), logger.Discard(), nil)
	for i := 0; i < 4; i++ {
		resp, err := cb.PostJSON(context.Background(), server.URL, nil, struct{}{})
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		resp.Body.Close()
	}
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestDefaultCircuitBreakerConfig(t *testing.T) {
	cfg := DefaultCircuitBreakerConfig("resend")
	assert.Equal(t, "resend", cfg.Name)
	assert.Equal(t, uint32(5), cfg.MinRequests)
	assert.Equal(t, 0.5, cfg.FailureRatio)
}
