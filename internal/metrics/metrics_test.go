package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestAuthMetrics_Counts(t *testing.T) {
	m := NewAuthMetrics(prometheus.NewRegistry())

	m.Operation("login", OutcomeSuccess)
	m.Operation("login", OutcomeSuccess)
	m.Operation("login", "INVALID_CREDENTIALS")
	m.TokenIssued("access")
	m.EmailDelivery("log", OutcomeFailure)

	assert.Equal(t, 2.0, counterValue(t, m.operations.WithLabelValues("login", OutcomeSuccess)))
	assert.Equal(t, 1.0, counterValue(t, m.operations.WithLabelValues("login", "INVALID_CREDENTIALS")))
	assert.Equal(t, 1.0, counterValue(t, m.tokensIssued.WithLabelValues("access")))
	assert.Equal(t, 1.0, counterValue(t, m.emails.WithLabelValues("log", OutcomeFailure)))
}

func TestAuthMetrics_NilSafe(t *testing.T) {
	var m *AuthMetrics
	assert.NotPanics(t, func() {
		m.Operation("login", OutcomeSuccess)
		m.TokenIssued("access")
		m.EmailDelivery("log", OutcomeSuccess)
	})
}

func TestNewAuthMetrics_RegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewAuthMetrics(reg)
	m.Operation("register", OutcomeSuccess)
	m.TokenIssued("verification")
	m.EmailDelivery("resend", OutcomeSuccess)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.ElementsMatch(t, []string{
		"auth_operations_total",
		"auth_tokens_issued_total",
		"auth_verification_emails_total",
	}, names)
}
