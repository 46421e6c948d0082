package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// AuthMetrics counts auth flow outcomes. A nil *AuthMetrics records nothing.
type AuthMetrics struct {
	operations   *prometheus.CounterVec
	tokensIssued *prometheus.CounterVec
	emails       *prometheus.CounterVec
}

// NewAuthMetrics registers the auth collectors with reg.
func NewAuthMetrics(reg prometheus.Registerer) *AuthMetrics {
	factory := promauto.With(reg)
	return &AuthMetrics{
		operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_operations_total",
				Help: "Total number of auth operations by outcome code",
			},
			[]string{"operation", "result"},
		),
		tokensIssued: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_tokens_issued_total",
				Help: "Total number of tokens issued by kind",
			},
			[]string{"kind"},
		),
		emails: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_verification_emails_total",
				Help: "Total number of verification email deliveries by sender and outcome",
			},
			[]string{"sender", "outcome"},
		),
	}
}

// Operation records one auth operation. result is "success" or an error code.
func (m *AuthMetrics) Operation(operation, result string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, result).Inc()
}

// TokenIssued records one issued token of kind.
func (m *AuthMetrics) TokenIssued(kind string) {
	if m == nil {
		return
	}
	m.tokensIssued.WithLabelValues(kind).Inc()
}

// EmailDelivery records one verification email attempt.
func (m *AuthMetrics) EmailDelivery(sender, outcome string) {
	if m == nil {
		return
	}
	m.emails.WithLabelValues(sender, outcome).Inc()
}
