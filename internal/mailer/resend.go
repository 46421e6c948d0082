package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/utafrali/auth-service/pkg/httpclient"
)

// jsonPoster is implemented by *httpclient.CircuitBreakerClient.
type jsonPoster interface {
	PostJSON(ctx context.Context, url string, headers http.Header, body any) (*http.Response, error)
}

type resendEmail struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// ResendSender delivers email through the Resend HTTP API.
type ResendSender struct {
	client  jsonPoster
	baseURL string
	apiKey  string
	from    string
}

// NewResendClient builds the breaker-guarded client used for Resend. Sends are
// never retried: a 5xx can arrive after the email was accepted. metrics may be
// nil.
func NewResendClient(timeout time.Duration, logger *slog.Logger, metrics *httpclient.BreakerMetrics) *httpclient.CircuitBreakerClient {
	cfg := httpclient.DefaultConfig()
	cfg.MaxRetries = 0
	if timeout > 0 {
		cfg.Timeout = timeout
	}
	return httpclient.NewCircuitBreakerClient(httpclient.New(cfg),
		httpclient.DefaultCircuitBreakerConfig("resend"), logger, metrics)
}

// NewResendSender creates a sender posting to baseURL/emails.
func NewResendSender(client *httpclient.CircuitBreakerClient, baseURL, apiKey, from string) *ResendSender {
	return &ResendSender{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		from:    from,
	}
}

// Name returns the name of this sender.
func (s *ResendSender) Name() string {
	return "resend"
}

// Send posts msg to the Resend API. Any non-2xx response is an error.
func (s *ResendSender) Send(ctx context.Context, msg Message) error {
	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.PostJSON(ctx, s.baseURL+"/emails", headers, resendEmail{
		From:    s.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		HTML:    msg.HTML,
	})
	if err != nil {
		return fmt.Errorf("resend: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("resend: %w", httpclient.ParseResponseError(resp))
	}
	httpclient.Drain(resp)
	return nil
}
