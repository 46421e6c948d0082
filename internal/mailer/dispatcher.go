package mailer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/url"
	"runtime/debug"
	"sync"
	"time"

	"github.com/utafrali/auth-service/internal/metrics"
	"github.com/utafrali/auth-service/pkg/httpclient"
	"github.com/utafrali/auth-service/pkg/logger"
)

// VerificationSubject is the subject line of verification emails.
const VerificationSubject = "Verify your email"

var verificationTemplate = template.Must(template.New("verification").Parse(`<p>Hello,</p>
<p>Click the link below to verify your email address:</p>
<p><a href="{{.Link}}">Verify Email</a></p>
<p>This link will expire in {{.ExpiresIn}}.</p>
`))

// DispatcherConfig configures verification email delivery.
type DispatcherConfig struct {
	// Timeout bounds one background send.
	Timeout time.Duration
	// LinkTTL is the verification token lifetime shown in the email.
	LinkTTL time.Duration
}

// Dispatcher sends verification emails in the background. Delivery failures
// are logged and counted, never returned to the caller.
type Dispatcher struct {
	sender  Sender
	logger  *slog.Logger
	metrics *metrics.AuthMetrics
	cfg     DispatcherConfig
	wg      sync.WaitGroup
}

// NewDispatcher creates a dispatcher over sender.
func NewDispatcher(sender Sender, cfg DispatcherConfig, logger *slog.Logger, m *metrics.AuthMetrics) *Dispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.LinkTTL <= 0 {
		cfg.LinkTTL = 15 * time.Minute
	}
	return &Dispatcher{sender: sender, logger: logger, metrics: m, cfg: cfg}
}

// VerificationLink appends the token to base as the "token" query parameter.
func VerificationLink(base, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse verification url: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// RenderVerification builds the verification email for to.
func (d *Dispatcher) RenderVerification(to, link string) (Message, error) {
	var buf bytes.Buffer
	err := verificationTemplate.Execute(&buf, struct {
		Link      string
		ExpiresIn string
	}{Link: link, ExpiresIn: humanizeDuration(d.cfg.LinkTTL)})
	if err != nil {
		return Message{}, fmt.Errorf("render verification email: %w", err)
	}
	return Message{To: to, Subject: VerificationSubject, HTML: buf.String(), Link: link}, nil
}

// SendVerification renders and sends the verification email on a background
// goroutine. The send outlives the request: it keeps the request's values
// but not its cancellation, bounded by the configured timeout.
func (d *Dispatcher) SendVerification(ctx context.Context, to, link string) {
	log := logger.WithContext(ctx, d.logger)

	msg, err := d.RenderVerification(to, link)
	if err != nil {
		log.ErrorContext(ctx, "verification email not sent", slog.String("error", err.Error()))
		d.metrics.EmailDelivery(d.sender.Name(), metrics.OutcomeFailure)
		return
	}

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.cfg.Timeout)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer cancel()
		defer func() {
			if rec := recover(); rec != nil {
				log.ErrorContext(sendCtx, "panic in email sender",
					slog.Any("panic", rec),
					slog.String("sender", d.sender.Name()),
					slog.String("stack", string(debug.Stack())),
				)
				d.metrics.EmailDelivery(d.sender.Name(), metrics.OutcomeFailure)
			}
		}()

		if err := d.sender.Send(sendCtx, msg); err != nil {
			log.ErrorContext(sendCtx, "failed to send verification email",
				slog.String("sender", d.sender.Name()),
				slog.Bool("temporary", isTemporary(err)),
				slog.String("error", err.Error()),
			)
			d.metrics.EmailDelivery(d.sender.Name(), metrics.OutcomeFailure)
			return
		}
		log.InfoContext(sendCtx, "verification email sent", slog.String("sender", d.sender.Name()))
		d.metrics.EmailDelivery(d.sender.Name(), metrics.OutcomeSuccess)
	}()
}

// Wait blocks until every in-flight send finishes or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for pending emails: %w", ctx.Err())
	}
}

// isTemporary reports whether a failed send hit an upstream status that may
// clear later. Nothing is retried; the flag is for operators.
func isTemporary(err error) bool {
	var se *httpclient.StatusError
	return errors.As(err, &se) && se.Temporary()
}

func humanizeDuration(d time.Duration) string {
	switch {
	case d%time.Hour == 0 && d >= time.Hour:
		return pluralize(int(d/time.Hour), "hour")
	case d%time.Minute == 0 && d >= time.Minute:
		return pluralize(int(d/time.Minute), "minute")
	default:
		return d.String()
	}
}

func pluralize(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
