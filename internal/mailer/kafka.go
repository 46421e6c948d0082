package mailer

import (
	"context"
	"fmt"

	"github.com/utafrali/auth-service/internal/event"
)

// verificationPublisher is implemented by *event.Producer.
type verificationPublisher interface {
	PublishVerificationRequested(ctx context.Context, data event.VerificationRequestedData) error
}

// KafkaSender hands rendered emails to a notification service over Kafka.
type KafkaSender struct {
	publisher verificationPublisher
}

// NewKafkaSender creates a sender publishing to the verification topic.
func NewKafkaSender(publisher *event.Producer) *KafkaSender {
	return &KafkaSender{publisher: publisher}
}

// Name returns the name of this sender.
func (s *KafkaSender) Name() string {
	return "kafka"
}

// Send publishes msg as an email.verification_requested event.
func (s *KafkaSender) Send(ctx context.Context, msg Message) error {
	err := s.publisher.PublishVerificationRequested(ctx, event.VerificationRequestedData{
		To:      msg.To,
		Subject: msg.Subject,
		HTML:    msg.HTML,
	})
	if err != nil {
		return fmt.Errorf("kafka sender: %w", err)
	}
	return nil
}
