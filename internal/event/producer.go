package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/auth-service/internal/domain"
	pkgkafka "github.com/utafrali/auth-service/pkg/kafka"
)

// Kafka topic constants for auth domain events.
const (
	TopicUserRegistered             = "auth.user.registered"
	TopicUserVerified               = "auth.user.verified"
	TopicEmailVerificationRequested = "auth.email.verification_requested"
)

// Source identifier for events originating from the auth service.
const SourceAuthService = "auth-service"

// UserRegisteredData is the payload for a user.registered event.
type UserRegisteredData struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// UserVerifiedData is the payload for a user.verified event.
type UserVerifiedData struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// VerificationRequestedData asks a notification service to deliver a
// verification email.
type VerificationRequestedData struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

// Publisher emits auth domain events.
type Publisher interface {
	PublishUserRegistered(ctx context.Context, user *domain.User) error
	PublishUserVerified(ctx context.Context, user *domain.User) error
}

// eventWriter is implemented by *pkgkafka.Producer.
type eventWriter interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes auth domain events to Kafka.
type Producer struct {
	kafka  eventWriter
	logger *slog.Logger
}

// NewProducer creates a new event producer for the auth service.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishUserRegistered publishes a user.registered event.
func (p *Producer) PublishUserRegistered(ctx context.Context, user *domain.User) error {
	data := UserRegisteredData{
		ID:    user.ID,
		Name:  user.Name,
		Email: user.Email,
		Role:  user.Role,
	}
	return p.publish(ctx, TopicUserRegistered, user.ID, data)
}

// PublishUserVerified publishes a user.verified event.
func (p *Producer) PublishUserVerified(ctx context.Context, user *domain.User) error {
	return p.publish(ctx, TopicUserVerified, user.ID, UserVerifiedData{ID: user.ID, Email: user.Email})
}

// PublishVerificationRequested publishes a rendered verification email for
// delivery by a notification service.
func (p *Producer) PublishVerificationRequested(ctx context.Context, data VerificationRequestedData) error {
	return p.publish(ctx, TopicEmailVerificationRequested, data.To, data)
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID string, data any) error {
	event, err := pkgkafka.NewEvent(ctx, topic, aggregateID, SourceAuthService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published event",
		slog.String("topic", topic),
		slog.String("aggregate_id", aggregateID),
	)
	return nil
}

// NoopPublisher discards events. It is used when Kafka is disabled.
type NoopPublisher struct{}

func (NoopPublisher) PublishUserRegistered(context.Context, *domain.User) error { return nil }

func (NoopPublisher) PublishUserVerified(context.Context, *domain.User) error { return nil }
