package mailer

import "context"

// Message is one rendered email.
type Message struct {
	To      string
	Subject string
	HTML    string
	// Link is the verification link embedded in HTML.
	Link string
}

// Sender delivers rendered emails through one transport.
type Sender interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}
