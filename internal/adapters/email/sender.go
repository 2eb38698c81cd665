// Package email delivers assignment notifications through an external
// provider.
package email

import (
	"context"
	"errors"
	"time"
)

// ErrSendFailed wraps every provider failure.
var ErrSendFailed = errors.New("email send failed")

// Message is one outgoing email.
type Message struct {
	To      []string
	From    string
	Subject string
	HTML    string
	Text    string
}

// Receipt is what the provider returned for an accepted message.
type Receipt struct {
	MessageID string
	SentAt    time.Time
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg Message) (Receipt, error)
}
