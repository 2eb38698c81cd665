package email

import (
	"context"
	"fmt"
	"time"

	"github.com/resend/resend-go/v2"

	"github.com/okian/gmassign/pkg/logger"
)

// ResendSender sends through the Resend API.
type ResendSender struct {
	client *resend.Client
	from   string
	logger logger.Logger
}

// NewResendSender creates a sender using apiKey. from is used when a message
// has no sender of its own.
func NewResendSender(apiKey, from string, l logger.Logger) *ResendSender {
	if l == nil {
		l = logger.Nop()
	}
	return &ResendSender{
		client: resend.NewClient(apiKey),
		from:   from,
		logger: l,
	}
}

// Send implements Sender.
func (s *ResendSender) Send(ctx context.Context, msg Message) (Receipt, error) {
	from := msg.From
	if from == "" {
		from = s.from
	}
	sent, err := s.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    from,
		To:      msg.To,
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
	})
	if err != nil {
		s.logger.Error(ctx, "resend send failed",
			logger.Any("to", msg.To),
			logger.String("subject", msg.Subject),
			logger.Error(err),
		)
		return Receipt{}, fmt.Errorf("%w: resend: %w", ErrSendFailed, err)
	}
	s.logger.Debug(ctx, "resend accepted message", logger.String("message_id", sent.Id))
	return Receipt{MessageID: sent.Id, SentAt: time.Now()}, nil
}
