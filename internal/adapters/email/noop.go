package email

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/gmassign/pkg/logger"
)

// NoopSender logs and records messages without delivering them. It is the
// default provider and doubles as a test double.
type NoopSender struct {
	logger logger.Logger

	mu   sync.Mutex
	sent []Message
}

// NewNoopSender creates a NoopSender.
func NewNoopSender(l logger.Logger) *NoopSender {
	if l == nil {
		l = logger.Nop()
	}
	return &NoopSender{logger: l}
}

// Send implements Sender.
func (s *NoopSender) Send(ctx context.Context, msg Message) (Receipt, error) {
	s.mu.Lock()
	s.sent = append(s.sent, msg)
	s.mu.Unlock()

	s.logger.Info(ctx, "email not delivered (noop provider)",
		logger.Any("to", msg.To),
		logger.String("subject", msg.Subject),
	)
	return Receipt{MessageID: "noop-" + uuid.NewString(), SentAt: time.Now()}, nil
}

// Sent returns a copy of every message passed to Send.
func (s *NoopSender) Sent() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.sent...)
}
