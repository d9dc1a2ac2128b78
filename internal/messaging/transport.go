// Package messaging delivers replies over the messaging channel and
// accepts inbound messages from it.
package messaging

import (
	"context"
	"sync"

	"github.com/wolfman30/clinic-intake/pkg/logging"
)

// Transport sends one text message to a user.
type Transport interface {
	Send(ctx context.Context, to, body string) error
}

// SentMessage is a message recorded by LogTransport.
type SentMessage struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

// LogTransport logs outbound messages instead of sending them and keeps
// the most recent ones for inspection. Used when no provider is
// configured.
type LogTransport struct {
	logger *logging.Logger
	limit  int

	mu   sync.Mutex
	sent []SentMessage
}

func NewLogTransport(limit int, logger *logging.Logger) *LogTransport {
	if logger == nil {
		logger = logging.Default()
	}
	if limit <= 0 {
		limit = 200
	}
	return &LogTransport{logger: logger, limit: limit}
}

func (t *LogTransport) Send(ctx context.Context, to, body string) error {
	t.mu.Lock()
	t.sent = append(t.sent, SentMessage{To: to, Body: body})
	if len(t.sent) > t.limit {
		t.sent = append([]SentMessage(nil), t.sent[len(t.sent)-t.limit:]...)
	}
	t.mu.Unlock()
	t.logger.Info("outbound message", "to", to, "body", body)
	return nil
}

// SendSMS lets LogTransport stand in for staff alert senders.
func (t *LogTransport) SendSMS(ctx context.Context, to, body string) error {
	return t.Send(ctx, to, body)
}

// Sent returns recorded messages, oldest first.
func (t *LogTransport) Sent() []SentMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]SentMessage(nil), t.sent...)
}

// SentTo returns recorded messages for one recipient.
func (t *LogTransport) SentTo(to string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []string
	for _, m := range t.sent {
		if m.To == to {
			out = append(out, m.Body)
		}
	}
	return out
}
