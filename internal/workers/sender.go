package workers

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

var ErrNoRecipient = errors.New("notification has no recipient")

type Email struct {
	To      string
	Subject string
	Body    string
}

// Receipt confirms a send.
type Receipt struct {
	MessageID string
}

// Sender performs the outbound send action for a composed notification.
type Sender interface {
	Send(ctx context.Context, msg Email) (Receipt, error)
}

// LogSender writes messages to the log instead of a mail server.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, msg Email) (Receipt, error) {
	if strings.TrimSpace(msg.To) == "" {
		return Receipt{}, ErrNoRecipient
	}
	id := uuid.NewString()
	slog.InfoContext(ctx, "Sending email", "to", msg.To, "subject", msg.Subject, "message_id", id)
	return Receipt{MessageID: id}, nil
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, msg Email) (Receipt, error)

func (f SenderFunc) Send(ctx context.Context, msg Email) (Receipt, error) {
	return f(ctx, msg)
}
