package notify

import (
	"context"
	"log/slog"
)

// Publisher sends notifications somewhere outside the process.
type Publisher interface {
	Publish(ctx context.Context, n *Notification) error
	Close() error
}

// Noop drops every notification.
type Noop struct{}

func (Noop) Publish(ctx context.Context, n *Notification) error { return nil }
func (Noop) Close() error                                       { return nil }

// LogPublisher writes notifications to a structured logger instead of a broker.
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher logs to logger, or to slog.Default() when logger is nil.
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, n *Notification) error {
	p.logger.InfoContext(ctx, "Ledger event",
		"type", n.Type,
		"id", n.ID,
		"participant", n.Participant,
		"amount", n.Amount,
		"payload", string(n.Payload),
	)
	return nil
}

func (p *LogPublisher) Close() error { return nil }
