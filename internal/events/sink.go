// Package events delivers committed ledger event records to external
// consumers. Durability is owned by the ledger store; this layer only fans
// records out, so a sink outage never blocks or breaks a transition.
package events

import (
	"context"
	"log/slog"

	"paylog/internal/ledger"
)

// Sink publishes one committed event record to an external consumer.
type Sink interface {
	Publish(ctx context.Context, rec ledger.Record) error
}

// LogSink writes events to the process log. It is the fallback when no broker
// is configured, keeping the publishing path exercised in development.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Publish(ctx context.Context, rec ledger.Record) error {
	s.logger.InfoContext(ctx, "ledger event",
		"event_id", rec.ID,
		"registry_id", rec.RegistryID,
		"event_type", rec.Type,
		"payload", string(rec.Payload),
	)
	return nil
}
