// Package outbox drains committed-but-unpublished event records from the
// ledger store and delivers them to the external sink. Writing the record in
// the transition's transaction and publishing it here keeps the ledger
// atomic while tolerating broker downtime.
package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"paylog/internal/events"
	"paylog/internal/ledger"
	"paylog/internal/ledger/metrics"
	"paylog/pkg/platform/circuit"
)

// Source is the slice of the ledger store the publisher needs.
type Source interface {
	PendingEvents(ctx context.Context, limit int) ([]ledger.Record, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID, publishedAt time.Time) error
}

// Publisher polls for pending records and publishes them in order. Delivery
// is at-least-once: a record is marked published only after the sink accepts
// it, and a failed batch is retried on the next tick.
type Publisher struct {
	source    Source
	sink      events.Sink
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
	metrics   *metrics.Metrics
	breaker   *circuit.Breaker
	now       func() time.Time
}

func NewPublisher(source Source, sink events.Sink, interval time.Duration, batchSize int, logger *slog.Logger, m *metrics.Metrics) *Publisher {
	if interval <= 0 {
		interval = time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Publisher{
		source:    source,
		sink:      sink,
		interval:  interval,
		batchSize: batchSize,
		logger:    logger,
		metrics:   m,
		breaker:   circuit.New("event-sink"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Run drains pending events until the context is cancelled.
func (p *Publisher) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.Drain(ctx); err != nil {
				p.logger.WarnContext(ctx, "event publish cycle failed", "error", err)
			}
		}
	}
}

// Drain publishes one batch of pending events. Publishing stops at the first
// sink failure so records are never delivered out of order within a batch.
// While the sink's circuit is open the batch shrinks to a single probe record,
// so a dead broker sees one attempt per tick instead of the full backlog.
func (p *Publisher) Drain(ctx context.Context) error {
	batch := p.batchSize
	if p.breaker.IsOpen() {
		batch = 1
	}
	pending, err := p.source.PendingEvents(ctx, batch)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	published := make([]uuid.UUID, 0, len(pending))
	var sinkErr error
	for _, rec := range pending {
		if err := p.sink.Publish(ctx, rec); err != nil {
			p.metrics.IncrementPublishFailures()
			if _, change := p.breaker.RecordFailure(); change.Opened {
				p.logger.WarnContext(ctx, "event sink circuit opened")
			}
			sinkErr = err
			break
		}
		p.metrics.IncrementEventsPublished()
		if _, change := p.breaker.RecordSuccess(); change.Closed {
			p.logger.InfoContext(ctx, "event sink circuit closed")
		}
		published = append(published, rec.ID)
	}

	if len(published) > 0 {
		if err := p.source.MarkPublished(ctx, published, p.now()); err != nil {
			return err
		}
	}
	return sinkErr
}
