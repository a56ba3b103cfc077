// Package kafka publishes ledger events to a Kafka topic for downstream
// indexers and auditors.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"paylog/internal/ledger"
)

// envelope is the wire form of one event. The payload is the canonical JSON
// the ledger committed; the envelope adds routing metadata.
type envelope struct {
	ID         string          `json:"id"`
	RegistryID string          `json:"registry_id"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Producer delivers event records to a single topic, keyed by registry so one
// registry's trail stays ordered within a partition.
type Producer struct {
	client *kgo.Client
	topic  string
}

func NewProducer(brokers []string, topic string) (*Producer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &Producer{client: client, topic: topic}, nil
}

func (p *Producer) Publish(ctx context.Context, rec ledger.Record) error {
	value, err := json.Marshal(envelope{
		ID:         rec.ID.String(),
		RegistryID: rec.RegistryID.String(),
		Type:       rec.Type,
		Payload:    rec.Payload,
		CreatedAt:  rec.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("encode event envelope: %w", err)
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(rec.RegistryID.String()),
		Value: value,
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce event %s: %w", rec.ID, err)
	}
	return nil
}

// Close flushes buffered records and releases the client.
func (p *Producer) Close() {
	p.client.Close()
}
