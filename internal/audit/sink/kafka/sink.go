// Package kafka publishes audit entries to a Kafka topic for compliance
// export. The topic is a mirror of the in-process ledger, keyed by entity so
// per-entity history stays ordered within a partition.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	"verdant/internal/audit"
)

// Sink produces audit entries to Kafka.
type Sink struct {
	client *kgo.Client
	topic  string
}

// New connects a Kafka producer for the audit mirror.
func New(brokers []string, topic string) (*Sink, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &Sink{client: client, topic: topic}, nil
}

// Publish delivers one entry, blocking until the broker acknowledges it.
func (s *Sink) Publish(ctx context.Context, entry audit.Entry) error {
	value, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}
	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(entry.EntityType + "/" + entry.EntityID),
		Value: value,
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit entry: %w", err)
	}
	return nil
}

// Close flushes and shuts down the producer.
func (s *Sink) Close() {
	s.client.Close()
}
