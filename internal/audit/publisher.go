package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	"encore/internal/domain"
)

// RunPublisher emits run results to downstream consumers. Publishing is
// best-effort: the database audit row is the system of record, so the
// orchestrator logs publish failures and moves on.
type RunPublisher interface {
	PublishRun(ctx context.Context, result domain.RunResult) error
	Close()
}

// KafkaPublisher publishes one JSON event per completed run, keyed by run id
// so partitioning keeps events for one run together.
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
}

func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &KafkaPublisher{client: client, topic: topic}, nil
}

func (p *KafkaPublisher) PublishRun(ctx context.Context, result domain.RunResult) error {
	value, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal run result: %w", err)
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(result.RunID.String()),
		Value: value,
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("publish run event: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() {
	p.client.Close()
}
