// Package kafka wraps the franz-go client used for outbound event topics.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"learnhub/internal/platform/config"
)

// Producer publishes keyed records to Kafka.
type Producer struct {
	client *kgo.Client
	admin  *kadm.Client
}

// NewProducer connects to the configured brokers and verifies reachability.
func NewProducer(ctx context.Context, cfg config.KafkaConfig) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerLinger(5*time.Millisecond),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("kafka ping failed: %w", err)
	}
	return &Producer{client: client, admin: kadm.NewClient(client)}, nil
}

// EnsureTopic creates topic if it does not already exist.
func (p *Producer) EnsureTopic(ctx context.Context, topic string, partitions int32, replicationFactor int16) error {
	resp, err := p.admin.CreateTopic(ctx, partitions, replicationFactor, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", topic, resp.Err)
	}
	return nil
}

// Message is one keyed record value.
type Message struct {
	Key   []byte
	Value []byte
}

// Publish produces one record synchronously.
func (p *Producer) Publish(ctx context.Context, topic string, key, value []byte) error {
	_, err := p.PublishBatch(ctx, topic, []Message{{Key: key, Value: value}})
	return err
}

// PublishBatch produces msgs in a single synchronous call and reports how many
// were acknowledged. Records for different partitions succeed or fail
// independently, so a non-nil error may come with a non-zero count.
func (p *Producer) PublishBatch(ctx context.Context, topic string, msgs []Message) (int, error) {
	if len(msgs) == 0 {
		return 0, nil
	}
	records := make([]*kgo.Record, len(msgs))
	for i, m := range msgs {
		records[i] = &kgo.Record{Topic: topic, Key: m.Key, Value: m.Value}
	}
	results := p.client.ProduceSync(ctx, records...)
	acked := 0
	for _, r := range results {
		if r.Err == nil {
			acked++
		}
	}
	if err := results.FirstErr(); err != nil {
		return acked, fmt.Errorf("produce to %s: %w", topic, err)
	}
	return acked, nil
}

func (p *Producer) Close() {
	p.client.Close()
}
