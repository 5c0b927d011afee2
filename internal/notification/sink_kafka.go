package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"learnhub/internal/platform/kafka"
)

// Publisher is satisfied by the platform Kafka producer.
type Publisher interface {
	PublishBatch(ctx context.Context, topic string, msgs []kafka.Message) (int, error)
}

// KafkaSink publishes each notification keyed by user id so a user's
// notifications stay ordered within a partition.
type KafkaSink struct {
	publisher Publisher
	topic     string
}

func NewKafkaSink(publisher Publisher, topic string) *KafkaSink {
	return &KafkaSink{publisher: publisher, topic: topic}
}

// Write produces the whole batch in one call. When only part of it is
// acknowledged the error is a *PartialWriteError carrying that count.
func (s *KafkaSink) Write(ctx context.Context, batch []Notification) error {
	msgs := make([]kafka.Message, 0, len(batch))
	for _, n := range batch {
		value, err := json.Marshal(n)
		if err != nil {
			return fmt.Errorf("marshal notification: %w", err)
		}
		msgs = append(msgs, kafka.Message{Key: []byte(n.UserID.String()), Value: value})
	}
	acked, err := s.publisher.PublishBatch(ctx, s.topic, msgs)
	if err != nil && acked > 0 {
		return &PartialWriteError{Written: acked, Err: err}
	}
	return err
}
