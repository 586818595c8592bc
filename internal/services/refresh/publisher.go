package refresh

import (
	"context"
	"log/slog"
	"time"

	"github.com/BearBump/AvailBox/internal/broker/messages"
)

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// KafkaPublisher sends change events best-effort: failures are logged and
// never reach the run outcome.
type KafkaPublisher struct {
	producer Producer
	topic    string
	attempts int
	backoff  time.Duration
}

func NewKafkaPublisher(producer Producer, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		producer: producer,
		topic:    topic,
		attempts: 5,
		backoff:  150 * time.Millisecond,
	}
}

func (k *KafkaPublisher) PublishChanges(ctx context.Context, msgs []messages.AvailabilityChanged) {
	for _, m := range msgs {
		b, err := m.Marshal()
		if err != nil {
			slog.Error("marshal change event", "entity_id", m.EntityID, "error", err.Error())
			continue
		}
		if err := k.publish(ctx, m.Key(), b); err != nil {
			slog.Error("publish change event", "entity_id", m.EntityID, "topic", k.topic, "error", err.Error())
		}
	}
}

// Kafka может быть не готова сразу после старта, поэтому небольшой retry.
func (k *KafkaPublisher) publish(ctx context.Context, key, value []byte) error {
	var err error
	for i := 0; i < k.attempts; i++ {
		if err = k.producer.Publish(ctx, k.topic, key, value); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(i+1) * k.backoff):
		}
	}
	return err
}
