package refresh

import (
	"context"
	"testing"
	"time"

	"github.com/BearBump/AvailBox/internal/broker/messages"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type flakyProducer struct {
	failures int
	calls    int
	topics   []string
	keys     []string
}

func (p *flakyProducer) Publish(ctx context.Context, topic string, key, value []byte) error {
	p.calls++
	if p.calls <= p.failures {
		return errors.New("leader not available")
	}
	p.topics = append(p.topics, topic)
	p.keys = append(p.keys, string(key))
	return nil
}

func TestKafkaPublisher_RetriesThenSucceeds(t *testing.T) {
	fp := &flakyProducer{failures: 2}
	pub := NewKafkaPublisher(fp, "availability.changed")
	pub.backoff = time.Millisecond

	pub.PublishChanges(context.Background(), []messages.AvailabilityChanged{{EntityID: 7, HistoryEntries: 1}})
	require.Equal(t, 3, fp.calls)
	require.Equal(t, []string{"availability.changed"}, fp.topics)
	require.Equal(t, []string{"7"}, fp.keys)
}

func TestKafkaPublisher_GivesUpWithoutPanicking(t *testing.T) {
	fp := &flakyProducer{failures: 100}
	pub := NewKafkaPublisher(fp, "availability.changed")
	pub.backoff = time.Millisecond

	pub.PublishChanges(context.Background(), []messages.AvailabilityChanged{{EntityID: 1}, {EntityID: 2}})
	require.Equal(t, 10, fp.calls)
	require.Empty(t, fp.keys)
}
