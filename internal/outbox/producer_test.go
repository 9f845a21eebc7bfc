package outbox

import (
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

func TestProducerReusesWriterPerTopic(t *testing.T) {
	producer := NewKafkaProducer([]string{"kafka:9092"})
	t.Cleanup(func() { _ = producer.Close() })

	first := producer.writerForTopic("footprint_activity_events")
	second := producer.writerForTopic("footprint_activity_events")
	require.Same(t, first, second)

	other := producer.writerForTopic("footprint_cache_events")
	require.NotSame(t, first, other)
}

func TestProducerWritersHashByKey(t *testing.T) {
	producer := NewKafkaProducer([]string{"kafka:9092"})
	t.Cleanup(func() { _ = producer.Close() })

	writer := producer.writerForTopic("footprint_activity_events")
	require.IsType(t, &kafka.Hash{}, writer.Balancer)
	require.Equal(t, kafka.RequireAll, writer.RequiredAcks)
}
