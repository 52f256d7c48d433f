package reservation

import (
	"context"
	"fmt"

	"github.com/IBM/sarama"
)

// Publisher hands reservation events to the broker.
type Publisher interface {
	// Publish sends the event keyed by its concert ID and blocks until the
	// broker acknowledges it. Returns the assigned partition and offset.
	Publish(ctx context.Context, event Event) (partition int32, offset int64, err error)
}

// KafkaPublisher publishes events through a Sarama SyncProducer.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafkaPublisher creates a publisher for the given topic.
func NewKafkaPublisher(producer sarama.SyncProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

// Publish implements Publisher. The concert ID key pins all events for one
// concert to a single partition, which is what guarantees per-concert order.
func (p *KafkaPublisher) Publish(_ context.Context, event Event) (int32, int64, error) {
	data, err := event.Encode()
	if err != nil {
		return 0, 0, err
	}
	partition, offset, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.Key()),
		Value: sarama.ByteEncoder(data),
	})
	if err != nil {
		return 0, 0, fmt.Errorf("reservation: publish event %s: %w", event.RequestID, err)
	}
	return partition, offset, nil
}
