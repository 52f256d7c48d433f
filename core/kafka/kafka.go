package kafka

import (
	"strings"
	"time"

	"github.com/IBM/sarama"
)

// Config holds configuration for the Kafka broker.
type Config struct {
	// Brokers is a comma separated list of bootstrap brokers.
	Brokers string `mapstructure:"brokers" default:"localhost:9092"`
	// Topic is the primary reservation event topic.
	Topic string `mapstructure:"topic" default:"ticket_reservation"`
	// DLQTopic is the dead-letter topic for events that exhausted retries.
	DLQTopic string `mapstructure:"dlq_topic" default:"ticket_reservation_dlq"`
	// GroupID is the consumer group for the reservation consumer.
	GroupID string `mapstructure:"group_id" default:"ticketing-group"`
	// DLQGroupID is the consumer group for the dead-letter consumer.
	DLQGroupID string `mapstructure:"dlq_group_id" default:"ticketing-dlq-group"`
}

// BrokerList splits the configured broker string into addresses.
func (c Config) BrokerList() []string {
	parts := strings.Split(c.Brokers, ",")
	res := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			res = append(res, p)
		}
	}
	return res
}

// NewSaramaConfig returns the shared Sarama configuration.
// The producer is idempotent and waits for all in-sync replicas so that an
// acknowledged publish is durable. Offset auto-commit is disabled: the
// consumer commits explicitly once per processed batch.
func NewSaramaConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V3_6_0_0
	cfg.Producer.Return.Successes = true
	cfg.Producer.Idempotent = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Net.MaxOpenRequests = 1
	cfg.Consumer.Return.Errors = true
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	cfg.Consumer.Offsets.AutoCommit.Enable = false
	cfg.Metadata.Retry.Max = 5
	cfg.Metadata.Retry.Backoff = 2 * time.Second
	return cfg
}

// NewSyncProducer creates a Sarama SyncProducer.
func NewSyncProducer(cfg Config) (sarama.SyncProducer, error) {
	return sarama.NewSyncProducer(cfg.BrokerList(), NewSaramaConfig())
}

// NewConsumerGroup creates a Sarama ConsumerGroup for the given group ID.
func NewConsumerGroup(cfg Config, groupID string) (sarama.ConsumerGroup, error) {
	return sarama.NewConsumerGroup(cfg.BrokerList(), groupID, NewSaramaConfig())
}
