package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ticketing/core/config"
	"ticketing/core/kafka"
	"ticketing/core/logger"
	"ticketing/feature/reservation"

	"github.com/IBM/sarama"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var replayDeadLetters bool

// dlqCmd runs the dead-letter consumer.
var dlqCmd = &cobra.Command{
	Use:   "dlq",
	Short: "Run the dead-letter consumer",
	Long: `Consumes the dead-letter topic and logs structured detail per record
for operational triage.

With --replay, every consumed record's original event is re-published to the
primary topic. Replayed events keep their request ID, so replaying an event
that already completed is absorbed by the idempotency guard.`,
	RunE: runDLQ,
}

func init() {
	dlqCmd.Flags().BoolVar(&replayDeadLetters, "replay", false, "Re-publish consumed records to the primary topic")
	RootCmd.AddCommand(dlqCmd)
}

func runDLQ(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	l, err := logger.New(&cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer l.Sync()

	producer, err := kafka.NewSyncProducer(cfg.Kafka)
	if err != nil {
		return fmt.Errorf("failed to create producer: %w", err)
	}
	defer producer.Close()

	group, err := kafka.NewConsumerGroup(cfg.Kafka, cfg.Kafka.DLQGroupID)
	if err != nil {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	defer group.Close()

	publisher := reservation.NewKafkaPublisher(producer, cfg.Kafka.Topic)
	consumer := reservation.NewDeadLetterConsumer(publisher, replayDeadLetters, l)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c
		l.Info("Shutting down dead-letter consumer...")
		cancel()
	}()

	l.Info("Dead-letter consumer started",
		zap.String("topic", cfg.Kafka.DLQTopic),
		zap.String("group", cfg.Kafka.DLQGroupID),
		zap.Bool("replay", replayDeadLetters),
	)

	topics := []string{cfg.Kafka.DLQTopic}
	for {
		if err := group.Consume(ctx, topics, consumer); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			l.Error("Consume error", zap.Error(err))
			time.Sleep(time.Second)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}
