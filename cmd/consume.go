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
	"ticketing/core/database"
	"ticketing/core/kafka"
	"ticketing/core/logger"
	"ticketing/core/redis"
	"ticketing/feature/inventory"
	invsync "ticketing/feature/inventory/sync"
	"ticketing/feature/reservation"

	"github.com/IBM/sarama"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// consumeCmd runs the reservation event consumer together with the periodic
// store-to-cache reconciler.
var consumeCmd = &cobra.Command{
	Use:   "consume",
	Short: "Run the reservation event consumer",
	Long: `Consumes reservation events from the primary topic in ordered batches,
persists the outcomes and commits offsets once per batch. Events that exhaust
their retry budget are routed to the dead-letter topic.

The periodic store-to-cache reconciler runs in the same process.`,
	RunE: runConsume,
}

func init() {
	RootCmd.AddCommand(consumeCmd)
}

func runConsume(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	l, err := logger.New(&cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer l.Sync()

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	store := reservation.NewGormStore(db)
	if err := store.Migrate(); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	redisClient, err := redis.Connect(cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer redisClient.Close()

	producer, err := kafka.NewSyncProducer(cfg.Kafka)
	if err != nil {
		return fmt.Errorf("failed to create producer: %w", err)
	}
	defer producer.Close()

	group, err := kafka.NewConsumerGroup(cfg.Kafka, cfg.Kafka.GroupID)
	if err != nil {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	defer group.Close()

	router := reservation.NewRouter(producer, cfg.Kafka.DLQTopic, l)
	consumer := reservation.NewConsumer(store, router, cfg.Reservation, l)

	cache := inventory.NewService(redisClient, cfg.Inventory, l)
	reconciler := invsync.NewService(store, cache, l)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go reconciler.Run(ctx, time.Duration(cfg.Inventory.SyncIntervalMinutes)*time.Minute)

	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c
		l.Info("Shutting down consumer...")
		cancel()
	}()

	l.Info("Consumer started",
		zap.String("topic", cfg.Kafka.Topic),
		zap.String("group", cfg.Kafka.GroupID),
	)

	topics := []string{cfg.Kafka.Topic}
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
