package cmd

import (
	"context"
	"fmt"

	"ticketing/core/config"
	"ticketing/core/database"
	"ticketing/core/kafka"
	"ticketing/core/lock"
	"ticketing/core/logger"
	"ticketing/core/redis"
	"ticketing/feature/inventory"
	"ticketing/feature/reservation"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	reserveConcert uint
	reserveMember  uint
	reserveAsync   bool
	reserveStatus  string
)

// reserveCmd issues a single reservation from the command line. Primarily an
// operational smoke tool; the HTTP layer is the production caller.
var reserveCmd = &cobra.Command{
	Use:   "reserve",
	Short: "Issue a single reservation",
	Long: `Issue a reservation for a member against a concert.

The default path is synchronous: the outcome is persisted before the command
returns. With --async the event is enqueued and the request ID printed; poll
with --status to observe the outcome once the consumer has drained it.`,
	RunE: runReserve,
}

func init() {
	reserveCmd.Flags().UintVar(&reserveConcert, "concert", 0, "Concert ID")
	reserveCmd.Flags().UintVar(&reserveMember, "member", 0, "Member ID")
	reserveCmd.Flags().BoolVar(&reserveAsync, "async", false, "Use the asynchronous path")
	reserveCmd.Flags().StringVar(&reserveStatus, "status", "", "Look up a reservation by request ID instead of reserving")
	RootCmd.AddCommand(reserveCmd)
}

func runReserve(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

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

	cache := inventory.NewService(redisClient, cfg.Inventory, l)
	locker := lock.NewCoordinator(redisClient, l)
	publisher := reservation.NewKafkaPublisher(producer, cfg.Kafka.Topic)
	svc := reservation.NewService(store, cache, locker, publisher, cfg.Reservation, l)

	if reserveStatus != "" {
		r, err := svc.Status(ctx, reserveStatus)
		if err != nil {
			return err
		}
		l.Info("Reservation status",
			zap.String("request_id", r.RequestID),
			zap.Uint("concert_id", r.ConcertID),
			zap.Uint("member_id", r.MemberID),
			zap.String("status", string(r.Status)),
		)
		return nil
	}

	if reserveConcert == 0 || reserveMember == 0 {
		return fmt.Errorf("--concert and --member are required")
	}

	if reserveAsync {
		requestID, err := svc.ReserveAsync(ctx, reserveConcert, reserveMember)
		if err != nil {
			return err
		}
		l.Info("Reservation accepted",
			zap.String("request_id", requestID),
			zap.Uint("concert_id", reserveConcert),
			zap.Uint("member_id", reserveMember),
		)
		return nil
	}

	r, err := svc.Reserve(ctx, reserveConcert, reserveMember)
	if err != nil {
		return err
	}
	l.Info("Reservation completed",
		zap.String("request_id", r.RequestID),
		zap.Uint("concert_id", r.ConcertID),
		zap.Uint("member_id", r.MemberID),
		zap.String("status", string(r.Status)),
	)
	return nil
}
