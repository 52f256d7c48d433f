package cmd

import (
	"context"
	"fmt"

	"ticketing/core/config"
	"ticketing/core/database"
	"ticketing/core/logger"
	"ticketing/feature/reservation"
	"ticketing/feature/reservation/models"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	seedConcerts int
	seedSeats    int
	seedMembers  int
)

// seedCmd creates test concerts and members for load experiments.
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed test concerts and members",
	RunE:  runSeed,
}

func init() {
	seedCmd.Flags().IntVar(&seedConcerts, "concerts", 1, "Number of concerts to create")
	seedCmd.Flags().IntVar(&seedSeats, "seats", 100, "Total seats per concert")
	seedCmd.Flags().IntVar(&seedMembers, "members", 150, "Number of members to create")
	RootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
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
	if err := store.Migrate(); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	for i := 0; i < seedConcerts; i++ {
		concert := &models.Concert{
			Title:          fmt.Sprintf("Test Concert %d", i+1),
			TotalSeats:     seedSeats,
			RemainingSeats: seedSeats,
		}
		if err := store.CreateConcert(ctx, concert); err != nil {
			return err
		}
		l.Info("Concert created", zap.Uint("id", concert.ID), zap.Int("seats", seedSeats))
	}

	for i := 0; i < seedMembers; i++ {
		member := &models.Member{
			Name:  fmt.Sprintf("member-%04d", i+1),
			Email: fmt.Sprintf("member-%04d@example.com", i+1),
		}
		if err := store.CreateMember(ctx, member); err != nil {
			return err
		}
	}
	l.Info("Members created", zap.Int("count", seedMembers))

	return nil
}
