package cmd

import (
	"context"
	"fmt"

	"ticketing/core/config"
	"ticketing/core/database"
	"ticketing/core/logger"
	"ticketing/core/redis"
	"ticketing/feature/inventory"
	invsync "ticketing/feature/inventory/sync"
	"ticketing/feature/reservation"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	reconcileToStore bool
	reconcileReport  bool
	reconcileConcert uint
)

// reconcileCmd runs an on-demand reconciliation pass between the inventory
// cache and the durable store.
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile seat counters between cache and durable store",
	Long: `Reconcile the Redis seat counters against the durable store.

By default the durable store wins: every absent or drifting counter is
overwritten from the database. This is the same pass the consumer process
runs periodically.

With --to-store the direction reverses and the cache wins. Use it only when
the cache is known authoritative (e.g. immediately post-incident); running it
during live traffic can overwrite legitimate concurrent decrements.

Examples:
  # Heal the cache from the database
  reconcile

  # Report drift without writing anything
  reconcile --report

  # Overwrite durable counts from the cache, one concert only
  reconcile --to-store --concert 42`,
	RunE: runReconcile,
}

func init() {
	reconcileCmd.Flags().BoolVar(&reconcileToStore, "to-store", false, "Overwrite durable seat counts from the cache (cache wins)")
	reconcileCmd.Flags().BoolVar(&reconcileReport, "report", false, "Report drift only, perform no writes")
	reconcileCmd.Flags().UintVar(&reconcileConcert, "concert", 0, "Restrict --to-store to a single concert ID")
	RootCmd.AddCommand(reconcileCmd)
}

func runReconcile(cmd *cobra.Command, args []string) error {
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

	cache := inventory.NewService(redisClient, cfg.Inventory, l)
	reconciler := invsync.NewService(store, cache, l)

	switch {
	case reconcileReport:
		mismatches, err := reconciler.ReportMismatch(ctx)
		if err != nil {
			return fmt.Errorf("failed to report mismatch: %w", err)
		}
		l.Info("Report finished", zap.Int("mismatches", mismatches))

	case reconcileToStore && reconcileConcert != 0:
		if err := reconciler.CacheToStoreConcert(ctx, reconcileConcert); err != nil {
			return fmt.Errorf("failed to reconcile concert %d: %w", reconcileConcert, err)
		}

	case reconcileToStore:
		synced, err := reconciler.CacheToStore(ctx)
		if err != nil {
			return fmt.Errorf("failed to reconcile cache to store: %w", err)
		}
		l.Info("Cache to store finished", zap.Int("synced", synced))

	default:
		synced, err := reconciler.StoreToCache(ctx)
		if err != nil {
			return fmt.Errorf("failed to reconcile store to cache: %w", err)
		}
		l.Info("Store to cache finished", zap.Int("synced", synced))
	}

	return nil
}
