package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ticketing/feature/inventory"
	"ticketing/feature/reservation/models"

	"go.uber.org/zap"
)

// ConcertStore is the slice of the durable store the reconciler needs.
type ConcertStore interface {
	Concerts(ctx context.Context) ([]models.Concert, error)
	FindConcert(ctx context.Context, id uint) (*models.Concert, error)
	UpdateRemainingSeats(ctx context.Context, concertID uint, remaining int) error
}

// Service detects and heals drift between the seat counter cache and the
// durable store. Both directions are idempotent; running them concurrently
// with live traffic converges at eventually-consistent precision.
type Service struct {
	store  ConcertStore
	cache  *inventory.Service
	logger *zap.Logger
}

// NewService creates a reconciliation service.
func NewService(store ConcertStore, cache *inventory.Service, logger *zap.Logger) *Service {
	return &Service{store: store, cache: cache, logger: logger}
}

// drift is one concert's cache/store comparison.
type drift struct {
	concert    models.Concert
	cacheSeats int
	cached     bool
}

// scan reads every concert and its cached counter. Read-only; the single
// comparison routine behind all three public operations.
func (s *Service) scan(ctx context.Context) ([]drift, error) {
	concerts, err := s.store.Concerts(ctx)
	if err != nil {
		return nil, fmt.Errorf("sync: scan concerts: %w", err)
	}

	drifts := make([]drift, 0, len(concerts))
	for _, c := range concerts {
		d := drift{concert: c}
		seats, err := s.cache.Remaining(ctx, c.ID)
		switch {
		case err == nil:
			d.cacheSeats = seats
			d.cached = true
		case errors.Is(err, inventory.ErrNotInitialized):
			// Absent counter counts as drift for the store-to-cache pass.
		default:
			return nil, fmt.Errorf("sync: read counter for concert %d: %w", c.ID, err)
		}
		drifts = append(drifts, d)
	}
	return drifts, nil
}

// StoreToCache overwrites every drifting or absent counter from the durable
// store. The durable value wins. Returns the number of counters written.
func (s *Service) StoreToCache(ctx context.Context) (int, error) {
	s.logger.Info("Store to cache reconciliation started")

	drifts, err := s.scan(ctx)
	if err != nil {
		return 0, err
	}

	synced := 0
	for _, d := range drifts {
		if d.cached && d.cacheSeats == d.concert.RemainingSeats {
			continue
		}
		if err := s.cache.Sync(ctx, d.concert.ID, d.concert.RemainingSeats); err != nil {
			return synced, err
		}
		s.logger.Warn("Inventory drift healed from store",
			zap.Uint("concert_id", d.concert.ID),
			zap.Bool("cache_present", d.cached),
			zap.Int("cache_seats", d.cacheSeats),
			zap.Int("store_seats", d.concert.RemainingSeats),
		)
		synced++
	}

	s.logger.Info("Store to cache reconciliation finished",
		zap.Int("concerts", len(drifts)),
		zap.Int("synced", synced),
	)
	return synced, nil
}

// CacheToStore overwrites durable seat counts from the cache. The cache wins.
// On-demand only: intended for when the cache is known authoritative, such as
// immediately after an incident. Running it during live traffic can overwrite
// legitimate concurrent decrements.
func (s *Service) CacheToStore(ctx context.Context) (int, error) {
	s.logger.Info("Cache to store reconciliation started")

	drifts, err := s.scan(ctx)
	if err != nil {
		return 0, err
	}

	synced := 0
	for _, d := range drifts {
		if !d.cached || d.cacheSeats == d.concert.RemainingSeats {
			continue
		}
		if err := s.store.UpdateRemainingSeats(ctx, d.concert.ID, d.cacheSeats); err != nil {
			return synced, err
		}
		s.logger.Info("Durable seats overwritten from cache",
			zap.Uint("concert_id", d.concert.ID),
			zap.Int("store_seats", d.concert.RemainingSeats),
			zap.Int("cache_seats", d.cacheSeats),
		)
		synced++
	}

	s.logger.Info("Cache to store reconciliation finished",
		zap.Int("concerts", len(drifts)),
		zap.Int("synced", synced),
	)
	return synced, nil
}

// CacheToStoreConcert reconciles a single concert from the cache.
func (s *Service) CacheToStoreConcert(ctx context.Context, concertID uint) error {
	concert, err := s.store.FindConcert(ctx, concertID)
	if err != nil {
		return err
	}

	seats, err := s.cache.Remaining(ctx, concertID)
	if err != nil {
		return fmt.Errorf("sync: read counter for concert %d: %w", concertID, err)
	}

	if seats == concert.RemainingSeats {
		return nil
	}
	if err := s.store.UpdateRemainingSeats(ctx, concertID, seats); err != nil {
		return err
	}
	s.logger.Info("Durable seats overwritten from cache",
		zap.Uint("concert_id", concertID),
		zap.Int("store_seats", concert.RemainingSeats),
		zap.Int("cache_seats", seats),
	)
	return nil
}

// ReportMismatch logs every concert whose cached and durable values disagree,
// with the magnitude of the drift. Performs no writes.
func (s *Service) ReportMismatch(ctx context.Context) (int, error) {
	drifts, err := s.scan(ctx)
	if err != nil {
		return 0, err
	}

	mismatches := 0
	for _, d := range drifts {
		if !d.cached || d.cacheSeats == d.concert.RemainingSeats {
			continue
		}
		diff := d.cacheSeats - d.concert.RemainingSeats
		if diff < 0 {
			diff = -diff
		}
		s.logger.Warn("Inventory mismatch",
			zap.Uint("concert_id", d.concert.ID),
			zap.String("title", d.concert.Title),
			zap.Int("cache_seats", d.cacheSeats),
			zap.Int("store_seats", d.concert.RemainingSeats),
			zap.Int("drift", diff),
		)
		mismatches++
	}

	if mismatches == 0 {
		s.logger.Info("No inventory mismatch", zap.Int("concerts", len(drifts)))
	} else {
		s.logger.Warn("Inventory mismatch detected",
			zap.Int("concerts", len(drifts)),
			zap.Int("mismatches", mismatches),
		)
	}
	return mismatches, nil
}

// Run executes the store-to-cache pass on a fixed period until ctx is
// cancelled. The on-demand operations share the same underlying routine.
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Reconciliation loop stopped")
			return
		case <-ticker.C:
			if _, err := s.StoreToCache(ctx); err != nil {
				s.logger.Error("Scheduled reconciliation failed", zap.Error(err))
			}
		}
	}
}
