package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ticketing/core/lock"
	"ticketing/feature/inventory"
	"ticketing/feature/reservation/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service orchestrates seat reservation.
//
// The synchronous path persists the outcome before returning. The async path
// decrements the fast counter, enqueues an event and returns an accepted
// acknowledgment; a consumer persists the outcome later. Both paths perform
// the seat check and decrement under the per-concert lock, which is the
// mechanism that caps COMPLETED reservations at the concert's total seats.
type Service struct {
	store     Store
	cache     *inventory.Service
	locker    *lock.Coordinator
	publisher Publisher
	logger    *zap.Logger
	lockWait  time.Duration
	lockLease time.Duration
}

// NewService creates the reservation pipeline.
func NewService(store Store, cache *inventory.Service, locker *lock.Coordinator, publisher Publisher, cfg Config, logger *zap.Logger) *Service {
	return &Service{
		store:     store,
		cache:     cache,
		locker:    locker,
		publisher: publisher,
		logger:    logger,
		lockWait:  cfg.LockWait(),
		lockLease: cfg.LockLease(),
	}
}

// Reserve runs the synchronous path: acquire the concert lock, check and
// decrement the durable seat count and persist a COMPLETED reservation, all
// in one transaction. Lock timeouts surface as lock.ErrTimeout, which callers
// translate into a retriable condition.
func (s *Service) Reserve(ctx context.Context, concertID, memberID uint) (*models.Reservation, error) {
	lease, err := s.locker.Acquire(ctx, lock.ConcertKey(concertID), s.lockWait, s.lockLease)
	if err != nil {
		return nil, err
	}
	defer lease.Release(ctx)

	return s.reserveLocked(ctx, concertID, memberID)
}

// reserveLocked is the critical section of the synchronous path. Callers must
// hold the concert lock; invoking it unguarded reintroduces the oversell race
// between the seat check and the decrement.
func (s *Service) reserveLocked(ctx context.Context, concertID, memberID uint) (*models.Reservation, error) {
	var out *models.Reservation
	err := s.store.Transaction(ctx, func(tx Store) error {
		concert, err := tx.FindConcert(ctx, concertID)
		if err != nil {
			return err
		}
		member, err := tx.FindMember(ctx, memberID)
		if err != nil {
			return err
		}
		if concert.RemainingSeats <= 0 {
			return ErrExhausted
		}
		if err := concert.ReserveSeat(); err != nil {
			return ErrExhausted
		}

		r := &models.Reservation{
			RequestID: uuid.NewString(),
			ConcertID: concert.ID,
			MemberID:  member.ID,
			Status:    models.StatusCompleted,
		}
		if err := tx.SaveConcert(ctx, concert); err != nil {
			return err
		}
		if err := tx.SaveReservation(ctx, r); err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Reservation completed",
		zap.String("request_id", out.RequestID),
		zap.Uint("concert_id", concertID),
		zap.Uint("member_id", memberID),
	)
	return out, nil
}

// ReserveAsync runs the asynchronous path: under the concert lock it checks
// and atomically decrements the cached seat counter, publishes an event keyed
// by concert ID and returns the request ID as an accepted acknowledgment.
// The lock is released as soon as the broker accepts the event; per-concert
// ordering downstream is carried by the partition key, not the lock.
func (s *Service) ReserveAsync(ctx context.Context, concertID, memberID uint) (string, error) {
	lease, err := s.locker.Acquire(ctx, lock.ConcertKey(concertID), s.lockWait, s.lockLease)
	if err != nil {
		return "", err
	}
	defer lease.Release(ctx)

	if _, err := s.store.FindMember(ctx, memberID); err != nil {
		return "", err
	}

	remaining, err := s.cache.Remaining(ctx, concertID)
	if errors.Is(err, inventory.ErrNotInitialized) {
		// Cold start: rebuild the counter from the durable store before any
		// decrement is attempted.
		concert, ferr := s.store.FindConcert(ctx, concertID)
		if ferr != nil {
			return "", ferr
		}
		if ierr := s.cache.Initialize(ctx, concertID, concert.RemainingSeats); ierr != nil {
			return "", ierr
		}
		remaining = concert.RemainingSeats
	} else if err != nil {
		return "", err
	}

	if remaining <= 0 {
		return "", ErrExhausted
	}

	if _, err := s.cache.DecrementSeat(ctx, concertID); err != nil {
		if errors.Is(err, inventory.ErrInsufficient) {
			return "", ErrExhausted
		}
		return "", err
	}

	event := Event{
		RequestID: uuid.NewString(),
		ConcertID: concertID,
		MemberID:  memberID,
		Timestamp: time.Now().UTC(),
	}
	partition, offset, err := s.publisher.Publish(ctx, event)
	if err != nil {
		// The seat was taken from the cache but the event never reached the
		// broker: give the seat back and surface the failure immediately.
		if _, cerr := s.cache.IncrementSeat(ctx, concertID); cerr != nil {
			s.logger.Error("Publish compensation failed",
				zap.Uint("concert_id", concertID),
				zap.Error(cerr),
			)
		}
		s.logger.Error("Event publish failed",
			zap.String("request_id", event.RequestID),
			zap.Uint("concert_id", concertID),
			zap.Error(err),
		)
		return "", fmt.Errorf("%w: %s", ErrPublishFailed, err)
	}

	s.logger.Debug("Reservation accepted",
		zap.String("request_id", event.RequestID),
		zap.Uint("concert_id", concertID),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
	)
	return event.RequestID, nil
}

// Status returns the reservation for a request ID. Async callers poll this
// until the consumer has persisted the outcome.
func (s *Service) Status(ctx context.Context, requestID string) (*models.Reservation, error) {
	return s.store.FindByRequestID(ctx, requestID)
}
