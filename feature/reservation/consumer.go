package reservation

import (
	"context"
	"errors"
	"time"

	"ticketing/core/logger"
	"ticketing/feature/reservation/models"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

// Message is one claimed event together with its source coordinates.
type Message struct {
	Event     Event
	Partition int32
	Offset    int64
}

// Consumer drains reservation events in ordered per-partition batches and
// persists the outcomes.
//
// Processing is two-phase: every event in the batch is handled first (success
// or routed to the dead-letter topic), then the successful records are
// persisted in one batch write and the offset is committed once. Committing
// after the fact yields at-least-once semantics; redelivered duplicates are
// absorbed by the RequestID uniqueness guard.
type Consumer struct {
	store         Store
	router        *Router
	retry         RetryPolicy
	batchSize     int
	flushInterval time.Duration
	logger        *zap.Logger
}

// NewConsumer creates a reservation event consumer.
func NewConsumer(store Store, router *Router, cfg Config, logger *zap.Logger) *Consumer {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	flush := cfg.BatchFlush()
	if flush <= 0 {
		flush = time.Second
	}
	return &Consumer{
		store:         store,
		router:        router,
		retry:         NewRetryPolicy(cfg),
		batchSize:     batchSize,
		flushInterval: flush,
		logger:        logger,
	}
}

// Setup implements sarama.ConsumerGroupHandler.
func (c *Consumer) Setup(sarama.ConsumerGroupSession) error { return nil }

// Cleanup implements sarama.ConsumerGroupHandler.
func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim accumulates messages into batches bounded by size and flush
// interval, preserving the claim's partition order.
func (c *Consumer) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	batch := make([]*sarama.ConsumerMessage, 0, c.batchSize)
	timer := time.NewTimer(c.flushInterval)
	defer timer.Stop()

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := c.handleBatch(sess, batch); err != nil {
			return err
		}
		batch = batch[:0]
		return nil
	}

	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return flush()
			}
			batch = append(batch, msg)
			if len(batch) >= c.batchSize {
				if err := flush(); err != nil {
					return err
				}
				if !timer.Stop() {
					<-timer.C
				}
				timer.Reset(c.flushInterval)
			}
		case <-timer.C:
			if err := flush(); err != nil {
				return err
			}
			timer.Reset(c.flushInterval)
		case <-sess.Context().Done():
			return flush()
		}
	}
}

// handleBatch decodes, processes and acknowledges one batch. The offset is
// marked and committed only after the batch write succeeded; an error here
// leaves the offset uncommitted so the batch is redelivered.
func (c *Consumer) handleBatch(sess sarama.ConsumerGroupSession, raw []*sarama.ConsumerMessage) error {
	msgs := make([]Message, 0, len(raw))
	for _, m := range raw {
		event, err := DecodeEvent(m.Value)
		if err != nil {
			// A payload that cannot be decoded will never succeed; log and
			// skip rather than stall the partition.
			c.logger.Error("Undecodable reservation event",
				zap.Int32("partition", m.Partition),
				zap.Int64("offset", m.Offset),
				zap.Error(err),
			)
			continue
		}
		msgs = append(msgs, Message{Event: event, Partition: m.Partition, Offset: m.Offset})
	}

	if _, _, err := c.ProcessBatch(sess.Context(), msgs); err != nil {
		return err
	}

	sess.MarkMessage(raw[len(raw)-1], "")
	sess.Commit()
	return nil
}

// ProcessBatch handles every event in the batch, then persists all outcomes
// in one durable transaction. Returns the success and failure counts. An
// error means the batch write itself failed and nothing was acknowledged.
func (c *Consumer) ProcessBatch(ctx context.Context, msgs []Message) (succeeded, failed int, err error) {
	c.logger.Info("Reservation batch received", zap.Int("size", len(msgs)))

	reservations := make([]models.Reservation, 0, len(msgs))
	concerts := make(map[uint]*models.Concert)

	for _, m := range msgs {
		r, perr := c.processOne(ctx, m, concerts)
		if perr != nil {
			failed++
			continue
		}
		if r != nil {
			reservations = append(reservations, *r)
		}
		succeeded++
	}

	err = c.store.Transaction(ctx, func(tx Store) error {
		if err := tx.SaveAll(ctx, reservations); err != nil {
			return err
		}
		for _, concert := range concerts {
			if err := tx.SaveConcert(ctx, concert); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return succeeded, failed, err
	}

	c.logger.Info("Reservation batch processed",
		zap.Int("succeeded", succeeded),
		zap.Int("failed", failed),
		zap.Int("total", len(msgs)),
	)
	return succeeded, failed, nil
}

// processOne resolves and applies a single event. A nil reservation with a
// nil error means the event was a duplicate delivery and was skipped.
// Terminal failures are routed to the dead-letter topic here; the returned
// error only signals that the event did not produce a COMPLETED record.
func (c *Consumer) processOne(ctx context.Context, m Message, concerts map[uint]*models.Concert) (*models.Reservation, error) {
	log := logger.WithRequestID(c.logger, m.Event.RequestID).With(
		zap.Uint("concert_id", m.Event.ConcertID),
		zap.Uint("member_id", m.Event.MemberID),
		zap.Int32("partition", m.Partition),
		zap.Int64("offset", m.Offset),
	)

	// Redelivered events must not decrement the durable seat count a second
	// time. The unique RequestID makes this check authoritative.
	if existing, err := c.store.FindByRequestID(ctx, m.Event.RequestID); err == nil {
		log.Info("Duplicate delivery skipped", zap.String("status", string(existing.Status)))
		return nil, nil
	} else if !errors.Is(err, ErrNotFound) {
		log.Warn("Duplicate check failed, processing anyway", zap.Error(err))
	}

	var reservation *models.Reservation
	var concert *models.Concert

	attempts, err := c.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		concert = concerts[m.Event.ConcertID]
		if concert == nil {
			concert, err = c.store.FindConcert(ctx, m.Event.ConcertID)
			if err != nil {
				return err
			}
		}
		member, err := c.store.FindMember(ctx, m.Event.MemberID)
		if err != nil {
			return err
		}
		reservation = &models.Reservation{
			RequestID: m.Event.RequestID,
			ConcertID: concert.ID,
			MemberID:  member.ID,
			Status:    models.StatusPending,
		}
		return nil
	})

	if err == nil {
		if serr := concert.ReserveSeat(); serr != nil {
			err = serr
		}
	}

	if err != nil {
		log.Error("Reservation processing failed terminally",
			zap.Int("attempts", attempts),
			zap.Error(err),
		)
		c.router.Route(ctx, m.Event, err, attempts, m.Partition, m.Offset)
		if fr := c.failedRecord(ctx, m.Event); fr != nil {
			// Best-effort FAILED record so status polling surfaces the
			// failure; the dead-letter topic remains the source of truth.
			c.storeFailed(ctx, fr, log)
		}
		return nil, err
	}

	concerts[concert.ID] = concert
	reservation.Complete()
	log.Debug("Reservation processed", zap.Int("attempts", attempts))
	return reservation, nil
}

// failedRecord builds a FAILED reservation when the referenced concert and
// member can still be resolved. Returns nil when they cannot.
func (c *Consumer) failedRecord(ctx context.Context, event Event) *models.Reservation {
	member, err := c.store.FindMember(ctx, event.MemberID)
	if err != nil {
		return nil
	}
	concert, err := c.store.FindConcert(ctx, event.ConcertID)
	if err != nil {
		return nil
	}
	return &models.Reservation{
		RequestID: event.RequestID,
		ConcertID: concert.ID,
		MemberID:  member.ID,
		Status:    models.StatusFailed,
	}
}

func (c *Consumer) storeFailed(ctx context.Context, r *models.Reservation, log *zap.Logger) {
	if err := c.store.SaveAll(ctx, []models.Reservation{*r}); err != nil {
		log.Error("Failed to persist FAILED reservation", zap.Error(err))
	}
}
