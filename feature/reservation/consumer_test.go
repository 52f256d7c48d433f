package reservation

import (
	"context"
	"errors"
	"testing"
	"time"

	"ticketing/feature/reservation/models"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestConsumer(store *fakeStore, dlq sarama.SyncProducer) *Consumer {
	cfg := Config{
		RetryMaxAttempts:   3,
		RetryInitialMillis: 1,
		BatchSize:          10,
		BatchFlushMillis:   10,
	}
	router := NewRouter(dlq, "ticket_reservation_dlq", zap.NewNop())
	return NewConsumer(store, router, cfg, zap.NewNop())
}

func testMessage(requestID string, concertID, memberID uint, partition int32, offset int64) Message {
	return Message{
		Event: Event{
			RequestID: requestID,
			ConcertID: concertID,
			MemberID:  memberID,
			Timestamp: time.Now().UTC(),
		},
		Partition: partition,
		Offset:    offset,
	}
}

func TestConsumer_ProcessBatch(t *testing.T) {
	store := newFakeStore()
	store.addConcert(models.Concert{ID: 1, TotalSeats: 5, RemainingSeats: 5})
	store.addMember(models.Member{ID: 1})
	c := newTestConsumer(store, mocks.NewSyncProducer(t, nil))

	msgs := []Message{
		testMessage("req-1", 1, 1, 0, 10),
		testMessage("req-2", 1, 1, 0, 11),
		testMessage("req-3", 1, 1, 0, 12),
	}

	succeeded, failed, err := c.ProcessBatch(context.Background(), msgs)
	require.NoError(t, err)
	assert.Equal(t, 3, succeeded)
	assert.Zero(t, failed)
	assert.Equal(t, 3, store.countByStatus(models.StatusCompleted))
	assert.Equal(t, 2, store.remainingSeats(1))
}

// A redelivered event must neither decrement the seat count again nor insert
// a second record.
func TestConsumer_ProcessBatchDuplicate(t *testing.T) {
	store := newFakeStore()
	store.addConcert(models.Concert{ID: 1, TotalSeats: 5, RemainingSeats: 4})
	store.addMember(models.Member{ID: 1})
	store.reservations["req-1"] = models.Reservation{
		RequestID: "req-1",
		ConcertID: 1,
		MemberID:  1,
		Status:    models.StatusCompleted,
	}
	c := newTestConsumer(store, mocks.NewSyncProducer(t, nil))

	succeeded, failed, err := c.ProcessBatch(context.Background(), []Message{
		testMessage("req-1", 1, 1, 0, 10),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, succeeded)
	assert.Zero(t, failed)
	assert.Equal(t, 4, store.remainingSeats(1))
	assert.Equal(t, 1, store.countByStatus(models.StatusCompleted))
}

// One seat, two events: the loser is routed to the dead-letter topic with its
// source coordinates and a FAILED record is left for status polling.
func TestConsumer_ProcessBatchExhausted(t *testing.T) {
	store := newFakeStore()
	store.addConcert(models.Concert{ID: 1, TotalSeats: 1, RemainingSeats: 1})
	store.addMember(models.Member{ID: 1})

	dlq := mocks.NewSyncProducer(t, nil)
	var record DeadLetterEvent
	dlq.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var err error
		record, err = DecodeDeadLetterEvent(val)
		return err
	})
	c := newTestConsumer(store, dlq)

	succeeded, failed, err := c.ProcessBatch(context.Background(), []Message{
		testMessage("req-1", 1, 1, 2, 40),
		testMessage("req-2", 1, 1, 2, 41),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, failed)

	assert.Equal(t, "req-2", record.OriginalEvent.RequestID)
	assert.Equal(t, "Exhausted", record.ErrorType)
	assert.Equal(t, 1, record.RetryAttempts)
	assert.Equal(t, int32(2), record.Partition)
	assert.Equal(t, int64(41), record.Offset)
	assert.False(t, record.FailedAt.IsZero())

	assert.Equal(t, 1, store.countByStatus(models.StatusCompleted))
	assert.Equal(t, 1, store.countByStatus(models.StatusFailed))
	assert.Equal(t, 0, store.remainingSeats(1))
	require.NoError(t, dlq.Close())
}

// A transient store failure is retried up to the budget before the event is
// given up and routed with the attempt count.
func TestConsumer_ProcessBatchRetryExhaustion(t *testing.T) {
	store := newFakeStore()
	store.addConcert(models.Concert{ID: 1, TotalSeats: 5, RemainingSeats: 5})
	store.addMember(models.Member{ID: 1})
	store.findErr = errors.New("connection refused")

	dlq := mocks.NewSyncProducer(t, nil)
	var record DeadLetterEvent
	dlq.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var err error
		record, err = DecodeDeadLetterEvent(val)
		return err
	})
	c := newTestConsumer(store, dlq)

	succeeded, failed, err := c.ProcessBatch(context.Background(), []Message{
		testMessage("req-1", 1, 1, 0, 10),
	})
	require.NoError(t, err)
	assert.Zero(t, succeeded)
	assert.Equal(t, 1, failed)
	assert.Equal(t, 3, record.RetryAttempts)
	assert.Equal(t, "Transient", record.ErrorType)
	require.NoError(t, dlq.Close())
}

// An event referencing a missing member fails permanently on the first
// attempt; the retry budget is not spent on it.
func TestConsumer_ProcessBatchMemberNotFound(t *testing.T) {
	store := newFakeStore()
	store.addConcert(models.Concert{ID: 1, TotalSeats: 5, RemainingSeats: 5})

	dlq := mocks.NewSyncProducer(t, nil)
	var record DeadLetterEvent
	dlq.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var err error
		record, err = DecodeDeadLetterEvent(val)
		return err
	})
	c := newTestConsumer(store, dlq)

	_, failed, err := c.ProcessBatch(context.Background(), []Message{
		testMessage("req-1", 1, 99, 0, 10),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, failed)
	assert.Equal(t, "NotFound", record.ErrorType)
	assert.Equal(t, 1, record.RetryAttempts)
	assert.Equal(t, 5, store.remainingSeats(1))
	require.NoError(t, dlq.Close())
}

// When the batch write fails nothing is acknowledged; ProcessBatch surfaces
// the error so the offset stays uncommitted and the batch is redelivered.
func TestConsumer_ProcessBatchWriteFailure(t *testing.T) {
	store := newFakeStore()
	store.addConcert(models.Concert{ID: 1, TotalSeats: 5, RemainingSeats: 5})
	store.addMember(models.Member{ID: 1})
	store.saveErr = errors.New("server has gone away")
	c := newTestConsumer(store, mocks.NewSyncProducer(t, nil))

	_, _, err := c.ProcessBatch(context.Background(), []Message{
		testMessage("req-1", 1, 1, 0, 10),
	})
	assert.ErrorIs(t, err, store.saveErr)
}
