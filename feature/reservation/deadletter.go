package reservation

import (
	"context"
	"errors"
	"time"

	"ticketing/feature/reservation/models"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

// Router captures events that exhausted their retry budget and publishes them
// to the dead-letter topic, annotated with failure metadata.
type Router struct {
	producer sarama.SyncProducer
	topic    string
	logger   *zap.Logger
}

// NewRouter creates a dead-letter router for the given topic.
func NewRouter(producer sarama.SyncProducer, topic string, logger *zap.Logger) *Router {
	return &Router{producer: producer, topic: topic, logger: logger}
}

// Route publishes a dead-letter record for the event. Best-effort: a broker
// failure here is logged, not propagated, so one unroutable event cannot
// stall the rest of the batch.
func (r *Router) Route(ctx context.Context, event Event, cause error, attempts int, partition int32, offset int64) {
	record := DeadLetterEvent{
		OriginalEvent: event,
		ErrorMessage:  cause.Error(),
		ErrorType:     errorClass(cause),
		FailedAt:      time.Now().UTC(),
		RetryAttempts: attempts,
		Partition:     partition,
		Offset:        offset,
	}

	data, err := record.Encode()
	if err != nil {
		r.logger.Error("Failed to encode dead-letter record",
			zap.String("request_id", event.RequestID),
			zap.Error(err),
		)
		return
	}

	_, _, err = r.producer.SendMessage(&sarama.ProducerMessage{
		Topic: r.topic,
		Key:   sarama.StringEncoder(event.RequestID),
		Value: sarama.ByteEncoder(data),
	})
	if err != nil {
		r.logger.Error("Failed to publish dead-letter record",
			zap.String("request_id", event.RequestID),
			zap.Error(err),
		)
		return
	}

	r.logger.Info("Event routed to dead-letter topic",
		zap.String("request_id", event.RequestID),
		zap.String("error_type", record.ErrorType),
		zap.Int("retry_attempts", attempts),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
	)
}

// errorClass names the failure for triage.
func errorClass(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "NotFound"
	case errors.Is(err, ErrExhausted), errors.Is(err, models.ErrNoRemainingSeats):
		return "Exhausted"
	case errors.Is(err, context.DeadlineExceeded):
		return "Timeout"
	default:
		return "Transient"
	}
}

// DeadLetterConsumer is the terminal sink for the dead-letter topic. It logs
// structured detail per record for operational triage and can replay records
// back onto the primary topic.
type DeadLetterConsumer struct {
	publisher  Publisher
	logger     *zap.Logger
	autoReplay bool
}

// NewDeadLetterConsumer creates a dead-letter consumer. When autoReplay is
// set, every consumed record is immediately re-published to the primary
// topic; otherwise records are only logged and Replay is invoked manually.
func NewDeadLetterConsumer(publisher Publisher, autoReplay bool, logger *zap.Logger) *DeadLetterConsumer {
	return &DeadLetterConsumer{publisher: publisher, autoReplay: autoReplay, logger: logger}
}

// Replay re-publishes the original event to the primary topic. The replayed
// event keeps its request ID, so a replay of an already-processed event is
// absorbed by the idempotency guard.
func (c *DeadLetterConsumer) Replay(ctx context.Context, record DeadLetterEvent) error {
	_, _, err := c.publisher.Publish(ctx, record.OriginalEvent)
	if err != nil {
		return err
	}
	c.logger.Info("Dead-letter record replayed",
		zap.String("request_id", record.OriginalEvent.RequestID),
	)
	return nil
}

// Setup implements sarama.ConsumerGroupHandler.
func (c *DeadLetterConsumer) Setup(sarama.ConsumerGroupSession) error { return nil }

// Cleanup implements sarama.ConsumerGroupHandler.
func (c *DeadLetterConsumer) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim logs every dead-letter record and acknowledges it.
func (c *DeadLetterConsumer) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		record, err := DecodeDeadLetterEvent(msg.Value)
		if err != nil {
			c.logger.Error("Undecodable dead-letter record",
				zap.Int32("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(err),
			)
			sess.MarkMessage(msg, "")
			continue
		}

		c.logger.Warn("Dead-letter record",
			zap.String("request_id", record.OriginalEvent.RequestID),
			zap.Uint("concert_id", record.OriginalEvent.ConcertID),
			zap.Uint("member_id", record.OriginalEvent.MemberID),
			zap.String("error_type", record.ErrorType),
			zap.String("error_message", record.ErrorMessage),
			zap.Time("failed_at", record.FailedAt),
			zap.Int("retry_attempts", record.RetryAttempts),
			zap.Int32("source_partition", record.Partition),
			zap.Int64("source_offset", record.Offset),
			zap.Int32("dlq_partition", msg.Partition),
			zap.Int64("dlq_offset", msg.Offset),
		)

		if c.autoReplay {
			if err := c.Replay(sess.Context(), record); err != nil {
				c.logger.Error("Replay failed",
					zap.String("request_id", record.OriginalEvent.RequestID),
					zap.Error(err),
				)
			}
		}

		sess.MarkMessage(msg, "")
	}
	sess.Commit()
	return nil
}
