package reservation

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event is a reservation request accepted by the async path.
// It is immutable and published keyed by ConcertID, so all events for one
// concert land on the same partition and stay strictly ordered.
type Event struct {
	RequestID string    `json:"requestId"`
	ConcertID uint      `json:"concertId"`
	MemberID  uint      `json:"memberId"`
	Timestamp time.Time `json:"timestamp"`
}

// Key returns the partition key for the event.
func (e Event) Key() string {
	return fmt.Sprintf("%d", e.ConcertID)
}

// Encode serializes the event for the wire.
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// DecodeEvent deserializes an event from the wire.
func DecodeEvent(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, fmt.Errorf("reservation: decode event: %w", err)
	}
	return e, nil
}

// DeadLetterEvent annotates an event that exhausted all retry attempts.
// Immutable once written; retained on the dead-letter topic for inspection
// and manual replay.
type DeadLetterEvent struct {
	OriginalEvent Event     `json:"originalEvent"`
	ErrorMessage  string    `json:"errorMessage"`
	ErrorType     string    `json:"errorType"`
	FailedAt      time.Time `json:"failedAt"`
	RetryAttempts int       `json:"retryAttempts"`
	Partition     int32     `json:"partition"`
	Offset        int64     `json:"offset"`
}

// Encode serializes the dead-letter event for the wire.
func (d DeadLetterEvent) Encode() ([]byte, error) {
	return json.Marshal(d)
}

// DecodeDeadLetterEvent deserializes a dead-letter event from the wire.
func DecodeDeadLetterEvent(data []byte) (DeadLetterEvent, error) {
	var d DeadLetterEvent
	if err := json.Unmarshal(data, &d); err != nil {
		return DeadLetterEvent{}, fmt.Errorf("reservation: decode dead letter: %w", err)
	}
	return d, nil
}
