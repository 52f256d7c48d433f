package reservation

import "errors"

var (
	// ErrNotFound is returned when the concert or member does not exist.
	// It is a client error and is never retried.
	ErrNotFound = errors.New("reservation: not found")

	// ErrExhausted is returned when the concert has no remaining seats.
	ErrExhausted = errors.New("reservation: no remaining seats")

	// ErrPublishFailed is returned when the async path could not hand the
	// event to the broker. The cache decrement has already been compensated
	// when this error surfaces.
	ErrPublishFailed = errors.New("reservation: event publish failed")
)
