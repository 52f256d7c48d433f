package models

import (
	"errors"
	"time"
)

// Status is the lifecycle state of a reservation.
type Status string

const (
	// StatusPending marks a reservation accepted for processing but not yet
	// durably confirmed.
	StatusPending Status = "PENDING"
	// StatusCompleted marks a successfully persisted reservation.
	StatusCompleted Status = "COMPLETED"
	// StatusFailed marks a reservation whose durable processing failed
	// terminally.
	StatusFailed Status = "FAILED"
	// StatusCancelled marks a reservation cancelled by explicit external
	// action.
	StatusCancelled Status = "CANCELLED"
)

// ErrNoRemainingSeats is returned by ReserveSeat when the concert is sold out.
var ErrNoRemainingSeats = errors.New("no remaining seats")

// Concert is the finite-inventory resource being reserved against.
// RemainingSeats is mutated only through ReserveSeat, and ReserveSeat is only
// called while holding the concert's lock or from the ordered consumer.
type Concert struct {
	ID             uint   `gorm:"primaryKey"`
	Title          string `gorm:"size:255;not null"`
	TotalSeats     int    `gorm:"not null"`
	RemainingSeats int    `gorm:"not null"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ReserveSeat decrements the remaining seat count.
// The count never goes below zero.
func (c *Concert) ReserveSeat() error {
	if c.RemainingSeats <= 0 {
		return ErrNoRemainingSeats
	}
	c.RemainingSeats--
	return nil
}

// Member is a requester. Read-only from the reservation core's perspective.
type Member struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"size:255;not null"`
	Email     string `gorm:"size:255;not null"`
	CreatedAt time.Time
}

// Reservation records one reservation outcome.
//
// RequestID is the idempotency key: the unique index rejects a second insert
// for the same request, which is the guard against duplicate event delivery
// under at-least-once consumption.
type Reservation struct {
	ID        uint   `gorm:"primaryKey"`
	RequestID string `gorm:"size:36;uniqueIndex;not null"`
	ConcertID uint   `gorm:"index;not null"`
	MemberID  uint   `gorm:"not null"`
	Status    Status `gorm:"size:16;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Complete transitions the reservation to COMPLETED.
func (r *Reservation) Complete() {
	r.Status = StatusCompleted
}

// Fail transitions the reservation to FAILED.
func (r *Reservation) Fail() {
	r.Status = StatusFailed
}
