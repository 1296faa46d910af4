package model

import (
	"time"

	"github.com/google/uuid"
)

// ReservationStatus is the lifecycle state of a reservation row.
type ReservationStatus string

const (
	StatusPending   ReservationStatus = "PENDING"
	StatusConfirmed ReservationStatus = "CONFIRMED"
	StatusExpired   ReservationStatus = "EXPIRED"
	StatusCancelled ReservationStatus = "CANCELLED"
	// StatusFinalized is terminal. Nothing in this service moves a
	// reservation into it; rows are written to FINALIZED by fulfillment.
	StatusFinalized ReservationStatus = "FINALIZED"
)

// Valid reports whether s is one of the known states.
func (s ReservationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusExpired, StatusCancelled, StatusFinalized:
		return true
	}
	return false
}

// Cancellable reports whether an order holding a row in this state may
// still be cancelled. CONFIRMED and FINALIZED block the whole order.
func (s ReservationStatus) Cancellable() bool {
	return s != StatusConfirmed && s != StatusFinalized
}

// Reservation holds Quantity units of one SKU for one order.
// Transitions:
//
//	PENDING → CONFIRMED | CANCELLED | EXPIRED
//	EXPIRED → CANCELLED
//
// ExpiresAt is fixed at creation and never rewritten.
type Reservation struct {
	ID        uuid.UUID         `gorm:"type:uuid;primaryKey"`
	SKU       string            `gorm:"column:sku;type:varchar(64);not null;index"`
	OrderID   string            `gorm:"type:varchar(64);not null;index"`
	Quantity  int               `gorm:"not null"`
	Status    ReservationStatus `gorm:"type:varchar(20);not null"`
	ExpiresAt time.Time         `gorm:"not null;<-:create"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Reservation) TableName() string { return "reservations" }

// ReserveItem is one requested line of a reserve call.
type ReserveItem struct {
	SKU      string
	Quantity int
}
