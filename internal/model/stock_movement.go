package model

import (
	"time"

	"github.com/google/uuid"
)

// MovementKind names the engine operation that changed a ledger row.
type MovementKind string

const (
	MovementLoad    MovementKind = "load"
	MovementReserve MovementKind = "reserve"
	MovementCancel  MovementKind = "cancel"
	MovementConfirm MovementKind = "confirm"
	MovementExpire  MovementKind = "expire"
)

// StockMovement records one delta applied to a StockRecord. It is written
// in the same transaction as the delta, so the sum of all movements for a
// SKU always equals its current counters.
type StockMovement struct {
	ID             uuid.UUID    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SKU            string       `gorm:"column:sku;type:varchar(64);not null;index"`
	Kind           MovementKind `gorm:"type:varchar(20);not null"`
	AvailableDelta int          `gorm:"not null"`
	CommittedDelta int          `gorm:"not null"`
	OrderID        *string      `gorm:"type:varchar(64)"` // empty for load and batched expiry
	CreatedAt      time.Time
}

func (StockMovement) TableName() string { return "stock_movements" }
