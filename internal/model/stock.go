package model

import (
	"math"
	"time"
)

// MaxQuantity is the largest counter or line quantity the ledger accepts;
// the SQL columns are INTEGER.
const MaxQuantity = math.MaxInt32

// StockRecord is the two-counter ledger row for one SKU.
//
// Available is what can still be reserved. Committed is the physical
// on-hand quantity that a confirmed order deducts from. Neither may go
// negative; the database enforces it with CHECK constraints as well.
type StockRecord struct {
	SKU       string `gorm:"column:sku;primaryKey;type:varchar(64)"`
	Available int    `gorm:"not null;default:0"`
	Committed int    `gorm:"not null;default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (StockRecord) TableName() string { return "stock_records" }
