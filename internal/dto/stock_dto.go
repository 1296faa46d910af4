package dto

// ─── Stock ───────────────────────────────────────────────────────────────────

// StockResponse is the display view of a ledger row: committed stock is
// internal and never exposed.
type StockResponse struct {
	SKU       string `json:"sku"`
	Available int    `json:"available"`
}

// StockListResponse answers a multi-SKU read. Missing lists the requested
// SKUs that have no ledger row.
type StockListResponse struct {
	Data    []StockResponse `json:"data"`
	Missing []string        `json:"missing"`
}

type LoadStockRequest struct {
	SKU      string `json:"sku"      validate:"required,max=64"`
	Quantity int    `json:"quantity" validate:"required,gt=0,max=2147483647"`
}

// ─── Movements ───────────────────────────────────────────────────────────────

// StockMovementFilter is bound from the query string of
// GET /v1/stock/:sku/movements.
type StockMovementFilter struct {
	Kind  string `form:"kind"              validate:"omitempty,oneof=load reserve cancel confirm expire"`
	Page  int    `form:"page,default=1"    validate:"min=1"`
	Limit int    `form:"limit,default=100" validate:"min=1,max=500"`
}

type StockMovementResponse struct {
	ID             string  `json:"id"`
	SKU            string  `json:"sku"`
	Kind           string  `json:"kind"`
	AvailableDelta int     `json:"availableDelta"`
	CommittedDelta int     `json:"committedDelta"`
	OrderID        *string `json:"orderId,omitempty"`
	CreatedAt      string  `json:"createdAt"`
}

type StockMovementListResponse struct {
	Data  []StockMovementResponse `json:"data"`
	Total int64                   `json:"total"`
	Page  int                     `json:"page"`
	Limit int                     `json:"limit"`
}
