package dto

type ReserveItemRequest struct {
	SKU      string `json:"sku"      validate:"required,max=64"`
	Quantity int    `json:"quantity" validate:"required,gt=0,max=2147483647"`
}

type ReserveRequest struct {
	OrderID string               `json:"orderId" validate:"required,max=64"`
	Items   []ReserveItemRequest `json:"items"   validate:"dive"`
}

// OrderRequest is the body of confirm and cancel.
type OrderRequest struct {
	OrderID string `json:"orderId" validate:"required,max=64"`
}

type ReservationResponse struct {
	ID        string `json:"id"`
	SKU       string `json:"sku"`
	OrderID   string `json:"orderId"`
	Quantity  int    `json:"quantity"`
	Status    string `json:"status"`
	ExpiresAt string `json:"expiresAt"`
	CreatedAt string `json:"createdAt"`
}
