package model

import "errors"

// Domain errors returned by the reservation engine. Callers match them
// with errors.Is; the engine wraps them with the offending SKU or order.
var (
	ErrProductNotFound              = errors.New("product not found")
	ErrOutOfStock                   = errors.New("insufficient stock")
	ErrReservationNotFound          = errors.New("reservation not found")
	ErrReservationCannotBeCancelled = errors.New("reservation cannot be cancelled")
	ErrInvalidReservationState      = errors.New("invalid reservation state")
	ErrInvalidQuantity              = errors.New("quantity must be positive")
	ErrEmptyOrder                   = errors.New("order id and at least one item are required")
)
