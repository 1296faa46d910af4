package service

import "context"

// OrderNotifier tells the order service that an order's reservation
// expired. Implementations must respect ctx; callers treat any error as
// non-fatal.
type OrderNotifier interface {
	NotifyExpired(ctx context.Context, orderID string) error
}
