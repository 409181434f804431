package port

import "context"

// StockCache is the optional read-path cache plus the request dedupe guard.
// All methods are best-effort from the engine's point of view: a cache
// failure degrades to the store, it never blocks a transaction.
type StockCache interface {
	// GetQuantity reports the cached balance; the second result is false on
	// a cache miss.
	GetQuantity(ctx context.Context, itemID string) (int, bool, error)

	SetQuantity(ctx context.Context, itemID string, quantity int) error

	// Invalidate drops the cached balance and publishes an invalidation
	// event for any consumer that wants to reload.
	Invalidate(ctx context.Context, itemID string) error

	// SetRequestID claims a request identifier, returning false if it was
	// already claimed.
	SetRequestID(ctx context.Context, requestID string) (bool, error)
}
