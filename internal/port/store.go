package port

import (
	"context"
	"time"

	"github.com/rl1809/stock-ledger/internal/core/domain"
)

// Runner is implemented by stores that compose replicas. Execute runs fn
// entirely against a single replica, so an operation that makes several
// Store calls never reads one replica and writes another.
type Runner interface {
	Execute(ctx context.Context, op string, fn func(ctx context.Context, s Store) error) error
}

// Store is the catalog-plus-ledger capability. Two complete implementations
// exist: the in-memory local replica and the authoritative MySQL store. A
// third composes them with a fallback policy.
type Store interface {
	GetItem(ctx context.Context, id string) (*domain.Item, error)

	// GetItemBySKU returns domain.ErrItemNotFound when no item carries the
	// SKU. Used by the catalog's duplicate-SKU policy.
	GetItemBySKU(ctx context.Context, sku string) (*domain.Item, error)

	// ListItems returns the full catalog; filtering and sorting are applied
	// by the service layer.
	ListItems(ctx context.Context) ([]domain.Item, error)

	CreateItem(ctx context.Context, item domain.Item) error

	// UpdateItem persists name/sku/location and updated_at. It must never
	// write the quantity column; balances change only via ApplyMovement.
	UpdateItem(ctx context.Context, item domain.Item) error

	DeleteItem(ctx context.Context, id string) error

	// ApplyMovement commits the balance update and the ledger append as one
	// atomic unit, serialized per item. It returns the updated item, or
	// domain.ErrItemNotFound / domain.ErrInsufficientStock with zero side
	// effects.
	ApplyMovement(ctx context.Context, mv domain.Movement) (*domain.Item, error)

	// ListMovementsByItem returns movements ascending by timestamp, id as
	// tiebreak. Tolerates itemIDs of deleted items.
	ListMovementsByItem(ctx context.Context, itemID string) ([]domain.Movement, error)

	// ListMovementsRange returns movements with from <= ts < to across all
	// items, ascending by timestamp.
	ListMovementsRange(ctx context.Context, from, to time.Time) ([]domain.Movement, error)
}
