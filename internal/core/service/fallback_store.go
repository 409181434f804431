package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/stock-ledger/internal/core/domain"
	"github.com/rl1809/stock-ledger/internal/port"
)

// FallbackStore composes the authoritative remote store with the local
// replica. Remote calls carry a bounded timeout; when one fails for
// availability reasons the whole operation is re-run against the local
// store and a warning is logged, so the user-visible action still
// completes. Domain rejections (not found, insufficient stock, duplicate
// SKU) are real answers and pass through untouched.
//
// The two stores are never mixed inside one operation: each call runs
// entirely against the remote or entirely against the local replica.
type FallbackStore struct {
	remote  port.Store
	local   port.Store
	timeout time.Duration
	log     *zap.SugaredLogger
}

func NewFallbackStore(remote, local port.Store, timeout time.Duration, log *zap.SugaredLogger) *FallbackStore {
	return &FallbackStore{
		remote:  remote,
		local:   local,
		timeout: timeout,
		log:     log.With("service", "fallback-store"),
	}
}

// isUnavailable reports whether err is an availability failure rather than a
// domain rejection.
func isUnavailable(err error) bool {
	if err == nil {
		return false
	}
	for _, sentinel := range []error{
		domain.ErrItemNotFound,
		domain.ErrInsufficientStock,
		domain.ErrDuplicateSKU,
		domain.ErrInvalidQuantity,
		domain.ErrInvalidKind,
		domain.ErrInvalidItem,
	} {
		if errors.Is(err, sentinel) {
			return false
		}
	}
	var inc *domain.InconsistencyError
	return !errors.As(err, &inc)
}

func fallback[T any](ctx context.Context, f *FallbackStore, op string, fn func(ctx context.Context, s port.Store) (T, error)) (T, error) {
	rctx, cancel := context.WithTimeout(ctx, f.timeout)
	out, err := fn(rctx, f.remote)
	cancel()
	if !isUnavailable(err) {
		return out, err
	}
	if ctx.Err() != nil {
		// The caller gave up, not the remote; an abandoned call must not
		// mutate the local replica.
		return out, err
	}

	f.log.Warnw("remote store unavailable, serving local replica", "op", op, "error", err)
	return fn(ctx, f.local)
}

// Execute runs a multi-call operation entirely against one replica: the
// remote attempt covers every call in fn under a single timeout, and an
// availability failure reruns the whole fn against the local store.
func (f *FallbackStore) Execute(ctx context.Context, op string, fn func(ctx context.Context, s port.Store) error) error {
	_, err := fallback(ctx, f, op, func(ctx context.Context, s port.Store) (struct{}, error) {
		return struct{}{}, fn(ctx, s)
	})
	return err
}

func (f *FallbackStore) GetItem(ctx context.Context, id string) (*domain.Item, error) {
	return fallback(ctx, f, "GetItem", func(ctx context.Context, s port.Store) (*domain.Item, error) {
		return s.GetItem(ctx, id)
	})
}

func (f *FallbackStore) GetItemBySKU(ctx context.Context, sku string) (*domain.Item, error) {
	return fallback(ctx, f, "GetItemBySKU", func(ctx context.Context, s port.Store) (*domain.Item, error) {
		return s.GetItemBySKU(ctx, sku)
	})
}

func (f *FallbackStore) ListItems(ctx context.Context) ([]domain.Item, error) {
	return fallback(ctx, f, "ListItems", func(ctx context.Context, s port.Store) ([]domain.Item, error) {
		return s.ListItems(ctx)
	})
}

func (f *FallbackStore) CreateItem(ctx context.Context, item domain.Item) error {
	_, err := fallback(ctx, f, "CreateItem", func(ctx context.Context, s port.Store) (struct{}, error) {
		return struct{}{}, s.CreateItem(ctx, item)
	})
	return err
}

func (f *FallbackStore) UpdateItem(ctx context.Context, item domain.Item) error {
	_, err := fallback(ctx, f, "UpdateItem", func(ctx context.Context, s port.Store) (struct{}, error) {
		return struct{}{}, s.UpdateItem(ctx, item)
	})
	return err
}

func (f *FallbackStore) DeleteItem(ctx context.Context, id string) error {
	_, err := fallback(ctx, f, "DeleteItem", func(ctx context.Context, s port.Store) (struct{}, error) {
		return struct{}{}, s.DeleteItem(ctx, id)
	})
	return err
}

func (f *FallbackStore) ApplyMovement(ctx context.Context, mv domain.Movement) (*domain.Item, error) {
	return fallback(ctx, f, "ApplyMovement", func(ctx context.Context, s port.Store) (*domain.Item, error) {
		return s.ApplyMovement(ctx, mv)
	})
}

func (f *FallbackStore) ListMovementsByItem(ctx context.Context, itemID string) ([]domain.Movement, error) {
	return fallback(ctx, f, "ListMovementsByItem", func(ctx context.Context, s port.Store) ([]domain.Movement, error) {
		return s.ListMovementsByItem(ctx, itemID)
	})
}

func (f *FallbackStore) ListMovementsRange(ctx context.Context, from, to time.Time) ([]domain.Movement, error) {
	return fallback(ctx, f, "ListMovementsRange", func(ctx context.Context, s port.Store) ([]domain.Movement, error) {
		return s.ListMovementsRange(ctx, from, to)
	})
}
