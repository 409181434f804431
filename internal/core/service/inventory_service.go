package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rl1809/stock-ledger/internal/core/domain"
	"github.com/rl1809/stock-ledger/internal/port"
)

// InventoryService owns the item catalog and the transaction processor. All
// balance changes flow through Apply; catalog edits never touch quantity.
type InventoryService struct {
	store port.Store
	cache port.StockCache
	log   *zap.SugaredLogger

	allowDupSKU bool
	now         func() time.Time
}

type Option func(*InventoryService)

// WithAllowDuplicateSKU relaxes the default duplicate-SKU rejection.
func WithAllowDuplicateSKU() Option {
	return func(s *InventoryService) { s.allowDupSKU = true }
}

func WithClock(now func() time.Time) Option {
	return func(s *InventoryService) { s.now = now }
}

// NewInventoryService builds the service. cache may be nil; the engine then
// runs without the read cache and without request dedupe.
func NewInventoryService(store port.Store, cache port.StockCache, log *zap.SugaredLogger, opts ...Option) *InventoryService {
	s := &InventoryService{
		store: store,
		cache: cache,
		log:   log.With("service", "inventory"),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListQuery mirrors the search box and the sortable table headers: a single
// case-insensitive substring matched against name, SKU and location, plus a
// sort key with direction.
type ListQuery struct {
	Query   string
	SortKey string // name | sku | quantity | location
	SortDir string // asc | desc
}

func (s *InventoryService) ListItems(ctx context.Context, q ListQuery) ([]domain.Item, error) {
	items, err := s.store.ListItems(ctx)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(strings.TrimSpace(q.Query))
	if needle != "" {
		filtered := items[:0]
		for _, item := range items {
			if strings.Contains(strings.ToLower(item.Name), needle) ||
				strings.Contains(strings.ToLower(item.SKU), needle) ||
				strings.Contains(strings.ToLower(item.Location), needle) {
				filtered = append(filtered, item)
			}
		}
		items = filtered
	}

	sortItems(items, q.SortKey, q.SortDir)
	return items, nil
}

func sortItems(items []domain.Item, key, dir string) {
	desc := dir == "desc"

	less := func(a, b domain.Item) int {
		switch key {
		case "sku":
			return strings.Compare(a.SKU, b.SKU)
		case "quantity":
			return a.Quantity - b.Quantity
		case "location":
			return strings.Compare(a.Location, b.Location)
		default:
			return strings.Compare(a.Name, b.Name)
		}
	}

	sort.Slice(items, func(i, j int) bool {
		c := less(items[i], items[j])
		if desc {
			c = -c
		}
		if c != 0 {
			return c < 0
		}
		// Stable secondary order: ascending id regardless of direction.
		return items[i].ID < items[j].ID
	})
}

func (s *InventoryService) GetItem(ctx context.Context, id string) (*domain.Item, error) {
	return s.store.GetItem(ctx, id)
}

// Quantity serves the lightweight balance read used by dashboard polling.
// Cache hits may be stale until the next invalidation; the store stays
// authoritative.
func (s *InventoryService) Quantity(ctx context.Context, itemID string) (int, error) {
	if s.cache != nil {
		if qty, ok, err := s.cache.GetQuantity(ctx, itemID); err == nil && ok {
			return qty, nil
		} else if err != nil {
			s.log.Warnw("quantity cache read failed", "item_id", itemID, "error", err)
		}
	}

	item, err := s.store.GetItem(ctx, itemID)
	if err != nil {
		return 0, err
	}
	if s.cache != nil {
		if err := s.cache.SetQuantity(ctx, itemID, item.Quantity); err != nil {
			s.log.Warnw("quantity cache write failed", "item_id", itemID, "error", err)
		}
	}
	return item.Quantity, nil
}

// run executes fn against one pinned store, so operations that make several
// Store calls never mix replicas mid-flight.
func (s *InventoryService) run(ctx context.Context, op string, fn func(ctx context.Context, st port.Store) error) error {
	if r, ok := s.store.(port.Runner); ok {
		return r.Execute(ctx, op, fn)
	}
	return fn(ctx, s.store)
}

func (s *InventoryService) CreateItem(ctx context.Context, actor domain.Actor, attrs domain.ItemAttrs) (*domain.Item, error) {
	if err := attrs.Validate(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	item := domain.Item{
		ID:        uuid.NewString(),
		Name:      attrs.Name,
		SKU:       attrs.SKU,
		Location:  attrs.Location,
		CreatedAt: now,
		UpdatedAt: now,
	}

	// Opening stock is recorded through the ledger so the balance stays
	// derivable from movements.
	var opening *domain.Movement
	if attrs.Quantity > 0 {
		opening = &domain.Movement{
			ID:        uuid.NewString(),
			ItemID:    item.ID,
			Kind:      domain.MovementIn,
			Quantity:  attrs.Quantity,
			Note:      "initial stock",
			Timestamp: now,
		}
	}

	err := s.run(ctx, "CreateItem", func(ctx context.Context, st port.Store) error {
		if !s.allowDupSKU {
			if _, err := st.GetItemBySKU(ctx, attrs.SKU); err == nil {
				return domain.ErrDuplicateSKU
			} else if !errors.Is(err, domain.ErrItemNotFound) {
				return err
			}
		}
		if err := st.CreateItem(ctx, item); err != nil {
			return err
		}
		if opening != nil {
			updated, err := st.ApplyMovement(ctx, *opening)
			if err != nil {
				return fmt.Errorf("record initial stock: %w", err)
			}
			item = *updated
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Infow("item created",
		"item_id", item.ID, "sku", item.SKU, "quantity", item.Quantity, "actor", actor.Email)
	return &item, nil
}

func (s *InventoryService) UpdateItem(ctx context.Context, actor domain.Actor, id string, patch domain.ItemPatch) (*domain.Item, error) {
	var item *domain.Item
	err := s.run(ctx, "UpdateItem", func(ctx context.Context, st port.Store) error {
		var err error
		item, err = st.GetItem(ctx, id)
		if err != nil {
			return err
		}

		if patch.Name != nil {
			item.Name = *patch.Name
		}
		if patch.SKU != nil && *patch.SKU != item.SKU {
			if !s.allowDupSKU {
				if _, err := st.GetItemBySKU(ctx, *patch.SKU); err == nil {
					return domain.ErrDuplicateSKU
				} else if !errors.Is(err, domain.ErrItemNotFound) {
					return err
				}
			}
			item.SKU = *patch.SKU
		}
		if patch.Location != nil {
			item.Location = *patch.Location
		}
		item.UpdatedAt = s.now().UTC()

		return st.UpdateItem(ctx, *item)
	})
	if err != nil {
		return nil, err
	}
	s.log.Infow("item updated", "item_id", id, "actor", actor.Email)
	return item, nil
}

func (s *InventoryService) DeleteItem(ctx context.Context, actor domain.Actor, id string) error {
	if err := s.store.DeleteItem(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	s.log.Infow("item deleted", "item_id", id, "actor", actor.Email)
	return nil
}

// ApplyRequest is one stock movement command. RequestID is optional; when
// present, a replay of the same ID is rejected with ErrDuplicateRequest.
type ApplyRequest struct {
	RequestID string
	ItemID    string
	Kind      domain.MovementKind
	Quantity  int
	Note      string
}

// Apply validates and commits a single movement atomically against the item
// balance. Rejected transactions leave no trace; nothing is retried.
func (s *InventoryService) Apply(ctx context.Context, actor domain.Actor, req ApplyRequest) (*domain.Item, *domain.Movement, error) {
	if !req.Kind.Valid() {
		return nil, nil, domain.ErrInvalidKind
	}
	if req.Quantity <= 0 {
		return nil, nil, domain.ErrInvalidQuantity
	}

	if req.RequestID != "" && s.cache != nil {
		ok, err := s.cache.SetRequestID(ctx, req.RequestID)
		if err != nil {
			// Dedupe is a guard, not a gate: a cache outage must not block
			// transactions.
			s.log.Warnw("request dedupe unavailable", "request_id", req.RequestID, "error", err)
		} else if !ok {
			return nil, nil, domain.ErrDuplicateRequest
		}
	}

	mv := domain.Movement{
		ID:        uuid.NewString(),
		ItemID:    req.ItemID,
		Kind:      req.Kind,
		Quantity:  req.Quantity,
		Note:      req.Note,
		Timestamp: s.now().UTC(),
	}

	item, err := s.store.ApplyMovement(ctx, mv)
	if err != nil {
		return nil, nil, err
	}

	s.invalidate(ctx, item.ID)
	s.log.Infow("movement applied",
		"movement_id", mv.ID,
		"item_id", item.ID,
		"kind", mv.Kind,
		"quantity", mv.Quantity,
		"balance", item.Quantity,
		"actor", actor.Email,
	)
	return item, &mv, nil
}

func (s *InventoryService) invalidate(ctx context.Context, itemID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, itemID); err != nil {
		s.log.Warnw("cache invalidation failed", "item_id", itemID, "error", err)
	}
}

func (s *InventoryService) Movements(ctx context.Context, itemID string) ([]domain.Movement, error) {
	return s.store.ListMovementsByItem(ctx, itemID)
}

// ReconcileResult exposes both balances so a mismatch can be resolved by
// hand.
type ReconcileResult struct {
	ItemID     string `json:"item_id"`
	Stored     int    `json:"stored_quantity"`
	Derived    int    `json:"ledger_quantity"`
	Consistent bool   `json:"consistent"`
}

// Reconcile recomputes the signed movement sum for an item and compares it
// with the stored balance. A mismatch is returned as *InconsistencyError
// alongside the result; it is reported, never repaired.
func (s *InventoryService) Reconcile(ctx context.Context, itemID string) (*ReconcileResult, error) {
	// Both reads come from the same replica; comparing a remote balance
	// against local movements would manufacture inconsistencies.
	var item *domain.Item
	var mvs []domain.Movement
	err := s.run(ctx, "Reconcile", func(ctx context.Context, st port.Store) error {
		var err error
		if item, err = st.GetItem(ctx, itemID); err != nil {
			return err
		}
		mvs, err = st.ListMovementsByItem(ctx, itemID)
		return err
	})
	if err != nil {
		return nil, err
	}

	derived := 0
	for _, mv := range mvs {
		derived += mv.Signed()
	}

	result := &ReconcileResult{
		ItemID:     itemID,
		Stored:     item.Quantity,
		Derived:    derived,
		Consistent: derived == item.Quantity,
	}
	if !result.Consistent {
		err := &domain.InconsistencyError{ItemID: itemID, Stored: item.Quantity, Derived: derived}
		s.log.Errorw("ledger inconsistency detected",
			"item_id", itemID, "stored", item.Quantity, "derived", derived)
		return result, err
	}
	return result, nil
}
