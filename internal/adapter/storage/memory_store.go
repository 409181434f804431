package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/stock-ledger/internal/core/domain"
)

// MemoryStore is the local replica: a complete, independently consistent
// Store used for offline/demo operation and as the fallback target when the
// authoritative store is unreachable.
//
// Apply serialization is per item: a dedicated mutex guards each item's
// read-modify-write, so transactions against different items proceed
// concurrently. The store-wide RWMutex is held only for short map/slice
// accesses, which keeps reads non-blocking with respect to the long part of
// a write and guarantees readers never observe a movement without its
// matching balance update.
type MemoryStore struct {
	mu        sync.RWMutex
	items     map[string]*domain.Item
	movements []domain.Movement

	lockMu    sync.Mutex
	itemLocks map[string]*sync.Mutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items:     make(map[string]*domain.Item),
		itemLocks: make(map[string]*sync.Mutex),
	}
}

func (s *MemoryStore) itemLock(id string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()

	l, ok := s.itemLocks[id]
	if !ok {
		l = &sync.Mutex{}
		s.itemLocks[id] = l
	}
	return l
}

func (s *MemoryStore) GetItem(ctx context.Context, id string) (*domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		return nil, domain.ErrItemNotFound
	}
	cp := *item
	return &cp, nil
}

func (s *MemoryStore) GetItemBySKU(ctx context.Context, sku string) (*domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, item := range s.items {
		if item.SKU == sku {
			cp := *item
			return &cp, nil
		}
	}
	return nil, domain.ErrItemNotFound
}

func (s *MemoryStore) ListItems(ctx context.Context) ([]domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Item, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, *item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) CreateItem(ctx context.Context, item domain.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := item
	s.items[item.ID] = &cp
	return nil
}

func (s *MemoryStore) UpdateItem(ctx context.Context, item domain.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.items[item.ID]
	if !ok {
		return domain.ErrItemNotFound
	}

	// Quantity stays untouched; only movements change balances.
	existing.Name = item.Name
	existing.SKU = item.SKU
	existing.Location = item.Location
	existing.UpdatedAt = item.UpdatedAt
	return nil
}

func (s *MemoryStore) DeleteItem(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return domain.ErrItemNotFound
	}
	// Historical movements stay in the ledger as orphans.
	delete(s.items, id)
	return nil
}

func (s *MemoryStore) ApplyMovement(ctx context.Context, mv domain.Movement) (*domain.Item, error) {
	lock := s.itemLock(mv.ItemID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.RLock()
	item, ok := s.items[mv.ItemID]
	var current int
	if ok {
		current = item.Quantity
	}
	s.mu.RUnlock()

	if !ok {
		return nil, domain.ErrItemNotFound
	}
	if mv.Kind == domain.MovementOut && mv.Quantity > current {
		return nil, domain.ErrInsufficientStock
	}

	s.mu.Lock()
	item, ok = s.items[mv.ItemID]
	if !ok {
		// Deleted between the check and the write.
		s.mu.Unlock()
		return nil, domain.ErrItemNotFound
	}
	item.Quantity = current + mv.Signed()
	item.UpdatedAt = mv.Timestamp
	s.movements = append(s.movements, mv)
	cp := *item
	s.mu.Unlock()

	return &cp, nil
}

func (s *MemoryStore) ListMovementsByItem(ctx context.Context, itemID string) ([]domain.Movement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Movement
	for _, mv := range s.movements {
		if mv.ItemID == itemID {
			out = append(out, mv)
		}
	}
	sortMovements(out)
	return out, nil
}

func (s *MemoryStore) ListMovementsRange(ctx context.Context, from, to time.Time) ([]domain.Movement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Movement
	for _, mv := range s.movements {
		if !mv.Timestamp.Before(from) && mv.Timestamp.Before(to) {
			out = append(out, mv)
		}
	}
	sortMovements(out)
	return out, nil
}

// sortMovements orders ascending by timestamp; SliceStable keeps insertion
// order for equal timestamps.
func sortMovements(mvs []domain.Movement) {
	sort.SliceStable(mvs, func(i, j int) bool {
		return mvs[i].Timestamp.Before(mvs[j].Timestamp)
	})
}

// SeedDemo loads the demo catalog used in local mode. Every opening balance
// is backed by a matching IN movement so the ledger reconciles.
func (s *MemoryStore) SeedDemo(ctx context.Context, now time.Time) error {
	seed := []struct {
		name     string
		sku      string
		location string
		quantity int
		daysAgo  int
	}{
		{"Sabun Cair Lavender", "SBN-LAV-250", "A-01", 24, 3},
		{"Shampoo Herbal", "SHP-HRB-500", "B-12", 8, 2},
		{"Body Lotion Citrus", "BLT-CTR-200", "A-05", 4, 1},
	}

	for _, sd := range seed {
		created := now.UTC().AddDate(0, 0, -sd.daysAgo)
		item := domain.Item{
			ID:        uuid.NewString(),
			Name:      sd.name,
			SKU:       sd.sku,
			Location:  sd.location,
			CreatedAt: created,
			UpdatedAt: created,
		}
		if err := s.CreateItem(ctx, item); err != nil {
			return err
		}
		mv := domain.Movement{
			ID:        uuid.NewString(),
			ItemID:    item.ID,
			Kind:      domain.MovementIn,
			Quantity:  sd.quantity,
			Note:      "initial stock",
			Timestamp: created,
		}
		if _, err := s.ApplyMovement(ctx, mv); err != nil {
			return err
		}
	}
	return nil
}
