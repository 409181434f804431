package domain

import (
	"strings"
	"time"
)

// LowStockThreshold marks items that the dashboard highlights for restocking.
const LowStockThreshold = 5

type Item struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	SKU       string    `json:"sku"`
	Quantity  int       `json:"quantity"`
	Location  string    `json:"location"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (i Item) LowStock() bool {
	return i.Quantity <= LowStockThreshold
}

// ItemAttrs carries the caller-supplied fields for catalog creation.
// Quantity is the opening stock; it is recorded through the ledger, not
// written onto the item directly.
type ItemAttrs struct {
	Name     string
	SKU      string
	Location string
	Quantity int
}

func (a ItemAttrs) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return ErrInvalidItem
	}
	if strings.TrimSpace(a.SKU) == "" {
		return ErrInvalidItem
	}
	if a.Quantity < 0 {
		return ErrInvalidQuantity
	}
	return nil
}

// ItemPatch updates descriptive attributes only. There is deliberately no
// quantity field; balance changes flow through movements.
type ItemPatch struct {
	Name     *string
	SKU      *string
	Location *string
}

func (p ItemPatch) Empty() bool {
	return p.Name == nil && p.SKU == nil && p.Location == nil
}
