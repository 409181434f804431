package domain

import "time"

type MovementKind string

const (
	MovementIn  MovementKind = "in"
	MovementOut MovementKind = "out"
)

func (k MovementKind) Valid() bool {
	return k == MovementIn || k == MovementOut
}

// Movement is a single recorded stock change. Movements are immutable once
// appended; the ledger exposes no update or delete.
type Movement struct {
	ID        string       `json:"id"`
	ItemID    string       `json:"item_id"`
	Kind      MovementKind `json:"type"`
	Quantity  int          `json:"quantity"`
	Note      string       `json:"note,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// Signed returns the movement's contribution to the item balance.
func (m Movement) Signed() int {
	if m.Kind == MovementIn {
		return m.Quantity
	}
	return -m.Quantity
}
