package domain

import (
	"errors"
	"fmt"
)

var (
	ErrItemNotFound      = errors.New("item not found")
	ErrInvalidItem       = errors.New("invalid item attributes")
	ErrInvalidQuantity   = errors.New("invalid quantity")
	ErrInvalidKind       = errors.New("invalid movement kind")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrDuplicateSKU      = errors.New("duplicate sku")
	ErrDuplicateRequest  = errors.New("duplicate request")
	ErrUnauthenticated   = errors.New("unauthenticated")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrUnavailable       = errors.New("store unavailable")
)

// InconsistencyError reports a mismatch between an item's stored balance and
// the signed sum of its movements. It is surfaced for manual reconciliation,
// never repaired in place.
type InconsistencyError struct {
	ItemID  string
	Stored  int
	Derived int
}

func (e *InconsistencyError) Error() string {
	return fmt.Sprintf("item %s: stored quantity %d does not match ledger-derived %d", e.ItemID, e.Stored, e.Derived)
}
