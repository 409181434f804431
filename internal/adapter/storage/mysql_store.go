package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/rl1809/stock-ledger/internal/core/domain"
)

// MySQLStore is the authoritative store. Items and movements live in
// separate tables; ApplyMovement commits the guarded balance update and the
// ledger insert in a single transaction, so the non-negative balance is
// enforced at write time rather than reconstructed at read time.
type MySQLStore struct {
	db *sql.DB
}

func NewMySQLStore(db *sql.DB) *MySQLStore {
	return &MySQLStore{db: db}
}

const itemColumns = "id, name, sku, quantity, location, created_at, updated_at"

func scanItem(row *sql.Row) (*domain.Item, error) {
	var item domain.Item
	err := row.Scan(&item.ID, &item.Name, &item.SKU, &item.Quantity, &item.Location, &item.CreatedAt, &item.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan item: %w", err)
	}
	return &item, nil
}

func (m *MySQLStore) GetItem(ctx context.Context, id string) (*domain.Item, error) {
	row := m.db.QueryRowContext(ctx, `
		SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	return scanItem(row)
}

func (m *MySQLStore) GetItemBySKU(ctx context.Context, sku string) (*domain.Item, error) {
	row := m.db.QueryRowContext(ctx, `
		SELECT `+itemColumns+` FROM items WHERE sku = ? LIMIT 1`, sku)
	return scanItem(row)
}

func (m *MySQLStore) ListItems(ctx context.Context) ([]domain.Item, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT `+itemColumns+` FROM items ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	var items []domain.Item
	for rows.Next() {
		var item domain.Item
		if err := rows.Scan(&item.ID, &item.Name, &item.SKU, &item.Quantity, &item.Location, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// isDuplicateKey reports MySQL error 1062, raised by the unique SKU index.
func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}

func (m *MySQLStore) CreateItem(ctx context.Context, item domain.Item) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO items (id, name, sku, quantity, location, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.Name, item.SKU, item.Quantity, item.Location,
		item.CreatedAt, item.UpdatedAt,
	)
	if isDuplicateKey(err) {
		return domain.ErrDuplicateSKU
	}
	if err != nil {
		return fmt.Errorf("insert item: %w", err)
	}
	return nil
}

func (m *MySQLStore) UpdateItem(ctx context.Context, item domain.Item) error {
	result, err := m.db.ExecContext(ctx, `
		UPDATE items
		SET name = ?, sku = ?, location = ?, updated_at = ?
		WHERE id = ?`,
		item.Name, item.SKU, item.Location, item.UpdatedAt, item.ID,
	)
	if isDuplicateKey(err) {
		return domain.ErrDuplicateSKU
	}
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrItemNotFound
	}
	return nil
}

func (m *MySQLStore) DeleteItem(ctx context.Context, id string) error {
	result, err := m.db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrItemNotFound
	}
	return nil
}

func (m *MySQLStore) ApplyMovement(ctx context.Context, mv domain.Movement) (*domain.Item, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	// Row lock serializes concurrent movements against the same item.
	var item domain.Item
	err = tx.QueryRowContext(ctx, `
		SELECT `+itemColumns+` FROM items WHERE id = ? FOR UPDATE`, mv.ItemID,
	).Scan(&item.ID, &item.Name, &item.SKU, &item.Quantity, &item.Location, &item.CreatedAt, &item.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock item: %w", err)
	}

	if mv.Kind == domain.MovementOut && mv.Quantity > item.Quantity {
		return nil, domain.ErrInsufficientStock
	}

	// The quantity guard is kept in the UPDATE as well, so the invariant
	// holds even against writers that bypass the row lock.
	result, err := tx.ExecContext(ctx, `
		UPDATE items
		SET quantity = quantity + ?, updated_at = ?
		WHERE id = ? AND quantity + ? >= 0`,
		mv.Signed(), mv.Timestamp, mv.ItemID, mv.Signed(),
	)
	if err != nil {
		return nil, fmt.Errorf("update quantity: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return nil, domain.ErrInsufficientStock
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO movements (id, item_id, kind, quantity, note, ts)
		VALUES (?, ?, ?, ?, ?, ?)`,
		mv.ID, mv.ItemID, string(mv.Kind), mv.Quantity, mv.Note, mv.Timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert movement: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	item.Quantity += mv.Signed()
	item.UpdatedAt = mv.Timestamp
	return &item, nil
}

const movementColumns = "id, item_id, kind, quantity, note, ts"

func (m *MySQLStore) ListMovementsByItem(ctx context.Context, itemID string) ([]domain.Movement, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT `+movementColumns+` FROM movements
		WHERE item_id = ? ORDER BY ts, id`, itemID)
	if err != nil {
		return nil, fmt.Errorf("query movements: %w", err)
	}
	return scanMovements(rows)
}

func (m *MySQLStore) ListMovementsRange(ctx context.Context, from, to time.Time) ([]domain.Movement, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT `+movementColumns+` FROM movements
		WHERE ts >= ? AND ts < ? ORDER BY ts, id`, from, to)
	if err != nil {
		return nil, fmt.Errorf("query movements: %w", err)
	}
	return scanMovements(rows)
}

func scanMovements(rows *sql.Rows) ([]domain.Movement, error) {
	defer rows.Close()

	var mvs []domain.Movement
	for rows.Next() {
		var mv domain.Movement
		var kind string
		if err := rows.Scan(&mv.ID, &mv.ItemID, &kind, &mv.Quantity, &mv.Note, &mv.Timestamp); err != nil {
			return nil, fmt.Errorf("scan movement: %w", err)
		}
		mv.Kind = domain.MovementKind(kind)
		mvs = append(mvs, mv)
	}
	return mvs, rows.Err()
}
