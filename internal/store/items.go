package store

import (
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Simplici0/itabus/internal/pricing"
)

// ItemStore persists the services catalog. It is the catalog's change
// listener: every mutation is written here before it becomes visible.
type ItemStore struct {
	db *sql.DB
}

// NewItemStore returns an ItemStore backed by db.
func NewItemStore(db *sql.DB) *ItemStore {
	return &ItemStore{db: db}
}

// LoadAllItems returns every stored item ordered by level and id.
func (s *ItemStore) LoadAllItems() ([]pricing.Item, error) {
	rows, err := s.db.Query(`
		SELECT id, name, level, parent_id, cost, COALESCE(period, '')
		FROM items
		ORDER BY level, id
	`)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	items := make([]pricing.Item, 0)
	for rows.Next() {
		var (
			it     pricing.Item
			parent sql.NullInt64
			period string
		)
		if err := rows.Scan(&it.ID, &it.Name, &it.Level, &parent, &it.Cost, &period); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		if parent.Valid {
			it.ParentID = &parent.Int64
		}
		it.Period = pricing.Period(period)
		items = append(items, it)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}

	return items, nil
}

// ItemChanged inserts or updates the item row and raises the id
// high-water mark in the same transaction.
func (s *ItemStore) ItemChanged(it pricing.Item) error {
	var parent any
	if it.ParentID != nil {
		parent = *it.ParentID
	}
	var period any
	if it.Period != "" {
		period = string(it.Period)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin item transaction: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT INTO items (id, name, level, parent_id, cost, period)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			level = excluded.level,
			parent_id = excluded.parent_id,
			cost = excluded.cost,
			period = excluded.period,
			updated_at = CURRENT_TIMESTAMP
	`, it.ID, it.Name, it.Level, parent, nullDecimal(it.Cost), period); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("upsert item %d: %w", it.ID, err)
	}

	if _, err := tx.Exec(`
		INSERT INTO item_sequence (id, last_id) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET last_id = MAX(last_id, excluded.last_id)
	`, it.ID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("update item sequence: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit item transaction: %w", err)
	}
	return nil
}

// ItemRemoved deletes the item row. The id stays reserved.
func (s *ItemStore) ItemRemoved(id int64) error {
	if _, err := s.db.Exec(`DELETE FROM items WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete item %d: %w", id, err)
	}
	return nil
}

// LastItemID returns the highest item id ever stored, removed items included.
func (s *ItemStore) LastItemID() (int64, error) {
	var last int64
	err := s.db.QueryRow(`SELECT COALESCE(MAX(last_id), 0) FROM item_sequence`).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("query item sequence: %w", err)
	}
	return last, nil
}

func nullDecimal(d decimal.NullDecimal) any {
	if !d.Valid {
		return nil
	}
	return d.Decimal.String()
}
