package durable

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/worldforge/server/pkg/models"
)

// GetItem loads an item by id.
func (c *Client) GetItem(ctx context.Context, id string) (*models.Item, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var raw []byte
	err := c.db.QueryRowContext(ctx, `SELECT data FROM items WHERE id = $1`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("durable: get item %s: %w", id, err)
	}
	var item models.Item
	if err := json.Unmarshal(raw, &item); err != nil {
		return nil, fmt.Errorf("durable: decode item %s: %w", id, err)
	}
	return &item, nil
}

// PutItem inserts an item row, enforcing the rarity/special-effects
// invariant before it ever reaches
// storage.
func (c *Client) PutItem(ctx context.Context, item *models.Item) error {
	if item.Rarity <= models.RarityUncommon && len(item.SpecialEffects) != 0 {
		return fmt.Errorf("durable: put item %s: rarity %d must have no special effects", item.ID, item.Rarity)
	}
	if item.Rarity >= models.RarityRare && len(item.SpecialEffects) == 0 {
		return fmt.Errorf("durable: put item %s: rarity %d requires at least one special effect", item.ID, item.Rarity)
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	raw, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("durable: encode item %s: %w", item.ID, err)
	}
	_, err = c.db.ExecContext(ctx, `
		INSERT INTO items (id, data, rarity) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, rarity = EXCLUDED.rarity
	`, item.ID, raw, item.Rarity)
	if err != nil {
		return fmt.Errorf("durable: put item %s: %w", item.ID, err)
	}
	return nil
}

// GetRecentHighRarityItems returns up to limit items with rarity >=
// minRarity, newest first. UUIDv4 ids are not time-ordered, so this
// orders by ctid (physical insertion order) instead of the id text.
func (c *Client) GetRecentHighRarityItems(ctx context.Context, minRarity models.Rarity, limit int) ([]*models.Item, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := c.db.QueryContext(ctx, `
		SELECT data FROM items WHERE rarity >= $1 ORDER BY ctid DESC LIMIT $2
	`, minRarity, limit)
	if err != nil {
		return nil, fmt.Errorf("durable: get recent high rarity items: %w", err)
	}
	defer rows.Close()

	var items []*models.Item
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("durable: scan item: %w", err)
		}
		var item models.Item
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, fmt.Errorf("durable: decode item: %w", err)
		}
		items = append(items, &item)
	}
	return items, rows.Err()
}
