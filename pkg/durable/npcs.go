package durable

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/worldforge/server/pkg/models"
)

// GetNPC loads an NPC by id.
func (c *Client) GetNPC(ctx context.Context, id string) (*models.NPC, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var raw []byte
	err := c.db.QueryRowContext(ctx, `SELECT data FROM npcs WHERE id = $1`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("durable: get npc %s: %w", id, err)
	}
	var n models.NPC
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, fmt.Errorf("durable: decode npc %s: %w", id, err)
	}
	return &n, nil
}

// PutNPC upserts an NPC row.
func (c *Client) PutNPC(ctx context.Context, n *models.NPC) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	raw, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("durable: encode npc %s: %w", n.ID, err)
	}
	_, err = c.db.ExecContext(ctx, `
		INSERT INTO npcs (id, location, data) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET location = EXCLUDED.location, data = EXCLUDED.data
	`, n.ID, n.Location, raw)
	if err != nil {
		return fmt.Errorf("durable: put npc %s: %w", n.ID, err)
	}
	return nil
}

// ListNPCsByLocation returns every NPC in a room.
func (c *Client) ListNPCsByLocation(ctx context.Context, roomID string) ([]*models.NPC, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := c.db.QueryContext(ctx, `SELECT data FROM npcs WHERE location = $1`, roomID)
	if err != nil {
		return nil, fmt.Errorf("durable: list npcs in %s: %w", roomID, err)
	}
	defer rows.Close()

	var npcs []*models.NPC
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("durable: scan npc: %w", err)
		}
		var n models.NPC
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, fmt.Errorf("durable: decode npc: %w", err)
		}
		npcs = append(npcs, &n)
	}
	return npcs, rows.Err()
}
