package durable

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// GetGlobalData loads a key from the free-form global_data table: world
// seed, main quest summary, starting state, and other GenerateWorldSeed
// output.
func (c *Client) GetGlobalData(ctx context.Context, key string, out any) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var raw []byte
	err := c.db.QueryRowContext(ctx, `SELECT data FROM global_data WHERE key = $1`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("durable: get global data %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("durable: decode global data %s: %w", key, err)
	}
	return nil
}

// PutGlobalData upserts a key in the global_data table.
func (c *Client) PutGlobalData(ctx context.Context, key string, value any) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("durable: encode global data %s: %w", key, err)
	}
	_, err = c.db.ExecContext(ctx, `
		INSERT INTO global_data (key, data) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET data = EXCLUDED.data
	`, key, raw)
	if err != nil {
		return fmt.Errorf("durable: put global data %s: %w", key, err)
	}
	return nil
}

// ResetWorld truncates every game table while preserving user profiles,
// which live entirely outside this schema in the external identity
// service.
func (c *Client) ResetWorld(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := c.db.ExecContext(ctx, `
		TRUNCATE rooms, players, items, monsters, npcs, coordinates, biomes,
			chunk_biomes, global_data, quests, player_quest_progress, badges,
			gold_transactions, action_records
	`)
	if err != nil {
		return fmt.Errorf("durable: reset world: %w", err)
	}
	return nil
}
