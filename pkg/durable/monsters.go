package durable

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/worldforge/server/pkg/models"
)

// GetMonster loads a monster by id.
func (c *Client) GetMonster(ctx context.Context, id string) (*models.Monster, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var raw []byte
	err := c.db.QueryRowContext(ctx, `SELECT data FROM monsters WHERE id = $1`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("durable: get monster %s: %w", id, err)
	}
	return decodeMonster(raw, id)
}

func decodeMonster(raw []byte, id string) (*models.Monster, error) {
	var m models.Monster
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("durable: decode monster %s: %w", id, err)
	}
	// room_start never holds an aggressive monster. Enforced on every
	// read, not just at write time, since properties can be mutated out
	// from under a cached room by another process.
	if m.Location == models.StartRoomID && m.Aggressiveness == models.AggressivenessAggressive {
		m.Aggressiveness = models.AggressivenessNeutral
	}
	return &m, nil
}

// PutMonster upserts a monster row.
func (c *Client) PutMonster(ctx context.Context, m *models.Monster) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("durable: encode monster %s: %w", m.ID, err)
	}
	_, err = c.db.ExecContext(ctx, `
		INSERT INTO monsters (id, location, data) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET location = EXCLUDED.location, data = EXCLUDED.data
	`, m.ID, m.Location, raw)
	if err != nil {
		return fmt.Errorf("durable: put monster %s: %w", m.ID, err)
	}
	return nil
}

// ListMonstersByLocation returns every monster currently in a room.
func (c *Client) ListMonstersByLocation(ctx context.Context, roomID string) ([]*models.Monster, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := c.db.QueryContext(ctx, `SELECT id, data FROM monsters WHERE location = $1`, roomID)
	if err != nil {
		return nil, fmt.Errorf("durable: list monsters in %s: %w", roomID, err)
	}
	defer rows.Close()

	var monsters []*models.Monster
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("durable: scan monster: %w", err)
		}
		m, err := decodeMonster(raw, id)
		if err != nil {
			return nil, err
		}
		monsters = append(monsters, m)
	}
	return monsters, rows.Err()
}
