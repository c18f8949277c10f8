package durable

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/worldforge/server/pkg/models"
)

// guestUserPrefixes identifies pseudo-players whose writes must be
// silently skipped to avoid foreign-key violations.
var guestUserPrefixes = []string{"guest_", "dummy_", "system_"}

func isPseudoPlayer(userID string) bool {
	for _, prefix := range guestUserPrefixes {
		if strings.HasPrefix(userID, prefix) {
			return true
		}
	}
	return false
}

// GetPlayer loads a player by id.
func (c *Client) GetPlayer(ctx context.Context, id string) (*models.Player, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var raw []byte
	err := c.db.QueryRowContext(ctx, `SELECT data FROM players WHERE id = $1`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("durable: get player %s: %w", id, err)
	}
	var player models.Player
	if err := json.Unmarshal(raw, &player); err != nil {
		return nil, fmt.Errorf("durable: decode player %s: %w", id, err)
	}
	return &player, nil
}

// PutPlayer upserts a player row. Pseudo-players (guest/dummy/system)
// are silently accepted without writing: callers can treat them like
// any other identity without special-casing a write error.
func (c *Client) PutPlayer(ctx context.Context, player *models.Player) error {
	if isPseudoPlayer(player.UserID) {
		return nil
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	raw, err := json.Marshal(player)
	if err != nil {
		return fmt.Errorf("durable: encode player %s: %w", player.ID, err)
	}
	_, err = c.db.ExecContext(ctx, `
		INSERT INTO players (id, user_id, data, updated_at) VALUES ($1, $2, $3, now())
		ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = now()
	`, player.ID, player.UserID, raw)
	if err != nil {
		return fmt.Errorf("durable: put player %s: %w", player.ID, err)
	}
	return nil
}
