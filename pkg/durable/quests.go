package durable

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/worldforge/server/pkg/models"
)

// Quest is a single storyline objective, ordered by OrderIndex for
// auto-advance.
type Quest struct {
	ID         string
	OrderIndex int
	Data       models.Quest
}

// GetQuest loads a quest definition by id.
func (c *Client) GetQuest(ctx context.Context, id string) (*Quest, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var raw []byte
	var q Quest
	err := c.db.QueryRowContext(ctx, `SELECT id, order_index, data FROM quests WHERE id = $1`, id).Scan(&q.ID, &q.OrderIndex, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("durable: get quest %s: %w", id, err)
	}
	if err := json.Unmarshal(raw, &q.Data); err != nil {
		return nil, fmt.Errorf("durable: decode quest %s: %w", id, err)
	}
	return &q, nil
}

// GetNextQuestByOrder returns the quest with the smallest OrderIndex
// strictly greater than after, used for quest auto-advance.
func (c *Client) GetNextQuestByOrder(ctx context.Context, after int) (*Quest, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var q Quest
	var raw []byte
	err := c.db.QueryRowContext(ctx, `
		SELECT id, order_index, data FROM quests WHERE order_index > $1 ORDER BY order_index ASC LIMIT 1
	`, after).Scan(&q.ID, &q.OrderIndex, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("durable: get next quest after %d: %w", after, err)
	}
	if err := json.Unmarshal(raw, &q.Data); err != nil {
		return nil, fmt.Errorf("durable: decode quest %s: %w", q.ID, err)
	}
	return &q, nil
}

// PutQuest upserts a quest definition.
func (c *Client) PutQuest(ctx context.Context, q *Quest) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	raw, err := json.Marshal(q.Data)
	if err != nil {
		return fmt.Errorf("durable: encode quest %s: %w", q.ID, err)
	}
	_, err = c.db.ExecContext(ctx, `
		INSERT INTO quests (id, order_index, data) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET order_index = EXCLUDED.order_index, data = EXCLUDED.data
	`, q.ID, q.OrderIndex, raw)
	if err != nil {
		return fmt.Errorf("durable: put quest %s: %w", q.ID, err)
	}
	return nil
}

// GetPlayerQuestProgress loads a player's progress on a quest, or a
// fresh zero-value record if none exists yet.
func (c *Client) GetPlayerQuestProgress(ctx context.Context, playerID, questID string) (objectiveIndex int, completed bool, err error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	err = c.db.QueryRowContext(ctx, `
		SELECT objective_index, completed FROM player_quest_progress WHERE player_id = $1 AND quest_id = $2
	`, playerID, questID).Scan(&objectiveIndex, &completed)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("durable: get quest progress %s/%s: %w", playerID, questID, err)
	}
	return objectiveIndex, completed, nil
}

// PutPlayerQuestProgress upserts a player's progress on a quest.
func (c *Client) PutPlayerQuestProgress(ctx context.Context, playerID, questID string, objectiveIndex int, completed bool) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := c.db.ExecContext(ctx, `
		INSERT INTO player_quest_progress (player_id, quest_id, objective_index, completed)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (player_id, quest_id) DO UPDATE SET objective_index = EXCLUDED.objective_index, completed = EXCLUDED.completed
	`, playerID, questID, objectiveIndex, completed)
	if err != nil {
		return fmt.Errorf("durable: put quest progress %s/%s: %w", playerID, questID, err)
	}
	return nil
}

// AwardBadge records a badge for a player, at most once per (player,
// badge) pair. Returns awarded=false if the player
// already holds it.
func (c *Client) AwardBadge(ctx context.Context, playerID, badgeID string) (awarded bool, err error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	res, err := c.db.ExecContext(ctx, `
		INSERT INTO badges (player_id, badge_id) VALUES ($1, $2) ON CONFLICT DO NOTHING
	`, playerID, badgeID)
	if err != nil {
		return false, fmt.Errorf("durable: award badge %s to %s: %w", badgeID, playerID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("durable: award badge rows affected: %w", err)
	}
	return n > 0, nil
}

// RecordGoldTransaction persists a gold award/deduction under the
// caller-supplied transaction id.
func (c *Client) RecordGoldTransaction(ctx context.Context, id, playerID string, amount int, reason string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := c.db.ExecContext(ctx, `
		INSERT INTO gold_transactions (id, player_id, amount, reason) VALUES ($1, $2, $3, $4)
	`, id, playerID, amount, reason)
	if err != nil {
		return fmt.Errorf("durable: record gold transaction for %s: %w", playerID, err)
	}
	return nil
}
