package durable

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/worldforge/server/pkg/models"
)

// PutActionRecord persists one action, serving both rate limiting and
// the action history endpoint.
func (c *Client) PutActionRecord(ctx context.Context, rec *models.ActionRecord) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	data, err := json.Marshal(struct {
		Updates  map[string]any `json:"updates"`
		Metadata map[string]any `json:"metadata"`
	}{rec.Updates, rec.Metadata})
	if err != nil {
		return fmt.Errorf("durable: encode action record %s: %w", rec.ID, err)
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT INTO action_records (id, player_id, room_id, session_id, action, ai_response, data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, rec.ID, rec.PlayerID, rec.RoomID, rec.SessionID, rec.Action, rec.AIResponse, data, rec.Timestamp)
	if err != nil {
		return fmt.Errorf("durable: put action record %s: %w", rec.ID, err)
	}
	return nil
}

// ListActionRecordsSince returns playerID's action records with
// timestamp >= since, newest first, used by the rate limiter's sliding
// window.
func (c *Client) ListActionRecordsSince(ctx context.Context, playerID string, since time.Time) ([]models.ActionRecord, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := c.db.QueryContext(ctx, `
		SELECT id, player_id, room_id, session_id, action, ai_response, data, created_at
		FROM action_records
		WHERE player_id = $1 AND created_at >= $2
		ORDER BY created_at DESC
	`, playerID, since)
	if err != nil {
		return nil, fmt.Errorf("durable: list action records for %s: %w", playerID, err)
	}
	defer rows.Close()

	return scanActionRecords(rows)
}

// ListRecentActionRecords returns playerID's most recent action records,
// newest first, capped at limit.
func (c *Client) ListRecentActionRecords(ctx context.Context, playerID string, limit int) ([]models.ActionRecord, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := c.db.QueryContext(ctx, `
		SELECT id, player_id, room_id, session_id, action, ai_response, data, created_at
		FROM action_records
		WHERE player_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("durable: list recent action records for %s: %w", playerID, err)
	}
	defer rows.Close()

	return scanActionRecords(rows)
}

func scanActionRecords(rows *sql.Rows) ([]models.ActionRecord, error) {
	var out []models.ActionRecord
	for rows.Next() {
		var rec models.ActionRecord
		var raw []byte
		if err := rows.Scan(&rec.ID, &rec.PlayerID, &rec.RoomID, &rec.SessionID, &rec.Action, &rec.AIResponse, &raw, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("durable: scan action record: %w", err)
		}
		var payload struct {
			Updates  map[string]any `json:"updates"`
			Metadata map[string]any `json:"metadata"`
		}
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, fmt.Errorf("durable: decode action record %s: %w", rec.ID, err)
		}
		rec.Updates = payload.Updates
		rec.Metadata = payload.Metadata
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("durable: iterate action records: %w", err)
	}
	return out, nil
}
