package durable

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/worldforge/server/pkg/models"
)

// ErrNotFound is returned when a typed lookup finds no row.
var ErrNotFound = errors.New("durable: not found")

// GetRoom loads a room by id.
func (c *Client) GetRoom(ctx context.Context, id string) (*models.Room, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var raw []byte
	err := c.db.QueryRowContext(ctx, `SELECT data FROM rooms WHERE id = $1`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("durable: get room %s: %w", id, err)
	}
	var room models.Room
	if err := json.Unmarshal(raw, &room); err != nil {
		return nil, fmt.Errorf("durable: decode room %s: %w", id, err)
	}
	return &room, nil
}

// PutRoom upserts a room row.
func (c *Client) PutRoom(ctx context.Context, room *models.Room) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	raw, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("durable: encode room %s: %w", room.ID, err)
	}
	_, err = c.db.ExecContext(ctx, `
		INSERT INTO rooms (id, data, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = now()
	`, room.ID, raw)
	if err != nil {
		return fmt.Errorf("durable: put room %s: %w", room.ID, err)
	}
	return nil
}

// ErrCoordinateTaken is returned by AtomicCreateRoomAtCoordinates when a
// concurrent writer has already claimed (x,y).
var ErrCoordinateTaken = errors.New("durable: coordinate already claimed")

// AtomicCreateRoomAtCoordinates inserts room and its coordinate row in a
// single transaction. If another writer has already
// claimed (x,y), the room insert is rolled back and the existing room id
// is returned alongside ErrCoordinateTaken so the caller can load and
// return the winner,"Conflict on coordinate... not an
// error".
func (c *Client) AtomicCreateRoomAtCoordinates(ctx context.Context, room *models.Room, markDiscovered bool) (existingRoomID string, err error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("durable: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var winner string
	err = tx.QueryRowContext(ctx, `SELECT room_id FROM coordinates WHERE x = $1 AND y = $2 FOR UPDATE`, room.X, room.Y).Scan(&winner)
	if err == nil {
		return winner, ErrCoordinateTaken
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("durable: check coordinate: %w", err)
	}

	raw, err := json.Marshal(room)
	if err != nil {
		return "", fmt.Errorf("durable: encode room %s: %w", room.ID, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO rooms (id, data) VALUES ($1, $2)`, room.ID, raw); err != nil {
		return "", fmt.Errorf("durable: insert room %s: %w", room.ID, err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO coordinates (x, y, room_id, is_discovered) VALUES ($1, $2, $3, $4)
	`, room.X, room.Y, room.ID, markDiscovered); err != nil {
		return "", fmt.Errorf("durable: insert coordinate (%d,%d): %w", room.X, room.Y, err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("durable: commit room %s: %w", room.ID, err)
	}
	return "", nil
}

// GetRoomByCoordinates looks up a discovered room by grid position.
func (c *Client) GetRoomByCoordinates(ctx context.Context, x, y int) (*models.Room, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var roomID string
	err := c.db.QueryRowContext(ctx, `SELECT room_id FROM coordinates WHERE x = $1 AND y = $2`, x, y).Scan(&roomID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("durable: get coordinate (%d,%d): %w", x, y, err)
	}
	return c.GetRoom(ctx, roomID)
}

// DiscoveredCoordinate is one row of the world's discovered grid
// (GET /world/structure).
type DiscoveredCoordinate struct {
	X      int    `json:"x"`
	Y      int    `json:"y"`
	RoomID string `json:"room_id"`
}

// ListDiscoveredCoordinates returns every coordinate marked discovered,
// for the world structure overview.
func (c *Client) ListDiscoveredCoordinates(ctx context.Context) ([]DiscoveredCoordinate, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := c.db.QueryContext(ctx, `SELECT x, y, room_id FROM coordinates WHERE is_discovered = true ORDER BY x, y`)
	if err != nil {
		return nil, fmt.Errorf("durable: list discovered coordinates: %w", err)
	}
	defer rows.Close()

	var out []DiscoveredCoordinate
	for rows.Next() {
		var dc DiscoveredCoordinate
		if err := rows.Scan(&dc.X, &dc.Y, &dc.RoomID); err != nil {
			return nil, fmt.Errorf("durable: scan discovered coordinate: %w", err)
		}
		out = append(out, dc)
	}
	return out, rows.Err()
}

// IsCoordinateDiscovered reports whether (x,y) already has a room,
// consulting the durable store, which is authoritative
func (c *Client) IsCoordinateDiscovered(ctx context.Context, x, y int) (bool, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var discovered bool
	err := c.db.QueryRowContext(ctx, `SELECT is_discovered FROM coordinates WHERE x = $1 AND y = $2`, x, y).Scan(&discovered)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("durable: check coordinate (%d,%d): %w", x, y, err)
	}
	return discovered, nil
}
