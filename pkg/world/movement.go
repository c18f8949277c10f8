package world

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/worldforge/server/pkg/models"
	"github.com/worldforge/server/pkg/transient"
)

const movementPollInterval = 500 * time.Millisecond

// Move resolves the room reached by moving from (x,y) in direction d,
//: load-if-discovered, else poll generation status
// for up to the configured wait limit, else fall back to a placeholder.
func (e *Engine) Move(ctx context.Context, fromX, fromY int, d models.Direction) (*models.Room, error) {
	dx, dy := d.Delta()
	tx, ty := fromX+dx, fromY+dy

	discovered, err := e.store.Durable.IsCoordinateDiscovered(ctx, tx, ty)
	if err != nil {
		return nil, fmt.Errorf("world: check discovery (%d,%d): %w", tx, ty, err)
	}
	if discovered {
		room, err := e.store.Durable.GetRoomByCoordinates(ctx, tx, ty)
		if err != nil {
			return nil, fmt.Errorf("world: load discovered room (%d,%d): %w", tx, ty, err)
		}
		e.SchedulePreload(room.ID, room.X, room.Y)
		return room, nil
	}

	room, err := e.waitForGeneration(ctx, tx, ty)
	if err == nil {
		e.SchedulePreload(room.ID, room.X, room.Y)
		return room, nil
	}
	if !errors.Is(err, errGenerationTimedOut) {
		return nil, err
	}

	placeholder, err := e.createPlaceholderRoom(ctx, tx, ty, d)
	if err != nil {
		return nil, fmt.Errorf("world: create placeholder room (%d,%d): %w", tx, ty, err)
	}
	e.SchedulePreload(placeholder.ID, placeholder.X, placeholder.Y)
	return placeholder, nil
}

var errGenerationTimedOut = errors.New("world: generation wait timed out")

// waitForGeneration polls the transient generation-status key for the
// room at (x,y) until it reaches content_ready/ready or the configured
// deadline elapses.
func (e *Engine) waitForGeneration(ctx context.Context, x, y int) (*models.Room, error) {
	deadline := time.Now().Add(e.cfg.GenerationWaitLimit)
	ticker := time.NewTicker(movementPollInterval)
	defer ticker.Stop()

	for {
		discovered, err := e.store.Durable.IsCoordinateDiscovered(ctx, x, y)
		if err != nil {
			return nil, fmt.Errorf("check discovery while waiting: %w", err)
		}
		if discovered {
			return e.store.Durable.GetRoomByCoordinates(ctx, x, y)
		}

		if time.Now().After(deadline) {
			return nil, errGenerationTimedOut
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// createPlaceholderRoom builds a minimal "Unexplored Area" room when
// background generation did not finish within the deadline.
func (e *Engine) createPlaceholderRoom(ctx context.Context, x, y int, fromDirection models.Direction) (*models.Room, error) {
	roomID := fmt.Sprintf("room_%d_%d", x, y)
	title := fmt.Sprintf("Unexplored Area (%s)", fromDirection)
	description := "The area ahead is shrouded and indistinct; its details have not yet settled."

	room, err := e.CreateRoomWithCoordinates(ctx, roomID, x, y, title, description, "", CreateRoomOptions{MarkDiscovered: true})
	if err != nil {
		return nil, err
	}
	_ = e.store.Transient.SetString(ctx, transient.RoomGenerationStatusKey(roomID), transient.GenerationStatusReady, 0)
	return room, nil
}
