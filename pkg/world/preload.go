package world

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/worldforge/server/pkg/models"
	"github.com/worldforge/server/pkg/transient"
)

// SchedulePreload fans out a fire-and-forget preload task for each of
// the four neighbors of (x,y),
// never returned: preload is best-effort speculative generation.
func (e *Engine) SchedulePreload(roomID string, x, y int) {
	for _, d := range models.HorizontalDirections {
		dx, dy := d.Delta()
		nx, ny := x+dx, y+dy
		go func(nx, ny int) {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()
			if err := e.preloadOne(ctx, nx, ny); err != nil {
				e.log.Warn("preload failed", "x", nx, "y", ny, "error", err)
			}
		}(nx, ny)
	}
}

// preloadOne runs the full lock/generate/background-job sequence for a
// single coordinate. Every early return goes
// through releasing whatever locks were acquired, emulating a
// defer-based "release on every exit path" guarantee with explicit
// cleanup since two distinct locks are taken in sequence.
func (e *Engine) preloadOne(ctx context.Context, x, y int) error {
	// Step 1: short-circuit if already discovered.
	discovered, err := e.store.Durable.IsCoordinateDiscovered(ctx, x, y)
	if err != nil {
		return fmt.Errorf("check discovery: %w", err)
	}
	if discovered {
		return nil
	}

	// Step 2: per-coordinate advisory lock.
	coordLockKey := transient.CoordLockKey(x, y)
	lockToken := uuid.NewString()
	if err := e.store.Transient.SetIfAbsent(ctx, coordLockKey, lockToken, e.cfg.PreloadLockTTL); err != nil {
		if errors.Is(err, transient.ErrLockUnavailable) {
			return nil // someone else is already generating this coordinate
		}
		return fmt.Errorf("acquire coord lock: %w", err)
	}
	defer func() { _ = e.store.Transient.Delete(context.Background(), coordLockKey) }()

	// Step 3: re-check discovery under the lock.
	discovered, err = e.store.Durable.IsCoordinateDiscovered(ctx, x, y)
	if err != nil {
		return fmt.Errorf("re-check discovery: %w", err)
	}
	if discovered {
		return nil
	}

	roomID := fmt.Sprintf("room_%d_%d", x, y)

	// Step 4: per-room generation lock.
	genLockKey := transient.RoomGenerationLockKey(roomID)
	if err := e.store.Transient.SetIfAbsent(ctx, genLockKey, lockToken, e.cfg.PreloadLockTTL); err != nil {
		if errors.Is(err, transient.ErrLockUnavailable) {
			return nil
		}
		return fmt.Errorf("acquire generation lock: %w", err)
	}
	defer func() { _ = e.store.Transient.Delete(context.Background(), genLockKey) }()

	// Step 5: mark generating.
	statusKey := transient.RoomGenerationStatusKey(roomID)
	if err := e.store.Transient.SetString(ctx, statusKey, transient.GenerationStatusGenerating, e.cfg.PreloadLockTTL); err != nil {
		return fmt.Errorf("set generating status: %w", err)
	}

	// Step 6: resolve biome, request description.
	assignment, err := e.biomes.AssignBiome(ctx, x, y)
	if err != nil {
		_ = e.store.Transient.SetString(context.Background(), statusKey, transient.GenerationStatusError, e.cfg.PreloadLockTTL)
		return fmt.Errorf("assign biome: %w", err)
	}
	desc, err := e.llm.GenerateRoomDescription(ctx, assignment.Biome.Name, fmt.Sprintf("coordinates (%d,%d)", x, y))
	if err != nil {
		_ = e.store.Transient.SetString(context.Background(), statusKey, transient.GenerationStatusError, e.cfg.PreloadLockTTL)
		return fmt.Errorf("generate room description: %w", err)
	}

	// Step 7: create the room with no image yet.
	room, err := e.CreateRoomWithCoordinates(ctx, roomID, x, y, desc.Title, desc.Description, assignment.Biome.Name, CreateRoomOptions{MarkDiscovered: true})
	if err != nil {
		_ = e.store.Transient.SetString(context.Background(), statusKey, transient.GenerationStatusError, e.cfg.PreloadLockTTL)
		return fmt.Errorf("create room: %w", err)
	}
	if err := e.store.Transient.SetString(ctx, statusKey, transient.GenerationStatusContentReady, e.cfg.PreloadLockTTL); err != nil {
		e.log.Warn("failed to mark content_ready", "room_id", room.ID, "error", err)
	}
	e.hub.BroadcastToRoom(room.ID, roomUpdateMessage(room), "")

	// Step 8: background image job, fire-and-forget; 3D model generation
	// chains off the finished image (it is image-to-3D, not text-to-3D),
	// so it only starts once an image URL exists to hand the provider.
	go e.runImageThen3DJob(room.ID, desc.ImagePrompt)

	return nil
}
