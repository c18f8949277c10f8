// Package world implements the Room & World Engine (C6):
// coordinate arithmetic, atomic room creation with ring-biased monster
// and item generation, the starting-room bootstrap, movement, neighbor
// preload, and background image/3D jobs.
package world

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/worldforge/server/pkg/biome"
	"github.com/worldforge/server/pkg/config"
	"github.com/worldforge/server/pkg/durable"
	"github.com/worldforge/server/pkg/llmgateway"
	"github.com/worldforge/server/pkg/models"
	"github.com/worldforge/server/pkg/objectstorage"
	"github.com/worldforge/server/pkg/store"
)

// Broadcaster is the subset of the Connection Hub the world engine
// needs: publishing the complete room snapshot whenever a room changes
//. Declared here, implemented by pkg/hub, to avoid an
// import cycle between world and hub.
type Broadcaster interface {
	BroadcastToRoom(roomID string, message any, exclude string)
}

// Engine is the Room & World Engine.
type Engine struct {
	store   *store.Facade
	biomes  *biome.Manager
	llm     *llmgateway.Gateway
	objects *objectstorage.Store
	hub     Broadcaster
	cfg     config.WorldConfig
	rng     *rand.Rand
	log     *slog.Logger
}

// New builds an Engine.
func New(s *store.Facade, biomes *biome.Manager, llm *llmgateway.Gateway, objects *objectstorage.Store, hub Broadcaster, cfg config.WorldConfig) *Engine {
	return &Engine{
		store:   s,
		biomes:  biomes,
		llm:     llm,
		objects: objects,
		hub:     hub,
		cfg:     cfg,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		log:     slog.With("component", "world"),
	}
}

// CreateRoomOptions carries CreateRoomWithCoordinates' optional inputs.
type CreateRoomOptions struct {
	ImageURL       string
	Players        []string
	MarkDiscovered bool
}

// CreateRoomWithCoordinates creates a room at (x,y) with generated
// monsters and items, atomically claims the coordinate, and auto-
// connects to any existing adjacent rooms,
func (e *Engine) CreateRoomWithCoordinates(ctx context.Context, roomID string, x, y int, title, description, biomeName string, opts CreateRoomOptions) (*models.Room, error) {
	assignment, err := e.biomes.AssignBiome(ctx, x, y)
	if err != nil {
		return nil, fmt.Errorf("world: assign biome for (%d,%d): %w", x, y, err)
	}
	if biomeName == "" {
		biomeName = assignment.Biome.Name
	}

	room := &models.Room{
		ID:          roomID,
		X:           x,
		Y:           y,
		Title:       title,
		Description: description,
		ImageURL:    opts.ImageURL,
		ImageStatus: models.ImageStatusPending,
		Biome:       biomeName,
		Connections: map[models.Direction]string{},
		Players:     opts.Players,
		Properties:  map[string]any{},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if opts.ImageURL != "" {
		room.ImageStatus = models.ImageStatusReady
	}

	monsterIDs, err := e.GenerateMonstersForRoom(ctx, roomID, x, y)
	if err != nil {
		return nil, fmt.Errorf("world: generate monsters for %s: %w", roomID, err)
	}
	room.Monsters = monsterIDs

	itemIDs, err := e.GenerateItemsForRoom(ctx, roomID, biomeName, assignment.ThreeStarRoomID)
	if err != nil {
		return nil, fmt.Errorf("world: generate items for %s: %w", roomID, err)
	}
	room.Items = itemIDs

	existingID, err := e.store.Durable.AtomicCreateRoomAtCoordinates(ctx, room, opts.MarkDiscovered)
	if errors.Is(err, durable.ErrCoordinateTaken) {
		// A coordinate race is not an error; load and return the winner's room.
		return e.store.Durable.GetRoom(ctx, existingID)
	}
	if err != nil {
		return nil, fmt.Errorf("world: atomic create room %s: %w", roomID, err)
	}

	if err := e.autoConnectAdjacent(ctx, room); err != nil {
		return nil, fmt.Errorf("world: auto-connect room %s: %w", roomID, err)
	}

	return room, nil
}

// autoConnectAdjacent links room to any already-discovered neighbors in
// both directions,
func (e *Engine) autoConnectAdjacent(ctx context.Context, room *models.Room) error {
	for _, d := range models.HorizontalDirections {
		dx, dy := d.Delta()
		nx, ny := room.X+dx, room.Y+dy

		neighbor, err := e.store.Durable.GetRoomByCoordinates(ctx, nx, ny)
		if errors.Is(err, durable.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("get neighbor (%d,%d): %w", nx, ny, err)
		}

		room.Connections[d] = neighbor.ID
		neighbor.Connections[d.Opposite()] = room.ID
		if err := e.store.Durable.PutRoom(ctx, neighbor); err != nil {
			return fmt.Errorf("update neighbor %s connection: %w", neighbor.ID, err)
		}
	}
	if err := e.store.Durable.PutRoom(ctx, room); err != nil {
		return fmt.Errorf("persist room %s connections: %w", room.ID, err)
	}
	return nil
}

// EnsureStartingRoom guarantees room_start exists at (0,0), sanitizes
// any aggressive monster in it, and kicks off an asynchronous preload of
// its four neighbors,
func (e *Engine) EnsureStartingRoom(ctx context.Context) error {
	existing, err := e.store.Durable.GetRoom(ctx, models.StartRoomID)
	if err == nil {
		e.sanitizeAggressiveMonsters(ctx, existing)
		e.SchedulePreload(existing.ID, existing.X, existing.Y)
		return nil
	}
	if !errors.Is(err, durable.ErrNotFound) {
		return fmt.Errorf("world: get starting room: %w", err)
	}

	byCoord, err := e.store.Durable.GetRoomByCoordinates(ctx, 0, 0)
	if err == nil {
		// A room already exists at (0,0) under a different id: alias it.
		alias := byCoord.Clone()
		alias.ID = models.StartRoomID
		if err := e.store.Durable.PutRoom(ctx, alias); err != nil {
			return fmt.Errorf("world: alias starting room to %s: %w", byCoord.ID, err)
		}
		e.sanitizeAggressiveMonsters(ctx, alias)
		e.SchedulePreload(alias.ID, 0, 0)
		return nil
	}
	if !errors.Is(err, durable.ErrNotFound) {
		return fmt.Errorf("world: get room at (0,0): %w", err)
	}

	seed, err := e.llm.GenerateWorldSeed(ctx)
	if err != nil {
		return fmt.Errorf("world: generate world seed: %w", err)
	}
	if err := e.store.Durable.PutGlobalData(ctx, "world_seed", seed); err != nil {
		return fmt.Errorf("world: persist world seed: %w", err)
	}

	desc, err := e.llm.GenerateRoomDescription(ctx, "genesis", seed.StartingState)
	if err != nil {
		return fmt.Errorf("world: generate starting room description: %w", err)
	}

	room, err := e.CreateRoomWithCoordinates(ctx, models.StartRoomID, 0, 0, desc.Title, desc.Description, "", CreateRoomOptions{MarkDiscovered: true})
	if err != nil {
		return fmt.Errorf("world: create starting room: %w", err)
	}
	e.sanitizeAggressiveMonsters(ctx, room)
	e.SchedulePreload(room.ID, 0, 0)
	return nil
}

// sanitizeAggressiveMonsters rewrites any aggressive monster located in
// room_start to neutral,§8's starting-room safety
// invariant.
func (e *Engine) sanitizeAggressiveMonsters(ctx context.Context, room *models.Room) {
	monsters, err := e.store.Durable.ListMonstersByLocation(ctx, room.ID)
	if err != nil {
		e.log.Warn("failed to list starting room monsters for sanitization", "error", err)
		return
	}
	for _, m := range monsters {
		if m.Aggressiveness == models.AggressivenessAggressive {
			m.Aggressiveness = models.AggressivenessNeutral
			if err := e.store.Durable.PutMonster(ctx, m); err != nil {
				e.log.Warn("failed to sanitize aggressive monster", "monster_id", m.ID, "error", err)
			}
		}
	}
}
