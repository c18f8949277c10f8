// Package monster implements the monster behavior guards: territorial
// exit-blocking, aggressive combat triggers, and the per-room
// bookkeeping that drives them.
package monster

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/worldforge/server/pkg/durable"
	"github.com/worldforge/server/pkg/models"
)

// AttemptAnyAction is the sentinel used for the aggressive-monster check
// when the player's action is not a movement.
const AttemptAnyAction = "any_action"

// Registry holds the in-memory per-room bookkeeping, rehydrated from
// room.properties.territorial_blocks on first access to each room.
type Registry struct {
	db *durable.Client
	rng *rand.Rand

	mu                sync.Mutex
	territorialBlocks map[string]map[string]models.Direction // room_id -> monster_id -> direction
	aggressiveMons    map[string]map[string]string           // room_id -> monster_id -> name
	playerLastRoom    map[string]string                      // player_id -> room_id
	hydrated          map[string]bool                        // room_id -> has been loaded from persisted properties
}

// New builds a Registry.
func New(db *durable.Client) *Registry {
	return &Registry{
		db:                db,
		rng:               rand.New(rand.NewSource(1)),
		territorialBlocks: map[string]map[string]models.Direction{},
		aggressiveMons:    map[string]map[string]string{},
		playerLastRoom:    map[string]string{},
		hydrated:          map[string]bool{},
	}
}

// LastRoom returns the room the player occupied before their current one.
func (r *Registry) LastRoom(playerID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.playerLastRoom[playerID]
	return room, ok
}

// RoomSummary returns a snapshot of the territorial blocks (monster_id ->
// direction) and aggressive registrations (monster_id -> name) currently
// tracked for roomID, for display in a room snapshot message.
func (r *Registry) RoomSummary(roomID string) (territorial map[string]string, aggressive map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if blocks, ok := r.territorialBlocks[roomID]; ok {
		territorial = make(map[string]string, len(blocks))
		for monsterID, dir := range blocks {
			territorial[monsterID] = string(dir)
		}
	}
	if mons, ok := r.aggressiveMons[roomID]; ok {
		aggressive = make(map[string]string, len(mons))
		for monsterID, name := range mons {
			aggressive[monsterID] = name
		}
	}
	return territorial, aggressive
}

// RecordEntry updates player_last_room bookkeeping and, for every alive
// monster in the room, applies the entry-time behavior:
// territorial monsters pick and persist a blocked exit, aggressive
// monsters are registered. previousRoomID is the room the player just
// left, recorded as their retreat target. flavorMessages collects
// emitted flavor text for the caller to surface to the player.
func (r *Registry) RecordEntry(ctx context.Context, room *models.Room, playerID, previousRoomID string, entryDirection models.Direction) (flavorMessages []string, err error) {
	r.hydrate(room)

	monsters, err := r.db.ListMonstersByLocation(ctx, room.ID)
	if err != nil {
		return nil, fmt.Errorf("monster: list monsters in %s: %w", room.ID, err)
	}

	r.mu.Lock()
	if previousRoomID != "" {
		r.playerLastRoom[playerID] = previousRoomID
	}
	r.mu.Unlock()

	exits := make([]models.Direction, 0, len(room.Connections))
	for d := range room.Connections {
		exits = append(exits, d)
	}

	for _, m := range monsters {
		if !m.IsAlive {
			continue
		}
		switch m.Aggressiveness {
		case models.AggressivenessTerritorial:
			blocked, ok := r.blockExit(room, m.ID, exits, entryDirection)
			if ok {
				flavorMessages = append(flavorMessages, fmt.Sprintf("%s watches the %s exit with predatory attention.", m.Name, blocked))
			}
		case models.AggressivenessAggressive:
			r.registerAggressive(room.ID, m.ID, m.Name)
			flavorMessages = append(flavorMessages, fmt.Sprintf("%s notices you and bristles with hostile intent.", m.Name))
		}
	}

	if err := r.persistTerritorialBlocks(ctx, room); err != nil {
		return flavorMessages, err
	}
	return flavorMessages, nil
}

// blockExit picks a blocked direction uniformly among exits excluding the
// opposite of the entry direction, unless already chosen for this monster.
func (r *Registry) blockExit(room *models.Room, monsterID string, exits []models.Direction, entryDirection models.Direction) (models.Direction, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if blocks, ok := r.territorialBlocks[room.ID]; ok {
		if existing, ok := blocks[monsterID]; ok {
			return existing, false // already chosen, no new flavor message
		}
	}

	retreat := entryDirection.Opposite()
	candidates := make([]models.Direction, 0, len(exits))
	for _, d := range exits {
		if d != retreat {
			candidates = append(candidates, d)
		}
	}
	if len(candidates) == 0 {
		return "", false
	}
	chosen := candidates[r.rng.Intn(len(candidates))]

	if r.territorialBlocks[room.ID] == nil {
		r.territorialBlocks[room.ID] = map[string]models.Direction{}
	}
	r.territorialBlocks[room.ID][monsterID] = chosen
	return chosen, true
}

func (r *Registry) registerAggressive(roomID, monsterID, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.aggressiveMons[roomID] == nil {
		r.aggressiveMons[roomID] = map[string]string{}
	}
	r.aggressiveMons[roomID][monsterID] = name
}

// CheckGuards implements the subsequent-action checks
// attemptedDirection is AttemptAnyAction for non-movement actions, or the
// requested movement direction. isRetreatToLastRoom must be true when the
// action is a movement whose destination is the player's last-occupied
// room (the caller resolves the destination via room.Connections, since
// only it knows the move's target); aggressive monsters never trigger on
// a genuine retreat.
func (r *Registry) CheckGuards(ctx context.Context, room *models.Room, playerID string, attemptedDirection string, isRetreatToLastRoom bool) (monsterID string, triggered bool, err error) {
	r.hydrate(room)

	r.mu.Lock()
	blocks := r.territorialBlocks[room.ID]
	if attemptedDirection != AttemptAnyAction {
		if mID, ok := findByDirection(blocks, models.Direction(attemptedDirection)); ok {
			r.mu.Unlock()
			return mID, true, nil
		}
	}

	aggressive := r.aggressiveMons[room.ID]
	r.mu.Unlock()

	if len(aggressive) > 0 && !isRetreatToLastRoom {
		for mID := range aggressive {
			return mID, true, nil
		}
	}
	return "", false, nil
}

func findByDirection(blocks map[string]models.Direction, d models.Direction) (string, bool) {
	for monsterID, blocked := range blocks {
		if blocked == d {
			return monsterID, true
		}
	}
	return "", false
}

// ClearMonster removes a monster's territorial block (on death or
// departure),
func (r *Registry) ClearMonster(ctx context.Context, room *models.Room, monsterID string) error {
	r.mu.Lock()
	if blocks, ok := r.territorialBlocks[room.ID]; ok {
		delete(blocks, monsterID)
		if len(blocks) == 0 {
			delete(r.territorialBlocks, room.ID)
		}
	}
	if mons, ok := r.aggressiveMons[room.ID]; ok {
		delete(mons, monsterID)
		if len(mons) == 0 {
			delete(r.aggressiveMons, room.ID)
		}
	}
	r.mu.Unlock()
	return r.persistTerritorialBlocks(ctx, room)
}

// ClearRoom clears all bookkeeping for an empty room.
func (r *Registry) ClearRoom(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.territorialBlocks, roomID)
	delete(r.aggressiveMons, roomID)
	delete(r.hydrated, roomID)
}

// hydrate loads a room's persisted territorial_blocks into memory once.
func (r *Registry) hydrate(room *models.Room) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.hydrated[room.ID] {
		return
	}
	r.hydrated[room.ID] = true
	persisted := room.TerritorialBlocks()
	if len(persisted) == 0 {
		return
	}
	r.territorialBlocks[room.ID] = persisted
}

func (r *Registry) persistTerritorialBlocks(ctx context.Context, room *models.Room) error {
	r.mu.Lock()
	blocks := r.territorialBlocks[room.ID]
	snapshot := make(map[string]models.Direction, len(blocks))
	for k, v := range blocks {
		snapshot[k] = v
	}
	r.mu.Unlock()

	fresh, err := r.db.GetRoom(ctx, room.ID)
	if err != nil {
		return fmt.Errorf("monster: reload room %s before persisting blocks: %w", room.ID, err)
	}
	fresh.SetTerritorialBlocks(snapshot)
	room.SetTerritorialBlocks(snapshot)
	if err := r.db.PutRoom(ctx, fresh); err != nil {
		return fmt.Errorf("monster: persist territorial blocks for %s: %w", room.ID, err)
	}
	return nil
}
