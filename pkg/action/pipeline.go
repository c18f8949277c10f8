package action

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/worldforge/server/pkg/combat"
	"github.com/worldforge/server/pkg/config"
	"github.com/worldforge/server/pkg/llmgateway"
	"github.com/worldforge/server/pkg/models"
	"github.com/worldforge/server/pkg/monster"
	"github.com/worldforge/server/pkg/quest"
	"github.com/worldforge/server/pkg/store"
	"github.com/worldforge/server/pkg/world"
)

// Hub is the subset of the Connection Hub the action pipeline needs:
// broadcasting room changes and rebinding a session after movement.
// Declared locally to avoid an import cycle with pkg/hub.
type Hub interface {
	BroadcastToRoom(roomID string, message any, exclude string)
	SendPersonal(playerID string, message any)
	Rebind(ctx context.Context, oldRoomID, newRoomID, playerID string)
}

// Request is one player action to process.
type Request struct {
	PlayerID string
	RoomID   string
	Action   string
}

// Pipeline is the Action Pipeline (C7).
type Pipeline struct {
	store    *store.Facade
	llm      *llmgateway.Gateway
	world    *world.Engine
	monsters *monster.Registry
	combat   *combat.Engine
	quests   *quest.Manager
	hub      Hub
	limiter  *Limiter
	log      *slog.Logger
}

// New builds a Pipeline.
func New(s *store.Facade, llm *llmgateway.Gateway, w *world.Engine, monsters *monster.Registry, combatEngine *combat.Engine, quests *quest.Manager, hub Hub, rateLimit config.RateLimitConfig) *Pipeline {
	return &Pipeline{
		store:    s,
		llm:      llm,
		world:    w,
		monsters: monsters,
		combat:   combatEngine,
		quests:   quests,
		hub:      hub,
		limiter:  NewLimiter(s.Durable, rateLimit),
		log:      slog.With("component", "action"),
	}
}

// Limiter exposes the pipeline's rate limiter for the status/config
// HTTP endpoints.
func (p *Pipeline) Limiter() *Limiter {
	return p.limiter
}

// Process runs the full pipeline for req and streams the result as a
// sequence of Chunks: zero or more NarrativeChunk, then exactly one
// terminal ResultChunk, DeniedChunk, or ErrorChunk.
func (p *Pipeline) Process(ctx context.Context, req Request) <-chan Chunk {
	out := make(chan Chunk, 32)
	go func() {
		defer close(out)
		p.run(ctx, req, out)
	}()
	return out
}

func (p *Pipeline) run(ctx context.Context, req Request, out chan<- Chunk) {
	// Step 1: rate limiter.
	allowed, info, err := p.limiter.Check(ctx, req.PlayerID)
	if err != nil {
		out <- ErrorChunk{Err: fmt.Errorf("action: rate limit check: %w", err)}
		return
	}
	if !allowed {
		out <- DeniedChunk{RateLimitInfo: info, Message: "rate_limit_exceeded"}
		return
	}

	// Step 2: load context.
	loaded, err := p.loadContext(ctx, req)
	if err != nil {
		out <- ErrorChunk{Err: err}
		return
	}

	// Step 2.5: equipment-capability pre-check against the static
	// basic/equipment action table, before spending an LLM call.
	if ok, suggestion, err := p.checkEquipment(ctx, loaded.Player, req.Action); err != nil {
		out <- ErrorChunk{Err: fmt.Errorf("action: check equipment: %w", err)}
		return
	} else if !ok {
		p.recordAction(ctx, req, suggestion, nil)
		out <- DeniedChunk{Message: "equipment_required", Suggestion: suggestion}
		return
	}

	// Step 3: monster behavior guards.
	if triggered, response, err := p.checkGuards(ctx, loaded, req); err != nil {
		out <- ErrorChunk{Err: err}
		return
	} else if triggered {
		p.recordAction(ctx, req, response, nil)
		out <- ResultChunk{Response: response}
		return
	}

	// Voluntary attack on a monster present in the room.
	if len(loaded.Monsters) > 0 {
		duel, err := p.combat.StartMonsterDuel(ctx, req.RoomID, req.PlayerID, req.Action, loaded.Monsters)
		if err != nil {
			p.log.Warn("attack classification failed", "player_id", req.PlayerID, "error", err)
		} else if duel != nil {
			response := "Your attack provokes a duel!"
			p.recordAction(ctx, req, response, nil)
			out <- ResultChunk{Response: response}
			return
		}
	}

	// Step 4: stream the action through the LLM gateway.
	prompt := buildPrompt(loaded, req.Action)
	var narrative string
	var updates *llmgateway.UpdatesEnvelope
	for chunk := range p.llm.StreamPlayerAction(ctx, prompt) {
		switch c := chunk.(type) {
		case llmgateway.TextChunk:
			out <- NarrativeChunk{Content: c.Content}
		case llmgateway.EnvelopeChunk:
			narrative = c.Response
			updates = c.Updates
		case llmgateway.ErrorChunk:
			out <- ErrorChunk{Err: c.Err}
			return
		}
	}

	// Step 5: apply updates.
	finalRoomID := req.RoomID
	if updates != nil {
		finalRoomID, err = p.applyUpdates(ctx, loaded, updates, req.Action)
		if err != nil {
			out <- ErrorChunk{Err: err}
			return
		}
	}

	var updatesMap map[string]any
	if updates != nil {
		updatesMap = map[string]any{}
		if updates.Player != nil {
			updatesMap["player"] = updates.Player
		}
		if updates.Room != nil {
			updatesMap["room"] = updates.Room
		}
		if len(updates.NPCs) > 0 {
			updatesMap["npcs"] = updates.NPCs
		}
		if updates.RoomGeneration != nil {
			updatesMap["room_generation"] = updates.RoomGeneration
		}
	}

	p.recordAction(ctx, Request{PlayerID: req.PlayerID, RoomID: finalRoomID, Action: req.Action}, narrative, updatesMap)

	// Quest Manager boundary, called after every action.
	var progress *quest.ProgressResult
	actionType := "action"
	if updates != nil && updates.Player != nil && updates.Player.Direction != "" {
		actionType = "movement"
	}
	if p.quests != nil {
		player, perr := p.store.Durable.GetPlayer(ctx, req.PlayerID)
		if perr == nil {
			progress, err = p.quests.ProcessAction(ctx, req.PlayerID, player.ActiveQuestID, req.Action, actionType)
			if err != nil {
				p.log.Warn("quest processing failed", "player_id", req.PlayerID, "error", err)
			}
		}
	}

	out <- ResultChunk{Response: narrative, Updates: updatesMap, Quest: progress}
}

// checkGuards evaluates territorial and aggressive monster guards
// against the attempted action, starting a duel if one triggers.
func (p *Pipeline) checkGuards(ctx context.Context, loaded *loadedContext, req Request) (triggered bool, response string, err error) {
	attemptedDirection := monster.AttemptAnyAction
	isRetreat := false

	if d, ok := detectMovement(req.Action); ok {
		attemptedDirection = string(d)
		if lastRoom, ok := p.monsters.LastRoom(req.PlayerID); ok {
			if dest, ok := loaded.Room.Connections[d]; ok && dest == lastRoom {
				isRetreat = true
			}
		}
	}

	monsterID, triggered, err := p.monsters.CheckGuards(ctx, loaded.Room, req.PlayerID, attemptedDirection, isRetreat)
	if err != nil {
		return false, "", fmt.Errorf("action: check monster guards: %w", err)
	}
	if !triggered {
		return false, "", nil
	}

	m, err := p.store.Durable.GetMonster(ctx, monsterID)
	if err != nil {
		return false, "", fmt.Errorf("action: load guarding monster %s: %w", monsterID, err)
	}
	if _, err := p.combat.StartMonsterDuelWithMonster(ctx, req.RoomID, req.PlayerID, m); err != nil {
		return false, "", fmt.Errorf("action: start monster duel: %w", err)
	}
	return true, fmt.Sprintf("%s blocks your way, forcing a confrontation!", m.Name), nil
}

// applyUpdates applies player fields other than direction, then
// movement if a direction was given, then persistence. Returns the
// player's room id after the update.
func (p *Pipeline) applyUpdates(ctx context.Context, loaded *loadedContext, updates *llmgateway.UpdatesEnvelope, actionText string) (string, error) {
	player := loaded.Player
	roomID := loaded.Room.ID

	if pu := updates.Player; pu != nil {
		if pu.Gold != nil {
			player.Gold += *pu.Gold
		}
		if pu.Health != nil {
			player.Health += *pu.Health
		}
		player.Inventory = applyInventoryDelta(player.Inventory, pu.InventoryAdd, pu.InventoryDrop)
		if pu.MemoryAppend != "" {
			player.MemoryLog = append(player.MemoryLog, pu.MemoryAppend)
		}

		if pu.Direction != "" {
			d := models.Direction(pu.Direction)
			newRoom, err := p.world.Move(ctx, loaded.Room.X, loaded.Room.Y, d)
			if err != nil {
				return "", fmt.Errorf("action: resolve movement: %w", err)
			}
			flavor, err := p.monsters.RecordEntry(ctx, newRoom, player.ID, loaded.Room.ID, d)
			if err != nil {
				p.log.Warn("failed to record monster entry", "room_id", newRoom.ID, "error", err)
			}
			for _, f := range flavor {
				p.hub.BroadcastToRoom(newRoom.ID, map[string]any{"type": "room_update_flavor", "message": f}, "")
			}
			player.RejoinImmunity = false
			player.CurrentRoom = newRoom.ID
			roomID = newRoom.ID
			p.hub.Rebind(ctx, loaded.Room.ID, newRoom.ID, player.ID)
			p.hub.SendPersonal(player.ID, map[string]any{"type": "room_update", "room": newRoom.Clone()})
		}
	}

	if ru := updates.Room; ru != nil && ru.Description != "" && roomID == loaded.Room.ID {
		loaded.Room.Description = ru.Description
		if err := p.store.Durable.PutRoom(ctx, loaded.Room); err != nil {
			p.log.Warn("failed to persist room description update", "room_id", loaded.Room.ID, "error", err)
		} else {
			p.hub.BroadcastToRoom(loaded.Room.ID, map[string]any{"type": "room_update", "room": loaded.Room.Clone()}, "")
		}
	}

	for _, nu := range updates.NPCs {
		if nu.NPCID == "" || (nu.DialogueAppend == "" && nu.MemoryAppend == "") {
			continue
		}
		n, err := p.store.Durable.GetNPC(ctx, nu.NPCID)
		if err != nil {
			p.log.Warn("failed to load npc for update", "npc_id", nu.NPCID, "error", err)
			continue
		}
		if nu.DialogueAppend != "" {
			n.DialogueHistory = append(n.DialogueHistory, nu.DialogueAppend)
		}
		if nu.MemoryAppend != "" {
			n.MemoryLog = append(n.MemoryLog, nu.MemoryAppend)
		}
		if err := p.store.Durable.PutNPC(ctx, n); err != nil {
			p.log.Warn("failed to persist npc update", "npc_id", nu.NPCID, "error", err)
		}
	}

	player.LastActionAt = time.Now()
	player.LastActionText = actionText
	if err := p.store.Durable.PutPlayer(ctx, player); err != nil {
		return "", fmt.Errorf("action: persist player %s: %w", player.ID, err)
	}
	return roomID, nil
}

func applyInventoryDelta(inv, add, drop []string) []string {
	for _, item := range drop {
		inv = removeFirst(inv, item)
	}
	return append(inv, add...)
}

func removeFirst(items []string, target string) []string {
	for i, item := range items {
		if item == target {
			return append(items[:i], items[i+1:]...)
		}
	}
	return items
}

func (p *Pipeline) recordAction(ctx context.Context, req Request, response string, updates map[string]any) {
	rec := &models.ActionRecord{
		ID:         uuid.NewString(),
		PlayerID:   req.PlayerID,
		RoomID:     req.RoomID,
		Action:     req.Action,
		AIResponse: response,
		Timestamp:  time.Now(),
		SessionID:  fmt.Sprintf("session_%s_%s", req.PlayerID, time.Now().Format("20060102")),
		Updates:    updates,
	}
	if err := p.store.Durable.PutActionRecord(ctx, rec); err != nil {
		p.log.Warn("failed to record action", "player_id", req.PlayerID, "error", err)
	}
}

func (p *Pipeline) loadContext(ctx context.Context, req Request) (*loadedContext, error) {
	player, err := p.store.Durable.GetPlayer(ctx, req.PlayerID)
	if err != nil {
		return nil, fmt.Errorf("action: load player %s: %w", req.PlayerID, err)
	}
	room, err := p.store.Durable.GetRoom(ctx, req.RoomID)
	if err != nil {
		return nil, fmt.Errorf("action: load room %s: %w", req.RoomID, err)
	}
	npcs, err := p.store.Durable.ListNPCsByLocation(ctx, req.RoomID)
	if err != nil {
		return nil, fmt.Errorf("action: list npcs in %s: %w", req.RoomID, err)
	}
	monsters, err := p.store.Durable.ListMonstersByLocation(ctx, req.RoomID)
	if err != nil {
		return nil, fmt.Errorf("action: list monsters in %s: %w", req.RoomID, err)
	}
	chat, err := RecentChatMessages(ctx, p.store.Transient, req.RoomID, 20)
	if err != nil {
		p.log.Warn("failed to load chat history", "room_id", req.RoomID, "error", err)
	}

	return &loadedContext{Player: player, Room: room, NPCs: npcs, Monsters: monsters, Chat: chat}, nil
}
