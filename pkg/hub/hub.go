// Package hub implements the Connection Hub: the per-(room,player)
// session registry, room broadcast fan-out, and the connect/disconnect
// lifecycle, transported over github.com/gorilla/websocket.
package hub

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/worldforge/server/pkg/combat"
	"github.com/worldforge/server/pkg/monster"
	"github.com/worldforge/server/pkg/quest"
	"github.com/worldforge/server/pkg/store"
	"github.com/worldforge/server/pkg/transient"
)

// typewriterChunkSize and typewriterDelay control the storyline
// typewriter effect.
const (
	typewriterChunkSize = 80
	typewriterDelay     = 300 * time.Millisecond
)

// Session is one player's persistent transport connection.
type Session struct {
	PlayerID string
	RoomID   string
	conn     *websocket.Conn
	mu       sync.Mutex
}

// Send writes a JSON message to the session, serialized against
// concurrent writers (gorilla/websocket forbids concurrent writes to the
// same connection).
func (s *Session) Send(message any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(message)
}

// Close closes the underlying connection.
func (s *Session) Close() error {
	return s.conn.Close()
}

// Hub maintains active_connections[room_id][player_id] = session and
// exposes Connect/Disconnect/BroadcastToRoom/SendToPlayer/SendPersonal.
type Hub struct {
	store    *store.Facade
	monsters *monster.Registry
	combat   *combat.Engine
	quests   *quest.Manager
	log      *slog.Logger

	mu    sync.RWMutex
	rooms map[string]map[string]*Session // room_id -> player_id -> session
}

// New builds a Hub.
func New(s *store.Facade, monsters *monster.Registry, combatEngine *combat.Engine, quests *quest.Manager) *Hub {
	return &Hub{
		store:    s,
		monsters: monsters,
		combat:   combatEngine,
		quests:   quests,
		log:      slog.With("component", "hub"),
		rooms:    map[string]map[string]*Session{},
	}
}

// Connect registers a new session, sends the complete current room
// snapshot (including aggressive/territorial summaries), and streams any
// pending quest storyline in a typewriter effect,
func (h *Hub) Connect(ctx context.Context, roomID, playerID string, conn *websocket.Conn) (*Session, error) {
	sess := &Session{PlayerID: playerID, RoomID: roomID, conn: conn}

	h.mu.Lock()
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = map[string]*Session{}
	}
	h.rooms[roomID][playerID] = sess
	h.mu.Unlock()

	if err := h.store.Transient.SetAdd(ctx, transient.RoomPlayersKey(roomID), playerID); err != nil {
		h.log.Warn("failed to add presence", "room_id", roomID, "player_id", playerID, "error", err)
	}

	room, err := h.store.Durable.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	var territorial, aggressive map[string]string
	if h.monsters != nil {
		territorial, aggressive = h.monsters.RoomSummary(roomID)
	}
	_ = sess.Send(roomSnapshotMessage(room, territorial, aggressive))

	h.BroadcastToRoom(roomID, presenceMessage(playerID, true), playerID)

	if h.quests != nil {
		player, err := h.store.Durable.GetPlayer(ctx, playerID)
		if err != nil {
			h.log.Warn("failed to load player for storyline check", "player_id", playerID, "error", err)
		} else {
			go h.streamStorylineIfPending(context.Background(), sess, player.ActiveQuestID, player.StorylineShown, playerID)
		}
	}

	return sess, nil
}

// streamStorylineIfPending streams a pending quest's storyline text to
// sess in ~80-character chunks with a ~300ms inter-chunk delay, then
// marks it shown.
func (h *Hub) streamStorylineIfPending(ctx context.Context, sess *Session, activeQuestID string, storylineShown bool, playerID string) {
	text, pending, err := h.quests.PendingStoryline(ctx, activeQuestID, storylineShown)
	if err != nil {
		h.log.Warn("failed to check pending storyline", "player_id", playerID, "error", err)
		return
	}
	if !pending {
		return
	}

	for i := 0; i < len(text); i += typewriterChunkSize {
		end := i + typewriterChunkSize
		if end > len(text) {
			end = len(text)
		}
		if err := sess.Send(storylineChunkMessage(text[i:end], end >= len(text))); err != nil {
			return
		}
		time.Sleep(typewriterDelay)
	}

	player, err := h.store.Durable.GetPlayer(ctx, playerID)
	if err != nil {
		h.log.Warn("failed to reload player to mark storyline shown", "player_id", playerID, "error", err)
		return
	}
	player.StorylineShown = true
	if err := h.store.Durable.PutPlayer(ctx, player); err != nil {
		h.log.Warn("failed to persist storyline shown", "player_id", playerID, "error", err)
	}
}

// Disconnect invokes the combat disconnect policy, removes the player
// from the room's presence set, and broadcasts a presence update.
func (h *Hub) Disconnect(ctx context.Context, roomID, playerID string) {
	h.mu.Lock()
	if sessions, ok := h.rooms[roomID]; ok {
		delete(sessions, playerID)
		if len(sessions) == 0 {
			delete(h.rooms, roomID)
		}
	}
	h.mu.Unlock()

	if h.combat != nil {
		if err := h.combat.Disconnect(ctx, playerID); err != nil {
			h.log.Warn("combat disconnect policy failed", "player_id", playerID, "error", err)
		}
	}

	if err := h.store.Transient.SetRemove(ctx, transient.RoomPlayersKey(roomID), playerID); err != nil {
		h.log.Warn("failed to remove presence", "room_id", roomID, "player_id", playerID, "error", err)
	}

	h.BroadcastToRoom(roomID, presenceMessage(playerID, false), "")
}

// Rebind moves playerID's session from oldRoomID to newRoomID following a
// movement action, keeping active_connections[room_id][player_id]
// accurate for subsequent broadcasts and presence.
func (h *Hub) Rebind(ctx context.Context, oldRoomID, newRoomID, playerID string) {
	if oldRoomID == newRoomID {
		return
	}

	h.mu.Lock()
	var sess *Session
	if sessions, ok := h.rooms[oldRoomID]; ok {
		sess = sessions[playerID]
		delete(sessions, playerID)
		if len(sessions) == 0 {
			delete(h.rooms, oldRoomID)
		}
	}
	if sess != nil {
		sess.RoomID = newRoomID
		if h.rooms[newRoomID] == nil {
			h.rooms[newRoomID] = map[string]*Session{}
		}
		h.rooms[newRoomID][playerID] = sess
	}
	h.mu.Unlock()

	if err := h.store.Transient.SetRemove(ctx, transient.RoomPlayersKey(oldRoomID), playerID); err != nil {
		h.log.Warn("failed to remove presence on rebind", "room_id", oldRoomID, "player_id", playerID, "error", err)
	}
	if err := h.store.Transient.SetAdd(ctx, transient.RoomPlayersKey(newRoomID), playerID); err != nil {
		h.log.Warn("failed to add presence on rebind", "room_id", newRoomID, "player_id", playerID, "error", err)
	}

	h.BroadcastToRoom(oldRoomID, presenceMessage(playerID, false), "")
	h.BroadcastToRoom(newRoomID, presenceMessage(playerID, true), playerID)
}

// BroadcastToRoom sends message to every session in roomID except
// exclude (if non-empty).
func (h *Hub) BroadcastToRoom(roomID string, message any, exclude string) {
	h.mu.RLock()
	sessions := make([]*Session, 0, len(h.rooms[roomID]))
	for playerID, sess := range h.rooms[roomID] {
		if playerID == exclude {
			continue
		}
		sessions = append(sessions, sess)
	}
	h.mu.RUnlock()

	for _, sess := range sessions {
		if err := sess.Send(message); err != nil {
			h.log.Warn("broadcast send failed", "player_id", sess.PlayerID, "error", err)
		}
	}
}

// SendToPlayer sends message to playerID's session within roomID.
func (h *Hub) SendToPlayer(roomID, playerID string, message any) {
	h.mu.RLock()
	sess := h.rooms[roomID][playerID]
	h.mu.RUnlock()
	if sess == nil {
		return
	}
	if err := sess.Send(message); err != nil {
		h.log.Warn("send to player failed", "player_id", playerID, "error", err)
	}
}

// SendPersonal sends message to playerID's session in whichever room it
// is currently registered under.
func (h *Hub) SendPersonal(playerID string, message any) {
	h.mu.RLock()
	var target *Session
	for _, sessions := range h.rooms {
		if sess, ok := sessions[playerID]; ok {
			target = sess
			break
		}
	}
	h.mu.RUnlock()
	if target == nil {
		return
	}
	if err := target.Send(message); err != nil {
		h.log.Warn("send personal failed", "player_id", playerID, "error", err)
	}
}
