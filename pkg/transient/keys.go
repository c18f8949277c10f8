package transient

import "fmt"

// Key namespaces, "Persisted state layout" exactly.

// RoomPlayersKey is the presence set for a room.
func RoomPlayersKey(roomID string) string { return fmt.Sprintf("room:%s:players", roomID) }

// RoomGenerationStatusKey tracks a room's background-generation lifecycle.
func RoomGenerationStatusKey(roomID string) string { return fmt.Sprintf("room:%s:generation_status", roomID) }

// RoomGenerationLockKey is the per-room advisory lock gating generation.
func RoomGenerationLockKey(roomID string) string { return fmt.Sprintf("room:%s:generation_lock", roomID) }

// CoordLockKey is the per-coordinate advisory lock gating room creation.
func CoordLockKey(x, y int) string { return fmt.Sprintf("coord_lock:%d:%d", x, y) }

// ActiveDuelKey mirrors an in-process duel for disconnect recovery.
func ActiveDuelKey(duelID string) string { return fmt.Sprintf("active_duel:%s", duelID) }

// ActionsHistoryKey names a per-player action log list capped at 500
// entries. The rate limiter does not read it (it counts durable action
// records), and nothing in this repository writes it.
func ActionsHistoryKey(playerID string) string { return fmt.Sprintf("actions:player:%s", playerID) }

// MessagesHistoryKey is the trimmed-to-1000 chat log for a room; no TTL
// is set on it.
func MessagesHistoryKey(roomID string) string { return fmt.Sprintf("messages:player:%s", roomID) }

// SessionKey is the 7-day-TTL session hash record.
func SessionKey(sessionID string) string { return fmt.Sprintf("session:%s", sessionID) }

// Generation status values stored at RoomGenerationStatusKey.
const (
	GenerationStatusGenerating  = "generating"
	GenerationStatusContentReady = "content_ready"
	GenerationStatusReady        = "ready"
	GenerationStatusError        = "error"
)

// List size and TTL limits for capped history lists.
const (
	ActionsHistoryMaxLen    = 500
	MessagesHistoryMaxLen   = 1000
	RateLimitLogRetention   = 90 // days
)
