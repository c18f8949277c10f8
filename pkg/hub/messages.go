package hub

import "github.com/worldforge/server/pkg/models"

// roomSnapshotMessage is sent to a session immediately after it connects:
// the complete current room plus aggressive/territorial monster
// summaries for it.
func roomSnapshotMessage(room *models.Room, territorialBlocks, aggressiveMonsters map[string]string) any {
	return map[string]any{
		"type":                "room_snapshot",
		"room":                room.Clone(),
		"territorial_blocks":  territorialBlocks,
		"aggressive_monsters": aggressiveMonsters,
	}
}

// presenceMessage announces a player joining or leaving a room.
func presenceMessage(playerID string, joined bool) any {
	return map[string]any{
		"type":      "presence",
		"player_id": playerID,
		"joined":    joined,
	}
}

// storylineChunkMessage is one piece of a quest storyline's typewriter
// stream.
func storylineChunkMessage(chunk string, final bool) any {
	return map[string]any{
		"type":  "quest_storyline",
		"chunk": chunk,
		"final": final,
	}
}
