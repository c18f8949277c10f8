package llmgateway

// ChunkType discriminates a streamed Chunk's payload.
type ChunkType int

// Stream chunk kinds produced by StreamAction.
const (
	ChunkTypeText ChunkType = iota
	ChunkTypeEnvelope
	ChunkTypeError
)

// Chunk is a closed interface over the values a narration stream can
// yield: text tokens, followed by exactly one terminal envelope or
// error.
type Chunk interface {
	chunkType() ChunkType
}

// TextChunk is one narrative token/fragment.
type TextChunk struct {
	Content string
}

func (TextChunk) chunkType() ChunkType { return ChunkTypeText }

// EnvelopeChunk is the single terminal structured record a stream ends
// with: the narrative response plus the parsed updates envelope.
type EnvelopeChunk struct {
	Response string
	Updates  *UpdatesEnvelope
}

func (EnvelopeChunk) chunkType() ChunkType { return ChunkTypeEnvelope }

// ErrorChunk terminates a stream when the upstream stream fails, or when
// the tail could not be parsed into an envelope after it closed.
type ErrorChunk struct {
	Err error
}

func (ErrorChunk) chunkType() ChunkType { return ChunkTypeError }

// UpdatesEnvelope is the closed schema for the `updates` field of a
// terminal action record: parseActionTail rejects fields not declared
// here, every sub-object is optional, and the schema carries no version
// marker.
type UpdatesEnvelope struct {
	Player         *PlayerUpdate         `json:"player,omitempty"`
	Room           *RoomUpdate           `json:"room,omitempty"`
	NPCs           []NPCUpdate           `json:"npcs,omitempty"`
	RoomGeneration *RoomGenerationUpdate `json:"room_generation,omitempty"`
}

// PlayerUpdate carries optional field-level changes to the acting
// player. Direction is handled specially by the Action Pipeline, not
// applied as a plain field.
type PlayerUpdate struct {
	Direction      string         `json:"direction,omitempty"`
	Gold           *int           `json:"gold,omitempty"`
	Health         *int           `json:"health,omitempty"`
	InventoryAdd   []string       `json:"inventory_add,omitempty"`
	InventoryDrop  []string       `json:"inventory_drop,omitempty"`
	MemoryAppend   string         `json:"memory_append,omitempty"`
}

// RoomUpdate carries optional field-level changes to the current room.
type RoomUpdate struct {
	Description string `json:"description,omitempty"`
}

// NPCUpdate carries a single NPC's dialogue/memory delta.
type NPCUpdate struct {
	NPCID          string `json:"npc_id"`
	DialogueAppend string `json:"dialogue_append,omitempty"`
	MemoryAppend   string `json:"memory_append,omitempty"`
}

// RoomGenerationUpdate signals that the action caused a new room/monster
// to be seeded (rare; most generation goes through the preload path).
type RoomGenerationUpdate struct {
	TriggerPreload bool `json:"trigger_preload,omitempty"`
}
