package models

import "time"

// Player is a participant controlled by a human over a persistent
// connection.
type Player struct {
	ID              string
	UserID          string
	Name            string
	CurrentRoom     string
	Inventory       []string
	QuestProgress   map[string]any
	MemoryLog       []string
	ActiveQuestID   string
	StorylineShown  bool
	Gold            int
	Health          int
	RejoinImmunity  bool
	LastActionAt    time.Time
	LastActionText  string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Rarity is an item's 1-4 star rating. Rarity gates special-effects
// presence.
type Rarity int

// Valid item rarities.
const (
	RarityCommon    Rarity = 1
	RarityUncommon  Rarity = 2
	RarityRare      Rarity = 3
	RarityLegendary Rarity = 4
)

// Item is a piece of equipment or loot.
type Item struct {
	ID              string
	Name            string
	Description     string
	Rarity          Rarity
	Capabilities    []string
	SpecialEffects  []string
	CreatedAt       time.Time
}

// Aggressiveness classifies how a monster reacts to a player's presence.
type Aggressiveness string

// Monster aggressiveness policies.
const (
	AggressivenessPassive     Aggressiveness = "passive"
	AggressivenessAggressive  Aggressiveness = "aggressive"
	AggressivenessNeutral     Aggressiveness = "neutral"
	AggressivenessTerritorial Aggressiveness = "territorial"
)

// Intelligence classifies a monster's cognitive tier, used as an LLM
// prompt hint and a ring-biased attribute axis.
type Intelligence string

// Monster intelligence tiers.
const (
	IntelligenceHuman     Intelligence = "human"
	IntelligenceSubhuman  Intelligence = "subhuman"
	IntelligenceAnimal    Intelligence = "animal"
	IntelligenceOmnipotent Intelligence = "omnipotent"
)

// Size classifies a monster's body size, which determines its health and
// duel vital-meter scale.
type Size string

// Monster sizes, ordered roughly small to large.
const (
	SizeInsect    Size = "insect"
	SizeChicken   Size = "chicken"
	SizeHuman     Size = "human"
	SizeHorse     Size = "horse"
	SizeDinosaur  Size = "dinosaur"
	SizeColossal  Size = "colossal"
)

// SizeMultiplier is the health/vital scaling table keyed by monster size.
var SizeMultiplier = map[Size]float64{
	SizeInsect:   0.4,
	SizeChicken:  0.6,
	SizeHuman:    1.0,
	SizeHorse:    1.4,
	SizeDinosaur: 1.8,
	SizeColossal: 2.4,
}

// Monster is a hostile or neutral creature occupying a room.
type Monster struct {
	ID             string
	Name           string
	Description    string
	Aggressiveness Aggressiveness
	Intelligence   Intelligence
	Size           Size
	Health         int
	MaxHealth      int
	IsAlive        bool
	SpecialEffects []string
	Location       string
	CreatedAt      time.Time
}

// NPC is a non-hostile, dialogue-capable occupant of a room.
type NPC struct {
	ID              string
	Name            string
	Description     string
	Location        string
	DialogueHistory []string
	MemoryLog       []string
	Personality     map[string]any
}

// Biome is a named region descriptor shared by every room in a chunk.
type Biome struct {
	Name        string // lowercased, unique
	Description string
	Color       string
}

// CoordinateRecord maps a discovered grid coordinate to its room.
type CoordinateRecord struct {
	X            int
	Y            int
	RoomID       string
	IsDiscovered bool
}

// ActionRecord is one player action, used for rate-limit accounting and
// history.
type ActionRecord struct {
	ID         string
	PlayerID   string
	RoomID     string
	Action     string
	AIResponse string
	Timestamp  time.Time
	SessionID  string
	Updates    map[string]any
	Metadata   map[string]any
}
