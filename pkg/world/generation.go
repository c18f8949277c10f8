package world

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/google/uuid"

	"github.com/worldforge/server/pkg/models"
)

// monsterCountWeights is the weighted multiset [0,0,1,1,2,3] a room's
// monster count is drawn uniformly from.
var monsterCountWeights = []int{0, 0, 1, 1, 2, 3}

// ring computes the monster-difficulty tier for a coordinate, clamped to
// [0,8]; the clamp is a hard ceiling, so difficulty never biases harder
// past ring 8.
func ring(x, y int) float64 {
	m := math.Max(math.Abs(float64(x)), math.Abs(float64(y))) / 6
	if m > 8 {
		m = 8
	}
	return m
}

// ringT normalizes ring to [0,1] against its 0..8 clamp, for linear
// interpolation between "easy" and "hard" weight tables.
func ringT(x, y int) float64 {
	return ring(x, y) / 8
}

func weightedPick[T any](rng *rand.Rand, easy, hard map[T]float64, t float64, keys []T) T {
	total := 0.0
	weights := make([]float64, len(keys))
	for i, k := range keys {
		w := easy[k]*(1-t) + hard[k]*t
		if w < 0 {
			w = 0
		}
		weights[i] = w
		total += w
	}
	if total <= 0 {
		return keys[rng.Intn(len(keys))]
	}
	r := rng.Float64() * total
	for i, w := range weights {
		r -= w
		if r <= 0 {
			return keys[i]
		}
	}
	return keys[len(keys)-1]
}

var aggressivenessKeys = []models.Aggressiveness{
	models.AggressivenessPassive, models.AggressivenessNeutral,
	models.AggressivenessTerritorial, models.AggressivenessAggressive,
}
var aggressivenessEasy = map[models.Aggressiveness]float64{
	models.AggressivenessPassive: 0.55, models.AggressivenessNeutral: 0.35,
	models.AggressivenessTerritorial: 0.08, models.AggressivenessAggressive: 0.02,
}
var aggressivenessHard = map[models.Aggressiveness]float64{
	models.AggressivenessPassive: 0.05, models.AggressivenessNeutral: 0.2,
	models.AggressivenessTerritorial: 0.3, models.AggressivenessAggressive: 0.45,
}

var intelligenceKeys = []models.Intelligence{
	models.IntelligenceAnimal, models.IntelligenceSubhuman,
	models.IntelligenceHuman, models.IntelligenceOmnipotent,
}
var intelligenceEasy = map[models.Intelligence]float64{
	models.IntelligenceAnimal: 0.6, models.IntelligenceSubhuman: 0.3,
	models.IntelligenceHuman: 0.09, models.IntelligenceOmnipotent: 0.01,
}
var intelligenceHard = map[models.Intelligence]float64{
	models.IntelligenceAnimal: 0.1, models.IntelligenceSubhuman: 0.25,
	models.IntelligenceHuman: 0.4, models.IntelligenceOmnipotent: 0.25,
}

var sizeKeys = []models.Size{
	models.SizeInsect, models.SizeChicken, models.SizeHuman,
	models.SizeHorse, models.SizeDinosaur, models.SizeColossal,
}
var sizeEasy = map[models.Size]float64{
	models.SizeInsect: 0.35, models.SizeChicken: 0.35, models.SizeHuman: 0.2,
	models.SizeHorse: 0.08, models.SizeDinosaur: 0.02, models.SizeColossal: 0,
}
var sizeHard = map[models.Size]float64{
	models.SizeInsect: 0.02, models.SizeChicken: 0.08, models.SizeHuman: 0.2,
	models.SizeHorse: 0.3, models.SizeDinosaur: 0.25, models.SizeColossal: 0.15,
}

// specialEffectsCount picks 0, 1, or 2 special effects, weighted toward
// 0 near the center and allowing more at higher ring.
func specialEffectsCount(rng *rand.Rand, t float64) int {
	weights := []float64{1 - 0.6*t, 0.3 + 0.3*t, 0.2 * t}
	total := weights[0] + weights[1] + weights[2]
	r := rng.Float64() * total
	for i, w := range weights {
		r -= w
		if r <= 0 {
			return i
		}
	}
	return 2
}

// GenerateMonstersForRoom creates 0-3 monsters for a room, ring-biased
// persists them, and returns their ids.
func (e *Engine) GenerateMonstersForRoom(ctx context.Context, roomID string, x, y int) ([]string, error) {
	t := ringT(x, y)
	count := monsterCountWeights[e.rng.Intn(len(monsterCountWeights))]

	ids := make([]string, 0, count)
	for i := 0; i < count; i++ {
		aggressiveness := weightedPick(e.rng, aggressivenessEasy, aggressivenessHard, t, aggressivenessKeys)
		if roomID == models.StartRoomID && aggressiveness == models.AggressivenessAggressive {
			aggressiveness = models.AggressivenessNeutral
		}
		intelligence := weightedPick(e.rng, intelligenceEasy, intelligenceHard, t, intelligenceKeys)
		size := weightedPick(e.rng, sizeEasy, sizeHard, t, sizeKeys)

		mult := models.SizeMultiplier[size]
		health := int(math.Round(5 * mult))
		if health < 1 {
			health = 1
		}

		effectsCount := specialEffectsCount(e.rng, t)
		effects := make([]string, 0, effectsCount)
		for j := 0; j < effectsCount; j++ {
			effects = append(effects, fmt.Sprintf("effect_%d", j+1))
		}

		name, description, err := e.generateMonsterContent(ctx, aggressiveness, intelligence, size)
		if err != nil {
			return nil, fmt.Errorf("world: generate monster content: %w", err)
		}

		m := &models.Monster{
			ID:             "monster_" + uuid.NewString(),
			Name:           name,
			Description:    description,
			Aggressiveness: aggressiveness,
			Intelligence:   intelligence,
			Size:           size,
			Health:         health,
			MaxHealth:      health,
			IsAlive:        true,
			SpecialEffects: effects,
			Location:       roomID,
		}
		if err := e.store.Durable.PutMonster(ctx, m); err != nil {
			return nil, fmt.Errorf("world: persist monster %s: %w", m.ID, err)
		}
		ids = append(ids, m.ID)
	}
	return ids, nil
}

func (e *Engine) generateMonsterContent(ctx context.Context, aggressiveness models.Aggressiveness, intelligence models.Intelligence, size models.Size) (name, description string, err error) {
	prompt := fmt.Sprintf(
		"Generate a monster. aggressiveness=%s intelligence=%s size=%s. Respond with JSON only: {\"name\":...,\"description\":...}",
		aggressiveness, intelligence, size,
	)
	raw, err := e.llm.GenerateText(ctx, prompt)
	if err != nil {
		return "", "", err
	}
	return parseNameDescription(raw)
}

// GenerateItemsForRoom assigns 0-4 two-star items plus, if this room is
// its biome's preallocated 3-star room, a single three-star item. The
// starting room is special-cased to treat "room_0_0" and "room_start"
// as the same room.
func (e *Engine) GenerateItemsForRoom(ctx context.Context, roomID, biomeName, threeStarRoomID string) ([]string, error) {
	twoStarCount := e.rng.Intn(5) // 0..4 uniform
	isThreeStarRoom := roomID == threeStarRoomID ||
		(roomID == models.StartRoomID && threeStarRoomID == "room_0_0") ||
		(roomID == "room_0_0" && threeStarRoomID == models.StartRoomID)

	var ids []string
	for i := 0; i < twoStarCount; i++ {
		item, err := e.generateItem(ctx, biomeName, models.RarityUncommon)
		if err != nil {
			return nil, fmt.Errorf("world: generate two-star item: %w", err)
		}
		if err := e.store.Durable.PutItem(ctx, item); err != nil {
			return nil, fmt.Errorf("world: persist item %s: %w", item.ID, err)
		}
		ids = append(ids, item.ID)
	}

	if isThreeStarRoom {
		item, err := e.generateItem(ctx, biomeName, models.RarityRare)
		if err != nil {
			return nil, fmt.Errorf("world: generate three-star item: %w", err)
		}
		if err := e.store.Durable.PutItem(ctx, item); err != nil {
			return nil, fmt.Errorf("world: persist three-star item %s: %w", item.ID, err)
		}
		ids = append(ids, item.ID)
	}
	return ids, nil
}

func (e *Engine) generateItem(ctx context.Context, biomeName string, rarity models.Rarity) (*models.Item, error) {
	recent, err := e.store.Durable.GetRecentHighRarityItems(ctx, models.RarityRare, 5)
	if err != nil {
		return nil, fmt.Errorf("world: load recent high rarity items for context: %w", err)
	}
	recentNames := make([]string, 0, len(recent))
	for _, it := range recent {
		recentNames = append(recentNames, it.Name)
	}

	prompt := fmt.Sprintf(
		"Generate an item of rarity %d for biome %q. Avoid duplicating recent high-rarity items: %v. "+
			"Respond with JSON only: {\"name\":...,\"description\":...,\"capabilities\":[...],\"special_effects\":[...]}",
		rarity, biomeName, recentNames,
	)
	raw, err := e.llm.GenerateText(ctx, prompt)
	if err != nil {
		return nil, err
	}
	item, err := parseItemContent(raw)
	if err != nil {
		return nil, err
	}
	item.ID = "item_" + uuid.NewString()
	item.Rarity = rarity
	// Enforce the rarity floor regardless of what the LLM produced.
	if rarity <= models.RarityUncommon {
		item.SpecialEffects = nil
	} else if len(item.SpecialEffects) == 0 {
		item.SpecialEffects = []string{"minor enchantment"}
	}
	return item, nil
}
