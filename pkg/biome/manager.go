package biome

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/worldforge/server/pkg/durable"
	"github.com/worldforge/server/pkg/llmgateway"
	"github.com/worldforge/server/pkg/models"
)

// newBiomeSentinel names the synthetic "ask the LLM for a fresh biome"
// candidate in the uniform choice among reusable biomes. AssignBiome
// represents that candidate by the index len(candidates), not by this
// string.
const newBiomeSentinel = "__new__"

// Manager assigns a biome to each chunk, reusing saved biomes or minting
// a new one, and preallocates the unique 3-star room per biome.
type Manager struct {
	db  *durable.Client
	llm *llmgateway.Gateway
	rng *rand.Rand
}

// New builds a Manager.
func New(db *durable.Client, llm *llmgateway.Gateway, rng *rand.Rand) *Manager {
	return &Manager{db: db, llm: llm, rng: rng}
}

// Assignment is the result of resolving a chunk's biome.
type Assignment struct {
	Biome           *models.Biome
	ThreeStarRoomID string
	IsNew           bool
}

// AssignBiome resolves the biome for the chunk containing (x,y): reuse
// an existing assignment, or else choose uniformly between the saved
// biomes that no adjacent chunk uses and a fresh one minted by the LLM.
func (m *Manager) AssignBiome(ctx context.Context, x, y int) (*Assignment, error) {
	chunkID, cx, cy := ChunkID(x, y)

	// Step 1: already assigned?
	existing, err := m.db.GetChunkBiome(ctx, chunkID)
	if err == nil {
		b, err := m.db.GetBiomeByName(ctx, existing.BiomeName)
		if err != nil {
			return nil, fmt.Errorf("biome: load assigned biome %s: %w", existing.BiomeName, err)
		}
		return &Assignment{Biome: b, ThreeStarRoomID: existing.ThreeStarRoomID}, nil
	}
	if !errors.Is(err, durable.ErrNotFound) {
		return nil, fmt.Errorf("biome: get chunk biome %s: %w", chunkID, err)
	}

	// Step 2: biomes of the 4 Manhattan-adjacent chunks.
	adjacent := map[string]bool{}
	for _, d := range models.HorizontalDirections {
		dx, dy := d.Delta()
		adjChunkID := fmt.Sprintf("chunk_%d_%d", cx+dx, cy+dy)
		if cb, err := m.db.GetChunkBiome(ctx, adjChunkID); err == nil {
			adjacent[cb.BiomeName] = true
		} else if !errors.Is(err, durable.ErrNotFound) {
			return nil, fmt.Errorf("biome: get adjacent chunk biome: %w", err)
		}
	}

	// Step 3: candidates = saved biomes not in the adjacent set.
	saved, err := m.db.ListBiomes(ctx)
	if err != nil {
		return nil, fmt.Errorf("biome: list biomes: %w", err)
	}
	var candidates []*models.Biome
	for _, b := range saved {
		if !adjacent[b.Name] {
			candidates = append(candidates, b)
		}
	}

	// Step 4: choose uniformly from candidates ∪ {__new__}.
	choices := len(candidates) + 1
	pick := m.rng.Intn(choices)

	if pick == len(candidates) {
		return m.assignNewBiome(ctx, chunkID, cx, cy, adjacent)
	}

	selected := candidates[pick]
	if err := m.db.PutChunkBiome(ctx, &durable.ChunkBiome{ChunkID: chunkID, BiomeName: selected.Name}); err != nil {
		return nil, fmt.Errorf("biome: assign existing biome to %s: %w", chunkID, err)
	}
	return &Assignment{Biome: selected, ThreeStarRoomID: ""}, nil
}

func (m *Manager) assignNewBiome(ctx context.Context, chunkID string, cx, cy int, excluded map[string]bool) (*Assignment, error) {
	var excludedNames []string
	for name := range excluded {
		excludedNames = append(excludedNames, name)
	}

	generated, err := m.llm.GenerateBiomeChunk(ctx, chunkID, excludedNames)
	if err != nil {
		return nil, fmt.Errorf("biome: generate new biome for %s: %w", chunkID, err)
	}

	b := &models.Biome{Name: generated.Name, Description: generated.Description, Color: generated.Color}
	if err := m.db.PutBiome(ctx, b); err != nil {
		return nil, fmt.Errorf("biome: save new biome %s: %w", b.Name, err)
	}

	threeStarX, threeStarY := ChunkCenter(cx, cy)
	threeStarRoomID := fmt.Sprintf("room_%d_%d", threeStarX, threeStarY)

	if err := m.db.PutChunkBiome(ctx, &durable.ChunkBiome{
		ChunkID:         chunkID,
		BiomeName:       b.Name,
		ThreeStarRoomID: threeStarRoomID,
	}); err != nil {
		return nil, fmt.Errorf("biome: assign new biome to %s: %w", chunkID, err)
	}

	return &Assignment{Biome: b, ThreeStarRoomID: threeStarRoomID, IsNew: true}, nil
}
