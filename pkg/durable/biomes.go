package durable

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/worldforge/server/pkg/models"
)

// biomeID derives a stable id from the lowercased biome name, so two
// biomes generated with the same name dedupe to one record.
func biomeID(name string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(name)))
	return "biome_" + hex.EncodeToString(sum[:8])
}

// GetBiomeByName loads a biome by its (case-insensitive) name.
func (c *Client) GetBiomeByName(ctx context.Context, name string) (*models.Biome, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var raw []byte
	err := c.db.QueryRowContext(ctx, `SELECT data FROM biomes WHERE name = $1`, strings.ToLower(name)).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("durable: get biome %s: %w", name, err)
	}
	var b models.Biome
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("durable: decode biome %s: %w", name, err)
	}
	return &b, nil
}

// ListBiomes returns every saved biome, used by the Biome Manager's chunk
// assignment to build the candidate set.
func (c *Client) ListBiomes(ctx context.Context) ([]*models.Biome, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := c.db.QueryContext(ctx, `SELECT data FROM biomes`)
	if err != nil {
		return nil, fmt.Errorf("durable: list biomes: %w", err)
	}
	defer rows.Close()

	var biomes []*models.Biome
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("durable: scan biome: %w", err)
		}
		var b models.Biome
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, fmt.Errorf("durable: decode biome: %w", err)
		}
		biomes = append(biomes, &b)
	}
	return biomes, rows.Err()
}

// PutBiome inserts a new biome, deduplicated by name.
func (c *Client) PutBiome(ctx context.Context, b *models.Biome) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	b.Name = strings.ToLower(b.Name)
	raw, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("durable: encode biome %s: %w", b.Name, err)
	}
	_, err = c.db.ExecContext(ctx, `
		INSERT INTO biomes (id, name, data) VALUES ($1, $2, $3)
		ON CONFLICT (name) DO NOTHING
	`, biomeID(b.Name), b.Name, raw)
	if err != nil {
		return fmt.Errorf("durable: put biome %s: %w", b.Name, err)
	}
	return nil
}

// ChunkBiome is the chunk_biomes row: a chunk's assigned biome and the
// preallocated room id for that biome's unique 3-star item.
type ChunkBiome struct {
	ChunkID         string
	BiomeName       string
	ThreeStarRoomID string
}

// GetChunkBiome returns the biome assigned to chunkID, or ErrNotFound if
// none has been assigned yet.
func (c *Client) GetChunkBiome(ctx context.Context, chunkID string) (*ChunkBiome, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var cb ChunkBiome
	var threeStar sql.NullString
	err := c.db.QueryRowContext(ctx, `
		SELECT chunk_id, biome_name, three_star_room_id FROM chunk_biomes WHERE chunk_id = $1
	`, chunkID).Scan(&cb.ChunkID, &cb.BiomeName, &threeStar)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("durable: get chunk biome %s: %w", chunkID, err)
	}
	cb.ThreeStarRoomID = threeStar.String
	return &cb, nil
}

// PutChunkBiome assigns a biome to a chunk, idempotently: a concurrent
// assignment to the same chunk is not an error, matching the atomic
// room-creation "loser loads the winner" pattern used elsewhere.
func (c *Client) PutChunkBiome(ctx context.Context, cb *ChunkBiome) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := c.db.ExecContext(ctx, `
		INSERT INTO chunk_biomes (chunk_id, biome_name, three_star_room_id) VALUES ($1, $2, $3)
		ON CONFLICT (chunk_id) DO NOTHING
	`, cb.ChunkID, cb.BiomeName, nullIfEmpty(cb.ThreeStarRoomID))
	if err != nil {
		return fmt.Errorf("durable: put chunk biome %s: %w", cb.ChunkID, err)
	}
	return nil
}

func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
