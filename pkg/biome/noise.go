// Package biome implements the Biome Manager (C5): chunk
// id derivation via value noise, and the per-chunk biome assignment
// policy.
package biome

import (
	"fmt"
	"math"
)

// S and Q are the noise-sampling scale and quantization cell size.
const (
	S = 0.09
	Q = 0.35
)

// valueNoise is a deterministic hash-based value noise sample in
// [0,1), used only to perturb chunk-id derivation. No noise/terrain-
// generation library fits this single small sampling function, so this
// is a small hand-rolled stdlib implementation (see DESIGN.md).
func valueNoise(x, y float64) float64 {
	ix, iy := math.Floor(x), math.Floor(y)
	fx, fy := x-ix, y-iy

	v00 := hash2(ix, iy)
	v10 := hash2(ix+1, iy)
	v01 := hash2(ix, iy+1)
	v11 := hash2(ix+1, iy+1)

	sx := smoothstep(fx)
	sy := smoothstep(fy)

	top := lerp(v00, v10, sx)
	bottom := lerp(v01, v11, sx)
	return lerp(top, bottom, sy)
}

func hash2(x, y float64) float64 {
	h := math.Sin(x*127.1+y*311.7) * 43758.5453123
	return h - math.Floor(h)
}

func smoothstep(t float64) float64 {
	return t * t * (3 - 2*t)
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// ChunkID derives the chunk identity containing room (x,y): a value-
// noise sample perturbs the scaled coordinate before quantization.
func ChunkID(x, y int) (id string, cx, cy int) {
	nx := float64(x) * S
	ny := float64(y) * S
	n := valueNoise(nx, ny)
	// The noise sample nudges the position within its quantization cell
	// so that chunk boundaries are not a perfectly regular grid.
	nx += (n - 0.5) * Q
	ny += (n - 0.5) * Q
	cx = int(math.Floor(nx / Q))
	cy = int(math.Floor(ny / Q))
	return fmt.Sprintf("chunk_%d_%d", cx, cy), cx, cy
}

// ChunkCenter returns the room coordinate (3*cx, 3*cy) where chunk
// (cx,cy)'s preallocated 3-star room lives. The point is not derived
// from the chunk's extent, so it is not the chunk's geometric center and
// can lie outside the chunk.
func ChunkCenter(cx, cy int) (x, y int) {
	return 3 * cx, 3 * cy
}
