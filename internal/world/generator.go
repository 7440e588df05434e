package world

import (
	"github.com/mnehmos/questforge/internal/dice"
	"github.com/mnehmos/questforge/pkg/models"
)

// Generator produces a world's tile grid from a seed and dimensions.
// Procedural generation math lives behind this seam; the engine only
// consumes its output.
type Generator interface {
	Generate(seed string, width, height int) []*models.Tile
}

// DefaultGenerator is a deterministic stand-in: terrain follows the
// seeded dice, which is enough for the engine's own guarantees
// (identical seed, identical grid).
type DefaultGenerator struct{}

var terrainKinds = []string{"plains", "forest", "hills", "mountain", "water", "desert"}

// Generate fills the grid row-major with seeded terrain.
func (DefaultGenerator) Generate(seed string, width, height int) []*models.Tile {
	roller := dice.New("worldgen:" + seed)
	tiles := make([]*models.Tile, 0, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			tiles = append(tiles, &models.Tile{
				X:         x,
				Y:         y,
				Terrain:   terrainKinds[roller.Roll(len(terrainKinds))-1],
				Elevation: float64(roller.Roll(100)) / 100,
				Moisture:  float64(roller.Roll(100)) / 100,
			})
		}
	}
	return tiles
}
