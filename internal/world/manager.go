package world

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/mnehmos/questforge/internal/audit"
	"github.com/mnehmos/questforge/internal/events"
	"github.com/mnehmos/questforge/internal/rpgerr"
	"github.com/mnehmos/questforge/internal/store"
	"github.com/mnehmos/questforge/pkg/models"
)

// Manager owns world runtime state, keyed by sessionID:worldID. The
// cache holds decoded tile grids; everything is reconstructible from
// the store.
type Manager struct {
	store *store.Store
	audit *audit.Logger
	bus   *events.Bus
	gen   Generator

	mu    sync.Mutex
	grids map[string][]*models.Tile
}

// NewManager creates a world manager. gen may be nil to use the
// default deterministic generator.
func NewManager(s *store.Store, a *audit.Logger, bus *events.Bus, gen Generator) *Manager {
	if gen == nil {
		gen = DefaultGenerator{}
	}
	return &Manager{store: s, audit: a, bus: bus, gen: gen, grids: make(map[string][]*models.Tile)}
}

func cacheKey(sessionID, worldID string) string { return sessionID + ":" + worldID }

// Generate creates and persists a world: the generator produces the
// grid, tiles are stored, and the compressed cache is written.
func (m *Manager) Generate(ctx context.Context, sessionID, name, seed string, width, height int) (*models.World, error) {
	w := &models.World{Name: name, Seed: seed, Width: width, Height: height}
	if err := m.store.Worlds.Create(ctx, w); err != nil {
		return nil, err
	}
	tiles := m.gen.Generate(seed, width, height)
	for _, t := range tiles {
		t.WorldID = w.ID
	}
	if err := m.store.Worlds.UpsertTiles(ctx, w.ID, tiles); err != nil {
		return nil, err
	}
	// UpsertTiles invalidated the cache; rebuild it from the fresh grid.
	blob, err := EncodeTileCache(tiles)
	if err != nil {
		return nil, rpgerr.Wrap(err, rpgerr.KindStorage, "build tile cache")
	}
	if err := m.store.Worlds.SetTileCache(ctx, w.ID, blob); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.grids[cacheKey(sessionID, w.ID)] = tiles
	m.mu.Unlock()

	m.audit.Record("world.generate", "", w.ID, map[string]any{
		"name": name, "seed": seed, "width": width, "height": height,
	})
	m.bus.Publish("world.generated", w)
	return w, nil
}

// Get fetches a world row.
func (m *Manager) Get(ctx context.Context, worldID string) (*models.World, error) {
	return m.store.Worlds.FindByID(ctx, worldID)
}

// Tiles returns the world's grid, from the session cache, the
// compressed cache, or the tiles table, in that order.
func (m *Manager) Tiles(ctx context.Context, sessionID, worldID string) ([]*models.Tile, error) {
	m.mu.Lock()
	if tiles, ok := m.grids[cacheKey(sessionID, worldID)]; ok {
		m.mu.Unlock()
		return tiles, nil
	}
	m.mu.Unlock()

	w, err := m.store.Worlds.FindByID(ctx, worldID)
	if err != nil {
		return nil, err
	}
	var tiles []*models.Tile
	if len(w.TileCache) > 0 {
		if tiles, err = DecodeTileCache(w.TileCache); err != nil {
			// A corrupt cache falls through to the source of truth.
			tiles = nil
		}
	}
	if tiles == nil {
		tiles, err = m.store.Worlds.TilesInRect(ctx, worldID, 0, 0, w.Width, w.Height)
		if err != nil {
			return nil, err
		}
	}
	m.mu.Lock()
	m.grids[cacheKey(sessionID, worldID)] = tiles
	m.mu.Unlock()
	return tiles, nil
}

// Overview summarizes a world for the orchestrator.
type Overview struct {
	World      *models.World       `json:"world"`
	TerrainMix map[string]int      `json:"terrainMix"`
	Regions    []*models.Region    `json:"regions"`
	Structures []*models.Structure `json:"structures"`
	Rivers     []*models.River     `json:"rivers"`
	Day        int                 `json:"day"`
}

// Overview builds the world map overview: terrain distribution plus
// regions, structures, rivers and the current simulated day.
func (m *Manager) Overview(ctx context.Context, sessionID, worldID string) (*Overview, error) {
	w, err := m.store.Worlds.FindByID(ctx, worldID)
	if err != nil {
		return nil, err
	}
	tiles, err := m.Tiles(ctx, sessionID, worldID)
	if err != nil {
		return nil, err
	}
	mix := make(map[string]int)
	for _, t := range tiles {
		mix[t.Terrain]++
	}
	regions, err := m.store.Worlds.RegionsByWorld(ctx, worldID)
	if err != nil {
		return nil, err
	}
	structures, err := m.store.Worlds.StructuresByWorld(ctx, worldID)
	if err != nil {
		return nil, err
	}
	rivers, err := m.store.Worlds.RiversByWorld(ctx, worldID)
	if err != nil {
		return nil, err
	}
	day, err := m.store.TurnState.Day(ctx, worldID)
	if err != nil {
		return nil, err
	}
	return &Overview{World: w, TerrainMix: mix, Regions: regions, Structures: structures, Rivers: rivers, Day: day}, nil
}

// RegionMap renders one region's tiles as text rows, one rune per
// tile.
func (m *Manager) RegionMap(ctx context.Context, sessionID, worldID, regionID string) ([]string, error) {
	regions, err := m.store.Worlds.RegionsByWorld(ctx, worldID)
	if err != nil {
		return nil, err
	}
	var region *models.Region
	for _, r := range regions {
		if r.ID == regionID {
			region = r
			break
		}
	}
	if region == nil {
		return nil, rpgerr.New(rpgerr.KindNotFound, "region %s not found in world %s", regionID, worldID)
	}
	tiles, err := m.store.Worlds.TilesInRect(ctx, worldID, region.X, region.Y, region.Width, region.Height)
	if err != nil {
		return nil, err
	}
	byPos := make(map[string]*models.Tile, len(tiles))
	for _, t := range tiles {
		byPos[fmt.Sprintf("%d,%d", t.X, t.Y)] = t
	}
	rows := make([]string, 0, region.Height)
	for y := region.Y; y < region.Y+region.Height; y++ {
		var b strings.Builder
		for x := region.X; x < region.X+region.Width; x++ {
			if t, ok := byPos[fmt.Sprintf("%d,%d", x, y)]; ok {
				b.WriteByte(terrainGlyph(t.Terrain))
			} else {
				b.WriteByte('?')
			}
		}
		rows = append(rows, b.String())
	}
	return rows, nil
}

func terrainGlyph(terrain string) byte {
	switch terrain {
	case "water":
		return '~'
	case "forest":
		return 'T'
	case "mountain":
		return '^'
	case "hills":
		return 'n'
	case "desert":
		return '.'
	default:
		return ','
	}
}

// Invalidate drops the session grid cache for a world. Called after
// any mutation of world tiles.
func (m *Manager) Invalidate(worldID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.grids {
		if strings.HasSuffix(k, ":"+worldID) {
			delete(m.grids, k)
		}
	}
}
