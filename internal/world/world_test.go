package world

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnehmos/questforge/internal/audit"
	"github.com/mnehmos/questforge/internal/events"
	"github.com/mnehmos/questforge/internal/rpgerr"
	"github.com/mnehmos/questforge/internal/store"
	"github.com/mnehmos/questforge/pkg/models"
)

func testManager(t *testing.T) (*Manager, *store.Store) {
	t.Helper()
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return NewManager(s, audit.NewLogger(s.Logs), events.NewBus(s.Logs), nil), s
}

func TestTileCacheRoundTrip(t *testing.T) {
	tiles := []*models.Tile{
		{WorldID: "w", X: 0, Y: 0, Terrain: "plains", Elevation: 0.4, Moisture: 0.2},
		{WorldID: "w", X: 1, Y: 0, Terrain: "water", Elevation: 0.1, Moisture: 1},
	}
	blob, err := EncodeTileCache(tiles)
	require.NoError(t, err)
	decoded, err := DecodeTileCache(blob)
	require.NoError(t, err)
	assert.Equal(t, tiles, decoded)
}

func TestGeneratorDeterministic(t *testing.T) {
	gen := DefaultGenerator{}
	a := gen.Generate("seed-1", 10, 10)
	b := gen.Generate("seed-1", 10, 10)
	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i].Terrain, b[i].Terrain)
	}
	c := gen.Generate("seed-2", 10, 10)
	diff := false
	for i := range a {
		if a[i].Terrain != c[i].Terrain {
			diff = true
			break
		}
	}
	assert.True(t, diff, "different seeds should change the grid")
}

func TestGeneratePersistsGridAndCache(t *testing.T) {
	m, s := testManager(t)
	ctx := context.Background()

	w, err := m.Generate(ctx, "sess", "Midgard", "alpha", 12, 10)
	require.NoError(t, err)

	tiles, err := s.Worlds.TilesInRect(ctx, w.ID, 0, 0, 12, 10)
	require.NoError(t, err)
	assert.Len(t, tiles, 120)

	stored, err := s.Worlds.FindByID(ctx, w.ID)
	require.NoError(t, err)
	require.NotEmpty(t, stored.TileCache)
	cached, err := DecodeTileCache(stored.TileCache)
	require.NoError(t, err)
	assert.Len(t, cached, 120)
}

func TestOverview(t *testing.T) {
	m, s := testManager(t)
	ctx := context.Background()

	w, err := m.Generate(ctx, "sess", "Midgard", "alpha", 10, 10)
	require.NoError(t, err)
	require.NoError(t, s.Worlds.CreateRegion(ctx, &models.Region{
		WorldID: w.ID, Name: "The Reach", Biome: "forest", X: 0, Y: 0, Width: 5, Height: 5,
	}))

	ov, err := m.Overview(ctx, "sess", w.ID)
	require.NoError(t, err)
	assert.Equal(t, w.ID, ov.World.ID)
	assert.Len(t, ov.Regions, 1)
	total := 0
	for _, n := range ov.TerrainMix {
		total += n
	}
	assert.Equal(t, 100, total)
}

func TestRegionMap(t *testing.T) {
	m, s := testManager(t)
	ctx := context.Background()

	w, err := m.Generate(ctx, "sess", "Midgard", "alpha", 10, 10)
	require.NoError(t, err)
	region := &models.Region{WorldID: w.ID, Name: "Corner", Biome: "plains", X: 0, Y: 0, Width: 4, Height: 3}
	require.NoError(t, s.Worlds.CreateRegion(ctx, region))

	rows, err := m.RegionMap(ctx, "sess", w.ID, region.ID)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for _, row := range rows {
		assert.Len(t, row, 4)
		assert.NotContains(t, row, "?")
	}

	_, err = m.RegionMap(ctx, "sess", w.ID, "missing")
	assert.Equal(t, rpgerr.KindNotFound, rpgerr.KindOf(err))
}

func TestApplyPatch(t *testing.T) {
	m, s := testManager(t)
	ctx := context.Background()

	w, err := m.Generate(ctx, "sess", "Midgard", "alpha", 10, 10)
	require.NoError(t, err)

	// Preview writes nothing.
	report, err := m.ApplyPatch(ctx, "sess", w.ID, []PatchOp{
		{Op: "set_region_terrain", X: 0, Y: 0, Width: 2, Height: 2, Terrain: "water"},
	}, true)
	require.NoError(t, err)
	assert.True(t, report.DryRun)
	assert.Equal(t, 4, report.TilesChanged)

	// Apply rewrites the tiles and invalidates the cache.
	report, err = m.ApplyPatch(ctx, "sess", w.ID, []PatchOp{
		{Op: "set_region_terrain", X: 0, Y: 0, Width: 2, Height: 2, Terrain: "water"},
	}, false)
	require.NoError(t, err)
	assert.False(t, report.DryRun)

	tiles, err := s.Worlds.TilesInRect(ctx, w.ID, 0, 0, 2, 2)
	require.NoError(t, err)
	for _, tile := range tiles {
		assert.Equal(t, "water", tile.Terrain)
	}
	stored, err := s.Worlds.FindByID(ctx, w.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.TileCache)

	patches, err := s.Patches.ListByWorld(ctx, w.ID)
	require.NoError(t, err)
	assert.Len(t, patches, 2)

	// Out-of-bounds single tiles are rejected.
	_, err = m.ApplyPatch(ctx, "sess", w.ID, []PatchOp{
		{Op: "set_tile", X: 50, Y: 0, Terrain: "water"},
	}, false)
	assert.Equal(t, rpgerr.KindValidation, rpgerr.KindOf(err))
}
