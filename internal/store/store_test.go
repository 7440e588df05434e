package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnehmos/questforge/internal/rpgerr"
	"github.com/mnehmos/questforge/pkg/models"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newCharacter(name string) *models.Character {
	return &models.Character{
		Name:  name,
		Stats: models.Stats{Str: 14, Dex: 12, Con: 13, Int: 10, Wis: 11, Cha: 9},
		HP:    20, MaxHP: 20, AC: 15, Level: 3,
		CharacterType: models.CharacterPC,
	}
}

func TestCharacterRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	c := newCharacter("Imra")
	require.NoError(t, s.Characters.Create(ctx, c))
	require.NotEmpty(t, c.ID)

	got, err := s.Characters.FindByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.Name, got.Name)
	assert.Equal(t, c.Stats, got.Stats)
	assert.Equal(t, c.HP, got.HP)
	assert.Equal(t, c.MaxHP, got.MaxHP)
	assert.Equal(t, c.CharacterType, got.CharacterType)
}

func TestCharacterHPInvariant(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	c := newCharacter("Imra")
	c.HP = 25
	err := s.Characters.Create(ctx, c)
	require.Error(t, err)
	assert.Equal(t, rpgerr.KindInvariant, rpgerr.KindOf(err))
}

func TestCharacterNotFound(t *testing.T) {
	s := testStore(t)
	_, err := s.Characters.FindByID(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, rpgerr.KindNotFound, rpgerr.KindOf(err))
}

func createItem(t *testing.T, s *Store, name string, value int) *models.Item {
	t.Helper()
	item := &models.Item{Name: name, Type: models.ItemWeapon, Weight: 3, Value: value}
	require.NoError(t, s.Items.Create(context.Background(), item))
	return item
}

func TestInventoryTransferAtomic(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	a, b := newCharacter("A"), newCharacter("B")
	require.NoError(t, s.Characters.Create(ctx, a))
	require.NoError(t, s.Characters.Create(ctx, b))
	item := createItem(t, s, "dagger", 10)

	require.NoError(t, s.Inventory.Add(ctx, a.ID, item.ID, 3))
	require.NoError(t, s.Inventory.Transfer(ctx, a.ID, b.ID, item.ID, 2))

	src, err := s.Inventory.Get(ctx, a.ID, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, src.Quantity)
	dst, err := s.Inventory.Get(ctx, b.ID, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, dst.Quantity)

	// Moving the last unit deletes the source row.
	require.NoError(t, s.Inventory.Transfer(ctx, a.ID, b.ID, item.ID, 1))
	_, err = s.Inventory.Get(ctx, a.ID, item.ID)
	assert.Equal(t, rpgerr.KindNotFound, rpgerr.KindOf(err))
}

func TestInventoryTransferInsufficient(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	a, b := newCharacter("A"), newCharacter("B")
	require.NoError(t, s.Characters.Create(ctx, a))
	require.NoError(t, s.Characters.Create(ctx, b))
	item := createItem(t, s, "dagger", 10)
	require.NoError(t, s.Inventory.Add(ctx, a.ID, item.ID, 1))

	err := s.Inventory.Transfer(ctx, a.ID, b.ID, item.ID, 5)
	require.Error(t, err)
	assert.Equal(t, rpgerr.KindConflict, rpgerr.KindOf(err))

	// Nothing moved.
	src, err := s.Inventory.Get(ctx, a.ID, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, src.Quantity)
}

func TestEquippedCannotTransfer(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	a, b := newCharacter("A"), newCharacter("B")
	require.NoError(t, s.Characters.Create(ctx, a))
	require.NoError(t, s.Characters.Create(ctx, b))
	item := createItem(t, s, "longsword", 15)
	require.NoError(t, s.Inventory.Add(ctx, a.ID, item.ID, 1))
	require.NoError(t, s.Inventory.Equip(ctx, a.ID, item.ID, "main_hand"))

	err := s.Inventory.Transfer(ctx, a.ID, b.ID, item.ID, 1)
	require.Error(t, err)
	assert.Equal(t, rpgerr.KindInvariant, rpgerr.KindOf(err))
}

func TestEquipSlotExclusive(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	a := newCharacter("A")
	require.NoError(t, s.Characters.Create(ctx, a))
	sword := createItem(t, s, "longsword", 15)
	axe := createItem(t, s, "axe", 12)
	require.NoError(t, s.Inventory.Add(ctx, a.ID, sword.ID, 1))
	require.NoError(t, s.Inventory.Add(ctx, a.ID, axe.ID, 1))

	require.NoError(t, s.Inventory.Equip(ctx, a.ID, sword.ID, "main_hand"))
	err := s.Inventory.Equip(ctx, a.ID, axe.ID, "main_hand")
	require.Error(t, err)
	assert.Equal(t, rpgerr.KindInvariant, rpgerr.KindOf(err))

	// Equipping requires a slot.
	err = s.Inventory.Equip(ctx, a.ID, axe.ID, "")
	assert.Equal(t, rpgerr.KindInvariant, rpgerr.KindOf(err))

	// Unequip frees the slot for the axe.
	require.NoError(t, s.Inventory.Unequip(ctx, a.ID, sword.ID))
	require.NoError(t, s.Inventory.Equip(ctx, a.ID, axe.ID, "main_hand"))
}

func TestHoldersOf(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	a, b := newCharacter("A"), newCharacter("B")
	require.NoError(t, s.Characters.Create(ctx, a))
	require.NoError(t, s.Characters.Create(ctx, b))
	item := createItem(t, s, "relic", 500)
	require.NoError(t, s.Inventory.Add(ctx, a.ID, item.ID, 1))
	require.NoError(t, s.Inventory.Add(ctx, b.ID, item.ID, 1))

	holders, err := s.Inventory.HoldersOf(ctx, item.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a.ID, b.ID}, holders)
}

func TestWorldDimensionBounds(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	err := s.Worlds.Create(ctx, &models.World{Name: "tiny", Seed: "s", Width: 5, Height: 50})
	require.Error(t, err)
	assert.Equal(t, rpgerr.KindValidation, rpgerr.KindOf(err))

	w := &models.World{Name: "ok", Seed: "s", Width: 10, Height: 10}
	require.NoError(t, s.Worlds.Create(ctx, w))
	got, err := s.Worlds.FindByID(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, "ok", got.Name)
}

func TestWorldMutationInvalidatesTileCache(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	w := &models.World{Name: "w", Seed: "s", Width: 10, Height: 10}
	require.NoError(t, s.Worlds.Create(ctx, w))
	require.NoError(t, s.Worlds.SetTileCache(ctx, w.ID, []byte("cached")))

	got, err := s.Worlds.FindByID(ctx, w.ID)
	require.NoError(t, err)
	require.NotEmpty(t, got.TileCache)

	require.NoError(t, s.Worlds.CreateStructure(ctx, &models.Structure{
		WorldID: w.ID, Name: "keep", Kind: "castle", X: 2, Y: 3,
	}))
	got, err = s.Worlds.FindByID(ctx, w.ID)
	require.NoError(t, err)
	assert.Empty(t, got.TileCache, "mutation must invalidate the tile cache")
}

func TestWorldDeleteCascades(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	w := &models.World{Name: "w", Seed: "s", Width: 10, Height: 10}
	require.NoError(t, s.Worlds.Create(ctx, w))
	require.NoError(t, s.Worlds.UpsertTiles(ctx, w.ID, []*models.Tile{
		{WorldID: w.ID, X: 0, Y: 0, Terrain: "plains"},
	}))
	require.NoError(t, s.Worlds.Delete(ctx, w.ID))

	tiles, err := s.Worlds.TilesInRect(ctx, w.ID, 0, 0, 10, 10)
	require.NoError(t, err)
	assert.Empty(t, tiles)
}

func TestQuestObjectiveInvariant(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	q := &models.Quest{
		Name: "broken",
		Objectives: []*models.Objective{
			{Description: "slay", Required: 3, Current: 3, Completed: false},
		},
	}
	// Create normalizes the flag from progress rather than rejecting.
	require.NoError(t, s.Quests.Create(ctx, q))
	got, err := s.Quests.FindByID(ctx, q.ID)
	require.NoError(t, err)
	assert.True(t, got.Objectives[0].Completed)
}

func TestQuestCycleRejected(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	q1 := &models.Quest{Name: "one"}
	require.NoError(t, s.Quests.Create(ctx, q1))
	q2 := &models.Quest{Name: "two", Prerequisites: []string{q1.ID}}
	require.NoError(t, s.Quests.Create(ctx, q2))

	q1.Prerequisites = []string{q2.ID}
	err := s.Quests.Update(ctx, q1)
	require.Error(t, err)
	assert.Equal(t, rpgerr.KindInvariant, rpgerr.KindOf(err))
}

func TestTheftSelfTheftRejected(t *testing.T) {
	s := testStore(t)
	err := s.Theft.Create(context.Background(), &models.TheftRecord{
		ItemID: "x", StolenFrom: "A", StolenBy: "A",
	})
	require.Error(t, err)
	assert.Equal(t, rpgerr.KindInvariant, rpgerr.KindOf(err))
}

func TestFenceBuyRateBounds(t *testing.T) {
	s := testStore(t)
	err := s.Fences.Create(context.Background(), &models.Fence{NPCID: "n", BuyRate: 1.5, DailyHeatCapacity: 10})
	require.Error(t, err)
	assert.Equal(t, rpgerr.KindValidation, rpgerr.KindOf(err))
}

func TestAuditMonotonicIDs(t *testing.T) {
	s := testStore(t)
	var last int64
	for i := 0; i < 5; i++ {
		id, err := s.Logs.AppendAudit(&models.AuditEntry{Action: "test"})
		require.NoError(t, err)
		assert.Greater(t, id, last)
		last = id
	}
}

func TestTurnStateAdvance(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	w := &models.World{Name: "w", Seed: "s", Width: 10, Height: 10}
	require.NoError(t, s.Worlds.Create(ctx, w))

	day, err := s.TurnState.Day(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, day)

	day, err = s.TurnState.Advance(ctx, w.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, day)

	_, err = s.TurnState.Advance(ctx, w.ID, -1)
	require.Error(t, err)
}
