package theft

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

func testEngine(t *testing.T) (*Engine, *store.Store) {
	t.Helper()
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return New(s, audit.NewLogger(s.Logs), events.NewBus(s.Logs), 1), s
}

func TestStealSelfTheftRejected(t *testing.T) {
	e, _ := testEngine(t)
	_, err := e.Steal(context.Background(), "A", "A", "x", "", nil)
	require.Error(t, err)
	assert.Equal(t, rpgerr.KindInvariant, rpgerr.KindOf(err))
}

func TestStealStartsBurning(t *testing.T) {
	e, _ := testEngine(t)
	ctx := context.Background()
	rec, err := e.Steal(ctx, "thief", "victim", "gem", "market", []string{"w1", "w2"})
	require.NoError(t, err)
	assert.Equal(t, models.HeatBurning, rec.HeatLevel)
	assert.Len(t, rec.Witnesses, 2)

	got, err := e.Check(ctx, "gem")
	require.NoError(t, err)
	assert.Equal(t, "victim", got.StolenFrom)
	assert.Equal(t, "thief", got.StolenBy)
}

func TestRecognizeVictimAndWitness(t *testing.T) {
	e, _ := testEngine(t)
	ctx := context.Background()
	_, err := e.Steal(ctx, "thief", "victim", "gem", "", []string{"witness"})
	require.NoError(t, err)

	res, err := e.Recognize(ctx, "victim", "gem", "seed")
	require.NoError(t, err)
	assert.True(t, res.Recognized)
	assert.Equal(t, "hostile", res.Reaction)

	res, err = e.Recognize(ctx, "witness", "gem", "seed")
	require.NoError(t, err)
	assert.True(t, res.Recognized)
	assert.Equal(t, "suspicious", res.Reaction)
}

func TestRecognizeStrangerRolls(t *testing.T) {
	e, _ := testEngine(t)
	ctx := context.Background()
	_, err := e.Steal(ctx, "thief", "victim", "gem", "", nil)
	require.NoError(t, err)

	res, err := e.Recognize(ctx, "stranger", "gem", "roll-seed")
	require.NoError(t, err)
	assert.Equal(t, 80, res.Threshold, "burning maps to 80")
	assert.Equal(t, res.Roll < res.Threshold, res.Recognized, "ties favor non-recognition")

	// Determinism: the same seed resolves identically.
	again, err := e.Recognize(ctx, "stranger", "gem", "roll-seed")
	require.NoError(t, err)
	assert.Equal(t, res.Roll, again.Roll)
}

func TestDecayStepsToColdAndDropsThreshold(t *testing.T) {
	e, s := testEngine(t)
	ctx := context.Background()
	_, err := e.Steal(ctx, "thief", "victim", "gem", "", nil)
	require.NoError(t, err)

	res, err := e.Decay(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, 1, res.RecordsCooled)

	rec, err := s.Theft.FindByItem(ctx, "gem")
	require.NoError(t, err)
	assert.Equal(t, models.HeatCold, rec.HeatLevel, "burning decays to cold over four days")

	recog, err := e.Recognize(ctx, "stranger", "gem", "post-decay")
	require.NoError(t, err)
	assert.Equal(t, 5, recog.Threshold, "cold threshold with no bounty")
}

func TestReportRaisesBountyAndThreshold(t *testing.T) {
	e, _ := testEngine(t)
	ctx := context.Background()
	_, err := e.Steal(ctx, "thief", "victim", "gem", "", nil)
	require.NoError(t, err)

	rec, err := e.Report(ctx, "gem", 300)
	require.NoError(t, err)
	assert.True(t, rec.ReportedToGuards)
	assert.Equal(t, 300, rec.Bounty)

	res, err := e.Recognize(ctx, "stranger", "gem", "bounty-seed")
	require.NoError(t, err)
	assert.Equal(t, 100, res.Threshold, "80 + 300/10 caps at 100")
}

func TestVictimCannotFence(t *testing.T) {
	e, _ := testEngine(t)
	ctx := context.Background()
	_, err := e.Steal(ctx, "thief", "victim", "gem", "", nil)
	require.NoError(t, err)

	err = e.RegisterFence(ctx, &models.Fence{
		NPCID: "victim", BuyRate: 0.5, MaxHeatLevel: models.HeatBurning, DailyHeatCapacity: 100,
	})
	require.Error(t, err)
	assert.Equal(t, rpgerr.KindInvariant, rpgerr.KindOf(err))

	require.NoError(t, e.RegisterFence(ctx, &models.Fence{
		NPCID: "shady", BuyRate: 0.5, MaxHeatLevel: models.HeatBurning, DailyHeatCapacity: 100,
	}))
}

func TestSellToFenceRules(t *testing.T) {
	e, s := testEngine(t)
	ctx := context.Background()
	_, err := e.Steal(ctx, "thief", "victim", "gem", "", nil)
	require.NoError(t, err)

	// A warm-ceiling fence refuses burning goods.
	require.NoError(t, e.RegisterFence(ctx, &models.Fence{
		NPCID: "cautious", BuyRate: 0.5, MaxHeatLevel: models.HeatWarm, DailyHeatCapacity: 100,
	}))
	_, err = e.SellToFence(ctx, "thief", "cautious", "gem", 100, 0)
	require.Error(t, err)
	assert.Equal(t, rpgerr.KindConflict, rpgerr.KindOf(err))

	// A bold fence accepts, at half rate for burning goods.
	require.NoError(t, e.RegisterFence(ctx, &models.Fence{
		NPCID: "bold", BuyRate: 0.8, MaxHeatLevel: models.HeatBurning, DailyHeatCapacity: 100,
	}))
	sale, err := e.SellToFence(ctx, "thief", "bold", "gem", 100, 0)
	require.NoError(t, err)
	assert.Equal(t, 40, sale.Price, "100 * 0.8 rate * 0.5 burning discount")

	fence, err := s.Fences.FindByNPC(ctx, "bold")
	require.NoError(t, err)
	assert.Equal(t, 80, fence.DailyHeatUsed, "burning consumes 80 capacity")

	// Capacity is now exhausted for a second burning item.
	_, err = e.Steal(ctx, "thief", "victim2", "ring", "", nil)
	require.NoError(t, err)
	_, err = e.SellToFence(ctx, "thief", "bold", "ring", 50, 0)
	require.Error(t, err)
	assert.Equal(t, rpgerr.KindConflict, rpgerr.KindOf(err))

	// A day passing resets daily capacity.
	_, err = e.Decay(ctx, 1)
	require.NoError(t, err)
	_, err = e.SellToFence(ctx, "thief", "bold", "ring", 50, 1)
	require.NoError(t, err)
}

func TestSearchCharacterRisk(t *testing.T) {
	e, s := testEngine(t)
	ctx := context.Background()

	holder := &models.Character{Name: "Holder", HP: 10, MaxHP: 10, CharacterType: models.CharacterPC}
	require.NoError(t, s.Characters.Create(ctx, holder))
	item := &models.Item{Name: "gem", Type: models.ItemMisc, Value: 100}
	require.NoError(t, s.Items.Create(ctx, item))
	require.NoError(t, s.Inventory.Add(ctx, holder.ID, item.ID, 1))

	res, err := e.SearchCharacter(ctx, holder.ID)
	require.NoError(t, err)
	assert.Empty(t, res.StolenItems)
	assert.Equal(t, "none", res.DetectionRisk)

	_, err = e.Steal(ctx, holder.ID, "victim", item.ID, "", nil)
	require.NoError(t, err)

	res, err = e.SearchCharacter(ctx, holder.ID)
	require.NoError(t, err)
	require.Len(t, res.StolenItems, 1)
	assert.Equal(t, "very high", res.DetectionRisk)
}
