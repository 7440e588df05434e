package combat

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

func testDeps(t *testing.T) (Deps, *store.Store) {
	t.Helper()
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return Deps{
		Store: s,
		Audit: audit.NewLogger(s.Logs),
		Bus:   events.NewBus(s.Logs),
	}, s
}

func boolPtr(b bool) *bool { return &b }

func TestInitiativeOrderStableDescending(t *testing.T) {
	deps, _ := testDeps(t)
	participants := []Participant{
		{ID: "hero", HP: 20, MaxHP: 20, InitiativeBonus: 2},
		{ID: "goblin-1", HP: 7, MaxHP: 7, InitiativeBonus: 1},
		{ID: "goblin-2", HP: 7, MaxHP: 7, InitiativeBonus: 1},
		{ID: "ally", HP: 10, MaxHP: 10, IsEnemy: boolPtr(false)},
	}
	e, err := New(context.Background(), deps, participants, "battle-1", nil)
	require.NoError(t, err)

	tokens := e.Snapshot().Tokens
	require.Len(t, tokens, 4)
	for i := 1; i < len(tokens); i++ {
		assert.GreaterOrEqual(t, tokens[i-1].Initiative, tokens[i].Initiative)
	}
	assert.Equal(t, 1, e.Snapshot().Round)
	assert.Equal(t, tokens[0].ID, e.Snapshot().ActiveTokenID)
}

func TestInitiativeDeterministicBySeed(t *testing.T) {
	depsA, _ := testDeps(t)
	depsB, _ := testDeps(t)
	participants := []Participant{
		{ID: "hero", HP: 20, MaxHP: 20, InitiativeBonus: 2},
		{ID: "goblin", HP: 7, MaxHP: 7, InitiativeBonus: 1},
	}
	a, err := New(context.Background(), depsA, participants, "battle-1", nil)
	require.NoError(t, err)
	b, err := New(context.Background(), depsB, participants, "battle-1", nil)
	require.NoError(t, err)

	for i := range a.Snapshot().Tokens {
		assert.Equal(t, a.Snapshot().Tokens[i].Initiative, b.Snapshot().Tokens[i].Initiative)
	}
}

func TestEnemyAutoClassification(t *testing.T) {
	deps, _ := testDeps(t)
	override := false
	e, err := New(context.Background(), deps, []Participant{
		{ID: "hero", HP: 10, MaxHP: 10},
		{ID: "goblin-3", HP: 7, MaxHP: 7},
		{ID: "orc-friend", HP: 7, MaxHP: 7, IsEnemy: &override},
	}, "seed", nil)
	require.NoError(t, err)

	byID := map[string]*models.Token{}
	for _, tok := range e.Snapshot().Tokens {
		byID[tok.ID] = tok
	}
	assert.False(t, byID["hero"].IsEnemy)
	assert.True(t, byID["goblin-3"].IsEnemy, "name heuristic marks goblins as enemies")
	assert.False(t, byID["orc-friend"].IsEnemy, "caller override wins over the heuristic")
}

func TestAttackResolution(t *testing.T) {
	deps, _ := testDeps(t)
	ctx := context.Background()
	e, err := New(ctx, deps, []Participant{
		{ID: "hero", HP: 20, MaxHP: 20},
		{ID: "goblin", HP: 7, MaxHP: 7},
	}, "battle-1", nil)
	require.NoError(t, err)

	// With attackBonus 100 any non-1 roll hits.
	res, err := e.Attack(ctx, "hero", "goblin", 100, 10, 6)
	require.NoError(t, err)
	if res.AutomaticMiss {
		assert.Equal(t, 1, res.Roll)
		assert.Zero(t, res.DamageApplied)
	} else {
		require.True(t, res.Hit)
		want := 6
		if res.Critical {
			want = 12
		}
		assert.Equal(t, want, res.DamageApplied)
	}
	tok, err := e.token("goblin")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, tok.HP, 0)
}

func TestAttackDefeatClampsAtZero(t *testing.T) {
	deps, _ := testDeps(t)
	ctx := context.Background()
	e, err := New(ctx, deps, []Participant{
		{ID: "hero", HP: 20, MaxHP: 20},
		{ID: "goblin", HP: 3, MaxHP: 3},
	}, "clamp-seed", nil)
	require.NoError(t, err)

	var res *AttackResult
	var err2 error
	for {
		res, err2 = e.Attack(ctx, "hero", "goblin", 100, 5, 50)
		require.NoError(t, err2)
		if res.Hit {
			break
		}
	}
	assert.True(t, res.Defeated)
	assert.Equal(t, 0, res.TargetHP)

	tok, err := e.token("goblin")
	require.NoError(t, err)
	assert.True(t, tok.Defeated)
	assert.Equal(t, 0, tok.HP)

	// A defeated participant cannot act.
	_, err = e.Attack(ctx, "goblin", "hero", 0, 10, 1)
	require.Error(t, err)
	assert.Equal(t, rpgerr.KindConflict, rpgerr.KindOf(err))
}

func TestHealClampsAtMax(t *testing.T) {
	deps, _ := testDeps(t)
	ctx := context.Background()
	e, err := New(ctx, deps, []Participant{
		{ID: "hero", HP: 5, MaxHP: 20},
	}, "heal-seed", nil)
	require.NoError(t, err)

	res, err := e.Heal(ctx, "", "hero", 100)
	require.NoError(t, err)
	assert.Equal(t, 20, res.TargetHP)
	assert.Equal(t, 15, res.Healed)
}

func TestAdvanceTurnSkipsDefeatedAndWraps(t *testing.T) {
	deps, _ := testDeps(t)
	ctx := context.Background()
	e, err := New(ctx, deps, []Participant{
		{ID: "a", HP: 10, MaxHP: 10},
		{ID: "b", HP: 10, MaxHP: 10},
		{ID: "c", HP: 10, MaxHP: 10},
	}, "turn-seed", nil)
	require.NoError(t, err)

	// Defeat whoever is second in the order.
	second := e.Snapshot().Tokens[1]
	second.HP = 0
	second.Defeated = true

	res, err := e.AdvanceTurn(ctx)
	require.NoError(t, err)
	assert.Equal(t, e.Snapshot().Tokens[2].ID, res.ActiveTokenID, "turn advance skips the defeated token")
	assert.Equal(t, 1, res.Round)

	res, err = e.AdvanceTurn(ctx)
	require.NoError(t, err)
	assert.Equal(t, e.Snapshot().Tokens[0].ID, res.ActiveTokenID)
	assert.Equal(t, 2, res.Round, "round increments on wrap-around")
	assert.True(t, res.RoundAdvanced)
}

func TestEndEncounterWriteBack(t *testing.T) {
	deps, s := testDeps(t)
	ctx := context.Background()

	hero := &models.Character{
		ID: "hero", Name: "Hero", HP: 20, MaxHP: 20, AC: 15,
		CharacterType: models.CharacterPC,
	}
	require.NoError(t, s.Characters.Create(ctx, hero))

	e, err := New(ctx, deps, []Participant{
		{ID: "hero", HP: 20, MaxHP: 20, InitiativeBonus: 2},
		{ID: "goblin", HP: 7, MaxHP: 7, InitiativeBonus: 1},
	}, "battle-1", nil)
	require.NoError(t, err)

	// Goblin chips the hero for 3 on a guaranteed-hit bonus.
	var hit *AttackResult
	for {
		hit, err = e.Attack(ctx, "goblin", "hero", 100, 5, 3)
		require.NoError(t, err)
		if hit.Hit {
			break
		}
	}
	tok, err := e.token("hero")
	require.NoError(t, err)
	wantHP := tok.HP

	res, err := e.End(ctx)
	require.NoError(t, err)
	require.Len(t, res.WrittenBack, 1)
	assert.Equal(t, "hero", res.WrittenBack[0].CharacterID)

	stored, err := s.Characters.FindByID(ctx, "hero")
	require.NoError(t, err)
	assert.Equal(t, wantHP, stored.HP, "stored character hp equals the token's final hp")

	// Ending twice is a conflict and must not double-grant.
	_, err = e.End(ctx)
	require.Error(t, err)
	assert.Equal(t, rpgerr.KindConflict, rpgerr.KindOf(err))
}

func TestRestoreResumesState(t *testing.T) {
	deps, s := testDeps(t)
	ctx := context.Background()

	e, err := New(ctx, deps, []Participant{
		{ID: "a", HP: 10, MaxHP: 10},
		{ID: "b", HP: 10, MaxHP: 10},
	}, "resume-seed", nil)
	require.NoError(t, err)
	_, err = e.AdvanceTurn(ctx)
	require.NoError(t, err)
	saved := e.Snapshot()

	loaded, err := s.Encounters.FindByID(ctx, saved.ID)
	require.NoError(t, err)
	restored := Restore(deps, loaded)

	assert.Equal(t, saved.Round, restored.Snapshot().Round)
	assert.Equal(t, saved.CurrentTurnIndex, restored.Snapshot().CurrentTurnIndex)
	assert.Equal(t, saved.ActiveTokenID, restored.Snapshot().ActiveTokenID)
	for i := range saved.Tokens {
		assert.Equal(t, saved.Tokens[i].HP, restored.Snapshot().Tokens[i].HP)
		assert.Equal(t, saved.Tokens[i].Initiative, restored.Snapshot().Tokens[i].Initiative)
	}
}

func TestCompletedEncounterRejectsActions(t *testing.T) {
	deps, _ := testDeps(t)
	ctx := context.Background()
	e, err := New(ctx, deps, []Participant{
		{ID: "a", HP: 10, MaxHP: 10},
		{ID: "b", HP: 10, MaxHP: 10},
	}, "done-seed", nil)
	require.NoError(t, err)
	_, err = e.End(ctx)
	require.NoError(t, err)

	_, err = e.Attack(ctx, "a", "b", 5, 10, 3)
	require.Error(t, err)
	assert.Equal(t, rpgerr.KindConflict, rpgerr.KindOf(err))
}
