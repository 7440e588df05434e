package quest

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
	return New(s, audit.NewLogger(s.Logs), events.NewBus(s.Logs)), s
}

func createCharacter(t *testing.T, s *store.Store, name string) *models.Character {
	t.Helper()
	c := &models.Character{Name: name, HP: 10, MaxHP: 10, CharacterType: models.CharacterPC}
	require.NoError(t, s.Characters.Create(context.Background(), c))
	return c
}

func TestCreateGeneratesObjectiveIDs(t *testing.T) {
	e, _ := testEngine(t)
	q, err := e.Create(context.Background(), &models.Quest{
		Name: "Rat Problem",
		Objectives: []*models.Objective{
			{Description: "clear the cellar", Required: 5},
		},
	})
	require.NoError(t, err)
	require.NotEmpty(t, q.ID)
	require.NotEmpty(t, q.Objectives[0].ID)
	assert.Zero(t, q.Objectives[0].Current)
	assert.False(t, q.Objectives[0].Completed)
}

func TestPrerequisiteChain(t *testing.T) {
	e, s := testEngine(t)
	ctx := context.Background()
	c := createCharacter(t, s, "Adventurer")

	q1, err := e.Create(ctx, &models.Quest{
		Name:       "First Steps",
		Objectives: []*models.Objective{{Description: "talk to the elder", Required: 1}},
	})
	require.NoError(t, err)
	q2, err := e.Create(ctx, &models.Quest{
		Name:          "Deeper Trouble",
		Prerequisites: []string{q1.ID},
	})
	require.NoError(t, err)

	// Assigning Q2 before completing Q1 names the missing prerequisite.
	_, err = e.Assign(ctx, c.ID, q2.ID)
	require.Error(t, err)
	var engineErr *rpgerr.Error
	require.ErrorAs(t, err, &engineErr)
	assert.Equal(t, rpgerr.KindInvariant, engineErr.Kind)
	assert.Equal(t, q1.ID, engineErr.Details["missingPrerequisite"])

	// Complete Q1, then Q2 assigns cleanly.
	_, err = e.Assign(ctx, c.ID, q1.ID)
	require.NoError(t, err)
	_, err = e.CompleteObjective(ctx, q1.ID, q1.Objectives[0].ID)
	require.NoError(t, err)
	_, err = e.Complete(ctx, c.ID, q1.ID)
	require.NoError(t, err)

	_, err = e.Assign(ctx, c.ID, q2.ID)
	require.NoError(t, err)
}

func TestAssignDuplicateRejected(t *testing.T) {
	e, s := testEngine(t)
	ctx := context.Background()
	c := createCharacter(t, s, "Adventurer")
	q, err := e.Create(ctx, &models.Quest{Name: "Solo"})
	require.NoError(t, err)

	_, err = e.Assign(ctx, c.ID, q.ID)
	require.NoError(t, err)
	_, err = e.Assign(ctx, c.ID, q.ID)
	require.Error(t, err)
	assert.Equal(t, rpgerr.KindInvariant, rpgerr.KindOf(err))
}

func TestObjectiveProgressClampsAndCompletes(t *testing.T) {
	e, _ := testEngine(t)
	ctx := context.Background()
	q, err := e.Create(ctx, &models.Quest{
		Name:       "Harvest",
		Objectives: []*models.Objective{{Description: "gather herbs", Required: 3}},
	})
	require.NoError(t, err)
	objID := q.Objectives[0].ID

	obj, err := e.UpdateObjective(ctx, q.ID, objID, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, obj.Current)
	assert.False(t, obj.Completed)

	obj, err = e.UpdateObjective(ctx, q.ID, objID, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, obj.Current, "progress clamps at the requirement")
	assert.True(t, obj.Completed)

	obj, err = e.UpdateObjective(ctx, q.ID, objID, -10)
	require.NoError(t, err)
	assert.Equal(t, 0, obj.Current)
	assert.False(t, obj.Completed, "completed tracks current atomically")
}

func TestCompleteRequiresAllObjectives(t *testing.T) {
	e, s := testEngine(t)
	ctx := context.Background()
	c := createCharacter(t, s, "Adventurer")
	q, err := e.Create(ctx, &models.Quest{
		Name: "Two Parts",
		Objectives: []*models.Objective{
			{Description: "part one", Required: 1},
			{Description: "part two", Required: 1},
		},
	})
	require.NoError(t, err)
	_, err = e.Assign(ctx, c.ID, q.ID)
	require.NoError(t, err)

	_, err = e.CompleteObjective(ctx, q.ID, q.Objectives[0].ID)
	require.NoError(t, err)
	_, err = e.Complete(ctx, c.ID, q.ID)
	require.Error(t, err)
	assert.Equal(t, rpgerr.KindConflict, rpgerr.KindOf(err))
}

func TestCompleteGrantsRewardsOnce(t *testing.T) {
	e, s := testEngine(t)
	ctx := context.Background()
	c := createCharacter(t, s, "Adventurer")

	sword := &models.Item{Name: "sword", Type: models.ItemWeapon, Value: 50}
	require.NoError(t, s.Items.Create(ctx, sword))

	q, err := e.Create(ctx, &models.Quest{
		Name:       "Reward Run",
		Objectives: []*models.Objective{{Description: "win", Required: 1}},
		Rewards: models.QuestRewards{
			Experience: 100, Gold: 25,
			Items: []string{sword.ID, "missing-item"},
		},
	})
	require.NoError(t, err)
	_, err = e.Assign(ctx, c.ID, q.ID)
	require.NoError(t, err)
	_, err = e.CompleteObjective(ctx, q.ID, q.Objectives[0].ID)
	require.NoError(t, err)

	res, err := e.Complete(ctx, c.ID, q.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, res.Experience)
	assert.Equal(t, 25, res.Gold)
	assert.Equal(t, []string{sword.ID}, res.ItemsGranted)
	assert.Equal(t, []string{"missing-item"}, res.ItemsMissing, "missing items noted, not blocking")

	entry, err := s.Inventory.Get(ctx, c.ID, sword.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, entry.Quantity)

	// Completing again is rejected; rewards are not double-granted.
	_, err = e.Complete(ctx, c.ID, q.ID)
	require.Error(t, err)
	assert.Equal(t, rpgerr.KindConflict, rpgerr.KindOf(err))
	entry, err = s.Inventory.Get(ctx, c.ID, sword.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, entry.Quantity)
}

func TestGetLogHydrates(t *testing.T) {
	e, s := testEngine(t)
	ctx := context.Background()
	c := createCharacter(t, s, "Adventurer")
	q, err := e.Create(ctx, &models.Quest{
		Name:       "Tracked",
		Objectives: []*models.Objective{{Description: "find the shrine", Required: 2}},
	})
	require.NoError(t, err)
	_, err = e.Assign(ctx, c.ID, q.ID)
	require.NoError(t, err)
	_, err = e.UpdateObjective(ctx, q.ID, q.Objectives[0].ID, 1)
	require.NoError(t, err)

	view, err := e.GetLog(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, view.Active, 1)
	assert.Equal(t, "Tracked", view.Active[0].Quest.Name)
	assert.Equal(t, []string{"find the shrine: 1/2"}, view.Active[0].Progress)
	assert.Empty(t, view.Completed)
}
