// Package quest implements the quest lifecycle: creation, assignment
// with prerequisite chains, objective progress, and reward grants.
package quest

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mnehmos/questforge/internal/audit"
	"github.com/mnehmos/questforge/internal/events"
	"github.com/mnehmos/questforge/internal/rpgerr"
	"github.com/mnehmos/questforge/internal/store"
	"github.com/mnehmos/questforge/pkg/models"
)

// Engine applies quest rules over the repositories.
type Engine struct {
	store *store.Store
	audit *audit.Logger
	bus   *events.Bus
}

// New creates a quest engine.
func New(s *store.Store, a *audit.Logger, bus *events.Bus) *Engine {
	return &Engine{store: s, audit: a, bus: bus}
}

// Create persists a quest definition. IDs for the quest and any
// objectives missing them are generated; progress defaults to zero.
func (e *Engine) Create(ctx context.Context, q *models.Quest) (*models.Quest, error) {
	if err := e.store.Quests.Create(ctx, q); err != nil {
		return nil, err
	}
	e.audit.Record("quest.create", "", q.ID, map[string]any{"name": q.Name})
	e.bus.Publish("quest.created", q)
	return q, nil
}

// Get fetches a quest definition.
func (e *Engine) Get(ctx context.Context, questID string) (*models.Quest, error) {
	return e.store.Quests.FindByID(ctx, questID)
}

// List returns quests, optionally scoped to a world.
func (e *Engine) List(ctx context.Context, worldID string) ([]*models.Quest, error) {
	return e.store.Quests.List(ctx, worldID)
}

// Assign puts a quest in a character's active list. The character and
// quest must exist, the quest must not already be active or completed
// for that character, and every prerequisite must be in the
// character's completed list; a violation names the first missing
// prerequisite.
func (e *Engine) Assign(ctx context.Context, characterID, questID string) (*models.QuestLog, error) {
	if _, err := e.store.Characters.FindByID(ctx, characterID); err != nil {
		return nil, err
	}
	q, err := e.store.Quests.FindByID(ctx, questID)
	if err != nil {
		return nil, err
	}
	log, err := e.store.QuestLogs.Get(ctx, characterID)
	if err != nil {
		return nil, err
	}
	if log.Has(questID) {
		return nil, rpgerr.New(rpgerr.KindInvariant,
			"quest %s is already in %s's log", questID, characterID)
	}
	for _, prereq := range q.Prerequisites {
		if !log.HasCompleted(prereq) {
			return nil, rpgerr.New(rpgerr.KindInvariant,
				"quest %s requires completing %s first", questID, prereq).
				WithDetails(map[string]any{"missingPrerequisite": prereq})
		}
	}
	log.ActiveQuests = append(log.ActiveQuests, questID)
	if err := e.store.QuestLogs.Save(ctx, log); err != nil {
		return nil, err
	}
	e.audit.Record("quest.assign", characterID, questID, nil)
	e.bus.Publish("quest.assigned", map[string]string{"characterId": characterID, "questId": questID})
	return log, nil
}

// UpdateObjective adds delta to an objective's progress, clamped to
// its requirement. Completed and current move together, always.
func (e *Engine) UpdateObjective(ctx context.Context, questID, objectiveID string, delta int) (*models.Objective, error) {
	q, err := e.store.Quests.FindByID(ctx, questID)
	if err != nil {
		return nil, err
	}
	var obj *models.Objective
	for _, o := range q.Objectives {
		if o.ID == objectiveID {
			obj = o
			break
		}
	}
	if obj == nil {
		return nil, rpgerr.New(rpgerr.KindNotFound,
			"objective %s not found on quest %s", objectiveID, questID)
	}
	obj.Current += delta
	if obj.Current < 0 {
		obj.Current = 0
	}
	if obj.Current > obj.Required {
		obj.Current = obj.Required
	}
	obj.Completed = obj.Current >= obj.Required
	if err := e.store.Quests.Update(ctx, q); err != nil {
		return nil, err
	}
	e.audit.Record("quest.update_objective", "", questID, obj)
	return obj, nil
}

// CompleteObjective sets an objective straight to completed.
func (e *Engine) CompleteObjective(ctx context.Context, questID, objectiveID string) (*models.Objective, error) {
	q, err := e.store.Quests.FindByID(ctx, questID)
	if err != nil {
		return nil, err
	}
	for _, o := range q.Objectives {
		if o.ID == objectiveID {
			return e.UpdateObjective(ctx, questID, objectiveID, o.Required-o.Current)
		}
	}
	return nil, rpgerr.New(rpgerr.KindNotFound,
		"objective %s not found on quest %s", objectiveID, questID)
}

// CompletionResult reports a quest completion with its reward grant.
type CompletionResult struct {
	QuestID      string   `json:"questId"`
	CharacterID  string   `json:"characterId"`
	Experience   int      `json:"experience"`
	Gold         int      `json:"gold"`
	ItemsGranted []string `json:"itemsGranted"`
	ItemsMissing []string `json:"itemsMissing,omitempty"`
}

// Complete moves a quest from active to completed for a character.
// Every objective must be completed. Rewards grant once: item rewards
// go to the inventory (missing item definitions are noted but do not
// block), XP and gold are echoed informationally.
func (e *Engine) Complete(ctx context.Context, characterID, questID string) (*CompletionResult, error) {
	q, err := e.store.Quests.FindByID(ctx, questID)
	if err != nil {
		return nil, err
	}
	log, err := e.store.QuestLogs.Get(ctx, characterID)
	if err != nil {
		return nil, err
	}
	if log.HasCompleted(questID) {
		return nil, rpgerr.New(rpgerr.KindConflict,
			"quest %s is already completed for %s", questID, characterID)
	}
	active := -1
	for i, id := range log.ActiveQuests {
		if id == questID {
			active = i
			break
		}
	}
	if active < 0 {
		return nil, rpgerr.New(rpgerr.KindConflict,
			"quest %s is not active for %s", questID, characterID)
	}
	for _, o := range q.Objectives {
		if !o.Completed {
			return nil, rpgerr.New(rpgerr.KindConflict,
				"objective %q is incomplete (%d/%d)", o.Description, o.Current, o.Required)
		}
	}

	res := &CompletionResult{
		QuestID:      questID,
		CharacterID:  characterID,
		Experience:   q.Rewards.Experience,
		Gold:         q.Rewards.Gold,
		ItemsGranted: []string{},
	}
	// Resolve reward items before the write transaction; missing
	// definitions are noted, never blocking.
	for _, itemID := range q.Rewards.Items {
		if _, err := e.store.Items.FindByID(ctx, itemID); err != nil {
			if rpgerr.KindOf(err) == rpgerr.KindNotFound {
				res.ItemsMissing = append(res.ItemsMissing, itemID)
				continue
			}
			return nil, err
		}
		res.ItemsGranted = append(res.ItemsGranted, itemID)
	}

	log.ActiveQuests = append(log.ActiveQuests[:active], log.ActiveQuests[active+1:]...)
	log.CompletedQuests = append(log.CompletedQuests, questID)
	err = e.store.WithTx(ctx, func(tx *sql.Tx) error {
		for _, itemID := range res.ItemsGranted {
			if err := e.store.Inventory.AddTx(ctx, tx, characterID, itemID, 1); err != nil {
				return err
			}
		}
		return e.store.QuestLogs.SaveTx(ctx, tx, log)
	})
	if err != nil {
		return nil, err
	}
	e.audit.Record("quest.complete", characterID, questID, res)
	e.bus.Publish("quest.completed", res)
	return res, nil
}

// LogEntry is one hydrated quest in a quest-log view.
type LogEntry struct {
	Quest    *models.Quest `json:"quest"`
	Progress []string      `json:"progress"`
}

// LogView is a character's fully hydrated quest log.
type LogView struct {
	CharacterID string      `json:"characterId"`
	Active      []*LogEntry `json:"active"`
	Completed   []*LogEntry `json:"completed"`
	Failed      []*LogEntry `json:"failed"`
}

// GetLog hydrates a character's quest log into full quest objects with
// per-objective progress strings. IDs are resolved lazily, so
// prerequisite cycles in stored data cannot recurse.
func (e *Engine) GetLog(ctx context.Context, characterID string) (*LogView, error) {
	log, err := e.store.QuestLogs.Get(ctx, characterID)
	if err != nil {
		return nil, err
	}
	view := &LogView{CharacterID: characterID}
	for _, part := range []struct {
		ids []string
		dst *[]*LogEntry
	}{
		{log.ActiveQuests, &view.Active},
		{log.CompletedQuests, &view.Completed},
		{log.FailedQuests, &view.Failed},
	} {
		entries := make([]*LogEntry, 0, len(part.ids))
		for _, id := range part.ids {
			q, err := e.store.Quests.FindByID(ctx, id)
			if err != nil {
				if rpgerr.KindOf(err) == rpgerr.KindNotFound {
					continue
				}
				return nil, err
			}
			entry := &LogEntry{Quest: q}
			for _, o := range q.Objectives {
				entry.Progress = append(entry.Progress,
					fmt.Sprintf("%s: %d/%d", o.Description, o.Current, o.Required))
			}
			entries = append(entries, entry)
		}
		*part.dst = entries
	}
	return view, nil
}
