package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/mnehmos/questforge/internal/rpgerr"
	"github.com/mnehmos/questforge/pkg/models"
)

// QuestRepo owns the quests table.
type QuestRepo struct {
	s *Store
}

func validateQuest(q *models.Quest) error {
	if q.Name == "" {
		return rpgerr.New(rpgerr.KindValidation, "quest name is required")
	}
	for _, o := range q.Objectives {
		if o.Required < 1 {
			return rpgerr.New(rpgerr.KindValidation, "objective %q required must be at least 1", o.Description)
		}
		if o.Current < 0 {
			return rpgerr.New(rpgerr.KindValidation, "objective %q current must be non-negative", o.Description)
		}
		if o.Completed != (o.Current >= o.Required) {
			return rpgerr.New(rpgerr.KindInvariant,
				"objective %q completed flag disagrees with progress %d/%d", o.Description, o.Current, o.Required)
		}
	}
	return nil
}

// Create inserts a quest, generating quest and objective IDs when
// absent and rejecting prerequisite cycles.
func (r *QuestRepo) Create(ctx context.Context, q *models.Quest) error {
	if q.ID == "" {
		q.ID = uuid.New().String()
	}
	for _, o := range q.Objectives {
		if o.ID == "" {
			o.ID = uuid.New().String()
		}
		o.Completed = o.Current >= o.Required
	}
	if q.Status == "" {
		q.Status = models.QuestAvailable
	}
	if err := validateQuest(q); err != nil {
		return err
	}
	if err := r.checkCycle(ctx, q); err != nil {
		return err
	}
	now := time.Now().UTC()
	q.CreatedAt, q.UpdatedAt = now, now
	return r.write(ctx, q, true)
}

// Update rewrites a quest definition, keeping the cycle check.
func (r *QuestRepo) Update(ctx context.Context, q *models.Quest) error {
	if err := validateQuest(q); err != nil {
		return err
	}
	if err := r.checkCycle(ctx, q); err != nil {
		return err
	}
	q.UpdatedAt = time.Now().UTC()
	return r.write(ctx, q, false)
}

func (r *QuestRepo) write(ctx context.Context, q *models.Quest, insert bool) error {
	objectives, err := encodeJSON(q.Objectives)
	if err != nil {
		return rpgerr.Wrap(err, rpgerr.KindStorage, "encode objectives")
	}
	rewards, err := encodeJSON(q.Rewards)
	if err != nil {
		return rpgerr.Wrap(err, rpgerr.KindStorage, "encode rewards")
	}
	prereqs, err := encodeJSON(q.Prerequisites)
	if err != nil {
		return rpgerr.Wrap(err, rpgerr.KindStorage, "encode prerequisites")
	}
	if insert {
		_, err = r.s.db.ExecContext(ctx, `
			INSERT INTO quests (id, world_id, name, description, status, objectives, rewards, prerequisites, giver, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			q.ID, nullable(q.WorldID), q.Name, q.Description, string(q.Status),
			objectives, rewards, prereqs, nullable(q.Giver), q.CreatedAt, q.UpdatedAt)
		if err != nil {
			return rpgerr.Wrap(err, rpgerr.KindStorage, "insert quest %s", q.ID)
		}
		return nil
	}
	res, err := r.s.db.ExecContext(ctx, `
		UPDATE quests SET world_id=?, name=?, description=?, status=?, objectives=?, rewards=?, prerequisites=?, giver=?, updated_at=?
		WHERE id=?`,
		nullable(q.WorldID), q.Name, q.Description, string(q.Status),
		objectives, rewards, prereqs, nullable(q.Giver), q.UpdatedAt, q.ID)
	if err != nil {
		return rpgerr.Wrap(err, rpgerr.KindStorage, "update quest %s", q.ID)
	}
	return requireRow(res, "quest", q.ID)
}

// checkCycle walks the prerequisite graph from q and rejects any path
// leading back to q. Prerequisite IDs not yet in the store are allowed;
// they cannot close a cycle until they exist.
func (r *QuestRepo) checkCycle(ctx context.Context, q *models.Quest) error {
	seen := map[string]bool{q.ID: true}
	frontier := append([]string(nil), q.Prerequisites...)
	for len(frontier) > 0 {
		id := frontier[0]
		frontier = frontier[1:]
		if id == q.ID {
			return rpgerr.New(rpgerr.KindInvariant, "quest %s prerequisite chain forms a cycle", q.ID)
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		next, err := r.FindByID(ctx, id)
		if err != nil {
			if rpgerr.KindOf(err) == rpgerr.KindNotFound {
				continue
			}
			return err
		}
		frontier = append(frontier, next.Prerequisites...)
	}
	return nil
}

// FindByID fetches a quest, re-validating the stored row.
func (r *QuestRepo) FindByID(ctx context.Context, id string) (*models.Quest, error) {
	var q models.Quest
	var worldID, giver sql.NullString
	var status, objectives, rewards, prereqs string
	err := r.s.db.QueryRowContext(ctx, `
		SELECT id, world_id, name, description, status, objectives, rewards, prerequisites, giver, created_at, updated_at
		FROM quests WHERE id=?`, id).
		Scan(&q.ID, &worldID, &q.Name, &q.Description, &status, &objectives, &rewards, &prereqs, &giver, &q.CreatedAt, &q.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, rpgerr.New(rpgerr.KindNotFound, "quest %s not found", id)
	}
	if err != nil {
		return nil, rpgerr.Wrap(err, rpgerr.KindStorage, "scan quest %s", id)
	}
	q.WorldID, q.Giver, q.Status = worldID.String, giver.String, models.QuestStatus(status)
	if err := decodeJSON(sql.NullString{String: objectives, Valid: true}, &q.Objectives); err != nil {
		return nil, rpgerr.Wrap(err, rpgerr.KindStorage, "decode objectives for %s", id)
	}
	if err := decodeJSON(sql.NullString{String: rewards, Valid: true}, &q.Rewards); err != nil {
		return nil, rpgerr.Wrap(err, rpgerr.KindStorage, "decode rewards for %s", id)
	}
	if err := decodeJSON(sql.NullString{String: prereqs, Valid: true}, &q.Prerequisites); err != nil {
		return nil, rpgerr.Wrap(err, rpgerr.KindStorage, "decode prerequisites for %s", id)
	}
	if err := validateQuest(&q); err != nil {
		return nil, rpgerr.Wrap(err, rpgerr.KindStorage, "stored quest %s fails validation", id)
	}
	return &q, nil
}

// List returns all quests, optionally filtered by world.
func (r *QuestRepo) List(ctx context.Context, worldID string) ([]*models.Quest, error) {
	query := `SELECT id FROM quests ORDER BY name`
	args := []any{}
	if worldID != "" {
		query = `SELECT id FROM quests WHERE world_id=? ORDER BY name`
		args = append(args, worldID)
	}
	rows, err := r.s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, rpgerr.Wrap(err, rpgerr.KindStorage, "list quests")
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, rpgerr.Wrap(err, rpgerr.KindStorage, "scan quest id")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, rpgerr.Wrap(err, rpgerr.KindStorage, "list quests")
	}
	out := make([]*models.Quest, 0, len(ids))
	for _, id := range ids {
		q, err := r.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, nil
}

// Delete removes a quest definition.
func (r *QuestRepo) Delete(ctx context.Context, id string) error {
	res, err := r.s.db.ExecContext(ctx, `DELETE FROM quests WHERE id=?`, id)
	if err != nil {
		return rpgerr.Wrap(err, rpgerr.KindStorage, "delete quest %s", id)
	}
	return requireRow(res, "quest", id)
}

// QuestLogRepo owns per-character quest logs.
type QuestLogRepo struct {
	s *Store
}

// Get returns the character's quest log, creating an empty one on
// first access.
func (r *QuestLogRepo) Get(ctx context.Context, characterID string) (*models.QuestLog, error) {
	var log models.QuestLog
	var active, completed, failed string
	err := r.s.db.QueryRowContext(ctx, `
		SELECT character_id, active_quests, completed_quests, failed_quests
		FROM quest_logs WHERE character_id=?`, characterID).
		Scan(&log.CharacterID, &active, &completed, &failed)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.QuestLog{
			CharacterID:     characterID,
			ActiveQuests:    []string{},
			CompletedQuests: []string{},
			FailedQuests:    []string{},
		}, nil
	}
	if err != nil {
		return nil, rpgerr.Wrap(err, rpgerr.KindStorage, "scan quest log for %s", characterID)
	}
	for _, col := range []struct {
		raw string
		dst *[]string
	}{
		{active, &log.ActiveQuests},
		{completed, &log.CompletedQuests},
		{failed, &log.FailedQuests},
	} {
		if err := decodeJSON(sql.NullString{String: col.raw, Valid: true}, col.dst); err != nil {
			return nil, rpgerr.Wrap(err, rpgerr.KindStorage, "decode quest log for %s", characterID)
		}
	}
	return &log, nil
}

// Save upserts the character's quest log.
func (r *QuestLogRepo) Save(ctx context.Context, log *models.QuestLog) error {
	return r.save(ctx, r.s.db, log)
}

// SaveTx is Save inside an existing transaction.
func (r *QuestLogRepo) SaveTx(ctx context.Context, tx *sql.Tx, log *models.QuestLog) error {
	return r.save(ctx, tx, log)
}

func (r *QuestLogRepo) save(ctx context.Context, q querier, log *models.QuestLog) error {
	active, err := encodeJSON(log.ActiveQuests)
	if err != nil {
		return rpgerr.Wrap(err, rpgerr.KindStorage, "encode active quests")
	}
	completed, err := encodeJSON(log.CompletedQuests)
	if err != nil {
		return rpgerr.Wrap(err, rpgerr.KindStorage, "encode completed quests")
	}
	failed, err := encodeJSON(log.FailedQuests)
	if err != nil {
		return rpgerr.Wrap(err, rpgerr.KindStorage, "encode failed quests")
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO quest_logs (character_id, active_quests, completed_quests, failed_quests)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(character_id) DO UPDATE SET
			active_quests=excluded.active_quests,
			completed_quests=excluded.completed_quests,
			failed_quests=excluded.failed_quests`,
		log.CharacterID, active, completed, failed)
	if err != nil {
		return rpgerr.Wrap(err, rpgerr.KindStorage, "save quest log for %s", log.CharacterID)
	}
	return nil
}
