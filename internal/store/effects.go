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

// EffectRepo owns custom_effects. Mechanics and triggers are opaque
// JSON columns with a strict outer schema.
type EffectRepo struct {
	s *Store
}

func validateEffect(e *models.CustomEffect) error {
	if e.Name == "" || e.TargetID == "" {
		return rpgerr.New(rpgerr.KindValidation, "effect requires a name and target")
	}
	switch e.Category {
	case models.EffectBoon, models.EffectCurse, models.EffectNeutral, models.EffectTransformative:
	default:
		return rpgerr.New(rpgerr.KindValidation, "unknown effect category %q", e.Category)
	}
	if e.PowerLevel < 1 || e.PowerLevel > 5 {
		return rpgerr.New(rpgerr.KindValidation, "effect power level %d outside [1, 5]", e.PowerLevel)
	}
	switch e.Duration.Type {
	case models.DurationRounds, models.DurationMinutes, models.DurationHours,
		models.DurationDays, models.DurationPermanent, models.DurationUntilRemoved:
	default:
		return rpgerr.New(rpgerr.KindValidation, "unknown duration type %q", e.Duration.Type)
	}
	return nil
}

// Create stores a new active effect.
func (r *EffectRepo) Create(ctx context.Context, e *models.CustomEffect) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if err := validateEffect(e); err != nil {
		return err
	}
	e.IsActive = true
	e.CreatedAt = time.Now().UTC()
	mechanics, err := encodeJSON(e.Mechanics)
	if err != nil {
		return rpgerr.Wrap(err, rpgerr.KindStorage, "encode mechanics")
	}
	triggers, err := encodeJSON(e.Triggers)
	if err != nil {
		return rpgerr.Wrap(err, rpgerr.KindStorage, "encode triggers")
	}
	_, err = r.s.db.ExecContext(ctx, `
		INSERT INTO custom_effects (id, target_id, target_type, source_type, name, category, power_level, mechanics, duration_type, duration_value, triggers, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?)`,
		e.ID, e.TargetID, e.TargetType, nullable(e.SourceType), e.Name, string(e.Category),
		e.PowerLevel, mechanics, string(e.Duration.Type), e.Duration.Value, triggers, e.CreatedAt)
	if err != nil {
		return rpgerr.Wrap(err, rpgerr.KindStorage, "insert effect %s", e.ID)
	}
	return nil
}

// Query filters effects by target, with optional category, source type
// and active-only narrowing.
type EffectQuery struct {
	TargetID   string
	Category   models.EffectCategory
	SourceType string
	ActiveOnly bool
}

// Find returns effects matching the query, oldest first.
func (r *EffectRepo) Find(ctx context.Context, q EffectQuery) ([]*models.CustomEffect, error) {
	query := `SELECT id, target_id, target_type, source_type, name, category, power_level, mechanics, duration_type, duration_value, triggers, is_active, created_at
		FROM custom_effects WHERE target_id=?`
	args := []any{q.TargetID}
	if q.Category != "" {
		query += ` AND category=?`
		args = append(args, string(q.Category))
	}
	if q.SourceType != "" {
		query += ` AND source_type=?`
		args = append(args, q.SourceType)
	}
	if q.ActiveOnly {
		query += ` AND is_active=1`
	}
	query += ` ORDER BY created_at`
	rows, err := r.s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, rpgerr.Wrap(err, rpgerr.KindStorage, "query effects for %s", q.TargetID)
	}
	defer rows.Close()
	var out []*models.CustomEffect
	for rows.Next() {
		e, err := scanEffect(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// FindByID fetches one effect.
func (r *EffectRepo) FindByID(ctx context.Context, id string) (*models.CustomEffect, error) {
	row := r.s.db.QueryRowContext(ctx, `
		SELECT id, target_id, target_type, source_type, name, category, power_level, mechanics, duration_type, duration_value, triggers, is_active, created_at
		FROM custom_effects WHERE id=?`, id)
	e, err := scanEffect(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, rpgerr.New(rpgerr.KindNotFound, "effect %s not found", id)
	}
	return e, err
}

// Update persists duration and active-flag changes.
func (r *EffectRepo) Update(ctx context.Context, e *models.CustomEffect) error {
	res, err := r.s.db.ExecContext(ctx, `
		UPDATE custom_effects SET duration_type=?, duration_value=?, is_active=? WHERE id=?`,
		string(e.Duration.Type), e.Duration.Value, boolInt(e.IsActive), e.ID)
	if err != nil {
		return rpgerr.Wrap(err, rpgerr.KindStorage, "update effect %s", e.ID)
	}
	return requireRow(res, "effect", e.ID)
}

// Delete removes an effect outright.
func (r *EffectRepo) Delete(ctx context.Context, id string) error {
	res, err := r.s.db.ExecContext(ctx, `DELETE FROM custom_effects WHERE id=?`, id)
	if err != nil {
		return rpgerr.Wrap(err, rpgerr.KindStorage, "delete effect %s", id)
	}
	return requireRow(res, "effect", id)
}

// DeleteByName removes effects on a target by name, returning how many
// were removed.
func (r *EffectRepo) DeleteByName(ctx context.Context, targetID, name string) (int64, error) {
	res, err := r.s.db.ExecContext(ctx,
		`DELETE FROM custom_effects WHERE target_id=? AND name=?`, targetID, name)
	if err != nil {
		return 0, rpgerr.Wrap(err, rpgerr.KindStorage, "delete effects named %q", name)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// CleanupInactive deletes expired effects that have been flagged
// inactive.
func (r *EffectRepo) CleanupInactive(ctx context.Context) (int64, error) {
	res, err := r.s.db.ExecContext(ctx, `DELETE FROM custom_effects WHERE is_active=0`)
	if err != nil {
		return 0, rpgerr.Wrap(err, rpgerr.KindStorage, "cleanup inactive effects")
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func scanEffect(row rowScanner) (*models.CustomEffect, error) {
	var e models.CustomEffect
	var source sql.NullString
	var category, mechanics, durationType, triggers string
	var active int
	if err := row.Scan(&e.ID, &e.TargetID, &e.TargetType, &source, &e.Name, &category,
		&e.PowerLevel, &mechanics, &durationType, &e.Duration.Value, &triggers, &active, &e.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, rpgerr.Wrap(err, rpgerr.KindStorage, "scan effect")
	}
	if err := decodeJSON(sql.NullString{String: mechanics, Valid: true}, &e.Mechanics); err != nil {
		return nil, rpgerr.Wrap(err, rpgerr.KindStorage, "decode mechanics")
	}
	if err := decodeJSON(sql.NullString{String: triggers, Valid: true}, &e.Triggers); err != nil {
		return nil, rpgerr.Wrap(err, rpgerr.KindStorage, "decode triggers")
	}
	e.SourceType = source.String
	e.Category = models.EffectCategory(category)
	e.Duration.Type = models.DurationType(durationType)
	e.IsActive = active != 0
	return &e, nil
}

// SpellRepo owns synthesized_spells, the per-character spellbook of
// mastered syntheses.
type SpellRepo struct {
	s *Store
}

// Create adds a mastered spell to a character's spellbook.
func (r *SpellRepo) Create(ctx context.Context, sp *models.SynthesizedSpell) error {
	if sp.ID == "" {
		sp.ID = uuid.New().String()
	}
	if sp.CharacterID == "" || sp.Name == "" {
		return rpgerr.New(rpgerr.KindValidation, "synthesized spell requires a character and name")
	}
	sp.CreatedAt = time.Now().UTC()
	_, err := r.s.db.ExecContext(ctx, `
		INSERT INTO synthesized_spells (id, character_id, name, level, school, effect_type, effect_dice, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sp.ID, sp.CharacterID, sp.Name, sp.Level, sp.School, sp.EffectType,
		nullable(sp.EffectDice), sp.CreatedAt)
	if err != nil {
		return rpgerr.Wrap(err, rpgerr.KindStorage, "insert spell %s", sp.ID)
	}
	return nil
}

// ListByCharacter returns a character's synthesized spellbook.
func (r *SpellRepo) ListByCharacter(ctx context.Context, characterID string) ([]*models.SynthesizedSpell, error) {
	rows, err := r.s.db.QueryContext(ctx, `
		SELECT id, character_id, name, level, school, effect_type, effect_dice, created_at
		FROM synthesized_spells WHERE character_id=? ORDER BY created_at`, characterID)
	if err != nil {
		return nil, rpgerr.Wrap(err, rpgerr.KindStorage, "list spellbook for %s", characterID)
	}
	defer rows.Close()
	var out []*models.SynthesizedSpell
	for rows.Next() {
		var sp models.SynthesizedSpell
		var dice sql.NullString
		if err := rows.Scan(&sp.ID, &sp.CharacterID, &sp.Name, &sp.Level, &sp.School,
			&sp.EffectType, &dice, &sp.CreatedAt); err != nil {
			return nil, rpgerr.Wrap(err, rpgerr.KindStorage, "scan spell")
		}
		sp.EffectDice = dice.String
		out = append(out, &sp)
	}
	return out, rows.Err()
}
