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

// EncounterRepo owns encounters and the battlefield table. Tokens are
// stored as a JSON column; terrain obstacles live in battlefield and
// cascade with the encounter.
type EncounterRepo struct {
	s *Store
}

func validateEncounter(e *models.Encounter) error {
	if len(e.Tokens) == 0 {
		return rpgerr.New(rpgerr.KindValidation, "encounter requires at least one participant")
	}
	if e.Round < 0 {
		return rpgerr.New(rpgerr.KindValidation, "encounter round must be non-negative")
	}
	switch e.Status {
	case models.EncounterActive, models.EncounterPaused, models.EncounterCompleted:
	default:
		return rpgerr.New(rpgerr.KindValidation, "unknown encounter status %q", e.Status)
	}
	for _, t := range e.Tokens {
		if t.HP < 0 || t.HP > t.MaxHP {
			return rpgerr.New(rpgerr.KindInvariant,
				"token %s hp %d outside [0, %d]", t.ID, t.HP, t.MaxHP)
		}
	}
	return nil
}

// Create inserts an encounter with its battlefield row.
func (r *EncounterRepo) Create(ctx context.Context, e *models.Encounter) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if err := validateEncounter(e); err != nil {
		return err
	}
	now := time.Now().UTC()
	e.CreatedAt, e.UpdatedAt = now, now
	tokens, err := encodeJSON(e.Tokens)
	if err != nil {
		return rpgerr.Wrap(err, rpgerr.KindStorage, "encode tokens")
	}
	return r.s.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO encounters (id, seed, tokens, round, current_turn_index, active_token_id, status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.Seed, tokens, e.Round, e.CurrentTurnIndex,
			nullable(e.ActiveTokenID), string(e.Status), e.CreatedAt, e.UpdatedAt); err != nil {
			return rpgerr.Wrap(err, rpgerr.KindStorage, "insert encounter %s", e.ID)
		}
		if e.Terrain != nil {
			obstacles, err := encodeJSON(e.Terrain.Obstacles)
			if err != nil {
				return rpgerr.Wrap(err, rpgerr.KindStorage, "encode obstacles")
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO battlefield (encounter_id, obstacles) VALUES (?, ?)`,
				e.ID, obstacles); err != nil {
				return rpgerr.Wrap(err, rpgerr.KindStorage, "insert battlefield for %s", e.ID)
			}
		}
		return nil
	})
}

// FindByID fetches an encounter with its battlefield terrain.
func (r *EncounterRepo) FindByID(ctx context.Context, id string) (*models.Encounter, error) {
	var e models.Encounter
	var tokens string
	var active sql.NullString
	var status string
	err := r.s.db.QueryRowContext(ctx, `
		SELECT id, seed, tokens, round, current_turn_index, active_token_id, status, created_at, updated_at
		FROM encounters WHERE id=?`, id).
		Scan(&e.ID, &e.Seed, &tokens, &e.Round, &e.CurrentTurnIndex, &active, &status, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, rpgerr.New(rpgerr.KindNotFound, "encounter %s not found", id)
	}
	if err != nil {
		return nil, rpgerr.Wrap(err, rpgerr.KindStorage, "scan encounter %s", id)
	}
	if err := decodeJSON(sql.NullString{String: tokens, Valid: true}, &e.Tokens); err != nil {
		return nil, rpgerr.Wrap(err, rpgerr.KindStorage, "decode tokens for %s", id)
	}
	e.ActiveTokenID, e.Status = active.String, models.EncounterStatus(status)

	var obstacles sql.NullString
	err = r.s.db.QueryRowContext(ctx,
		`SELECT obstacles FROM battlefield WHERE encounter_id=?`, id).Scan(&obstacles)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, rpgerr.Wrap(err, rpgerr.KindStorage, "scan battlefield for %s", id)
	}
	if obstacles.Valid {
		var t models.Terrain
		if err := decodeJSON(obstacles, &t.Obstacles); err != nil {
			return nil, rpgerr.Wrap(err, rpgerr.KindStorage, "decode obstacles for %s", id)
		}
		e.Terrain = &t
	}
	if err := validateEncounter(&e); err != nil {
		return nil, rpgerr.Wrap(err, rpgerr.KindStorage, "stored encounter %s fails validation", id)
	}
	return &e, nil
}

// Update persists the mutable encounter fields (tokens, round, turn,
// active token, status).
func (r *EncounterRepo) Update(ctx context.Context, e *models.Encounter) error {
	return r.s.WithTx(ctx, func(tx *sql.Tx) error {
		return r.UpdateTx(ctx, tx, e)
	})
}

// UpdateTx is Update inside an existing transaction, for the
// end-encounter write-back.
func (r *EncounterRepo) UpdateTx(ctx context.Context, tx *sql.Tx, e *models.Encounter) error {
	if err := validateEncounter(e); err != nil {
		return err
	}
	e.UpdatedAt = time.Now().UTC()
	tokens, err := encodeJSON(e.Tokens)
	if err != nil {
		return rpgerr.Wrap(err, rpgerr.KindStorage, "encode tokens")
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE encounters SET tokens=?, round=?, current_turn_index=?, active_token_id=?, status=?, updated_at=?
		WHERE id=?`,
		tokens, e.Round, e.CurrentTurnIndex, nullable(e.ActiveTokenID), string(e.Status), e.UpdatedAt, e.ID)
	if err != nil {
		return rpgerr.Wrap(err, rpgerr.KindStorage, "update encounter %s", e.ID)
	}
	return requireRow(res, "encounter", e.ID)
}

// Delete removes an encounter; the battlefield row cascades.
func (r *EncounterRepo) Delete(ctx context.Context, id string) error {
	res, err := r.s.db.ExecContext(ctx, `DELETE FROM encounters WHERE id=?`, id)
	if err != nil {
		return rpgerr.Wrap(err, rpgerr.KindStorage, "delete encounter %s", id)
	}
	return requireRow(res, "encounter", id)
}
