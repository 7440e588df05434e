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

// LogRepo owns the append-only audit_logs, event_logs and calculations
// tables. It satisfies audit.Sink and events.Store.
type LogRepo struct {
	s *Store
}

// AppendAudit inserts an audit entry and returns its monotonic ID.
func (r *LogRepo) AppendAudit(entry *models.AuditEntry) (int64, error) {
	var details any
	if len(entry.Details) > 0 {
		details = string(entry.Details)
	}
	res, err := r.s.db.Exec(`
		INSERT INTO audit_logs (action, actor_id, target_id, details, timestamp)
		VALUES (?, ?, ?, ?, ?)`,
		entry.Action, nullable(entry.ActorID), nullable(entry.TargetID), details, entry.Timestamp)
	if err != nil {
		return 0, rpgerr.Wrap(err, rpgerr.KindStorage, "append audit entry")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, rpgerr.Wrap(err, rpgerr.KindStorage, "audit entry id")
	}
	return id, nil
}

// RecentAudit returns the latest n audit entries, newest first.
func (r *LogRepo) RecentAudit(ctx context.Context, n int) ([]*models.AuditEntry, error) {
	rows, err := r.s.db.QueryContext(ctx, `
		SELECT id, action, actor_id, target_id, details, timestamp
		FROM audit_logs ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, rpgerr.Wrap(err, rpgerr.KindStorage, "query audit log")
	}
	defer rows.Close()
	var out []*models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		var actor, target, details sql.NullString
		if err := rows.Scan(&e.ID, &e.Action, &actor, &target, &details, &e.Timestamp); err != nil {
			return nil, rpgerr.Wrap(err, rpgerr.KindStorage, "scan audit entry")
		}
		e.ActorID, e.TargetID = actor.String, target.String
		if details.Valid {
			e.Details = []byte(details.String)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// AppendEvent persists a published event.
func (r *LogRepo) AppendEvent(entry *models.EventEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	var payload any
	if len(entry.Payload) > 0 {
		payload = string(entry.Payload)
	}
	_, err := r.s.db.Exec(`
		INSERT INTO event_logs (id, type, payload, timestamp)
		VALUES (?, ?, ?, ?)`,
		entry.ID, entry.Type, payload, entry.Timestamp)
	return rpgerr.Wrap(err, rpgerr.KindStorage, "append event entry")
}

// RecordCalculation stores one dice resolution for later audit.
func (r *LogRepo) RecordCalculation(ctx context.Context, kind, seed, expression string, result int, rolls []int) error {
	encoded, err := encodeJSON(rolls)
	if err != nil {
		return rpgerr.Wrap(err, rpgerr.KindStorage, "encode rolls")
	}
	_, err = r.s.db.ExecContext(ctx, `
		INSERT INTO calculations (kind, seed, expression, result, rolls, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)`,
		kind, seed, expression, result, encoded, time.Now().UTC())
	return rpgerr.Wrap(err, rpgerr.KindStorage, "record calculation")
}

// TurnStateRepo owns the per-world day counter that drives heat decay
// and fence capacity resets.
type TurnStateRepo struct {
	s *Store
}

// Day returns the current simulated day for a world. Worlds created
// before turn-state tracking default to day 0.
func (r *TurnStateRepo) Day(ctx context.Context, worldID string) (int, error) {
	var day int
	err := r.s.db.QueryRowContext(ctx,
		`SELECT day FROM turn_state WHERE world_id=?`, worldID).Scan(&day)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, rpgerr.Wrap(err, rpgerr.KindStorage, "read turn state for %s", worldID)
	}
	return day, nil
}

// Advance moves the world clock forward by days and returns the new
// day number.
func (r *TurnStateRepo) Advance(ctx context.Context, worldID string, days int) (int, error) {
	if days < 0 {
		return 0, rpgerr.New(rpgerr.KindValidation, "cannot advance time backwards")
	}
	_, err := r.s.db.ExecContext(ctx, `
		INSERT INTO turn_state (world_id, day) VALUES (?, ?)
		ON CONFLICT(world_id) DO UPDATE SET day = day + ?`,
		worldID, days, days)
	if err != nil {
		return 0, rpgerr.Wrap(err, rpgerr.KindStorage, "advance turn state for %s", worldID)
	}
	return r.Day(ctx, worldID)
}

// PatchRepo owns the patches table: the record of map patch DSL
// applications.
type PatchRepo struct {
	s *Store
}

// Patch is one stored patch document.
type Patch struct {
	ID        string    `json:"id"`
	WorldID   string    `json:"worldId"`
	Ops       []byte    `json:"ops"`
	Applied   bool      `json:"applied"`
	CreatedAt time.Time `json:"createdAt"`
}

// Record stores a patch document and whether it was applied (as
// opposed to previewed).
func (r *PatchRepo) Record(ctx context.Context, worldID string, ops []byte, applied bool) (string, error) {
	id := uuid.New().String()
	_, err := r.s.db.ExecContext(ctx, `
		INSERT INTO patches (id, world_id, ops, applied, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		id, worldID, string(ops), boolInt(applied), time.Now().UTC())
	if err != nil {
		return "", rpgerr.Wrap(err, rpgerr.KindStorage, "record patch for %s", worldID)
	}
	return id, nil
}

// ListByWorld returns a world's patch history, oldest first.
func (r *PatchRepo) ListByWorld(ctx context.Context, worldID string) ([]*Patch, error) {
	rows, err := r.s.db.QueryContext(ctx, `
		SELECT id, world_id, ops, applied, created_at FROM patches
		WHERE world_id=? ORDER BY created_at`, worldID)
	if err != nil {
		return nil, rpgerr.Wrap(err, rpgerr.KindStorage, "list patches for %s", worldID)
	}
	defer rows.Close()
	var out []*Patch
	for rows.Next() {
		var p Patch
		var ops string
		var applied int
		if err := rows.Scan(&p.ID, &p.WorldID, &ops, &applied, &p.CreatedAt); err != nil {
			return nil, rpgerr.Wrap(err, rpgerr.KindStorage, "scan patch")
		}
		p.Ops, p.Applied = []byte(ops), applied != 0
		out = append(out, &p)
	}
	return out, rows.Err()
}
