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

// CharacterRepo owns the characters table.
type CharacterRepo struct {
	s *Store
}

func validateCharacter(c *models.Character) error {
	if c.Name == "" {
		return rpgerr.New(rpgerr.KindValidation, "character name is required")
	}
	if c.MaxHP < 1 {
		return rpgerr.New(rpgerr.KindValidation, "character maxHp must be at least 1")
	}
	if c.HP < 0 || c.HP > c.MaxHP {
		return rpgerr.New(rpgerr.KindInvariant, "character hp %d outside [0, %d]", c.HP, c.MaxHP)
	}
	switch c.CharacterType {
	case models.CharacterPC, models.CharacterNPC, models.CharacterEnemy, models.CharacterAlly:
	case "":
		c.CharacterType = models.CharacterNPC
	default:
		return rpgerr.New(rpgerr.KindValidation, "unknown character type %q", c.CharacterType)
	}
	return nil
}

// Create inserts a character, generating an ID when absent.
func (r *CharacterRepo) Create(ctx context.Context, c *models.Character) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.HitDie == 0 {
		c.HitDie = 8
	}
	if c.Level == 0 {
		c.Level = 1
	}
	if err := validateCharacter(c); err != nil {
		return err
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now

	stats, err := encodeJSON(c.Stats)
	if err != nil {
		return rpgerr.Wrap(err, rpgerr.KindStorage, "encode character stats")
	}
	_, err = r.s.db.ExecContext(ctx, `
		INSERT INTO characters (id, name, stats, hp, max_hp, ac, level, hit_die, faction_id, behavior, character_type, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, stats, c.HP, c.MaxHP, c.AC, c.Level, c.HitDie,
		nullable(c.FactionID), nullable(c.Behavior), string(c.CharacterType), c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return rpgerr.Wrap(err, rpgerr.KindStorage, "insert character %s", c.ID)
	}
	return nil
}

// FindByID fetches a character, re-validating the stored row.
func (r *CharacterRepo) FindByID(ctx context.Context, id string) (*models.Character, error) {
	return scanCharacter(r.s.db.QueryRowContext(ctx, `
		SELECT id, name, stats, hp, max_hp, ac, level, hit_die, faction_id, behavior, character_type, created_at, updated_at
		FROM characters WHERE id = ?`, id), id)
}

// Update persists mutable character fields.
func (r *CharacterRepo) Update(ctx context.Context, c *models.Character) error {
	if err := validateCharacter(c); err != nil {
		return err
	}
	c.UpdatedAt = time.Now().UTC()
	stats, err := encodeJSON(c.Stats)
	if err != nil {
		return rpgerr.Wrap(err, rpgerr.KindStorage, "encode character stats")
	}
	res, err := r.s.db.ExecContext(ctx, `
		UPDATE characters SET name=?, stats=?, hp=?, max_hp=?, ac=?, level=?, hit_die=?, faction_id=?, behavior=?, character_type=?, updated_at=?
		WHERE id=?`,
		c.Name, stats, c.HP, c.MaxHP, c.AC, c.Level, c.HitDie,
		nullable(c.FactionID), nullable(c.Behavior), string(c.CharacterType), c.UpdatedAt, c.ID)
	if err != nil {
		return rpgerr.Wrap(err, rpgerr.KindStorage, "update character %s", c.ID)
	}
	return requireRow(res, "character", c.ID)
}

// SetHPTx writes a character's hit points inside an existing
// transaction. Used by the encounter write-back.
func (r *CharacterRepo) SetHPTx(ctx context.Context, tx *sql.Tx, id string, hp int) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE characters SET hp=?, updated_at=? WHERE id=?`,
		hp, time.Now().UTC(), id)
	if err != nil {
		return rpgerr.Wrap(err, rpgerr.KindStorage, "write back hp for %s", id)
	}
	return requireRow(res, "character", id)
}

// ExistsTx reports whether a character row exists, inside a transaction.
func (r *CharacterRepo) ExistsTx(ctx context.Context, tx *sql.Tx, id string) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM characters WHERE id=?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, rpgerr.Wrap(err, rpgerr.KindStorage, "probe character %s", id)
	}
	return true, nil
}

// Delete removes a character; inventory, quest log and spells cascade.
// Custom effects have no foreign key to characters and are not removed.
func (r *CharacterRepo) Delete(ctx context.Context, id string) error {
	res, err := r.s.db.ExecContext(ctx, `DELETE FROM characters WHERE id=?`, id)
	if err != nil {
		return rpgerr.Wrap(err, rpgerr.KindStorage, "delete character %s", id)
	}
	return requireRow(res, "character", id)
}

// List returns all characters ordered by name.
func (r *CharacterRepo) List(ctx context.Context) ([]*models.Character, error) {
	rows, err := r.s.db.QueryContext(ctx, `
		SELECT id, name, stats, hp, max_hp, ac, level, hit_die, faction_id, behavior, character_type, created_at, updated_at
		FROM characters ORDER BY name`)
	if err != nil {
		return nil, rpgerr.Wrap(err, rpgerr.KindStorage, "list characters")
	}
	defer rows.Close()

	var out []*models.Character
	for rows.Next() {
		c, err := scanCharacterRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCharacter(row *sql.Row, id string) (*models.Character, error) {
	c, err := scanCharacterRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, rpgerr.New(rpgerr.KindNotFound, "character %s not found", id)
	}
	return c, err
}

func scanCharacterRow(row rowScanner) (*models.Character, error) {
	var c models.Character
	var stats string
	var faction, behavior sql.NullString
	var ctype string
	if err := row.Scan(&c.ID, &c.Name, &stats, &c.HP, &c.MaxHP, &c.AC, &c.Level, &c.HitDie,
		&faction, &behavior, &ctype, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, rpgerr.Wrap(err, rpgerr.KindStorage, "scan character")
	}
	if err := decodeJSON(sql.NullString{String: stats, Valid: true}, &c.Stats); err != nil {
		return nil, rpgerr.Wrap(err, rpgerr.KindStorage, "decode character stats")
	}
	c.FactionID, c.Behavior = faction.String, behavior.String
	c.CharacterType = models.CharacterType(ctype)
	if err := validateCharacter(&c); err != nil {
		return nil, rpgerr.Wrap(err, rpgerr.KindStorage, "stored character %s fails validation", c.ID)
	}
	return &c, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func requireRow(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return rpgerr.Wrap(err, rpgerr.KindStorage, "rows affected")
	}
	if n == 0 {
		return rpgerr.New(rpgerr.KindNotFound, "%s %s not found", entity, id)
	}
	return nil
}
