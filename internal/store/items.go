package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/mnehmos/questforge/internal/rpgerr"
	"github.com/mnehmos/questforge/pkg/models"
)

// ItemRepo owns the items table.
type ItemRepo struct {
	s *Store
}

func validateItem(i *models.Item) error {
	if i.Name == "" {
		return rpgerr.New(rpgerr.KindValidation, "item name is required")
	}
	switch i.Type {
	case models.ItemWeapon, models.ItemArmor, models.ItemConsumable, models.ItemQuest, models.ItemMisc:
	default:
		return rpgerr.New(rpgerr.KindValidation, "unknown item type %q", i.Type)
	}
	if i.Weight < 0 {
		return rpgerr.New(rpgerr.KindValidation, "item weight must be non-negative")
	}
	if i.Value < 0 {
		return rpgerr.New(rpgerr.KindValidation, "item value must be non-negative")
	}
	return nil
}

// Create inserts an item, generating an ID when absent.
func (r *ItemRepo) Create(ctx context.Context, i *models.Item) error {
	if i.ID == "" {
		i.ID = uuid.New().String()
	}
	if err := validateItem(i); err != nil {
		return err
	}
	var props any
	if len(i.Properties) > 0 {
		props = string(i.Properties)
	}
	_, err := r.s.db.ExecContext(ctx, `
		INSERT INTO items (id, name, type, weight, value, properties)
		VALUES (?, ?, ?, ?, ?, ?)`,
		i.ID, i.Name, string(i.Type), i.Weight, i.Value, props)
	if err != nil {
		return rpgerr.Wrap(err, rpgerr.KindStorage, "insert item %s", i.ID)
	}
	return nil
}

// FindByID fetches an item by ID.
func (r *ItemRepo) FindByID(ctx context.Context, id string) (*models.Item, error) {
	var i models.Item
	var itype string
	var props sql.NullString
	err := r.s.db.QueryRowContext(ctx,
		`SELECT id, name, type, weight, value, properties FROM items WHERE id=?`, id).
		Scan(&i.ID, &i.Name, &itype, &i.Weight, &i.Value, &props)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, rpgerr.New(rpgerr.KindNotFound, "item %s not found", id)
	}
	if err != nil {
		return nil, rpgerr.Wrap(err, rpgerr.KindStorage, "scan item %s", id)
	}
	i.Type = models.ItemType(itype)
	if props.Valid {
		i.Properties = []byte(props.String)
	}
	if err := validateItem(&i); err != nil {
		return nil, rpgerr.Wrap(err, rpgerr.KindStorage, "stored item %s fails validation", id)
	}
	return &i, nil
}

// Delete removes an item; inventory rows cascade.
func (r *ItemRepo) Delete(ctx context.Context, id string) error {
	res, err := r.s.db.ExecContext(ctx, `DELETE FROM items WHERE id=?`, id)
	if err != nil {
		return rpgerr.Wrap(err, rpgerr.KindStorage, "delete item %s", id)
	}
	return requireRow(res, "item", id)
}
