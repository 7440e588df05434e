package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/mnehmos/questforge/internal/rpgerr"
	"github.com/mnehmos/questforge/pkg/models"
)

// InventoryRepo owns the inventory_items table. It enforces the equip
// invariants: an equipped entry always has a slot, a slot holds at most
// one equipped item per character, and equipped stacks cannot move.
type InventoryRepo struct {
	s *Store
}

// Get returns one inventory entry or NotFound.
func (r *InventoryRepo) Get(ctx context.Context, characterID, itemID string) (*models.InventoryEntry, error) {
	return r.getQ(ctx, r.s.db, characterID, itemID)
}

func (r *InventoryRepo) getQ(ctx context.Context, q querier, characterID, itemID string) (*models.InventoryEntry, error) {
	var e models.InventoryEntry
	var equipped int
	var slot sql.NullString
	err := q.QueryRowContext(ctx, `
		SELECT character_id, item_id, quantity, equipped, slot
		FROM inventory_items WHERE character_id=? AND item_id=?`, characterID, itemID).
		Scan(&e.CharacterID, &e.ItemID, &e.Quantity, &equipped, &slot)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, rpgerr.New(rpgerr.KindNotFound, "character %s does not hold item %s", characterID, itemID)
	}
	if err != nil {
		return nil, rpgerr.Wrap(err, rpgerr.KindStorage, "scan inventory entry")
	}
	e.Equipped, e.Slot = equipped != 0, slot.String
	return &e, nil
}

// ListByCharacter returns every stack a character holds.
func (r *InventoryRepo) ListByCharacter(ctx context.Context, characterID string) ([]*models.InventoryEntry, error) {
	rows, err := r.s.db.QueryContext(ctx, `
		SELECT character_id, item_id, quantity, equipped, slot
		FROM inventory_items WHERE character_id=? ORDER BY item_id`, characterID)
	if err != nil {
		return nil, rpgerr.Wrap(err, rpgerr.KindStorage, "list inventory for %s", characterID)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// HoldersOf returns the IDs of every character holding the item. Used
// by callers enforcing world-unique items.
func (r *InventoryRepo) HoldersOf(ctx context.Context, itemID string) ([]string, error) {
	rows, err := r.s.db.QueryContext(ctx,
		`SELECT character_id FROM inventory_items WHERE item_id=? ORDER BY character_id`, itemID)
	if err != nil {
		return nil, rpgerr.Wrap(err, rpgerr.KindStorage, "list holders of %s", itemID)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, rpgerr.Wrap(err, rpgerr.KindStorage, "scan holder")
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// Add inserts or increments a stack.
func (r *InventoryRepo) Add(ctx context.Context, characterID, itemID string, quantity int) error {
	if quantity < 1 {
		return rpgerr.New(rpgerr.KindValidation, "quantity must be at least 1")
	}
	return r.s.WithTx(ctx, func(tx *sql.Tx) error {
		return r.addTx(ctx, tx, characterID, itemID, quantity)
	})
}

// AddTx is Add inside an existing transaction.
func (r *InventoryRepo) AddTx(ctx context.Context, tx *sql.Tx, characterID, itemID string, quantity int) error {
	return r.addTx(ctx, tx, characterID, itemID, quantity)
}

func (r *InventoryRepo) addTx(ctx context.Context, tx *sql.Tx, characterID, itemID string, quantity int) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO inventory_items (character_id, item_id, quantity, equipped, slot)
		VALUES (?, ?, ?, 0, NULL)
		ON CONFLICT(character_id, item_id) DO UPDATE SET quantity = quantity + excluded.quantity`,
		characterID, itemID, quantity)
	if err != nil {
		return rpgerr.Wrap(err, rpgerr.KindStorage, "add %s to %s", itemID, characterID)
	}
	return nil
}

// Equip marks a stack equipped into a slot, displacing nothing: a
// conflicting equipped item in the slot is an invariant violation.
func (r *InventoryRepo) Equip(ctx context.Context, characterID, itemID, slot string) error {
	if slot == "" {
		return rpgerr.New(rpgerr.KindInvariant, "equipping requires a slot")
	}
	return r.s.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := r.getQ(ctx, tx, characterID, itemID); err != nil {
			return err
		}
		var occupied string
		err := tx.QueryRowContext(ctx, `
			SELECT item_id FROM inventory_items
			WHERE character_id=? AND slot=? AND equipped=1 AND item_id<>?`,
			characterID, slot, itemID).Scan(&occupied)
		if err == nil {
			return rpgerr.New(rpgerr.KindInvariant, "slot %s already holds equipped item %s", slot, occupied)
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return rpgerr.Wrap(err, rpgerr.KindStorage, "probe slot %s", slot)
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE inventory_items SET equipped=1, slot=? WHERE character_id=? AND item_id=?`,
			slot, characterID, itemID)
		return rpgerr.Wrap(err, rpgerr.KindStorage, "equip %s", itemID)
	})
}

// Unequip clears the equipped flag and slot.
func (r *InventoryRepo) Unequip(ctx context.Context, characterID, itemID string) error {
	_, err := r.s.db.ExecContext(ctx, `
		UPDATE inventory_items SET equipped=0, slot=NULL WHERE character_id=? AND item_id=?`,
		characterID, itemID)
	return rpgerr.Wrap(err, rpgerr.KindStorage, "unequip %s", itemID)
}

// Transfer moves quantity of an item between characters as one atomic
// transaction. Equipped stacks refuse to move.
func (r *InventoryRepo) Transfer(ctx context.Context, fromID, toID, itemID string, quantity int) error {
	if quantity < 1 {
		return rpgerr.New(rpgerr.KindValidation, "transfer quantity must be at least 1")
	}
	if fromID == toID {
		return rpgerr.New(rpgerr.KindInvariant, "cannot transfer an item to its current holder")
	}
	return r.s.WithTx(ctx, func(tx *sql.Tx) error {
		src, err := r.getQ(ctx, tx, fromID, itemID)
		if err != nil {
			return err
		}
		if src.Equipped {
			return rpgerr.New(rpgerr.KindInvariant, "item %s is equipped and cannot be transferred", itemID)
		}
		if src.Quantity < quantity {
			return rpgerr.New(rpgerr.KindConflict, "character %s holds %d of item %s, need %d",
				fromID, src.Quantity, itemID, quantity)
		}
		if src.Quantity == quantity {
			_, err = tx.ExecContext(ctx,
				`DELETE FROM inventory_items WHERE character_id=? AND item_id=?`, fromID, itemID)
		} else {
			_, err = tx.ExecContext(ctx,
				`UPDATE inventory_items SET quantity = quantity-? WHERE character_id=? AND item_id=?`,
				quantity, fromID, itemID)
		}
		if err != nil {
			return rpgerr.Wrap(err, rpgerr.KindStorage, "debit %s from %s", itemID, fromID)
		}
		return r.addTx(ctx, tx, toID, itemID, quantity)
	})
}

// Remove decrements or deletes a stack.
func (r *InventoryRepo) Remove(ctx context.Context, characterID, itemID string, quantity int) error {
	return r.s.WithTx(ctx, func(tx *sql.Tx) error {
		src, err := r.getQ(ctx, tx, characterID, itemID)
		if err != nil {
			return err
		}
		if src.Equipped {
			return rpgerr.New(rpgerr.KindInvariant, "item %s is equipped and cannot be removed", itemID)
		}
		if src.Quantity < quantity {
			return rpgerr.New(rpgerr.KindConflict, "character %s holds only %d of item %s", characterID, src.Quantity, itemID)
		}
		if src.Quantity == quantity {
			_, err = tx.ExecContext(ctx,
				`DELETE FROM inventory_items WHERE character_id=? AND item_id=?`, characterID, itemID)
		} else {
			_, err = tx.ExecContext(ctx,
				`UPDATE inventory_items SET quantity = quantity-? WHERE character_id=? AND item_id=?`,
				quantity, characterID, itemID)
		}
		return rpgerr.Wrap(err, rpgerr.KindStorage, "remove %s from %s", itemID, characterID)
	})
}

func scanEntries(rows *sql.Rows) ([]*models.InventoryEntry, error) {
	var out []*models.InventoryEntry
	for rows.Next() {
		var e models.InventoryEntry
		var equipped int
		var slot sql.NullString
		if err := rows.Scan(&e.CharacterID, &e.ItemID, &e.Quantity, &equipped, &slot); err != nil {
			return nil, rpgerr.Wrap(err, rpgerr.KindStorage, "scan inventory entry")
		}
		e.Equipped, e.Slot = equipped != 0, slot.String
		out = append(out, &e)
	}
	return out, rows.Err()
}
