package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/mnehmos/questforge/internal/rpgerr"
	"github.com/mnehmos/questforge/pkg/models"
)

// TheftRepo owns theft_records, keyed by item ID.
type TheftRepo struct {
	s *Store
}

// Create records a theft. Self-theft is rejected here as well as in the
// engine; the repository is the last line of defense.
func (r *TheftRepo) Create(ctx context.Context, rec *models.TheftRecord) error {
	if rec.ItemID == "" {
		return rpgerr.New(rpgerr.KindValidation, "theft record requires an item id")
	}
	if rec.StolenFrom == rec.StolenBy {
		return rpgerr.New(rpgerr.KindInvariant, "thief and victim cannot be the same character")
	}
	if rec.HeatLevel == "" {
		rec.HeatLevel = models.HeatBurning
	}
	if rec.Witnesses == nil {
		rec.Witnesses = []string{}
	}
	rec.CreatedAt = time.Now().UTC()
	witnesses, err := encodeJSON(rec.Witnesses)
	if err != nil {
		return rpgerr.Wrap(err, rpgerr.KindStorage, "encode witnesses")
	}
	_, err = r.s.db.ExecContext(ctx, `
		INSERT INTO theft_records (item_id, stolen_from, stolen_by, stolen_location, witnesses, heat_level, reported, bounty, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ItemID, rec.StolenFrom, rec.StolenBy, nullable(rec.StolenLocation),
		witnesses, string(rec.HeatLevel), boolInt(rec.ReportedToGuards), rec.Bounty, rec.CreatedAt)
	if err != nil {
		return rpgerr.Wrap(err, rpgerr.KindStorage, "insert theft record for %s", rec.ItemID)
	}
	return nil
}

// FindByItem looks up the theft record for an item, or NotFound.
func (r *TheftRepo) FindByItem(ctx context.Context, itemID string) (*models.TheftRecord, error) {
	row := r.s.db.QueryRowContext(ctx, `
		SELECT item_id, stolen_from, stolen_by, stolen_location, witnesses, heat_level, reported, bounty, created_at
		FROM theft_records WHERE item_id=?`, itemID)
	rec, err := scanTheft(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, rpgerr.New(rpgerr.KindNotFound, "no theft record for item %s", itemID)
	}
	return rec, err
}

// Update rewrites a record's mutable fields (heat, report, bounty).
func (r *TheftRepo) Update(ctx context.Context, rec *models.TheftRecord) error {
	witnesses, err := encodeJSON(rec.Witnesses)
	if err != nil {
		return rpgerr.Wrap(err, rpgerr.KindStorage, "encode witnesses")
	}
	res, err := r.s.db.ExecContext(ctx, `
		UPDATE theft_records SET witnesses=?, heat_level=?, reported=?, bounty=? WHERE item_id=?`,
		witnesses, string(rec.HeatLevel), boolInt(rec.ReportedToGuards), rec.Bounty, rec.ItemID)
	if err != nil {
		return rpgerr.Wrap(err, rpgerr.KindStorage, "update theft record for %s", rec.ItemID)
	}
	return requireRow(res, "theft record", rec.ItemID)
}

// Delete clears a record (item recovered or laundered).
func (r *TheftRepo) Delete(ctx context.Context, itemID string) error {
	res, err := r.s.db.ExecContext(ctx, `DELETE FROM theft_records WHERE item_id=?`, itemID)
	if err != nil {
		return rpgerr.Wrap(err, rpgerr.KindStorage, "delete theft record for %s", itemID)
	}
	return requireRow(res, "theft record", itemID)
}

// List returns every open theft record.
func (r *TheftRepo) List(ctx context.Context) ([]*models.TheftRecord, error) {
	rows, err := r.s.db.QueryContext(ctx, `
		SELECT item_id, stolen_from, stolen_by, stolen_location, witnesses, heat_level, reported, bounty, created_at
		FROM theft_records ORDER BY created_at`)
	if err != nil {
		return nil, rpgerr.Wrap(err, rpgerr.KindStorage, "list theft records")
	}
	defer rows.Close()
	var out []*models.TheftRecord
	for rows.Next() {
		rec, err := scanTheft(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// HasVictim reports whether the NPC is the victim in any open record.
func (r *TheftRepo) HasVictim(ctx context.Context, npcID string) (bool, error) {
	var one int
	err := r.s.db.QueryRowContext(ctx,
		`SELECT 1 FROM theft_records WHERE stolen_from=? LIMIT 1`, npcID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, rpgerr.Wrap(err, rpgerr.KindStorage, "probe theft victim %s", npcID)
	}
	return true, nil
}

func scanTheft(row rowScanner) (*models.TheftRecord, error) {
	var rec models.TheftRecord
	var location sql.NullString
	var witnesses, heat string
	var reported int
	if err := row.Scan(&rec.ItemID, &rec.StolenFrom, &rec.StolenBy, &location,
		&witnesses, &heat, &reported, &rec.Bounty, &rec.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, rpgerr.Wrap(err, rpgerr.KindStorage, "scan theft record")
	}
	if err := decodeJSON(sql.NullString{String: witnesses, Valid: true}, &rec.Witnesses); err != nil {
		return nil, rpgerr.Wrap(err, rpgerr.KindStorage, "decode witnesses")
	}
	rec.StolenLocation = location.String
	rec.HeatLevel = models.HeatLevel(heat)
	rec.ReportedToGuards = reported != 0
	return &rec, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// FenceRepo owns fences and their sale ledger.
type FenceRepo struct {
	s *Store
}

func validateFence(f *models.Fence) error {
	if f.NPCID == "" {
		return rpgerr.New(rpgerr.KindValidation, "fence requires an npc id")
	}
	if f.BuyRate < 0.1 || f.BuyRate > 1.0 {
		return rpgerr.New(rpgerr.KindValidation, "fence buy rate %.2f outside [0.1, 1.0]", f.BuyRate)
	}
	if f.DailyHeatCapacity < 0 || f.DailyHeatUsed < 0 || f.CooldownDays < 0 {
		return rpgerr.New(rpgerr.KindValidation, "fence capacity fields must be non-negative")
	}
	return nil
}

// Create registers a fence.
func (r *FenceRepo) Create(ctx context.Context, f *models.Fence) error {
	if err := validateFence(f); err != nil {
		return err
	}
	if f.MaxHeatLevel == "" {
		f.MaxHeatLevel = models.HeatWarm
	}
	if f.Specializations == nil {
		f.Specializations = []string{}
	}
	specs, err := encodeJSON(f.Specializations)
	if err != nil {
		return rpgerr.Wrap(err, rpgerr.KindStorage, "encode specializations")
	}
	_, err = r.s.db.ExecContext(ctx, `
		INSERT INTO fences (npc_id, faction_id, buy_rate, max_heat_level, daily_heat_capacity, daily_heat_used, specializations, cooldown_days)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		f.NPCID, nullable(f.FactionID), f.BuyRate, string(f.MaxHeatLevel),
		f.DailyHeatCapacity, f.DailyHeatUsed, specs, f.CooldownDays)
	if err != nil {
		return rpgerr.Wrap(err, rpgerr.KindStorage, "insert fence %s", f.NPCID)
	}
	return nil
}

// FindByNPC fetches a fence by NPC ID.
func (r *FenceRepo) FindByNPC(ctx context.Context, npcID string) (*models.Fence, error) {
	row := r.s.db.QueryRowContext(ctx, `
		SELECT npc_id, faction_id, buy_rate, max_heat_level, daily_heat_capacity, daily_heat_used, specializations, cooldown_days
		FROM fences WHERE npc_id=?`, npcID)
	f, err := scanFence(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, rpgerr.New(rpgerr.KindNotFound, "fence %s not found", npcID)
	}
	return f, err
}

// Update persists a fence's mutable fields.
func (r *FenceRepo) Update(ctx context.Context, f *models.Fence) error {
	if err := validateFence(f); err != nil {
		return err
	}
	specs, err := encodeJSON(f.Specializations)
	if err != nil {
		return rpgerr.Wrap(err, rpgerr.KindStorage, "encode specializations")
	}
	res, err := r.s.db.ExecContext(ctx, `
		UPDATE fences SET faction_id=?, buy_rate=?, max_heat_level=?, daily_heat_capacity=?, daily_heat_used=?, specializations=?, cooldown_days=?
		WHERE npc_id=?`,
		nullable(f.FactionID), f.BuyRate, string(f.MaxHeatLevel),
		f.DailyHeatCapacity, f.DailyHeatUsed, specs, f.CooldownDays, f.NPCID)
	if err != nil {
		return rpgerr.Wrap(err, rpgerr.KindStorage, "update fence %s", f.NPCID)
	}
	return requireRow(res, "fence", f.NPCID)
}

// List returns every registered fence.
func (r *FenceRepo) List(ctx context.Context) ([]*models.Fence, error) {
	rows, err := r.s.db.QueryContext(ctx, `
		SELECT npc_id, faction_id, buy_rate, max_heat_level, daily_heat_capacity, daily_heat_used, specializations, cooldown_days
		FROM fences ORDER BY npc_id`)
	if err != nil {
		return nil, rpgerr.Wrap(err, rpgerr.KindStorage, "list fences")
	}
	defer rows.Close()
	var out []*models.Fence
	for rows.Next() {
		f, err := scanFence(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// ResetDailyCapacity zeroes daily_heat_used for every fence. Called by
// time-advance paths.
func (r *FenceRepo) ResetDailyCapacity(ctx context.Context) error {
	_, err := r.s.db.ExecContext(ctx, `UPDATE fences SET daily_heat_used=0`)
	return rpgerr.Wrap(err, rpgerr.KindStorage, "reset fence capacity")
}

// RecordSale stores a fence purchase for cooldown tracking.
func (r *FenceRepo) RecordSale(ctx context.Context, itemID, fenceID, sellerID string, price, day int) error {
	_, err := r.s.db.ExecContext(ctx, `
		INSERT INTO fence_sales (item_id, fence_id, seller_id, price, sold_on_day)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(item_id, fence_id) DO UPDATE SET
			seller_id=excluded.seller_id, price=excluded.price, sold_on_day=excluded.sold_on_day`,
		itemID, fenceID, sellerID, price, day)
	return rpgerr.Wrap(err, rpgerr.KindStorage, "record sale of %s", itemID)
}

// LastSaleDay returns the most recent day the item was fenced, or -1
// when it never was.
func (r *FenceRepo) LastSaleDay(ctx context.Context, itemID string) (int, error) {
	var day sql.NullInt64
	err := r.s.db.QueryRowContext(ctx,
		`SELECT MAX(sold_on_day) FROM fence_sales WHERE item_id=?`, itemID).Scan(&day)
	if err != nil {
		return -1, rpgerr.Wrap(err, rpgerr.KindStorage, "last sale day for %s", itemID)
	}
	if !day.Valid {
		return -1, nil
	}
	return int(day.Int64), nil
}

func scanFence(row rowScanner) (*models.Fence, error) {
	var f models.Fence
	var faction sql.NullString
	var heat, specs string
	if err := row.Scan(&f.NPCID, &faction, &f.BuyRate, &heat,
		&f.DailyHeatCapacity, &f.DailyHeatUsed, &specs, &f.CooldownDays); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, rpgerr.Wrap(err, rpgerr.KindStorage, "scan fence")
	}
	if err := decodeJSON(sql.NullString{String: specs, Valid: true}, &f.Specializations); err != nil {
		return nil, rpgerr.Wrap(err, rpgerr.KindStorage, "decode specializations")
	}
	f.FactionID = faction.String
	f.MaxHeatLevel = models.HeatLevel(heat)
	return &f, nil
}
