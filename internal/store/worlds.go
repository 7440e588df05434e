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

// WorldRepo owns worlds and their cascading children (regions, tiles,
// structures, rivers). Any mutation through this repository clears the
// world's tile cache.
type WorldRepo struct {
	s *Store
}

func validateWorld(w *models.World) error {
	if w.Name == "" {
		return rpgerr.New(rpgerr.KindValidation, "world name is required")
	}
	if w.Width < models.MinWorldDimension || w.Width > models.MaxWorldDimension ||
		w.Height < models.MinWorldDimension || w.Height > models.MaxWorldDimension {
		return rpgerr.New(rpgerr.KindValidation,
			"world dimensions %dx%d outside [%d, %d]",
			w.Width, w.Height, models.MinWorldDimension, models.MaxWorldDimension)
	}
	return nil
}

// Create inserts a world and seeds its turn-state row at day 0.
func (r *WorldRepo) Create(ctx context.Context, w *models.World) error {
	if w.ID == "" {
		w.ID = uuid.New().String()
	}
	if err := validateWorld(w); err != nil {
		return err
	}
	now := time.Now().UTC()
	w.CreatedAt, w.UpdatedAt = now, now
	return r.s.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO worlds (id, name, seed, width, height, tile_cache, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, NULL, ?, ?)`,
			w.ID, w.Name, w.Seed, w.Width, w.Height, w.CreatedAt, w.UpdatedAt); err != nil {
			return rpgerr.Wrap(err, rpgerr.KindStorage, "insert world %s", w.ID)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO turn_state (world_id, day) VALUES (?, 0)`, w.ID); err != nil {
			return rpgerr.Wrap(err, rpgerr.KindStorage, "seed turn state for %s", w.ID)
		}
		return nil
	})
}

// FindByID fetches a world including its tile cache blob.
func (r *WorldRepo) FindByID(ctx context.Context, id string) (*models.World, error) {
	var w models.World
	var cache []byte
	err := r.s.db.QueryRowContext(ctx, `
		SELECT id, name, seed, width, height, tile_cache, created_at, updated_at
		FROM worlds WHERE id=?`, id).
		Scan(&w.ID, &w.Name, &w.Seed, &w.Width, &w.Height, &cache, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, rpgerr.New(rpgerr.KindNotFound, "world %s not found", id)
	}
	if err != nil {
		return nil, rpgerr.Wrap(err, rpgerr.KindStorage, "scan world %s", id)
	}
	w.TileCache = cache
	if err := validateWorld(&w); err != nil {
		return nil, rpgerr.Wrap(err, rpgerr.KindStorage, "stored world %s fails validation", id)
	}
	return &w, nil
}

// Delete removes a world; children cascade.
func (r *WorldRepo) Delete(ctx context.Context, id string) error {
	res, err := r.s.db.ExecContext(ctx, `DELETE FROM worlds WHERE id=?`, id)
	if err != nil {
		return rpgerr.Wrap(err, rpgerr.KindStorage, "delete world %s", id)
	}
	return requireRow(res, "world", id)
}

// SetTileCache stores the compressed tile snapshot without touching
// updated_at: the cache is derived state, not a world mutation.
func (r *WorldRepo) SetTileCache(ctx context.Context, id string, cache []byte) error {
	res, err := r.s.db.ExecContext(ctx, `UPDATE worlds SET tile_cache=? WHERE id=?`, cache, id)
	if err != nil {
		return rpgerr.Wrap(err, rpgerr.KindStorage, "store tile cache for %s", id)
	}
	return requireRow(res, "world", id)
}

// touch invalidates the tile cache and bumps updated_at; every mutation
// of world-owned rows funnels through it.
func (r *WorldRepo) touch(ctx context.Context, q querier, id string) error {
	res, err := q.ExecContext(ctx,
		`UPDATE worlds SET tile_cache=NULL, updated_at=? WHERE id=?`, time.Now().UTC(), id)
	if err != nil {
		return rpgerr.Wrap(err, rpgerr.KindStorage, "invalidate tile cache for %s", id)
	}
	return requireRow(res, "world", id)
}

// UpsertTiles writes tiles in one transaction and invalidates the cache.
func (r *WorldRepo) UpsertTiles(ctx context.Context, worldID string, tiles []*models.Tile) error {
	return r.s.WithTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO tiles (world_id, x, y, terrain, elevation, moisture)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(world_id, x, y) DO UPDATE SET
				terrain=excluded.terrain, elevation=excluded.elevation, moisture=excluded.moisture`)
		if err != nil {
			return rpgerr.Wrap(err, rpgerr.KindStorage, "prepare tile upsert")
		}
		defer stmt.Close()
		for _, t := range tiles {
			if _, err := stmt.ExecContext(ctx, worldID, t.X, t.Y, t.Terrain, t.Elevation, t.Moisture); err != nil {
				return rpgerr.Wrap(err, rpgerr.KindStorage, "upsert tile %d,%d", t.X, t.Y)
			}
		}
		return r.touch(ctx, tx, worldID)
	})
}

// TilesInRect returns tiles within the half-open rectangle.
func (r *WorldRepo) TilesInRect(ctx context.Context, worldID string, x, y, width, height int) ([]*models.Tile, error) {
	rows, err := r.s.db.QueryContext(ctx, `
		SELECT world_id, x, y, terrain, elevation, moisture FROM tiles
		WHERE world_id=? AND x>=? AND x<? AND y>=? AND y<? ORDER BY y, x`,
		worldID, x, x+width, y, y+height)
	if err != nil {
		return nil, rpgerr.Wrap(err, rpgerr.KindStorage, "query tiles for %s", worldID)
	}
	defer rows.Close()
	var out []*models.Tile
	for rows.Next() {
		var t models.Tile
		if err := rows.Scan(&t.WorldID, &t.X, &t.Y, &t.Terrain, &t.Elevation, &t.Moisture); err != nil {
			return nil, rpgerr.Wrap(err, rpgerr.KindStorage, "scan tile")
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

// CreateRegion inserts a region and invalidates the world cache.
func (r *WorldRepo) CreateRegion(ctx context.Context, reg *models.Region) error {
	if reg.ID == "" {
		reg.ID = uuid.New().String()
	}
	return r.s.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO regions (id, world_id, name, biome, x, y, width, height)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			reg.ID, reg.WorldID, reg.Name, reg.Biome, reg.X, reg.Y, reg.Width, reg.Height); err != nil {
			return rpgerr.Wrap(err, rpgerr.KindStorage, "insert region %s", reg.ID)
		}
		return r.touch(ctx, tx, reg.WorldID)
	})
}

// RegionsByWorld lists a world's regions.
func (r *WorldRepo) RegionsByWorld(ctx context.Context, worldID string) ([]*models.Region, error) {
	rows, err := r.s.db.QueryContext(ctx, `
		SELECT id, world_id, name, biome, x, y, width, height FROM regions
		WHERE world_id=? ORDER BY name`, worldID)
	if err != nil {
		return nil, rpgerr.Wrap(err, rpgerr.KindStorage, "list regions for %s", worldID)
	}
	defer rows.Close()
	var out []*models.Region
	for rows.Next() {
		var reg models.Region
		if err := rows.Scan(&reg.ID, &reg.WorldID, &reg.Name, &reg.Biome, &reg.X, &reg.Y, &reg.Width, &reg.Height); err != nil {
			return nil, rpgerr.Wrap(err, rpgerr.KindStorage, "scan region")
		}
		out = append(out, &reg)
	}
	return out, rows.Err()
}

// CreateStructure inserts a structure and invalidates the world cache.
func (r *WorldRepo) CreateStructure(ctx context.Context, st *models.Structure) error {
	if st.ID == "" {
		st.ID = uuid.New().String()
	}
	return r.s.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO structures (id, world_id, name, kind, x, y)
			VALUES (?, ?, ?, ?, ?, ?)`,
			st.ID, st.WorldID, st.Name, st.Kind, st.X, st.Y); err != nil {
			return rpgerr.Wrap(err, rpgerr.KindStorage, "insert structure %s", st.ID)
		}
		return r.touch(ctx, tx, st.WorldID)
	})
}

// StructuresByWorld lists a world's structures.
func (r *WorldRepo) StructuresByWorld(ctx context.Context, worldID string) ([]*models.Structure, error) {
	rows, err := r.s.db.QueryContext(ctx, `
		SELECT id, world_id, name, kind, x, y FROM structures WHERE world_id=? ORDER BY name`, worldID)
	if err != nil {
		return nil, rpgerr.Wrap(err, rpgerr.KindStorage, "list structures for %s", worldID)
	}
	defer rows.Close()
	var out []*models.Structure
	for rows.Next() {
		var st models.Structure
		if err := rows.Scan(&st.ID, &st.WorldID, &st.Name, &st.Kind, &st.X, &st.Y); err != nil {
			return nil, rpgerr.Wrap(err, rpgerr.KindStorage, "scan structure")
		}
		out = append(out, &st)
	}
	return out, rows.Err()
}

// CreateRiver inserts a river and invalidates the world cache.
func (r *WorldRepo) CreateRiver(ctx context.Context, riv *models.River) error {
	if riv.ID == "" {
		riv.ID = uuid.New().String()
	}
	points, err := encodeJSON(riv.Points)
	if err != nil {
		return rpgerr.Wrap(err, rpgerr.KindStorage, "encode river points")
	}
	return r.s.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO rivers (id, world_id, name, points) VALUES (?, ?, ?, ?)`,
			riv.ID, riv.WorldID, riv.Name, points); err != nil {
			return rpgerr.Wrap(err, rpgerr.KindStorage, "insert river %s", riv.ID)
		}
		return r.touch(ctx, tx, riv.WorldID)
	})
}

// RiversByWorld lists a world's rivers.
func (r *WorldRepo) RiversByWorld(ctx context.Context, worldID string) ([]*models.River, error) {
	rows, err := r.s.db.QueryContext(ctx,
		`SELECT id, world_id, name, points FROM rivers WHERE world_id=? ORDER BY name`, worldID)
	if err != nil {
		return nil, rpgerr.Wrap(err, rpgerr.KindStorage, "list rivers for %s", worldID)
	}
	defer rows.Close()
	var out []*models.River
	for rows.Next() {
		var riv models.River
		var points sql.NullString
		if err := rows.Scan(&riv.ID, &riv.WorldID, &riv.Name, &points); err != nil {
			return nil, rpgerr.Wrap(err, rpgerr.KindStorage, "scan river")
		}
		if err := decodeJSON(points, &riv.Points); err != nil {
			return nil, rpgerr.Wrap(err, rpgerr.KindStorage, "decode river points")
		}
		out = append(out, &riv)
	}
	return out, rows.Err()
}
