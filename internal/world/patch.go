package world

import (
	"context"
	"encoding/json"

	"github.com/mnehmos/questforge/internal/rpgerr"
	"github.com/mnehmos/questforge/pkg/models"
)

// PatchOp is one operation of the map-patch DSL.
type PatchOp struct {
	Op        string   `json:"op"` // set_tile | set_region_terrain
	X         int      `json:"x,omitempty"`
	Y         int      `json:"y,omitempty"`
	Width     int      `json:"width,omitempty"`
	Height    int      `json:"height,omitempty"`
	Terrain   string   `json:"terrain,omitempty"`
	Elevation *float64 `json:"elevation,omitempty"`
}

// PatchReport summarizes a patch application or preview.
type PatchReport struct {
	PatchID      string `json:"patchId,omitempty"`
	WorldID      string `json:"worldId"`
	Ops          int    `json:"ops"`
	TilesChanged int    `json:"tilesChanged"`
	DryRun       bool   `json:"dryRun"`
}

// ApplyPatch validates and applies patch ops to a world's tiles. With
// dryRun the changes are computed and reported but nothing is written;
// either way the patch document is recorded.
func (m *Manager) ApplyPatch(ctx context.Context, sessionID, worldID string, ops []PatchOp, dryRun bool) (*PatchReport, error) {
	w, err := m.store.Worlds.FindByID(ctx, worldID)
	if err != nil {
		return nil, err
	}

	var changed []*models.Tile
	for _, op := range ops {
		switch op.Op {
		case "set_tile":
			if op.X < 0 || op.X >= w.Width || op.Y < 0 || op.Y >= w.Height {
				return nil, rpgerr.New(rpgerr.KindValidation,
					"tile %d,%d outside world bounds %dx%d", op.X, op.Y, w.Width, w.Height)
			}
			t := &models.Tile{WorldID: worldID, X: op.X, Y: op.Y, Terrain: op.Terrain}
			if op.Elevation != nil {
				t.Elevation = *op.Elevation
			}
			changed = append(changed, t)
		case "set_region_terrain":
			if op.Width < 1 || op.Height < 1 {
				return nil, rpgerr.New(rpgerr.KindValidation, "region patch requires positive dimensions")
			}
			for y := op.Y; y < op.Y+op.Height; y++ {
				for x := op.X; x < op.X+op.Width; x++ {
					if x < 0 || x >= w.Width || y < 0 || y >= w.Height {
						continue
					}
					changed = append(changed, &models.Tile{WorldID: worldID, X: x, Y: y, Terrain: op.Terrain})
				}
			}
		default:
			return nil, rpgerr.New(rpgerr.KindValidation, "unknown patch op %q", op.Op)
		}
	}

	raw, err := json.Marshal(ops)
	if err != nil {
		return nil, rpgerr.Wrap(err, rpgerr.KindStorage, "encode patch ops")
	}
	report := &PatchReport{WorldID: worldID, Ops: len(ops), TilesChanged: len(changed), DryRun: dryRun}
	if dryRun {
		report.PatchID, err = m.store.Patches.Record(ctx, worldID, raw, false)
		return report, err
	}

	if err := m.store.Worlds.UpsertTiles(ctx, worldID, changed); err != nil {
		return nil, err
	}
	m.Invalidate(worldID)
	if report.PatchID, err = m.store.Patches.Record(ctx, worldID, raw, true); err != nil {
		return nil, err
	}
	m.audit.Record("world.apply_patch", "", worldID, report)
	m.bus.Publish("world.patched", report)
	return report, nil
}
