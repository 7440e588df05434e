package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mnehmos/questforge/internal/registry"
	"github.com/mnehmos/questforge/internal/rpgerr"
	"github.com/mnehmos/questforge/internal/world"
)

func (d *Deps) registerWorldTools(r *registry.Registry) {
	r.MustRegister(&registry.Tool{
		Name:        "generate_world",
		Description: "Generate a new world from a seed: terrain grid, compressed tile cache, and a day-zero clock.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"name": {"type": "string", "minLength": 1},
				"seed": {"type": "string", "minLength": 1},
				"width": {"type": "integer", "minimum": 10, "maximum": 1000},
				"height": {"type": "integer", "minimum": 10, "maximum": 1000}
			},
			"required": ["name", "seed", "width", "height"]
		}`),
		Handler: func(ctx context.Context, sess registry.Session, args json.RawMessage) (*registry.Result, error) {
			var in struct {
				Name   string `json:"name"`
				Seed   string `json:"seed"`
				Width  int    `json:"width"`
				Height int    `json:"height"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, rpgerr.Wrap(err, rpgerr.KindValidation, "parse arguments")
			}
			w, err := d.World.Generate(ctx, sess.SessionID, in.Name, in.Seed, in.Width, in.Height)
			if err != nil {
				return nil, err
			}
			return &registry.Result{
				Text:  fmt.Sprintf("World %q (%dx%d) generated from seed %q.", w.Name, w.Width, w.Height, w.Seed),
				State: w,
			}, nil
		},
	})

	r.MustRegister(&registry.Tool{
		Name:        "get_world_state",
		Description: "Read a world's record: dimensions, seed, and timestamps.",
		InputSchema: worldIDSchema,
		Handler: func(ctx context.Context, sess registry.Session, args json.RawMessage) (*registry.Result, error) {
			var in worldIDInput
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, rpgerr.Wrap(err, rpgerr.KindValidation, "parse arguments")
			}
			w, err := d.World.Get(ctx, in.WorldID)
			if err != nil {
				return nil, err
			}
			return &registry.Result{
				Text:  fmt.Sprintf("World %q is %dx%d, seeded %q.", w.Name, w.Width, w.Height, w.Seed),
				State: w,
			}, nil
		},
	})

	r.MustRegister(&registry.Tool{
		Name:        "get_world_map_overview",
		Description: "Summarize a world: terrain distribution, regions, structures, rivers, and the simulated day.",
		InputSchema: worldIDSchema,
		Handler: func(ctx context.Context, sess registry.Session, args json.RawMessage) (*registry.Result, error) {
			var in worldIDInput
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, rpgerr.Wrap(err, rpgerr.KindValidation, "parse arguments")
			}
			ov, err := d.World.Overview(ctx, sess.SessionID, in.WorldID)
			if err != nil {
				return nil, err
			}
			return &registry.Result{
				Text: fmt.Sprintf("World %q on day %d: %d regions, %d structures, %d rivers.",
					ov.World.Name, ov.Day, len(ov.Regions), len(ov.Structures), len(ov.Rivers)),
				State: ov,
			}, nil
		},
	})

	r.MustRegister(&registry.Tool{
		Name:        "get_region_map",
		Description: "Render one region of a world as a text map, one glyph per tile.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"worldId": {"type": "string", "minLength": 1},
				"regionId": {"type": "string", "minLength": 1}
			},
			"required": ["worldId", "regionId"]
		}`),
		Handler: func(ctx context.Context, sess registry.Session, args json.RawMessage) (*registry.Result, error) {
			var in struct {
				WorldID  string `json:"worldId"`
				RegionID string `json:"regionId"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, rpgerr.Wrap(err, rpgerr.KindValidation, "parse arguments")
			}
			rows, err := d.World.RegionMap(ctx, sess.SessionID, in.WorldID, in.RegionID)
			if err != nil {
				return nil, err
			}
			return &registry.Result{
				Text:  strings.Join(rows, "\n"),
				State: map[string]any{"worldId": in.WorldID, "regionId": in.RegionID, "rows": rows},
			}, nil
		},
	})

	r.MustRegister(&registry.Tool{
		Name:        "get_world_tiles",
		Description: "Read a rectangle of world tiles with terrain, elevation and moisture.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"worldId": {"type": "string", "minLength": 1},
				"x": {"type": "integer", "minimum": 0},
				"y": {"type": "integer", "minimum": 0},
				"width": {"type": "integer", "minimum": 1, "maximum": 1000},
				"height": {"type": "integer", "minimum": 1, "maximum": 1000}
			},
			"required": ["worldId", "x", "y", "width", "height"]
		}`),
		Handler: func(ctx context.Context, sess registry.Session, args json.RawMessage) (*registry.Result, error) {
			var in struct {
				WorldID string `json:"worldId"`
				X       int    `json:"x"`
				Y       int    `json:"y"`
				Width   int    `json:"width"`
				Height  int    `json:"height"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, rpgerr.Wrap(err, rpgerr.KindValidation, "parse arguments")
			}
			tiles, err := d.Store.Worlds.TilesInRect(ctx, in.WorldID, in.X, in.Y, in.Width, in.Height)
			if err != nil {
				return nil, err
			}
			return &registry.Result{
				Text:  fmt.Sprintf("%d tiles in the %dx%d window at %d,%d.", len(tiles), in.Width, in.Height, in.X, in.Y),
				State: tiles,
			}, nil
		},
	})

	r.MustRegister(&registry.Tool{
		Name:        "apply_map_patch",
		Description: "Apply map-patch DSL operations (set_tile, set_region_terrain) to a world's tiles.",
		InputSchema: patchSchema,
		Handler:     d.patchHandler(false),
	})

	r.MustRegister(&registry.Tool{
		Name:        "preview_map_patch",
		Description: "Dry-run map-patch DSL operations: reports what would change without writing tiles.",
		InputSchema: patchSchema,
		Handler:     d.patchHandler(true),
	})
}

var worldIDSchema = json.RawMessage(`{
	"type": "object",
	"properties": {"worldId": {"type": "string", "minLength": 1}},
	"required": ["worldId"]
}`)

type worldIDInput struct {
	WorldID string `json:"worldId"`
}

var patchSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"worldId": {"type": "string", "minLength": 1},
		"ops": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"properties": {
					"op": {"type": "string", "enum": ["set_tile", "set_region_terrain"]},
					"x": {"type": "integer"},
					"y": {"type": "integer"},
					"width": {"type": "integer"},
					"height": {"type": "integer"},
					"terrain": {"type": "string"},
					"elevation": {"type": "number"}
				},
				"required": ["op", "terrain"]
			}
		}
	},
	"required": ["worldId", "ops"]
}`)

func (d *Deps) patchHandler(dryRun bool) registry.Handler {
	return func(ctx context.Context, sess registry.Session, args json.RawMessage) (*registry.Result, error) {
		var in struct {
			WorldID string          `json:"worldId"`
			Ops     []world.PatchOp `json:"ops"`
		}
		if err := json.Unmarshal(args, &in); err != nil {
			return nil, rpgerr.Wrap(err, rpgerr.KindValidation, "parse arguments")
		}
		report, err := d.World.ApplyPatch(ctx, sess.SessionID, in.WorldID, in.Ops, dryRun)
		if err != nil {
			return nil, err
		}
		verb := "changed"
		if dryRun {
			verb = "would change"
		}
		return &registry.Result{
			Text:  fmt.Sprintf("Patch %s %d tiles across %d ops.", verb, report.TilesChanged, report.Ops),
			State: report,
		}, nil
	}
}
