package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mnehmos/questforge/internal/registry"
	"github.com/mnehmos/questforge/internal/router"
	"github.com/mnehmos/questforge/internal/rpgerr"
	"github.com/mnehmos/questforge/pkg/models"
)

func (d *Deps) registerTheftTool(r *registry.Registry) {
	rt := router.New("theft_manage",
		&router.Action{
			Name:        "steal",
			Description: "Record a theft with witnesses; the item starts burning hot.",
			Aliases:     []string{"rob", "pickpocket"},
			Schema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"action": {"const": "steal"},
					"thiefId": {"type": "string", "minLength": 1},
					"victimId": {"type": "string", "minLength": 1},
					"itemId": {"type": "string", "minLength": 1},
					"location": {"type": "string"},
					"witnesses": {"type": "array", "items": {"type": "string"}}
				},
				"required": ["action", "thiefId", "victimId", "itemId"]
			}`),
			Handler: func(ctx context.Context, sess registry.Session, args json.RawMessage) (*registry.Result, error) {
				var in struct {
					ThiefID   string   `json:"thiefId"`
					VictimID  string   `json:"victimId"`
					ItemID    string   `json:"itemId"`
					Location  string   `json:"location"`
					Witnesses []string `json:"witnesses"`
				}
				if err := json.Unmarshal(args, &in); err != nil {
					return nil, rpgerr.Wrap(err, rpgerr.KindValidation, "parse arguments")
				}
				rec, err := d.Theft.Steal(ctx, in.ThiefID, in.VictimID, in.ItemID, in.Location, in.Witnesses)
				if err != nil {
					return nil, err
				}
				return &registry.Result{
					Text: fmt.Sprintf("%s lifts %s from %s. The item is burning hot; %d witnesses saw it.",
						in.ThiefID, in.ItemID, in.VictimID, len(rec.Witnesses)),
					State: rec,
				}, nil
			},
		},
		&router.Action{
			Name:        "check",
			Description: "Look up an item's theft record.",
			Aliases:     []string{"lookup", "provenance"},
			Schema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"action": {"const": "check"},
					"itemId": {"type": "string", "minLength": 1}
				},
				"required": ["action", "itemId"]
			}`),
			Handler: func(ctx context.Context, sess registry.Session, args json.RawMessage) (*registry.Result, error) {
				var in struct {
					ItemID string `json:"itemId"`
				}
				if err := json.Unmarshal(args, &in); err != nil {
					return nil, rpgerr.Wrap(err, rpgerr.KindValidation, "parse arguments")
				}
				rec, err := d.Theft.Check(ctx, in.ItemID)
				if err != nil {
					return nil, err
				}
				return &registry.Result{
					Text:  fmt.Sprintf("Item %s was stolen from %s and runs %s.", rec.ItemID, rec.StolenFrom, rec.HeatLevel),
					State: rec,
				}, nil
			},
		},
		&router.Action{
			Name:        "search",
			Description: "Search a character for stolen goods and rate the detection risk.",
			Aliases:     []string{"frisk", "search_character"},
			Schema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"action": {"const": "search"},
					"characterId": {"type": "string", "minLength": 1}
				},
				"required": ["action", "characterId"]
			}`),
			Handler: func(ctx context.Context, sess registry.Session, args json.RawMessage) (*registry.Result, error) {
				var in struct {
					CharacterID string `json:"characterId"`
				}
				if err := json.Unmarshal(args, &in); err != nil {
					return nil, rpgerr.Wrap(err, rpgerr.KindValidation, "parse arguments")
				}
				res, err := d.Theft.SearchCharacter(ctx, in.CharacterID)
				if err != nil {
					return nil, err
				}
				return &registry.Result{
					Text: fmt.Sprintf("%s carries %d stolen items; detection risk is %s.",
						in.CharacterID, len(res.StolenItems), res.DetectionRisk),
					State: res,
				}, nil
			},
		},
		&router.Action{
			Name:        "recognize",
			Description: "Resolve whether an NPC recognizes an item as stolen. Victims are hostile, witnesses suspicious, strangers roll.",
			Aliases:     []string{"identify"},
			Schema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"action": {"const": "recognize"},
					"npcId": {"type": "string", "minLength": 1},
					"itemId": {"type": "string", "minLength": 1},
					"seed": {"type": "string"}
				},
				"required": ["action", "npcId", "itemId"]
			}`),
			Handler: func(ctx context.Context, sess registry.Session, args json.RawMessage) (*registry.Result, error) {
				var in struct {
					NPCID  string `json:"npcId"`
					ItemID string `json:"itemId"`
					Seed   string `json:"seed"`
				}
				if err := json.Unmarshal(args, &in); err != nil {
					return nil, rpgerr.Wrap(err, rpgerr.KindValidation, "parse arguments")
				}
				res, err := d.Theft.Recognize(ctx, in.NPCID, in.ItemID, in.Seed)
				if err != nil {
					return nil, err
				}
				text := fmt.Sprintf("%s does not recognize %s.", in.NPCID, in.ItemID)
				if res.Recognized {
					text = fmt.Sprintf("%s recognizes %s and turns %s.", in.NPCID, in.ItemID, res.Reaction)
				}
				return &registry.Result{Text: text, State: res}, nil
			},
		},
		&router.Action{
			Name:        "sell",
			Description: "Sell a stolen item to a fence, subject to heat ceiling, daily capacity and cooldown.",
			Aliases:     []string{"fence", "sell_item"},
			Schema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"action": {"const": "sell"},
					"sellerId": {"type": "string", "minLength": 1},
					"fenceId": {"type": "string", "minLength": 1},
					"itemId": {"type": "string", "minLength": 1},
					"itemValue": {"type": "integer", "minimum": 0},
					"worldId": {"type": "string"}
				},
				"required": ["action", "sellerId", "fenceId", "itemId", "itemValue"]
			}`),
			Handler: func(ctx context.Context, sess registry.Session, args json.RawMessage) (*registry.Result, error) {
				var in struct {
					SellerID  string `json:"sellerId"`
					FenceID   string `json:"fenceId"`
					ItemID    string `json:"itemId"`
					ItemValue int    `json:"itemValue"`
					WorldID   string `json:"worldId"`
				}
				if err := json.Unmarshal(args, &in); err != nil {
					return nil, rpgerr.Wrap(err, rpgerr.KindValidation, "parse arguments")
				}
				day := 0
				if in.WorldID != "" {
					var err error
					if day, err = d.Store.TurnState.Day(ctx, in.WorldID); err != nil {
						return nil, err
					}
				}
				res, err := d.Theft.SellToFence(ctx, in.SellerID, in.FenceID, in.ItemID, in.ItemValue, day)
				if err != nil {
					return nil, err
				}
				return &registry.Result{
					Text:  fmt.Sprintf("%s buys %s for %d gold.", in.FenceID, in.ItemID, res.Price),
					State: res,
				}, nil
			},
		},
		&router.Action{
			Name:        "register_fence",
			Description: "Register an NPC as a fence. Theft victims cannot fence.",
			Aliases:     []string{"add_fence"},
			Schema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"action": {"const": "register_fence"},
					"npcId": {"type": "string", "minLength": 1},
					"factionId": {"type": "string"},
					"buyRate": {"type": "number", "minimum": 0.1, "maximum": 1.0},
					"maxHeatLevel": {"type": "string", "enum": ["burning", "hot", "warm", "cool", "cold"]},
					"dailyHeatCapacity": {"type": "integer", "minimum": 0},
					"specializations": {"type": "array", "items": {"type": "string"}},
					"cooldownDays": {"type": "integer", "minimum": 0}
				},
				"required": ["action", "npcId", "buyRate", "dailyHeatCapacity"]
			}`),
			Handler: func(ctx context.Context, sess registry.Session, args json.RawMessage) (*registry.Result, error) {
				var fence models.Fence
				if err := json.Unmarshal(args, &fence); err != nil {
					return nil, rpgerr.Wrap(err, rpgerr.KindValidation, "parse arguments")
				}
				if err := d.Theft.RegisterFence(ctx, &fence); err != nil {
					return nil, err
				}
				return &registry.Result{
					Text:  fmt.Sprintf("%s now fences goods up to %s heat at %.0f%% of value.", fence.NPCID, fence.MaxHeatLevel, fence.BuyRate*100),
					State: fence,
				}, nil
			},
		},
		&router.Action{
			Name:        "report",
			Description: "Report a theft to the guards and post a bounty.",
			Aliases:     []string{"report_theft"},
			Schema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"action": {"const": "report"},
					"itemId": {"type": "string", "minLength": 1},
					"bountyOffered": {"type": "integer", "minimum": 0}
				},
				"required": ["action", "itemId"]
			}`),
			Handler: func(ctx context.Context, sess registry.Session, args json.RawMessage) (*registry.Result, error) {
				var in struct {
					ItemID        string `json:"itemId"`
					BountyOffered int    `json:"bountyOffered"`
				}
				if err := json.Unmarshal(args, &in); err != nil {
					return nil, rpgerr.Wrap(err, rpgerr.KindValidation, "parse arguments")
				}
				rec, err := d.Theft.Report(ctx, in.ItemID, in.BountyOffered)
				if err != nil {
					return nil, err
				}
				return &registry.Result{
					Text:  fmt.Sprintf("The guards now watch for %s; the bounty stands at %d gold.", rec.ItemID, rec.Bounty),
					State: rec,
				}, nil
			},
		},
		&router.Action{
			Name:        "decay",
			Description: "Advance simulated days: heat cools one step per day and fence capacity resets.",
			Aliases:     []string{"advance_time", "cool"},
			Schema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"action": {"const": "decay"},
					"daysAdvanced": {"type": "integer", "minimum": 0},
					"worldId": {"type": "string"}
				},
				"required": ["action", "daysAdvanced"]
			}`),
			Handler: func(ctx context.Context, sess registry.Session, args json.RawMessage) (*registry.Result, error) {
				var in struct {
					DaysAdvanced int    `json:"daysAdvanced"`
					WorldID      string `json:"worldId"`
				}
				if err := json.Unmarshal(args, &in); err != nil {
					return nil, rpgerr.Wrap(err, rpgerr.KindValidation, "parse arguments")
				}
				res, err := d.Theft.Decay(ctx, in.DaysAdvanced)
				if err != nil {
					return nil, err
				}
				if in.WorldID != "" {
					if _, err := d.Store.TurnState.Advance(ctx, in.WorldID, in.DaysAdvanced); err != nil {
						return nil, err
					}
				}
				return &registry.Result{
					Text:  fmt.Sprintf("%d days pass; %d records cooled.", res.DaysAdvanced, res.RecordsCooled),
					State: res,
				}, nil
			},
		},
		&router.Action{
			Name:        "get_fence",
			Description: "Read one fence's rates and remaining capacity.",
			Aliases:     []string{"fence_info"},
			Schema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"action": {"const": "get_fence"},
					"npcId": {"type": "string", "minLength": 1}
				},
				"required": ["action", "npcId"]
			}`),
			Handler: func(ctx context.Context, sess registry.Session, args json.RawMessage) (*registry.Result, error) {
				var in struct {
					NPCID string `json:"npcId"`
				}
				if err := json.Unmarshal(args, &in); err != nil {
					return nil, rpgerr.Wrap(err, rpgerr.KindValidation, "parse arguments")
				}
				fence, err := d.Store.Fences.FindByNPC(ctx, in.NPCID)
				if err != nil {
					return nil, err
				}
				return &registry.Result{
					Text: fmt.Sprintf("%s buys at %.0f%%, %d/%d heat used today.",
						fence.NPCID, fence.BuyRate*100, fence.DailyHeatUsed, fence.DailyHeatCapacity),
					State: fence,
				}, nil
			},
		},
		&router.Action{
			Name:        "list_fences",
			Description: "List every registered fence.",
			Aliases:     []string{"fences"},
			Schema: json.RawMessage(`{
				"type": "object",
				"properties": {"action": {"const": "list_fences"}},
				"required": ["action"]
			}`),
			Handler: func(ctx context.Context, sess registry.Session, args json.RawMessage) (*registry.Result, error) {
				fences, err := d.Store.Fences.List(ctx)
				if err != nil {
					return nil, err
				}
				return &registry.Result{
					Text:  fmt.Sprintf("%d fences operate in the shadows.", len(fences)),
					State: fences,
				}, nil
			},
		},
	)

	r.MustRegister(&registry.Tool{
		Name:        "theft_manage",
		Description: "Stolen-goods management: steal, check, search, recognize, sell, register_fence, report, decay, get_fence, list_fences.",
		InputSchema: consolidatedSchema,
		Handler:     rt.Dispatch,
	})
}

// consolidatedSchema is the loose outer contract of every consolidated
// tool: an action string plus action-specific fields. The router
// validates the full input against the resolved action's schema.
var consolidatedSchema = json.RawMessage(`{
	"type": "object",
	"properties": {"action": {"type": "string", "minLength": 1}},
	"required": ["action"]
}`)
