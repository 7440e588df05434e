package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mnehmos/questforge/internal/dice"
	"github.com/mnehmos/questforge/internal/registry"
	"github.com/mnehmos/questforge/internal/rpgerr"
	"github.com/mnehmos/questforge/pkg/models"
)

func (d *Deps) registerRestTools(r *registry.Registry) {
	r.MustRegister(&registry.Tool{
		Name:        "take_long_rest",
		Description: "Long rest: restores the character to full hit points.",
		InputSchema: characterIDSchema,
		Handler: func(ctx context.Context, sess registry.Session, args json.RawMessage) (*registry.Result, error) {
			var in characterIDInput
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, rpgerr.Wrap(err, rpgerr.KindValidation, "parse arguments")
			}
			c, err := d.Store.Characters.FindByID(ctx, in.CharacterID)
			if err != nil {
				return nil, err
			}
			healed := c.MaxHP - c.HP
			c.HP = c.MaxHP
			if err := d.Store.Characters.Update(ctx, c); err != nil {
				return nil, err
			}
			d.Audit.Record("rest.long", c.ID, "", map[string]any{"healed": healed})
			d.Bus.Publish("rest.long", map[string]any{"characterId": c.ID, "healed": healed})
			return &registry.Result{
				Text:  fmt.Sprintf("%s rests through the night and recovers %d hp (%d/%d).", c.Name, healed, c.HP, c.MaxHP),
				State: c,
			}, nil
		},
	})

	r.MustRegister(&registry.Tool{
		Name:        "take_short_rest",
		Description: "Short rest: spend hit dice, healing max(1, roll + CON modifier) per die, capped at max hp.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"characterId": {"type": "string", "minLength": 1},
				"hitDice": {"type": "integer", "minimum": 0},
				"seed": {"type": "string"}
			},
			"required": ["characterId", "hitDice"]
		}`),
		Handler: func(ctx context.Context, sess registry.Session, args json.RawMessage) (*registry.Result, error) {
			var in struct {
				CharacterID string `json:"characterId"`
				HitDice     int    `json:"hitDice"`
				Seed        string `json:"seed"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, rpgerr.Wrap(err, rpgerr.KindValidation, "parse arguments")
			}
			c, err := d.Store.Characters.FindByID(ctx, in.CharacterID)
			if err != nil {
				return nil, err
			}
			if in.HitDice < 0 {
				in.HitDice = 0
			}
			seed := in.Seed
			if seed == "" {
				seed = "short-rest-" + c.ID
			}
			roller := dice.New(seed)
			conMod := models.Modifier(c.Stats.Con)

			rolls := roller.RollN(in.HitDice, c.HitDie)
			healed := 0
			for _, roll := range rolls {
				heal := roll + conMod
				if heal < 1 {
					heal = 1
				}
				healed += heal
			}
			if room := c.MaxHP - c.HP; healed > room {
				healed = room
			}
			c.HP += healed
			if err := d.Store.Characters.Update(ctx, c); err != nil {
				return nil, err
			}
			_ = d.Store.Logs.RecordCalculation(ctx, "short_rest", seed,
				fmt.Sprintf("%dd%d", in.HitDice, c.HitDie), healed, rolls)
			d.Audit.Record("rest.short", c.ID, "", map[string]any{"hitDice": in.HitDice, "healed": healed})
			return &registry.Result{
				Text: fmt.Sprintf("%s spends %d hit dice and recovers %d hp (%d/%d).",
					c.Name, in.HitDice, healed, c.HP, c.MaxHP),
				State: map[string]any{"characterId": c.ID, "rolls": rolls, "healed": healed, "hp": c.HP},
			}, nil
		},
	})
}
