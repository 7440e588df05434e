package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mnehmos/questforge/internal/combat"
	"github.com/mnehmos/questforge/internal/registry"
	"github.com/mnehmos/questforge/internal/rpgerr"
	"github.com/mnehmos/questforge/pkg/models"
)

func (d *Deps) registerCombatTools(r *registry.Registry) {
	r.MustRegister(&registry.Tool{
		Name:        "create_encounter",
		Description: "Start a combat encounter: rolls initiative for every participant with a seeded RNG and opens round one.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"participants": {
					"type": "array",
					"minItems": 1,
					"items": {
						"type": "object",
						"properties": {
							"id": {"type": "string", "minLength": 1},
							"name": {"type": "string"},
							"hp": {"type": "integer"},
							"maxHp": {"type": "integer"},
							"ac": {"type": "integer"},
							"initiativeBonus": {"type": "integer"},
							"isEnemy": {"type": "boolean"}
						},
						"required": ["id"]
					}
				},
				"seed": {"type": "string"},
				"terrain": {
					"type": "object",
					"properties": {"obstacles": {"type": "array", "items": {"type": "string"}}}
				}
			},
			"required": ["participants"]
		}`),
		Handler: func(ctx context.Context, sess registry.Session, args json.RawMessage) (*registry.Result, error) {
			var in struct {
				Participants []combat.Participant `json:"participants"`
				Seed         string               `json:"seed"`
				Terrain      *models.Terrain      `json:"terrain"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, rpgerr.Wrap(err, rpgerr.KindValidation, "parse arguments")
			}
			engine, err := d.Combat.Create(ctx, sess.SessionID, in.Participants, in.Seed, in.Terrain)
			if err != nil {
				return nil, err
			}
			enc := engine.Snapshot()
			return &registry.Result{
				Text: fmt.Sprintf("Encounter %s begins. %s acts first in round 1.",
					enc.ID, enc.Tokens[0].Name),
				State: enc,
			}, nil
		},
	})

	r.MustRegister(&registry.Tool{
		Name:        "get_encounter_state",
		Description: "Read an encounter's current round, turn order and participant HP.",
		InputSchema: encounterIDSchema,
		Handler: func(ctx context.Context, sess registry.Session, args json.RawMessage) (*registry.Result, error) {
			engine, in, err := d.encounterFor(ctx, sess, args)
			if err != nil {
				return nil, err
			}
			enc := engine.Snapshot()
			return &registry.Result{
				Text:  fmt.Sprintf("Encounter %s: round %d, %s to act.", in.EncounterID, enc.Round, enc.ActiveTokenID),
				State: enc,
			}, nil
		},
	})

	r.MustRegister(&registry.Tool{
		Name:        "execute_combat_action",
		Description: "Resolve an attack or heal inside an encounter. Attacks roll d20 against the DC; natural 1 misses, natural 20 doubles damage.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"encounterId": {"type": "string", "minLength": 1},
				"actionType": {"type": "string", "enum": ["attack", "heal"]},
				"actorId": {"type": "string", "minLength": 1},
				"targetId": {"type": "string", "minLength": 1},
				"attackBonus": {"type": "integer"},
				"dc": {"type": "integer"},
				"damage": {"type": "integer", "minimum": 0},
				"amount": {"type": "integer", "minimum": 0}
			},
			"required": ["encounterId", "actionType", "actorId", "targetId"]
		}`),
		Handler: func(ctx context.Context, sess registry.Session, args json.RawMessage) (*registry.Result, error) {
			var in struct {
				EncounterID string `json:"encounterId"`
				ActionType  string `json:"actionType"`
				ActorID     string `json:"actorId"`
				TargetID    string `json:"targetId"`
				AttackBonus int    `json:"attackBonus"`
				DC          int    `json:"dc"`
				Damage      int    `json:"damage"`
				Amount      int    `json:"amount"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, rpgerr.Wrap(err, rpgerr.KindValidation, "parse arguments")
			}
			engine, err := d.Combat.Get(ctx, sess.SessionID, in.EncounterID)
			if err != nil {
				return nil, err
			}
			switch in.ActionType {
			case "attack":
				res, err := engine.Attack(ctx, in.ActorID, in.TargetID, in.AttackBonus, in.DC, in.Damage)
				if err != nil {
					return nil, err
				}
				verdict := "misses"
				if res.Hit {
					verdict = fmt.Sprintf("hits for %d damage", res.DamageApplied)
					if res.Critical {
						verdict = fmt.Sprintf("critically hits for %d damage", res.DamageApplied)
					}
				}
				text := fmt.Sprintf("%s rolls %d+%d against DC %d and %s.",
					in.ActorID, res.Roll, res.AttackBonus, res.DC, verdict)
				if res.Defeated {
					text += fmt.Sprintf(" %s is defeated.", in.TargetID)
				}
				return &registry.Result{Text: text, State: res}, nil
			case "heal":
				res, err := engine.Heal(ctx, in.ActorID, in.TargetID, in.Amount)
				if err != nil {
					return nil, err
				}
				return &registry.Result{
					Text:  fmt.Sprintf("%s heals %s for %d (now %d hp).", in.ActorID, in.TargetID, res.Healed, res.TargetHP),
					State: res,
				}, nil
			}
			return nil, rpgerr.New(rpgerr.KindValidation, "unknown actionType %q", in.ActionType)
		},
	})

	r.MustRegister(&registry.Tool{
		Name:        "advance_turn",
		Description: "Advance to the next participant, skipping the defeated, ticking round-based effects, and incrementing the round on wrap.",
		InputSchema: encounterIDSchema,
		Handler: func(ctx context.Context, sess registry.Session, args json.RawMessage) (*registry.Result, error) {
			engine, _, err := d.encounterFor(ctx, sess, args)
			if err != nil {
				return nil, err
			}
			res, err := engine.AdvanceTurn(ctx)
			if err != nil {
				return nil, err
			}
			text := fmt.Sprintf("Round %d: %s to act.", res.Round, res.ActiveTokenID)
			if res.SideDefeated != "" {
				text += fmt.Sprintf(" All %s are down.", res.SideDefeated)
			}
			return &registry.Result{Text: text, State: res}, nil
		},
	})

	r.MustRegister(&registry.Tool{
		Name:        "end_encounter",
		Description: "Complete an encounter and write each token's final HP back to its persisted character; ad-hoc tokens are skipped.",
		InputSchema: encounterIDSchema,
		Handler: func(ctx context.Context, sess registry.Session, args json.RawMessage) (*registry.Result, error) {
			engine, in, err := d.encounterFor(ctx, sess, args)
			if err != nil {
				return nil, err
			}
			res, err := engine.End(ctx)
			if err != nil {
				return nil, err
			}
			d.Combat.Evict(sess.SessionID, in.EncounterID)
			return &registry.Result{
				Text:  fmt.Sprintf("Encounter %s ends after %d rounds; %d characters synced.", res.EncounterID, res.Rounds, len(res.WrittenBack)),
				State: res,
			}, nil
		},
	})

	r.MustRegister(&registry.Tool{
		Name:        "load_encounter",
		Description: "Load a persisted encounter into this session, resuming from its saved round and turn without replaying dice.",
		InputSchema: encounterIDSchema,
		Handler: func(ctx context.Context, sess registry.Session, args json.RawMessage) (*registry.Result, error) {
			engine, in, err := d.encounterFor(ctx, sess, args)
			if err != nil {
				return nil, err
			}
			enc := engine.Snapshot()
			return &registry.Result{
				Text:  fmt.Sprintf("Encounter %s resumed at round %d.", in.EncounterID, enc.Round),
				State: enc,
			}, nil
		},
	})
}

var encounterIDSchema = json.RawMessage(`{
	"type": "object",
	"properties": {"encounterId": {"type": "string", "minLength": 1}},
	"required": ["encounterId"]
}`)

type encounterIDInput struct {
	EncounterID string `json:"encounterId"`
}

func (d *Deps) encounterFor(ctx context.Context, sess registry.Session, args json.RawMessage) (*combat.Engine, *encounterIDInput, error) {
	var in encounterIDInput
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, nil, rpgerr.Wrap(err, rpgerr.KindValidation, "parse arguments")
	}
	engine, err := d.Combat.Get(ctx, sess.SessionID, in.EncounterID)
	if err != nil {
		return nil, nil, err
	}
	return engine, &in, nil
}
