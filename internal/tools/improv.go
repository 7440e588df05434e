package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mnehmos/questforge/internal/improv"
	"github.com/mnehmos/questforge/internal/registry"
	"github.com/mnehmos/questforge/internal/router"
	"github.com/mnehmos/questforge/internal/rpgerr"
	"github.com/mnehmos/questforge/internal/store"
	"github.com/mnehmos/questforge/pkg/models"
)

func (d *Deps) registerImprovTool(r *registry.Registry) {
	rt := router.New("improvisation_manage",
		&router.Action{
			Name:        "stunt",
			Description: "Resolve a rule-of-cool skill check with optional advantage, damage and saving throws.",
			Aliases:     []string{"rule_of_cool", "skill_check"},
			Schema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"action": {"const": "stunt"},
					"actorId": {"type": "string", "minLength": 1},
					"skill": {"type": "string", "minLength": 1},
					"dc": {"type": "integer", "minimum": 5, "maximum": 35},
					"advantage": {"type": "boolean"},
					"disadvantage": {"type": "boolean"},
					"successDamage": {"type": "string"},
					"failureDamage": {"type": "string"},
					"targets": {
						"type": "array",
						"items": {
							"type": "object",
							"properties": {
								"id": {"type": "string", "minLength": 1},
								"savingThrowDc": {"type": "integer"},
								"halfOnSave": {"type": "boolean"},
								"conditions": {"type": "array", "items": {"type": "string"}}
							},
							"required": ["id"]
						}
					},
					"seed": {"type": "string"}
				},
				"required": ["action", "actorId", "skill", "dc"]
			}`),
			Handler: func(ctx context.Context, sess registry.Session, args json.RawMessage) (*registry.Result, error) {
				var in struct {
					ActorID       string `json:"actorId"`
					Skill         string `json:"skill"`
					DC            int    `json:"dc"`
					Advantage     bool   `json:"advantage"`
					Disadvantage  bool   `json:"disadvantage"`
					SuccessDamage string `json:"successDamage"`
					FailureDamage string `json:"failureDamage"`
					Targets       []struct {
						ID            string   `json:"id"`
						SavingThrowDC int      `json:"savingThrowDc"`
						HalfOnSave    bool     `json:"halfOnSave"`
						Conditions    []string `json:"conditions"`
					} `json:"targets"`
					Seed string `json:"seed"`
				}
				if err := json.Unmarshal(args, &in); err != nil {
					return nil, rpgerr.Wrap(err, rpgerr.KindValidation, "parse arguments")
				}
				input := improv.StuntInput{
					ActorID:       in.ActorID,
					Skill:         in.Skill,
					DC:            in.DC,
					Advantage:     in.Advantage,
					Disadvantage:  in.Disadvantage,
					SuccessDamage: in.SuccessDamage,
					FailureDamage: in.FailureDamage,
					Seed:          in.Seed,
				}
				for _, t := range in.Targets {
					input.Targets = append(input.Targets, improv.StuntTarget{
						ID:            t.ID,
						SavingThrowDC: t.SavingThrowDC,
						HalfOnSave:    t.HalfOnSave,
						Conditions:    t.Conditions,
					})
				}
				res, err := d.Improv.Stunt(ctx, input)
				if err != nil {
					return nil, err
				}
				verdict := "fails"
				switch {
				case res.CriticalSuccess:
					verdict = "succeeds spectacularly"
				case res.Success:
					verdict = "succeeds"
				case res.CriticalFailure:
					verdict = "fails catastrophically"
				}
				return &registry.Result{
					Text: fmt.Sprintf("%s attempts a %s stunt (%d+%d vs DC %d) and %s.",
						in.ActorID, in.Skill, res.Roll, res.Modifier, res.DC, verdict),
					State: res,
				}, nil
			},
		},
		&router.Action{
			Name:        "apply_effect",
			Description: "Apply a custom effect with category, power level, mechanics, duration and triggers.",
			Aliases:     []string{"add_effect"},
			Schema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"action": {"const": "apply_effect"},
					"targetId": {"type": "string", "minLength": 1},
					"targetType": {"type": "string"},
					"sourceType": {"type": "string"},
					"name": {"type": "string", "minLength": 1},
					"category": {"type": "string", "enum": ["boon", "curse", "neutral", "transformative"]},
					"powerLevel": {"type": "integer", "minimum": 1, "maximum": 5},
					"mechanics": {"type": "array"},
					"duration": {
						"type": "object",
						"properties": {
							"type": {"type": "string", "enum": ["rounds", "minutes", "hours", "days", "permanent", "until_removed"]},
							"value": {"type": "integer", "minimum": 0}
						},
						"required": ["type"]
					},
					"triggers": {
						"type": "array",
						"items": {
							"type": "object",
							"properties": {
								"event": {"type": "string", "minLength": 1},
								"condition": {"type": "string"}
							},
							"required": ["event"]
						}
					}
				},
				"required": ["action", "targetId", "name", "category", "powerLevel", "duration"]
			}`),
			Handler: func(ctx context.Context, sess registry.Session, args json.RawMessage) (*registry.Result, error) {
				var effect models.CustomEffect
				if err := json.Unmarshal(args, &effect); err != nil {
					return nil, rpgerr.Wrap(err, rpgerr.KindValidation, "parse arguments")
				}
				if effect.TargetType == "" {
					effect.TargetType = "character"
				}
				applied, err := d.Improv.ApplyEffect(ctx, &effect)
				if err != nil {
					return nil, err
				}
				return &registry.Result{
					Text: fmt.Sprintf("%s gains %q (%s, power %d).",
						applied.TargetID, applied.Name, applied.Category, applied.PowerLevel),
					State: applied,
				}, nil
			},
		},
		&router.Action{
			Name:        "get_effects",
			Description: "Query effects on a target by category, source and active state.",
			Aliases:     []string{"list_effects"},
			Schema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"action": {"const": "get_effects"},
					"targetId": {"type": "string", "minLength": 1},
					"category": {"type": "string", "enum": ["boon", "curse", "neutral", "transformative"]},
					"sourceType": {"type": "string"},
					"activeOnly": {"type": "boolean"}
				},
				"required": ["action", "targetId"]
			}`),
			Handler: func(ctx context.Context, sess registry.Session, args json.RawMessage) (*registry.Result, error) {
				var in struct {
					TargetID   string `json:"targetId"`
					Category   string `json:"category"`
					SourceType string `json:"sourceType"`
					ActiveOnly bool   `json:"activeOnly"`
				}
				if err := json.Unmarshal(args, &in); err != nil {
					return nil, rpgerr.Wrap(err, rpgerr.KindValidation, "parse arguments")
				}
				effects, err := d.Improv.GetEffects(ctx, store.EffectQuery{
					TargetID:   in.TargetID,
					Category:   models.EffectCategory(in.Category),
					SourceType: in.SourceType,
					ActiveOnly: in.ActiveOnly,
				})
				if err != nil {
					return nil, err
				}
				return &registry.Result{
					Text:  fmt.Sprintf("%d effects on %s.", len(effects), in.TargetID),
					State: effects,
				}, nil
			},
		},
		&router.Action{
			Name:        "remove_effect",
			Description: "Remove an effect by id, or by target and name.",
			Aliases:     []string{"dispel"},
			Schema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"action": {"const": "remove_effect"},
					"effectId": {"type": "string"},
					"targetId": {"type": "string"},
					"name": {"type": "string"}
				},
				"required": ["action"]
			}`),
			Handler: func(ctx context.Context, sess registry.Session, args json.RawMessage) (*registry.Result, error) {
				var in struct {
					EffectID string `json:"effectId"`
					TargetID string `json:"targetId"`
					Name     string `json:"name"`
				}
				if err := json.Unmarshal(args, &in); err != nil {
					return nil, rpgerr.Wrap(err, rpgerr.KindValidation, "parse arguments")
				}
				n, err := d.Improv.RemoveEffect(ctx, in.EffectID, in.TargetID, in.Name)
				if err != nil {
					return nil, err
				}
				return &registry.Result{
					Text:  fmt.Sprintf("%d effects removed.", n),
					State: map[string]any{"removed": n},
				}, nil
			},
		},
		&router.Action{
			Name:        "process_triggers",
			Description: "Find active effects on a target whose triggers match an event.",
			Aliases:     []string{"fire_triggers"},
			Schema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"action": {"const": "process_triggers"},
					"targetId": {"type": "string", "minLength": 1},
					"event": {"type": "string", "minLength": 1}
				},
				"required": ["action", "targetId", "event"]
			}`),
			Handler: func(ctx context.Context, sess registry.Session, args json.RawMessage) (*registry.Result, error) {
				var in struct {
					TargetID string `json:"targetId"`
					Event    string `json:"event"`
				}
				if err := json.Unmarshal(args, &in); err != nil {
					return nil, rpgerr.Wrap(err, rpgerr.KindValidation, "parse arguments")
				}
				fired, err := d.Improv.ProcessTriggers(ctx, in.TargetID, in.Event)
				if err != nil {
					return nil, err
				}
				return &registry.Result{
					Text:  fmt.Sprintf("%d effects trigger on %q.", len(fired), in.Event),
					State: fired,
				}, nil
			},
		},
		&router.Action{
			Name:        "advance_durations",
			Description: "Tick round-based effect durations on a target; expired effects flip inactive.",
			Aliases:     []string{"tick_effects"},
			Schema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"action": {"const": "advance_durations"},
					"targetId": {"type": "string", "minLength": 1},
					"rounds": {"type": "integer", "minimum": 0}
				},
				"required": ["action", "targetId", "rounds"]
			}`),
			Handler: func(ctx context.Context, sess registry.Session, args json.RawMessage) (*registry.Result, error) {
				var in struct {
					TargetID string `json:"targetId"`
					Rounds   int    `json:"rounds"`
				}
				if err := json.Unmarshal(args, &in); err != nil {
					return nil, rpgerr.Wrap(err, rpgerr.KindValidation, "parse arguments")
				}
				advanced, expired, err := d.Improv.AdvanceDurations(ctx, in.TargetID, in.Rounds)
				if err != nil {
					return nil, err
				}
				return &registry.Result{
					Text: fmt.Sprintf("%d effects advanced, %d expired.", len(advanced), len(expired)),
					State: map[string]any{
						"advanced": advanced,
						"expired":  expired,
					},
				}, nil
			},
		},
		&router.Action{
			Name:        "synthesize",
			Description: "Attempt arcane synthesis of a new spell. Mastery adds it to the spellbook without consuming a slot.",
			Aliases:     []string{"synthesis", "create_spell"},
			Schema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"action": {"const": "synthesize"},
					"casterId": {"type": "string", "minLength": 1},
					"spellName": {"type": "string", "minLength": 1},
					"level": {"type": "integer", "minimum": 1, "maximum": 9},
					"school": {"type": "string"},
					"effectType": {"type": "string"},
					"effectDice": {"type": "string"},
					"inCombat": {"type": "boolean"},
					"knowsRelated": {"type": "boolean"},
					"materialValue": {"type": "integer", "minimum": 0},
					"atLeyLine": {"type": "boolean"},
					"celestialOmen": {"type": "boolean"},
					"desperate": {"type": "boolean"},
					"seed": {"type": "string"}
				},
				"required": ["action", "casterId", "spellName", "level"]
			}`),
			Handler: func(ctx context.Context, sess registry.Session, args json.RawMessage) (*registry.Result, error) {
				var raw struct {
					CasterID      string `json:"casterId"`
					SpellName     string `json:"spellName"`
					Level         int    `json:"level"`
					School        string `json:"school"`
					EffectType    string `json:"effectType"`
					EffectDice    string `json:"effectDice"`
					InCombat      bool   `json:"inCombat"`
					KnowsRelated  bool   `json:"knowsRelated"`
					MaterialValue int    `json:"materialValue"`
					AtLeyLine     bool   `json:"atLeyLine"`
					CelestialOmen bool   `json:"celestialOmen"`
					Desperate     bool   `json:"desperate"`
					Seed          string `json:"seed"`
				}
				if err := json.Unmarshal(args, &raw); err != nil {
					return nil, rpgerr.Wrap(err, rpgerr.KindValidation, "parse arguments")
				}
				in := improv.SynthesisInput{
					CasterID:      raw.CasterID,
					SpellName:     raw.SpellName,
					Level:         raw.Level,
					School:        raw.School,
					EffectType:    raw.EffectType,
					EffectDice:    raw.EffectDice,
					InCombat:      raw.InCombat,
					KnowsRelated:  raw.KnowsRelated,
					MaterialValue: raw.MaterialValue,
					AtLeyLine:     raw.AtLeyLine,
					CelestialOmen: raw.CelestialOmen,
					Desperate:     raw.Desperate,
					Seed:          raw.Seed,
				}
				res, err := d.Improv.Synthesize(ctx, in)
				if err != nil {
					return nil, err
				}
				return &registry.Result{
					Text: fmt.Sprintf("%s weaves %q (level %d): %s (rolled %d+%d vs DC %d).",
						in.CasterID, in.SpellName, in.Level, res.Outcome, res.Roll, res.Modifier, res.DC),
					State: res,
				}, nil
			},
		},
		&router.Action{
			Name:        "get_spellbook",
			Description: "Read a character's synthesized spellbook.",
			Aliases:     []string{"spellbook"},
			Schema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"action": {"const": "get_spellbook"},
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
				spells, err := d.Improv.Spellbook(ctx, in.CharacterID)
				if err != nil {
					return nil, err
				}
				return &registry.Result{
					Text:  fmt.Sprintf("%s has mastered %d synthesized spells.", in.CharacterID, len(spells)),
					State: spells,
				}, nil
			},
		},
	)

	r.MustRegister(&registry.Tool{
		Name:        "improvisation_manage",
		Description: "Improvised play: stunt, apply_effect, get_effects, remove_effect, process_triggers, advance_durations, synthesize, get_spellbook.",
		InputSchema: consolidatedSchema,
		Handler:     rt.Dispatch,
	})
}
