// Package improv implements improvised play: skill-check stunts,
// custom effects with triggers and durations, and arcane synthesis.
package improv

import (
	"context"
	"fmt"

	"github.com/mnehmos/questforge/internal/audit"
	"github.com/mnehmos/questforge/internal/dice"
	"github.com/mnehmos/questforge/internal/events"
	"github.com/mnehmos/questforge/internal/rpgerr"
	"github.com/mnehmos/questforge/internal/store"
)

// skillAbility maps each skill to the ability backing its checks.
var skillAbility = map[string]string{
	"athletics":       "str",
	"acrobatics":      "dex",
	"sleight_of_hand": "dex",
	"stealth":         "dex",
	"arcana":          "int",
	"history":         "int",
	"investigation":   "int",
	"nature":          "int",
	"religion":        "int",
	"animal_handling": "wis",
	"insight":         "wis",
	"medicine":        "wis",
	"perception":      "wis",
	"survival":        "wis",
	"deception":       "cha",
	"intimidation":    "cha",
	"performance":     "cha",
	"persuasion":      "cha",
}

// Engine applies improvisation rules.
type Engine struct {
	store *store.Store
	audit *audit.Logger
	bus   *events.Bus
}

// New creates an improvisation engine.
func New(s *store.Store, a *audit.Logger, bus *events.Bus) *Engine {
	return &Engine{store: s, audit: a, bus: bus}
}

// StuntInput is one "rule of cool" attempt.
type StuntInput struct {
	ActorID        string
	Skill          string
	DC             int
	Advantage      bool
	Disadvantage   bool
	SuccessDamage  string
	FailureDamage  string
	Targets        []StuntTarget
	Seed           string
}

// StuntTarget is one declared target with an optional saving throw.
type StuntTarget struct {
	ID            string
	SavingThrowDC int
	HalfOnSave    bool
	Conditions    []string
}

// TargetOutcome is the per-target resolution.
type TargetOutcome struct {
	TargetID   string   `json:"targetId"`
	SaveRoll   int      `json:"saveRoll,omitempty"`
	SaveDC     int      `json:"saveDc,omitempty"`
	Saved      bool     `json:"saved"`
	Damage     int      `json:"damage"`
	Conditions []string `json:"conditions,omitempty"`
}

// StuntResult is the full stunt resolution.
type StuntResult struct {
	ActorID         string          `json:"actorId"`
	Skill           string          `json:"skill"`
	Ability         string          `json:"ability"`
	Roll            int             `json:"roll"`
	Rolls           []int           `json:"rolls,omitempty"`
	Modifier        int             `json:"modifier"`
	Total           int             `json:"total"`
	DC              int             `json:"dc"`
	Success         bool            `json:"success"`
	CriticalSuccess bool            `json:"criticalSuccess"`
	CriticalFailure bool            `json:"criticalFailure"`
	Damage          int             `json:"damage"`
	SelfDamage      int             `json:"selfDamage"`
	Targets         []TargetOutcome `json:"targets,omitempty"`
}

// Stunt resolves a skill check with optional advantage, damage, and
// per-target saving throws. Natural 20 or beating the DC by 10+ is a
// critical success (damage doubled); natural 1 or missing by 10+ is a
// critical failure (self-damage may apply).
func (e *Engine) Stunt(ctx context.Context, in StuntInput) (*StuntResult, error) {
	if in.DC < 5 || in.DC > 35 {
		return nil, rpgerr.New(rpgerr.KindValidation, "stunt dc %d outside [5, 35]", in.DC)
	}
	if in.Advantage && in.Disadvantage {
		return nil, rpgerr.New(rpgerr.KindValidation, "advantage and disadvantage are mutually exclusive")
	}
	ability, ok := skillAbility[in.Skill]
	if !ok {
		return nil, rpgerr.New(rpgerr.KindValidation, "unknown skill %q", in.Skill)
	}
	actor, err := e.store.Characters.FindByID(ctx, in.ActorID)
	if err != nil {
		return nil, err
	}

	seed := in.Seed
	if seed == "" {
		seed = fmt.Sprintf("stunt-%s-%s", in.ActorID, in.Skill)
	}
	roller := dice.New(seed)

	res := &StuntResult{ActorID: in.ActorID, Skill: in.Skill, Ability: ability, DC: in.DC}
	switch {
	case in.Advantage:
		kept, rolls := roller.D20Advantage()
		res.Roll, res.Rolls = kept, rolls[:]
	case in.Disadvantage:
		kept, rolls := roller.D20Disadvantage()
		res.Roll, res.Rolls = kept, rolls[:]
	default:
		res.Roll = roller.D20()
	}
	res.Modifier = actor.StatMod(ability)
	res.Total = res.Roll + res.Modifier

	res.Success = res.Roll != 1 && (res.Roll == 20 || res.Total >= in.DC)
	res.CriticalSuccess = res.Roll == 20 || (res.Success && res.Total >= in.DC+10)
	res.CriticalFailure = res.Roll == 1 || (!res.Success && res.Total <= in.DC-10)

	if res.Success && in.SuccessDamage != "" {
		total, rolls, err := roller.RollExpr(in.SuccessDamage)
		if err != nil {
			return nil, rpgerr.Wrap(err, rpgerr.KindValidation, "successDamage")
		}
		if res.CriticalSuccess {
			total *= 2
		}
		res.Damage = total
		_ = e.store.Logs.RecordCalculation(ctx, "stunt_damage", seed, in.SuccessDamage, total, rolls)

		for _, tgt := range in.Targets {
			out := TargetOutcome{TargetID: tgt.ID, Damage: total}
			if tgt.SavingThrowDC > 0 {
				out.SaveDC = tgt.SavingThrowDC
				out.SaveRoll = roller.D20()
				out.Saved = out.SaveRoll >= tgt.SavingThrowDC
				if out.Saved {
					if tgt.HalfOnSave {
						out.Damage = total / 2
					} else {
						out.Damage = 0
					}
				}
			}
			if !out.Saved {
				out.Conditions = tgt.Conditions
			}
			res.Targets = append(res.Targets, out)
		}
	}
	if res.CriticalFailure && in.FailureDamage != "" {
		total, rolls, err := roller.RollExpr(in.FailureDamage)
		if err != nil {
			return nil, rpgerr.Wrap(err, rpgerr.KindValidation, "failureDamage")
		}
		res.SelfDamage = total
		_ = e.store.Logs.RecordCalculation(ctx, "stunt_self_damage", seed, in.FailureDamage, total, rolls)
	}

	e.audit.Record("improv.stunt", in.ActorID, "", res)
	e.bus.Publish("improv.stunt", res)
	return res, nil
}
