package improv

import (
	"context"
	"fmt"

	"github.com/mnehmos/questforge/internal/dice"
	"github.com/mnehmos/questforge/internal/rpgerr"
	"github.com/mnehmos/questforge/pkg/models"
)

// SynthesisInput describes one arcane-synthesis attempt.
type SynthesisInput struct {
	CasterID      string
	SpellName     string
	Level         int
	School        string
	EffectType    string
	EffectDice    string
	InCombat      bool
	KnowsRelated  bool
	MaterialValue int
	AtLeyLine     bool
	CelestialOmen bool
	Desperate     bool
	Seed          string
}

// SynthesisOutcome bands a synthesis roll.
type SynthesisOutcome string

const (
	OutcomeMastery      SynthesisOutcome = "mastery"
	OutcomeSuccess      SynthesisOutcome = "success"
	OutcomeFizzle       SynthesisOutcome = "fizzle"
	OutcomeBackfire     SynthesisOutcome = "backfire"
	OutcomeCatastrophic SynthesisOutcome = "catastrophic"
)

// SynthesisResult reports one resolution.
type SynthesisResult struct {
	CasterID          string           `json:"casterId"`
	SpellName         string           `json:"spellName"`
	Level             int              `json:"level"`
	DC                int              `json:"dc"`
	Roll              int              `json:"roll"`
	Modifier          int              `json:"modifier"`
	Total             int              `json:"total"`
	Margin            int              `json:"margin"`
	Outcome           SynthesisOutcome `json:"outcome"`
	SpellMastered     bool             `json:"spellMastered"`
	SpellSlotConsumed bool             `json:"spellSlotConsumed"`
	BackfireDamage    int              `json:"backfireDamage,omitempty"`
	WildSurge         string           `json:"wildSurge,omitempty"`
}

// wildSurgeTable is rolled on a catastrophic synthesis (d100, bands of
// ten).
var wildSurgeTable = []string{
	"the caster swaps places with the nearest creature",
	"every flame within sixty feet turns blue and cold",
	"the caster speaks only in questions for an hour",
	"a harmless duplicate of the caster appears and wanders off",
	"gravity reverses for six seconds in a ten-foot radius",
	"the caster's hair grows a foot and turns silver",
	"all unattended coins nearby rise and orbit the caster",
	"the spell fires twice at a random target",
	"the caster is deafened by phantom bells for ten minutes",
	"a rift opens and rains harmless frogs for one round",
}

// synthesisDC computes the difficulty: 10 + 2*level, adjusted for
// circumstances.
func synthesisDC(in SynthesisInput) int {
	dc := 10 + 2*in.Level
	if in.InCombat {
		dc += 2
	}
	if in.KnowsRelated {
		dc -= 2
	} else {
		dc += 3
	}
	if in.MaterialValue > 0 {
		reduction := in.MaterialValue / 100
		if reduction > 5 {
			reduction = 5
		}
		dc -= reduction
	}
	if in.AtLeyLine {
		dc -= 3
	}
	if in.CelestialOmen {
		dc -= 2
	}
	if in.Desperate {
		dc += 2
	}
	return dc
}

// Synthesize resolves an arcane synthesis. A natural 20 or a margin of
// +10 is mastery: the spell joins the caster's synthesized spellbook
// and no slot is consumed. A natural 1 or margin of -10 rolls the
// wild-surge table.
func (e *Engine) Synthesize(ctx context.Context, in SynthesisInput) (*SynthesisResult, error) {
	if in.Level < 1 || in.Level > 9 {
		return nil, rpgerr.New(rpgerr.KindValidation, "spell level %d outside [1, 9]", in.Level)
	}
	caster, err := e.store.Characters.FindByID(ctx, in.CasterID)
	if err != nil {
		return nil, err
	}

	seed := in.Seed
	if seed == "" {
		seed = fmt.Sprintf("synthesize-%s-%s", in.CasterID, in.SpellName)
	}
	roller := dice.New(seed)

	res := &SynthesisResult{
		CasterID:  in.CasterID,
		SpellName: in.SpellName,
		Level:     in.Level,
		DC:        synthesisDC(in),
		Modifier:  models.Modifier(caster.Stats.Int) + caster.ProficiencyBonus(),
	}
	res.Roll = roller.D20()
	res.Total = res.Roll + res.Modifier
	res.Margin = res.Total - res.DC

	switch {
	case res.Roll == 1, res.Roll != 20 && res.Margin <= -10:
		res.Outcome = OutcomeCatastrophic
		res.SpellSlotConsumed = true
		surge := roller.Percent()
		res.WildSurge = wildSurgeTable[(surge-1)/10]
	case res.Roll == 20 || res.Margin >= 10:
		res.Outcome = OutcomeMastery
		res.SpellMastered = true
	case res.Margin >= 0:
		res.Outcome = OutcomeSuccess
		res.SpellSlotConsumed = true
	case res.Margin >= -5:
		res.Outcome = OutcomeFizzle
		res.SpellSlotConsumed = true
	default:
		res.Outcome = OutcomeBackfire
		res.SpellSlotConsumed = true
		total, rolls := 0, make([]int, 0, in.Level)
		for _, r := range roller.RollN(in.Level, 6) {
			total += r
			rolls = append(rolls, r)
		}
		res.BackfireDamage = total
		_ = e.store.Logs.RecordCalculation(ctx, "synthesis_backfire", seed,
			fmt.Sprintf("%dd6", in.Level), total, rolls)
	}

	if res.SpellMastered {
		sp := &models.SynthesizedSpell{
			CharacterID: in.CasterID,
			Name:        in.SpellName,
			Level:       in.Level,
			School:      in.School,
			EffectType:  in.EffectType,
			EffectDice:  in.EffectDice,
		}
		if err := e.store.Spells.Create(ctx, sp); err != nil {
			return nil, err
		}
	}

	e.audit.Record("improv.synthesize", in.CasterID, "", res)
	e.bus.Publish("improv.synthesized", res)
	return res, nil
}

// Spellbook returns the caster's synthesized spells.
func (e *Engine) Spellbook(ctx context.Context, characterID string) ([]*models.SynthesizedSpell, error) {
	return e.store.Spells.ListByCharacter(ctx, characterID)
}
