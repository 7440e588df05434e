// Package combat implements the turn-based encounter engine:
// initiative ordering, attack and heal resolution, the turn state
// machine, and the end-of-encounter HP write-back.
package combat

import (
	"context"
	"database/sql"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/mnehmos/questforge/internal/audit"
	"github.com/mnehmos/questforge/internal/dice"
	"github.com/mnehmos/questforge/internal/events"
	"github.com/mnehmos/questforge/internal/rpgerr"
	"github.com/mnehmos/questforge/internal/store"
	"github.com/mnehmos/questforge/pkg/models"
)

// enemyTokens are name fragments that classify a participant as an
// enemy when the caller does not say otherwise.
var enemyTokens = []string{
	"goblin", "orc", "bandit", "skeleton", "zombie", "kobold",
	"troll", "ogre", "wolf", "cultist", "spider", "wraith", "drake",
}

// Participant is the caller-supplied input for one combatant.
type Participant struct {
	ID              string `json:"id"`
	Name            string `json:"name,omitempty"`
	HP              int    `json:"hp"`
	MaxHP           int    `json:"maxHp"`
	AC              int    `json:"ac,omitempty"`
	InitiativeBonus int    `json:"initiativeBonus,omitempty"`
	IsEnemy         *bool  `json:"isEnemy,omitempty"`
}

// EffectTicker advances round-based effect durations for a combatant
// at turn boundaries. Implemented by the improvisation engine.
type EffectTicker interface {
	TickRounds(ctx context.Context, targetID string, rounds int) (advanced, expired []*models.CustomEffect, err error)
}

// Engine drives one encounter. It is not safe for concurrent use; the
// registry serializes calls per session.
type Engine struct {
	enc    *models.Encounter
	roller *dice.Roller

	store  *store.Store
	audit  *audit.Logger
	bus    *events.Bus
	ticker EffectTicker
}

// Deps carries the engine's collaborators.
type Deps struct {
	Store  *store.Store
	Audit  *audit.Logger
	Bus    *events.Bus
	Ticker EffectTicker
}

// New creates and persists an encounter: initiative is rolled for each
// participant with the seeded roller, tokens sort descending with a
// stable tie-break on insertion order, and round one begins.
func New(ctx context.Context, deps Deps, participants []Participant, seed string, terrain *models.Terrain) (*Engine, error) {
	if len(participants) == 0 {
		return nil, rpgerr.New(rpgerr.KindValidation, "encounter requires at least one participant")
	}
	if seed == "" {
		seed = uuid.New().String()
	}
	roller := dice.New(seed)

	tokens := make([]*models.Token, 0, len(participants))
	for _, p := range participants {
		if p.ID == "" {
			return nil, rpgerr.New(rpgerr.KindValidation, "participant requires an id")
		}
		if p.MaxHP < 1 {
			p.MaxHP = p.HP
		}
		if p.MaxHP < 1 {
			return nil, rpgerr.New(rpgerr.KindValidation, "participant %s requires positive hp", p.ID)
		}
		if p.HP < 1 {
			p.HP = p.MaxHP
		}
		name := p.Name
		if name == "" {
			name = p.ID
		}
		tokens = append(tokens, &models.Token{
			ID:              p.ID,
			Name:            name,
			HP:              p.HP,
			MaxHP:           p.MaxHP,
			AC:              p.AC,
			InitiativeBonus: p.InitiativeBonus,
			Initiative:      roller.D20() + p.InitiativeBonus,
			IsEnemy:         classifyEnemy(p),
		})
	}
	// Stable keeps insertion order for equal initiative.
	sort.SliceStable(tokens, func(i, j int) bool {
		return tokens[i].Initiative > tokens[j].Initiative
	})

	enc := &models.Encounter{
		Seed:             seed,
		Tokens:           tokens,
		Round:            1,
		CurrentTurnIndex: 0,
		ActiveTokenID:    tokens[0].ID,
		Status:           models.EncounterActive,
		Terrain:          terrain,
	}
	if err := deps.Store.Encounters.Create(ctx, enc); err != nil {
		return nil, err
	}

	e := &Engine{enc: enc, roller: roller, store: deps.Store, audit: deps.Audit, bus: deps.Bus, ticker: deps.Ticker}
	e.audit.Record("encounter.create", "", enc.ID, map[string]any{
		"participants": len(tokens), "seed": seed,
	})
	e.bus.Publish("combat.encounter_created", enc)
	return e, nil
}

// Restore rebuilds an engine from a persisted encounter. Dice are not
// replayed: the roller is seeded afresh from the saved seed plus a
// ":resumed" suffix, so resumed combat is deterministic from here on,
// not a re-run.
func Restore(deps Deps, enc *models.Encounter) *Engine {
	return &Engine{
		enc:    enc,
		roller: dice.New(enc.Seed + ":resumed"),
		store:  deps.Store,
		audit:  deps.Audit,
		bus:    deps.Bus,
		ticker: deps.Ticker,
	}
}

func classifyEnemy(p Participant) bool {
	if p.IsEnemy != nil {
		return *p.IsEnemy
	}
	probe := strings.ToLower(p.ID + " " + p.Name)
	for _, tok := range enemyTokens {
		if strings.Contains(probe, tok) {
			return true
		}
	}
	return false
}

// Snapshot returns the underlying encounter state.
func (e *Engine) Snapshot() *models.Encounter { return e.enc }

func (e *Engine) token(id string) (*models.Token, error) {
	for _, t := range e.enc.Tokens {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, rpgerr.New(rpgerr.KindNotFound, "participant %s is not in encounter %s", id, e.enc.ID)
}

func (e *Engine) requireActive() error {
	if e.enc.Status == models.EncounterCompleted {
		return rpgerr.New(rpgerr.KindConflict, "encounter %s is already completed", e.enc.ID)
	}
	return nil
}

// AttackResult reports one attack resolution.
type AttackResult struct {
	ActorID       string `json:"actorId"`
	TargetID      string `json:"targetId"`
	Roll          int    `json:"roll"`
	AttackBonus   int    `json:"attackBonus"`
	Total         int    `json:"total"`
	DC            int    `json:"dc"`
	Hit           bool   `json:"hit"`
	Critical      bool   `json:"critical"`
	AutomaticMiss bool   `json:"automaticMiss"`
	DamageApplied int    `json:"damageApplied"`
	TargetHP      int    `json:"targetHp"`
	Defeated      bool   `json:"defeated"`
}

// Attack resolves actor→target. A natural 1 always misses, a natural
// 20 always hits for double damage; otherwise roll+bonus meets DC.
// Damage clamps the target at 0 HP, marking it defeated but keeping it
// in the participant list.
func (e *Engine) Attack(ctx context.Context, actorID, targetID string, attackBonus, dc, damage int) (*AttackResult, error) {
	if err := e.requireActive(); err != nil {
		return nil, err
	}
	if damage < 0 {
		return nil, rpgerr.New(rpgerr.KindValidation, "damage must be non-negative")
	}
	actor, err := e.token(actorID)
	if err != nil {
		return nil, err
	}
	target, err := e.token(targetID)
	if err != nil {
		return nil, err
	}
	if actor.Defeated {
		return nil, rpgerr.New(rpgerr.KindConflict, "defeated participant %s cannot act", actorID)
	}

	roll := e.roller.D20()
	res := &AttackResult{
		ActorID:     actorID,
		TargetID:    targetID,
		Roll:        roll,
		AttackBonus: attackBonus,
		Total:       roll + attackBonus,
		DC:          dc,
	}
	switch {
	case roll == 1:
		res.AutomaticMiss = true
	case roll == 20:
		res.Hit, res.Critical = true, true
		res.DamageApplied = damage * 2
	case roll+attackBonus >= dc:
		res.Hit = true
		res.DamageApplied = damage
	}

	if res.DamageApplied > 0 {
		target.HP -= res.DamageApplied
		if target.HP <= 0 {
			target.HP = 0
			target.Defeated = true
		}
	}
	res.TargetHP = target.HP
	res.Defeated = target.Defeated

	if err := e.store.Encounters.Update(ctx, e.enc); err != nil {
		return nil, err
	}
	e.audit.Record("combat.attack", actorID, targetID, res)
	e.bus.Publish("combat.attack", res)
	return res, nil
}

// HealResult reports one heal resolution.
type HealResult struct {
	ActorID  string `json:"actorId,omitempty"`
	TargetID string `json:"targetId"`
	Amount   int    `json:"amount"`
	Healed   int    `json:"healed"`
	TargetHP int    `json:"targetHp"`
}

// Heal restores HP up to the target's maximum. No roll is involved.
func (e *Engine) Heal(ctx context.Context, actorID, targetID string, amount int) (*HealResult, error) {
	if err := e.requireActive(); err != nil {
		return nil, err
	}
	if amount < 0 {
		return nil, rpgerr.New(rpgerr.KindValidation, "heal amount must be non-negative")
	}
	target, err := e.token(targetID)
	if err != nil {
		return nil, err
	}
	before := target.HP
	target.HP += amount
	if target.HP > target.MaxHP {
		target.HP = target.MaxHP
	}
	if target.HP > 0 {
		target.Defeated = false
	}
	res := &HealResult{
		ActorID:  actorID,
		TargetID: targetID,
		Amount:   amount,
		Healed:   target.HP - before,
		TargetHP: target.HP,
	}
	if err := e.store.Encounters.Update(ctx, e.enc); err != nil {
		return nil, err
	}
	e.audit.Record("combat.heal", actorID, targetID, res)
	e.bus.Publish("combat.heal", res)
	return res, nil
}

// TurnResult reports a turn advance.
type TurnResult struct {
	Round          int                    `json:"round"`
	ActiveTokenID  string                 `json:"activeTokenId"`
	RoundAdvanced  bool                   `json:"roundAdvanced"`
	ExpiredEffects []*models.CustomEffect `json:"expiredEffects,omitempty"`
	SideDefeated   string                 `json:"sideDefeated,omitempty"`
}

// AdvanceTurn ticks round-based effects for the outgoing participant,
// then moves the turn pointer forward, skipping defeated tokens and
// incrementing the round on wrap-around.
func (e *Engine) AdvanceTurn(ctx context.Context) (*TurnResult, error) {
	if err := e.requireActive(); err != nil {
		return nil, err
	}
	res := &TurnResult{}

	outgoing := e.enc.Tokens[e.enc.CurrentTurnIndex]
	if e.ticker != nil {
		_, expired, err := e.ticker.TickRounds(ctx, outgoing.ID, 1)
		if err != nil {
			return nil, err
		}
		res.ExpiredEffects = expired
	}

	n := len(e.enc.Tokens)
	for i := 1; i <= n; i++ {
		next := (e.enc.CurrentTurnIndex + i) % n
		if next <= e.enc.CurrentTurnIndex {
			// Wrapped past the end of the order.
			if !res.RoundAdvanced {
				e.enc.Round++
				res.RoundAdvanced = true
			}
		}
		if !e.enc.Tokens[next].Defeated {
			e.enc.CurrentTurnIndex = next
			break
		}
	}
	e.enc.ActiveTokenID = e.enc.Tokens[e.enc.CurrentTurnIndex].ID

	res.Round = e.enc.Round
	res.ActiveTokenID = e.enc.ActiveTokenID
	res.SideDefeated = e.sideDefeated()

	if err := e.store.Encounters.Update(ctx, e.enc); err != nil {
		return nil, err
	}
	e.audit.Record("combat.advance_turn", "", e.enc.ID, res)
	e.bus.Publish("combat.turn_advanced", res)
	return res, nil
}

// sideDefeated reports "enemies" or "allies" when one side has no
// standing participants, empty otherwise.
func (e *Engine) sideDefeated() string {
	enemiesAlive, alliesAlive := false, false
	for _, t := range e.enc.Tokens {
		if t.Defeated {
			continue
		}
		if t.IsEnemy {
			enemiesAlive = true
		} else {
			alliesAlive = true
		}
	}
	switch {
	case !enemiesAlive:
		return "enemies"
	case !alliesAlive:
		return "allies"
	}
	return ""
}

// WriteBack is one entry of the end-encounter report.
type WriteBack struct {
	CharacterID string `json:"characterId"`
	FinalHP     int    `json:"finalHp"`
}

// EndResult reports the encounter close-out.
type EndResult struct {
	EncounterID  string      `json:"encounterId"`
	Rounds       int         `json:"rounds"`
	WrittenBack  []WriteBack `json:"writtenBack"`
	SideDefeated string      `json:"sideDefeated,omitempty"`
}

// End completes the encounter and writes each token's final HP back to
// its persisted character in a single transaction. Ad-hoc participants
// with no character row are silently skipped.
func (e *Engine) End(ctx context.Context) (*EndResult, error) {
	if e.enc.Status == models.EncounterCompleted {
		return nil, rpgerr.New(rpgerr.KindConflict, "encounter %s is already completed", e.enc.ID)
	}
	e.enc.Status = models.EncounterCompleted

	res := &EndResult{EncounterID: e.enc.ID, Rounds: e.enc.Round, SideDefeated: e.sideDefeated()}
	err := e.store.WithTx(ctx, func(tx *sql.Tx) error {
		for _, t := range e.enc.Tokens {
			exists, err := e.store.Characters.ExistsTx(ctx, tx, t.ID)
			if err != nil {
				return err
			}
			if !exists {
				continue
			}
			if err := e.store.Characters.SetHPTx(ctx, tx, t.ID, t.HP); err != nil {
				return err
			}
			res.WrittenBack = append(res.WrittenBack, WriteBack{CharacterID: t.ID, FinalHP: t.HP})
		}
		return e.store.Encounters.UpdateTx(ctx, tx, e.enc)
	})
	if err != nil {
		e.enc.Status = models.EncounterActive
		return nil, err
	}
	e.audit.Record("encounter.end", "", e.enc.ID, res)
	e.bus.Publish("combat.encounter_ended", res)
	return res, nil
}

// Pause suspends an active encounter.
func (e *Engine) Pause(ctx context.Context) error {
	if err := e.requireActive(); err != nil {
		return err
	}
	e.enc.Status = models.EncounterPaused
	return e.store.Encounters.Update(ctx, e.enc)
}
