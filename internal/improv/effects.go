package improv

import (
	"context"

	"github.com/mnehmos/questforge/internal/rpgerr"
	"github.com/mnehmos/questforge/internal/store"
	"github.com/mnehmos/questforge/pkg/models"
)

// ApplyEffect stores a new custom effect on a target.
func (e *Engine) ApplyEffect(ctx context.Context, effect *models.CustomEffect) (*models.CustomEffect, error) {
	if err := e.store.Effects.Create(ctx, effect); err != nil {
		return nil, err
	}
	e.audit.Record("improv.apply_effect", "", effect.TargetID, effect)
	e.bus.Publish("improv.effect_applied", effect)
	return effect, nil
}

// GetEffects queries effects on a target.
func (e *Engine) GetEffects(ctx context.Context, q store.EffectQuery) ([]*models.CustomEffect, error) {
	return e.store.Effects.Find(ctx, q)
}

// RemoveEffect removes by ID, or by (target, name) when id is empty.
// Returns how many effects were removed.
func (e *Engine) RemoveEffect(ctx context.Context, id, targetID, name string) (int64, error) {
	if id != "" {
		if err := e.store.Effects.Delete(ctx, id); err != nil {
			return 0, err
		}
		e.audit.Record("improv.remove_effect", "", id, nil)
		return 1, nil
	}
	if targetID == "" || name == "" {
		return 0, rpgerr.New(rpgerr.KindValidation,
			"remove_effect requires an effect id or a target and name")
	}
	n, err := e.store.Effects.DeleteByName(ctx, targetID, name)
	if err != nil {
		return 0, err
	}
	e.audit.Record("improv.remove_effect", "", targetID, map[string]any{"name": name, "removed": n})
	return n, nil
}

// TriggerFiring is one effect whose trigger matched an event.
type TriggerFiring struct {
	Effect  *models.CustomEffect `json:"effect"`
	Trigger models.EffectTrigger `json:"trigger"`
}

// ProcessTriggers returns the active effects on a target whose
// triggers match the named event. Conditions are opaque to the engine
// and ride along for the orchestrator to evaluate.
func (e *Engine) ProcessTriggers(ctx context.Context, targetID, event string) ([]TriggerFiring, error) {
	effects, err := e.store.Effects.Find(ctx, store.EffectQuery{TargetID: targetID, ActiveOnly: true})
	if err != nil {
		return nil, err
	}
	var fired []TriggerFiring
	for _, eff := range effects {
		for _, trig := range eff.Triggers {
			if trig.Event == event {
				fired = append(fired, TriggerFiring{Effect: eff, Trigger: trig})
			}
		}
	}
	if len(fired) > 0 {
		e.bus.Publish("improv.triggers_fired", map[string]any{
			"targetId": targetID, "event": event, "count": len(fired),
		})
	}
	return fired, nil
}

// AdvanceDurations decrements the rounds counter of every active
// round-based effect on a target by rounds. Expired effects flip
// inactive and are reported separately; a zero advance changes
// nothing.
func (e *Engine) AdvanceDurations(ctx context.Context, targetID string, rounds int) (advanced, expired []*models.CustomEffect, err error) {
	if rounds < 0 {
		return nil, nil, rpgerr.New(rpgerr.KindValidation, "rounds must be non-negative")
	}
	effects, err := e.store.Effects.Find(ctx, store.EffectQuery{TargetID: targetID, ActiveOnly: true})
	if err != nil {
		return nil, nil, err
	}
	if rounds == 0 {
		return nil, nil, nil
	}
	for _, eff := range effects {
		if eff.Duration.Type != models.DurationRounds {
			continue
		}
		eff.Duration.Value -= rounds
		if eff.Duration.Value <= 0 {
			eff.Duration.Value = 0
			eff.IsActive = false
			expired = append(expired, eff)
		} else {
			advanced = append(advanced, eff)
		}
		if err := e.store.Effects.Update(ctx, eff); err != nil {
			return nil, nil, err
		}
	}
	if len(expired) > 0 {
		e.bus.Publish("improv.effects_expired", expired)
	}
	return advanced, expired, nil
}

// TickRounds lets the combat engine advance effect durations at turn
// boundaries.
func (e *Engine) TickRounds(ctx context.Context, targetID string, rounds int) (advanced, expired []*models.CustomEffect, err error) {
	return e.AdvanceDurations(ctx, targetID, rounds)
}

// CleanupExpired deletes effects that were flagged inactive.
func (e *Engine) CleanupExpired(ctx context.Context) (int64, error) {
	return e.store.Effects.CleanupInactive(ctx)
}
