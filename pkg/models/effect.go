package models

import (
	"encoding/json"
	"time"
)

// EffectCategory classifies a custom effect.
type EffectCategory string

const (
	EffectBoon           EffectCategory = "boon"
	EffectCurse          EffectCategory = "curse"
	EffectNeutral        EffectCategory = "neutral"
	EffectTransformative EffectCategory = "transformative"
)

// DurationType tells how an effect expires. Only round-based effects
// tick down (with encounter turns and advance_durations) and expire at
// zero; minutes, hours and days values are stored but never counted
// down, and permanent/until_removed effects last until removed.
type DurationType string

const (
	DurationRounds       DurationType = "rounds"
	DurationMinutes      DurationType = "minutes"
	DurationHours        DurationType = "hours"
	DurationDays         DurationType = "days"
	DurationPermanent    DurationType = "permanent"
	DurationUntilRemoved DurationType = "until_removed"
)

// EffectDuration pairs a duration type with its remaining value.
// Value is meaningless for permanent/until_removed.
type EffectDuration struct {
	Type  DurationType `json:"type"`
	Value int          `json:"value,omitempty"`
}

// EffectTrigger fires an effect's mechanics on a named event with an
// optional free-form condition.
type EffectTrigger struct {
	Event     string `json:"event"`
	Condition string `json:"condition,omitempty"`
}

// CustomEffect is an improvised effect applied to an actor. Mechanics
// are opaque records evaluated downstream; the engine stores them
// verbatim.
type CustomEffect struct {
	ID         string            `json:"id"`
	TargetID   string            `json:"targetId"`
	TargetType string            `json:"targetType"`
	SourceType string            `json:"sourceType,omitempty"`
	Name       string            `json:"name"`
	Category   EffectCategory    `json:"category"`
	PowerLevel int               `json:"powerLevel"`
	Mechanics  []json.RawMessage `json:"mechanics,omitempty"`
	Duration   EffectDuration    `json:"duration"`
	Triggers   []EffectTrigger   `json:"triggers,omitempty"`
	IsActive   bool              `json:"isActive"`
	CreatedAt  time.Time         `json:"createdAt"`
}

// SynthesizedSpell is a spellbook entry earned through an arcane
// synthesis mastery result.
type SynthesizedSpell struct {
	ID          string    `json:"id"`
	CharacterID string    `json:"characterId"`
	Name        string    `json:"name"`
	Level       int       `json:"level"`
	School      string    `json:"school"`
	EffectType  string    `json:"effectType"`
	EffectDice  string    `json:"effectDice,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}
