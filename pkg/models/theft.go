package models

import "time"

// HeatLevel is the ordinal freshness of a stolen item. It decays one
// step per simulated day toward cold.
type HeatLevel string

const (
	HeatBurning HeatLevel = "burning"
	HeatHot     HeatLevel = "hot"
	HeatWarm    HeatLevel = "warm"
	HeatCool    HeatLevel = "cool"
	HeatCold    HeatLevel = "cold"
)

// heatOrder maps each level to its position in the decay chain.
var heatOrder = map[HeatLevel]int{
	HeatBurning: 4,
	HeatHot:     3,
	HeatWarm:    2,
	HeatCool:    1,
	HeatCold:    0,
}

// Rank returns the decay position of the heat level; hotter is larger.
// Unknown levels rank as cold.
func (h HeatLevel) Rank() int { return heatOrder[h] }

// Cooler returns the next level down the decay chain.
func (h HeatLevel) Cooler() HeatLevel {
	switch h {
	case HeatBurning:
		return HeatHot
	case HeatHot:
		return HeatWarm
	case HeatWarm:
		return HeatCool
	default:
		return HeatCold
	}
}

// TheftRecord tracks provenance of a stolen item, keyed by item ID.
// Invariant: StolenFrom != StolenBy.
type TheftRecord struct {
	ItemID           string    `json:"itemId"`
	StolenFrom       string    `json:"stolenFrom"`
	StolenBy         string    `json:"stolenBy"`
	StolenLocation   string    `json:"stolenLocation,omitempty"`
	Witnesses        []string  `json:"witnesses"`
	HeatLevel        HeatLevel `json:"heatLevel"`
	ReportedToGuards bool      `json:"reportedToGuards"`
	Bounty           int       `json:"bounty"`
	CreatedAt        time.Time `json:"createdAt"`
}

// Fence is an NPC authorized to buy stolen goods. An NPC that is the
// victim of any recorded theft cannot be registered as a fence.
type Fence struct {
	NPCID             string    `json:"npcId"`
	FactionID         string    `json:"factionId,omitempty"`
	BuyRate           float64   `json:"buyRate"`
	MaxHeatLevel      HeatLevel `json:"maxHeatLevel"`
	DailyHeatCapacity int       `json:"dailyHeatCapacity"`
	DailyHeatUsed     int       `json:"dailyHeatUsed"`
	Specializations   []string  `json:"specializations,omitempty"`
	CooldownDays      int       `json:"cooldownDays"`
}
