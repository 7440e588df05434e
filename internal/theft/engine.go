// Package theft implements stolen-item provenance: heat decay, fence
// acceptance rules, and recognition rolls.
package theft

import (
	"context"
	"fmt"

	"github.com/mnehmos/questforge/internal/audit"
	"github.com/mnehmos/questforge/internal/dice"
	"github.com/mnehmos/questforge/internal/events"
	"github.com/mnehmos/questforge/internal/rpgerr"
	"github.com/mnehmos/questforge/internal/store"
	"github.com/mnehmos/questforge/pkg/models"
)

// heatValue maps heat to the recognition percentage base. The exact
// numbers matter less than the monotonic ordering; these are the
// documented values.
var heatValue = map[models.HeatLevel]int{
	models.HeatBurning: 80,
	models.HeatHot:     60,
	models.HeatWarm:    40,
	models.HeatCool:    20,
	models.HeatCold:    5,
}

// heatDiscount scales a fence's offer: cooler goods fetch closer to
// the fence's full rate.
var heatDiscount = map[models.HeatLevel]float64{
	models.HeatBurning: 0.5,
	models.HeatHot:     0.65,
	models.HeatWarm:    0.8,
	models.HeatCool:    0.9,
	models.HeatCold:    1.0,
}

// riskBand maps heat to the detection-risk wording used by search
// results.
var riskBand = map[models.HeatLevel]string{
	models.HeatBurning: "very high",
	models.HeatHot:     "high",
	models.HeatWarm:    "moderate",
	models.HeatCool:    "low",
	models.HeatCold:    "none",
}

// HeatValue exposes the recognition base for a heat level.
func HeatValue(h models.HeatLevel) int { return heatValue[h] }

// Engine applies theft rules over the repositories.
type Engine struct {
	store *store.Store
	audit *audit.Logger
	bus   *events.Bus

	// decayDaysPerStep is how many advanced days cool a record by one
	// level.
	decayDaysPerStep int
}

// New creates a theft engine. decayDaysPerStep below 1 defaults to 1.
func New(s *store.Store, a *audit.Logger, bus *events.Bus, decayDaysPerStep int) *Engine {
	if decayDaysPerStep < 1 {
		decayDaysPerStep = 1
	}
	return &Engine{store: s, audit: a, bus: bus, decayDaysPerStep: decayDaysPerStep}
}

// Steal records a theft. Inventory movement is the inventory layer's
// concern and is enforced orthogonally.
func (e *Engine) Steal(ctx context.Context, thiefID, victimID, itemID, location string, witnesses []string) (*models.TheftRecord, error) {
	if thiefID == victimID {
		return nil, rpgerr.New(rpgerr.KindInvariant, "a character cannot steal from themselves")
	}
	rec := &models.TheftRecord{
		ItemID:         itemID,
		StolenFrom:     victimID,
		StolenBy:       thiefID,
		StolenLocation: location,
		Witnesses:      witnesses,
		HeatLevel:      models.HeatBurning,
	}
	if err := e.store.Theft.Create(ctx, rec); err != nil {
		return nil, err
	}
	e.audit.Record("theft.steal", thiefID, itemID, rec)
	e.bus.Publish("theft.stolen", rec)
	return rec, nil
}

// Check is a pure lookup of an item's theft record.
func (e *Engine) Check(ctx context.Context, itemID string) (*models.TheftRecord, error) {
	return e.store.Theft.FindByItem(ctx, itemID)
}

// SearchResult reports the stolen goods a character is carrying.
type SearchResult struct {
	CharacterID   string                `json:"characterId"`
	StolenItems   []*models.TheftRecord `json:"stolenItems"`
	DetectionRisk string                `json:"detectionRisk"`
}

// SearchCharacter enumerates stolen items currently held by a
// character; the detection-risk band follows the hottest item.
func (e *Engine) SearchCharacter(ctx context.Context, characterID string) (*SearchResult, error) {
	entries, err := e.store.Inventory.ListByCharacter(ctx, characterID)
	if err != nil {
		return nil, err
	}
	res := &SearchResult{CharacterID: characterID, StolenItems: []*models.TheftRecord{}, DetectionRisk: "none"}
	hottest := models.HeatCold
	found := false
	for _, entry := range entries {
		rec, err := e.store.Theft.FindByItem(ctx, entry.ItemID)
		if err != nil {
			if rpgerr.KindOf(err) == rpgerr.KindNotFound {
				continue
			}
			return nil, err
		}
		res.StolenItems = append(res.StolenItems, rec)
		if !found || rec.HeatLevel.Rank() > hottest.Rank() {
			hottest = rec.HeatLevel
			found = true
		}
	}
	if found {
		res.DetectionRisk = riskBand[hottest]
	}
	return res, nil
}

// RecognitionResult reports whether an NPC recognizes an item as
// stolen and how they react.
type RecognitionResult struct {
	ItemID     string `json:"itemId"`
	NPCID      string `json:"npcId"`
	Recognized bool   `json:"recognized"`
	Reaction   string `json:"reaction,omitempty"`
	Roll       int    `json:"roll,omitempty"`
	Threshold  int    `json:"threshold,omitempty"`
}

// Recognize resolves whether npcID recognizes the item. The victim
// always does (hostile), witnesses always do (suspicious); everyone
// else rolls percent dice against min(100, heat + bounty/10), with
// ties favoring non-recognition.
func (e *Engine) Recognize(ctx context.Context, npcID, itemID, seed string) (*RecognitionResult, error) {
	rec, err := e.store.Theft.FindByItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	res := &RecognitionResult{ItemID: itemID, NPCID: npcID}
	if npcID == rec.StolenFrom {
		res.Recognized, res.Reaction = true, "hostile"
		return res, nil
	}
	for _, w := range rec.Witnesses {
		if w == npcID {
			res.Recognized, res.Reaction = true, "suspicious"
			return res, nil
		}
	}
	threshold := heatValue[rec.HeatLevel] + rec.Bounty/10
	if threshold > 100 {
		threshold = 100
	}
	if seed == "" {
		seed = fmt.Sprintf("recognize-%s-%s", npcID, itemID)
	}
	roll := dice.New(seed).Percent()
	res.Roll, res.Threshold = roll, threshold
	if roll < threshold {
		res.Recognized, res.Reaction = true, "suspicious"
	}
	return res, nil
}

// SaleResult reports a completed fence transaction.
type SaleResult struct {
	ItemID  string  `json:"itemId"`
	FenceID string  `json:"fenceId"`
	Price   int     `json:"price"`
	Rate    float64 `json:"rate"`
}

// SellToFence applies the acceptance rules: heat ceiling, remaining
// daily capacity, and item cooldown. The price is the base value times
// the fence's rate times the heat discount.
func (e *Engine) SellToFence(ctx context.Context, sellerID, fenceID, itemID string, itemValue, worldDay int) (*SaleResult, error) {
	rec, err := e.store.Theft.FindByItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	fence, err := e.store.Fences.FindByNPC(ctx, fenceID)
	if err != nil {
		return nil, err
	}
	if fence.MaxHeatLevel.Rank() < rec.HeatLevel.Rank() {
		return nil, rpgerr.New(rpgerr.KindConflict,
			"fence %s will not touch %s goods", fenceID, rec.HeatLevel)
	}
	heat := heatValue[rec.HeatLevel]
	if fence.DailyHeatCapacity-fence.DailyHeatUsed < heat {
		return nil, rpgerr.New(rpgerr.KindConflict,
			"fence %s has no remaining heat capacity today", fenceID)
	}
	lastDay, err := e.store.Fences.LastSaleDay(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if lastDay >= 0 && worldDay-lastDay < fence.CooldownDays {
		return nil, rpgerr.New(rpgerr.KindConflict,
			"item %s was fenced too recently", itemID)
	}

	price := int(float64(itemValue) * fence.BuyRate * heatDiscount[rec.HeatLevel])
	fence.DailyHeatUsed += heat
	if err := e.store.Fences.Update(ctx, fence); err != nil {
		return nil, err
	}
	if err := e.store.Fences.RecordSale(ctx, itemID, fenceID, sellerID, price, worldDay); err != nil {
		return nil, err
	}
	res := &SaleResult{ItemID: itemID, FenceID: fenceID, Price: price, Rate: fence.BuyRate}
	e.audit.Record("theft.sell", sellerID, itemID, res)
	e.bus.Publish("theft.fenced", res)
	return res, nil
}

// RegisterFence registers an NPC as a fence. A theft victim with an
// open record can never be a fence.
func (e *Engine) RegisterFence(ctx context.Context, fence *models.Fence) error {
	isVictim, err := e.store.Theft.HasVictim(ctx, fence.NPCID)
	if err != nil {
		return err
	}
	if isVictim {
		return rpgerr.New(rpgerr.KindInvariant,
			"npc %s is a theft victim and cannot be registered as a fence", fence.NPCID)
	}
	if err := e.store.Fences.Create(ctx, fence); err != nil {
		return err
	}
	e.audit.Record("theft.register_fence", "", fence.NPCID, fence)
	return nil
}

// Report marks a theft reported to the guards and adds to the bounty.
func (e *Engine) Report(ctx context.Context, itemID string, bountyOffered int) (*models.TheftRecord, error) {
	if bountyOffered < 0 {
		return nil, rpgerr.New(rpgerr.KindValidation, "bounty must be non-negative")
	}
	rec, err := e.store.Theft.FindByItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	rec.ReportedToGuards = true
	rec.Bounty += bountyOffered
	if err := e.store.Theft.Update(ctx, rec); err != nil {
		return nil, err
	}
	e.audit.Record("theft.report", "", itemID, rec)
	return rec, nil
}

// DecayResult reports a time advance.
type DecayResult struct {
	DaysAdvanced  int `json:"daysAdvanced"`
	RecordsCooled int `json:"recordsCooled"`
}

// Decay advances simulated time: every record steps toward cold (one
// step per decay period) and fence daily capacity resets.
func (e *Engine) Decay(ctx context.Context, daysAdvanced int) (*DecayResult, error) {
	if daysAdvanced < 0 {
		return nil, rpgerr.New(rpgerr.KindValidation, "daysAdvanced must be non-negative")
	}
	steps := daysAdvanced / e.decayDaysPerStep
	res := &DecayResult{DaysAdvanced: daysAdvanced}
	if steps > 0 {
		records, err := e.store.Theft.List(ctx)
		if err != nil {
			return nil, err
		}
		for _, rec := range records {
			before := rec.HeatLevel
			for i := 0; i < steps && rec.HeatLevel != models.HeatCold; i++ {
				rec.HeatLevel = rec.HeatLevel.Cooler()
			}
			if rec.HeatLevel != before {
				if err := e.store.Theft.Update(ctx, rec); err != nil {
					return nil, err
				}
				res.RecordsCooled++
			}
		}
	}
	if daysAdvanced > 0 {
		if err := e.store.Fences.ResetDailyCapacity(ctx); err != nil {
			return nil, err
		}
	}
	e.audit.Record("theft.decay", "", "", res)
	return res, nil
}
