// Package tools defines every tool the engine advertises and wires the
// domain engines into the registry. Handlers parse validated input,
// call one engine, and embed the machine-readable state block into the
// response.
package tools

import (
	"github.com/mnehmos/questforge/internal/audit"
	"github.com/mnehmos/questforge/internal/batch"
	"github.com/mnehmos/questforge/internal/combat"
	"github.com/mnehmos/questforge/internal/config"
	"github.com/mnehmos/questforge/internal/events"
	"github.com/mnehmos/questforge/internal/improv"
	"github.com/mnehmos/questforge/internal/quest"
	"github.com/mnehmos/questforge/internal/registry"
	"github.com/mnehmos/questforge/internal/store"
	"github.com/mnehmos/questforge/internal/theft"
	"github.com/mnehmos/questforge/internal/world"
)

// Deps carries every collaborator the handlers need.
type Deps struct {
	Config *config.Config
	Store  *store.Store
	Audit  *audit.Logger
	Bus    *events.Bus

	Combat *combat.Manager
	World  *world.Manager
	Theft  *theft.Engine
	Quest  *quest.Engine
	Improv *improv.Engine
	Batch  *batch.Engine
}

// Wire builds the full dependency graph over an open store.
func Wire(cfg *config.Config, s *store.Store) *Deps {
	auditLog := audit.NewLogger(s.Logs)
	bus := events.NewBus(s.Logs)
	improvEngine := improv.New(s, auditLog, bus)
	return &Deps{
		Config: cfg,
		Store:  s,
		Audit:  auditLog,
		Bus:    bus,
		Combat: combat.NewManager(combat.Deps{Store: s, Audit: auditLog, Bus: bus, Ticker: improvEngine}),
		World:  world.NewManager(s, auditLog, bus, nil),
		Theft:  theft.New(s, auditLog, bus, cfg.HeatDecayDaysPerStep),
		Quest:  quest.New(s, auditLog, bus),
		Improv: improvEngine,
		Batch:  batch.New(s, auditLog),
	}
}

// RegisterAll registers the full tool catalogue. Registration panics
// on duplicates: the catalogue is assembled once at startup.
func (d *Deps) RegisterAll(r *registry.Registry) {
	d.registerWorldTools(r)
	d.registerCombatTools(r)
	d.registerQuestTools(r)
	d.registerCharacterTools(r)
	d.registerRestTools(r)
	d.registerImprovTool(r)
	d.registerTheftTool(r)
	d.registerBatchTool(r)
}
