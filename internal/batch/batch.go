// Package batch creates many entities in one call: character groups,
// NPC crowds, item distribution, and canned multi-step workflows built
// from named templates.
package batch

import (
	"context"
	"fmt"
	"sort"

	"github.com/mnehmos/questforge/internal/audit"
	"github.com/mnehmos/questforge/internal/rpgerr"
	"github.com/mnehmos/questforge/internal/store"
	"github.com/mnehmos/questforge/pkg/models"
)

// Template is a named character blueprint.
type Template struct {
	Name          string               `json:"name"`
	Description   string               `json:"description"`
	Stats         models.Stats         `json:"stats"`
	HP            int                  `json:"hp"`
	AC            int                  `json:"ac"`
	Level         int                  `json:"level"`
	HitDie        int                  `json:"hitDie"`
	CharacterType models.CharacterType `json:"characterType"`
	Behavior      string               `json:"behavior,omitempty"`
}

// templates is the built-in catalogue.
var templates = map[string]Template{
	"fighter": {
		Name: "fighter", Description: "front-line martial",
		Stats: models.Stats{Str: 16, Dex: 12, Con: 15, Int: 10, Wis: 11, Cha: 10},
		HP:    12, AC: 16, Level: 1, HitDie: 10, CharacterType: models.CharacterPC,
	},
	"rogue": {
		Name: "rogue", Description: "skirmisher and scout",
		Stats: models.Stats{Str: 10, Dex: 16, Con: 12, Int: 13, Wis: 12, Cha: 14},
		HP:    9, AC: 14, Level: 1, HitDie: 8, CharacterType: models.CharacterPC,
	},
	"wizard": {
		Name: "wizard", Description: "arcane caster",
		Stats: models.Stats{Str: 8, Dex: 13, Con: 12, Int: 16, Wis: 12, Cha: 10},
		HP:    7, AC: 12, Level: 1, HitDie: 6, CharacterType: models.CharacterPC,
	},
	"cleric": {
		Name: "cleric", Description: "divine support",
		Stats: models.Stats{Str: 13, Dex: 10, Con: 14, Int: 10, Wis: 16, Cha: 12},
		HP:    10, AC: 15, Level: 1, HitDie: 8, CharacterType: models.CharacterPC,
	},
	"goblin": {
		Name: "goblin", Description: "small ambusher",
		Stats: models.Stats{Str: 8, Dex: 14, Con: 10, Int: 10, Wis: 8, Cha: 8},
		HP:    7, AC: 15, Level: 1, HitDie: 6, CharacterType: models.CharacterEnemy,
		Behavior: "cowardly, attacks in groups",
	},
	"bandit": {
		Name: "bandit", Description: "common highwayman",
		Stats: models.Stats{Str: 11, Dex: 12, Con: 12, Int: 10, Wis: 10, Cha: 10},
		HP:    11, AC: 12, Level: 1, HitDie: 8, CharacterType: models.CharacterEnemy,
		Behavior: "greedy, flees below half health",
	},
	"villager": {
		Name: "villager", Description: "ordinary townsfolk",
		Stats: models.Stats{Str: 10, Dex: 10, Con: 10, Int: 10, Wis: 10, Cha: 10},
		HP:    4, AC: 10, Level: 1, HitDie: 6, CharacterType: models.CharacterNPC,
		Behavior: "unarmed, avoids conflict",
	},
	"guard": {
		Name: "guard", Description: "town watch",
		Stats: models.Stats{Str: 13, Dex: 12, Con: 12, Int: 10, Wis: 11, Cha: 10},
		HP:    11, AC: 16, Level: 1, HitDie: 8, CharacterType: models.CharacterNPC,
		Behavior: "dutiful, calls for backup",
	},
}

// Engine runs batch operations over the repositories.
type Engine struct {
	store *store.Store
	audit *audit.Logger
}

// New creates a batch engine.
func New(s *store.Store, a *audit.Logger) *Engine {
	return &Engine{store: s, audit: a}
}

// ListTemplates returns every template, ordered by name.
func (e *Engine) ListTemplates() []Template {
	names := make([]string, 0, len(templates))
	for name := range templates {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]Template, 0, len(names))
	for _, name := range names {
		out = append(out, templates[name])
	}
	return out
}

// GetTemplate returns one template by name.
func (e *Engine) GetTemplate(name string) (Template, error) {
	t, ok := templates[name]
	if !ok {
		return Template{}, rpgerr.New(rpgerr.KindNotFound, "template %q not found", name)
	}
	return t, nil
}

// Spec names a template and how many of it to create.
type Spec struct {
	Template string `json:"template"`
	Count    int    `json:"count"`
	NameBase string `json:"nameBase,omitempty"`
}

// CreateFromSpecs instantiates characters from template specs,
// numbering their names from the base.
func (e *Engine) CreateFromSpecs(ctx context.Context, specs []Spec, forceType models.CharacterType) ([]*models.Character, error) {
	var created []*models.Character
	for _, spec := range specs {
		if spec.Count < 1 || spec.Count > 50 {
			return nil, rpgerr.New(rpgerr.KindValidation, "spec count %d outside [1, 50]", spec.Count)
		}
		tmpl, err := e.GetTemplate(spec.Template)
		if err != nil {
			return nil, err
		}
		base := spec.NameBase
		if base == "" {
			base = tmpl.Name
		}
		for i := 1; i <= spec.Count; i++ {
			name := base
			if spec.Count > 1 {
				name = fmt.Sprintf("%s %d", base, i)
			}
			ctype := tmpl.CharacterType
			if forceType != "" {
				ctype = forceType
			}
			c := &models.Character{
				Name:          name,
				Stats:         tmpl.Stats,
				HP:            tmpl.HP,
				MaxHP:         tmpl.HP,
				AC:            tmpl.AC,
				Level:         tmpl.Level,
				HitDie:        tmpl.HitDie,
				Behavior:      tmpl.Behavior,
				CharacterType: ctype,
			}
			if err := e.store.Characters.Create(ctx, c); err != nil {
				return nil, err
			}
			created = append(created, c)
		}
	}
	e.audit.Record("batch.create_characters", "", "", map[string]any{"created": len(created)})
	return created, nil
}

// Distribution gives one item in quantity to one character.
type Distribution struct {
	CharacterID string `json:"characterId"`
	ItemID      string `json:"itemId"`
	Quantity    int    `json:"quantity"`
}

// DistributeItems hands out items in bulk. Each grant validates the
// character and item exist.
func (e *Engine) DistributeItems(ctx context.Context, grants []Distribution) (int, error) {
	for _, g := range grants {
		if _, err := e.store.Characters.FindByID(ctx, g.CharacterID); err != nil {
			return 0, err
		}
		if _, err := e.store.Items.FindByID(ctx, g.ItemID); err != nil {
			return 0, err
		}
		qty := g.Quantity
		if qty < 1 {
			qty = 1
		}
		if err := e.store.Inventory.Add(ctx, g.CharacterID, g.ItemID, qty); err != nil {
			return 0, err
		}
	}
	e.audit.Record("batch.distribute_items", "", "", map[string]any{"grants": len(grants)})
	return len(grants), nil
}

// WorkflowStep is one step of a canned workflow.
type WorkflowStep struct {
	CreateCharacters []Spec         `json:"createCharacters,omitempty"`
	DistributeItems  []Distribution `json:"distributeItems,omitempty"`
}

// WorkflowResult reports an executed workflow.
type WorkflowResult struct {
	Steps             int                 `json:"steps"`
	CharactersCreated []*models.Character `json:"charactersCreated"`
	ItemsDistributed  int                 `json:"itemsDistributed"`
}

// ExecuteWorkflow runs steps in order, stopping at the first failure.
func (e *Engine) ExecuteWorkflow(ctx context.Context, steps []WorkflowStep) (*WorkflowResult, error) {
	res := &WorkflowResult{CharactersCreated: []*models.Character{}}
	for _, step := range steps {
		if len(step.CreateCharacters) > 0 {
			created, err := e.CreateFromSpecs(ctx, step.CreateCharacters, "")
			if err != nil {
				return nil, err
			}
			res.CharactersCreated = append(res.CharactersCreated, created...)
		}
		if len(step.DistributeItems) > 0 {
			n, err := e.DistributeItems(ctx, step.DistributeItems)
			if err != nil {
				return nil, err
			}
			res.ItemsDistributed += n
		}
		res.Steps++
	}
	return res, nil
}
