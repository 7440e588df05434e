package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mnehmos/questforge/internal/registry"
	"github.com/mnehmos/questforge/internal/rpgerr"
	"github.com/mnehmos/questforge/pkg/models"
)

func (d *Deps) registerCharacterTools(r *registry.Registry) {
	r.MustRegister(&registry.Tool{
		Name:        "create_character",
		Description: "Create a character with ability scores, hit points, AC, level and type.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"name": {"type": "string", "minLength": 1},
				"stats": {
					"type": "object",
					"properties": {
						"str": {"type": "integer"}, "dex": {"type": "integer"},
						"con": {"type": "integer"}, "int": {"type": "integer"},
						"wis": {"type": "integer"}, "cha": {"type": "integer"}
					}
				},
				"hp": {"type": "integer", "minimum": 0},
				"maxHp": {"type": "integer", "minimum": 1},
				"ac": {"type": "integer"},
				"level": {"type": "integer", "minimum": 1},
				"hitDie": {"type": "integer", "enum": [6, 8, 10, 12]},
				"factionId": {"type": "string"},
				"behavior": {"type": "string"},
				"characterType": {"type": "string", "enum": ["pc", "npc", "enemy", "ally"]}
			},
			"required": ["name", "maxHp"]
		}`),
		Handler: func(ctx context.Context, sess registry.Session, args json.RawMessage) (*registry.Result, error) {
			var c models.Character
			if err := json.Unmarshal(args, &c); err != nil {
				return nil, rpgerr.Wrap(err, rpgerr.KindValidation, "parse arguments")
			}
			if c.HP == 0 {
				c.HP = c.MaxHP
			}
			if err := d.Store.Characters.Create(ctx, &c); err != nil {
				return nil, err
			}
			d.Audit.Record("character.create", "", c.ID, map[string]any{"name": c.Name})
			return &registry.Result{
				Text:  fmt.Sprintf("Character %q created with %d/%d hp.", c.Name, c.HP, c.MaxHP),
				State: c,
			}, nil
		},
	})

	r.MustRegister(&registry.Tool{
		Name:        "get_character",
		Description: "Read a character's sheet.",
		InputSchema: characterIDSchema,
		Handler: func(ctx context.Context, sess registry.Session, args json.RawMessage) (*registry.Result, error) {
			var in characterIDInput
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, rpgerr.Wrap(err, rpgerr.KindValidation, "parse arguments")
			}
			c, err := d.Store.Characters.FindByID(ctx, in.CharacterID)
			if err != nil {
				return nil, err
			}
			return &registry.Result{
				Text:  fmt.Sprintf("%s: level %d %s, %d/%d hp, AC %d.", c.Name, c.Level, c.CharacterType, c.HP, c.MaxHP, c.AC),
				State: c,
			}, nil
		},
	})

	r.MustRegister(&registry.Tool{
		Name:        "update_character",
		Description: "Update a character's mutable fields. Omitted fields keep their current values.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"characterId": {"type": "string", "minLength": 1},
				"name": {"type": "string"},
				"hp": {"type": "integer"},
				"maxHp": {"type": "integer"},
				"ac": {"type": "integer"},
				"level": {"type": "integer"},
				"factionId": {"type": "string"},
				"behavior": {"type": "string"}
			},
			"required": ["characterId"]
		}`),
		Handler: func(ctx context.Context, sess registry.Session, args json.RawMessage) (*registry.Result, error) {
			var in struct {
				CharacterID string  `json:"characterId"`
				Name        *string `json:"name"`
				HP          *int    `json:"hp"`
				MaxHP       *int    `json:"maxHp"`
				AC          *int    `json:"ac"`
				Level       *int    `json:"level"`
				FactionID   *string `json:"factionId"`
				Behavior    *string `json:"behavior"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, rpgerr.Wrap(err, rpgerr.KindValidation, "parse arguments")
			}
			c, err := d.Store.Characters.FindByID(ctx, in.CharacterID)
			if err != nil {
				return nil, err
			}
			if in.Name != nil {
				c.Name = *in.Name
			}
			if in.MaxHP != nil {
				c.MaxHP = *in.MaxHP
			}
			if in.HP != nil {
				c.HP = *in.HP
			}
			if in.AC != nil {
				c.AC = *in.AC
			}
			if in.Level != nil {
				c.Level = *in.Level
			}
			if in.FactionID != nil {
				c.FactionID = *in.FactionID
			}
			if in.Behavior != nil {
				c.Behavior = *in.Behavior
			}
			if err := d.Store.Characters.Update(ctx, c); err != nil {
				return nil, err
			}
			d.Audit.Record("character.update", "", c.ID, nil)
			return &registry.Result{Text: fmt.Sprintf("Character %s updated.", c.ID), State: c}, nil
		},
	})

	r.MustRegister(&registry.Tool{
		Name:        "get_inventory",
		Description: "List every stack a character holds, with equip state.",
		InputSchema: characterIDSchema,
		Handler: func(ctx context.Context, sess registry.Session, args json.RawMessage) (*registry.Result, error) {
			var in characterIDInput
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, rpgerr.Wrap(err, rpgerr.KindValidation, "parse arguments")
			}
			entries, err := d.Store.Inventory.ListByCharacter(ctx, in.CharacterID)
			if err != nil {
				return nil, err
			}
			return &registry.Result{
				Text:  fmt.Sprintf("%s carries %d stacks.", in.CharacterID, len(entries)),
				State: entries,
			}, nil
		},
	})

	r.MustRegister(&registry.Tool{
		Name:        "transfer_item",
		Description: "Move items between characters atomically. Equipped stacks cannot be transferred.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"fromCharacterId": {"type": "string", "minLength": 1},
				"toCharacterId": {"type": "string", "minLength": 1},
				"itemId": {"type": "string", "minLength": 1},
				"quantity": {"type": "integer", "minimum": 1}
			},
			"required": ["fromCharacterId", "toCharacterId", "itemId", "quantity"]
		}`),
		Handler: func(ctx context.Context, sess registry.Session, args json.RawMessage) (*registry.Result, error) {
			var in struct {
				FromCharacterID string `json:"fromCharacterId"`
				ToCharacterID   string `json:"toCharacterId"`
				ItemID          string `json:"itemId"`
				Quantity        int    `json:"quantity"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, rpgerr.Wrap(err, rpgerr.KindValidation, "parse arguments")
			}
			if err := d.Store.Inventory.Transfer(ctx, in.FromCharacterID, in.ToCharacterID, in.ItemID, in.Quantity); err != nil {
				return nil, err
			}
			d.Audit.Record("inventory.transfer", in.FromCharacterID, in.ToCharacterID, in)
			return &registry.Result{
				Text: fmt.Sprintf("Moved %dx %s from %s to %s.",
					in.Quantity, in.ItemID, in.FromCharacterID, in.ToCharacterID),
				State: in,
			}, nil
		},
	})

	r.MustRegister(&registry.Tool{
		Name:        "equip_item",
		Description: "Equip or unequip a held item. Equipping requires a free slot; one equipped item per slot.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"characterId": {"type": "string", "minLength": 1},
				"itemId": {"type": "string", "minLength": 1},
				"slot": {"type": "string"},
				"equip": {"type": "boolean"}
			},
			"required": ["characterId", "itemId", "equip"]
		}`),
		Handler: func(ctx context.Context, sess registry.Session, args json.RawMessage) (*registry.Result, error) {
			var in struct {
				CharacterID string `json:"characterId"`
				ItemID      string `json:"itemId"`
				Slot        string `json:"slot"`
				Equip       bool   `json:"equip"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, rpgerr.Wrap(err, rpgerr.KindValidation, "parse arguments")
			}
			if in.Equip {
				if err := d.Store.Inventory.Equip(ctx, in.CharacterID, in.ItemID, in.Slot); err != nil {
					return nil, err
				}
			} else {
				if err := d.Store.Inventory.Unequip(ctx, in.CharacterID, in.ItemID); err != nil {
					return nil, err
				}
			}
			d.Audit.Record("inventory.equip", in.CharacterID, in.ItemID, in)
			verb := "unequipped"
			if in.Equip {
				verb = "equipped in " + in.Slot
			}
			return &registry.Result{
				Text:  fmt.Sprintf("%s %s item %s.", in.CharacterID, verb, in.ItemID),
				State: in,
			}, nil
		},
	})

	r.MustRegister(&registry.Tool{
		Name:        "create_item",
		Description: "Create an item definition (weapon, armor, consumable, quest or misc).",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"name": {"type": "string", "minLength": 1},
				"type": {"type": "string", "enum": ["weapon", "armor", "consumable", "quest", "misc"]},
				"weight": {"type": "number", "minimum": 0},
				"value": {"type": "integer", "minimum": 0},
				"properties": {"type": "object"}
			},
			"required": ["name", "type"]
		}`),
		Handler: func(ctx context.Context, sess registry.Session, args json.RawMessage) (*registry.Result, error) {
			var item models.Item
			if err := json.Unmarshal(args, &item); err != nil {
				return nil, rpgerr.Wrap(err, rpgerr.KindValidation, "parse arguments")
			}
			if err := d.Store.Items.Create(ctx, &item); err != nil {
				return nil, err
			}
			d.Audit.Record("item.create", "", item.ID, map[string]any{"name": item.Name})
			return &registry.Result{
				Text:  fmt.Sprintf("Item %q created (%s, value %d).", item.Name, item.Type, item.Value),
				State: item,
			}, nil
		},
	})
}
