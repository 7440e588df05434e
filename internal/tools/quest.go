package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mnehmos/questforge/internal/registry"
	"github.com/mnehmos/questforge/internal/rpgerr"
	"github.com/mnehmos/questforge/pkg/models"
)

func (d *Deps) registerQuestTools(r *registry.Registry) {
	r.MustRegister(&registry.Tool{
		Name:        "create_quest",
		Description: "Create a quest definition with objectives, rewards and prerequisite quests.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"name": {"type": "string", "minLength": 1},
				"description": {"type": "string"},
				"worldId": {"type": "string"},
				"giver": {"type": "string"},
				"objectives": {
					"type": "array",
					"items": {
						"type": "object",
						"properties": {
							"description": {"type": "string", "minLength": 1},
							"type": {"type": "string"},
							"target": {"type": "string"},
							"required": {"type": "integer", "minimum": 1}
						},
						"required": ["description", "required"]
					}
				},
				"rewards": {
					"type": "object",
					"properties": {
						"experience": {"type": "integer", "minimum": 0},
						"gold": {"type": "integer", "minimum": 0},
						"items": {"type": "array", "items": {"type": "string"}}
					}
				},
				"prerequisites": {"type": "array", "items": {"type": "string"}}
			},
			"required": ["name"]
		}`),
		Handler: func(ctx context.Context, sess registry.Session, args json.RawMessage) (*registry.Result, error) {
			var q models.Quest
			if err := json.Unmarshal(args, &q); err != nil {
				return nil, rpgerr.Wrap(err, rpgerr.KindValidation, "parse arguments")
			}
			created, err := d.Quest.Create(ctx, &q)
			if err != nil {
				return nil, err
			}
			return &registry.Result{
				Text:  fmt.Sprintf("Quest %q created with %d objectives.", created.Name, len(created.Objectives)),
				State: created,
			}, nil
		},
	})

	r.MustRegister(&registry.Tool{
		Name:        "get_quest",
		Description: "Read one quest definition with objective progress.",
		InputSchema: questIDSchema,
		Handler: func(ctx context.Context, sess registry.Session, args json.RawMessage) (*registry.Result, error) {
			var in questIDInput
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, rpgerr.Wrap(err, rpgerr.KindValidation, "parse arguments")
			}
			q, err := d.Quest.Get(ctx, in.QuestID)
			if err != nil {
				return nil, err
			}
			return &registry.Result{Text: fmt.Sprintf("Quest %q (%s).", q.Name, q.Status), State: q}, nil
		},
	})

	r.MustRegister(&registry.Tool{
		Name:        "list_quests",
		Description: "List quest definitions, optionally scoped to one world.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {"worldId": {"type": "string"}}
		}`),
		Handler: func(ctx context.Context, sess registry.Session, args json.RawMessage) (*registry.Result, error) {
			var in struct {
				WorldID string `json:"worldId"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, rpgerr.Wrap(err, rpgerr.KindValidation, "parse arguments")
			}
			quests, err := d.Quest.List(ctx, in.WorldID)
			if err != nil {
				return nil, err
			}
			return &registry.Result{Text: fmt.Sprintf("%d quests.", len(quests)), State: quests}, nil
		},
	})

	r.MustRegister(&registry.Tool{
		Name:        "assign_quest",
		Description: "Assign a quest to a character. Every prerequisite quest must already be completed by that character.",
		InputSchema: characterQuestSchema,
		Handler: func(ctx context.Context, sess registry.Session, args json.RawMessage) (*registry.Result, error) {
			var in characterQuestInput
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, rpgerr.Wrap(err, rpgerr.KindValidation, "parse arguments")
			}
			log, err := d.Quest.Assign(ctx, in.CharacterID, in.QuestID)
			if err != nil {
				return nil, err
			}
			return &registry.Result{
				Text:  fmt.Sprintf("Quest %s is now active for %s.", in.QuestID, in.CharacterID),
				State: log,
			}, nil
		},
	})

	r.MustRegister(&registry.Tool{
		Name:        "update_objective",
		Description: "Add progress to a quest objective; progress clamps at the requirement and flips completion atomically.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"questId": {"type": "string", "minLength": 1},
				"objectiveId": {"type": "string", "minLength": 1},
				"delta": {"type": "integer"}
			},
			"required": ["questId", "objectiveId", "delta"]
		}`),
		Handler: func(ctx context.Context, sess registry.Session, args json.RawMessage) (*registry.Result, error) {
			var in struct {
				QuestID     string `json:"questId"`
				ObjectiveID string `json:"objectiveId"`
				Delta       int    `json:"delta"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, rpgerr.Wrap(err, rpgerr.KindValidation, "parse arguments")
			}
			obj, err := d.Quest.UpdateObjective(ctx, in.QuestID, in.ObjectiveID, in.Delta)
			if err != nil {
				return nil, err
			}
			return &registry.Result{
				Text:  fmt.Sprintf("Objective %q at %d/%d.", obj.Description, obj.Current, obj.Required),
				State: obj,
			}, nil
		},
	})

	r.MustRegister(&registry.Tool{
		Name:        "complete_objective",
		Description: "Mark a quest objective fully completed.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"questId": {"type": "string", "minLength": 1},
				"objectiveId": {"type": "string", "minLength": 1}
			},
			"required": ["questId", "objectiveId"]
		}`),
		Handler: func(ctx context.Context, sess registry.Session, args json.RawMessage) (*registry.Result, error) {
			var in struct {
				QuestID     string `json:"questId"`
				ObjectiveID string `json:"objectiveId"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, rpgerr.Wrap(err, rpgerr.KindValidation, "parse arguments")
			}
			obj, err := d.Quest.CompleteObjective(ctx, in.QuestID, in.ObjectiveID)
			if err != nil {
				return nil, err
			}
			return &registry.Result{
				Text:  fmt.Sprintf("Objective %q completed.", obj.Description),
				State: obj,
			}, nil
		},
	})

	r.MustRegister(&registry.Tool{
		Name:        "complete_quest",
		Description: "Complete an active quest for a character once every objective is done; grants item rewards and echoes XP and gold.",
		InputSchema: characterQuestSchema,
		Handler: func(ctx context.Context, sess registry.Session, args json.RawMessage) (*registry.Result, error) {
			var in characterQuestInput
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, rpgerr.Wrap(err, rpgerr.KindValidation, "parse arguments")
			}
			res, err := d.Quest.Complete(ctx, in.CharacterID, in.QuestID)
			if err != nil {
				return nil, err
			}
			return &registry.Result{
				Text: fmt.Sprintf("Quest %s completed: %d xp, %d gold, %d items granted.",
					in.QuestID, res.Experience, res.Gold, len(res.ItemsGranted)),
				State: res,
			}, nil
		},
	})

	r.MustRegister(&registry.Tool{
		Name:        "get_quest_log",
		Description: "Read a character's quest log, hydrated to full quests with per-objective progress.",
		InputSchema: characterIDSchema,
		Handler: func(ctx context.Context, sess registry.Session, args json.RawMessage) (*registry.Result, error) {
			var in characterIDInput
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, rpgerr.Wrap(err, rpgerr.KindValidation, "parse arguments")
			}
			view, err := d.Quest.GetLog(ctx, in.CharacterID)
			if err != nil {
				return nil, err
			}
			return &registry.Result{
				Text: fmt.Sprintf("%s: %d active, %d completed, %d failed quests.",
					in.CharacterID, len(view.Active), len(view.Completed), len(view.Failed)),
				State: view,
			}, nil
		},
	})
}

var questIDSchema = json.RawMessage(`{
	"type": "object",
	"properties": {"questId": {"type": "string", "minLength": 1}},
	"required": ["questId"]
}`)

type questIDInput struct {
	QuestID string `json:"questId"`
}

var characterQuestSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"characterId": {"type": "string", "minLength": 1},
		"questId": {"type": "string", "minLength": 1}
	},
	"required": ["characterId", "questId"]
}`)

type characterQuestInput struct {
	CharacterID string `json:"characterId"`
	QuestID     string `json:"questId"`
}

var characterIDSchema = json.RawMessage(`{
	"type": "object",
	"properties": {"characterId": {"type": "string", "minLength": 1}},
	"required": ["characterId"]
}`)

type characterIDInput struct {
	CharacterID string `json:"characterId"`
}
