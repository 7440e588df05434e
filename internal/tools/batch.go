package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mnehmos/questforge/internal/batch"
	"github.com/mnehmos/questforge/internal/registry"
	"github.com/mnehmos/questforge/internal/router"
	"github.com/mnehmos/questforge/internal/rpgerr"
	"github.com/mnehmos/questforge/pkg/models"
)

var batchSpecsSchema = `{
	"type": "array",
	"minItems": 1,
	"items": {
		"type": "object",
		"properties": {
			"template": {"type": "string", "minLength": 1},
			"count": {"type": "integer", "minimum": 1, "maximum": 50},
			"nameBase": {"type": "string"}
		},
		"required": ["template", "count"]
	}
}`

func (d *Deps) registerBatchTool(r *registry.Registry) {
	rt := router.New("batch_manage",
		&router.Action{
			Name:        "create_characters",
			Description: "Create a group of characters from templates.",
			Aliases:     []string{"create_party"},
			Schema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"action": {"const": "create_characters"},
					"specs": ` + batchSpecsSchema + `
				},
				"required": ["action", "specs"]
			}`),
			Handler: d.batchCreateHandler(""),
		},
		&router.Action{
			Name:        "create_npcs",
			Description: "Create a crowd of NPCs from templates.",
			Aliases:     []string{"create_crowd"},
			Schema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"action": {"const": "create_npcs"},
					"specs": ` + batchSpecsSchema + `
				},
				"required": ["action", "specs"]
			}`),
			Handler: d.batchCreateHandler(models.CharacterNPC),
		},
		&router.Action{
			Name:        "distribute_items",
			Description: "Hand out items to characters in bulk.",
			Aliases:     []string{"give_items"},
			Schema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"action": {"const": "distribute_items"},
					"grants": {
						"type": "array",
						"minItems": 1,
						"items": {
							"type": "object",
							"properties": {
								"characterId": {"type": "string", "minLength": 1},
								"itemId": {"type": "string", "minLength": 1},
								"quantity": {"type": "integer", "minimum": 1}
							},
							"required": ["characterId", "itemId"]
						}
					}
				},
				"required": ["action", "grants"]
			}`),
			Handler: func(ctx context.Context, sess registry.Session, args json.RawMessage) (*registry.Result, error) {
				var in struct {
					Grants []batch.Distribution `json:"grants"`
				}
				if err := json.Unmarshal(args, &in); err != nil {
					return nil, rpgerr.Wrap(err, rpgerr.KindValidation, "parse arguments")
				}
				n, err := d.Batch.DistributeItems(ctx, in.Grants)
				if err != nil {
					return nil, err
				}
				return &registry.Result{
					Text:  fmt.Sprintf("%d item grants distributed.", n),
					State: map[string]any{"grants": n},
				}, nil
			},
		},
		&router.Action{
			Name:        "execute_workflow",
			Description: "Run a multi-step workflow of character creation and item distribution.",
			Aliases:     []string{"workflow"},
			Schema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"action": {"const": "execute_workflow"},
					"steps": {"type": "array", "minItems": 1, "items": {"type": "object"}}
				},
				"required": ["action", "steps"]
			}`),
			Handler: func(ctx context.Context, sess registry.Session, args json.RawMessage) (*registry.Result, error) {
				var in struct {
					Steps []batch.WorkflowStep `json:"steps"`
				}
				if err := json.Unmarshal(args, &in); err != nil {
					return nil, rpgerr.Wrap(err, rpgerr.KindValidation, "parse arguments")
				}
				res, err := d.Batch.ExecuteWorkflow(ctx, in.Steps)
				if err != nil {
					return nil, err
				}
				return &registry.Result{
					Text: fmt.Sprintf("Workflow ran %d steps: %d characters, %d item grants.",
						res.Steps, len(res.CharactersCreated), res.ItemsDistributed),
					State: res,
				}, nil
			},
		},
		&router.Action{
			Name:        "list_templates",
			Description: "List the built-in character templates.",
			Aliases:     []string{"templates"},
			Schema: json.RawMessage(`{
				"type": "object",
				"properties": {"action": {"const": "list_templates"}},
				"required": ["action"]
			}`),
			Handler: func(ctx context.Context, sess registry.Session, args json.RawMessage) (*registry.Result, error) {
				templates := d.Batch.ListTemplates()
				return &registry.Result{
					Text:  fmt.Sprintf("%d templates available.", len(templates)),
					State: templates,
				}, nil
			},
		},
		&router.Action{
			Name:        "get_template",
			Description: "Read one character template.",
			Aliases:     []string{"template"},
			Schema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"action": {"const": "get_template"},
					"name": {"type": "string", "minLength": 1}
				},
				"required": ["action", "name"]
			}`),
			Handler: func(ctx context.Context, sess registry.Session, args json.RawMessage) (*registry.Result, error) {
				var in struct {
					Name string `json:"name"`
				}
				if err := json.Unmarshal(args, &in); err != nil {
					return nil, rpgerr.Wrap(err, rpgerr.KindValidation, "parse arguments")
				}
				tmpl, err := d.Batch.GetTemplate(in.Name)
				if err != nil {
					return nil, err
				}
				return &registry.Result{
					Text:  fmt.Sprintf("Template %q: %s.", tmpl.Name, tmpl.Description),
					State: tmpl,
				}, nil
			},
		},
	)

	r.MustRegister(&registry.Tool{
		Name:        "batch_manage",
		Description: "Bulk operations: create_characters, create_npcs, distribute_items, execute_workflow, list_templates, get_template.",
		InputSchema: consolidatedSchema,
		Handler:     rt.Dispatch,
	})
}

func (d *Deps) batchCreateHandler(forceType models.CharacterType) registry.Handler {
	return func(ctx context.Context, sess registry.Session, args json.RawMessage) (*registry.Result, error) {
		var in struct {
			Specs []batch.Spec `json:"specs"`
		}
		if err := json.Unmarshal(args, &in); err != nil {
			return nil, rpgerr.Wrap(err, rpgerr.KindValidation, "parse arguments")
		}
		created, err := d.Batch.CreateFromSpecs(ctx, in.Specs, forceType)
		if err != nil {
			return nil, err
		}
		return &registry.Result{
			Text:  fmt.Sprintf("%d characters created.", len(created)),
			State: created,
		}, nil
	}
}
