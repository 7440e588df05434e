// Package router multiplexes a consolidated tool into sub-actions. An
// incoming action string resolves canonically, then by exact alias,
// then by fuzzy edit-distance match; anything below the similarity
// threshold yields a guiding error with ranked suggestions rather than
// a silent guess.
package router

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/agext/levenshtein"

	"github.com/mnehmos/questforge/internal/registry"
	"github.com/mnehmos/questforge/internal/rpgerr"
	"github.com/mnehmos/questforge/internal/schema"
)

// SimilarityThreshold is the minimum normalized similarity for a fuzzy
// action match to dispatch transparently.
const SimilarityThreshold = 0.6

// Action is one sub-handler of a consolidated tool.
type Action struct {
	Name        string
	Description string
	Aliases     []string
	// Schema validates the full input, action discriminator included.
	Schema  json.RawMessage
	Handler registry.Handler
}

// Router resolves an action discriminator and dispatches.
type Router struct {
	toolName string
	actions  []*Action
	byName   map[string]*Action
	byAlias  map[string]*Action
}

// New builds a router for a consolidated tool.
func New(toolName string, actions ...*Action) *Router {
	r := &Router{
		toolName: toolName,
		actions:  actions,
		byName:   make(map[string]*Action, len(actions)),
		byAlias:  make(map[string]*Action),
	}
	for _, a := range actions {
		r.byName[a.Name] = a
		for _, alias := range a.Aliases {
			r.byAlias[alias] = a
		}
	}
	return r
}

// Names returns the canonical action names in declaration order.
func (r *Router) Names() []string {
	out := make([]string, len(r.actions))
	for i, a := range r.actions {
		out[i] = a.Name
	}
	return out
}

// Suggestion pairs a candidate action with its similarity score.
type Suggestion struct {
	Value      string  `json:"value"`
	Similarity float64 `json:"similarity"`
}

// Resolve maps a raw action string to an Action, or returns an
// UnknownAction error carrying suggestions.
func (r *Router) Resolve(raw string) (*Action, error) {
	if a, ok := r.byName[raw]; ok {
		return a, nil
	}
	if a, ok := r.byAlias[raw]; ok {
		return a, nil
	}

	best, suggestions := r.fuzzyMatch(raw)
	if best != nil {
		return best, nil
	}
	return nil, rpgerr.New(rpgerr.KindUnknownAction,
		"unknown action %q for %s", raw, r.toolName).
		WithDetails(map[string]any{
			"availableActions": r.Names(),
			"suggestions":      suggestions,
		})
}

// fuzzyMatch scores raw against every canonical name and alias. Above
// the threshold the best match dispatches; otherwise the top scores
// come back as guidance.
func (r *Router) fuzzyMatch(raw string) (*Action, []Suggestion) {
	type scored struct {
		action *Action
		s      Suggestion
	}
	var all []scored
	seen := map[string]bool{}
	consider := func(candidate string, a *Action) {
		if seen[candidate] {
			return
		}
		seen[candidate] = true
		sim := levenshtein.Similarity(raw, candidate, nil)
		all = append(all, scored{action: a, s: Suggestion{Value: candidate, Similarity: sim}})
	}
	for _, a := range r.actions {
		consider(a.Name, a)
		for _, alias := range a.Aliases {
			consider(alias, a)
		}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].s.Similarity > all[j].s.Similarity })

	if len(all) > 0 && all[0].s.Similarity >= SimilarityThreshold {
		return all[0].action, nil
	}
	n := len(all)
	if n > 3 {
		n = 3
	}
	suggestions := make([]Suggestion, 0, n)
	for _, sc := range all[:n] {
		suggestions = append(suggestions, sc.s)
	}
	return nil, suggestions
}

// Dispatch is the handler body of a consolidated tool: it parses the
// action discriminator, resolves it, validates the full input against
// the chosen sub-schema, and invokes the sub-handler.
func (r *Router) Dispatch(ctx context.Context, sess registry.Session, args json.RawMessage) (*registry.Result, error) {
	var probe struct {
		Action string `json:"action"`
	}
	if err := json.Unmarshal(args, &probe); err != nil {
		return nil, rpgerr.Wrap(err, rpgerr.KindValidation, "arguments are not valid JSON")
	}
	if probe.Action == "" {
		return nil, rpgerr.New(rpgerr.KindValidation, "%s requires an action field", r.toolName).
			WithDetails(map[string]any{"availableActions": r.Names()})
	}

	action, err := r.Resolve(probe.Action)
	if err != nil {
		return nil, err
	}

	// Re-canonicalize before sub-schema validation: the sub-schema pins
	// the action literal.
	if probe.Action != action.Name {
		var full map[string]json.RawMessage
		if err := json.Unmarshal(args, &full); err != nil {
			return nil, rpgerr.Wrap(err, rpgerr.KindValidation, "arguments are not valid JSON")
		}
		canonical, _ := json.Marshal(action.Name)
		full["action"] = canonical
		if args, err = json.Marshal(full); err != nil {
			return nil, rpgerr.Wrap(err, rpgerr.KindValidation, "re-encode arguments")
		}
	}

	if len(action.Schema) > 0 {
		if err := schema.Validate(action.Schema, args, nil); err != nil {
			return nil, err
		}
	}
	return action.Handler(ctx, sess, args)
}
