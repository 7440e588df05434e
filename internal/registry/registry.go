// Package registry is the engine boundary: it advertises tools to the
// caller, validates invocations against their schemas, and formats
// every response into the envelope contract.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/mnehmos/questforge/internal/rpgerr"
	"github.com/mnehmos/questforge/internal/schema"
)

// Session carries per-conversation context. All runtime caches key on
// SessionID so concurrent conversations stay isolated.
type Session struct {
	SessionID string
}

// Result is what a handler produces: narrative text plus an optional
// machine-readable state object embedded into the response for
// downstream parsers.
type Result struct {
	Text  string
	State any
}

// Handler executes a validated tool call.
type Handler func(ctx context.Context, sess Session, args json.RawMessage) (*Result, error)

// Tool couples a name, a human description, a JSON Schema for its
// input, and the handler.
type Tool struct {
	Name        string
	Description string
	InputSchema json.RawMessage
	Handler     Handler
}

// Descriptor is the discovery view of a registered tool.
type Descriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// Registry maps tool names to handlers with thread-safe registration
// and lookup.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]*Tool
	logger *slog.Logger

	sessionMu    sync.Mutex
	sessionLocks map[string]*sessionLock
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		tools:        make(map[string]*Tool),
		logger:       slog.Default().With("component", "registry"),
		sessionLocks: make(map[string]*sessionLock),
	}
}

// Register adds a tool. Re-registering an existing name fails: a
// duplicate registration is always a programming error, never a
// legitimate override.
func (r *Registry) Register(t *Tool) error {
	if t.Name == "" {
		return rpgerr.New(rpgerr.KindValidation, "tool name is required")
	}
	if t.Handler == nil {
		return rpgerr.New(rpgerr.KindValidation, "tool %s has no handler", t.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name]; exists {
		return rpgerr.New(rpgerr.KindConflict, "tool %s is already registered", t.Name)
	}
	r.tools[t.Name] = t
	return nil
}

// MustRegister panics on registration failure; used at startup where a
// duplicate means a broken build.
func (r *Registry) MustRegister(t *Tool) {
	if err := r.Register(t); err != nil {
		panic(fmt.Sprintf("register tool %s: %v", t.Name, err))
	}
}

// List returns descriptors for every registered tool, sorted by name.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, Descriptor{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Invoke validates args against the tool's schema and runs the
// handler, serializing calls within a session. Errors never escape:
// they are formatted into the error envelope so the orchestrator can
// re-plan.
func (r *Registry) Invoke(ctx context.Context, sess Session, name string, args json.RawMessage) *Envelope {
	r.mu.RLock()
	tool, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return errorEnvelope(rpgerr.New(rpgerr.KindUnknownTool, "unknown tool %q", name))
	}

	unlock := r.lockSession(sess.SessionID)
	defer unlock()

	if len(tool.InputSchema) > 0 {
		if err := schema.Validate(tool.InputSchema, args, nil); err != nil {
			return errorEnvelope(err)
		}
	}

	result, err := tool.Handler(ctx, sess, args)
	if err != nil {
		r.logger.Warn("tool failed", "tool", name, "session", sess.SessionID, "error", err)
		return errorEnvelope(err)
	}
	return resultEnvelope(result)
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// lockSession serializes tool calls within one session; distinct
// sessions proceed concurrently.
func (r *Registry) lockSession(sessionID string) func() {
	if sessionID == "" {
		return func() {}
	}
	r.sessionMu.Lock()
	lock := r.sessionLocks[sessionID]
	if lock == nil {
		lock = &sessionLock{}
		r.sessionLocks[sessionID] = lock
	}
	lock.refs++
	r.sessionMu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		r.sessionMu.Lock()
		lock.refs--
		if lock.refs <= 0 {
			delete(r.sessionLocks, sessionID)
		}
		r.sessionMu.Unlock()
	}
}
