// Package rpgerr defines the engine-wide error taxonomy. Every error
// that escapes a tool handler carries a Kind so the registry can format
// a machine-readable failure payload for the orchestrator.
package rpgerr

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind categorizes engine failures for the caller.
type Kind string

const (
	// KindValidation indicates input failed schema parsing. Caller fault;
	// never retriable.
	KindValidation Kind = "validation_error"

	// KindUnknownTool indicates the dispatch target tool does not exist.
	KindUnknownTool Kind = "unknown_tool"

	// KindUnknownAction indicates a consolidated tool received an action
	// that resolved to nothing, even after fuzzy matching.
	KindUnknownAction Kind = "unknown_action"

	// KindNotFound indicates a referenced entity is not in the store.
	KindNotFound Kind = "not_found"

	// KindInvariant indicates the request would break a documented
	// invariant (self-theft, equipped transfer, unmet prerequisite...).
	// Never retriable.
	KindInvariant Kind = "invariant_violation"

	// KindConflict indicates an operation valid in isolation that the
	// current state forbids (completing a quest with open objectives,
	// acting in a completed encounter).
	KindConflict Kind = "conflicting_state"

	// KindStorage indicates an underlying persistence failure. Surfaced
	// as-is; the engine performs no automatic retry.
	KindStorage Kind = "storage_error"
)

// Error is the engine error type. Details is an optional open property
// bag serialized into the failure payload.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]any
	wrapped error
}

func (e *Error) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.wrapped }

// New creates an engine error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap annotates err with a kind and message. A nil err yields nil.
func Wrap(err error, kind Kind, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), wrapped: err}
}

// WithDetails attaches structured details, returning the same error for
// chaining.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// KindOf extracts the Kind from an error chain. Unclassified errors
// report KindStorage: by the time an error reaches the boundary, a
// non-taxonomy failure is a persistence or programming fault.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStorage
}

// Payload is the machine-readable failure object embedded in every
// error response.
type Payload struct {
	Error   bool           `json:"error"`
	Kind    Kind           `json:"kind"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// PayloadFor builds the failure payload for an error chain.
func PayloadFor(err error) Payload {
	p := Payload{Error: true, Kind: KindStorage, Message: err.Error()}
	var e *Error
	if errors.As(err, &e) {
		p.Kind = e.Kind
		p.Message = e.Message
		p.Details = e.Details
	}
	return p
}

// JSON renders the payload, falling back to a static object if the
// details refuse to encode.
func (p Payload) JSON() []byte {
	b, err := json.Marshal(p)
	if err != nil {
		b = []byte(`{"error":true,"kind":"storage_error","message":"failed to encode error payload"}`)
	}
	return b
}
