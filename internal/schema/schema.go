// Package schema validates raw tool arguments against JSON Schemas
// before they reach a handler. Compiled schemas are cached by source.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/mnehmos/questforge/internal/rpgerr"
)

var cache sync.Map

// Compile compiles a schema document, reusing a cached copy when the
// same source was compiled before.
func Compile(source []byte) (*jsonschema.Schema, error) {
	key := string(source)
	if cached, ok := cache.Load(key); ok {
		if compiled, ok := cached.(*jsonschema.Schema); ok {
			return compiled, nil
		}
	}
	compiled, err := jsonschema.CompileString("tool.schema.json", key)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	cache.Store(key, compiled)
	return compiled, nil
}

// Validate parses raw JSON arguments against the schema and, on
// success, unmarshals them into out. Failures are ValidationErrors with
// field-level details.
func Validate(source []byte, raw json.RawMessage, out any) error {
	compiled, err := Compile(source)
	if err != nil {
		return rpgerr.Wrap(err, rpgerr.KindValidation, "tool schema is invalid")
	}

	if len(raw) == 0 {
		raw = json.RawMessage(`{}`)
	}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return rpgerr.Wrap(err, rpgerr.KindValidation, "arguments are not valid JSON")
	}

	if err := compiled.Validate(decoded); err != nil {
		details := map[string]any{}
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			for _, cause := range ve.BasicOutput().Errors {
				if cause.KeywordLocation == "" {
					continue
				}
				details[cause.InstanceLocation] = cause.Error
			}
		}
		return rpgerr.New(rpgerr.KindValidation, "arguments failed schema validation: %v", err).
			WithDetails(details)
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return rpgerr.Wrap(err, rpgerr.KindValidation, "arguments do not match expected shape")
		}
	}
	return nil
}
