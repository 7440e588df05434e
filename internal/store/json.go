package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// encodeJSON marshals v for a TEXT column. A nil slice encodes as
// "null", which decodes back to a nil slice; an empty slice encodes as
// "[]".
func encodeJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode json column: %w", err)
	}
	return string(b), nil
}

// decodeJSON unmarshals a TEXT column into out, tolerating NULL.
func decodeJSON(raw sql.NullString, out any) error {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw.String), out); err != nil {
		return fmt.Errorf("decode json column: %w", err)
	}
	return nil
}
