package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnehmos/questforge/internal/rpgerr"
)

var personSchema = []byte(`{
	"type": "object",
	"properties": {
		"name": {"type": "string", "minLength": 1},
		"age": {"type": "integer", "minimum": 0}
	},
	"required": ["name"]
}`)

func TestValidateAccepts(t *testing.T) {
	var out struct {
		Name string `json:"name"`
		Age  int    `json:"age"`
	}
	err := Validate(personSchema, json.RawMessage(`{"name": "Imra", "age": 30}`), &out)
	require.NoError(t, err)
	assert.Equal(t, "Imra", out.Name)
	assert.Equal(t, 30, out.Age)
}

func TestValidateRejectsWithKind(t *testing.T) {
	err := Validate(personSchema, json.RawMessage(`{"age": -3}`), nil)
	require.Error(t, err)
	assert.Equal(t, rpgerr.KindValidation, rpgerr.KindOf(err))
}

func TestValidateRejectsBadJSON(t *testing.T) {
	err := Validate(personSchema, json.RawMessage(`{not json`), nil)
	require.Error(t, err)
	assert.Equal(t, rpgerr.KindValidation, rpgerr.KindOf(err))
}

func TestValidateEmptyArgsAsObject(t *testing.T) {
	err := Validate([]byte(`{"type": "object"}`), nil, nil)
	require.NoError(t, err)
}

func TestCompileCaches(t *testing.T) {
	a, err := Compile(personSchema)
	require.NoError(t, err)
	b, err := Compile(personSchema)
	require.NoError(t, err)
	assert.Same(t, a, b)
}
