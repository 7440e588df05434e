package router

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnehmos/questforge/internal/registry"
	"github.com/mnehmos/questforge/internal/rpgerr"
)

func testRouter(t *testing.T, calls *[]string) *Router {
	t.Helper()
	record := func(name string) registry.Handler {
		return func(ctx context.Context, sess registry.Session, args json.RawMessage) (*registry.Result, error) {
			*calls = append(*calls, name)
			return &registry.Result{Text: name}, nil
		}
	}
	return New("theft_manage",
		&Action{
			Name:    "sell",
			Aliases: []string{"fence", "sell_item"},
			Schema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"action": {"const": "sell"},
					"itemId": {"type": "string", "minLength": 1}
				},
				"required": ["action", "itemId"]
			}`),
			Handler: record("sell"),
		},
		&Action{Name: "steal", Handler: record("steal")},
		&Action{Name: "check", Handler: record("check")},
	)
}

func dispatch(t *testing.T, r *Router, args string) (*registry.Result, error) {
	t.Helper()
	return r.Dispatch(context.Background(), registry.Session{SessionID: "s1"}, json.RawMessage(args))
}

func TestDispatchCanonical(t *testing.T) {
	var calls []string
	r := testRouter(t, &calls)
	_, err := dispatch(t, r, `{"action": "sell", "itemId": "x"}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"sell"}, calls)
}

func TestDispatchExactAlias(t *testing.T) {
	var calls []string
	r := testRouter(t, &calls)
	_, err := dispatch(t, r, `{"action": "fence", "itemId": "x"}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"sell"}, calls)
}

func TestDispatchFuzzy(t *testing.T) {
	var calls []string
	r := testRouter(t, &calls)
	// "sel" is within edit distance 1 of "sell": similarity 0.75.
	_, err := dispatch(t, r, `{"action": "sel", "itemId": "x"}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"sell"}, calls)
}

func TestDispatchUnknownActionGuides(t *testing.T) {
	var calls []string
	r := testRouter(t, &calls)
	_, err := dispatch(t, r, `{"action": "xyz"}`)
	require.Error(t, err)
	assert.Empty(t, calls, "no handler may run on an unresolved action")

	var engineErr *rpgerr.Error
	require.True(t, errors.As(err, &engineErr))
	assert.Equal(t, rpgerr.KindUnknownAction, engineErr.Kind)
	assert.Contains(t, engineErr.Details, "availableActions")
	assert.Contains(t, engineErr.Details, "suggestions")
}

func TestDispatchMissingAction(t *testing.T) {
	var calls []string
	r := testRouter(t, &calls)
	_, err := dispatch(t, r, `{}`)
	require.Error(t, err)
	assert.Equal(t, rpgerr.KindValidation, rpgerr.KindOf(err))
}

func TestDispatchSubSchemaValidates(t *testing.T) {
	var calls []string
	r := testRouter(t, &calls)
	// Alias resolves to sell, whose schema then demands itemId.
	_, err := dispatch(t, r, `{"action": "fence"}`)
	require.Error(t, err)
	assert.Equal(t, rpgerr.KindValidation, rpgerr.KindOf(err))
	assert.Empty(t, calls)
}

func TestResolveThreshold(t *testing.T) {
	r := New("t", &Action{Name: "synthesize", Handler: func(ctx context.Context, sess registry.Session, args json.RawMessage) (*registry.Result, error) {
		return &registry.Result{}, nil
	}})

	a, err := r.Resolve("synthesiz")
	require.NoError(t, err)
	assert.Equal(t, "synthesize", a.Name)

	_, err = r.Resolve("q")
	require.Error(t, err)
}
