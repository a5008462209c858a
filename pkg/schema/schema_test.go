package schema_test

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/effective-security/issmcp/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Lookup is a tool argument with a nested type
type Lookup struct {
	Query string  `json:"query" jsonschema:"title=Query,description=Query to search for"`
	Where *KVPair `json:"where,omitempty" jsonschema:"title=Where,description=Filter"`
}

// KVPair represents a key-value pair.
type KVPair struct {
	Key   string `json:"key" jsonschema:"title=Key"`
	Value string `json:"value" jsonschema:"title=Value"`
}

// NoArgs is the argument of a parameterless tool
type NoArgs struct{}

func TestSchema_New(t *testing.T) {
	t.Parallel()

	s, err := schema.New(reflect.TypeOf(Lookup{}))
	require.NoError(t, err)
	assert.Equal(t, "object", s.Parameters.Type)
	assert.Equal(t, []string{"query"}, s.Parameters.Required)

	where, ok := s.Parameters.Properties.Get("where")
	require.True(t, ok)
	assert.Empty(t, where.Ref)
	assert.Equal(t, 2, where.Properties.Len())

	// cached
	s2, err := schema.New(reflect.TypeOf(Lookup{}))
	require.NoError(t, err)
	assert.Same(t, s, s2)
}

func TestSchema_NoArgs(t *testing.T) {
	t.Parallel()

	s, err := schema.New(reflect.TypeOf(NoArgs{}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"object","properties":{}}`, s.String())
	assert.True(t, schema.IsEmptyObject(s.Parameters))
}

func TestEmptyObject(t *testing.T) {
	t.Parallel()

	bs, err := json.Marshal(schema.EmptyObject())
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"object","properties":{}}`, string(bs))

	assert.True(t, schema.IsEmptyObject(nil))
	assert.True(t, schema.IsEmptyObject(schema.MustFromAny(map[string]any{"type": "object"})))
	assert.False(t, schema.IsEmptyObject(schema.MustFromAny(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{"type": "string"},
		},
	})))
}

func TestFromAny(t *testing.T) {
	t.Parallel()

	s, err := schema.FromAny(json.RawMessage(`{"type":"object","properties":{"a":{"type":"integer"}},"required":["a"]}`))
	require.NoError(t, err)
	assert.Equal(t, "object", s.Type)
	assert.Equal(t, []string{"a"}, s.Required)

	_, err = schema.FromAny(json.RawMessage(`[1,2]`))
	assert.Error(t, err)

	_, err = schema.FromAny(func() {})
	assert.Error(t, err)

	assert.Panics(t, func() {
		schema.MustFromAny(make(chan int))
	})
}
