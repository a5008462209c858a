package registry_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/issmcp/chatmodel"
	"github.com/effective-security/issmcp/mcp"
	"github.com/effective-security/issmcp/mocks/mockregistry"
	"github.com/effective-security/issmcp/pkg/llmutils"
	"github.com/effective-security/issmcp/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func fakeTools(f *gofakeit.Faker, n int) []mcp.ToolRetType {
	list := make([]mcp.ToolRetType, 0, n)
	for i := range n {
		list = append(list, mcp.ToolRetType{
			Name:        fmt.Sprintf("%s_%d", f.Word(), i),
			Description: f.Sentence(6),
		})
	}
	return list
}

func TestNew_OneDescriptorPerTool(t *testing.T) {
	f := gofakeit.New(42)
	for range 20 {
		list := fakeTools(f, f.IntRange(0, 12))

		r, err := registry.New(list)
		require.NoError(t, err)
		require.Equal(t, len(list), r.Len())

		tools := r.Tools()
		names := r.Names()
		for i, tool := range list {
			assert.Equal(t, "function", tools[i].Type)
			assert.Equal(t, tool.Name, tools[i].Function.Name)
			assert.Equal(t, tool.Description, tools[i].Function.Description)
			assert.Equal(t, tool.Name, names[i])

			found, ok := r.Lookup(tool.Name)
			require.True(t, ok)
			assert.Equal(t, tools[i], found)
		}

		if len(list) > 0 {
			dup := append(list, mcp.ToolRetType{Name: list[f.IntRange(0, len(list)-1)].Name})
			_, err = registry.New(dup)
			require.Error(t, err)
			assert.True(t, errors.Is(err, chatmodel.ErrDuplicateToolName))
		}
	}
}

func TestNew_Errors(t *testing.T) {
	_, err := registry.New([]mcp.ToolRetType{{Name: ""}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, chatmodel.ErrProtocolViolation))

	_, err = registry.New([]mcp.ToolRetType{{Name: "a"}, {Name: "a"}})
	assert.EqualError(t, err, `tool "a": duplicate tool name`)

	_, err = registry.New([]mcp.ToolRetType{{Name: "a", InputSchema: json.RawMessage(`{"type":5}`)}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, chatmodel.ErrProtocolViolation))
	assert.Contains(t, err.Error(), `tool "a": invalid input schema`)
}

func TestNew_Lookup(t *testing.T) {
	r, err := registry.New([]mcp.ToolRetType{{Name: "get_position"}})
	require.NoError(t, err)

	_, ok := r.Lookup("get_position")
	assert.True(t, ok)
	_, ok = r.Lookup("GET_POSITION")
	assert.False(t, ok)
	_, ok = r.Lookup("get_positions")
	assert.False(t, ok)

	// returned slices are copies
	names := r.Names()
	names[0] = "changed"
	assert.Equal(t, []string{"get_position"}, r.Names())
}

func TestNew_Schema(t *testing.T) {
	list := []mcp.ToolRetType{
		{Name: "no_schema", Description: "no schema"},
		{Name: "empty", InputSchema: json.RawMessage(`{"type":"object"}`)},
		{Name: "search", InputSchema: json.RawMessage(`{"type":"object","properties":{"query":{"type":"string"}},"required":["query"]}`)},
	}

	r, err := registry.New(list)
	require.NoError(t, err)
	tools := r.Tools()
	assert.JSONEq(t, `{"type":"object","properties":{}}`, llmutils.ToJSON(tools[0].Function.Parameters))
	assert.JSONEq(t, `{"type":"object","properties":{}}`, llmutils.ToJSON(tools[1].Function.Parameters))
	assert.JSONEq(t, `{"properties":{"query":{"type":"string"}},"type":"object","required":["query"]}`, llmutils.ToJSON(tools[2].Function.Parameters))
	assert.False(t, tools[2].Function.Strict)

	r, err = registry.New(list, registry.WithOmitEmptySchema(), registry.WithStrict())
	require.NoError(t, err)
	tools = r.Tools()
	assert.Nil(t, tools[0].Function.Parameters)
	assert.Nil(t, tools[1].Function.Parameters)
	require.NotNil(t, tools[2].Function.Parameters)
	assert.True(t, tools[2].Function.Strict)
}

func TestDiscover(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	lister := mockregistry.NewMockLister(ctrl)

	lister.EXPECT().ListAllTools(gomock.Any()).Return([]mcp.ToolRetType{{Name: "get_position", Description: "Get ISS geolocation."}}, nil)
	r, err := registry.Discover(ctx, lister)
	require.NoError(t, err)
	assert.Equal(t, []string{"get_position"}, r.Names())

	lister.EXPECT().ListAllTools(gomock.Any()).Return(nil, errors.New("broken pipe"))
	_, err = registry.Discover(ctx, lister)
	require.Error(t, err)
	assert.True(t, errors.Is(err, chatmodel.ErrTransport))
	assert.EqualError(t, err, "failed to discover tools: broken pipe")

	lister.EXPECT().ListAllTools(gomock.Any()).Return([]mcp.ToolRetType{{Name: "x"}, {Name: "x"}}, nil)
	_, err = registry.Discover(ctx, lister)
	assert.True(t, errors.Is(err, chatmodel.ErrDuplicateToolName))
}
