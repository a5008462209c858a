package assistants_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/issmcp/assistants"
	"github.com/effective-security/issmcp/mcp"
	"github.com/effective-security/issmcp/pkg/llms"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedModel replies with the scripted responses, in order
type scriptedModel struct {
	replies []*llms.ContentResponse
	lock    sync.Mutex
	calls   int
}

func (m *scriptedModel) GetProviderType() llms.ProviderType { return llms.ProviderOpenAI }
func (m *scriptedModel) GetName() string                    { return "scripted" }

func (m *scriptedModel) GenerateContent(_ context.Context, _ []llms.Message, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.calls >= len(m.replies) {
		return nil, errors.New("script exhausted")
	}
	m.calls++
	return m.replies[m.calls-1], nil
}

// scriptFromTranscript rebuilds the model replies from the ai messages of a transcript
func scriptFromTranscript(messages []llms.Message) []*llms.ContentResponse {
	var script []*llms.ContentResponse
	for _, m := range messages {
		if m.Role != llms.RoleAI {
			continue
		}
		if calls := m.ToolCalls(); len(calls) > 0 {
			resp := toolCallsResponse(calls...)
			resp.Choices[0].Content = textOf(m)
			script = append(script, resp)
			continue
		}
		script = append(script, answerResponse(textOf(m)))
	}
	return script
}

type invocation struct {
	Name      string
	Arguments string
}

// recordingCaller is a tool stub that records the invocations
type recordingCaller struct {
	results     map[string]string
	invocations []invocation
}

func (c *recordingCaller) CallTool(_ context.Context, name string, arguments any) (*mcp.ToolResponse, error) {
	inv := invocation{Name: name}
	if raw, ok := arguments.(json.RawMessage); ok {
		inv.Arguments = string(raw)
	}
	c.invocations = append(c.invocations, inv)

	res, ok := c.results[name]
	if !ok {
		return nil, errors.Wrapf(mcp.ErrUnknownTool, "tool %q", name)
	}
	return mcp.NewToolResponse(mcp.NewTextContent(res)), nil
}

func TestRun_ReplayIsDeterministic(t *testing.T) {
	ctx := context.Background()
	stub := map[string]string{"get_position": positionResult}

	model := &scriptedModel{replies: []*llms.ContentResponse{
		toolCallsResponse(toolCall("call_abc", "get_position", "{}")),
		answerResponse(finalAnswer),
	}}
	caller := &recordingCaller{results: stub}

	res, err := assistants.New(model, caller, positionRegistry(t)).Run(ctx, query)
	require.NoError(t, err)
	require.Equal(t, []invocation{{Name: "get_position", Arguments: "{}"}}, caller.invocations)

	js, err := json.Marshal(res.Transcript)
	require.NoError(t, err)

	var replayed []llms.Message
	require.NoError(t, json.Unmarshal(js, &replayed))
	if diff := cmp.Diff(res.Transcript, replayed); diff != "" {
		t.Fatalf("transcript JSON round trip mismatch (-want +got):\n%s", diff)
	}

	for range 3 {
		model2 := &scriptedModel{replies: scriptFromTranscript(replayed)}
		caller2 := &recordingCaller{results: stub}

		res2, err := assistants.New(model2, caller2, positionRegistry(t)).Run(ctx, textOf(replayed[0]))
		require.NoError(t, err)

		if diff := cmp.Diff(caller.invocations, caller2.invocations); diff != "" {
			t.Fatalf("tool invocations mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff(res.Transcript, res2.Transcript); diff != "" {
			t.Fatalf("transcript mismatch (-want +got):\n%s", diff)
		}
		assert.Equal(t, res.Answer, res2.Answer)
		assert.Equal(t, 2, model2.calls)
	}
}
