package llmutils_test

import (
	"bytes"
	"testing"

	"github.com/effective-security/issmcp/pkg/llms"
	"github.com/effective-security/issmcp/pkg/llmutils"
	"github.com/stretchr/testify/assert"
)

func testTranscript() []llms.Message {
	return []llms.Message{
		llms.MessageFromTextParts(llms.RoleHuman, "where?"),
		llms.MessageFromToolCalls(llms.RoleAI, llms.ToolCall{
			ID:           "c1",
			Type:         "function",
			FunctionCall: &llms.FunctionCall{Name: "get_position", Arguments: "{}"},
		}),
		llms.MessageFromToolResponse(llms.RoleTool, llms.ToolCallResponse{ToolCallID: "c1", Name: "get_position", Content: "ok"}),
	}
}

func Test_ToYAML(t *testing.T) {
	y := llmutils.ToYAML(testTranscript()[:1])
	assert.Equal(t, "- role: human\n  text: where?\n", y)

	assert.Equal(t, `{"role":"human","text":"where?"}`, llmutils.ToJSON(testTranscript()[0]))
	assert.Equal(t, "{\n\t\"a\": 1\n}", llmutils.ToJSONIndent(map[string]int{"a": 1}))
}

func Test_PrintMessages(t *testing.T) {
	var buf bytes.Buffer
	llmutils.PrintMessages(&buf, testTranscript())
	assert.Equal(t, `HUMAN: where?
AI: ToolCall ID=c1, Type=function, Func=get_position({})
TOOL: ToolCallResponse ID=c1, Name=get_position, Content=ok
`, buf.String())
}

func Test_Count(t *testing.T) {
	// human(5)+where?(6) + ai(2)+c1(2)+function(8)+get_position(12)+{}(2) + tool(4)+c1(2)+get_position(12)+ok(2)
	assert.Equal(t, uint64(57), llmutils.CountMessagesContentSize(testTranscript()))

	resp := &llms.ContentResponse{
		Choices: []*llms.ContentChoice{
			{
				Content: "hello",
				GenerationInfo: map[string]any{
					"PromptTokens":     int64(10),
					"CompletionTokens": int64(5),
					"TotalTokens":      int64(15),
				},
			},
		},
	}
	assert.Equal(t, uint64(5), llmutils.CountResponseContentSize(resp))
	assert.Equal(t, uint64(0), llmutils.CountResponseContentSize(nil))

	in, out, total := llmutils.CountTokens(resp)
	assert.Equal(t, int64(10), in)
	assert.Equal(t, int64(5), out)
	assert.Equal(t, int64(15), total)
}

func Test_EnsureEndsWithNewline(t *testing.T) {
	assert.Equal(t, "", llmutils.EnsureEndsWithNewline("  "))
	assert.Equal(t, "a\n", llmutils.EnsureEndsWithNewline(" a "))
}
