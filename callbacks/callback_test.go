package callbacks_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/issmcp/assistants"
	"github.com/effective-security/issmcp/callbacks"
	"github.com/effective-security/issmcp/chatmodel"
	"github.com/effective-security/issmcp/mocks/mockassistants"
	"github.com/effective-security/issmcp/pkg/llms"
	"github.com/effective-security/xlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type fakeAssistant struct{ name string }

func (a *fakeAssistant) Name() string { return a.name }
func (a *fakeAssistant) Run(context.Context, string) (*assistants.Result, error) {
	return nil, nil
}

type fakeLLM struct{}

func (fakeLLM) GetProviderType() llms.ProviderType { return llms.ProviderOpenAI }
func (fakeLLM) GetName() string                    { return "gpt-4o" }
func (fakeLLM) GenerateContent(context.Context, []llms.Message, ...llms.CallOption) (*llms.ContentResponse, error) {
	return nil, nil
}

var positionCall = llms.ToolCall{
	ID:           "call_1",
	Type:         "function",
	FunctionCall: &llms.FunctionCall{Name: "get_position", Arguments: "{}"},
}

func transcript() []llms.Message {
	return []llms.Message{
		llms.MessageFromTextParts(llms.RoleDeveloper, "What's the current geolocation of the ISS?"),
		llms.MessageFromToolCalls(llms.RoleAI, positionCall),
		llms.MessageFromToolResponse(llms.RoleTool, llms.ToolCallResponse{
			ToolCallID: "call_1",
			Name:       "get_position",
			Content:    `{"message":"success"}`,
		}),
		llms.MessageFromTextParts(llms.RoleAI, "lat 10, lon 20"),
	}
}

func result() *assistants.Result {
	return &assistants.Result{
		Answer:      "lat 10, lon 20",
		State:       assistants.StateDone,
		Submissions: 2,
		ToolCalls:   []llms.ToolCall{positionCall},
		Transcript:  transcript(),
	}
}

// emit sends every event once
func emit(ctx context.Context, cb assistants.Callback) {
	ast := &fakeAssistant{name: "iss"}
	resp := &llms.ContentResponse{Choices: []*llms.ContentChoice{{
		Content:        "lat 10, lon 20",
		GenerationInfo: map[string]any{"PromptTokens": int64(12), "CompletionTokens": int64(8)},
	}}}

	cb.OnAssistantStart(ctx, ast, "test input")
	cb.OnAssistantLLMCallStart(ctx, ast, fakeLLM{}, transcript()[:1])
	cb.OnAssistantLLMCallEnd(ctx, ast, fakeLLM{}, resp)
	cb.OnToolStart(ctx, ast, positionCall)
	cb.OnToolEnd(ctx, ast, positionCall, "test output")
	cb.OnToolError(ctx, ast, positionCall, errors.New("test error"))
	cb.OnToolNotFound(ctx, ast, llms.ToolCall{ID: "x", FunctionCall: &llms.FunctionCall{Name: "get_weather"}})
	cb.OnAssistantEnd(ctx, ast, "test input", result())
	cb.OnAssistantError(ctx, ast, "test input", errors.New("test error"), transcript())
}

func TestPrinter(t *testing.T) {
	var buf bytes.Buffer
	emit(context.Background(), callbacks.NewPrinter(&buf, callbacks.ModeVerbose))

	res := buf.String()
	assert.Contains(t, res, "Assistant Start: iss\n")
	assert.Contains(t, res, "Input: test input\n")
	assert.Contains(t, res, "Assistant LLM Call: iss: gpt-4o model, 1 messages\n")
	assert.Contains(t, res, "Assistant LLM Call End: iss: gpt-4o model, 1 choices\n")
	assert.Contains(t, res, "Tool Start: get_position (call_1)\n")
	assert.Contains(t, res, "Input: {}\n")
	assert.Contains(t, res, "Tool End: get_position (call_1)\n")
	assert.Contains(t, res, "Output: test output\n")
	assert.Contains(t, res, "Tool Error: get_position (call_1): test error\n")
	assert.Contains(t, res, "Tool Not Found: get_weather\n")
	assert.Contains(t, res, "Assistant End: iss: Done, 2 submissions, 1 tool calls\nlat 10, lon 20\n")
	assert.Contains(t, res, "Assistant Error: iss: test error\n")

	buf.Reset()
	emit(context.Background(), callbacks.NewPrinter(&buf, callbacks.ModeDefault))
	assert.NotContains(t, buf.String(), "Output: test output")

	buf.Reset()
	callbacks.NewPrinter(&buf, callbacks.ModeDefault).OnAssistantLLMCallEnd(context.Background(), &fakeAssistant{name: "iss"}, fakeLLM{}, nil)
	assert.Equal(t, "Assistant LLM Call End: iss: gpt-4o model, 0 choices\n", buf.String())
}

func TestPackageLogger(t *testing.T) {
	logger := xlog.NewPackageLogger("github.com/effective-security/issmcp", "callbacks_test")
	// must not panic on any event
	emit(context.Background(), callbacks.NewPackageLogger(logger))
	callbacks.NewPackageLogger(logger).OnAssistantLLMCallEnd(context.Background(), &fakeAssistant{name: "iss"}, fakeLLM{}, nil)
	emit(context.Background(), callbacks.NewNoop())
}

func TestFanout(t *testing.T) {
	ctrl := gomock.NewController(t)
	m1 := mockassistants.NewMockCallback(ctrl)
	m2 := mockassistants.NewMockCallback(ctrl)

	for _, m := range []*mockassistants.MockCallback{m1, m2} {
		m.EXPECT().OnAssistantStart(gomock.Any(), gomock.Any(), "test input").Times(1)
		m.EXPECT().OnAssistantLLMCallStart(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(1)
		m.EXPECT().OnAssistantLLMCallEnd(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(1)
		m.EXPECT().OnToolStart(gomock.Any(), gomock.Any(), positionCall).Times(1)
		m.EXPECT().OnToolEnd(gomock.Any(), gomock.Any(), positionCall, "test output").Times(1)
		m.EXPECT().OnToolError(gomock.Any(), gomock.Any(), positionCall, gomock.Any()).Times(1)
		m.EXPECT().OnToolNotFound(gomock.Any(), gomock.Any(), gomock.Any()).Times(1)
		m.EXPECT().OnAssistantEnd(gomock.Any(), gomock.Any(), "test input", gomock.Any()).Times(1)
		m.EXPECT().OnAssistantError(gomock.Any(), gomock.Any(), "test input", gomock.Any(), gomock.Any()).Times(1)
	}

	fan := callbacks.NewFanout(m1)
	fan.Add(m2)
	emit(context.Background(), fan)
}

func TestTrace(t *testing.T) {
	callbacks.TimeNowFn = func() time.Time {
		return time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC)
	}
	defer func() { callbacks.TimeNowFn = time.Now }()

	trace := callbacks.NewTrace(callbacks.ModeVerbose)

	// not started
	emit(context.Background(), trace)
	stats, out := trace.EndRun(context.Background())
	assert.Nil(t, stats)
	assert.Nil(t, out)

	ctx := chatmodel.WithChatContext(context.Background(), chatmodel.NewChatContext("chat-1", nil))
	ctx = trace.StartRun(ctx)
	assert.Equal(t, "chat-1", chatmodel.GetChatID(ctx))

	emit(ctx, trace)
	stats, out = trace.EndRun(ctx)
	require.NotNil(t, stats)

	assert.Equal(t, "chat-1", stats.ChatID)
	assert.Equal(t, uint32(1), stats.AssistantRuns)
	assert.Equal(t, uint32(1), stats.AssistantRunsFailed)
	assert.Equal(t, uint32(1), stats.LLMCalls)
	assert.Equal(t, uint32(1), stats.TotalMessages)
	assert.Equal(t, uint64(12), stats.LLMInputTokens)
	assert.Equal(t, uint64(8), stats.LLMOutputTokens)
	assert.Equal(t, uint64(len("lat 10, lon 20")), stats.LLMBytesIn)
	assert.Equal(t, uint32(1), stats.ToolCalls)
	assert.Equal(t, uint32(1), stats.ToolCallsSucceeded)
	assert.Equal(t, uint32(1), stats.ToolCallsFailed)
	assert.Equal(t, uint32(1), stats.ToolCallsNotFound)
	assert.Equal(t, uint64(len("test output")), stats.ToolResultBytes)
	assert.Equal(t, "other", stats.FinalState)

	trace2 := string(out)
	assert.Contains(t, trace2, "2023-11-14 22:13:20 chat-1 *** Run Started ***\n")
	assert.Contains(t, trace2, "chat-1 iss *** LLM Call *** gpt-4o model, 1 messages\n")
	assert.Contains(t, trace2, "chat-1 iss get_position *** Tool Start *** call_1\n")
	assert.Contains(t, trace2, "chat-1 iss get_position Output: test output\n")
	assert.Contains(t, trace2, "chat-1 iss *** Tool Not Found *** get_weather\n")
	assert.Contains(t, trace2, "  - ToolCall: call_1 (get_position), input: {}\n")
	assert.Contains(t, trace2, "Tool calls: 1, Failed: 1, Not Found: 1, Result Bytes: 11\n")
	assert.Contains(t, trace2, "*** Run Ended. Duration: ")

	// the run is removed after EndRun
	stats, _ = trace.EndRun(ctx)
	assert.Nil(t, stats)

	// StartRun adds a chat context when missing
	ctx = trace.StartRun(context.Background())
	assert.NotEmpty(t, chatmodel.GetChatID(ctx))
}
