package assistants

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/issmcp/chatmodel"
	"github.com/effective-security/issmcp/mcp"
	"github.com/effective-security/issmcp/pkg/llms"
	"github.com/effective-security/issmcp/pkg/llmutils"
	"github.com/effective-security/issmcp/pkg/metricskey"
	"github.com/effective-security/issmcp/registry"
	"github.com/effective-security/x/slices"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
	"github.com/tidwall/gjson"
)

const (
	// DefaultName is the name of the Assistant
	DefaultName = "iss"
	// MaxToolRounds is the number of tool round trips allowed in one run.
	// The model submission that follows the last round does not offer tools.
	MaxToolRounds = 1
)

// Result of a run
type Result struct {
	// Answer is the text of the final model response
	Answer string `json:"answer,omitempty" yaml:"answer,omitempty"`
	// State is the state the loop stopped in, StateDone on success
	State State `json:"state" yaml:"state"`
	// Submissions is the number of model submissions
	Submissions int `json:"submissions" yaml:"submissions"`
	// ToolCalls are the tool calls sent to the server, in order
	ToolCalls []llms.ToolCall `json:"tool_calls,omitempty" yaml:"tool_calls,omitempty"`
	// Transcript is the conversation, including the final answer
	Transcript []llms.Message `json:"transcript" yaml:"transcript"`
}

// Assistant runs the conversation loop against the model
// and the tools of the MCP server.
type Assistant struct {
	llm      llms.Model
	caller   ToolCaller
	registry *registry.Registry
	cfg      *Config
}

var _ IAssistant = (*Assistant)(nil)

// New returns the Assistant.
// The registry may be nil, in which case no tools are offered to the model.
func New(llm llms.Model, caller ToolCaller, reg *registry.Registry, opts ...Option) *Assistant {
	if reg == nil {
		reg, _ = registry.New(nil)
	}
	return &Assistant{
		llm:      llm,
		caller:   caller,
		registry: reg,
		cfg:      NewConfig(opts...),
	}
}

// Name returns the name of the Assistant.
func (a *Assistant) Name() string {
	return a.cfg.Name
}

// Registry returns the tool registry
func (a *Assistant) Registry() *registry.Registry {
	return a.registry
}

// Run answers the query.
// On error the returned Result holds the state and the transcript up to the failure.
func (a *Assistant) Run(ctx context.Context, query string) (*Result, error) {
	started := time.Now()
	defer metricskey.PerfAssistantRun.MeasureSince(started, a.Name())

	ctx, chatCtx := chatmodel.EnsureChatContext(ctx)

	callback := a.cfg.CallbackHandler
	if callback != nil {
		callback.OnAssistantStart(ctx, a, query)
	}

	res := &Result{State: StateAwaitingModel}
	err := a.run(ctx, query, res)
	if err != nil {
		metricskey.StatsAssistantRunsFailed.IncrCounter(1, a.Name(), chatmodel.Reason(err))
		logger.ContextKV(ctx, xlog.ERROR,
			"assistant", a.Name(),
			"chat_id", chatCtx.GetChatID(),
			"state", res.State,
			"reason", chatmodel.Reason(err),
			"err", err.Error(),
		)
		if callback != nil {
			callback.OnAssistantError(ctx, a, query, err, res.Transcript)
		}
		return res, err
	}

	metricskey.StatsAssistantRunsSucceeded.IncrCounter(1, a.Name())
	logger.ContextKV(ctx, xlog.DEBUG,
		"assistant", a.Name(),
		"chat_id", chatCtx.GetChatID(),
		"status", "done",
		"submissions", res.Submissions,
		"tool_calls", len(res.ToolCalls),
		"answer", slices.StringUpto(res.Answer, 64),
	)
	if callback != nil {
		callback.OnAssistantEnd(ctx, a, query, res)
	}
	return res, nil
}

func (a *Assistant) run(ctx context.Context, query string, res *Result) error {
	if strings.TrimSpace(query) == "" {
		return errors.Newf("assistant %s: query is required", a.Name())
	}

	tools := a.registry.Tools()
	if len(tools) > 0 && !a.llm.GetProviderType().Supports(llms.CapabilityFunctionCalling) {
		return errors.Newf("assistant %s: the LLM does not support function calling", a.Name())
	}

	res.Transcript = a.initialMessages(query)

	var pending llms.ToolCall
	rounds := 0
	for res.State != StateDone {
		switch res.State {
		case StateAwaitingModel:
			offerTools := rounds < MaxToolRounds
			choice, err := a.generate(ctx, res.Transcript, tools, offerTools)
			if err != nil {
				return err
			}
			res.Submissions++

			call, ok, err := a.requestedToolCall(ctx, choice)
			if err != nil {
				return err
			}
			if !ok {
				res.Answer = choice.Content
				res.Transcript = append(res.Transcript, llms.MessageFromTextParts(llms.RoleAI, choice.Content))
				res.State = StateDone
				continue
			}
			if !offerTools {
				return chatmodel.ProtocolViolationf("assistant %s: tool %q requested after %d tool round(s)",
					a.Name(), call.Name(), MaxToolRounds)
			}

			res.Transcript = append(res.Transcript, toolCallMessage(choice.Content, call))
			pending = call
			res.State = StateAwaitingTool

		case StateAwaitingTool:
			res.ToolCalls = append(res.ToolCalls, pending)
			msg, err := a.callTool(ctx, pending)
			if err != nil {
				return err
			}
			res.Transcript = append(res.Transcript, msg)
			rounds++
			res.State = StateAwaitingModel

		default:
			return errors.Newf("assistant %s: unexpected state %s", a.Name(), res.State)
		}
	}
	return nil
}

// toolCallMessage keeps the text the model sent along with the tool call
func toolCallMessage(text string, call llms.ToolCall) llms.Message {
	msg := llms.MessageFromToolCalls(llms.RoleAI, call)
	if text != "" {
		msg.Parts = append([]llms.ContentPart{llms.TextContent{Text: text}}, msg.Parts...)
	}
	return msg
}

func (a *Assistant) initialMessages(query string) []llms.Message {
	if a.cfg.Instructions == "" {
		return []llms.Message{
			llms.MessageFromTextParts(llms.RoleDeveloper, query),
		}
	}
	return []llms.Message{
		llms.MessageFromTextParts(llms.RoleDeveloper, a.cfg.Instructions),
		llms.MessageFromTextParts(llms.RoleHuman, query),
	}
}

func (a *Assistant) callOptions(tools []llms.Tool, offerTools bool) []llms.CallOption {
	var opts []llms.CallOption
	if a.cfg.Model != "" {
		opts = append(opts, llms.WithModel(a.cfg.Model))
	}
	if a.cfg.Temperature > 0 {
		opts = append(opts, llms.WithTemperature(a.cfg.Temperature))
	}
	if len(tools) == 0 {
		return opts
	}

	opts = append(opts, llms.WithTools(tools))
	if !offerTools {
		return append(opts, llms.WithToolChoice(llms.FunctionCallBehaviorNone))
	}
	opts = append(opts, llms.WithToolChoice(llms.FunctionCallBehaviorAuto))
	if a.llm.GetProviderType().Supports(llms.CapabilityParallelToolCallsControl) {
		opts = append(opts, llms.WithParallelToolCalls(false))
	}
	return opts
}

// generate submits the transcript and returns the first choice
func (a *Assistant) generate(ctx context.Context, messages []llms.Message, tools []llms.Tool, offerTools bool) (*llms.ContentChoice, error) {
	assistantName := a.Name()
	modelName := values.StringsCoalesce(a.cfg.Model, a.llm.GetName())
	callback := a.cfg.CallbackHandler

	if callback != nil {
		callback.OnAssistantLLMCallStart(ctx, a, a.llm, messages)
	}

	bytesSent := llmutils.CountMessagesContentSize(messages)
	metricskey.StatsLLMMessagesSent.IncrCounter(float64(len(messages)), assistantName, modelName)
	metricskey.StatsLLMBytesSent.IncrCounter(float64(bytesSent), assistantName, modelName)

	resp, err := a.llm.GenerateContent(ctx, messages, a.callOptions(tools, offerTools)...)
	if err != nil {
		return nil, chatmodel.MarkModelUnavailable(err, "failed to generate content from LLM")
	}

	if callback != nil {
		callback.OnAssistantLLMCallEnd(ctx, a, a.llm, resp)
	}

	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return nil, errors.Mark(
			errors.Newf("assistant %s: LLM returned empty response with no choices", assistantName),
			chatmodel.ErrModelUnavailable)
	}

	metricskey.StatsLLMBytesReceived.IncrCounter(float64(llmutils.CountResponseContentSize(resp)), assistantName, modelName)
	tokensIn, tokensOut, _ := llmutils.CountTokens(resp)
	metricskey.StatsLLMInputTokens.IncrCounter(float64(tokensIn), assistantName, modelName)
	metricskey.StatsLLMOutputTokens.IncrCounter(float64(tokensOut), assistantName, modelName)

	if len(resp.Choices) > 1 {
		logger.ContextKV(ctx, xlog.WARNING,
			"assistant", assistantName,
			"status", "multiple_choices",
			"choices_count", len(resp.Choices),
		)
	}

	choice := resp.Choices[0]
	logger.ContextKV(ctx, xlog.DEBUG,
		"assistant", assistantName,
		"status", "response_analysis",
		"stop_reason", choice.StopReason,
		"tool_calls", len(choice.ToolCalls),
		"tools_offered", offerTools && len(tools) > 0,
	)
	return choice, nil
}

// requestedToolCall returns the tool call requested in the choice, if any.
// The call must be unique, carry an ID and name a registered tool.
func (a *Assistant) requestedToolCall(ctx context.Context, choice *llms.ContentChoice) (llms.ToolCall, bool, error) {
	switch len(choice.ToolCalls) {
	case 0:
		if choice.StopReason == llms.StopReasonToolCalls {
			return llms.ToolCall{}, false, chatmodel.ProtocolViolationf("assistant %s: stop reason %q without tool calls",
				a.Name(), choice.StopReason)
		}
		return llms.ToolCall{}, false, nil
	case 1:
	default:
		return llms.ToolCall{}, false, chatmodel.ProtocolViolationf("assistant %s: %d tool calls requested, only one is supported",
			a.Name(), len(choice.ToolCalls))
	}

	call := choice.ToolCalls[0]
	name := call.Name()
	if name == "" {
		return llms.ToolCall{}, false, chatmodel.ProtocolViolationf("assistant %s: tool call %q without function name",
			a.Name(), call.ID)
	}
	if call.ID == "" {
		return llms.ToolCall{}, false, chatmodel.ProtocolViolationf("assistant %s: tool call %q without call id",
			a.Name(), name)
	}

	if _, ok := a.registry.Lookup(name); !ok {
		metricskey.StatsToolCallsNotFound.IncrCounter(1, name)
		if a.cfg.CallbackHandler != nil {
			a.cfg.CallbackHandler.OnToolNotFound(ctx, a, call)
		}
		available := strings.Join(a.registry.Names(), ", ")
		logger.ContextKV(ctx, xlog.WARNING,
			"assistant", a.Name(),
			"status", "tool_not_found",
			"tool_name", name,
			"available_tools", available,
		)
		return llms.ToolCall{}, false, chatmodel.ProtocolViolationf("assistant %s: unknown tool %q, available tools: [%s]",
			a.Name(), name, available)
	}

	args := strings.TrimSpace(call.FunctionCall.Arguments)
	if args != "" && !gjson.Valid(args) {
		return llms.ToolCall{}, false, chatmodel.ProtocolViolationf("assistant %s: tool %q called with malformed arguments: %s",
			a.Name(), name, slices.StringUpto(args, 64))
	}

	call.Type = values.StringsCoalesce(call.Type, "function")
	logger.ContextKV(ctx, xlog.DEBUG,
		"assistant", a.Name(),
		"status", "tool_call_found",
		"tool_call_id", call.ID,
		"tool_call_name", name,
	)
	return call, true, nil
}

// callTool runs the tool on the server and returns the tool message
// correlated to the call.
func (a *Assistant) callTool(ctx context.Context, call llms.ToolCall) (llms.Message, error) {
	name := call.Name()
	callback := a.cfg.CallbackHandler

	var args any
	if raw := strings.TrimSpace(call.FunctionCall.Arguments); raw != "" {
		args = json.RawMessage(raw)
	}

	if callback != nil {
		callback.OnToolStart(ctx, a, call)
	}

	started := time.Now()
	resp, err := a.caller.CallTool(ctx, name, args)
	metricskey.PerfToolCall.MeasureSince(started, name)
	if err != nil {
		metricskey.StatsToolCallsFailed.IncrCounter(1, name)
		if callback != nil {
			callback.OnToolError(ctx, a, call, err)
		}
		if errors.Is(err, mcp.ErrUnknownTool) {
			return llms.Message{}, errors.Mark(err, chatmodel.ErrProtocolViolation)
		}
		return llms.Message{}, chatmodel.MarkTransport(err, "assistant "+a.Name())
	}

	var content string
	if resp != nil {
		content = resp.Text()
		if resp.IsError {
			metricskey.StatsToolCallsFailed.IncrCounter(1, name)
			logger.ContextKV(ctx, xlog.WARNING,
				"assistant", a.Name(),
				"status", "tool_call_failed",
				"tool", name,
				"result", slices.StringUpto(content, 64),
			)
		} else {
			metricskey.StatsToolCallsSucceeded.IncrCounter(1, name)
		}
	}

	if callback != nil {
		callback.OnToolEnd(ctx, a, call, content)
	}

	return llms.MessageFromToolResponse(llms.RoleTool, llms.ToolCallResponse{
		ToolCallID: call.ID,
		Name:       name,
		Content:    content,
	}), nil
}
