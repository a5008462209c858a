package openai

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/issmcp/pkg/llms"
	"github.com/effective-security/issmcp/pkg/llms/openai/internal/openaiclient"
	"github.com/effective-security/x/values"
)

// Chat completions roles
const (
	RoleSystem    = "system"
	RoleDeveloper = "developer"
	RoleAssistant = "assistant"
	RoleUser      = "user"
	RoleTool      = "tool"
)

// chatAdapter sends the transcript as role tagged chat messages.
// Tool results are tool role messages carrying tool_call_id.
type chatAdapter struct {
	client        *openaiclient.Client
	developerRole bool
}

func (a *chatAdapter) style() APIStyle {
	return APIStyleChatCompletions
}

func (a *chatAdapter) generate(ctx context.Context, messages []llms.Message, opts *llms.CallOptions) (*llms.ContentResponse, error) {
	chatMsgs, err := a.toChatMessages(messages)
	if err != nil {
		return nil, err
	}

	req := &openaiclient.ChatRequest{
		Model:               opts.Model,
		Messages:            chatMsgs,
		Temperature:         opts.Temperature,
		MaxCompletionTokens: opts.MaxTokens,
		Seed:                opts.Seed,
		Metadata:            opts.Metadata,
	}
	for _, tool := range opts.Tools {
		t, err := toolFromTool(tool)
		if err != nil {
			return nil, errors.WithMessage(err, "failed to convert llms tool to openai tool")
		}
		req.Tools = append(req.Tools, t)
	}
	if len(req.Tools) > 0 {
		// parallel_tool_calls is rejected by the API without tools
		req.ParallelToolCalls = opts.ParallelToolCalls
		mode, fn := toolChoiceMode(opts.ToolChoice)
		switch {
		case fn != "":
			req.ToolChoice = openaiclient.ToolChoice{
				Type:     openaiclient.ToolTypeFunction,
				Function: openaiclient.ToolFunctionName{Name: fn},
			}
		case mode != "":
			req.ToolChoice = mode
		}
	}

	result, err := a.client.CreateChat(ctx, req)
	if err != nil {
		return nil, err
	}

	choices := make([]*llms.ContentChoice, 0, len(result.Choices))
	for _, c := range result.Choices {
		choice := &llms.ContentChoice{
			StopReason: c.FinishReason,
			GenerationInfo: generationInfo(
				int64(result.Usage.PromptTokens),
				int64(result.Usage.CompletionTokens),
				int64(result.Usage.TotalTokens),
				int64(result.Usage.CompletionTokensDetails.ReasoningTokens),
			),
			ToolCalls: toolCallsFromWire(c.Message.ToolCalls),
		}
		if c.Message.Content != nil {
			choice.Content = *c.Message.Content
		}
		choices = append(choices, choice)
	}
	return &llms.ContentResponse{Choices: choices}, nil
}

func (a *chatAdapter) toChatMessages(messages []llms.Message) ([]*openaiclient.ChatMessage, error) {
	res := make([]*openaiclient.ChatMessage, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case llms.RoleSystem, llms.RoleDeveloper:
			role := RoleSystem
			if a.developerRole && m.Role == llms.RoleDeveloper {
				role = RoleDeveloper
			}
			msg, err := textMessage(role, m)
			if err != nil {
				return nil, err
			}
			res = append(res, msg)
		case llms.RoleHuman:
			msg, err := textMessage(RoleUser, m)
			if err != nil {
				return nil, err
			}
			res = append(res, msg)
		case llms.RoleAI:
			msg := &openaiclient.ChatMessage{Role: RoleAssistant}
			var text string
			for _, p := range m.Parts {
				switch part := p.(type) {
				case llms.TextContent:
					text += part.Text
				case llms.ToolCall:
					if part.FunctionCall == nil {
						return nil, errors.Newf("tool call %s has no function", part.ID)
					}
					msg.ToolCalls = append(msg.ToolCalls, openaiclient.ToolCall{
						ID:   part.ID,
						Type: openaiclient.ToolType(values.StringsCoalesce(part.Type, string(openaiclient.ToolTypeFunction))),
						Function: openaiclient.ToolFunction{
							Name:      part.FunctionCall.Name,
							Arguments: part.FunctionCall.Arguments,
						},
					})
				default:
					return nil, errors.Newf("unsupported part %T for role %s", p, m.Role)
				}
			}
			if text != "" || len(msg.ToolCalls) == 0 {
				msg.Content = &text
			}
			res = append(res, msg)
		case llms.RoleTool:
			// one tool message per result, each correlated by call id
			for _, p := range m.Parts {
				part, ok := p.(llms.ToolCallResponse)
				if !ok {
					return nil, errors.Newf("expected part of type ToolCallResponse for role %s, got %T", m.Role, p)
				}
				content := part.Content
				res = append(res, &openaiclient.ChatMessage{
					Role:       RoleTool,
					Content:    &content,
					ToolCallID: part.ToolCallID,
				})
			}
		default:
			return nil, errors.Wrapf(llms.ErrUnexpectedRole, "role %s", m.Role)
		}
	}
	return res, nil
}

func textMessage(role string, m llms.Message) (*openaiclient.ChatMessage, error) {
	var text string
	for _, p := range m.Parts {
		tc, ok := p.(llms.TextContent)
		if !ok {
			return nil, errors.Newf("unsupported part %T for role %s", p, m.Role)
		}
		text += tc.Text
	}
	return &openaiclient.ChatMessage{Role: role, Content: &text}, nil
}

// toolFromTool converts an llms.Tool to a Tool.
func toolFromTool(t llms.Tool) (openaiclient.Tool, error) {
	if t.Type != string(openaiclient.ToolTypeFunction) || t.Function == nil {
		return openaiclient.Tool{}, errors.Newf("tool type %v not supported", t.Type)
	}
	return openaiclient.Tool{
		Type: openaiclient.ToolTypeFunction,
		Function: openaiclient.FunctionDefinition{
			Name:        t.Function.Name,
			Description: t.Function.Description,
			Parameters:  t.Function.Parameters,
			Strict:      t.Function.Strict,
		},
	}, nil
}
