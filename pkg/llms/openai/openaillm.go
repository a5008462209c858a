package openai

import (
	"context"

	"github.com/effective-security/issmcp/pkg/llms"
	"github.com/effective-security/issmcp/pkg/llms/openai/internal/openaiclient"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/issmcp/pkg/llms", "openai")

// transcriptAdapter translates the provider neutral transcript to one wire shape
// and the model reply back. An LLM holds exactly one adapter.
type transcriptAdapter interface {
	style() APIStyle
	generate(ctx context.Context, messages []llms.Message, opts *llms.CallOptions) (*llms.ContentResponse, error)
}

// LLM is an OpenAI chat model
type LLM struct {
	provider llms.ProviderType
	model    string
	adapter  transcriptAdapter
}

var _ llms.Model = (*LLM)(nil)

// New returns a new OpenAI LLM.
func New(opts ...Option) (*LLM, error) {
	o, c, err := newClient(opts...)
	if err != nil {
		return nil, err
	}

	llm := &LLM{
		provider: o.provider,
		model:    c.Model,
	}
	switch o.style {
	case APIStyleResponses:
		llm.adapter = &responsesAdapter{client: c}
	default:
		llm.adapter = &chatAdapter{
			client:        c,
			developerRole: o.provider.Supports(llms.CapabilityDeveloperRole),
		}
	}
	return llm, nil
}

// GetProviderType implements the Model interface.
func (o *LLM) GetProviderType() llms.ProviderType {
	return o.provider
}

// GetName implements the Model interface.
func (o *LLM) GetName() string {
	return o.model
}

// APIStyle returns the transcript style chosen at construction
func (o *LLM) APIStyle() APIStyle {
	return o.adapter.style()
}

// GenerateContent implements the Model interface.
func (o *LLM) GenerateContent(ctx context.Context, messages []llms.Message, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.NewCallOptions(options...)
	if !o.provider.Supports(llms.CapabilityParallelToolCallsControl) {
		opts.ParallelToolCalls = nil
	}

	resp, err := o.adapter.generate(ctx, messages, opts)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	logger.ContextKV(ctx, xlog.DEBUG,
		"style", o.adapter.style(),
		"choices", len(resp.Choices),
		"stop_reason", resp.Choices[0].StopReason,
		"tool_calls", len(resp.Choices[0].ToolCalls),
	)
	return resp, nil
}

// toolChoiceMode returns "none", "auto" or "required" for string like choices,
// and the function name for a specific tool
func toolChoiceMode(choice any) (mode string, function string) {
	switch v := choice.(type) {
	case nil:
		return "", ""
	case string:
		return v, ""
	case llms.FunctionCallBehavior:
		return string(v), ""
	case llms.ToolChoice:
		if v.Function != nil {
			return "", v.Function.Name
		}
		return v.Type, ""
	case *llms.ToolChoice:
		if v == nil {
			return "", ""
		}
		return toolChoiceMode(*v)
	}
	return "", ""
}

func generationInfo(prompt, completion, total, reasoning int64) map[string]any {
	return map[string]any{
		"PromptTokens":     prompt,
		"CompletionTokens": completion,
		"TotalTokens":      total,
		"ReasoningTokens":  reasoning,
	}
}

func toolCallsFromWire(calls []openaiclient.ToolCall) []llms.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	res := make([]llms.ToolCall, 0, len(calls))
	for _, tc := range calls {
		res = append(res, llms.ToolCall{
			ID:   tc.ID,
			Type: string(tc.Type),
			FunctionCall: &llms.FunctionCall{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		})
	}
	return res
}
