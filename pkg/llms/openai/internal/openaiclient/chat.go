package openaiclient

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/invopop/jsonschema"
)

// ChatRequest is a request to complete a chat completion.
type ChatRequest struct {
	Model               string         `json:"model"`
	Messages            []*ChatMessage `json:"messages"`
	Temperature         float64        `json:"temperature,omitempty"`
	MaxCompletionTokens int            `json:"max_completion_tokens,omitempty"`
	Seed                int            `json:"seed,omitempty"`

	Tools             []Tool `json:"tools,omitempty"`
	ToolChoice        any    `json:"tool_choice,omitempty"`
	ParallelToolCalls *bool  `json:"parallel_tool_calls,omitempty"`

	Metadata map[string]any `json:"metadata,omitempty"`
}

// ChatMessage is a message in a chat request.
type ChatMessage struct {
	// Role is one of system, developer, user, assistant or tool
	Role string `json:"role"`
	// Content is the text of the message.
	// Assistant messages with tool calls may have null content.
	Content *string `json:"content"`
	// Name is an optional participant name
	Name string `json:"name,omitempty"`

	// ToolCalls are set on assistant messages that requested tools
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	// ToolCallID is set on tool messages, it correlates the result with ToolCalls
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// Tool is a tool to use in a chat request.
type Tool struct {
	Type     ToolType           `json:"type"`
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition is a definition of a function that can be called by the model.
type FunctionDefinition struct {
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Parameters  *jsonschema.Schema `json:"parameters,omitempty"`
	Strict      bool               `json:"strict,omitempty"`
}

// ToolChoice forces a specific function
type ToolChoice struct {
	Type     ToolType         `json:"type"`
	Function ToolFunctionName `json:"function"`
}

// ToolFunctionName names a function in ToolChoice
type ToolFunctionName struct {
	Name string `json:"name"`
}

// ToolCall is a call to a tool.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     ToolType     `json:"type"`
	Function ToolFunction `json:"function"`
}

// ToolFunction is a function to be called in a tool choice.
type ToolFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ChatCompletionChoice is a choice in a chat response.
type ChatCompletionChoice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

// ChatUsage is the token usage of a chat completion
type ChatUsage struct {
	PromptTokens            int `json:"prompt_tokens"`
	CompletionTokens        int `json:"completion_tokens"`
	TotalTokens             int `json:"total_tokens"`
	CompletionTokensDetails struct {
		ReasoningTokens int `json:"reasoning_tokens"`
	} `json:"completion_tokens_details"`
}

// ChatCompletionResponse is a response to a chat request.
type ChatCompletionResponse struct {
	ID                string                  `json:"id,omitempty"`
	Created           int64                   `json:"created,omitempty"`
	Choices           []*ChatCompletionChoice `json:"choices,omitempty"`
	Model             string                  `json:"model,omitempty"`
	Object            string                  `json:"object,omitempty"`
	Usage             ChatUsage               `json:"usage"`
	SystemFingerprint string                  `json:"system_fingerprint"`
}

// CreateChat creates chat request.
func (c *Client) CreateChat(ctx context.Context, r *ChatRequest) (*ChatCompletionResponse, error) {
	if r.Model == "" {
		r.Model = c.Model
	}

	var resp ChatCompletionResponse
	if err := c.post(ctx, "/chat/completions", r.Model, r, &resp); err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}
	for _, choice := range resp.Choices {
		if choice == nil {
			return nil, errors.WithMessage(ErrEmptyResponse, "null choice")
		}
	}
	return &resp, nil
}
