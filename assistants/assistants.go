package assistants

import (
	"context"

	"github.com/effective-security/issmcp/mcp"
	"github.com/effective-security/issmcp/pkg/llms"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/issmcp", "assistants")

//go:generate mockgen -destination=../mocks/mockllms/llms_mock.gen.go -package mockllms github.com/effective-security/issmcp/pkg/llms Model
//go:generate mockgen -source=assistants.go -destination=../mocks/mockassistants/assistants_mock.gen.go -package mockassistants

// ToolCaller invokes the tools on the MCP server, implemented by mcp.Client
type ToolCaller interface {
	CallTool(ctx context.Context, name string, arguments any) (*mcp.ToolResponse, error)
}

var _ ToolCaller = (*mcp.Client)(nil)

// IAssistant is the conversation loop
type IAssistant interface {
	// Name returns the name of the Assistant.
	Name() string
	// Run answers the query, calling the tools requested by the model.
	Run(ctx context.Context, query string) (*Result, error)
}

// Callback receives the events of a run
type Callback interface {
	OnAssistantStart(ctx context.Context, assistant IAssistant, input string)
	OnAssistantEnd(ctx context.Context, assistant IAssistant, input string, res *Result)
	OnAssistantError(ctx context.Context, assistant IAssistant, input string, err error, messages []llms.Message)

	OnAssistantLLMCallStart(ctx context.Context, assistant IAssistant, llm llms.Model, payload []llms.Message)
	OnAssistantLLMCallEnd(ctx context.Context, assistant IAssistant, llm llms.Model, resp *llms.ContentResponse)

	OnToolStart(ctx context.Context, assistant IAssistant, call llms.ToolCall)
	OnToolEnd(ctx context.Context, assistant IAssistant, call llms.ToolCall, output string)
	OnToolError(ctx context.Context, assistant IAssistant, call llms.ToolCall, err error)
	OnToolNotFound(ctx context.Context, assistant IAssistant, call llms.ToolCall)
}
