package tools

import (
	"context"

	"github.com/effective-security/issmcp/mcp"
	"github.com/invopop/jsonschema"
)

//go:generate mockgen -source=tools.go -destination=../mocks/mocktools/tools_mock.gen.go -package mocktools

// McpServerRegistrator registers tool handlers, implemented by mcp.Server
type McpServerRegistrator interface {
	RegisterTool(name string, description string, handler any) error
}

var _ McpServerRegistrator = (*mcp.Server)(nil)

// ITool is a tool the model can request to invoke.
type ITool interface {
	// Name returns the name of the Tool.
	Name() string
	// Description returns the description of the tool, to be used in the prompt.
	// Should not exceed LLM model limit.
	Description() string
	// Parameters returns the JSON schema of the tool arguments.
	Parameters() *jsonschema.Schema

	// Call executes the tool with the JSON encoded input and returns the result.
	Call(context.Context, string) (string, error)
}

// Tool is a typed ITool
type Tool[I any, O any] interface {
	ITool
	Run(context.Context, *I) (*O, error)
}

// IMCPTool is an interface that extends ITool to include functionality for
// registering the tool with an MCP server.
type IMCPTool interface {
	ITool
	RegisterMCP(registrator McpServerRegistrator) error
}

// MCPTool is a typed IMCPTool
type MCPTool[I any] interface {
	IMCPTool
	RunMCP(context.Context, *I) (*mcp.ToolResponse, error)
}

// RegisterMCP registers all tools with the registrator
func RegisterMCP(registrator McpServerRegistrator, list ...IMCPTool) error {
	for _, t := range list {
		if err := t.RegisterMCP(registrator); err != nil {
			return err
		}
	}
	return nil
}
