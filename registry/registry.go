// Package registry converts the tools advertised by the MCP server
// into the function descriptors sent to the model.
package registry

import (
	"context"
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/issmcp/chatmodel"
	"github.com/effective-security/issmcp/mcp"
	"github.com/effective-security/issmcp/pkg/llms"
	"github.com/effective-security/issmcp/pkg/schema"
	"github.com/effective-security/xlog"
	"github.com/invopop/jsonschema"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/issmcp", "registry")

//go:generate mockgen -source=registry.go -destination=../mocks/mockregistry/registry_mock.gen.go -package mockregistry

// Lister lists all tools of the server, implemented by mcp.Client
type Lister interface {
	ListAllTools(ctx context.Context) ([]mcp.ToolRetType, error)
}

var _ Lister = (*mcp.Client)(nil)

// Option configures the conversion
type Option func(*options)

type options struct {
	omitEmptySchema bool
	strict          bool
}

// WithOmitEmptySchema declares that tools without parameters
// are described to the model without a parameter schema.
// By default such tools get an empty object schema.
func WithOmitEmptySchema() Option {
	return func(o *options) {
		o.omitEmptySchema = true
	}
}

// WithStrict marks the function descriptors as strict
func WithStrict() Option {
	return func(o *options) {
		o.strict = true
	}
}

// Registry is the immutable set of tool descriptors of a session
type Registry struct {
	tools  []llms.Tool
	names  []string
	byName map[string]int
}

// Discover lists the tools of the server and returns the registry.
// A listing failure is marked as chatmodel.ErrTransport.
func Discover(ctx context.Context, lister Lister, opts ...Option) (*Registry, error) {
	list, err := lister.ListAllTools(ctx)
	if err != nil {
		return nil, chatmodel.MarkTransport(err, "failed to discover tools")
	}
	r, err := New(list, opts...)
	if err != nil {
		return nil, err
	}

	logger.ContextKV(ctx, xlog.DEBUG,
		"status", "discovered",
		"tools", r.names,
	)
	return r, nil
}

// New returns the registry of the advertised tools,
// one descriptor per tool in the server order.
// Duplicate names fail with chatmodel.ErrDuplicateToolName,
// empty names and invalid schemas with chatmodel.ErrProtocolViolation.
func New(list []mcp.ToolRetType, opts ...Option) (*Registry, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	r := &Registry{
		tools:  make([]llms.Tool, 0, len(list)),
		names:  make([]string, 0, len(list)),
		byName: make(map[string]int, len(list)),
	}
	for _, t := range list {
		if t.Name == "" {
			return nil, chatmodel.ProtocolViolationf("tool with empty name")
		}
		if _, ok := r.byName[t.Name]; ok {
			return nil, errors.Wrapf(chatmodel.ErrDuplicateToolName, "tool %q", t.Name)
		}

		params, err := parameters(t, &o)
		if err != nil {
			return nil, err
		}

		r.byName[t.Name] = len(r.tools)
		r.names = append(r.names, t.Name)
		r.tools = append(r.tools, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
				Strict:      o.strict,
			},
		})
	}
	return r, nil
}

func parameters(t mcp.ToolRetType, o *options) (*jsonschema.Schema, error) {
	params := schema.EmptyObject()
	if len(t.InputSchema) > 0 && string(t.InputSchema) != "null" {
		s, err := schema.FromAny(t.InputSchema)
		if err != nil {
			return nil, chatmodel.ProtocolViolationf("tool %q: invalid input schema: %s", t.Name, err.Error())
		}
		if s.Type == "" {
			s.Type = "object"
		}
		params = s
	}

	if schema.IsEmptyObject(params) {
		if o.omitEmptySchema {
			logger.KV(xlog.DEBUG, "status", "schema_omitted", "tool", t.Name)
			return nil, nil
		}
		if params.Properties == nil {
			params.Properties = schema.EmptyObject().Properties
		}
	}
	return params, nil
}

// Tools returns the descriptors, in the server order
func (r *Registry) Tools() []llms.Tool {
	return slices.Clone(r.tools)
}

// Names returns the tool names, in the server order
func (r *Registry) Names() []string {
	return slices.Clone(r.names)
}

// Len returns the number of tools
func (r *Registry) Len() int {
	return len(r.tools)
}

// Lookup returns the descriptor by the exact name
func (r *Registry) Lookup(name string) (llms.Tool, bool) {
	idx, ok := r.byName[name]
	if !ok {
		return llms.Tool{}, false
	}
	return r.tools[idx], true
}
