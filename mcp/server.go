// Package mcp implements the tool subset of the Model Context Protocol:
// a Server exposing tools registered as typed Go functions, and a Client
// discovering and calling them over a transport.Transport.
package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"reflect"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/issmcp/mcp/internal/protocol"
	"github.com/effective-security/issmcp/mcp/transport"
	"github.com/effective-security/issmcp/pkg/schema"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/issmcp", "mcp")

var (
	contextType      = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType        = reflect.TypeOf((*error)(nil)).Elem()
	toolResponseType = reflect.TypeOf(&ToolResponse{})
)

// ServerOption configures the Server
type ServerOption func(*Server)

// WithServerInfo specifies the name and version reported on initialize
func WithServerInfo(name, version string) ServerOption {
	return func(s *Server) {
		s.info = Implementation{Name: name, Version: version}
	}
}

// WithInstructions specifies the instructions reported on initialize
func WithInstructions(instructions string) ServerOption {
	return func(s *Server) {
		s.instructions = instructions
	}
}

// WithPaginationLimit limits the number of tools returned per tools/list page
func WithPaginationLimit(limit int) ServerOption {
	return func(s *Server) {
		s.paginationLimit = &limit
	}
}

// Server serves registered tools over a transport
type Server struct {
	transport       transport.Transport
	protocol        *protocol.Protocol
	info            Implementation
	instructions    string
	paginationLimit *int

	mu        sync.RWMutex
	tools     map[string]*tool
	isRunning bool
	done      chan struct{}
	doneOnce  sync.Once
}

type toolHandler func(ctx context.Context, arguments json.RawMessage) (*toolResponseSent, error)

type tool struct {
	Name        string
	Description string
	InputSchema json.RawMessage
	Handler     toolHandler
}

// toolResponseSent is the result of a tool handler,
// an Error is reported to the caller as a tool response with isError set
type toolResponseSent struct {
	Response *ToolResponse
	Error    error
}

// MarshalJSON implements json.Marshaler
func (t toolResponseSent) MarshalJSON() ([]byte, error) {
	if t.Error != nil {
		res := NewToolResponse(NewTextContent(t.Error.Error()))
		res.IsError = true
		return json.Marshal(res)
	}
	if t.Response == nil {
		return json.Marshal(NewToolResponse())
	}
	return json.Marshal(t.Response)
}

// NewServer returns a server bound to the transport
func NewServer(t transport.Transport, opts ...ServerOption) *Server {
	s := &Server{
		transport: t,
		protocol:  protocol.NewProtocol(),
		info:      Implementation{Name: "issmcp", Version: "1.0.0"},
		tools:     make(map[string]*tool),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterTool registers a tool.
// The handler must be a function with the signature
// func([context.Context,] Args) (*ToolResponse, error),
// where Args is a struct describing the arguments and their JSON schema.
func (s *Server) RegisterTool(name, description string, handler any) error {
	if name == "" {
		return errors.New("tool name is required")
	}

	argType, err := validateToolHandler(handler)
	if err != nil {
		return errors.WithMessagef(err, "invalid handler for tool %q", name)
	}

	sc, err := schema.New(argType)
	if err != nil {
		return err
	}
	inputSchema, err := json.Marshal(sc.Parameters)
	if err != nil {
		return errors.Wrap(err, "failed to marshal input schema")
	}

	s.mu.Lock()
	if _, ok := s.tools[name]; ok {
		s.mu.Unlock()
		return errors.Wrapf(ErrAlreadyRegistered, "tool %q", name)
	}
	s.tools[name] = &tool{
		Name:        name,
		Description: description,
		InputSchema: inputSchema,
		Handler:     createWrappedToolHandler(name, handler, argType),
	}
	running := s.isRunning
	s.mu.Unlock()

	logger.KV(xlog.DEBUG, "status", "registered", "tool", name)

	if running {
		s.sendToolListChangedNotification()
	}
	return nil
}

// DeregisterTool removes a tool
func (s *Server) DeregisterTool(name string) error {
	s.mu.Lock()
	_, ok := s.tools[name]
	delete(s.tools, name)
	running := s.isRunning
	s.mu.Unlock()

	if !ok {
		return errors.Wrapf(ErrUnknownTool, "tool %q", name)
	}
	if running {
		s.sendToolListChangedNotification()
	}
	return nil
}

func (s *Server) sendToolListChangedNotification() {
	if err := s.protocol.Notification(MethodToolsListChanged, nil); err != nil {
		logger.KV(xlog.DEBUG, "status", "notification_failed", "err", err.Error())
	}
}

// Serve starts serving the requests received on the transport
func (s *Server) Serve() error {
	return s.ServeContext(context.Background())
}

// ServeContext starts serving the requests received on the transport,
// ctx is passed to the tool handlers.
func (s *Server) ServeContext(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return errors.New("server is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	pr := s.protocol
	pr.OnClose = func() {
		s.doneOnce.Do(func() {
			close(s.done)
		})
	}
	pr.OnError = func(err error) {
		logger.KV(xlog.DEBUG, "err", err.Error())
	}
	pr.SetRequestHandler(MethodInitialize, s.handleInitialize)
	pr.SetRequestHandler(MethodPing, s.handlePing)
	pr.SetRequestHandler(MethodToolsList, s.handleListTools)
	pr.SetRequestHandler(MethodToolsCall, s.handleToolCalls)

	return pr.Connect(ctx, s.transport)
}

// Done is closed when the transport is closed
func (s *Server) Done() <-chan struct{} {
	return s.done
}

// Close closes the transport
func (s *Server) Close() error {
	return s.protocol.Close()
}

func (s *Server) handleInitialize(_ context.Context, req *transport.BaseJSONRPCRequest, _ protocol.RequestHandlerExtra) (transport.JsonRpcBody, error) {
	var params InitializeRequest
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, protocol.NewRPCError(protocol.CodeInvalidParams, "invalid initialize params: %s", err.Error())
		}
	}

	logger.KV(xlog.INFO,
		"status", "initialize",
		"client", params.ClientInfo.Name,
		"client_version", params.ClientInfo.Version,
		"protocol", params.ProtocolVersion,
	)

	return InitializeResponse{
		ProtocolVersion: ProtocolVersion,
		Capabilities: ServerCapabilities{
			Tools: &ToolsCapability{ListChanged: true},
		},
		ServerInfo:   s.info,
		Instructions: s.instructions,
	}, nil
}

func (s *Server) handlePing(_ context.Context, _ *transport.BaseJSONRPCRequest, _ protocol.RequestHandlerExtra) (transport.JsonRpcBody, error) {
	return map[string]any{}, nil
}

func (s *Server) handleListTools(_ context.Context, req *transport.BaseJSONRPCRequest, _ protocol.RequestHandlerExtra) (transport.JsonRpcBody, error) {
	var params ListToolsRequest
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, protocol.NewRPCError(protocol.CodeInvalidParams, "invalid tools/list params: %s", err.Error())
		}
	}

	s.mu.RLock()
	tools := make([]*tool, 0, len(s.tools))
	for _, t := range s.tools {
		tools = append(tools, t)
	}
	s.mu.RUnlock()

	sort.Slice(tools, func(i, j int) bool {
		return tools[i].Name < tools[j].Name
	})

	start := 0
	if params.Cursor != nil {
		c, err := base64.StdEncoding.DecodeString(*params.Cursor)
		if err != nil {
			return nil, protocol.NewRPCError(protocol.CodeInvalidParams, "invalid cursor: %s", err.Error())
		}
		after := string(c)
		start = sort.Search(len(tools), func(i int) bool {
			return tools[i].Name > after
		})
	}

	end := len(tools)
	if s.paginationLimit != nil && *s.paginationLimit > 0 && start+*s.paginationLimit < end {
		end = start + *s.paginationLimit
	}

	res := ToolsResponse{
		Tools: make([]ToolRetType, 0, end-start),
	}
	for _, t := range tools[start:end] {
		res.Tools = append(res.Tools, ToolRetType{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		})
	}
	if end < len(tools) {
		cursor := base64.StdEncoding.EncodeToString([]byte(tools[end-1].Name))
		res.NextCursor = &cursor
	}
	return res, nil
}

func (s *Server) handleToolCalls(ctx context.Context, req *transport.BaseJSONRPCRequest, _ protocol.RequestHandlerExtra) (transport.JsonRpcBody, error) {
	var params CallToolRequest
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return nil, protocol.NewRPCError(protocol.CodeInvalidParams, "invalid tools/call params: %s", err.Error())
	}

	s.mu.RLock()
	t := s.tools[params.Name]
	s.mu.RUnlock()

	if t == nil {
		logger.ContextKV(ctx, xlog.WARNING, "status", "unknown_tool", "tool", params.Name)
		return nil, newUnknownToolError(params.Name)
	}

	logger.ContextKV(ctx, xlog.DEBUG, "status", "call", "tool", params.Name)
	return t.Handler(ctx, params.Arguments)
}

// validateToolHandler returns the arguments type of the handler
func validateToolHandler(handler any) (reflect.Type, error) {
	ht := reflect.TypeOf(handler)
	if ht == nil || ht.Kind() != reflect.Func {
		return nil, errors.New("handler must be a function")
	}

	switch ht.NumIn() {
	case 1:
	case 2:
		if ht.In(0) != contextType {
			return nil, errors.New("first argument must be context.Context")
		}
	default:
		return nil, errors.New("handler must take the arguments struct and optional context")
	}

	argType := ht.In(ht.NumIn() - 1)
	if argType.Kind() == reflect.Pointer {
		argType = argType.Elem()
	}
	if argType.Kind() != reflect.Struct {
		return nil, errors.New("arguments must be a struct")
	}

	if ht.NumOut() != 2 || ht.Out(0) != toolResponseType || ht.Out(1) != errorType {
		return nil, errors.New("handler must return (*ToolResponse, error)")
	}
	return argType, nil
}

func createWrappedToolHandler(name string, handler any, argType reflect.Type) toolHandler {
	hv := reflect.ValueOf(handler)
	ht := hv.Type()
	withContext := ht.NumIn() == 2
	argIsPointer := ht.In(ht.NumIn()-1).Kind() == reflect.Pointer

	return func(ctx context.Context, arguments json.RawMessage) (res *toolResponseSent, err error) {
		argPtr := reflect.New(argType)
		if len(arguments) > 0 && string(arguments) != "null" {
			if err := json.Unmarshal(arguments, argPtr.Interface()); err != nil {
				return nil, protocol.NewRPCError(protocol.CodeInvalidParams, "failed to unmarshal arguments: %s", err.Error())
			}
		}

		defer func() {
			if r := recover(); r != nil {
				logger.ContextKV(ctx, xlog.ERROR, "status", "panic", "tool", name, "reason", r)
				res = &toolResponseSent{Error: errors.Newf("internal error: tool %q failed", name)}
				err = nil
			}
		}()

		in := make([]reflect.Value, 0, 2)
		if withContext {
			in = append(in, reflect.ValueOf(ctx))
		}
		if argIsPointer {
			in = append(in, argPtr)
		} else {
			in = append(in, argPtr.Elem())
		}

		out := hv.Call(in)
		if e, ok := out[1].Interface().(error); ok && e != nil {
			return &toolResponseSent{Error: e}, nil
		}
		resp, _ := out[0].Interface().(*ToolResponse)
		return &toolResponseSent{Response: resp}, nil
	}
}
