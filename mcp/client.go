package mcp

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/issmcp/mcp/internal/protocol"
	"github.com/effective-security/issmcp/mcp/transport"
	"github.com/effective-security/xlog"
)

// maxListPages bounds ListAllTools against a server returning cursors forever
const maxListPages = 100

// ClientOption configures the Client
type ClientOption func(*Client)

// WithClientInfo specifies the name and version sent on initialize
func WithClientInfo(name, version string) ClientOption {
	return func(c *Client) {
		c.info = Implementation{Name: name, Version: version}
	}
}

// WithRequestTimeout specifies the timeout of each request
func WithRequestTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// Client is an MCP client bound to a transport
type Client struct {
	transport transport.Transport
	protocol  *protocol.Protocol
	info      Implementation
	timeout   time.Duration

	mu           sync.RWMutex
	initialized  bool
	capabilities *ServerCapabilities
	serverInfo   *Implementation
	listChanged  func()
}

// NewClient returns a client, Initialize must be called before use
func NewClient(t transport.Transport, opts ...ClientOption) *Client {
	c := &Client{
		transport: t,
		protocol:  protocol.NewProtocol(),
		info:      Implementation{Name: "issmcp", Version: "1.0.0"},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnToolsListChanged sets the callback invoked when the server
// reports that its tool list changed
func (c *Client) OnToolsListChanged(handler func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listChanged = handler
}

// Initialize connects the transport and performs the initialize handshake
func (c *Client) Initialize(ctx context.Context) (*InitializeResponse, error) {
	c.protocol.OnError = func(err error) {
		logger.KV(xlog.DEBUG, "status", "transport_error", "err", err.Error())
	}
	c.protocol.SetNotificationHandler(MethodToolsListChanged, func(*transport.BaseJSONRPCNotification) error {
		c.mu.RLock()
		handler := c.listChanged
		c.mu.RUnlock()
		if handler != nil {
			handler()
		}
		return nil
	})

	// the connection outlives the handshake context
	if err := c.protocol.Connect(context.WithoutCancel(ctx), c.transport); err != nil {
		return nil, errors.WithMessage(err, "failed to connect transport")
	}

	raw, err := c.protocol.Request(ctx, MethodInitialize, InitializeRequest{
		ProtocolVersion: ProtocolVersion,
		ClientInfo:      c.info,
	}, c.requestOptions())
	if err != nil {
		return nil, errors.WithMessage(err, "failed to initialize")
	}

	var res InitializeResponse
	if err = json.Unmarshal(raw, &res); err != nil {
		return nil, errors.Wrap(err, "invalid initialize response")
	}

	if err = c.protocol.Notification(MethodInitialized, nil); err != nil {
		return nil, errors.WithMessage(err, "failed to send initialized notification")
	}

	c.mu.Lock()
	c.initialized = true
	c.capabilities = &res.Capabilities
	c.serverInfo = &res.ServerInfo
	c.mu.Unlock()

	logger.ContextKV(ctx, xlog.DEBUG,
		"status", "initialized",
		"server", res.ServerInfo.Name,
		"server_version", res.ServerInfo.Version,
		"protocol", res.ProtocolVersion,
	)

	return &res, nil
}

// ServerInfo returns the server implementation, available after Initialize
func (c *Client) ServerInfo() *Implementation {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverInfo
}

// ServerCapabilities returns the server capabilities, available after Initialize
func (c *Client) ServerCapabilities() *ServerCapabilities {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.capabilities
}

func (c *Client) requestOptions() *protocol.RequestOptions {
	return &protocol.RequestOptions{Timeout: c.timeout}
}

func (c *Client) request(ctx context.Context, method string, params any, result any) error {
	c.mu.RLock()
	initialized := c.initialized
	c.mu.RUnlock()
	if !initialized {
		return ErrNotInitialized
	}

	raw, err := c.protocol.Request(ctx, method, params, c.requestOptions())
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}
	if err = json.Unmarshal(raw, result); err != nil {
		return errors.Wrapf(err, "invalid %s response", method)
	}
	return nil
}

// ListTools returns a page of tools, cursor is nil for the first page
func (c *Client) ListTools(ctx context.Context, cursor *string) (*ToolsResponse, error) {
	var res ToolsResponse
	if err := c.request(ctx, MethodToolsList, ListToolsRequest{Cursor: cursor}, &res); err != nil {
		return nil, errors.WithMessage(err, "failed to list tools")
	}
	return &res, nil
}

// ListAllTools returns all tools, following the pagination cursor
func (c *Client) ListAllTools(ctx context.Context) ([]ToolRetType, error) {
	var all []ToolRetType
	var cursor *string
	for range maxListPages {
		res, err := c.ListTools(ctx, cursor)
		if err != nil {
			return nil, err
		}
		all = append(all, res.Tools...)
		if res.NextCursor == nil || *res.NextCursor == "" {
			return all, nil
		}
		cursor = res.NextCursor
	}
	return nil, errors.Newf("tools/list did not complete after %d pages", maxListPages)
}

// CallTool invokes the tool with the arguments,
// which are marshaled to JSON unless already json.RawMessage.
// An unknown tool is reported as ErrUnknownTool.
func (c *Client) CallTool(ctx context.Context, name string, arguments any) (*ToolResponse, error) {
	params := CallToolRequest{Name: name}
	switch a := arguments.(type) {
	case nil:
	case json.RawMessage:
		params.Arguments = a
	default:
		bs, err := json.Marshal(arguments)
		if err != nil {
			return nil, errors.Wrap(err, "failed to marshal arguments")
		}
		params.Arguments = bs
	}

	var res ToolResponse
	if err := c.request(ctx, MethodToolsCall, params, &res); err != nil {
		if isUnknownToolError(err) {
			return nil, errors.Mark(errors.WithMessagef(err, "tool %q", name), ErrUnknownTool)
		}
		return nil, errors.WithMessagef(err, "failed to call tool %q", name)
	}
	return &res, nil
}

// Ping checks that the server is responsive
func (c *Client) Ping(ctx context.Context) error {
	return c.request(ctx, MethodPing, nil, nil)
}

// Close closes the transport
func (c *Client) Close() error {
	return c.protocol.Close()
}
