package localtransport

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/issmcp/mcp/transport"
)

// McpProxyRequest is a single JSON-RPC message posted to the Handler
type McpProxyRequest struct {
	Body    []byte            `json:"body"`
	Headers map[string]string `json:"headers"`
}

// McpProxyResponse is the Handler reply.
// Body is empty for accepted notifications.
type McpProxyResponse struct {
	Type    transport.BaseMessageType `json:"type"`
	Status  int                       `json:"status"`
	Body    []byte                    `json:"body"`
	Headers map[string]string         `json:"headers"`
}

// Handler is an interface for handling MCP requests in the same process
type Handler interface {
	HandleMCP(ctx context.Context, req *McpProxyRequest) (*McpProxyResponse, error)
}

var _ transport.Transport = (*LocalMcpClientTransport)(nil)

// LocalMcpClientTransport implements a client-side transport that calls the Handler directly
type LocalMcpClientTransport struct {
	messageHandler func(ctx context.Context, message *transport.BaseJsonRpcMessage)
	errorHandler   func(error)
	closeHandler   func()
	mu             sync.RWMutex
	handler        Handler
	headers        map[string]string
	closeOnce      sync.Once
}

// NewLocalClientTransport creates a new client transport bound to the handler
func NewLocalClientTransport(handler Handler) *LocalMcpClientTransport {
	return &LocalMcpClientTransport{
		handler: handler,
		headers: make(map[string]string),
	}
}

// WithHeader adds a header to the request
func (t *LocalMcpClientTransport) WithHeader(key, value string) *LocalMcpClientTransport {
	t.headers[key] = value
	return t
}

// Start implements Transport.Start
func (t *LocalMcpClientTransport) Start(ctx context.Context) error {
	// nothing to start, every Send is a synchronous call
	return nil
}

// Send implements Transport.Send
func (t *LocalMcpClientTransport) Send(ctx context.Context, message *transport.BaseJsonRpcMessage) error {
	jsonData, err := json.Marshal(message)
	if err != nil {
		return errors.Wrap(err, "failed to marshal message")
	}

	resp, err := t.handler.HandleMCP(ctx, &McpProxyRequest{
		Body:    jsonData,
		Headers: t.headers,
	})
	if err != nil {
		return err
	}

	if resp.Status != http.StatusOK && resp.Status != http.StatusAccepted {
		return errors.Errorf("server returned error: %d", resp.Status)
	}

	if len(resp.Body) == 0 {
		return nil
	}

	msg, err := transport.ParseMessage(resp.Body)
	if err != nil {
		return errors.WithMessage(err, "received invalid response")
	}

	t.mu.RLock()
	handler := t.messageHandler
	t.mu.RUnlock()

	if handler != nil {
		handler(ctx, msg)
	}
	return nil
}

// Close implements Transport.Close
func (t *LocalMcpClientTransport) Close() error {
	t.closeOnce.Do(func() {
		t.mu.RLock()
		handler := t.closeHandler
		t.mu.RUnlock()
		if handler != nil {
			handler()
		}
	})
	return nil
}

// SetCloseHandler implements Transport.SetCloseHandler
func (t *LocalMcpClientTransport) SetCloseHandler(handler func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closeHandler = handler
}

// SetErrorHandler implements Transport.SetErrorHandler
func (t *LocalMcpClientTransport) SetErrorHandler(handler func(error)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.errorHandler = handler
}

// SetMessageHandler implements Transport.SetMessageHandler
func (t *LocalMcpClientTransport) SetMessageHandler(handler func(ctx context.Context, message *transport.BaseJsonRpcMessage)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messageHandler = handler
}
