// Package testingutils provides transport doubles for MCP tests
package testingutils

import (
	"context"
	"sync"

	"github.com/effective-security/issmcp/mcp/transport"
)

// MockTransport records sent messages and lets tests inject incoming ones
type MockTransport struct {
	mu             sync.RWMutex
	messageHandler func(ctx context.Context, message *transport.BaseJsonRpcMessage)
	errorHandler   func(error)
	closeHandler   func()
	messages       []*transport.BaseJsonRpcMessage
	started        bool
	closed         bool
}

// NewMockTransport returns a MockTransport
func NewMockTransport() *MockTransport {
	return &MockTransport{}
}

// Start implements Transport.Start
func (t *MockTransport) Start(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.started = true
	return nil
}

// Send records the message
func (t *MockTransport) Send(_ context.Context, message *transport.BaseJsonRpcMessage) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = append(t.messages, message)
	return nil
}

// Close implements Transport.Close
func (t *MockTransport) Close() error {
	t.mu.Lock()
	t.closed = true
	handler := t.closeHandler
	t.mu.Unlock()
	if handler != nil {
		handler()
	}
	return nil
}

// SetCloseHandler implements Transport.SetCloseHandler
func (t *MockTransport) SetCloseHandler(handler func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closeHandler = handler
}

// SetErrorHandler implements Transport.SetErrorHandler
func (t *MockTransport) SetErrorHandler(handler func(error)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.errorHandler = handler
}

// SetMessageHandler implements Transport.SetMessageHandler
func (t *MockTransport) SetMessageHandler(handler func(ctx context.Context, message *transport.BaseJsonRpcMessage)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messageHandler = handler
}

// Receive delivers a message as if it came from the peer
func (t *MockTransport) Receive(ctx context.Context, message *transport.BaseJsonRpcMessage) {
	t.mu.RLock()
	handler := t.messageHandler
	t.mu.RUnlock()
	if handler != nil {
		handler(ctx, message)
	}
}

// GetMessages returns a copy of the sent messages
func (t *MockTransport) GetMessages() []*transport.BaseJsonRpcMessage {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]*transport.BaseJsonRpcMessage(nil), t.messages...)
}

// IsStarted returns true after Start
func (t *MockTransport) IsStarted() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.started
}

// IsClosed returns true after Close
func (t *MockTransport) IsClosed() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.closed
}
