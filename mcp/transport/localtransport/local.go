// Package localtransport connects an MCP client and server running in the
// same process, without pipes or sockets.
package localtransport

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/issmcp/mcp/transport"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/issmcp/mcp/transport", "localtransport")

// ErrClosed is returned for messages handled after Close
var ErrClosed = errors.New("local transport is closed")

var _ transport.Transport = (*Transport)(nil)

// Transport is the server side of the local transport.
// Every incoming request is given a unique key so that concurrent
// callers with the same request ID get their own response.
type Transport struct {
	messageHandler func(ctx context.Context, message *transport.BaseJsonRpcMessage)
	errorHandler   func(error)
	closeHandler   func()
	mu             sync.RWMutex
	responseMap    map[transport.RequestId]chan *transport.BaseJsonRpcMessage
	atomicCounter  int64
	closed         chan struct{}
	closeOnce      sync.Once
}

// New returns the server side transport
func New() *Transport {
	return &Transport{
		responseMap: make(map[transport.RequestId]chan *transport.BaseJsonRpcMessage),
		closed:      make(chan struct{}),
	}
}

// Start implements Transport.Start
func (s *Transport) Start(ctx context.Context) error {
	// messages are pushed by HandleMessage
	return nil
}

// Close closes the connection.
func (s *Transport) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.mu.RLock()
		handler := s.closeHandler
		s.mu.RUnlock()
		if handler != nil {
			handler()
		}
	})
	return nil
}

// SetErrorHandler implements Transport.SetErrorHandler
func (s *Transport) SetErrorHandler(handler func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errorHandler = handler
}

// SetCloseHandler implements Transport.SetCloseHandler
func (s *Transport) SetCloseHandler(handler func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeHandler = handler
}

// SetMessageHandler implements Transport.SetMessageHandler
func (s *Transport) SetMessageHandler(handler func(ctx context.Context, message *transport.BaseJsonRpcMessage)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messageHandler = handler
}

// Send delivers a response to the waiting HandleMessage call.
// Server initiated notifications have no receiver and are dropped.
func (s *Transport) Send(ctx context.Context, message *transport.BaseJsonRpcMessage) error {
	key, ok := message.MessageID()
	if !ok {
		logger.KV(xlog.DEBUG, "status", "dropped", "method", message.JsonRpcNotification.Method)
		return nil
	}

	s.mu.RLock()
	responseChannel := s.responseMap[key]
	s.mu.RUnlock()

	if responseChannel == nil {
		return errors.Errorf("no response channel found for key: %d", key)
	}
	select {
	case responseChannel <- message:
	default:
		return errors.Errorf("duplicate response for key: %d", key)
	}
	return nil
}

// HandleMessage dispatches a message to the server and, for requests,
// waits for the response.
// Notifications return nil response.
func (s *Transport) HandleMessage(ctx context.Context, body []byte) (*transport.BaseJsonRpcMessage, error) {
	select {
	case <-s.closed:
		return nil, ErrClosed
	default:
	}

	msg, err := transport.ParseMessage(body)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	handler := s.messageHandler
	s.mu.RUnlock()
	if handler == nil {
		return nil, errors.New("message handler is not set")
	}

	if msg.Type != transport.BaseMessageTypeJSONRPCRequestType {
		handler(ctx, msg)
		return nil, nil
	}

	prevID := msg.JsonRpcRequest.Id
	key := transport.RequestId(atomic.AddInt64(&s.atomicCounter, 1))
	ch := make(chan *transport.BaseJsonRpcMessage, 1)

	s.mu.Lock()
	s.responseMap[key] = ch
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.responseMap, key)
		s.mu.Unlock()
	}()

	msg.JsonRpcRequest.Id = key
	handler(ctx, msg)

	select {
	case resp := <-ch:
		resp.SetMessageID(prevID)
		return resp, nil
	case <-ctx.Done():
		return nil, errors.WithStack(ctx.Err())
	case <-s.closed:
		return nil, ErrClosed
	}
}

type serverHandler struct {
	t *Transport
}

// NewHandler returns a Handler serving messages through the transport,
// to be used with NewLocalClientTransport
func NewHandler(t *Transport) Handler {
	return &serverHandler{t: t}
}

func (h *serverHandler) HandleMCP(ctx context.Context, req *McpProxyRequest) (*McpProxyResponse, error) {
	resp, err := h.t.HandleMessage(ctx, req.Body)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return &McpProxyResponse{
			Type:   transport.BaseMessageTypeJSONRPCNotificationType,
			Status: http.StatusAccepted,
		}, nil
	}

	bs, err := json.Marshal(resp)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal response")
	}
	return &McpProxyResponse{
		Type:   resp.Type,
		Status: http.StatusOK,
		Body:   bs,
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
	}, nil
}
