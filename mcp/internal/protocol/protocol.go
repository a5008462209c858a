// Package protocol implements JSON-RPC request/response correlation on top
// of a transport.Transport.
//
// Outgoing requests get increasing numeric IDs and wait for the matching
// response, the caller's context, or the request timeout. When the wait is
// abandoned a notifications/cancelled message is sent to the peer.
// Incoming requests are dispatched to the registered handler on their own
// goroutine, and the handler result or error is sent back.
package protocol

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/issmcp/mcp/transport"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/issmcp/mcp/internal", "protocol")

// DefaultRequestTimeoutMsec is used when RequestOptions.Timeout is not set
const DefaultRequestTimeoutMsec = 60000

// JSON-RPC error codes
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	// CodeServerError is used for handler errors without a specific code
	CodeServerError = -32000
)

// Method names used by the protocol layer itself
const (
	MethodCancelled   = "notifications/cancelled"
	MethodInitialized = "notifications/initialized"
)

// ErrConnectionClosed is returned to pending requests when the transport closes
var ErrConnectionClosed = errors.New("connection closed")

// ErrNotConnected is returned when the protocol has no transport
var ErrNotConnected = errors.New("not connected")

// RPCError is a JSON-RPC error returned by the peer,
// or returned by a handler to control the code sent to the peer.
type RPCError struct {
	Code    int
	Message string
}

// NewRPCError returns an error with the specified code
func NewRPCError(code int, format string, args ...any) *RPCError {
	return &RPCError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// RequestOptions contains options that can be given per request
type RequestOptions struct {
	// Timeout specifies a timeout for this request.
	// If not specified, DefaultRequestTimeoutMsec will be used
	Timeout time.Duration
}

// RequestHandlerExtra contains extra data given to request handlers
type RequestHandlerExtra struct {
	// Context is cancelled when the sender cancels the request
	Context context.Context
}

// RequestHandler handles an incoming request
type RequestHandler func(context.Context, *transport.BaseJSONRPCRequest, RequestHandlerExtra) (transport.JsonRpcBody, error)

// NotificationHandler handles an incoming notification
type NotificationHandler func(notification *transport.BaseJSONRPCNotification) error

// Protocol implements request/response linking and notifications
// on top of a pluggable transport
type Protocol struct {
	transport transport.Transport

	requestMessageID transport.RequestId
	mu               sync.RWMutex
	closed           bool

	requestHandlers      map[string]RequestHandler
	requestCancellers    map[transport.RequestId]context.CancelFunc
	notificationHandlers map[string]NotificationHandler
	responseHandlers     map[transport.RequestId]chan *responseEnvelope

	// OnClose is called when the connection is closed for any reason
	OnClose func()
	// OnError is called when an out of band error occurs
	OnError func(error)
}

type responseEnvelope struct {
	response json.RawMessage
	err      error
}

// NewProtocol creates a new Protocol instance
func NewProtocol() *Protocol {
	p := &Protocol{
		requestHandlers:      make(map[string]RequestHandler),
		requestCancellers:    make(map[transport.RequestId]context.CancelFunc),
		notificationHandlers: make(map[string]NotificationHandler),
		responseHandlers:     make(map[transport.RequestId]chan *responseEnvelope),
	}

	p.SetNotificationHandler(MethodCancelled, p.handleCancelledNotification)
	p.SetNotificationHandler(MethodInitialized, func(n *transport.BaseJSONRPCNotification) error {
		logger.KV(xlog.DEBUG, "method", n.Method)
		return nil
	})

	return p
}

// Connect attaches to the given transport, starts it, and starts listening for messages.
// The context is passed to request handlers and must outlive the connection.
func (p *Protocol) Connect(ctx context.Context, tr transport.Transport) error {
	p.mu.Lock()
	p.transport = tr
	p.mu.Unlock()

	tr.SetCloseHandler(p.handleClose)
	tr.SetErrorHandler(p.handleError)
	tr.SetMessageHandler(func(ctx context.Context, message *transport.BaseJsonRpcMessage) {
		switch message.Type {
		case transport.BaseMessageTypeJSONRPCRequestType:
			p.handleRequest(ctx, message.JsonRpcRequest)
		case transport.BaseMessageTypeJSONRPCNotificationType:
			p.handleNotification(message.JsonRpcNotification)
		case transport.BaseMessageTypeJSONRPCResponseType:
			p.handleResponse(message.JsonRpcResponse.Id, &responseEnvelope{response: message.JsonRpcResponse.Result})
		case transport.BaseMessageTypeJSONRPCErrorType:
			e := message.JsonRpcError
			p.handleResponse(e.Id, &responseEnvelope{err: &RPCError{Code: e.Error.Code, Message: e.Error.Message}})
		}
	})

	return tr.Start(ctx)
}

func (p *Protocol) handleClose() {
	p.mu.Lock()
	p.closed = true
	for _, cancel := range p.requestCancellers {
		cancel()
	}
	// response channels are buffered by one and owned by Request
	for id, ch := range p.responseHandlers {
		select {
		case ch <- &responseEnvelope{err: ErrConnectionClosed}:
		default:
		}
		delete(p.responseHandlers, id)
	}
	onClose := p.OnClose
	p.mu.Unlock()

	logger.KV(xlog.DEBUG, "status", "closed")
	if onClose != nil {
		onClose()
	}
}

func (p *Protocol) handleError(err error) {
	logger.KV(xlog.DEBUG, "err", err.Error())
	if p.OnError != nil {
		p.OnError(err)
	}
}

func (p *Protocol) handleNotification(notification *transport.BaseJSONRPCNotification) {
	logger.KV(xlog.DEBUG, "method", notification.Method)

	p.mu.RLock()
	handler := p.notificationHandlers[notification.Method]
	p.mu.RUnlock()

	if handler == nil {
		return
	}

	if err := handler(notification); err != nil {
		p.handleError(errors.Wrap(err, "notification handler error"))
	}
}

func (p *Protocol) handleRequest(ctx context.Context, request *transport.BaseJSONRPCRequest) {
	logger.KV(xlog.DEBUG, "method", request.Method, "id", request.Id)

	p.mu.RLock()
	handler := p.requestHandlers[request.Method]
	p.mu.RUnlock()

	if handler == nil {
		p.sendErrorResponse(request.Id, NewRPCError(CodeMethodNotFound, "method not found: %s", request.Method))
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.requestCancellers[request.Id] = cancel
	p.mu.Unlock()

	go func() {
		defer func() {
			p.mu.Lock()
			delete(p.requestCancellers, request.Id)
			p.mu.Unlock()
			cancel()
		}()

		result, err := handler(ctx, request, RequestHandlerExtra{Context: ctx})
		if err != nil {
			logger.KV(xlog.DEBUG, "method", request.Method, "id", request.Id, "err", err.Error())
			p.sendErrorResponse(request.Id, err)
			return
		}

		jsonResult, err := json.Marshal(result)
		if err != nil {
			p.sendErrorResponse(request.Id, errors.Wrap(err, "failed to marshal result"))
			return
		}
		response := &transport.BaseJSONRPCResponse{
			Jsonrpc: transport.JSONRPCVersion,
			Id:      request.Id,
			Result:  jsonResult,
		}

		if err := p.send(context.WithoutCancel(ctx), transport.NewBaseMessageResponse(response)); err != nil {
			p.handleError(errors.Wrap(err, "failed to send response"))
		}
	}()
}

func (p *Protocol) handleCancelledNotification(notification *transport.BaseJSONRPCNotification) error {
	var params struct {
		RequestId transport.RequestId `json:"requestId"`
		Reason    string              `json:"reason"`
	}

	if err := json.Unmarshal(notification.Params, &params); err != nil {
		return errors.Wrap(err, "failed to unmarshal cancelled params")
	}

	p.mu.RLock()
	cancel := p.requestCancellers[params.RequestId]
	p.mu.RUnlock()

	if cancel != nil {
		logger.KV(xlog.DEBUG, "status", "cancelled", "id", params.RequestId, "reason", params.Reason)
		cancel()
	}

	return nil
}

func (p *Protocol) handleResponse(id transport.RequestId, envelope *responseEnvelope) {
	p.mu.RLock()
	ch := p.responseHandlers[id]
	p.mu.RUnlock()

	if ch == nil {
		logger.KV(xlog.DEBUG, "status", "unexpected_response", "id", id)
		return
	}
	select {
	case ch <- envelope:
	default:
	}
}

// Close closes the connection
func (p *Protocol) Close() error {
	p.mu.RLock()
	tr := p.transport
	p.mu.RUnlock()
	if tr != nil {
		return tr.Close()
	}
	return nil
}

// Request sends a request and waits for a response
func (p *Protocol) Request(ctx context.Context, method string, params any, opts *RequestOptions) (json.RawMessage, error) {
	timeout := time.Duration(DefaultRequestTimeoutMsec) * time.Millisecond
	if opts != nil && opts.Timeout > 0 {
		timeout = opts.Timeout
	}

	var marshalledParams json.RawMessage
	if params != nil {
		bs, err := json.Marshal(params)
		if err != nil {
			return nil, errors.Wrap(err, "failed to marshal params")
		}
		marshalledParams = bs
	}

	p.mu.Lock()
	if p.transport == nil {
		p.mu.Unlock()
		return nil, ErrNotConnected
	}
	if p.closed {
		p.mu.Unlock()
		return nil, ErrConnectionClosed
	}
	p.requestMessageID++
	id := p.requestMessageID
	ch := make(chan *responseEnvelope, 1)
	p.responseHandlers[id] = ch
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		delete(p.responseHandlers, id)
		p.mu.Unlock()
	}()

	request := &transport.BaseJSONRPCRequest{
		Jsonrpc: transport.JSONRPCVersion,
		Method:  method,
		Params:  marshalledParams,
		Id:      id,
	}

	if err := p.send(ctx, transport.NewBaseMessageRequest(request)); err != nil {
		return nil, errors.Wrap(err, "failed to send request")
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case envelope := <-ch:
		if envelope.err != nil {
			return nil, envelope.err
		}
		return envelope.response, nil
	case <-ctx.Done():
		p.sendCancelNotification(id, ctx.Err().Error())
		return nil, errors.WithStack(ctx.Err())
	case <-timer.C:
		p.sendCancelNotification(id, "request timeout")
		return nil, errors.Errorf("request timeout after %v", timeout)
	}
}

func (p *Protocol) sendCancelNotification(requestID transport.RequestId, reason string) {
	err := p.Notification(MethodCancelled, map[string]any{
		"requestId": requestID,
		"reason":    reason,
	})
	if err != nil {
		p.handleError(errors.Wrap(err, "failed to send cancel notification"))
	}
}

func (p *Protocol) sendErrorResponse(requestID transport.RequestId, err error) {
	inner := transport.BaseJSONRPCErrorInner{
		Code:    CodeServerError,
		Message: err.Error(),
	}
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		inner.Code = rpcErr.Code
		inner.Message = rpcErr.Message
	}

	response := &transport.BaseJSONRPCError{
		Jsonrpc: transport.JSONRPCVersion,
		Id:      requestID,
		Error:   inner,
	}
	if err := p.send(context.Background(), transport.NewBaseMessageError(response)); err != nil {
		p.handleError(errors.Wrap(err, "failed to send error response"))
	}
}

// Notification emits a one-way message that does not expect a response
func (p *Protocol) Notification(method string, params any) error {
	notification := &transport.BaseJSONRPCNotification{
		Jsonrpc: transport.JSONRPCVersion,
		Method:  method,
	}
	if params != nil {
		marshalled, err := json.Marshal(params)
		if err != nil {
			return errors.Wrap(err, "failed to marshal notification params")
		}
		notification.Params = marshalled
	}

	return p.send(context.Background(), transport.NewBaseMessageNotification(notification))
}

func (p *Protocol) send(ctx context.Context, msg *transport.BaseJsonRpcMessage) error {
	p.mu.RLock()
	tr := p.transport
	p.mu.RUnlock()
	if tr == nil {
		return ErrNotConnected
	}
	return tr.Send(ctx, msg)
}

// SetRequestHandler registers a handler to invoke when this protocol object receives a request with the given method
func (p *Protocol) SetRequestHandler(method string, handler RequestHandler) {
	p.mu.Lock()
	p.requestHandlers[method] = handler
	p.mu.Unlock()
}

// RemoveRequestHandler removes the request handler for the given method
func (p *Protocol) RemoveRequestHandler(method string) {
	p.mu.Lock()
	delete(p.requestHandlers, method)
	p.mu.Unlock()
}

// SetNotificationHandler registers a handler to invoke when this protocol object receives a notification with the given method
func (p *Protocol) SetNotificationHandler(method string, handler NotificationHandler) {
	p.mu.Lock()
	p.notificationHandlers[method] = handler
	p.mu.Unlock()
}
