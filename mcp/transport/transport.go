// Package transport defines the JSON-RPC 2.0 message envelope shared by the
// MCP client and server, and the Transport contract that moves those
// messages between the two sides.
package transport

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
)

// JSONRPCVersion is the only protocol version accepted on the wire.
const JSONRPCVersion = "2.0"

// RequestId is a JSON-RPC request identifier.
// Only numeric identifiers are produced and accepted.
type RequestId int64

// JsonRpcBody is a result returned by a request handler, marshaled as the response result.
type JsonRpcBody any

// BaseJSONRPCRequest is a request that expects a response.
type BaseJSONRPCRequest struct {
	Jsonrpc string          `json:"jsonrpc"`
	Id      RequestId       `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// BaseJSONRPCNotification is a one-way message.
type BaseJSONRPCNotification struct {
	Jsonrpc string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// BaseJSONRPCResponse is a successful result for a request.
type BaseJSONRPCResponse struct {
	Jsonrpc string          `json:"jsonrpc"`
	Id      RequestId       `json:"id"`
	Result  json.RawMessage `json:"result"`
}

// BaseJSONRPCErrorInner is the error object of a failed request.
type BaseJSONRPCErrorInner struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// BaseJSONRPCError is a failed result for a request.
type BaseJSONRPCError struct {
	Jsonrpc string                `json:"jsonrpc"`
	Id      RequestId             `json:"id"`
	Error   BaseJSONRPCErrorInner `json:"error"`
}

// BaseMessageType discriminates the BaseJsonRpcMessage union
type BaseMessageType string

// BaseMessageType values
const (
	BaseMessageTypeJSONRPCRequestType      BaseMessageType = "request"
	BaseMessageTypeJSONRPCNotificationType BaseMessageType = "notification"
	BaseMessageTypeJSONRPCResponseType     BaseMessageType = "response"
	BaseMessageTypeJSONRPCErrorType        BaseMessageType = "error"
)

// BaseJsonRpcMessage holds exactly one of the JSON-RPC message kinds,
// selected by Type.
type BaseJsonRpcMessage struct {
	Type                BaseMessageType
	JsonRpcRequest      *BaseJSONRPCRequest
	JsonRpcNotification *BaseJSONRPCNotification
	JsonRpcResponse     *BaseJSONRPCResponse
	JsonRpcError        *BaseJSONRPCError
}

// MarshalJSON writes the wire form of the selected message kind
func (m *BaseJsonRpcMessage) MarshalJSON() ([]byte, error) {
	switch m.Type {
	case BaseMessageTypeJSONRPCRequestType:
		return json.Marshal(m.JsonRpcRequest)
	case BaseMessageTypeJSONRPCNotificationType:
		return json.Marshal(m.JsonRpcNotification)
	case BaseMessageTypeJSONRPCResponseType:
		return json.Marshal(m.JsonRpcResponse)
	case BaseMessageTypeJSONRPCErrorType:
		return json.Marshal(m.JsonRpcError)
	default:
		return nil, errors.Newf("unknown message type: %q", m.Type)
	}
}

// MessageID returns the request ID the message carries or correlates to.
// Notifications have no ID.
func (m *BaseJsonRpcMessage) MessageID() (RequestId, bool) {
	switch {
	case m.Type == BaseMessageTypeJSONRPCRequestType && m.JsonRpcRequest != nil:
		return m.JsonRpcRequest.Id, true
	case m.Type == BaseMessageTypeJSONRPCResponseType && m.JsonRpcResponse != nil:
		return m.JsonRpcResponse.Id, true
	case m.Type == BaseMessageTypeJSONRPCErrorType && m.JsonRpcError != nil:
		return m.JsonRpcError.Id, true
	}
	return 0, false
}

// SetMessageID replaces the ID of a request, response or error message.
func (m *BaseJsonRpcMessage) SetMessageID(id RequestId) {
	switch m.Type {
	case BaseMessageTypeJSONRPCRequestType:
		m.JsonRpcRequest.Id = id
	case BaseMessageTypeJSONRPCResponseType:
		m.JsonRpcResponse.Id = id
	case BaseMessageTypeJSONRPCErrorType:
		m.JsonRpcError.Id = id
	}
}

// NewBaseMessageRequest wraps a request
func NewBaseMessageRequest(request *BaseJSONRPCRequest) *BaseJsonRpcMessage {
	return &BaseJsonRpcMessage{
		Type:           BaseMessageTypeJSONRPCRequestType,
		JsonRpcRequest: request,
	}
}

// NewBaseMessageNotification wraps a notification
func NewBaseMessageNotification(notification *BaseJSONRPCNotification) *BaseJsonRpcMessage {
	return &BaseJsonRpcMessage{
		Type:                BaseMessageTypeJSONRPCNotificationType,
		JsonRpcNotification: notification,
	}
}

// NewBaseMessageResponse wraps a response
func NewBaseMessageResponse(response *BaseJSONRPCResponse) *BaseJsonRpcMessage {
	return &BaseJsonRpcMessage{
		Type:            BaseMessageTypeJSONRPCResponseType,
		JsonRpcResponse: response,
	}
}

// NewBaseMessageError wraps an error response
func NewBaseMessageError(response *BaseJSONRPCError) *BaseJsonRpcMessage {
	return &BaseJsonRpcMessage{
		Type:         BaseMessageTypeJSONRPCErrorType,
		JsonRpcError: response,
	}
}

// envelope captures the members that decide the message kind
type envelope struct {
	Jsonrpc string           `json:"jsonrpc"`
	Id      *json.RawMessage `json:"id"`
	Method  *string          `json:"method"`
	Result  json.RawMessage  `json:"result"`
	Error   *json.RawMessage `json:"error"`
}

// ParseMessage decodes a single JSON-RPC message.
func ParseMessage(body []byte) (*BaseJsonRpcMessage, error) {
	var p envelope
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, errors.Wrap(err, "invalid JSON-RPC message")
	}
	if p.Jsonrpc != JSONRPCVersion {
		return nil, errors.Newf("unsupported JSON-RPC version: %q", p.Jsonrpc)
	}

	switch {
	case p.Method != nil && p.Id != nil:
		var req BaseJSONRPCRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, errors.Wrap(err, "invalid JSON-RPC request")
		}
		return NewBaseMessageRequest(&req), nil
	case p.Method != nil:
		var n BaseJSONRPCNotification
		if err := json.Unmarshal(body, &n); err != nil {
			return nil, errors.Wrap(err, "invalid JSON-RPC notification")
		}
		return NewBaseMessageNotification(&n), nil
	case p.Error != nil:
		var e BaseJSONRPCError
		if err := json.Unmarshal(body, &e); err != nil {
			return nil, errors.Wrap(err, "invalid JSON-RPC error")
		}
		return NewBaseMessageError(&e), nil
	case p.Id != nil:
		var r BaseJSONRPCResponse
		if err := json.Unmarshal(body, &r); err != nil {
			return nil, errors.Wrap(err, "invalid JSON-RPC response")
		}
		return NewBaseMessageResponse(&r), nil
	}
	return nil, errors.New("message is not a request, notification or response")
}

// Transport moves JSON-RPC messages between two peers.
// Handlers must be set before Start is called.
type Transport interface {
	// Start begins delivering incoming messages to the message handler
	Start(ctx context.Context) error
	// Send sends a JSON-RPC message (request, notification or response).
	Send(ctx context.Context, message *BaseJsonRpcMessage) error
	// Close closes the connection and invokes the close handler once.
	Close() error
	// SetCloseHandler sets the callback for when the connection is closed for any reason.
	SetCloseHandler(handler func())
	// SetErrorHandler sets the callback for out of band errors, not necessarily fatal.
	SetErrorHandler(handler func(error))
	// SetMessageHandler sets the callback for every incoming message.
	SetMessageHandler(handler func(ctx context.Context, message *BaseJsonRpcMessage))
}
