package protocol

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/issmcp/mcp/internal/testingutils"
	"github.com/effective-security/issmcp/mcp/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// waitSent waits for n messages to be sent
func waitSent(t *testing.T, tr *testingutils.MockTransport, n int) []*transport.BaseJsonRpcMessage {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(tr.GetMessages()) >= n
	}, 5*time.Second, time.Millisecond)
	return tr.GetMessages()
}

func TestRequest_Response(t *testing.T) {
	t.Parallel()

	tr := testingutils.NewMockTransport()
	p := NewProtocol()

	_, err := p.Request(context.Background(), "ping", nil, nil)
	assert.ErrorIs(t, err, ErrNotConnected)

	require.NoError(t, p.Connect(context.Background(), tr))

	type result struct {
		raw json.RawMessage
		err error
	}
	done := make(chan result, 1)
	go func() {
		raw, err := p.Request(context.Background(), "tools/list", map[string]any{"cursor": "x"}, nil)
		done <- result{raw, err}
	}()

	msgs := waitSent(t, tr, 1)
	req := msgs[0].JsonRpcRequest
	require.NotNil(t, req)
	assert.Equal(t, transport.RequestId(1), req.Id)
	assert.Equal(t, "tools/list", req.Method)
	assert.JSONEq(t, `{"cursor":"x"}`, string(req.Params))

	tr.Receive(context.Background(), transport.NewBaseMessageResponse(&transport.BaseJSONRPCResponse{
		Jsonrpc: transport.JSONRPCVersion,
		Id:      req.Id,
		Result:  json.RawMessage(`{"tools":[]}`),
	}))

	res := <-done
	require.NoError(t, res.err)
	assert.JSONEq(t, `{"tools":[]}`, string(res.raw))

	// error response
	go func() {
		raw, err := p.Request(context.Background(), "tools/call", nil, nil)
		done <- result{raw, err}
	}()
	msgs = waitSent(t, tr, 2)
	req = msgs[1].JsonRpcRequest
	assert.Equal(t, transport.RequestId(2), req.Id)
	assert.Empty(t, req.Params)

	tr.Receive(context.Background(), transport.NewBaseMessageError(&transport.BaseJSONRPCError{
		Jsonrpc: transport.JSONRPCVersion,
		Id:      req.Id,
		Error:   transport.BaseJSONRPCErrorInner{Code: CodeInvalidParams, Message: "bad"},
	}))
	res = <-done
	require.Error(t, res.err)
	var rpcErr *RPCError
	require.True(t, errors.As(res.err, &rpcErr))
	assert.Equal(t, CodeInvalidParams, rpcErr.Code)
	assert.Equal(t, "RPC error -32602: bad", res.err.Error())
}

func TestRequest_TimeoutAndCancel(t *testing.T) {
	t.Parallel()

	tr := testingutils.NewMockTransport()
	p := NewProtocol()
	require.NoError(t, p.Connect(context.Background(), tr))

	_, err := p.Request(context.Background(), "ping", nil, &RequestOptions{Timeout: 10 * time.Millisecond})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "request timeout")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Request(ctx, "ping", nil, nil)
	assert.ErrorIs(t, err, context.Canceled)

	msgs := tr.GetMessages()
	require.Len(t, msgs, 4)
	assert.Equal(t, MethodCancelled, msgs[1].JsonRpcNotification.Method)
	assert.JSONEq(t, `{"requestId":1,"reason":"request timeout"}`, string(msgs[1].JsonRpcNotification.Params))
	assert.Equal(t, MethodCancelled, msgs[3].JsonRpcNotification.Method)
}

func TestRequest_ConnectionClosed(t *testing.T) {
	t.Parallel()

	tr := testingutils.NewMockTransport()
	p := NewProtocol()
	closed := make(chan struct{})
	p.OnClose = func() { close(closed) }
	require.NoError(t, p.Connect(context.Background(), tr))

	done := make(chan error, 1)
	go func() {
		_, err := p.Request(context.Background(), "ping", nil, nil)
		done <- err
	}()
	waitSent(t, tr, 1)

	require.NoError(t, p.Close())
	<-closed
	assert.ErrorIs(t, <-done, ErrConnectionClosed)

	_, err := p.Request(context.Background(), "ping", nil, nil)
	assert.ErrorIs(t, err, ErrConnectionClosed)
}

func TestHandleRequest(t *testing.T) {
	t.Parallel()

	tr := testingutils.NewMockTransport()
	p := NewProtocol()
	p.SetRequestHandler("echo", func(_ context.Context, req *transport.BaseJSONRPCRequest, _ RequestHandlerExtra) (transport.JsonRpcBody, error) {
		return req.Params, nil
	})
	p.SetRequestHandler("fail", func(context.Context, *transport.BaseJSONRPCRequest, RequestHandlerExtra) (transport.JsonRpcBody, error) {
		return nil, errors.New("boom")
	})
	p.SetRequestHandler("invalid", func(context.Context, *transport.BaseJSONRPCRequest, RequestHandlerExtra) (transport.JsonRpcBody, error) {
		return nil, NewRPCError(CodeInvalidParams, "bad %s", "args")
	})
	blocked := make(chan struct{})
	p.SetRequestHandler("block", func(ctx context.Context, _ *transport.BaseJSONRPCRequest, _ RequestHandlerExtra) (transport.JsonRpcBody, error) {
		<-ctx.Done()
		close(blocked)
		return nil, ctx.Err()
	})
	require.NoError(t, p.Connect(context.Background(), tr))

	ctx := context.Background()
	send := func(id transport.RequestId, method string) {
		tr.Receive(ctx, transport.NewBaseMessageRequest(&transport.BaseJSONRPCRequest{
			Jsonrpc: transport.JSONRPCVersion,
			Id:      id,
			Method:  method,
			Params:  json.RawMessage(`{"a":1}`),
		}))
	}

	send(1, "echo")
	msgs := waitSent(t, tr, 1)
	assert.Equal(t, transport.RequestId(1), msgs[0].JsonRpcResponse.Id)
	assert.JSONEq(t, `{"a":1}`, string(msgs[0].JsonRpcResponse.Result))

	send(2, "fail")
	msgs = waitSent(t, tr, 2)
	assert.Equal(t, CodeServerError, msgs[1].JsonRpcError.Error.Code)
	assert.Equal(t, "boom", msgs[1].JsonRpcError.Error.Message)

	send(3, "invalid")
	msgs = waitSent(t, tr, 3)
	assert.Equal(t, CodeInvalidParams, msgs[2].JsonRpcError.Error.Code)
	assert.Equal(t, "bad args", msgs[2].JsonRpcError.Error.Message)

	send(4, "nope")
	msgs = waitSent(t, tr, 4)
	assert.Equal(t, CodeMethodNotFound, msgs[3].JsonRpcError.Error.Code)

	send(5, "block")
	tr.Receive(ctx, transport.NewBaseMessageNotification(&transport.BaseJSONRPCNotification{
		Jsonrpc: transport.JSONRPCVersion,
		Method:  MethodCancelled,
		Params:  json.RawMessage(`{"requestId":5,"reason":"test"}`),
	}))
	select {
	case <-blocked:
	case <-time.After(5 * time.Second):
		t.Fatal("request was not cancelled")
	}
}
