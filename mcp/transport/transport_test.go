package transport

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMessage(t *testing.T) {
	t.Parallel()

	tcs := []struct {
		name string
		body string
		exp  BaseMessageType
		id   RequestId
		err  string
	}{
		{
			name: "request",
			body: `{"jsonrpc":"2.0","id":3,"method":"tools/list","params":{}}`,
			exp:  BaseMessageTypeJSONRPCRequestType,
			id:   3,
		},
		{
			name: "notification",
			body: `{"jsonrpc":"2.0","method":"notifications/initialized"}`,
			exp:  BaseMessageTypeJSONRPCNotificationType,
		},
		{
			name: "response",
			body: `{"jsonrpc":"2.0","id":7,"result":{"tools":[]}}`,
			exp:  BaseMessageTypeJSONRPCResponseType,
			id:   7,
		},
		{
			name: "error",
			body: `{"jsonrpc":"2.0","id":8,"error":{"code":-32601,"message":"method not found"}}`,
			exp:  BaseMessageTypeJSONRPCErrorType,
			id:   8,
		},
		{
			name: "bad version",
			body: `{"jsonrpc":"1.0","id":1,"method":"ping"}`,
			err:  `unsupported JSON-RPC version: "1.0"`,
		},
		{
			name: "not json",
			body: `{"jsonrpc":`,
			err:  "invalid JSON-RPC message",
		},
		{
			name: "empty",
			body: `{"jsonrpc":"2.0"}`,
			err:  "message is not a request, notification or response",
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			msg, err := ParseMessage([]byte(tc.body))
			if tc.err != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.exp, msg.Type)

			id, ok := msg.MessageID()
			assert.Equal(t, tc.exp != BaseMessageTypeJSONRPCNotificationType, ok)
			assert.Equal(t, tc.id, id)

			// the wire form survives a round trip
			bs, err := json.Marshal(msg)
			require.NoError(t, err)
			assert.JSONEq(t, tc.body, string(bs))
		})
	}
}

func TestSetMessageID(t *testing.T) {
	t.Parallel()

	msg := NewBaseMessageError(&BaseJSONRPCError{
		Jsonrpc: JSONRPCVersion,
		Id:      1,
		Error:   BaseJSONRPCErrorInner{Code: -32000, Message: "boom"},
	})
	msg.SetMessageID(42)
	id, ok := msg.MessageID()
	assert.True(t, ok)
	assert.Equal(t, RequestId(42), id)

	n := NewBaseMessageNotification(&BaseJSONRPCNotification{Jsonrpc: JSONRPCVersion, Method: "x"})
	_, ok = n.MessageID()
	assert.False(t, ok)

	_, err := json.Marshal(&BaseJsonRpcMessage{Type: "bogus"})
	assert.Error(t, err)
}
