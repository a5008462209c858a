package stdio

import (
	"bufio"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/effective-security/issmcp/mcp/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSend_OneMessagePerLine(t *testing.T) {
	t.Parallel()

	inR, inW := io.Pipe()
	defer inW.Close()
	outR, outW := io.Pipe()

	tr := NewPipe(inR, outW)
	ctx := context.Background()

	err := tr.Send(ctx, transport.NewBaseMessageNotification(&transport.BaseJSONRPCNotification{
		Jsonrpc: transport.JSONRPCVersion,
		Method:  "x",
	}))
	assert.ErrorIs(t, err, ErrNotStarted)

	require.NoError(t, tr.Start(ctx))

	lines := make(chan string, 2)
	go func() {
		scanner := bufio.NewScanner(outR)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	require.NoError(t, tr.Send(ctx, transport.NewBaseMessageRequest(&transport.BaseJSONRPCRequest{
		Jsonrpc: transport.JSONRPCVersion,
		Id:      1,
		Method:  "ping",
	})))
	require.NoError(t, tr.Send(ctx, transport.NewBaseMessageNotification(&transport.BaseJSONRPCNotification{
		Jsonrpc: transport.JSONRPCVersion,
		Method:  "notifications/initialized",
	})))

	next := func() string {
		select {
		case l := <-lines:
			return l
		case <-time.After(5 * time.Second):
			t.Fatal("no message written")
			return ""
		}
	}
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":1,"method":"ping"}`, next())
	assert.JSONEq(t, `{"jsonrpc":"2.0","method":"notifications/initialized"}`, next())

	require.NoError(t, tr.Close())
	err = tr.Send(ctx, transport.NewBaseMessageNotification(&transport.BaseJSONRPCNotification{
		Jsonrpc: transport.JSONRPCVersion,
		Method:  "x",
	}))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestReadLoop(t *testing.T) {
	t.Parallel()

	inR, inW := io.Pipe()
	_, outW := io.Pipe()
	tr := NewPipe(inR, outW)

	var mu sync.Mutex
	var got []transport.BaseMessageType
	closed := make(chan struct{})

	tr.SetMessageHandler(func(_ context.Context, m *transport.BaseJsonRpcMessage) {
		mu.Lock()
		got = append(got, m.Type)
		mu.Unlock()
	})
	tr.SetErrorHandler(func(err error) {
		t.Errorf("unexpected error: %v", err)
	})
	tr.SetCloseHandler(func() {
		close(closed)
	})

	require.NoError(t, tr.Start(context.Background()))
	assert.Error(t, tr.Start(context.Background()))

	go func() {
		_, _ = io.WriteString(inW, ""+
			`{"jsonrpc":"2.0","id":1,"result":{}}`+"\n"+
			`{"jsonrpc":"2.0","id":2,"error":{"code":-32601,"message":"method not found"}}`+"\n"+
			`{"jsonrpc":"2.0","method":"notifications/tools/list_changed"}`+"\n")
		// EOF closes the transport
		_ = inW.Close()
	}()

	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("transport was not closed on EOF")
	}
	<-tr.Done()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []transport.BaseMessageType{
		transport.BaseMessageTypeJSONRPCResponseType,
		transport.BaseMessageTypeJSONRPCErrorType,
		transport.BaseMessageTypeJSONRPCNotificationType,
	}, got)

	// close is idempotent
	require.NoError(t, tr.Close())
	assert.ErrorIs(t, tr.Start(context.Background()), ErrClosed)
}

func TestClose_UnblocksReader(t *testing.T) {
	t.Parallel()

	inR, inW := io.Pipe()
	defer inW.Close()
	_, outW := io.Pipe()

	tr := NewPipe(inR, outW)
	calls := 0
	tr.SetCloseHandler(func() {
		calls++
	})
	require.NoError(t, tr.Start(context.Background()))

	_ = tr.Close()
	_ = tr.Close()
	assert.Equal(t, 1, calls)

	select {
	case <-tr.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("done was not closed")
	}
}
