// Package stdio carries MCP messages over newline-delimited JSON streams,
// using the connections of the MCP Go SDK.
// The server side uses the process stdin/stdout, the client side uses the
// pipes of the spawned server command.
package stdio

import (
	"context"
	"encoding/json"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/issmcp/mcp/transport"
	"github.com/effective-security/xlog"
	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/issmcp/mcp/transport", "stdio")

// ErrClosed is returned by Start and Send after the transport is closed
var ErrClosed = errors.New("transport is closed")

// ErrNotStarted is returned by Send before the transport is started
var ErrNotStarted = errors.New("transport is not started")

var _ transport.Transport = (*Transport)(nil)

// Transport implements transport.Transport over a connection of the MCP Go SDK
type Transport struct {
	sdk mcpsdk.Transport

	mu             sync.RWMutex
	writeLock      sync.Mutex
	conn           mcpsdk.Connection
	cancel         context.CancelFunc
	messageHandler func(ctx context.Context, message *transport.BaseJsonRpcMessage)
	errorHandler   func(error)
	closeHandler   func()
	started        bool
	closed         bool
	closeOnce      sync.Once
	done           chan struct{}
}

// New returns a transport connected through t when started
func New(t mcpsdk.Transport) *Transport {
	return &Transport{
		sdk:  t,
		done: make(chan struct{}),
	}
}

// NewStdio returns a transport bound to the process stdin and stdout
func NewStdio() *Transport {
	return New(&mcpsdk.StdioTransport{})
}

// NewCommand returns a transport that starts cmd and talks to its stdin and stdout.
// On Close the stdin of the command is closed, and the command is terminated
// when it does not exit within terminate.
func NewCommand(cmd *exec.Cmd, terminate time.Duration) *Transport {
	return New(&mcpsdk.CommandTransport{
		Command:           cmd,
		TerminateDuration: terminate,
	})
}

// NewPipe returns a transport reading messages from r and writing to w,
// both are closed on Close
func NewPipe(r io.ReadCloser, w io.WriteCloser) *Transport {
	return New(&mcpsdk.IOTransport{
		Reader: r,
		Writer: w,
	})
}

// Start connects and begins reading messages in the background
func (t *Transport) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}
	if t.started {
		return errors.New("transport already started")
	}

	conn, err := t.sdk.Connect(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to connect")
	}
	t.conn = conn
	t.started = true

	readCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	t.cancel = cancel
	go t.readLoop(readCtx, conn)
	return nil
}

// Done is closed after the transport is closed
func (t *Transport) Done() <-chan struct{} {
	return t.done
}

func (t *Transport) readLoop(ctx context.Context, conn mcpsdk.Connection) {
	defer func() {
		if err := t.Close(); err != nil {
			logger.KV(xlog.DEBUG, "status", "close_after_read", "err", err.Error())
		}
	}()

	for {
		msg, err := conn.Read(ctx)
		if err != nil {
			if !t.isClosed() && ctx.Err() == nil && !errors.Is(err, io.EOF) {
				t.handleError(errors.Wrap(err, "failed to read message"))
			}
			return
		}

		data, err := jsonrpc.EncodeMessage(msg)
		if err != nil {
			t.handleError(errors.Wrap(err, "failed to encode message"))
			continue
		}
		m, err := transport.ParseMessage(data)
		if err != nil {
			logger.KV(xlog.DEBUG, "status", "invalid_message", "err", err.Error())
			t.handleError(err)
			continue
		}

		t.mu.RLock()
		handler := t.messageHandler
		t.mu.RUnlock()
		if handler != nil {
			handler(ctx, m)
		}
	}
}

// Send writes the message as one line
func (t *Transport) Send(ctx context.Context, message *transport.BaseJsonRpcMessage) error {
	t.mu.RLock()
	conn, closed := t.conn, t.closed
	t.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	if conn == nil {
		return ErrNotStarted
	}

	bs, err := json.Marshal(message)
	if err != nil {
		return errors.Wrap(err, "failed to marshal message")
	}
	msg, err := jsonrpc.DecodeMessage(bs)
	if err != nil {
		return errors.Wrap(err, "failed to decode message")
	}

	t.writeLock.Lock()
	defer t.writeLock.Unlock()

	if err = conn.Write(ctx, msg); err != nil {
		return errors.Wrap(err, "failed to write message")
	}
	return nil
}

// Close closes the connection and invokes the close handler once.
// For a command, Close returns after the command exited.
func (t *Transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.mu.Lock()
		t.closed = true
		handler := t.closeHandler
		conn := t.conn
		cancel := t.cancel
		t.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		if conn != nil {
			err = conn.Close()
		}
		close(t.done)
		if handler != nil {
			handler()
		}
	})
	return err
}

func (t *Transport) isClosed() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.closed
}

func (t *Transport) handleError(err error) {
	t.mu.RLock()
	handler := t.errorHandler
	t.mu.RUnlock()
	if handler != nil {
		handler(err)
	}
}

// SetCloseHandler implements Transport.SetCloseHandler
func (t *Transport) SetCloseHandler(handler func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closeHandler = handler
}

// SetErrorHandler implements Transport.SetErrorHandler
func (t *Transport) SetErrorHandler(handler func(error)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.errorHandler = handler
}

// SetMessageHandler implements Transport.SetMessageHandler
func (t *Transport) SetMessageHandler(handler func(ctx context.Context, message *transport.BaseJsonRpcMessage)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messageHandler = handler
}
