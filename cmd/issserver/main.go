// Command issserver serves the get_position tool over MCP on stdin and stdout.
// Logs are written to stderr, stdout carries only protocol messages.
//
//	ISS_API_BASE       optional base URL of the open-notify API
//	ISS_TIMEOUT        optional upstream timeout, in seconds
//	ISS_OUTPUT_FORMAT  optional result format: json (default), text, yaml or toml
//	ISS_LOG_LEVEL      optional, ERROR, WARNING (default), INFO, DEBUG or TRACE
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/effective-security/issmcp/mcp"
	"github.com/effective-security/issmcp/mcp/transport"
	"github.com/effective-security/issmcp/mcp/transport/stdio"
	"github.com/effective-security/issmcp/tools/iss"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/issmcp/cmd", "issserver")

const envLogLevel = "ISS_LOG_LEVEL"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := serve(ctx, stdio.NewStdio(), os.Stderr)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// serve runs the tool server on t until the client disconnects or ctx is done
func serve(ctx context.Context, t transport.Transport, stderr io.Writer) error {
	xlog.SetFormatter(xlog.NewStringFormatter(stderr))
	setLogLevel(os.Getenv(envLogLevel))

	opts, err := iss.OptionsFromEnv()
	if err != nil {
		fmt.Fprintf(stderr, "error: %s\n", err.Error())
		return err
	}
	tool, err := iss.New(opts...)
	if err != nil {
		fmt.Fprintf(stderr, "error: %s\n", err.Error())
		return err
	}

	server := mcp.NewServer(t, mcp.WithServerInfo(iss.ServerName, iss.ServerVersion))
	if err = tool.RegisterMCP(server); err != nil {
		fmt.Fprintf(stderr, "error: %s\n", err.Error())
		return err
	}
	if err = server.ServeContext(ctx); err != nil {
		fmt.Fprintf(stderr, "error: %s\n", err.Error())
		return err
	}

	logger.KV(xlog.INFO,
		"status", "serving",
		"tool", tool.Name(),
		"format", tool.Format(),
	)

	select {
	case <-server.Done():
		logger.KV(xlog.INFO, "status", "client_disconnected")
	case <-ctx.Done():
		logger.KV(xlog.INFO, "status", "stopped", "reason", ctx.Err().Error())
		_ = server.Close()
	}
	return nil
}

func setLogLevel(level string) {
	switch strings.ToUpper(level) {
	case "ERROR":
		xlog.SetGlobalLogLevel(xlog.ERROR)
	case "INFO":
		xlog.SetGlobalLogLevel(xlog.INFO)
	case "DEBUG":
		xlog.SetGlobalLogLevel(xlog.DEBUG)
	case "TRACE":
		xlog.SetGlobalLogLevel(xlog.TRACE)
	default:
		xlog.SetGlobalLogLevel(xlog.WARNING)
	}
}
