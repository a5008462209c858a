package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/effective-security/issmcp/mcp"
	"github.com/effective-security/issmcp/mcp/transport/stdio"
	"github.com/effective-security/issmcp/tools/iss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const upstreamPayload = `{"timestamp":1700000000,"message":"success","iss_position":{"latitude":"10.0","longitude":"20.0"}}`

// unusedTransport is never started, serve fails before
func unusedTransport() *stdio.Transport {
	r, w := io.Pipe()
	return stdio.NewPipe(r, w)
}

func TestServe(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/iss-now.json", r.URL.Path)
		_, _ = w.Write([]byte(upstreamPayload))
	}))
	defer upstream.Close()

	t.Setenv(iss.EnvBaseURL, upstream.URL)
	t.Setenv(iss.EnvTimeout, "")
	t.Setenv(iss.EnvOutputFormat, "")
	t.Setenv(envLogLevel, "debug")

	// client -> server
	c2sR, c2sW := io.Pipe()
	// server -> client
	s2cR, s2cW := io.Pipe()

	var stderr bytes.Buffer
	errCh := make(chan error, 1)
	go func() {
		errCh <- serve(context.Background(), stdio.NewPipe(c2sR, s2cW), &stderr)
	}()

	ctx := context.Background()
	client := mcp.NewClient(stdio.NewPipe(s2cR, c2sW),
		mcp.WithRequestTimeout(5*time.Second),
	)
	res, err := client.Initialize(ctx)
	require.NoError(t, err)
	assert.Equal(t, iss.ServerName, res.ServerInfo.Name)

	list, err := client.ListAllTools(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, iss.ToolName, list[0].Name)

	tr, err := client.CallTool(ctx, iss.ToolName, nil)
	require.NoError(t, err)
	assert.False(t, tr.IsError)
	assert.Equal(t, upstreamPayload, tr.Text())

	// the server stops when the client disconnects
	require.NoError(t, client.Close())
	select {
	case err = <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServe_Stopped(t *testing.T) {
	t.Setenv(iss.EnvBaseURL, "")
	t.Setenv(iss.EnvTimeout, "")
	t.Setenv(iss.EnvOutputFormat, "")
	t.Setenv(envLogLevel, "")

	c2sR, c2sW := io.Pipe()
	defer c2sW.Close()
	_, s2cW := io.Pipe()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- serve(ctx, stdio.NewPipe(c2sR, s2cW), io.Discard)
	}()
	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServe_InvalidEnv(t *testing.T) {
	t.Setenv(iss.EnvBaseURL, "")
	t.Setenv(iss.EnvTimeout, "")
	t.Setenv(envLogLevel, "")

	t.Setenv(iss.EnvOutputFormat, "xml")
	var stderr bytes.Buffer
	err := serve(context.Background(), unusedTransport(), &stderr)
	require.Error(t, err)
	assert.Contains(t, stderr.String(), `error: invalid output format: unsupported format: "xml"`)

	t.Setenv(iss.EnvOutputFormat, "")
	t.Setenv(iss.EnvTimeout, "-1")
	stderr.Reset()
	err = serve(context.Background(), unusedTransport(), &stderr)
	require.Error(t, err)
	assert.Equal(t, "error: invalid ISS_TIMEOUT: \"-1\"\n", stderr.String())
}
