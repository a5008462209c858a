package iss_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/issmcp/mcp"
	"github.com/effective-security/issmcp/mocks/mocktools"
	"github.com/effective-security/issmcp/pkg/schema"
	"github.com/effective-security/issmcp/tools/iss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/sjson"
	"go.uber.org/mock/gomock"
)

const upstreamPayload = `{"timestamp":1700000000,"message":"success","iss_position":{"latitude":"10.0","longitude":"20.0"}}`

func upstream(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/iss-now.json", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestTool_Definition(t *testing.T) {
	tool, err := iss.New()
	require.NoError(t, err)
	assert.Equal(t, "get_position", tool.Name())
	assert.Equal(t, "json", tool.Format())
	assert.Contains(t, tool.Description(), "Get ISS geolocation.")
	assert.Contains(t, tool.Description(), upstreamPayload)
	assert.True(t, schema.IsEmptyObject(tool.Parameters()))

	_, err = iss.New(iss.WithOutputFormat("xml"))
	assert.EqualError(t, err, `invalid output format: unsupported format: "xml"`)
}

func TestTool_Call(t *testing.T) {
	ctx := context.Background()
	srv, calls := upstream(t, http.StatusOK, upstreamPayload)

	tool, err := iss.New(iss.WithBaseURL(srv.URL+"/"), iss.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	res, err := tool.Call(ctx, "{}")
	require.NoError(t, err)
	assert.Equal(t, upstreamPayload, res)
	assert.Equal(t, int32(1), calls.Load())

	pos, err := tool.Run(ctx, &iss.Request{})
	require.NoError(t, err)
	assert.Equal(t, "success", pos.Message)
	assert.Equal(t, "2023-11-14T22:13:20Z", pos.Time().Format(time.RFC3339))

	mres, err := tool.RunMCP(ctx, &iss.Request{})
	require.NoError(t, err)
	require.Len(t, mres.Content, 1)
	assert.False(t, mres.IsError)
	assert.Equal(t, upstreamPayload, mres.Text())
}

func TestTool_Formats(t *testing.T) {
	ctx := context.Background()
	srv, _ := upstream(t, http.StatusOK, upstreamPayload)

	tcases := []struct {
		format string
		exp    []string
	}{
		{"text", []string{
			"Timestamp: 1700000000\n",
			"Time: 2023-11-14T22:13:20Z\n",
			"Message: success\n",
			"Latitude: 10.0\n",
			"Longitude: 20.0\n",
		}},
		{"yaml", []string{"timestamp: 1700000000\n", "iss_position:\n  latitude: \"10.0\"\n"}},
		{"toml", []string{"timestamp = 1700000000", "[iss_position]", `longitude = "20.0"`}},
	}
	for _, tc := range tcases {
		t.Run(tc.format, func(t *testing.T) {
			tool, err := iss.New(iss.WithBaseURL(srv.URL), iss.WithOutputFormat(tc.format))
			require.NoError(t, err)
			res, err := tool.Call(ctx, "")
			require.NoError(t, err)
			for _, exp := range tc.exp {
				assert.Contains(t, res, exp)
			}
			// the example in the description uses the same format
			assert.Contains(t, tool.Description(), tc.exp[0])
		})
	}
}

func TestTool_Failures(t *testing.T) {
	ctx := context.Background()

	noLat, _ := sjson.Delete(upstreamPayload, "iss_position.latitude")
	noMsg, _ := sjson.Delete(upstreamPayload, "message")
	emptyMsg, _ := sjson.Set(upstreamPayload, "message", "")
	badLon, _ := sjson.Set(upstreamPayload, "iss_position.longitude", "200.0")
	noPos, _ := sjson.Delete(upstreamPayload, "iss_position")

	tcases := []struct {
		name   string
		status int
		body   string
	}{
		{"not_found", http.StatusNotFound, upstreamPayload},
		{"server_error", http.StatusInternalServerError, `{"message":"error"}`},
		{"malformed", http.StatusOK, `{"timestamp":`},
		{"not_object", http.StatusOK, `[1,2]`},
		{"missing_latitude", http.StatusOK, noLat},
		{"missing_message", http.StatusOK, noMsg},
		{"empty_message", http.StatusOK, emptyMsg},
		{"invalid_longitude", http.StatusOK, badLon},
		{"missing_position", http.StatusOK, noPos},
	}
	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			srv, calls := upstream(t, tc.status, tc.body)
			tool, err := iss.New(iss.WithBaseURL(srv.URL))
			require.NoError(t, err)

			res, err := tool.Call(ctx, "")
			require.NoError(t, err)
			assert.Equal(t, iss.FailureMessage, res)
			assert.Equal(t, int32(1), calls.Load())

			_, err = tool.Fetch(ctx)
			require.Error(t, err)
			assert.True(t, errors.Is(err, iss.ErrUpstreamUnavailable))

			mres, err := tool.RunMCP(ctx, &iss.Request{})
			require.NoError(t, err)
			assert.Equal(t, iss.FailureMessage, mres.Text())
		})
	}
}

func TestTool_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	tool, err := iss.New(iss.WithBaseURL(srv.URL), iss.WithTimeout(50*time.Millisecond))
	require.NoError(t, err)

	started := time.Now()
	res, err := tool.Call(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, iss.FailureMessage, res)
	assert.Less(t, time.Since(started), time.Second)
}

func TestTool_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	tool, err := iss.New(iss.WithBaseURL(url))
	require.NoError(t, err)
	res, err := tool.Call(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, iss.FailureMessage, res)
}

func TestParsePosition(t *testing.T) {
	pos, err := iss.ParsePosition([]byte(`{"timestamp":1700000000,"message":"success","iss_position":{"latitude":-51.5,"longitude":"-0.12"}}`))
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000), pos.Timestamp)
	assert.Equal(t, "-51.5", pos.ISSPosition.Latitude)
	assert.Equal(t, "-0.12", pos.ISSPosition.Longitude)

	_, err = iss.ParsePosition([]byte(`{"message":"success"}`))
	assert.EqualError(t, err, "missing field: timestamp")
}

func TestTool_RegisterMCP(t *testing.T) {
	ctrl := gomock.NewController(t)
	reg := mocktools.NewMockMcpServerRegistrator(ctrl)

	tool, err := iss.New()
	require.NoError(t, err)

	reg.EXPECT().RegisterTool(iss.ToolName, tool.Description(), gomock.Any()).
		DoAndReturn(func(_ string, _ string, handler any) error {
			_, ok := handler.(func(context.Context, *iss.Request) (*mcp.ToolResponse, error))
			assert.True(t, ok)
			return nil
		})
	require.NoError(t, tool.RegisterMCP(reg))

	reg.EXPECT().RegisterTool(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("duplicate"))
	assert.EqualError(t, tool.RegisterMCP(reg), "duplicate")
}

func TestOptionsFromEnv(t *testing.T) {
	srv, calls := upstream(t, http.StatusOK, upstreamPayload)

	t.Setenv(iss.EnvBaseURL, srv.URL+"/")
	t.Setenv(iss.EnvTimeout, "5")
	t.Setenv(iss.EnvOutputFormat, "text")

	opts, err := iss.OptionsFromEnv()
	require.NoError(t, err)
	assert.Len(t, opts, 3)

	tool, err := iss.New(opts...)
	require.NoError(t, err)
	assert.Equal(t, "text", tool.Format())

	res, err := tool.Call(context.Background(), "")
	require.NoError(t, err)
	assert.Contains(t, res, "Latitude: 10.0")
	assert.Equal(t, int32(1), calls.Load())

	t.Setenv(iss.EnvTimeout, "soon")
	_, err = iss.OptionsFromEnv()
	assert.EqualError(t, err, `invalid ISS_TIMEOUT: "soon"`)
}
