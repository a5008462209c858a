// Package iss provides the tool that reports the current position
// of the International Space Station from the open-notify API.
package iss

import (
	"context"
	"io"
	"net/http"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/issmcp/encoding"
	"github.com/effective-security/issmcp/mcp"
	"github.com/effective-security/issmcp/pkg/metricskey"
	"github.com/effective-security/issmcp/pkg/schema"
	"github.com/effective-security/issmcp/tools"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
	"github.com/invopop/jsonschema"
	"github.com/tidwall/gjson"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/issmcp/tools", "iss")

const (
	// ToolName is the name of the tool advertised to the model
	ToolName = "get_position"
	// DefaultBaseURL is the open-notify API
	DefaultBaseURL = "http://api.open-notify.org"
	// DefaultTimeout bounds the upstream fetch
	DefaultTimeout = 30 * time.Second
	// FailureMessage is returned as the tool result when the position is not available
	FailureMessage = "Unable to fetch data or no data found."

	// TextTemplate renders the position in the text format
	TextTemplate = `Timestamp: {{ .Timestamp }}
Time: {{ dateInZone "2006-01-02T15:04:05Z07:00" .Timestamp "UTC" }}
Message: {{ .Message }}
Latitude: {{ .ISSPosition.Latitude }}
Longitude: {{ .ISSPosition.Longitude }}
`

	// ServerName is advertised by the tool server on initialize
	ServerName = "iss"
	// ServerVersion is advertised by the tool server on initialize
	ServerVersion = "1.0.0"

	// EnvBaseURL overrides the upstream base URL of the tool server process
	EnvBaseURL = "ISS_API_BASE"
	// EnvTimeout overrides the upstream timeout, in seconds
	EnvTimeout = "ISS_TIMEOUT"
	// EnvOutputFormat selects the output format of the tool result
	EnvOutputFormat = "ISS_OUTPUT_FORMAT"

	description = "Get ISS geolocation."

	maxResponseSize = 1 << 20
)

// ErrUpstreamUnavailable is returned by Fetch when the position can not be retrieved.
// Call never returns it, the failure is reported as FailureMessage.
var ErrUpstreamUnavailable = errors.New("upstream unavailable")

// Request is the tool input, the tool takes no arguments
type Request struct{}

// Coordinates of the station, as reported by the API
type Coordinates struct {
	Latitude  string `json:"latitude" yaml:"latitude" toml:"latitude" validate:"required,latitude" fake:"10.0"`
	Longitude string `json:"longitude" yaml:"longitude" toml:"longitude" validate:"required,longitude" fake:"20.0"`
}

// Position is the response of iss-now.json
type Position struct {
	Timestamp   int64       `json:"timestamp" yaml:"timestamp" toml:"timestamp" validate:"required" fake:"1700000000"`
	Message     string      `json:"message" yaml:"message" toml:"message" validate:"required" fake:"success"`
	ISSPosition Coordinates `json:"iss_position" yaml:"iss_position" toml:"iss_position"`
}

// Time returns the timestamp as time
func (p *Position) Time() time.Time {
	return time.Unix(p.Timestamp, 0).UTC()
}

// Option configures the Tool
type Option func(*Tool)

// OptionsFromEnv returns the options set by EnvBaseURL, EnvTimeout and EnvOutputFormat
func OptionsFromEnv() ([]Option, error) {
	var opts []Option
	if v := os.Getenv(EnvBaseURL); v != "" {
		opts = append(opts, WithBaseURL(v))
	}
	if v := os.Getenv(EnvTimeout); v != "" {
		sec, err := strconv.Atoi(v)
		if err != nil || sec < 0 {
			return nil, errors.Newf("invalid %s: %q", EnvTimeout, v)
		}
		opts = append(opts, WithTimeout(time.Duration(sec)*time.Second))
	}
	if v := os.Getenv(EnvOutputFormat); v != "" {
		opts = append(opts, WithOutputFormat(v))
	}
	return opts, nil
}

// WithBaseURL specifies the base URL of the API
func WithBaseURL(baseURL string) Option {
	return func(t *Tool) {
		t.baseURL = strings.TrimSuffix(values.StringsCoalesce(baseURL, DefaultBaseURL), "/")
	}
}

// WithTimeout specifies the fetch timeout, zero keeps the default
func WithTimeout(timeout time.Duration) Option {
	return func(t *Tool) {
		if timeout > 0 {
			t.timeout = timeout
		}
	}
}

// WithHTTPClient specifies the HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(t *Tool) {
		if client != nil {
			t.httpClient = client
		}
	}
}

// WithOutputFormat specifies the format of the tool result: json, text, yaml or toml
func WithOutputFormat(format encoding.Format) Option {
	return func(t *Tool) {
		t.format = format
	}
}

// Tool fetches the current position of the ISS
type Tool struct {
	name        string
	description string

	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	format     encoding.Format
	enc        encoding.Encoder
}

var (
	_ tools.Tool[Request, Position] = (*Tool)(nil)
	_ tools.MCPTool[Request]        = (*Tool)(nil)
)

// New returns the tool
func New(opts ...Option) (*Tool, error) {
	t := &Tool{
		name:       ToolName,
		baseURL:    DefaultBaseURL,
		timeout:    DefaultTimeout,
		httpClient: http.DefaultClient,
		format:     encoding.FormatJSON,
	}
	for _, opt := range opts {
		opt(t)
	}

	enc, err := encoding.NewEncoder(t.format, TextTemplate)
	if err != nil {
		return nil, errors.WithMessage(err, "invalid output format")
	}
	t.enc = enc
	t.description = description + " Returns the current latitude and longitude of the International Space Station, for example:\n" +
		encoding.Example(enc, &Position{})
	return t, nil
}

func (t *Tool) Name() string {
	return t.name
}

func (t *Tool) Description() string {
	return t.description
}

// Format returns the output format
func (t *Tool) Format() encoding.Format {
	return t.enc.Format()
}

func (t *Tool) Parameters() *jsonschema.Schema {
	sc, err := schema.New(reflect.TypeOf(Request{}))
	if err != nil {
		return schema.EmptyObject()
	}
	return sc.Parameters
}

// Fetch returns the current position.
// All failures are marked as ErrUpstreamUnavailable.
func (t *Tool) Fetch(ctx context.Context) (*Position, error) {
	started := time.Now()
	status := "ok"
	defer func() {
		metricskey.PerfUpstreamFetch.MeasureSince(started, status)
	}()

	pos, reason, err := t.fetch(ctx)
	if err != nil {
		status = "failed"
		metricskey.StatsUpstreamFetchFailed.IncrCounter(1, reason)
		logger.ContextKV(ctx, xlog.WARNING,
			"status", "upstream_unavailable",
			"reason", reason,
			"err", err.Error(),
		)
		return nil, errors.Mark(err, ErrUpstreamUnavailable)
	}

	logger.ContextKV(ctx, xlog.DEBUG,
		"status", "fetched",
		"timestamp", pos.Timestamp,
		"latitude", pos.ISSPosition.Latitude,
		"longitude", pos.ISSPosition.Longitude,
	)
	return pos, nil
}

func (t *Tool) fetch(ctx context.Context) (*Position, string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"/iss-now.json", nil)
	if err != nil {
		return nil, "request", errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, "timeout", errors.Wrap(err, "request timed out")
		}
		return nil, "transport", errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "status", errors.Newf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, "timeout", errors.Wrap(err, "request timed out")
		}
		return nil, "transport", errors.Wrap(err, "failed to read response")
	}

	pos, err := ParsePosition(body)
	if err != nil {
		return nil, "malformed", err
	}
	return pos, "", nil
}

// ParsePosition parses the iss-now.json document,
// all fields are required
func ParsePosition(body []byte) (*Position, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("malformed JSON")
	}
	doc := gjson.ParseBytes(body)
	if !doc.IsObject() {
		return nil, errors.New("malformed JSON: expected object")
	}

	for _, path := range []string{"timestamp", "message", "iss_position.latitude", "iss_position.longitude"} {
		if !doc.Get(path).Exists() {
			return nil, errors.Newf("missing field: %s", path)
		}
	}

	pos := &Position{
		Timestamp: doc.Get("timestamp").Int(),
		Message:   doc.Get("message").String(),
		ISSPosition: Coordinates{
			Latitude:  doc.Get("iss_position.latitude").String(),
			Longitude: doc.Get("iss_position.longitude").String(),
		},
	}
	if err := encoding.Validate(pos); err != nil {
		return nil, errors.WithMessage(err, "invalid position")
	}
	return pos, nil
}

func (t *Tool) Run(ctx context.Context, _ *Request) (*Position, error) {
	return t.Fetch(ctx)
}

// Call returns the rendered position, or FailureMessage.
// The error is always nil, the input is ignored.
func (t *Tool) Call(ctx context.Context, _ string) (string, error) {
	pos, err := t.Fetch(ctx)
	if err != nil {
		return FailureMessage, nil
	}
	bs, err := t.enc.Marshal(pos)
	if err != nil {
		logger.ContextKV(ctx, xlog.ERROR,
			"status", "render_failed",
			"format", t.enc.Format(),
			"err", err.Error(),
		)
		return FailureMessage, nil
	}
	return string(bs), nil
}

// RunMCP returns the tool result as MCP content
func (t *Tool) RunMCP(ctx context.Context, req *Request) (*mcp.ToolResponse, error) {
	res, _ := t.Call(ctx, "")
	return mcp.NewToolResponse(mcp.NewTextContent(res)), nil
}

// RegisterMCP registers the tool with the MCP server
func (t *Tool) RegisterMCP(registrator tools.McpServerRegistrator) error {
	return registrator.RegisterTool(t.name, t.description, t.RunMCP)
}
