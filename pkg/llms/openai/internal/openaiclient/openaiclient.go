package openaiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/x/slices"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/issmcp/pkg/llms/openai", "openaiclient")

const (
	DefaultBaseURL    = "https://api.openai.com/v1"
	DefaultChatModel  = "gpt-4o-mini"
	DefaultAPIVersion = "2024-10-21"
)

// ErrEmptyResponse is returned when the OpenAI API returns an empty response.
var ErrEmptyResponse = errors.New("empty response")

type ProviderType string

const (
	ProviderOpenAI     ProviderType = "OPENAI"
	ProviderAzure      ProviderType = "AZURE"
	ProviderPerplexity ProviderType = "PERPLEXITY"
)

// ToolType is the type of a tool.
type ToolType string

const (
	ToolTypeFunction ToolType = "function"
)

// Doer performs a HTTP request.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a client for the OpenAI API.
type Client struct {
	Model    string
	Provider ProviderType

	token        string
	baseURL      string
	organization string
	apiVersion   string
	httpClient   Doer
}

// New returns a new OpenAI client.
func New(provider ProviderType, model, token, baseURL, organization, apiVersion string, httpClient Doer) *Client {
	c := &Client{
		Model:        model,
		Provider:     provider,
		token:        token,
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		organization: organization,
		apiVersion:   apiVersion,
		httpClient:   httpClient,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.Model == "" {
		c.Model = DefaultChatModel
	}
	if c.apiVersion == "" {
		c.apiVersion = DefaultAPIVersion
	}
	if c.httpClient == nil {
		c.httpClient = http.DefaultClient
	}
	return c
}

// IsAzure returns true for Azure deployments
func IsAzure(provider ProviderType) bool {
	return provider == ProviderAzure
}

// APIError is returned when the API replies with a non-200 status
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("API returned unexpected status code: %d", e.StatusCode)
	}
	return fmt.Sprintf("API returned unexpected status code: %d: %s", e.StatusCode, e.Message)
}

type errorMessage struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if IsAzure(c.Provider) {
		req.Header.Set("api-key", c.token)
	} else {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.organization != "" {
		req.Header.Set("OpenAI-Organization", c.organization)
	}
}

func (c *Client) buildURL(suffix string, model string) string {
	if IsAzure(c.Provider) {
		return c.buildAzureURL(suffix, model)
	}
	return c.baseURL + suffix
}

func (c *Client) buildAzureURL(suffix string, model string) string {
	if suffix == "/responses" {
		// the responses endpoint is not nested under the deployment,
		// the deployment name goes in the request body
		return fmt.Sprintf("%s/openai/responses?api-version=%s", c.baseURL, c.apiVersion)
	}
	// /openai/deployments/{model}/chat/completions?api-version={api_version}
	return fmt.Sprintf("%s/openai/deployments/%s%s?api-version=%s",
		c.baseURL, model, suffix, c.apiVersion,
	)
}

// post sends payload as JSON and decodes the reply into res
func (c *Client) post(ctx context.Context, suffix, model string, payload, res any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "marshal payload")
	}

	u := c.buildURL(suffix, model)
	logger.ContextKV(ctx, xlog.DEBUG, "url", u, "model", model)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	c.setHeaders(req)

	r, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "send request")
	}
	defer func() { _ = r.Body.Close() }()

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return errors.Wrap(err, "read body")
	}

	if r.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: r.StatusCode}
		var em errorMessage
		if json.Unmarshal(raw, &em) == nil {
			apiErr.Type = em.Error.Type
			apiErr.Message = em.Error.Message
		}
		if r.StatusCode == http.StatusNotFound && apiErr.Message == "" {
			apiErr.Message = "url: " + u
		}
		logger.ContextKV(ctx, xlog.DEBUG,
			"status", r.StatusCode,
			"body", slices.StringUpto(string(raw), 256))
		return errors.WithStack(apiErr)
	}

	if err := json.Unmarshal(raw, res); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}
