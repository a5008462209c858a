package openai

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/issmcp/pkg/llms"
	"github.com/effective-security/issmcp/pkg/llms/openai/internal/openaiclient"
	"github.com/effective-security/x/values"
)

const (
	tokenEnvVarName        = "OPENAI_API_KEY"      //nolint:gosec
	modelEnvVarName        = "OPENAI_MODEL"        //nolint:gosec
	baseURLEnvVarName      = "OPENAI_BASE_URL"     //nolint:gosec
	baseAPIBaseEnvVarName  = "OPENAI_API_BASE"     //nolint:gosec
	organizationEnvVarName = "OPENAI_ORGANIZATION" //nolint:gosec
)

// DefaultModel is used when neither the option nor OPENAI_MODEL is set
const DefaultModel = openaiclient.DefaultChatModel

var (
	// ErrMissingToken is returned when the API key is not provided
	ErrMissingToken = errors.New("missing the OpenAI API key, set it in the OPENAI_API_KEY environment variable")
	// ErrEmptyResponse is returned when the model replied with no choices
	ErrEmptyResponse = openaiclient.ErrEmptyResponse
)

// APIStyle selects the wire shape of the transcript sent to the model.
// It is fixed for the lifetime of an LLM.
type APIStyle string

const (
	// APIStyleChatCompletions uses /chat/completions with role-tagged messages
	APIStyleChatCompletions APIStyle = "chat_completions"
	// APIStyleResponses uses /responses with typed input items
	APIStyleResponses APIStyle = "responses"
)

// ParseAPIStyle returns APIStyle from string, empty value means chat completions
func ParseAPIStyle(s string) (APIStyle, error) {
	switch APIStyle(s) {
	case "", APIStyleChatCompletions:
		return APIStyleChatCompletions, nil
	case APIStyleResponses:
		return APIStyleResponses, nil
	}
	return "", errors.Newf("unsupported API style: %q", s)
}

type options struct {
	token        string
	model        string
	baseURL      string
	organization string
	apiVersion   string
	provider     llms.ProviderType
	style        APIStyle
	httpClient   openaiclient.Doer
}

// Option is a functional option for the OpenAI client.
type Option func(*options)

// WithToken passes the OpenAI API token to the client. If not set, the token
// is read from the OPENAI_API_KEY environment variable.
func WithToken(token string) Option {
	return func(opts *options) {
		opts.token = token
	}
}

// WithModel passes the OpenAI model to the client. If not set, the model
// is read from the OPENAI_MODEL environment variable.
func WithModel(model string) Option {
	return func(opts *options) {
		opts.model = model
	}
}

// WithBaseURL passes the OpenAI base url to the client. If not set, the base url
// is read from the OPENAI_BASE_URL environment variable, then https://api.openai.com/v1 is used.
func WithBaseURL(baseURL string) Option {
	return func(opts *options) {
		opts.baseURL = baseURL
	}
}

// WithOrganization passes the OpenAI organization to the client. If not set, the
// organization is read from the OPENAI_ORGANIZATION.
func WithOrganization(organization string) Option {
	return func(opts *options) {
		opts.organization = organization
	}
}

// WithAPIVersion sets the Azure API version
func WithAPIVersion(apiVersion string) Option {
	return func(opts *options) {
		opts.apiVersion = apiVersion
	}
}

// WithProvider passes the provider type to the client. If not set, the default value
// is ProviderOpenAI.
func WithProvider(provider llms.ProviderType) Option {
	return func(opts *options) {
		opts.provider = provider
	}
}

// WithAPIStyle selects the transcript adapter, the default is APIStyleChatCompletions
func WithAPIStyle(style APIStyle) Option {
	return func(opts *options) {
		opts.style = style
	}
}

// WithHTTPClient allows setting a custom HTTP client. If not set, the default value
// is http.DefaultClient.
func WithHTTPClient(client openaiclient.Doer) Option {
	return func(opts *options) {
		opts.httpClient = client
	}
}

func newClient(opts ...Option) (*options, *openaiclient.Client, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	o.token = values.StringsCoalesce(o.token, os.Getenv(tokenEnvVarName))
	if o.token == "" {
		return nil, nil, ErrMissingToken
	}
	o.model = values.StringsCoalesce(o.model, os.Getenv(modelEnvVarName), DefaultModel)
	o.baseURL = values.StringsCoalesce(o.baseURL, os.Getenv(baseURLEnvVarName), os.Getenv(baseAPIBaseEnvVarName))
	o.organization = values.StringsCoalesce(o.organization, os.Getenv(organizationEnvVarName))
	if o.provider == "" {
		o.provider = llms.ProviderOpenAI
	}

	style, err := ParseAPIStyle(string(o.style))
	if err != nil {
		return nil, nil, err
	}
	if style == APIStyleResponses && !o.provider.Supports(llms.CapabilityResponsesAPI) {
		return nil, nil, errors.Newf("provider %s does not support the %s API style", o.provider, style)
	}
	o.style = style

	c := openaiclient.New(openaiclient.ProviderType(o.provider), o.model, o.token,
		o.baseURL, o.organization, o.apiVersion, o.httpClient)
	return o, c, nil
}
