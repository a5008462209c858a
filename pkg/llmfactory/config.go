package llmfactory

import (
	"slices"

	"github.com/effective-security/x/configloader"
)

// Config specifies the LLM providers
type Config struct {
	// Providers specifies the list of providers to use
	Providers []*ProviderConfig `json:"providers" yaml:"providers" toml:"providers" validate:"dive"`
	// DefaultProvider specifies the default provider to use
	DefaultProvider string `json:"default_provider,omitempty" yaml:"default_provider,omitempty" toml:"default_provider"`
	// AssistantModels specifies the mapping of assistants to models.
	// key is the assistant name, value is the list of preferred model names.
	// Use `default: <model_name>` as the default model for assistants.
	AssistantModels map[string][]string `json:"assistant_models,omitempty" yaml:"assistant_models,omitempty" toml:"assistant_models"`
}

// ProviderConfig for the OpenAI compatible provider
type ProviderConfig struct {
	Name            string       `json:"name" yaml:"name" toml:"name" validate:"required"`
	Token           string       `json:"token,omitempty" yaml:"token,omitempty" toml:"token"`
	DefaultModel    string       `json:"default_model,omitempty" yaml:"default_model,omitempty" toml:"default_model"`
	AvailableModels []string     `json:"available_models,omitempty" yaml:"available_models,omitempty" toml:"available_models"`
	OpenAI          OpenAIConfig `json:"open_ai" yaml:"open_ai" toml:"open_ai"`
}

// OpenAIConfig specifies options config
type OpenAIConfig struct {
	BaseURL    string `json:"base_url,omitempty" yaml:"base_url,omitempty" toml:"base_url"`
	APIVersion string `json:"api_version,omitempty" yaml:"api_version,omitempty" toml:"api_version"`
	// APIType specifies the type of API to use:
	// OPENAI|AZURE|PERPLEXITY
	APIType string `json:"api_type,omitempty" yaml:"api_type,omitempty" toml:"api_type" validate:"omitempty,oneof=OPENAI OPEN_AI AZURE PERPLEXITY openai azure perplexity"`
	// APIStyle selects the transcript shape: chat_completions|responses
	APIStyle string `json:"api_style,omitempty" yaml:"api_style,omitempty" toml:"api_style" validate:"omitempty,oneof=chat_completions responses"`
	// OrgID specifies which organization's quota and billing should be used when making API requests.
	OrgID string `json:"org_id,omitempty" yaml:"org_id,omitempty" toml:"org_id"`
}

// FindModel returns the first of models available in the provider,
// or the provider's default model
func (c *ProviderConfig) FindModel(models ...string) string {
	for _, model := range models {
		if slices.Contains(c.AvailableModels, model) {
			return model
		}
	}
	return c.DefaultModel
}

// DefaultConfig returns a single OpenAI provider configured from the environment
func DefaultConfig() *Config {
	return &Config{
		DefaultProvider: "openai",
		Providers: []*ProviderConfig{
			{
				Name: "openai",
				OpenAI: OpenAIConfig{
					APIType: "OPENAI",
				},
			},
		},
	}
}

// LoadConfig from file
func LoadConfig(file string) (*Config, error) {
	cfg := new(Config)
	if file == "" {
		return cfg, nil
	}

	err := configloader.UnmarshalAndExpand(file, cfg)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}
