// Package config provides the application configuration of the ISS chat client.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/issmcp/pkg/llmfactory"
	"github.com/effective-security/x/configloader"
	"github.com/effective-security/x/values"
	"github.com/go-playground/validator/v10"
)

// Defaults
const (
	DefaultServerCommand     = "issserver"
	DefaultAssistantName     = "iss"
	DefaultQuery             = "What's the current geolocation of the ISS?"
	DefaultRequestTimeoutSec = 60
	DefaultCloseTimeoutSec   = 5
	DefaultUpstreamBaseURL   = "http://api.open-notify.org"
	DefaultUpstreamTimeout   = 30
	DefaultOutputFormat      = "json"
	DefaultTranscriptFormat  = "yaml"
	DefaultStorePrefix       = "isschat"
)

// Config of the application
type Config struct {
	// LLM specifies the model providers
	LLM llmfactory.Config `json:"llm" yaml:"llm" toml:"llm"`
	// Server specifies how to start the tool server
	Server ServerConfig `json:"server" yaml:"server" toml:"server"`
	// Assistant specifies the conversation loop
	Assistant AssistantConfig `json:"assistant" yaml:"assistant" toml:"assistant"`
	// Upstream specifies the position source used by the tool server
	Upstream UpstreamConfig `json:"upstream" yaml:"upstream" toml:"upstream"`
	// Store specifies where the transcripts are kept
	Store StoreConfig `json:"store" yaml:"store" toml:"store"`
}

// ServerConfig specifies the tool server process
type ServerConfig struct {
	// Command is the executable of the tool server
	Command string `json:"command,omitempty" yaml:"command,omitempty" toml:"command"`
	// Args are passed to Command
	Args []string `json:"args,omitempty" yaml:"args,omitempty" toml:"args"`
	// Env is appended to the parent environment of the child process, KEY=VALUE
	Env []string `json:"env,omitempty" yaml:"env,omitempty" toml:"env"`
	// InProcess runs the tool server inside the client process
	InProcess bool `json:"in_process,omitempty" yaml:"in_process,omitempty" toml:"in_process"`
	// RequestTimeoutSec bounds every MCP request
	RequestTimeoutSec int `json:"request_timeout_sec,omitempty" yaml:"request_timeout_sec,omitempty" toml:"request_timeout_sec" validate:"gte=0"`
	// CloseTimeoutSec is the grace period for the child to exit before it is killed
	CloseTimeoutSec int `json:"close_timeout_sec,omitempty" yaml:"close_timeout_sec,omitempty" toml:"close_timeout_sec" validate:"gte=0"`
}

// AssistantConfig specifies the conversation loop
type AssistantConfig struct {
	// Name of the assistant, used to pick a model and in metrics
	Name string `json:"name,omitempty" yaml:"name,omitempty" toml:"name"`
	// Model overrides the provider default model
	Model string `json:"model,omitempty" yaml:"model,omitempty" toml:"model"`
	// Instructions are sent as the developer message before the query,
	// when empty the query itself is the developer message
	Instructions string `json:"instructions,omitempty" yaml:"instructions,omitempty" toml:"instructions"`
	// Query is the default question
	Query string `json:"query,omitempty" yaml:"query,omitempty" toml:"query"`
	// Temperature for sampling
	Temperature float64 `json:"temperature,omitempty" yaml:"temperature,omitempty" toml:"temperature" validate:"gte=0,lte=2"`
	// OmitEmptySchema declares that tools without parameters are sent without a schema
	OmitEmptySchema bool `json:"omit_empty_schema,omitempty" yaml:"omit_empty_schema,omitempty" toml:"omit_empty_schema"`
	// PrintTranscript prints the transcript after the answer
	PrintTranscript bool `json:"print_transcript,omitempty" yaml:"print_transcript,omitempty" toml:"print_transcript"`
	// TranscriptFormat is json or yaml
	TranscriptFormat string `json:"transcript_format,omitempty" yaml:"transcript_format,omitempty" toml:"transcript_format" validate:"omitempty,oneof=json yaml"`
}

// UpstreamConfig specifies the position source
type UpstreamConfig struct {
	// BaseURL of the open-notify API
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" toml:"base_url" validate:"omitempty,url"`
	// TimeoutSec bounds the fetch
	TimeoutSec int `json:"timeout_sec,omitempty" yaml:"timeout_sec,omitempty" toml:"timeout_sec" validate:"gte=0"`
	// OutputFormat of the tool result: json, text, yaml or toml
	OutputFormat string `json:"output_format,omitempty" yaml:"output_format,omitempty" toml:"output_format" validate:"omitempty,oneof=json text yaml toml"`
}

// StoreConfig specifies the transcript store,
// the runs are kept in memory when RedisURL is empty
type StoreConfig struct {
	// RedisURL is redis://[user:password@]host:port/db
	RedisURL string `json:"redis_url,omitempty" yaml:"redis_url,omitempty" toml:"redis_url" validate:"omitempty,url"`
	// Prefix of the Redis keys
	Prefix string `json:"prefix,omitempty" yaml:"prefix,omitempty" toml:"prefix"`
	// TTLSec is the retention of the runs, zero keeps them until deleted
	TTLSec int `json:"ttl_sec,omitempty" yaml:"ttl_sec,omitempty" toml:"ttl_sec" validate:"gte=0"`
}

// TTL returns the retention of the runs
func (c *StoreConfig) TTL() time.Duration {
	return time.Duration(c.TTLSec) * time.Second
}

// RequestTimeout returns the MCP request timeout
func (c *ServerConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSec) * time.Second
}

// CloseTimeout returns the grace period of the child process
func (c *ServerConfig) CloseTimeout() time.Duration {
	return time.Duration(c.CloseTimeoutSec) * time.Second
}

// Timeout returns the upstream fetch timeout
func (c *UpstreamConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// Default returns the configuration used when no file is provided
func Default() *Config {
	cfg := new(Config)
	cfg.SetDefaults()
	return cfg
}

// Load returns configuration from file,
// .toml files are decoded with TOML, everything else with the YAML/JSON loader
func Load(file string) (*Config, error) {
	cfg := new(Config)
	if file == "" {
		cfg.SetDefaults()
		return cfg, nil
	}

	if strings.EqualFold(filepath.Ext(file), ".toml") {
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		if _, err := toml.Decode(os.ExpandEnv(string(b)), cfg); err != nil {
			return nil, errors.Wrapf(err, "failed to decode %s", file)
		}
	} else if err := configloader.UnmarshalAndExpand(file, cfg); err != nil {
		return nil, errors.WithMessagef(err, "failed to load %s", file)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SetDefaults fills empty values
func (c *Config) SetDefaults() {
	if len(c.LLM.Providers) == 0 {
		c.LLM = *llmfactory.DefaultConfig()
	}

	c.Server.Command = values.StringsCoalesce(c.Server.Command, DefaultServerCommand)
	c.Server.RequestTimeoutSec = values.NumbersCoalesce(c.Server.RequestTimeoutSec, DefaultRequestTimeoutSec)
	c.Server.CloseTimeoutSec = values.NumbersCoalesce(c.Server.CloseTimeoutSec, DefaultCloseTimeoutSec)

	c.Assistant.Name = values.StringsCoalesce(c.Assistant.Name, DefaultAssistantName)
	c.Assistant.Query = values.StringsCoalesce(c.Assistant.Query, DefaultQuery)
	c.Assistant.TranscriptFormat = values.StringsCoalesce(c.Assistant.TranscriptFormat, DefaultTranscriptFormat)

	c.Upstream.BaseURL = values.StringsCoalesce(c.Upstream.BaseURL, DefaultUpstreamBaseURL)
	c.Upstream.TimeoutSec = values.NumbersCoalesce(c.Upstream.TimeoutSec, DefaultUpstreamTimeout)
	c.Upstream.OutputFormat = values.StringsCoalesce(c.Upstream.OutputFormat, DefaultOutputFormat)

	c.Store.Prefix = values.StringsCoalesce(c.Store.Prefix, DefaultStorePrefix)
}

// Validate returns error if the configuration is invalid
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}
	return nil
}
