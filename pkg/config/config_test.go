package config_test

import (
	"testing"
	"time"

	"github.com/effective-security/issmcp/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, config.DefaultServerCommand, cfg.Server.Command)
	assert.Equal(t, 60*time.Second, cfg.Server.RequestTimeout())
	assert.Equal(t, 5*time.Second, cfg.Server.CloseTimeout())
	assert.Equal(t, 30*time.Second, cfg.Upstream.Timeout())
	assert.Equal(t, "http://api.open-notify.org", cfg.Upstream.BaseURL)
	assert.Equal(t, "json", cfg.Upstream.OutputFormat)
	assert.Equal(t, "What's the current geolocation of the ISS?", cfg.Assistant.Query)
	assert.Equal(t, "iss", cfg.Assistant.Name)
	assert.Equal(t, "isschat", cfg.Store.Prefix)
	assert.Empty(t, cfg.Store.RedisURL)
	assert.Equal(t, time.Duration(0), cfg.Store.TTL())
	require.Len(t, cfg.LLM.Providers, 1)
	assert.Equal(t, "OPENAI", cfg.LLM.Providers[0].OpenAI.APIType)

	empty, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, cfg, empty)
}

func TestLoad(t *testing.T) {
	t.Setenv("ISSCHAT_TEST_TOKEN", "secret")

	t.Run("yaml", func(t *testing.T) {
		cfg, err := config.Load("testdata/config.yaml")
		require.NoError(t, err)
		require.Len(t, cfg.LLM.Providers, 1)
		assert.Equal(t, "secret", cfg.LLM.Providers[0].Token)
		assert.Equal(t, "responses", cfg.LLM.Providers[0].OpenAI.APIStyle)
		assert.Equal(t, "/usr/local/bin/issserver", cfg.Server.Command)
		assert.Equal(t, []string{"--stdio"}, cfg.Server.Args)
		assert.Equal(t, []string{"ISS_OUTPUT_FORMAT=text"}, cfg.Server.Env)
		assert.Equal(t, "Answer briefly.", cfg.Assistant.Instructions)
		assert.True(t, cfg.Assistant.PrintTranscript)
		assert.Equal(t, "json", cfg.Assistant.TranscriptFormat)
		assert.Equal(t, 10*time.Second, cfg.Upstream.Timeout())
		// defaults
		assert.Equal(t, config.DefaultQuery, cfg.Assistant.Query)
		assert.Equal(t, config.DefaultUpstreamBaseURL, cfg.Upstream.BaseURL)
	})

	t.Run("toml", func(t *testing.T) {
		cfg, err := config.Load("testdata/config.toml")
		require.NoError(t, err)
		assert.True(t, cfg.Server.InProcess)
		assert.Equal(t, 15*time.Second, cfg.Server.RequestTimeout())
		assert.Equal(t, "iss-toml", cfg.Assistant.Name)
		assert.Equal(t, "Where is the ISS?", cfg.Assistant.Query)
		assert.True(t, cfg.Assistant.OmitEmptySchema)
		assert.Equal(t, "toml", cfg.Upstream.OutputFormat)
		assert.Equal(t, "http://localhost:8080", cfg.Upstream.BaseURL)
		assert.Equal(t, "redis://localhost:6379/0", cfg.Store.RedisURL)
		assert.Equal(t, "iss", cfg.Store.Prefix)
		assert.Equal(t, time.Hour, cfg.Store.TTL())
		require.Len(t, cfg.LLM.Providers, 1)
		p := cfg.LLM.Providers[0]
		assert.Equal(t, "azure", p.Name)
		assert.Equal(t, "secret", p.Token)
		assert.Equal(t, "AZURE", p.OpenAI.APIType)
		assert.Equal(t, "2024-10-21", p.OpenAI.APIVersion)
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := config.Load("testdata/invalid.yaml")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid configuration")
		assert.Contains(t, err.Error(), "TranscriptFormat")
		assert.Contains(t, err.Error(), "TimeoutSec")
	})

	t.Run("missing", func(t *testing.T) {
		_, err := config.Load("testdata/missing.yaml")
		require.Error(t, err)
		_, err = config.Load("testdata/missing.toml")
		require.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.LLM.Providers[0].Name = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Name")

	cfg = config.Default()
	cfg.LLM.Providers[0].OpenAI.APIStyle = "grpc"
	require.Error(t, cfg.Validate())

	cfg = config.Default()
	cfg.Upstream.OutputFormat = "xml"
	require.Error(t, cfg.Validate())

	cfg = config.Default()
	cfg.Store.TTLSec = -1
	require.Error(t, cfg.Validate())
}
