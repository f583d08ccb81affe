package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultOpenAIModel, cfg.OpenAIModel)
	assert.Equal(t, DefaultBucket, cfg.SupabaseBucket)
	assert.Equal(t, DefaultMaxAgentTurns, cfg.MaxAgentTurns)
	assert.Equal(t, DefaultMaxModelCalls, cfg.MaxModelCalls)
	assert.Equal(t, "memory", cfg.ResolvedSessionBackend())
	assert.Equal(t, "memory", cfg.ResolvedStorageBackend())
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 9000\nopenai_model: gpt-4o\nredis_host: cache.internal\n"), 0o600))

	t.Setenv(EnvConfigFile, path)
	t.Setenv("PORT", "9100")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Port, "env beats file")
	assert.Equal(t, "gpt-4o", cfg.OpenAIModel, "file beats default")
	assert.Equal(t, "cache.internal:6379", cfg.RedisAddr())
}

func TestLoadRejectsBadPort(t *testing.T) {
	t.Setenv("PORT", "-1")
	_, err := Load()
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv(EnvConfigFile, "/does/not/exist.yaml")
	_, err := Load()
	require.Error(t, err)
}

func TestResolvedLLMProvider(t *testing.T) {
	cfg := &Config{OpenAIAPIKey: "sk-1"}
	assert.Equal(t, "openai", cfg.ResolvedLLMProvider())
	assert.True(t, cfg.LLMConfigured())

	cfg = &Config{AnthropicAPIKey: "ak-1"}
	assert.Equal(t, "anthropic", cfg.ResolvedLLMProvider())
	assert.True(t, cfg.LLMConfigured())

	cfg = &Config{LLMProvider: "anthropic"}
	assert.Equal(t, "anthropic", cfg.ResolvedLLMProvider())
	assert.False(t, cfg.LLMConfigured())

	cfg = &Config{}
	assert.False(t, cfg.LLMConfigured())
}

func TestResolvedStorageBackend(t *testing.T) {
	cfg := &Config{SupabaseURL: "https://proj.supabase.co", SupabaseKey: "key"}
	assert.Equal(t, "supabase", cfg.ResolvedStorageBackend())
	assert.True(t, cfg.StorageConfigured())

	cfg = &Config{AWSS3Bucket: "research-files"}
	assert.Equal(t, "s3", cfg.ResolvedStorageBackend())
	assert.True(t, cfg.StorageConfigured())

	cfg = &Config{StorageBackend: "memory", SupabaseURL: "u", SupabaseKey: "k"}
	assert.Equal(t, "memory", cfg.ResolvedStorageBackend())
	assert.False(t, cfg.StorageConfigured())
}

func TestValidateProviderReport(t *testing.T) {
	cfg := &Config{OpenAIAPIKey: "sk-1", TavilyAPIKey: "tv-1", SessionBackend: "redis"}
	p := cfg.Validate()

	assert.Equal(t, "configured", p.LLM)
	assert.Equal(t, "missing", p.Storage)
	assert.Equal(t, "configured", p.WebSearch)
	assert.Equal(t, "error", p.Cache, "a selected cache is not connected until a live ping says so")
}
