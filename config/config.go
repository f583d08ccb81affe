// Package config loads service configuration from the environment, with an
// optional YAML file as the base layer. Environment variables always win so
// container deployments can override a mounted file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvConfigFile names the environment variable pointing at the optional
// YAML configuration file.
const EnvConfigFile = "RESEARCHD_CONFIG"

// Defaults applied before the file and environment layers.
const (
	DefaultPort          = 8000
	DefaultOpenAIModel   = "gpt-4o-mini"
	DefaultBucket        = "pharma_research_files"
	DefaultMaxAgentTurns = 7
	DefaultMaxModelCalls = 15
)

// Config holds every tunable of the research service.
type Config struct {
	Port int `yaml:"port"`

	// LLM providers.
	LLMProvider     string `yaml:"llm_provider"` // "openai" or "anthropic"; empty auto-detects
	OpenAIAPIKey    string `yaml:"openai_api_key"`
	OpenAIBaseURL   string `yaml:"openai_base_url"`
	OpenAIModel     string `yaml:"openai_model"`
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	AnthropicModel  string `yaml:"anthropic_model"`

	// Web search.
	TavilyAPIKey string `yaml:"tavily_api_key"`

	// File storage.
	StorageBackend string `yaml:"storage_backend"` // "supabase", "s3" or "memory"; empty auto-detects
	SupabaseURL    string `yaml:"supabase_url"`
	SupabaseKey    string `yaml:"supabase_key"`
	SupabaseBucket string `yaml:"supabase_bucket_name"`
	AWSRegion      string `yaml:"aws_region"`
	AWSS3Bucket    string `yaml:"aws_s3_bucket"`
	AWSEndpointURL string `yaml:"aws_endpoint_url"`

	// Sessions.
	SessionBackend string `yaml:"session_backend"` // "memory" or "redis"
	RedisHost      string `yaml:"redis_host"`
	RedisPort      int    `yaml:"redis_port"`
	RedisPassword  string `yaml:"redis_password"`

	// Run limits.
	MaxAgentTurns int `yaml:"max_agent_turns"`
	MaxModelCalls int `yaml:"max_model_calls"`
}

// Load builds the configuration: defaults, then the YAML file named by
// RESEARCHD_CONFIG (if set), then environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:           DefaultPort,
		OpenAIModel:    DefaultOpenAIModel,
		SupabaseBucket: DefaultBucket,
		RedisHost:      "localhost",
		RedisPort:      6379,
		MaxAgentTurns:  DefaultMaxAgentTurns,
		MaxModelCalls:  DefaultMaxModelCalls,
	}

	if path := os.Getenv(EnvConfigFile); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %q: %w", path, err)
		}
	}

	cfg.applyEnv()

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d", cfg.Port)
	}
	if cfg.MaxAgentTurns <= 0 {
		cfg.MaxAgentTurns = DefaultMaxAgentTurns
	}
	if cfg.MaxModelCalls <= 0 {
		cfg.MaxModelCalls = DefaultMaxModelCalls
	}

	return cfg, nil
}

func (c *Config) applyEnv() {
	envInt("PORT", &c.Port)

	envStr("LLM_PROVIDER", &c.LLMProvider)
	envStr("OPENAI_API_KEY", &c.OpenAIAPIKey)
	envStr("OPENAI_BASE_URL", &c.OpenAIBaseURL)
	envStr("OPENAI_MODEL", &c.OpenAIModel)
	envStr("ANTHROPIC_API_KEY", &c.AnthropicAPIKey)
	envStr("ANTHROPIC_MODEL", &c.AnthropicModel)

	envStr("TAVILY_API_KEY", &c.TavilyAPIKey)

	envStr("STORAGE_BACKEND", &c.StorageBackend)
	envStr("SUPABASE_URL", &c.SupabaseURL)
	envStr("SUPABASE_KEY", &c.SupabaseKey)
	envStr("SUPABASE_BUCKET_NAME", &c.SupabaseBucket)
	envStr("AWS_REGION", &c.AWSRegion)
	envStr("AWS_S3_BUCKET", &c.AWSS3Bucket)
	envStr("AWS_ENDPOINT_URL", &c.AWSEndpointURL)

	envStr("SESSION_BACKEND", &c.SessionBackend)
	envStr("REDIS_HOST", &c.RedisHost)
	envInt("REDIS_PORT", &c.RedisPort)
	envStr("REDIS_PASSWORD", &c.RedisPassword)

	envInt("MAX_AGENT_TURNS", &c.MaxAgentTurns)
	envInt("MAX_MODEL_CALLS", &c.MaxModelCalls)
}

func envStr(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		*dst = strings.TrimSpace(v)
	}
}

func envInt(key string, dst *int) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			*dst = n
		}
	}
}

// ResolvedLLMProvider returns the provider to use: the explicit setting, or
// whichever provider has a key configured (OpenAI preferred).
func (c *Config) ResolvedLLMProvider() string {
	switch strings.ToLower(c.LLMProvider) {
	case "openai", "anthropic":
		return strings.ToLower(c.LLMProvider)
	}
	if c.OpenAIAPIKey != "" {
		return "openai"
	}
	if c.AnthropicAPIKey != "" {
		return "anthropic"
	}
	return "openai"
}

// LLMConfigured reports whether the resolved provider has a credential.
func (c *Config) LLMConfigured() bool {
	switch c.ResolvedLLMProvider() {
	case "anthropic":
		return c.AnthropicAPIKey != ""
	default:
		return c.OpenAIAPIKey != ""
	}
}

// ResolvedStorageBackend returns the file storage backend to use: the
// explicit setting, else Supabase when its credentials are present, else S3
// when a bucket is named, else in-memory.
func (c *Config) ResolvedStorageBackend() string {
	switch strings.ToLower(c.StorageBackend) {
	case "supabase", "s3", "memory":
		return strings.ToLower(c.StorageBackend)
	}
	if c.SupabaseURL != "" && c.SupabaseKey != "" {
		return "supabase"
	}
	if c.AWSS3Bucket != "" {
		return "s3"
	}
	return "memory"
}

// StorageConfigured reports whether a durable file store is available.
func (c *Config) StorageConfigured() bool {
	switch c.ResolvedStorageBackend() {
	case "supabase":
		return c.SupabaseURL != "" && c.SupabaseKey != ""
	case "s3":
		return c.AWSS3Bucket != ""
	default:
		return false
	}
}

// ResolvedSessionBackend returns "redis" only when explicitly selected.
func (c *Config) ResolvedSessionBackend() string {
	if strings.ToLower(c.SessionBackend) == "redis" {
		return "redis"
	}
	return "memory"
}

// RedisAddr returns the host:port for the session cache.
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Providers summarizes configured backends for the health endpoint.
type Providers struct {
	LLM       string `json:"llm"`
	Storage   string `json:"storage"`
	WebSearch string `json:"web_search"`
	Cache     string `json:"cache"`
}

// Validate reports configured/missing per provider. The report is
// informational; the service starts regardless and fails per-request where
// a provider is actually required.
func (c *Config) Validate() Providers {
	p := Providers{LLM: "missing", Storage: "missing", WebSearch: "missing", Cache: "disabled"}
	if c.LLMConfigured() {
		p.LLM = "configured"
	}
	if c.StorageConfigured() {
		p.Storage = "configured"
	}
	if c.TavilyAPIKey != "" {
		p.WebSearch = "configured"
	}
	if c.ResolvedSessionBackend() == "redis" {
		// Config alone cannot see the live connection. The health endpoint
		// overlays this with a ping result; until then a selected cache
		// whose state is unknown reads as an error, never as connected.
		p.Cache = "error"
	}
	return p
}
