package config

import (
	"time"

	"github.com/mikey/mail-priority/internal/core"
)

// SourceConfig selects where messages come from
type SourceConfig struct {
	Type string
	Path string
}

// GraphConfig represents the configuration for Microsoft Graph
type GraphConfig struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	User         string
	BaseURL      string
	PageSize     int
	MaxPages     int
	Timeout      time.Duration
	MaxFailures  uint32
	OpenTimeout  time.Duration
}

// CacheConfig represents the configuration of the digest store
type CacheConfig struct {
	Type             string
	Enabled          bool
	TTL              time.Duration
	CleanupFrequency time.Duration
	SQLitePath       string
	MySQLDSN         string
	RedisURL         string
}

// LLMConfig represents the configuration for the LLM provider
type LLMConfig struct {
	Provider string
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// OpenAIConfig represents the configuration for OpenAI
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// ServerConfig represents the configuration of the SMTP priority filter
type ServerConfig struct {
	ListenAddress      string
	ScoreHeader        string
	ReasonsHeader      string
	HighlightThreshold float64
	ModifySubject      bool
	SubjectPrefix      string
	PostfixEnabled     bool
	PostfixAddress     string
	PostfixPort        int
}

// GetSource returns the message source configuration
func (c *Config) GetSource() SourceConfig {
	return SourceConfig{
		Type: c.GetString("source.type"),
		Path: c.GetString("source.path"),
	}
}

// GetGraph returns the Microsoft Graph configuration
func (c *Config) GetGraph() (GraphConfig, error) {
	timeout, err := c.GetDuration("graph.timeout")
	if err != nil {
		return GraphConfig{}, err
	}
	openTimeout, err := c.GetDuration("graph.breaker.open_timeout")
	if err != nil {
		return GraphConfig{}, err
	}
	return GraphConfig{
		TenantID:     c.GetString("graph.tenant_id"),
		ClientID:     c.GetString("graph.client_id"),
		ClientSecret: c.GetString("graph.client_secret"),
		User:         c.GetString("graph.user"),
		BaseURL:      c.GetString("graph.base_url"),
		PageSize:     c.GetInt("graph.page_size"),
		MaxPages:     c.GetInt("graph.max_pages"),
		Timeout:      timeout,
		MaxFailures:  uint32(c.GetInt("graph.breaker.max_failures")),
		OpenTimeout:  openTimeout,
	}, nil
}

// GetScoring returns the scoring weights
func (c *Config) GetScoring() (core.Weights, error) {
	w := core.Weights{
		HighImportanceBonus:  c.GetFloat64("scoring.high_importance_bonus"),
		LowImportancePenalty: c.GetFloat64("scoring.low_importance_penalty"),
		FlaggedBonus:         c.GetFloat64("scoring.flagged_bonus"),
		OverdueBonus:         c.GetFloat64("scoring.overdue_bonus"),
		DueSoonBonus:         c.GetFloat64("scoring.due_soon_bonus"),
		DueLaterBonus:        c.GetFloat64("scoring.due_later_bonus"),
		RecentBonus:          c.GetFloat64("scoring.recent_bonus"),
		IncludeUnqualified:   c.GetBool("scoring.include_unqualified"),
	}

	var err error
	if w.DueSoonWindow, err = c.GetDuration("scoring.due_soon_window"); err != nil {
		return core.Weights{}, err
	}
	if w.DueLaterWindow, err = c.GetDuration("scoring.due_later_window"); err != nil {
		return core.Weights{}, err
	}
	if w.RecentWindow, err = c.GetDuration("scoring.recent_window"); err != nil {
		return core.Weights{}, err
	}
	return w, nil
}

// GetCache returns the digest store configuration
func (c *Config) GetCache() (CacheConfig, error) {
	ttl, err := c.GetDuration("cache.ttl")
	if err != nil {
		return CacheConfig{}, err
	}
	cleanup, err := c.GetDuration("cache.cleanup_frequency")
	if err != nil {
		return CacheConfig{}, err
	}
	return CacheConfig{
		Type:             c.GetString("cache.type"),
		Enabled:          c.GetBool("cache.enabled"),
		TTL:              ttl,
		CleanupFrequency: cleanup,
		SQLitePath:       c.GetString("cache.sqlite_path"),
		MySQLDSN:         c.GetString("cache.mysql_dsn"),
		RedisURL:         c.GetString("cache.redis_url"),
	}, nil
}

// GetLLM returns the LLM configuration
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		Provider: c.GetString("llm.provider"),
	}
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:      c.GetString("bedrock.region"),
		ModelID:     c.GetString("bedrock.model_id"),
		MaxTokens:   c.GetInt("bedrock.max_tokens"),
		Temperature: float32(c.GetFloat64("bedrock.temperature")),
		TopP:        float32(c.GetFloat64("bedrock.top_p")),
		MaxBodySize: c.GetInt("bedrock.max_body_size"),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:      c.GetString("gemini.api_key"),
		ModelName:   c.GetString("gemini.model_name"),
		MaxTokens:   c.GetInt("gemini.max_tokens"),
		Temperature: float32(c.GetFloat64("gemini.temperature")),
		TopP:        float32(c.GetFloat64("gemini.top_p")),
		MaxBodySize: c.GetInt("gemini.max_body_size"),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:      c.GetString("openai.api_key"),
		BaseURL:     c.GetString("openai.base_url"),
		ModelName:   c.GetString("openai.model_name"),
		MaxTokens:   c.GetInt("openai.max_tokens"),
		Temperature: float32(c.GetFloat64("openai.temperature")),
		TopP:        float32(c.GetFloat64("openai.top_p")),
		MaxBodySize: c.GetInt("openai.max_body_size"),
	}
}

// GetServer returns the SMTP priority filter configuration
func (c *Config) GetServer() ServerConfig {
	return ServerConfig{
		ListenAddress:      c.GetString("server.listen_address"),
		ScoreHeader:        c.GetString("server.headers.score"),
		ReasonsHeader:      c.GetString("server.headers.reasons"),
		HighlightThreshold: c.GetFloat64("server.highlight_threshold"),
		ModifySubject:      c.GetBool("server.modify_subject"),
		SubjectPrefix:      c.GetString("server.subject_prefix"),
		PostfixEnabled:     c.GetBool("server.postfix.enabled"),
		PostfixAddress:     c.GetString("server.postfix.address"),
		PostfixPort:        c.GetInt("server.postfix.port"),
	}
}
