package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Keys that are read outside this package
const (
	KeySenderRules = "scoring.sender_rules"
	KeyMailbox     = "mailbox"
)

// Config represents the application configuration
type Config struct {
	v *viper.Viper
}

// New creates a new configuration instance
func New() (*Config, error) {
	return NewWithFile("")
}

// NewWithFile creates a configuration instance, reading the given file
// instead of searching the default locations when path is not empty
func NewWithFile(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/mail-priority/")
		v.AddConfigPath("$HOME/.mail-priority")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvPrefix("MAIL_PRIORITY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, using defaults
	}

	return &Config{v: v}, nil
}

// NewFromViper creates a new configuration instance from an existing Viper instance
func NewFromViper(v *viper.Viper) *Config {
	return &Config{v: v}
}

// NewEmptyViper creates a new Viper instance with defaults
func NewEmptyViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyMailbox, "me")

	// Message source
	v.SetDefault("source.type", "graph")
	v.SetDefault("source.path", "")

	// Microsoft Graph
	v.SetDefault("graph.tenant_id", "")
	v.SetDefault("graph.client_id", "")
	v.SetDefault("graph.client_secret", "")
	v.SetDefault("graph.user", "")
	v.SetDefault("graph.base_url", "https://graph.microsoft.com/v1.0")
	v.SetDefault("graph.page_size", 25)
	v.SetDefault("graph.max_pages", 20)
	v.SetDefault("graph.timeout", "30s")
	v.SetDefault("graph.breaker.max_failures", 5)
	v.SetDefault("graph.breaker.open_timeout", "60s")

	// Scoring
	v.SetDefault("scoring.limit", 5)
	v.SetDefault("scoring.include_unqualified", false)
	v.SetDefault("scoring.high_importance_bonus", 3.0)
	v.SetDefault("scoring.low_importance_penalty", 1.0)
	v.SetDefault("scoring.flagged_bonus", 1.0)
	v.SetDefault("scoring.overdue_bonus", 3.0)
	v.SetDefault("scoring.due_soon_bonus", 2.0)
	v.SetDefault("scoring.due_later_bonus", 1.0)
	v.SetDefault("scoring.recent_bonus", 1.0)
	v.SetDefault("scoring.due_soon_window", "24h")
	v.SetDefault("scoring.due_later_window", "48h")
	v.SetDefault("scoring.recent_window", "4h")

	// Cache
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.ttl", "1h")
	v.SetDefault("cache.cleanup_frequency", "10m")
	v.SetDefault("cache.sqlite_path", "/data/priority_digests.db")
	v.SetDefault("cache.mysql_dsn", "user:password@tcp(localhost:3306)/mail_priority")
	v.SetDefault("cache.redis_url", "redis://localhost:6379/0")

	// Briefing summarizer
	v.SetDefault("llm.provider", "none")

	v.SetDefault("bedrock.region", "us-east-1")
	v.SetDefault("bedrock.model_id", "anthropic.claude-v2")
	v.SetDefault("bedrock.max_tokens", 400)
	v.SetDefault("bedrock.temperature", 0.2)
	v.SetDefault("bedrock.top_p", 0.9)
	v.SetDefault("bedrock.max_body_size", 4096)

	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model_name", "gemini-pro")
	v.SetDefault("gemini.max_tokens", 400)
	v.SetDefault("gemini.temperature", 0.2)
	v.SetDefault("gemini.top_p", 0.9)
	v.SetDefault("gemini.max_body_size", 4096)

	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("openai.model_name", "gpt-4o-mini")
	v.SetDefault("openai.max_tokens", 400)
	v.SetDefault("openai.temperature", 0.2)
	v.SetDefault("openai.top_p", 0.9)
	v.SetDefault("openai.max_body_size", 4096)

	// SMTP priority filter
	v.SetDefault("server.filter_type", "postfix")
	v.SetDefault("server.listen_address", "0.0.0.0:10026")
	v.SetDefault("server.headers.score", "X-Priority-Score")
	v.SetDefault("server.headers.reasons", "X-Priority-Reasons")
	v.SetDefault("server.highlight_threshold", 5.0)
	v.SetDefault("server.modify_subject", false)
	v.SetDefault("server.subject_prefix", "[PRIORITY] ")
	v.SetDefault("server.postfix.enabled", true)
	v.SetDefault("server.postfix.address", "127.0.0.1")
	v.SetDefault("server.postfix.port", 10027)

	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Get returns the raw value for a key
func (c *Config) Get(key string) interface{} {
	return c.v.Get(key)
}

// GetString gets a string value from the configuration
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt gets an integer value from the configuration
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetFloat64 gets a float64 value from the configuration
func (c *Config) GetFloat64(key string) float64 {
	return c.v.GetFloat64(key)
}

// GetBool gets a boolean value from the configuration
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetStringSlice gets a string slice value from the configuration
func (c *Config) GetStringSlice(key string) []string {
	return c.v.GetStringSlice(key)
}

// GetDuration gets a duration value from the configuration
func (c *Config) GetDuration(key string) (time.Duration, error) {
	d, err := time.ParseDuration(c.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %w", key, err)
	}
	return d, nil
}

// GetViper returns the underlying Viper instance
func (c *Config) GetViper() *viper.Viper {
	return c.v
}
