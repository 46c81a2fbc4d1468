package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// MaxRetriesLimit is the largest accepted MAX_RETRIES
const MaxRetriesLimit = 10

// Config holds all configuration for the render worker
type Config struct {
	// Worker configuration
	WorkerID string `env:"WORKER_ID" envDefault:"render-1"`

	// Redis configuration
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASS" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Stream configuration
	StreamKey     string        `env:"STREAM_KEY" envDefault:"render.work"`
	ConsumerGroup string        `env:"CONSUMER_GROUP" envDefault:"render-workers"`
	ResultStream  string        `env:"RESULT_STREAM" envDefault:"render.done"`
	BlockTime     time.Duration `env:"BLOCK_TIME" envDefault:"1s"`
	MaxRetries    int           `env:"MAX_RETRIES" envDefault:"3"`

	// Rendering configuration
	DefaultEngine string `env:"DEFAULT_ENGINE" envDefault:"auto"`
	MaxDepth      int    `env:"MAX_DEPTH" envDefault:"64"`
	CELEnabled    bool   `env:"CEL_ENABLED" envDefault:"true"`

	// Storage configuration
	TemplateStore  string        `env:"TEMPLATE_STORE" envDefault:"memory"`
	TemplateDBPath string        `env:"TEMPLATE_DB_PATH" envDefault:"templates.db"`
	TemplateDir    string        `env:"TEMPLATE_DIR"`
	StateTTL       time.Duration `env:"STATE_TTL" envDefault:"24h"`

	// Health check configuration
	HealthPort int `env:"HEALTH_PORT" envDefault:"8083"`

	// Logging configuration
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.WorkerID == "" {
		return fmt.Errorf("WORKER_ID is required")
	}

	if c.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR is required")
	}

	if c.StreamKey == "" {
		return fmt.Errorf("STREAM_KEY is required")
	}

	if c.ConsumerGroup == "" {
		return fmt.Errorf("CONSUMER_GROUP is required")
	}

	if c.ResultStream == "" {
		return fmt.Errorf("RESULT_STREAM is required")
	}

	if c.ResultStream == c.StreamKey {
		return fmt.Errorf("RESULT_STREAM must differ from STREAM_KEY")
	}

	if c.BlockTime <= 0 {
		return fmt.Errorf("BLOCK_TIME must be positive")
	}

	if c.MaxRetries < 0 || c.MaxRetries > MaxRetriesLimit {
		return fmt.Errorf("MAX_RETRIES must be between 0 and %d", MaxRetriesLimit)
	}

	if !isOneOf(c.DefaultEngine, "auto", "directive", "handlebars") {
		return fmt.Errorf("DEFAULT_ENGINE must be one of: auto, directive, handlebars")
	}

	if c.MaxDepth <= 0 {
		return fmt.Errorf("MAX_DEPTH must be positive")
	}

	if !isOneOf(c.TemplateStore, "memory", "sqlite", "redis") {
		return fmt.Errorf("TEMPLATE_STORE must be one of: memory, sqlite, redis")
	}

	if c.TemplateStore == "sqlite" && c.TemplateDBPath == "" {
		return fmt.Errorf("TEMPLATE_DB_PATH is required when TEMPLATE_STORE is sqlite")
	}

	if c.StateTTL < 0 {
		return fmt.Errorf("STATE_TTL must be non-negative")
	}

	if c.HealthPort <= 0 || c.HealthPort > 65535 {
		return fmt.Errorf("HEALTH_PORT must be between 1 and 65535")
	}

	if !isOneOf(c.LogLevel, "debug", "info", "warn", "error") {
		return fmt.Errorf("LOG_LEVEL must be one of: debug, info, warn, error")
	}

	return nil
}

// isOneOf checks if value is one of the allowed values
func isOneOf(value string, allowed ...string) bool {
	for _, a := range allowed {
		if value == a {
			return true
		}
	}
	return false
}

// ErrorStream returns the stream that receives failed render jobs
func (c *Config) ErrorStream() string {
	return c.ResultStream + ".errors"
}

// String returns a string representation of the config (without sensitive data)
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{WorkerID=%s, RedisAddr=%s, RedisDB=%d, StreamKey=%s, ConsumerGroup=%s, ResultStream=%s, "+
			"DefaultEngine=%s, MaxDepth=%d, CELEnabled=%v, TemplateStore=%s, TemplateDir=%s, HealthPort=%d, LogLevel=%s}",
		c.WorkerID,
		c.RedisAddr,
		c.RedisDB,
		c.StreamKey,
		c.ConsumerGroup,
		c.ResultStream,
		c.DefaultEngine,
		c.MaxDepth,
		c.CELEnabled,
		c.TemplateStore,
		c.TemplateDir,
		c.HealthPort,
		c.LogLevel,
	)
}
