// Package config loads service configuration from defaults, an optional YAML
// file and JAIMINHO_* environment variables, and validates the result.
package config

import "time"

// Config is the full service configuration.
type Config struct {
	Logger     LoggerConfig     `mapstructure:"logger"`
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Tenant     TenantConfig     `mapstructure:"tenant"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Audit      AuditConfig      `mapstructure:"audit"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
}

type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"             validate:"required"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"     validate:"min=1s"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"    validate:"min=1s"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=1s"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"   validate:"min=1024"`
	// RateLimit is the number of webhook requests allowed per instance per RateWindow.
	RateLimit  int           `mapstructure:"rate_limit"  validate:"min=1"`
	RateWindow time.Duration `mapstructure:"rate_window" validate:"min=1s"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

type TenantConfig struct {
	CacheCapacity int `mapstructure:"cache_capacity" validate:"min=1"`
}

// ClassifierConfig selects and tunes the external LLM classifier.
// Provider "none" disables it and every escalation uses the conservative default.
type ClassifierConfig struct {
	Provider    string        `mapstructure:"provider"    validate:"oneof=none gemini openai anthropic"`
	APIKey      string        `mapstructure:"api_key"     validate:"required_unless=Provider none"`
	Model       string        `mapstructure:"model"`
	BaseURL     string        `mapstructure:"base_url"    validate:"omitempty,url"`
	Temperature float32       `mapstructure:"temperature" validate:"min=0,max=2"`
	MaxTokens   int           `mapstructure:"max_tokens"  validate:"min=64,max=8192"`
	Timeout     time.Duration `mapstructure:"timeout"     validate:"min=100ms,max=2m"`
	MaxRetries  int           `mapstructure:"max_retries" validate:"min=0,max=10"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"`

	BreakerMaxFailures   int           `mapstructure:"breaker_max_failures"   validate:"min=1"`
	BreakerResetInterval time.Duration `mapstructure:"breaker_reset_interval" validate:"min=1s"`
}

type AuditConfig struct {
	Retention time.Duration `mapstructure:"retention" validate:"min=1h"`
}

type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks" validate:"dive"`
}

// TaskConfig enables a registered task on a cron schedule with a seconds field.
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule" validate:"required_if=Enabled true"`
}
