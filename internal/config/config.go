package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Places    PlacesConfig    `yaml:"places" mapstructure:"places"`
	SerpAPI   SerpAPIConfig   `yaml:"serpapi" mapstructure:"serpapi"`
	Email     EmailConfig     `yaml:"email" mapstructure:"email"`
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Providers ProvidersConfig `yaml:"providers" mapstructure:"providers"`
	Scorer    ScorerConfig    `yaml:"scorer" mapstructure:"scorer"`
	Worker    WorkerConfig    `yaml:"worker" mapstructure:"worker"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the intake API server.
type ServerConfig struct {
	Port    int    `yaml:"port" mapstructure:"port"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// AnthropicConfig holds Anthropic API settings for profile synthesis.
type AnthropicConfig struct {
	Key         string  `yaml:"key" mapstructure:"key"`
	Model       string  `yaml:"model" mapstructure:"model"`
	MaxTokens   int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
}

// PlacesConfig holds Google Places API settings for business listings.
type PlacesConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// SerpAPIConfig holds SerpAPI settings for job-posting scans.
type SerpAPIConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// EmailConfig holds Resend settings for outbound notifications.
type EmailConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	From    string `yaml:"from" mapstructure:"from"`
}

// RateLimitConfig configures intake rate limiting per client IP.
type RateLimitConfig struct {
	MaxPerWindow int           `yaml:"max_per_window" mapstructure:"max_per_window"`
	Window       time.Duration `yaml:"window" mapstructure:"window"`
}

// CacheConfig configures the URL-keyed profile cache.
type CacheConfig struct {
	TTL time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// ProvidersConfig configures data-provider fan-out behavior.
type ProvidersConfig struct {
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent string        `yaml:"user_agent" mapstructure:"user_agent"`
	// RatePerSecond throttles outbound provider HTTP calls.
	RatePerSecond float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
}

// ScorerConfig configures the data-sufficiency scorer.
type ScorerConfig struct {
	// WeightsFile optionally overrides the built-in weight table.
	WeightsFile string `yaml:"weights_file" mapstructure:"weights_file"`
}

// WorkerConfig configures the background submission worker pool.
type WorkerConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
	QueueSize   int `yaml:"queue_size" mapstructure:"queue_size"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("HARNESS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:3000")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 2500)
	v.SetDefault("anthropic.temperature", 0.3)
	v.SetDefault("places.base_url", "https://places.googleapis.com/v1")
	v.SetDefault("serpapi.base_url", "https://serpapi.com")
	v.SetDefault("email.base_url", "https://api.resend.com")
	v.SetDefault("email.from", "HarnessAI <noreply@harnessai.co>")
	v.SetDefault("rate_limit.max_per_window", 10)
	v.SetDefault("rate_limit.window", time.Hour)
	v.SetDefault("cache.ttl", 24*time.Hour)
	v.SetDefault("providers.timeout", 10*time.Second)
	v.SetDefault("providers.user_agent", "Mozilla/5.0 (compatible; HarnessAI/1.0; +https://harnessai.co)")
	v.SetDefault("providers.rate_per_second", 4.0)
	v.SetDefault("worker.concurrency", 4)
	v.SetDefault("worker.queue_size", 64)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
