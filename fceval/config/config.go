package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	internal "github.com/ZanzyTHEbar/fceval/fceval"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Eval     EvalConfig     `mapstructure:"eval"`
	Provider ProviderConfig `mapstructure:"provider"`
	Harness  HarnessConfig  `mapstructure:"harness"`
	Store    StoreConfig    `mapstructure:"store"`
	Log      LogConfig      `mapstructure:"log"`
}

// EvalConfig selects the data and how it is graded.
type EvalConfig struct {
	SamplesDir      string   `mapstructure:"samples_dir"`      // Directory holding <category>_FC.json
	AnswersDir      string   `mapstructure:"answers_dir"`      // Directory holding <category>_FC_answers.json
	Categories      []string `mapstructure:"categories"`       // Categories evaluated by a full run
	Concurrency     int      `mapstructure:"concurrency"`      // Items evaluated in parallel
	Strategy        string   `mapstructure:"strategy"`         // "first_fit" or "maximum"
	ValidateCatalog bool     `mapstructure:"validate_catalog"` // Reject malformed function descriptions up front
}

// ProviderConfig describes the OpenAI-compatible completion endpoint.
type ProviderConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Temperature float32       `mapstructure:"temperature"`
	TopP        float32       `mapstructure:"top_p"`
	MaxTokens   int           `mapstructure:"max_tokens"` // 0 leaves the provider default
	Timeout     time.Duration `mapstructure:"timeout"`    // Per request
}

// HarnessConfig stores the completion harness settings.
type HarnessConfig struct {
	// Cache settings
	CacheEnabled    bool `mapstructure:"cache_enabled"`     // Enable completion caching
	CacheCapacity   int  `mapstructure:"cache_capacity"`    // LRU cache capacity
	CacheTTLSeconds int  `mapstructure:"cache_ttl_seconds"` // Cache entry TTL

	// Rate limiting
	RateLimitEnabled    bool          `mapstructure:"rate_limit_enabled"`     // Enable rate limiting
	RateLimitCapacity   int           `mapstructure:"rate_limit_capacity"`    // Token bucket capacity
	RateLimitRefillRate time.Duration `mapstructure:"rate_limit_refill_rate"` // Refill rate

	// Policies
	MaxOutputSize int `mapstructure:"max_output_size"` // Completions longer than this fail as conversion errors

	// Telemetry
	EnableTracing bool `mapstructure:"enable_tracing"` // Enable structured logging/tracing
}

// DatabaseConfig stores database connection details.
type DatabaseConfig struct {
	DSN  string `mapstructure:"dsn"`
	Type string `mapstructure:"type"`
	// Embedded-only configuration
	LibSQLDataDir string `mapstructure:"libsql_data_dir"` // Directory for database files
}

// StoreConfig controls result persistence.
type StoreConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Database DatabaseConfig `mapstructure:"database"`
}

// LogConfig controls the CLI logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// ErrNoConfigFile is returned by WatchConfig when there is no file to watch.
var ErrNoConfigFile = errors.New("no config file in use")

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(configPath string) (*Config, error) {
	v := newViper(configPath)
	return load(v)
}

// WatchConfig loads configuration and reloads it whenever the file changes. onChange
// receives the freshly decoded config; a reload that fails to decode is logged and
// skipped.
func WatchConfig(configPath string, logger zerolog.Logger, onChange func(*Config, fsnotify.Event)) (*Config, error) {
	v := newViper(configPath)
	cfg, err := load(v)
	if err != nil {
		return nil, err
	}
	if v.ConfigFileUsed() == "" {
		return cfg, ErrNoConfigFile
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		logger.Info().Str("file", e.Name).Str("op", e.Op.String()).Msg("Config file changed")
		var next Config
		if err := v.Unmarshal(&next); err != nil {
			logger.Warn().Err(err).Msg("Failed to decode reloaded config")
			return
		}
		if err := next.Validate(); err != nil {
			logger.Warn().Err(err).Msg("Ignoring invalid reloaded config")
			return
		}
		onChange(&next, e)
	})
	v.WatchConfig()
	return cfg, nil
}

func newViper(configPath string) *viper.Viper {
	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("..")
		v.AddConfigPath(filepath.Join("etc", internal.DefaultAppName))
		v.AddConfigPath(internal.DefaultConfigPath)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	// Eval defaults
	v.SetDefault("eval.samples_dir", "FC-samples")
	v.SetDefault("eval.answers_dir", "FC-answers")
	v.SetDefault("eval.categories", []string{"simple", "parallel", "multiple"})
	v.SetDefault("eval.concurrency", 4)
	v.SetDefault("eval.strategy", "first_fit")
	v.SetDefault("eval.validate_catalog", true)

	// Provider defaults
	v.SetDefault("provider.base_url", "https://api.siliconflow.cn/v1")
	v.SetDefault("provider.api_key", "")
	v.SetDefault("provider.model", "THUDM/glm-4-9b-chat")
	v.SetDefault("provider.temperature", 0.0)
	v.SetDefault("provider.top_p", 0.95)
	v.SetDefault("provider.max_tokens", 0)
	v.SetDefault("provider.timeout", "60s")

	// Harness defaults
	v.SetDefault("harness.cache_enabled", true)
	v.SetDefault("harness.cache_capacity", 1000)
	v.SetDefault("harness.cache_ttl_seconds", 3600) // 1 hour
	v.SetDefault("harness.rate_limit_enabled", true)
	v.SetDefault("harness.rate_limit_capacity", 10)
	v.SetDefault("harness.rate_limit_refill_rate", "1s")
	v.SetDefault("harness.max_output_size", 10000) // 10KB
	v.SetDefault("harness.enable_tracing", true)

	// Result store, LibSQL embedded only
	v.SetDefault("store.enabled", true)
	v.SetDefault("store.database.dsn", internal.DefaultDatabaseDSN)
	v.SetDefault("store.database.type", internal.DefaultDatabaseType)
	v.SetDefault("store.database.libsql_data_dir", internal.DefaultDatabaseDir)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", true)

	v.SetEnvPrefix(internal.DefaultEnvPrefix)
	v.AutomaticEnv()
	// Replace dots with underscores in env var names e.g. provider.api_key becomes FCEVAL_PROVIDER_API_KEY
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	_ = v.BindEnv("provider.api_key", "FCEVAL_PROVIDER_API_KEY", "OPENAI_API_KEY")

	return v
}

func load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found; defaults and environment apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the runner cannot work with.
func (c *Config) Validate() error {
	if c.Eval.Concurrency < 1 {
		return fmt.Errorf("eval.concurrency must be at least 1, got %d", c.Eval.Concurrency)
	}
	switch c.Eval.Strategy {
	case "first_fit", "maximum":
	default:
		return fmt.Errorf("eval.strategy must be first_fit or maximum, got %q", c.Eval.Strategy)
	}
	if len(c.Eval.Categories) == 0 {
		return fmt.Errorf("eval.categories must not be empty")
	}
	if c.Harness.RateLimitEnabled && (c.Harness.RateLimitCapacity < 1 || c.Harness.RateLimitRefillRate <= 0) {
		return fmt.Errorf("rate limiting needs a positive capacity and refill rate")
	}
	return nil
}

// ParseLevel maps log.level onto a zerolog level, defaulting to info.
func (c LogConfig) ParseLevel() zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.Level))
	if err != nil || c.Level == "" {
		return zerolog.InfoLevel
	}
	return lvl
}
