package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Generation GenerationConfig `yaml:"generation" mapstructure:"generation"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Match      MatchConfig      `yaml:"match" mapstructure:"match"`
	Seed       SeedConfig       `yaml:"seed" mapstructure:"seed"`
	Salesforce SalesforceConfig `yaml:"salesforce" mapstructure:"salesforce"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key             string `yaml:"key" mapstructure:"key"`
	Model           string `yaml:"model" mapstructure:"model"`
	MaxTokens       int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
	ImpactMaxTokens int64  `yaml:"impact_max_tokens" mapstructure:"impact_max_tokens"`
	CacheTTL        string `yaml:"cache_ttl" mapstructure:"cache_ttl"`
}

// GenerationConfig tunes the generation orchestrator and its provider calls.
type GenerationConfig struct {
	ImpactMaxIndustries int `yaml:"impact_max_industries" mapstructure:"impact_max_industries"`
	CallTimeoutSecs     int `yaml:"call_timeout_secs" mapstructure:"call_timeout_secs"`
	RetryAttempts       int `yaml:"retry_attempts" mapstructure:"retry_attempts"`
	RetryBackoffMs      int `yaml:"retry_backoff_ms" mapstructure:"retry_backoff_ms"`
	RetryMaxBackoffMs   int `yaml:"retry_max_backoff_ms" mapstructure:"retry_max_backoff_ms"`
	CircuitThreshold    int `yaml:"circuit_threshold" mapstructure:"circuit_threshold"`
	CircuitResetSecs    int `yaml:"circuit_reset_secs" mapstructure:"circuit_reset_secs"`
}

// CallTimeout returns the per-call provider timeout.
func (g GenerationConfig) CallTimeout() time.Duration {
	return time.Duration(g.CallTimeoutSecs) * time.Second
}

// RetryBackoff returns the initial and maximum retry backoff.
func (g GenerationConfig) RetryBackoff() (time.Duration, time.Duration) {
	return time.Duration(g.RetryBackoffMs) * time.Millisecond, time.Duration(g.RetryMaxBackoffMs) * time.Millisecond
}

// CircuitReset returns how long the provider circuit stays open.
func (g GenerationConfig) CircuitReset() time.Duration {
	return time.Duration(g.CircuitResetSecs) * time.Second
}

// CacheConfig tunes the snapshot cache adapter.
type CacheConfig struct {
	CASRetries int `yaml:"cas_retries" mapstructure:"cas_retries"`
}

// MatchConfig tunes the fuzzy industry matcher.
type MatchConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold" mapstructure:"similarity_threshold"`
}

// SeedConfig points at an alternative seed catalog. Empty uses the bundled one.
type SeedConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// SalesforceConfig holds Salesforce JWT auth settings.
type SalesforceConfig struct {
	ClientID  string  `yaml:"client_id" mapstructure:"client_id"`
	Username  string  `yaml:"username" mapstructure:"username"`
	KeyPath   string  `yaml:"key_path" mapstructure:"key_path"`
	LoginURL  string  `yaml:"login_url" mapstructure:"login_url"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// LoadOption adjusts how Load finds its settings.
type LoadOption func(v *viper.Viper) error

// WithFile reads settings from path instead of ./config.yaml. An explicit
// file that does not exist is an error.
func WithFile(path string) LoadOption {
	return func(v *viper.Viper) error {
		if path != "" {
			v.SetConfigFile(path)
		}
		return nil
	}
}

// FlagKeys maps command line flag names to the config keys they override.
var FlagKeys = map[string]string{
	"store-driver": "store.driver",
	"database-url": "store.database_url",
	"seed":         "seed.path",
	"log-level":    "log.level",
}

// WithFlags binds the flags in FlagKeys that fs defines. A flag the user set
// wins over env and file values; an unset flag changes nothing.
func WithFlags(fs *pflag.FlagSet) LoadOption {
	return func(v *viper.Viper) error {
		for name, key := range FlagKeys {
			f := fs.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return eris.Wrapf(err, "config: bind flag %s", name)
			}
		}
		return nil
	}
}

// Load reads configuration from file, environment and bound flags.
func Load(opts ...LoadOption) (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("VIGYL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "vigyl.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 8192)
	v.SetDefault("anthropic.impact_max_tokens", 4096)
	v.SetDefault("anthropic.cache_ttl", "5m")
	v.SetDefault("generation.impact_max_industries", 0)
	v.SetDefault("generation.call_timeout_secs", 120)
	v.SetDefault("generation.retry_attempts", 3)
	v.SetDefault("generation.retry_backoff_ms", 1000)
	v.SetDefault("generation.retry_max_backoff_ms", 20000)
	v.SetDefault("generation.circuit_threshold", 5)
	v.SetDefault("generation.circuit_reset_secs", 60)
	v.SetDefault("cache.cas_retries", 3)
	v.SetDefault("match.similarity_threshold", 0.6)
	v.SetDefault("salesforce.login_url", "https://login.salesforce.com")
	v.SetDefault("salesforce.rate_limit", 5)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	for _, opt := range opts {
		if err := opt(v); err != nil {
			return nil, err
		}
	}

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

// Validate checks the settings a command needs before it starts. mode is one
// of "generate", "serve", "crm" or "store".
func (c *Config) Validate(mode string) error {
	var problems []string

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		problems = append(problems, fmt.Sprintf("store.driver %q is not supported", c.Store.Driver))
	}
	if c.Store.DatabaseURL == "" {
		problems = append(problems, "store.database_url is required")
	}
	if c.Match.SimilarityThreshold <= 0 || c.Match.SimilarityThreshold > 1 {
		problems = append(problems, "match.similarity_threshold must be in (0, 1]")
	}

	switch mode {
	case "generate":
		if c.Anthropic.Key == "" {
			problems = append(problems, "anthropic.key is required")
		}
	case "serve":
		if c.Anthropic.Key == "" {
			problems = append(problems, "anthropic.key is required")
		}
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			problems = append(problems, fmt.Sprintf("server.port %d is out of range", c.Server.Port))
		}
	case "crm":
		if c.Salesforce.ClientID == "" {
			problems = append(problems, "salesforce.client_id is required")
		}
		if c.Salesforce.Username == "" {
			problems = append(problems, "salesforce.username is required")
		}
		if c.Salesforce.KeyPath == "" {
			problems = append(problems, "salesforce.key_path is required")
		}
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
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
