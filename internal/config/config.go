package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Analysis  AnalysisConfig  `yaml:"analysis" mapstructure:"analysis"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key                 string  `yaml:"key" mapstructure:"key"`
	Model               string  `yaml:"model" mapstructure:"model"`
	MaxTokens           int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	RateLimitRPS        float64 `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	NoBatch             bool    `yaml:"no_batch" mapstructure:"no_batch"`
	SmallBatchThreshold int     `yaml:"small_batch_threshold" mapstructure:"small_batch_threshold"`
	NormalizeBatchSize  int     `yaml:"normalize_batch_size" mapstructure:"normalize_batch_size"`
}

// AnalysisConfig configures the batch analysis engine.
type AnalysisConfig struct {
	MaxWorkers     int    `yaml:"max_workers" mapstructure:"max_workers"`
	ProgressEvery  int    `yaml:"progress_every" mapstructure:"progress_every"`
	SampleCap      int    `yaml:"sample_cap" mapstructure:"sample_cap"`
	CheckpointPath string `yaml:"checkpoint_path" mapstructure:"checkpoint_path"`
	FailuresPath   string `yaml:"failures_path" mapstructure:"failures_path"`
	// IncludeDetails switches the report artifact to small-scale mode:
	// every AnalysisResult is embedded instead of staying in the
	// checkpoint log only.
	IncludeDetails bool `yaml:"include_details" mapstructure:"include_details"`
}

// StoreConfig configures the run registry. An empty path disables it.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ServerConfig configures the results HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
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
	v.SetEnvPrefix("RCA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. The empty key default registers the path so the
	// RCA_ANTHROPIC_KEY env var binds without a config file.
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 2048)
	v.SetDefault("anthropic.rate_limit_rps", 5)
	v.SetDefault("anthropic.small_batch_threshold", 3)
	v.SetDefault("anthropic.normalize_batch_size", 50)
	v.SetDefault("analysis.max_workers", 16)
	v.SetDefault("analysis.progress_every", 10)
	v.SetDefault("analysis.sample_cap", 40)
	v.SetDefault("analysis.checkpoint_path", "data/checkpoint.jsonl")
	v.SetDefault("analysis.failures_path", "data/failures.jsonl")
	v.SetDefault("store.path", "data/runs.db")
	v.SetDefault("server.port", 8080)
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

// Validate checks that the settings required to run analysis are present.
func (c *Config) Validate() error {
	if c.Anthropic.Key == "" {
		return eris.New("config: anthropic.key is required (set RCA_ANTHROPIC_KEY)")
	}
	if c.Analysis.CheckpointPath == "" {
		return eris.New("config: analysis.checkpoint_path is required")
	}
	if c.Analysis.FailuresPath == "" {
		return eris.New("config: analysis.failures_path is required")
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
