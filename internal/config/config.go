package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Target   TargetConfig   `mapstructure:"target"`
	Bench    BenchConfig    `mapstructure:"bench"`
	Workload WorkloadConfig `mapstructure:"workload"`
	Sampling SamplingConfig `mapstructure:"sampling"`
	Database DatabaseConfig `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// TargetConfig identifies the inference server under test
type TargetConfig struct {
	Backend  string `mapstructure:"backend"` // "vllm", "fastgen", or "aml"
	Endpoint string `mapstructure:"endpoint"`
	Model    string `mapstructure:"model"`
	APIKey   string `mapstructure:"api_key"` // bearer token, aml only
}

// BenchConfig shapes the benchmark run
type BenchConfig struct {
	NumClients     int           `mapstructure:"num_clients"`
	NumRequests    int           `mapstructure:"num_requests"`
	Warmup         int           `mapstructure:"warmup"`
	Stream         bool          `mapstructure:"stream"`
	RequestsPerSec float64       `mapstructure:"requests_per_sec"` // 0 = unlimited
	RequestTimeout time.Duration `mapstructure:"request_timeout"`  // 0 = none
	CollectTimeout time.Duration `mapstructure:"collect_timeout"`  // 0 = wait forever
}

// WorkloadConfig parameterizes synthetic request generation
type WorkloadConfig struct {
	MeanPromptLength int     `mapstructure:"mean_prompt_length"`
	PromptLengthVar  float64 `mapstructure:"prompt_length_var"`
	MaxPromptLength  int     `mapstructure:"max_prompt_length"`
	MeanMaxNewTokens int     `mapstructure:"mean_max_new_tokens"`
	MaxNewTokensVar  float64 `mapstructure:"max_new_tokens_var"`
	Seed             int64   `mapstructure:"seed"`
}

// SamplingConfig holds generation sampling parameters
type SamplingConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	TopP        float64 `mapstructure:"top_p"`
	IgnoreEOS   bool    `mapstructure:"ignore_eos"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// ServerConfig holds the results API server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "text"
}

// Load loads configuration from file and environment
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			// Config file is optional
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Target defaults
	v.SetDefault("target.backend", "vllm")
	v.SetDefault("target.endpoint", "http://localhost:8000")
	v.SetDefault("target.model", "")

	// Bench defaults
	v.SetDefault("bench.num_clients", 1)
	v.SetDefault("bench.num_requests", 64)
	v.SetDefault("bench.warmup", 1)
	v.SetDefault("bench.stream", true)
	v.SetDefault("bench.requests_per_sec", 0.0)
	v.SetDefault("bench.request_timeout", time.Duration(0))
	v.SetDefault("bench.collect_timeout", time.Duration(0))

	// Workload defaults
	v.SetDefault("workload.mean_prompt_length", 128)
	v.SetDefault("workload.prompt_length_var", 0.3)
	v.SetDefault("workload.max_prompt_length", 512)
	v.SetDefault("workload.mean_max_new_tokens", 128)
	v.SetDefault("workload.max_new_tokens_var", 0.3)
	v.SetDefault("workload.seed", 42)

	// Sampling defaults
	v.SetDefault("sampling.temperature", 1.0)
	v.SetDefault("sampling.top_p", 0.9)
	v.SetDefault("sampling.ignore_eos", false)

	// Database defaults
	v.SetDefault("database.path", "./data/loadgen.db")

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

func bindEnvVars(v *viper.Viper) {
	// Helper to bind and log errors (BindEnv errors are non-fatal but should be logged)
	bindEnv := func(key string, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			slog.Warn("failed to bind environment variable",
				slog.String("key", key),
				slog.String("env_var", envVar),
				slog.String("error", err.Error()))
		}
	}

	bindEnv("target.backend", "LOADGEN_BACKEND")
	bindEnv("target.endpoint", "LOADGEN_ENDPOINT")
	bindEnv("target.model", "LOADGEN_MODEL")
	bindEnv("target.api_key", "LOADGEN_API_KEY")

	bindEnv("database.path", "DATABASE_PATH")

	bindEnv("server.host", "SERVER_HOST")
	bindEnv("server.port", "SERVER_PORT")

	bindEnv("logging.level", "LOG_LEVEL")
	bindEnv("logging.format", "LOG_FORMAT")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Target.Backend {
	case "vllm", "fastgen", "aml":
	default:
		return fmt.Errorf("unknown backend %q (must be vllm, fastgen, or aml)", c.Target.Backend)
	}

	if c.Target.Endpoint == "" {
		return fmt.Errorf("target endpoint is required")
	}
	if c.Target.Backend == "aml" && c.Target.APIKey == "" {
		return fmt.Errorf("LOADGEN_API_KEY is required for the aml backend")
	}

	if c.Bench.NumClients <= 0 {
		return fmt.Errorf("num_clients must be > 0")
	}
	if c.Bench.NumRequests <= 0 {
		return fmt.Errorf("num_requests must be > 0")
	}
	if c.Bench.Warmup < 0 {
		return fmt.Errorf("warmup must be >= 0")
	}
	if c.Bench.RequestsPerSec < 0 {
		return fmt.Errorf("requests_per_sec must be >= 0")
	}

	if c.Workload.MeanPromptLength <= 0 {
		return fmt.Errorf("mean_prompt_length must be > 0")
	}
	if c.Workload.MeanMaxNewTokens <= 0 {
		return fmt.Errorf("mean_max_new_tokens must be > 0")
	}
	if c.Workload.MaxPromptLength > 0 && c.Workload.MaxPromptLength < c.Workload.MeanPromptLength {
		return fmt.Errorf("max_prompt_length must be >= mean_prompt_length")
	}

	return nil
}
