// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port           int           `yaml:"port" envconfig:"PORT"`
	Environment    string        `yaml:"environment" envconfig:"APP_ENV"`
	Version        string        `yaml:"version"`
	AllowedOrigins []string      `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	SubmitLimit    int           `yaml:"submit_limit"`  // submissions per window per client, 0 disables
	SubmitWindow   time.Duration `yaml:"submit_window"` // rate limit window
}

type LogConfig struct {
	Level    string `yaml:"level" envconfig:"LOG_LEVEL"` // trace|debug|info|warn|error
	Format   string `yaml:"format"`                      // json|console
	Sampling bool   `yaml:"sampling"`                    // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url" envconfig:"DATABASE_URL"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url" envconfig:"REDIS_URL"`
	Password string        `yaml:"password" envconfig:"REDIS_PASSWORD"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"` // search cache entry lifetime
}

type AIConfig struct {
	Provider        string `yaml:"provider" envconfig:"AI_PROVIDER"` // openai | gemini | offline
	OpenAIKey       string `yaml:"openai_key" envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL   string `yaml:"openai_base_url" envconfig:"OPENAI_BASE_URL"`
	OpenAIModel     string `yaml:"openai_model" envconfig:"OPENAI_MODEL"`
	GeminiKey       string `yaml:"gemini_key" envconfig:"GEMINI_API_KEY"`
	GeminiModel     string `yaml:"gemini_model" envconfig:"GEMINI_MODEL"`
	ConcurrentLimit int    `yaml:"concurrent_limit"` // max concurrent AI calls
}

// PipelineConfig holds the stage switches and generation parameters.
type PipelineConfig struct {
	JobSecret        string  `yaml:"job_secret" envconfig:"JOB_SECRET"`
	UseOntology      bool    `yaml:"use_ontology" envconfig:"USE_ONTOLOGY"`
	UseSearch        bool    `yaml:"use_search" envconfig:"USE_AI_SEARCH"`
	UseFewShot       bool    `yaml:"use_fewshot" envconfig:"USE_FEWSHOT"`
	UseTwoPass       bool    `yaml:"use_two_pass" envconfig:"USE_TWO_PASS"`
	UseValidator     bool    `yaml:"use_validator" envconfig:"USE_VALIDATOR"`
	UseAnalyzer      bool    `yaml:"use_analyzer" envconfig:"USE_ADVANCED_ANALYZER"`
	UseLearning      bool    `yaml:"use_learning" envconfig:"USE_LEARNING_SYSTEM"`
	SearchLimit      int     `yaml:"search_limit"`
	Pass1Temperature float64 `yaml:"pass1_temperature"`
	Pass1MaxTokens   int     `yaml:"pass1_max_tokens"`
	Pass2Temperature float64 `yaml:"pass2_temperature"`
	Pass2MaxTokens   int     `yaml:"pass2_max_tokens"`
}

type DispatchConfig struct {
	Mode          string        `yaml:"mode" envconfig:"DISPATCH_MODE"` // queue | http
	Broker        string        `yaml:"broker"`                         // redis | memory
	ProcessURL    string        `yaml:"process_url" envconfig:"PROCESS_URL"`
	Workers       int           `yaml:"workers"`
	QueueSize     int           `yaml:"queue_size"`
	MaxAttempts   int           `yaml:"max_attempts"`
	BaseBackoff   time.Duration `yaml:"base_backoff"`
	MaxBackoff    time.Duration `yaml:"max_backoff"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	PopTimeout    time.Duration `yaml:"pop_timeout"`
}

type NotifyConfig struct {
	TelegramToken string `yaml:"telegram_token" envconfig:"TELEGRAM_TOKEN"`
	ChatID        int64  `yaml:"chat_id" envconfig:"TELEGRAM_CHAT_ID"`
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	AI       AIConfig       `yaml:"ai"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Notify   NotifyConfig   `yaml:"notify"`

	Runtime RuntimeConfig `yaml:"-" ignored:"true"`
}

var DefaultAllowedOrigins = []string{
	"https://gesa-company-ab.webflow.io",
	"https://preview.webflow.com",
	"https://gesa-company-ab-julius-projects-ccea11c8.webflow.io",
	"http://localhost:3000",
	"http://127.0.0.1:3000",
	"http://localhost:4321",
}

// LoadConfig reads the YAML file at path and applies environment overrides.
// A missing file is tolerated in dev mode, where everything may come from the environment.
func LoadConfig(path string, dev bool) (*Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && dev:
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("env config: %w", err)
	}

	cfg.Runtime.Dev = dev
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Environment == "" {
		cfg.Server.Environment = "production"
		if cfg.Runtime.Dev {
			cfg.Server.Environment = "development"
		}
	}
	if cfg.Server.Version == "" {
		cfg.Server.Version = "dev"
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = append([]string(nil), DefaultAllowedOrigins...)
	}
	if cfg.Server.SubmitWindow <= 0 {
		cfg.Server.SubmitWindow = time.Minute
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)

	if cfg.AI.Provider == "" {
		cfg.AI.Provider = "openai"
	}
	if cfg.AI.OpenAIModel == "" {
		cfg.AI.OpenAIModel = "gpt-4o-mini"
	}
	if cfg.AI.GeminiModel == "" {
		cfg.AI.GeminiModel = "gemini-2.0-flash"
	}
	if cfg.AI.ConcurrentLimit <= 0 {
		cfg.AI.ConcurrentLimit = 16
	}

	if cfg.Pipeline.SearchLimit <= 0 {
		cfg.Pipeline.SearchLimit = 8
	}
	if cfg.Pipeline.Pass1Temperature <= 0 {
		cfg.Pipeline.Pass1Temperature = 0.3
	}
	if cfg.Pipeline.Pass1MaxTokens <= 0 {
		cfg.Pipeline.Pass1MaxTokens = 3000
	}
	if cfg.Pipeline.Pass2Temperature <= 0 {
		cfg.Pipeline.Pass2Temperature = 0.2
	}
	if cfg.Pipeline.Pass2MaxTokens <= 0 {
		cfg.Pipeline.Pass2MaxTokens = 2500
	}

	if cfg.Dispatch.Mode == "" {
		cfg.Dispatch.Mode = "queue"
	}
	if cfg.Dispatch.Broker == "" {
		cfg.Dispatch.Broker = "redis"
		if cfg.Runtime.Dev && cfg.Redis.URL == "" {
			cfg.Dispatch.Broker = "memory"
		}
	}
	if cfg.Dispatch.Workers <= 0 {
		cfg.Dispatch.Workers = 4
	}
	if cfg.Dispatch.QueueSize <= 0 {
		cfg.Dispatch.QueueSize = 64
	}
	if cfg.Dispatch.MaxAttempts <= 0 {
		cfg.Dispatch.MaxAttempts = 5
	}
	if cfg.Dispatch.BaseBackoff <= 0 {
		cfg.Dispatch.BaseBackoff = 2 * time.Second
	}
	if cfg.Dispatch.MaxBackoff <= 0 {
		cfg.Dispatch.MaxBackoff = 2 * time.Minute
	}
	if cfg.Dispatch.SweepInterval <= 0 {
		cfg.Dispatch.SweepInterval = time.Second
	}
	if cfg.Dispatch.PopTimeout <= 0 {
		cfg.Dispatch.PopTimeout = 5 * time.Second
	}
}

// Validate performs the minimal checks needed to start serving.
func (c *Config) Validate() error {
	if c.Pipeline.JobSecret == "" {
		return errors.New("pipeline.job_secret is required")
	}
	if c.Database.URL == "" && !c.Runtime.Dev {
		return errors.New("database.url is required")
	}
	if c.Dispatch.Broker == "redis" && c.Redis.URL == "" {
		return errors.New("redis.url is required for the redis broker")
	}
	switch c.Dispatch.Mode {
	case "queue":
	case "http":
		if c.Dispatch.ProcessURL == "" {
			return errors.New("dispatch.process_url is required in http mode")
		}
	default:
		return fmt.Errorf("dispatch.mode %q is not supported", c.Dispatch.Mode)
	}
	switch c.AI.Provider {
	case "openai", "gemini", "multi", "offline":
	default:
		return fmt.Errorf("ai.provider %q is not supported", c.AI.Provider)
	}
	return nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
