// Package config loads the service configuration. Precedence, lowest first:
// defaults, the YAML file, a .env file, then process environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/leofalp/agentflow/internal/logger"
	"github.com/leofalp/agentflow/providers/artifact"
	"github.com/leofalp/agentflow/providers/cache/redis"
)

// DefaultPath is read when no configuration file is named. It may be absent.
const DefaultPath = "config.yaml"

// Supported LLM providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderEino      = "eino"
	ProviderStub      = "stub"
)

// Supported cache drivers.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Config is the complete service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       logger.Config   `yaml:"log"`
	LLM       LLMConfig       `yaml:"llm"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Cache     CacheConfig     `yaml:"cache"`
	Artifacts ArtifactsConfig `yaml:"artifacts"`
	Market    MarketConfig    `yaml:"market"`
	Research  ResearchConfig  `yaml:"research"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address      string        `yaml:"address"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	EnableCORS   bool          `yaml:"enable_cors"`
	CORSOrigins  string        `yaml:"cors_origins"`
}

// LLMConfig selects the model backend and its generation defaults.
type LLMConfig struct {
	Provider    string  `yaml:"provider"` // openai, anthropic, eino, stub
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
}

// GatewayConfig tunes retries and limits of outbound model calls.
type GatewayConfig struct {
	MaxAttempts      int           `yaml:"max_attempts"`
	InitialBackoff   time.Duration `yaml:"initial_backoff"`
	MaxBackoff       time.Duration `yaml:"max_backoff"`
	AttemptTimeout   time.Duration `yaml:"attempt_timeout"`
	ConcurrencyLimit int           `yaml:"concurrency_limit"`
	LogLevel         string        `yaml:"log_level"` // minimal, standard, verbose
}

// SchedulerConfig bounds workflow execution.
type SchedulerConfig struct {
	MaxConcurrency     int                      `yaml:"max_concurrency"`
	NodeTimeout        time.Duration            `yaml:"node_timeout"`
	TaskTimeout        time.Duration            `yaml:"task_timeout"`
	CapabilityTimeouts map[string]time.Duration `yaml:"capability_timeouts"`
}

// CacheConfig selects the fundamentals cache.
type CacheConfig struct {
	Driver string        `yaml:"driver"` // memory, redis
	TTL    time.Duration `yaml:"ttl"`
	Redis  redis.Options `yaml:"redis"`
}

// ArtifactsConfig locates persisted documents and workbooks.
type ArtifactsConfig struct {
	Dir string `yaml:"dir"`
}

// MarketConfig configures the synthetic market data source.
type MarketConfig struct {
	Seed uint64 `yaml:"seed"`

	// ReferenceDate fixes the last trading day (YYYY-MM-DD). Empty means today.
	ReferenceDate string `yaml:"reference_date"`
}

// ResearchConfig tunes source fetching for research nodes.
type ResearchConfig struct {
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
	MaxChars     int           `yaml:"max_chars"`
	UserAgent    string        `yaml:"user_agent"`

	// SearchURL overrides the DuckDuckGo Instant Answer endpoint.
	SearchURL string `yaml:"search_url"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Address:      ":8000",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 0,
			EnableCORS:   true,
			CORSOrigins:  "*",
		},
		Log: logger.Config{
			Level:      "info",
			Format:     "console",
			Output:     "stderr",
			FilePath:   "logs/agentflow.log",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     28,
		},
		LLM: LLMConfig{
			Provider:    ProviderOpenAI,
			Model:       "gpt-3.5-turbo",
			Temperature: 0.7,
			MaxTokens:   1000,
		},
		Gateway: GatewayConfig{
			MaxAttempts:      3,
			InitialBackoff:   time.Second,
			MaxBackoff:       30 * time.Second,
			AttemptTimeout:   60 * time.Second,
			ConcurrencyLimit: 8,
			LogLevel:         "standard",
		},
		Scheduler: SchedulerConfig{
			MaxConcurrency: 4,
			NodeTimeout:    2 * time.Minute,
			TaskTimeout:    5 * time.Minute,
		},
		Cache: CacheConfig{
			Driver: CacheMemory,
			TTL:    5 * time.Minute,
			Redis:  redis.Options{Addr: "localhost:6379", Prefix: redis.DefaultPrefix},
		},
		Artifacts: ArtifactsConfig{Dir: artifact.DefaultDir},
		Market:    MarketConfig{Seed: 42},
		Research: ResearchConfig{
			FetchTimeout: 30 * time.Second,
			MaxChars:     20000,
		},
	}
}

// Load reads path over the defaults, applies .env and environment overrides
// and validates the result. A missing file is only an error when path was
// named explicitly.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	if err := cfg.loadFile(path); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	// A missing .env is normal outside development.
	_ = godotenv.Load()
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides fields from environment variables looked up by lookup.
func (cfg *Config) applyEnv(lookup func(string) (string, bool)) error {
	overrides := map[string]*string{
		"LLM_PROVIDER":        &cfg.LLM.Provider,
		"REDIS_ADDR":          &cfg.Cache.Redis.Addr,
		"REDIS_PASSWORD":      &cfg.Cache.Redis.Password,
		"AGENTFLOW_ADDRESS":   &cfg.Server.Address,
		"AGENTFLOW_LOG_LEVEL": &cfg.Log.Level,
		"CACHE_DRIVER":        &cfg.Cache.Driver,
		"ARTIFACTS_DIR":       &cfg.Artifacts.Dir,
	}
	for key, target := range overrides {
		if value, ok := lookup(key); ok && value != "" {
			*target = value
		}
	}

	// Credentials follow the selected provider.
	switch cfg.LLM.Provider {
	case ProviderAnthropic:
		cfg.overrideLLM(lookup, "ANTHROPIC_API_KEY", "ANTHROPIC_MODEL", "ANTHROPIC_API_BASE_URL")
	default:
		cfg.overrideLLM(lookup, "OPENAI_API_KEY", "OPENAI_MODEL", "OPENAI_API_BASE_URL")
	}

	if value, ok := lookup("MARKET_SEED"); ok && value != "" {
		seed, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return fmt.Errorf("MARKET_SEED: %w", err)
		}
		cfg.Market.Seed = seed
	}
	return nil
}

func (cfg *Config) overrideLLM(lookup func(string) (string, bool), keyVar, modelVar, baseURLVar string) {
	if value, ok := lookup(keyVar); ok && value != "" {
		cfg.LLM.APIKey = value
	}
	if value, ok := lookup(modelVar); ok && value != "" {
		cfg.LLM.Model = value
	}
	if value, ok := lookup(baseURLVar); ok && value != "" {
		cfg.LLM.BaseURL = value
	}
}

// Validate rejects unknown providers and drivers and non-positive limits.
func (cfg *Config) Validate() error {
	var problems []string

	switch cfg.LLM.Provider {
	case ProviderOpenAI, ProviderAnthropic, ProviderEino, ProviderStub:
	default:
		problems = append(problems, fmt.Sprintf("llm.provider %q is not one of openai, anthropic, eino, stub", cfg.LLM.Provider))
	}
	switch cfg.Cache.Driver {
	case CacheMemory, CacheRedis:
	default:
		problems = append(problems, fmt.Sprintf("cache.driver %q is not one of memory, redis", cfg.Cache.Driver))
	}

	positive := map[string]int64{
		"llm.max_tokens":            int64(cfg.LLM.MaxTokens),
		"gateway.max_attempts":      int64(cfg.Gateway.MaxAttempts),
		"gateway.concurrency_limit": int64(cfg.Gateway.ConcurrencyLimit),
		"gateway.initial_backoff":   int64(cfg.Gateway.InitialBackoff),
		"gateway.max_backoff":       int64(cfg.Gateway.MaxBackoff),
		"gateway.attempt_timeout":   int64(cfg.Gateway.AttemptTimeout),
		"scheduler.max_concurrency": int64(cfg.Scheduler.MaxConcurrency),
		"scheduler.node_timeout":    int64(cfg.Scheduler.NodeTimeout),
		"scheduler.task_timeout":    int64(cfg.Scheduler.TaskTimeout),
		"cache.ttl":                 int64(cfg.Cache.TTL),
	}
	for name, value := range positive {
		if value <= 0 {
			problems = append(problems, name+" must be positive")
		}
	}
	for typeTag, timeout := range cfg.Scheduler.CapabilityTimeouts {
		if timeout <= 0 {
			problems = append(problems, fmt.Sprintf("scheduler.capability_timeouts.%s must be positive", typeTag))
		}
	}
	if cfg.LLM.Temperature < 0 || cfg.LLM.Temperature > 2 {
		problems = append(problems, "llm.temperature must be between 0 and 2")
	}
	if cfg.Market.ReferenceDate != "" {
		if _, err := time.Parse(time.DateOnly, cfg.Market.ReferenceDate); err != nil {
			problems = append(problems, "market.reference_date must be YYYY-MM-DD")
		}
	}

	if len(problems) == 0 {
		return nil
	}
	sort.Strings(problems)
	return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
}

// Reference returns the configured market reference day, or the zero time.
func (m MarketConfig) Reference() time.Time {
	if m.ReferenceDate == "" {
		return time.Time{}
	}
	day, _ := time.Parse(time.DateOnly, m.ReferenceDate)
	return day
}
