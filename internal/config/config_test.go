package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupFrom(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ProviderOpenAI, cfg.LLM.Provider)
	assert.Equal(t, "gpt-3.5-turbo", cfg.LLM.Model)
	assert.InDelta(t, 0.7, cfg.LLM.Temperature, 1e-6)
	assert.Equal(t, 1000, cfg.LLM.MaxTokens)
	assert.Equal(t, CacheMemory, cfg.Cache.Driver)
	assert.Equal(t, "output_docs", cfg.Artifacts.Dir)
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"LLM_PROVIDER", "OPENAI_MODEL", "OPENAI_API_KEY", "OPENAI_API_BASE_URL",
		"AGENTFLOW_ADDRESS", "MARKET_SEED", "REDIS_ADDR", "CACHE_DRIVER",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
server:
  address: ":9090"
llm:
  provider: stub
  model: test-model
gateway:
  max_attempts: 5
scheduler:
  max_concurrency: 2
  capability_timeouts:
    researchAgent: 10s
cache:
  driver: redis
  ttl: 1m
  redis:
    addr: cache:6379
    db: 2
market:
  seed: 7
  reference_date: "2024-03-15"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, ProviderStub, cfg.LLM.Provider)
	assert.Equal(t, "test-model", cfg.LLM.Model)
	assert.Equal(t, 5, cfg.Gateway.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Gateway.InitialBackoff, "unset fields keep defaults")
	assert.Equal(t, 2, cfg.Scheduler.MaxConcurrency)
	assert.Equal(t, 10*time.Second, cfg.Scheduler.CapabilityTimeouts["researchAgent"])
	assert.Equal(t, CacheRedis, cfg.Cache.Driver)
	assert.Equal(t, time.Minute, cfg.Cache.TTL)
	assert.Equal(t, "cache:6379", cfg.Cache.Redis.Addr)
	assert.Equal(t, 2, cfg.Cache.Redis.DB)
	assert.Equal(t, uint64(7), cfg.Market.Seed)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), cfg.Market.Reference())
}

func TestLoad_MissingExplicitFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_MalformedFileFails(t *testing.T) {
	path := writeConfig(t, "server: [unclosed")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestLoad_EnvironmentWins(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "llm:\n  model: from-file\n")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_MODEL", "from-env")
	t.Setenv("AGENTFLOW_ADDRESS", ":7000")
	t.Setenv("MARKET_SEED", "99")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, "from-env", cfg.LLM.Model)
	assert.Equal(t, ":7000", cfg.Server.Address)
	assert.Equal(t, uint64(99), cfg.Market.Seed)
}

func TestApplyEnv_CredentialsFollowProvider(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(lookupFrom(map[string]string{
		"LLM_PROVIDER":      "anthropic",
		"OPENAI_API_KEY":    "sk-openai",
		"ANTHROPIC_API_KEY": "sk-anthropic",
		"ANTHROPIC_MODEL":   "claude-test",
		"REDIS_ADDR":        "redis:6380",
	}))
	require.NoError(t, err)

	assert.Equal(t, ProviderAnthropic, cfg.LLM.Provider)
	assert.Equal(t, "sk-anthropic", cfg.LLM.APIKey)
	assert.Equal(t, "claude-test", cfg.LLM.Model)
	assert.Equal(t, "redis:6380", cfg.Cache.Redis.Addr)
}

func TestApplyEnv_EmptyValuesIgnored(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.applyEnv(lookupFrom(map[string]string{"OPENAI_MODEL": ""})))
	assert.Equal(t, "gpt-3.5-turbo", cfg.LLM.Model)
}

func TestApplyEnv_BadSeed(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(lookupFrom(map[string]string{"MARKET_SEED": "many"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MARKET_SEED")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown provider", func(c *Config) { c.LLM.Provider = "gemini" }, "llm.provider"},
		{"unknown cache driver", func(c *Config) { c.Cache.Driver = "memcached" }, "cache.driver"},
		{"zero concurrency", func(c *Config) { c.Scheduler.MaxConcurrency = 0 }, "scheduler.max_concurrency must be positive"},
		{"negative attempts", func(c *Config) { c.Gateway.MaxAttempts = -1 }, "gateway.max_attempts must be positive"},
		{"zero ttl", func(c *Config) { c.Cache.TTL = 0 }, "cache.ttl must be positive"},
		{"bad capability timeout", func(c *Config) {
			c.Scheduler.CapabilityTimeouts = map[string]time.Duration{"stockAnalyzer": 0}
		}, "capability_timeouts.stockAnalyzer"},
		{"temperature out of range", func(c *Config) { c.LLM.Temperature = 3 }, "llm.temperature"},
		{"bad reference date", func(c *Config) { c.Market.ReferenceDate = "15/03/2024" }, "market.reference_date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.LLM.Provider = "nope"
	cfg.Cache.Driver = "nope"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "llm.provider")
	assert.Contains(t, err.Error(), "cache.driver")
}
