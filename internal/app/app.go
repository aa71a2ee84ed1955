// Package app assembles the runtime from a Config: logger, observer, model
// gateway, data sources, the capability registry and the two executors.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/leofalp/agentflow/agents"
	"github.com/leofalp/agentflow/core/capability"
	"github.com/leofalp/agentflow/core/gateway"
	"github.com/leofalp/agentflow/core/gateway/middleware"
	"github.com/leofalp/agentflow/core/scheduler"
	"github.com/leofalp/agentflow/core/task"
	"github.com/leofalp/agentflow/internal/config"
	"github.com/leofalp/agentflow/internal/logger"
	"github.com/leofalp/agentflow/providers/ai"
	"github.com/leofalp/agentflow/providers/ai/anthropic"
	"github.com/leofalp/agentflow/providers/ai/eino"
	"github.com/leofalp/agentflow/providers/ai/openai"
	"github.com/leofalp/agentflow/providers/ai/stub"
	"github.com/leofalp/agentflow/providers/artifact"
	"github.com/leofalp/agentflow/providers/cache"
	"github.com/leofalp/agentflow/providers/cache/inmemory"
	"github.com/leofalp/agentflow/providers/cache/redis"
	"github.com/leofalp/agentflow/providers/market"
	"github.com/leofalp/agentflow/providers/observability/zapobs"
	"github.com/leofalp/agentflow/providers/tool/duckduckgo"
	"github.com/leofalp/agentflow/providers/tool/webfetch"
)

// App holds the assembled components. Close releases them.
type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	Observer  *zapobs.Observer
	Gateway   *gateway.Gateway
	Registry  *capability.Registry
	Scheduler *scheduler.Scheduler
	Tasks     *task.Runner
	Artifacts *artifact.Store

	closers []io.Closer
}

// Option customizes New.
type Option func(*options)

type options struct {
	provider ai.Provider
	console  io.Writer
}

// WithProvider replaces the provider selected by llm.provider.
func WithProvider(provider ai.Provider) Option {
	return func(o *options) { o.provider = provider }
}

// WithConsole sets where console logs go. Default: discarded when nil.
func WithConsole(console io.Writer) Option {
	return func(o *options) { o.console = console }
}

// New builds every component described by cfg.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: config is required")
	}
	settings := options{console: io.Discard}
	for _, opt := range opts {
		opt(&settings)
	}

	log := logger.New(&cfg.Log, settings.console)
	observer := zapobs.New(log)
	application := &App{Config: cfg, Logger: log, Observer: observer}

	provider := settings.provider
	if provider == nil {
		var err error
		if provider, err = NewProvider(ctx, cfg.LLM); err != nil {
			return nil, err
		}
	}
	application.Gateway = gateway.New(provider, gateway.Defaults{
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	}, Middlewares(cfg.Gateway, log)...)

	store, err := application.newCache(ctx, cfg.Cache)
	if err != nil {
		return nil, err
	}
	source := market.NewCached(market.NewSynthetic(cfg.Market.Seed, cfg.Market.Reference()), store, cfg.Cache.TTL)

	if application.Artifacts, err = artifact.New(cfg.Artifacts.Dir); err != nil {
		_ = application.Close()
		return nil, err
	}

	fetcher := webfetch.New().
		WithTimeout(cfg.Research.FetchTimeout).
		WithUserAgent(cfg.Research.UserAgent).
		WithMaxChars(cfg.Research.MaxChars)
	searcher := duckduckgo.New().
		WithBaseURL(cfg.Research.SearchURL).
		WithUserAgent(cfg.Research.UserAgent)

	application.Registry = capability.NewRegistry()
	err = agents.RegisterDefaults(application.Registry, agents.Dependencies{
		Model:     application.Gateway,
		Market:    source,
		Artifacts: application.Artifacts,
		Fetcher:   fetcher,
		Searcher:  searcher,
		Seed:      cfg.Market.Seed,
		Timeouts:  cfg.Scheduler.CapabilityTimeouts,
	})
	if err != nil {
		_ = application.Close()
		return nil, err
	}

	application.Scheduler = scheduler.New(application.Registry, scheduler.Options{
		MaxConcurrency: cfg.Scheduler.MaxConcurrency,
		DefaultTimeout: cfg.Scheduler.NodeTimeout,
	}, observer)
	application.Tasks = task.NewRunner(application.Registry, observer, cfg.Scheduler.TaskTimeout)

	log.Info("app ready",
		zap.String("provider", application.Gateway.Provider()),
		zap.String("model", cfg.LLM.Model),
		zap.String("cache", cfg.Cache.Driver),
		zap.Strings("capabilities", application.Registry.Types()),
	)
	return application, nil
}

// NewProvider builds the LLM provider named by cfg.Provider.
func NewProvider(ctx context.Context, cfg config.LLMConfig) (ai.Provider, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		provider := openai.New().WithDefaultModel(cfg.Model)
		if cfg.APIKey != "" {
			provider = provider.WithAPIKey(cfg.APIKey)
		}
		if cfg.BaseURL != "" {
			provider = provider.WithBaseURL(cfg.BaseURL)
		}
		return provider, nil
	case config.ProviderAnthropic:
		provider := anthropic.New().WithDefaultModel(cfg.Model)
		if cfg.APIKey != "" {
			provider = provider.WithAPIKey(cfg.APIKey)
		}
		if cfg.BaseURL != "" {
			provider = provider.WithBaseURL(cfg.BaseURL)
		}
		return provider, nil
	case config.ProviderEino:
		provider, err := eino.New(ctx, eino.Config{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL, Model: cfg.Model})
		if err != nil {
			return nil, err
		}
		return provider, nil
	case config.ProviderStub:
		return stub.New(), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// Middlewares returns the gateway chain, outermost first: retry wraps the
// concurrency limit, so a waiting retry never holds a slot, then the
// per-attempt timeout and attempt logging.
func Middlewares(cfg config.GatewayConfig, log *zap.Logger) []gateway.Middleware {
	return []gateway.Middleware{
		middleware.NewRetry(middleware.RetryConfig{
			MaxAttempts:    cfg.MaxAttempts,
			InitialBackoff: cfg.InitialBackoff,
			MaxBackoff:     cfg.MaxBackoff,
		}),
		middleware.NewLimiter(cfg.ConcurrencyLimit).Middleware(),
		middleware.NewTimeout(cfg.AttemptTimeout),
		middleware.NewLogging(log, logLevel(cfg.LogLevel)),
	}
}

func logLevel(name string) middleware.LogLevel {
	switch name {
	case "minimal":
		return middleware.LogLevelMinimal
	case "verbose":
		return middleware.LogLevelVerbose
	default:
		return middleware.LogLevelStandard
	}
}

func (application *App) newCache(ctx context.Context, cfg config.CacheConfig) (cache.Provider, error) {
	if cfg.Driver != config.CacheRedis {
		return inmemory.New(), nil
	}
	store, err := redis.Connect(ctx, cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("connect cache: %w", err)
	}
	application.closers = append(application.closers, store)
	return store, nil
}

// Close releases connections and flushes the logger.
func (application *App) Close() error {
	var errs []error
	for _, closer := range application.closers {
		errs = append(errs, closer.Close())
	}
	application.closers = nil
	if application.Logger != nil {
		_ = application.Logger.Sync()
	}
	return errors.Join(errs...)
}
