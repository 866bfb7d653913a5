package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"news_recommend/internal/logger"
	"news_recommend/internal/metrics"
	"news_recommend/internal/nodes"
	"news_recommend/internal/recommend"
	"news_recommend/internal/retry"
	"news_recommend/internal/server"
	"news_recommend/internal/session"
	"news_recommend/internal/store"
	"news_recommend/internal/workflow"
	"news_recommend/pkg/embedding"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
)

// NewProvider 构造向量服务客户端：限流在内，熔断在外
func NewProvider(cfg EmbeddingConfig, m *metrics.Metrics) (embedding.Provider, error) {
	if cfg.APIKey == "" {
		logger.Warn("embedding.api_key is empty, provider calls will be rejected")
	}
	opts := []embedding.Option{
		embedding.WithTimeout(cfg.Timeout),
		embedding.WithDimensions(cfg.Dimensions),
	}

	var client embedding.Provider
	switch cfg.Provider {
	case "gemini":
		client = embedding.NewGeminiClient(cfg.Endpoint, cfg.APIKey, cfg.Model, opts...)
	case "openai":
		client = embedding.NewOpenAIClient(cfg.Endpoint, cfg.APIKey, cfg.Model, opts...)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}

	limited := embedding.WithRateLimit(client, cfg.RatePerSecond, cfg.Burst)
	return embedding.WithBreaker(limited, embedding.BreakerConfig{
		Name:                "embedding_" + cfg.Provider,
		Timeout:             cfg.BreakerTimeout,
		ConsecutiveFailures: cfg.BreakerFailures,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker %s: %s -> %s", name, from, to)
			m.SetBreakerOpen(name, to == gobreaker.StateOpen)
		},
	}), nil
}

// NewStore 根据 driver 构造候选存储，返回的 closer 在退出时调用
func NewStore(ctx context.Context, cfg Config) (store.Store, func(context.Context) error, error) {
	switch cfg.Store.Driver {
	case "mongo":
		s, err := store.NewMongoStore(ctx, store.MongoConfig{
			URI:            cfg.Store.MongoURI,
			Database:       cfg.Store.Database,
			Collection:     cfg.Store.Collection,
			ConnectTimeout: cfg.Store.ConnectTimeout,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case "file":
		s, err := store.NewFileStore(cfg.Paths.Corpus)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Loaded %d items from %s", s.Len(), cfg.Paths.Corpus)
		return s, func(context.Context) error { return nil }, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

// NewBlacklist 根据 backend 构造 token 黑名单
func NewBlacklist(ctx context.Context, cfg SessionConfig) (session.Blacklist, func() error, error) {
	switch cfg.Backend {
	case "memory":
		return session.NewMemoryBlacklist(cfg.MaxEntries, cfg.TTL), func() error { return nil }, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		bl := session.NewRedisBlacklist(client, "", cfg.TTL)
		if err := bl.Ping(ctx); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("failed to ping redis %s: %w", cfg.RedisAddr, err)
		}
		return bl, client.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown session backend %q", cfg.Backend)
}

// RegisterNodes 注册所有可用的 Workflow 节点
func RegisterNodes(deps nodes.Deps) *workflow.Registry {
	registry := workflow.NewRegistry()
	nodes.Register(registry, deps)
	return registry
}

// NewEngine 加载 pipeline 配置，文件不存在时使用内置的默认场景
func NewEngine(path string, registry *workflow.Registry) (*workflow.Engine, error) {
	globalCfg, err := workflow.LoadConfig(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Warn("Pipeline config %s not found, using built-in '%s' scene", path, recommend.DefaultScene)
		globalCfg = recommend.DefaultPipelines()
	} else if err != nil {
		return nil, err
	}
	return workflow.NewEngineFromConfig(globalCfg, registry)
}

func retryConfig(cfg RetryConfig) retry.Config {
	return retry.Config{
		MaxAttempts:     cfg.MaxAttempts,
		InitialInterval: cfg.InitialInterval,
		MaxInterval:     cfg.MaxInterval,
		CallTimeout:     cfg.CallTimeout,
	}
}

// healthChecks 收集可探活的依赖
func healthChecks(s store.Store, bl session.Blacklist) map[string]server.HealthCheck {
	checks := map[string]server.HealthCheck{}
	if p, ok := s.(store.Pinger); ok {
		checks["store"] = p.Ping
	}
	if p, ok := bl.(store.Pinger); ok {
		checks["session"] = p.Ping
	}
	return checks
}
