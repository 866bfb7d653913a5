package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"news_recommend/internal/history"
	"news_recommend/internal/logger"
	"news_recommend/internal/metrics"
	"news_recommend/internal/nodes"
	"news_recommend/internal/recommend"
	"news_recommend/internal/server"
	"news_recommend/internal/task"
	"news_recommend/internal/user"
)

func main() {
	cfg, err := LoadConfig(os.Args[1:])
	if err != nil {
		logger.Fatal("Failed to load config: %v", err)
	}
	logger.SetFormat(cfg.Server.LogFormat)
	logger.SetDebug(cfg.Server.Debug)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	// 1. 初始化 User Provider，交互日志合并进用户画像
	staticUsers, err := user.NewStaticProvider(cfg.Paths.Users)
	if err != nil {
		logger.Fatal("Failed to init user provider: %v", err)
	}
	interactions, err := history.NewFileStore(cfg.Paths.Interactions)
	if err != nil {
		logger.Fatal("Failed to init interaction log: %v", err)
	}
	users := user.NewHistoryProvider(staticUsers, interactions)

	// 2. 初始化外部协作者
	provider, err := NewProvider(cfg.Embedding, m)
	if err != nil {
		logger.Fatal("Failed to init embedding provider: %v", err)
	}
	candidates, closeStore, err := NewStore(ctx, *cfg)
	if err != nil {
		logger.Fatal("Failed to init candidate store: %v", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := closeStore(closeCtx); err != nil {
			logger.Warn("Failed to close candidate store: %v", err)
		}
	}()
	blacklist, closeBlacklist, err := NewBlacklist(ctx, cfg.Session)
	if err != nil {
		logger.Fatal("Failed to init session store: %v", err)
	}
	defer func() {
		if err := closeBlacklist(); err != nil {
			logger.Warn("Failed to close session store: %v", err)
		}
	}()

	// 3. 注册节点并加载 Pipeline
	registry := RegisterNodes(nodes.Deps{
		Store:    candidates,
		Provider: provider,
		Retry:    retryConfig(cfg.Retry),
		Metrics:  m,
	})
	engine, err := NewEngine(cfg.Paths.Pipelines, registry)
	if err != nil {
		logger.Fatal("Failed to init engine: %v", err)
	}
	logger.Info("Loaded scenes: %v", engine.Scenes())

	svc := recommend.NewService(engine, recommend.Config{
		DefaultLimit: cfg.Recommend.DefaultLimit,
		MaxLimit:     cfg.Recommend.MaxLimit,
		DefaultScene: cfg.Recommend.DefaultScene,
	}, m)

	// 4. 后台维护：交互日志保留期、已结束的异步任务
	tasks := task.NewManager()
	go maintain(ctx, cfg, interactions, tasks)

	// 5. 启动 HTTP Server
	srv := server.NewServer(server.Deps{
		Users:     users,
		Service:   svc,
		History:   interactions,
		Blacklist: blacklist,
		Tasks:     tasks,
		Metrics:   m,
		Checks:    healthChecks(candidates, blacklist),
	}, server.Options{
		RequestTimeout: cfg.Server.RequestTimeout,
		TaskTimeout:    cfg.Server.TaskTimeout,
		Debug:          cfg.Server.Debug,
	})

	logger.Info("Starting HTTP server on port %s...", cfg.Server.Port)
	if err := srv.Run(ctx, ":"+cfg.Server.Port); err != nil {
		logger.Error("Server failed: %v", err)
		return
	}
	logger.Info("Server stopped")
}

func maintain(ctx context.Context, cfg *Config, interactions *history.FileStore, tasks *task.Manager) {
	interval := cfg.History.CleanupInterval
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if cfg.History.RetentionDays > 0 {
			if err := interactions.Cleanup(cfg.History.RetentionDays); err != nil {
				logger.Error("Failed to clean up interaction log: %v", err)
			}
		}
		if n := tasks.Prune(cfg.Server.TaskRetention); n > 0 {
			logger.Debug("Pruned %d finished tasks", n)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
