package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"news_recommend/internal/history"
	"news_recommend/internal/logger"
	"news_recommend/internal/metrics"
	"news_recommend/internal/recommend"
	"news_recommend/internal/session"
	"news_recommend/internal/task"
	"news_recommend/internal/user"

	"github.com/gin-gonic/gin"
)

// HealthCheck 依赖探活函数
type HealthCheck func(ctx context.Context) error

// Deps HTTP 服务依赖的组件
type Deps struct {
	Users     user.Provider
	Service   *recommend.Service
	History   history.Store
	Blacklist session.Blacklist
	Tasks     *task.Manager
	Metrics   *metrics.Metrics
	Checks    map[string]HealthCheck
}

// Options HTTP 服务参数
type Options struct {
	// RequestTimeout 同步推荐请求的超时
	RequestTimeout time.Duration
	// TaskTimeout 异步推荐任务的超时
	TaskTimeout time.Duration
	// Debug 为 true 时在响应中返回执行轨迹
	Debug bool
}

// Server 代表 HTTP API 服务器
type Server struct {
	router *gin.Engine
	deps   Deps
	opts   Options
}

// NewServer 创建新的 HTTP 服务器
func NewServer(deps Deps, opts Options) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.TaskTimeout <= 0 {
		opts.TaskTimeout = 2 * time.Minute
	}
	if deps.Tasks == nil {
		deps.Tasks = task.NewManager()
	}

	s := &Server{
		router: gin.New(),
		deps:   deps,
		opts:   opts,
	}
	s.router.Use(gin.Recovery(), s.requestIDMiddleware(), s.accessLogMiddleware(), s.corsMiddleware())
	s.setupRoutes()
	return s
}

// Handler 返回底层 http.Handler，便于测试和嵌入
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run 启动服务器，ctx 结束时优雅退出
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	// 等待异步任务结束
	s.deps.Tasks.Wait()
	return nil
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.handleHealth)
	if s.deps.Metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.deps.Metrics.Handler()))
	}

	v1 := s.router.Group("/api/v1")

	// 中间件：Token 鉴权
	v1.Use(s.authMiddleware())

	// 推荐接口 - 使用路径参数传递 scene
	v1.GET("/recommend/:scene", s.handleRecommend)
	v1.POST("/recommend/:scene", s.handleRecommend)
	v1.POST("/recommend/:scene/async", s.handleRecommendAsync)
	v1.GET("/tasks/:id", s.handleGetTask)

	v1.POST("/interactions", s.handleInteraction)
	v1.POST("/logout", s.handleLogout)
}
