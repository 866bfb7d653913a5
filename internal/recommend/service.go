// Package recommend drives one recommendation request end to end: it
// validates the profile, runs the scene pipeline and hands back the ranked
// items or a typed failure.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"news_recommend/internal/logger"
	"news_recommend/internal/metrics"
	"news_recommend/internal/model"
	"news_recommend/internal/workflow"
)

const (
	DefaultLimit    = 10
	DefaultMaxLimit = 100
	DefaultScene    = "news"
)

// Config 请求级别的默认值
type Config struct {
	DefaultLimit int
	MaxLimit     int
	DefaultScene string
}

// DefaultConfig returns limit 10, max 100 and the "news" scene.
func DefaultConfig() Config {
	return Config{
		DefaultLimit: DefaultLimit,
		MaxLimit:     DefaultMaxLimit,
		DefaultScene: DefaultScene,
	}
}

// Outcome is the result of one successful request.
type Outcome struct {
	Scene           string
	Recommendations []model.Recommendation
	// Skipped counts embeddings dropped as malformed while serving the request.
	Skipped int
	Trace   []string
}

// Service is stateless; it is safe for concurrent use.
type Service struct {
	engine  *workflow.Engine
	cfg     Config
	metrics *metrics.Metrics
}

// NewService 创建推荐服务，m 可以为 nil
func NewService(engine *workflow.Engine, cfg Config, m *metrics.Metrics) *Service {
	def := DefaultConfig()
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = def.DefaultLimit
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = def.MaxLimit
	}
	if cfg.DefaultLimit > cfg.MaxLimit {
		cfg.DefaultLimit = cfg.MaxLimit
	}
	if cfg.DefaultScene == "" {
		cfg.DefaultScene = def.DefaultScene
	}
	return &Service{engine: engine, cfg: cfg, metrics: m}
}

// Config returns the effective configuration.
func (s *Service) Config() Config {
	return s.cfg
}

// HasScene reports whether a pipeline is configured for scene.
func (s *Service) HasScene(scene string) bool {
	return s.engine.HasScene(scene)
}

// Recommend ranks the default scene's corpus for user. A non-positive limit
// selects the default, larger limits are clamped to the maximum.
func (s *Service) Recommend(ctx context.Context, user *model.User, limit int) ([]model.Recommendation, error) {
	out, err := s.RecommendScene(ctx, s.cfg.DefaultScene, user, limit)
	if err != nil {
		return nil, err
	}
	return out.Recommendations, nil
}

// RecommendScene is Recommend for an explicit scene.
func (s *Service) RecommendScene(ctx context.Context, scene string, user *model.User, limit int) (*Outcome, error) {
	start := time.Now()
	out, err := s.run(ctx, scene, user, limit)
	s.metrics.ObserveRequest(scene, OutcomeOf(err), time.Since(start))
	return out, err
}

// NormalizeLimit applies the default and the maximum to a requested limit.
func (s *Service) NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return s.cfg.DefaultLimit
	case limit > s.cfg.MaxLimit:
		return s.cfg.MaxLimit
	}
	return limit
}

func (s *Service) run(ctx context.Context, scene string, user *model.User, limit int) (*Outcome, error) {
	if user == nil {
		return nil, &model.CallerError{Reason: "missing user profile"}
	}
	// 没有任何信号时直接拒绝，不调用任何外部服务
	if !user.HasSignal() {
		return nil, model.ErrNoSignal
	}
	if !s.engine.HasScene(scene) {
		return nil, fmt.Errorf("%w for scene: %s", workflow.ErrSceneNotFound, scene)
	}

	// 节点只读取快照，调用方之后修改 user 不影响本次请求
	snapshot := user.Clone()
	wfCtx := workflow.NewContext(ctx, snapshot, s.NormalizeLimit(limit))
	wfCtx.Config["scene"] = scene

	err := s.engine.Run(wfCtx, scene)
	for _, line := range wfCtx.Logs() {
		logger.Debug("[%s] %s", snapshot.ID, line)
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}

	recs := wfCtx.GetResults()
	if recs == nil {
		recs = make([]model.Recommendation, 0)
	}
	return &Outcome{
		Scene:           scene,
		Recommendations: recs,
		Skipped:         wfCtx.SkippedCount(),
		Trace:           wfCtx.Logs(),
	}, nil
}

// OutcomeOf classifies an error for metrics.
func OutcomeOf(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case model.IsCallerError(err):
		return metrics.OutcomeCallerError
	case model.IsProviderError(err):
		return metrics.OutcomeProviderError
	case model.IsStoreError(err):
		return metrics.OutcomeStoreError
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return metrics.OutcomeCanceled
	}
	return metrics.OutcomeInternal
}
