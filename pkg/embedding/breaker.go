package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"news_recommend/internal/vector"

	"github.com/sony/gobreaker"
)

// ErrCircuitOpen 熔断器处于打开状态，请求被直接拒绝
var ErrCircuitOpen = errors.New("embedding circuit breaker is open")

// BreakerConfig 熔断参数
type BreakerConfig struct {
	Name string
	// MaxRequests 半开状态允许通过的请求数
	MaxRequests uint32
	// Interval 闭合状态下计数清零的周期
	Interval time.Duration
	// Timeout 打开状态持续多久后进入半开
	Timeout time.Duration
	// ConsecutiveFailures 连续失败多少次后打开
	ConsecutiveFailures uint32
	OnStateChange       func(name string, from, to gobreaker.State)
}

// BreakerProvider 给 Provider 加上熔断保护
type BreakerProvider struct {
	next    Provider
	breaker *gobreaker.CircuitBreaker
}

// WithBreaker 包装一个 Provider
func WithBreaker(next Provider, cfg BreakerConfig) *BreakerProvider {
	if cfg.Name == "" {
		cfg.Name = "embedding"
	}
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = 1
	}
	if cfg.Interval == 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = 5
	}
	threshold := cfg.ConsecutiveFailures

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: cfg.OnStateChange,
		// 调用方取消不算服务故障
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	}
	return &BreakerProvider{next: next, breaker: gobreaker.NewCircuitBreaker(settings)}
}

func (p *BreakerProvider) Model() string   { return p.next.Model() }
func (p *BreakerProvider) Dimensions() int { return p.next.Dimensions() }

// State 当前熔断状态
func (p *BreakerProvider) State() gobreaker.State { return p.breaker.State() }

func (p *BreakerProvider) Embed(ctx context.Context, text string) (vector.Vector, error) {
	out, err := p.breaker.Execute(func() (interface{}, error) {
		return p.next.Embed(ctx, text)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrCircuitOpen, err)
	}
	if err != nil {
		return nil, err
	}
	v, _ := out.(vector.Vector)
	return v, nil
}
