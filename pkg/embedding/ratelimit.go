package embedding

import (
	"context"
	"errors"
	"fmt"

	"news_recommend/internal/vector"

	"golang.org/x/time/rate"
)

// ErrRateLimited 本地限流等待超出了请求截止时间
var ErrRateLimited = errors.New("embedding rate limit wait exceeded deadline")

// RateLimitedProvider 在客户端侧限制调用速率，避免触发服务端 429
type RateLimitedProvider struct {
	next    Provider
	limiter *rate.Limiter
}

// WithRateLimit perSecond <= 0 表示不限流
func WithRateLimit(next Provider, perSecond float64, burst int) Provider {
	if perSecond <= 0 {
		return next
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimitedProvider{next: next, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (p *RateLimitedProvider) Model() string   { return p.next.Model() }
func (p *RateLimitedProvider) Dimensions() int { return p.next.Dimensions() }

func (p *RateLimitedProvider) Embed(ctx context.Context, text string) (vector.Vector, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrRateLimited, err)
	}
	return p.next.Embed(ctx, text)
}
