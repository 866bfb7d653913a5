// Package embedding turns text into dense vectors through hosted embedding
// APIs, plus decorators for circuit breaking and client-side rate limiting.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"news_recommend/internal/vector"
)

// Provider 定义向量服务接口
type Provider interface {
	Embed(ctx context.Context, text string) (vector.Vector, error)
	// Dimensions 是该模型输出向量的固定维度
	Dimensions() int
	Model() string
}

// ErrMalformedResponse 服务返回了无法使用的向量
var ErrMalformedResponse = errors.New("malformed embedding response")

// StatusError 非 200 的 HTTP 响应
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("embedding api error (status %d): %s", e.StatusCode, e.Body)
}

// Retryable 只有限流和服务端错误值得重试，鉴权/参数错误重试也没用
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode == http.StatusRequestTimeout ||
		e.StatusCode >= 500
}

// IsRetryable 判断错误是否为瞬时错误
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	// 熔断打开或本地限流等待超时，立即重试没有意义
	if errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrRateLimited) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrMalformedResponse)
}

// config 是各个 HTTP 客户端共享的可选参数
type config struct {
	httpClient *http.Client
	dimensions int
}

// Option 客户端可选参数
type Option func(*config)

// WithHTTPClient 替换默认的 http.Client
func WithHTTPClient(c *http.Client) Option {
	return func(cfg *config) {
		cfg.httpClient = c
	}
}

// WithTimeout 设置单次请求超时
func WithTimeout(d time.Duration) Option {
	return func(cfg *config) {
		cfg.httpClient = &http.Client{Timeout: d}
	}
}

// WithDimensions 声明模型输出维度，响应维度不一致时视为格式错误
func WithDimensions(dim int) Option {
	return func(cfg *config) {
		cfg.dimensions = dim
	}
}

func newConfig(opts []Option) *config {
	cfg := &config{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		dimensions: 768,
	}
	for _, o := range opts {
		o(cfg)
	}
	return cfg
}

// checkVector 校验服务返回的向量
func checkVector(v vector.Vector, dim int) error {
	if err := vector.Validate(v, dim); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}
