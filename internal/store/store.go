// Package store reads content items and their precomputed embeddings.
package store

import (
	"context"
	"errors"
	"net"

	"news_recommend/internal/model"

	"go.mongodb.org/mongo-driver/mongo"
)

// DefaultMaxCandidates 单次召回的最大候选数量
const DefaultMaxCandidates = 500

// Store 候选内容存储
type Store interface {
	// FetchByID 按 id 批量查询条目，不存在的 id 不出现在结果中
	FetchByID(ctx context.Context, ids []string) (map[string]*model.Item, error)
	// FetchScorable 返回至多 maxCount 个可打分的条目，顺序稳定
	FetchScorable(ctx context.Context, maxCount int) ([]*model.Item, error)
}

// Pinger 可探活的存储
type Pinger interface {
	Ping(ctx context.Context) error
}

// IsRetryable 判断存储错误是否值得重试
func IsRetryable(err error) bool {
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return false
	case errors.Is(err, context.DeadlineExceeded):
		return true
	case mongo.IsTimeout(err), mongo.IsNetworkError(err):
		return true
	}
	var ne net.Error
	return errors.As(err, &ne)
}
