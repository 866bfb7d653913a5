// Package session keeps the set of revoked bearer tokens.
package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

// DefaultTTL 吊销记录的保留时间，应不短于 token 的有效期
const DefaultTTL = 30 * time.Minute

// ErrEmptyToken 空 token 不能被吊销
var ErrEmptyToken = errors.New("empty token")

// Blacklist 已吊销 token 的集合，条目在 TTL 后自动过期
type Blacklist interface {
	Revoke(ctx context.Context, token string) error
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// MemoryBlacklist 进程内实现，超过容量时淘汰最久未使用的条目
type MemoryBlacklist struct {
	lru *expirable.LRU[string, struct{}]
}

// NewMemoryBlacklist 创建进程内黑名单，size <= 0 时使用 10000
func NewMemoryBlacklist(size int, ttl time.Duration) *MemoryBlacklist {
	if size <= 0 {
		size = 10000
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryBlacklist{lru: expirable.NewLRU[string, struct{}](size, nil, ttl)}
}

func (b *MemoryBlacklist) Revoke(_ context.Context, token string) error {
	if token == "" {
		return ErrEmptyToken
	}
	b.lru.Add(fingerprint(token), struct{}{})
	return nil
}

func (b *MemoryBlacklist) IsRevoked(_ context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	return b.lru.Contains(fingerprint(token)), nil
}

// Len 当前未过期的条目数
func (b *MemoryBlacklist) Len() int {
	return b.lru.Len()
}

// RedisBlacklist 多实例共享的实现，每个 token 对应一个带过期时间的 key
type RedisBlacklist struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisBlacklist 创建基于 Redis 的黑名单
func NewRedisBlacklist(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisBlacklist {
	if prefix == "" {
		prefix = "recommend:revoked:"
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisBlacklist{client: client, prefix: prefix, ttl: ttl}
}

func (b *RedisBlacklist) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return ErrEmptyToken
	}
	if err := b.client.Set(ctx, b.prefix+fingerprint(token), 1, b.ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (b *RedisBlacklist) IsRevoked(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	n, err := b.client.Exists(ctx, b.prefix+fingerprint(token)).Result()
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return n > 0, nil
}

// Ping 探活
func (b *RedisBlacklist) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

// 只保存 token 的摘要
func fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
