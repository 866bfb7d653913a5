package user

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"news_recommend/internal/history"
	"news_recommend/internal/model"

	"gopkg.in/yaml.v3"
)

var (
	// ErrUserNotFound 用户不存在
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidToken Token 无效
	ErrInvalidToken = errors.New("invalid token")
)

// Provider 定义了用户画像获取的接口
// 返回的 User 是调用方独占的快照，可以安全修改
type Provider interface {
	GetUser(userID string) (*model.User, error)
	GetUserByToken(token string) (*model.User, error)
}

// StaticProvider 基于静态配置文件实现的用户提供者
type StaticProvider struct {
	users      map[string]*model.User
	tokenIndex map[string]*model.User
	mu         sync.RWMutex
}

type staticConfig struct {
	Users []model.User `yaml:"users"`
}

// NewStaticProvider 创建一个新的 StaticProvider 实例
// configPath 是用户配置文件的路径 (yaml格式)
func NewStaticProvider(configPath string) (*StaticProvider, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read user config file: %w", err)
	}

	var config staticConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse user config: %w", err)
	}

	return newStaticProvider(config.Users)
}

func newStaticProvider(users []model.User) (*StaticProvider, error) {
	userMap := make(map[string]*model.User, len(users))
	tokenIndex := make(map[string]*model.User, len(users))

	for i := range users {
		u := &users[i]
		if u.ID == "" {
			return nil, fmt.Errorf("user #%d has no id", i)
		}
		if _, dup := userMap[u.ID]; dup {
			return nil, fmt.Errorf("duplicate user id: %s", u.ID)
		}
		userMap[u.ID] = u

		if u.Token != "" {
			if _, dup := tokenIndex[u.Token]; dup {
				return nil, fmt.Errorf("duplicate token for user: %s", u.ID)
			}
			tokenIndex[u.Token] = u
		}
	}

	return &StaticProvider{
		users:      userMap,
		tokenIndex: tokenIndex,
	}, nil
}

// GetUser 根据 UserID 获取用户信息
func (p *StaticProvider) GetUser(userID string) (*model.User, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	u, ok := p.users[userID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	return u.Clone(), nil
}

// GetUserByToken 根据 Token 获取用户信息
func (p *StaticProvider) GetUserByToken(token string) (*model.User, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	u, ok := p.tokenIndex[token]
	if !ok {
		return nil, ErrInvalidToken
	}
	return u.Clone(), nil
}

// HistoryProvider 在基础画像上合并交互日志中的记录
// 合并按集合语义进行：静态配置中的交互在前，日志中新增的交互按时间顺序追加
type HistoryProvider struct {
	base    Provider
	history history.Store
}

// NewHistoryProvider 创建合并交互日志的用户提供者
func NewHistoryProvider(base Provider, hist history.Store) *HistoryProvider {
	return &HistoryProvider{base: base, history: hist}
}

func (p *HistoryProvider) GetUser(userID string) (*model.User, error) {
	u, err := p.base.GetUser(userID)
	if err != nil {
		return nil, err
	}
	return p.merge(u)
}

func (p *HistoryProvider) GetUserByToken(token string) (*model.User, error) {
	u, err := p.base.GetUserByToken(token)
	if err != nil {
		return nil, err
	}
	return p.merge(u)
}

func (p *HistoryProvider) merge(u *model.User) (*model.User, error) {
	logged, err := p.history.GetInteractions(u.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load interactions of %s: %w", u.ID, err)
	}

	seen := u.InteractionSet()
	for _, id := range logged {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		u.Interactions = append(u.Interactions, id)
	}
	return u, nil
}
