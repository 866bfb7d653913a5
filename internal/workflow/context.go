package workflow

import (
	"context"
	"sync"

	"news_recommend/internal/model"
	"news_recommend/internal/vector"
)

// Context 承载一次推荐请求的所有状态信息
// 它是并发安全的，支持并行节点同时写入不同的字段
type Context struct {
	Ctx    context.Context
	UserID string
	User   *model.User
	Limit  int
	Config map[string]interface{}

	*state
}

// state 数据流转区 (需要锁保护)，由同一请求派生出的所有 Context 共享
type state struct {
	mu                sync.RWMutex
	interactionVector vector.Vector
	preferenceVector  vector.Vector
	userVector        vector.Vector
	Candidates        []*model.Item          // 召回的候选集
	Results           []model.Recommendation // 最终排序结果，只由排序节点写入
	Skipped           int                    // 因向量格式错误被跳过的条目数
	TraceLog          []string               // 执行日志
}

// NewContext 创建一个新的工作流上下文
func NewContext(ctx context.Context, user *model.User, limit int) *Context {
	return &Context{
		Ctx:    ctx,
		UserID: user.ID,
		User:   user,
		Limit:  limit,
		Config: make(map[string]interface{}),
		state: &state{
			Candidates: make([]*model.Item, 0),
			TraceLog:   make([]string, 0),
		},
	}
}

// WithContext 派生一个共享状态、但使用新 context.Context 的工作流上下文
// 并行节点用它让子节点感知兄弟节点的失败
func (c *Context) WithContext(ctx context.Context) *Context {
	return &Context{
		Ctx:    ctx,
		UserID: c.UserID,
		User:   c.User,
		Limit:  c.Limit,
		Config: c.Config,
		state:  c.state,
	}
}

// SetInteractionVector 记录交互历史聚合后的向量 (线程安全)
func (c *Context) SetInteractionVector(v vector.Vector) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.interactionVector = v
}

// InteractionVector 读取交互向量 (线程安全)
func (c *Context) InteractionVector() vector.Vector {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.interactionVector
}

// SetPreferenceVector 记录偏好文本的向量 (线程安全)
func (c *Context) SetPreferenceVector(v vector.Vector) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.preferenceVector = v
}

// PreferenceVector 读取偏好向量 (线程安全)
func (c *Context) PreferenceVector() vector.Vector {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.preferenceVector
}

// SetUserVector 记录合成后的用户兴趣向量 (线程安全)
func (c *Context) SetUserVector(v vector.Vector) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userVector = v
}

// UserVector 读取用户兴趣向量 (线程安全)
func (c *Context) UserVector() vector.Vector {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userVector
}

// AddCandidates 向候选集中添加项目 (线程安全)
func (c *Context) AddCandidates(items []*model.Item) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Candidates = append(c.Candidates, items...)
}

// GetCandidates 获取当前候选集的副本 (线程安全)
func (c *Context) GetCandidates() []*model.Item {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make([]*model.Item, len(c.Candidates))
	copy(result, c.Candidates)
	return result
}

// UpdateCandidates 更新整个候选集 (线程安全)
func (c *Context) UpdateCandidates(items []*model.Item) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Candidates = items
}

// SetResults 写入最终结果 (线程安全)
func (c *Context) SetResults(recs []model.Recommendation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Results = recs
}

// AddSkipped 累加被跳过的条目数 (线程安全)
func (c *Context) AddSkipped(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Skipped += n
}

// GetResults 获取最终结果的副本 (线程安全)
func (c *Context) GetResults() []model.Recommendation {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.Results == nil {
		return nil
	}
	result := make([]model.Recommendation, len(c.Results))
	copy(result, c.Results)
	return result
}

// SkippedCount 读取被跳过的条目数 (线程安全)
func (c *Context) SkippedCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Skipped
}

// AddLog 添加追踪日志
func (c *Context) AddLog(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.TraceLog = append(c.TraceLog, msg)
}

// Logs 获取追踪日志副本
func (c *Context) Logs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.TraceLog...)
}

// Node 定义工作流中的执行节点
type Node interface {
	Name() string
	Type() string // e.g., "recall", "aggregate", "embed", "compose", "rank", "parallel"
	Execute(ctx *Context) error
}
