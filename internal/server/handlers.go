package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"news_recommend/internal/logger"
	"news_recommend/internal/model"
	"news_recommend/internal/task"
	"news_recommend/internal/workflow"

	"github.com/gin-gonic/gin"
)

// RecommendRequest POST 请求体，所有字段可选
type RecommendRequest struct {
	Limit int `json:"limit"`
}

// InteractionRequest 记录一次交互
type InteractionRequest struct {
	ItemID string `json:"item_id" binding:"required"`
}

// parseLimit 解析 ?limit=，缺省为 0 (使用服务默认值)
func parseLimit(c *gin.Context) (int, error) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return 0, fmt.Errorf("limit must be an integer")
		}
		limit = n
	}
	if c.Request.Method == http.MethodPost && c.Request.ContentLength > 0 {
		var req RecommendRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return 0, fmt.Errorf("invalid request body: %v", err)
		}
		if req.Limit != 0 {
			limit = req.Limit
		}
	}
	if limit < 0 {
		return 0, fmt.Errorf("limit must be positive")
	}
	return limit, nil
}

// handleRecommend 处理推荐请求
// GET|POST /api/v1/recommend/:scene?limit=N
func (s *Server) handleRecommend(c *gin.Context) {
	// 1. 获取路径参数
	scene := c.Param("scene")

	// 2. 解析请求参数
	limit, err := parseLimit(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// 3. 从 Context 获取鉴权用户
	u, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	// 4. 执行推荐
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.opts.RequestTimeout)
	defer cancel()

	out, err := s.deps.Service.RecommendScene(ctx, scene, u, limit)
	if err != nil {
		s.writeError(c, scene, err)
		return
	}

	resp := gin.H{
		"scene":           scene,
		"request_id":      c.GetString(ctxKeyRequestID),
		"count":           len(out.Recommendations),
		"recommendations": render(out.Recommendations, u),
	}
	if s.opts.Debug {
		resp["trace"] = out.Trace
	}
	c.JSON(http.StatusOK, resp)
}

// handleRecommendAsync 提交异步推荐任务
// POST /api/v1/recommend/:scene/async
func (s *Server) handleRecommendAsync(c *gin.Context) {
	scene := c.Param("scene")
	limit, err := parseLimit(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	u, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}
	if !s.deps.Service.HasScene(scene) {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("scene '%s' not supported", scene)})
		return
	}

	t := s.deps.Tasks.Submit(c.Request.Context(), u.ID, s.opts.TaskTimeout, func(ctx context.Context) (interface{}, error) {
		out, err := s.deps.Service.RecommendScene(ctx, scene, u, limit)
		if err != nil {
			return nil, err
		}
		return gin.H{
			"scene":           scene,
			"count":           len(out.Recommendations),
			"recommendations": render(out.Recommendations, u),
		}, nil
	})

	c.JSON(http.StatusAccepted, gin.H{
		"task_id": t.ID,
		"status":  t.Status,
	})
}

// handleGetTask 查询异步任务，只有任务的创建者可见
// GET /api/v1/tasks/:id
func (s *Server) handleGetTask(c *gin.Context) {
	u, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	t, err := s.deps.Tasks.GetTask(c.Param("id"))
	if err != nil || t.Owner != u.ID {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}

	resp := gin.H{
		"id":         t.ID,
		"status":     t.Status,
		"created_at": t.CreatedAt,
	}
	if t.FinishedAt != nil {
		resp["finished_at"] = t.FinishedAt
	}
	switch t.Status {
	case task.StatusCompleted:
		resp["result"] = t.Result
	case task.StatusFailed:
		status, code := classify(t.Err())
		resp["error"] = t.Error
		resp["code"] = code
		resp["retryable"] = status == http.StatusServiceUnavailable || status == http.StatusGatewayTimeout
	}
	c.JSON(http.StatusOK, resp)
}

// handleInteraction 记录用户阅读过的文章，后续推荐会将其排除并计入兴趣
// POST /api/v1/interactions
func (s *Server) handleInteraction(c *gin.Context) {
	u, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	var req InteractionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if s.deps.History == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "interaction log disabled"})
		return
	}

	if err := s.deps.History.AddInteraction(u.ID, req.ItemID); err != nil {
		logger.Error("failed to record interaction of %s: %v", u.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record interaction"})
		return
	}
	s.deps.Metrics.IncInteractions()

	c.JSON(http.StatusOK, gin.H{"user_id": u.ID, "item_id": req.ItemID})
}

// handleLogout 吊销当前 token
// POST /api/v1/logout
func (s *Server) handleLogout(c *gin.Context) {
	if s.deps.Blacklist == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "logout disabled"})
		return
	}
	token := c.GetString(ctxKeyToken)
	if err := s.deps.Blacklist.Revoke(c.Request.Context(), token); err != nil {
		logger.Error("failed to revoke token: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "session store unavailable"})
		return
	}
	s.deps.Metrics.IncRevoked()
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// handleHealth 依次探测各依赖
// GET /healthz
func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := gin.H{}
	for name, check := range s.deps.Checks {
		if err := check(ctx); err != nil {
			status = http.StatusServiceUnavailable
			checks[name] = err.Error()
			continue
		}
		checks[name] = "ok"
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	c.JSON(status, gin.H{"status": overall, "checks": checks})
}

// render 把推荐结果展开为响应结构：文章元数据 + id + similarity + is_interested
func render(recs []model.Recommendation, u *model.User) []gin.H {
	interested := make(map[string]struct{}, len(u.InterestList))
	for _, id := range u.InterestList {
		interested[id] = struct{}{}
	}

	out := make([]gin.H, 0, len(recs))
	for _, r := range recs {
		entry := gin.H{}
		for k, v := range r.Item.MetaData {
			entry[k] = v
		}
		_, isInterested := interested[r.Item.ID]
		entry["id"] = r.Item.ID
		entry["similarity"] = r.Similarity
		entry["is_interested"] = isInterested
		out = append(out, entry)
	}
	return out
}

// classify 把错误映射为 HTTP 状态码和机器可读的错误码
func classify(err error) (int, string) {
	var ce *model.CallerError
	switch {
	case errors.As(err, &ce):
		if errors.Is(err, model.ErrNoSignal) {
			return http.StatusBadRequest, "no_signal"
		}
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, workflow.ErrSceneNotFound):
		return http.StatusNotFound, "scene_not_found"
	case model.IsProviderError(err):
		return http.StatusServiceUnavailable, "provider_unavailable"
	case model.IsStoreError(err):
		return http.StatusServiceUnavailable, "store_unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout, "canceled"
	}
	return http.StatusInternalServerError, "internal"
}

func (s *Server) writeError(c *gin.Context, scene string, err error) {
	status, code := classify(err)
	msg := err.Error()
	switch code {
	case "scene_not_found":
		msg = fmt.Sprintf("scene '%s' not supported", scene)
	case "no_signal":
		msg = "set your preferences or read some articles first"
	case "provider_unavailable", "store_unavailable":
		c.Header("Retry-After", "5")
	}
	if status >= http.StatusInternalServerError {
		logger.Error("recommend %s failed: %v", scene, err)
	}
	c.JSON(status, gin.H{
		"error":      msg,
		"code":       code,
		"request_id": c.GetString(ctxKeyRequestID),
	})
}
