package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"news_recommend/internal/history"
	"news_recommend/internal/metrics"
	"news_recommend/internal/model"
	"news_recommend/internal/nodes"
	"news_recommend/internal/recommend"
	"news_recommend/internal/retry"
	"news_recommend/internal/session"
	"news_recommend/internal/task"
	"news_recommend/internal/user"
	"news_recommend/internal/vector"
	"news_recommend/internal/workflow"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const usersYAML = `
users:
  - id: alice
    token: token-alice
    name: Alice
    preferences: ["space", "exploration"]
    interest_list: ["z"]
  - id: bob
    token: token-bob
    name: Bob
    preferences: ["space"]
  - id: carol
    token: token-carol
    name: Carol
`

type memStore struct {
	items []*model.Item
}

func (s *memStore) FetchByID(_ context.Context, ids []string) (map[string]*model.Item, error) {
	out := make(map[string]*model.Item)
	for _, it := range s.items {
		for _, id := range ids {
			if it.ID == id {
				out[id] = it
			}
		}
	}
	return out, nil
}

func (s *memStore) FetchScorable(_ context.Context, maxCount int) ([]*model.Item, error) {
	if len(s.items) > maxCount {
		return s.items[:maxCount], nil
	}
	return s.items, nil
}

type fixedProvider struct {
	vec   vector.Vector
	err   error
	calls atomic.Int32
}

func (p *fixedProvider) Embed(context.Context, string) (vector.Vector, error) {
	p.calls.Add(1)
	if p.err != nil {
		return nil, p.err
	}
	return p.vec, nil
}
func (p *fixedProvider) Dimensions() int { return 2 }
func (p *fixedProvider) Model() string   { return "fixed" }

type testEnv struct {
	server    *Server
	provider  *fixedProvider
	blacklist *session.MemoryBlacklist
	tasks     *task.Manager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	usersPath := filepath.Join(dir, "users.yaml")
	require.NoError(t, os.WriteFile(usersPath, []byte(usersYAML), 0o644))

	static, err := user.NewStaticProvider(usersPath)
	require.NoError(t, err)
	hist, err := history.NewFileStore(filepath.Join(dir, "interactions.jsonl"))
	require.NoError(t, err)

	st := &memStore{items: []*model.Item{
		{ID: "x", Embedding: vector.Vector{1, 0}, MetaData: map[string]interface{}{"title": "Mars landing"}},
		{ID: "y", Embedding: vector.Vector{0, 1}, MetaData: map[string]interface{}{"title": "Stock market"}},
		{ID: "z", Embedding: vector.Vector{0.9, 0.1}, MetaData: map[string]interface{}{"title": "Moon base"}},
	}}
	provider := &fixedProvider{vec: vector.Vector{1, 0}}
	m := metrics.New()

	registry := workflow.NewRegistry()
	nodes.Register(registry, nodes.Deps{
		Store:    st,
		Provider: provider,
		Retry:    retry.Config{MaxAttempts: 1},
		Metrics:  m,
	})
	engine, err := workflow.NewEngineFromConfig(recommend.DefaultPipelines(), registry)
	require.NoError(t, err)

	bl := session.NewMemoryBlacklist(0, time.Minute)
	tasks := task.NewManager()
	t.Cleanup(tasks.Wait)

	srv := NewServer(Deps{
		Users:     user.NewHistoryProvider(static, hist),
		Service:   recommend.NewService(engine, recommend.DefaultConfig(), m),
		History:   hist,
		Blacklist: bl,
		Tasks:     tasks,
		Metrics:   m,
	}, Options{RequestTimeout: 5 * time.Second})

	return &testEnv{server: srv, provider: provider, blacklist: bl, tasks: tasks}
}

func (e *testEnv) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w
}

type recommendResponse struct {
	Scene           string                   `json:"scene"`
	RequestID       string                   `json:"request_id"`
	Count           int                      `json:"count"`
	Recommendations []map[string]interface{} `json:"recommendations"`
	Code            string                   `json:"code"`
	Error           string                   `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) recommendResponse {
	t.Helper()
	var resp recommendResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func recIDs(resp recommendResponse) []string {
	out := make([]string, 0, len(resp.Recommendations))
	for _, r := range resp.Recommendations {
		out = append(out, r["id"].(string))
	}
	return out
}

func TestRecommend(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/api/v1/recommend/news", "token-alice", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode(t, w)
	assert.Equal(t, "news", resp.Scene)
	assert.Equal(t, 3, resp.Count)
	assert.Equal(t, []string{"x", "z", "y"}, recIDs(resp))
	assert.Equal(t, "Mars landing", resp.Recommendations[0]["title"])
	assert.InDelta(t, 1.0, resp.Recommendations[0]["similarity"], 1e-9)
	assert.Equal(t, false, resp.Recommendations[0]["is_interested"])
	assert.Equal(t, true, resp.Recommendations[1]["is_interested"])
	assert.NotContains(t, resp.Recommendations[0], "embedding")
	assert.NotEmpty(t, resp.RequestID)
	assert.Equal(t, resp.RequestID, w.Header().Get(headerRequestID))
}

func TestRecommendLimit(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/recommend/news?limit=2", "token-alice", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"x", "z"}, recIDs(decode(t, w)))

	w = env.do(t, http.MethodPost, "/api/v1/recommend/news", "token-alice", `{"limit":1}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"x"}, recIDs(decode(t, w)))

	w = env.do(t, http.MethodGet, "/api/v1/recommend/news?limit=abc", "token-alice", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRecommendKeepsCallerRequestID(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/recommend/news", nil)
	req.Header.Set("Authorization", "Bearer token-alice")
	req.Header.Set(headerRequestID, "req-123")
	w := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "req-123", decode(t, w).RequestID)
}

func TestAuth(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/recommend/news", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/recommend/news", nil)
	req.Header.Set("Authorization", "Token token-alice")
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	w = env.do(t, http.MethodGet, "/api/v1/recommend/news", "nobody", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRecommendNoSignal(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/api/v1/recommend/news", "token-carol", "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "no_signal", decode(t, w).Code)
	assert.Zero(t, env.provider.calls.Load())
}

func TestRecommendUnknownScene(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/api/v1/recommend/sports", "token-alice", "")
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "scene_not_found", decode(t, w).Code)
}

func TestRecommendProviderFailure(t *testing.T) {
	env := newTestEnv(t)
	env.provider.err = errors.New("quota exhausted")

	w := env.do(t, http.MethodGet, "/api/v1/recommend/news", "token-alice", "")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "provider_unavailable", decode(t, w).Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestInteractionExcludesItem(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/interactions", "token-bob", `{"item_id":"x"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(t, http.MethodGet, "/api/v1/recommend/news", "token-bob", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"z", "y"}, recIDs(decode(t, w)))

	w = env.do(t, http.MethodPost, "/api/v1/interactions", "token-bob", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogoutRevokesToken(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/logout", "token-alice", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, env.blacklist.Len())

	w = env.do(t, http.MethodGet, "/api/v1/recommend/news", "token-alice", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "revoked")

	w = env.do(t, http.MethodGet, "/api/v1/recommend/news", "token-bob", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAsyncRecommend(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/recommend/news/async?limit=1", "token-alice", "")
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	var accepted struct {
		TaskID string `json:"task_id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &accepted))
	require.NotEmpty(t, accepted.TaskID)
	env.tasks.Wait()

	w = env.do(t, http.MethodGet, "/api/v1/tasks/"+accepted.TaskID, "token-alice", "")
	require.Equal(t, http.StatusOK, w.Code)
	var got struct {
		Status string `json:"status"`
		Result struct {
			Count           int                      `json:"count"`
			Recommendations []map[string]interface{} `json:"recommendations"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, string(task.StatusCompleted), got.Status)
	assert.Equal(t, 1, got.Result.Count)
	assert.Equal(t, "x", got.Result.Recommendations[0]["id"])

	// 其他用户看不到
	w = env.do(t, http.MethodGet, "/api/v1/tasks/"+accepted.TaskID, "token-bob", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAsyncRecommendFailure(t *testing.T) {
	env := newTestEnv(t)
	env.provider.err = errors.New("boom")

	w := env.do(t, http.MethodPost, "/api/v1/recommend/news/async", "token-alice", "")
	require.Equal(t, http.StatusAccepted, w.Code)
	var accepted struct {
		TaskID string `json:"task_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &accepted))
	env.tasks.Wait()

	w = env.do(t, http.MethodGet, "/api/v1/tasks/"+accepted.TaskID, "token-alice", "")
	require.Equal(t, http.StatusOK, w.Code)
	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "failed", got["status"])
	assert.Equal(t, "provider_unavailable", got["code"])
	assert.Equal(t, true, got["retryable"])

	w = env.do(t, http.MethodPost, "/api/v1/recommend/sports/async", "token-alice", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, w.Code)

	env.server.deps.Checks = map[string]HealthCheck{
		"store": func(context.Context) error { return errors.New("connection refused") },
	}
	w = env.do(t, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodGet, "/api/v1/recommend/news", "token-alice", "")

	w := env.do(t, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `recommend_requests_total{outcome="ok",scene="news"} 1`)
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{model.ErrNoSignal, http.StatusBadRequest, "no_signal"},
		{&model.CallerError{Reason: "nil user"}, http.StatusBadRequest, "bad_request"},
		{&model.ProviderError{Op: "embed", Err: errors.New("x")}, http.StatusServiceUnavailable, "provider_unavailable"},
		{&model.StoreError{Op: "fetch", Err: errors.New("x")}, http.StatusServiceUnavailable, "store_unavailable"},
		{workflow.ErrSceneNotFound, http.StatusNotFound, "scene_not_found"},
		{context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout"},
		{context.Canceled, http.StatusRequestTimeout, "canceled"},
		{errors.New("x"), http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		status, code := classify(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.Equal(t, tc.code, code, tc.err.Error())
	}
}
