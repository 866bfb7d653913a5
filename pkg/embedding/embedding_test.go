package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"news_recommend/internal/vector"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeminiClient_Embed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/text-embedding-004:embedContent", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-goog-api-key"))

		var req geminiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "models/text-embedding-004", req.Model)
		require.Len(t, req.Content.Parts, 1)
		assert.Equal(t, "space exploration", req.Content.Parts[0].Text)

		json.NewEncoder(w).Encode(map[string]interface{}{
			"embedding": map[string]interface{}{"values": []float64{0.1, 0.2, 0.3}},
		})
	}))
	defer server.Close()

	client := NewGeminiClient(server.URL, "secret", "text-embedding-004", WithDimensions(3))
	assert.Equal(t, "models/text-embedding-004", client.Model())

	emb, err := client.Embed(context.Background(), "space exploration")
	require.NoError(t, err)
	assert.Equal(t, vector.Vector{0.1, 0.2, 0.3}, emb)
}

func TestGeminiClient_WrongDimensionIsMalformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"embedding": map[string]interface{}{"values": []float64{0.1}},
		})
	}))
	defer server.Close()

	client := NewGeminiClient(server.URL, "k", "", WithDimensions(768))
	_, err := client.Embed(context.Background(), "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedResponse)
	assert.True(t, IsRetryable(err))
}

func TestOpenAIClient_Embed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{{"embedding": []float64{1, 0}}},
		})
	}))
	defer server.Close()

	client := NewOpenAIClient(server.URL, "k", "text-embedding-3-small", WithDimensions(2))
	emb, err := client.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, vector.Vector{1, 0}, emb)
	assert.Equal(t, 2, client.Dimensions())
}

func TestOpenAIClient_EmptyData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[]}`))
	}))
	defer server.Close()

	_, err := NewOpenAIClient(server.URL, "k", "m").Embed(context.Background(), "x")
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestStatusErrorClassification(t *testing.T) {
	for _, tc := range []struct {
		status    int
		retryable bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusUnauthorized, false},
		{http.StatusBadRequest, false},
	} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))
		_, err := NewGeminiClient(server.URL, "k", "m").Embed(context.Background(), "x")
		server.Close()

		var se *StatusError
		require.True(t, errors.As(err, &se), "status %d", tc.status)
		assert.Equal(t, tc.status, se.StatusCode)
		assert.Equal(t, tc.retryable, IsRetryable(err), "status %d", tc.status)
	}
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(context.Canceled))
	assert.True(t, IsRetryable(context.DeadlineExceeded))
	assert.False(t, IsRetryable(ErrCircuitOpen))
	assert.False(t, IsRetryable(errors.New("unknown")))
}

type fakeProvider struct {
	calls atomic.Int32
	err   error
	vec   vector.Vector
}

func (f *fakeProvider) Embed(ctx context.Context, text string) (vector.Vector, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.vec, nil
}
func (f *fakeProvider) Dimensions() int { return len(f.vec) }
func (f *fakeProvider) Model() string   { return "fake" }

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	inner := &fakeProvider{err: &StatusError{StatusCode: 503}}
	p := WithBreaker(inner, BreakerConfig{ConsecutiveFailures: 2, Timeout: time.Minute})

	for i := 0; i < 2; i++ {
		_, err := p.Embed(context.Background(), "x")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrCircuitOpen)
	}
	assert.Equal(t, gobreaker.StateOpen, p.State())

	_, err := p.Embed(context.Background(), "x")
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(2), inner.calls.Load())
}

func TestBreakerPassesThrough(t *testing.T) {
	inner := &fakeProvider{vec: vector.Vector{1, 2}}
	p := WithBreaker(inner, BreakerConfig{})
	v, err := p.Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, vector.Vector{1, 2}, v)
	assert.Equal(t, 2, p.Dimensions())
	assert.Equal(t, "fake", p.Model())
}

func TestRateLimitedProvider(t *testing.T) {
	inner := &fakeProvider{vec: vector.Vector{1}}
	assert.Same(t, Provider(inner), WithRateLimit(inner, 0, 0))

	p := WithRateLimit(inner, 0.001, 1)
	_, err := p.Embed(context.Background(), "first")
	require.NoError(t, err)

	// the single token is spent, the next wait would outlive the deadline
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = p.Embed(ctx, "second")
	require.Error(t, err)
	assert.Equal(t, int32(1), inner.calls.Load())
}
