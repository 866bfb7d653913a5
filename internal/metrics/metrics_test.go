package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecord(t *testing.T) {
	m := New()

	m.ObserveRequest("news", OutcomeOK, 20*time.Millisecond)
	m.ObserveRequest("news", OutcomeOK, 30*time.Millisecond)
	m.AddSkipped("rank", 3)
	m.AddSkipped("rank", 0)
	m.IncRetry("provider")
	m.SetBreakerOpen("embedding", true)
	m.IncInteractions()
	m.IncRevoked()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Requests.WithLabelValues("news", OutcomeOK)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.SkippedEmbeddings.WithLabelValues("rank")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExternalRetries.WithLabelValues("provider")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CircuitBreakerOpen.WithLabelValues("embedding")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Interactions))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RevokedTokens))
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRequest("news", OutcomeOK, time.Second)
		m.ObserveNode("n", "rank", time.Second)
		m.AddSkipped("rank", 1)
		m.ObserveCandidates(10)
		m.IncRetry("store")
		m.SetBreakerOpen("x", false)
		m.IncInteractions()
		m.IncRevoked()
	})
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.AddSkipped("aggregate", 1)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `recommend_skipped_embeddings_total{stage="aggregate"} 1`)
}
