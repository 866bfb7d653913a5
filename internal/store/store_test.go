package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"news_recommend/internal/vector"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const corpus = `{"id":"a","title":"Rocket launch","summary":"s","sentiment":"positive","embedding":[1,0]}
{"id":"b","title":"Election","summary":"s","sentiment":"neutral","embedding":[0,1],"top_5_similar":["a"]}

{"id":"no-summary","title":"t","sentiment":"neutral","embedding":[1,1]}
{"id":"no-embedding","title":"t","summary":"s","sentiment":"neutral"}
{"id":"empty-similar","title":"t","summary":"s","sentiment":"neutral","embedding":[1,1],"top_5_similar":[]}
not json
{"title":"no id"}
{"id":"c","title":"Markets","summary":"s","sentiment":"negative","embedding":[0.5,0.5],"url":"https://example.com/c"}
`

func writeCorpus(t *testing.T) string {
	path := filepath.Join(t.TempDir(), "corpus.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(corpus), 0o644))
	return path
}

func TestFileStore_FetchScorable(t *testing.T) {
	s, err := NewFileStore(writeCorpus(t))
	require.NoError(t, err)
	assert.Equal(t, 6, s.Len())

	items, err := s.FetchScorable(context.Background(), 0)
	require.NoError(t, err)

	var got []string
	for _, it := range items {
		got = append(got, it.ID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, got)
	assert.Equal(t, "https://example.com/c", items[2].MetaData["url"])
	assert.Equal(t, vector.Vector{0.5, 0.5}, items[2].Embedding)

	limited, err := s.FetchScorable(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestFileStore_FetchByID(t *testing.T) {
	s, err := NewFileStore(writeCorpus(t))
	require.NoError(t, err)

	found, err := s.FetchByID(context.Background(), []string{"a", "missing", "no-embedding"})
	require.NoError(t, err)
	assert.Len(t, found, 2)
	assert.Equal(t, vector.Vector{1, 0}, found["a"].Embedding)
	assert.Nil(t, found["no-embedding"].Embedding)
}

func TestFileStore_CancelledContext(t *testing.T) {
	s, err := NewFileStore(writeCorpus(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.FetchScorable(ctx, 10)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFileStore_MissingFile(t *testing.T) {
	_, err := NewFileStore(filepath.Join(t.TempDir(), "nope.jsonl"))
	assert.Error(t, err)
}

func TestItemFromDocument(t *testing.T) {
	oid := primitive.NewObjectID()
	published := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	doc := bson.M{
		"_id":              oid,
		"title":            "Rocket launch",
		"embedding":        bson.A{1.0, int32(2), int64(3)},
		"publication_date": primitive.NewDateTimeFromTime(published),
		"top_5_similar":    bson.A{primitive.NewObjectID()},
		"source":           bson.D{{Key: "name", Value: "wire"}},
	}

	item := itemFromDocument(doc)
	require.NotNil(t, item)
	assert.Equal(t, oid.Hex(), item.ID)
	assert.Equal(t, vector.Vector{1, 2, 3}, item.Embedding)
	assert.Equal(t, published, item.MetaData["publication_date"])
	assert.NotContains(t, item.MetaData, "_id")
	assert.NotContains(t, item.MetaData, "embedding")
	assert.Equal(t, map[string]interface{}{"name": "wire"}, item.MetaData["source"])

	similar, ok := item.MetaData["top_5_similar"].([]interface{})
	require.True(t, ok)
	assert.IsType(t, "", similar[0])
}

func TestItemFromDocument_BadEmbeddingLeftEmpty(t *testing.T) {
	item := itemFromDocument(bson.M{"_id": "x", "embedding": bson.A{"not", "numbers"}})
	require.NotNil(t, item)
	assert.Nil(t, item.Embedding)

	assert.Nil(t, itemFromDocument(bson.M{"title": "no id"}))
}

func TestIDValues(t *testing.T) {
	oid := primitive.NewObjectID()
	values := idValues([]string{oid.Hex(), "plain-id"})
	require.Len(t, values, 2)
	assert.Equal(t, oid, values[0])
	assert.Equal(t, "plain-id", values[1])
}

func TestScorableFilter(t *testing.T) {
	f := ScorableFilter()
	for _, field := range []string{"title", "summary", "sentiment", "embedding"} {
		assert.Contains(t, f, field)
	}
	assert.Contains(t, f, "$or")
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(context.Canceled))
	assert.True(t, IsRetryable(context.DeadlineExceeded))
	assert.False(t, IsRetryable(errors.New("bad query")))
}

// 需要真实的 MongoDB，设置 RECOMMEND_TEST_MONGO_URI 后运行
func TestMongoStore_Integration(t *testing.T) {
	uri := os.Getenv("RECOMMEND_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("RECOMMEND_TEST_MONGO_URI not set")
	}

	ctx := context.Background()
	s, err := NewMongoStore(ctx, MongoConfig{URI: uri, Database: "recommend_test", Collection: "news_" + primitive.NewObjectID().Hex()})
	require.NoError(t, err)
	defer s.Close(ctx)
	defer s.coll.Drop(ctx)

	oid := primitive.NewObjectID()
	_, err = s.coll.InsertMany(ctx, []interface{}{
		bson.M{"_id": oid, "title": "t", "summary": "s", "sentiment": "positive", "embedding": bson.A{1.0, 0.0}},
		bson.M{"_id": primitive.NewObjectID(), "title": "t", "summary": "s", "sentiment": "positive", "embedding": bson.A{0.0, 1.0}, "top_5_similar": bson.A{}},
		bson.M{"_id": primitive.NewObjectID(), "title": "t", "sentiment": "positive", "embedding": bson.A{0.0, 1.0}},
	})
	require.NoError(t, err)

	items, err := s.FetchScorable(ctx, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, oid.Hex(), items[0].ID)

	found, err := s.FetchByID(ctx, []string{oid.Hex(), "missing"})
	require.NoError(t, err)
	assert.Equal(t, vector.Vector{1, 0}, found[oid.Hex()].Embedding)
}
