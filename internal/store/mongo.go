package store

import (
	"context"
	"fmt"
	"time"

	"news_recommend/internal/model"
	"news_recommend/internal/vector"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoConfig MongoDB 连接配置
type MongoConfig struct {
	URI            string
	Database       string
	Collection     string
	ConnectTimeout time.Duration
}

// MongoStore 基于 MongoDB 集合的候选存储
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoStore 连接 MongoDB 并确认可用
func NewMongoStore(ctx context.Context, cfg MongoConfig) (*MongoStore, error) {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect mongo: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	return &MongoStore{
		client: client,
		coll:   client.Database(cfg.Database).Collection(cfg.Collection),
	}, nil
}

// Ping 探活
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// Close 断开连接
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// ScorableFilter 只选择标题、摘要、情感与向量都存在的文章；
// top_5_similar 若存在则必须非空
func ScorableFilter() bson.M {
	present := bson.M{"$exists": true, "$ne": nil}
	return bson.M{
		"title":     present,
		"summary":   present,
		"sentiment": present,
		"embedding": present,
		"$or": bson.A{
			bson.M{"top_5_similar": bson.M{"$exists": false}},
			bson.M{"top_5_similar": bson.M{"$ne": bson.A{}}},
		},
	}
}

// scorableProjection 返回给调用方的字段
func scorableProjection() bson.M {
	fields := []string{
		"_id", "title", "summary", "sentiment", "main_image", "embedding",
		"domain", "category", "url", "publication_date", "top_5_similar",
	}
	proj := bson.M{}
	for _, f := range fields {
		proj[f] = 1
	}
	return proj
}

// FetchScorable 按 _id 升序返回至多 maxCount 篇可打分文章
func (s *MongoStore) FetchScorable(ctx context.Context, maxCount int) ([]*model.Item, error) {
	if maxCount <= 0 {
		maxCount = DefaultMaxCandidates
	}
	opts := options.Find().
		SetProjection(scorableProjection()).
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetLimit(int64(maxCount))

	cursor, err := s.coll.Find(ctx, ScorableFilter(), opts)
	if err != nil {
		return nil, fmt.Errorf("find scorable: %w", err)
	}
	defer cursor.Close(ctx)

	items := make([]*model.Item, 0, maxCount)
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode scorable: %w", err)
		}
		if item := itemFromDocument(doc); item != nil {
			items = append(items, item)
		}
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate scorable: %w", err)
	}
	return items, nil
}

// FetchByID 查询指定 id 的文章向量
func (s *MongoStore) FetchByID(ctx context.Context, ids []string) (map[string]*model.Item, error) {
	result := make(map[string]*model.Item, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	opts := options.Find().SetProjection(bson.M{"_id": 1, "embedding": 1})
	cursor, err := s.coll.Find(ctx, bson.M{"_id": bson.M{"$in": idValues(ids)}}, opts)
	if err != nil {
		return nil, fmt.Errorf("find by id: %w", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode by id: %w", err)
		}
		if item := itemFromDocument(doc); item != nil {
			result[item.ID] = item
		}
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate by id: %w", err)
	}
	return result, nil
}

// idValues 把 hex 形式的 id 转成 ObjectID，其他 id 按字符串匹配
func idValues(ids []string) bson.A {
	values := make(bson.A, 0, len(ids))
	for _, id := range ids {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			values = append(values, oid)
			continue
		}
		values = append(values, id)
	}
	return values
}

// itemFromDocument 把 Mongo 文档转换为 Item；没有 _id 的文档返回 nil。
// 无法解析的 embedding 保留为空，由排序阶段作为格式错误跳过。
func itemFromDocument(doc bson.M) *model.Item {
	id := idString(doc["_id"])
	if id == "" {
		return nil
	}

	item := &model.Item{
		ID:       id,
		MetaData: make(map[string]interface{}, len(doc)),
	}
	for k, v := range doc {
		switch k {
		case "_id":
		case "embedding":
			item.Embedding = toVector(v)
		default:
			item.MetaData[k] = normalize(v)
		}
	}
	return item
}

func idString(v interface{}) string {
	switch id := v.(type) {
	case primitive.ObjectID:
		return id.Hex()
	case string:
		return id
	case nil:
		return ""
	default:
		return fmt.Sprint(id)
	}
}

func toVector(v interface{}) vector.Vector {
	arr, ok := v.(primitive.A)
	if !ok {
		return nil
	}
	out := make(vector.Vector, 0, len(arr))
	for _, e := range arr {
		switch n := e.(type) {
		case float64:
			out = append(out, n)
		case float32:
			out = append(out, float64(n))
		case int32:
			out = append(out, float64(n))
		case int64:
			out = append(out, float64(n))
		default:
			return nil
		}
	}
	return out
}

// normalize 把 BSON 特有类型转换为可 JSON 序列化的值
func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case primitive.ObjectID:
		return t.Hex()
	case primitive.DateTime:
		return t.Time().UTC()
	case primitive.A:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	case primitive.M:
		out := make(map[string]interface{}, len(t))
		for k, e := range t {
			out[k] = normalize(e)
		}
		return out
	case primitive.D:
		out := make(map[string]interface{}, len(t))
		for _, e := range t {
			out[e.Key] = normalize(e.Value)
		}
		return out
	default:
		return v
	}
}
