package model

import "news_recommend/internal/vector"

// Item 代表推荐系统中的一个内容条目（如一篇新闻）
type Item struct {
	ID        string                 `json:"id"`
	Embedding vector.Vector          `json:"-"`                   // 预计算的向量，不返回给调用方
	MetaData  map[string]interface{} `json:"meta_data,omitempty"` // title, summary, url, category ...
}

// WithoutEmbedding 返回去掉向量的浅拷贝，MetaData 共享但不会被修改
func (i *Item) WithoutEmbedding() Item {
	return Item{
		ID:       i.ID,
		MetaData: i.MetaData,
	}
}

// Recommendation 是一次请求中产生的打分结果，不持久化
type Recommendation struct {
	Item         Item    `json:"item"`
	Similarity   float64 `json:"similarity"`
	IsInterested bool    `json:"is_interested"`
}
