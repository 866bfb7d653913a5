package store

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sync"

	"news_recommend/internal/logger"
	"news_recommend/internal/model"
	"news_recommend/internal/vector"

	"github.com/goccy/go-json"
)

// FileStore 从 JSONL 文件加载的只读语料，每行一篇文章：
// {"id": "...", "embedding": [...], "title": "...", ...}
type FileStore struct {
	filePath string
	mu       sync.RWMutex
	items    []*model.Item // 文件顺序
	byID     map[string]*model.Item
}

// NewFileStore 读取语料文件
func NewFileStore(filePath string) (*FileStore, error) {
	s := &FileStore{filePath: filePath}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload 重新读取语料文件，失败时保留旧数据
func (s *FileStore) Reload() error {
	f, err := os.Open(s.filePath)
	if err != nil {
		return fmt.Errorf("failed to open corpus file: %w", err)
	}
	defer f.Close()

	var (
		items []*model.Item
		byID  = make(map[string]*model.Item)
		line  int
	)
	scanner := bufio.NewScanner(f)
	// 768 维向量的单行可能超过默认的 64KB
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var doc map[string]interface{}
		if err := json.Unmarshal(raw, &doc); err != nil {
			logger.Warn("corpus %s line %d: %v", s.filePath, line, err)
			continue
		}
		item := itemFromJSON(doc)
		if item == nil {
			logger.Warn("corpus %s line %d: missing id", s.filePath, line)
			continue
		}
		if _, dup := byID[item.ID]; dup {
			continue
		}
		items = append(items, item)
		byID[item.ID] = item
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to scan corpus file: %w", err)
	}

	s.mu.Lock()
	s.items = items
	s.byID = byID
	s.mu.Unlock()
	return nil
}

// Len 语料条目数
func (s *FileStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *FileStore) FetchByID(ctx context.Context, ids []string) (map[string]*model.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]*model.Item, len(ids))
	for _, id := range ids {
		if item, ok := s.byID[id]; ok {
			result[id] = item
		}
	}
	return result, nil
}

func (s *FileStore) FetchScorable(ctx context.Context, maxCount int) ([]*model.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if maxCount <= 0 {
		maxCount = DefaultMaxCandidates
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*model.Item, 0, min(maxCount, len(s.items)))
	for _, item := range s.items {
		if len(result) >= maxCount {
			break
		}
		if scorable(item) {
			result = append(result, item)
		}
	}
	return result, nil
}

// scorable 与 ScorableFilter 的规则一致
func scorable(item *model.Item) bool {
	if item.Embedding == nil {
		return false
	}
	for _, field := range []string{"title", "summary", "sentiment"} {
		if item.MetaData[field] == nil {
			return false
		}
	}
	if similar, ok := item.MetaData["top_5_similar"]; ok {
		if arr, isArr := similar.([]interface{}); isArr && len(arr) == 0 {
			return false
		}
	}
	return true
}

func itemFromJSON(doc map[string]interface{}) *model.Item {
	id, _ := doc["id"].(string)
	if id == "" {
		id, _ = doc["_id"].(string)
	}
	if id == "" {
		return nil
	}

	item := &model.Item{
		ID:       id,
		MetaData: make(map[string]interface{}, len(doc)),
	}
	for k, v := range doc {
		switch k {
		case "id", "_id":
		case "embedding":
			item.Embedding = jsonVector(v)
		default:
			item.MetaData[k] = v
		}
	}
	return item
}

func jsonVector(v interface{}) vector.Vector {
	arr, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make(vector.Vector, 0, len(arr))
	for _, e := range arr {
		n, ok := e.(float64)
		if !ok {
			return nil
		}
		out = append(out, n)
	}
	return out
}
