package history

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// Record 代表一条用户交互记录（用户阅读/点击了某篇文章）
type Record struct {
	UserID    string `json:"user_id"`
	ItemID    string `json:"item_id"`
	Timestamp int64  `json:"timestamp"`
}

// Store 定义交互记录存储接口
type Store interface {
	// GetInteractions 获取用户交互过的条目 id，按首次交互时间排序并去重
	GetInteractions(userID string) ([]string, error)
	// AddInteraction 追加一条交互记录，重复交互不会改变集合
	AddInteraction(userID string, itemID string) error
}

// FileStore 基于 JSONL 文件的交互记录存储实现
type FileStore struct {
	filePath string
	mu       sync.RWMutex
	records  []Record // 内存缓存，用于快速查询
	now      func() time.Time
}

// NewFileStore 创建一个新的 FileStore
// 如果文件不存在，会自动创建
func NewFileStore(filePath string) (*FileStore, error) {
	fs := &FileStore{
		filePath: filePath,
		records:  make([]Record, 0),
		now:      time.Now,
	}

	if err := fs.load(); err != nil {
		return nil, err
	}

	return fs, nil
}

// load 从文件加载所有记录到内存
func (s *FileStore) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := filepath.Dir(s.filePath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create history dir: %w", err)
		}
	}

	f, err := os.OpenFile(s.filePath, os.O_RDONLY|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open history file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var record Record
		if err := json.Unmarshal(line, &record); err != nil {
			// 忽略损坏的行
			continue
		}
		if record.UserID == "" || record.ItemID == "" {
			continue
		}
		s.records = append(s.records, record)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to scan history file: %w", err)
	}

	return nil
}

// GetInteractions 获取用户的交互 id 列表
func (s *FileStore) GetInteractions(userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	result := make([]string, 0)
	for _, r := range s.records {
		if r.UserID != userID {
			continue
		}
		if _, ok := seen[r.ItemID]; ok {
			continue
		}
		seen[r.ItemID] = struct{}{}
		result = append(result, r.ItemID)
	}

	return result, nil
}

// AddInteraction 保存新的交互到文件和内存；已存在的交互直接忽略
func (s *FileStore) AddInteraction(userID string, itemID string) error {
	if userID == "" || itemID == "" {
		return fmt.Errorf("user id and item id are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.records {
		if r.UserID == userID && r.ItemID == itemID {
			return nil
		}
	}

	f, err := os.OpenFile(s.filePath, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open history file for appending: %w", err)
	}
	defer f.Close()

	record := Record{
		UserID:    userID,
		ItemID:    itemID,
		Timestamp: s.now().Unix(),
	}

	// 1. 写入文件
	if err := json.NewEncoder(f).Encode(record); err != nil {
		return fmt.Errorf("failed to write history record: %w", err)
	}

	// 2. 更新内存
	s.records = append(s.records, record)

	return nil
}

// Cleanup 删除早于 days 天的记录并重写文件
func (s *FileStore) Cleanup(days int) error {
	if days <= 0 {
		return fmt.Errorf("retention days must be positive, got %d", days)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Unix() - int64(days*24*60*60)

	kept := make([]Record, 0, len(s.records))
	for _, r := range s.records {
		if r.Timestamp >= cutoff {
			kept = append(kept, r)
		}
	}
	if len(kept) == len(s.records) {
		return nil
	}

	// 先写临时文件再替换，避免写到一半时丢失数据
	tmp, err := os.CreateTemp(filepath.Dir(s.filePath), filepath.Base(s.filePath)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp history file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	w := bufio.NewWriter(tmp)
	encoder := json.NewEncoder(w)
	for _, r := range kept {
		if err := encoder.Encode(r); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to write history record: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to flush history file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp history file: %w", err)
	}
	if err := os.Rename(tmpName, s.filePath); err != nil {
		return fmt.Errorf("failed to replace history file: %w", err)
	}

	s.records = kept
	return nil
}
