package history

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_AddAndGetInteractions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "interactions.jsonl")
	store, err := NewFileStore(path)
	require.NoError(t, err)

	require.NoError(t, store.AddInteraction("u1", "a"))
	require.NoError(t, store.AddInteraction("u1", "b"))
	require.NoError(t, store.AddInteraction("u1", "a"))
	require.NoError(t, store.AddInteraction("u2", "c"))

	got, err := store.GetInteractions("u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)

	none, err := store.GetInteractions("nobody")
	require.NoError(t, err)
	assert.Empty(t, none)

	// 重新加载后数据一致，重复交互没有写入文件
	reloaded, err := NewFileStore(path)
	require.NoError(t, err)
	assert.Len(t, reloaded.records, 3)
	got, err = reloaded.GetInteractions("u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestFileStore_AddInteractionValidates(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "h.jsonl"))
	require.NoError(t, err)

	assert.Error(t, store.AddInteraction("", "a"))
	assert.Error(t, store.AddInteraction("u1", ""))
}
