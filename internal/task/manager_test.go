package task

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestSubmitCompletes(t *testing.T) {
	m := NewManager()
	task := m.Submit(context.Background(), "u1", time.Second, func(ctx context.Context) (interface{}, error) {
		_, ok := ctx.Deadline()
		assert.True(t, ok)
		return []string{"a", "b"}, nil
	})
	assert.Equal(t, StatusPending, task.Status)
	assert.Equal(t, "u1", task.Owner)

	m.Wait()
	got, err := m.GetTask(task.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, []string{"a", "b"}, got.Result)
	assert.NotNil(t, got.FinishedAt)
}

func TestSubmitFails(t *testing.T) {
	m := NewManager()
	boom := errors.New("boom")
	task := m.Submit(context.Background(), "u1", 0, func(ctx context.Context) (interface{}, error) {
		return nil, boom
	})
	m.Wait()

	got, err := m.GetTask(task.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, "boom", got.Error)
	assert.ErrorIs(t, got.Err(), boom)
}

func TestSubmitOutlivesRequestContext(t *testing.T) {
	m := NewManager()
	ctx, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})
	task := m.Submit(ctx, "u1", 0, func(ctx context.Context) (interface{}, error) {
		<-release
		return "done", ctx.Err()
	})
	cancel()
	close(release)
	m.Wait()

	got, err := m.GetTask(task.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
}

func TestGetTaskUnknown(t *testing.T) {
	_, err := NewManager().GetTask("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPrune(t *testing.T) {
	m := NewManager()
	done := m.NewTask("u1")
	require.NoError(t, m.SetResult(done.ID, 1))
	m.NewTask("u1")

	assert.Equal(t, 0, m.Prune(time.Hour))
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, 1, m.Prune(time.Millisecond))
	assert.Equal(t, 1, m.Len())
}
