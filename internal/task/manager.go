package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status represents the status of an asynchronous task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// ErrNotFound is returned for unknown task ids.
var ErrNotFound = errors.New("task not found")

// Task represents an asynchronous task.
type Task struct {
	ID         string      `json:"id"`
	Owner      string      `json:"-"`
	Status     Status      `json:"status"`
	Result     interface{} `json:"result,omitempty"`
	Error      string      `json:"error,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	FinishedAt *time.Time  `json:"finished_at,omitempty"`

	err error
}

// Err returns the error a failed task ended with.
func (t *Task) Err() error {
	return t.err
}

// Manager manages asynchronous tasks using an in-memory store.
type Manager struct {
	tasks map[string]*Task
	mu    sync.RWMutex
	wg    sync.WaitGroup
}

// NewManager creates a new task manager.
func NewManager() *Manager {
	return &Manager{
		tasks: make(map[string]*Task),
	}
}

// NewTask creates a new task owned by owner, stores it, and returns a snapshot.
func (m *Manager) NewTask(owner string) *Task {
	m.mu.Lock()
	defer m.mu.Unlock()

	task := &Task{
		ID:        uuid.New().String(),
		Owner:     owner,
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}
	m.tasks[task.ID] = task
	snapshot := *task
	return &snapshot
}

// Submit creates a task and runs fn in the background. The task's context is
// derived from ctx without its cancellation, bounded by timeout when positive.
func (m *Manager) Submit(ctx context.Context, owner string, timeout time.Duration, fn func(ctx context.Context) (interface{}, error)) *Task {
	task := m.NewTask(owner)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		runCtx := context.WithoutCancel(ctx)
		if timeout > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(runCtx, timeout)
			defer cancel()
		}

		_ = m.UpdateStatus(task.ID, StatusProcessing)
		result, err := fn(runCtx)
		if err != nil {
			_ = m.SetError(task.ID, err)
			return
		}
		_ = m.SetResult(task.ID, result)
	}()

	return task
}

// Wait blocks until every submitted task has finished.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// GetTask retrieves a snapshot of a task by its ID.
func (m *Manager) GetTask(id string) (*Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	task, exists := m.tasks[id]
	if !exists {
		return nil, fmt.Errorf("%w: '%s'", ErrNotFound, id)
	}
	snapshot := *task
	return &snapshot, nil
}

// UpdateStatus updates the status of a task.
func (m *Manager) UpdateStatus(id string, status Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, exists := m.tasks[id]
	if !exists {
		return fmt.Errorf("%w: '%s'", ErrNotFound, id)
	}
	task.Status = status
	return nil
}

// SetResult sets the successful result of a task and marks it as completed.
func (m *Manager) SetResult(id string, result interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, exists := m.tasks[id]
	if !exists {
		return fmt.Errorf("%w: '%s'", ErrNotFound, id)
	}
	now := time.Now()
	task.Result = result
	task.Status = StatusCompleted
	task.Error = ""
	task.err = nil
	task.FinishedAt = &now
	return nil
}

// SetError sets the error message for a failed task and marks it as failed.
func (m *Manager) SetError(id string, err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, exists := m.tasks[id]
	if !exists {
		return fmt.Errorf("%w: '%s'", ErrNotFound, id)
	}
	now := time.Now()
	task.Error = err.Error()
	task.err = err
	task.Status = StatusFailed
	task.FinishedAt = &now
	return nil
}

// Prune drops finished tasks older than maxAge and returns how many were removed.
func (m *Manager) Prune(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for id, task := range m.tasks {
		if task.FinishedAt != nil && task.FinishedAt.Before(cutoff) {
			delete(m.tasks, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked tasks.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tasks)
}
