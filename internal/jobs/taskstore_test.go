package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/stroyassist/normax/internal/service"
)

// MockReindexer is a mock implementation of Reindexer
type MockReindexer struct {
	mock.Mock
}

func (m *MockReindexer) ReindexAll(ctx context.Context) (*service.ReindexResult, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ReindexResult), args.Error(1)
}

func TestTaskStore_Lifecycle(t *testing.T) {
	store := NewTaskStore(10)

	task := store.Create()
	assert.Equal(t, TaskStatusRunning, task.Status)

	got, ok := store.Get(task.ID)
	require.True(t, ok)
	assert.Equal(t, TaskStatusRunning, got.Status)

	store.Complete(task.ID, &service.ReindexResult{ReindexedCount: 4, TotalDocuments: 5, TotalTokens: 120})

	got, ok = store.Get(task.ID)
	require.True(t, ok)
	assert.Equal(t, TaskStatusCompleted, got.Status)
	require.NotNil(t, got.Result)
	assert.Equal(t, 4, got.Result.ReindexedCount)
	assert.False(t, got.FinishedAt.IsZero())
}

func TestTaskStore_Fail(t *testing.T) {
	store := NewTaskStore(10)
	task := store.Create()

	store.Fail(task.ID, errors.New("postgres down"))

	got, ok := store.Get(task.ID)
	require.True(t, ok)
	assert.Equal(t, TaskStatusFailed, got.Status)
	assert.Equal(t, "postgres down", got.Error)
}

func TestTaskStore_UnknownTask(t *testing.T) {
	store := NewTaskStore(10)

	_, ok := store.Get("nope")
	assert.False(t, ok)

	// Completing an unknown task must not panic.
	store.Complete("nope", &service.ReindexResult{})
	store.Fail("nope", errors.New("x"))
}

func TestTaskStore_EvictsOldestFinished(t *testing.T) {
	store := NewTaskStore(2)

	first := store.Create()
	store.Complete(first.ID, &service.ReindexResult{})
	second := store.Create()
	store.Complete(second.ID, &service.ReindexResult{})

	third := store.Create()

	assert.Equal(t, 2, store.Len())
	_, ok := store.Get(first.ID)
	assert.False(t, ok, "oldest finished task must be evicted")
	_, ok = store.Get(second.ID)
	assert.True(t, ok)
	_, ok = store.Get(third.ID)
	assert.True(t, ok)
}

func TestTaskStore_NeverEvictsRunningTasks(t *testing.T) {
	store := NewTaskStore(2)

	first := store.Create()
	second := store.Create()
	third := store.Create()

	// All three are still running, so the store grows past its limit.
	assert.Equal(t, 3, store.Len())
	for _, id := range []string{first.ID, second.ID, third.ID} {
		_, ok := store.Get(id)
		assert.True(t, ok)
	}
}

func TestTaskStore_SnapshotIsolation(t *testing.T) {
	store := NewTaskStore(10)
	task := store.Create()

	snapshot, ok := store.Get(task.ID)
	require.True(t, ok)
	snapshot.Status = TaskStatusFailed

	fresh, ok := store.Get(task.ID)
	require.True(t, ok)
	assert.Equal(t, TaskStatusRunning, fresh.Status)
}

func TestReindexDispatcher_Dispatch(t *testing.T) {
	mockIndexer := new(MockReindexer)
	mockIndexer.On("ReindexAll", mock.Anything).Return(&service.ReindexResult{ReindexedCount: 2, TotalDocuments: 2}, nil)

	store := NewTaskStore(10)
	dispatcher := NewReindexDispatcher(store, mockIndexer)

	taskID := dispatcher.Dispatch()
	require.NotEmpty(t, taskID)

	assert.Eventually(t, func() bool {
		task, ok := store.Get(taskID)
		return ok && task.Status == TaskStatusCompleted
	}, time.Second, 10*time.Millisecond)

	task, _ := store.Get(taskID)
	assert.Equal(t, 2, task.Result.ReindexedCount)
}

func TestReindexDispatcher_Failure(t *testing.T) {
	mockIndexer := new(MockReindexer)
	mockIndexer.On("ReindexAll", mock.Anything).Return(nil, errors.New("boom"))

	store := NewTaskStore(10)
	dispatcher := NewReindexDispatcher(store, mockIndexer)

	taskID := dispatcher.Dispatch()

	assert.Eventually(t, func() bool {
		task, ok := store.Get(taskID)
		return ok && task.Status == TaskStatusFailed
	}, time.Second, 10*time.Millisecond)
}
