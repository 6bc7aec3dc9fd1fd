package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stroyassist/normax/internal/service"
)

// TaskStatus is the lifecycle state of an async reindex run.
type TaskStatus string

const (
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

func (s TaskStatus) terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// ReindexTask tracks one dispatched reindex run. Tasks live in memory
// only and are lost on restart.
type ReindexTask struct {
	ID         string                 `json:"task_id"`
	Status     TaskStatus             `json:"status"`
	Result     *service.ReindexResult `json:"result,omitempty"`
	Error      string                 `json:"error,omitempty"`
	StartedAt  time.Time              `json:"started_at"`
	FinishedAt time.Time              `json:"finished_at,omitzero"`
}

// DefaultTaskLimit bounds the store; without a bound, task ids of finished
// runs would accumulate for the life of the process.
const DefaultTaskLimit = 100

// TaskStore is a bounded in-memory registry of reindex tasks. When full,
// the oldest finished task is evicted; running tasks are never dropped.
type TaskStore struct {
	mu    sync.Mutex
	tasks map[string]*ReindexTask
	order []string
	limit int
	now   func() time.Time
}

func NewTaskStore(limit int) *TaskStore {
	if limit <= 0 {
		limit = DefaultTaskLimit
	}
	return &TaskStore{
		tasks: make(map[string]*ReindexTask),
		limit: limit,
		now:   time.Now,
	}
}

// Create registers a new running task.
func (s *TaskStore) Create() *ReindexTask {
	s.mu.Lock()
	defer s.mu.Unlock()

	task := &ReindexTask{
		ID:        uuid.NewString(),
		Status:    TaskStatusRunning,
		StartedAt: s.now(),
	}
	s.tasks[task.ID] = task
	s.order = append(s.order, task.ID)
	s.evictLocked()

	copied := *task
	return &copied
}

// Complete marks a task as finished with its result.
func (s *TaskStore) Complete(id string, result *service.ReindexResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if task, ok := s.tasks[id]; ok {
		task.Status = TaskStatusCompleted
		task.Result = result
		task.FinishedAt = s.now()
	}
}

// Fail marks a task as failed.
func (s *TaskStore) Fail(id string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if task, ok := s.tasks[id]; ok {
		task.Status = TaskStatusFailed
		task.Error = err.Error()
		task.FinishedAt = s.now()
	}
}

// Get returns a snapshot of a task.
func (s *TaskStore) Get(id string) (*ReindexTask, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, false
	}
	copied := *task
	return &copied, true
}

// Len reports how many tasks are currently tracked.
func (s *TaskStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

func (s *TaskStore) evictLocked() {
	if len(s.tasks) <= s.limit {
		return
	}
	for i, id := range s.order {
		task, ok := s.tasks[id]
		if !ok || !task.Status.terminal() {
			continue
		}
		delete(s.tasks, id)
		s.order = append(s.order[:i], s.order[i+1:]...)
		return
	}
}

// Reindexer runs a full corpus rebuild.
type Reindexer interface {
	ReindexAll(ctx context.Context) (*service.ReindexResult, error)
}

// ReindexDispatcher runs reindex tasks detached from the request that
// triggered them. Nothing prevents two dispatched runs from racing each
// other; callers serialize triggers themselves.
type ReindexDispatcher struct {
	store   *TaskStore
	indexer Reindexer
}

func NewReindexDispatcher(store *TaskStore, indexer Reindexer) *ReindexDispatcher {
	return &ReindexDispatcher{store: store, indexer: indexer}
}

// Dispatch starts a background reindex and returns its task id
// immediately.
func (d *ReindexDispatcher) Dispatch() string {
	task := d.store.Create()

	go func() {
		// Detached from the HTTP request context on purpose: the run must
		// outlive the response.
		result, err := d.indexer.ReindexAll(context.Background())
		if err != nil {
			d.store.Fail(task.ID, err)
			return
		}
		d.store.Complete(task.ID, result)
	}()

	return task.ID
}
