package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockJobProcessor is a mock implementation of JobProcessor
type MockJobProcessor struct {
	mock.Mock
}

func (m *MockJobProcessor) ProcessJobs(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockVectorRepairer is a mock implementation of VectorRepairer
type MockVectorRepairer struct {
	mock.Mock
}

func (m *MockVectorRepairer) RepairPendingVectors(ctx context.Context, limit int) (int, error) {
	args := m.Called(ctx, limit)
	return args.Int(0), args.Error(1)
}

// TestWorker_StartStop tests the worker start and stop functionality
func TestWorker_StartStop(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(nil)

	worker := NewWorker(mockProcessor, 100*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	// Let the worker tick at least once
	time.Sleep(250 * time.Millisecond)

	worker.Stop()
	wg.Wait()

	mockProcessor.AssertCalled(t, "ProcessJobs", mock.Anything)
}

// TestWorker_ContextCancellation tests that the worker stops on context cancel
func TestWorker_ContextCancellation(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(nil)

	worker := NewWorker(mockProcessor, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		worker.Start(ctx)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after context cancellation")
	}
}

// TestWorker_ProcessorErrorDoesNotStopLoop tests that a failing processor keeps polling
func TestWorker_ProcessorErrorDoesNotStopLoop(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(errors.New("transient failure"))

	worker := NewWorker(mockProcessor, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	time.Sleep(200 * time.Millisecond)
	worker.Stop()
	wg.Wait()

	assert.GreaterOrEqual(t, len(mockProcessor.Calls), 2)
}

func TestRepairWorker_ProcessJobs(t *testing.T) {
	mockRepairer := new(MockVectorRepairer)
	mockRepairer.On("RepairPendingVectors", mock.Anything, repairBatchSize).Return(3, nil)

	worker := NewRepairWorker(mockRepairer)

	err := worker.ProcessJobs(context.Background())

	assert.NoError(t, err)
	mockRepairer.AssertExpectations(t)
}

func TestRepairWorker_ProcessJobsError(t *testing.T) {
	mockRepairer := new(MockVectorRepairer)
	mockRepairer.On("RepairPendingVectors", mock.Anything, repairBatchSize).Return(0, errors.New("qdrant down"))

	worker := NewRepairWorker(mockRepairer)

	err := worker.ProcessJobs(context.Background())

	assert.Error(t, err)
}
