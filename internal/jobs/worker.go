package jobs

import (
	"context"
	"log"
	"time"
)

// JobProcessor is one unit of periodic background work, such as the
// vector repair sweep.
type JobProcessor interface {
	ProcessJobs(ctx context.Context) error
}

// Worker drives a JobProcessor on a fixed poll interval. A failing sweep
// is logged and retried on the next tick; the loop never dies on error.
type Worker struct {
	processor    JobProcessor
	pollInterval time.Duration
	stopChan     chan struct{}
	doneChan     chan struct{}
}

func NewWorker(processor JobProcessor, pollInterval time.Duration) *Worker {
	return &Worker{
		processor:    processor,
		pollInterval: pollInterval,
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
	}
}

// Start runs the poll loop until the context is cancelled or Stop is
// called. It blocks; run it on its own goroutine.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	defer close(w.doneChan)

	log.Printf("jobs: worker started, poll interval %v", w.pollInterval)

	for {
		select {
		case <-ctx.Done():
			log.Println("jobs: worker stopped, context cancelled")
			return
		case <-w.stopChan:
			log.Println("jobs: worker stopped")
			return
		case <-ticker.C:
			if err := w.processor.ProcessJobs(ctx); err != nil {
				log.Printf("jobs: sweep failed, retrying next tick: %v", err)
			}
		}
	}
}

// Stop signals the loop and waits for the in-flight sweep to finish.
func (w *Worker) Stop() {
	close(w.stopChan)
	<-w.doneChan
}
