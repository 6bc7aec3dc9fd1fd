package jobs

import (
	"context"
	"fmt"
	"log"
)

// repairBatchSize bounds one sweep so a large backlog is drained in slices
// instead of a single huge upsert.
const repairBatchSize = 256

// VectorRepairer pushes pending chunk vectors into the dense index.
type VectorRepairer interface {
	RepairPendingVectors(ctx context.Context, limit int) (int, error)
}

// RepairWorker periodically re-syncs chunk rows whose vector upsert failed
// during indexing, closing the gap between the two indexes.
type RepairWorker struct {
	repairer VectorRepairer
}

func NewRepairWorker(repairer VectorRepairer) *RepairWorker {
	return &RepairWorker{repairer: repairer}
}

// ProcessJobs runs one repair sweep over at most repairBatchSize rows.
func (w *RepairWorker) ProcessJobs(ctx context.Context) error {
	repaired, err := w.repairer.RepairPendingVectors(ctx, repairBatchSize)
	if err != nil {
		return fmt.Errorf("failed to repair pending vectors: %w", err)
	}
	if repaired > 0 {
		log.Printf("jobs: repaired %d pending chunk vectors", repaired)
	}
	return nil
}
