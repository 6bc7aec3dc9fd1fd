package service

import (
	"context"
	"log"

	"github.com/stroyassist/normax/internal/embedding"
	"github.com/stroyassist/normax/internal/repository"
	"github.com/stroyassist/normax/internal/vectorstore"
)

// ChunkCounter exposes corpus counts from the lexical store.
type ChunkCounter interface {
	CountStats(ctx context.Context) (*repository.Stats, error)
}

// DocumentCounter exposes the registry size.
type DocumentCounter interface {
	Count(ctx context.Context) (int, error)
}

// VectorInfoSource exposes dense-index collection info.
type VectorInfoSource interface {
	Info(ctx context.Context) (*vectorstore.CollectionInfo, error)
}

// EngineStats is the operational snapshot of the engine.
type EngineStats struct {
	Documents           int            `json:"documents"`
	Chunks              int            `json:"chunks"`
	Clauses             int            `json:"clauses"`
	PendingVectorChunks int            `json:"pending_vector_chunks"`
	VectorPoints        int            `json:"vector_points"`
	EmbeddingMode       embedding.Mode `json:"embedding_mode"`
	VectorIndexHealthy  bool           `json:"vector_index_healthy"`
	LexicalIndexHealthy bool           `json:"lexical_index_healthy"`
	Cache               CacheStats     `json:"cache"`
}

// StatsService aggregates counts and connectivity across both indexes. A
// chunk count diverging from the point count signals index inconsistency;
// it is reported here, never auto-healed.
type StatsService struct {
	chunks    ChunkCounter
	documents DocumentCounter
	vectors   VectorInfoSource
	embedder  embedding.Provider
	cache     *ConsultationCache
}

func NewStatsService(chunks ChunkCounter, documents DocumentCounter, vectors VectorInfoSource, embedder embedding.Provider, cache *ConsultationCache) *StatsService {
	return &StatsService{
		chunks:    chunks,
		documents: documents,
		vectors:   vectors,
		embedder:  embedder,
		cache:     cache,
	}
}

// Stats never fails: an unreachable backend shows up as an unhealthy flag
// with zeroed counts instead of an error.
func (s *StatsService) Stats(ctx context.Context) EngineStats {
	stats := EngineStats{
		EmbeddingMode: s.embedder.Mode(),
		Cache:         s.cache.Stats(),
	}

	if counts, err := s.chunks.CountStats(ctx); err != nil {
		log.Printf("stats: lexical index unreachable: %v", err)
	} else {
		stats.LexicalIndexHealthy = true
		stats.Chunks = counts.ChunkCount
		stats.Clauses = counts.ClauseCount
		stats.PendingVectorChunks = counts.PendingVectorChunks
	}

	if docs, err := s.documents.Count(ctx); err != nil {
		log.Printf("stats: document registry unreachable: %v", err)
		stats.LexicalIndexHealthy = false
	} else {
		stats.Documents = docs
	}

	if info, err := s.vectors.Info(ctx); err != nil {
		log.Printf("stats: vector index unreachable: %v", err)
	} else {
		stats.VectorIndexHealthy = true
		stats.VectorPoints = info.PointsCount
	}

	return stats
}

// Healthy reports whether both index backends answer.
func (s *StatsService) Healthy(ctx context.Context) bool {
	stats := s.Stats(ctx)
	return stats.VectorIndexHealthy && stats.LexicalIndexHealthy
}
