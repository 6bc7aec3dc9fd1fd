package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/stroyassist/normax/internal/embedding"
	"github.com/stroyassist/normax/internal/repository"
	"github.com/stroyassist/normax/internal/vectorstore"
)

type fakeChunkCounter struct {
	stats *repository.Stats
	err   error
}

func (f *fakeChunkCounter) CountStats(ctx context.Context) (*repository.Stats, error) {
	return f.stats, f.err
}

type fakeDocumentCounter struct {
	count int
	err   error
}

func (f *fakeDocumentCounter) Count(ctx context.Context) (int, error) {
	return f.count, f.err
}

type fakeVectorInfoSource struct {
	info *vectorstore.CollectionInfo
	err  error
}

func (f *fakeVectorInfoSource) Info(ctx context.Context) (*vectorstore.CollectionInfo, error) {
	return f.info, f.err
}

func newStatsFixture() (*StatsService, *fakeChunkCounter, *fakeDocumentCounter, *fakeVectorInfoSource) {
	chunks := &fakeChunkCounter{stats: &repository.Stats{
		ChunkCount:          10,
		ClauseCount:         4,
		PendingVectorChunks: 2,
	}}
	docs := &fakeDocumentCounter{count: 3}
	vectors := &fakeVectorInfoSource{info: &vectorstore.CollectionInfo{
		VectorSize:  embedding.Dim,
		PointsCount: 8,
		Status:      "green",
	}}
	cache := NewConsultationCache(time.Hour, 0)

	svc := NewStatsService(chunks, docs, vectors, embedding.NewHashProvider(), cache)
	return svc, chunks, docs, vectors
}

func TestStatsService_AllBackendsHealthy(t *testing.T) {
	svc, _, _, _ := newStatsFixture()

	stats := svc.Stats(context.Background())

	assert.Equal(t, 3, stats.Documents)
	assert.Equal(t, 10, stats.Chunks)
	assert.Equal(t, 4, stats.Clauses)
	assert.Equal(t, 2, stats.PendingVectorChunks)
	assert.Equal(t, 8, stats.VectorPoints)
	assert.Equal(t, embedding.ModeFallback, stats.EmbeddingMode)
	assert.True(t, stats.LexicalIndexHealthy)
	assert.True(t, stats.VectorIndexHealthy)
	assert.True(t, svc.Healthy(context.Background()))
}

func TestStatsService_LexicalUnreachable(t *testing.T) {
	svc, chunks, _, _ := newStatsFixture()
	chunks.err = errors.New("connection refused")

	stats := svc.Stats(context.Background())

	assert.False(t, stats.LexicalIndexHealthy)
	assert.Zero(t, stats.Chunks)
	// The vector side still reports.
	assert.True(t, stats.VectorIndexHealthy)
	assert.Equal(t, 8, stats.VectorPoints)
	assert.False(t, svc.Healthy(context.Background()))
}

func TestStatsService_VectorUnreachable(t *testing.T) {
	svc, _, _, vectors := newStatsFixture()
	vectors.err = errors.New("connection refused")

	stats := svc.Stats(context.Background())

	assert.False(t, stats.VectorIndexHealthy)
	assert.Zero(t, stats.VectorPoints)
	assert.True(t, stats.LexicalIndexHealthy)
	assert.False(t, svc.Healthy(context.Background()))
}

func TestStatsService_DocumentRegistryUnreachable(t *testing.T) {
	svc, _, docs, _ := newStatsFixture()
	docs.err = errors.New("connection refused")

	stats := svc.Stats(context.Background())

	// The registry lives in the same database as the lexical index.
	assert.False(t, stats.LexicalIndexHealthy)
	assert.False(t, svc.Healthy(context.Background()))
}
