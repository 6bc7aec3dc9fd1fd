//go:build integration

package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stroyassist/normax/internal/domain"
	"github.com/stroyassist/normax/internal/embedding"
	"github.com/stroyassist/normax/internal/testutil"
)

func testChunk(chunkID, documentID, content string) domain.Chunk {
	return domain.Chunk{
		ChunkID:         chunkID,
		ClauseID:        "п.5.1",
		DocumentID:      documentID,
		DocumentTitle:   "СП 70.13330.2012",
		Content:         content,
		Type:            domain.ChunkTypeRequirement,
		Tags:            []string{"requirements"},
		ImportanceLevel: domain.ImportanceMandatory,
		TokenCount:      8,
		Embedding:       make([]float32, embedding.Dim),
	}
}

func registerDocument(ctx context.Context, t *testing.T, docs *DocumentRepository, id string) {
	t.Helper()
	require.NoError(t, docs.Upsert(ctx, &domain.Document{
		ID:      id,
		Title:   "СП 70.13330.2012 Несущие и ограждающие конструкции",
		Content: "содержимое",
		Status:  domain.DocumentStatusPending,
	}))
}

func TestRepositories_Integration(t *testing.T) {
	ctx := context.Background()

	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	chunks := NewChunkRepository(pool)
	docs := NewDocumentRepository(pool)

	t.Run("document lifecycle", func(t *testing.T) {
		require.NoError(t, testutil.TruncateAll(ctx, pool))
		registerDocument(ctx, t, docs, "doc-1")

		doc, err := docs.GetByID(ctx, "doc-1")
		require.NoError(t, err)
		assert.Equal(t, domain.DocumentStatusPending, doc.Status)

		require.NoError(t, docs.UpdateStatus(ctx, "doc-1", domain.DocumentStatusIndexed))
		require.NoError(t, docs.UpdateTokenCount(ctx, "doc-1", 42))

		doc, err = docs.GetByID(ctx, "doc-1")
		require.NoError(t, err)
		assert.Equal(t, domain.DocumentStatusIndexed, doc.Status)
		assert.Equal(t, 42, doc.TokenCount)

		count, err := docs.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		_, err = docs.GetByID(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
	})

	t.Run("lexical search uses russian stemming", func(t *testing.T) {
		require.NoError(t, testutil.TruncateAll(ctx, pool))
		registerDocument(ctx, t, docs, "doc-1")

		require.NoError(t, chunks.ReplaceChunks(ctx, "doc-1", []domain.Chunk{
			testChunk("c1", "doc-1", "Стены должны иметь толщину не менее 200 мм."),
			testChunk("c2", "doc-1", "Фундамент выполняется из монолитного бетона."),
		}))

		// Query uses a different inflection than the stored text.
		hits, err := chunks.SearchLexical(ctx, "толщина стены", 10)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "c1", hits[0].Chunk.ChunkID)
		assert.Positive(t, hits[0].Score)
	})

	t.Run("replace is idempotent", func(t *testing.T) {
		require.NoError(t, testutil.TruncateAll(ctx, pool))
		registerDocument(ctx, t, docs, "doc-1")

		set := []domain.Chunk{testChunk("c1", "doc-1", "Стены должны иметь толщину не менее 200 мм.")}
		require.NoError(t, chunks.ReplaceChunks(ctx, "doc-1", set))
		require.NoError(t, chunks.ReplaceChunks(ctx, "doc-1", set))

		ids, err := chunks.ChunkIDsByDocument(ctx, "doc-1")
		require.NoError(t, err)
		assert.Equal(t, []string{"c1"}, ids)
	})

	t.Run("pending vector tracking", func(t *testing.T) {
		require.NoError(t, testutil.TruncateAll(ctx, pool))
		registerDocument(ctx, t, docs, "doc-1")

		require.NoError(t, chunks.ReplaceChunks(ctx, "doc-1", []domain.Chunk{
			testChunk("c1", "doc-1", "Стены должны иметь толщину не менее 200 мм."),
			testChunk("c2", "doc-1", "Контроль качества ведется постоянно."),
		}))

		pending, err := chunks.PendingVectorChunks(ctx, 10)
		require.NoError(t, err)
		assert.Len(t, pending, 2)

		require.NoError(t, chunks.MarkChunksSynced(ctx, []string{"c1"}))

		pending, err = chunks.PendingVectorChunks(ctx, 10)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, "c2", pending[0].ChunkID)

		require.NoError(t, chunks.MarkVectorsSynced(ctx, "doc-1"))

		pending, err = chunks.PendingVectorChunks(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, pending)
	})

	t.Run("delete by document", func(t *testing.T) {
		require.NoError(t, testutil.TruncateAll(ctx, pool))
		registerDocument(ctx, t, docs, "doc-1")
		registerDocument(ctx, t, docs, "doc-2")

		require.NoError(t, chunks.ReplaceChunks(ctx, "doc-1", []domain.Chunk{
			testChunk("c1", "doc-1", "Стены должны иметь толщину не менее 200 мм."),
		}))
		require.NoError(t, chunks.ReplaceChunks(ctx, "doc-2", []domain.Chunk{
			testChunk("c2", "doc-2", "Фундамент выполняется из монолитного бетона."),
		}))

		deleted, err := chunks.DeleteByDocument(ctx, "doc-1")
		require.NoError(t, err)
		assert.Equal(t, int64(1), deleted)

		hits, err := chunks.SearchLexical(ctx, "стена", 10)
		require.NoError(t, err)
		assert.Empty(t, hits)

		// Deleting again is a no-op.
		deleted, err = chunks.DeleteByDocument(ctx, "doc-1")
		require.NoError(t, err)
		assert.Zero(t, deleted)
	})

	t.Run("stats", func(t *testing.T) {
		require.NoError(t, testutil.TruncateAll(ctx, pool))
		registerDocument(ctx, t, docs, "doc-1")

		require.NoError(t, chunks.ReplaceChunks(ctx, "doc-1", []domain.Chunk{
			testChunk("c1", "doc-1", "Стены должны иметь толщину не менее 200 мм."),
			testChunk("c2", "doc-1", "Контроль качества ведется постоянно."),
		}))

		stats, err := chunks.CountStats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, stats.ChunkCount)
		assert.Equal(t, 1, stats.ClauseCount)
		assert.Equal(t, 2, stats.PendingVectorChunks)
	})
}
