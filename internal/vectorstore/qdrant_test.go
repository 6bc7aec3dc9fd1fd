package vectorstore

import (
	"testing"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stroyassist/normax/internal/domain"
)

func TestPointID_Deterministic(t *testing.T) {
	id1 := PointID("sp70_9.2.1_0")
	id2 := PointID("sp70_9.2.1_0")
	other := PointID("sp70_9.2.1_1")

	assert.Equal(t, id1, id2)
	assert.NotEqual(t, id1, other)

	// Point ids must be valid UUIDs, Qdrant rejects arbitrary strings.
	_, err := uuid.Parse(id1)
	assert.NoError(t, err)
}

func TestChunkPayload(t *testing.T) {
	c := &domain.Chunk{
		ChunkID:         "sp70_9.2.1_0",
		ClauseID:        "п.9.2.1",
		DocumentID:      "sp70",
		DocumentTitle:   "СП 70.13330.2012",
		Chapter:         "9",
		Section:         "9.2",
		PageNumber:      120,
		Type:            domain.ChunkTypeRequirement,
		Tags:            []string{"requirements", "concrete"},
		ImportanceLevel: domain.ImportanceMandatory,
		Content:         "Стены должны иметь толщину не менее 200 мм.",
	}

	payload := ChunkPayload(c)

	assert.Equal(t, "sp70_9.2.1_0", payload["chunk_id"])
	assert.Equal(t, "п.9.2.1", payload["clause_id"])
	assert.Equal(t, "sp70", payload["document_id"])
	assert.Equal(t, "СП 70.13330.2012", payload["document_title"])
	assert.Equal(t, "9", payload["chapter"])
	assert.Equal(t, "9.2", payload["section"])
	assert.Equal(t, int64(120), payload["page_number"])
	assert.Equal(t, string(domain.ChunkTypeRequirement), payload["chunk_type"])
	assert.Equal(t, int64(domain.ImportanceMandatory), payload["importance"])
	assert.Equal(t, []any{"requirements", "concrete"}, payload["tags"])
	assert.Equal(t, c.Content, payload["content"])
}

func TestChunkPayload_RoundTripsThroughQdrantValues(t *testing.T) {
	c := &domain.Chunk{
		ChunkID:         "c1",
		DocumentID:      "doc-1",
		PageNumber:      7,
		Type:            domain.ChunkTypeNote,
		Tags:            []string{"terms"},
		ImportanceLevel: domain.ImportanceAdvisory,
		Content:         "Определение термина.",
	}

	values := qdrant.NewValueMap(ChunkPayload(c))
	got := payloadToMap(values)

	assert.Equal(t, "c1", got["chunk_id"])
	assert.Equal(t, "doc-1", got["document_id"])
	assert.Equal(t, int64(7), got["page_number"])
	assert.Equal(t, []any{"terms"}, got["tags"])
	assert.Equal(t, "Определение термина.", got["content"])
}

func TestBuildFilter(t *testing.T) {
	t.Run("empty filter yields nil", func(t *testing.T) {
		assert.Nil(t, buildFilter(Filter{}))
	})

	t.Run("all conditions", func(t *testing.T) {
		qf := buildFilter(Filter{
			DocumentID:    "doc-1",
			Chapter:       "9",
			ChunkType:     "requirement",
			Tags:          []string{"concrete", ""},
			MinImportance: 2,
		})

		require.NotNil(t, qf)
		// document_id, chapter, chunk_type, one non-empty tag, importance range
		assert.Len(t, qf.Must, 5)
	})
}
