package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/stroyassist/normax/internal/domain"
)

// ChunkRepository persists chunk rows. The row is the source of truth for
// a chunk: it carries the content, classification, the embedding, and the
// generated russian tsvector that serves as the lexical index.
type ChunkRepository struct {
	db dbtx
}

func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{db: pool}
}

func NewChunkRepositoryWithTx(tx dbtx) *ChunkRepository {
	return &ChunkRepository{db: tx}
}

// LexicalHit is a chunk matched by full-text search with its ts_rank score.
type LexicalHit struct {
	Chunk domain.Chunk
	Score float32
}

const chunkColumns = `chunk_id, clause_id, document_id, document_title, chapter, section,
	page_number, chunk_type, tags, importance_level, token_count, content, embedding, vector_pending`

// ReplaceChunks deletes existing chunks for a document and inserts new
// ones. Rows start with vector_pending=true until the vector index upsert
// is confirmed.
func (r *ChunkRepository) ReplaceChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error {
	_, err := r.db.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID)
	if err != nil {
		return err
	}

	if len(chunks) == 0 {
		return nil
	}

	now := time.Now().UTC()
	for _, c := range chunks {
		_, err := r.db.Exec(ctx,
			`INSERT INTO chunks
				(chunk_id, clause_id, document_id, document_title, chapter, section,
				 page_number, chunk_type, tags, importance_level, token_count, content,
				 embedding, vector_pending, created_at, updated_at)
			 VALUES
				($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, TRUE, $14, $14)
			 ON CONFLICT (chunk_id) DO UPDATE SET
				clause_id = EXCLUDED.clause_id,
				document_title = EXCLUDED.document_title,
				chapter = EXCLUDED.chapter,
				section = EXCLUDED.section,
				page_number = EXCLUDED.page_number,
				chunk_type = EXCLUDED.chunk_type,
				tags = EXCLUDED.tags,
				importance_level = EXCLUDED.importance_level,
				token_count = EXCLUDED.token_count,
				content = EXCLUDED.content,
				embedding = EXCLUDED.embedding,
				vector_pending = TRUE,
				updated_at = EXCLUDED.updated_at`,
			c.ChunkID,
			c.ClauseID,
			c.DocumentID,
			c.DocumentTitle,
			c.Chapter,
			c.Section,
			c.PageNumber,
			string(c.Type),
			c.Tags,
			c.ImportanceLevel,
			c.TokenCount,
			c.Content,
			pgvector.NewVector(c.Embedding),
			now,
		)
		if err != nil {
			return err
		}
	}

	return nil
}

// SearchLexical runs stemming-aware full-text retrieval over chunk content
// and returns up to limit rows ranked by ts_rank.
func (r *ChunkRepository) SearchLexical(ctx context.Context, query string, limit int) ([]LexicalHit, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+chunkColumns+`,
			ts_rank(content_tsv, websearch_to_tsquery('russian', $1)) AS score
		 FROM chunks
		 WHERE content_tsv @@ websearch_to_tsquery('russian', $1)
		 ORDER BY score DESC, chunk_id
		 LIMIT $2`,
		query, limit,
	)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeIndexUnavailable, "lexical search failed", err)
	}
	defer rows.Close()

	hits := make([]LexicalHit, 0, limit)
	for rows.Next() {
		var hit LexicalHit
		if err := scanChunk(rows, &hit.Chunk, &hit.Score); err != nil {
			return nil, err
		}
		hits = append(hits, hit)
	}

	return hits, rows.Err()
}

// GetByIDs returns chunk rows for the given chunk ids, preserving no
// particular order.
func (r *ChunkRepository) GetByIDs(ctx context.Context, chunkIDs []string) ([]domain.Chunk, error) {
	if len(chunkIDs) == 0 {
		return []domain.Chunk{}, nil
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+chunkColumns+` FROM chunks WHERE chunk_id = ANY($1)`,
		chunkIDs,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	chunks := make([]domain.Chunk, 0, len(chunkIDs))
	for rows.Next() {
		var c domain.Chunk
		if err := scanChunk(rows, &c, nil); err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}

	return chunks, rows.Err()
}

// ChunkIDsByDocument returns the ids of every chunk owned by a document.
func (r *ChunkRepository) ChunkIDsByDocument(ctx context.Context, documentID string) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT chunk_id FROM chunks WHERE document_id = $1`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// DeleteByDocument removes all chunk rows for a document and reports how
// many were removed. Zero rows is a valid no-op.
func (r *ChunkRepository) DeleteByDocument(ctx context.Context, documentID string) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DeleteAll clears the chunk table.
func (r *ChunkRepository) DeleteAll(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `DELETE FROM chunks`)
	return err
}

// MarkVectorsSynced clears the pending flag after a confirmed vector
// index upsert for a document's chunks.
func (r *ChunkRepository) MarkVectorsSynced(ctx context.Context, documentID string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE chunks SET vector_pending = FALSE WHERE document_id = $1`, documentID)
	return err
}

// MarkChunksSynced clears the pending flag for specific chunk ids.
func (r *ChunkRepository) MarkChunksSynced(ctx context.Context, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}
	_, err := r.db.Exec(ctx,
		`UPDATE chunks SET vector_pending = FALSE WHERE chunk_id = ANY($1)`, chunkIDs)
	return err
}

// PendingVectorChunks returns chunks whose vector index write has not been
// confirmed, for the repair sweep.
func (r *ChunkRepository) PendingVectorChunks(ctx context.Context, limit int) ([]domain.Chunk, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+chunkColumns+` FROM chunks WHERE vector_pending ORDER BY updated_at LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []domain.Chunk
	for rows.Next() {
		var c domain.Chunk
		if err := scanChunk(rows, &c, nil); err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}

	return chunks, rows.Err()
}

// Stats holds corpus-level counters for the stats endpoint.
type Stats struct {
	ChunkCount          int
	ClauseCount         int
	PendingVectorChunks int
}

// CountStats returns chunk, distinct-clause and pending-vector counts.
func (r *ChunkRepository) CountStats(ctx context.Context) (*Stats, error) {
	var s Stats
	err := r.db.QueryRow(ctx,
		`SELECT count(*),
			count(DISTINCT clause_id),
			count(*) FILTER (WHERE vector_pending)
		 FROM chunks`,
	).Scan(&s.ChunkCount, &s.ClauseCount, &s.PendingVectorChunks)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

type chunkScanner interface {
	Scan(dest ...any) error
}

func scanChunk(row chunkScanner, c *domain.Chunk, score *float32) error {
	var chunkType string
	var vec pgvector.Vector
	var pending bool

	dest := []any{
		&c.ChunkID, &c.ClauseID, &c.DocumentID, &c.DocumentTitle, &c.Chapter, &c.Section,
		&c.PageNumber, &chunkType, &c.Tags, &c.ImportanceLevel, &c.TokenCount, &c.Content,
		&vec, &pending,
	}
	if score != nil {
		dest = append(dest, score)
	}

	if err := row.Scan(dest...); err != nil {
		return err
	}

	c.Type = domain.ChunkType(chunkType)
	c.Embedding = vec.Slice()
	return nil
}
