package service

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/stroyassist/normax/internal/domain"
	"github.com/stroyassist/normax/internal/embedding"
	"github.com/stroyassist/normax/internal/repository"
	"github.com/stroyassist/normax/internal/telemetry"
	"github.com/stroyassist/normax/internal/vectorstore"
)

// DocumentStore is the document registry the pipeline drives.
type DocumentStore interface {
	Upsert(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	ListIndexable(ctx context.Context) ([]*domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus) error
	UpdateTokenCount(ctx context.Context, id string, tokens int) error
}

// ChunkStore covers the chunk-row operations the pipeline needs outside a
// transaction.
type ChunkStore interface {
	DeleteByDocument(ctx context.Context, documentID string) (int64, error)
	DeleteAll(ctx context.Context) error
	MarkVectorsSynced(ctx context.Context, documentID string) error
	MarkChunksSynced(ctx context.Context, chunkIDs []string) error
	PendingVectorChunks(ctx context.Context, limit int) ([]domain.Chunk, error)
}

// LexicalWriter replaces a document's chunk rows atomically.
type LexicalWriter interface {
	ReplaceChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error
}

// VectorWriter is the dense-index write surface.
type VectorWriter interface {
	Upsert(ctx context.Context, points []vectorstore.Point) error
	DeleteByDocument(ctx context.Context, documentID string) error
	DeleteAll(ctx context.Context) error
}

// txChunkWriter wraps the chunk-row replacement in a database transaction,
// so the lexical index never exposes a half-written document.
type txChunkWriter struct {
	runner *repository.TxRunner
}

func NewTxChunkWriter(runner *repository.TxRunner) LexicalWriter {
	return &txChunkWriter{runner: runner}
}

func (w *txChunkWriter) ReplaceChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error {
	return w.runner.WithTx(ctx, func(repos repository.TxRepositories) error {
		return repos.Chunks().ReplaceChunks(ctx, documentID, chunks)
	})
}

// IndexInput is one document submitted for indexing.
type IndexInput struct {
	DocumentID    string
	DocumentTitle string
	Content       string
	Category      string
	Chapter       string
	Section       string
	PageNumber    int
}

// IndexResult reports what one indexing run produced.
type IndexResult struct {
	ChunksCreated   int
	TokensProcessed int
}

// ReindexResult aggregates a full corpus rebuild.
type ReindexResult struct {
	ReindexedCount int `json:"reindexed_count"`
	TotalDocuments int `json:"total_documents"`
	TotalTokens    int `json:"total_tokens"`
}

// Indexer drives the document pipeline: chunking, embedding, and writes to
// both indexes. Chunk rows are committed first with vectors marked pending;
// the vector upsert follows outside the transaction and pending rows are
// repaired by a background sweep if it fails.
type Indexer struct {
	chunker   *Chunker
	embedder  embedding.Provider
	documents DocumentStore
	chunks    ChunkStore
	lexical   LexicalWriter
	vectors   VectorWriter
}

func NewIndexer(chunker *Chunker, embedder embedding.Provider, documents DocumentStore, chunks ChunkStore, lexical LexicalWriter, vectors VectorWriter) *Indexer {
	return &Indexer{
		chunker:   chunker,
		embedder:  embedder,
		documents: documents,
		chunks:    chunks,
		lexical:   lexical,
		vectors:   vectors,
	}
}

var documentCodePattern = regexp.MustCompile(`(?i)(СП|СНиП|ГОСТ)\s*[\d.]+(?:-\d+)*`)

// extractDocumentCode pulls the normative code out of a document title,
// e.g. "СП 70.13330.2012" from "СП 70.13330.2012 Несущие конструкции".
func extractDocumentCode(title string) string {
	return strings.TrimSpace(documentCodePattern.FindString(title))
}

// IndexDocument runs the full pipeline for one document. Indexing the same
// document twice replaces its chunk set in place; chunk ids are stable for
// unchanged content.
func (ix *Indexer) IndexDocument(ctx context.Context, input IndexInput) (*IndexResult, error) {
	if strings.TrimSpace(input.DocumentID) == "" {
		return nil, domain.ErrMissingDocumentID
	}
	if strings.TrimSpace(input.Content) == "" {
		return nil, domain.ErrEmptyContent
	}

	ctx, span := telemetry.StartSpan(ctx, "indexer.index_document", telemetry.SpanAttributes{
		DocumentID: input.DocumentID,
		Operation:  "index",
	})
	defer span.End()

	doc := &domain.Document{
		ID:         input.DocumentID,
		Title:      input.DocumentTitle,
		Category:   input.Category,
		Code:       extractDocumentCode(input.DocumentTitle),
		Content:    input.Content,
		Chapter:    input.Chapter,
		Section:    input.Section,
		PageNumber: input.PageNumber,
		Status:     domain.DocumentStatusPending,
	}
	if err := ix.documents.Upsert(ctx, doc); err != nil {
		return nil, fmt.Errorf("register document %s: %w", input.DocumentID, err)
	}

	result, err := ix.runPipeline(ctx, doc)
	if err != nil {
		if statusErr := ix.documents.UpdateStatus(ctx, doc.ID, domain.DocumentStatusError); statusErr != nil {
			log.Printf("indexer: failed to mark document %s as errored: %v", doc.ID, statusErr)
		}
		return nil, err
	}
	return result, nil
}

func (ix *Indexer) runPipeline(ctx context.Context, doc *domain.Document) (*IndexResult, error) {
	if err := ix.documents.UpdateStatus(ctx, doc.ID, domain.DocumentStatusChunking); err != nil {
		return nil, err
	}

	chunks := ix.chunker.Chunk(doc.Content, DocumentMeta{
		DocumentID:    doc.ID,
		DocumentTitle: doc.Title,
		Code:          doc.Code,
		Chapter:       doc.Chapter,
		Section:       doc.Section,
		PageNumber:    doc.PageNumber,
	})
	if len(chunks) == 0 {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "document produced no chunks")
	}

	if err := ix.documents.UpdateStatus(ctx, doc.ID, domain.DocumentStatusEmbedding); err != nil {
		return nil, err
	}

	tokens := 0
	for i := range chunks {
		vec, err := ix.embedder.Embed(ctx, chunks[i].Content)
		if err != nil {
			return nil, fmt.Errorf("embed chunk %s: %w", chunks[i].ChunkID, err)
		}
		chunks[i].Embedding = vec
		tokens += chunks[i].TokenCount
	}

	if err := ix.lexical.ReplaceChunks(ctx, doc.ID, chunks); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeIndexUnavailable, "lexical index write failed", err)
	}

	// The vector upsert is deliberately outside the transaction above. On
	// failure the rows stay marked pending and the repair sweep retries
	// them, so indexing still succeeds.
	if err := ix.vectors.Upsert(ctx, pointsFromChunks(chunks)); err != nil {
		log.Printf("indexer: vector upsert failed for document %s, rows left pending: %v", doc.ID, err)
		telemetry.CaptureError(ctx, err)
	} else if err := ix.chunks.MarkVectorsSynced(ctx, doc.ID); err != nil {
		return nil, err
	}

	if err := ix.documents.UpdateTokenCount(ctx, doc.ID, tokens); err != nil {
		return nil, err
	}
	if err := ix.documents.UpdateStatus(ctx, doc.ID, domain.DocumentStatusIndexed); err != nil {
		return nil, err
	}

	return &IndexResult{ChunksCreated: len(chunks), TokensProcessed: tokens}, nil
}

// ReindexAll rebuilds the index for every indexable document. A failing
// document is skipped and counted, never aborting the batch.
func (ix *Indexer) ReindexAll(ctx context.Context) (*ReindexResult, error) {
	docs, err := ix.documents.ListIndexable(ctx)
	if err != nil {
		return nil, err
	}

	result := &ReindexResult{TotalDocuments: len(docs)}
	for _, doc := range docs {
		res, err := ix.IndexDocument(ctx, IndexInput{
			DocumentID:    doc.ID,
			DocumentTitle: doc.Title,
			Content:       doc.Content,
			Category:      doc.Category,
			Chapter:       doc.Chapter,
			Section:       doc.Section,
			PageNumber:    doc.PageNumber,
		})
		if err != nil {
			log.Printf("reindex: document %s skipped: %v", doc.ID, err)
			telemetry.CaptureError(ctx, domain.NewDomainErrorWithCause(
				domain.ErrCodePartialIndexFailure,
				fmt.Sprintf("document %s failed during reindex", doc.ID), err))
			if statusErr := ix.documents.UpdateStatus(ctx, doc.ID, domain.DocumentStatusError); statusErr != nil {
				log.Printf("reindex: failed to mark document %s as errored: %v", doc.ID, statusErr)
			}
			continue
		}
		result.ReindexedCount++
		result.TotalTokens += res.TokensProcessed
	}
	return result, nil
}

// DeleteDocumentIndexes removes a document's chunks from both indexes.
// Idempotent: deleting an unindexed document is a no-op success.
func (ix *Indexer) DeleteDocumentIndexes(ctx context.Context, documentID string) error {
	if strings.TrimSpace(documentID) == "" {
		return domain.ErrMissingDocumentID
	}

	if err := ix.vectors.DeleteByDocument(ctx, documentID); err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeIndexUnavailable, "vector index delete failed", err)
	}
	if _, err := ix.chunks.DeleteByDocument(ctx, documentID); err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeIndexUnavailable, "lexical index delete failed", err)
	}
	return nil
}

// DeleteAll wipes both indexes.
func (ix *Indexer) DeleteAll(ctx context.Context) error {
	if err := ix.vectors.DeleteAll(ctx); err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeIndexUnavailable, "vector index wipe failed", err)
	}
	if err := ix.chunks.DeleteAll(ctx); err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeIndexUnavailable, "lexical index wipe failed", err)
	}
	return nil
}

// RepairPendingVectors pushes chunk rows whose vectors never reached the
// dense index, using the embeddings stored on the rows. Returns how many
// chunks were repaired.
func (ix *Indexer) RepairPendingVectors(ctx context.Context, limit int) (int, error) {
	pending, err := ix.chunks.PendingVectorChunks(ctx, limit)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	if err := ix.vectors.Upsert(ctx, pointsFromChunks(pending)); err != nil {
		return 0, err
	}

	ids := make([]string, len(pending))
	for i, c := range pending {
		ids[i] = c.ChunkID
	}
	if err := ix.chunks.MarkChunksSynced(ctx, ids); err != nil {
		return 0, err
	}
	return len(pending), nil
}

func pointsFromChunks(chunks []domain.Chunk) []vectorstore.Point {
	points := make([]vectorstore.Point, len(chunks))
	for i := range chunks {
		points[i] = vectorstore.Point{
			ChunkID: chunks[i].ChunkID,
			Vector:  chunks[i].Embedding,
			Payload: vectorstore.ChunkPayload(&chunks[i]),
		}
	}
	return points
}
