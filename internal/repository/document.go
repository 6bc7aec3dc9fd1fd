package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stroyassist/normax/internal/domain"
)

// DocumentRepository persists the document registry the indexing pipeline
// iterates over. Document text extraction is owned by the ingestion
// collaborator; only what reindexing needs is stored here.
type DocumentRepository struct {
	db dbtx
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{db: pool}
}

func NewDocumentRepositoryWithTx(tx dbtx) *DocumentRepository {
	return &DocumentRepository{db: tx}
}

// Upsert registers a document or refreshes its content and metadata.
func (r *DocumentRepository) Upsert(ctx context.Context, doc *domain.Document) error {
	now := time.Now().UTC()
	status := doc.Status
	if status == "" {
		status = domain.DocumentStatusPending
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO documents
			(id, title, category, code, content, chapter, section, page_number, status, token_count, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
		 ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			category = EXCLUDED.category,
			code = EXCLUDED.code,
			content = EXCLUDED.content,
			chapter = EXCLUDED.chapter,
			section = EXCLUDED.section,
			page_number = EXCLUDED.page_number,
			status = EXCLUDED.status,
			token_count = EXCLUDED.token_count,
			updated_at = EXCLUDED.updated_at`,
		doc.ID, doc.Title, doc.Category, doc.Code, doc.Content, doc.Chapter,
		doc.Section, doc.PageNumber, string(status), doc.TokenCount, now,
	)
	return err
}

// GetByID fetches a document by id.
func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	var doc domain.Document
	var status string
	err := r.db.QueryRow(ctx,
		`SELECT id, title, category, code, content, chapter, section, page_number, status, token_count, created_at, updated_at
		 FROM documents WHERE id = $1`, id,
	).Scan(&doc.ID, &doc.Title, &doc.Category, &doc.Code, &doc.Content, &doc.Chapter,
		&doc.Section, &doc.PageNumber, &status, &doc.TokenCount, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}
	doc.Status = domain.DocumentStatus(status)
	return &doc, nil
}

// ListIndexable returns every document a full reindex should process.
func (r *DocumentRepository) ListIndexable(ctx context.Context) ([]*domain.Document, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, title, category, code, content, chapter, section, page_number, status, token_count, created_at, updated_at
		 FROM documents
		 WHERE status IN ('pending', 'indexed', 'error')
		 ORDER BY created_at`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*domain.Document
	for rows.Next() {
		var doc domain.Document
		var status string
		if err := rows.Scan(&doc.ID, &doc.Title, &doc.Category, &doc.Code, &doc.Content,
			&doc.Chapter, &doc.Section, &doc.PageNumber, &status, &doc.TokenCount,
			&doc.CreatedAt, &doc.UpdatedAt); err != nil {
			return nil, err
		}
		doc.Status = domain.DocumentStatus(status)
		docs = append(docs, &doc)
	}

	return docs, rows.Err()
}

// UpdateStatus moves a document through the pipeline state machine.
func (r *DocumentRepository) UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE documents SET status = $2, updated_at = now() WHERE id = $1`,
		id, string(status),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

// UpdateTokenCount records the token total computed during chunking.
func (r *DocumentRepository) UpdateTokenCount(ctx context.Context, id string, tokens int) error {
	_, err := r.db.Exec(ctx,
		`UPDATE documents SET token_count = $2, updated_at = now() WHERE id = $1`,
		id, tokens,
	)
	return err
}

// Count returns the number of registered documents.
func (r *DocumentRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT count(*) FROM documents`).Scan(&n)
	return n, err
}
