package domain

import "time"

// DocumentStatus tracks a document through the indexing pipeline.
type DocumentStatus string

const (
	DocumentStatusPending   DocumentStatus = "pending"
	DocumentStatusChunking  DocumentStatus = "chunking"
	DocumentStatusEmbedding DocumentStatus = "embedding"
	DocumentStatusIndexed   DocumentStatus = "indexed"
	DocumentStatusError     DocumentStatus = "error"
)

// IsValid checks if the document status is a known value.
func (s DocumentStatus) IsValid() bool {
	switch s {
	case DocumentStatusPending, DocumentStatusChunking, DocumentStatusEmbedding,
		DocumentStatusIndexed, DocumentStatusError:
		return true
	}
	return false
}

// Indexable reports whether a full reindex should pick the document up.
func (s DocumentStatus) Indexable() bool {
	return s == DocumentStatusPending || s == DocumentStatusIndexed || s == DocumentStatusError
}

// Document is a normative document registered with the retrieval engine.
// Extraction of the raw text is owned by an external ingestion collaborator;
// the engine only records what it needs to chunk, index and reindex.
type Document struct {
	ID         string
	Title      string
	Category   string
	Code       string
	Content    string
	Chapter    string
	Section    string
	PageNumber int
	Status     DocumentStatus
	TokenCount int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
