package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation          = "VALIDATION_ERROR"
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeEmbeddingDegraded   = "EMBEDDING_UNAVAILABLE"
	ErrCodeIndexUnavailable    = "INDEX_UNAVAILABLE"
	ErrCodePartialIndexFailure = "PARTIAL_INDEX_FAILURE"
	ErrCodeInconsistency       = "INDEX_INCONSISTENCY"
	ErrCodeInternalError       = "INTERNAL_ERROR"
)

// Validation errors
var (
	ErrMissingChunkID    = NewDomainError(ErrCodeValidation, "chunk id is required")
	ErrMissingDocumentID = NewDomainError(ErrCodeValidation, "document id is required")
	ErrEmptyChunkContent = NewDomainError(ErrCodeValidation, "chunk content is empty")
	ErrInvalidChunkType  = NewDomainError(ErrCodeValidation, "invalid chunk type")
	ErrInvalidImportance = NewDomainError(ErrCodeValidation, "importance level out of range")
	ErrEmptyQuery        = NewDomainError(ErrCodeValidation, "query is empty")
	ErrEmptyContent      = NewDomainError(ErrCodeValidation, "document content is empty")
)

// Not found errors
var (
	ErrDocumentNotFound = NewDomainError(ErrCodeNotFound, "document not found")
	ErrChunkNotFound    = NewDomainError(ErrCodeNotFound, "chunk not found")
	ErrTaskNotFound     = NewDomainError(ErrCodeNotFound, "reindex task not found")
)

// Availability errors. The embedding error is non-fatal: the provider
// degrades to the hash fallback instead of failing the caller.
var (
	ErrEmbeddingModelUnavailable = NewDomainError(ErrCodeEmbeddingDegraded, "embedding model unavailable, running in fallback mode")
	ErrVectorIndexUnavailable    = NewDomainError(ErrCodeIndexUnavailable, "vector index unreachable")
	ErrLexicalIndexUnavailable   = NewDomainError(ErrCodeIndexUnavailable, "lexical index unreachable")
)
