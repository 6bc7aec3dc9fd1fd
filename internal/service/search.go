package service

import (
	"context"
	"log"
	"sort"
	"strings"

	"github.com/stroyassist/normax/internal/domain"
	"github.com/stroyassist/normax/internal/embedding"
	"github.com/stroyassist/normax/internal/repository"
	"github.com/stroyassist/normax/internal/telemetry"
	"github.com/stroyassist/normax/internal/vectorstore"
)

// Fusion weights for the two retrieval legs. The vector score is a bounded
// cosine similarity while ts_rank is unbounded; they are fused on their raw
// scales, which matches the established ranking behavior of the engine.
const (
	VectorWeight  float32 = 0.6
	LexicalWeight float32 = 0.4

	// Each leg retrieves up to candidateMultiplier*k candidates before fusion.
	candidateMultiplier = 2

	defaultSearchLimit = 5
)

// SearchType records which signal produced a result.
type SearchType string

const (
	SearchTypeVector  SearchType = "vector"
	SearchTypeLexical SearchType = "lexical"
	SearchTypeHybrid  SearchType = "hybrid"
)

// SearchResult is a ranked reference to a chunk. It is never persisted.
type SearchResult struct {
	ChunkID       string
	ClauseID      string
	DocumentID    string
	DocumentTitle string
	Content       string
	Chapter       string
	Section       string
	PageNumber    int
	ChunkType     domain.ChunkType
	Score         float32
	SearchType    SearchType
	CombinedScore float32
}

// PostFilters are substring filters applied after fusion and before
// truncation to k. Filtering the fused list instead of each leg trades a
// little precision for simplicity.
type PostFilters struct {
	Document  string
	Chapter   string
	ChunkType string
}

// SearchInput describes one retrieval request.
type SearchInput struct {
	Query string
	Limit int
	// PreFilter narrows the vector leg by exact payload match before
	// similarity ranking.
	PreFilter vectorstore.Filter
	// Filters are applied to the fused list.
	Filters PostFilters
}

// VectorIndex is the dense retrieval leg.
type VectorIndex interface {
	Search(ctx context.Context, vector []float32, k int, filter vectorstore.Filter) ([]vectorstore.Hit, error)
}

// LexicalIndex is the keyword retrieval leg.
type LexicalIndex interface {
	SearchLexical(ctx context.Context, query string, limit int) ([]repository.LexicalHit, error)
}

// SearchService runs hybrid retrieval: both legs in their raw score
// spaces, fused into a single ranked list.
type SearchService struct {
	embedder embedding.Provider
	vectors  VectorIndex
	lexical  LexicalIndex
}

func NewSearchService(embedder embedding.Provider, vectors VectorIndex, lexical LexicalIndex) *SearchService {
	return &SearchService{
		embedder: embedder,
		vectors:  vectors,
		lexical:  lexical,
	}
}

// Search retrieves up to Limit fused results for a query. A failing leg
// degrades the search to the surviving leg; only when both legs fail is
// the error surfaced.
func (s *SearchService) Search(ctx context.Context, input SearchInput) ([]SearchResult, error) {
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, domain.ErrEmptyQuery
	}

	limit := input.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	candidates := limit * candidateMultiplier

	ctx, span := telemetry.StartSpan(ctx, "search.hybrid", telemetry.SpanAttributes{Operation: "search"})
	defer span.End()

	vectorResults, vectorErr := s.searchVector(ctx, query, candidates, input.PreFilter)
	lexicalResults, lexicalErr := s.searchLexical(ctx, query, candidates)

	if vectorErr != nil && lexicalErr != nil {
		telemetry.CaptureError(ctx, vectorErr)
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeIndexUnavailable, "both retrieval legs failed", vectorErr)
	}
	if vectorErr != nil {
		log.Printf("search: vector leg failed, continuing lexical-only: %v", vectorErr)
		telemetry.CaptureError(ctx, vectorErr)
	}
	if lexicalErr != nil {
		log.Printf("search: lexical leg failed, continuing vector-only: %v", lexicalErr)
		telemetry.CaptureError(ctx, lexicalErr)
	}

	return FuseResults(vectorResults, lexicalResults, limit, input.Filters), nil
}

func (s *SearchService) searchVector(ctx context.Context, query string, k int, filter vectorstore.Filter) ([]SearchResult, error) {
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	hits, err := s.vectors.Search(ctx, vec, k, filter)
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(hits))
	for _, hit := range hits {
		if hit.ChunkID == "" {
			continue
		}
		r := resultFromPayload(hit.Payload)
		r.ChunkID = hit.ChunkID
		r.Score = hit.Score
		r.SearchType = SearchTypeVector
		results = append(results, r)
	}
	return results, nil
}

func (s *SearchService) searchLexical(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	hits, err := s.lexical.SearchLexical(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(hits))
	for _, hit := range hits {
		c := hit.Chunk
		results = append(results, SearchResult{
			ChunkID:       c.ChunkID,
			ClauseID:      c.ClauseID,
			DocumentID:    c.DocumentID,
			DocumentTitle: c.DocumentTitle,
			Content:       c.Content,
			Chapter:       c.Chapter,
			Section:       c.Section,
			PageNumber:    c.PageNumber,
			ChunkType:     c.Type,
			Score:         hit.Score,
			SearchType:    SearchTypeLexical,
		})
	}
	return results, nil
}

type fusionEntry struct {
	result   SearchResult
	combined float32
}

// FuseResults merges the two legs into one ranked list. Vector results are
// merged first, so on equal combined scores vector enumeration order is
// preserved by the stable sort. A chunk appearing in both legs accumulates
// both weighted contributions; a chunk in one leg only gets that single
// contribution. No chunk appears twice.
func FuseResults(vector, lexical []SearchResult, k int, filters PostFilters) []SearchResult {
	entries := make(map[string]*fusionEntry, len(vector)+len(lexical))
	order := make([]string, 0, len(vector)+len(lexical))

	add := func(r SearchResult, weight float32) {
		entry, ok := entries[r.ChunkID]
		if !ok {
			entry = &fusionEntry{result: r}
			entries[r.ChunkID] = entry
			order = append(order, r.ChunkID)
		} else if entry.result.Content == "" && r.Content != "" {
			entry.result.Content = r.Content
		}
		entry.combined += r.Score * weight
	}

	for _, r := range vector {
		add(r, VectorWeight)
	}
	for _, r := range lexical {
		add(r, LexicalWeight)
	}

	fused := make([]SearchResult, 0, len(order))
	for _, chunkID := range order {
		entry := entries[chunkID]
		entry.result.SearchType = SearchTypeHybrid
		entry.result.CombinedScore = entry.combined
		fused = append(fused, entry.result)
	}

	sort.SliceStable(fused, func(i, j int) bool {
		return fused[i].CombinedScore > fused[j].CombinedScore
	})

	fused = applyPostFilters(fused, filters)

	if k > 0 && len(fused) > k {
		fused = fused[:k]
	}
	return fused
}

func applyPostFilters(results []SearchResult, filters PostFilters) []SearchResult {
	if filters.Document == "" && filters.Chapter == "" && filters.ChunkType == "" {
		return results
	}

	out := results[:0]
	for _, r := range results {
		if !substringMatch(r.DocumentTitle, filters.Document) {
			continue
		}
		if !substringMatch(r.Chapter, filters.Chapter) {
			continue
		}
		if !substringMatch(string(r.ChunkType), filters.ChunkType) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func substringMatch(value, filter string) bool {
	if filter == "" {
		return true
	}
	return strings.Contains(strings.ToLower(value), strings.ToLower(filter))
}

func resultFromPayload(payload map[string]any) SearchResult {
	var r SearchResult
	r.ClauseID, _ = payload["clause_id"].(string)
	r.DocumentID, _ = payload["document_id"].(string)
	r.DocumentTitle, _ = payload["document_title"].(string)
	r.Content, _ = payload["content"].(string)
	r.Chapter, _ = payload["chapter"].(string)
	r.Section, _ = payload["section"].(string)
	if page, ok := payload["page_number"].(int64); ok {
		r.PageNumber = int(page)
	}
	if chunkType, ok := payload["chunk_type"].(string); ok {
		r.ChunkType = domain.ChunkType(chunkType)
	}
	return r
}
