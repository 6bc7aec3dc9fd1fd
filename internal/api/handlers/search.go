package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/stroyassist/normax/internal/api"
	"github.com/stroyassist/normax/internal/service"
)

type SearchService interface {
	Search(ctx context.Context, input service.SearchInput) ([]service.SearchResult, error)
}

type SearchHandler struct {
	svc SearchService
}

func NewSearchHandler(svc SearchService) *SearchHandler {
	return &SearchHandler{svc: svc}
}

type SearchRequest struct {
	Query           string `json:"query"`
	Limit           int    `json:"limit"`
	DocumentFilter  string `json:"document_filter"`
	ChapterFilter   string `json:"chapter_filter"`
	ChunkTypeFilter string `json:"chunk_type_filter"`
}

type SearchResultResponse struct {
	ChunkID       string  `json:"chunk_id"`
	ClauseID      string  `json:"clause_id"`
	Content       string  `json:"content"`
	DocumentTitle string  `json:"document_title"`
	Chapter       string  `json:"chapter"`
	Section       string  `json:"section"`
	PageNumber    int     `json:"page_number"`
	ChunkType     string  `json:"chunk_type"`
	Score         float32 `json:"score"`
}

type SearchResponse struct {
	ResultsCount int                    `json:"results_count"`
	Results      []SearchResultResponse `json:"results"`
}

func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Query == "" {
		api.Error(w, http.StatusBadRequest, "query is required")
		return
	}

	results, err := h.svc.Search(r.Context(), service.SearchInput{
		Query: req.Query,
		Limit: req.Limit,
		Filters: service.PostFilters{
			Document:  req.DocumentFilter,
			Chapter:   req.ChapterFilter,
			ChunkType: req.ChunkTypeFilter,
		},
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := SearchResponse{
		ResultsCount: len(results),
		Results:      make([]SearchResultResponse, 0, len(results)),
	}
	for _, result := range results {
		resp.Results = append(resp.Results, SearchResultResponse{
			ChunkID:       result.ChunkID,
			ClauseID:      result.ClauseID,
			Content:       result.Content,
			DocumentTitle: result.DocumentTitle,
			Chapter:       result.Chapter,
			Section:       result.Section,
			PageNumber:    result.PageNumber,
			ChunkType:     string(result.ChunkType),
			Score:         result.CombinedScore,
		})
	}

	api.Success(w, http.StatusOK, resp)
}
