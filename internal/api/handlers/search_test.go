package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/stroyassist/normax/internal/domain"
	"github.com/stroyassist/normax/internal/service"
)

type MockSearchService struct {
	mock.Mock
}

func (m *MockSearchService) Search(ctx context.Context, input service.SearchInput) ([]service.SearchResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]service.SearchResult), args.Error(1)
}

func TestSearchHandler_Success(t *testing.T) {
	mockSvc := new(MockSearchService)
	mockSvc.On("Search", mock.Anything, mock.MatchedBy(func(input service.SearchInput) bool {
		return input.Query == "толщина стен" && input.Limit == 3 && input.Filters.ChunkType == "requirement"
	})).Return([]service.SearchResult{
		{
			ChunkID:       "c1",
			ClauseID:      "СП 70.13330 п.9.2.1",
			Content:       "Стены должны иметь толщину не менее 200 мм.",
			DocumentTitle: "СП 70.13330.2012",
			ChunkType:     domain.ChunkTypeRequirement,
			CombinedScore: 0.54,
		},
	}, nil)

	handler := NewSearchHandler(mockSvc)
	req := httptest.NewRequest(http.MethodPost, "/search", jsonBody(t, SearchRequest{
		Query:           "толщина стен",
		Limit:           3,
		ChunkTypeFilter: "requirement",
	}))
	w := httptest.NewRecorder()

	handler.Search(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]any)
	assert.Equal(t, float64(1), data["results_count"])

	results := data["results"].([]any)
	first := results[0].(map[string]any)
	assert.Equal(t, "СП 70.13330 п.9.2.1", first["clause_id"])
	assert.Equal(t, "requirement", first["chunk_type"])
	assert.InDelta(t, 0.54, first["score"], 1e-6)
	mockSvc.AssertExpectations(t)
}

func TestSearchHandler_EmptyQuery(t *testing.T) {
	handler := NewSearchHandler(new(MockSearchService))
	req := httptest.NewRequest(http.MethodPost, "/search", jsonBody(t, SearchRequest{}))
	w := httptest.NewRecorder()

	handler.Search(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSearchHandler_EmptyCorpus(t *testing.T) {
	mockSvc := new(MockSearchService)
	mockSvc.On("Search", mock.Anything, mock.Anything).Return([]service.SearchResult{}, nil)

	handler := NewSearchHandler(mockSvc)
	req := httptest.NewRequest(http.MethodPost, "/search", jsonBody(t, SearchRequest{Query: "пустой корпус"}))
	w := httptest.NewRecorder()

	handler.Search(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]any)
	assert.Equal(t, float64(0), data["results_count"])
	assert.Empty(t, data["results"])
}

func TestSearchHandler_ServiceError(t *testing.T) {
	mockSvc := new(MockSearchService)
	mockSvc.On("Search", mock.Anything, mock.Anything).
		Return(nil, domain.NewDomainError(domain.ErrCodeIndexUnavailable, "both retrieval legs failed"))

	handler := NewSearchHandler(mockSvc)
	req := httptest.NewRequest(http.MethodPost, "/search", jsonBody(t, SearchRequest{Query: "вопрос"}))
	w := httptest.NewRecorder()

	handler.Search(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestSearchHandler_InvalidBody(t *testing.T) {
	handler := NewSearchHandler(new(MockSearchService))
	req := httptest.NewRequest(http.MethodPost, "/search", nil)
	w := httptest.NewRecorder()

	handler.Search(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
