package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/stroyassist/normax/internal/domain"
	"github.com/stroyassist/normax/internal/service"
)

type MockConsultationService struct {
	mock.Mock
}

func (m *MockConsultationService) Consult(ctx context.Context, message string, history []string) (service.ConsultResult, error) {
	args := m.Called(ctx, message, history)
	return args.Get(0).(service.ConsultResult), args.Error(1)
}

func TestConsultHandler_Success(t *testing.T) {
	mockSvc := new(MockConsultationService)
	mockSvc.On("Consult", mock.Anything, "Какая минимальная толщина стен?", []string(nil)).
		Return(service.ConsultResult{
			Response:       "Не менее 200 мм согласно СП 70.13330 п.9.2.1.",
			Sources:        []string{"СП 70.13330 п.9.2.1"},
			Confidence:     0.8,
			DocumentsUsed:  1,
			ProcessingTime: 120 * time.Millisecond,
		}, nil)

	handler := NewConsultHandler(mockSvc)
	req := httptest.NewRequest(http.MethodPost, "/consult", jsonBody(t, ConsultRequest{
		Message: "Какая минимальная толщина стен?",
	}))
	w := httptest.NewRecorder()

	handler.Consult(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]any)
	assert.Contains(t, data["response"], "200 мм")
	assert.Equal(t, []any{"СП 70.13330 п.9.2.1"}, data["sources"])
	assert.InDelta(t, 0.8, data["confidence"], 1e-6)
	assert.Equal(t, float64(120), data["processing_time_ms"])
	assert.Equal(t, false, data["cached"])
	mockSvc.AssertExpectations(t)
}

func TestConsultHandler_FallbackKeepsEmptySourcesArray(t *testing.T) {
	mockSvc := new(MockConsultationService)
	mockSvc.On("Consult", mock.Anything, mock.Anything, mock.Anything).
		Return(service.ConsultResult{Response: "Информация не найдена.", Confidence: 0}, nil)

	handler := NewConsultHandler(mockSvc)
	req := httptest.NewRequest(http.MethodPost, "/consult", jsonBody(t, ConsultRequest{Message: "вопрос"}))
	w := httptest.NewRecorder()

	handler.Consult(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]any)
	sources, ok := data["sources"].([]any)
	require.True(t, ok, "sources must serialize as an array, not null")
	assert.Empty(t, sources)
}

func TestConsultHandler_EmptyMessage(t *testing.T) {
	handler := NewConsultHandler(new(MockConsultationService))
	req := httptest.NewRequest(http.MethodPost, "/consult", jsonBody(t, ConsultRequest{}))
	w := httptest.NewRecorder()

	handler.Consult(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestConsultHandler_ValidationErrorFromService(t *testing.T) {
	mockSvc := new(MockConsultationService)
	mockSvc.On("Consult", mock.Anything, mock.Anything, mock.Anything).
		Return(service.ConsultResult{}, domain.ErrEmptyQuery)

	handler := NewConsultHandler(mockSvc)
	req := httptest.NewRequest(http.MethodPost, "/consult", jsonBody(t, ConsultRequest{Message: "   "}))
	w := httptest.NewRecorder()

	handler.Consult(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
