package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/stroyassist/normax/internal/api"
	"github.com/stroyassist/normax/internal/service"
)

type ConsultationService interface {
	Consult(ctx context.Context, message string, history []string) (service.ConsultResult, error)
}

type ConsultHandler struct {
	svc ConsultationService
}

func NewConsultHandler(svc ConsultationService) *ConsultHandler {
	return &ConsultHandler{svc: svc}
}

type ConsultRequest struct {
	Message string   `json:"message"`
	History []string `json:"history"`
}

type ConsultResponse struct {
	Response         string   `json:"response"`
	Sources          []string `json:"sources"`
	Confidence       float32  `json:"confidence"`
	DocumentsUsed    int      `json:"documents_used"`
	ProcessingTimeMS int64    `json:"processing_time_ms"`
	Cached           bool     `json:"cached"`
}

func (h *ConsultHandler) Consult(w http.ResponseWriter, r *http.Request) {
	var req ConsultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Message == "" {
		api.Error(w, http.StatusBadRequest, "message is required")
		return
	}

	result, err := h.svc.Consult(r.Context(), req.Message, req.History)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	sources := result.Sources
	if sources == nil {
		sources = []string{}
	}

	api.Success(w, http.StatusOK, ConsultResponse{
		Response:         result.Response,
		Sources:          sources,
		Confidence:       result.Confidence,
		DocumentsUsed:    result.DocumentsUsed,
		ProcessingTimeMS: result.ProcessingTime.Milliseconds(),
		Cached:           result.Cached,
	})
}
