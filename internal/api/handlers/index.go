package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stroyassist/normax/internal/api"
	"github.com/stroyassist/normax/internal/jobs"
	"github.com/stroyassist/normax/internal/service"
)

type IndexerService interface {
	IndexDocument(ctx context.Context, input service.IndexInput) (*service.IndexResult, error)
	ReindexAll(ctx context.Context) (*service.ReindexResult, error)
	DeleteDocumentIndexes(ctx context.Context, documentID string) error
	DeleteAll(ctx context.Context) error
}

type TaskDispatcher interface {
	Dispatch() string
}

type TaskReader interface {
	Get(id string) (*jobs.ReindexTask, bool)
}

type IndexHandler struct {
	svc        IndexerService
	dispatcher TaskDispatcher
	tasks      TaskReader
}

func NewIndexHandler(svc IndexerService, dispatcher TaskDispatcher, tasks TaskReader) *IndexHandler {
	return &IndexHandler{svc: svc, dispatcher: dispatcher, tasks: tasks}
}

type IndexRequest struct {
	DocumentID    string `json:"document_id"`
	DocumentTitle string `json:"document_title"`
	Content       string `json:"content"`
	Category      string `json:"category"`
	Chapter       string `json:"chapter"`
	Section       string `json:"section"`
	PageNumber    int    `json:"page_number"`
}

type IndexResponse struct {
	ChunksCreated int `json:"chunks_created"`
}

func (h *IndexHandler) Index(w http.ResponseWriter, r *http.Request) {
	var req IndexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.DocumentID == "" {
		api.Error(w, http.StatusBadRequest, "document_id is required")
		return
	}
	if req.Content == "" {
		api.Error(w, http.StatusBadRequest, "content is required")
		return
	}

	result, err := h.svc.IndexDocument(r.Context(), service.IndexInput{
		DocumentID:    req.DocumentID,
		DocumentTitle: req.DocumentTitle,
		Content:       req.Content,
		Category:      req.Category,
		Chapter:       req.Chapter,
		Section:       req.Section,
		PageNumber:    req.PageNumber,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, IndexResponse{ChunksCreated: result.ChunksCreated})
}

func (h *IndexHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	documentID := chi.URLParam(r, "documentID")
	if documentID == "" {
		api.Error(w, http.StatusBadRequest, "document id is required")
		return
	}

	if err := h.svc.DeleteDocumentIndexes(r.Context(), documentID); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *IndexHandler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteAll(r.Context()); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *IndexHandler) Reindex(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ReindexAll(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, result)
}

func (h *IndexHandler) ReindexAsync(w http.ResponseWriter, r *http.Request) {
	taskID := h.dispatcher.Dispatch()
	api.Success(w, http.StatusAccepted, map[string]string{"task_id": taskID})
}

func (h *IndexHandler) ReindexStatus(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	task, ok := h.tasks.Get(taskID)
	if !ok {
		api.Error(w, http.StatusNotFound, "reindex task not found")
		return
	}

	api.Success(w, http.StatusOK, task)
}
