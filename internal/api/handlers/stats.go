package handlers

import (
	"context"
	"net/http"

	"github.com/stroyassist/normax/internal/api"
	"github.com/stroyassist/normax/internal/service"
)

type StatsService interface {
	Stats(ctx context.Context) service.EngineStats
	Healthy(ctx context.Context) bool
}

type StatsHandler struct {
	svc StatsService
}

func NewStatsHandler(svc StatsService) *StatsHandler {
	return &StatsHandler{svc: svc}
}

func (h *StatsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	api.Success(w, http.StatusOK, h.svc.Stats(r.Context()))
}

func (h *StatsHandler) Health(w http.ResponseWriter, r *http.Request) {
	if !h.svc.Healthy(r.Context()) {
		api.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		return
	}
	api.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
