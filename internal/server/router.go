package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stroyassist/normax/internal/api/handlers"
	"github.com/stroyassist/normax/internal/api/middleware"
)

type RouterConfig struct {
	IndexHandler   *handlers.IndexHandler
	SearchHandler  *handlers.SearchHandler
	ConsultHandler *handlers.ConsultHandler
	StatsHandler   *handlers.StatsHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Normative documents arrive as raw text; allow bigger bodies than a
	// typical JSON API would.
	const maxBodyBytes int64 = 10 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", cfg.StatsHandler.Health)
	r.Get("/stats", cfg.StatsHandler.Stats)

	r.Route("/index", func(r chi.Router) {
		r.Post("/", cfg.IndexHandler.Index)
		r.Delete("/", cfg.IndexHandler.DeleteAll)
		r.Delete("/{documentID}", cfg.IndexHandler.DeleteDocument)
	})

	r.Post("/search", cfg.SearchHandler.Search)

	r.Route("/reindex", func(r chi.Router) {
		r.Post("/", cfg.IndexHandler.Reindex)
		r.Post("/async", cfg.IndexHandler.ReindexAsync)
		r.Get("/tasks/{taskID}", cfg.IndexHandler.ReindexStatus)
	})

	r.Post("/consult", cfg.ConsultHandler.Consult)

	return r
}
