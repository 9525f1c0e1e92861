// Package v1 implements the versioned HTTP handlers over the application
// services.
package v1

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/praxishq/praxis/application/service"
)

// Handlers bundles the application services the v1 routes dispatch to.
type Handlers struct {
	orchestrator *service.Orchestrator
	writer       *service.Writer
	records      service.RecordWriteStore
	worker       *service.Worker
	logger       *slog.Logger
}

// NewHandlers creates the v1 handler set.
func NewHandlers(
	orchestrator *service.Orchestrator,
	writer *service.Writer,
	records service.RecordWriteStore,
	worker *service.Worker,
	logger *slog.Logger,
) *Handlers {
	return &Handlers{
		orchestrator: orchestrator,
		writer:       writer,
		records:      records,
		worker:       worker,
		logger:       logger,
	}
}

// Register mounts the v1 routes under /api/v1.
func (h *Handlers) Register(router chi.Router) {
	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/search", h.search)

		r.Route("/records", func(r chi.Router) {
			r.Post("/", h.createRecord)
			r.Get("/{kind}/{id}", h.getRecord)
			r.Put("/{kind}/{id}", h.updateRecord)
			r.Delete("/{kind}/{id}", h.deleteRecord)
		})

		r.Post("/index/rebuild", h.rebuildIndex)
		r.Get("/worker/stats", h.workerStats)
	})
}
