package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func (h *Handler) Init() *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(h.withTraceID)
	router.Use(h.withLogging)

	// REST API, JWT-protected.
	router.Group(func(r chi.Router) {
		r.Use(h.auth)

		r.Post("/api/sync/pull", h.pull)
		r.Post("/api/sync/push", h.push)
		r.Get("/api/sync/log", h.syncLog)

		r.Put("/api/items/{id}", h.updateItem)
		r.Delete("/api/items/{id}", h.deleteItem)

		r.Post("/api/devices/register", h.registerDevice)
		r.Post("/api/vaults", h.createVault)
	})

	// The realtime channel authenticates in-band with an AUTH message,
	// so it sits outside the bearer-token middleware.
	if h.realtime != nil {
		router.Get("/ws", h.realtime.HandleWS)
	}

	return router
}
